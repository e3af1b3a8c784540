package cli

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/matzehuels/lockmirror/pkg/config"
	"github.com/matzehuels/lockmirror/pkg/errors"
	"github.com/matzehuels/lockmirror/pkg/pipeline"
	"github.com/matzehuels/lockmirror/pkg/repair"
)

// =============================================================================
// Color Palette
// =============================================================================

var (
	colorCyan   = lipgloss.Color("36")  // Teal - primary actions
	colorGreen  = lipgloss.Color("35")  // Green - success
	colorYellow = lipgloss.Color("220") // Amber - warnings
	colorRed    = lipgloss.Color("167") // Soft red - errors
	colorBlue   = lipgloss.Color("75")  // Light blue - links
	colorWhite  = lipgloss.Color("255") // Bright white - values
	colorGray   = lipgloss.Color("245") // Gray - secondary text
	colorDim    = lipgloss.Color("240") // Dim gray - muted text
)

// =============================================================================
// Public Styles
// =============================================================================

var (
	// StyleTitle for main headings.
	StyleTitle = lipgloss.NewStyle().Bold(true).Foreground(colorCyan)

	// StyleLink for URLs.
	StyleLink = lipgloss.NewStyle().Foreground(colorBlue).Underline(true)

	// StyleDim for secondary/muted text.
	StyleDim = lipgloss.NewStyle().Foreground(colorDim)

	// StyleValue for data values.
	StyleValue = lipgloss.NewStyle().Foreground(colorWhite)

	// StyleNumber for numeric values.
	StyleNumber = lipgloss.NewStyle().Foreground(colorCyan)

	// StyleWarning for warning messages.
	StyleWarning = lipgloss.NewStyle().Foreground(colorYellow)
)

var (
	styleIconSuccess = lipgloss.NewStyle().Foreground(colorGreen)
	styleIconError   = lipgloss.NewStyle().Foreground(colorRed)
	styleIconWarning = lipgloss.NewStyle().Foreground(colorYellow)
	styleIconInfo    = lipgloss.NewStyle().Foreground(colorGray)

	styleLabel   = lipgloss.NewStyle().Foreground(colorGray).Width(12)
	styleCommand = lipgloss.NewStyle().Foreground(colorBlue)
)

const (
	iconSuccess = "✓"
	iconError   = "✗"
	iconWarning = "!"
	iconInfo    = "›"
	iconArrow   = "→"
)

// =============================================================================
// Status Output
// =============================================================================

// printSuccess prints a success message.
func printSuccess(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	fmt.Println(styleIconSuccess.Render(iconSuccess) + " " + msg)
}

// printError prints an error message.
func printError(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	fmt.Println(styleIconError.Render(iconError) + " " + msg)
}

// printWarning prints a warning message.
func printWarning(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	fmt.Println(styleIconWarning.Render(iconWarning) + " " + StyleWarning.Render(msg))
}

// printInfo prints an info/status message.
func printInfo(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	fmt.Println(styleIconInfo.Render(iconInfo) + " " + msg)
}

// printDetail prints a detail line (indented).
func printDetail(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	fmt.Println("  " + StyleDim.Render(msg))
}

// printField prints an aligned label/value line.
func printField(label string, value any) {
	fmt.Println("  " + styleLabel.Render(label) + StyleValue.Render(fmt.Sprint(value)))
}

// printFile prints a file output line.
func printFile(path string) {
	fmt.Println("  " + StyleDim.Render(iconArrow) + " " + StyleValue.Render(path))
}

// printNextStep prints a suggested next command.
func printNextStep(description, cmd string) {
	fmt.Println(StyleDim.Render(description+":") + " " + styleCommand.Render(cmd))
}

// =============================================================================
// Run Summaries
// =============================================================================

// printDownloadSummary prints the outcome of the download phase.
func printDownloadSummary(dl *pipeline.DownloadResult, cfg config.DownloadConfig) {
	if dl == nil || dl.Fetch == nil {
		return
	}
	fmt.Println(StyleTitle.Render("Download"))
	printField("pinned", StyleNumber.Render(fmt.Sprint(len(dl.Lockfile.Dependencies))))
	printField("resolved", StyleNumber.Render(fmt.Sprint(len(dl.Resolved))))
	printField("downloaded", StyleNumber.Render(fmt.Sprint(len(dl.Fetch.Downloaded))))
	printField("existing", StyleNumber.Render(fmt.Sprint(dl.Fetch.Existing)))
	if dl.Recovered > 0 {
		printField("recovered", dl.Recovered)
	}
	printFile(cfg.Dir)

	if n := len(dl.Fetch.Failures); n > 0 {
		printWarning("%d downloads failed", n)
		printDetail("see %s", cfg.FailureLog)
	}
	if n := len(dl.Unresolved); n > 0 {
		printWarning("%d ranges could not be resolved", n)
		for _, u := range dl.Unresolved {
			printDetail("%s", u)
		}
	}
}

// printRunSummary prints the outcome of a complete run.
func printRunSummary(run *pipeline.Run, cfg config.Config) {
	if run == nil {
		return
	}
	fmt.Println()
	if run.Download != nil {
		printDownloadSummary(run.Download, cfg.Download)
	}
	if run.Repair == nil {
		if run.Report.Error != "" {
			printError("%s", run.Report.Error)
		}
		return
	}

	res := run.Repair
	fmt.Println(StyleTitle.Render("Install"))
	printField("outcome", res.Outcome)
	printField("rounds", StyleNumber.Render(fmt.Sprint(res.Rounds)))
	printField("supplied", StyleNumber.Render(fmt.Sprint(len(res.Supplied))))
	printField("run", StyleDim.Render(run.Report.ID))

	switch res.Outcome {
	case repair.Done:
		printSuccess("Installed in %s", run.Report.Duration().Round(time.Millisecond))
	case repair.InstallerFailed:
		printError("Installer exited with status %d", res.ExitCode)
		printDetail("log: %s", res.LogPath)
	default:
		printError("Install incomplete: %s", res.Outcome)
		if len(res.Outstanding) > 0 {
			printDetail("unresolved: %s", joinSpecs(res.Outstanding))
		}
		if res.Err != nil {
			printDetail("%s", errors.UserMessage(res.Err))
		}
	}
}

func joinSpecs(specs []repair.MissingSpec) string {
	parts := make([]string, len(specs))
	for i, s := range specs {
		parts[i] = s.String()
	}
	return strings.Join(parts, ", ")
}
