package lockfile

import (
	"bufio"
	"bytes"
	"regexp"
	"strings"

	"github.com/matzehuels/lockmirror/pkg/errors"
)

// "resolved" "https://..."   resolved "https://..."   version: 1.2.3
var yarnFieldRE = regexp.MustCompile(`^\s+"?(version|resolved|registry)"?:?\s+"?([^"\s]+)"?\s*$`)

type yarnBlock struct {
	name     string
	local    bool
	version  string
	resolved string
	registry string
}

// ParseYarn scans a yarn.lock document. A line ending in ":" at column zero
// starts a block; the block's resolved URL is used when present, otherwise a
// URL is synthesized from its version and registry field, falling back to
// the mirror base. The first occurrence of each field in a block wins.
func ParseYarn(data []byte, opts Options) (*Result, error) {
	c := newCollector(DialectYarn, opts)

	var cur *yarnBlock
	flush := func() {
		if cur == nil {
			return
		}
		switch {
		case cur.local:
			c.result.Skipped++
		case isHTTP(cur.resolved):
			c.addURL(cur.resolved)
		case cur.name == "":
		case cur.resolved != "":
			c.result.Skipped++
		case startsWithDigit(cur.version):
			base := cur.registry
			if !isHTTP(base) {
				base = ""
			}
			c.addVersion(base, cur.name, cur.version)
		}
	}

	sc := bufio.NewScanner(bytes.NewReader(data))
	sc.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for sc.Scan() {
		line := strings.TrimRight(sc.Text(), "\r")
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || strings.HasPrefix(trimmed, "#") {
			continue
		}
		if line[0] != ' ' && line[0] != '\t' {
			if strings.HasSuffix(trimmed, ":") {
				flush()
				header := strings.TrimSuffix(trimmed, ":")
				cur = &yarnBlock{name: yarnBlockName(header), local: isYarnLocalHeader(header)}
			}
			continue
		}
		if cur == nil {
			continue
		}
		m := yarnFieldRE.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		switch m[1] {
		case "version":
			if cur.version == "" {
				cur.version = m[2]
			}
		case "resolved":
			if cur.resolved == "" {
				cur.resolved = stripFragment(m[2])
			}
		case "registry":
			if cur.registry == "" {
				cur.registry = m[2]
			}
		}
	}
	if err := sc.Err(); err != nil {
		return nil, errors.Wrap(errors.ErrCodeMalformedLockfile, err, "scan yarn lockfile")
	}
	flush()
	return c.finish(), nil
}

// yarnBlockName extracts the package name from a block header such as
// `"@babel/core@^7.0.0", "@babel/core@^7.1.0"` or `lodash@npm:^4.17.0`.
// An alias header (`string-width-cjs@npm:string-width@^4.2.0`) names the
// package it points to.
func yarnBlockName(header string) string {
	first, _, _ := strings.Cut(header, ",")
	first = strings.Trim(strings.TrimSpace(first), `"'`)
	if i := strings.Index(first, "@npm:"); i > 0 {
		target := first[i+len("@npm:"):]
		if at := strings.LastIndex(target, "@"); at > 0 {
			first = target[:at]
		} else {
			first = first[:i]
		}
	} else if at := strings.LastIndex(first, "@"); at > 0 {
		first = first[:at]
	}
	if first == "" || first == "__metadata" || strings.ContainsAny(first, " :") {
		return ""
	}
	return first
}

// isYarnLocalHeader reports whether a berry block header names a workspace
// or linked package.
func isYarnLocalHeader(header string) bool {
	for _, proto := range []string{"@workspace:", "@link:", "@portal:", "@file:"} {
		if strings.Contains(header, proto) {
			return true
		}
	}
	return false
}

// stripFragment drops the "#sha1" checksum yarn appends to resolved URLs.
func stripFragment(s string) string {
	if i := strings.IndexByte(s, '#'); i >= 0 {
		return s[:i]
	}
	return s
}
