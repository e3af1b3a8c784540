// Package config defines the lockmirror configuration file.
//
// Configuration is read from lockmirror.toml in the project directory. A
// missing file yields [Default]; keys present in the file override the
// defaults one by one. Unknown keys are rejected so typos surface early.
//
//	[download]
//	mirror = "https://registry.npmmirror.com"
//	concurrency = 10
//	timeout = "30s"
//
//	[registry]
//	port = 4874
//
//	[repair]
//	max_rounds = 200
//
// Every component receives the section it needs through its constructor;
// nothing in this package is global.
package config

import (
	"os"
	"path/filepath"
	"slices"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/matzehuels/lockmirror/pkg/errors"
)

// FileName is the configuration file looked up in the project directory.
const FileName = "lockmirror.toml"

// Duration is a time.Duration encoded as a TOML string ("30s", "24h").
type Duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	d.Duration = v
	return nil
}

// MarshalText implements encoding.TextMarshaler.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// Config is the complete lockmirror configuration.
type Config struct {
	// Lockfile overrides lockfile detection when set.
	Lockfile string `toml:"lockfile"`

	Download DownloadConfig `toml:"download"`
	Registry RegistryConfig `toml:"registry"`
	Repair   RepairConfig   `toml:"repair"`
	Cache    CacheConfig    `toml:"cache"`
	Report   ReportConfig   `toml:"report"`
}

// DownloadConfig configures the artifact fetcher.
type DownloadConfig struct {
	Mirror      string   `toml:"mirror"`      // accelerated registry used for all but the last attempt
	Origin      string   `toml:"origin"`      // canonical registry, last attempt and 404 fallback
	Dir         string   `toml:"dir"`         // artifact store
	Concurrency int      `toml:"concurrency"` // parallel downloads
	Retries     int      `toml:"retries"`     // attempts per artifact
	RetryDelay  Duration `toml:"retry_delay"` // initial backoff, doubled per attempt
	Timeout     Duration `toml:"timeout"`     // total timeout of one request
	FailureLog  string   `toml:"failure_log"` // machine-readable failure log (JSON lines)
	Skip        bool     `toml:"skip"`        // skip the lockfile download phase
}

// RegistryConfig configures the local registry server.
type RegistryConfig struct {
	Host      string   `toml:"host"`
	Port      int      `toml:"port"`      // 0 picks a free port
	Roots     []string `toml:"roots"`     // scanned in addition to the download dir
	Extension string   `toml:"extension"` // artifact file extension
}

// RepairConfig configures the install-repair loop.
type RepairConfig struct {
	MaxRounds        int      `toml:"max_rounds"`
	Installer        string   `toml:"installer"`         // installer executable
	Args             []string `toml:"args"`              // installer arguments before the registry flags
	MetadataRegistry string   `toml:"metadata_registry"` // packument source for missing specs
	InstallLog       string   `toml:"install_log"`       // combined installer output of the latest round
	RoundLog         string   `toml:"round_log"`         // specs dispatched in the latest round
	TotalLog         string   `toml:"total_log"`         // every spec supplemented during the run
}

// CacheConfig configures the packument cache.
type CacheConfig struct {
	Backend       string   `toml:"backend"` // file, redis or none
	Dir           string   `toml:"dir"`     // file backend directory; empty uses the user cache dir
	TTL           Duration `toml:"ttl"`
	RedisAddr     string   `toml:"redis_addr"`
	RedisPassword string   `toml:"redis_password"`
	RedisDB       int      `toml:"redis_db"`
}

// ReportConfig configures where run reports are written.
type ReportConfig struct {
	Backend         string `toml:"backend"` // file, mongo or none
	Path            string `toml:"path"`    // file backend output
	MongoURI        string `toml:"mongo_uri"`
	MongoDatabase   string `toml:"mongo_database"`
	MongoCollection string `toml:"mongo_collection"`
}

// Cache and report backends.
const (
	BackendFile  = "file"
	BackendRedis = "redis"
	BackendMongo = "mongo"
	BackendNone  = "none"
)

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Download: DownloadConfig{
			Mirror:      "https://registry.npmmirror.com",
			Origin:      "https://registry.npmjs.org",
			Dir:         "packages",
			Concurrency: 10,
			Retries:     3,
			RetryDelay:  Duration{time.Second},
			Timeout:     Duration{30 * time.Second},
			FailureLog:  filepath.Join("logs", "download.log"),
		},
		Registry: RegistryConfig{
			Host:      "127.0.0.1",
			Port:      4874,
			Extension: ".tgz",
		},
		Repair: RepairConfig{
			MaxRounds:        200,
			Installer:        "npm",
			Args:             []string{"install"},
			MetadataRegistry: "https://registry.npmjs.org",
			InstallLog:       filepath.Join("logs", "npm_install.log"),
			RoundLog:         filepath.Join("logs", "supplement_round.log"),
			TotalLog:         filepath.Join("logs", "supplement_total.log"),
		},
		Cache: CacheConfig{
			Backend: BackendFile,
			TTL:     Duration{24 * time.Hour},
		},
		Report: ReportConfig{
			Backend:         BackendFile,
			Path:            filepath.Join("logs", "run-report.json"),
			MongoDatabase:   "lockmirror",
			MongoCollection: "runs",
		},
	}
}

// Load reads the configuration at path on top of [Default]. A missing file
// is not an error.
func Load(path string) (Config, error) {
	cfg := Default()
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return cfg, nil
	}
	md, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		return cfg, errors.Wrap(errors.ErrCodeInvalidConfig, err, "parse %s", path)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		return cfg, errors.New(errors.ErrCodeInvalidConfig, "%s: unknown key %q", path, undecoded[0].String())
	}
	return cfg, nil
}

// Validate checks value ranges and backend-specific requirements.
func (c Config) Validate() error {
	if err := errors.ValidateURL(c.Download.Mirror); err != nil {
		return configErr("download.mirror", err)
	}
	if err := errors.ValidateURL(c.Download.Origin); err != nil {
		return configErr("download.origin", err)
	}
	if err := errors.ValidateURL(c.Repair.MetadataRegistry); err != nil {
		return configErr("repair.metadata_registry", err)
	}
	switch {
	case c.Download.Dir == "":
		return errors.New(errors.ErrCodeInvalidConfig, "download.dir must be set")
	case c.Download.Concurrency < 1:
		return errors.New(errors.ErrCodeInvalidConfig, "download.concurrency must be at least 1")
	case c.Download.Retries < 1:
		return errors.New(errors.ErrCodeInvalidConfig, "download.retries must be at least 1")
	case c.Download.Timeout.Duration <= 0:
		return errors.New(errors.ErrCodeInvalidConfig, "download.timeout must be positive")
	case c.Registry.Port < 0 || c.Registry.Port > 65535:
		return errors.New(errors.ErrCodeInvalidConfig, "registry.port out of range: %d", c.Registry.Port)
	case c.Registry.Extension == "":
		return errors.New(errors.ErrCodeInvalidConfig, "registry.extension must be set")
	case c.Repair.MaxRounds < 1:
		return errors.New(errors.ErrCodeInvalidConfig, "repair.max_rounds must be at least 1")
	case c.Repair.Installer == "":
		return errors.New(errors.ErrCodeInvalidConfig, "repair.installer must be set")
	}

	if !slices.Contains([]string{BackendFile, BackendRedis, BackendNone}, c.Cache.Backend) {
		return errors.New(errors.ErrCodeInvalidConfig, "cache.backend must be file, redis or none, got %q", c.Cache.Backend)
	}
	if c.Cache.Backend == BackendRedis && c.Cache.RedisAddr == "" {
		return errors.New(errors.ErrCodeInvalidConfig, "cache.redis_addr is required for the redis backend")
	}
	if !slices.Contains([]string{BackendFile, BackendMongo, BackendNone}, c.Report.Backend) {
		return errors.New(errors.ErrCodeInvalidConfig, "report.backend must be file, mongo or none, got %q", c.Report.Backend)
	}
	if c.Report.Backend == BackendMongo && c.Report.MongoURI == "" {
		return errors.New(errors.ErrCodeInvalidConfig, "report.mongo_uri is required for the mongo backend")
	}
	return nil
}

// Resolve returns a copy of c with every relative path made absolute
// against dir.
func (c Config) Resolve(dir string) Config {
	abs := func(p string) string {
		if p == "" || filepath.IsAbs(p) {
			return p
		}
		return filepath.Join(dir, p)
	}
	c.Lockfile = abs(c.Lockfile)
	c.Download.Dir = abs(c.Download.Dir)
	c.Download.FailureLog = abs(c.Download.FailureLog)
	c.Registry.Roots = slices.Clone(c.Registry.Roots)
	for i, r := range c.Registry.Roots {
		c.Registry.Roots[i] = abs(r)
	}
	c.Repair.Args = slices.Clone(c.Repair.Args)
	c.Repair.InstallLog = abs(c.Repair.InstallLog)
	c.Repair.RoundLog = abs(c.Repair.RoundLog)
	c.Repair.TotalLog = abs(c.Repair.TotalLog)
	c.Cache.Dir = abs(c.Cache.Dir)
	c.Report.Path = abs(c.Report.Path)
	return c
}

// RegistryRoots returns the directories the local registry scans: the
// download directory followed by any extra roots, without duplicates.
func (c Config) RegistryRoots() []string {
	roots := []string{c.Download.Dir}
	for _, r := range c.Registry.Roots {
		if !slices.Contains(roots, r) {
			roots = append(roots, r)
		}
	}
	return roots
}

func configErr(key string, err error) error {
	return errors.Wrap(errors.ErrCodeInvalidConfig, err, "invalid %s", key)
}
