// Package config loads and validates the typed configuration surfaces
// recognized by the runtime: the ADP section, the fast-path section,
// global server options, and the command-line/persisted-state layout.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/naviserver-project/naviserver-sub002/pkg/logging"
)

// ADPConfig is the ADP section's recognized options and their effects.
type ADPConfig struct {
	ErrorPage        string `yaml:"errorpage"`
	StartPage        string `yaml:"startpage"`
	DebugInit        string `yaml:"debuginit"`
	TraceSize        int    `yaml:"tracesize"`
	CacheSize        int64  `yaml:"cachesize"`
	BufSize          int64  `yaml:"bufsize"`
	DefaultExtension string `yaml:"defaultextension"`

	Cache        bool `yaml:"cache"`
	Stream       bool `yaml:"stream"`
	EnableExpire bool `yaml:"enableexpire"`
	EnableDebug  bool `yaml:"enabledebug"`
	SafeEval     bool `yaml:"safeeval"`
	SingleScript bool `yaml:"singlescript"`
	Trace        bool `yaml:"trace"`
	DetailError  bool `yaml:"detailerror"`
	StrictError  bool `yaml:"stricterror"`
	DisplayError bool `yaml:"displayerror"`
	TrimSpace    bool `yaml:"trimspace"`
	AutoAbort    bool `yaml:"autoabort"`
}

// FastPathConfig is the fast-path section's recognized options.
type FastPathConfig struct {
	Mmap          bool     `yaml:"mmap"`
	GzipStatic    bool     `yaml:"gzip_static"`
	GzipRefresh   bool     `yaml:"gzip_refresh"`
	Cache         bool     `yaml:"cache"`
	CacheMaxSize  int64    `yaml:"cachemaxsize"`
	CacheMaxEntry int64    `yaml:"cachemaxentry"`
	DirectoryFile []string `yaml:"directoryfile"`
	ServerDir     string   `yaml:"serverdir"`
	PageDir       string   `yaml:"pagedir"`
	DirectoryProc string   `yaml:"directoryproc"`
	DirectoryADP  string   `yaml:"directoryadp"`
}

// ReverseProxyMode configures trusted-proxy handling.
type ReverseProxyMode struct {
	Enabled        bool     `yaml:"enabled"`
	SkipNonPublic  bool     `yaml:"skipnonpublic"`
	TrustedServers []string `yaml:"trustedservers"`
}

// GlobalConfig is the server-wide section.
type GlobalConfig struct {
	Home                string           `yaml:"home"`
	LogDir              string           `yaml:"logdir"`
	LogLevel            string           `yaml:"loglevel"`
	LogFormat           string           `yaml:"logformat"`
	BinDir              string           `yaml:"bindir"`
	TmpDir              string           `yaml:"tmpdir"`
	MutexLockTrace      bool             `yaml:"mutexlocktrace"`
	FormFallbackCharset string           `yaml:"formfallbackcharset"`
	ReverseProxyMode    ReverseProxyMode `yaml:"reverseproxymode"`
	CachingMode         string           `yaml:"cachingmode"`
	SanitizeLogFiles    int              `yaml:"sanitizelogfiles"`
	RejectAlreadyClosed bool             `yaml:"rejectalreadyclosedconn"`
	ShutdownTimeoutSecs int              `yaml:"shutdowntimeout"`
}

// Config is the complete configuration surface: ADP, fast path, and
// global server options, loaded from YAML with environment overrides.
type Config struct {
	ADP      ADPConfig      `yaml:"adp"`
	FastPath FastPathConfig `yaml:"fastpath"`
	Global   GlobalConfig   `yaml:"global"`
}

// Default returns the documented defaults for every recognized option.
func Default() *Config {
	return &Config{
		ADP: ADPConfig{
			DebugInit:   "ns_adp_debuginit",
			TraceSize:   40,
			CacheSize:   5 * 1024 * 1024,
			BufSize:     1024 * 1024,
			DetailError: true,
			AutoAbort:   true,
		},
		FastPath: FastPathConfig{
			DirectoryFile: []string{"index.adp", "index.tcl", "index.html", "index.htm"},
			PageDir:       "pages",
			DirectoryProc: "_ns_dirlist",
		},
		Global: GlobalConfig{
			LogLevel:            "info",
			LogFormat:           "text",
			CachingMode:         "full",
			SanitizeLogFiles:    2,
			RejectAlreadyClosed: true,
		},
	}
}

// Load reads path as YAML over the defaults, then applies environment
// overrides and validates the result. A missing path is not an error:
// defaults plus environment apply on their own.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return nil, fmt.Errorf("config: read %s: %w", path, err)
			}
		} else if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("config: parse %s: %w", path, err)
		}
	}

	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

const envPrefix = "NSAPPD_"

func (c *Config) applyEnvOverrides() {
	if v := os.Getenv(envPrefix + "ADP_CACHESIZE"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			c.ADP.CacheSize = n
		}
	}
	if v := os.Getenv(envPrefix + "ADP_BUFSIZE"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			c.ADP.BufSize = n
		}
	}
	if v := os.Getenv(envPrefix + "FASTPATH_CACHE"); v != "" {
		c.FastPath.Cache = strings.EqualFold(v, "true")
	}
	if v := os.Getenv(envPrefix + "FASTPATH_GZIP_STATIC"); v != "" {
		c.FastPath.GzipStatic = strings.EqualFold(v, "true")
	}
	if v := os.Getenv(envPrefix + "HOME"); v != "" {
		c.Global.Home = v
	}
	if v := os.Getenv(envPrefix + "LOGDIR"); v != "" {
		c.Global.LogDir = v
	}
	if v := os.Getenv(envPrefix + "LOGLEVEL"); v != "" {
		c.Global.LogLevel = v
	}
	if v := os.Getenv(envPrefix + "TMPDIR"); v != "" {
		c.Global.TmpDir = v
	}
	if v := os.Getenv(envPrefix + "SHUTDOWN_TIMEOUT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Global.ShutdownTimeoutSecs = n
		}
	}
}

// Validate checks the loaded configuration for invalid or missing
// required values, naming the offending key as spec.md's configuration
// errors require.
func (c *Config) Validate() error {
	if c.ADP.CacheSize > 0 && c.ADP.CacheSize < 1000*1024 {
		return fmt.Errorf("config: adp.cachesize must be at least 1000 KiB, got %d", c.ADP.CacheSize)
	}
	if c.ADP.BufSize > 0 && c.ADP.BufSize < 100*1024 {
		return fmt.Errorf("config: adp.bufsize must be at least 100 KiB, got %d", c.ADP.BufSize)
	}
	if c.ADP.TraceSize <= 0 {
		return fmt.Errorf("config: adp.tracesize must be positive, got %d", c.ADP.TraceSize)
	}

	switch strings.ToLower(c.Global.CachingMode) {
	case "full", "none", "no":
	default:
		return fmt.Errorf("config: global.cachingmode must be 'full' or 'none', got %q", c.Global.CachingMode)
	}
	if _, err := logging.ParseLogLevel(c.Global.LogLevel); err != nil {
		return fmt.Errorf("config: global.loglevel: %w", err)
	}
	if _, err := logging.ParseLogFormat(c.Global.LogFormat); err != nil {
		return fmt.Errorf("config: global.logformat: %w", err)
	}
	if c.Global.SanitizeLogFiles < 0 || c.Global.SanitizeLogFiles > 3 {
		return fmt.Errorf("config: global.sanitizelogfiles must be 0-3, got %d", c.Global.SanitizeLogFiles)
	}
	if c.Global.ReverseProxyMode.Enabled && len(c.Global.ReverseProxyMode.TrustedServers) == 0 && !c.Global.ReverseProxyMode.SkipNonPublic {
		return fmt.Errorf("config: global.reverseproxymode.trustedservers is required when reverseproxymode is enabled without skipnonpublic")
	}

	return nil
}

// DefaultPath builds the conventional config file location under home,
// mirroring the CLI's -t default.
func DefaultPath(home string) string {
	return filepath.Join(home, "etc", "nsappd.yaml")
}
