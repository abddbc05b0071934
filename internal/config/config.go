package config

import (
	"net/url"
	"path/filepath"
	"time"

	"github.com/adrg/xdg"
)

// Default configuration values.
const (
	// AppName is the application name used for XDG directory paths.
	AppName = "pagemirror"

	// DefaultDepth is the @import recursion budget for stylesheets.
	// Depth 0 keeps the root stylesheets and drops every import.
	DefaultDepth = 5

	// DefaultOutputDir is the directory the mirror is written to when no
	// output directory argument is given.
	DefaultOutputDir = "output"

	// DefaultTimeout applies to each HTTP request, not the whole run.
	DefaultTimeout = 30 * time.Second

	// DefaultUserAgent is sent with every request unless overridden.
	DefaultUserAgent = "Mozilla/5.0 (compatible; pagemirror/1.0)"

	// DefaultMaxBodySize limits each response body to 50MB.
	DefaultMaxBodySize = 50 * 1024 * 1024

	// DefaultTorProxyAddress is the standard Tor SOCKS5 proxy address.
	// Used by `pagemirror init` in the generated template.
	DefaultTorProxyAddress = "127.0.0.1:9050"

	// DefaultTorStartupTimeout is the maximum time to wait for the embedded
	// Tor daemon to bootstrap.
	DefaultTorStartupTimeout = 3 * time.Minute

	// DefaultHistoryLimit is how many runs `pagemirror history` lists.
	DefaultHistoryLimit = 20
)

// Config holds all configuration options for a mirror run.
// It is populated from CLI flags, the environment and the config file,
// then passed through the application rather than kept in global state.
type Config struct {
	// URL is the template page to mirror. Must be absolute http(s).
	URL string

	// OutputDir is the directory the page and its assets are written to.
	OutputDir string

	// Depth is the @import recursion budget. Must be non-negative.
	Depth int

	// Timeout is the per-request timeout.
	Timeout time.Duration

	// UserAgent is the User-Agent header sent with every request.
	UserAgent string

	// MaxBodySize caps response bodies in bytes. Zero means the default.
	MaxBodySize int64

	// Rate limits requests per second. Zero means unlimited.
	Rate float64

	// Robots enables robots.txt compliance.
	Robots bool

	// ProxyAddress is an optional SOCKS5 proxy in "host:port" format.
	ProxyAddress string

	// UseTor starts an embedded Tor daemon and routes requests through it.
	// Mutually exclusive with ProxyAddress.
	UseTor bool

	// TorStartupTimeout bounds the embedded Tor bootstrap.
	TorStartupTimeout time.Duration

	// Verbose enables debug logging.
	Verbose bool

	// ConfigFilePath is an explicit config file path. When empty the
	// default locations are searched.
	ConfigFilePath string

	// SiteConfigs holds the per-host settings loaded from the config file.
	SiteConfigs *File

	// JSONReport selects the JSON report. Mutually exclusive with MarkdownReport.
	JSONReport bool

	// MarkdownReport selects the Markdown report. Mutually exclusive with JSONReport.
	MarkdownReport bool

	// ReportFile writes the report to a file instead of stdout.
	ReportFile string

	// DBDir is where the history database lives.
	// Defaults to the XDG data directory.
	DBDir string

	// SaveToDB records the run in the history database.
	SaveToDB bool
}

// NewConfig creates a new Config with default values.
func NewConfig() *Config {
	return &Config{
		OutputDir:         DefaultOutputDir,
		Depth:             DefaultDepth,
		Timeout:           DefaultTimeout,
		UserAgent:         DefaultUserAgent,
		MaxBodySize:       DefaultMaxBodySize,
		TorStartupTimeout: DefaultTorStartupTimeout,
		DBDir:             XDGDataDir(),
		SaveToDB:          true,
	}
}

// XDGDataDir returns the XDG data directory for pagemirror.
// On Linux: ~/.local/share/pagemirror
func XDGDataDir() string {
	return filepath.Join(xdg.DataHome, AppName)
}

// XDGConfigDir returns the XDG config directory for pagemirror.
// On Linux: ~/.config/pagemirror
func XDGConfigDir() string {
	return filepath.Join(xdg.ConfigHome, AppName)
}

// Validate checks if the configuration is valid and returns the first
// problem found.
func (c *Config) Validate() error {
	if c.URL == "" {
		return ErrNoURL
	}

	u, err := url.Parse(c.URL)
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return ErrInvalidURL
	}

	if c.Depth < 0 {
		return ErrInvalidDepth
	}

	if c.Timeout <= 0 {
		return ErrInvalidTimeout
	}

	if c.JSONReport && c.MarkdownReport {
		return ErrConflictingReportFormats
	}

	if c.MaxBodySize < 0 {
		return ErrInvalidMaxBodySize
	}

	if c.Rate < 0 {
		return ErrInvalidRate
	}

	if c.UseTor && c.ProxyAddress != "" {
		return ErrConflictingProxy
	}

	return nil
}

// Host returns the hostname of URL, or "" if it does not parse.
func (c *Config) Host() string {
	u, err := url.Parse(c.URL)
	if err != nil {
		return ""
	}
	return u.Hostname()
}

// ApplySiteConfig merges the config file entry for the target host.
// Settings for which explicit reports true are left alone, so flags and
// positional arguments always win. explicit is asked about "depth" and
// "user-agent"; a nil explicit treats everything as unset.
// It returns the merged site settings for the caller to hand to the
// transport.
func (c *Config) ApplySiteConfig(explicit func(name string) bool) SiteConfig {
	if c.SiteConfigs == nil {
		return SiteConfig{}
	}
	if explicit == nil {
		explicit = func(string) bool { return false }
	}

	site := c.SiteConfigs.GetSiteConfig(c.Host())
	if site.Depth != nil && !explicit("depth") {
		c.Depth = *site.Depth
	}
	if site.UserAgent != "" && !explicit("user-agent") {
		c.UserAgent = site.UserAgent
	}
	return site
}
