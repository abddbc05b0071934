package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"github.com/joho/godotenv"
)

// Environment variables read by ApplyEnv.
const (
	EnvUserAgent = "PAGEMIRROR_USER_AGENT"
	EnvProxy     = "PAGEMIRROR_PROXY"
	EnvTimeout   = "PAGEMIRROR_TIMEOUT"
)

// DefaultEnvFile is the dotenv file LoadEnv reads when no path is given.
const DefaultEnvFile = ".env"

// ErrInvalidEnv is returned when an environment variable cannot be parsed.
var ErrInvalidEnv = errors.New("invalid environment variable")

// LoadEnv loads dotenv files into the process environment.
// Variables already set in the environment are not overwritten.
// A missing file is not an error.
func LoadEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{DefaultEnvFile}
	}

	for _, p := range paths {
		if err := godotenv.Load(p); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return fmt.Errorf("failed to load %s: %w", p, err)
		}
	}
	return nil
}

// ApplyEnv copies PAGEMIRROR_* variables into c.
// A variable is ignored when explicit reports that the matching flag
// ("user-agent", "proxy", "timeout") was set on the command line.
// lookup defaults to os.LookupEnv and explicit to "nothing set".
func (c *Config) ApplyEnv(lookup func(string) (string, bool), explicit func(name string) bool) error {
	if lookup == nil {
		lookup = os.LookupEnv
	}
	if explicit == nil {
		explicit = func(string) bool { return false }
	}

	if v, ok := lookup(EnvUserAgent); ok && v != "" && !explicit("user-agent") {
		c.UserAgent = v
	}

	if v, ok := lookup(EnvProxy); ok && v != "" && !explicit("proxy") && !c.UseTor {
		c.ProxyAddress = v
	}

	if v, ok := lookup(EnvTimeout); ok && v != "" && !explicit("timeout") {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("%w: %s=%q: %w", ErrInvalidEnv, EnvTimeout, v, err)
		}
		c.Timeout = d
	}

	return nil
}
