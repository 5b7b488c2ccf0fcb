package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/caarlos0/env/v6"
	"github.com/docker/go-units"
	"gopkg.in/yaml.v3"

	"github.com/redpwn/gitpow/internal/digest"
)

type Size int64

func (s *Size) UnmarshalText(t []byte) error {
	v, err := units.RAMInBytes(string(t))
	*s = Size(v)
	return err
}

func (s Size) String() string {
	return units.BytesSize(float64(s))
}

type Config struct {
	Repo       string        `env:"GITPOW_REPO" envDefault:"." yaml:"repo"`
	Dir        string        `env:"GITPOW_DIR" envDefault:"files" yaml:"dir"`
	MaxTries   int           `env:"GITPOW_MAX_TRIES" envDefault:"40" yaml:"max_tries"`
	Zeroes     int           `env:"GITPOW_ZEROES" envDefault:"1" yaml:"zeroes"`
	Timeout    time.Duration `env:"GITPOW_TIMEOUT" envDefault:"30s" yaml:"timeout"`
	Digest     string        `env:"GITPOW_DIGEST" envDefault:"sha1" yaml:"digest"`
	MaxPayload Size          `env:"GITPOW_MAX_PAYLOAD" envDefault:"16M" yaml:"max_payload"`
	Hook       string        `env:"GITPOW_HOOK" yaml:"hook"`
	Verbose    bool          `env:"GITPOW_VERBOSE" yaml:"verbose"`
	Format     string        `env:"GITPOW_FORMAT" envDefault:"text" yaml:"format"`
}

// MaxZeroes is the length of a hex SHA-1 object id.
const MaxZeroes = 40

var Formats = []string{"text", "json"}

var ErrInvalid = errors.New("invalid config")

// GetConfig reads the environment, then overlays the YAML file at path
// when path is non-empty.
func GetConfig(path string) (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env config: %w", err)
	}
	if path == "" {
		return cfg, nil
	}
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(content, cfg); err != nil {
		return nil, fmt.Errorf("parse config file %s: %w", path, err)
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	if c.MaxTries < 1 {
		return fmt.Errorf("%w: max tries must be at least 1, got %d", ErrInvalid, c.MaxTries)
	}
	if c.Zeroes < 0 || c.Zeroes > MaxZeroes {
		return fmt.Errorf("%w: zeroes must be between 0 and %d, got %d", ErrInvalid, MaxZeroes, c.Zeroes)
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("%w: timeout must be positive, got %s", ErrInvalid, c.Timeout)
	}
	if c.MaxPayload < 0 {
		return fmt.Errorf("%w: max payload must not be negative", ErrInvalid)
	}
	if _, err := digest.ParseAlgorithm(c.Digest); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	for _, f := range Formats {
		if f == c.Format {
			return nil
		}
	}
	return fmt.Errorf("%w: format %q must be one of %v", ErrInvalid, c.Format, Formats)
}

// StorageDir resolves Dir against Repo unless it is already absolute, and
// returns it as an absolute path. git runs with -C Repo, so a path relative
// to the process working directory would be resolved twice.
func (c *Config) StorageDir() (string, error) {
	dir := c.Dir
	if !filepath.IsAbs(dir) {
		dir = filepath.Join(c.Repo, dir)
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return "", fmt.Errorf("resolve storage dir: %w", err)
	}
	return abs, nil
}
