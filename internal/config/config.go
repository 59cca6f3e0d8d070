// Package config loads and stores CLI configuration in the XDG config dir.
// Only non-secret settings are kept here; the DSN password and become-user
// passwords go to the OS keychain.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"powerexec/cli/internal/xdg"

	"gopkg.in/yaml.v3"
)

// FileName is the config file inside the XDG config directory.
const FileName = "config.yaml"

// Environment overrides.
const (
	EnvDSN      = "POWEREXEC_DSN"
	EnvLogLevel = "POWEREXEC_LOG_LEVEL"
)

// Toolkit transports.
const (
	TransportDB   = "db"
	TransportHTTP = "http"
	TransportGRPC = "grpc"
)

// Config holds non-sensitive CLI settings.
type Config struct {
	LogLevel string        `yaml:"log_level"`
	DB       DBConfig      `yaml:"db"`
	Toolkit  ToolkitConfig `yaml:"toolkit"`
	Shell    ShellConfig   `yaml:"shell"`
}

// DBConfig holds database connection settings.
type DBConfig struct {
	Driver   string `yaml:"driver,omitempty"`
	DSN      string `yaml:"dsn,omitempty"`
	Database string `yaml:"database,omitempty"`
}

// ToolkitConfig selects how XMLSERVICE requests travel.
type ToolkitConfig struct {
	Transport string `yaml:"transport"`
	Library   string `yaml:"library,omitempty"`
	IPC       string `yaml:"ipc,omitempty"`
	CTL       string `yaml:"ctl,omitempty"`
	HTTPURL   string `yaml:"http_url,omitempty"`
	GRPCAddr  string `yaml:"grpc_addr,omitempty"`
	Insecure  bool   `yaml:"insecure,omitempty"`
}

// ShellConfig configures a local line-mode shell for screen commands. It is
// only used with Local set, when powerexec runs on the host itself; screen
// commands otherwise run on the host through the toolkit.
type ShellConfig struct {
	Local   bool          `yaml:"local"`
	Binary  string        `yaml:"binary"`
	Timeout time.Duration `yaml:"timeout"`
}

// Default returns the configuration used when no file exists.
func Default() Config {
	return Config{
		LogLevel: "info",
		Toolkit:  ToolkitConfig{Transport: TransportDB},
		Shell:    ShellConfig{Binary: "system", Timeout: 10 * time.Minute},
	}
}

// Path returns the path to the config file.
func Path() (string, error) {
	dir, err := xdg.ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, FileName), nil
}

// Load reads the configuration file and applies environment overrides. A
// missing file yields the defaults.
func Load() (Config, error) {
	p, err := Path()
	if err != nil {
		return Config{}, err
	}
	return LoadFile(p)
}

// LoadFile reads configuration from p and applies environment overrides.
func LoadFile(p string) (Config, error) {
	c := Default()
	data, err := os.ReadFile(p)
	switch {
	case errors.Is(err, os.ErrNotExist):
	case err != nil:
		return c, err
	default:
		if err := yaml.Unmarshal(data, &c); err != nil {
			return c, fmt.Errorf("parse %s: %w", p, err)
		}
	}
	c.applyEnv()
	return c, c.Validate()
}

func (c *Config) applyEnv() {
	if v := strings.TrimSpace(os.Getenv(EnvDSN)); v != "" {
		c.DB.DSN = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvLogLevel)); v != "" {
		c.LogLevel = v
	}
}

// Validate checks the enumerated settings.
func (c Config) Validate() error {
	switch c.Toolkit.Transport {
	case "", TransportDB:
	case TransportHTTP:
		if c.Toolkit.HTTPURL == "" {
			return errors.New("toolkit.http_url is required for the http transport")
		}
	case TransportGRPC:
		if c.Toolkit.GRPCAddr == "" {
			return errors.New("toolkit.grpc_addr is required for the grpc transport")
		}
	default:
		return fmt.Errorf("unknown toolkit transport %q (want db, http or grpc)", c.Toolkit.Transport)
	}
	if c.Shell.Timeout < 0 {
		return errors.New("shell.timeout must not be negative")
	}
	return nil
}

// Save writes configuration with 0600 permissions.
func Save(c Config) error {
	p, err := Path()
	if err != nil {
		return err
	}
	return SaveFile(p, c)
}

// SaveFile writes c to p with 0600 permissions.
func SaveFile(p string, c Config) error {
	b, err := yaml.Marshal(c)
	if err != nil {
		return err
	}
	return os.WriteFile(p, b, 0o600)
}
