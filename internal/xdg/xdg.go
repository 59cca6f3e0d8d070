// Package xdg resolves the XDG Base Directory paths used by powerexec.
//
// When XDG_CONFIG_HOME is unset it falls back to ~/.config. Directories are created private (0700) because the config
// directory may reference credentials.
package xdg

import (
	"os"
	"path/filepath"
)

// AppName is the directory name under the XDG base directories.
const AppName = "powerexec"

// ConfigDir returns the XDG config directory for powerexec, creating it with
// 0700 permissions when missing.
func ConfigDir() (string, error) {
	return appDir("XDG_CONFIG_HOME", ".config")
}

func appDir(env, fallback string) (string, error) {
	base := os.Getenv(env)
	if base == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		base = filepath.Join(home, fallback)
	}
	dir := filepath.Join(base, AppName)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return "", err
	}
	return dir, nil
}
