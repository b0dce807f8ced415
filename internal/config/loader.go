package config

import (
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
)

const (
	// UserConfigDir is the user config directory, relative to $HOME.
	UserConfigDir = ".config/taskcal"
	// UserConfigFile is the user config file name.
	UserConfigFile = "config.yaml"
	// UserDataDir is where the store and backend database live by default.
	UserDataDir = ".local/share/taskcal"
)

// Loader loads configuration with layered precedence:
//  1. defaults
//  2. user config (~/.config/taskcal/config.yaml), if present
//  3. the explicit file passed to Load, which must exist
//
// Command-line flags are applied by the caller on top of the result.
type Loader struct {
	logger *slog.Logger
	home   string
}

// NewLoader creates a loader rooted at the current user's home directory.
func NewLoader(logger *slog.Logger) *Loader {
	if logger == nil {
		logger = slog.Default()
	}
	home, _ := os.UserHomeDir()
	return &Loader{logger: logger, home: home}
}

// WithHome returns a copy of l that resolves user paths under home.
func (l *Loader) WithHome(home string) *Loader {
	cp := *l
	cp.home = home
	return &cp
}

// UserConfigPath returns the path of the user config file.
func (l *Loader) UserConfigPath() string {
	if l.home == "" {
		return ""
	}
	return filepath.Join(l.home, UserConfigDir, UserConfigFile)
}

// DataDir returns the default directory for data files.
func (l *Loader) DataDir() string {
	if l.home == "" {
		return "."
	}
	return filepath.Join(l.home, UserDataDir)
}

// Load builds the configuration. explicitPath may be empty.
// The result is not validated; call Validate after applying flags.
func (l *Loader) Load(explicitPath string) (*Config, error) {
	cfg := Default(l.DataDir())

	if userPath := l.UserConfigPath(); userPath != "" {
		err := mergeFile(cfg, userPath)
		switch {
		case err == nil:
			l.logger.Debug("loaded user config", "path", userPath)
		case errors.Is(err, fs.ErrNotExist):
			l.logger.Debug("no user config", "path", userPath)
		default:
			return nil, err
		}
	}

	if explicitPath != "" {
		if err := mergeFile(cfg, explicitPath); err != nil {
			return nil, err
		}
		l.logger.Debug("loaded config", "path", explicitPath)
	}

	return cfg, nil
}
