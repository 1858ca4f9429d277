package commands

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/hay-kot/huddle/internal/core/auth"
	"github.com/hay-kot/huddle/internal/core/config"
	"github.com/hay-kot/huddle/internal/huddle"
	"github.com/hay-kot/huddle/internal/metrics"
	"github.com/hay-kot/huddle/internal/store/jsonfile"
)

type Flags struct {
	LogLevel   string
	LogFile    string
	ConfigPath string
	DataDir    string

	// Config is loaded in the Before hook and available to all commands
	Config *config.Config

	// Users persists the signed-in user's credentials
	Users *jsonfile.UserStore

	// Metrics collects engine and channel metrics for the process
	Metrics *metrics.Metrics

	// Service is the activity sync engine for the signed-in user
	Service *huddle.Service
}

// requireLogin returns an error pointing at the login command when no user
// is signed in.
func (f *Flags) requireLogin() error {
	if f.Service == nil || !f.Service.User().LoggedIn() {
		return fmt.Errorf("%w: run 'huddle login' first", auth.ErrNotLoggedIn)
	}
	return nil
}

// DefaultConfigPath returns the default config file path using XDG_CONFIG_HOME.
func DefaultConfigPath() string {
	configHome := os.Getenv("XDG_CONFIG_HOME")
	if configHome == "" {
		home, _ := os.UserHomeDir()
		configHome = filepath.Join(home, ".config")
	}
	return filepath.Join(configHome, "huddle", "config.yaml")
}

// DefaultDataDir returns the default data directory using XDG_DATA_HOME.
func DefaultDataDir() string {
	dataHome := os.Getenv("XDG_DATA_HOME")
	if dataHome == "" {
		home, _ := os.UserHomeDir()
		dataHome = filepath.Join(home, ".local", "share")
	}
	return filepath.Join(dataHome, "huddle")
}
