package config

import (
	"os"
	"path/filepath"
)

// AppDirName is the per-user directory holding the config file, the usage
// history, and the user-scope refactoring scripts.
const AppDirName = ".refactool"

// GetConfigPath returns the configuration file path. It first checks the
// REFACTOOL_CONFIG environment variable, then falls back to the default
// location (~/.refactool/config).
func GetConfigPath() (string, error) {
	if configPath := os.Getenv("REFACTOOL_CONFIG"); configPath != "" {
		return configPath, nil
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(homeDir, AppDirName, "config"), nil
}

// GetAppDir returns the per-user application directory (~/.refactool).
func GetAppDir() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(homeDir, AppDirName), nil
}

// GetHistoryPath returns the usage history file path (~/.refactool/history.json).
func GetHistoryPath() (string, error) {
	dir, err := GetAppDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "history.json"), nil
}

// GetUserScriptsDir returns the user-scope refactoring scripts directory
// (~/.refactool/refactorings by default).
func GetUserScriptsDir() (string, error) {
	dir, err := GetAppDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "refactorings"), nil
}

// EnsureConfigDir ensures that the configuration directory exists.
func EnsureConfigDir() error {
	configPath, err := GetConfigPath()
	if err != nil {
		return err
	}
	return os.MkdirAll(filepath.Dir(configPath), 0755)
}
