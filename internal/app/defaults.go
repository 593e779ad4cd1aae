package app

import (
	"fmt"
	"os"
	"path/filepath"
)

// GetDefaults returns application default paths, checking environment variables first.
// Environment variables:
//   - EPO_CONFIG_PATH: config file location (default: ~/.config/epo.toml)
//   - EPO_HOME: base directory for epo data (default: ~/.local/share/epo)
func GetDefaults() (map[string]string, error) {
	configPath, err := getConfigPath()
	if err != nil {
		return nil, err
	}

	baseDir, err := getBaseDir()
	if err != nil {
		return nil, err
	}

	return map[string]string{
		"config_path": configPath,
		"base_dir":    baseDir,
		"log_dir":     filepath.Join(baseDir, "log"),
		"journal_dir": filepath.Join(baseDir, "journal"),
	}, nil
}

// getConfigPath returns the config file path, checking EPO_CONFIG_PATH env var first,
// then falling back to the default ~/.config/epo.toml.
func getConfigPath() (string, error) {
	if path := os.Getenv("EPO_CONFIG_PATH"); path != "" {
		return path, nil
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("cannot determine home directory: %w", err)
	}
	return filepath.Join(homeDir, ".config", "epo.toml"), nil
}

// getBaseDir returns the base directory for epo data, checking EPO_HOME env var first,
// then falling back to the XDG default ~/.local/share/epo.
func getBaseDir() (string, error) {
	if path := os.Getenv("EPO_HOME"); path != "" {
		return path, nil
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("cannot determine home directory: %w", err)
	}
	return filepath.Join(homeDir, ".local", "share", "epo"), nil
}
