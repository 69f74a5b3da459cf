package config

import (
	"os"
	"path/filepath"
)

const (
	// EnvConfigPath is the environment variable for explicit config path
	EnvConfigPath = "CLUSTERCFG_CONFIG"
	// ConfigFileName is the default config file name
	ConfigFileName = "clustercfg.yaml"
	// ConfigDirName is the config directory name under XDG
	ConfigDirName = "clustercfg"
)

// FindConfigPath returns the first existing config file among:
// $CLUSTERCFG_CONFIG, ./clustercfg.yaml, $XDG_CONFIG_HOME/clustercfg/config.yaml,
// ~/.config/clustercfg/config.yaml and /etc/clustercfg/config.yaml.
// It returns "" if none exists.
func FindConfigPath() string {
	for _, path := range configCandidates() {
		if fileExists(path) {
			if abs, err := filepath.Abs(path); err == nil {
				return abs
			}
			return path
		}
	}
	return ""
}

// configCandidates lists search locations in priority order, skipping unset variables
func configCandidates() []string {
	var paths []string
	if p := os.Getenv(EnvConfigPath); p != "" {
		paths = append(paths, p)
	}
	paths = append(paths, ConfigFileName)
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		paths = append(paths, filepath.Join(xdg, ConfigDirName, "config.yaml"))
	}
	if home := os.Getenv("HOME"); home != "" {
		paths = append(paths, filepath.Join(home, ".config", ConfigDirName, "config.yaml"))
	}
	return append(paths, filepath.Join("/etc", ConfigDirName, "config.yaml"))
}

// DefaultKeyDir returns where the coordinator keeps its key pair
func DefaultKeyDir() string {
	if home := os.Getenv("HOME"); home != "" {
		return filepath.Join(home, ".ssh")
	}
	return ".ssh"
}

// EnsureConfigDir creates the config directory if it doesn't exist
func EnsureConfigDir(configPath string) error {
	dir := filepath.Dir(configPath)
	return os.MkdirAll(dir, 0755)
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
