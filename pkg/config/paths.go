package config

import (
	"os"
	"path/filepath"
	"strings"
)

const (
	EnvConfigPath = "SHRIMP_CONFIG"
	EnvHome       = "SHRIMP_HOME"
)

type RuntimePaths struct {
	HomeDir    string
	ConfigPath string
}

func ResolveRuntimePaths() RuntimePaths {
	if configPath := expandHome(strings.TrimSpace(os.Getenv(EnvConfigPath))); configPath != "" {
		return buildRuntimePaths(filepath.Dir(configPath), configPath)
	}

	homeDir := expandHome(strings.TrimSpace(os.Getenv(EnvHome)))
	if homeDir == "" {
		homeDir = defaultHome()
	}

	return buildRuntimePaths(homeDir, filepath.Join(homeDir, "config.json"))
}

func defaultHome() string {
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		return ".shrimp"
	}
	return filepath.Join(home, ".shrimp")
}

func buildRuntimePaths(homeDir, configPath string) RuntimePaths {
	return RuntimePaths{HomeDir: homeDir, ConfigPath: configPath}
}
