package config

import (
	"os"
	"path/filepath"
	"strings"
)

const (
	envConfigDir = "APIDEBUG_CONFIG_DIR"
	appDirName   = "apidebug"
)

// Dir returns the directory holding settings and history.
func Dir() string {
	if dir := strings.TrimSpace(os.Getenv(envConfigDir)); dir != "" {
		return dir
	}
	base, err := os.UserConfigDir()
	if err != nil || base == "" {
		home, homeErr := os.UserHomeDir()
		if homeErr != nil {
			return filepath.Join(".", "."+appDirName)
		}
		return filepath.Join(home, "."+appDirName)
	}
	return filepath.Join(base, appDirName)
}

func HistoryPath() string {
	return filepath.Join(Dir(), "history.json")
}

func LogPath() string {
	return filepath.Join(Dir(), "logs", "apidebug.log")
}
