package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
)

// EnvFilePath returns the user-level env file consulted when environment
// variables are not set.
func EnvFilePath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".memory-cloud.env"
	}
	return filepath.Join(home, ".memory-cloud.env")
}

// LoadEnvFile loads the user env file into the process environment without
// overriding variables that are already set. A missing file is not an error.
func LoadEnvFile() error {
	path := EnvFilePath()
	if _, err := os.Stat(path); err != nil {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("load %s: %w", path, err)
	}
	return nil
}

// WriteEnvFile persists credentials and sync settings to the user env file.
// Used by the setup command.
func WriteEnvFile(remoteURL, serviceKey, deviceName string, syncIntervalSecs int) error {
	content := fmt.Sprintf(`# memory-cloud configuration
# Generated by: memory-cloud setup

MEMORY_CLOUD_REMOTE_URL=%s
MEMORY_CLOUD_SERVICE_KEY=%s
MEMORY_CLOUD_DEVICE_NAME=%s
MEMORY_CLOUD_SYNC_INTERVAL=%d
`, remoteURL, serviceKey, deviceName, syncIntervalSecs)
	return os.WriteFile(EnvFilePath(), []byte(content), 0o600)
}
