package utils

import (
	"fmt"
	"os"
)

// GetEnv reads an environment variable, falling back to the provided default
// when the variable is unset or empty.
func GetEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		return value
	}
	return fallback
}

// CreateFolder creates the folder (and any missing parents) if it does not
// already exist.
func CreateFolder(path string) error {
	if err := os.MkdirAll(path, 0755); err != nil {
		return fmt.Errorf("failed to create folder %q: %w", path, err)
	}
	return nil
}
