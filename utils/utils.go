package utils

import (
	"os"
	"strconv"

	"github.com/google/uuid"
)

// GetEnv returns the value of the environment variable key, or fallback
// when it is unset or empty.
func GetEnv(key string, fallback ...string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	if len(fallback) > 0 {
		return fallback[0]
	}
	return ""
}

// GetEnvInt is GetEnv for integer values. unparsable values fall back.
func GetEnvInt(key string, fallback int) int {
	v, err := strconv.Atoi(GetEnv(key))
	if err != nil {
		return fallback
	}
	return v
}

// CreateFolder creates folderPath (and parents) if it does not exist.
func CreateFolder(folderPath string) error {
	return os.MkdirAll(folderPath, 0o755)
}

// GenerateRequestID returns a short random id used to tag log lines of
// one batch or HTTP request.
func GenerateRequestID() string {
	return uuid.NewString()[:8]
}
