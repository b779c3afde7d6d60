package twitter

import (
	"os"
	"path/filepath"
	"strings"
)

const tokenEnvVar = "TANATURF_TOKEN"

// ResolveToken picks the bearer token from the flag, the environment or
// the saved token file, in that order. A token passed by flag is saved
// for future runs.
func ResolveToken(flagToken string) string {
	if flagToken != "" {
		saveToken(flagToken)
		return flagToken
	}

	if token := os.Getenv(tokenEnvVar); token != "" {
		return token
	}

	configDir, err := os.UserConfigDir()
	if err != nil {
		return ""
	}
	data, err := os.ReadFile(filepath.Join(configDir, "tanaturf", "token"))
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(data))
}

func saveToken(token string) {
	configDir, err := os.UserConfigDir()
	if err != nil || configDir == "" {
		return
	}
	configPath := filepath.Join(configDir, "tanaturf")
	if err := os.MkdirAll(configPath, 0700); err != nil {
		return
	}
	_ = os.WriteFile(filepath.Join(configPath, "token"), []byte(token), 0600)
}
