package utils

import (
	"fmt"
	"os"
	"strings"
)

// EnvOrDefault returns ENV value or fallback default.
func EnvOrDefault(key, def string) string {
	v := os.Getenv(key)
	if strings.TrimSpace(v) == "" {
		return def
	}
	return v
}

// BuildGuestLink builds the frontend attestation link embedding the token.
func BuildGuestLink(frontendURL, token string) string {
	if frontendURL == "" {
		frontendURL = "http://localhost:3000"
	}
	frontendURL = strings.TrimRight(frontendURL, "/")
	return fmt.Sprintf("%s/attest?token=%s", frontendURL, token)
}
