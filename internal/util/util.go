// Package util provides small helpers shared by the CLI, the auth flows and the
// discovery engine: proxy-aware HTTP clients, URL validation, response
// decoding and secret masking.
package util

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ResolveAuthDir expands a leading ~ to the user's home directory.
func ResolveAuthDir(dir string) (string, error) {
	dir = strings.TrimSpace(dir)
	if dir == "" {
		return "", nil
	}
	if dir == "~" || strings.HasPrefix(dir, "~/") || strings.HasPrefix(dir, `~\`) {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home dir: %w", err)
		}
		if dir == "~" {
			return home, nil
		}
		return filepath.Join(home, dir[2:]), nil
	}
	return filepath.Clean(dir), nil
}

// HideAPIKey masks a secret for logging, keeping a short prefix and suffix.
func HideAPIKey(apiKey string) string {
	if len(apiKey) > 8 {
		return apiKey[:4] + "..." + apiKey[len(apiKey)-4:]
	} else if len(apiKey) > 4 {
		return apiKey[:2] + "..." + apiKey[len(apiKey)-2:]
	} else if len(apiKey) > 2 {
		return apiKey[:1] + "..." + apiKey[len(apiKey)-1:]
	}
	return apiKey
}

// PrintSSHTunnelInstructions explains how to forward the loopback callback port
// when the browser runs on another machine.
func PrintSSHTunnelInstructions(port int) {
	fmt.Println("If this machine is remote, forward the callback port before opening the URL:")
	fmt.Printf("  ssh -L %d:127.0.0.1:%d <user>@<this-host>\n", port, port)
}
