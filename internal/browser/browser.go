// Package browser opens URLs in the user's default browser.
package browser

import (
	"os"
	"os/exec"
	"runtime"
	"strings"

	pkgbrowser "github.com/pkg/browser"
	log "github.com/sirupsen/logrus"
)

// IsAvailable reports whether a browser can plausibly be launched.
func IsAvailable() bool {
	switch runtime.GOOS {
	case "darwin", "windows":
		return true
	}
	if strings.TrimSpace(os.Getenv("SSH_CONNECTION")) != "" && strings.TrimSpace(os.Getenv("DISPLAY")) == "" {
		return false
	}
	if os.Getenv("DISPLAY") == "" && os.Getenv("WAYLAND_DISPLAY") == "" {
		return false
	}
	for _, candidate := range []string{"xdg-open", "x-www-browser", "www-browser"} {
		if _, err := exec.LookPath(candidate); err == nil {
			return true
		}
	}
	return false
}

// OpenURL launches the default browser for url.
func OpenURL(url string) error {
	pkgbrowser.Stdout = nil
	pkgbrowser.Stderr = nil
	if err := pkgbrowser.OpenURL(url); err != nil {
		log.Debugf("browser: open failed: %v", err)
		return err
	}
	return nil
}
