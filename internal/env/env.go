// Package env loads optional local override variables from a .env file.
// The file is read at most once per process until Reset is called, and values
// never replace variables that are already present in the process environment.
package env

import (
	"errors"
	"os"
	"strings"
	"sync"

	"github.com/joho/godotenv"
	log "github.com/sirupsen/logrus"
)

// FileVariable names the variable that points at an alternative .env file.
const FileVariable = "OCA_ENV_FILE"

const defaultFile = ".env"

var (
	mu     sync.Mutex
	loaded bool
	// applied holds the variables set from the file, which a later reload may replace.
	applied = map[string]struct{}{}
)

// Path returns the .env file consulted by Load.
func Path() string {
	if p := strings.TrimSpace(os.Getenv(FileVariable)); p != "" {
		return p
	}
	return defaultFile
}

// Load reads the .env file once. Missing files are not an error.
func Load() {
	mu.Lock()
	defer mu.Unlock()
	if loaded {
		return
	}
	loaded = true

	path := Path()
	values, err := godotenv.Read(path)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			log.Warnf("env: failed to read %s: %v", path, err)
		}
		return
	}
	count := 0
	for key, value := range values {
		if key == "" {
			continue
		}
		_, ours := applied[key]
		if _, exists := os.LookupEnv(key); exists && !ours {
			continue
		}
		if errSet := os.Setenv(key, value); errSet != nil {
			log.Warnf("env: failed to set %s: %v", key, errSet)
			continue
		}
		applied[key] = struct{}{}
		count++
	}
	for key := range applied {
		if _, still := values[key]; !still {
			_ = os.Unsetenv(key)
			delete(applied, key)
		}
	}
	log.Debugf("env: loaded %d variable(s) from %s", count, path)
}

// Reset re-arms Load so the next call reads the file again.
func Reset() {
	mu.Lock()
	loaded = false
	mu.Unlock()
}
