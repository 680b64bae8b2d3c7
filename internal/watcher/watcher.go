// Package watcher reloads configuration when the config file or the .env file
// changes and reports changes to stored credentials.
package watcher

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/shariqriazz/ocaauth/internal/auth/oca"
	"github.com/shariqriazz/ocaauth/internal/config"
	"github.com/shariqriazz/ocaauth/internal/discovery"
	"github.com/shariqriazz/ocaauth/internal/env"
	"github.com/shariqriazz/ocaauth/internal/logging"
	log "github.com/sirupsen/logrus"
)

const reloadDebounce = 150 * time.Millisecond

// Options configures a Watcher. Empty paths are not watched.
type Options struct {
	ConfigPath string
	EnvPath    string
	AuthDir    string
	// Cache is reset whenever the configuration changes.
	Cache *discovery.Cache
	// OnConfig receives the reloaded configuration.
	OnConfig func(*config.Config)
	// OnCredential is called with the path of a changed credential file.
	OnCredential func(path string)
}

// Watcher watches the parent directories of the tracked files so atomic
// replacements are seen.
type Watcher struct {
	opts    Options
	watcher *fsnotify.Watcher

	mu     sync.RWMutex
	config *config.Config
	hashes map[string]string

	timerMu     sync.Mutex
	reloadTimer *time.Timer
}

// NewWatcher creates a watcher starting from cfg.
func NewWatcher(cfg *config.Config, opts Options) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	for _, p := range []*string{&opts.ConfigPath, &opts.EnvPath, &opts.AuthDir} {
		if *p == "" {
			continue
		}
		if abs, errAbs := filepath.Abs(*p); errAbs == nil {
			*p = abs
		}
	}
	w := &Watcher{
		opts:    opts,
		watcher: fsw,
		config:  cfg,
		hashes:  make(map[string]string),
	}
	w.remember(opts.ConfigPath)
	w.remember(opts.EnvPath)
	w.remember(w.credentialPath())
	return w, nil
}

func (w *Watcher) credentialPath() string {
	if w.opts.AuthDir == "" {
		return ""
	}
	return filepath.Join(w.opts.AuthDir, oca.CredentialFileName("oca"))
}

// Start begins processing events until ctx ends or Stop is called.
func (w *Watcher) Start(ctx context.Context) error {
	dirs := make(map[string]struct{})
	for _, p := range []string{w.opts.ConfigPath, w.opts.EnvPath} {
		if p != "" {
			dirs[filepath.Dir(p)] = struct{}{}
		}
	}
	if w.opts.AuthDir != "" {
		if errMkdir := os.MkdirAll(w.opts.AuthDir, 0o700); errMkdir != nil {
			log.Warnf("failed to create auth directory %s: %v", w.opts.AuthDir, errMkdir)
		}
		dirs[w.opts.AuthDir] = struct{}{}
	}
	for dir := range dirs {
		if errAdd := w.watcher.Add(dir); errAdd != nil {
			log.Errorf("failed to watch %s: %v", dir, errAdd)
			return errAdd
		}
		log.Debugf("watching directory: %s", dir)
	}
	go w.processEvents(ctx)
	return nil
}

// Stop closes the underlying watcher.
func (w *Watcher) Stop() error {
	w.timerMu.Lock()
	if w.reloadTimer != nil {
		w.reloadTimer.Stop()
		w.reloadTimer = nil
	}
	w.timerMu.Unlock()
	return w.watcher.Close()
}

// Config returns the latest configuration.
func (w *Watcher) Config() *config.Config {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.config
}

func (w *Watcher) processEvents(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			w.handleEvent(event)
		case errWatch, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			log.Errorf("file watcher error: %v", errWatch)
		}
	}
}

func (w *Watcher) handleEvent(event fsnotify.Event) {
	if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename|fsnotify.Remove) == 0 {
		return
	}
	name := filepath.Clean(event.Name)
	switch name {
	case w.opts.ConfigPath, w.opts.EnvPath:
		log.Debugf("file system event detected: %s %s", event.Op.String(), event.Name)
		w.scheduleReload()
	case w.credentialPath():
		if !w.changed(name) {
			log.Debugf("credential file unchanged (hash match): %s", filepath.Base(name))
			return
		}
		log.Infof("credential file changed (%s): %s", event.Op.String(), filepath.Base(name))
		if w.opts.OnCredential != nil {
			w.opts.OnCredential(name)
		}
	}
}

func (w *Watcher) scheduleReload() {
	w.timerMu.Lock()
	defer w.timerMu.Unlock()
	if w.reloadTimer != nil {
		w.reloadTimer.Stop()
	}
	w.reloadTimer = time.AfterFunc(reloadDebounce, func() {
		w.timerMu.Lock()
		w.reloadTimer = nil
		w.timerMu.Unlock()
		w.reloadIfChanged()
	})
}

func (w *Watcher) reloadIfChanged() {
	configChanged := w.opts.ConfigPath != "" && w.changed(w.opts.ConfigPath)
	envChanged := w.opts.EnvPath != "" && w.changed(w.opts.EnvPath)
	if !configChanged && !envChanged {
		log.Debugf("config content unchanged (hash match), skipping reload")
		return
	}
	w.reload()
}

func (w *Watcher) reload() {
	env.Reset()
	env.Load()

	var next *config.Config
	if w.opts.ConfigPath != "" {
		loaded, errLoad := config.LoadConfigOptional(w.opts.ConfigPath, true)
		if errLoad != nil {
			log.Errorf("failed to reload config: %v", errLoad)
			return
		}
		next = loaded
	} else {
		next = w.Config()
	}

	w.mu.Lock()
	w.config = next
	w.mu.Unlock()

	logging.SetLogLevel(next)
	if w.opts.Cache != nil {
		w.opts.Cache.Reset()
	}
	log.Infof("configuration reloaded, discovery will run again")
	if w.opts.OnConfig != nil {
		w.opts.OnConfig(next)
	}
}

// changed updates the stored hash for path and reports whether it differs.
// A missing file hashes to the empty string.
func (w *Watcher) changed(path string) bool {
	sum := fileHash(path)
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.hashes[path] == sum {
		return false
	}
	w.hashes[path] = sum
	return true
}

func (w *Watcher) remember(path string) {
	if path == "" {
		return
	}
	w.hashes[path] = fileHash(path)
}

func fileHash(path string) string {
	data, err := os.ReadFile(path)
	if err != nil {
		return ""
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
