package auth

import (
	"sync"
)

var (
	storeMu         sync.RWMutex
	registeredStore Store
)

// RegisterTokenStore sets the global credential store used by the CLI helpers.
func RegisterTokenStore(store Store) {
	storeMu.Lock()
	registeredStore = store
	storeMu.Unlock()
}

// GetTokenStore returns the globally registered store, creating a file store
// under the default auth directory on first use.
func GetTokenStore() Store {
	storeMu.RLock()
	s := registeredStore
	storeMu.RUnlock()
	if s != nil {
		return s
	}
	storeMu.Lock()
	defer storeMu.Unlock()
	if registeredStore == nil {
		registeredStore = NewFileTokenStore("")
	}
	return registeredStore
}
