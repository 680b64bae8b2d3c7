package auth

import (
	"context"
	"fmt"
	"sort"

	"github.com/shariqriazz/ocaauth/internal/config"
	log "github.com/sirupsen/logrus"
)

// Manager dispatches logins to the registered authenticators and stores the result.
type Manager struct {
	store          Store
	authenticators map[string]Authenticator
}

// NewManager constructs a manager with the given store and authenticators.
func NewManager(store Store, authenticators ...Authenticator) *Manager {
	m := &Manager{store: store, authenticators: make(map[string]Authenticator)}
	for _, a := range authenticators {
		m.Register(a)
	}
	return m
}

func authenticatorKey(provider, method string) string {
	return provider + "/" + method
}

// Register adds or replaces an authenticator.
func (m *Manager) Register(a Authenticator) {
	if a == nil {
		return
	}
	m.authenticators[authenticatorKey(a.Provider(), a.Method())] = a
	registerRefreshLead(a.Provider(), a.RefreshLead)
}

// Methods lists the login methods available for provider.
func (m *Manager) Methods(provider string) []string {
	var out []string
	for _, a := range m.authenticators {
		if a.Provider() == provider {
			out = append(out, a.Method())
		}
	}
	sort.Strings(out)
	return out
}

// Store returns the backing credential store.
func (m *Manager) Store() Store { return m.store }

// Login runs the authenticator for provider and method and persists the credential.
func (m *Manager) Login(ctx context.Context, provider, method string, cfg *config.Config, opts *LoginOptions) (*Credential, error) {
	a, ok := m.authenticators[authenticatorKey(provider, method)]
	if !ok {
		return nil, fmt.Errorf("oca auth: no authenticator for %s/%s", provider, method)
	}
	cred, err := a.Login(ctx, cfg, opts)
	if err != nil {
		return nil, err
	}
	if m.store == nil {
		return cred, nil
	}
	if errSet := m.store.Set(ctx, provider, cred); errSet != nil {
		return nil, fmt.Errorf("oca auth: failed to save credential: %w", errSet)
	}
	log.Infof("saved %s credential for %s", cred.Type, provider)
	return cred, nil
}

// Logout deletes the stored credential for provider.
func (m *Manager) Logout(ctx context.Context, provider string) error {
	if m.store == nil {
		return nil
	}
	return m.store.Delete(ctx, provider)
}
