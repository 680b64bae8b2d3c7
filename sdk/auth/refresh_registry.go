package auth

import (
	"sync"
	"time"
)

var (
	refreshLeadMu        sync.RWMutex
	refreshLeadProviders = map[string]func() *time.Duration{}
)

func init() {
	registerRefreshLead(ProviderOCA, NewOCAAuthenticator().RefreshLead)
}

func registerRefreshLead(provider string, lead func() *time.Duration) {
	if provider == "" || lead == nil {
		return
	}
	refreshLeadMu.Lock()
	defer refreshLeadMu.Unlock()
	// A nil lead from an api-key authenticator must not mask the oauth one.
	if existing, ok := refreshLeadProviders[provider]; ok && existing() != nil && lead() == nil {
		return
	}
	refreshLeadProviders[provider] = lead
}

// RefreshLead returns how long before expiry credentials of provider should
// be refreshed proactively, or nil when they never need it.
func RefreshLead(provider string) *time.Duration {
	refreshLeadMu.RLock()
	lead, ok := refreshLeadProviders[provider]
	refreshLeadMu.RUnlock()
	if !ok {
		return nil
	}
	return lead()
}
