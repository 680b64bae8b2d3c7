package auth

import (
	"context"
	"fmt"
	"time"

	"github.com/shariqriazz/ocaauth/internal/config"
)

// LoginOptions captures generic knobs shared across authenticators.
// Provider-specific logic can inspect Metadata for extra parameters.
type LoginOptions struct {
	NoBrowser    bool
	CallbackPort int
	Metadata     map[string]string
	// Prompt asks the user for a line of input, e.g. a pasted callback URL.
	Prompt func(prompt string) (string, error)
	// ReadSecret asks for input without echoing it.
	ReadSecret func(prompt string) (string, error)
}

// Authenticator manages login and optional refresh flows for a provider.
type Authenticator interface {
	Provider() string
	// Method distinguishes authenticators of the same provider ("oauth", "api").
	Method() string
	Login(ctx context.Context, cfg *config.Config, opts *LoginOptions) (*Credential, error)
	RefreshLead() *time.Duration
}

// Persister is the host operation the coordinator calls after every
// successful refresh or authorization.
type Persister interface {
	Set(ctx context.Context, id string, cred *Credential) error
}

// Store is the host credential store.
type Store interface {
	Persister
	// Get returns nil, nil when no credential is stored under id.
	Get(ctx context.Context, id string) (*Credential, error)
	Delete(ctx context.Context, id string) error
}

// CredentialGetter yields the live credential snapshot.
type CredentialGetter func(ctx context.Context) (*Credential, error)

// StoreGetter reads id from store on every call.
func StoreGetter(store Store, id string) CredentialGetter {
	return func(ctx context.Context) (*Credential, error) {
		if store == nil {
			return nil, fmt.Errorf("oca auth: no credential store")
		}
		cred, err := store.Get(ctx, id)
		if err != nil {
			return nil, err
		}
		if cred == nil {
			return nil, fmt.Errorf("oca auth: no credential stored for %s; %s", id, ReauthHint)
		}
		return cred, nil
	}
}
