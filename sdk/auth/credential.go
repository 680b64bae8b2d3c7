package auth

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// CredentialType tags the Credential union.
type CredentialType string

const (
	// CredentialOAuth carries access and refresh tokens.
	CredentialOAuth CredentialType = "oauth"
	// CredentialAPIKey carries a static API key.
	CredentialAPIKey CredentialType = "api"
)

// Credential is the snapshot exchanged with the host store. Only the fields
// matching Type are meaningful.
type Credential struct {
	Type CredentialType `json:"type"`

	Access string `json:"access,omitempty"`
	// Refresh is required to renew an expired oauth credential.
	Refresh string `json:"refresh,omitempty"`
	// Expires is the access token expiry in epoch milliseconds.
	Expires       int64  `json:"expires,omitempty"`
	EnterpriseURL string `json:"enterpriseUrl,omitempty"`
	AccountID     string `json:"accountId,omitempty"`

	Key string `json:"key,omitempty"`
}

// NewAPIKeyCredential wraps a static key.
func NewAPIKeyCredential(key string) *Credential {
	return &Credential{Type: CredentialAPIKey, Key: strings.TrimSpace(key)}
}

// IsOAuth reports whether c is an oauth credential.
func (c *Credential) IsOAuth() bool {
	return c != nil && c.Type == CredentialOAuth
}

// BearerToken returns the token presented to the OCA API: the access token
// for oauth credentials, the key for api credentials.
func (c *Credential) BearerToken() string {
	if c == nil {
		return ""
	}
	switch c.Type {
	case CredentialOAuth:
		return c.Access
	case CredentialAPIKey:
		return c.Key
	}
	return ""
}

// Valid reports whether an oauth credential holds an unexpired access token.
func (c *Credential) Valid(now time.Time) bool {
	return c != nil && c.Access != "" && c.Expires > now.UnixMilli()
}

// ExpiresAt converts Expires to a time.Time.
func (c *Credential) ExpiresAt() time.Time {
	if c == nil || c.Expires == 0 {
		return time.Time{}
	}
	return time.UnixMilli(c.Expires)
}

// Clone returns a copy of c.
func (c *Credential) Clone() *Credential {
	if c == nil {
		return nil
	}
	out := *c
	return &out
}

// Validate checks that the fields required by Type are present.
func (c *Credential) Validate() error {
	if c == nil {
		return fmt.Errorf("credential is nil")
	}
	switch c.Type {
	case CredentialOAuth:
		if strings.TrimSpace(c.Access) == "" && strings.TrimSpace(c.Refresh) == "" {
			return fmt.Errorf("oauth credential has neither access nor refresh token")
		}
	case CredentialAPIKey:
		if strings.TrimSpace(c.Key) == "" {
			return fmt.Errorf("api credential has an empty key")
		}
	default:
		return fmt.Errorf("unknown credential type %q", c.Type)
	}
	return nil
}

// UnmarshalJSON accepts "apiKey" as an alias for the api type.
func (c *Credential) UnmarshalJSON(data []byte) error {
	type plain Credential
	var decoded plain
	if err := json.Unmarshal(data, &decoded); err != nil {
		return err
	}
	if strings.EqualFold(string(decoded.Type), "apikey") {
		decoded.Type = CredentialAPIKey
	}
	*c = Credential(decoded)
	return nil
}
