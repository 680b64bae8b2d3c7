// Package misc holds the OAuth helper primitives: random state and nonce
// values, PKCE code pairs and callback URL parsing.
package misc

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"net/url"
	"strings"

	"golang.org/x/oauth2"
)

const (
	randomValueBytes = 32
	// PKCEVerifierLength is the number of characters in a generated code verifier.
	PKCEVerifierLength = 43
	pkceAlphabet       = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789-._~"
)

// PKCECodes holds a code verifier and its S256 challenge.
type PKCECodes struct {
	CodeVerifier  string
	CodeChallenge string
}

// GenerateRandomState returns 32 random bytes encoded as unpadded base64url.
func GenerateRandomState() (string, error) {
	buf := make([]byte, randomValueBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate random bytes: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

// GenerateNonce returns an OIDC nonce with the same shape as the state value.
func GenerateNonce() (string, error) {
	return GenerateRandomState()
}

// GeneratePKCECodes creates a verifier drawn from the unreserved character
// set and its SHA-256 challenge.
func GeneratePKCECodes() (*PKCECodes, error) {
	buf := make([]byte, PKCEVerifierLength)
	if _, err := rand.Read(buf); err != nil {
		return nil, fmt.Errorf("failed to generate pkce verifier: %w", err)
	}
	var sb strings.Builder
	sb.Grow(PKCEVerifierLength)
	for _, b := range buf {
		sb.WriteByte(pkceAlphabet[int(b)%len(pkceAlphabet)])
	}
	verifier := sb.String()
	return &PKCECodes{
		CodeVerifier:  verifier,
		CodeChallenge: oauth2.S256ChallengeFromVerifier(verifier),
	}, nil
}

// OAuthCallback is the parsed query of a redirect back to the loopback listener.
type OAuthCallback struct {
	Code             string
	State            string
	Error            string
	ErrorDescription string
}

// ParseOAuthCallback accepts a full callback URL, a bare query string or
// "code=...&state=..." pasted by the user. Empty input returns nil, nil.
func ParseOAuthCallback(input string) (*OAuthCallback, error) {
	trimmed := strings.TrimSpace(input)
	if trimmed == "" {
		return nil, nil
	}

	query := trimmed
	if strings.Contains(trimmed, "://") {
		parsed, err := url.Parse(trimmed)
		if err != nil {
			return nil, fmt.Errorf("invalid callback url: %w", err)
		}
		query = parsed.RawQuery
		if query == "" && parsed.Fragment != "" {
			query = parsed.Fragment
		}
	} else if idx := strings.Index(trimmed, "?"); idx >= 0 {
		query = trimmed[idx+1:]
	}

	values, err := url.ParseQuery(query)
	if err != nil {
		return nil, fmt.Errorf("invalid callback query: %w", err)
	}
	cb := &OAuthCallback{
		Code:             strings.TrimSpace(values.Get("code")),
		State:            strings.TrimSpace(values.Get("state")),
		Error:            strings.TrimSpace(values.Get("error")),
		ErrorDescription: strings.TrimSpace(values.Get("error_description")),
	}
	if cb.Code == "" && cb.Error == "" {
		return nil, fmt.Errorf("callback is missing both code and error")
	}
	return cb, nil
}
