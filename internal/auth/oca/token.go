// Package oca implements the Oracle IDCS token endpoint client used by the OCA
// provider: authorization-code exchange and refresh-token grants.
package oca

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/shariqriazz/ocaauth/internal/util"
	log "github.com/sirupsen/logrus"
)

const (
	// TokenPath is appended to the IDCS URL for token requests.
	TokenPath = "/oauth2/v1/token"
	// AuthorizePath is appended to the IDCS URL for the authorization request.
	AuthorizePath = "/oauth2/v1/authorize"
	// DefaultExpiresIn applies when the token response omits expires_in.
	DefaultExpiresIn = 3600

	operationRefresh  = "Token refresh"
	operationExchange = "Token exchange"
)

// TokenResponse is the JSON body returned by the IDCS token endpoint.
type TokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token,omitempty"`
	ExpiresIn    int64  `json:"expires_in,omitempty"`
	TokenType    string `json:"token_type"`
}

// ExpiresAt returns the absolute expiry in epoch milliseconds relative to now.
func (t *TokenResponse) ExpiresAt(now time.Time) int64 {
	return now.Add(time.Duration(t.ExpiresIn) * time.Second).UnixMilli()
}

// ValidateIDCSURL returns an *InvalidURLError unless raw is a well-formed http(s) URL.
func ValidateIDCSURL(raw string) error {
	if _, err := util.ParseHTTPURL(raw); err != nil {
		return &InvalidURLError{Value: raw}
	}
	return nil
}

// RefreshAccessToken performs a refresh_token grant.
func RefreshAccessToken(ctx context.Context, httpClient *http.Client, idcsURL, clientID, refreshToken string) (*TokenResponse, error) {
	form := url.Values{}
	form.Set("grant_type", "refresh_token")
	form.Set("refresh_token", refreshToken)
	form.Set("client_id", clientID)
	return postTokenForm(ctx, httpClient, operationRefresh, idcsURL, form)
}

// ExchangeCodeForTokens performs an authorization_code grant with the PKCE verifier.
func ExchangeCodeForTokens(ctx context.Context, httpClient *http.Client, idcsURL, clientID, code, redirectURI, verifier string) (*TokenResponse, error) {
	form := url.Values{}
	form.Set("grant_type", "authorization_code")
	form.Set("code", code)
	form.Set("redirect_uri", redirectURI)
	form.Set("client_id", clientID)
	form.Set("code_verifier", verifier)
	return postTokenForm(ctx, httpClient, operationExchange, idcsURL, form)
}

func postTokenForm(ctx context.Context, httpClient *http.Client, operation, idcsURL string, form url.Values) (*TokenResponse, error) {
	if errValidate := ValidateIDCSURL(idcsURL); errValidate != nil {
		return nil, errValidate
	}
	if ctx == nil {
		ctx = context.Background()
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}

	endpoint := strings.TrimRight(strings.TrimSpace(idcsURL), "/") + TokenPath
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	resp, errDo := httpClient.Do(req)
	if errDo != nil {
		return nil, fmt.Errorf("%s failed: %w", operation, errDo)
	}
	defer func() {
		if errClose := resp.Body.Close(); errClose != nil {
			log.Errorf("oca token: close body error: %v", errClose)
		}
	}()

	body, errRead := io.ReadAll(resp.Body)
	if errRead != nil {
		return nil, fmt.Errorf("%s failed: read body: %w", operation, errRead)
	}
	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		tokenErr := &TokenError{
			Operation:  operation,
			StatusCode: resp.StatusCode,
			Detail:     extractErrorDetail(resp.Header.Get("Content-Type"), body),
		}
		log.Debugf("oca token: %v", tokenErr)
		return nil, tokenErr
	}

	var token TokenResponse
	if errDecode := json.Unmarshal(body, &token); errDecode != nil {
		return nil, fmt.Errorf("%s failed: decode response: %w", operation, errDecode)
	}
	if strings.TrimSpace(token.AccessToken) == "" {
		return nil, fmt.Errorf("%s failed: response missing access_token", operation)
	}
	if token.ExpiresIn <= 0 {
		token.ExpiresIn = DefaultExpiresIn
	}
	return &token, nil
}
