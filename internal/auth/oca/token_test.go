package oca

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

func TestRefreshAccessToken_SendsRefreshGrant(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("expected POST, got %s", r.Method)
		}
		if r.URL.Path != TokenPath {
			t.Errorf("expected path %s, got %s", TokenPath, r.URL.Path)
		}
		if ct := r.Header.Get("Content-Type"); ct != "application/x-www-form-urlencoded" {
			t.Errorf("unexpected content type %s", ct)
		}
		if err := r.ParseForm(); err != nil {
			t.Fatalf("parse form: %v", err)
		}
		if r.PostForm.Get("grant_type") != "refresh_token" {
			t.Errorf("expected refresh_token grant, got %s", r.PostForm.Get("grant_type"))
		}
		if r.PostForm.Get("refresh_token") != "refresh-1" || r.PostForm.Get("client_id") != "client-1" {
			t.Errorf("unexpected form: %v", r.PostForm)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"access_token":"access-2","refresh_token":"refresh-2","expires_in":120,"token_type":"Bearer"}`))
	}))
	defer srv.Close()

	token, err := RefreshAccessToken(context.Background(), srv.Client(), srv.URL+"/", "client-1", "refresh-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if token.AccessToken != "access-2" || token.RefreshToken != "refresh-2" || token.ExpiresIn != 120 {
		t.Errorf("unexpected token: %+v", token)
	}
}

func TestExchangeCodeForTokens_SendsPKCEVerifier(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			t.Fatalf("parse form: %v", err)
		}
		want := map[string]string{
			"grant_type":    "authorization_code",
			"code":          "code-1",
			"redirect_uri":  "http://127.0.0.1:48801/auth/oca",
			"client_id":     "client-1",
			"code_verifier": "verifier-1",
		}
		for key, value := range want {
			if got := r.PostForm.Get(key); got != value {
				t.Errorf("expected %s=%s, got %s", key, value, got)
			}
		}
		_, _ = w.Write([]byte(`{"access_token":"access-1","token_type":"Bearer"}`))
	}))
	defer srv.Close()

	token, err := ExchangeCodeForTokens(context.Background(), srv.Client(), srv.URL, "client-1", "code-1", "http://127.0.0.1:48801/auth/oca", "verifier-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if token.ExpiresIn != DefaultExpiresIn {
		t.Errorf("expected default expiry %d, got %d", DefaultExpiresIn, token.ExpiresIn)
	}
	now := time.UnixMilli(1_000)
	if got := token.ExpiresAt(now); got != 1_000+DefaultExpiresIn*1000 {
		t.Errorf("unexpected expires at %d", got)
	}
}

func TestTokenErrors(t *testing.T) {
	tests := []struct {
		name        string
		status      int
		contentType string
		body        string
		refresh     bool
		want        string
	}{
		{
			name:        "json error with description",
			status:      http.StatusUnauthorized,
			contentType: "application/json",
			body:        `{"error":"invalid_grant","error_description":"refresh token expired"}`,
			refresh:     true,
			want:        "Token refresh failed: 401 (invalid_grant: refresh token expired)",
		},
		{
			name:        "json error only",
			status:      http.StatusBadRequest,
			contentType: "application/json; charset=utf-8",
			body:        `{"error":"invalid_client"}`,
			refresh:     true,
			want:        "Token refresh failed: 400 (invalid_client)",
		},
		{
			name:        "json message",
			status:      http.StatusForbidden,
			contentType: "application/json",
			body:        `{"message":"forbidden tenant"}`,
			want:        "Token exchange failed: 403 (forbidden tenant)",
		},
		{
			name:        "plain text collapsed",
			status:      http.StatusBadGateway,
			contentType: "text/plain",
			body:        "  upstream \n\t error  ",
			want:        "Token exchange failed: 502 (upstream error)",
		},
		{
			name:    "empty body",
			status:  http.StatusInternalServerError,
			refresh: true,
			want:    "Token refresh failed: 500",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if tt.contentType != "" {
					w.Header().Set("Content-Type", tt.contentType)
				}
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			var err error
			if tt.refresh {
				_, err = RefreshAccessToken(context.Background(), srv.Client(), srv.URL, "client", "refresh")
			} else {
				_, err = ExchangeCodeForTokens(context.Background(), srv.Client(), srv.URL, "client", "code", "http://127.0.0.1/cb", "verifier")
			}
			if err == nil {
				t.Fatal("expected error")
			}
			if err.Error() != tt.want {
				t.Errorf("expected %q, got %q", tt.want, err.Error())
			}
			if StatusCode(err) != tt.status {
				t.Errorf("expected status %d, got %d", tt.status, StatusCode(err))
			}
		})
	}
}

func TestTokenError_TruncatesLongText(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte(strings.Repeat("x ", 400)))
	}))
	defer srv.Close()

	_, err := RefreshAccessToken(context.Background(), srv.Client(), srv.URL, "client", "refresh")
	var tokenErr *TokenError
	if !errors.As(err, &tokenErr) {
		t.Fatalf("expected *TokenError, got %T", err)
	}
	if len(tokenErr.Detail) != maxErrorDetailLength {
		t.Errorf("expected detail length %d, got %d", maxErrorDetailLength, len(tokenErr.Detail))
	}
}

func TestInvalidIDCSURL_NoNetwork(t *testing.T) {
	var calls int32
	client := &http.Client{Transport: roundTripFunc(func(*http.Request) (*http.Response, error) {
		atomic.AddInt32(&calls, 1)
		return nil, errors.New("unexpected network call")
	})}

	_, errRefresh := RefreshAccessToken(context.Background(), client, "idcs.example.com", "client", "refresh")
	_, errExchange := ExchangeCodeForTokens(context.Background(), client, "idcs.example.com", "client", "code", "http://127.0.0.1/cb", "verifier")
	for _, err := range []error{errRefresh, errExchange} {
		if err == nil || err.Error() != "Invalid IDCS URL: idcs.example.com" {
			t.Errorf("unexpected error: %v", err)
		}
		if !errors.Is(err, ErrInvalidIDCSURL) {
			t.Errorf("expected errors.Is ErrInvalidIDCSURL for %v", err)
		}
	}
	if atomic.LoadInt32(&calls) != 0 {
		t.Errorf("expected zero network calls, got %d", calls)
	}
}

func TestCredentialFileName(t *testing.T) {
	tests := map[string]string{
		"oca":          "oca.json",
		"":             "oca.json",
		"OCA Work/Acc": "oca-work-acc.json",
	}
	for in, want := range tests {
		if got := CredentialFileName(in); got != want {
			t.Errorf("CredentialFileName(%q) = %s, want %s", in, got, want)
		}
	}
	if got := TenantLabel("https://idcs-9dc693e80d9b469480d7afe00e743931.identity.oraclecloud.com"); got != "idcs-9dc693e8" {
		t.Errorf("unexpected tenant label %s", got)
	}
}

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(req *http.Request) (*http.Response, error) { return f(req) }
