package synthesizer

import (
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/shariqriazz/ocaauth/internal/config"
	"github.com/shariqriazz/ocaauth/internal/env"
	sdkauth "github.com/shariqriazz/ocaauth/sdk/auth"
)

func isolateEnv(t *testing.T) {
	t.Helper()
	t.Setenv(env.FileVariable, filepath.Join(t.TempDir(), "missing.env"))
	t.Setenv("OCA_API_KEY", "")
	env.Reset()
	t.Cleanup(env.Reset)
}

func staticConfig(cfg *config.Config) *SynthesisContext {
	return &SynthesisContext{Config: func() *config.Config { return cfg }}
}

func TestConfigSynthesizer_Synthesize_NilContext(t *testing.T) {
	isolateEnv(t)
	if cred := NewConfigSynthesizer().Synthesize(nil); cred != nil {
		t.Fatalf("expected nil credential, got %+v", cred)
	}
}

func TestConfigSynthesizer_Synthesize(t *testing.T) {
	tests := []struct {
		name    string
		envKey  string
		fileKey string
		wantKey string
	}{
		{name: "nothing configured"},
		{name: "config file key", fileKey: "file-key", wantKey: "file-key"},
		{name: "environment wins", envKey: "env-key", fileKey: "file-key", wantKey: "env-key"},
		{name: "blank environment falls through", envKey: "  ", fileKey: "file-key", wantKey: "file-key"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			isolateEnv(t)
			t.Setenv("OCA_API_KEY", tt.envKey)
			cfg := &config.Config{OCA: config.OCAConfig{APIKey: tt.fileKey}}

			cred := NewConfigSynthesizer().Synthesize(staticConfig(cfg))
			if tt.wantKey == "" {
				if cred != nil {
					t.Fatalf("expected nil credential, got %+v", cred)
				}
				return
			}
			if cred == nil {
				t.Fatal("expected credential")
			}
			if cred.Type != sdkauth.CredentialAPIKey {
				t.Errorf("expected api credential, got %s", cred.Type)
			}
			if cred.Key != tt.wantKey {
				t.Errorf("expected key %s, got %s", tt.wantKey, cred.Key)
			}
		})
	}
}

func TestConfigSynthesizer_GetterPrefersStore(t *testing.T) {
	isolateEnv(t)
	store := sdkauth.NewFileTokenStore(t.TempDir())
	cfg := &config.Config{OCA: config.OCAConfig{APIKey: "file-key"}}
	get := NewConfigSynthesizer().Getter(store, sdkauth.ProviderOCA, staticConfig(cfg))

	cred, err := get(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cred.Key != "file-key" {
		t.Fatalf("expected synthesized key, got %+v", cred)
	}

	stored := &sdkauth.Credential{Type: sdkauth.CredentialOAuth, Access: "a", Refresh: "r", Expires: 1}
	if errSet := store.Set(context.Background(), sdkauth.ProviderOCA, stored); errSet != nil {
		t.Fatalf("store set: %v", errSet)
	}
	cred, err = get(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !cred.IsOAuth() {
		t.Fatalf("expected stored oauth credential, got %+v", cred)
	}
}

func TestConfigSynthesizer_GetterWithoutAnyCredential(t *testing.T) {
	isolateEnv(t)
	get := NewConfigSynthesizer().Getter(sdkauth.NewFileTokenStore(t.TempDir()), sdkauth.ProviderOCA, staticConfig(nil))
	_, err := get(context.Background())
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), sdkauth.ReauthHint) {
		t.Errorf("expected re-authentication hint, got %v", err)
	}
}
