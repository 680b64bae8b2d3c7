package cmd

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/shariqriazz/ocaauth/internal/discovery"
	"github.com/shariqriazz/ocaauth/internal/env"
	sdkAuth "github.com/shariqriazz/ocaauth/sdk/auth"
)

func isolate(t *testing.T) string {
	t.Helper()
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv(env.FileVariable, filepath.Join(home, "missing.env"))
	for _, key := range []string{"OCA_BASE_URL", "OCA_BASE_URLS", "OCA_API_KEY", "OCA_IDCS_URL", "OCA_CLIENT_ID"} {
		t.Setenv(key, "")
	}
	env.Reset()
	t.Cleanup(env.Reset)
	configPath = ""
	return home
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var buf bytes.Buffer
	rootCmd.SetOut(&buf)
	rootCmd.SetErr(&buf)
	rootCmd.SetArgs(args)
	t.Cleanup(func() {
		rootCmd.SetOut(nil)
		rootCmd.SetErr(nil)
		rootCmd.SetArgs(nil)
	})
	err := rootCmd.ExecuteContext(context.Background())
	return buf.String(), err
}

func TestRootCommand(t *testing.T) {
	if rootCmd.Use != "ocaauth" {
		t.Errorf("Expected Use to be 'ocaauth', got %s", rootCmd.Use)
	}
	if !rootCmd.SilenceUsage {
		t.Error("Expected SilenceUsage to be true")
	}

	want := []string{"install", "login", "logout", "models", "serve", "status", "token", "uninstall", "version"}
	for _, name := range want {
		found := false
		for _, c := range rootCmd.Commands() {
			if c.Name() == name {
				found = true
				break
			}
		}
		if !found {
			t.Errorf("expected subcommand %q to be registered", name)
		}
	}
}

func TestGetExitCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"generic", errors.New("boom"), ExitCodeError},
		{"reauth", &sdkAuth.ReauthRequiredError{Err: errors.New("invalid_grant")}, ExitCodeAuthRequired},
		{"wrapped reauth", fmt.Errorf("token: %w", &sdkAuth.ReauthRequiredError{Err: errors.New("x")}), ExitCodeAuthRequired},
		{"invalid base url", &discovery.InvalidBaseURLError{Value: "not a url"}, ExitCodeConfig},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := getExitCode(tt.err); got != tt.want {
				t.Errorf("getExitCode() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestVersionCommand(t *testing.T) {
	isolate(t)
	SetVersion("1.2.3-test")

	out, err := execute(t, "version")
	if err != nil {
		t.Fatalf("version failed: %v", err)
	}
	if !strings.Contains(out, "ocaauth version 1.2.3-test") {
		t.Errorf("unexpected output %q", out)
	}
}

func TestInstallAndUninstallCommands(t *testing.T) {
	home := isolate(t)
	file := filepath.Join(home, "opencode.json")

	if _, err := execute(t, "install", "--file", file); err != nil {
		t.Fatalf("install failed: %v", err)
	}
	data, err := os.ReadFile(file)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if !strings.Contains(string(data), "opencode-oca-auth") {
		t.Errorf("expected plugin entry, got %s", data)
	}

	if _, err := execute(t, "uninstall", file); err != nil {
		t.Fatalf("uninstall failed: %v", err)
	}
	data, err = os.ReadFile(file)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if strings.Contains(string(data), "opencode-oca-auth") {
		t.Errorf("expected plugin entry removed, got %s", data)
	}
}

func TestTokenAndStatusCommands_APIKey(t *testing.T) {
	home := isolate(t)
	store := sdkAuth.NewFileTokenStore(filepath.Join(home, ".ocaauth"))
	if err := store.Set(context.Background(), sdkAuth.ProviderOCA, sdkAuth.NewAPIKeyCredential("sk-test-123456789")); err != nil {
		t.Fatalf("seed credential: %v", err)
	}

	out, err := execute(t, "token", "--show")
	if err != nil {
		t.Fatalf("token failed: %v", err)
	}
	if strings.TrimSpace(out) != "sk-test-123456789" {
		t.Errorf("unexpected token output %q", out)
	}

	out, err = execute(t, "token", "--show=false")
	if err != nil {
		t.Fatalf("token failed: %v", err)
	}
	if strings.TrimSpace(out) != "sk-t...6789" {
		t.Errorf("expected masked token, got %q", out)
	}

	out, err = execute(t, "status")
	if err != nil {
		t.Fatalf("status failed: %v", err)
	}
	if strings.Contains(out, "sk-test-123456789") {
		t.Errorf("status must mask the key, got %q", out)
	}
	if !strings.Contains(out, "sk-t...6789") {
		t.Errorf("expected masked key in %q", out)
	}
}

func TestStatusCommand_NoCredential(t *testing.T) {
	isolate(t)
	_, err := execute(t, "status")
	if err == nil {
		t.Fatal("expected an error without a stored credential")
	}
	if !strings.Contains(err.Error(), sdkAuth.ReauthHint) {
		t.Errorf("expected re-authentication hint, got %v", err)
	}
}

func TestTokenCommand_KeyFromEnvironment(t *testing.T) {
	isolate(t)
	t.Setenv("OCA_API_KEY", "env-key-abcdefgh")

	out, err := execute(t, "token", "--show")
	if err != nil {
		t.Fatalf("token failed: %v", err)
	}
	if strings.TrimSpace(out) != "env-key-abcdefgh" {
		t.Errorf("expected key from environment, got %q", out)
	}
}

func TestLoginCommand_APIKeyFlag(t *testing.T) {
	home := isolate(t)
	t.Cleanup(func() { loginAPIKey = "" })

	if _, err := execute(t, "login", "--api-key", "flag-key-12345678"); err != nil {
		t.Fatalf("login failed: %v", err)
	}
	store := sdkAuth.NewFileTokenStore(filepath.Join(home, ".ocaauth"))
	cred, err := store.Get(context.Background(), sdkAuth.ProviderOCA)
	if err != nil {
		t.Fatalf("read credential: %v", err)
	}
	if cred == nil || cred.Type != sdkAuth.CredentialAPIKey || cred.Key != "flag-key-12345678" {
		t.Errorf("unexpected stored credential %+v", cred)
	}
}
