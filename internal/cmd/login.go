package cmd

import (
	"bufio"
	"fmt"
	"os"
	"strings"
	"sync"

	sdkAuth "github.com/shariqriazz/ocaauth/sdk/auth"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

var (
	loginMethod       string
	loginNoBrowser    bool
	loginIDCSURL      string
	loginClientID     string
	loginAPIKey       string
	loginCallbackPort int
	loginPrompt       bool
)

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Sign in to Oracle Code Assist",
	Long: `Sign in to Oracle Code Assist and store the credential.

The default oauth method opens the IDCS sign-in page and waits for the
redirect on a loopback callback. When the browser runs on another machine,
paste the final redirect URL when asked.

Examples:
  ocaauth login                                  # OAuth with the default tenant
  ocaauth login --idcs-url https://idcs-x.identity.oraclecloud.com --client-id abc
  ocaauth login --no-browser                     # Print the URL instead of opening it
  ocaauth login --prompt                         # Ask for the tenant and client id
  ocaauth login --method api                     # Store an API key`,
	RunE: runLogin,
}

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Delete the stored OCA credential",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := newAuthManager().Logout(cmd.Context(), sdkAuth.ProviderOCA); err != nil {
			return fmt.Errorf("logout failed: %w", err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), "OCA credential removed")
		return nil
	},
}

func init() {
	loginCmd.Flags().StringVar(&loginMethod, "method", string(sdkAuth.CredentialOAuth), "login method: oauth or api")
	loginCmd.Flags().BoolVar(&loginNoBrowser, "no-browser", false, "print the authorization URL instead of opening a browser")
	loginCmd.Flags().StringVar(&loginIDCSURL, "idcs-url", "", "IDCS tenant URL (defaults to OCA_IDCS_URL or the public tenant)")
	loginCmd.Flags().StringVar(&loginClientID, "client-id", "", "OAuth client id (defaults to OCA_CLIENT_ID or the public client)")
	loginCmd.Flags().StringVar(&loginAPIKey, "api-key", "", "store this API key (implies --method api)")
	loginCmd.Flags().IntVar(&loginCallbackPort, "callback-port", 0, "loopback callback port, -1 for an ephemeral port")
	loginCmd.Flags().BoolVar(&loginPrompt, "prompt", false, "ask for the IDCS URL and client id interactively")

	rootCmd.AddCommand(loginCmd)
	rootCmd.AddCommand(logoutCmd)
}

func runLogin(cmd *cobra.Command, args []string) error {
	manager := newAuthManager()
	method := strings.ToLower(strings.TrimSpace(loginMethod))
	if method == "" {
		method = string(sdkAuth.CredentialOAuth)
	}
	if loginAPIKey != "" && !cmd.Flags().Changed("method") {
		method = string(sdkAuth.CredentialAPIKey)
	}

	metadata := map[string]string{}
	if loginIDCSURL != "" {
		metadata["idcs-url"] = loginIDCSURL
	}
	if loginClientID != "" {
		metadata["client-id"] = loginClientID
	}
	if loginAPIKey != "" {
		metadata["api-key"] = loginAPIKey
	}

	if loginPrompt && method == string(sdkAuth.CredentialOAuth) {
		if err := askOAuthInputs(metadata); err != nil {
			return err
		}
	}

	opts := &sdkAuth.LoginOptions{
		NoBrowser:    loginNoBrowser,
		CallbackPort: loginCallbackPort,
		Metadata:     metadata,
		Prompt:       promptLine,
		ReadSecret:   readSecret,
	}

	cred, err := manager.Login(cmd.Context(), sdkAuth.ProviderOCA, method, appConfig, opts)
	if err != nil {
		return fmt.Errorf("%s login failed: %w (available methods: %s)", method, err, strings.Join(manager.Methods(sdkAuth.ProviderOCA), ", "))
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Saved %s credential to %s\n", cred.Type, authDir)
	return nil
}

// askOAuthInputs fills metadata keys not already given by flags. Blank
// answers keep the resolved default.
func askOAuthInputs(metadata map[string]string) error {
	for _, p := range sdkAuth.NewOCAAuthenticator().Prompts() {
		if metadata[p.Key] != "" {
			continue
		}
		answer, err := promptLine(fmt.Sprintf("%s [%s]: ", p.Message, p.Placeholder))
		if err != nil {
			return fmt.Errorf("read %s: %w", p.Key, err)
		}
		if answer != "" {
			metadata[p.Key] = answer
		}
	}
	return nil
}

var (
	stdinOnce   sync.Once
	stdinReader *bufio.Reader
)

func stdin() *bufio.Reader {
	stdinOnce.Do(func() { stdinReader = bufio.NewReader(os.Stdin) })
	return stdinReader
}

func promptLine(prompt string) (string, error) {
	fmt.Print(prompt)
	line, err := stdin().ReadString('\n')
	if err != nil && line == "" {
		return "", err
	}
	return strings.TrimSpace(line), nil
}

func readSecret(prompt string) (string, error) {
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return promptLine(prompt)
	}
	fmt.Print(prompt)
	secret, err := term.ReadPassword(fd)
	fmt.Println()
	if err != nil {
		return "", fmt.Errorf("read secret: %w", err)
	}
	return strings.TrimSpace(string(secret)), nil
}
