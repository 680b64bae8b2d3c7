package cmd

import (
	"fmt"
	"time"

	"github.com/shariqriazz/ocaauth/internal/auth/oca"
	"github.com/shariqriazz/ocaauth/internal/util"
	sdkAuth "github.com/shariqriazz/ocaauth/sdk/auth"
	"github.com/spf13/cobra"
)

var (
	tokenLead time.Duration
	tokenShow bool
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the stored OCA credential",
	RunE:  runStatus,
}

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Print a valid OCA access token, refreshing it when needed",
	Long: `Print a valid access token, refreshing and persisting it first when it
expires within --lead. The token is masked unless --show is given.
API-key credentials print the key.`,
	RunE: runToken,
}

func init() {
	tokenCmd.Flags().DurationVar(&tokenLead, "lead", 0, "refresh when the token expires within this duration")
	tokenCmd.Flags().BoolVar(&tokenShow, "show", false, "print the full token")

	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(tokenCmd)
}

func runStatus(cmd *cobra.Command, args []string) error {
	cred, err := credentialGetter()(cmd.Context())
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Type:    %s\n", cred.Type)
	if !cred.IsOAuth() {
		fmt.Fprintf(out, "Key:     %s\n", util.HideAPIKey(cred.Key))
		return nil
	}
	fmt.Fprintf(out, "Tenant:  %s\n", oca.TenantLabel(cred.EnterpriseURL))
	if cred.AccountID != "" {
		fmt.Fprintf(out, "Client:  %s\n", cred.AccountID)
	}
	fmt.Fprintf(out, "Access:  %s\n", util.HideAPIKey(cred.Access))
	expires := cred.ExpiresAt()
	if cred.Valid(time.Now()) {
		fmt.Fprintf(out, "Expires: %s (in %s)\n", expires.Format(time.RFC3339), time.Until(expires).Round(time.Second))
	} else {
		fmt.Fprintf(out, "Expires: %s (expired)\n", expires.Format(time.RFC3339))
	}
	if cred.Refresh == "" {
		fmt.Fprintln(out, "Refresh: missing, run `ocaauth login` again")
	}
	return nil
}

func runToken(cmd *cobra.Command, args []string) error {
	loader := sdkAuth.NewLoader(sdkAuth.GetTokenStore(), nil, sdkAuth.WithLoaderConfig(appConfig))
	cred, err := loader.EnsureFresh(cmd.Context(), credentialGetter(), tokenLead)
	if err != nil {
		return err
	}
	token := cred.BearerToken()
	if !tokenShow {
		token = util.HideAPIKey(token)
	}
	fmt.Fprintln(cmd.OutOrStdout(), token)
	return nil
}
