package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/shariqriazz/ocaauth/internal/registry"
	sdkAuth "github.com/shariqriazz/ocaauth/sdk/auth"
	"github.com/spf13/cobra"
)

var modelsJSON bool

var modelsCmd = &cobra.Command{
	Use:   "models",
	Short: "Discover the OCA endpoint and list its models",
	Long: `Refresh the credential when needed, probe the candidate OCA endpoints
and print the resolved base URL together with the discovered models.`,
	RunE: runModels,
}

func init() {
	modelsCmd.Flags().BoolVar(&modelsJSON, "json", false, "print the provider registry as JSON")
	rootCmd.AddCommand(modelsCmd)
}

func runModels(cmd *cobra.Command, args []string) error {
	loader := sdkAuth.NewLoader(sdkAuth.GetTokenStore(), nil, sdkAuth.WithLoaderConfig(appConfig))
	provider := registry.NewProvider(registry.ProviderID)

	decoration, err := loader.Load(cmd.Context(), credentialGetter(), provider)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()

	if modelsJSON {
		payload := map[string]any{
			"baseURL": decoration.BaseURL,
			"models":  provider.Models(),
		}
		data, errMarshal := json.MarshalIndent(payload, "", "  ")
		if errMarshal != nil {
			return errMarshal
		}
		fmt.Fprintln(out, string(data))
		return nil
	}

	if decoration.BaseURL == "" {
		fmt.Fprintln(out, text.FgYellow.Sprint("No OCA endpoint answered; set OCA_BASE_URL or OCA_BASE_URLS"))
		return nil
	}
	fmt.Fprintf(out, "Base URL: %s\n", text.FgGreen.Sprint(decoration.BaseURL))

	models := provider.Models()
	if len(models) == 0 {
		fmt.Fprintln(out, text.FgYellow.Sprint("No models discovered"))
		return nil
	}

	t := table.NewWriter()
	t.SetOutputMirror(out)
	t.SetStyle(table.StyleRounded)
	t.AppendHeader(table.Row{
		text.FgHiCyan.Sprint("MODEL"),
		text.FgHiCyan.Sprint("CONTEXT"),
		text.FgHiCyan.Sprint("OUTPUT"),
		text.FgHiCyan.Sprint("REASONING"),
		text.FgHiCyan.Sprint("SDK"),
	})
	for _, m := range models {
		reasoning := "-"
		if m.Capabilities.Reasoning {
			reasoning = text.FgGreen.Sprint("yes")
		}
		t.AppendRow(table.Row{m.ID, m.Limit.Context, m.Limit.Output, reasoning, m.API.NPM})
	}
	t.Render()
	return nil
}
