package cmd

import (
	"fmt"

	"github.com/shariqriazz/ocaauth/internal/hostconfig"
	"github.com/spf13/cobra"
)

var hostConfigFile string

var installCmd = &cobra.Command{
	Use:   "install [file]",
	Short: "Register the OCA plugin in an opencode.json",
	Long: `Add the plugin entry, the config schema and the default OCA model to
an opencode.json. Existing plugins, providers and models are kept, and
running the command again changes nothing.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		file := targetFile(args)
		if err := hostconfig.InstallFile(file); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Installed %s in %s\n", hostconfig.PluginName, file)
		return nil
	},
}

var uninstallCmd = &cobra.Command{
	Use:   "uninstall [file]",
	Short: "Remove the OCA plugin from an opencode.json",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		file := targetFile(args)
		if err := hostconfig.UninstallFile(file); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Removed %s from %s\n", hostconfig.PluginName, file)
		return nil
	},
}

func init() {
	for _, c := range []*cobra.Command{installCmd, uninstallCmd} {
		c.Flags().StringVar(&hostConfigFile, "file", hostconfig.DefaultFile, "path to the host opencode.json")
		rootCmd.AddCommand(c)
	}
}

func targetFile(args []string) string {
	if len(args) > 0 && args[0] != "" {
		return args[0]
	}
	return hostConfigFile
}
