// Package cmd implements the ocaauth command line: interactive login, token
// inspection, model discovery, host configuration and the local gateway.
package cmd

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/shariqriazz/ocaauth/internal/config"
	"github.com/shariqriazz/ocaauth/internal/discovery"
	"github.com/shariqriazz/ocaauth/internal/env"
	"github.com/shariqriazz/ocaauth/internal/logging"
	"github.com/shariqriazz/ocaauth/internal/util"
	sdkAuth "github.com/shariqriazz/ocaauth/sdk/auth"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

// Exit codes for CLI commands.
const (
	ExitCodeSuccess = 0
	ExitCodeError   = 1
	// ExitCodeAuthRequired means the stored credential is missing or can no
	// longer be refreshed.
	ExitCodeAuthRequired = 2
	// ExitCodeConfig is returned for configuration errors such as a malformed OCA_BASE_URL.
	ExitCodeConfig = 3
)

const defaultConfigFile = "config.yaml"

var (
	configPath string
	debugFlag  bool

	appConfig *config.Config
	authDir   string
)

var rootCmd = &cobra.Command{
	Use:   "ocaauth",
	Short: "Authenticate to Oracle Code Assist and expose its models",
	Long: `ocaauth signs in to Oracle Code Assist (OCA) through the IDCS OAuth
flow with PKCE, keeps the stored token fresh, discovers the reachable
OCA LiteLLM endpoint and its models, and can run a local OpenAI-style
gateway that forwards requests with a valid bearer token.`,
	SilenceUsage:      true,
	PersistentPreRunE: setup,
}

// SetVersion sets the version reported by --version and the version command.
func SetVersion(v string) {
	rootCmd.Version = v
}

// Execute runs the root command and exits with a semantic code on failure.
func Execute() {
	rootCmd.SetVersionTemplate(`{{printf "ocaauth version %s\n" .Version}}`)
	if err := rootCmd.Execute(); err != nil {
		os.Exit(getExitCode(err))
	}
}

func getExitCode(err error) int {
	var reauth *sdkAuth.ReauthRequiredError
	if errors.As(err, &reauth) {
		return ExitCodeAuthRequired
	}
	var invalidBase *discovery.InvalidBaseURLError
	if errors.As(err, &invalidBase) {
		return ExitCodeConfig
	}
	return ExitCodeError
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "config file (default ./config.yaml when present)")
	rootCmd.PersistentFlags().BoolVar(&debugFlag, "debug", false, "enable debug logging")

	rootCmd.AddCommand(newVersionCmd())
}

// setup loads .env, the config file and the credential store before any subcommand runs.
func setup(cmd *cobra.Command, _ []string) error {
	logging.SetupBaseLogger()
	env.Load()

	path := strings.TrimSpace(configPath)
	optional := path == ""
	if optional {
		path = defaultConfigFile
	}
	cfg, err := config.LoadConfigOptional(path, optional)
	if err != nil {
		return err
	}
	if debugFlag {
		cfg.Debug = true
	}
	if !optional || fileExists(path) {
		configPath = path
	} else {
		configPath = ""
	}

	logging.SetLogLevel(cfg)
	if errOutput := logging.ConfigureLogOutput(cfg); errOutput != nil {
		log.Warnf("failed to configure log output: %v", errOutput)
	}

	dir, err := util.ResolveAuthDir(cfg.AuthDir)
	if err != nil {
		return err
	}
	cfg.AuthDir = dir
	authDir = dir
	appConfig = cfg

	sdkAuth.RegisterTokenStore(sdkAuth.NewFileTokenStore(dir))
	log.Debugf("using auth dir %s", dir)
	return nil
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version number of ocaauth",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "ocaauth version %s\n", rootCmd.Version)
		},
	}
}
