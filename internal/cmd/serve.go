package cmd

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/shariqriazz/ocaauth/internal/api"
	"github.com/shariqriazz/ocaauth/internal/config"
	"github.com/shariqriazz/ocaauth/internal/discovery"
	"github.com/shariqriazz/ocaauth/internal/env"
	"github.com/shariqriazz/ocaauth/internal/registry"
	"github.com/shariqriazz/ocaauth/internal/util"
	"github.com/shariqriazz/ocaauth/internal/watcher"
	sdkAuth "github.com/shariqriazz/ocaauth/sdk/auth"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

const refreshCheckInterval = time.Minute

var (
	serveHost  string
	servePort  int
	serveWatch bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the local OCA gateway",
	Long: `Run a local OpenAI-style gateway. GET /v1/models lists the discovered
OCA models and every other /v1 request is forwarded to the discovered OCA
endpoint with a fresh bearer token. The stored token is refreshed ahead of
expiry, and changes to the config file, the .env file or the stored
credential are picked up without a restart.`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveHost, "host", "", "listen host (overrides config)")
	serveCmd.Flags().IntVar(&servePort, "port", 0, "listen port (overrides config)")
	serveCmd.Flags().BoolVar(&serveWatch, "watch", true, "reload config, .env and credential changes")
	rootCmd.AddCommand(serveCmd)
}

// liveConfig is the config source shared by the loader and discovery engine.
type liveConfig struct {
	current atomic.Pointer[config.Config]
}

func (c *liveConfig) get() *config.Config { return c.current.Load() }

func (c *liveConfig) set(cfg *config.Config) {
	if cfg == nil {
		return
	}
	if dir, err := util.ResolveAuthDir(cfg.AuthDir); err == nil {
		cfg.AuthDir = dir
	}
	if debugFlag {
		cfg.Debug = true
	}
	c.current.Store(cfg)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg := appConfig
	if serveHost != "" {
		cfg.Host = serveHost
	}
	if servePort > 0 {
		cfg.Port = servePort
	}

	live := &liveConfig{}
	live.set(cfg)

	store := sdkAuth.GetTokenStore()
	get := credentialGetterFrom(live.get)
	cache := discovery.NewCache()
	engine := discovery.NewEngine(cache,
		discovery.WithHTTPClient(util.SetProxy(cfg, &http.Client{})),
		discovery.WithCandidates(func() []string {
			return discovery.Candidates(config.Resolve(live.get()))
		}),
	)
	loader := sdkAuth.NewLoader(store, engine, sdkAuth.WithConfigSource(live.get))
	provider := registry.NewProvider(registry.ProviderID)
	server := api.NewServer(cfg, loader, get, provider)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if serveWatch {
		w, err := newServeWatcher(ctx, cfg, cache, live, get)
		if err != nil {
			log.Warnf("file watching disabled: %v", err)
		} else {
			defer func() {
				if errStop := w.Stop(); errStop != nil {
					log.Debugf("failed to stop watcher: %v", errStop)
				}
			}()
		}
	}

	go refreshLoop(ctx, loader, get)

	errCh := make(chan error, 1)
	go func() { errCh <- server.Start() }()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return server.Stop(shutdownCtx)
}

func newServeWatcher(ctx context.Context, cfg *config.Config, cache *discovery.Cache, live *liveConfig, get sdkAuth.CredentialGetter) (*watcher.Watcher, error) {
	var mu sync.Mutex
	account := currentAccount(ctx, get)

	w, err := watcher.NewWatcher(cfg, watcher.Options{
		ConfigPath: configPath,
		EnvPath:    env.Path(),
		AuthDir:    authDir,
		Cache:      cache,
		OnConfig:   live.set,
		OnCredential: func(path string) {
			next := currentAccount(ctx, get)
			mu.Lock()
			defer mu.Unlock()
			if next != account {
				log.Infof("stored credential switched account, discovery will run again")
				cache.Reset()
			}
			account = next
		},
	})
	if err != nil {
		return nil, err
	}
	if errStart := w.Start(ctx); errStart != nil {
		_ = w.Stop()
		return nil, errStart
	}
	return w, nil
}

func currentAccount(ctx context.Context, get sdkAuth.CredentialGetter) string {
	cred, err := get(ctx)
	if err != nil || cred == nil {
		return ""
	}
	if !cred.IsOAuth() {
		return string(cred.Type)
	}
	return cred.EnterpriseURL + "|" + cred.AccountID
}

// refreshLoop renews the stored token ahead of expiry so requests rarely wait on a refresh.
func refreshLoop(ctx context.Context, loader *sdkAuth.Loader, get sdkAuth.CredentialGetter) {
	lead := sdkAuth.RefreshLead(sdkAuth.ProviderOCA)
	if lead == nil {
		return
	}
	ticker := time.NewTicker(refreshCheckInterval)
	defer ticker.Stop()
	for {
		if _, err := loader.EnsureFresh(ctx, get, *lead); err != nil && !errors.Is(err, context.Canceled) {
			log.Debugf("background refresh skipped: %v", err)
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
