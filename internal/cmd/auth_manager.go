package cmd

import (
	"github.com/shariqriazz/ocaauth/internal/config"
	"github.com/shariqriazz/ocaauth/internal/watcher/synthesizer"
	sdkAuth "github.com/shariqriazz/ocaauth/sdk/auth"
)

// newAuthManager creates the authentication manager backed by the registered
// token store, with the OCA oauth and api-key authenticators.
func newAuthManager() *sdkAuth.Manager {
	store := sdkAuth.GetTokenStore()
	manager := sdkAuth.NewManager(store,
		sdkAuth.NewOCAAuthenticator(),
		sdkAuth.NewAPIKeyAuthenticator(),
	)
	return manager
}

// credentialGetter reads the stored OCA credential, falling back to an api
// key from OCA_API_KEY or the config file.
func credentialGetter() sdkAuth.CredentialGetter {
	return credentialGetterFrom(func() *config.Config { return appConfig })
}

func credentialGetterFrom(cfg func() *config.Config) sdkAuth.CredentialGetter {
	ctx := &synthesizer.SynthesisContext{Config: cfg}
	return synthesizer.NewConfigSynthesizer().Getter(sdkAuth.GetTokenStore(), sdkAuth.ProviderOCA, ctx)
}
