// Package synthesizer derives credentials that are not stored but implied by
// configuration, such as an API key set in the config file or environment.
package synthesizer

import (
	"context"

	"github.com/shariqriazz/ocaauth/internal/config"
	sdkauth "github.com/shariqriazz/ocaauth/sdk/auth"
	log "github.com/sirupsen/logrus"
)

// SynthesisContext carries what a synthesizer reads from.
type SynthesisContext struct {
	// Config returns the current configuration. It may return nil.
	Config func() *config.Config
}

// ConfigSynthesizer builds an api credential from the configured OCA API key.
type ConfigSynthesizer struct{}

// NewConfigSynthesizer creates a new ConfigSynthesizer instance.
func NewConfigSynthesizer() *ConfigSynthesizer {
	return &ConfigSynthesizer{}
}

// Synthesize returns the api credential implied by OCA_API_KEY or the
// config file, or nil when neither is set.
func (s *ConfigSynthesizer) Synthesize(ctx *SynthesisContext) *sdkauth.Credential {
	var cfg *config.Config
	if ctx != nil && ctx.Config != nil {
		cfg = ctx.Config()
	}
	key := config.Resolve(cfg).APIKey
	if key == "" {
		return nil
	}
	return sdkauth.NewAPIKeyCredential(key)
}

// Getter reads the stored credential for id and falls back to the
// synthesized one when nothing is stored.
func (s *ConfigSynthesizer) Getter(store sdkauth.Store, id string, ctx *SynthesisContext) sdkauth.CredentialGetter {
	stored := sdkauth.StoreGetter(store, id)
	return func(c context.Context) (*sdkauth.Credential, error) {
		if store != nil {
			cred, err := store.Get(c, id)
			if err != nil {
				return nil, err
			}
			if cred != nil {
				return cred, nil
			}
		}
		if cred := s.Synthesize(ctx); cred != nil {
			log.Debugf("using api key from configuration for %s", id)
			return cred, nil
		}
		return stored(c)
	}
}
