package config

import (
	"strings"

	envparse "github.com/caarlos0/env/v11"
	"github.com/shariqriazz/ocaauth/internal/env"
	log "github.com/sirupsen/logrus"
)

// Overrides are the recognised environment variables. All of them are optional.
type Overrides struct {
	BaseURL  string   `env:"OCA_BASE_URL"`
	BaseURLs []string `env:"OCA_BASE_URLS" envSeparator:","`
	IDCSURL  string   `env:"OCA_IDCS_URL"`
	ClientID string   `env:"OCA_CLIENT_ID"`
	APIKey   string   `env:"OCA_API_KEY"`
}

// LoadOverrides loads the .env file (once) and parses the override variables.
func LoadOverrides() (Overrides, error) {
	env.Load()
	var o Overrides
	if err := envparse.Parse(&o); err != nil {
		return Overrides{}, err
	}
	o.BaseURL = strings.TrimSpace(o.BaseURL)
	o.BaseURLs = compactList(o.BaseURLs)
	o.IDCSURL = strings.TrimSpace(o.IDCSURL)
	o.ClientID = strings.TrimSpace(o.ClientID)
	o.APIKey = strings.TrimSpace(o.APIKey)
	return o, nil
}

// Settings is the effective provider configuration after layering the
// environment over the config file.
type Settings struct {
	// BaseURL is the explicit base URL. When set, candidate probing is skipped.
	BaseURL string
	// BaseURLs are configured candidates, environment entries first.
	BaseURLs []string
	IDCSURL  string
	ClientID string
	APIKey   string
}

// Resolve returns the effective settings. cfg may be nil.
func Resolve(cfg *Config) Settings {
	o, err := LoadOverrides()
	if err != nil {
		log.Warnf("config: failed to parse environment overrides: %v", err)
	}
	var file OCAConfig
	if cfg != nil {
		file = cfg.OCA
	}
	s := Settings{
		BaseURL:  firstNonEmpty(o.BaseURL, file.BaseURL),
		IDCSURL:  firstNonEmpty(o.IDCSURL, file.IDCSURL),
		ClientID: firstNonEmpty(o.ClientID, file.ClientID),
		APIKey:   firstNonEmpty(o.APIKey, file.APIKey),
	}
	s.BaseURLs = append(s.BaseURLs, o.BaseURLs...)
	s.BaseURLs = append(s.BaseURLs, compactList(file.BaseURLs)...)
	return s
}

// OAuthSettings identifies the identity service and client for one flow.
type OAuthSettings struct {
	IDCSURL  string
	ClientID string
}

// ResolveOAuth picks the IDCS URL and client id for a credential.
// Values stored on the credential win, then the environment, then the config
// file, then the built-in defaults. Blank values fall through.
func ResolveOAuth(cfg *Config, enterpriseURL, accountID string) OAuthSettings {
	s := Resolve(cfg)
	return OAuthSettings{
		IDCSURL:  TrimTrailingSlash(firstNonEmpty(enterpriseURL, s.IDCSURL, DefaultIDCSURL)),
		ClientID: firstNonEmpty(accountID, s.ClientID, DefaultClientID),
	}
}

// TrimTrailingSlash removes every trailing slash from a URL.
func TrimTrailingSlash(raw string) string {
	return strings.TrimRight(strings.TrimSpace(raw), "/")
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if trimmed := strings.TrimSpace(v); trimmed != "" {
			return trimmed
		}
	}
	return ""
}
