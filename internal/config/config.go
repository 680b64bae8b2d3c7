// Package config provides configuration management for the OCA auth helper.
// It handles loading and parsing the YAML configuration file and layering the
// recognised environment overrides on top of it.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"syscall"

	"gopkg.in/yaml.v3"
)

const (
	// DefaultIDCSURL is the public Oracle IDCS tenant used by OCA clients.
	DefaultIDCSURL = "https://idcs-9dc693e80d9b469480d7afe00e743931.identity.oraclecloud.com"
	// DefaultClientID is the public OAuth client registered for OCA clients.
	DefaultClientID = "a8331954c0cf48ba99b5dd223a14c6ea"
	// DefaultCallbackPort is the loopback port registered as redirect target.
	DefaultCallbackPort = 48801
	// DefaultPort is the port used by the local gateway.
	DefaultPort = 8327
	// DefaultAuthDir is where the bundled file store keeps credentials.
	DefaultAuthDir = "~/.ocaauth"
)

// DefaultBaseURLs lists the built-in OCA LiteLLM endpoints, probed after any configured candidates.
var DefaultBaseURLs = []string{
	"https://code-internal.aiservice.us-chicago-1.oci.oraclecloud.com/20250206/app/litellm",
	"https://code.aiservice.us-chicago-1.oci.oraclecloud.com/20250206/app/litellm",
}

// Config represents the application's configuration, loaded from a YAML file.
type Config struct {
	// Host is the interface the local gateway binds to.
	Host string `yaml:"host" json:"-"`
	// Port is the local gateway port.
	Port int `yaml:"port" json:"-"`

	// AuthDir is the directory where the file store keeps credential JSON files.
	AuthDir string `yaml:"auth-dir" json:"-"`

	// Debug enables debug-level logging.
	Debug bool `yaml:"debug" json:"debug"`

	// LoggingToFile writes logs to rotating files under LogDir instead of stdout.
	LoggingToFile bool `yaml:"logging-to-file" json:"logging-to-file"`
	// LogDir overrides the directory used when LoggingToFile is set.
	LogDir string `yaml:"log-dir" json:"log-dir"`

	// ProxyURL routes outbound identity and discovery traffic through an
	// http, https or socks5 proxy.
	ProxyURL string `yaml:"proxy-url" json:"proxy-url"`

	OCA OCAConfig `yaml:"oca" json:"oca"`

	Discovery DiscoveryConfig `yaml:"discovery" json:"discovery"`
}

// OCAConfig holds the provider specific settings.
type OCAConfig struct {
	// BaseURL pins the API base URL and disables candidate probing.
	BaseURL string `yaml:"base-url" json:"base-url"`
	// BaseURLs are probed before the built-in endpoints.
	BaseURLs []string `yaml:"base-urls" json:"base-urls"`
	IDCSURL  string   `yaml:"idcs-url" json:"idcs-url"`
	ClientID string   `yaml:"client-id" json:"client-id"`
	// APIKey is used when no stored credential exists.
	APIKey       string `yaml:"api-key" json:"-"`
	CallbackPort int    `yaml:"callback-port" json:"callback-port"`
}

// DiscoveryConfig tunes endpoint probing.
type DiscoveryConfig struct {
	// TimeoutSeconds bounds each probe request. Zero means ten seconds.
	TimeoutSeconds int `yaml:"timeout-seconds" json:"timeout-seconds"`
}

// LoadConfig reads the YAML configuration from configFile.
func LoadConfig(configFile string) (*Config, error) {
	return LoadConfigOptional(configFile, false)
}

// LoadConfigOptional reads YAML from configFile.
// If optional is true and the file is missing or empty, it returns a default Config.
func LoadConfigOptional(configFile string, optional bool) (*Config, error) {
	cfg := newDefaultConfig()
	if strings.TrimSpace(configFile) == "" {
		if optional {
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config file: empty path")
	}

	data, err := os.ReadFile(configFile)
	if err != nil {
		if optional && (os.IsNotExist(err) || errors.Is(err, syscall.EISDIR)) {
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	if len(strings.TrimSpace(string(data))) == 0 {
		return cfg, nil
	}

	if errUnmarshal := yaml.Unmarshal(data, cfg); errUnmarshal != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", errUnmarshal)
	}
	cfg.normalize()
	return cfg, nil
}

func newDefaultConfig() *Config {
	return &Config{
		Host:    "127.0.0.1",
		Port:    DefaultPort,
		AuthDir: DefaultAuthDir,
		OCA: OCAConfig{
			CallbackPort: DefaultCallbackPort,
		},
	}
}

func (cfg *Config) normalize() {
	if cfg.Port <= 0 {
		cfg.Port = DefaultPort
	}
	if strings.TrimSpace(cfg.AuthDir) == "" {
		cfg.AuthDir = DefaultAuthDir
	}
	if cfg.OCA.CallbackPort <= 0 {
		cfg.OCA.CallbackPort = DefaultCallbackPort
	}
	cfg.OCA.BaseURL = strings.TrimSpace(cfg.OCA.BaseURL)
	cfg.OCA.IDCSURL = strings.TrimSpace(cfg.OCA.IDCSURL)
	cfg.OCA.ClientID = strings.TrimSpace(cfg.OCA.ClientID)
	cfg.OCA.APIKey = strings.TrimSpace(cfg.OCA.APIKey)
	cfg.OCA.BaseURLs = compactList(cfg.OCA.BaseURLs)
	if cfg.Discovery.TimeoutSeconds < 0 {
		cfg.Discovery.TimeoutSeconds = 0
	}
}

func compactList(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if trimmed := strings.TrimSpace(v); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
