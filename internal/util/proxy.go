package util

import (
	"context"
	"net"
	"net/http"
	"net/url"
	"strings"

	"github.com/shariqriazz/ocaauth/internal/config"
	log "github.com/sirupsen/logrus"
	"golang.org/x/net/proxy"
)

// SetProxy configures the HTTP client transport from cfg.ProxyURL.
// Supported schemes are socks5, http and https. An empty or invalid proxy
// leaves the client unchanged.
func SetProxy(cfg *config.Config, httpClient *http.Client) *http.Client {
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	if cfg == nil {
		return httpClient
	}
	raw := strings.TrimSpace(cfg.ProxyURL)
	if raw == "" {
		return httpClient
	}
	transport, errBuild := buildProxyTransport(raw)
	if errBuild != nil {
		log.Errorf("create proxy transport failed: %v", errBuild)
		return httpClient
	}
	if transport != nil {
		httpClient.Transport = transport
	}
	return httpClient
}

func buildProxyTransport(raw string) (*http.Transport, error) {
	proxyURL, errParse := url.Parse(raw)
	if errParse != nil {
		return nil, errParse
	}
	switch proxyURL.Scheme {
	case "socks5", "socks5h":
		var auth *proxy.Auth
		if proxyURL.User != nil {
			username := proxyURL.User.Username()
			password, _ := proxyURL.User.Password()
			auth = &proxy.Auth{User: username, Password: password}
		}
		dialer, errSOCKS5 := proxy.SOCKS5("tcp", proxyURL.Host, auth, proxy.Direct)
		if errSOCKS5 != nil {
			return nil, errSOCKS5
		}
		return &http.Transport{
			Proxy: nil,
			DialContext: func(ctx context.Context, network, addr string) (net.Conn, error) {
				if contextDialer, ok := dialer.(proxy.ContextDialer); ok {
					return contextDialer.DialContext(ctx, network, addr)
				}
				return dialer.Dial(network, addr)
			},
		}, nil
	case "http", "https":
		return &http.Transport{Proxy: http.ProxyURL(proxyURL)}, nil
	default:
		log.Warnf("unsupported proxy scheme %q, ignoring proxy-url", proxyURL.Scheme)
		return nil, nil
	}
}
