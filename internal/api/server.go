// Package api implements the local HTTP gateway. It lists discovered OCA
// models and forwards OpenAI-style requests to the discovered endpoint with
// fresh credentials attached.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/http/httputil"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shariqriazz/ocaauth/internal/config"
	"github.com/shariqriazz/ocaauth/internal/discovery"
	"github.com/shariqriazz/ocaauth/internal/registry"
	"github.com/shariqriazz/ocaauth/internal/util"
	sdkauth "github.com/shariqriazz/ocaauth/sdk/auth"
	log "github.com/sirupsen/logrus"
)

// RequestIDHeader carries the per-request id in both directions.
const RequestIDHeader = "X-Request-ID"

const requestIDKey = "request_id"

// Server is the local gateway.
type Server struct {
	engine   *gin.Engine
	server   *http.Server
	loader   *sdkauth.Loader
	get      sdkauth.CredentialGetter
	provider *registry.Provider
	// transport carries api-key requests, honouring proxy-url.
	transport http.RoundTripper
}

// NewServer builds the gateway. The router is ready to serve once this returns.
func NewServer(cfg *config.Config, loader *sdkauth.Loader, get sdkauth.CredentialGetter, provider *registry.Provider) *Server {
	if gin.Mode() == gin.DebugMode && !log.IsLevelEnabled(log.DebugLevel) {
		gin.SetMode(gin.ReleaseMode)
	}
	if provider == nil {
		provider = registry.NewProvider(registry.ProviderID)
	}

	engine := gin.New()
	engine.Use(RequestID(), Logger(), gin.Recovery())

	s := &Server{
		engine:    engine,
		loader:    loader,
		get:       get,
		provider:  provider,
		transport: util.SetProxy(cfg, &http.Client{}).Transport,
	}
	if s.transport == nil {
		s.transport = http.DefaultTransport
	}
	s.setupRoutes()

	host, port := "127.0.0.1", config.DefaultPort
	if cfg != nil {
		if cfg.Host != "" {
			host = cfg.Host
		}
		if cfg.Port > 0 {
			port = cfg.Port
		}
	}
	s.server = &http.Server{
		Addr:              net.JoinHostPort(host, strconv.Itoa(port)),
		Handler:           engine,
		ReadHeaderTimeout: 30 * time.Second,
	}
	return s
}

func (s *Server) setupRoutes() {
	s.engine.GET("/healthz", s.health)
	v1 := s.engine.Group("/v1")
	v1.Any("/*path", s.handleV1)
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler { return s.engine }

// Addr returns the listen address.
func (s *Server) Addr() string { return s.server.Addr }

// Start serves until Stop is called.
func (s *Server) Start() error {
	log.Infof("starting OCA gateway on %s", s.server.Addr)
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("failed to start HTTP server: %w", err)
	}
	return nil
}

// Stop gracefully shuts the server down.
func (s *Server) Stop(ctx context.Context) error {
	log.Debug("stopping OCA gateway")
	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to shutdown HTTP server: %w", err)
	}
	return nil
}

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
		"token":  s.loader.State().String(),
		"models": s.provider.Len(),
	})
}

func (s *Server) handleV1(c *gin.Context) {
	path := c.Param("path")
	if path == "/models" && c.Request.Method == http.MethodGet {
		s.listModels(c)
		return
	}
	s.proxy(c, path)
}

type modelObject struct {
	ID            string `json:"id"`
	Object        string `json:"object"`
	OwnedBy       string `json:"owned_by"`
	Name          string `json:"name,omitempty"`
	Reasoning     bool   `json:"reasoning"`
	ContextLength int64  `json:"context_length,omitempty"`
	MaxOutput     int64  `json:"max_output_tokens,omitempty"`
	NPM           string `json:"npm,omitempty"`
}

func (s *Server) listModels(c *gin.Context) {
	if _, err := s.loader.Load(c.Request.Context(), s.get, s.provider); err != nil {
		writeLoadError(c, err)
		return
	}
	entries := s.provider.Models()
	data := make([]modelObject, 0, len(entries))
	for _, entry := range entries {
		obj := modelObject{
			ID:            entry.ID,
			Object:        "model",
			OwnedBy:       registry.ProviderID,
			Name:          entry.Name,
			Reasoning:     entry.Capabilities.Reasoning,
			ContextLength: entry.Limit.Context,
			MaxOutput:     entry.Limit.Output,
			NPM:           entry.API.NPM,
		}
		data = append(data, obj)
	}
	c.JSON(http.StatusOK, gin.H{"object": "list", "data": data})
}

func (s *Server) proxy(c *gin.Context, path string) {
	ctx := c.Request.Context()
	decoration, err := s.loader.Load(ctx, s.get, s.provider)
	if err != nil {
		writeLoadError(c, err)
		return
	}
	if decoration.BaseURL == "" {
		writeError(c, http.StatusServiceUnavailable, "api_error", "no reachable OCA endpoint; check OCA_BASE_URL or network access")
		return
	}
	target, err := url.Parse(decoration.BaseURL)
	if err != nil {
		writeError(c, http.StatusInternalServerError, "configuration_error", err.Error())
		return
	}

	transport := decoration.Transport
	bearer := ""
	if transport == nil {
		cred, errGet := s.get(ctx)
		if errGet != nil {
			writeLoadError(c, errGet)
			return
		}
		bearer = cred.BearerToken()
		transport = s.transport
	}

	requestID := c.GetString(requestIDKey)
	rp := &httputil.ReverseProxy{
		Rewrite: func(pr *httputil.ProxyRequest) {
			pr.SetURL(target)
			pr.Out.URL.Path = strings.TrimRight(target.Path, "/") + path
			pr.Out.URL.RawPath = ""
			pr.Out.Header.Del("Authorization")
			if bearer != "" {
				pr.Out.Header.Set("Authorization", "Bearer "+bearer)
			}
			if requestID != "" {
				pr.Out.Header.Set(RequestIDHeader, requestID)
			}
		},
		Transport:     transport,
		FlushInterval: -1,
		ErrorHandler: func(w http.ResponseWriter, r *http.Request, errProxy error) {
			var reauth *sdkauth.ReauthRequiredError
			if errors.As(errProxy, &reauth) {
				writeErrorTo(w, http.StatusUnauthorized, "authentication_error", errProxy.Error())
				return
			}
			log.WithField(requestIDKey, requestID).Errorf("upstream request failed: %v", errProxy)
			writeErrorTo(w, http.StatusBadGateway, "api_error", "upstream request failed")
		},
	}
	rp.ServeHTTP(c.Writer, c.Request)
}

func writeLoadError(c *gin.Context, err error) {
	var reauth *sdkauth.ReauthRequiredError
	var invalidBase *discovery.InvalidBaseURLError
	switch {
	case errors.As(err, &reauth):
		writeError(c, http.StatusUnauthorized, "authentication_error", err.Error())
	case errors.As(err, &invalidBase):
		writeError(c, http.StatusInternalServerError, "configuration_error", err.Error())
	default:
		log.WithField(requestIDKey, c.GetString(requestIDKey)).Warnf("credential load failed: %v", err)
		writeError(c, http.StatusUnauthorized, "authentication_error", err.Error())
	}
}

func writeError(c *gin.Context, status int, kind, message string) {
	c.AbortWithStatusJSON(status, errorBody(kind, message))
}

func writeErrorTo(w http.ResponseWriter, status int, kind, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	body, _ := json.Marshal(errorBody(kind, message))
	_, _ = w.Write(body)
}

func errorBody(kind, message string) gin.H {
	return gin.H{"error": gin.H{"type": kind, "message": message}}
}

// RequestID assigns a uuid to requests that arrive without one.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := strings.TrimSpace(c.GetHeader(RequestIDHeader))
		if id == "" {
			id = uuid.NewString()
		}
		c.Set(requestIDKey, id)
		c.Header(RequestIDHeader, id)
		c.Next()
	}
}

// Logger logs each request through logrus.
func Logger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		entry := log.WithFields(log.Fields{
			requestIDKey: c.GetString(requestIDKey),
			"status":     c.Writer.Status(),
			"latency":    time.Since(start).String(),
			"client":     c.ClientIP(),
		})
		msg := fmt.Sprintf("%s %s", c.Request.Method, c.Request.URL.Path)
		switch {
		case c.Writer.Status() >= http.StatusInternalServerError:
			entry.Error(msg)
		case c.Writer.Status() >= http.StatusBadRequest:
			entry.Warn(msg)
		default:
			entry.Debug(msg)
		}
	}
}
