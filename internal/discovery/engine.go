// Package discovery finds a working OCA API base URL and enumerates the models
// it serves. Candidate base URLs are probed concurrently and the discovery
// paths of each candidate are tried in order. Results are cached in an
// injectable Cache.
package discovery

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/shariqriazz/ocaauth/internal/config"
	"github.com/shariqriazz/ocaauth/internal/util"
	log "github.com/sirupsen/logrus"
)

// DefaultTimeout bounds a single probe request.
const DefaultTimeout = 10 * time.Second

// DefaultPaths are tried in order for every candidate base URL.
var DefaultPaths = []string{"/models", "/v1/models", "/v1/model/info"}

// InvalidBaseURLError reports a malformed explicit base URL.
type InvalidBaseURLError struct {
	Value string
}

func (e *InvalidBaseURLError) Error() string {
	return fmt.Sprintf("Invalid OCA base URL: %s", e.Value)
}

// Engine probes candidate endpoints.
type Engine struct {
	cache      *Cache
	httpClient *http.Client
	candidates func() []string
	paths      []string
	timeout    time.Duration
}

// Option configures an Engine.
type Option func(*Engine)

// WithHTTPClient sets the client used for probes.
func WithHTTPClient(client *http.Client) Option {
	return func(e *Engine) {
		if client != nil {
			e.httpClient = client
		}
	}
}

// WithTimeout overrides the per-attempt timeout.
func WithTimeout(timeout time.Duration) Option {
	return func(e *Engine) {
		if timeout > 0 {
			e.timeout = timeout
		}
	}
}

// WithPaths overrides the ordered discovery paths.
func WithPaths(paths ...string) Option {
	return func(e *Engine) {
		if len(paths) > 0 {
			e.paths = append([]string(nil), paths...)
		}
	}
}

// WithCandidates replaces the candidate resolver.
func WithCandidates(fn func() []string) Option {
	return func(e *Engine) {
		if fn != nil {
			e.candidates = fn
		}
	}
}

// WithConfig resolves candidates from cfg and the environment on every run,
// and applies the configured probe timeout.
func WithConfig(cfg *config.Config) Option {
	return func(e *Engine) {
		e.candidates = func() []string { return Candidates(config.Resolve(cfg)) }
		if cfg != nil && cfg.Discovery.TimeoutSeconds > 0 {
			e.timeout = time.Duration(cfg.Discovery.TimeoutSeconds) * time.Second
		}
	}
}

// NewEngine builds an engine writing into cache. A nil cache gets a private one.
func NewEngine(cache *Cache, opts ...Option) *Engine {
	if cache == nil {
		cache = NewCache()
	}
	e := &Engine{
		cache:      cache,
		httpClient: &http.Client{},
		candidates: func() []string { return Candidates(config.Resolve(nil)) },
		paths:      DefaultPaths,
		timeout:    DefaultTimeout,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Cache returns the cache the engine populates.
func (e *Engine) Cache() *Cache { return e.cache }

// Candidates returns the base URLs to probe. An explicit base URL is the only
// candidate. Otherwise configured URLs that pass the safety filter come first,
// followed by the built-in endpoints, without duplicates.
func Candidates(s config.Settings) []string {
	if explicit := config.TrimTrailingSlash(s.BaseURL); explicit != "" {
		if _, err := util.ParseHTTPURL(explicit); err != nil {
			log.Warnf("oca discovery: ignoring malformed explicit base url %q: %v", explicit, err)
			return nil
		}
		return []string{explicit}
	}
	out := make([]string, 0, len(s.BaseURLs)+len(config.DefaultBaseURLs))
	seen := make(map[string]struct{})
	add := func(raw string) {
		base := config.TrimTrailingSlash(raw)
		if base == "" {
			return
		}
		if _, dup := seen[base]; dup {
			return
		}
		seen[base] = struct{}{}
		out = append(out, base)
	}
	for _, raw := range s.BaseURLs {
		if !util.IsSafeBaseURL(raw) {
			log.Warnf("oca discovery: skipping unsafe base url candidate %q", raw)
			continue
		}
		add(raw)
	}
	for _, raw := range config.DefaultBaseURLs {
		add(raw)
	}
	return out
}

// Discover returns the cached result or probes the candidates. At most one
// probe run is in flight per cache generation; concurrent callers share it.
// A false return means no candidate answered and nothing was cached.
func (e *Engine) Discover(ctx context.Context, bearerToken string) (*Result, bool) {
	if r, ok := e.cache.Get(); ok {
		return r, true
	}
	bearerToken = strings.TrimSpace(bearerToken)
	if bearerToken == "" {
		return nil, false
	}
	if ctx == nil {
		ctx = context.Background()
	}

	gen := e.cache.currentGeneration()
	ch := e.cache.group.DoChan(e.cache.flightKey(gen), func() (any, error) {
		if r, ok := e.cache.Get(); ok {
			return r, nil
		}
		r := e.probe(context.WithoutCancel(ctx), bearerToken)
		if r == nil {
			return (*Result)(nil), nil
		}
		if !e.cache.setIfGeneration(gen, r) {
			log.Debugf("oca discovery: cache reset during probe, dropping result for %s", r.BaseURL)
		}
		return r, nil
	})

	select {
	case <-ctx.Done():
		return nil, false
	case res := <-ch:
		r, _ := res.Val.(*Result)
		return r, r != nil
	}
}

func (e *Engine) probe(ctx context.Context, token string) *Result {
	candidates := e.candidates()
	if len(candidates) == 0 {
		return nil
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	results := make(chan *Result, len(candidates))
	for _, base := range candidates {
		go func(base string) {
			results <- e.probeBase(ctx, base, token)
		}(base)
	}

	for range candidates {
		if r := <-results; r != nil {
			log.Infof("oca discovery: resolved base url %s (%d models)", r.BaseURL, len(r.Models))
			return r
		}
	}
	log.Debugf("oca discovery: no candidate answered (%d tried)", len(candidates))
	return nil
}

func (e *Engine) probeBase(ctx context.Context, base, token string) *Result {
	for _, path := range e.paths {
		if ctx.Err() != nil {
			return nil
		}
		body, ok := e.fetch(ctx, base+path, token)
		if !ok {
			continue
		}
		models, errParse := ParseModels(body)
		if errParse != nil {
			log.Warnf("oca discovery: %s%s: %v", base, path, errParse)
		}
		return &Result{BaseURL: base, Models: models}
	}
	return nil
}

func (e *Engine) fetch(ctx context.Context, target, token string) ([]byte, bool) {
	reqCtx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	req, errReq := http.NewRequestWithContext(reqCtx, http.MethodGet, target, nil)
	if errReq != nil {
		log.Debugf("oca discovery: build request for %s: %v", target, errReq)
		return nil, false
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Accept-Encoding", util.AcceptEncoding)

	resp, errDo := e.httpClient.Do(req)
	if errDo != nil {
		log.Debugf("oca discovery: request %s failed: %v", target, errDo)
		return nil, false
	}
	body, errDecode := util.DecodeResponseBody(resp.Body, resp.Header.Get("Content-Encoding"))
	if errDecode != nil {
		log.Debugf("oca discovery: decode %s: %v", target, errDecode)
		return nil, false
	}
	defer func() {
		if errClose := body.Close(); errClose != nil {
			log.Errorf("oca discovery: close body error: %v", errClose)
		}
	}()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		log.Debugf("oca discovery: %s returned status %d", target, resp.StatusCode)
		return nil, false
	}
	data, errRead := io.ReadAll(body)
	if errRead != nil {
		log.Debugf("oca discovery: read %s: %v", target, errRead)
		return nil, false
	}
	return data, true
}
