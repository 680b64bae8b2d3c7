package auth

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/shariqriazz/ocaauth/internal/auth/oca"
	"github.com/shariqriazz/ocaauth/internal/config"
	"github.com/shariqriazz/ocaauth/internal/discovery"
	"github.com/shariqriazz/ocaauth/internal/registry"
	"github.com/shariqriazz/ocaauth/internal/util"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"
)

// OAuthPlaceholderKey is handed to hosts that insist on an API key while the
// real bearer token is injected by the transport.
const OAuthPlaceholderKey = "opencode-oauth-dummy-key"

// State is the token lifecycle of the loader.
type State int

const (
	StateFresh State = iota
	StateRefreshing
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateFresh:
		return "fresh"
	case StateRefreshing:
		return "refreshing"
	case StateFailed:
		return "failed"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// RequestDecoration is what the host applies to outbound provider calls.
type RequestDecoration struct {
	BaseURL string
	APIKey  string
	// Transport injects a fresh bearer token. Nil for api-key credentials.
	Transport http.RoundTripper
}

// HTTPClient returns a client using Transport when set.
func (d *RequestDecoration) HTTPClient() *http.Client {
	if d == nil || d.Transport == nil {
		return &http.Client{}
	}
	return &http.Client{Transport: d.Transport}
}

// Loader coordinates credential freshness, discovery and request decoration.
type Loader struct {
	persister   Persister
	engine      *discovery.Engine
	cfg         func() *config.Config
	tokenClient *http.Client
	base        http.RoundTripper
	now         func() time.Time

	mu     sync.Mutex
	latest *Credential
	state  State
	group  singleflight.Group
}

// LoaderOption configures a Loader.
type LoaderOption func(*Loader)

// WithLoaderConfig sets the config used for overrides and the outbound proxy.
func WithLoaderConfig(cfg *config.Config) LoaderOption {
	return func(l *Loader) { l.cfg = func() *config.Config { return cfg } }
}

// WithConfigSource reads the config through fn on every call, so reloads apply.
func WithConfigSource(fn func() *config.Config) LoaderOption {
	return func(l *Loader) {
		if fn != nil {
			l.cfg = fn
		}
	}
}

// WithTokenClient sets the client used for refresh_token grants.
func WithTokenClient(client *http.Client) LoaderOption {
	return func(l *Loader) { l.tokenClient = client }
}

// WithBaseTransport sets the transport decorated requests are sent with.
func WithBaseTransport(rt http.RoundTripper) LoaderOption {
	return func(l *Loader) { l.base = rt }
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) LoaderOption {
	return func(l *Loader) {
		if now != nil {
			l.now = now
		}
	}
}

// NewLoader builds a loader persisting refreshed credentials through persister.
func NewLoader(persister Persister, engine *discovery.Engine, opts ...LoaderOption) *Loader {
	l := &Loader{
		persister: persister,
		engine:    engine,
		cfg:       func() *config.Config { return nil },
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}
	cfg := l.cfg()
	if l.engine == nil {
		l.engine = discovery.NewEngine(nil, discovery.WithConfig(cfg))
	}
	if l.tokenClient == nil {
		l.tokenClient = util.SetProxy(cfg, &http.Client{Timeout: 30 * time.Second})
	}
	if l.base == nil {
		l.base = util.SetProxy(cfg, &http.Client{}).Transport
		if l.base == nil {
			l.base = http.DefaultTransport
		}
	}
	return l
}

// State reports the token lifecycle state.
func (l *Loader) State() State {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.state
}

func (l *Loader) setState(s State) {
	l.mu.Lock()
	l.state = s
	l.mu.Unlock()
}

// Load prepares the decoration for the next provider call. For oauth
// credentials the token is refreshed before discovery so probing always uses
// a live bearer token. Discovered models are merged into provider when it is
// not nil.
func (l *Loader) Load(ctx context.Context, get CredentialGetter, provider *registry.Provider) (*RequestDecoration, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if get == nil {
		return nil, fmt.Errorf("oca auth: credential getter is required")
	}
	cred, err := get(ctx)
	if err != nil {
		return nil, err
	}
	if cred == nil {
		return nil, fmt.Errorf("oca auth: no credential available; %s", ReauthHint)
	}

	explicit := config.TrimTrailingSlash(config.Resolve(l.cfg()).BaseURL)
	if explicit != "" {
		if _, errParse := util.ParseHTTPURL(explicit); errParse != nil {
			return nil, &discovery.InvalidBaseURLError{Value: explicit}
		}
	}

	if !cred.IsOAuth() {
		return &RequestDecoration{BaseURL: l.discoverBaseURL(ctx, cred.BearerToken(), explicit, provider)}, nil
	}

	fresh, err := l.ensureFresh(ctx, cred, 0)
	if err != nil {
		return nil, err
	}
	return &RequestDecoration{
		BaseURL:   l.discoverBaseURL(ctx, fresh.Access, explicit, provider),
		APIKey:    OAuthPlaceholderKey,
		Transport: &bearerTransport{loader: l, get: get, base: l.base},
	}, nil
}

func (l *Loader) discoverBaseURL(ctx context.Context, token, explicit string, provider *registry.Provider) string {
	result, ok := l.engine.Discover(ctx, token)
	if ok && provider != nil {
		if n := registry.MergeDiscovered(provider, result); n > 0 {
			log.Debugf("oca auth: merged %d discovered models", n)
		}
	}
	if explicit != "" {
		return explicit
	}
	if ok {
		return result.BaseURL
	}
	return ""
}

// EnsureFresh returns a credential whose access token stays valid for at
// least lead, refreshing it when needed. Api-key credentials are returned as is.
func (l *Loader) EnsureFresh(ctx context.Context, get CredentialGetter, lead time.Duration) (*Credential, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	cred, err := get(ctx)
	if err != nil {
		return nil, err
	}
	if !cred.IsOAuth() {
		return cred, nil
	}
	return l.ensureFresh(ctx, cred, lead)
}

// observe records cred when it is newer than the known snapshot and returns
// the freshest one.
func (l *Loader) observe(cred *Credential) *Credential {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.latest == nil || !sameAccount(l.latest, cred) || cred.Expires > l.latest.Expires {
		l.latest = cred.Clone()
	}
	return l.latest.Clone()
}

func sameAccount(a, b *Credential) bool {
	return a.EnterpriseURL == b.EnterpriseURL && a.AccountID == b.AccountID
}

func (l *Loader) snapshot() *Credential {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.latest.Clone()
}

// clearFailure leaves the failed state once a valid credential is served.
func (l *Loader) clearFailure() {
	l.mu.Lock()
	if l.state == StateFailed {
		l.state = StateFresh
	}
	l.mu.Unlock()
}

// refreshOutcome is the value shared by one refresh flight, with the lead
// the flight checked validity against.
type refreshOutcome struct {
	cred *Credential
	lead time.Duration
}

func (l *Loader) ensureFresh(ctx context.Context, cred *Credential, lead time.Duration) (*Credential, error) {
	current := l.observe(cred)
	if current.Valid(l.now().Add(lead)) {
		l.clearFailure()
		return current, nil
	}
	if strings.TrimSpace(current.Refresh) == "" {
		l.setState(StateFailed)
		return nil, withReauthHint(ErrMissingRefreshToken)
	}

	for {
		ch := l.group.DoChan("refresh", func() (any, error) {
			latest := l.snapshot()
			if latest.Valid(l.now().Add(lead)) {
				l.clearFailure()
				return &refreshOutcome{cred: latest, lead: lead}, nil
			}
			l.setState(StateRefreshing)
			next, errRefresh := l.refresh(context.WithoutCancel(ctx), latest)
			if errRefresh != nil {
				l.setState(StateFailed)
				log.Warnf("oca auth: token refresh failed: %v", errRefresh)
				return nil, withReauthHint(errRefresh)
			}
			l.setState(StateFresh)
			return &refreshOutcome{cred: next, lead: lead}, nil
		})

		var out *refreshOutcome
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case res := <-ch:
			if res.Err != nil {
				return nil, res.Err
			}
			out, _ = res.Val.(*refreshOutcome)
		}
		if out.lead >= lead || out.cred.Valid(l.now().Add(lead)) {
			return out.cred.Clone(), nil
		}
		// Joined a flight that only needed a shorter lead; run one for ours.
	}
}

// refresh renews cur and persists the result before returning it.
func (l *Loader) refresh(ctx context.Context, cur *Credential) (*Credential, error) {
	settings := config.ResolveOAuth(l.cfg(), cur.EnterpriseURL, cur.AccountID)
	token, err := oca.RefreshAccessToken(ctx, l.tokenClient, settings.IDCSURL, settings.ClientID, cur.Refresh)
	if err != nil {
		return nil, err
	}
	next := &Credential{
		Type:          CredentialOAuth,
		Access:        token.AccessToken,
		Refresh:       cur.Refresh,
		Expires:       token.ExpiresAt(l.now()),
		EnterpriseURL: cur.EnterpriseURL,
		AccountID:     cur.AccountID,
	}
	if token.RefreshToken != "" {
		next.Refresh = token.RefreshToken
	}
	if l.persister != nil {
		if errSet := l.persister.Set(ctx, ProviderOCA, next); errSet != nil {
			return nil, fmt.Errorf("persist refreshed credential: %w", errSet)
		}
	}
	l.observe(next)
	log.Debugf("oca auth: access token refreshed, expires %s", next.ExpiresAt().Format(time.RFC3339))
	return next.Clone(), nil
}

type bearerTransport struct {
	loader *Loader
	get    CredentialGetter
	base   http.RoundTripper
}

// RoundTrip re-reads the live credential on every call and sends a clone of
// req carrying a fresh bearer token.
func (t *bearerTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	ctx := req.Context()
	cred, err := t.get(ctx)
	if err != nil {
		closeRequestBody(req)
		return nil, err
	}
	if !cred.IsOAuth() {
		return t.base.RoundTrip(req)
	}
	fresh, err := t.loader.ensureFresh(ctx, cred, 0)
	if err != nil {
		closeRequestBody(req)
		return nil, err
	}
	clone := req.Clone(ctx)
	clone.Header.Set("Authorization", "Bearer "+fresh.Access)
	return t.base.RoundTrip(clone)
}

func closeRequestBody(req *http.Request) {
	if req.Body == nil {
		return
	}
	if errClose := req.Body.Close(); errClose != nil {
		log.Debugf("oca auth: close request body error: %v", errClose)
	}
}
