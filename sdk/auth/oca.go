package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/shariqriazz/ocaauth/internal/auth/oca"
	"github.com/shariqriazz/ocaauth/internal/browser"
	"github.com/shariqriazz/ocaauth/internal/config"
	"github.com/shariqriazz/ocaauth/internal/misc"
	"github.com/shariqriazz/ocaauth/internal/util"
	log "github.com/sirupsen/logrus"
	"golang.org/x/oauth2"
)

const (
	// ProviderOCA is the provider id credentials are stored under.
	ProviderOCA = "oca"

	// DefaultCallbackTimeout bounds how long an authorization waits for the redirect.
	DefaultCallbackTimeout = 5 * time.Minute

	authorizationInstructions = "Complete the sign-in in your browser. This window will close automatically."
)

var ocaScopes = []string{"openid", "offline_access"}

// ResultType tags an AuthorizationResult.
type ResultType string

const (
	ResultSuccess ResultType = "success"
	ResultFailed  ResultType = "failed"
)

// AuthorizationInputs are the optional prompt answers for an oauth login.
// Blank values fall back to the environment, the config file and the defaults.
type AuthorizationInputs struct {
	IDCSURL      string
	ClientID     string
	CallbackPort int
}

// AuthorizationResult is the settled outcome of an authorization.
type AuthorizationResult struct {
	Type       ResultType
	Credential *Credential
	Err        error
}

// Authorization is an in-progress browser login.
type Authorization struct {
	URL          string
	Instructions string
	RedirectURI  string

	once   sync.Once
	result AuthorizationResult
	wait   func(ctx context.Context) AuthorizationResult
}

// Wait blocks until the redirect arrives, the timeout fires, the
// authorization is superseded, or ctx ends. Later calls return the first result.
func (a *Authorization) Wait(ctx context.Context) AuthorizationResult {
	a.once.Do(func() {
		a.result = a.wait(ctx)
	})
	return a.result
}

// Prompt describes one input an oauth login can ask for.
type Prompt struct {
	Key         string
	Message     string
	Placeholder string
}

// OCAAuthenticator runs the PKCE authorization-code flow against IDCS.
type OCAAuthenticator struct {
	listener        *callbackListener
	httpClient      *http.Client
	callbackTimeout time.Duration
	now             func() time.Time
}

// NewOCAAuthenticator constructs an authenticator bound to the process-wide callback listener.
func NewOCAAuthenticator() *OCAAuthenticator {
	return &OCAAuthenticator{
		listener:        defaultCallbackListener,
		callbackTimeout: DefaultCallbackTimeout,
		now:             time.Now,
	}
}

// Provider returns the provider key for OCA.
func (*OCAAuthenticator) Provider() string { return ProviderOCA }

// Method returns "oauth".
func (*OCAAuthenticator) Method() string { return string(CredentialOAuth) }

// RefreshLead asks for a refresh five minutes before expiry.
func (*OCAAuthenticator) RefreshLead() *time.Duration {
	lead := 5 * time.Minute
	return &lead
}

// Prompts lists the optional login inputs.
func (*OCAAuthenticator) Prompts() []Prompt {
	return []Prompt{
		{Key: "idcs-url", Message: "IDCS URL (leave blank for default)", Placeholder: config.DefaultIDCSURL},
		{Key: "client-id", Message: "OAuth client id (leave blank for default)", Placeholder: config.DefaultClientID},
	}
}

func (a *OCAAuthenticator) client(cfg *config.Config) *http.Client {
	if a.httpClient != nil {
		return a.httpClient
	}
	return util.SetProxy(cfg, &http.Client{Timeout: 30 * time.Second})
}

// BeginAuthorization validates the IDCS URL, starts the callback listener
// and returns the authorize URL. Starting a new authorization rejects the
// previous pending one.
func (a *OCAAuthenticator) BeginAuthorization(_ context.Context, cfg *config.Config, in AuthorizationInputs) (*Authorization, error) {
	settings := config.ResolveOAuth(cfg, in.IDCSURL, in.ClientID)
	if errValidate := oca.ValidateIDCSURL(settings.IDCSURL); errValidate != nil {
		return nil, errValidate
	}

	pkce, err := misc.GeneratePKCECodes()
	if err != nil {
		return nil, fmt.Errorf("oca: failed to generate PKCE codes: %w", err)
	}
	state, err := misc.GenerateRandomState()
	if err != nil {
		return nil, fmt.Errorf("oca: failed to generate state: %w", err)
	}
	nonce, err := misc.GenerateNonce()
	if err != nil {
		return nil, fmt.Errorf("oca: failed to generate nonce: %w", err)
	}

	port := in.CallbackPort
	if port == 0 && cfg != nil && cfg.OCA.CallbackPort > 0 {
		port = cfg.OCA.CallbackPort
	}
	if port == 0 {
		port = config.DefaultCallbackPort
	}
	if port < 0 {
		port = 0
	}
	actualPort, errListen := a.listener.acquire(port)
	if errListen != nil {
		return nil, fmt.Errorf("oca: failed to start callback server: %w", errListen)
	}

	pending := newPendingAuthorization()
	pending.state = state
	pending.verifier = pkce.CodeVerifier
	pending.idcsURL = settings.IDCSURL
	pending.clientID = settings.ClientID
	pending.redirectURI = fmt.Sprintf("http://%s:%d%s", callbackHost, actualPort, CallbackPath)
	a.listener.install(pending)

	authURL := buildAuthorizeURL(pending, nonce)
	httpClient := a.client(cfg)
	authorization := &Authorization{
		URL:          authURL,
		Instructions: authorizationInstructions,
		RedirectURI:  pending.redirectURI,
	}
	// The callback deadline runs from here, whether or not Wait is called.
	var releaseOnce sync.Once
	release := func() { releaseOnce.Do(a.listener.release) }
	deadline := time.AfterFunc(a.callbackTimeout, func() {
		if a.listener.expire(pending, ErrCallbackTimeout) {
			log.Debug("oca: authorization callback timed out")
		}
		release()
	})

	authorization.wait = func(ctx context.Context) AuthorizationResult {
		defer release()
		defer deadline.Stop()
		outcome, errWait := a.awaitCallback(ctx, pending)
		if errWait != nil {
			return failed(errWait)
		}
		if outcome.err != nil {
			return failed(outcome.err)
		}
		token, errExchange := oca.ExchangeCodeForTokens(ctx, httpClient, pending.idcsURL, pending.clientID, outcome.code, pending.redirectURI, pending.verifier)
		if errExchange != nil {
			return failed(errExchange)
		}
		return AuthorizationResult{
			Type: ResultSuccess,
			Credential: &Credential{
				Type:          CredentialOAuth,
				Access:        token.AccessToken,
				Refresh:       token.RefreshToken,
				Expires:       token.ExpiresAt(a.now()),
				EnterpriseURL: pending.idcsURL,
				AccountID:     pending.clientID,
			},
		}
	}
	return authorization, nil
}

func (a *OCAAuthenticator) awaitCallback(ctx context.Context, pending *pendingAuthorization) (callbackOutcome, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	select {
	case outcome := <-pending.result:
		return outcome, nil
	case <-ctx.Done():
	}
	if !a.listener.clearIf(pending) {
		// Settled concurrently with the cancellation.
		return <-pending.result, nil
	}
	return callbackOutcome{}, ctx.Err()
}

func failed(err error) AuthorizationResult {
	return AuthorizationResult{Type: ResultFailed, Err: err}
}

func buildAuthorizeURL(p *pendingAuthorization, nonce string) string {
	conf := &oauth2.Config{
		ClientID:    p.clientID,
		RedirectURL: p.redirectURI,
		Scopes:      ocaScopes,
		Endpoint: oauth2.Endpoint{
			AuthURL:  p.idcsURL + oca.AuthorizePath,
			TokenURL: p.idcsURL + oca.TokenPath,
		},
	}
	return conf.AuthCodeURL(p.state,
		oauth2.S256ChallengeOption(p.verifier),
		oauth2.SetAuthURLParam("nonce", nonce),
	)
}

// Login runs BeginAuthorization interactively: it opens the browser, offers
// a manual paste of the redirect URL and waits for the credential.
func (a *OCAAuthenticator) Login(ctx context.Context, cfg *config.Config, opts *LoginOptions) (*Credential, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if opts == nil {
		opts = &LoginOptions{}
	}

	in := AuthorizationInputs{CallbackPort: opts.CallbackPort}
	if opts.Metadata != nil {
		in.IDCSURL = opts.Metadata["idcs-url"]
		in.ClientID = opts.Metadata["client-id"]
	}

	authorization, err := a.BeginAuthorization(ctx, cfg, in)
	if err != nil {
		return nil, err
	}
	port := a.listener.boundPort()

	if !opts.NoBrowser {
		fmt.Println("Opening browser for OCA authentication")
		if !browser.IsAvailable() {
			log.Warn("No browser available; please open the URL manually")
			util.PrintSSHTunnelInstructions(port)
			fmt.Printf("Visit the following URL to continue authentication:\n%s\n", authorization.URL)
		} else if errOpen := browser.OpenURL(authorization.URL); errOpen != nil {
			log.Warnf("Failed to open browser automatically: %v", errOpen)
			util.PrintSSHTunnelInstructions(port)
			fmt.Printf("Visit the following URL to continue authentication:\n%s\n", authorization.URL)
		}
	} else {
		util.PrintSSHTunnelInstructions(port)
		fmt.Printf("Visit the following URL to continue authentication:\n%s\n", authorization.URL)
	}
	fmt.Println(authorization.Instructions)
	fmt.Println("Waiting for OCA authentication callback...")

	resultCh := make(chan AuthorizationResult, 1)
	go func() { resultCh <- authorization.Wait(ctx) }()

	var manualPromptTimer *time.Timer
	var manualPromptC <-chan time.Time
	if opts.Prompt != nil {
		manualPromptTimer = time.NewTimer(15 * time.Second)
		manualPromptC = manualPromptTimer.C
		defer manualPromptTimer.Stop()
	}

	var result AuthorizationResult
waitForResult:
	for {
		select {
		case result = <-resultCh:
			break waitForResult
		case <-manualPromptC:
			manualPromptC = nil
			input, errPrompt := opts.Prompt("Paste the OCA callback URL (or press Enter to keep waiting): ")
			if errPrompt != nil {
				return nil, errPrompt
			}
			parsed, errParse := misc.ParseOAuthCallback(input)
			if errParse != nil {
				log.Warnf("oca: %v", errParse)
				continue
			}
			if parsed == nil {
				continue
			}
			if errSettle := a.listener.settle(parsed); errSettle != nil {
				log.Debugf("oca: manual callback rejected: %v", errSettle)
			}
		}
	}

	if result.Type != ResultSuccess {
		if errors.Is(result.Err, ErrCallbackTimeout) {
			return nil, fmt.Errorf("oca: authentication timed out")
		}
		return nil, fmt.Errorf("oca: authentication failed: %w", result.Err)
	}
	fmt.Printf("OCA authentication successful (%s)\n", oca.TenantLabel(result.Credential.EnterpriseURL))
	return result.Credential, nil
}

// APIKeyAuthenticator stores a static OCA API key.
type APIKeyAuthenticator struct{}

// NewAPIKeyAuthenticator constructs the api-key authenticator.
func NewAPIKeyAuthenticator() *APIKeyAuthenticator { return &APIKeyAuthenticator{} }

// Provider returns the provider key for OCA.
func (*APIKeyAuthenticator) Provider() string { return ProviderOCA }

// Method returns "api".
func (*APIKeyAuthenticator) Method() string { return string(CredentialAPIKey) }

// RefreshLead is nil; keys do not expire.
func (*APIKeyAuthenticator) RefreshLead() *time.Duration { return nil }

// Login takes the key from metadata, then the environment or config, then asks for it.
func (*APIKeyAuthenticator) Login(_ context.Context, cfg *config.Config, opts *LoginOptions) (*Credential, error) {
	if opts == nil {
		opts = &LoginOptions{}
	}
	key := ""
	if opts.Metadata != nil {
		key = strings.TrimSpace(opts.Metadata["api-key"])
	}
	if key == "" {
		key = config.Resolve(cfg).APIKey
	}
	if key == "" && opts.ReadSecret != nil {
		input, err := opts.ReadSecret("Enter OCA API key: ")
		if err != nil {
			return nil, err
		}
		key = strings.TrimSpace(input)
	}
	if key == "" {
		return nil, fmt.Errorf("oca: api key is required")
	}
	return NewAPIKeyCredential(key), nil
}
