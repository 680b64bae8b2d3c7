package auth

import (
	"context"
	"errors"
	"fmt"
	"html"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/shariqriazz/ocaauth/internal/misc"
	log "github.com/sirupsen/logrus"
)

const (
	// CallbackPath is the single redirect path served by the loopback listener.
	CallbackPath = "/auth/oca"
	callbackHost = "127.0.0.1"
)

const successPage = `<!doctype html>
<html>
  <head><title>OCA Authorization Successful</title></head>
  <body>
    <h1>Authorization Successful</h1>
    <p>You can close this window and return to your terminal.</p>
    <script>setTimeout(() => window.close(), 2000)</script>
  </body>
</html>`

const errorPageTemplate = `<!doctype html>
<html>
  <head><title>OCA Authorization Failed</title></head>
  <body>
    <h1>Authorization Failed</h1>
    <p>%s</p>
  </body>
</html>`

type callbackOutcome struct {
	code string
	err  error
}

type pendingAuthorization struct {
	state       string
	verifier    string
	idcsURL     string
	clientID    string
	redirectURI string
	result      chan callbackOutcome
}

func newPendingAuthorization() *pendingAuthorization {
	return &pendingAuthorization{result: make(chan callbackOutcome, 1)}
}

// callbackListener owns the loopback HTTP server and the single pending
// authorization slot. The server runs while at least one authorization holds
// a reference.
type callbackListener struct {
	mu      sync.Mutex
	srv     *http.Server
	port    int
	refs    int
	pending *pendingAuthorization
}

var defaultCallbackListener = &callbackListener{}

// acquire starts the server on first use and returns the bound port.
func (l *callbackListener) acquire(port int) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.srv != nil {
		l.refs++
		return l.port, nil
	}

	listener, err := net.Listen("tcp", net.JoinHostPort(callbackHost, fmt.Sprint(port)))
	if err != nil {
		return 0, err
	}
	mux := http.NewServeMux()
	mux.HandleFunc(CallbackPath, l.serveCallback)
	srv := &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		if errServe := srv.Serve(listener); errServe != nil && !errors.Is(errServe, http.ErrServerClosed) {
			log.Warnf("oca callback server error: %v", errServe)
		}
	}()

	l.srv = srv
	l.port = listener.Addr().(*net.TCPAddr).Port
	l.refs = 1
	log.Debugf("oca callback server listening on %s:%d", callbackHost, l.port)
	return l.port, nil
}

// release drops one reference and shuts the server down after the last one.
func (l *callbackListener) release() {
	l.mu.Lock()
	if l.refs > 0 {
		l.refs--
	}
	if l.refs > 0 || l.srv == nil {
		l.mu.Unlock()
		return
	}
	srv := l.srv
	l.srv = nil
	l.port = 0
	l.mu.Unlock()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if errShutdown := srv.Shutdown(shutdownCtx); errShutdown != nil {
		log.Debugf("oca callback server shutdown: %v", errShutdown)
	}
}

func (l *callbackListener) boundPort() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.port
}

// running reports whether the server is up, for tests.
func (l *callbackListener) running() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.srv != nil
}

// install makes p the pending authorization, rejecting the previous one.
func (l *callbackListener) install(p *pendingAuthorization) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.pending != nil {
		l.pending.result <- callbackOutcome{err: ErrAuthorizationSuperseded}
	}
	l.pending = p
}

// clearIf removes p if it is still pending and reports whether it did.
func (l *callbackListener) clearIf(p *pendingAuthorization) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.pending != p {
		return false
	}
	l.pending = nil
	return true
}

// expire rejects p with err if it is still pending and reports whether it did.
func (l *callbackListener) expire(p *pendingAuthorization, err error) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.pending != p {
		return false
	}
	l.pending = nil
	p.result <- callbackOutcome{err: err}
	return true
}

// settle applies a callback to the pending authorization. It returns the
// error shown to the browser, or nil on success.
func (l *callbackListener) settle(cb *misc.OAuthCallback) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	current := l.pending

	var outcome callbackOutcome
	switch {
	case cb.Error != "":
		outcome.err = &ProviderError{Code: cb.Error, Description: cb.ErrorDescription}
	case cb.Code == "":
		outcome.err = ErrMissingCode
	case current == nil || cb.State != current.state:
		outcome.err = ErrInvalidState
	default:
		outcome.code = cb.Code
	}

	if current != nil {
		l.pending = nil
		current.result <- outcome
	}
	return outcome.err
}

func (l *callbackListener) serveCallback(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	cb := &misc.OAuthCallback{
		Code:             strings.TrimSpace(q.Get("code")),
		State:            strings.TrimSpace(q.Get("state")),
		Error:            strings.TrimSpace(q.Get("error")),
		ErrorDescription: strings.TrimSpace(q.Get("error_description")),
	}
	errSettle := l.settle(cb)

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.Header().Set("Content-Security-Policy", "default-src 'none'; script-src 'unsafe-inline'")

	if errSettle == nil {
		_, _ = w.Write([]byte(successPage))
		return
	}
	var providerErr *ProviderError
	if !errors.As(errSettle, &providerErr) {
		w.WriteHeader(http.StatusBadRequest)
	}
	_, _ = fmt.Fprintf(w, errorPageTemplate, html.EscapeString(callbackMessage(errSettle)))
}

func callbackMessage(err error) string {
	switch {
	case errors.Is(err, ErrInvalidState):
		return "Invalid state"
	case errors.Is(err, ErrMissingCode):
		return "Missing authorization code"
	}
	return err.Error()
}
