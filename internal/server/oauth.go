package server

import (
	"context"
	"fmt"
	"net/http"
	"sync"

	"golang.org/x/oauth2"
)

// OAuthResult contains the result of a provider callback.
//
// IDToken is taken from the callback form (Apple form_post) or, after a code
// exchange, from the token response's id_token field (Google).
type OAuthResult struct {
	Token   *oauth2.Token
	IDToken string
	User    string // raw user JSON, Apple only
	err     error
}

func (o *OAuthResult) Error() error {
	return o.err
}

// OAuthHandler handles a single provider callback on a loopback address.
// Implements the Handler interface for registration with a Router.
type OAuthHandler struct {
	config       *oauth2.Config
	state        string
	path         string
	exchangeOpts []oauth2.AuthCodeOption
	resultChan   chan OAuthResult
	once         sync.Once
	callbackHit  bool
	mu           sync.Mutex
}

// NewOAuthHandler creates a callback handler bound to path.
// The state token should be cryptographically random for CSRF protection.
//
// config may be nil when the provider posts the ID token directly; a code
// without an ID token then fails.
func NewOAuthHandler(config *oauth2.Config, state, path string, exchangeOpts ...oauth2.AuthCodeOption) *OAuthHandler {
	if path == "" {
		path = "/callback"
	}
	return &OAuthHandler{
		config:       config,
		state:        state,
		path:         path,
		exchangeOpts: exchangeOpts,
		resultChan:   make(chan OAuthResult, 1),
	}
}

// Routes returns the HTTP routes this handler serves.
func (h *OAuthHandler) Routes() []string {
	return []string{h.path}
}

// ServeHTTP handles the callback request, from a query string or a form post.
func (h *OAuthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	if h.callbackHit {
		h.mu.Unlock()
		http.Error(w, "Callback already processed", http.StatusBadRequest)
		return
	}
	h.callbackHit = true
	h.mu.Unlock()

	if r.FormValue("state") != h.state {
		h.Send(OAuthResult{err: fmt.Errorf("invalid state parameter")})
		http.Error(w, "Invalid state parameter", http.StatusBadRequest)
		return
	}

	if idToken := r.FormValue("id_token"); idToken != "" {
		h.Send(OAuthResult{IDToken: idToken, User: r.FormValue("user")})
		writeCallbackPage(w)
		return
	}

	code := r.FormValue("code")
	if code == "" {
		err := fmt.Errorf("authorization failed: %s - %s", r.FormValue("error"), r.FormValue("error_description"))
		h.Send(OAuthResult{err: err})
		http.Error(w, "Authorization failed", http.StatusBadRequest)
		return
	}

	if h.config == nil {
		h.Send(OAuthResult{err: fmt.Errorf("authorization code received without id_token")})
		http.Error(w, "Authorization failed", http.StatusBadRequest)
		return
	}

	token, err := h.config.Exchange(context.Background(), code, h.exchangeOpts...)
	if err != nil {
		h.Send(OAuthResult{err: fmt.Errorf("token exchange failed: %w", err)})
		http.Error(w, "Token exchange failed", http.StatusInternalServerError)
		return
	}

	idToken, _ := token.Extra("id_token").(string)
	if idToken == "" {
		h.Send(OAuthResult{Token: token, err: fmt.Errorf("token response carried no id_token")})
		http.Error(w, "Token exchange failed", http.StatusBadGateway)
		return
	}

	h.Send(OAuthResult{Token: token, IDToken: idToken})
	writeCallbackPage(w)
}

func writeCallbackPage(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "text/html")
	w.WriteHeader(http.StatusOK)
	fmt.Fprint(w, `<!DOCTYPE html>
<html>
<head><title>NutriVision</title></head>
<body style="font-family: sans-serif; text-align: center; padding-top: 4rem;">
    <h1>Signed in</h1>
    <p>You can close this window and return to the terminal.</p>
</body>
</html>
`)
}

// Send sends the result through the channel (only once).
func (h *OAuthHandler) Send(result OAuthResult) {
	h.once.Do(func() {
		h.resultChan <- result
		close(h.resultChan)
	})
}

// Result returns the result channel for receiving callback completion.
//
// Channel will receive exactly one result and then be closed.
func (h *OAuthHandler) Result() <-chan OAuthResult {
	return h.resultChan
}
