package oauth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/nutrivision/internal/server"
	"github.com/desertthunder/nutrivision/internal/shared"
	"golang.org/x/oauth2"
)

const defaultConsentTimeout = 2 * time.Minute

var (
	googleEndpoint = oauth2.Endpoint{
		AuthURL:  "https://accounts.google.com/o/oauth2/v2/auth",
		TokenURL: "https://oauth2.googleapis.com/token",
	}
	appleEndpoint = oauth2.Endpoint{
		AuthURL:  "https://appleid.apple.com/auth/authorize",
		TokenURL: "https://appleid.apple.com/auth/token",
	}
)

// LoopbackOpts configures the browser based SDKs.
type LoopbackOpts struct {
	ClientSecret string // Google only
	RedirectURI  string // must include a port; the callback server listens on its host
	Timeout      time.Duration
	Logger       *log.Logger

	// OpenURL opens the consent page. Defaults to [shared.OpenBrowser].
	OpenURL func(ctx context.Context, rawURL string) error
	// Notify is told the consent URL when it could not be opened automatically.
	Notify func(authURL string)
}

func (o *LoopbackOpts) defaults() {
	if o.Timeout <= 0 {
		o.Timeout = defaultConsentTimeout
	}
	if o.Logger == nil {
		o.Logger = log.Default()
	}
	if o.OpenURL == nil {
		o.OpenURL = shared.OpenBrowser
	}
}

func (o *LoopbackOpts) open(ctx context.Context, authURL string) {
	if err := o.OpenURL(ctx, authURL); err != nil {
		o.Logger.Warn("failed to open browser automatically", "error", err)
		if o.Notify != nil {
			o.Notify(authURL)
		}
	}
}

// LoopbackGoogle implements [GoogleIdentity] with the authorization code flow (PKCE)
// and a localhost callback. The credential it delivers is the ID token from the token response.
type LoopbackGoogle struct {
	opts     LoopbackOpts
	endpoint oauth2.Endpoint

	mu       sync.Mutex
	config   *oauth2.Config
	callback func(GoogleCredentialResponse)
}

func NewLoopbackGoogle(opts LoopbackOpts) *LoopbackGoogle {
	opts.defaults()
	return &LoopbackGoogle{opts: opts, endpoint: googleEndpoint}
}

func (g *LoopbackGoogle) Initialize(cfg GoogleIDConfig, callback func(GoogleCredentialResponse)) error {
	if callback == nil {
		return fmt.Errorf("%w: callback is required", shared.ErrInvalidArgument)
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	g.config = &oauth2.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: g.opts.ClientSecret,
		RedirectURL:  g.opts.RedirectURI,
		Scopes:       []string{"openid", "email", "profile"},
		Endpoint:     g.endpoint,
	}
	g.callback = callback
	return nil
}

// Prompt starts the callback server and opens the consent page.
// The outcome is delivered to the callback from a separate goroutine.
func (g *LoopbackGoogle) Prompt(ctx context.Context) error {
	g.mu.Lock()
	config, callback := g.config, g.callback
	g.mu.Unlock()
	if config == nil {
		return fmt.Errorf("google sign-in: prompt before initialize")
	}

	state := shared.GenerateID()
	verifier := oauth2.GenerateVerifier()
	cs, err := startCallbackServer(g.opts, server.NewOAuthHandler(config, state, callbackPath(g.opts.RedirectURI), oauth2.VerifierOption(verifier)))
	if err != nil {
		return err
	}

	g.opts.open(ctx, config.AuthCodeURL(state, oauth2.AccessTypeOnline, oauth2.S256ChallengeOption(verifier)))

	go func() {
		res, err := cs.await(ctx)
		if err != nil {
			callback(GoogleCredentialResponse{Err: err})
			return
		}
		callback(GoogleCredentialResponse{Credential: res.IDToken})
	}()
	return nil
}

// LoopbackApple implements [AppleID] with response_mode=form_post. Apple posts the
// ID token straight to the redirect URI, so no code exchange or client secret is needed.
type LoopbackApple struct {
	opts     LoopbackOpts
	endpoint oauth2.Endpoint

	mu  sync.Mutex
	cfg *AppleConfig
}

func NewLoopbackApple(opts LoopbackOpts) *LoopbackApple {
	opts.defaults()
	return &LoopbackApple{opts: opts, endpoint: appleEndpoint}
}

func (a *LoopbackApple) Init(cfg AppleConfig) error {
	if cfg.RedirectURI == "" {
		cfg.RedirectURI = a.opts.RedirectURI
	}
	a.mu.Lock()
	a.cfg = &cfg
	a.mu.Unlock()
	return nil
}

func (a *LoopbackApple) SignIn(ctx context.Context) (*AppleSignInResponse, error) {
	a.mu.Lock()
	cfg := a.cfg
	a.mu.Unlock()
	if cfg == nil {
		return nil, fmt.Errorf("apple sign-in: sign in before init")
	}

	config := &oauth2.Config{
		ClientID:    cfg.ClientID,
		RedirectURL: cfg.RedirectURI,
		Scopes:      strings.Fields(cfg.Scope),
		Endpoint:    a.endpoint,
	}

	opts := a.opts
	opts.RedirectURI = cfg.RedirectURI
	state := shared.GenerateID()
	cs, err := startCallbackServer(opts, server.NewOAuthHandler(nil, state, callbackPath(cfg.RedirectURI)))
	if err != nil {
		return nil, err
	}

	a.opts.open(ctx, config.AuthCodeURL(state,
		oauth2.SetAuthURLParam("response_type", "code id_token"),
		oauth2.SetAuthURLParam("response_mode", "form_post"),
	))

	res, err := cs.await(ctx)
	if err != nil {
		return nil, err
	}

	resp := &AppleSignInResponse{IDToken: res.IDToken}
	if res.User != "" {
		var user AppleUser
		if err := json.Unmarshal([]byte(res.User), &user); err != nil {
			a.opts.Logger.Warn("ignoring malformed apple user payload", "error", err)
		} else {
			resp.User = &user
		}
	}
	return resp, nil
}

// callbackServer serves one [server.OAuthHandler] until a result arrives.
type callbackServer struct {
	handler *server.OAuthHandler
	srv     *http.Server
	errs    chan error
	timeout time.Duration
	logger  *log.Logger
}

func startCallbackServer(opts LoopbackOpts, handler *server.OAuthHandler) (*callbackServer, error) {
	u, err := url.Parse(opts.RedirectURI)
	if err != nil || u.Host == "" || u.Port() == "" {
		return nil, fmt.Errorf("%w: redirect uri %q needs a host and port", shared.ErrInvalidConfig, opts.RedirectURI)
	}

	ln, err := net.Listen("tcp", u.Host)
	if err != nil {
		return nil, fmt.Errorf("%w: callback listener on %s: %v", shared.ErrBindFailed, u.Host, err)
	}

	router := server.NewBasicRouter()
	router.Handler(handler)

	cs := &callbackServer{
		handler: handler,
		srv:     &http.Server{Handler: router, ReadHeaderTimeout: 10 * time.Second},
		errs:    make(chan error, 1),
		timeout: opts.Timeout,
		logger:  opts.Logger,
	}

	go func() {
		cs.logger.Debug("callback server listening", "addr", ln.Addr().String())
		if err := cs.srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			cs.errs <- err
		}
	}()
	return cs, nil
}

func (c *callbackServer) await(ctx context.Context) (server.OAuthResult, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	defer c.shutdown()

	select {
	case res := <-c.handler.Result():
		if err := res.Error(); err != nil {
			return res, fmt.Errorf("%w: %v", shared.ErrAuthFailed, err)
		}
		return res, nil
	case err := <-c.errs:
		return server.OAuthResult{}, fmt.Errorf("callback server: %w", err)
	case <-ctx.Done():
		return server.OAuthResult{}, fmt.Errorf("authorization not completed: %w", ctx.Err())
	}
}

func (c *callbackServer) shutdown() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := c.srv.Shutdown(ctx); err != nil {
		c.logger.Warn("error shutting down callback server", "error", err)
	}
}

func callbackPath(redirectURI string) string {
	u, err := url.Parse(redirectURI)
	if err != nil || u.Path == "" {
		return "/callback"
	}
	return u.Path
}
