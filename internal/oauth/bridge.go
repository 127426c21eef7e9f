package oauth

import (
	"context"
	"fmt"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/nutrivision/internal/models"
	"github.com/desertthunder/nutrivision/internal/services"
	"github.com/desertthunder/nutrivision/internal/session"
	"github.com/desertthunder/nutrivision/internal/shared"
)

// State is a sign-in flow state.
type State int

const (
	StateIdle State = iota
	StateInitializing
	StateAwaitingUserConsent
	StateCredentialReceived
	StateExchanging
	StateSessionEstablished
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateInitializing:
		return "initializing"
	case StateAwaitingUserConsent:
		return "awaiting_user_consent"
	case StateCredentialReceived:
		return "credential_received"
	case StateExchanging:
		return "exchanging"
	case StateSessionEstablished:
		return "session_established"
	case StateFailed:
		return "failed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Terminal reports whether no further transition follows s within a flow.
func (s State) Terminal() bool {
	return s == StateIdle || s == StateSessionEstablished || s == StateFailed
}

// Exchanger posts a provider credential to the backend.
//
// Implemented by [services.Dispatcher].
type Exchanger interface {
	Dispatch(ctx context.Context, endpoint string, opts services.RequestOptions) (*models.Envelope, error)
}

// Bridge runs federated sign-in flows and installs the resulting session.
type Bridge struct {
	exchanger    Exchanger
	store        *session.Store
	logger       *log.Logger
	onTransition func(from, to State)

	mu    sync.Mutex
	state State
}

// BridgeOpts configures a [Bridge].
type BridgeOpts struct {
	Exchanger Exchanger
	Session   *session.Store
	Logger    *log.Logger

	// OnTransition, when set, observes every state change. It is called without locks held.
	OnTransition func(from, to State)
}

func NewBridge(opts BridgeOpts) *Bridge {
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}
	return &Bridge{
		exchanger:    opts.Exchanger,
		store:        opts.Session,
		logger:       shared.WithLogger(logger, "component", "oauth"),
		onTransition: opts.OnTransition,
	}
}

// State returns the current flow state.
func (b *Bridge) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// SignIn runs one complete flow with p.
//
// The store is written exactly once, after the backend accepted the credential.
// A second SignIn while a flow is running fails with [shared.ErrFlowInProgress].
func (b *Bridge) SignIn(ctx context.Context, p Provider) (*session.Session, error) {
	if err := b.begin(); err != nil {
		return nil, err
	}

	sess, err := b.run(ctx, p)
	if err != nil {
		b.transition(StateFailed)
		b.logger.Warn("sign-in failed", "provider", providerName(p), "error", err)
		return nil, err
	}

	b.transition(StateSessionEstablished)
	b.logger.Info("sign-in complete", "provider", providerName(p), "user", sess.User.Email)
	return sess, nil
}

func (b *Bridge) begin() error {
	b.mu.Lock()
	from := b.state
	if !from.Terminal() {
		b.mu.Unlock()
		return fmt.Errorf("%w: currently %s", shared.ErrFlowInProgress, from)
	}
	b.state = StateInitializing
	b.mu.Unlock()

	b.notify(from, StateInitializing)
	return nil
}

func (b *Bridge) run(ctx context.Context, p Provider) (*session.Session, error) {
	if p == nil {
		return nil, &shared.IntegrationError{Provider: "unknown", Kind: shared.ErrProviderUnavailable}
	}

	if err := p.Initialize(ctx); err != nil {
		return nil, err
	}

	b.transition(StateAwaitingUserConsent)
	cred, err := p.PromptUser(ctx)
	if err != nil {
		return nil, err
	}

	b.transition(StateCredentialReceived)
	b.logger.Debug("credential received", "provider", cred.Provider)

	b.transition(StateExchanging)
	env, err := b.exchanger.Dispatch(ctx, p.Endpoint(), services.RequestOptions{
		Body:      cred.Payload,
		Anonymous: true,
	})
	if err != nil {
		return nil, err
	}

	auth, err := services.DecodeAuth(env)
	if err != nil {
		return nil, err
	}
	if auth.User.Provider == "" {
		auth.User.Provider = p.Name()
	}

	if err := b.store.Set(auth.Token, auth.User); err != nil {
		return nil, err
	}
	return &session.Session{Token: auth.Token, User: auth.User}, nil
}

func (b *Bridge) transition(to State) {
	b.mu.Lock()
	from := b.state
	b.state = to
	b.mu.Unlock()
	b.notify(from, to)
}

func (b *Bridge) notify(from, to State) {
	b.logger.Debug("state", "from", from, "to", to)
	if b.onTransition != nil {
		b.onTransition(from, to)
	}
}

func providerName(p Provider) string {
	if p == nil {
		return "unknown"
	}
	return p.Name()
}
