package oauth

import (
	"context"
	"fmt"
	"sync"

	"github.com/desertthunder/nutrivision/internal/models"
	"github.com/desertthunder/nutrivision/internal/services"
	"github.com/desertthunder/nutrivision/internal/shared"
)

// GoogleIDConfig is passed to [GoogleIdentity.Initialize].
type GoogleIDConfig struct {
	ClientID string
}

// GoogleCredentialResponse is delivered to the callback registered with [GoogleIdentity.Initialize].
type GoogleCredentialResponse struct {
	Credential string // signed ID token
	Err        error
}

// GoogleIdentity is a callback-style Google sign-in SDK.
//
// Prompt starts the consent flow and returns without waiting; the outcome arrives through the callback.
type GoogleIdentity interface {
	Initialize(cfg GoogleIDConfig, callback func(GoogleCredentialResponse)) error
	Prompt(ctx context.Context) error
}

// GoogleExchangeRequest is the body posted to the Google exchange endpoint.
type GoogleExchangeRequest struct {
	Credential string `json:"credential"`
}

// GoogleProvider adapts a [GoogleIdentity] to [Provider].
type GoogleProvider struct {
	sdk      GoogleIdentity
	clientID string

	mu      sync.Mutex
	pending *singleShot[GoogleCredentialResponse]
}

// NewGoogleProvider creates a provider around sdk. A nil sdk makes Initialize fail.
func NewGoogleProvider(sdk GoogleIdentity, clientID string) *GoogleProvider {
	return &GoogleProvider{sdk: sdk, clientID: clientID}
}

func (p *GoogleProvider) Name() string     { return models.ProviderGoogle }
func (p *GoogleProvider) Endpoint() string { return services.EndpointGoogle }

// Initialize registers a fresh single-shot callback with the SDK.
func (p *GoogleProvider) Initialize(ctx context.Context) error {
	if p == nil || p.sdk == nil {
		return &shared.IntegrationError{Provider: models.ProviderGoogle, Kind: shared.ErrProviderUnavailable}
	}
	if p.clientID == "" {
		return fmt.Errorf("%w: google client id is not configured", shared.ErrMissingCredentials)
	}

	pending := newSingleShot[GoogleCredentialResponse]()
	if err := p.sdk.Initialize(GoogleIDConfig{ClientID: p.clientID}, pending.resolve); err != nil {
		return fmt.Errorf("google sign-in initialize: %w", err)
	}

	p.mu.Lock()
	p.pending = pending
	p.mu.Unlock()
	return nil
}

// PromptUser triggers the SDK prompt and waits for its callback.
func (p *GoogleProvider) PromptUser(ctx context.Context) (Credential, error) {
	p.mu.Lock()
	pending := p.pending
	p.pending = nil
	p.mu.Unlock()

	if pending == nil {
		return Credential{}, fmt.Errorf("google sign-in: prompt before initialize")
	}

	if err := p.sdk.Prompt(ctx); err != nil {
		return Credential{}, fmt.Errorf("google sign-in prompt: %w", err)
	}

	resp, err := pending.wait(ctx)
	if err != nil {
		return Credential{}, fmt.Errorf("google sign-in: %w", err)
	}
	if resp.Err != nil {
		return Credential{}, fmt.Errorf("google sign-in: %w", resp.Err)
	}
	if resp.Credential == "" {
		return Credential{}, fmt.Errorf("%w: google returned no credential", shared.ErrAuthFailed)
	}

	return Credential{
		Provider: models.ProviderGoogle,
		Payload:  GoogleExchangeRequest{Credential: resp.Credential},
	}, nil
}
