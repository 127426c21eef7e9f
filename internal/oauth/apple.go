package oauth

import (
	"context"
	"fmt"

	"github.com/desertthunder/nutrivision/internal/models"
	"github.com/desertthunder/nutrivision/internal/services"
	"github.com/desertthunder/nutrivision/internal/shared"
)

// AppleConfig is passed to [AppleID.Init].
type AppleConfig struct {
	ClientID    string
	Scope       string
	RedirectURI string
	UsePopup    bool
}

// AppleName is the name Apple shares on first sign-in only.
type AppleName struct {
	FirstName string `json:"firstName,omitempty"`
	LastName  string `json:"lastName,omitempty"`
}

// AppleUser is the user object Apple returns alongside the ID token.
type AppleUser struct {
	Name  *AppleName `json:"name,omitempty"`
	Email string     `json:"email,omitempty"`
}

// AppleSignInResponse is the result of [AppleID.SignIn].
type AppleSignInResponse struct {
	IDToken string
	User    *AppleUser
}

// AppleID is a Sign in with Apple SDK whose SignIn blocks until the user finishes.
type AppleID interface {
	Init(cfg AppleConfig) error
	SignIn(ctx context.Context) (*AppleSignInResponse, error)
}

// AppleExchangeRequest is the body posted to the Apple exchange endpoint.
type AppleExchangeRequest struct {
	IDToken string     `json:"id_token"`
	User    *AppleUser `json:"user,omitempty"`
}

// AppleProvider adapts an [AppleID] to [Provider].
type AppleProvider struct {
	sdk AppleID
	cfg AppleConfig
}

// NewAppleProvider creates a provider around sdk. A nil sdk makes Initialize fail.
func NewAppleProvider(sdk AppleID, clientID, redirectURI string) *AppleProvider {
	return &AppleProvider{
		sdk: sdk,
		cfg: AppleConfig{ClientID: clientID, Scope: "name email", RedirectURI: redirectURI, UsePopup: true},
	}
}

func (p *AppleProvider) Name() string     { return models.ProviderApple }
func (p *AppleProvider) Endpoint() string { return services.EndpointApple }

func (p *AppleProvider) Initialize(ctx context.Context) error {
	if p == nil || p.sdk == nil {
		return &shared.IntegrationError{Provider: models.ProviderApple, Kind: shared.ErrProviderUnavailable}
	}
	if p.cfg.ClientID == "" {
		return fmt.Errorf("%w: apple client id is not configured", shared.ErrMissingCredentials)
	}
	if err := p.sdk.Init(p.cfg); err != nil {
		return fmt.Errorf("apple sign-in init: %w", err)
	}
	return nil
}

func (p *AppleProvider) PromptUser(ctx context.Context) (Credential, error) {
	resp, err := p.sdk.SignIn(ctx)
	if err != nil {
		return Credential{}, fmt.Errorf("apple sign-in: %w", err)
	}
	if resp == nil || resp.IDToken == "" {
		return Credential{}, fmt.Errorf("%w: apple returned no id_token", shared.ErrAuthFailed)
	}

	return Credential{
		Provider: models.ProviderApple,
		Payload:  AppleExchangeRequest{IDToken: resp.IDToken, User: resp.User},
	}, nil
}
