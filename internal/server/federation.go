package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/desertthunder/nutrivision/internal/shared"
	"github.com/go-jose/go-jose/v4"
	"github.com/golang-jwt/jwt/v5"
)

const (
	googleJWKSURL = "https://www.googleapis.com/oauth2/v3/certs"
	appleJWKSURL  = "https://appleid.apple.com/auth/keys"

	defaultKeyCacheTTL = time.Hour
)

var (
	googleIssuers = []string{"accounts.google.com", "https://accounts.google.com"}
	appleIssuers  = []string{"https://appleid.apple.com"}
)

// Identity is what a verified provider ID token asserts about its user.
type Identity struct {
	Subject string
	Email   string
	Name    string
}

// IdentityVerifier checks a provider ID token.
type IdentityVerifier interface {
	Verify(ctx context.Context, rawToken string) (*Identity, error)
}

// idTokenClaims covers Google and Apple ID tokens. Apple sends email_verified as a string.
type idTokenClaims struct {
	Email         string `json:"email"`
	EmailVerified any    `json:"email_verified"`
	Name          string `json:"name"`
	jwt.RegisteredClaims
}

func (c *idTokenClaims) emailUnverified() bool {
	switch v := c.EmailVerified.(type) {
	case bool:
		return !v
	case string:
		return strings.EqualFold(v, "false")
	default:
		return false
	}
}

// JWKSVerifierOpts configures a [JWKSVerifier].
type JWKSVerifierOpts struct {
	JWKSURL    string
	Issuers    []string
	Audience   string // the OAuth client ID tokens must be issued to
	HTTPClient *http.Client
	CacheTTL   time.Duration
}

// JWKSVerifier verifies RS256 ID tokens against a provider's published key set.
//
// Keys are cached for CacheTTL; an unknown key ID forces one refetch.
type JWKSVerifier struct {
	opts JWKSVerifierOpts
	now  func() time.Time

	mu      sync.Mutex
	keys    *jose.JSONWebKeySet
	fetched time.Time
}

func NewJWKSVerifier(opts JWKSVerifierOpts) *JWKSVerifier {
	if opts.HTTPClient == nil {
		opts.HTTPClient = &http.Client{Timeout: 10 * time.Second}
	}
	if opts.CacheTTL <= 0 {
		opts.CacheTTL = defaultKeyCacheTTL
	}
	return &JWKSVerifier{opts: opts, now: time.Now}
}

// NewGoogleVerifier verifies Google Identity Services credentials issued to clientID.
func NewGoogleVerifier(clientID string, client *http.Client) *JWKSVerifier {
	return NewJWKSVerifier(JWKSVerifierOpts{JWKSURL: googleJWKSURL, Issuers: googleIssuers, Audience: clientID, HTTPClient: client})
}

// NewAppleVerifier verifies Sign in with Apple ID tokens issued to the service ID clientID.
func NewAppleVerifier(clientID string, client *http.Client) *JWKSVerifier {
	return NewJWKSVerifier(JWKSVerifierOpts{JWKSURL: appleJWKSURL, Issuers: appleIssuers, Audience: clientID, HTTPClient: client})
}

// Verify checks signature, audience, issuer and expiry. Any rejection wraps [shared.ErrAuthFailed].
func (v *JWKSVerifier) Verify(ctx context.Context, rawToken string) (*Identity, error) {
	if v.opts.Audience == "" {
		return nil, fmt.Errorf("%w: no client ID configured", shared.ErrMissingCredentials)
	}

	var claims idTokenClaims
	_, err := jwt.ParseWithClaims(rawToken, &claims,
		func(t *jwt.Token) (any, error) {
			kid, _ := t.Header["kid"].(string)
			return v.key(ctx, kid)
		},
		jwt.WithValidMethods([]string{jwt.SigningMethodRS256.Alg()}),
		jwt.WithAudience(v.opts.Audience),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(v.now),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", shared.ErrAuthFailed, err)
	}

	if !slices.Contains(v.opts.Issuers, claims.Issuer) {
		return nil, fmt.Errorf("%w: unexpected issuer %q", shared.ErrAuthFailed, claims.Issuer)
	}
	if claims.Subject == "" {
		return nil, fmt.Errorf("%w: token has no subject", shared.ErrAuthFailed)
	}
	if claims.emailUnverified() {
		return nil, fmt.Errorf("%w: email is not verified", shared.ErrAuthFailed)
	}

	return &Identity{Subject: claims.Subject, Email: claims.Email, Name: claims.Name}, nil
}

func (v *JWKSVerifier) key(ctx context.Context, kid string) (any, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	stale := v.keys == nil || v.now().Sub(v.fetched) > v.opts.CacheTTL
	if !stale {
		if k := lookupKey(v.keys, kid); k != nil {
			return k, nil
		}
	}

	keys, err := v.fetch(ctx)
	if err != nil {
		return nil, err
	}
	v.keys, v.fetched = keys, v.now()

	if k := lookupKey(keys, kid); k != nil {
		return k, nil
	}
	return nil, fmt.Errorf("no signing key with id %q", kid)
}

func (v *JWKSVerifier) fetch(ctx context.Context) (*jose.JSONWebKeySet, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, v.opts.JWKSURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create key set request: %w", err)
	}

	resp, err := v.opts.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch key set: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("failed to fetch key set: status %d", resp.StatusCode)
	}

	var keys jose.JSONWebKeySet
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxRequestBody)).Decode(&keys); err != nil {
		return nil, fmt.Errorf("failed to decode key set: %w", err)
	}
	return &keys, nil
}

func lookupKey(keys *jose.JSONWebKeySet, kid string) any {
	if keys == nil {
		return nil
	}
	for _, k := range keys.Key(kid) {
		if k.Valid() && k.IsPublic() {
			return k.Key
		}
	}
	return nil
}

type googleAuthRequest struct {
	Credential string `json:"credential"`
}

type appleAuthRequest struct {
	IDToken string `json:"id_token"`
	User    *struct {
		Name *struct {
			FirstName string `json:"firstName"`
			LastName  string `json:"lastName"`
		} `json:"name"`
		Email string `json:"email"`
	} `json:"user"`
}

func (a *API) googleAuth(w http.ResponseWriter, r *http.Request) {
	var req googleAuthRequest
	if err := decodeBody(r, &req); err != nil || req.Credential == "" {
		writeFailure(w, http.StatusBadRequest, "Google credential is required")
		return
	}
	a.federate(w, r, "Google", a.google, req.Credential, "")
}

// appleAuth accepts the user object Apple sends on first consent only; its name fills a missing token name.
func (a *API) appleAuth(w http.ResponseWriter, r *http.Request) {
	var req appleAuthRequest
	if err := decodeBody(r, &req); err != nil || req.IDToken == "" {
		writeFailure(w, http.StatusBadRequest, "Apple ID token is required")
		return
	}

	var name string
	if req.User != nil && req.User.Name != nil {
		name = strings.TrimSpace(req.User.Name.FirstName + " " + req.User.Name.LastName)
	}
	a.federate(w, r, "Apple", a.apple, req.IDToken, name)
}

func (a *API) federate(w http.ResponseWriter, r *http.Request, label string, verifier IdentityVerifier, rawToken, fallbackName string) {
	provider := strings.ToLower(label)
	if verifier == nil {
		writeFailure(w, http.StatusServiceUnavailable, label+" sign-in is not configured")
		return
	}

	ident, err := verifier.Verify(r.Context(), rawToken)
	switch {
	case errors.Is(err, shared.ErrMissingCredentials):
		writeFailure(w, http.StatusServiceUnavailable, label+" sign-in is not configured")
		return
	case err != nil:
		a.logger.Warn("rejected identity token", "provider", provider, "error", err)
		writeFailure(w, http.StatusUnauthorized, "Invalid "+label+" credential")
		return
	}

	if ident.Email == "" {
		writeFailure(w, http.StatusBadRequest, label+" account has no email address")
		return
	}
	if ident.Name == "" {
		ident.Name = fallbackName
	}

	user, err := a.upsertFederated(r.Context(), provider, ident)
	if err != nil {
		a.fail(w, r, "federated sign-in", err)
		return
	}
	a.respondWithSession(w, r, http.StatusOK, user)
}
