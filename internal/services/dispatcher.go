package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/nutrivision/internal/models"
	"github.com/desertthunder/nutrivision/internal/session"
	"github.com/desertthunder/nutrivision/internal/shared"
	"github.com/google/uuid"
	"golang.org/x/time/rate"
)

// Dispatcher issues backend calls and classifies their responses.
type Dispatcher struct {
	baseURL    string
	httpClient *http.Client
	session    *session.Store
	limiter    *rate.Limiter
	logger     *log.Logger
}

// DispatcherOpts contains configuration options for creating a [Dispatcher].
type DispatcherOpts struct {
	BaseURL    string
	HTTPClient *http.Client
	Session    *session.Store
	Logger     *log.Logger
	RateLimit  float64 // requests per second; 0 disables limiting
}

// NewDispatcher creates a Dispatcher. Session is required.
func NewDispatcher(opts DispatcherOpts) *Dispatcher {
	if opts.BaseURL == "" {
		opts.BaseURL = DefaultBaseURL
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = http.DefaultClient
	}
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}

	d := &Dispatcher{
		baseURL:    strings.TrimRight(opts.BaseURL, "/"),
		httpClient: opts.HTTPClient,
		session:    opts.Session,
		logger:     opts.Logger,
	}
	if opts.RateLimit > 0 {
		d.limiter = rate.NewLimiter(rate.Limit(opts.RateLimit), 1)
	}
	return d
}

// RequestOptions describes a JSON call.
type RequestOptions struct {
	Method      string            // defaults to GET, or POST when Body is set
	Body        any               // marshalled as JSON when non-nil
	Headers     map[string]string // extra headers, applied last
	RequireAuth bool              // fail with a missing-token error instead of calling without a session
	Anonymous   bool              // never attach the session token; a 401 then leaves the session alone
}

// FileData is a file sent by [Dispatcher.DispatchMultipart].
type FileData struct {
	FieldName string // form field, defaults to "image"
	FileName  string
	Content   io.Reader
}

// Dispatch performs a JSON call to endpoint and returns the parsed envelope.
func (d *Dispatcher) Dispatch(ctx context.Context, endpoint string, opts RequestOptions) (*models.Envelope, error) {
	token := d.currentToken(opts.Anonymous)
	if opts.RequireAuth && token == "" {
		return nil, &shared.AuthError{Kind: shared.ErrMissingToken, Message: "please login first"}
	}

	method := opts.Method
	var body io.Reader
	if opts.Body != nil {
		data, err := json.Marshal(opts.Body)
		if err != nil {
			return nil, fmt.Errorf("%w: failed to encode request body: %v", shared.ErrInvalidInput, err)
		}
		body = bytes.NewReader(data)
		if method == "" {
			method = http.MethodPost
		}
	}
	if method == "" {
		method = http.MethodGet
	}

	req, err := http.NewRequestWithContext(ctx, method, d.baseURL+endpoint, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	for k, v := range opts.Headers {
		req.Header.Set(k, v)
	}

	return d.do(req, token != "")
}

// DispatchMultipart uploads file to endpoint as multipart form data.
//
// It shares classification with [Dispatcher.Dispatch] but sends no JSON content type.
func (d *Dispatcher) DispatchMultipart(ctx context.Context, endpoint string, file FileData) (*models.Envelope, error) {
	if file.Content == nil {
		return nil, fmt.Errorf("%w: no file content", shared.ErrInvalidInput)
	}
	if file.FieldName == "" {
		file.FieldName = "image"
	}
	if file.FileName == "" {
		file.FileName = "upload"
	}

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile(file.FieldName, file.FileName)
	if err != nil {
		return nil, fmt.Errorf("failed to create form file: %w", err)
	}
	if _, err := io.Copy(part, file.Content); err != nil {
		return nil, fmt.Errorf("failed to read upload: %w", err)
	}
	if err := mw.Close(); err != nil {
		return nil, fmt.Errorf("failed to finish multipart body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.baseURL+endpoint, &buf)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	token := d.currentToken(false)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	return d.do(req, token != "")
}

func (d *Dispatcher) currentToken(anonymous bool) string {
	if anonymous || d.session == nil {
		return ""
	}
	return d.session.Token()
}

// do sends req and classifies the response. sentToken reports whether req carried the session token.
func (d *Dispatcher) do(req *http.Request, sentToken bool) (*models.Envelope, error) {
	if d.limiter != nil {
		if err := d.limiter.Wait(req.Context()); err != nil {
			return nil, fmt.Errorf("rate limiter: %w", err)
		}
	}

	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-ID", uuid.NewString())

	start := time.Now()
	resp, err := d.httpClient.Do(req)
	if err != nil {
		return nil, &shared.TransportError{Kind: shared.ErrNetworkUnreachable, Err: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBodyLength))
	if err != nil {
		return nil, &shared.TransportError{Kind: shared.ErrNetworkUnreachable, Err: fmt.Errorf("failed to read response: %w", err)}
	}

	d.logger.Debug("api call",
		"method", req.Method,
		"path", req.URL.Path,
		"status", resp.StatusCode,
		"duration", time.Since(start),
		"request_id", req.Header.Get("X-Request-ID"),
	)

	env, err := decodeEnvelope(raw)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, d.statusError(resp.StatusCode, env, sentToken)
	}

	return env, nil
}

func (d *Dispatcher) statusError(status int, env *models.Envelope, sentToken bool) error {
	if status == http.StatusUnauthorized {
		msg := env.Failure()
		if msg == "" {
			msg = "please login again"
		}
		if sentToken && d.session != nil {
			d.session.Clear()
			d.logger.Warn("session invalidated by server", "error", msg)
		}
		return &shared.AuthError{Kind: shared.ErrSessionExpired, Message: msg}
	}

	msg := env.Failure()
	if msg == "" {
		msg = fmt.Sprintf("request failed (status %d)", status)
	}
	return &shared.APIError{Status: status, Message: msg}
}

// bodyKind is the classification of a raw response body.
type bodyKind int

const (
	bodyJSON bodyKind = iota
	bodyHTML
	bodyInvalidJSON
)

// classifyBody decides how raw must be interpreted. HTML is detected by prefix only.
func classifyBody(raw []byte) bodyKind {
	trimmed := bytes.TrimSpace(raw)
	prefix := trimmed
	if len(prefix) > len("<!doctype") {
		prefix = prefix[:len("<!doctype")]
	}
	lower := bytes.ToLower(prefix)
	if bytes.HasPrefix(lower, []byte("<!doctype")) || bytes.HasPrefix(lower, []byte("<html")) {
		return bodyHTML
	}
	if !json.Valid(trimmed) {
		return bodyInvalidJSON
	}
	return bodyJSON
}

// decodeEnvelope classifies raw, then parses it.
func decodeEnvelope(raw []byte) (*models.Envelope, error) {
	switch classifyBody(raw) {
	case bodyHTML:
		return nil, &shared.TransportError{Kind: shared.ErrHTMLErrorPage}
	case bodyInvalidJSON:
		return nil, &shared.TransportError{Kind: shared.ErrInvalidJSON, Excerpt: shared.Excerpt(string(raw), excerptLength)}
	}

	var env models.Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, &shared.TransportError{
			Kind:    shared.ErrInvalidJSON,
			Excerpt: shared.Excerpt(string(raw), excerptLength),
			Err:     err,
		}
	}
	env.Raw = raw
	return &env, nil
}
