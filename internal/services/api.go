package services

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/desertthunder/nutrivision/internal/models"
	"github.com/desertthunder/nutrivision/internal/session"
	"github.com/desertthunder/nutrivision/internal/shared"
)

// Client exposes one method per backend endpoint on top of a [Dispatcher].
type Client struct {
	dispatcher *Dispatcher
	session    *session.Store
}

// NewClient creates a Client sharing store with dispatcher.
func NewClient(dispatcher *Dispatcher, store *session.Store) *Client {
	return &Client{dispatcher: dispatcher, session: store}
}

// Dispatcher returns the underlying dispatcher.
func (c *Client) Dispatcher() *Dispatcher { return c.dispatcher }

// Register creates an account and installs the returned session.
func (c *Client) Register(ctx context.Context, name, email, password string) (*models.AuthData, error) {
	env, err := c.dispatcher.Dispatch(ctx, EndpointRegister, RequestOptions{
		Body: RegisterRequest{Name: name, Email: email, Password: password},
	})
	if err != nil {
		return nil, err
	}
	return c.establish(env)
}

// Login authenticates with email and password and installs the returned session.
func (c *Client) Login(ctx context.Context, email, password string) (*models.AuthData, error) {
	env, err := c.dispatcher.Dispatch(ctx, EndpointLogin, RequestOptions{
		Body: LoginRequest{Email: email, Password: password},
	})
	if err != nil {
		return nil, err
	}
	return c.establish(env)
}

// Logout ends the local session.
func (c *Client) Logout() {
	c.session.Clear()
}

func (c *Client) establish(env *models.Envelope) (*models.AuthData, error) {
	auth, err := DecodeAuth(env)
	if err != nil {
		return nil, err
	}
	if err := c.session.Set(auth.Token, auth.User); err != nil {
		return nil, err
	}
	return auth, nil
}

// DecodeAuth extracts the token and profile from an auth envelope.
//
// An envelope that reports failure or carries no token is an [shared.APIError].
func DecodeAuth(env *models.Envelope) (*models.AuthData, error) {
	if !env.Success {
		msg := env.Failure()
		if msg == "" {
			msg = "authentication failed"
		}
		return nil, &shared.APIError{Status: 200, Message: msg}
	}

	var auth models.AuthData
	if err := env.Decode(&auth); err != nil {
		return nil, fmt.Errorf("%w: %v", shared.ErrAuthFailed, err)
	}
	if auth.Token == "" {
		return nil, fmt.Errorf("%w: response carried no session token", shared.ErrAuthFailed)
	}
	return &auth, nil
}

// Analyze uploads a food photo for analysis.
func (c *Client) Analyze(ctx context.Context, fileName string, image io.Reader) (*models.Envelope, error) {
	return c.dispatcher.DispatchMultipart(ctx, EndpointAnalyze, FileData{
		FieldName: "image",
		FileName:  fileName,
		Content:   image,
	})
}

// AnalyzeMock requests a canned analysis from the backend.
func (c *Client) AnalyzeMock(ctx context.Context) (*models.Envelope, error) {
	return c.dispatcher.Dispatch(ctx, EndpointAnalyzeMock, RequestOptions{Method: "POST"})
}

// SendMessage sends a chatbot message with the conversation so far.
func (c *Client) SendMessage(ctx context.Context, message string, history []models.ChatMessage) (*models.Envelope, error) {
	if history == nil {
		history = []models.ChatMessage{}
	}
	return c.dispatcher.Dispatch(ctx, EndpointChatMessage, RequestOptions{
		Body: ChatRequest{Message: message, ConversationHistory: history},
	})
}

// Suggestions fetches suggested chatbot prompts.
func (c *Client) Suggestions(ctx context.Context) (*models.Envelope, error) {
	return c.dispatcher.Dispatch(ctx, EndpointSuggestions, RequestOptions{})
}

// MealHistory lists the current user's meals.
func (c *Client) MealHistory(ctx context.Context) ([]models.Meal, error) {
	env, err := c.dispatcher.Dispatch(ctx, EndpointMealHistory, RequestOptions{})
	if err != nil {
		return nil, err
	}
	var meals []models.Meal
	if len(env.Data) == 0 {
		return meals, nil
	}
	if err := env.Decode(&meals); err != nil {
		return nil, err
	}
	return meals, nil
}

// AddMeal saves a meal. It requires a session and fails without calling the backend otherwise.
func (c *Client) AddMeal(ctx context.Context, meal any) (*models.Meal, error) {
	env, err := c.dispatcher.Dispatch(ctx, EndpointMealAdd, RequestOptions{Body: meal, RequireAuth: true})
	if err != nil {
		return nil, err
	}
	var saved models.Meal
	if err := env.Decode(&saved); err != nil {
		return nil, err
	}
	return &saved, nil
}

// MealStats fetches the current user's meal aggregates.
func (c *Client) MealStats(ctx context.Context) (*models.MealStats, error) {
	env, err := c.dispatcher.Dispatch(ctx, EndpointMealStats, RequestOptions{})
	if err != nil {
		return nil, err
	}
	var stats models.MealStats
	if err := env.Decode(&stats); err != nil {
		return nil, err
	}
	return &stats, nil
}

// Health fetches the backend health report.
func (c *Client) Health(ctx context.Context) (*models.Health, error) {
	env, err := c.dispatcher.Dispatch(ctx, EndpointHealth, RequestOptions{})
	if err != nil {
		return nil, err
	}
	var health models.Health
	if err := json.Unmarshal(env.Raw, &health); err != nil {
		return nil, fmt.Errorf("failed to decode health report: %w", err)
	}
	return &health, nil
}
