package models

import (
	"encoding/json"
	"fmt"
	"time"
)

// Authentication provider tags.
const (
	ProviderLocal  = "local"
	ProviderGoogle = "google"
	ProviderApple  = "apple"
)

// Envelope is the wrapper all backend JSON responses conform to.
type Envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data,omitempty"`
	Error   string          `json:"error,omitempty"`
	Message string          `json:"message,omitempty"`

	// Raw is the complete response body, for endpoints whose fields sit beside the envelope's.
	Raw json.RawMessage `json:"-"`
}

// Decode unmarshals the envelope data into v.
func (e *Envelope) Decode(v any) error {
	if len(e.Data) == 0 {
		return fmt.Errorf("envelope has no data")
	}
	if err := json.Unmarshal(e.Data, v); err != nil {
		return fmt.Errorf("failed to decode envelope data: %w", err)
	}
	return nil
}

// Failure returns the server-reported failure message, preferring error over message.
func (e *Envelope) Failure() string {
	if e.Error != "" {
		return e.Error
	}
	return e.Message
}

// User is the profile associated with a session token.
type User struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Email    string `json:"email"`
	Provider string `json:"provider"`
}

// AuthData is the payload of successful register, login and federation responses.
type AuthData struct {
	Token string `json:"token"`
	User  User   `json:"user"`
}

// Account is a stored user including its password hash.
type Account struct {
	User
	PasswordHash string
	CreatedAt    time.Time
}

// Meal is a logged meal. Details carries the client's meal payload untouched.
type Meal struct {
	ID        string          `json:"id"`
	UserID    string          `json:"userId"`
	Name      string          `json:"name"`
	Calories  float64         `json:"calories"`
	Details   json.RawMessage `json:"details,omitempty"`
	CreatedAt time.Time       `json:"createdAt"`
}

// MealStats aggregates a user's meal history.
type MealStats struct {
	TotalMeals    int        `json:"totalMeals"`
	TotalCalories float64    `json:"totalCalories"`
	FirstMealAt   *time.Time `json:"firstMealAt,omitempty"`
	LastMealAt    *time.Time `json:"lastMealAt,omitempty"`
}

// Health is the body of the health endpoint.
type Health struct {
	Status   string `json:"status"`
	Message  string `json:"message"`
	Database string `json:"database"`
}

// ChatMessage is one turn of a chatbot conversation.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}
