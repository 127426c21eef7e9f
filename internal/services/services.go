package services

import "github.com/desertthunder/nutrivision/internal/models"

// Backend endpoints, relative to the API base URL.
const (
	EndpointRegister      = "/auth/register"
	EndpointLogin         = "/auth/login"
	EndpointGoogle        = "/auth/google"
	EndpointApple         = "/auth/apple"
	EndpointAnalyze       = "/food-analysis/analyze"
	EndpointAnalyzeMock   = "/food-analysis/analyze-mock"
	EndpointChatMessage   = "/chatbot/message"
	EndpointSuggestions   = "/chatbot/suggestions"
	EndpointMealHistory   = "/meals/history"
	EndpointMealAdd       = "/meals/add"
	EndpointMealStats     = "/meals/stats"
	EndpointHealth        = "/health"
	DefaultBaseURL        = "http://localhost:5001/api"
	excerptLength         = 100
	maxResponseBodyLength = 10 << 20
)

// RegisterRequest is the body of [EndpointRegister].
type RegisterRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// LoginRequest is the body of [EndpointLogin].
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// ChatRequest is the body of [EndpointChatMessage].
type ChatRequest struct {
	Message             string               `json:"message"`
	ConversationHistory []models.ChatMessage `json:"conversationHistory"`
}
