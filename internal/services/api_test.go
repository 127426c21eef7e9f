package services

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/desertthunder/nutrivision/internal/models"
	"github.com/desertthunder/nutrivision/internal/shared"
	tu "github.com/desertthunder/nutrivision/internal/testing"
)

func newTestClient(t *testing.T, handler http.Handler) (*Client, *tu.RecordingPersister) {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	store, persister := tu.NewStore(t)
	d := NewDispatcher(DispatcherOpts{BaseURL: server.URL, Session: store, Logger: shared.NewLogger(io.Discard)})
	return NewClient(d, store), persister
}

func TestClient(t *testing.T) {
	ctx := context.Background()

	t.Run("Login installs session", func(t *testing.T) {
		client, persister := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path != EndpointLogin {
				t.Errorf("unexpected path %s", r.URL.Path)
			}
			var req LoginRequest
			json.NewDecoder(r.Body).Decode(&req)
			if req.Email != "alice@example.com" || req.Password != "pw" {
				t.Errorf("unexpected login body %+v", req)
			}
			io.WriteString(w, `{"success":true,"data":{"token":"jwt","user":{"id":"u1","name":"Alice","email":"alice@example.com","provider":"local"}}}`)
		}))

		auth, err := client.Login(ctx, "alice@example.com", "pw")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if auth.Token != "jwt" || auth.User != testUser {
			t.Errorf("unexpected auth data %+v", auth)
		}

		sess, ok := client.session.Get()
		if !ok || sess.Token != "jwt" || sess.User != testUser {
			t.Errorf("expected session installed, got %+v", sess)
		}
		if saves, _ := persister.Counts(); saves != 1 {
			t.Errorf("expected one save, got %d", saves)
		}
	})

	t.Run("Register with failure envelope leaves store empty", func(t *testing.T) {
		client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			io.WriteString(w, `{"success":false,"error":"Email already registered"}`)
		}))

		_, err := client.Register(ctx, "Alice", "alice@example.com", "pw")

		var apiErr *shared.APIError
		if !errors.As(err, &apiErr) || apiErr.Message != "Email already registered" {
			t.Fatalf("expected APIError with server message, got %v", err)
		}
		if _, ok := client.session.Get(); ok {
			t.Error("expected no session")
		}
	})

	t.Run("Login without token in data", func(t *testing.T) {
		client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			io.WriteString(w, `{"success":true,"data":{"user":{"id":"u1"}}}`)
		}))

		_, err := client.Login(ctx, "a", "b")
		if !errors.Is(err, shared.ErrAuthFailed) {
			t.Errorf("expected ErrAuthFailed, got %v", err)
		}
		if _, ok := client.session.Get(); ok {
			t.Error("expected no session")
		}
	})

	t.Run("Logout clears session", func(t *testing.T) {
		client, _ := newTestClient(t, http.NotFoundHandler())
		client.session.Set("tok", testUser)

		client.Logout()
		client.Logout()

		if _, ok := client.session.Get(); ok {
			t.Error("expected no session")
		}
	})

	t.Run("AddMeal requires session", func(t *testing.T) {
		called := false
		client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			called = true
		}))

		_, err := client.AddMeal(ctx, map[string]any{"name": "Salad", "calories": 320})
		if !errors.Is(err, shared.ErrMissingToken) {
			t.Errorf("expected ErrMissingToken, got %v", err)
		}
		if called {
			t.Error("expected no request to reach the backend")
		}
	})

	t.Run("AddMeal with session", func(t *testing.T) {
		client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodPost || r.URL.Path != EndpointMealAdd {
				t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
			}
			w.WriteHeader(http.StatusCreated)
			io.WriteString(w, `{"success":true,"data":{"id":"m1","userId":"u1","name":"Salad","calories":320,"createdAt":"2026-10-18T12:00:00Z"}}`)
		}))
		client.session.Set("tok", testUser)

		meal, err := client.AddMeal(ctx, map[string]any{"name": "Salad", "calories": 320})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if meal.ID != "m1" || meal.Calories != 320 {
			t.Errorf("unexpected meal %+v", meal)
		}
	})

	t.Run("MealHistory and MealStats", func(t *testing.T) {
		client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			switch r.URL.Path {
			case EndpointMealHistory:
				io.WriteString(w, `{"success":true,"data":[{"id":"m1","name":"Soup"},{"id":"m2","name":"Bread"}]}`)
			case EndpointMealStats:
				io.WriteString(w, `{"success":true,"data":{"totalMeals":2,"totalCalories":550}}`)
			default:
				http.NotFound(w, r)
			}
		}))
		client.session.Set("tok", testUser)

		meals, err := client.MealHistory(ctx)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(meals) != 2 || meals[1].Name != "Bread" {
			t.Errorf("unexpected meals %+v", meals)
		}

		stats, err := client.MealStats(ctx)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if stats.TotalMeals != 2 || stats.TotalCalories != 550 {
			t.Errorf("unexpected stats %+v", stats)
		}
	})

	t.Run("SendMessage sends empty history as array", func(t *testing.T) {
		client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			body, _ := io.ReadAll(r.Body)
			if !strings.Contains(string(body), `"conversationHistory":[]`) {
				t.Errorf("expected empty history array, got %s", body)
			}
			io.WriteString(w, `{"success":true,"data":{"reply":"Eat more greens"}}`)
		}))

		env, err := client.SendMessage(ctx, "what should I eat?", nil)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !env.Success {
			t.Error("expected success")
		}
	})

	t.Run("Analyze and AnalyzeMock", func(t *testing.T) {
		client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			switch r.URL.Path {
			case EndpointAnalyze:
				if _, _, err := r.FormFile("image"); err != nil {
					t.Errorf("expected image upload: %v", err)
				}
			case EndpointAnalyzeMock:
				if r.Method != http.MethodPost {
					t.Errorf("expected POST, got %s", r.Method)
				}
			}
			io.WriteString(w, `{"success":true,"data":{}}`)
		}))

		if _, err := client.Analyze(ctx, "plate.png", strings.NewReader("png")); err != nil {
			t.Errorf("Analyze: unexpected error: %v", err)
		}
		if _, err := client.AnalyzeMock(ctx); err != nil {
			t.Errorf("AnalyzeMock: unexpected error: %v", err)
		}
	})

	t.Run("Health", func(t *testing.T) {
		client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			io.WriteString(w, `{"status":"OK","message":"NutriVision API is running","database":"disconnected"}`)
		}))

		health, err := client.Health(ctx)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		want := models.Health{Status: "OK", Message: "NutriVision API is running", Database: "disconnected"}
		if *health != want {
			t.Errorf("expected %+v, got %+v", want, *health)
		}
	})
}
