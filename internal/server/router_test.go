package server

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestBasicRouter(t *testing.T) {
	var order []string
	mark := func(name string) Middleware {
		return func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				order = append(order, name)
				next.ServeHTTP(w, r)
			})
		}
	}

	router := NewBasicRouter()
	router.Use(mark("outer"), mark("inner"))
	router.Handle(http.MethodGet, "/ping", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		order = append(order, "handler")
		w.Write([]byte("pong"))
	}))
	router.Handler(NewOAuthHandler(nil, "s", "/cb"))
	router.NotFound(http.HandlerFunc(NotFound))

	t.Run("middleware runs in registration order", func(t *testing.T) {
		order = nil
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ping", nil))

		if rec.Body.String() != "pong" {
			t.Errorf("unexpected body %q", rec.Body.String())
		}
		if strings.Join(order, ",") != "outer,inner,handler" {
			t.Errorf("unexpected order %v", order)
		}
	})

	t.Run("method mismatch", func(t *testing.T) {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/ping", nil))

		if rec.Code != http.StatusMethodNotAllowed || rec.Header().Get("Allow") != http.MethodGet {
			t.Errorf("unexpected response %d %v", rec.Code, rec.Header())
		}
	})

	t.Run("several methods on one path", func(t *testing.T) {
		r := NewBasicRouter()
		r.Handle(http.MethodGet, "/meals", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.Write([]byte("list")) }))
		r.Handle("post", "/meals", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.Write([]byte("add")) }))

		for method, want := range map[string]string{http.MethodGet: "list", http.MethodPost: "add"} {
			rec := httptest.NewRecorder()
			r.ServeHTTP(rec, httptest.NewRequest(method, "/meals", nil))
			if rec.Body.String() != want {
				t.Errorf("%s: expected %q, got %q", method, want, rec.Body.String())
			}
		}

		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/meals", nil))
		if got := rec.Header().Get("Allow"); got != "GET, POST" {
			t.Errorf("expected Allow 'GET, POST', got %q", got)
		}
	})

	t.Run("routes are listed", func(t *testing.T) {
		got := router.Routes()
		if len(got) != 1 || got[0] != "GET /ping" {
			t.Errorf("unexpected routes %v", got)
		}
	})

	t.Run("custom handler routes", func(t *testing.T) {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/cb?state=s&id_token=t", nil))
		if rec.Code != http.StatusOK {
			t.Errorf("expected callback handled, got %d", rec.Code)
		}
	})

	t.Run("unknown path", func(t *testing.T) {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/nope", nil))

		if rec.Code != http.StatusNotFound || !strings.Contains(rec.Body.String(), `"success":false`) {
			t.Errorf("unexpected response %d %s", rec.Code, rec.Body.String())
		}
	})
}
