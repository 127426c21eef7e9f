package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"golang.org/x/oauth2"
)

func newTokenServer(t *testing.T, body map[string]any) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(body)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func testOAuthConfig(tokenURL string) *oauth2.Config {
	return &oauth2.Config{
		ClientID: "client",
		Endpoint: oauth2.Endpoint{AuthURL: "https://provider.example.com/auth", TokenURL: tokenURL, AuthStyle: oauth2.AuthStyleInParams},
	}
}

func TestOAuthHandler(t *testing.T) {
	t.Run("Routes uses configured path", func(t *testing.T) {
		h := NewOAuthHandler(nil, "state", "/apple/callback")
		if got := h.Routes(); len(got) != 1 || got[0] != "/apple/callback" {
			t.Errorf("unexpected routes %v", got)
		}
		if got := NewOAuthHandler(nil, "state", "").Routes()[0]; got != "/callback" {
			t.Errorf("expected default path, got %s", got)
		}
	})

	t.Run("code exchange extracts id token", func(t *testing.T) {
		tokens := newTokenServer(t, map[string]any{"access_token": "at", "token_type": "Bearer", "id_token": "the-id-token"})
		h := NewOAuthHandler(testOAuthConfig(tokens.URL), "xyz", "/callback")

		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/callback?state=xyz&code=abc", nil))

		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rec.Code)
		}
		res := <-h.Result()
		if res.Error() != nil || res.IDToken != "the-id-token" || res.Token.AccessToken != "at" {
			t.Errorf("unexpected result %+v", res)
		}
	})

	t.Run("exchange without id token fails", func(t *testing.T) {
		tokens := newTokenServer(t, map[string]any{"access_token": "at", "token_type": "Bearer"})
		h := NewOAuthHandler(testOAuthConfig(tokens.URL), "xyz", "/callback")

		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/callback?state=xyz&code=abc", nil))

		if rec.Code != http.StatusBadGateway {
			t.Errorf("expected 502, got %d", rec.Code)
		}
		if res := <-h.Result(); res.Error() == nil {
			t.Error("expected error result")
		}
	})

	t.Run("form post carries id token and user", func(t *testing.T) {
		h := NewOAuthHandler(nil, "xyz", "/callback")
		form := url.Values{"state": {"xyz"}, "id_token": {"apple-token"}, "user": {`{"email":"a@b.c"}`}}
		req := httptest.NewRequest(http.MethodPost, "/callback", strings.NewReader(form.Encode()))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)

		res := <-h.Result()
		if rec.Code != http.StatusOK || res.Error() != nil {
			t.Fatalf("unexpected outcome %d %v", rec.Code, res.Error())
		}
		if res.IDToken != "apple-token" || res.User != `{"email":"a@b.c"}` {
			t.Errorf("unexpected result %+v", res)
		}
	})

	t.Run("failures", func(t *testing.T) {
		tests := []struct {
			name   string
			target string
			status int
		}{
			{"state mismatch", "/callback?state=bad&code=abc", http.StatusBadRequest},
			{"provider error", "/callback?state=xyz&error=access_denied", http.StatusBadRequest},
			{"code without config", "/callback?state=xyz&code=abc", http.StatusBadRequest},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				h := NewOAuthHandler(nil, "xyz", "/callback")
				rec := httptest.NewRecorder()
				h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, tt.target, nil))

				if rec.Code != tt.status {
					t.Errorf("status = %d, want %d", rec.Code, tt.status)
				}
				if res := <-h.Result(); res.Error() == nil {
					t.Error("expected error result")
				}
			})
		}
	})

	t.Run("second callback is rejected", func(t *testing.T) {
		h := NewOAuthHandler(nil, "xyz", "/callback")
		h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/callback?state=xyz&id_token=one", nil))

		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/callback?state=xyz&id_token=two", nil))
		if rec.Code != http.StatusBadRequest {
			t.Errorf("expected 400, got %d", rec.Code)
		}

		res, ok := <-h.Result()
		if !ok || res.IDToken != "one" {
			t.Errorf("expected first result, got %+v", res)
		}
		if _, ok := <-h.Result(); ok {
			t.Error("expected channel closed after one result")
		}
	})
}
