package http

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/ircchat/internal/auth"
	"github.com/vovakirdan/ircchat/internal/core"
	"github.com/vovakirdan/ircchat/internal/store/sqlite"
)

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

type testEnv struct {
	hub    *core.Hub
	auth   *auth.Service
	router *gin.Engine
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	st, err := sqlite.New(":memory:")
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })

	authService := auth.NewService(st, &auth.JWTConfig{
		Secret: []byte("test-secret"),
		Issuer: "test",
		TTL:    time.Hour,
	})

	logger := zerolog.Nop()
	hub := core.NewHub(core.Options{ServerName: "test.server"}, authService, &logger)
	t.Cleanup(hub.Shutdown)

	return &testEnv{
		hub:    hub,
		auth:   authService,
		router: NewRouter(hub, authService, st, &logger),
	}
}

func (e *testEnv) do(t *testing.T, method, path string, body any, token string) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	if err := json.Unmarshal(w.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode %q: %v", w.Body.String(), err)
	}
	return out
}

func TestHealth(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, http.MethodGet, "/health", nil, "")
	if w.Code != http.StatusOK || w.Body.String() != "ok" {
		t.Fatalf("unexpected health response: %d %q", w.Code, w.Body.String())
	}
}

func TestChannelsAndSessions(t *testing.T) {
	env := newTestEnv(t)
	env.hub.CreateChannel("#main", "Main channel")
	env.hub.CreateChannel("#help", "Help channel")

	s := env.hub.Connect("10.0.0.7", nopCloser{})
	for _, line := range []string{"REGISTER alice secret1", "JOIN #main"} {
		if err := env.hub.Handle(s, line); err != nil {
			t.Fatalf("handle %q: %v", line, err)
		}
	}

	w := env.do(t, http.MethodGet, "/channels", nil, "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	channels := decode[[]ChannelResponse](t, w)
	if len(channels) != 2 || channels[0].Name != "#help" || channels[1].Name != "#main" {
		t.Fatalf("unexpected channels: %+v", channels)
	}
	if channels[1].Members != 1 || channels[1].Topic != "Main channel" {
		t.Fatalf("unexpected #main: %+v", channels[1])
	}

	w = env.do(t, http.MethodGet, "/sessions", nil, "")
	sessions := decode[[]SessionResponse](t, w)
	if len(sessions) != 1 {
		t.Fatalf("expected one session, got %+v", sessions)
	}
	got := sessions[0]
	if got.Nickname != "alice" || got.Host != "10.0.0.7" || len(got.Channels) != 1 || got.Channels[0] != "#main" {
		t.Fatalf("unexpected session: %+v", got)
	}
}

func TestRegisterLoginMe(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, http.MethodPost, "/api/register", RegisterRequest{Username: "bob", Password: "secret1"}, "")
	if w.Code != http.StatusCreated {
		t.Fatalf("register: expected 201, got %d %s", w.Code, w.Body.String())
	}

	w = env.do(t, http.MethodPost, "/api/register", RegisterRequest{Username: "BOB", Password: "secret1"}, "")
	if w.Code != http.StatusConflict {
		t.Fatalf("duplicate register: expected 409, got %d", w.Code)
	}

	w = env.do(t, http.MethodPost, "/api/login", LoginRequest{Username: "bob", Password: "wrong"}, "")
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("bad login: expected 401, got %d", w.Code)
	}

	w = env.do(t, http.MethodPost, "/api/login", LoginRequest{Username: "bob", Password: "secret1"}, "")
	if w.Code != http.StatusOK {
		t.Fatalf("login: expected 200, got %d", w.Code)
	}
	token := decode[AuthResponse](t, w).Token
	if token == "" {
		t.Fatal("expected token")
	}

	w = env.do(t, http.MethodGet, "/api/me", nil, token)
	if w.Code != http.StatusOK {
		t.Fatalf("me: expected 200, got %d %s", w.Code, w.Body.String())
	}
	me := decode[UserResponse](t, w)
	if me.Username != "bob" || me.Email != "bob@example.com" || me.Online {
		t.Fatalf("unexpected user: %+v", me)
	}
}

func TestRegisterValidation(t *testing.T) {
	env := newTestEnv(t)

	tests := []struct {
		name string
		body RegisterRequest
	}{
		{name: "short password", body: RegisterRequest{Username: "carol", Password: "abc"}},
		{name: "bad nick", body: RegisterRequest{Username: "9carol", Password: "secret1"}},
		{name: "bad email", body: RegisterRequest{Username: "carol", Password: "secret1", Email: "nope"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := env.do(t, http.MethodPost, "/api/register", tt.body, "")
			if w.Code != http.StatusBadRequest {
				t.Fatalf("expected 400, got %d", w.Code)
			}
		})
	}
}

func TestMeRequiresToken(t *testing.T) {
	env := newTestEnv(t)

	tests := []struct {
		name   string
		header string
	}{
		{name: "missing", header: ""},
		{name: "wrong scheme", header: "Basic abc"},
		{name: "garbage token", header: "Bearer abc"},
		{name: "empty token", header: "Bearer   "},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/me", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()
			env.router.ServeHTTP(w, req)
			if w.Code != http.StatusUnauthorized {
				t.Fatalf("expected 401, got %d", w.Code)
			}
		})
	}
}

func TestBearerToken(t *testing.T) {
	tests := []struct {
		header string
		want   string
		ok     bool
	}{
		{header: "Bearer abc", want: "abc", ok: true},
		{header: "bearer  abc ", want: "abc", ok: true},
		{header: "Basic abc"},
		{header: "Bearer"},
		{header: ""},
	}
	for _, tt := range tests {
		got, ok := bearerToken(tt.header)
		if got != tt.want || ok != tt.ok {
			t.Errorf("bearerToken(%q) = %q, %v; want %q, %v", tt.header, got, ok, tt.want, tt.ok)
		}
	}
}
