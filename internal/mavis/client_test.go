package mavis_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"hdx/internal/mavis"
	"hdx/internal/services"
)

type recordedRequest struct {
	Method      string
	Path        string
	Query       map[string]string
	ContentType string
	Body        string
	Cookie      string
	Auth        string
	RequestID   string
}

type fakeServer struct {
	t *testing.T

	mu       sync.Mutex
	requests []recordedRequest
	handler  func(w http.ResponseWriter, r *http.Request, body string)
}

func newFakeServer(t *testing.T, handler func(w http.ResponseWriter, r *http.Request, body string)) (*fakeServer, *httptest.Server) {
	t.Helper()
	fs := &fakeServer{t: t, handler: handler}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		data, _ := io.ReadAll(r.Body)
		query := map[string]string{}
		for key, values := range r.URL.Query() {
			query[key] = values[0]
		}
		rec := recordedRequest{
			Method:      r.Method,
			Path:        r.URL.Path,
			Query:       query,
			ContentType: r.Header.Get("Content-Type"),
			Body:        string(data),
			Auth:        r.Header.Get("Authorization"),
			RequestID:   r.Header.Get("X-Request-ID"),
		}
		if c, err := r.Cookie("connect.sid"); err == nil {
			rec.Cookie = c.Value
		}
		fs.mu.Lock()
		fs.requests = append(fs.requests, rec)
		fs.mu.Unlock()
		fs.handler(w, r, string(data))
	}))
	t.Cleanup(srv.Close)
	return fs, srv
}

func (fs *fakeServer) last() recordedRequest {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	if len(fs.requests) == 0 {
		fs.t.Fatal("no requests recorded")
	}
	return fs.requests[len(fs.requests)-1]
}

func (fs *fakeServer) count() int {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	return len(fs.requests)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func newClient(srv *httptest.Server, opts ...mavis.Option) *mavis.Client {
	cfg := mavis.Config{
		BaseURL:       srv.URL,
		Username:      "artist",
		Password:      "secret",
		LoginPath:     "api/users/login",
		SessionCookie: "connect.sid",
	}
	return mavis.New(cfg, opts...)
}

func TestLoginStoresCookiesAndToken(t *testing.T) {
	fs, srv := newFakeServer(t, func(w http.ResponseWriter, r *http.Request, body string) {
		switch r.URL.Path {
		case "/api/users/login":
			http.SetCookie(w, &http.Cookie{Name: "connect.sid", Value: "s1"})
			writeJSON(w, http.StatusOK, map[string]any{"id": "tok-1"})
		default:
			writeJSON(w, http.StatusOK, map[string]any{})
		}
	})
	client := newClient(srv)

	if err := client.Login(context.Background()); err != nil {
		t.Fatalf("Login: %v", err)
	}
	login := fs.last()
	if login.Method != http.MethodPost || login.ContentType != "application/json" {
		t.Fatalf("unexpected login request %+v", login)
	}
	var creds map[string]string
	if err := json.Unmarshal([]byte(login.Body), &creds); err != nil {
		t.Fatalf("decode login body: %v", err)
	}
	if creds["username"] != "artist" || creds["password"] != "secret" {
		t.Fatalf("unexpected credentials %v", creds)
	}

	if _, err := client.Get(context.Background(), "/hdx/projects/demo", nil); err != nil {
		t.Fatalf("Get: %v", err)
	}
	got := fs.last()
	if got.Cookie != "s1" || got.Auth != "tok-1" {
		t.Fatalf("session not attached: cookie=%q auth=%q", got.Cookie, got.Auth)
	}
	if got.RequestID == "" {
		t.Fatal("expected X-Request-ID header")
	}
}

func TestRefreshedCookieReplacesSession(t *testing.T) {
	calls := 0
	fs, srv := newFakeServer(t, func(w http.ResponseWriter, r *http.Request, body string) {
		calls++
		switch calls {
		case 1:
			http.SetCookie(w, &http.Cookie{Name: "connect.sid", Value: "first"})
		case 2:
			http.SetCookie(w, &http.Cookie{Name: "connect.sid", Value: "second"})
		}
		writeJSON(w, http.StatusOK, map[string]any{})
	})
	client := newClient(srv)
	if err := client.Login(context.Background()); err != nil {
		t.Fatalf("Login: %v", err)
	}
	if _, err := client.Get(context.Background(), "a", nil); err != nil {
		t.Fatal(err)
	}
	if got := fs.last().Cookie; got != "first" {
		t.Fatalf("expected first cookie, got %q", got)
	}
	if _, err := client.Get(context.Background(), "b", nil); err != nil {
		t.Fatal(err)
	}
	if got := fs.last().Cookie; got != "second" {
		t.Fatalf("expected refreshed cookie, got %q", got)
	}
}

func TestLoginRequiresCredentials(t *testing.T) {
	_, srv := newFakeServer(t, func(w http.ResponseWriter, r *http.Request, body string) {
		writeJSON(w, http.StatusOK, map[string]any{})
	})
	client := mavis.New(mavis.Config{BaseURL: srv.URL})
	if err := client.Login(context.Background()); !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("expected configuration error, got %v", err)
	}
}

func TestErrorMapping(t *testing.T) {
	cases := []struct {
		name    string
		status  int
		body    string
		message string
	}{
		{name: "string error field", status: http.StatusBadRequest, body: `{"error":"bad path"}`, message: "bad path"},
		{name: "object error field", status: http.StatusInternalServerError, body: `{"error":{"message":"db down","statusCode":500}}`, message: "db down"},
		{name: "raw body", status: http.StatusForbidden, body: "forbidden\n", message: "forbidden"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, srv := newFakeServer(t, func(w http.ResponseWriter, r *http.Request, body string) {
				w.WriteHeader(tc.status)
				_, _ = io.WriteString(w, tc.body)
			})
			_, err := newClient(srv).Get(context.Background(), "/hdx/projects/demo", nil)
			var mErr *mavis.Error
			if !errors.As(err, &mErr) {
				t.Fatalf("expected *mavis.Error, got %v", err)
			}
			if mErr.Status != tc.status || mErr.Message != tc.message {
				t.Fatalf("unexpected error %+v", mErr)
			}
			if !errors.Is(err, services.ErrTransport) {
				t.Fatal("expected transport marker")
			}
			if mavis.StatusCode(err) != tc.status {
				t.Fatalf("StatusCode = %d", mavis.StatusCode(err))
			}
		})
	}
}

func TestNotFoundIsNotAnError(t *testing.T) {
	_, srv := newFakeServer(t, func(w http.ResponseWriter, r *http.Request, body string) {
		writeJSON(w, http.StatusNotFound, map[string]any{"error": "missing"})
	})
	resp, err := newClient(srv).Get(context.Background(), "/hdx/projects/none", nil)
	if err != nil {
		t.Fatalf("expected no error for 404, got %v", err)
	}
	if !resp.NotFound() {
		t.Fatalf("expected NotFound, got status %d", resp.Status)
	}
}

func TestUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	base := srv.URL
	srv.Close()

	client := mavis.New(mavis.Config{BaseURL: base})
	_, err := client.Get(context.Background(), "/hdx/projects/demo", nil)
	if !errors.Is(err, services.ErrUnreachable) {
		t.Fatalf("expected unreachable error, got %v", err)
	}
}

func TestStringBodyIsPlainText(t *testing.T) {
	fs, srv := newFakeServer(t, func(w http.ResponseWriter, r *http.Request, body string) {
		writeJSON(w, http.StatusOK, map[string]any{"path": body})
	})
	client := newClient(srv)
	if _, err := client.Put(context.Background(), "x", "/hdx/projects/demo", nil); err != nil {
		t.Fatal(err)
	}
	got := fs.last()
	if got.ContentType != "text/plain" || got.Body != "/hdx/projects/demo" {
		t.Fatalf("unexpected plain request %+v", got)
	}
}

func TestRequestIDFromContext(t *testing.T) {
	fs, srv := newFakeServer(t, func(w http.ResponseWriter, r *http.Request, body string) {
		writeJSON(w, http.StatusOK, map[string]any{})
	})
	ctx := services.WithRequestID(context.Background(), "corr-42")
	if _, err := newClient(srv).Get(ctx, "x", nil); err != nil {
		t.Fatal(err)
	}
	if got := fs.last().RequestID; got != "corr-42" {
		t.Fatalf("expected context request id, got %q", got)
	}
}

func TestResumeUsesStoredSession(t *testing.T) {
	store := mavis.NewFileSessionStore(filepath.Join(t.TempDir(), "session.json"))
	fs, srv := newFakeServer(t, func(w http.ResponseWriter, r *http.Request, body string) {
		if strings.HasSuffix(r.URL.Path, "/login") {
			http.SetCookie(w, &http.Cookie{Name: "connect.sid", Value: "persisted"})
		}
		writeJSON(w, http.StatusOK, map[string]any{})
	})

	first := newClient(srv, mavis.WithSessionStore(store))
	if err := first.Login(context.Background()); err != nil {
		t.Fatalf("Login: %v", err)
	}

	second := newClient(srv, mavis.WithSessionStore(store))
	ok, err := second.Resume(context.Background())
	if err != nil || !ok {
		t.Fatalf("Resume = %v, %v", ok, err)
	}
	before := fs.count()
	if _, err := second.Get(context.Background(), "x", nil); err != nil {
		t.Fatal(err)
	}
	if fs.count() != before+1 {
		t.Fatal("resume should not log in again")
	}
	if got := fs.last().Cookie; got != "persisted" {
		t.Fatalf("expected stored cookie, got %q", got)
	}

	if err := second.Logout(); err != nil {
		t.Fatalf("Logout: %v", err)
	}
	third := newClient(srv, mavis.WithSessionStore(store))
	if ok, err := third.Resume(context.Background()); err != nil || ok {
		t.Fatalf("expected no session after logout, got %v %v", ok, err)
	}
}

func TestResumeIgnoresOtherUser(t *testing.T) {
	store := mavis.NewFileSessionStore(filepath.Join(t.TempDir(), "session.json"))
	if err := store.Save(mavis.Session{Username: "someone", Cookies: []mavis.SessionCookie{{Name: "connect.sid", Value: "x"}}}); err != nil {
		t.Fatal(err)
	}
	client := mavis.New(mavis.Config{BaseURL: "http://127.0.0.1:1", Username: "artist"}, mavis.WithSessionStore(store))
	if ok, err := client.Resume(context.Background()); err != nil || ok {
		t.Fatalf("expected other user's session to be ignored, got %v %v", ok, err)
	}
}
