package mavis

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"hdx/internal/config"
	"hdx/internal/logging"
	"hdx/internal/services"
)

const maxErrorBody = 4096

// HTTPDoer abstracts http.Client.Do for testing.
type HTTPDoer interface {
	Do(*http.Request) (*http.Response, error)
}

// Config holds the connection settings the client needs.
type Config struct {
	BaseURL       string
	Username      string
	Password      string
	LoginPath     string
	SessionCookie string
	Timeout       time.Duration
}

// ConfigFromApp extracts client settings from the application config.
func ConfigFromApp(cfg *config.Config) Config {
	if cfg == nil {
		return Config{}
	}
	return Config{
		BaseURL:       cfg.MavisBaseURL(),
		Username:      cfg.Mavis.Username,
		Password:      cfg.Mavis.Password,
		LoginPath:     cfg.Mavis.LoginPath,
		SessionCookie: cfg.Mavis.SessionCookie,
		Timeout:       cfg.MavisTimeout(),
	}
}

// Params are query parameters appended to a request.
type Params map[string]string

func (p Params) values() url.Values {
	if len(p) == 0 {
		return nil
	}
	v := make(url.Values, len(p))
	for key, value := range p {
		v.Set(key, value)
	}
	return v
}

// Response is a completed exchange with a status below 400, or a 404.
type Response struct {
	Status int
	Body   []byte
}

// NotFound reports whether the server answered 404.
func (r *Response) NotFound() bool {
	return r != nil && r.Status == http.StatusNotFound
}

// Decode unmarshals the JSON body into out. An empty body leaves out untouched.
func (r *Response) Decode(out any) error {
	if r == nil || len(bytes.TrimSpace(r.Body)) == 0 {
		return nil
	}
	if err := json.Unmarshal(r.Body, out); err != nil {
		return services.Wrap(services.ErrTransport, "mavis", "decode response", "", err)
	}
	return nil
}

// Error is a non-404 response with a status of 400 or above.
type Error struct {
	Method  string
	Path    string
	Status  int
	Message string
}

func (e *Error) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("mavis %s %s returned %d", e.Method, e.Path, e.Status)
	}
	return fmt.Sprintf("mavis %s %s returned %d: %s", e.Method, e.Path, e.Status, e.Message)
}

// Is lets errors.Is match the transport sentinel.
func (e *Error) Is(target error) bool {
	return target == services.ErrTransport
}

// StatusCode extracts the HTTP status from a mavis error, or 0.
func StatusCode(err error) int {
	var mErr *Error
	if errors.As(err, &mErr) {
		return mErr.Status
	}
	return 0
}

// Option customizes a Client.
type Option func(*Client)

// WithHTTPClient overrides the HTTP backend.
func WithHTTPClient(doer HTTPDoer) Option {
	return func(c *Client) {
		if doer != nil {
			c.http = doer
		}
	}
}

// WithBaseURL overrides the configured base URL.
func WithBaseURL(raw string) Option {
	return func(c *Client) {
		if strings.TrimSpace(raw) != "" {
			c.cfg.BaseURL = raw
		}
	}
}

// WithLogger attaches a logger; requests are logged at debug level.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		c.logger = logging.NewComponentLogger(logger, "mavis")
	}
}

// WithSessionStore persists sessions across processes.
func WithSessionStore(store SessionStore) Option {
	return func(c *Client) {
		c.store = store
	}
}

// Client is an authenticated Mavis session.
type Client struct {
	cfg    Config
	http   HTTPDoer
	logger *slog.Logger
	store  SessionStore

	mu      sync.Mutex
	session Session
}

// New constructs a client. It does not contact the server; call Login or
// Resume before issuing requests that need a session.
func New(cfg Config, opts ...Option) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	c := &Client{
		cfg:    cfg,
		http:   &http.Client{Timeout: timeout, CheckRedirect: noRedirects},
		logger: logging.NewComponentLogger(nil, "mavis"),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.cfg.BaseURL = strings.TrimRight(strings.TrimSpace(c.cfg.BaseURL), "/")
	return c
}

func noRedirects(*http.Request, []*http.Request) error {
	return http.ErrUseLastResponse
}

// Session returns a copy of the current session.
func (c *Client) Session() Session {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.session.clone()
}

// Authenticated reports whether the client holds a session.
func (c *Client) Authenticated() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return !c.session.Empty()
}

// Login exchanges the configured credentials for a session and persists it
// when a store is configured.
func (c *Client) Login(ctx context.Context) error {
	if strings.TrimSpace(c.cfg.Username) == "" || c.cfg.Password == "" {
		return services.Wrap(services.ErrConfiguration, "mavis", "login", "username and password are required", nil)
	}
	loginPath := c.cfg.LoginPath
	if loginPath == "" {
		loginPath = "api/users/login"
	}

	c.mu.Lock()
	c.session = Session{}
	c.mu.Unlock()

	resp, err := c.Post(ctx, loginPath, map[string]string{
		"username": c.cfg.Username,
		"password": c.cfg.Password,
	}, nil)
	if err != nil {
		return err
	}
	if resp.NotFound() {
		return services.Wrap(services.ErrConfiguration, "mavis", "login", fmt.Sprintf("login path %q not found", loginPath), nil)
	}

	// The access token is optional; cookie-only servers answer with other bodies.
	var body struct {
		ID any `json:"id"`
	}
	_ = json.Unmarshal(resp.Body, &body)

	c.mu.Lock()
	if token := tokenString(body.ID); token != "" {
		c.session.Token = token
	}
	c.session.Username = c.cfg.Username
	c.session.CreatedAt = time.Now().UTC()
	if c.session.Empty() {
		c.mu.Unlock()
		return services.Wrap(services.ErrTransport, "mavis", "login", "server returned no session", nil)
	}
	session := c.session.clone()
	c.mu.Unlock()

	c.logger.Info("mavis login succeeded", logging.String("username", c.cfg.Username))
	return c.persist(session)
}

// Resume loads a stored session. It reports false when no usable session was
// stored for the configured user.
func (c *Client) Resume(ctx context.Context) (bool, error) {
	if c.store == nil {
		return false, nil
	}
	if err := ctx.Err(); err != nil {
		return false, err
	}
	session, err := c.store.Load()
	if err != nil {
		return false, err
	}
	if session.Empty() {
		return false, nil
	}
	if c.cfg.Username != "" && session.Username != "" && session.Username != c.cfg.Username {
		c.logger.Debug("stored session belongs to another user",
			logging.String("stored_user", session.Username))
		return false, nil
	}
	if name := c.cfg.SessionCookie; name != "" && session.Token == "" && !session.HasCookie(name) {
		return false, nil
	}
	c.mu.Lock()
	c.session = session
	c.mu.Unlock()
	return true, nil
}

// Logout forgets the session locally and clears the store.
func (c *Client) Logout() error {
	c.mu.Lock()
	c.session = Session{}
	c.mu.Unlock()
	if c.store == nil {
		return nil
	}
	return c.store.Clear()
}

// Get issues a GET request. A 404 comes back as a response, not an error.
func (c *Client) Get(ctx context.Context, path string, params Params) (*Response, error) {
	return c.Do(ctx, http.MethodGet, path, nil, params)
}

// Post sends body as JSON, or as plain text when it is a string.
func (c *Client) Post(ctx context.Context, path string, body any, params Params) (*Response, error) {
	return c.Do(ctx, http.MethodPost, path, body, params)
}

// Put sends body the way Post does.
func (c *Client) Put(ctx context.Context, path string, body any, params Params) (*Response, error) {
	return c.Do(ctx, http.MethodPut, path, body, params)
}

// Delete issues a DELETE request.
func (c *Client) Delete(ctx context.Context, path string, params Params) (*Response, error) {
	return c.Do(ctx, http.MethodDelete, path, nil, params)
}

// Do issues one request. String bodies are sent as text/plain, anything else
// non-nil as JSON.
func (c *Client) Do(ctx context.Context, method, path string, body any, params Params) (*Response, error) {
	if c.cfg.BaseURL == "" {
		return nil, services.Wrap(services.ErrConfiguration, "mavis", "request", "base URL is not configured", nil)
	}
	target, err := c.resolve(path, params)
	if err != nil {
		return nil, err
	}

	var (
		reader      io.Reader
		contentType = "application/json"
	)
	switch v := body.(type) {
	case nil:
	case string:
		reader = strings.NewReader(v)
		contentType = "text/plain"
	case []byte:
		reader = bytes.NewReader(v)
	default:
		data, err := json.Marshal(v)
		if err != nil {
			return nil, services.Wrap(services.ErrValidation, "mavis", "encode request", "", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return nil, services.Wrap(services.ErrValidation, "mavis", "build request", "", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Content-Type", contentType)
	requestID, ok := services.RequestIDFromContext(ctx)
	if !ok {
		requestID = uuid.NewString()
	}
	req.Header.Set("X-Request-ID", requestID)

	c.mu.Lock()
	for _, cookie := range c.session.Cookies {
		req.AddCookie(&http.Cookie{Name: cookie.Name, Value: cookie.Value})
	}
	if c.session.Token != "" {
		req.Header.Set("Authorization", c.session.Token)
	}
	c.mu.Unlock()

	started := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, services.Wrap(services.ErrTransport, "mavis", method+" "+path, "request cancelled", ctxErr)
		}
		return nil, services.Wrap(services.ErrUnreachable, "mavis", method+" "+path,
			"connection refused, Mavis may be offline or unreachable", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, services.Wrap(services.ErrTransport, "mavis", method+" "+path, "read response", err)
	}

	c.logger.Debug("mavis request",
		logging.String("method", method),
		logging.String("path", path),
		logging.Int("status", resp.StatusCode),
		logging.Duration("elapsed", time.Since(started)),
		logging.String(logging.FieldCorrelationID, requestID))

	if cookies := resp.Cookies(); len(cookies) > 0 {
		c.refresh(cookies)
	}

	if resp.StatusCode >= http.StatusBadRequest && resp.StatusCode != http.StatusNotFound {
		return nil, &Error{
			Method:  method,
			Path:    path,
			Status:  resp.StatusCode,
			Message: errorMessage(data),
		}
	}
	return &Response{Status: resp.StatusCode, Body: data}, nil
}

func (c *Client) resolve(path string, params Params) (string, error) {
	base, err := url.Parse(c.cfg.BaseURL)
	if err != nil {
		return "", services.Wrap(services.ErrConfiguration, "mavis", "parse base URL", c.cfg.BaseURL, err)
	}
	u := *base
	u.Path = strings.TrimRight(base.Path, "/") + "/" + strings.TrimLeft(path, "/")
	u.RawPath = ""
	if values := params.values(); values != nil {
		u.RawQuery = values.Encode()
	}
	return u.String(), nil
}

func (c *Client) refresh(cookies []*http.Cookie) {
	c.mu.Lock()
	next := make([]SessionCookie, 0, len(cookies))
	for _, cookie := range cookies {
		if cookie.Name == "" {
			continue
		}
		next = append(next, SessionCookie{Name: cookie.Name, Value: cookie.Value})
	}
	sort.Slice(next, func(i, j int) bool { return next[i].Name < next[j].Name })
	c.session.Cookies = next
	persisted := !c.session.CreatedAt.IsZero()
	session := c.session.clone()
	c.mu.Unlock()

	// Login persists once it has the token too.
	if persisted {
		if err := c.persist(session); err != nil {
			logging.WarnWithContext(c.logger, "session refresh not persisted", "session_persist_failed",
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "check permissions on the session file"),
				logging.String(logging.FieldImpact, "next invocation may need to log in again"))
		}
	}
}

func (c *Client) persist(session Session) error {
	if c.store == nil {
		return nil
	}
	return c.store.Save(session)
}

func errorMessage(body []byte) string {
	var payload struct {
		Error json.RawMessage `json:"error"`
	}
	if err := json.Unmarshal(body, &payload); err == nil && len(payload.Error) > 0 {
		var text string
		if json.Unmarshal(payload.Error, &text) == nil {
			return text
		}
		var nested struct {
			Message string `json:"message"`
		}
		if json.Unmarshal(payload.Error, &nested) == nil && nested.Message != "" {
			return nested.Message
		}
		return string(payload.Error)
	}
	if len(body) > maxErrorBody {
		body = body[:maxErrorBody]
	}
	return strings.TrimSpace(string(body))
}

func tokenString(v any) string {
	switch t := v.(type) {
	case string:
		return strings.TrimSpace(t)
	case float64:
		return fmt.Sprintf("%.0f", t)
	default:
		return ""
	}
}
