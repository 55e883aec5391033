package testutil

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/charlesng35/rosterd/internal/api"
	"github.com/charlesng35/rosterd/internal/app"
	iauth "github.com/charlesng35/rosterd/internal/auth"
	"github.com/charlesng35/rosterd/internal/cache"
	sharedtestutil "github.com/charlesng35/rosterd/internal/database/testutil"
	"github.com/charlesng35/rosterd/internal/jobs"
	"github.com/charlesng35/rosterd/internal/middleware"
	"github.com/charlesng35/rosterd/internal/services"
	"github.com/charlesng35/rosterd/pkg/response"
)

// EnvOption customises the wiring of a test environment.
type EnvOption func(*app.Config)

// WithLoginRateLimit caps login attempts per client within window.
func WithLoginRateLimit(requests int, window time.Duration) EnvOption {
	return func(cfg *app.Config) {
		cfg.Auth.LoginRateLimit = app.RateLimitSettings{Requests: requests, Window: window}
	}
}

// Env encapsulates a fully-wired API instance backed by an in-memory database for handler tests.
type Env struct {
	T        *testing.T
	DB       *gorm.DB
	Router   *gin.Engine
	Cache    *cache.MemoryStore
	Students *services.StudentService
	Audit    *services.AuditService
	Runner   *jobs.Runner
}

// NewEnv provisions a fresh handler test environment with migrations applied.
func NewEnv(t *testing.T, opts ...EnvOption) *Env {
	t.Helper()

	gin.SetMode(gin.TestMode)

	db := sharedtestutil.MustOpenTestDB(t, sharedtestutil.WithAutoMigrate())

	cfg := &app.Config{
		Auth: app.AuthConfig{
			JWT: app.JWTSettings{
				Secret: "test-suite-super-secret-key-32-bytes!!",
				Issuer: "test-suite",
				TTL:    time.Hour,
			},
			BcryptCost: 4,
		},
		Monitoring: app.MonitoringConfig{
			Prometheus: app.PrometheusConfig{Enabled: true, Endpoint: "/metrics"},
		},
	}
	for _, opt := range opts {
		opt(cfg)
	}

	audit, err := services.NewAuditService(db)
	require.NoError(t, err)

	jwtSvc, err := iauth.NewJWTService(cfg.Auth.JWTServiceConfig())
	require.NoError(t, err)

	creds, err := iauth.NewCredentialStore(db, jwtSvc, append(cfg.Auth.CredentialOptions(), iauth.WithAuditService(audit))...)
	require.NoError(t, err)

	gate, err := iauth.NewGate(creds)
	require.NoError(t, err)

	store := cache.NewMemoryStore()
	layer := cache.NewLayer(store, cache.WithDefaultTTL(time.Minute))

	records, err := services.NewStudentStore(db)
	require.NoError(t, err)

	students, err := services.NewStudentService(records, layer, services.WithStudentAudit(audit))
	require.NoError(t, err)

	runner := jobs.NewRunner(jobs.Config{Workers: 1, QueueSize: 8, Timeout: time.Minute},
		jobs.WithHandler(jobs.KindBulkLoad, jobs.BulkLoadHandler(students, audit)),
		jobs.WithHandler(jobs.KindBulkDelete, jobs.BulkDeleteHandler(students, audit)),
	)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = runner.Stop(ctx)
	})

	router, err := api.NewRouter(api.Dependencies{
		DB:          db,
		Config:      cfg,
		Credentials: creds,
		Gate:        gate,
		Students:    students,
		Audit:       audit,
		Jobs:        runner,
		Cache:       store,
		RateStore:   middleware.NewRateStore(store),
	})
	require.NoError(t, err)

	return &Env{
		T:        t,
		DB:       db,
		Router:   router,
		Cache:    store,
		Students: students,
		Audit:    audit,
		Runner:   runner,
	}
}

// UserPayload captures the subset of user fields returned from auth endpoints.
type UserPayload struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	IsActive bool   `json:"is_active"`
}

// LoginResult bundles the JSON response from POST /api/auth/login.
type LoginResult struct {
	AccessToken string      `json:"access_token"`
	TokenType   string      `json:"token_type"`
	ExpiresIn   int         `json:"expires_in"`
	User        UserPayload `json:"user"`
}

// Register creates a credential through the public endpoint.
func (e *Env) Register(username, password string) UserPayload {
	e.T.Helper()

	w := e.Request(http.MethodPost, "/api/auth/register", map[string]string{
		"username": username,
		"password": password,
	}, "")
	require.Equal(e.T, http.StatusCreated, w.Code, w.Body.String())

	var user UserPayload
	DecodeInto(e.T, DecodeResponse(e.T, w).Data, &user)
	require.Equal(e.T, username, user.Username)
	return user
}

// Login authenticates and returns the issued access token.
func (e *Env) Login(username, password string) LoginResult {
	e.T.Helper()

	w := e.Request(http.MethodPost, "/api/auth/login", map[string]string{
		"username": username,
		"password": password,
	}, "")
	require.Equal(e.T, http.StatusOK, w.Code, w.Body.String())

	resp := DecodeResponse(e.T, w)
	require.True(e.T, resp.Success, w.Body.String())

	var result LoginResult
	DecodeInto(e.T, resp.Data, &result)
	require.NotEmpty(e.T, result.AccessToken)
	require.Equal(e.T, "bearer", result.TokenType)
	require.Greater(e.T, result.ExpiresIn, 0)
	require.Equal(e.T, username, result.User.Username)

	return result
}

// RegisterAndLogin is the common preamble of protected endpoint tests.
func (e *Env) RegisterAndLogin(username, password string) string {
	e.T.Helper()
	e.Register(username, password)
	return e.Login(username, password).AccessToken
}

// WaitForJobs blocks until the background runner has drained its queue.
func (e *Env) WaitForJobs() {
	e.T.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(e.T, e.Runner.WaitIdle(ctx))
}

// APIResponse represents the canonical API envelope returned by handlers.
type APIResponse struct {
	Success bool                `json:"success"`
	Data    json.RawMessage     `json:"data"`
	Error   *response.ErrorInfo `json:"error"`
	Meta    *response.Meta      `json:"meta"`
}

// DecodeResponse parses the standard API response object from a recorder.
func DecodeResponse(t *testing.T, w *httptest.ResponseRecorder) APIResponse {
	t.Helper()
	var resp APIResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp), w.Body.String())
	return resp
}

// DecodeInto unmarshals the data payload into the provided destination.
func DecodeInto[T any](t *testing.T, raw json.RawMessage, dest *T) {
	t.Helper()
	if dest == nil {
		t.Fatal("destination must not be nil")
	}
	require.NoError(t, json.Unmarshal(raw, dest))
}

// Request executes an HTTP request against the test router, applying JSON encoding and auth headers automatically.
func (e *Env) Request(method, path string, body any, token string) *httptest.ResponseRecorder {
	e.T.Helper()

	var reader io.Reader = http.NoBody
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(e.T, err)
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequest(method, path, reader)
	require.NoError(e.T, err)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return e.Do(req, token)
}

// Do serves a prepared request, attaching the bearer token when present.
func (e *Env) Do(req *http.Request, token string) *httptest.ResponseRecorder {
	e.T.Helper()
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if req.RemoteAddr == "" {
		req.RemoteAddr = "192.0.2.10:40000"
	}
	w := httptest.NewRecorder()
	e.Router.ServeHTTP(w, req)
	return w
}
