package testutil

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/charlesng35/mentorhub/internal/api"
	"github.com/charlesng35/mentorhub/internal/app"
	iauth "github.com/charlesng35/mentorhub/internal/auth"
	sharedtestutil "github.com/charlesng35/mentorhub/internal/database/testutil"
	"github.com/charlesng35/mentorhub/internal/models"
	"github.com/charlesng35/mentorhub/internal/monitoring"
	"github.com/charlesng35/mentorhub/internal/monitoring/checks"
	"github.com/charlesng35/mentorhub/internal/realtime"
	"github.com/charlesng35/mentorhub/internal/services"
	"github.com/charlesng35/mentorhub/pkg/response"
)

// Env encapsulates a fully-wired API instance backed by an in-memory database for handler tests.
type Env struct {
	T             *testing.T
	DB            *gorm.DB
	Router        *gin.Engine
	JWT           *iauth.JWTService
	Config        *app.Config
	Engine        *services.MatchingEngine
	Profiles      *services.ProfileService
	Notifications *services.NotificationService
	Hub           *realtime.Hub

	seq int
}

// EnvOption adjusts the configuration before the router is built.
type EnvOption func(*app.Config)

// WithRateLimit enables the API rate limiter with the given budget.
func WithRateLimit(requests int, window time.Duration) EnvOption {
	return func(cfg *app.Config) {
		cfg.Server.RateLimit = app.RateLimitConfig{Enabled: true, Requests: requests, Window: window}
	}
}

// NewEnv provisions a fresh handler test environment with the schema applied.
func NewEnv(t *testing.T, opts ...EnvOption) *Env {
	t.Helper()

	gin.SetMode(gin.TestMode)

	db := sharedtestutil.MustOpenTestDB(t, sharedtestutil.WithSchema())

	cfg := &app.Config{
		Auth: app.AuthConfig{
			JWT: app.JWTSettings{
				Secret: "test-suite-super-secret-key-32-bytes!!",
				Issuer: "test-suite",
				TTL:    time.Hour,
			},
		},
		Monitoring: app.MonitoringConfig{
			Prometheus: app.PrometheusConfig{Enabled: true, Endpoint: "/metrics"},
			Health:     app.HealthConfig{Enabled: true, Timeout: time.Second},
		},
	}
	for _, opt := range opts {
		opt(cfg)
	}

	jwtSvc, err := iauth.NewJWTService(cfg.Auth.JWTServiceConfig())
	require.NoError(t, err)

	hub := realtime.NewHub()
	profiles, err := services.NewProfileService(db)
	require.NoError(t, err)
	notifications, err := services.NewNotificationService(db, hub)
	require.NoError(t, err)
	engine, err := services.NewMatchingEngine(db, profiles)
	require.NoError(t, err)

	health := monitoring.NewHealthManager()
	health.RegisterReadiness(checks.Database(db, time.Second))

	router, err := api.NewRouter(api.Dependencies{
		DB:            db,
		JWT:           jwtSvc,
		Config:        cfg,
		Engine:        engine,
		Profiles:      profiles,
		Notifications: notifications,
		Hub:           hub,
		Health:        health,
	})
	require.NoError(t, err)

	return &Env{
		T:             t,
		DB:            db,
		Router:        router,
		JWT:           jwtSvc,
		Config:        cfg,
		Engine:        engine,
		Profiles:      profiles,
		Notifications: notifications,
		Hub:           hub,
	}
}

// Account is a seeded user together with its profile id and a signed access token.
type Account struct {
	UserID    string
	ProfileID string
	Email     string
	Token     string
}

func (e *Env) createUser(prefix string, role models.UserRole) models.User {
	e.T.Helper()
	e.seq++
	user := models.User{
		Email:     fmt.Sprintf("%s-%d@example.com", prefix, e.seq),
		FirstName: prefix,
		LastName:  fmt.Sprint(e.seq),
		Role:      role,
		IsActive:  true,
	}
	require.NoError(e.T, e.DB.Create(&user).Error)
	return user
}

// Token issues an access token for the user.
func (e *Env) Token(user models.User) string {
	e.T.Helper()
	token, err := e.JWT.GenerateAccessToken(iauth.AccessTokenInput{
		UserID: user.ID,
		Email:  user.Email,
		Role:   string(user.Role),
	})
	require.NoError(e.T, err)
	return token
}

// CreateMentor seeds a mentor with the given capacity.
func (e *Env) CreateMentor(maxMentees int, accepts bool) Account {
	e.T.Helper()
	user := e.createUser("mentor", models.UserRoleMentor)
	profile := models.MentorProfile{UserID: user.ID, Specialty: "Go", AcceptsRequests: accepts, MaxMentees: maxMentees}
	require.NoError(e.T, e.DB.Create(&profile).Error)
	return Account{UserID: user.ID, ProfileID: profile.ID, Email: user.Email, Token: e.Token(user)}
}

// CreateMentee seeds a mentee.
func (e *Env) CreateMentee() Account {
	e.T.Helper()
	user := e.createUser("mentee", models.UserRoleMentee)
	profile := models.MenteeProfile{UserID: user.ID, Goal: "Grow as an engineer"}
	require.NoError(e.T, e.DB.Create(&profile).Error)
	return Account{UserID: user.ID, ProfileID: profile.ID, Email: user.Email, Token: e.Token(user)}
}

// CreateAdmin seeds a user with neither profile.
func (e *Env) CreateAdmin() Account {
	e.T.Helper()
	user := e.createUser("admin", models.UserRoleAdmin)
	return Account{UserID: user.ID, Email: user.Email, Token: e.Token(user)}
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

	var buf *bytes.Buffer
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(e.T, err)
		buf = bytes.NewBuffer(data)
	} else {
		buf = bytes.NewBuffer(nil)
	}

	req, err := http.NewRequest(method, path, buf)
	require.NoError(e.T, err)

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	w := httptest.NewRecorder()
	e.Router.ServeHTTP(w, req)
	return w
}
