// Decoyshield - Deception-Based Intrusion Detection
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/decoyshield

package api

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/decoyshield/internal/auth"
	"github.com/tomtom215/decoyshield/internal/authz"
	"github.com/tomtom215/decoyshield/internal/config"
	"github.com/tomtom215/decoyshield/internal/decoy"
	"github.com/tomtom215/decoyshield/internal/detection"
	"github.com/tomtom215/decoyshield/internal/honeytoken"
	"github.com/tomtom215/decoyshield/internal/logging"
	"github.com/tomtom215/decoyshield/internal/models"
	"github.com/tomtom215/decoyshield/internal/validation"
	ws "github.com/tomtom215/decoyshield/internal/websocket"
)

const (
	testOrigin    = "http://collector.test"
	adminUser     = "root"
	adminPassword = "root-password-1"
	plainUser     = "alice"
	plainPassword = "alice-password-1"
)

func init() {
	logging.Init(logging.Config{
		Level:  "info",
		Format: "console",
		Output: io.Discard,
	})
	validation.RegisterTemplates(honeytoken.Templates())
}

// Hashing is slow at the production cost, so the directory is built once.
var (
	usersOnce sync.Once
	users     *auth.UserDirectory
	usersErr  error
)

func testConfig() *config.Config {
	return &config.Config{
		Server: config.ServerConfig{Environment: "test"},
		Security: config.SecurityConfig{
			JWTSecret:         "test-secret-that-is-at-least-32-characters",
			SessionTimeout:    time.Hour,
			AdminUsername:     adminUser,
			AdminPassword:     adminPassword,
			Users:             []string{plainUser + ":" + plainPassword + ":user"},
			RateLimitDisabled: true,
			CORSOrigins:       []string{testOrigin},
		},
		Detection: config.DetectionConfig{BatchRate: 0},
	}
}

func testUsers(t *testing.T) *auth.UserDirectory {
	t.Helper()
	usersOnce.Do(func() {
		cfg := testConfig()
		users, usersErr = auth.NewUserDirectory(&cfg.Security)
	})
	if usersErr != nil {
		t.Fatalf("NewUserDirectory() error = %v", usersErr)
	}
	return users
}

type testEnv struct {
	router    http.Handler
	handler   *Handler
	jwt       *auth.JWTManager
	alerts    *detection.DuckDBStore
	suspicion *detection.Registry
	docs      *honeytoken.Registry
	hub       *ws.Hub
	sessions  *detection.SessionHandler
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	cfg := testConfig()

	jwtManager, err := auth.NewJWTManager(&cfg.Security)
	if err != nil {
		t.Fatalf("NewJWTManager() error = %v", err)
	}
	enforcer, err := authz.NewEnforcer(authz.EnforcerConfig{})
	if err != nil {
		t.Fatalf("NewEnforcer() error = %v", err)
	}

	alerts, err := detection.OpenDuckDBStore(context.Background(), "")
	if err != nil {
		t.Fatalf("OpenDuckDBStore() error = %v", err)
	}
	t.Cleanup(func() { alerts.Close() })

	catalog, err := honeytoken.OpenBadgerCatalog("")
	if err != nil {
		t.Fatalf("OpenBadgerCatalog() error = %v", err)
	}
	t.Cleanup(func() { catalog.Close() })
	docs, err := honeytoken.NewRegistry(catalog, nil, nil, honeytoken.RegistryConfig{
		BeaconDomain: "cdn-docs-local.test",
		StorageDir:   t.TempDir(),
	})
	if err != nil {
		t.Fatalf("NewRegistry() error = %v", err)
	}

	suspicion := detection.NewRegistry()
	hub := ws.NewHub()
	ctx, cancel := context.WithCancel(context.Background())
	hubDone := make(chan struct{})
	go func() {
		defer close(hubDone)
		_ = hub.RunWithContext(ctx)
	}()

	sessions := detection.NewSessionHandler(
		detection.NewThresholdScorer(detection.DefaultThresholdConfig()),
		suspicion, alerts, hub, detection.DefaultSessionHandlerConfig(),
	)
	t.Cleanup(func() {
		cancel()
		<-hubDone
		sessions.Wait()
	})

	authMW := auth.NewMiddleware(jwtManager)
	decoyMW := decoy.NewMiddleware(decoy.NewPolicy(suspicion, enforcer), authMW, decoy.NewProvider(docs, ""))

	handler := NewHandler(HandlerDeps{
		Config:    cfg,
		Users:     testUsers(t),
		JWT:       jwtManager,
		Enforcer:  enforcer,
		Alerts:    alerts,
		Suspicion: suspicion,
		Documents: docs,
		Hub:       hub,
		Sessions:  sessions,
	})
	router := NewRouter(handler, authMW, authz.NewMiddleware(enforcer), decoyMW,
		NewChiMiddleware(NewChiMiddlewareConfig(&cfg.Security)))

	return &testEnv{
		router:    router.SetupChi(),
		handler:   handler,
		jwt:       jwtManager,
		alerts:    alerts,
		suspicion: suspicion,
		docs:      docs,
		hub:       hub,
		sessions:  sessions,
	}
}

func (e *testEnv) token(t *testing.T, username, role string) string {
	t.Helper()
	token, _, err := e.jwt.GenerateToken(username, role)
	if err != nil {
		t.Fatalf("GenerateToken() error = %v", err)
	}
	return token
}

func (e *testEnv) adminToken(t *testing.T) string {
	return e.token(t, adminUser, auth.RoleAdmin)
}

func (e *testEnv) userToken(t *testing.T) string {
	return e.token(t, plainUser, auth.RoleUser)
}

// do sends a request through the router. An empty token sends none.
func (e *testEnv) do(method, path, body, token string, headers ...string) *httptest.ResponseRecorder {
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func (e *testEnv) writeAlert(t *testing.T, identity string, status detection.AlertStatus) *detection.Alert {
	t.Helper()
	alert := &detection.Alert{
		Identity:     identity,
		AnomalyScore: 0.99,
		Threshold:    detection.AlertThreshold,
		SessionID:    "session-" + identity,
		Status:       status,
		CreatedAt:    time.Now().UTC(),
	}
	if err := e.alerts.Write(context.Background(), alert); err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	return alert
}

type envelope[T any] struct {
	Status   string           `json:"status"`
	Data     T                `json:"data"`
	Metadata models.Metadata  `json:"metadata"`
	Error    *models.APIError `json:"error"`
}

func decodeEnvelope[T any](t *testing.T, rec *httptest.ResponseRecorder) envelope[T] {
	t.Helper()
	var resp envelope[T]
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v; body=%s", err, rec.Body.String())
	}
	return resp
}

func assertErrorCode(t *testing.T, rec *httptest.ResponseRecorder, wantStatus int, wantCode string) {
	t.Helper()
	if rec.Code != wantStatus {
		t.Fatalf("status = %d, want %d; body=%s", rec.Code, wantStatus, rec.Body.String())
	}
	resp := decodeEnvelope[any](t, rec)
	if resp.Error == nil || resp.Error.Code != wantCode {
		t.Errorf("error = %+v, want code %s", resp.Error, wantCode)
	}
}
