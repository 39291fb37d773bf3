package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/kanucard/concierge/internal/config"
	"github.com/kanucard/concierge/internal/mail"
	"github.com/kanucard/concierge/internal/middleware"
	"github.com/kanucard/concierge/internal/models"
	"github.com/kanucard/concierge/internal/otp"
	"github.com/kanucard/concierge/internal/services"
	"github.com/kanucard/concierge/internal/shopify"
	"github.com/kanucard/concierge/pkg/logger"
	"github.com/kanucard/concierge/pkg/utils"
)

const (
	testAdminUser     = "admin"
	testAdminPassword = "test-admin-pass"
)

type stubLookup struct {
	mu        sync.Mutex
	customers map[string]*shopify.Customer
	err       error
}

func (s *stubLookup) FindCustomerByEmail(ctx context.Context, email string) (*shopify.Customer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	return s.customers[email], nil
}

func (s *stubLookup) FindCustomerByPhone(ctx context.Context, phone string) (*shopify.Customer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	return s.customers[phone], nil
}

type stubMailer struct {
	mu   sync.Mutex
	sent []mail.Message
	err  error
}

func (s *stubMailer) Send(ctx context.Context, msg mail.Message) (mail.Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return mail.Result{}, s.err
	}
	s.sent = append(s.sent, msg)
	return mail.Result{Method: mail.MethodSMTP, MessageID: "test-id"}, nil
}

func (s *stubMailer) sentCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sent)
}

type testEnv struct {
	app    *fiber.App
	db     *gorm.DB
	store  *otp.MemoryStore
	lookup *stubLookup
	mailer *stubMailer
}

var testSetupOnce sync.Once

func setupTestEnv(t *testing.T) *testEnv {
	t.Helper()

	testSetupOnce.Do(func() {
		logger.Init()
		utils.ConfigureJWT("test-secret", 30*time.Minute, time.Hour)
	})

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	if err != nil {
		t.Fatalf("failed opening in-memory sqlite database: %v", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("failed getting sql.DB from gorm: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)

	t.Cleanup(func() {
		_ = sqlDB.Close()
	})

	err = db.AutoMigrate(
		&models.User{},
		&models.ApprovalRequest{},
		&models.ApprovalCard{},
	)
	if err != nil {
		t.Fatalf("failed automigrating models: %v", err)
	}

	lookup := &stubLookup{customers: map[string]*shopify.Customer{
		"taro@example.com": {
			ID:        "gid://shopify/Customer/123",
			Email:     "taro@example.com",
			FirstName: "Taro",
			LastName:  "Yamada",
			Phone:     "+819012345678",
		},
	}}
	mailer := &stubMailer{}
	store := otp.NewMemoryStore()

	otpCfg := config.OTPConfig{
		CodeLifetime:  10 * time.Minute,
		MaxAttempts:   5,
		SweepInterval: 30 * time.Minute,
	}

	approvalService := services.NewApprovalService(db)
	otpService := otp.NewService(lookup, store, mailer, nil, approvalService, otpCfg)

	adminHash, err := bcrypt.GenerateFromPassword([]byte(testAdminPassword), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("failed hashing admin password: %v", err)
	}
	adminCfg := config.AdminConfig{User: testAdminUser, PasswordHash: string(adminHash)}

	authHandler := NewAuthHandler(db, otpService)
	approvalHandler := NewApprovalHandler(db, mailer, "http://localhost:3001")
	authMiddleware := middleware.NewAuthMiddleware(db)

	app := fiber.New(fiber.Config{BodyLimit: 1 * 1024 * 1024})
	app.Use(recover.New(recover.Config{EnableStackTrace: true}))
	app.Use(middleware.RequestLogger())
	app.Use(middleware.SecurityLogger())

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.Status(fiber.StatusOK).JSON(fiber.Map{"status": "ok"})
	})

	api := app.Group("/api")

	authRoutes := api.Group("/auth")
	authRoutes.Post("/request-code", authHandler.RequestCode)
	authRoutes.Post("/verify", authHandler.VerifyCode)
	authRoutes.Post("/refresh", authMiddleware.RequireAuth, authHandler.Refresh)
	authRoutes.Get("/me", authMiddleware.RequireAuth, authHandler.Me)
	authRoutes.Post("/logout", authMiddleware.RequireAuth, authHandler.Logout)

	approvalRoutes := api.Group("/approvals")
	approvalRoutes.Post("/", middleware.AdminBasicAuth(adminCfg), approvalHandler.Create)
	approvalRoutes.Get("/:key", middleware.RequireApproval, approvalHandler.Get)
	approvalRoutes.Post("/:key/respond", middleware.RequireApproval, approvalHandler.Respond)

	return &testEnv{app: app, db: db, store: store, lookup: lookup, mailer: mailer}
}

// storedCode pulls the live OTP for an identifier out of the challenge store.
func storedCode(t *testing.T, env *testEnv, identifier, approvalKey string) string {
	t.Helper()

	ch, ok, err := env.store.Get(context.Background(), otp.ChallengeKey(identifier, approvalKey))
	if err != nil {
		t.Fatalf("failed reading challenge store: %v", err)
	}
	if !ok {
		t.Fatalf("no challenge stored for %q", identifier)
	}
	return ch.Code
}

func authHeaders(token string) map[string]string {
	return map[string]string{"Authorization": "Bearer " + token}
}

func adminHeaders() map[string]string {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.SetBasicAuth(testAdminUser, testAdminPassword)
	return map[string]string{"Authorization": req.Header.Get("Authorization")}
}

func performRequest(t *testing.T, app *fiber.App, method, path string, body io.Reader, headers map[string]string) *http.Response {
	t.Helper()

	req := httptest.NewRequest(method, path, body)
	for key, value := range headers {
		req.Header.Set(key, value)
	}

	resp, err := app.Test(req, int((10 * time.Second).Milliseconds()))
	if err != nil {
		t.Fatalf("request %s %s failed: %v", method, path, err)
	}

	return resp
}

func performJSONRequest(t *testing.T, app *fiber.App, method, path string, payload any, headers map[string]string) *http.Response {
	t.Helper()

	var body io.Reader
	if payload != nil {
		encoded, err := json.Marshal(payload)
		if err != nil {
			t.Fatalf("failed to marshal payload: %v", err)
		}
		body = bytes.NewReader(encoded)
	}

	requestHeaders := map[string]string{}
	for key, value := range headers {
		requestHeaders[key] = value
	}
	if payload != nil {
		requestHeaders["Content-Type"] = "application/json"
	}

	return performRequest(t, app, method, path, body, requestHeaders)
}

func decodeJSONMap(t *testing.T, resp *http.Response) map[string]any {
	t.Helper()
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("failed reading response body: %v", err)
	}

	var payload map[string]any
	if err := json.Unmarshal(raw, &payload); err != nil {
		t.Fatalf("failed decoding JSON response: %v body=%q", err, string(raw))
	}

	return payload
}

func assertStatus(t *testing.T, resp *http.Response, expected int) {
	t.Helper()
	if resp.StatusCode != expected {
		t.Fatalf("expected status %d, got %d", expected, resp.StatusCode)
	}
}

func assertEnvelopeError(t *testing.T, body map[string]any, expected string) {
	t.Helper()
	if success, _ := body["success"].(bool); success {
		t.Fatalf("expected success=false, got %+v", body)
	}
	if got, _ := body["error"].(string); got != expected {
		t.Fatalf("expected error %q, got %q", expected, got)
	}
}

// loginAs walks the full OTP flow and returns the session token.
func loginAs(t *testing.T, env *testEnv, identifier string) string {
	t.Helper()

	resp := performJSONRequest(t, env.app, http.MethodPost, "/api/auth/request-code", map[string]any{
		"identifier": identifier,
	}, nil)
	assertStatus(t, resp, http.StatusOK)
	resp.Body.Close()

	code := storedCode(t, env, identifier, "")
	resp = performJSONRequest(t, env.app, http.MethodPost, "/api/auth/verify", map[string]any{
		"identifier": identifier,
		"code":       code,
	}, nil)
	assertStatus(t, resp, http.StatusOK)
	body := decodeJSONMap(t, resp)

	data, ok := body["data"].(map[string]any)
	if !ok {
		t.Fatalf("expected data object, got %T", body["data"])
	}
	token, ok := data["token"].(string)
	if !ok || token == "" {
		t.Fatalf("expected token in response, got %+v", data)
	}
	return token
}
