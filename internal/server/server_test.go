package server

import (
	"encoding/json"
	"errors"
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"

	"github.com/pocketbank/pocketbank/internal/config"
	"github.com/pocketbank/pocketbank/internal/logging"
)

func newTestServer(t *testing.T) *fiber.App {
	t.Helper()
	mr := miniredis.RunT(t)
	cache := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { cache.Close() })

	cfg := config.Config{
		AppName:                "test",
		AppEnv:                 "test",
		Port:                   "0",
		JWTSecret:              "secret",
		RefreshSecret:          "refresh",
		AccessTokenTTL:         time.Hour,
		RefreshTokenTTL:        time.Hour,
		IdempotencyTTL:         time.Minute,
		LockTimeout:            time.Second,
		MaxConflictRetries:     1,
		LoginAttemptsPerMinute: 10,
		CORSOrigins:            []string{"http://localhost:3000"},
	}
	srv, err := New(cfg, nil, cache, logging.Discard())
	if err != nil {
		t.Fatalf("build server: %v", err)
	}
	return srv.App()
}

type call struct {
	method  string
	path    string
	token   string
	body    string
	headers map[string]string
}

func do(t *testing.T, app *fiber.App, c call) (int, map[string]any) {
	t.Helper()
	var reader io.Reader
	if c.body != "" {
		reader = strings.NewReader(c.body)
	}
	req := httptest.NewRequest(c.method, c.path, reader)
	req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	if c.token != "" {
		req.Header.Set(fiber.HeaderAuthorization, "Bearer "+c.token)
	}
	for k, v := range c.headers {
		req.Header.Set(k, v)
	}
	resp, err := app.Test(req, -1)
	if err != nil {
		t.Fatalf("%s %s: %v", c.method, c.path, err)
	}
	defer resp.Body.Close()
	var decoded map[string]any
	raw, _ := io.ReadAll(resp.Body)
	_ = json.Unmarshal(raw, &decoded)
	return resp.StatusCode, decoded
}

func login(t *testing.T, app *fiber.App, username string) string {
	t.Helper()
	creds := `{"username":"` + username + `","password":"pw"}`
	if status, body := do(t, app, call{method: fiber.MethodPost, path: "/api/register", body: creds}); status != fiber.StatusCreated {
		t.Fatalf("register %s: %d %v", username, status, body)
	}
	status, body := do(t, app, call{method: fiber.MethodPost, path: "/api/login", body: creds})
	token, _ := body["token"].(string)
	if status != fiber.StatusOK || token == "" {
		t.Fatalf("login %s: %d %v", username, status, body)
	}
	return token
}

func openAccount(t *testing.T, app *fiber.App, token string) string {
	t.Helper()
	status, body := do(t, app, call{method: fiber.MethodPost, path: "/api/account", token: token})
	number, _ := body["accountNumber"].(string)
	if status != fiber.StatusCreated || number == "" {
		t.Fatalf("create account: %d %v", status, body)
	}
	return number
}

func TestEndToEndMoneyMovement(t *testing.T) {
	app := newTestServer(t)
	alice := login(t, app, "alice")
	bob := login(t, app, "bob")
	a := openAccount(t, app, alice)
	b := openAccount(t, app, bob)

	status, body := do(t, app, call{method: fiber.MethodPost, path: "/api/account/deposit", token: alice,
		body: `{"accountNumber":"` + a + `","amount":100}`})
	if status != fiber.StatusOK || body["balance"] != "100.00" {
		t.Fatalf("deposit: %d %v", status, body)
	}

	status, body = do(t, app, call{method: fiber.MethodPost, path: "/api/account/transfer", token: alice,
		body: `{"accountNumber":"` + a + `","targetAccountNumber":"` + b + `","amount":40}`})
	if status != fiber.StatusOK || body["balance"] != "60.00" {
		t.Fatalf("transfer: %d %v", status, body)
	}

	status, body = do(t, app, call{method: fiber.MethodPost, path: "/api/account/withdraw", token: bob,
		body: `{"accountNumber":"` + b + `","amount":"50"}`})
	if status != fiber.StatusBadRequest || body["message"] != "insufficient funds or unauthorized access" {
		t.Fatalf("overdraw: %d %v", status, body)
	}

	status, body = do(t, app, call{method: fiber.MethodGet, path: "/api/me", token: bob})
	if status != fiber.StatusOK || body["total_balance"] != "40.00" {
		t.Fatalf("me: %d %v", status, body)
	}

	status, _ = do(t, app, call{method: fiber.MethodGet, path: "/api/account/" + a + "/transactions", token: bob})
	if status != fiber.StatusForbidden {
		t.Fatalf("foreign ledger: expected 403 got %d", status)
	}
}

func TestProtectedRoutesRequireToken(t *testing.T) {
	app := newTestServer(t)

	status, body := do(t, app, call{method: fiber.MethodGet, path: "/api/accounts"})
	if status != fiber.StatusUnauthorized || body["message"] == nil {
		t.Fatalf("expected JSON 401, got %d %v", status, body)
	}
}

func TestLogoutRevokesAccessToken(t *testing.T) {
	app := newTestServer(t)
	token := login(t, app, "carol")

	if status, _ := do(t, app, call{method: fiber.MethodPost, path: "/api/auth/logout", token: token}); status != fiber.StatusOK {
		t.Fatalf("logout: %d", status)
	}
	if status, _ := do(t, app, call{method: fiber.MethodGet, path: "/api/accounts", token: token}); status != fiber.StatusUnauthorized {
		t.Fatalf("expected revoked token to be refused, got %d", status)
	}
}

func TestIdempotentDeposit(t *testing.T) {
	app := newTestServer(t)
	token := login(t, app, "dave")
	a := openAccount(t, app, token)

	deposit := call{
		method:  fiber.MethodPost,
		path:    "/api/account/deposit",
		token:   token,
		body:    `{"accountNumber":"` + a + `","amount":25}`,
		headers: map[string]string{"Idempotency-Key": "dep-1"},
	}
	for i := 0; i < 2; i++ {
		if status, body := do(t, app, deposit); status != fiber.StatusOK || body["balance"] != "25.00" {
			t.Fatalf("attempt %d: %d %v", i+1, status, body)
		}
	}

	_, body := do(t, app, call{method: fiber.MethodGet, path: "/api/account/" + a + "/transactions", token: token})
	rows, _ := body["transactions"].([]any)
	if len(rows) != 1 {
		t.Fatalf("replayed deposit must not post twice, got %d rows", len(rows))
	}
}

func TestHealthz(t *testing.T) {
	app := newTestServer(t)
	status, body := do(t, app, call{method: fiber.MethodGet, path: "/healthz"})
	if status != fiber.StatusOK {
		t.Fatalf("healthz: %d %v", status, body)
	}
}

func TestErrorHandlerHidesUnexpectedErrors(t *testing.T) {
	app := fiber.New(fiber.Config{ErrorHandler: ErrorHandler})
	app.Get("/boom", func(c *fiber.Ctx) error { return errors.New("pq: secret detail") })

	status, body := do(t, app, call{method: fiber.MethodGet, path: "/boom"})
	if status != fiber.StatusInternalServerError || body["message"] != "internal server error" {
		t.Fatalf("unexpected response: %d %v", status, body)
	}
}
