package main

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"storefront/internal/config"
	"storefront/internal/models"
	"storefront/internal/services"
	"storefront/pkg/rabbitmq"

	log "github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig() *config.Config {
	return &config.Config{
		AppPort:             ":0",
		DBDriver:            "memory",
		JWTSecret:           "test_jwt_secret",
		TokenTTL:            time.Hour,
		AllowAnonymousReads: true,
		LogLevel:            "info",
	}
}

func TestMain(m *testing.M) {
	log.SetOutput(io.Discard)
	os.Exit(m.Run())
}

func TestApplicationHealthAndSeed(t *testing.T) {
	ctx := context.Background()
	a, err := newApplication(ctx, testConfig())
	require.NoError(t, err)
	defer a.Close()

	seedProducts(ctx, a.store.Products)

	resp, err := a.app.Test(httptest.NewRequest(http.MethodGet, "/health", nil), -1)
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), `"status":"healthy"`)

	resp, err = a.app.Test(httptest.NewRequest(http.MethodGet, "/products/", nil), -1)
	require.NoError(t, err)
	var products []models.Product
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&products))
	resp.Body.Close()
	require.Len(t, products, 3)
	assert.Equal(t, "Laptop", products[0].Name)
	assert.Equal(t, "1200.00", products[0].Price.StringFixed(2))
}

func TestSeedProductsIsIdempotent(t *testing.T) {
	ctx := context.Background()
	a, err := newApplication(ctx, testConfig())
	require.NoError(t, err)
	defer a.Close()

	seedProducts(ctx, a.store.Products)
	seedProducts(ctx, a.store.Products)

	products, err := a.store.Products.GetAll(ctx)
	require.NoError(t, err)
	assert.Len(t, products, 3)
}

func TestApplicationRequiresSecret(t *testing.T) {
	cfg := testConfig()
	cfg.JWTSecret = ""
	_, err := newApplication(context.Background(), cfg)
	assert.Error(t, err)

	cfg = testConfig()
	cfg.DBDriver = "oracle"
	_, err = newApplication(context.Background(), cfg)
	assert.Error(t, err)
}

func TestTokenCommand(t *testing.T) {
	t.Setenv("JWT_SECRET", "cli_secret")
	t.Setenv("TOKEN_TTL", "1h")

	var out bytes.Buffer
	app := newCLI()
	app.Writer = &out
	require.NoError(t, app.Run([]string{"storefront", "token", "--user-id", "alice", "--username", "Alice", "--staff"}))

	token := strings.TrimSpace(out.String())
	require.NotEmpty(t, token)

	user, err := services.NewAuthService("cli_secret", time.Hour).Authenticate(token)
	require.NoError(t, err)
	assert.Equal(t, &models.User{ID: "alice", Username: "Alice", IsStaff: true}, user)
}

func TestTokenCommandRequiresUserID(t *testing.T) {
	t.Setenv("JWT_SECRET", "cli_secret")
	app := newCLI()
	app.Writer = io.Discard
	app.ErrWriter = io.Discard
	assert.Error(t, app.Run([]string{"storefront", "token"}))
}

func TestLogOrderEvent(t *testing.T) {
	var buf bytes.Buffer
	log.SetOutput(&buf)
	defer log.SetOutput(io.Discard)

	require.NoError(t, logOrderEvent(rabbitmq.NewOrderEvent(rabbitmq.EventOrderCreated, 1, "alice", "pending", "10.00")))
	assert.Contains(t, buf.String(), "order.created")
	assert.Contains(t, buf.String(), "customer_id=alice")
}
