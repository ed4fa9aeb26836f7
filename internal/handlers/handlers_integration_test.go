package handlers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"storefront/internal/handlers"
	"storefront/internal/models"
	"storefront/internal/repositories"
	"storefront/internal/services"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testJWTSecret = "test_jwt_secret"

type testEnv struct {
	app        *fiber.App
	store      *repositories.Store
	staffToken string
	aliceToken string
	bobToken   string
	products   []models.Product
}

// setupApp sets up a Fiber app for testing with a private in-memory SQLite
// database and all handlers/services.
func setupApp(t *testing.T) *testEnv {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	store, err := repositories.Open(repositories.DriverSQLite, dsn)
	require.NoError(t, err)
	require.NoError(t, store.Migrate())
	t.Cleanup(func() { store.Close() })

	authService := services.NewAuthService(testJWTSecret, time.Hour)
	productService := services.NewProductService(store.Products, nil)
	orderService := services.NewOrderService(store.Orders, store.Transactor, nil, nil)

	app := handlers.NewApp(handlers.Options{AllowAnonymousReads: true}, productService, orderService, authService)

	env := &testEnv{app: app, store: store}
	env.staffToken = issue(t, authService, models.User{ID: "staff-1", Username: "admin", IsStaff: true})
	env.aliceToken = issue(t, authService, models.User{ID: "alice", Username: "alice"})
	env.bobToken = issue(t, authService, models.User{ID: "bob", Username: "bob"})
	env.products = seedProductsForTest(t, store.Products)
	return env
}

func issue(t *testing.T, authService *services.AuthService, user models.User) string {
	t.Helper()
	token, err := authService.IssueToken(user)
	require.NoError(t, err)
	return token
}

// seedProductsForTest populates the product repository for tests.
func seedProductsForTest(t *testing.T, repo repositories.ProductRepository) []models.Product {
	t.Helper()
	products := []models.Product{
		{Name: "Test Laptop", Description: "For testing purposes", Price: decimal.RequireFromString("10.00"), Stock: 5},
		{Name: "Test Monitor", Description: "Another test item", Price: decimal.RequireFromString("200.00"), Stock: 10},
	}
	for i := range products {
		require.NoError(t, repo.Create(context.Background(), &products[i]))
	}
	return products
}

// TestMain runs setup and teardown for all tests
func TestMain(m *testing.M) {
	// Suppress logging during tests for cleaner output
	log.SetOutput(io.Discard)
	os.Exit(m.Run())
}

func (e *testEnv) do(t *testing.T, method, path, token string, body interface{}) (int, []byte) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		jsonBody, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(jsonBody)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := e.app.Test(req, -1) // -1 for no timeout
	require.NoError(t, err)
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, raw
}

func decode(t *testing.T, raw []byte, v interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(raw, v), string(raw))
}

func errorMessage(t *testing.T, raw []byte) string {
	t.Helper()
	var body map[string]interface{}
	decode(t, raw, &body)
	msg, _ := body["error"].(string)
	return msg
}

func TestHealth(t *testing.T) {
	env := setupApp(t)
	status, raw := env.do(t, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, status)
	var body map[string]string
	decode(t, raw, &body)
	assert.Equal(t, "healthy", body["status"])
}

func TestProductEndpointsWithoutAuth(t *testing.T) {
	env := setupApp(t)

	// Reads are open
	status, raw := env.do(t, http.MethodGet, "/products/", "", nil)
	assert.Equal(t, http.StatusOK, status)
	var products []models.Product
	decode(t, raw, &products)
	assert.Len(t, products, 2)

	status, _ = env.do(t, http.MethodGet, fmt.Sprintf("/products/%d", env.products[0].ID), "", nil)
	assert.Equal(t, http.StatusOK, status)

	// Mutations need a token
	newProduct := map[string]interface{}{"name": "Unauthorized Product", "price": 100.0, "stock": 10}
	status, _ = env.do(t, http.MethodPost, "/products/", "", newProduct)
	assert.Equal(t, http.StatusUnauthorized, status)

	status, _ = env.do(t, http.MethodPost, "/products/", "not-a-jwt", newProduct)
	assert.Equal(t, http.StatusUnauthorized, status)

	// ...and staff rights
	status, raw = env.do(t, http.MethodPost, "/products/", env.aliceToken, newProduct)
	assert.Equal(t, http.StatusForbidden, status)
	assert.NotEmpty(t, errorMessage(t, raw))

	status, _ = env.do(t, http.MethodDelete, fmt.Sprintf("/products/%d", env.products[0].ID), env.aliceToken, nil)
	assert.Equal(t, http.StatusForbidden, status)
}

func TestProductEndpointsAsStaff(t *testing.T) {
	env := setupApp(t)
	token := env.staffToken

	// --- POST /products ---
	newProduct := map[string]interface{}{
		"name":        "Smartphone",
		"description": "Latest model smartphone",
		"price":       799.99,
		"stock":       50,
	}
	status, raw := env.do(t, http.MethodPost, "/products/", token, newProduct)
	require.Equal(t, http.StatusCreated, status, string(raw))
	var createdProduct models.Product
	decode(t, raw, &createdProduct)
	assert.NotZero(t, createdProduct.ID)
	assert.Equal(t, "Smartphone", createdProduct.Name)
	assert.Equal(t, "799.99", createdProduct.Price.StringFixed(2))
	path := fmt.Sprintf("/products/%d", createdProduct.ID)

	// --- GET /products/:id ---
	status, raw = env.do(t, http.MethodGet, path, token, nil)
	assert.Equal(t, http.StatusOK, status)
	var fetchedProduct models.Product
	decode(t, raw, &fetchedProduct)
	assert.Equal(t, createdProduct.ID, fetchedProduct.ID)

	// --- PUT /products/:id ---
	updatedProductData := map[string]interface{}{
		"name":        "Smartphone Pro",
		"description": "Latest model smartphone pro edition",
		"price":       899.99,
		"stock":       45,
	}
	status, raw = env.do(t, http.MethodPut, path, token, updatedProductData)
	assert.Equal(t, http.StatusOK, status, string(raw))
	var updatedProduct models.Product
	decode(t, raw, &updatedProduct)
	assert.Equal(t, createdProduct.ID, updatedProduct.ID)
	assert.Equal(t, "Smartphone Pro", updatedProduct.Name)

	// --- PATCH /products/:id ---
	status, raw = env.do(t, http.MethodPatch, path, token, map[string]interface{}{"stock": 7})
	assert.Equal(t, http.StatusOK, status, string(raw))
	var patched models.Product
	decode(t, raw, &patched)
	assert.Equal(t, 7, patched.Stock)
	assert.Equal(t, "Smartphone Pro", patched.Name)

	// --- DELETE /products/:id ---
	status, raw = env.do(t, http.MethodDelete, path, token, nil)
	assert.Equal(t, http.StatusOK, status)
	var deleteResp map[string]string
	decode(t, raw, &deleteResp)
	assert.Equal(t, fmt.Sprintf("Product %d deleted successfully", createdProduct.ID), deleteResp["message"])

	// Verify deletion
	status, raw = env.do(t, http.MethodGet, path, token, nil)
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, "Product not found", errorMessage(t, raw))

	status, _ = env.do(t, http.MethodDelete, path, token, nil)
	assert.Equal(t, http.StatusNotFound, status)
}

func TestProductValidationAndBadInput(t *testing.T) {
	env := setupApp(t)
	token := env.staffToken

	status, raw := env.do(t, http.MethodPost, "/products/", token, map[string]interface{}{"name": "ab", "price": -1, "stock": 1})
	assert.Equal(t, http.StatusBadRequest, status)
	var body struct {
		Error  string            `json:"error"`
		Errors map[string]string `json:"errors"`
	}
	decode(t, raw, &body)
	assert.Equal(t, "Validation failed", body.Error)
	assert.Contains(t, body.Errors, "Name")
	assert.Contains(t, body.Errors, "Price")

	status, _ = env.do(t, http.MethodPut, "/products/999", token, map[string]interface{}{"name": "Ghost", "price": 1, "stock": 1})
	assert.Equal(t, http.StatusNotFound, status)

	status, _ = env.do(t, http.MethodGet, "/products/abc", "", nil)
	assert.Equal(t, http.StatusNotFound, status)

	req := httptest.NewRequest(http.MethodPost, "/products/", bytes.NewReader([]byte("{not json")))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)
	resp, err := env.app.Test(req, -1)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func createOrder(t *testing.T, env *testEnv, token string, lines ...models.OrderLine) (int, []byte) {
	t.Helper()
	return env.do(t, http.MethodPost, "/orders/", token, models.CreateOrderRequest{Products: lines})
}

func TestOrderLifecycle(t *testing.T) {
	env := setupApp(t)
	laptop := env.products[0]

	status, _ := createOrder(t, env, "", models.OrderLine{ProductID: laptop.ID, Quantity: 1})
	assert.Equal(t, http.StatusUnauthorized, status)

	// Buy the whole stock
	status, raw := createOrder(t, env, env.aliceToken, models.OrderLine{ProductID: laptop.ID, Quantity: 5})
	require.Equal(t, http.StatusCreated, status, string(raw))
	var order models.Order
	decode(t, raw, &order)
	assert.Equal(t, models.StatusPending, order.Status)
	assert.Equal(t, "alice", order.CustomerID)
	assert.Equal(t, "50.00", order.TotalPrice.StringFixed(2))
	require.Len(t, order.Items, 1)

	status, raw = env.do(t, http.MethodGet, fmt.Sprintf("/products/%d", laptop.ID), "", nil)
	require.Equal(t, http.StatusOK, status)
	var product models.Product
	decode(t, raw, &product)
	assert.Equal(t, 0, product.Stock)

	// Nothing left
	status, raw = createOrder(t, env, env.aliceToken, models.OrderLine{ProductID: laptop.ID, Quantity: 1})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "Insufficient stock for product Test Laptop", errorMessage(t, raw))

	// Cancel restocks
	orderPath := fmt.Sprintf("/orders/%d", order.ID)
	status, raw = env.do(t, http.MethodPut, orderPath+"/cancel", env.aliceToken, nil)
	assert.Equal(t, http.StatusOK, status)
	var statusResp map[string]string
	decode(t, raw, &statusResp)
	assert.Equal(t, "Order canceled, items restocked", statusResp["status"])

	status, raw = env.do(t, http.MethodGet, fmt.Sprintf("/products/%d", laptop.ID), "", nil)
	require.Equal(t, http.StatusOK, status)
	decode(t, raw, &product)
	assert.Equal(t, 5, product.Stock)

	status, raw = env.do(t, http.MethodPut, orderPath+"/cancel", env.aliceToken, nil)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "Order cannot be canceled", errorMessage(t, raw))

	status, _ = env.do(t, http.MethodPut, orderPath+"/ship", env.staffToken, nil)
	assert.Equal(t, http.StatusBadRequest, status)
}

func TestOrderShipAndDeliver(t *testing.T) {
	env := setupApp(t)
	monitor := env.products[1]

	status, raw := createOrder(t, env, env.aliceToken, models.OrderLine{ProductID: monitor.ID, Quantity: 2})
	require.Equal(t, http.StatusCreated, status, string(raw))
	var order models.Order
	decode(t, raw, &order)
	orderPath := fmt.Sprintf("/orders/%d", order.ID)

	status, _ = env.do(t, http.MethodPut, orderPath+"/ship", env.aliceToken, nil)
	assert.Equal(t, http.StatusForbidden, status)

	status, raw = env.do(t, http.MethodPut, orderPath+"/deliver", env.staffToken, nil)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "Order cannot be delivered", errorMessage(t, raw))

	status, raw = env.do(t, http.MethodPut, orderPath+"/ship", env.staffToken, nil)
	assert.Equal(t, http.StatusOK, status)
	var statusResp map[string]string
	decode(t, raw, &statusResp)
	assert.Equal(t, "Order shipped", statusResp["status"])

	status, raw = env.do(t, http.MethodPut, orderPath+"/cancel", env.aliceToken, nil)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "Order cannot be canceled", errorMessage(t, raw))

	status, raw = env.do(t, http.MethodPut, orderPath+"/deliver", env.staffToken, nil)
	assert.Equal(t, http.StatusOK, status)
	decode(t, raw, &statusResp)
	assert.Equal(t, "Order delivered", statusResp["status"])

	status, raw = env.do(t, http.MethodGet, orderPath, env.aliceToken, nil)
	require.Equal(t, http.StatusOK, status)
	decode(t, raw, &order)
	assert.Equal(t, models.StatusDelivered, order.Status)

	status, _ = env.do(t, http.MethodPut, "/orders/999/ship", env.staffToken, nil)
	assert.Equal(t, http.StatusNotFound, status)
}

func TestOrderVisibility(t *testing.T) {
	env := setupApp(t)
	laptop := env.products[0]

	status, raw := createOrder(t, env, env.aliceToken, models.OrderLine{ProductID: laptop.ID, Quantity: 1})
	require.Equal(t, http.StatusCreated, status, string(raw))
	var order models.Order
	decode(t, raw, &order)
	orderPath := fmt.Sprintf("/orders/%d", order.ID)

	status, raw = env.do(t, http.MethodGet, orderPath, env.bobToken, nil)
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, "Order not found", errorMessage(t, raw))

	status, _ = env.do(t, http.MethodPut, orderPath+"/cancel", env.bobToken, nil)
	assert.Equal(t, http.StatusNotFound, status)

	var orders []models.Order
	status, raw = env.do(t, http.MethodGet, "/orders/", env.bobToken, nil)
	assert.Equal(t, http.StatusOK, status)
	decode(t, raw, &orders)
	assert.Empty(t, orders)

	status, raw = env.do(t, http.MethodGet, "/orders/", env.staffToken, nil)
	assert.Equal(t, http.StatusOK, status)
	decode(t, raw, &orders)
	assert.Len(t, orders, 1)

	status, _ = env.do(t, http.MethodGet, "/orders/", "", nil)
	assert.Equal(t, http.StatusUnauthorized, status)
}

func TestCreateOrderValidation(t *testing.T) {
	env := setupApp(t)
	laptop := env.products[0]

	tests := []struct {
		name   string
		body   interface{}
		status int
	}{
		{"no products", map[string]interface{}{"products": []interface{}{}}, http.StatusBadRequest},
		{"missing products", map[string]interface{}{}, http.StatusBadRequest},
		{"zero quantity", models.CreateOrderRequest{Products: []models.OrderLine{{ProductID: laptop.ID, Quantity: 0}}}, http.StatusBadRequest},
		{"unknown product", models.CreateOrderRequest{Products: []models.OrderLine{{ProductID: 999, Quantity: 1}}}, http.StatusNotFound},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			status, raw := env.do(t, http.MethodPost, "/orders/", env.aliceToken, tc.body)
			assert.Equal(t, tc.status, status, string(raw))
		})
	}

	status, raw := env.do(t, http.MethodGet, fmt.Sprintf("/products/%d", laptop.ID), "", nil)
	require.Equal(t, http.StatusOK, status)
	var product models.Product
	decode(t, raw, &product)
	assert.Equal(t, 5, product.Stock)
}

func TestAuthMeAndRefresh(t *testing.T) {
	env := setupApp(t)

	status, _ := env.do(t, http.MethodGet, "/auth/me", "", nil)
	assert.Equal(t, http.StatusUnauthorized, status)

	status, raw := env.do(t, http.MethodGet, "/auth/me", env.staffToken, nil)
	require.Equal(t, http.StatusOK, status)
	var me models.User
	decode(t, raw, &me)
	assert.Equal(t, models.User{ID: "staff-1", Username: "admin", IsStaff: true}, me)

	status, raw = env.do(t, http.MethodPost, "/auth/refresh", env.aliceToken, nil)
	require.Equal(t, http.StatusOK, status)
	var refreshed map[string]string
	decode(t, raw, &refreshed)
	require.NotEmpty(t, refreshed["token"])

	status, raw = env.do(t, http.MethodGet, "/auth/me", refreshed["token"], nil)
	require.Equal(t, http.StatusOK, status)
	decode(t, raw, &me)
	assert.Equal(t, "alice", me.ID)
	assert.False(t, me.IsStaff)
}
