package handlers_test

import (
	"bytes"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"tokostore/internal/config"
	"tokostore/internal/database"
	"tokostore/internal/handlers"
	"tokostore/internal/middleware"
	"tokostore/internal/repositories"
	"tokostore/internal/services"
	"tokostore/internal/storage"
	"tokostore/internal/testutil"
)

// setupApp builds the full API over a private in-memory SQLite database.
func setupApp(t *testing.T) (*fiber.App, *gorm.DB) {
	db := testutil.NewDB(t)
	store := repositories.NewGORMStore(db)
	images := storage.NewImageStore(afero.NewMemMapFs(), "http://localhost:8080/uploads", 1<<20)

	authService := services.NewAuthService(store.Users(), store.RefreshTokens(), config.AuthConfig{
		JWTSecret:  "test_jwt_secret",
		AccessTTL:  time.Minute,
		RefreshTTL: time.Hour,
	})

	app := fiber.New(fiber.Config{ErrorHandler: handlers.ErrorHandler})
	handlers.API{
		Auth:       authService,
		Categories: services.NewCategoryService(store.Categories()),
		Products:   services.NewProductService(store, images),
		Carts:      services.NewCartService(store),
		Orders:     services.NewOrderService(store, nil),
		Images:     images,
	}.Mount(app.Group("/api"))
	handlers.NewHealthHandler(func() error { return database.Ping(db) }).RegisterRoutes(app)
	return app, db
}

// TestMain runs setup and teardown for all tests
func TestMain(m *testing.M) {
	// Suppress logging during tests for cleaner output
	logrus.SetOutput(io.Discard)
	os.Exit(m.Run())
}

type call struct {
	method  string
	path    string
	body    interface{}
	token   string
	headers map[string]string
}

// do sends c through the app and decodes the JSON response into out when given.
func do(t *testing.T, app *fiber.App, c call, out interface{}) *http.Response {
	t.Helper()
	var body io.Reader
	if c.body != nil {
		raw, err := json.Marshal(c.body)
		require.NoError(t, err)
		body = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(c.method, c.path, body)
	if c.body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	for k, v := range c.headers {
		req.Header.Set(k, v)
	}
	resp, err := app.Test(req, -1) // -1 for no timeout
	require.NoError(t, err)
	if out != nil {
		defer resp.Body.Close()
		require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp
}

type authResponse struct {
	Message      string `json:"message"`
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
	User         struct {
		ID   string `json:"id"`
		Role string `json:"role"`
	} `json:"user"`
}

func register(t *testing.T, app *fiber.App, username string) authResponse {
	t.Helper()
	var res authResponse
	resp := do(t, app, call{method: http.MethodPost, path: "/api/auth/register", body: map[string]string{
		"email":    username + "@example.com",
		"username": username,
		"password": "password123",
	}}, &res)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	return res
}

func adminToken(t *testing.T, app *fiber.App) string {
	t.Helper()
	resp := do(t, app, call{method: http.MethodPost, path: "/api/auth/admin", body: map[string]string{
		"email":    "admin@example.com",
		"username": "admin",
		"password": "password123",
	}}, nil)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var res authResponse
	resp = do(t, app, call{method: http.MethodPost, path: "/api/auth/login", body: map[string]string{
		"email":    "admin@example.com",
		"password": "password123",
	}}, &res)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "ADMIN", res.User.Role)
	return res.AccessToken
}

func TestAuthRegisterLoginAndRefresh(t *testing.T) {
	app, _ := setupApp(t)

	registered := register(t, app, "testuser")
	assert.Equal(t, "User registered successfully", registered.Message)
	assert.NotEmpty(t, registered.AccessToken)

	// Test Duplicate Registration
	resp := do(t, app, call{method: http.MethodPost, path: "/api/auth/register", body: map[string]string{
		"email":    "TESTUSER@example.com",
		"username": "someoneelse",
		"password": "password123",
	}}, nil)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	var failed map[string]string
	resp = do(t, app, call{method: http.MethodPost, path: "/api/auth/login", body: map[string]string{
		"email":    "testuser@example.com",
		"password": "wrong-password",
	}}, &failed)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, "invalid credentials", failed["message"])

	var login authResponse
	resp = do(t, app, call{method: http.MethodPost, path: "/api/auth/login", body: map[string]string{
		"email":    "testuser@example.com",
		"password": "password123",
	}}, &login)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var profile map[string]interface{}
	resp = do(t, app, call{method: http.MethodGet, path: "/api/auth/profile", token: login.AccessToken}, &profile)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "testuser", profile["username"])
	assert.NotContains(t, profile, "password")

	var pair services.TokenPair
	resp = do(t, app, call{method: http.MethodPost, path: "/api/auth/refresh", body: map[string]string{
		"refreshToken": login.RefreshToken,
	}}, &pair)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.NotEmpty(t, pair.AccessToken)

	// rotated tokens cannot be replayed
	resp = do(t, app, call{method: http.MethodPost, path: "/api/auth/refresh", body: map[string]string{
		"refreshToken": login.RefreshToken,
	}}, nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp = do(t, app, call{method: http.MethodPost, path: "/api/auth/logout", token: pair.AccessToken}, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	resp = do(t, app, call{method: http.MethodPost, path: "/api/auth/refresh", body: map[string]string{
		"refreshToken": pair.RefreshToken,
	}}, nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestValidationErrors(t *testing.T) {
	app, _ := setupApp(t)

	var res struct {
		Message string            `json:"message"`
		Errors  map[string]string `json:"errors"`
	}
	resp := do(t, app, call{method: http.MethodPost, path: "/api/auth/register", body: map[string]string{
		"email":    "not-an-email",
		"username": "ab",
	}}, &res)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "Validation failed", res.Message)
	assert.Contains(t, res.Errors, "Email")
	assert.Contains(t, res.Errors, "Username")
	assert.Contains(t, res.Errors, "Password")
}

func TestCatalogEndpoints(t *testing.T) {
	app, _ := setupApp(t)
	admin := adminToken(t, app)
	user := register(t, app, "shopper").AccessToken

	// writes need an admin
	categoryBody := map[string]string{"name": "Electronics"}
	resp := do(t, app, call{method: http.MethodPost, path: "/api/categories", body: categoryBody}, nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	resp = do(t, app, call{method: http.MethodPost, path: "/api/categories", body: categoryBody, token: user}, nil)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	var category map[string]interface{}
	resp = do(t, app, call{method: http.MethodPost, path: "/api/categories", body: categoryBody, token: admin}, &category)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.Equal(t, "electronics", category["slug"])
	categoryID := category["id"].(string)

	var product map[string]interface{}
	resp = do(t, app, call{method: http.MethodPost, path: "/api/products", token: admin, body: map[string]interface{}{
		"name":        "Smartphone",
		"description": "Latest model smartphone",
		"price":       "799.99",
		"stock":       50,
		"categoryId":  categoryID,
	}}, &product)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.Equal(t, "smartphone", product["slug"])
	assert.Equal(t, "799.99", product["price"])
	productID := product["id"].(string)

	// reads are public
	var page struct {
		Data []map[string]interface{} `json:"data"`
		Meta services.PageMeta        `json:"meta"`
	}
	resp = do(t, app, call{method: http.MethodGet, path: "/api/products?q=smart&minPrice=100&sortBy=price&sortOrder=desc"}, &page)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Len(t, page.Data, 1)
	assert.Equal(t, int64(1), page.Meta.Total)

	resp = do(t, app, call{method: http.MethodGet, path: "/api/products?sortBy=color"}, nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = do(t, app, call{method: http.MethodGet, path: "/api/products/slug/smartphone"}, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var stocked map[string]interface{}
	resp = do(t, app, call{method: http.MethodPatch, path: "/api/products/" + productID + "/stock", token: admin, body: map[string]int{"quantity": -60}}, nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp = do(t, app, call{method: http.MethodPatch, path: "/api/products/" + productID + "/stock", token: admin, body: map[string]int{"quantity": -10}}, &stocked)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, float64(40), stocked["stock"])

	// the category is still in use
	resp = do(t, app, call{method: http.MethodDelete, path: "/api/categories/" + categoryID, token: admin}, nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	var deleted map[string]string
	resp = do(t, app, call{method: http.MethodDelete, path: "/api/products/" + productID, token: admin}, &deleted)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, deleted["message"], "deleted successfully")

	resp = do(t, app, call{method: http.MethodGet, path: "/api/products/" + productID}, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestGuestCartToOrder(t *testing.T) {
	app, db := setupApp(t)
	admin := adminToken(t, app)
	category := testutil.CreateCategory(t, db, "Books")
	book := testutil.CreateProduct(t, db, category.ID, "Go in Action", "10.00", 5)

	// a first add without any credential opens a guest cart
	var cart map[string]interface{}
	resp := do(t, app, call{method: http.MethodPost, path: "/api/cart/add", body: map[string]interface{}{
		"productId": book.ID,
		"quantity":  2,
	}}, &cart)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	guestToken := resp.Header.Get(middleware.HeaderGuestToken)
	require.NotEmpty(t, guestToken)
	assert.Equal(t, guestToken, cart["guestToken"])
	assert.Equal(t, float64(2), cart["totalItems"])

	guest := map[string]string{middleware.HeaderGuestToken: guestToken}
	resp = do(t, app, call{method: http.MethodPost, path: "/api/cart/add", headers: guest, body: map[string]interface{}{
		"productId": book.ID,
		"quantity":  6,
	}}, nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = do(t, app, call{method: http.MethodGet, path: "/api/cart", headers: guest}, &cart)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "20", cart["totalAmount"])

	// guests cannot check out
	resp = do(t, app, call{method: http.MethodPost, path: "/api/orders", headers: guest, body: map[string]string{
		"shippingAddress": "1 Main Street",
		"phoneNumber":     "5550100",
	}}, nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	user := register(t, app, "reader").AccessToken
	var order map[string]interface{}
	resp = do(t, app, call{method: http.MethodPost, path: "/api/orders", token: user, headers: guest, body: map[string]string{
		"shippingAddress": "1 Main Street",
		"phoneNumber":     "5550100",
	}}, &order)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.Equal(t, "PENDING", order["status"])
	assert.Equal(t, "20", order["totalAmount"])
	assert.Equal(t, 3, testutil.Stock(t, db, book.ID))
	orderID := order["id"].(string)

	resp = do(t, app, call{method: http.MethodGet, path: "/api/cart", token: user}, &cart)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, float64(0), cart["totalItems"])

	resp = do(t, app, call{method: http.MethodPost, path: "/api/orders", token: user, body: map[string]string{
		"shippingAddress": "1 Main Street",
		"phoneNumber":     "5550100",
	}}, nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	// status changes are admin only
	status := map[string]string{"status": "CANCELLED", "notes": "customer request"}
	resp = do(t, app, call{method: http.MethodPatch, path: "/api/orders/" + orderID + "/status", token: user, body: status}, nil)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	resp = do(t, app, call{method: http.MethodPatch, path: "/api/orders/" + orderID + "/status", token: admin, body: status}, &order)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "CANCELLED", order["status"])
	assert.Equal(t, 5, testutil.Stock(t, db, book.ID))

	resp = do(t, app, call{method: http.MethodPatch, path: "/api/orders/" + orderID + "/status", token: admin, body: map[string]string{"status": "PENDING"}}, nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	var stats map[string]interface{}
	resp = do(t, app, call{method: http.MethodGet, path: "/api/orders/stats", token: user}, &stats)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, float64(1), stats["totalOrders"])
	assert.Equal(t, "0", stats["totalSpent"])

	resp = do(t, app, call{method: http.MethodGet, path: "/api/orders/stats", token: admin}, &stats)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, stats, "totalRevenue")

	var orders struct {
		Data []map[string]interface{} `json:"data"`
	}
	resp = do(t, app, call{method: http.MethodGet, path: "/api/orders?status=CANCELLED", token: user}, &orders)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Len(t, orders.Data, 1)

	other := register(t, app, "stranger").AccessToken
	resp = do(t, app, call{method: http.MethodGet, path: "/api/orders/" + orderID, token: other}, nil)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}

func TestCartTransfer(t *testing.T) {
	app, db := setupApp(t)
	category := testutil.CreateCategory(t, db, "Games")
	game := testutil.CreateProduct(t, db, category.ID, "Chess", "15.00", 10)
	user := register(t, app, "player").AccessToken

	var created struct {
		GuestToken string `json:"guestToken"`
	}
	resp := do(t, app, call{method: http.MethodPost, path: "/api/cart/guest"}, &created)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	guest := map[string]string{middleware.HeaderGuestToken: created.GuestToken}

	resp = do(t, app, call{method: http.MethodPost, path: "/api/cart/add", headers: guest, body: map[string]interface{}{"productId": game.ID, "quantity": 2}}, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp = do(t, app, call{method: http.MethodPost, path: "/api/cart/add", token: user, body: map[string]interface{}{"productId": game.ID, "quantity": 3}}, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp = do(t, app, call{method: http.MethodPost, path: "/api/cart/transfer", body: map[string]string{"guestToken": created.GuestToken}}, nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	var cart struct {
		Items []struct {
			ID       string `json:"id"`
			Quantity int    `json:"quantity"`
		} `json:"cartItems"`
	}
	resp = do(t, app, call{method: http.MethodPost, path: "/api/cart/transfer", token: user, body: map[string]string{"guestToken": created.GuestToken}}, &cart)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Len(t, cart.Items, 1)
	assert.Equal(t, 5, cart.Items[0].Quantity)

	resp = do(t, app, call{method: http.MethodGet, path: "/api/cart", headers: guest}, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp = do(t, app, call{method: http.MethodPatch, path: "/api/cart/items/" + cart.Items[0].ID, token: user, body: map[string]int{"quantity": 0}}, &cart)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Empty(t, cart.Items)
}

func TestUploadImage(t *testing.T) {
	app, _ := setupApp(t)
	admin := adminToken(t, app)

	var body bytes.Buffer
	form := multipart.NewWriter(&body)
	part, err := form.CreateFormFile("file", "pixel.png")
	require.NoError(t, err)
	_, err = part.Write([]byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR"))
	require.NoError(t, err)
	require.NoError(t, form.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/upload/image", &body)
	req.Header.Set("Content-Type", form.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+admin)
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var uploaded map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&uploaded))
	resp.Body.Close()
	assert.Contains(t, uploaded["url"], "http://localhost:8080/uploads/products/")

	resp = do(t, app, call{method: http.MethodDelete, path: "/api/upload/image", token: admin, body: map[string]string{"imageUrl": "https://elsewhere.example/x.png"}}, nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp = do(t, app, call{method: http.MethodDelete, path: "/api/upload/image", token: admin, body: map[string]string{"imageUrl": uploaded["url"]}}, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestHealth(t *testing.T) {
	app, _ := setupApp(t)

	var health map[string]string
	resp := do(t, app, call{method: http.MethodGet, path: "/health"}, &health)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "healthy", health["status"])
	assert.Equal(t, "connected", health["database"])
}
