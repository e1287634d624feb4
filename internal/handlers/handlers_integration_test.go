package handlers_test

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"ghiblify/internal/handlers"
	"ghiblify/internal/middleware"
	"ghiblify/internal/models"
	"ghiblify/internal/repositories"
	"ghiblify/internal/services"
	"ghiblify/pkg/realtime"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const (
	testJWTSecret     = "integration_test_secret"
	testWebhookSecret = "whsec_integration_test"
)

// fakeImageAPI stands in for the image provider.
type fakeImageAPI struct {
	calls int
}

func (f *fakeImageAPI) Generate(ctx context.Context, prompt, quality string) (string, error) {
	f.calls++
	return fmt.Sprintf("https://images.example.com/gen-%d.png", f.calls), nil
}

// fakeObjectStore stands in for the S3 bucket.
type fakeObjectStore struct {
	ensured  int
	uploaded int
}

func (f *fakeObjectStore) EnsureBucket(ctx context.Context) error {
	f.ensured++
	return nil
}

func (f *fakeObjectStore) Upload(ctx context.Context, key, contentType string, body io.Reader) (string, error) {
	f.uploaded++
	return "https://temp-uploads.example.com/" + key, nil
}

type testEnv struct {
	app   *fiber.App
	api   *fakeImageAPI
	store *fakeObjectStore
}

// setupTestApp wires the full route table against an in-memory
// database, with the external providers faked.
func setupTestApp(t *testing.T) *testEnv {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	err = db.AutoMigrate(
		&models.User{},
		&models.GalleryImage{},
		&models.FeedImage{},
		&models.SavedImage{},
		&models.Subscription{},
	)
	if err != nil {
		t.Fatalf("failed to migrate test database: %v", err)
	}

	userRepo := repositories.NewGORMUserRepository(db)
	galleryRepo := repositories.NewGORMGalleryRepository(db)
	feedRepo := repositories.NewGORMFeedRepository(db)
	subscriptionRepo := repositories.NewGORMSubscriptionRepository(db)

	api := &fakeImageAPI{}
	store := &fakeObjectStore{}
	broker := realtime.NewBroker()
	credits := services.NewCreditTracker(services.DefaultWeeklyCredits)

	authService := services.NewAuthService(userRepo, feedRepo, testJWTSecret)
	storageService := services.NewStorageService(store)
	generationService := services.NewGenerationService(api, credits, subscriptionRepo, storageService)
	galleryService := services.NewGalleryService(galleryRepo, nil)
	feedService := services.NewFeedService(feedRepo, broker, nil)
	subscriptionService := services.NewSubscriptionService(subscriptionRepo, userRepo, "", testWebhookSecret, "https://app.example.com")

	authHandler := handlers.NewAuthHandler(authService)
	generationHandler := handlers.NewGenerationHandler(generationService)
	galleryHandler := handlers.NewGalleryHandler(galleryService)
	feedHandler := handlers.NewFeedHandler(feedService)
	subscriptionHandler := handlers.NewSubscriptionHandler(subscriptionService)
	storageHandler := handlers.NewStorageHandler(storageService)

	app := fiber.New(fiber.Config{
		BodyLimit: services.MaxUploadBytes + 1024*1024,
	})
	apiV1 := app.Group("/api/v1")

	authHandler.RegisterRoutes(apiV1)
	subscriptionHandler.RegisterWebhookRoutes(apiV1)

	protected := apiV1.Group("", middleware.AuthRequired(authService))
	authHandler.RegisterProfileRoutes(protected)
	generationHandler.RegisterRoutes(protected)
	galleryHandler.RegisterRoutes(protected)
	feedHandler.RegisterRoutes(protected)
	subscriptionHandler.RegisterRoutes(protected)
	storageHandler.RegisterRoutes(protected)

	return &testEnv{app: app, api: api, store: store}
}

func doJSON(t *testing.T, app *fiber.App, method, path, token string, body any) (*http.Response, map[string]any) {
	t.Helper()

	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		assert.NoError(t, err)
		reader = bytes.NewReader(encoded)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := app.Test(req, -1)
	assert.NoError(t, err)

	raw, err := io.ReadAll(resp.Body)
	assert.NoError(t, err)
	resp.Body.Close()

	var decoded map[string]any
	if len(raw) > 0 {
		// Array responses are wrapped so callers can still inspect them.
		if raw[0] == '[' {
			var list []any
			assert.NoError(t, json.Unmarshal(raw, &list))
			decoded = map[string]any{"items": list}
		} else {
			assert.NoError(t, json.Unmarshal(raw, &decoded))
		}
	}
	return resp, decoded
}

// registerAndLogin creates an account and returns its JWT and user ID.
func registerAndLogin(t *testing.T, app *fiber.App, username string) (token, userID string) {
	t.Helper()

	resp, body := doJSON(t, app, "POST", "/api/v1/auth/register", "", fiber.Map{
		"username": username,
		"email":    username + "@example.com",
		"password": "password123",
	})
	assert.Equal(t, fiber.StatusCreated, resp.StatusCode)
	user := body["user"].(map[string]any)
	userID = user["id"].(string)

	resp, body = doJSON(t, app, "POST", "/api/v1/auth/login", "", fiber.Map{
		"username": username,
		"password": "password123",
	})
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	token = body["token"].(string)
	assert.NotEmpty(t, token)
	return token, userID
}

func TestIntegration_RegisterAndLogin(t *testing.T) {
	env := setupTestApp(t)

	resp, body := doJSON(t, env.app, "POST", "/api/v1/auth/register", "", fiber.Map{
		"username": "ghibli_fan",
		"email":    "fan@example.com",
		"password": "password123",
	})
	assert.Equal(t, fiber.StatusCreated, resp.StatusCode)
	user := body["user"].(map[string]any)
	assert.Equal(t, "ghibli_fan", user["username"])
	// The password hash never leaves the server.
	assert.Empty(t, user["Password"])

	// Duplicate username.
	resp, _ = doJSON(t, env.app, "POST", "/api/v1/auth/register", "", fiber.Map{
		"username": "ghibli_fan",
		"email":    "other@example.com",
		"password": "password123",
	})
	assert.Equal(t, fiber.StatusConflict, resp.StatusCode)

	// Validation failure: short password.
	resp, _ = doJSON(t, env.app, "POST", "/api/v1/auth/register", "", fiber.Map{
		"username": "another",
		"email":    "another@example.com",
		"password": "123",
	})
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)

	// Login with the right and wrong password.
	resp, _ = doJSON(t, env.app, "POST", "/api/v1/auth/login", "", fiber.Map{
		"username": "ghibli_fan",
		"password": "password123",
	})
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	resp, _ = doJSON(t, env.app, "POST", "/api/v1/auth/login", "", fiber.Map{
		"username": "ghibli_fan",
		"password": "wrong",
	})
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
}

func TestIntegration_ProtectedRoutesRequireToken(t *testing.T) {
	env := setupTestApp(t)

	for _, route := range []struct{ method, path string }{
		{"GET", "/api/v1/users/me"},
		{"GET", "/api/v1/gallery"},
		{"GET", "/api/v1/feed"},
		{"POST", "/api/v1/generate"},
		{"GET", "/api/v1/subscription"},
	} {
		resp, _ := doJSON(t, env.app, route.method, route.path, "", nil)
		assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode, "%s %s", route.method, route.path)
	}

	// A garbage token is also rejected.
	resp, _ := doJSON(t, env.app, "GET", "/api/v1/users/me", "not.a.token", nil)
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
}

func TestIntegration_Profile(t *testing.T) {
	env := setupTestApp(t)
	token, _ := registerAndLogin(t, env.app, "totoro")

	resp, body := doJSON(t, env.app, "GET", "/api/v1/users/me", token, nil)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Equal(t, "totoro", body["username"])
	assert.Equal(t, false, body["onboarding_completed"])
	stats := body["stats"].(map[string]any)
	assert.Equal(t, float64(0), stats["total_images"])
	assert.Equal(t, float64(0), stats["total_likes"])

	// Update avatar and complete onboarding.
	resp, body = doJSON(t, env.app, "PATCH", "/api/v1/users/me", token, fiber.Map{
		"avatar_url":           "https://cdn.example.com/totoro.png",
		"onboarding_completed": true,
	})
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	user := body["user"].(map[string]any)
	assert.Equal(t, "https://cdn.example.com/totoro.png", user["avatar_url"])
	assert.Equal(t, true, user["onboarding_completed"])

	// Renaming to an existing username conflicts.
	registerAndLogin(t, env.app, "kiki")
	resp, _ = doJSON(t, env.app, "PATCH", "/api/v1/users/me", token, fiber.Map{
		"username": "kiki",
	})
	assert.Equal(t, fiber.StatusConflict, resp.StatusCode)
}

func TestIntegration_Generation(t *testing.T) {
	env := setupTestApp(t)
	token, _ := registerAndLogin(t, env.app, "haku")

	resp, body := doJSON(t, env.app, "GET", "/api/v1/generate/credits", token, nil)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Equal(t, float64(services.DefaultWeeklyCredits), body["remaining_credits"])

	resp, body = doJSON(t, env.app, "POST", "/api/v1/generate", token, fiber.Map{
		"prompt":      "a dragon over the sea",
		"magic_level": 80,
	})
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	result := body["result"].(map[string]any)
	assert.Equal(t, "a dragon over the sea", result["prompt"])
	assert.Contains(t, result["image_url"], "https://images.example.com/")
	assert.Equal(t, float64(services.DefaultWeeklyCredits-1), body["remaining_credits"])
	assert.Equal(t, 1, env.api.calls)

	// Empty prompt is a client error and does not burn a credit.
	resp, _ = doJSON(t, env.app, "POST", "/api/v1/generate", token, fiber.Map{
		"prompt": "   ",
	})
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)

	resp, body = doJSON(t, env.app, "GET", "/api/v1/generate/credits", token, nil)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Equal(t, float64(services.DefaultWeeklyCredits-1), body["remaining_credits"])
}

func TestIntegration_GenerationCreditExhaustion(t *testing.T) {
	env := setupTestApp(t)
	token, _ := registerAndLogin(t, env.app, "ponyo")

	for i := 0; i < services.DefaultWeeklyCredits; i++ {
		resp, _ := doJSON(t, env.app, "POST", "/api/v1/generate", token, fiber.Map{
			"prompt": fmt.Sprintf("scene %d", i),
		})
		assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	}

	resp, body := doJSON(t, env.app, "POST", "/api/v1/generate", token, fiber.Map{
		"prompt": "one more",
	})
	assert.Equal(t, fiber.StatusPaymentRequired, resp.StatusCode)
	assert.Contains(t, body["message"], "Upgrade to premium")
	assert.Equal(t, services.DefaultWeeklyCredits, env.api.calls)
}

func TestIntegration_Transform(t *testing.T) {
	env := setupTestApp(t)
	token, _ := registerAndLogin(t, env.app, "chihiro")

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	header := make(map[string][]string)
	header["Content-Disposition"] = []string{`form-data; name="image"; filename="photo.png"`}
	header["Content-Type"] = []string{"image/png"}
	part, err := writer.CreatePart(header)
	assert.NoError(t, err)
	_, err = part.Write(bytes.Repeat([]byte{0x89}, 1024))
	assert.NoError(t, err)
	assert.NoError(t, writer.WriteField("magic_level", "30"))
	assert.NoError(t, writer.Close())

	req := httptest.NewRequest("POST", "/api/v1/generate/transform", &buf)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := env.app.Test(req, -1)
	assert.NoError(t, err)
	raw, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	assert.Equal(t, fiber.StatusOK, resp.StatusCode, string(raw))

	var body map[string]any
	assert.NoError(t, json.Unmarshal(raw, &body))
	result := body["result"].(map[string]any)
	// No prompt field was sent; the default transform instruction applies.
	assert.Equal(t, "Transform this image in Studio Ghibli style", result["prompt"])
	assert.Equal(t, 1, env.store.uploaded)
	assert.Equal(t, 1, env.api.calls)
}

func TestIntegration_Gallery(t *testing.T) {
	env := setupTestApp(t)
	token, userID := registerAndLogin(t, env.app, "jiji")

	resp, body := doJSON(t, env.app, "POST", "/api/v1/gallery", token, fiber.Map{
		"prompt":      "a bakery by the sea",
		"image_url":   "https://images.example.com/bakery.png",
		"magic_level": 65,
	})
	assert.Equal(t, fiber.StatusCreated, resp.StatusCode)
	imageID := body["id"].(string)
	assert.Equal(t, userID, body["user_id"])
	assert.Equal(t, float64(65), body["magic_level"])

	// Invalid URL is rejected.
	resp, _ = doJSON(t, env.app, "POST", "/api/v1/gallery", token, fiber.Map{
		"prompt":    "bad",
		"image_url": "not-a-url",
	})
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)

	resp, body = doJSON(t, env.app, "GET", "/api/v1/gallery", token, nil)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	items := body["items"].([]any)
	assert.Len(t, items, 1)

	// Another user cannot delete it.
	otherToken, _ := registerAndLogin(t, env.app, "yubaba")
	resp, _ = doJSON(t, env.app, "DELETE", "/api/v1/gallery/"+imageID, otherToken, nil)
	assert.Equal(t, fiber.StatusForbidden, resp.StatusCode)

	// The owner can.
	resp, _ = doJSON(t, env.app, "DELETE", "/api/v1/gallery/"+imageID, token, nil)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	resp, _ = doJSON(t, env.app, "DELETE", "/api/v1/gallery/"+imageID, token, nil)
	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)

	resp, body = doJSON(t, env.app, "GET", "/api/v1/gallery", token, nil)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Empty(t, body["items"])
}

func TestIntegration_Feed(t *testing.T) {
	env := setupTestApp(t)
	token, userID := registerAndLogin(t, env.app, "sheeta")

	resp, body := doJSON(t, env.app, "POST", "/api/v1/feed", token, fiber.Map{
		"prompt":    "a floating castle",
		"image_url": "https://images.example.com/laputa.png",
	})
	assert.Equal(t, fiber.StatusCreated, resp.StatusCode)
	imageID := body["id"].(string)
	assert.Equal(t, float64(0), body["likes"])

	resp, body = doJSON(t, env.app, "GET", "/api/v1/feed", token, nil)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	images := body["images"].([]any)
	assert.Len(t, images, 1)
	entry := images[0].(map[string]any)
	assert.Equal(t, "sheeta", entry["username"])
	assert.Equal(t, userID, entry["user_id"])
	assert.Equal(t, false, body["has_more"])

	// Two likes land as two increments.
	resp, _ = doJSON(t, env.app, "POST", "/api/v1/feed/"+imageID+"/like", token, nil)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	resp, body = doJSON(t, env.app, "POST", "/api/v1/feed/"+imageID+"/like", token, nil)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Equal(t, float64(2), body["likes"])

	resp, _ = doJSON(t, env.app, "POST", "/api/v1/feed/missing/like", token, nil)
	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)

	// Save, duplicate save, saved list, unsave.
	resp, _ = doJSON(t, env.app, "POST", "/api/v1/feed/"+imageID+"/save", token, nil)
	assert.Equal(t, fiber.StatusCreated, resp.StatusCode)

	resp, _ = doJSON(t, env.app, "POST", "/api/v1/feed/"+imageID+"/save", token, nil)
	assert.Equal(t, fiber.StatusConflict, resp.StatusCode)

	resp, body = doJSON(t, env.app, "GET", "/api/v1/feed/saved", token, nil)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	saved := body["items"].([]any)
	assert.Len(t, saved, 1)
	assert.Equal(t, float64(2), saved[0].(map[string]any)["likes"])

	resp, _ = doJSON(t, env.app, "DELETE", "/api/v1/feed/"+imageID+"/save", token, nil)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	resp, _ = doJSON(t, env.app, "DELETE", "/api/v1/feed/"+imageID+"/save", token, nil)
	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)

	// The bookmark can be recreated after removal.
	resp, _ = doJSON(t, env.app, "POST", "/api/v1/feed/"+imageID+"/save", token, nil)
	assert.Equal(t, fiber.StatusCreated, resp.StatusCode)

	// Likes from the feed roll up into the owner's profile stats.
	resp, body = doJSON(t, env.app, "GET", "/api/v1/users/me", token, nil)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	stats := body["stats"].(map[string]any)
	assert.Equal(t, float64(1), stats["total_images"])
	assert.Equal(t, float64(2), stats["total_likes"])
}

func TestIntegration_FeedPagination(t *testing.T) {
	env := setupTestApp(t)
	token, _ := registerAndLogin(t, env.app, "arrietty")

	for i := 0; i < 12; i++ {
		resp, _ := doJSON(t, env.app, "POST", "/api/v1/feed", token, fiber.Map{
			"prompt":    fmt.Sprintf("miniature world %d", i),
			"image_url": fmt.Sprintf("https://images.example.com/%d.png", i),
		})
		assert.Equal(t, fiber.StatusCreated, resp.StatusCode)
	}

	resp, body := doJSON(t, env.app, "GET", "/api/v1/feed?page=1", token, nil)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Len(t, body["images"].([]any), services.FeedPageSize)
	assert.Equal(t, true, body["has_more"])

	resp, body = doJSON(t, env.app, "GET", "/api/v1/feed?page=2", token, nil)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Len(t, body["images"].([]any), 2)
	assert.Equal(t, false, body["has_more"])
}

func signTestWebhook(payload []byte) string {
	ts := time.Now().Unix()
	mac := hmac.New(sha256.New, []byte(testWebhookSecret))
	fmt.Fprintf(mac, "%d.%s", ts, payload)
	return fmt.Sprintf("t=%d,v1=%s", ts, hex.EncodeToString(mac.Sum(nil)))
}

func TestIntegration_SubscriptionLifecycle(t *testing.T) {
	env := setupTestApp(t)
	token, userID := registerAndLogin(t, env.app, "howl")

	// Fresh accounts are free and inactive.
	resp, body := doJSON(t, env.app, "GET", "/api/v1/subscription", token, nil)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Equal(t, false, body["is_subscribed"])
	assert.Equal(t, false, body["is_premium"])

	// A signed checkout.session.completed upgrades the account.
	payload := []byte(fmt.Sprintf(`{
		"id": "evt_1",
		"object": "event",
		"api_version": "2023-10-16",
		"type": "checkout.session.completed",
		"data": {
			"object": {
				"id": "cs_test_1",
				"object": "checkout.session",
				"customer": {"id": "cus_123"},
				"subscription": {"id": "sub_123"},
				"metadata": {"userId": "%s"}
			}
		}
	}`, userID))

	req := httptest.NewRequest("POST", "/api/v1/billing/webhook", bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Stripe-Signature", signTestWebhook(payload))
	webhookResp, err := env.app.Test(req, -1)
	assert.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, webhookResp.StatusCode)
	webhookResp.Body.Close()

	resp, body = doJSON(t, env.app, "GET", "/api/v1/subscription", token, nil)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Equal(t, true, body["is_subscribed"])
	assert.Equal(t, true, body["is_premium"])

	// Premium accounts generate past the free-tier limit.
	for i := 0; i < services.DefaultWeeklyCredits+2; i++ {
		genResp, _ := doJSON(t, env.app, "POST", "/api/v1/generate", token, fiber.Map{
			"prompt": fmt.Sprintf("castle %d", i),
		})
		assert.Equal(t, fiber.StatusOK, genResp.StatusCode)
	}

	// An unsigned webhook is rejected and changes nothing.
	req = httptest.NewRequest("POST", "/api/v1/billing/webhook", bytes.NewReader(payload))
	req.Header.Set("Stripe-Signature", "t=0,v1=deadbeef")
	webhookResp, err = env.app.Test(req, -1)
	assert.NoError(t, err)
	assert.Equal(t, fiber.StatusBadRequest, webhookResp.StatusCode)
	webhookResp.Body.Close()

	// Checkout without a price is a client error.
	resp, _ = doJSON(t, env.app, "POST", "/api/v1/subscription/checkout", token, fiber.Map{})
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
}

func TestIntegration_StorageProvision(t *testing.T) {
	env := setupTestApp(t)
	token, _ := registerAndLogin(t, env.app, "nausicaa")

	resp, body := doJSON(t, env.app, "POST", "/api/v1/storage/provision", token, nil)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Equal(t, true, body["success"])
	assert.Equal(t, 1, env.store.ensured)

	// Provisioning is idempotent.
	resp, _ = doJSON(t, env.app, "POST", "/api/v1/storage/provision", token, nil)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Equal(t, 2, env.store.ensured)
}
