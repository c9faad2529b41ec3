package e2e

import (
	"bytes"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"

	"github.com/cvalign/api/internal/client"
	"github.com/cvalign/api/internal/config"
	"github.com/cvalign/api/internal/handler"
	"github.com/cvalign/api/internal/middleware"
	"github.com/cvalign/api/internal/service"
)

const testJWTSecret = "test-secret-for-e2e"

// testApp holds all components needed for testing
type testApp struct {
	app  *fiber.App
	auth *middleware.AuthMiddleware
}

// setupApp wires a Fiber app identical to main.go. analyzerURL points the
// client at an httptest stand-in for the analysis service; routes touching
// Redis-backed job state are wired but their tests need a local Redis.
func setupApp(t *testing.T, analyzerURL string) *testApp {
	t.Helper()

	redisClient := redis.NewClient(&redis.Options{
		Addr: "localhost:6379",
		DB:   15, // use DB 15 for tests to avoid collision
	})

	asynqClient := asynq.NewClient(asynq.RedisClientOpt{
		Addr: "localhost:6379",
		DB:   15,
	})
	t.Cleanup(func() { asynqClient.Close() })

	validate := validator.New()

	analyzerCfg := &config.AnalyzerConfig{
		BaseURL:      analyzerURL,
		PollInterval: 10 * time.Millisecond,
		PollTimeout:  time.Second,
	}
	analyzer := client.NewAnalyzerClient(analyzerCfg)

	analysisService := service.NewAnalysisService(redisClient, asynqClient)
	exportService := service.NewExportService()

	analysisHandler := handler.NewAnalysisHandler(analysisService, validate)
	uploadHandler := handler.NewUploadHandler(analyzer)
	exportHandler := handler.NewExportHandler(analysisService, exportService)

	authMiddleware := middleware.NewAuthMiddleware(testJWTSecret, time.Hour)
	rateLimiter := middleware.NewRateLimiter(redisClient)

	app := fiber.New(fiber.Config{
		BodyLimit: 50 * 1024 * 1024,
	})

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})

	api := app.Group("/api", authMiddleware.Authenticate())

	// Very high rate limits so tests don't get blocked
	analysis := api.Group("/analysis")
	analysis.Post("/start", rateLimiter.AnalyzeLimit(10000), analysisHandler.Start)
	analysis.Get("/status/:jobId", analysisHandler.Status)
	analysis.Get("/result/:jobId", analysisHandler.Result)
	analysis.Post("/cancel/:jobId", analysisHandler.Cancel)

	upload := api.Group("/upload", rateLimiter.UploadLimit(10000))
	upload.Post("/resumes", uploadHandler.Resumes)

	export := api.Group("/export", rateLimiter.ExportLimit(10000))
	export.Get("/:jobId/csv", exportHandler.CSV)

	return &testApp{app: app, auth: authMiddleware}
}

// generateToken creates an HMAC JWT token for test requests.
func generateToken(t *testing.T, ta *testApp) string {
	t.Helper()
	token, err := ta.auth.GenerateToken("test-user-123", "test@example.com")
	if err != nil {
		t.Fatalf("failed to generate test token: %v", err)
	}
	return token
}

// multipartBody builds a multipart form with the given files and fields.
func multipartBody(t *testing.T, files map[string][]byte, fileField string, fields map[string]string) (io.Reader, string) {
	t.Helper()

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	for name, content := range files {
		part, err := writer.CreateFormFile(fileField, name)
		if err != nil {
			t.Fatalf("failed to create form file: %v", err)
		}
		if _, err := part.Write(content); err != nil {
			t.Fatalf("failed to write form file: %v", err)
		}
	}
	for k, v := range fields {
		if err := writer.WriteField(k, v); err != nil {
			t.Fatalf("failed to write form field: %v", err)
		}
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("failed to finalize form: %v", err)
	}

	return &buf, writer.FormDataContentType()
}

// doRequest is a helper to perform HTTP requests against the test app.
func doRequest(app *fiber.App, method, path string, body io.Reader, headers map[string]string) (*http.Response, error) {
	req, err := http.NewRequest(method, path, body)
	if err != nil {
		return nil, err
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	return app.Test(req, -1)
}

// doAuthRequest performs an authenticated request.
func doAuthRequest(t *testing.T, ta *testApp, method, path string, body io.Reader, contentType string) (*http.Response, error) {
	t.Helper()
	headers := map[string]string{
		"Authorization": "Bearer " + generateToken(t, ta),
	}
	if contentType != "" {
		headers["Content-Type"] = contentType
	}
	return doRequest(ta.app, method, path, body, headers)
}

// readBody reads and returns the response body as a string.
func readBody(t *testing.T, resp *http.Response) string {
	t.Helper()
	defer resp.Body.Close()
	b, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("failed to read response body: %v", err)
	}
	return string(b)
}

// parseJSON parses response body into a map.
func parseJSON(t *testing.T, resp *http.Response) map[string]interface{} {
	t.Helper()
	body := readBody(t, resp)
	var result map[string]interface{}
	if err := json.Unmarshal([]byte(body), &result); err != nil {
		t.Fatalf("failed to parse JSON: %v\nbody: %s", err, body)
	}
	return result
}

// assertStatus checks the HTTP status code.
func assertStatus(t *testing.T, resp *http.Response, expected int) {
	t.Helper()
	if resp.StatusCode != expected {
		t.Errorf("expected status %d, got %d", expected, resp.StatusCode)
	}
}
