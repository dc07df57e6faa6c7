package e2e

import (
	"bytes"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/doclingui/api/internal/config"
	"github.com/doclingui/api/internal/extractor"
	"github.com/doclingui/api/internal/handler"
	"github.com/doclingui/api/internal/middleware"
	"github.com/doclingui/api/internal/model"
	"github.com/doclingui/api/internal/service"
	"github.com/doclingui/api/internal/storage"
)

// testApp holds all components needed for testing
type testApp struct {
	app *fiber.App
}

// setupApp creates a Fiber app identical to main.go but with a temp data root,
// no Redis (rate limiter passes through) and placeholder extraction.
func setupApp(t *testing.T) *testApp {
	t.Helper()

	validate := validator.New()

	store, err := storage.New(t.TempDir())
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}

	// No converter command: placeholder extraction echoes text documents
	runner := extractor.NewRunner(&config.ExtractionConfig{})

	jobService := service.NewJobService(store, runner, nil, nil, model.DefaultChunking())

	uploadHandler := handler.NewUploadHandler(jobService, validate, &config.UploadConfig{
		MaxSizeMB: 10,
		MinFreeMB: 0,
	})
	extractHandler := handler.NewExtractHandler(jobService, validate)
	jobHandler := handler.NewJobHandler(jobService)
	artifactHandler := handler.NewArtifactHandler(jobService)
	storageHandler := handler.NewStorageHandler(jobService)

	rateLimiter := middleware.NewRateLimiter(nil)

	app := fiber.New(fiber.Config{
		BodyLimit: 10 * 1024 * 1024,
	})

	app.Get("/", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"timestamp": 1234567890})
	})
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status": "ok",
			"services": fiber.Map{
				"extractor": runner.IsConfigured(),
				"archive":   false,
				"redis":     false,
			},
		})
	})

	app.Post("/upload", rateLimiter.UploadLimit(10000), uploadHandler.Upload)
	app.Post("/extract/:jobId", rateLimiter.ExtractLimit(10000), extractHandler.Start)
	app.Get("/job/:jobId", jobHandler.Get)
	app.Get("/job/:jobId/progress", jobHandler.Progress)
	app.Get("/artifact/:jobId/:filename", artifactHandler.Download)
	app.Post("/storage/clean", rateLimiter.CleanLimit(10000), storageHandler.Clean)

	return &testApp{app: app}
}

// createUploadRequest builds a multipart/form-data request with one document file.
func createUploadRequest(t *testing.T, filename, content string) *http.Request {
	t.Helper()

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	part, err := writer.CreateFormFile("file", filename)
	if err != nil {
		t.Fatalf("failed to create form file: %v", err)
	}
	if _, err := part.Write([]byte(content)); err != nil {
		t.Fatalf("failed to write form file: %v", err)
	}
	writer.Close()

	req, err := http.NewRequest(http.MethodPost, "/upload", &buf)
	if err != nil {
		t.Fatalf("failed to create request: %v", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())
	return req
}

// uploadDocument uploads a file and returns its job ID.
func uploadDocument(t *testing.T, ta *testApp, filename, content string) string {
	t.Helper()

	resp, err := ta.app.Test(createUploadRequest(t, filename, content), -1)
	if err != nil {
		t.Fatalf("upload request failed: %v", err)
	}
	assertStatus(t, resp, http.StatusCreated)

	result := parseJSON(t, resp)
	jobID, _ := result["jobId"].(string)
	if jobID == "" {
		t.Fatalf("upload response missing jobId: %v", result)
	}
	return jobID
}

// waitForJobStatus polls GET /job/:id until the wanted status or a timeout.
func waitForJobStatus(t *testing.T, ta *testApp, jobID, want string) map[string]interface{} {
	t.Helper()

	deadline := time.Now().Add(5 * time.Second)
	var last map[string]interface{}
	for time.Now().Before(deadline) {
		resp, err := doRequest(ta.app, http.MethodGet, "/job/"+jobID, "", nil)
		if err != nil {
			t.Fatalf("job request failed: %v", err)
		}
		if resp.StatusCode == http.StatusOK {
			last = parseJSON(t, resp)
			meta, _ := last["metadata"].(map[string]interface{})
			if meta != nil && meta["status"] == want {
				return last
			}
		} else {
			resp.Body.Close()
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatalf("job %s never reached status %q (last: %v)", jobID, want, last)
	return nil
}

// doRequest is a helper to perform HTTP requests against the test app.
func doRequest(app *fiber.App, method, path string, body string, headers map[string]string) (*http.Response, error) {
	var bodyReader io.Reader
	if body != "" {
		bodyReader = strings.NewReader(body)
	}

	req, err := http.NewRequest(method, path, bodyReader)
	if err != nil {
		return nil, err
	}

	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	return app.Test(req, -1)
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

// assertErrorCode checks the error envelope code.
func assertErrorCode(t *testing.T, result map[string]interface{}, want string) {
	t.Helper()
	errObj, _ := result["error"].(map[string]interface{})
	if errObj == nil {
		t.Fatalf("expected error envelope, got %v", result)
	}
	if errObj["code"] != want {
		t.Errorf("error code = %v, want %s", errObj["code"], want)
	}
}
