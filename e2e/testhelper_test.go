package e2e

import (
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/arstudio/api/internal/cache"
	"github.com/arstudio/api/internal/client"
	"github.com/arstudio/api/internal/config"
	"github.com/arstudio/api/internal/exec"
	"github.com/arstudio/api/internal/placement"
	"github.com/arstudio/api/internal/probe"
	"github.com/arstudio/api/internal/router"
	"github.com/arstudio/api/internal/service"
	"github.com/arstudio/api/internal/store"
	"github.com/arstudio/api/internal/worker"
	ws "github.com/arstudio/api/internal/websocket"
)

// testApp holds all components needed for testing
type testApp struct {
	app      *fiber.App
	upstream *fakeUpstream
}

func testConfig(upstreamURL string) *config.Config {
	return &config.Config{
		Server:   config.ServerConfig{Port: "0", Env: "test", LogLevel: "info", PublicURL: "http://api.test"},
		Upstream: config.UpstreamConfig{BaseURL: upstreamURL, Timeout: 5 * time.Second, PageSize: 200},
		Jobs: config.JobsConfig{
			InitialDelay: 20 * time.Millisecond,
			StepInterval: 30 * time.Millisecond,
			Driver:       config.DriverTimer,
			Processor:    config.ProcessorSimulated,
		},
		FFmpeg:    config.FFmpegConfig{FFmpegPath: "ffmpeg", FFprobePath: "ffprobe"},
		RateLimit: config.RateLimitConfig{JobsPerHour: 10000, UploadPerHour: 10000, GeneratePerMin: 10000},
		Placement: config.PlacementConfig{LightTagHeight: 1.6, PlacementRange: 20},
	}
}

// setupApp wires the app the way main.go does, against a fake upstream and
// without redis.
func setupApp(t *testing.T) *testApp {
	t.Helper()
	return setupAppWith(t, nil)
}

// setupAppWith is setupApp with a chance to adjust the config first
func setupAppWith(t *testing.T, configure func(*config.Config)) *testApp {
	t.Helper()

	upstream := newFakeUpstream(t)
	cfg := testConfig(upstream.baseURL())
	if configure != nil {
		configure(cfg)
	}
	validate := validator.New()

	hub := ws.NewHub()
	go hub.Run()
	t.Cleanup(hub.Stop)

	gateway := client.NewUpstreamClient(&cfg.Upstream)
	generation := client.NewGenerationClient(&cfg.Generation)

	runner := exec.NewCommandRunner()
	prober := probe.NewMediaProber(probe.NewVideoProber(cfg.FFmpeg.FFprobePath, runner), time.Second)

	assetService := service.NewAssetService(gateway, cache.NewCache("test", nil))
	sceneService := service.NewSceneService(gateway, assetService, placement.NewDiscoverer(prober, 2), 0)
	uploadService := service.NewUploadService(gateway, cfg.Placement.LightTagHeight, cfg.Placement.PlacementRange)
	jobService := service.NewJobService(store.NewMemoryJobRepository(), worker.NewSimulatedProcessor(),
		store.NewMemoryArtifactStore(), hub, validate, service.JobServiceOptions{
			InitialDelay: cfg.Jobs.InitialDelay,
			StepInterval: cfg.Jobs.StepInterval,
			PublicURL:    cfg.Server.PublicURL,
		})

	app := router.New(router.Deps{
		Config:     cfg,
		Validator:  validate,
		Hub:        hub,
		Jobs:       jobService,
		Assets:     assetService,
		Scenes:     sceneService,
		Uploads:    uploadService,
		Generation: service.NewGenerationService(generation),
		Auth:       service.NewAuthService(gateway),
		Services: map[string]interface{}{
			"upstream":   gateway.IsConfigured(),
			"redis":      false,
			"generation": generation.Configured(),
		},
	})

	return &testApp{app: app, upstream: upstream}
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

// doAuthRequest performs a request carrying the upstream test token.
func doAuthRequest(t *testing.T, app *fiber.App, method, path, body string) (*http.Response, error) {
	t.Helper()
	return doRequest(app, method, path, body, map[string]string{
		"Authorization": "Bearer " + testToken,
	})
}

// mustAuthRequest is doAuthRequest that fails the test on transport errors.
func mustAuthRequest(t *testing.T, app *fiber.App, method, path, body string) *http.Response {
	t.Helper()
	resp, err := doAuthRequest(t, app, method, path, body)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	return resp
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

// parseJSONArray parses response body into a slice.
func parseJSONArray(t *testing.T, resp *http.Response) []interface{} {
	t.Helper()
	body := readBody(t, resp)
	var result []interface{}
	if err := json.Unmarshal([]byte(body), &result); err != nil {
		t.Fatalf("failed to parse JSON array: %v\nbody: %s", err, body)
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

// errorCode returns error.code of an error envelope
func errorCode(body map[string]interface{}) string {
	if e, ok := body["error"].(map[string]interface{}); ok {
		code, _ := e["code"].(string)
		return code
	}
	return ""
}

func errorMessage(body map[string]interface{}) string {
	if e, ok := body["error"].(map[string]interface{}); ok {
		msg, _ := e["message"].(string)
		return msg
	}
	return ""
}
