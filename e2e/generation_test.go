package e2e

import (
	"bytes"
	"image"
	"image/png"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/arstudio/api/internal/config"
)

var (
	fakeImageBytes  = []byte("\x89PNG\r\n\x1a\ngenerated-image")
	fakeSpeechBytes = []byte("ID3\x03\x00generated-speech")
)

// fakeGeneration stands in for the background-removal, text-to-image and
// text-to-speech services
type fakeGeneration struct {
	mu     sync.Mutex
	server *httptest.Server
	calls  map[string]int
	auth   []string
	upload []byte
}

func newFakeGeneration(t *testing.T) *fakeGeneration {
	t.Helper()
	g := &fakeGeneration{calls: map[string]int{}}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /remove-background", func(w http.ResponseWriter, r *http.Request) {
		g.record(r)
		file, _, err := r.FormFile("image")
		if err != nil {
			http.Error(w, "missing image", http.StatusBadRequest)
			return
		}
		defer file.Close()
		data, _ := io.ReadAll(file)
		g.mu.Lock()
		g.upload = data
		g.mu.Unlock()
		w.Header().Set("Content-Type", "image/png")
		w.Write(fakeImageBytes)
	})
	mux.HandleFunc("POST /image", func(w http.ResponseWriter, r *http.Request) {
		g.record(r)
		w.Header().Set("Content-Type", "image/png")
		w.Write(fakeImageBytes)
	})
	mux.HandleFunc("POST /speech", func(w http.ResponseWriter, r *http.Request) {
		g.record(r)
		w.Header().Set("Content-Type", "audio/mpeg")
		w.Write(fakeSpeechBytes)
	})
	mux.HandleFunc("POST /broken", func(w http.ResponseWriter, r *http.Request) {
		g.record(r)
		http.Error(w, `{"error":"model crashed"}`, http.StatusInternalServerError)
	})

	g.server = httptest.NewServer(mux)
	t.Cleanup(g.server.Close)
	return g
}

func (g *fakeGeneration) record(r *http.Request) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls[r.URL.Path]++
	g.auth = append(g.auth, r.Header.Get("Authorization"))
}

func (g *fakeGeneration) callCount(path string) int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.calls[path]
}

// setupGenerationApp wires the app with every generation endpoint pointed
// at gen. imagePath overrides the text-to-image route.
func setupGenerationApp(t *testing.T, gen *fakeGeneration, imagePath string) *testApp {
	t.Helper()
	return setupAppWith(t, func(cfg *config.Config) {
		cfg.Generation = config.GenerationConfig{
			BackgroundRemovalURL: gen.server.URL + "/remove-background",
			TextToImageURL:       gen.server.URL + imagePath,
			TextToSpeechURL:      gen.server.URL + "/speech",
			APIKey:               "gen-key",
		}
	})
}

func multipartImage(t *testing.T, filename string, data []byte) (string, string) {
	t.Helper()
	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	part, err := w.CreateFormFile("image", filename)
	if err != nil {
		t.Fatalf("failed to create form file: %v", err)
	}
	part.Write(data)
	w.Close()
	return body.String(), w.FormDataContentType()
}

func pngFixture(t *testing.T) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, 4, 4))); err != nil {
		t.Fatalf("failed to encode png: %v", err)
	}
	return buf.Bytes()
}

func TestGenerate_ImagePassThrough(t *testing.T) {
	gen := newFakeGeneration(t)
	ta := setupGenerationApp(t, gen, "/image")

	resp := mustAuthRequest(t, ta.app, http.MethodPost, "/api/generate/image", `{"prompt":"a red chair"}`)
	assertStatus(t, resp, http.StatusOK)

	if ct := resp.Header.Get("Content-Type"); ct != "image/png" {
		t.Errorf("expected Content-Type image/png, got %q", ct)
	}
	if body := readBody(t, resp); body != string(fakeImageBytes) {
		t.Errorf("expected generated bytes passed through, got %q", body)
	}
	if gen.auth[0] != "Bearer gen-key" {
		t.Errorf("expected generation API key, got %q", gen.auth[0])
	}
}

func TestGenerate_SpeechPassThrough(t *testing.T) {
	gen := newFakeGeneration(t)
	ta := setupGenerationApp(t, gen, "/image")

	resp := mustAuthRequest(t, ta.app, http.MethodPost, "/api/generate/speech", `{"text":"welcome to the lobby","voice":"alloy"}`)
	assertStatus(t, resp, http.StatusOK)

	if ct := resp.Header.Get("Content-Type"); ct != "audio/mpeg" {
		t.Errorf("expected Content-Type audio/mpeg, got %q", ct)
	}
	if body := readBody(t, resp); body != string(fakeSpeechBytes) {
		t.Errorf("expected speech bytes passed through, got %q", body)
	}
}

func TestGenerate_UpstreamFailureIsBadGateway(t *testing.T) {
	gen := newFakeGeneration(t)
	ta := setupGenerationApp(t, gen, "/broken")

	resp := mustAuthRequest(t, ta.app, http.MethodPost, "/api/generate/image", `{"prompt":"a red chair"}`)
	assertStatus(t, resp, http.StatusBadGateway)

	body := parseJSON(t, resp)
	if code := errorCode(body); code != "UPSTREAM_ERROR" {
		t.Errorf("expected UPSTREAM_ERROR, got %q", code)
	}
	if gen.callCount("/broken") != 1 {
		t.Errorf("expected one call to the generation service, got %d", gen.callCount("/broken"))
	}
}

func TestGenerate_RemoveBackground(t *testing.T) {
	gen := newFakeGeneration(t)
	ta := setupGenerationApp(t, gen, "/image")
	upload := pngFixture(t)

	// the declared extension is ignored; the bytes decide the type
	body, contentType := multipartImage(t, "photo.bin", upload)
	resp, err := doRequest(ta.app, http.MethodPost, "/api/generate/remove-background", body, map[string]string{
		"Authorization": "Bearer " + testToken,
		"Content-Type":  contentType,
	})
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	assertStatus(t, resp, http.StatusOK)

	if ct := resp.Header.Get("Content-Type"); ct != "image/png" {
		t.Errorf("expected Content-Type image/png, got %q", ct)
	}
	if got := readBody(t, resp); got != string(fakeImageBytes) {
		t.Errorf("expected cut-out bytes passed through, got %q", got)
	}
	if !bytes.Equal(gen.upload, upload) {
		t.Error("uploaded image was not forwarded unchanged")
	}
}

func TestGenerate_RemoveBackgroundRejectsNonImage(t *testing.T) {
	gen := newFakeGeneration(t)
	ta := setupGenerationApp(t, gen, "/image")

	body, contentType := multipartImage(t, "photo.png", []byte(strings.Repeat("plain text, not pixels\n", 8)))
	resp, err := doRequest(ta.app, http.MethodPost, "/api/generate/remove-background", body, map[string]string{
		"Authorization": "Bearer " + testToken,
		"Content-Type":  contentType,
	})
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	assertStatus(t, resp, http.StatusBadRequest)

	if code := errorCode(parseJSON(t, resp)); code != "VALIDATION_ERROR" {
		t.Errorf("expected VALIDATION_ERROR, got %q", code)
	}
	if gen.callCount("/remove-background") != 0 {
		t.Error("non-image upload reached the background removal service")
	}
}
