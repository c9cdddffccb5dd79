package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"time"

	"github.com/arstudio/api/internal/config"
	"github.com/arstudio/api/internal/model"
)

const generationService = "generation service"

// maxGenerationResponse caps how much of a generated payload is buffered
const maxGenerationResponse = 64 << 20

// GenerationClient forwards workbench requests to the background-removal,
// text-to-image and text-to-speech services. Responses pass through.
type GenerationClient struct {
	httpClient           *http.Client
	backgroundRemovalURL string
	textToImageURL       string
	textToSpeechURL      string
	apiKey               string
}

func NewGenerationClient(cfg *config.GenerationConfig) *GenerationClient {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 120 * time.Second
	}
	return &GenerationClient{
		httpClient:           &http.Client{Timeout: timeout},
		backgroundRemovalURL: cfg.BackgroundRemovalURL,
		textToImageURL:       cfg.TextToImageURL,
		textToSpeechURL:      cfg.TextToSpeechURL,
		apiKey:               cfg.APIKey,
	}
}

// Configured reports which generation endpoints are set
func (c *GenerationClient) Configured() map[string]bool {
	return map[string]bool{
		"background_removal": c.backgroundRemovalURL != "",
		"text_to_image":      c.textToImageURL != "",
		"text_to_speech":     c.textToSpeechURL != "",
	}
}

// RemoveBackground uploads an image as multipart field "image"
func (c *GenerationClient) RemoveBackground(ctx context.Context, filename, contentType string, data []byte) (*model.PassThrough, error) {
	if c.backgroundRemovalURL == "" {
		return nil, fmt.Errorf("background removal endpoint not configured")
	}

	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="image"; filename=%q`, filename))
	h.Set("Content-Type", contentType)
	part, err := w.CreatePart(h)
	if err != nil {
		return nil, fmt.Errorf("failed to create multipart part: %w", err)
	}
	if _, err := part.Write(data); err != nil {
		return nil, fmt.Errorf("failed to write multipart part: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("failed to close multipart body: %w", err)
	}

	return c.send(ctx, c.backgroundRemovalURL, w.FormDataContentType(), &body)
}

// TextToImage forwards a prompt
func (c *GenerationClient) TextToImage(ctx context.Context, req *model.TextToImageRequest) (*model.PassThrough, error) {
	if c.textToImageURL == "" {
		return nil, fmt.Errorf("text to image endpoint not configured")
	}
	return c.sendJSON(ctx, c.textToImageURL, req)
}

// TextToSpeech forwards text and voice
func (c *GenerationClient) TextToSpeech(ctx context.Context, req *model.TextToSpeechRequest) (*model.PassThrough, error) {
	if c.textToSpeechURL == "" {
		return nil, fmt.Errorf("text to speech endpoint not configured")
	}
	return c.sendJSON(ctx, c.textToSpeechURL, req)
}

func (c *GenerationClient) sendJSON(ctx context.Context, endpoint string, payload any) (*model.PassThrough, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}
	return c.send(ctx, endpoint, "application/json", bytes.NewReader(raw))
}

func (c *GenerationClient) send(ctx context.Context, endpoint, contentType string, body io.Reader) (*model.PassThrough, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", contentType)
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	log.Printf("[Generation] → POST %s", req.URL.Path)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		log.Printf("[Generation] ✗ POST %s: %v", req.URL.Path, err)
		return nil, transportError(generationService, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxGenerationResponse))
	if err != nil {
		return nil, transportError(generationService, err)
	}

	log.Printf("[Generation] ← %d POST %s (%d bytes)", resp.StatusCode, req.URL.Path, len(respBody))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &UpstreamError{
			Service: generationService,
			Method:  http.MethodPost,
			Path:    req.URL.Path,
			Status:  resp.StatusCode,
			Body:    truncate(string(respBody), 512),
		}
	}

	ct := resp.Header.Get("Content-Type")
	if ct == "" {
		ct = http.DetectContentType(respBody)
	}
	return &model.PassThrough{Status: resp.StatusCode, ContentType: ct, Body: respBody}, nil
}
