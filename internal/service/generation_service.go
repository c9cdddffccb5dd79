package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/gabriel-vasile/mimetype"

	"github.com/arstudio/api/internal/client"
	"github.com/arstudio/api/internal/model"
)

// MaxBackgroundRemovalUpload bounds uploaded image size
const MaxBackgroundRemovalUpload = 20 << 20

var backgroundRemovalTypes = []string{"image/png", "image/jpeg", "image/webp"}

// GenerationService proxies the workbench generation endpoints
type GenerationService struct {
	client *client.GenerationClient
}

func NewGenerationService(c *client.GenerationClient) *GenerationService {
	return &GenerationService{client: c}
}

func (s *GenerationService) configured(name string) bool {
	return s.client != nil && s.client.Configured()[name]
}

// RemoveBackground validates the upload by content, not by its declared
// type, then forwards it.
func (s *GenerationService) RemoveBackground(ctx context.Context, filename string, data []byte) (*model.PassThrough, error) {
	if !s.configured("background_removal") {
		return nil, ErrNotConfigured
	}
	if len(data) == 0 {
		return nil, newValidationError("image is empty")
	}
	if len(data) > MaxBackgroundRemovalUpload {
		return nil, newValidationError(fmt.Sprintf("image exceeds %d MB", MaxBackgroundRemovalUpload>>20))
	}

	mime := mimetype.Detect(data)
	if !mimetype.EqualsAny(mime.String(), backgroundRemovalTypes...) {
		return nil, &ValidationError{
			Message: "unsupported image type " + mime.String(),
			Fields:  map[string]string{"image": strings.Join(backgroundRemovalTypes, "|")},
		}
	}
	if filename == "" {
		filename = "image" + mime.Extension()
	}
	return s.client.RemoveBackground(ctx, filename, mime.String(), data)
}

func (s *GenerationService) TextToImage(ctx context.Context, req *model.TextToImageRequest) (*model.PassThrough, error) {
	if !s.configured("text_to_image") {
		return nil, ErrNotConfigured
	}
	return s.client.TextToImage(ctx, req)
}

func (s *GenerationService) TextToSpeech(ctx context.Context, req *model.TextToSpeechRequest) (*model.PassThrough, error) {
	if !s.configured("text_to_speech") {
		return nil, ErrNotConfigured
	}
	return s.client.TextToSpeech(ctx, req)
}
