package probe

import (
	"bytes"
	"context"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/chai2010/webp"
	"github.com/gabriel-vasile/mimetype"

	"github.com/arstudio/api/internal/model"
)

// sniffLen is how much of a remote file is read before deciding how to
// decode its header.
const sniffLen = 3072

// MediaProber measures remote images by decoding their headers and remote
// videos with ffprobe.
type MediaProber struct {
	httpClient *http.Client
	video      *VideoProber
}

func NewMediaProber(video *VideoProber, timeout time.Duration) *MediaProber {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &MediaProber{
		httpClient: &http.Client{Timeout: timeout},
		video:      video,
	}
}

// Probe returns the intrinsic pixel size of the media at url
func (p *MediaProber) Probe(ctx context.Context, kind model.MediaKind, url string) (int, int, error) {
	switch kind {
	case model.MediaKindVideo:
		if p.video == nil {
			return 0, 0, fmt.Errorf("video probing not configured")
		}
		info, err := p.video.ProbeVideo(ctx, url)
		if err != nil {
			return 0, 0, err
		}
		return info.Width, info.Height, nil
	case model.MediaKindImage:
		return p.probeImage(ctx, url)
	default:
		return 0, 0, fmt.Errorf("cannot probe %s media", kind)
	}
}

func (p *MediaProber) probeImage(ctx context.Context, url string) (int, int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 0, 0, err
	}
	resp, err := p.httpClient.Do(req)
	if err != nil {
		return 0, 0, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return 0, 0, fmt.Errorf("fetch %s: status %d", url, resp.StatusCode)
	}
	return ImageSize(resp.Body)
}

// ImageSize decodes only the header of an image stream
func ImageSize(r io.Reader) (int, int, error) {
	head := make([]byte, sniffLen)
	n, err := io.ReadFull(r, head)
	if err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
		return 0, 0, err
	}
	head = head[:n]

	mime := mimetype.Detect(head)
	if !strings.HasPrefix(mime.String(), "image/") {
		return 0, 0, fmt.Errorf("not an image: %s", mime.String())
	}

	body := io.MultiReader(bytes.NewReader(head), r)
	var cfg image.Config
	if mime.Is("image/webp") {
		cfg, err = webp.DecodeConfig(body)
	} else {
		cfg, _, err = image.DecodeConfig(body)
	}
	if err != nil {
		return 0, 0, fmt.Errorf("decode %s header: %w", mime.String(), err)
	}
	return cfg.Width, cfg.Height, nil
}
