package worker

import (
	"archive/zip"
	"bytes"
	"context"
	"fmt"
	"image"
	"io"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/chai2010/webp"
	"github.com/disintegration/imaging"
	"github.com/gabriel-vasile/mimetype"

	"github.com/arstudio/api/internal/exec"
	"github.com/arstudio/api/internal/model"
	"github.com/arstudio/api/internal/service"
)

// maxSourceSize bounds a downloaded source image
const maxSourceSize = 100 << 20

var unsafeName = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

var videoCodecs = map[string]string{
	"h264": "libx264",
	"h265": "libx265",
	"vp9":  "libvpx-vp9",
}

// AssetResolver looks up the source media of a job
type AssetResolver interface {
	GetAsset(ctx context.Context, token, assetID string) (*model.Asset, error)
}

// NativeProcessor downscales images with imaging and transcodes videos with
// ffmpeg, then stores all outputs as one zip.
type NativeProcessor struct {
	assets     AssetResolver
	artifacts  service.ArtifactStore
	runner     exec.Runner
	ffmpegPath string
	httpClient *http.Client
}

func NewNativeProcessor(assets AssetResolver, artifacts service.ArtifactStore, runner exec.Runner, ffmpegPath string) *NativeProcessor {
	if ffmpegPath == "" {
		ffmpegPath = "ffmpeg"
	}
	return &NativeProcessor{
		assets:     assets,
		artifacts:  artifacts,
		runner:     runner,
		ffmpegPath: ffmpegPath,
		httpClient: &http.Client{Timeout: 2 * time.Minute},
	}
}

type output struct {
	name string
	data []byte
}

func (p *NativeProcessor) Process(ctx context.Context, job model.Job) (*model.ResultArtifact, error) {
	var outputs []output
	for _, assetID := range job.AssetIDs {
		asset, err := p.assets.GetAsset(ctx, job.AuthToken, assetID)
		if err != nil {
			return nil, fmt.Errorf("asset %s: %w", assetID, err)
		}
		if asset.URL == "" {
			return nil, fmt.Errorf("asset %s has no url", assetID)
		}

		var out output
		switch job.Kind {
		case model.JobKindDownscale:
			out, err = p.downscale(ctx, job, asset)
		case model.JobKindTranscode:
			out, err = p.transcode(ctx, job, asset)
		default:
			err = fmt.Errorf("unsupported job kind %q", job.Kind)
		}
		if err != nil {
			return nil, fmt.Errorf("asset %s: %w", assetID, err)
		}
		outputs = append(outputs, out)
		log.Printf("Job %s: %s -> %s (%d bytes)", job.ID, assetID, out.name, len(out.data))
	}

	archive, err := zipOutputs(outputs)
	if err != nil {
		return nil, err
	}
	if err := p.artifacts.Save(ctx, service.ArtifactKey(job), archive, "application/zip"); err != nil {
		return nil, fmt.Errorf("failed to store archive: %w", err)
	}

	return &model.ResultArtifact{
		Kind:     model.ArtifactKindZip,
		Filename: service.ArtifactFilename(job),
		Size:     int64(len(archive)),
	}, nil
}

func (p *NativeProcessor) downscale(ctx context.Context, job model.Job, asset *model.Asset) (output, error) {
	opts, err := job.DecodeDownscaleOptions()
	if err != nil {
		return output{}, err
	}

	data, err := p.fetch(ctx, asset.URL)
	if err != nil {
		return output{}, err
	}

	var img image.Image
	if mimetype.Detect(data).Is("image/webp") {
		img, err = webp.Decode(bytes.NewReader(data))
	} else {
		img, err = imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	}
	if err != nil {
		return output{}, fmt.Errorf("decode image: %w", err)
	}

	resized := imaging.Fit(img, opts.MaxWidth, opts.MaxHeight, imaging.Lanczos)

	var buf bytes.Buffer
	switch opts.OutputFormat {
	case model.FormatPNG:
		err = imaging.Encode(&buf, resized, imaging.PNG)
	case model.FormatWEBP:
		err = webp.Encode(&buf, resized, &webp.Options{Quality: float32(opts.Quality)})
	default:
		err = imaging.Encode(&buf, resized, imaging.JPEG, imaging.JPEGQuality(opts.Quality))
	}
	if err != nil {
		return output{}, fmt.Errorf("encode %s: %w", opts.OutputFormat, err)
	}

	return output{name: outputName(asset, opts.OutputFormat), data: buf.Bytes()}, nil
}

func (p *NativeProcessor) transcode(ctx context.Context, job model.Job, asset *model.Asset) (output, error) {
	opts, err := job.DecodeTranscodeOptions()
	if err != nil {
		return output{}, err
	}
	if strings.HasPrefix(asset.URL, "-") {
		return output{}, fmt.Errorf("invalid source url")
	}
	codec, ok := videoCodecs[opts.Codec]
	if !ok {
		return output{}, fmt.Errorf("unsupported codec %q", opts.Codec)
	}

	dir, err := os.MkdirTemp("", "transcode-*")
	if err != nil {
		return output{}, err
	}
	defer os.RemoveAll(dir)

	outPath := filepath.Join(dir, "out."+opts.Container)
	args := []string{
		"-y", "-hide_banner", "-loglevel", "error",
		"-i", asset.URL,
		"-c:v", codec,
	}
	if opts.MaxHeight > 0 {
		args = append(args, "-vf", fmt.Sprintf("scale=-2:'min(%d,ih)'", opts.MaxHeight))
	}
	if opts.BitrateKbps > 0 {
		args = append(args, "-b:v", strconv.Itoa(opts.BitrateKbps)+"k")
	}
	if opts.Container == "webm" {
		args = append(args, "-c:a", "libopus")
	} else {
		args = append(args, "-c:a", "aac")
	}
	if opts.Container == "mp4" || opts.Container == "mov" {
		args = append(args, "-movflags", "+faststart")
	}
	args = append(args, outPath)

	if _, err := p.runner.Run(ctx, p.ffmpegPath, args...); err != nil {
		return output{}, fmt.Errorf("ffmpeg failed: %w", err)
	}
	data, err := os.ReadFile(outPath)
	if err != nil {
		return output{}, fmt.Errorf("read ffmpeg output: %w", err)
	}
	return output{name: outputName(asset, opts.Container), data: data}, nil
}

func (p *NativeProcessor) fetch(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch source: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch source: status %d", resp.StatusCode)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxSourceSize+1))
	if err != nil {
		return nil, fmt.Errorf("fetch source: %w", err)
	}
	if len(data) > maxSourceSize {
		return nil, fmt.Errorf("source exceeds %d MB", maxSourceSize>>20)
	}
	return data, nil
}

func outputName(asset *model.Asset, ext string) string {
	base := asset.Name
	if base == "" {
		base = asset.ID
	}
	base = strings.TrimSuffix(base, filepath.Ext(base))
	base = strings.Trim(unsafeName.ReplaceAllString(base, "_"), "_.")
	if base == "" {
		base = "asset"
	}
	return fmt.Sprintf("%s-%s.%s", base, unsafeName.ReplaceAllString(asset.ID, "_"), ext)
}

func zipOutputs(outputs []output) ([]byte, error) {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for _, o := range outputs {
		w, err := zw.Create(o.name)
		if err != nil {
			return nil, fmt.Errorf("failed to add %s to archive: %w", o.name, err)
		}
		if _, err := w.Write(o.data); err != nil {
			return nil, fmt.Errorf("failed to write %s: %w", o.name, err)
		}
	}
	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("failed to close archive: %w", err)
	}
	return buf.Bytes(), nil
}
