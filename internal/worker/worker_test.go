package worker

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"image"
	"image/color"
	"image/png"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arstudio/api/internal/model"
	"github.com/arstudio/api/internal/service"
	"github.com/arstudio/api/internal/store"
)

type recordingAdvancer struct {
	jobID string
	from  model.JobState
}

func (r *recordingAdvancer) Advance(_ context.Context, jobID string, from model.JobState) error {
	r.jobID, r.from = jobID, from
	return nil
}

func TestJobWorker_ProcessTask(t *testing.T) {
	adv := &recordingAdvancer{}
	task, err := NewAdvanceTask("job-1", model.JobStateValidating)
	require.NoError(t, err)
	assert.Equal(t, TaskTypeJobAdvance, task.Type())

	require.NoError(t, NewJobWorker(adv).ProcessTask(context.Background(), task))
	assert.Equal(t, "job-1", adv.jobID)
	assert.Equal(t, model.JobStateValidating, adv.from)
}

func TestJobWorker_BadPayloadSkipsRetry(t *testing.T) {
	w := NewJobWorker(&recordingAdvancer{})

	err := w.ProcessTask(context.Background(), asynq.NewTask(TaskTypeJobAdvance, []byte("{")))
	assert.ErrorIs(t, err, asynq.SkipRetry)

	err = w.ProcessTask(context.Background(), asynq.NewTask(TaskTypeJobAdvance, []byte(`{"from":"queued"}`)))
	assert.ErrorIs(t, err, asynq.SkipRetry)
}

func TestSimulatedProcessor(t *testing.T) {
	job := model.Job{ID: "abcdef123456", Kind: model.JobKindDownscale, AssetIDs: []string{"a"}, Options: json.RawMessage(`{}`)}
	art, err := NewSimulatedProcessor().Process(context.Background(), job)
	require.NoError(t, err)

	placeholder, err := service.PlaceholderArchive(job)
	require.NoError(t, err)
	assert.Equal(t, int64(len(placeholder)), art.Size)
	assert.Equal(t, "downscale-abcdef12.zip", art.Filename)
}

type stubAssets map[string]*model.Asset

func (s stubAssets) GetAsset(_ context.Context, _, id string) (*model.Asset, error) {
	a, ok := s[id]
	if !ok {
		return nil, errors.New("no such asset")
	}
	return a, nil
}

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		img.Set(x, 0, color.RGBA{R: 255, A: 255})
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func TestNativeProcessor_Downscale(t *testing.T) {
	src := pngBytes(t, 400, 200)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/png")
		_, _ = w.Write(src)
	}))
	defer srv.Close()

	artifacts := store.NewMemoryArtifactStore()
	p := NewNativeProcessor(stubAssets{"a1": {ID: "a1", Name: "hero.png", URL: srv.URL + "/hero.png"}}, artifacts, nil, "")

	job := model.Job{
		ID: "job-42", Kind: model.JobKindDownscale, AssetIDs: []string{"a1"},
		Options: json.RawMessage(`{"maxWidth":100,"maxHeight":100,"outputFormat":"png"}`),
	}
	art, err := p.Process(context.Background(), job)
	require.NoError(t, err)

	data, err := artifacts.Load(context.Background(), service.ArtifactKey(job))
	require.NoError(t, err)
	assert.Equal(t, int64(len(data)), art.Size)

	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	require.NoError(t, err)
	require.Len(t, zr.File, 1)
	assert.Equal(t, "hero-a1.png", zr.File[0].Name)

	f, err := zr.File[0].Open()
	require.NoError(t, err)
	defer f.Close()
	cfg, err := png.DecodeConfig(f)
	require.NoError(t, err)
	assert.Equal(t, 100, cfg.Width)
	assert.Equal(t, 50, cfg.Height)
}

func TestNativeProcessor_UnknownAssetFails(t *testing.T) {
	p := NewNativeProcessor(stubAssets{}, store.NewMemoryArtifactStore(), nil, "")
	_, err := p.Process(context.Background(), model.Job{ID: "j", Kind: model.JobKindDownscale, AssetIDs: []string{"x"}, Options: json.RawMessage(`{"maxWidth":1,"maxHeight":1}`)})
	assert.Error(t, err)
}

type fakeRunner struct {
	name string
	args []string
}

func (f *fakeRunner) Run(_ context.Context, name string, args ...string) ([]byte, error) {
	f.name, f.args = name, args
	return nil, os.WriteFile(args[len(args)-1], []byte("video"), 0o600)
}

func (f *fakeRunner) RunWithInput(ctx context.Context, _ []byte, name string, args ...string) ([]byte, error) {
	return f.Run(ctx, name, args...)
}

func TestNativeProcessor_Transcode(t *testing.T) {
	runner := &fakeRunner{}
	artifacts := store.NewMemoryArtifactStore()
	p := NewNativeProcessor(stubAssets{"v1": {ID: "v1", Name: "clip.mov", URL: "https://cdn/clip.mov"}}, artifacts, runner, "/usr/bin/ffmpeg")

	job := model.Job{
		ID: "job-7", Kind: model.JobKindTranscode, AssetIDs: []string{"v1"},
		Options: json.RawMessage(`{"codec":"vp9","maxHeight":720,"bitrateKbps":1500,"container":"webm"}`),
	}
	_, err := p.Process(context.Background(), job)
	require.NoError(t, err)

	assert.Equal(t, "/usr/bin/ffmpeg", runner.name)
	assert.Contains(t, runner.args, "libvpx-vp9")
	assert.Contains(t, runner.args, "1500k")
	assert.Contains(t, runner.args, "https://cdn/clip.mov")

	data, err := artifacts.Load(context.Background(), service.ArtifactKey(job))
	require.NoError(t, err)
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	require.NoError(t, err)
	assert.Equal(t, "clip-v1.webm", zr.File[0].Name)
}
