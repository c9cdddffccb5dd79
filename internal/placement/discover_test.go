package placement

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arstudio/api/internal/model"
)

type fakeProber struct {
	mu    sync.Mutex
	calls map[string]int
	dims  map[string]Dimensions
}

func (f *fakeProber) Probe(_ context.Context, _ model.MediaKind, url string) (int, int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[url]++
	d, ok := f.dims[url]
	if !ok {
		return 0, 0, errors.New("unreachable")
	}
	return d.Width, d.Height, nil
}

func TestDiscoverer_ProbesOnlyWhatIsNeeded(t *testing.T) {
	prober := &fakeProber{calls: map[string]int{}, dims: map[string]Dimensions{
		"https://cdn/a.png": {800, 600},
		"https://cdn/v.mp4": {1280, 720},
	}}
	d := NewDiscoverer(prober, 2)

	objs := Normalize([]model.ARObject{
		{"id": "1", "model": map[string]any{"texture": map[string]any{"url": "https://cdn/a.png"}}},
		{"id": "2", "model": map[string]any{"texture": map[string]any{"url": "https://cdn/v.mp4"}}},
		{"id": "3", "model": map[string]any{"texture": map[string]any{"url": "https://cdn/m.glb"}}},
		{"id": "4", "model": map[string]any{"texture": map[string]any{"url": "https://cdn/k.png", "width": float64(10), "height": float64(10)}}},
		{"id": "5", "model": map[string]any{"texture": map[string]any{"url": "https://cdn/missing.png"}}},
	})

	out, found := d.Discover(context.Background(), objs)

	assert.Equal(t, map[string]Dimensions{"1": {800, 600}, "2": {1280, 720}}, found)
	assert.Equal(t, 800, out[0].MediaInfo.Width)
	assert.Equal(t, 720, out[1].MediaInfo.Height)
	assert.Equal(t, 0, out[4].MediaInfo.Width)
	assert.Zero(t, prober.calls["https://cdn/m.glb"])
	assert.Zero(t, prober.calls["https://cdn/k.png"])

	// cached measurements skip the prober
	_, found = d.Discover(context.Background(), objs)
	assert.Len(t, found, 2)
	assert.Equal(t, 1, prober.calls["https://cdn/a.png"])
}

// slowProber blocks every measurement until release is closed or its
// context ends.
type slowProber struct {
	release chan struct{}
	dims    map[string]Dimensions

	mu       sync.Mutex
	calls    map[string]int
	canceled map[string]bool
}

func newSlowProber(dims map[string]Dimensions) *slowProber {
	return &slowProber{
		release:  make(chan struct{}),
		dims:     dims,
		calls:    map[string]int{},
		canceled: map[string]bool{},
	}
}

func (p *slowProber) Probe(ctx context.Context, _ model.MediaKind, url string) (int, int, error) {
	p.mu.Lock()
	p.calls[url]++
	p.mu.Unlock()

	select {
	case <-p.release:
		d := p.dims[url]
		return d.Width, d.Height, nil
	case <-ctx.Done():
		p.mu.Lock()
		p.canceled[url] = true
		p.mu.Unlock()
		return 0, 0, ctx.Err()
	}
}

func (p *slowProber) callCount(url string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls[url]
}

func (p *slowProber) wasCanceled(url string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.canceled[url]
}

func textured(id, url string) model.ARObject {
	return model.ARObject{"id": id, "model": map[string]any{"texture": map[string]any{"url": url}}}
}

func inflightCount(d *Discoverer) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.inflight)
}

func TestDiscoverer_ConcurrentScenesKeepTheirProbes(t *testing.T) {
	prober := newSlowProber(map[string]Dimensions{
		"https://cdn/a.png": {1600, 800},
		"https://cdn/b.png": {400, 800},
	})
	d := NewDiscoverer(prober, 2)

	sceneA := Normalize([]model.ARObject{textured("1", "https://cdn/a.png")})
	sceneB := Normalize([]model.ARObject{textured("2", "https://cdn/b.png")})

	var wg sync.WaitGroup
	var outA, outB []Object
	wg.Add(2)
	go func() {
		defer wg.Done()
		outA, _ = d.Discover(context.Background(), sceneA)
	}()
	require.Eventually(t, func() bool { return prober.callCount("https://cdn/a.png") == 1 }, time.Second, 5*time.Millisecond)

	go func() {
		defer wg.Done()
		outB, _ = d.Discover(context.Background(), sceneB)
	}()
	require.Eventually(t, func() bool { return prober.callCount("https://cdn/b.png") == 1 }, time.Second, 5*time.Millisecond)

	close(prober.release)
	wg.Wait()

	assert.False(t, prober.wasCanceled("https://cdn/a.png"))
	assert.Equal(t, 1600, outA[0].MediaInfo.Width)
	assert.Equal(t, 800, outA[0].MediaInfo.Height)
	assert.Equal(t, Vec3{1, 0.5, 1}, PlaneScale(outA[0].MediaInfo.Width, outA[0].MediaInfo.Height, outA[0].Zoom))
	assert.Equal(t, 400, outB[0].MediaInfo.Width)
	assert.Zero(t, inflightCount(d))
}

func TestDiscoverer_SharedMeasurementSurvivesOneCallerLeaving(t *testing.T) {
	const url = "https://cdn/shared.png"
	prober := newSlowProber(map[string]Dimensions{url: {800, 600}})
	d := NewDiscoverer(prober, 2)
	objs := Normalize([]model.ARObject{textured("7", url)})

	leaving, leave := context.WithCancel(context.Background())
	leftDone := make(chan struct{})
	go func() {
		defer close(leftDone)
		out, found := d.Discover(leaving, objs)
		assert.Empty(t, found)
		assert.Zero(t, out[0].MediaInfo.Width)
	}()
	require.Eventually(t, func() bool { return prober.callCount(url) == 1 }, time.Second, 5*time.Millisecond)

	stayDone := make(chan []Object, 1)
	go func() {
		out, _ := d.Discover(context.Background(), objs)
		stayDone <- out
	}()
	require.Eventually(t, func() bool {
		d.mu.Lock()
		defer d.mu.Unlock()
		p, ok := d.inflight[url]
		return ok && p.refs == 2
	}, time.Second, 5*time.Millisecond)

	leave()
	<-leftDone
	assert.False(t, prober.wasCanceled(url))

	close(prober.release)
	out := <-stayDone
	assert.Equal(t, 800, out[0].MediaInfo.Width)
	assert.Equal(t, 1, prober.callCount(url))
}

func TestDiscoverer_LastCallerLeavingCancelsMeasurement(t *testing.T) {
	const url = "https://cdn/abandoned.mp4"
	prober := newSlowProber(nil)
	d := NewDiscoverer(prober, 1)
	objs := Normalize([]model.ARObject{textured("9", url)})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		d.Discover(ctx, objs)
	}()
	require.Eventually(t, func() bool { return prober.callCount(url) == 1 }, time.Second, 5*time.Millisecond)

	cancel()
	<-done

	assert.Eventually(t, func() bool { return prober.wasCanceled(url) }, time.Second, 5*time.Millisecond)
	assert.Zero(t, inflightCount(d))
}
