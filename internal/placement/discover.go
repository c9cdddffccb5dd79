package placement

import (
	"context"
	"log"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/arstudio/api/internal/model"
)

// Prober measures the intrinsic pixel size of remote media
type Prober interface {
	Probe(ctx context.Context, kind model.MediaKind, url string) (width, height int, err error)
}

// Dimensions is a discovered media size
type Dimensions struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

// Valid reports whether both sides are larger than one pixel
func (d Dimensions) Valid() bool {
	return d.Width > 1 && d.Height > 1
}

// Discoverer probes image and video objects whose dimensions are unknown.
// Measurements are cached per URL. Concurrent callers asking for the same
// URL share one probe, which is canceled once no caller is waiting on it.
type Discoverer struct {
	prober      Prober
	concurrency int

	mu       sync.Mutex
	cache    map[string]Dimensions
	inflight map[string]*sharedProbe
}

// sharedProbe is one in-flight measurement of a URL. dims and err are set
// before done is closed.
type sharedProbe struct {
	done   chan struct{}
	cancel context.CancelFunc
	refs   int
	dims   Dimensions
	err    error
}

func NewDiscoverer(prober Prober, concurrency int) *Discoverer {
	if concurrency <= 0 {
		concurrency = 4
	}
	return &Discoverer{
		prober:      prober,
		concurrency: concurrency,
		cache:       map[string]Dimensions{},
		inflight:    map[string]*sharedProbe{},
	}
}

// NeedsProbe reports whether o is an image or video plane without a valid
// measurement. Info-Balls are never probed.
func NeedsProbe(o Object) bool {
	if o.InfoBall || o.MediaInfo.URL == "" {
		return false
	}
	if o.MediaInfo.Kind != model.MediaKindImage && o.MediaInfo.Kind != model.MediaKindVideo {
		return false
	}
	return !(Dimensions{Width: o.MediaInfo.Width, Height: o.MediaInfo.Height}).Valid()
}

// Discover measures every object that needs it and returns the objects with
// measurements applied, plus the new measurements keyed by stable key.
// Failed probes leave the object unchanged. When ctx ends, this call stops
// waiting and releases its interest in the probes it joined.
func (d *Discoverer) Discover(ctx context.Context, objects []Object) ([]Object, map[string]Dimensions) {
	out := make([]Object, len(objects))
	copy(out, objects)
	found := map[string]Dimensions{}

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(d.concurrency)

	for i := range out {
		i := i
		o := out[i]
		if !NeedsProbe(o) {
			continue
		}
		if dims, ok := d.cached(o.MediaInfo.URL); ok {
			out[i] = withDimensions(o, dims)
			found[o.Key] = dims
			continue
		}

		g.Go(func() error {
			dims, ok := d.measure(gctx, o)
			if !ok {
				return nil
			}
			mu.Lock()
			out[i] = withDimensions(o, dims)
			found[o.Key] = dims
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	return out, found
}

func (d *Discoverer) cached(url string) (Dimensions, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	dims, ok := d.cache[url]
	return dims, ok
}

// measure joins the probe for o's URL, starting one if needed, and waits
// for it or for ctx.
func (d *Discoverer) measure(ctx context.Context, o Object) (Dimensions, bool) {
	url := o.MediaInfo.URL
	p := d.join(url, o.MediaInfo.Kind)
	defer d.release(url, p)

	select {
	case <-p.done:
	case <-ctx.Done():
		return Dimensions{}, false
	}

	if p.err != nil {
		log.Printf("[Placement] probe %s (%s) failed: %v", o.Key, url, p.err)
		return Dimensions{}, false
	}
	if !p.dims.Valid() {
		return Dimensions{}, false
	}
	return p.dims, true
}

func (d *Discoverer) join(url string, kind model.MediaKind) *sharedProbe {
	d.mu.Lock()
	defer d.mu.Unlock()

	if p, ok := d.inflight[url]; ok {
		p.refs++
		return p
	}

	// The probe outlives any single caller; release cancels it.
	pctx, cancel := context.WithCancel(context.Background())
	p := &sharedProbe{done: make(chan struct{}), cancel: cancel, refs: 1}
	d.inflight[url] = p
	go d.run(pctx, p, kind, url)
	return p
}

func (d *Discoverer) run(ctx context.Context, p *sharedProbe, kind model.MediaKind, url string) {
	defer p.cancel()

	w, h, err := d.prober.Probe(ctx, kind, url)
	dims := Dimensions{Width: w, Height: h}

	d.mu.Lock()
	p.dims, p.err = dims, err
	if err == nil && dims.Valid() {
		d.cache[url] = dims
	}
	if d.inflight[url] == p {
		delete(d.inflight, url)
	}
	d.mu.Unlock()

	close(p.done)
}

// release drops one caller's interest. The last caller to leave an
// unfinished probe cancels it.
func (d *Discoverer) release(url string, p *sharedProbe) {
	d.mu.Lock()
	defer d.mu.Unlock()

	p.refs--
	if p.refs > 0 {
		return
	}
	select {
	case <-p.done:
	default:
		p.cancel()
		if d.inflight[url] == p {
			delete(d.inflight, url)
		}
	}
}

func withDimensions(o Object, dims Dimensions) Object {
	o.MediaInfo.Width = dims.Width
	o.MediaInfo.Height = dims.Height
	return o
}
