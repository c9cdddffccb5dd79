package service

import (
	"context"
	"fmt"
	"log"
	"math/rand"
	"sort"
	"strings"
	"time"

	"github.com/spf13/cast"

	"github.com/arstudio/api/internal/client"
	"github.com/arstudio/api/internal/extract"
	"github.com/arstudio/api/internal/model"
	"github.com/arstudio/api/internal/placement"
)

const (
	idLookupAttempts = 3
	idLookupDelay    = 500 * time.Millisecond
)

// UploadService duplicates one asset into a scene as several AR objects.
// Iterations run strictly in order so the newest-id fallback stays sound.
type UploadService struct {
	gateway        client.Gateway
	lightTagHeight float64
	placementRange float64

	random func() float64
	sleep  func(ctx context.Context, d time.Duration) error
	now    func() time.Time
}

func NewUploadService(gateway client.Gateway, lightTagHeight, placementRange float64) *UploadService {
	return &UploadService{
		gateway:        gateway,
		lightTagHeight: lightTagHeight,
		placementRange: placementRange,
		random:         rand.Float64,
		sleep:          sleepContext,
		now:            time.Now,
	}
}

type batchLog struct {
	now     func() time.Time
	entries []model.BatchLogEntry
}

func (l *batchLog) add(format string, args ...interface{}) {
	entry := model.BatchLogEntry{Time: l.now(), Message: fmt.Sprintf(format, args...)}
	l.entries = append(l.entries, entry)
	log.Printf("[Batch] %s", entry)
}

// BatchUpload creates req.Count objects from one asset. Every failure skips
// only the iteration it happened in; the returned log tells the operator
// what happened.
func (s *UploadService) BatchUpload(ctx context.Context, token, sceneID string, req *model.BatchUploadRequest) (*model.BatchUploadResponse, error) {
	lightTagHeight := s.lightTagHeight
	if req.LightTagHeight != nil {
		lightTagHeight = *req.LightTagHeight
	}
	placementRange := s.placementRange
	if req.PlacementRange != nil {
		placementRange = *req.PlacementRange
	}

	logs := &batchLog{now: s.now}
	resp := &model.BatchUploadResponse{Requested: req.Count, ObjectIDs: []string{}}

	for i := 1; i <= req.Count; i++ {
		if err := ctx.Err(); err != nil {
			logs.add("Batch stopped after %d of %d: %v", i-1, req.Count, err)
			break
		}

		logs.add("Uploading asset %s as %q (%d/%d)", req.AssetID, req.Name, i, req.Count)
		data, err := s.gateway.CreateFromAsset(ctx, token, req.AssetID, sceneID, req.Name)
		if err != nil {
			logs.add("Upload %d/%d failed: %v", i, req.Count, err)
			continue
		}

		objectID, ok := extract.CreatedID.ID(data)
		if !ok {
			logs.add("Upload %d/%d returned no id, looking up the newest %q", i, req.Count, req.Name)
			objectID, ok = s.lookupCreatedID(ctx, token, sceneID, req.Name, logs)
			if !ok {
				logs.add("Could not resolve the id of upload %d/%d, skipping", i, req.Count)
				continue
			}
		}

		resp.Created++
		resp.ObjectIDs = append(resp.ObjectIDs, objectID)
		logs.add("Created object %s (%d/%d)", objectID, i, req.Count)

		if !req.RandomPlacement {
			continue
		}
		loc := s.randomLocation(lightTagHeight, placementRange)
		resp.Placements = append(resp.Placements, loc)
		s.place(ctx, token, objectID, loc, logs)
	}

	logs.add("Batch finished: %d of %d created", resp.Created, req.Count)
	resp.Log = logs.entries
	return resp, nil
}

// randomLocation spreads objects over x in [-r/2, r/2] and z in [0, r] at
// the light tag's height.
func (s *UploadService) randomLocation(lightTagHeight, placementRange float64) model.Location {
	return model.Location{
		X:       (s.random() - 0.5) * placementRange,
		Y:       -lightTagHeight,
		Z:       s.random() * placementRange,
		RotateX: s.random() * 360,
		RotateY: 0,
		RotateZ: s.random() * 360,
	}
}

// place merges loc into the current record and PATCHes it. A failed fetch
// falls back to sending the location alone.
func (s *UploadService) place(ctx context.Context, token, objectID string, loc model.Location, logs *batchLog) {
	body := map[string]any{}
	current, err := s.gateway.GetARObject(ctx, token, objectID)
	if err != nil {
		logs.add("Could not fetch object %s, updating location only: %v", objectID, err)
	} else {
		for k, v := range current {
			body[k] = v
		}
	}
	body["location"] = placement.LocationMap(loc)

	if _, err := s.gateway.PatchARObject(ctx, token, objectID, placement.Prune(body, "location")); err != nil {
		logs.add("Placing object %s failed: %v", objectID, err)
		return
	}
	logs.add("Placed object %s at x=%.2f y=%.2f z=%.2f", objectID, loc.X, loc.Y, loc.Z)
}

// lookupCreatedID finds the newest object named name, retrying while the
// listing has nothing to offer.
func (s *UploadService) lookupCreatedID(ctx context.Context, token, sceneID, name string, logs *batchLog) (string, bool) {
	for attempt := 1; attempt <= idLookupAttempts; attempt++ {
		records, err := s.gateway.ListARObjects(ctx, token, sceneID)
		if err != nil {
			logs.add("Lookup attempt %d/%d failed: %v", attempt, idLookupAttempts, err)
		} else if id, ok := newestByName(records, name); ok {
			return id, true
		}

		if attempt < idLookupAttempts {
			if err := s.sleep(ctx, idLookupDelay); err != nil {
				return "", false
			}
		}
	}
	return "", false
}

// newestByName picks the highest id among records named name, or among all
// records when none match.
func newestByName(records []model.ARObject, name string) (string, bool) {
	var named, all []string
	for _, r := range records {
		id, ok := extract.RecordID.ID(map[string]any(r))
		if !ok {
			continue
		}
		all = append(all, id)
		if strings.TrimSpace(cast.ToString(r["name"])) == name {
			named = append(named, id)
		}
	}

	candidates := named
	if len(candidates) == 0 {
		candidates = all
	}
	if len(candidates) == 0 {
		return "", false
	}
	sort.Slice(candidates, func(i, j int) bool { return idGreater(candidates[i], candidates[j]) })
	return candidates[0], true
}

// idGreater orders numeric ids numerically and everything else lexically
func idGreater(a, b string) bool {
	na, errA := cast.ToFloat64E(a)
	nb, errB := cast.ToFloat64E(b)
	switch {
	case errA == nil && errB == nil:
		return na > nb
	case errA == nil:
		return true
	case errB == nil:
		return false
	default:
		return a > b
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
