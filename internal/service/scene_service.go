package service

import (
	"context"
	"errors"
	"fmt"
	"log"

	"golang.org/x/sync/errgroup"

	"github.com/arstudio/api/internal/client"
	"github.com/arstudio/api/internal/model"
	"github.com/arstudio/api/internal/placement"
)

// SaveResult reports a bulk save. Placements reflect the refetched scene;
// RefreshError is set when that refetch failed.
type SaveResult struct {
	Outcomes     []model.SaveOutcome   `json:"outcomes"`
	Saved        int                   `json:"saved"`
	Failed       int                   `json:"failed"`
	Placements   []placement.Placement `json:"placements"`
	RefreshError string                `json:"refreshError,omitempty"`
}

// SceneService runs the placement engine against a scene's upstream objects
type SceneService struct {
	gateway         client.Gateway
	assets          *AssetService
	discoverer      *placement.Discoverer
	saveConcurrency int
}

// NewSceneService creates a scene service. discoverer may be nil, in which
// case objects keep whatever dimensions their records carry.
func NewSceneService(gateway client.Gateway, assets *AssetService, discoverer *placement.Discoverer, saveConcurrency int) *SceneService {
	return &SceneService{
		gateway:         gateway,
		assets:          assets,
		discoverer:      discoverer,
		saveConcurrency: saveConcurrency,
	}
}

// load fetches and normalizes every object in a scene
func (s *SceneService) load(ctx context.Context, token, sceneID string) ([]placement.Object, error) {
	records, err := s.gateway.ListARObjects(ctx, token, sceneID)
	if err != nil {
		return nil, err
	}
	objects := placement.Normalize(records)
	if s.discoverer != nil {
		objects, _ = s.discoverer.Discover(ctx, objects)
	}
	return objects, nil
}

// ListPlacements returns the committed placements of a scene
func (s *SceneService) ListPlacements(ctx context.Context, token, sceneID string) ([]placement.Placement, error) {
	objects, err := s.load(ctx, token, sceneID)
	if err != nil {
		return nil, err
	}
	return placement.NewSession(objects).Placements(), nil
}

// Preview applies edits to the scene without writing anything upstream
func (s *SceneService) Preview(ctx context.Context, token, sceneID string, edits map[string]model.ObjectDraft) ([]placement.Placement, error) {
	objects, err := s.load(ctx, token, sceneID)
	if err != nil {
		return nil, err
	}
	session := placement.NewSession(objects)
	if err := setDrafts(session, edits); err != nil {
		return nil, err
	}
	session.ApplyPreview()
	return session.Placements(), nil
}

// Save PATCHes every edited object concurrently, then refetches the scene
// regardless of how the saves went. Without edits nothing is sent.
func (s *SceneService) Save(ctx context.Context, token, sceneID string, edits map[string]model.ObjectDraft) (*SaveResult, error) {
	if len(edits) == 0 {
		return &SaveResult{Outcomes: []model.SaveOutcome{}}, nil
	}

	objects, err := s.load(ctx, token, sceneID)
	if err != nil {
		return nil, err
	}
	session := placement.NewSession(objects)
	if err := setDrafts(session, edits); err != nil {
		return nil, err
	}

	saves := session.PendingSaves()
	outcomes := make([]model.SaveOutcome, len(saves))

	var g errgroup.Group
	if s.saveConcurrency > 0 {
		g.SetLimit(s.saveConcurrency)
	}
	for i, save := range saves {
		i, save := i, save
		g.Go(func() error {
			outcome := model.SaveOutcome{ObjectID: save.ObjectID, Saved: true}
			if _, err := s.gateway.PatchARObject(ctx, token, save.ObjectID, save.Body); err != nil {
				log.Printf("[Scenes] save object %s failed: %v", save.ObjectID, err)
				outcome.Saved = false
				outcome.Error = err.Error()
			}
			outcomes[i] = outcome
			return nil
		})
	}
	_ = g.Wait()

	result := &SaveResult{Outcomes: outcomes}
	for _, o := range outcomes {
		if o.Saved {
			result.Saved++
		} else {
			result.Failed++
		}
	}

	refreshed, err := s.load(ctx, token, sceneID)
	if err != nil {
		log.Printf("[Scenes] refetch of scene %s after save failed: %v", sceneID, err)
		result.RefreshError = err.Error()
		return result, nil
	}
	session.Reset(refreshed)
	result.Placements = session.Placements()
	return result, nil
}

// Replace swaps the media of one object for an asset of the same kind and
// returns the refetched scene. Kind mismatches are rejected before any write;
// a declared asset type also skips the asset fetch.
func (s *SceneService) Replace(ctx context.Context, token, sceneID, objectID string, req *model.ReplaceMediaRequest) ([]placement.Placement, error) {
	objects, err := s.load(ctx, token, sceneID)
	if err != nil {
		return nil, err
	}
	target, ok := placement.NewSession(objects).Object(objectID)
	if !ok {
		return nil, fmt.Errorf("object %s in scene %s: %w", objectID, sceneID, client.ErrNotFound)
	}
	if req.AssetType != "" && req.AssetType != target.MediaInfo.Kind {
		return nil, kindMismatch(req.AssetType, target.MediaInfo.Kind)
	}

	asset, err := s.assets.GetAsset(ctx, token, req.AssetID)
	if err != nil {
		return nil, err
	}

	body, err := placement.BuildReplacement(target, *asset)
	if err != nil {
		return nil, kindMismatch(asset.Type, target.MediaInfo.Kind)
	}

	if _, err := s.gateway.PatchARObject(ctx, token, objectID, body); err != nil {
		return nil, err
	}
	log.Printf("[Scenes] object %s now uses asset %s", objectID, req.AssetID)

	return s.ListPlacements(ctx, token, sceneID)
}

func kindMismatch(assetType, objectKind model.MediaKind) error {
	return &ValidationError{
		Message: ErrKindMismatch.Error(),
		Fields:  map[string]string{"assetType": string(assetType), "objectKind": string(objectKind)},
	}
}

// DeleteObject removes an object once confirmed. When sceneID is set the
// refetched scene is returned.
func (s *SceneService) DeleteObject(ctx context.Context, token, sceneID, objectID string, confirmed bool) ([]placement.Placement, error) {
	if !confirmed {
		return nil, ErrNotConfirmed
	}
	if err := s.gateway.DeleteARObject(ctx, token, objectID); err != nil {
		return nil, err
	}
	log.Printf("[Scenes] object %s deleted", objectID)

	if sceneID == "" {
		return nil, nil
	}
	return s.ListPlacements(ctx, token, sceneID)
}

// CreateFromAsset places an asset into a scene as a new object
func (s *SceneService) CreateFromAsset(ctx context.Context, token, sceneID string, req *model.CreateObjectFromAssetRequest) (any, error) {
	return s.gateway.CreateFromAsset(ctx, token, req.AssetID, sceneID, req.Name)
}

// CreateObject creates an object from a full payload
func (s *SceneService) CreateObject(ctx context.Context, token string, body map[string]any) (any, error) {
	return s.gateway.CreateARObject(ctx, token, placement.Prune(body))
}

// PatchObject forwards a partial update
func (s *SceneService) PatchObject(ctx context.Context, token, objectID string, body map[string]any) (any, error) {
	return s.gateway.PatchARObject(ctx, token, objectID, body)
}

func setDrafts(session *placement.Session, edits map[string]model.ObjectDraft) error {
	err := session.SetDrafts(edits)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, placement.ErrUnknownObject), errors.Is(err, placement.ErrUnknownField):
		return &ValidationError{Message: "invalid edits: " + err.Error()}
	default:
		return err
	}
}
