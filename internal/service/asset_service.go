package service

import (
	"context"
	"log"
	"time"

	"github.com/arstudio/api/internal/cache"
	"github.com/arstudio/api/internal/client"
	"github.com/arstudio/api/internal/extract"
	"github.com/arstudio/api/internal/model"
)

const (
	defaultAssetPageSize = 50
	sceneCacheTTL        = 60 * time.Second
)

// AssetService reads assets and scenes from the upstream and normalizes them
type AssetService struct {
	gateway client.Gateway
	scenes  *cache.Cache
}

func NewAssetService(gateway client.Gateway, sceneCache *cache.Cache) *AssetService {
	return &AssetService{gateway: gateway, scenes: sceneCache}
}

// ListAssets returns one normalized page. Records the normalizer rejects are
// dropped; a type filter is re-applied locally since some upstreams ignore it.
func (s *AssetService) ListAssets(ctx context.Context, token string, q model.AssetQuery) (*model.AssetPage, error) {
	if q.Page <= 0 {
		q.Page = 1
	}
	if q.Limit <= 0 {
		q.Limit = defaultAssetPageSize
	}

	data, err := s.gateway.ListAssets(ctx, token, q)
	if err != nil {
		return nil, err
	}

	records, _ := extract.Records.Array(data)
	items := make([]model.Asset, 0, len(records))
	for _, r := range records {
		m, ok := r.(map[string]any)
		if !ok {
			continue
		}
		asset, ok := NormalizeAsset(m)
		if !ok {
			continue
		}
		if q.Type != "" && asset.Type != q.Type {
			continue
		}
		items = append(items, asset)
	}

	total, ok := extract.Total.Int(data)
	if !ok || q.Type != "" && total < len(items) {
		total = len(items)
	}

	return &model.AssetPage{Items: items, Total: total, Page: q.Page, Limit: q.Limit}, nil
}

// GetAsset fetches and normalizes one asset
func (s *AssetService) GetAsset(ctx context.Context, token, assetID string) (*model.Asset, error) {
	data, err := s.gateway.GetAsset(ctx, token, assetID)
	if err != nil {
		return nil, err
	}
	record, ok := extract.Single.Object(data)
	if !ok {
		return nil, client.ErrNotFound
	}
	asset, ok := NormalizeAsset(record)
	if !ok {
		return nil, client.ErrNotFound
	}
	return &asset, nil
}

// ListScenes lists the caller's scenes, cached per token when redis is on
func (s *AssetService) ListScenes(ctx context.Context, token string) ([]model.Scene, error) {
	key := cache.TokenKey("list", token)

	var cached []model.Scene
	if hit, err := s.scenes.GetJSON(ctx, key, &cached); err != nil {
		log.Printf("[Assets] scene cache read failed: %v", err)
	} else if hit {
		return cached, nil
	}

	data, err := s.gateway.ListScenes(ctx, token)
	if err != nil {
		return nil, err
	}

	records, _ := extract.Records.Array(data)
	scenes := make([]model.Scene, 0, len(records))
	for _, r := range records {
		if m, ok := r.(map[string]any); ok {
			if scene, ok := NormalizeScene(m); ok {
				scenes = append(scenes, scene)
			}
		}
	}

	if err := s.scenes.StoreJSON(ctx, key, sceneCacheTTL, scenes); err != nil {
		log.Printf("[Assets] scene cache write failed: %v", err)
	}
	return scenes, nil
}
