package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/arstudio/api/internal/config"
	"github.com/arstudio/api/internal/extract"
	"github.com/arstudio/api/internal/model"
)

// Upstream asset service endpoints
const (
	pathLogin           = "/auth/login"
	pathAssets          = "/assets"
	pathScenes          = "/scenes"
	pathSceneObjects    = "/scenes/%s/ar-objects"
	pathObjects         = "/ar-objects"
	pathObject          = "/ar-objects/%s"
	pathObjectFromAsset = "/ar-objects/upload-from-asset"
)

const upstreamService = "upstream API"

// maxObjectPages bounds pagination against upstreams that ignore paging
const maxObjectPages = 100

// Gateway is the authenticated contract of the upstream asset service.
// Every method except Login takes the caller's bearer token.
type Gateway interface {
	Login(ctx context.Context, username, password string) (*Response, error)
	ListAssets(ctx context.Context, token string, q model.AssetQuery) (any, error)
	GetAsset(ctx context.Context, token, assetID string) (any, error)
	ListScenes(ctx context.Context, token string) (any, error)
	ListARObjects(ctx context.Context, token, sceneID string) ([]model.ARObject, error)
	GetARObject(ctx context.Context, token, objectID string) (model.ARObject, error)
	CreateARObject(ctx context.Context, token string, body map[string]any) (any, error)
	PatchARObject(ctx context.Context, token, objectID string, body map[string]any) (any, error)
	DeleteARObject(ctx context.Context, token, objectID string) error
	CreateFromAsset(ctx context.Context, token, assetID, sceneID, name string) (any, error)
}

// Response is a decoded upstream reply. Data is nil when the body is not
// valid JSON.
type Response struct {
	Status int
	Header http.Header
	Body   []byte
	Data   any
}

// UpstreamClient implements Gateway over HTTP
type UpstreamClient struct {
	httpClient *http.Client
	baseURL    string
	pageSize   int
	limiter    *rate.Limiter
}

// NewUpstreamClient creates a new upstream API client
func NewUpstreamClient(cfg *config.UpstreamConfig) *UpstreamClient {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	pageSize := cfg.PageSize
	if pageSize <= 0 {
		pageSize = 200
	}

	var limiter *rate.Limiter
	if cfg.RatePerSec > 0 {
		burst := cfg.Burst
		if burst <= 0 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(cfg.RatePerSec), burst)
	}

	return &UpstreamClient{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		pageSize:   pageSize,
		limiter:    limiter,
	}
}

// IsConfigured returns true if the client has a base URL
func (c *UpstreamClient) IsConfigured() bool {
	return c.baseURL != ""
}

// Login exchanges credentials. The raw response is returned so callers can
// read the token from either body or headers.
func (c *UpstreamClient) Login(ctx context.Context, username, password string) (*Response, error) {
	body := map[string]string{"username": username, "password": password}
	return c.do(ctx, "", http.MethodPost, pathLogin, nil, body)
}

// ListAssets returns one page of assets as the upstream shapes it
func (c *UpstreamClient) ListAssets(ctx context.Context, token string, q model.AssetQuery) (any, error) {
	query := url.Values{}
	if q.Page > 0 {
		query.Set("page", strconv.Itoa(q.Page))
	}
	if q.Limit > 0 {
		query.Set("per_page", strconv.Itoa(q.Limit))
	}
	if q.Type != "" {
		query.Set("type", string(q.Type))
	}
	if q.Search != "" {
		query.Set("search", q.Search)
	}
	return c.data(c.do(ctx, token, http.MethodGet, pathAssets, query, nil))
}

// GetAsset fetches one asset
func (c *UpstreamClient) GetAsset(ctx context.Context, token, assetID string) (any, error) {
	return c.data(c.do(ctx, token, http.MethodGet, pathAssets+"/"+url.PathEscape(assetID), nil, nil))
}

// ListScenes lists the scenes visible to the token
func (c *UpstreamClient) ListScenes(ctx context.Context, token string) (any, error) {
	return c.data(c.do(ctx, token, http.MethodGet, pathScenes, nil, nil))
}

// ListARObjects walks every page of a scene's AR objects
func (c *UpstreamClient) ListARObjects(ctx context.Context, token, sceneID string) ([]model.ARObject, error) {
	path := fmt.Sprintf(pathSceneObjects, url.PathEscape(sceneID))
	var objects []model.ARObject

	for page := 1; page <= maxObjectPages; page++ {
		query := url.Values{}
		query.Set("page", strconv.Itoa(page))
		query.Set("per_page", strconv.Itoa(c.pageSize))

		data, err := c.data(c.do(ctx, token, http.MethodGet, path, query, nil))
		if err != nil {
			return nil, err
		}

		records, _ := extract.Records.Array(data)
		for _, r := range records {
			if m, ok := r.(map[string]any); ok {
				objects = append(objects, model.ARObject(m))
			}
		}

		total, hasTotal := extract.Total.Int(data)
		if len(records) < c.pageSize || (hasTotal && len(objects) >= total) {
			break
		}
	}

	return objects, nil
}

// GetARObject fetches one AR object
func (c *UpstreamClient) GetARObject(ctx context.Context, token, objectID string) (model.ARObject, error) {
	data, err := c.data(c.do(ctx, token, http.MethodGet, fmt.Sprintf(pathObject, url.PathEscape(objectID)), nil, nil))
	if err != nil {
		return nil, err
	}
	record, ok := extract.Single.Object(data)
	if !ok {
		return nil, fmt.Errorf("unexpected AR object payload for %s", objectID)
	}
	return model.ARObject(record), nil
}

// CreateARObject creates an AR object from a full payload
func (c *UpstreamClient) CreateARObject(ctx context.Context, token string, body map[string]any) (any, error) {
	return c.data(c.do(ctx, token, http.MethodPost, pathObjects, nil, body))
}

// PatchARObject updates an AR object
func (c *UpstreamClient) PatchARObject(ctx context.Context, token, objectID string, body map[string]any) (any, error) {
	return c.data(c.do(ctx, token, http.MethodPatch, fmt.Sprintf(pathObject, url.PathEscape(objectID)), nil, body))
}

// DeleteARObject deletes an AR object
func (c *UpstreamClient) DeleteARObject(ctx context.Context, token, objectID string) error {
	_, err := c.do(ctx, token, http.MethodDelete, fmt.Sprintf(pathObject, url.PathEscape(objectID)), nil, nil)
	return err
}

// CreateFromAsset places an existing asset into a scene as a new AR object
func (c *UpstreamClient) CreateFromAsset(ctx context.Context, token, assetID, sceneID, name string) (any, error) {
	body := map[string]any{
		"asset_id": assetID,
		"scene_id": sceneID,
		"name":     name,
	}
	return c.data(c.do(ctx, token, http.MethodPost, pathObjectFromAsset, nil, body))
}

func (c *UpstreamClient) data(resp *Response, err error) (any, error) {
	if err != nil {
		return nil, err
	}
	return resp.Data, nil
}

// do executes a request and returns the decoded response. Non-2xx statuses
// come back as *UpstreamError.
func (c *UpstreamClient) do(ctx context.Context, token, method, path string, query url.Values, body any) (*Response, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("rate limiter: %w", err)
		}
	}

	endpoint := c.baseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		bodyBytes, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request: %w", err)
		}
		reader = bytes.NewReader(bodyBytes)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	log.Printf("[Upstream] → %s %s", method, path)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		log.Printf("[Upstream] ✗ %s %s: request failed: %v", method, path, err)
		return nil, transportError(upstreamService, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, transportError(upstreamService, err)
	}

	log.Printf("[Upstream] ← %d %s %s (%d bytes)", resp.StatusCode, method, path, len(respBody))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &UpstreamError{
			Service: upstreamService,
			Method:  method,
			Path:    path,
			Status:  resp.StatusCode,
			Body:    truncate(string(respBody), 512),
		}
	}

	out := &Response{Status: resp.StatusCode, Header: resp.Header, Body: respBody}
	if len(bytes.TrimSpace(respBody)) > 0 {
		var data any
		if err := json.Unmarshal(respBody, &data); err == nil {
			out.Data = data
		}
	}
	return out, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
