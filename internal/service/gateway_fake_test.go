package service

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"

	"github.com/arstudio/api/internal/client"
	"github.com/arstudio/api/internal/model"
)

type patchCall struct {
	objectID string
	body     map[string]any
}

// fakeGateway is an in-memory client.Gateway. Hooks override defaults.
type fakeGateway struct {
	mu sync.Mutex

	login      *client.Response
	assets     any
	assetByID  map[string]any
	scenes     any
	objects    map[string][]model.ARObject
	objectByID map[string]model.ARObject

	createFromAsset func(call int) (any, error)
	listObjects     func(call int, sceneID string) ([]model.ARObject, error)
	patchErr        map[string]error
	getErr          error

	createCalls int
	listCalls   int
	sceneCalls  int
	getCalls    int
	assetCalls  int
	patches     []patchCall
	deletes     []string
}

var _ client.Gateway = (*fakeGateway)(nil)

func newFakeGateway() *fakeGateway {
	return &fakeGateway{
		assetByID:  map[string]any{},
		objects:    map[string][]model.ARObject{},
		objectByID: map[string]model.ARObject{},
		patchErr:   map[string]error{},
	}
}

func (f *fakeGateway) Login(ctx context.Context, username, password string) (*client.Response, error) {
	if f.login == nil {
		return nil, &client.UpstreamError{Service: "upstream API", Status: http.StatusUnauthorized}
	}
	return f.login, nil
}

func (f *fakeGateway) ListAssets(ctx context.Context, token string, q model.AssetQuery) (any, error) {
	return f.assets, nil
}

func (f *fakeGateway) GetAsset(ctx context.Context, token, assetID string) (any, error) {
	f.mu.Lock()
	f.assetCalls++
	f.mu.Unlock()
	a, ok := f.assetByID[assetID]
	if !ok {
		return nil, &client.UpstreamError{Service: "upstream API", Status: http.StatusNotFound}
	}
	return a, nil
}

func (f *fakeGateway) ListScenes(ctx context.Context, token string) (any, error) {
	f.mu.Lock()
	f.sceneCalls++
	f.mu.Unlock()
	return f.scenes, nil
}

func (f *fakeGateway) ListARObjects(ctx context.Context, token, sceneID string) ([]model.ARObject, error) {
	f.mu.Lock()
	f.listCalls++
	call := f.listCalls
	f.mu.Unlock()
	if f.listObjects != nil {
		return f.listObjects(call, sceneID)
	}
	return f.objects[sceneID], nil
}

func (f *fakeGateway) GetARObject(ctx context.Context, token, objectID string) (model.ARObject, error) {
	f.mu.Lock()
	f.getCalls++
	f.mu.Unlock()
	if f.getErr != nil {
		return nil, f.getErr
	}
	o, ok := f.objectByID[objectID]
	if !ok {
		return nil, client.ErrNotFound
	}
	return o, nil
}

func (f *fakeGateway) CreateARObject(ctx context.Context, token string, body map[string]any) (any, error) {
	return map[string]any{"id": float64(1000)}, nil
}

func (f *fakeGateway) PatchARObject(ctx context.Context, token, objectID string, body map[string]any) (any, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.patches = append(f.patches, patchCall{objectID: objectID, body: body})
	if err := f.patchErr[objectID]; err != nil {
		return nil, err
	}
	return map[string]any{"id": objectID}, nil
}

func (f *fakeGateway) DeleteARObject(ctx context.Context, token, objectID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deletes = append(f.deletes, objectID)
	return nil
}

func (f *fakeGateway) CreateFromAsset(ctx context.Context, token, assetID, sceneID, name string) (any, error) {
	f.mu.Lock()
	f.createCalls++
	call := f.createCalls
	f.mu.Unlock()
	if f.createFromAsset != nil {
		return f.createFromAsset(call)
	}
	return map[string]any{"result": map[string]any{"id": float64(100 + call)}}, nil
}

func (f *fakeGateway) patchCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.patches)
}

var errBoom = errors.New("boom")

func upstreamStatus(status int) error {
	return &client.UpstreamError{Service: "upstream API", Status: status, Body: fmt.Sprintf("status %d", status)}
}
