package e2e

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sort"
	"strconv"
	"sync"
	"testing"
)

const (
	testUsername = "demo"
	testPassword = "secret"
	testToken    = "tok-123"
	testSceneID  = "11"
)

type patchCall struct {
	ObjectID string
	Body     map[string]any
}

// fakeUpstream is an in-memory asset service speaking the upstream's JSON
type fakeUpstream struct {
	mu      sync.Mutex
	server  *httptest.Server
	assets  map[string]map[string]any
	objects map[string]map[string]any
	nextID  int

	patches []patchCall
	deletes []string

	// omitCreatedID makes upload-from-asset answer without an id
	omitCreatedID bool
}

func newFakeUpstream(t *testing.T) *fakeUpstream {
	t.Helper()
	f := &fakeUpstream{
		assets: map[string]map[string]any{
			"a1": {"id": "a1", "type": "image", "name": "hero", "url": "http://cdn.test/hero.png", "width": 800, "height": 400},
			"v1": {"id": "v1", "type": "video", "name": "intro", "url": "http://cdn.test/intro.mp4", "width": 1920, "height": 1080},
		},
		objects: map[string]map[string]any{
			"42": {
				"id": 42, "name": "poster", "scene_id": 11,
				"location": map[string]any{"x": 1, "y": 2.5, "z": 3, "rotate_x": 0, "rotate_y": 90, "rotate_z": 0},
				"zoom":     map[string]any{"x": 1, "y": 1, "z": 1},
				"model": map[string]any{
					"type":    1,
					"texture": map[string]any{"url": "http://cdn.test/poster.png", "width": 800, "height": 400},
				},
			},
			"43": {
				"id": 43, "name": "clip", "scene_id": 11,
				"location": map[string]any{"x": 0, "y": 0, "z": 5},
				"zoom":     map[string]any{"x": 2},
				"model": map[string]any{
					"type":    2,
					"texture": map[string]any{"url": "http://cdn.test/clip.mp4", "width": 1920, "height": 1080},
				},
			},
		},
		nextID: 100,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/auth/login", f.login)
	mux.HandleFunc("GET /api/assets", f.auth(f.listAssets))
	mux.HandleFunc("GET /api/assets/{id}", f.auth(f.getAsset))
	mux.HandleFunc("GET /api/scenes", f.auth(f.listScenes))
	mux.HandleFunc("GET /api/scenes/{id}/ar-objects", f.auth(f.listObjects))
	mux.HandleFunc("GET /api/ar-objects/{id}", f.auth(f.getObject))
	mux.HandleFunc("POST /api/ar-objects", f.auth(f.createObject))
	mux.HandleFunc("PATCH /api/ar-objects/{id}", f.auth(f.patchObject))
	mux.HandleFunc("DELETE /api/ar-objects/{id}", f.auth(f.deleteObject))
	mux.HandleFunc("POST /api/ar-objects/upload-from-asset", f.auth(f.fromAsset))

	f.server = httptest.NewServer(mux)
	t.Cleanup(f.server.Close)
	return f
}

func (f *fakeUpstream) baseURL() string {
	return f.server.URL + "/api"
}

func (f *fakeUpstream) patchCalls() []patchCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]patchCall(nil), f.patches...)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func (f *fakeUpstream) auth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer "+testToken {
			writeJSON(w, http.StatusUnauthorized, map[string]any{"message": "unauthorized"})
			return
		}
		next(w, r)
	}
}

func (f *fakeUpstream) login(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	_ = json.NewDecoder(r.Body).Decode(&body)
	if body.Username != testUsername || body.Password != testPassword {
		writeJSON(w, http.StatusUnauthorized, map[string]any{"message": "bad credentials"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"data": map[string]any{"token": testToken}})
}

func (f *fakeUpstream) listAssets(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	items := make([]any, 0, len(f.assets))
	for _, id := range []string{"a1", "v1"} {
		items = append(items, f.assets[id])
	}
	writeJSON(w, http.StatusOK, map[string]any{"data": items, "total": len(items)})
}

func (f *fakeUpstream) getAsset(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	asset, ok := f.assets[r.PathValue("id")]
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]any{"message": "not found"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"data": asset})
}

func (f *fakeUpstream) listScenes(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"data": []any{
		map[string]any{"id": 11, "name": "Lobby"},
	}})
}

func (f *fakeUpstream) listObjects(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	ids := make([]int, 0, len(f.objects))
	for id := range f.objects {
		n, _ := strconv.Atoi(id)
		ids = append(ids, n)
	}
	sort.Ints(ids)
	items := make([]any, 0, len(ids))
	for _, id := range ids {
		items = append(items, f.objects[strconv.Itoa(id)])
	}
	writeJSON(w, http.StatusOK, map[string]any{"data": items, "total": len(items)})
}

func (f *fakeUpstream) getObject(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	obj, ok := f.objects[r.PathValue("id")]
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]any{"message": "not found"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"data": obj})
}

func (f *fakeUpstream) createObject(w http.ResponseWriter, r *http.Request) {
	var body map[string]any
	_ = json.NewDecoder(r.Body).Decode(&body)
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	body["id"] = f.nextID
	f.objects[strconv.Itoa(f.nextID)] = body
	writeJSON(w, http.StatusCreated, map[string]any{"data": body})
}

func (f *fakeUpstream) patchObject(w http.ResponseWriter, r *http.Request) {
	var body map[string]any
	_ = json.NewDecoder(r.Body).Decode(&body)
	id := r.PathValue("id")

	f.mu.Lock()
	defer f.mu.Unlock()
	obj, ok := f.objects[id]
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]any{"message": "not found"})
		return
	}
	f.patches = append(f.patches, patchCall{ObjectID: id, Body: body})
	for k, v := range body {
		obj[k] = v
	}
	writeJSON(w, http.StatusOK, map[string]any{"data": obj})
}

func (f *fakeUpstream) deleteObject(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.objects[id]; !ok {
		writeJSON(w, http.StatusNotFound, map[string]any{"message": "not found"})
		return
	}
	delete(f.objects, id)
	f.deletes = append(f.deletes, id)
	w.WriteHeader(http.StatusNoContent)
}

func (f *fakeUpstream) fromAsset(w http.ResponseWriter, r *http.Request) {
	var body struct {
		AssetID string `json:"asset_id"`
		SceneID string `json:"scene_id"`
		Name    string `json:"name"`
	}
	_ = json.NewDecoder(r.Body).Decode(&body)

	f.mu.Lock()
	defer f.mu.Unlock()
	asset, ok := f.assets[body.AssetID]
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]any{"message": "asset not found"})
		return
	}
	f.nextID++
	obj := map[string]any{
		"id":       f.nextID,
		"name":     body.Name,
		"scene_id": body.SceneID,
		"model": map[string]any{
			"type":    1,
			"texture": map[string]any{"url": asset["url"], "width": asset["width"], "height": asset["height"]},
		},
	}
	f.objects[strconv.Itoa(f.nextID)] = obj

	if f.omitCreatedID {
		writeJSON(w, http.StatusCreated, map[string]any{"message": "created"})
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"result": map[string]any{"id": f.nextID}})
}
