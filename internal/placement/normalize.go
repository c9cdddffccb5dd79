package placement

import (
	"fmt"
	"math"
	"strings"

	"github.com/spf13/cast"

	"github.com/arstudio/api/internal/model"
)

// Object is a normalized AR object: fully populated location and zoom,
// a stable key and derived media info.
type Object struct {
	Key          string          `json:"key"`
	ID           string          `json:"id,omitempty"`
	Name         string          `json:"name"`
	Location     model.Location  `json:"location"`
	Zoom         model.Zoom      `json:"zoom"`
	Transparency float64         `json:"transparency"`
	Model        map[string]any  `json:"model,omitempty"`
	Events       []any           `json:"events,omitempty"`
	Group        any             `json:"group,omitempty"`
	SceneID      any             `json:"scene_id,omitempty"`
	MediaInfo    model.MediaInfo `json:"mediaInfo"`
	InfoBall     bool            `json:"infoBall,omitempty"`
	Raw          model.ARObject  `json:"-"`
}

// HasID reports whether the upstream assigned an id
func (o Object) HasID() bool { return o.ID != "" }

// Normalize coerces raw upstream records; index positions feed the
// fallback keys.
func Normalize(records []model.ARObject) []Object {
	out := make([]Object, 0, len(records))
	for i, r := range records {
		out = append(out, NormalizeOne(r, i))
	}
	return out
}

// NormalizeOne coerces a single record at list position index
func NormalizeOne(r model.ARObject, index int) Object {
	m, _ := r["model"].(map[string]any)
	obj := Object{
		ID:           recordID(r["id"]),
		Name:         strings.TrimSpace(cast.ToString(r["name"])),
		Location:     NormalizeLocation(r["location"]),
		Zoom:         NormalizeZoom(r["zoom"]),
		Transparency: floatOr(r["transparency"], 1),
		Model:        m,
		Group:        r["group"],
		SceneID:      r["scene_id"],
		Raw:          r,
	}
	if events, ok := r["events"].([]any); ok {
		obj.Events = events
	}
	obj.Key = stableKey(obj, index)
	obj.MediaInfo = DeriveMediaInfo(m)
	obj.InfoBall = m != nil && intOr(m["type"], -1) == model.InfoBallModelType
	return obj
}

func stableKey(o Object, index int) string {
	if o.ID != "" {
		return o.ID
	}
	if o.Name != "" {
		return fmt.Sprintf("%s-%d", o.Name, index)
	}
	return fmt.Sprintf("object-%d", index)
}

func recordID(v any) string {
	switch t := v.(type) {
	case nil, bool, map[string]any, []any:
		return ""
	case float64:
		if math.IsNaN(t) || math.IsInf(t, 0) {
			return ""
		}
	}
	return strings.TrimSpace(cast.ToString(v))
}

// NormalizeLocation fills every missing or non-numeric field with 0
func NormalizeLocation(v any) model.Location {
	m, _ := v.(map[string]any)
	return model.Location{
		X:       floatOr(m["x"], 0),
		Y:       floatOr(m["y"], 0),
		Z:       floatOr(m["z"], 0),
		RotateX: floatOr(m["rotate_x"], 0),
		RotateY: floatOr(m["rotate_y"], 0),
		RotateZ: floatOr(m["rotate_z"], 0),
	}
}

// NormalizeZoom fills every missing, non-numeric or non-positive component
// with 1
func NormalizeZoom(v any) model.Zoom {
	m, _ := v.(map[string]any)
	return model.Zoom{
		X: positiveOr(m["x"], 1),
		Y: positiveOr(m["y"], 1),
		Z: positiveOr(m["z"], 1),
	}
}

func floatOr(v any, def float64) float64 {
	if v == nil {
		return def
	}
	if s, ok := v.(string); ok && strings.TrimSpace(s) == "" {
		return def
	}
	if _, ok := v.(bool); ok {
		return def
	}
	f, err := cast.ToFloat64E(v)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return def
	}
	return f
}

func positiveOr(v any, def float64) float64 {
	f := floatOr(v, def)
	if f <= 0 {
		return def
	}
	return f
}

func intOr(v any, def int) int {
	f := floatOr(v, math.NaN())
	if math.IsNaN(f) {
		return def
	}
	return int(f)
}

// LocationMap renders a location with the upstream field names
func LocationMap(l model.Location) map[string]any {
	return map[string]any{
		"x": l.X, "y": l.Y, "z": l.Z,
		"rotate_x": l.RotateX, "rotate_y": l.RotateY, "rotate_z": l.RotateZ,
	}
}

// ZoomMap renders a zoom with the upstream field names
func ZoomMap(z model.Zoom) map[string]any {
	return map[string]any{"x": z.X, "y": z.Y, "z": z.Z}
}
