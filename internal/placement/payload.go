package placement

import (
	"github.com/arstudio/api/internal/model"
)

// alwaysSent keys survive pruning even when empty
var alwaysSent = []string{"location", "zoom", "model"}

// BuildPatch renders the full PATCH body for o with draft applied. The body
// carries complete location and zoom, merges the committed model,
// transparency, events, group and scene_id, and drops empty values.
func BuildPatch(o Object, draft model.ObjectDraft) map[string]any {
	next := ApplyDraft(o, draft)

	m := next.Model
	if m == nil {
		m = map[string]any{}
	}

	body := map[string]any{
		"name":         next.Name,
		"location":     LocationMap(next.Location),
		"zoom":         ZoomMap(next.Zoom),
		"model":        m,
		"transparency": next.Transparency,
		"events":       next.Events,
		"group":        next.Group,
		"scene_id":     next.SceneID,
	}
	return Prune(body, alwaysSent...)
}

// Prune removes nil values, empty strings and empty collections from body,
// recursively. Top-level keys named in keep stay even when they prune to
// nothing.
func Prune(body map[string]any, keep ...string) map[string]any {
	out := make(map[string]any, len(body))
	for k, v := range body {
		if pv, ok := prune(v); ok {
			out[k] = pv
		}
	}
	for _, k := range keep {
		if _, ok := out[k]; ok {
			continue
		}
		if v, ok := body[k]; ok {
			if _, isMap := v.(map[string]any); isMap || v == nil {
				out[k] = map[string]any{}
			}
		}
	}
	return out
}

func prune(v any) (any, bool) {
	switch t := v.(type) {
	case nil:
		return nil, false
	case string:
		return t, t != ""
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, child := range t {
			if pv, ok := prune(child); ok {
				out[k] = pv
			}
		}
		return out, len(out) > 0
	case []any:
		out := make([]any, 0, len(t))
		for _, child := range t {
			if pv, ok := prune(child); ok {
				out = append(out, pv)
			}
		}
		return out, len(out) > 0
	default:
		return v, true
	}
}
