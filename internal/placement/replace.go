package placement

import (
	"fmt"

	"github.com/arstudio/api/internal/model"
)

// ErrMediaKindMismatch is returned when a replacement asset is not the same
// kind of media as the object it would replace.
var ErrMediaKindMismatch = fmt.Errorf("replacement media kind mismatch")

// BuildReplacement returns a PATCH body that points every texture of o at
// asset. Only url, width, height and the meta dimension hint change.
func BuildReplacement(o Object, asset model.Asset) (map[string]any, error) {
	if o.MediaInfo.Kind == model.MediaKindUnknown || asset.Type != o.MediaInfo.Kind {
		return nil, fmt.Errorf("%w: object is %s, asset is %s", ErrMediaKindMismatch, o.MediaInfo.Kind, asset.Type)
	}

	next := deepCopyMap(o.Model)
	if next == nil {
		next = map[string]any{}
	}

	replaced := false
	for _, key := range textureKeys {
		tex, ok := next[key].(map[string]any)
		if !ok {
			continue
		}
		next[key] = replaceTexture(tex, asset)
		replaced = true
	}
	if !replaced {
		next["texture"] = replaceTexture(map[string]any{}, asset)
	}

	return map[string]any{"model": next}, nil
}

func replaceTexture(tex map[string]any, asset model.Asset) map[string]any {
	tex["url"] = asset.URL
	if asset.Width > 0 && asset.Height > 0 {
		tex["width"] = asset.Width
		tex["height"] = asset.Height
		if asset.Type != model.MediaKindImage && asset.Type != model.MediaKindVideo {
			return tex
		}

		meta, _ := tex["meta"].(map[string]any)
		if meta == nil {
			meta = map[string]any{}
		}
		meta[string(asset.Type)] = map[string]any{"width": asset.Width, "height": asset.Height}
		tex["meta"] = meta
	}
	return tex
}

func deepCopyMap(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = deepCopyValue(v)
	}
	return out
}

func deepCopyValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		return deepCopyMap(t)
	case []any:
		out := make([]any, len(t))
		for i, child := range t {
			out[i] = deepCopyValue(child)
		}
		return out
	default:
		return v
	}
}
