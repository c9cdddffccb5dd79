package placement

import (
	"net/url"
	"path"
	"strings"

	"github.com/spf13/cast"

	"github.com/arstudio/api/internal/model"
)

var extensionKinds = map[string]model.MediaKind{
	"mp4": model.MediaKindVideo, "webm": model.MediaKindVideo, "mov": model.MediaKindVideo, "m4v": model.MediaKindVideo,
	"png": model.MediaKindImage, "jpg": model.MediaKindImage, "jpeg": model.MediaKindImage, "webp": model.MediaKindImage, "gif": model.MediaKindImage,
	"glb": model.MediaKindModel, "gltf": model.MediaKindModel, "fbx": model.MediaKindModel, "obj": model.MediaKindModel, "usdz": model.MediaKindModel, "stl": model.MediaKindModel,
	"mp3": model.MediaKindAudio, "wav": model.MediaKindAudio, "m4a": model.MediaKindAudio, "aac": model.MediaKindAudio, "ogg": model.MediaKindAudio, "flac": model.MediaKindAudio,
}

// textureKeys are the model fields that may carry a texture, in priority order
var textureKeys = []string{"texture", "ios_texture", "android_texture"}

// Extension returns the lowercased file extension of a URL or path,
// ignoring any query string or fragment.
func Extension(raw string) string {
	p := raw
	if u, err := url.Parse(raw); err == nil && u.Path != "" {
		p = u.Path
	} else if i := strings.IndexAny(p, "?#"); i >= 0 {
		p = p[:i]
	}
	return strings.TrimPrefix(strings.ToLower(path.Ext(p)), ".")
}

// KindForExtension maps an extension to a media kind
func KindForExtension(ext string) model.MediaKind {
	if kind, ok := extensionKinds[strings.ToLower(ext)]; ok {
		return kind
	}
	return model.MediaKindUnknown
}

// primaryTexture returns the first texture descriptor with a URL
func primaryTexture(m map[string]any) (map[string]any, string) {
	for _, key := range textureKeys {
		tex, ok := m[key].(map[string]any)
		if !ok {
			continue
		}
		if u := strings.TrimSpace(cast.ToString(tex["url"])); u != "" {
			return tex, key
		}
	}
	return nil, ""
}

// DeriveMediaInfo inspects the object's model for its primary texture
func DeriveMediaInfo(m map[string]any) model.MediaInfo {
	tex, _ := primaryTexture(m)
	if tex == nil {
		return model.MediaInfo{Kind: model.MediaKindUnknown}
	}
	u := strings.TrimSpace(cast.ToString(tex["url"]))
	ext := Extension(u)
	kind := KindForExtension(ext)
	w, h := textureDimensions(tex, kind)
	return model.MediaInfo{Kind: kind, Ext: ext, Width: w, Height: h, URL: u}
}

// textureDimensions reads width/height from the texture or its meta hints
func textureDimensions(tex map[string]any, kind model.MediaKind) (int, int) {
	w, h := positiveInt(tex["width"]), positiveInt(tex["height"])
	if w > 0 && h > 0 {
		return w, h
	}
	meta, _ := tex["meta"].(map[string]any)
	if meta == nil {
		return w, h
	}
	hints := []string{string(kind), "image", "video"}
	for _, key := range hints {
		if hint, ok := meta[key].(map[string]any); ok {
			hw, hh := positiveInt(hint["width"]), positiveInt(hint["height"])
			if hw > 0 && hh > 0 {
				return hw, hh
			}
		}
	}
	if mw, mh := positiveInt(meta["width"]), positiveInt(meta["height"]); mw > 0 && mh > 0 {
		return mw, mh
	}
	return w, h
}

func positiveInt(v any) int {
	f, err := cast.ToFloat64E(v)
	if err != nil || f <= 0 || f != f {
		return 0
	}
	return int(f + 0.5)
}
