package service

import (
	"strings"

	"github.com/arstudio/api/internal/extract"
	"github.com/arstudio/api/internal/model"
	"github.com/arstudio/api/internal/placement"
)

// typeAliases maps explicit upstream type values onto media kinds. Values
// not listed fall through to MIME prefixes and then the file extension.
var typeAliases = map[string]model.MediaKind{
	"image": model.MediaKindImage, "img": model.MediaKindImage, "photo": model.MediaKindImage, "picture": model.MediaKindImage,
	"video": model.MediaKindVideo, "movie": model.MediaKindVideo,
	"model": model.MediaKindModel, "3d": model.MediaKindModel, "mesh": model.MediaKindModel, "glb": model.MediaKindModel, "gltf": model.MediaKindModel,
	"audio": model.MediaKindAudio, "sound": model.MediaKindAudio, "music": model.MediaKindAudio,
}

// NormalizeAsset maps one upstream asset record onto the canonical Asset.
// Records without an id are rejected.
func NormalizeAsset(record map[string]any) (model.Asset, bool) {
	id, ok := extract.RecordID.ID(record)
	if !ok {
		return model.Asset{}, false
	}

	asset := model.Asset{ID: id}
	asset.Name, _ = extract.AssetName.String(record)
	asset.URL, _ = extract.AssetURL.String(record)
	asset.PreviewURL, _ = extract.AssetPreview.String(record)
	asset.Meta, _ = extract.AssetMeta.Object(record)
	if size, ok := extract.AssetSize.Int(record); ok && size > 0 {
		asset.Size = int64(size)
	}
	if w, ok := extract.AssetWidth.Int(record); ok && w > 0 {
		asset.Width = w
	}
	if h, ok := extract.AssetHeight.Int(record); ok && h > 0 {
		asset.Height = h
	}

	if ext, ok := extract.AssetExt.String(record); ok {
		asset.Ext = strings.TrimPrefix(strings.ToLower(strings.TrimSpace(ext)), ".")
	} else if asset.URL != "" {
		asset.Ext = placement.Extension(asset.URL)
	} else {
		asset.Ext = placement.Extension(asset.Name)
	}

	asset.Type = inferAssetType(record, asset.Ext)
	return asset, true
}

func inferAssetType(record map[string]any, ext string) model.MediaKind {
	if explicit, ok := extract.AssetType.String(record); ok {
		v := strings.ToLower(strings.TrimSpace(explicit))
		if kind, ok := typeAliases[v]; ok {
			return kind
		}
		if i := strings.IndexByte(v, '/'); i > 0 {
			if kind, ok := typeAliases[v[:i]]; ok {
				return kind
			}
		}
	}
	if kind := placement.KindForExtension(ext); kind != model.MediaKindUnknown {
		return kind
	}
	return model.MediaKindImage
}

// NormalizeScene maps one upstream scene record
func NormalizeScene(record map[string]any) (model.Scene, bool) {
	id, ok := extract.RecordID.ID(record)
	if !ok {
		return model.Scene{}, false
	}
	scene := model.Scene{ID: id}
	scene.Name, _ = extract.SceneName.String(record)
	scene.Description, _ = extract.SceneDescription.String(record)
	return scene, true
}
