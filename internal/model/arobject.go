package model

// ARObject is an AR object record exactly as the upstream returns it.
// Shapes vary between upstream versions, so it stays loosely typed until
// placement.Normalize coerces it.
type ARObject map[string]any

// Location is a fully populated position and rotation (degrees)
type Location struct {
	X       float64 `json:"x"`
	Y       float64 `json:"y"`
	Z       float64 `json:"z"`
	RotateX float64 `json:"rotate_x"`
	RotateY float64 `json:"rotate_y"`
	RotateZ float64 `json:"rotate_z"`
}

// Zoom is a per-axis scale factor. Components default to 1.
type Zoom struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// DefaultZoom is the identity zoom
var DefaultZoom = Zoom{X: 1, Y: 1, Z: 1}

// MediaInfo describes the media behind an AR object's primary texture
type MediaInfo struct {
	Kind   MediaKind `json:"kind"`
	Ext    string    `json:"ext"`
	Width  int       `json:"width"`
	Height int       `json:"height"`
	URL    string    `json:"url"`
}

// InfoBallModelType marks the ring-composite AR object subtype
const InfoBallModelType = 13

// CreateObjectFromAssetRequest is the body of
// POST /api/scenes/:sceneId/objects/from-asset
type CreateObjectFromAssetRequest struct {
	AssetID string `json:"assetId" validate:"required"`
	Name    string `json:"name" validate:"required,max=255"`
}

// ReplaceMediaRequest is the body of
// POST /api/scenes/:sceneId/objects/:objectId/replace
// AssetType, when the caller already knows it, lets a mismatch be rejected
// without fetching the asset.
type ReplaceMediaRequest struct {
	AssetID   string    `json:"assetId" validate:"required"`
	AssetType MediaKind `json:"assetType,omitempty" validate:"omitempty,oneof=image video model audio"`
}

// ObjectDraft is a sparse pending edit for one object. Numeric fields hold
// raw user input.
type ObjectDraft struct {
	Name     *string               `json:"name,omitempty"`
	Location map[string]DraftValue `json:"location,omitempty"`
	Zoom     map[string]DraftValue `json:"zoom,omitempty"`
}

// EditsRequest carries draft edits keyed by object id
type EditsRequest struct {
	Edits map[string]ObjectDraft `json:"edits" validate:"required"`
}

// SaveOutcome reports the result of saving one object
type SaveOutcome struct {
	ObjectID string `json:"objectId"`
	Saved    bool   `json:"saved"`
	Error    string `json:"error,omitempty"`
}
