package model

import "time"

// BatchUploadRequest is the body of POST /api/scenes/:sceneId/batch-upload
type BatchUploadRequest struct {
	AssetID         string   `json:"assetId" validate:"required"`
	Name            string   `json:"name" validate:"required,max=255"`
	Count           int      `json:"count" validate:"required,min=1,max=100"`
	RandomPlacement bool     `json:"randomPlacement"`
	LightTagHeight  *float64 `json:"lightTagHeight,omitempty"`
	PlacementRange  *float64 `json:"placementRange,omitempty" validate:"omitempty,gt=0"`
}

// BatchLogEntry is one operator-visible line of batch progress
type BatchLogEntry struct {
	Time    time.Time `json:"time"`
	Message string    `json:"message"`
}

// String renders the entry as "[15:04:05] message"
func (e BatchLogEntry) String() string {
	return "[" + e.Time.Format("15:04:05") + "] " + e.Message
}

// BatchUploadResponse summarizes a batch upload
type BatchUploadResponse struct {
	Requested  int             `json:"requested"`
	Created    int             `json:"created"`
	ObjectIDs  []string        `json:"objectIds"`
	Placements []Location      `json:"placements,omitempty"`
	Log        []BatchLogEntry `json:"log"`
}
