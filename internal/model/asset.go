package model

// Asset is the canonical shape of an upstream asset
type Asset struct {
	ID         string         `json:"id"`
	Type       MediaKind      `json:"type"`
	Name       string         `json:"name"`
	URL        string         `json:"url"`
	Size       int64          `json:"size"`
	PreviewURL string         `json:"previewUrl,omitempty"`
	Ext        string         `json:"ext,omitempty"`
	Width      int            `json:"width,omitempty"`
	Height     int            `json:"height,omitempty"`
	Meta       map[string]any `json:"meta,omitempty"`
}

// AssetPage is one page of a normalized asset listing
type AssetPage struct {
	Items []Asset `json:"items"`
	Total int     `json:"total"`
	Page  int     `json:"page"`
	Limit int     `json:"limit"`
}

// AssetQuery holds listing parameters
type AssetQuery struct {
	Page   int       `query:"page" validate:"omitempty,min=1"`
	Limit  int       `query:"limit" validate:"omitempty,min=1,max=500"`
	Type   MediaKind `query:"type" validate:"omitempty,oneof=image video model audio"`
	Search string    `query:"q"`
}

// Scene is a named container of AR objects
type Scene struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}
