package model

// TextToImageRequest is the body of POST /api/generate/image
type TextToImageRequest struct {
	Prompt         string `json:"prompt" validate:"required,max=2000"`
	NegativePrompt string `json:"negativePrompt,omitempty" validate:"max=2000"`
	Width          int    `json:"width,omitempty" validate:"omitempty,min=64,max=4096"`
	Height         int    `json:"height,omitempty" validate:"omitempty,min=64,max=4096"`
}

// TextToSpeechRequest is the body of POST /api/generate/speech
type TextToSpeechRequest struct {
	Text  string `json:"text" validate:"required,max=5000"`
	Voice string `json:"voice,omitempty"`
	Lang  string `json:"lang,omitempty"`
}

// PassThrough is an upstream response forwarded as-is
type PassThrough struct {
	Status      int
	ContentType string
	Body        []byte
}
