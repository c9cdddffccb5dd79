package model

import (
	"encoding/json"
	"fmt"
	"time"
)

// Job represents one asynchronous batch media operation
type Job struct {
	ID        string           `json:"id"`
	Kind      JobKind          `json:"kind"`
	State     JobState         `json:"state"`
	Progress  int              `json:"progress"`
	Message   string           `json:"message"`
	Options   json.RawMessage  `json:"options"`
	AssetIDs  []string         `json:"assetIds"`
	Results   []ResultArtifact `json:"results"`
	CreatedAt time.Time        `json:"createdAt"`
	UpdatedAt time.Time        `json:"updatedAt"`

	// AuthToken is the creator's upstream credential, used by native
	// processors to resolve asset URLs. Never serialized.
	AuthToken string `json:"-"`
}

// ResultArtifact describes a downloadable job output
type ResultArtifact struct {
	ID          string `json:"id"`
	JobID       string `json:"jobId"`
	Kind        string `json:"kind"`
	Filename    string `json:"filename"`
	Size        int64  `json:"size"`
	DownloadURL string `json:"downloadUrl"`
}

// ArtifactKindZip is the only artifact kind produced today
const ArtifactKindZip = "zip"

// DownscaleOptions are the parameters of a downscale job
type DownscaleOptions struct {
	MaxWidth     int    `json:"maxWidth" validate:"required,gt=0"`
	MaxHeight    int    `json:"maxHeight" validate:"required,gt=0"`
	Quality      int    `json:"quality" validate:"omitempty,min=1,max=100"`
	OutputFormat string `json:"outputFormat" validate:"omitempty,oneof=jpg png webp"`
}

// TranscodeOptions are the parameters of a transcode job
type TranscodeOptions struct {
	Codec       string `json:"codec" validate:"required,oneof=h264 h265 vp9"`
	MaxHeight   int    `json:"maxHeight" validate:"omitempty,gt=0"`
	BitrateKbps int    `json:"bitrateKbps" validate:"omitempty,gte=0"`
	Container   string `json:"container" validate:"omitempty,oneof=mp4 webm mov"`
}

// DecodeDownscaleOptions parses the job options, applying defaults for
// quality (85) and format (jpg).
func (j *Job) DecodeDownscaleOptions() (*DownscaleOptions, error) {
	if j.Kind != JobKindDownscale {
		return nil, fmt.Errorf("job %s is %s, not downscale", j.ID, j.Kind)
	}
	opts := &DownscaleOptions{}
	if err := json.Unmarshal(j.Options, opts); err != nil {
		return nil, fmt.Errorf("invalid downscale options: %w", err)
	}
	if opts.Quality == 0 {
		opts.Quality = 85
	}
	if opts.OutputFormat == "" {
		opts.OutputFormat = FormatJPG
	}
	return opts, nil
}

// DecodeTranscodeOptions parses the job options, defaulting the container
// to mp4.
func (j *Job) DecodeTranscodeOptions() (*TranscodeOptions, error) {
	if j.Kind != JobKindTranscode {
		return nil, fmt.Errorf("job %s is %s, not transcode", j.ID, j.Kind)
	}
	opts := &TranscodeOptions{}
	if err := json.Unmarshal(j.Options, opts); err != nil {
		return nil, fmt.Errorf("invalid transcode options: %w", err)
	}
	if opts.Container == "" {
		opts.Container = "mp4"
	}
	return opts, nil
}

// CreateJobRequest is the body of POST /api/jobs
type CreateJobRequest struct {
	Kind     JobKind         `json:"kind" validate:"required,oneof=downscale transcode"`
	AssetIDs []string        `json:"assetIds" validate:"required,min=1,dive,required"`
	Options  json.RawMessage `json:"options" validate:"required"`
}

// CancelJobResponse is returned by POST /api/jobs/:jobId/cancel
type CancelJobResponse struct {
	Success bool     `json:"success"`
	JobID   string   `json:"jobId"`
	State   JobState `json:"state"`
}
