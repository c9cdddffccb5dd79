package service

import (
	"archive/zip"
	"bytes"
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/arstudio/api/internal/model"
)

// ArtifactStore holds generated job archives
type ArtifactStore interface {
	Save(ctx context.Context, key string, data []byte, contentType string) error
	Load(ctx context.Context, key string) ([]byte, error)
}

// ArtifactFilename is the stable archive name for a job
func ArtifactFilename(job model.Job) string {
	short := job.ID
	if len(short) > 8 {
		short = short[:8]
	}
	return fmt.Sprintf("%s-%s.zip", job.Kind, short)
}

// ArtifactKey is the storage key of a job's archive
func ArtifactKey(job model.Job) string {
	return fmt.Sprintf("jobs/%s/%s", job.ID, ArtifactFilename(job))
}

// PlaceholderArchive builds the fixed archive served for jobs whose output
// was simulated. It contains a single manifest describing the job.
func PlaceholderArchive(job model.Job) ([]byte, error) {
	var manifest strings.Builder
	fmt.Fprintf(&manifest, "job: %s\n", job.ID)
	fmt.Fprintf(&manifest, "kind: %s\n", job.Kind)
	fmt.Fprintf(&manifest, "assets: %s\n", strings.Join(job.AssetIDs, ","))
	if len(job.Options) > 0 {
		fmt.Fprintf(&manifest, "options: %s\n", job.Options)
	}

	buf := new(bytes.Buffer)
	zw := zip.NewWriter(buf)
	// Fixed timestamp so every request gets byte-identical bytes.
	w, err := zw.CreateHeader(&zip.FileHeader{
		Name:     "MANIFEST.txt",
		Method:   zip.Deflate,
		Modified: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create manifest entry: %w", err)
	}
	if _, err := w.Write([]byte(manifest.String())); err != nil {
		return nil, fmt.Errorf("failed to write manifest: %w", err)
	}
	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("failed to finalize archive: %w", err)
	}
	return buf.Bytes(), nil
}
