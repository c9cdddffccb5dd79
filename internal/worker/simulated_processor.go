package worker

import (
	"context"

	"github.com/arstudio/api/internal/model"
	"github.com/arstudio/api/internal/service"
)

// SimulatedProcessor completes jobs with the placeholder archive. Nothing
// is stored; downloads are served from the placeholder.
type SimulatedProcessor struct{}

func NewSimulatedProcessor() *SimulatedProcessor {
	return &SimulatedProcessor{}
}

func (p *SimulatedProcessor) Process(ctx context.Context, job model.Job) (*model.ResultArtifact, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := service.PlaceholderArchive(job)
	if err != nil {
		return nil, err
	}
	return &model.ResultArtifact{
		Kind:     model.ArtifactKindZip,
		Filename: service.ArtifactFilename(job),
		Size:     int64(len(data)),
	}, nil
}
