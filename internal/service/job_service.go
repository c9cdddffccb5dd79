package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/arstudio/api/internal/model"
	"github.com/arstudio/api/internal/store"
)

// JobProcessor produces the output of a job once it reaches the end of
// processing. The returned artifact needs no JobID or DownloadURL; the
// service fills those in.
type JobProcessor interface {
	Process(ctx context.Context, job model.Job) (*model.ResultArtifact, error)
}

// JobDriver arranges for Advance(jobID, from) to be called after delay
type JobDriver interface {
	Schedule(jobID string, from model.JobState, delay time.Duration) error
}

// JobNotifier receives every persisted job change
type JobNotifier interface {
	BroadcastProgress(jobID string, progress int, state model.JobState, message string)
	BroadcastComplete(jobID string, results []model.ResultArtifact)
	BroadcastError(jobID string, code, message string)
}

type JobServiceOptions struct {
	InitialDelay time.Duration
	StepInterval time.Duration
	PublicURL    string
}

// JobService owns job records and drives them through their lifecycle
type JobService struct {
	repo      store.JobRepository
	processor JobProcessor
	artifacts ArtifactStore
	notifier  JobNotifier
	validator *validator.Validate
	driver    JobDriver
	opts      JobServiceOptions

	// mu serializes read-modify-write cycles on the repository
	mu  sync.Mutex
	now func() time.Time

	transitions metric.Int64Counter
	failures    metric.Int64Counter
}

func NewJobService(
	repo store.JobRepository,
	processor JobProcessor,
	artifacts ArtifactStore,
	notifier JobNotifier,
	v *validator.Validate,
	opts JobServiceOptions,
) *JobService {
	s := &JobService{
		repo:      repo,
		processor: processor,
		artifacts: artifacts,
		notifier:  notifier,
		validator: v,
		opts:      opts,
		now:       time.Now,
	}
	s.driver = &timerDriver{svc: s}

	meter := otel.Meter("github.com/arstudio/api/internal/service")
	s.transitions, _ = meter.Int64Counter("jobs.transitions",
		metric.WithDescription("Job state transitions by target state"))
	s.failures, _ = meter.Int64Counter("jobs.failures",
		metric.WithDescription("Jobs that ended in the error state"))
	return s
}

// UseDriver replaces the in-process timer driver
func (s *JobService) UseDriver(d JobDriver) {
	s.driver = d
}

// CreateJob validates the request, stores a queued job and schedules its
// first step. It never waits for the job to advance.
func (s *JobService) CreateJob(ctx context.Context, req *model.CreateJobRequest, token string) (*model.Job, error) {
	if err := s.validateCreate(req); err != nil {
		return nil, err
	}

	now := s.now()
	job := model.Job{
		ID:        uuid.New().String(),
		Kind:      req.Kind,
		State:     model.JobStateQueued,
		Progress:  0,
		Options:   req.Options,
		AssetIDs:  append([]string(nil), req.AssetIDs...),
		Results:   []model.ResultArtifact{},
		CreatedAt: now,
		UpdatedAt: now,
		AuthToken: token,
	}
	job.Message = stateMessage(model.JobStateQueued, job)

	if err := s.repo.Put(ctx, job); err != nil {
		return nil, fmt.Errorf("failed to save job: %w", err)
	}

	if err := s.driver.Schedule(job.ID, job.State, s.opts.InitialDelay); err != nil {
		log.Printf("Failed to schedule job %s: %v", job.ID, err)
		s.Fail(ctx, job.ID, "Failed to schedule job")
		return nil, fmt.Errorf("failed to schedule job: %w", err)
	}

	log.Printf("Job %s created (%s, %d assets)", job.ID, job.Kind, len(job.AssetIDs))
	return &job, nil
}

func (s *JobService) validateCreate(req *model.CreateJobRequest) error {
	if req == nil {
		return newValidationError("request body is required")
	}
	if !req.Kind.Valid() {
		kinds := make([]string, len(model.ValidJobKinds))
		for i, k := range model.ValidJobKinds {
			kinds[i] = string(k)
		}
		return newValidationError("kind must be one of " + strings.Join(kinds, ", "))
	}
	if len(req.AssetIDs) == 0 {
		return newValidationError("assetIds must not be empty")
	}
	for _, id := range req.AssetIDs {
		if strings.TrimSpace(id) == "" {
			return newValidationError("assetIds must not contain blank ids")
		}
	}
	opts := bytes.TrimSpace(req.Options)
	if len(opts) == 0 || opts[0] != '{' {
		return newValidationError("options must be an object")
	}
	req.Options = opts

	candidate := model.Job{Kind: req.Kind, Options: opts}
	var target interface{}
	var err error
	switch req.Kind {
	case model.JobKindDownscale:
		target, err = candidate.DecodeDownscaleOptions()
	case model.JobKindTranscode:
		target, err = candidate.DecodeTranscodeOptions()
	}
	if err != nil {
		return newValidationError(err.Error())
	}
	if s.validator != nil {
		if err := s.validator.Struct(target); err != nil {
			var ve validator.ValidationErrors
			if errors.As(err, &ve) {
				fields := make(map[string]string, len(ve))
				for _, fe := range ve {
					fields["options."+fe.Field()] = fe.Tag()
				}
				return &ValidationError{Message: "invalid options", Fields: fields}
			}
			return newValidationError(err.Error())
		}
	}
	return nil
}

// GetJob returns one job
func (s *JobService) GetJob(ctx context.Context, jobID string) (*model.Job, error) {
	job, err := s.repo.Get(ctx, jobID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrJobNotFound
		}
		return nil, err
	}
	return &job, nil
}

// ListJobs returns all jobs, most recently created first
func (s *JobService) ListJobs(ctx context.Context) ([]model.Job, error) {
	return s.repo.List(ctx)
}

// CancelJob moves a non-terminal job to canceled. Pending steps become
// no-ops through the terminal check.
func (s *JobService) CancelJob(ctx context.Context, jobID string) (*model.CancelJobResponse, error) {
	s.mu.Lock()
	job, err := s.GetJob(ctx, jobID)
	if err != nil {
		s.mu.Unlock()
		return nil, err
	}
	if job.State.IsTerminal() {
		s.mu.Unlock()
		return nil, ErrJobTerminal
	}

	updated := *job
	updated.State = model.JobStateCanceled
	updated.Message = stateMessage(model.JobStateCanceled, updated)
	updated.UpdatedAt = s.now()
	err = s.repo.Put(ctx, updated)
	s.mu.Unlock()
	if err != nil {
		return nil, fmt.Errorf("failed to save job: %w", err)
	}

	s.record(ctx, updated.State)
	if s.notifier != nil {
		s.notifier.BroadcastError(jobID, "JOB_CANCELED", updated.Message)
	}
	log.Printf("Job %s canceled", jobID)

	return &model.CancelJobResponse{
		Success: true,
		JobID:   jobID,
		State:   updated.State,
	}, nil
}

// Advance performs one scheduled step. The step only applies when the job
// is still in state from; anything else (terminal, already advanced by a
// duplicate delivery, deleted) is a no-op.
func (s *JobService) Advance(ctx context.Context, jobID string, from model.JobState) error {
	s.mu.Lock()
	job, err := s.repo.Get(ctx, jobID)
	if err != nil {
		s.mu.Unlock()
		if errors.Is(err, store.ErrNotFound) {
			return nil
		}
		return err
	}
	if job.State.IsTerminal() || job.State != from {
		s.mu.Unlock()
		return nil
	}

	next, _ := Step(job)
	if next.State != model.JobStateDone {
		next.UpdatedAt = s.now()
		err := s.repo.Put(ctx, next)
		s.mu.Unlock()
		if err != nil {
			return fmt.Errorf("failed to save job: %w", err)
		}
		s.record(ctx, next.State)
		if s.notifier != nil {
			s.notifier.BroadcastProgress(jobID, next.Progress, next.State, next.Message)
		}
		return s.driver.Schedule(jobID, next.State, s.opts.StepInterval)
	}
	s.mu.Unlock()

	// Processing runs outside the lock; the job may be canceled meanwhile.
	artifact, err := s.process(ctx, job)
	if err != nil {
		log.Printf("Job %s processing failed: %v", jobID, err)
		s.Fail(ctx, jobID, err.Error())
		return nil
	}

	s.mu.Lock()
	current, err := s.repo.Get(ctx, jobID)
	if err != nil || current.State != from {
		s.mu.Unlock()
		return nil
	}
	next.Results = []model.ResultArtifact{*artifact}
	next.UpdatedAt = s.now()
	err = s.repo.Put(ctx, next)
	s.mu.Unlock()
	if err != nil {
		return fmt.Errorf("failed to save job: %w", err)
	}

	s.record(ctx, next.State)
	if s.notifier != nil {
		s.notifier.BroadcastProgress(jobID, next.Progress, next.State, next.Message)
		s.notifier.BroadcastComplete(jobID, next.Results)
	}
	log.Printf("Job %s completed", jobID)
	return nil
}

func (s *JobService) process(ctx context.Context, job model.Job) (*model.ResultArtifact, error) {
	if s.processor == nil {
		return nil, errors.New("no job processor configured")
	}
	artifact, err := s.processor.Process(ctx, job)
	if err != nil {
		return nil, err
	}
	if artifact == nil {
		return nil, errors.New("processor returned no artifact")
	}
	out := *artifact
	if out.ID == "" {
		out.ID = uuid.New().String()
	}
	out.JobID = job.ID
	if out.Kind == "" {
		out.Kind = model.ArtifactKindZip
	}
	if out.Filename == "" {
		out.Filename = ArtifactFilename(job)
	}
	out.DownloadURL = s.DownloadURL(job.ID)
	return &out, nil
}

// Fail moves a non-terminal job straight to error. No further steps run.
func (s *JobService) Fail(ctx context.Context, jobID, message string) {
	s.mu.Lock()
	job, err := s.repo.Get(ctx, jobID)
	if err != nil || job.State.IsTerminal() {
		s.mu.Unlock()
		return
	}
	job.State = model.JobStateError
	job.Message = message
	job.UpdatedAt = s.now()
	err = s.repo.Put(ctx, job)
	s.mu.Unlock()
	if err != nil {
		log.Printf("Failed to mark job %s as failed: %v", jobID, err)
		return
	}

	s.record(ctx, job.State)
	s.failures.Add(ctx, 1, metric.WithAttributes(attribute.String("kind", string(job.Kind))))
	if s.notifier != nil {
		s.notifier.BroadcastError(jobID, "JOB_FAILED", message)
	}
}

// DownloadURL is the stable per-job artifact URL
func (s *JobService) DownloadURL(jobID string) string {
	return fmt.Sprintf("%s/api/jobs/%s/download", s.opts.PublicURL, jobID)
}

// Download returns the archive of a done job: the stored artifact when one
// exists, otherwise the placeholder archive.
func (s *JobService) Download(ctx context.Context, jobID string) (string, []byte, error) {
	job, err := s.GetJob(ctx, jobID)
	if err != nil {
		return "", nil, err
	}
	if job.State != model.JobStateDone || len(job.Results) == 0 {
		return "", nil, ErrJobNotReady
	}
	filename := job.Results[0].Filename

	if s.artifacts != nil {
		data, err := s.artifacts.Load(ctx, ArtifactKey(*job))
		if err == nil {
			return filename, data, nil
		}
		if !errors.Is(err, store.ErrNotFound) {
			return "", nil, fmt.Errorf("failed to load artifact: %w", err)
		}
	}

	data, err := PlaceholderArchive(*job)
	if err != nil {
		return "", nil, err
	}
	return filename, data, nil
}

func (s *JobService) record(ctx context.Context, state model.JobState) {
	s.transitions.Add(ctx, 1, metric.WithAttributes(attribute.String("state", string(state))))
}

// timerDriver advances jobs with in-process timers. Each step is an
// independent timer; nothing is shared between jobs.
type timerDriver struct {
	svc *JobService
}

func (d *timerDriver) Schedule(jobID string, from model.JobState, delay time.Duration) error {
	time.AfterFunc(delay, func() {
		if err := d.svc.Advance(context.Background(), jobID, from); err != nil {
			log.Printf("Job %s step failed: %v", jobID, err)
		}
	})
	return nil
}
