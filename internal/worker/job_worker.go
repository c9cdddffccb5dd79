package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/hibiken/asynq"

	"github.com/arstudio/api/internal/model"
)

// Task types and queues
const (
	TaskTypeJobAdvance = "job:advance"
	QueueJobs          = "jobs"
)

type advancePayload struct {
	JobID string         `json:"jobId"`
	From  model.JobState `json:"from"`
}

// NewAdvanceTask builds the task that performs one step of jobID
func NewAdvanceTask(jobID string, from model.JobState) (*asynq.Task, error) {
	payload, err := json.Marshal(advancePayload{JobID: jobID, From: from})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal task payload: %w", err)
	}
	return asynq.NewTask(TaskTypeJobAdvance, payload), nil
}

// AsynqDriver schedules job steps as delayed asynq tasks, so steps survive
// a restart of the API process.
type AsynqDriver struct {
	client *asynq.Client
}

func NewAsynqDriver(client *asynq.Client) *AsynqDriver {
	return &AsynqDriver{client: client}
}

func (d *AsynqDriver) Schedule(jobID string, from model.JobState, delay time.Duration) error {
	task, err := NewAdvanceTask(jobID, from)
	if err != nil {
		return err
	}
	info, err := d.client.Enqueue(task,
		asynq.Queue(QueueJobs),
		asynq.ProcessIn(delay),
		asynq.MaxRetry(3),
		asynq.Timeout(10*time.Minute),
	)
	if err != nil {
		return fmt.Errorf("failed to enqueue job step: %w", err)
	}
	log.Printf("Job %s step from %s enqueued as %s (in %s)", jobID, from, info.ID, delay)
	return nil
}

// Advancer performs one scheduled job step
type Advancer interface {
	Advance(ctx context.Context, jobID string, from model.JobState) error
}

// JobWorker handles job:advance tasks
type JobWorker struct {
	jobs Advancer
}

func NewJobWorker(jobs Advancer) *JobWorker {
	return &JobWorker{jobs: jobs}
}

// ProcessTask applies one step. Redelivered tasks are harmless since a step
// only applies while the job is still in the state it was scheduled from.
func (w *JobWorker) ProcessTask(ctx context.Context, t *asynq.Task) error {
	var payload advancePayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("failed to unmarshal task payload: %w: %w", err, asynq.SkipRetry)
	}
	if payload.JobID == "" {
		return fmt.Errorf("task payload has no job id: %w", asynq.SkipRetry)
	}
	return w.jobs.Advance(ctx, payload.JobID, payload.From)
}
