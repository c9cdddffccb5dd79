package service

import (
	"fmt"

	"github.com/arstudio/api/internal/model"
)

// Transition returns the state that follows s. Terminal states map to
// themselves.
func Transition(s model.JobState) model.JobState {
	switch s {
	case model.JobStateQueued:
		return model.JobStateValidating
	case model.JobStateValidating:
		return model.JobStateProcessing
	case model.JobStateProcessing:
		return model.JobStateDone
	default:
		return s
	}
}

// checkpoint is the progress recorded on entering state next
func checkpoint(next model.JobState, progress int) int {
	switch next {
	case model.JobStateValidating:
		return 25
	case model.JobStateProcessing:
		return min(75, progress+25)
	case model.JobStateDone:
		return 100
	default:
		return progress
	}
}

func stateMessage(state model.JobState, job model.Job) string {
	switch state {
	case model.JobStateQueued:
		return "Queued"
	case model.JobStateValidating:
		return fmt.Sprintf("Validating %d assets", len(job.AssetIDs))
	case model.JobStateProcessing:
		return fmt.Sprintf("Processing %d assets", len(job.AssetIDs))
	case model.JobStateDone:
		return "Completed"
	case model.JobStateCanceled:
		return "Canceled"
	default:
		return string(state)
	}
}

// Step applies one forward transition to job. It reports false, leaving
// the job untouched, when the job is terminal. The done artifact is not
// attached here.
func Step(job model.Job) (model.Job, bool) {
	if job.State.IsTerminal() {
		return job, false
	}
	next := Transition(job.State)
	job.Progress = max(job.Progress, checkpoint(next, job.Progress))
	job.State = next
	job.Message = stateMessage(next, job)
	return job, true
}
