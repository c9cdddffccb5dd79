package model

// JobEventType tags every frame sent on /ws/jobs/:jobId
type JobEventType string

const (
	JobEventProgress JobEventType = "progress"
	JobEventComplete JobEventType = "complete"
	JobEventError    JobEventType = "error"

	// keepalive frames, answered by the server
	JobEventPing JobEventType = "ping"
	JobEventPong JobEventType = "pong"
)

// JobEventFrame is the part of every frame clients and server both read
type JobEventFrame struct {
	Type JobEventType `json:"type"`
}

// JobProgressEvent is sent on connect and after every checkpoint a job
// reaches, so a subscriber can render state without polling GET /api/jobs.
type JobProgressEvent struct {
	Type     JobEventType `json:"type"`
	JobID    string       `json:"jobId"`
	Progress int          `json:"progress"`
	State    JobState     `json:"state"`
	Message  string       `json:"message,omitempty"`
}

// JobCompleteEvent carries the artifacts of a finished job
type JobCompleteEvent struct {
	Type    JobEventType     `json:"type"`
	JobID   string           `json:"jobId"`
	Results []ResultArtifact `json:"results"`
}

// JobErrorEvent ends the stream of a failed or canceled job
type JobErrorEvent struct {
	Type  JobEventType `json:"type"`
	JobID string       `json:"jobId"`
	Error JobEventErr  `json:"error"`
}

type JobEventErr struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
