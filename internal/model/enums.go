package model

// Job kinds
type JobKind string

const (
	JobKindDownscale JobKind = "downscale"
	JobKindTranscode JobKind = "transcode"
)

var ValidJobKinds = []JobKind{JobKindDownscale, JobKindTranscode}

// Valid reports whether k is one of ValidJobKinds
func (k JobKind) Valid() bool {
	for _, v := range ValidJobKinds {
		if k == v {
			return true
		}
	}
	return false
}

// JobState is the lifecycle state of a Job. Non-terminal states advance
// strictly in declaration order.
type JobState string

const (
	JobStateQueued     JobState = "queued"
	JobStateValidating JobState = "validating"
	JobStateProcessing JobState = "processing"
	JobStateDone       JobState = "done"
	JobStateError      JobState = "error"
	JobStateCanceled   JobState = "canceled"
)

var jobStateRank = map[JobState]int{
	JobStateQueued:     0,
	JobStateValidating: 1,
	JobStateProcessing: 2,
	JobStateDone:       3,
}

// IsTerminal reports whether no further transition is possible.
func (s JobState) IsTerminal() bool {
	return s == JobStateDone || s == JobStateError || s == JobStateCanceled
}

// Rank returns the position of s in the forward order, or -1 for the
// error and canceled states which sit outside it.
func (s JobState) Rank() int {
	if r, ok := jobStateRank[s]; ok {
		return r
	}
	return -1
}

// Media kinds derived from texture URLs
type MediaKind string

const (
	MediaKindImage   MediaKind = "image"
	MediaKindVideo   MediaKind = "video"
	MediaKindModel   MediaKind = "model"
	MediaKindAudio   MediaKind = "audio"
	MediaKindUnknown MediaKind = "unknown"
)

// Output formats
const (
	FormatJPG  = "jpg"
	FormatPNG  = "png"
	FormatWEBP = "webp"
)
