package ledger

import "time"

// State represents the lifecycle of a translation job.
type State string

const (
	StatePending      State = "pending"
	StateExtracting   State = "extracting"
	StateTranscribing State = "transcribing"
	StateTranslating  State = "translating"
	StateAssembling   State = "assembling"
	StateMuxing       State = "muxing"
	StateCompleted    State = "completed"
	StateFailed       State = "failed"
	StateCancelled    State = "cancelled"
)

// InterruptedMessage is the error recorded when startup recovery finds jobs
// a dead process left mid-flight.
const InterruptedMessage = "interrupted: process exited before the job finished"

var allStates = []State{
	StatePending,
	StateExtracting,
	StateTranscribing,
	StateTranslating,
	StateAssembling,
	StateMuxing,
	StateCompleted,
	StateFailed,
	StateCancelled,
}

var stateSet = func() map[State]struct{} {
	set := make(map[State]struct{}, len(allStates))
	for _, state := range allStates {
		set[state] = struct{}{}
	}
	return set
}()

var processingStates = []State{
	StateExtracting,
	StateTranscribing,
	StateTranslating,
	StateAssembling,
	StateMuxing,
}

// forwardTransitions lists the success path. Sidecar-only jobs skip muxing,
// so assembling may complete directly.
var forwardTransitions = map[State][]State{
	StatePending:      {StateExtracting},
	StateExtracting:   {StateTranscribing},
	StateTranscribing: {StateTranslating},
	StateTranslating:  {StateAssembling},
	StateAssembling:   {StateMuxing, StateCompleted},
	StateMuxing:       {StateCompleted},
}

// Known reports whether s is a recognized state.
func Known(s State) bool {
	_, ok := stateSet[s]
	return ok
}

// Terminal reports whether a job in s will never change state again.
func (s State) Terminal() bool {
	return s == StateCompleted || s == StateFailed || s == StateCancelled
}

// Processing reports whether s is an in-flight stage.
func (s State) Processing() bool {
	for _, p := range processingStates {
		if s == p {
			return true
		}
	}
	return false
}

func (s State) String() string { return string(s) }

// ValidTransition reports whether a job may move from one state to another.
// Success transitions are strictly forward; failed and cancelled are
// reachable from every non-terminal state.
func ValidTransition(from, to State) bool {
	if !Known(from) || !Known(to) || from.Terminal() {
		return false
	}
	if to == StateFailed || to == StateCancelled {
		return true
	}
	for _, next := range forwardTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Job is one translation run persisted in SQLite.
type Job struct {
	ID             string
	SourcePath     string
	Title          string
	SourceLanguage string
	TargetLanguage string
	// DetectedLanguage is filled after transcription when no source hint
	// was supplied.
	DetectedLanguage string
	Model            string
	Engine           string
	OutputMode       string
	OutputDir        string
	SubtitleFormat   string
	State            State
	ProgressStage    string
	ProgressPercent  float64
	ProgressMessage  string
	ErrorMessage     string
	SegmentsTotal    int
	SegmentsFailed   int
	SidecarPath      string
	VideoPath        string
	CreatedAt        time.Time
	UpdatedAt        time.Time
	StartedAt        *time.Time
	FinishedAt       *time.Time
	LastHeartbeat    *time.Time
}

// OutputPath returns the primary artifact of the job: the muxed video when
// one was produced, otherwise the subtitle sidecar.
func (j *Job) OutputPath() string {
	if j.VideoPath != "" {
		return j.VideoPath
	}
	return j.SidecarPath
}

// Health captures diagnostic information about the ledger database.
type Health struct {
	Path        string
	Readable    bool
	IntegrityOK bool
	TotalJobs   int
	ActiveJobID string
	StateCounts map[State]int
}
