package ipc

import (
	"time"

	"glossa/internal/ledger"
)

// JobStatus is the wire representation of a ledger job.
type JobStatus struct {
	ID               string     `json:"id"`
	Title            string     `json:"title"`
	SourcePath       string     `json:"source_path"`
	SourceLanguage   string     `json:"source_language,omitempty"`
	DetectedLanguage string     `json:"detected_language,omitempty"`
	TargetLanguage   string     `json:"target_language"`
	Model            string     `json:"model"`
	Engine           string     `json:"engine"`
	OutputMode       string     `json:"output_mode"`
	SubtitleFormat   string     `json:"subtitle_format"`
	State            string     `json:"state"`
	ProgressStage    string     `json:"progress_stage,omitempty"`
	ProgressPercent  float64    `json:"progress_percent"`
	ProgressMessage  string     `json:"progress_message,omitempty"`
	ErrorMessage     string     `json:"error_message,omitempty"`
	SegmentsTotal    int        `json:"segments_total"`
	SegmentsFailed   int        `json:"segments_failed"`
	SidecarPath      string     `json:"sidecar_path,omitempty"`
	VideoPath        string     `json:"video_path,omitempty"`
	CreatedAt        time.Time  `json:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at"`
	StartedAt        *time.Time `json:"started_at,omitempty"`
	FinishedAt       *time.Time `json:"finished_at,omitempty"`
}

// FromJob converts a ledger job to its wire representation.
func FromJob(job *ledger.Job) JobStatus {
	if job == nil {
		return JobStatus{}
	}
	return JobStatus{
		ID:               job.ID,
		Title:            job.Title,
		SourcePath:       job.SourcePath,
		SourceLanguage:   job.SourceLanguage,
		DetectedLanguage: job.DetectedLanguage,
		TargetLanguage:   job.TargetLanguage,
		Model:            job.Model,
		Engine:           job.Engine,
		OutputMode:       job.OutputMode,
		SubtitleFormat:   job.SubtitleFormat,
		State:            string(job.State),
		ProgressStage:    job.ProgressStage,
		ProgressPercent:  job.ProgressPercent,
		ProgressMessage:  job.ProgressMessage,
		ErrorMessage:     job.ErrorMessage,
		SegmentsTotal:    job.SegmentsTotal,
		SegmentsFailed:   job.SegmentsFailed,
		SidecarPath:      job.SidecarPath,
		VideoPath:        job.VideoPath,
		CreatedAt:        job.CreatedAt,
		UpdatedAt:        job.UpdatedAt,
		StartedAt:        job.StartedAt,
		FinishedAt:       job.FinishedAt,
	}
}

// DaemonInfo reports process-level facts about the running daemon.
type DaemonInfo struct {
	PID        int       `json:"pid"`
	Version    string    `json:"version"`
	StartedAt  time.Time `json:"started_at"`
	SocketPath string    `json:"socket_path"`
	LockPath   string    `json:"lock_path"`
	DBPath     string    `json:"db_path"`
}

// SubmitRequest asks the daemon to start translating a video. Empty fields
// fall back to the daemon's configuration defaults.
type SubmitRequest struct {
	SourcePath     string `json:"source_path"`
	TargetLanguage string `json:"target_language,omitempty"`
	SourceLanguage string `json:"source_language,omitempty"`
	Model          string `json:"model,omitempty"`
	Engine         string `json:"engine,omitempty"`
	OutputMode     string `json:"output_mode,omitempty"`
	OutputDir      string `json:"output_dir,omitempty"`
	Format         string `json:"format,omitempty"`
}

// SubmitResponse reports the accepted job, or that the daemon was busy.
type SubmitResponse struct {
	Job     JobStatus `json:"job"`
	Busy    bool      `json:"busy"`
	Message string    `json:"message,omitempty"`
}

// StatusRequest fetches daemon status.
type StatusRequest struct{}

// StatusResponse combines process facts, the active job, and ledger counts.
type StatusResponse struct {
	Running    bool           `json:"running"`
	PID        int            `json:"pid"`
	Version    string         `json:"version"`
	StartedAt  time.Time      `json:"started_at"`
	SocketPath string         `json:"socket_path"`
	LockPath   string         `json:"lock_path"`
	DBPath     string         `json:"db_path"`
	Active     *JobStatus     `json:"active,omitempty"`
	Stats      map[string]int `json:"stats"`
}

// CancelRequest stops a running job.
type CancelRequest struct {
	ID string `json:"id"`
}

// CancelResponse acknowledges a cancellation request. The job settles
// asynchronously.
type CancelResponse struct {
	Requested bool `json:"requested"`
}

// DescribeRequest fetches one job by id.
type DescribeRequest struct {
	ID string `json:"id"`
}

// DescribeResponse carries the requested job.
type DescribeResponse struct {
	Job JobStatus `json:"job"`
}

// RecentRequest lists recent jobs, newest first.
type RecentRequest struct {
	Limit int `json:"limit"`
}

// RecentResponse carries recent jobs.
type RecentResponse struct {
	Jobs []JobStatus `json:"jobs"`
}

// HealthRequest fetches ledger database diagnostics.
type HealthRequest struct{}

// HealthResponse reports ledger database health.
type HealthResponse struct {
	DBPath      string         `json:"db_path"`
	Readable    bool           `json:"readable"`
	IntegrityOK bool           `json:"integrity_ok"`
	TotalJobs   int            `json:"total_jobs"`
	ActiveJobID string         `json:"active_job_id,omitempty"`
	StateCounts map[string]int `json:"state_counts"`
	Error       string         `json:"error,omitempty"`
}

// TestNotificationRequest triggers a notification test.
type TestNotificationRequest struct{}

// TestNotificationResponse reports notification test outcome.
type TestNotificationResponse struct {
	Sent    bool   `json:"sent"`
	Message string `json:"message,omitempty"`
}

// PingRequest probes daemon liveness.
type PingRequest struct{}

// PingResponse reports the responding daemon's PID.
type PingResponse struct {
	PID int `json:"pid"`
}

// ShutdownRequest asks the daemon process to exit gracefully.
type ShutdownRequest struct{}

// ShutdownResponse acknowledges that shutdown has begun.
type ShutdownResponse struct {
	Stopping bool `json:"stopping"`
}
