package model

import "time"

// Job status
type JobStatus string

const (
	JobStatusQueued   JobStatus = "queued"
	JobStatusRunning  JobStatus = "running"
	JobStatusComplete JobStatus = "complete"
	JobStatusFailed   JobStatus = "failed"
)

// Job represents one upload-to-artifacts processing unit. It is persisted as
// <prefix>.metadata.json inside the job's output directory, which makes the
// filesystem the job store: jobs survive a process restart.
type Job struct {
	ID             string         `json:"jobId"`
	Filename       string         `json:"filename"`
	Status         JobStatus      `json:"status"`
	ArtifactPrefix string         `json:"artifactPrefix,omitempty"`
	Artifacts      []string       `json:"artifacts"`
	Stats          map[string]any `json:"stats,omitempty"`
	Error          *string        `json:"error,omitempty"`
	CreatedAt      time.Time      `json:"createdAt"`
	StartedAt      *time.Time     `json:"startedAt,omitempty"`
	CompletedAt    *time.Time     `json:"completedAt,omitempty"`
}

// Progress is the polled extraction progress (stage name and 0-100 percent).
// It lives in progress.json next to the artifacts, never listed as one.
type Progress struct {
	Stage   string `json:"stage"`
	Percent int    `json:"percent"`
}

// UploadResponse is returned by POST /upload
type UploadResponse struct {
	JobID     string    `json:"jobId"`
	Filename  string    `json:"filename"`
	Status    JobStatus `json:"status"`
	CreatedAt time.Time `json:"createdAt"`
}

// ExtractRequest is the optional body for POST /extract/:jobId
type ExtractRequest struct {
	Chunking *ChunkingConfig `json:"chunking,omitempty"`
}

// ExtractAcceptedResponse is returned when an extraction has been dispatched
type ExtractAcceptedResponse struct {
	JobID   string    `json:"jobId"`
	Status  JobStatus `json:"status"`
	Message string    `json:"message"`
}

// JobResponse is returned by GET /job/:jobId
type JobResponse struct {
	Metadata  *Job     `json:"metadata"`
	Artifacts []string `json:"artifacts"`
}

// CleanResponse reports what POST /storage/clean removed
type CleanResponse struct {
	RemovedUploads int `json:"removedUploads"`
	RemovedOutputs int `json:"removedOutputs"`
}
