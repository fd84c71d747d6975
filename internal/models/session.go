package models

import "time"

// SessionInfo describes a live design session.
type SessionInfo struct {
	ID           string    `json:"id" msgpack:"id"`
	Width        int       `json:"width" msgpack:"width"`
	Height       int       `json:"height" msgpack:"height"`
	Background   string    `json:"background" msgpack:"background"`
	ShirtColor   string    `json:"shirtColor" msgpack:"shirtColor"`
	CreatedAt    time.Time `json:"createdAt" msgpack:"createdAt"`
	LastAccessed time.Time `json:"lastAccessed" msgpack:"lastAccessed"`
}

// JobStatus represents the status of an image generation job.
type JobStatus string

const (
	JobStatusPending    JobStatus = "pending"
	JobStatusGenerating JobStatus = "generating"
	JobStatusLoading    JobStatus = "loading"
	JobStatusComplete   JobStatus = "complete"
	JobStatusError      JobStatus = "error"
)

// GenerationJob tracks one prompt sent to the image generator on behalf of a
// session.
type GenerationJob struct {
	ID               string    `json:"id"`
	SessionID        string    `json:"sessionId"`
	Prompt           string    `json:"prompt"`
	Status           JobStatus `json:"status"`
	StartTime        int64     `json:"startTime,omitempty"` // Unix ms
	EndTime          int64     `json:"endTime,omitempty"`   // Unix ms
	ProcessingTimeMs int64     `json:"processingTimeMs,omitempty"`
	Error            string    `json:"error,omitempty"`
}

// NewGenerationJob creates a job in pending status.
func NewGenerationJob(id, sessionID, prompt string) *GenerationJob {
	return &GenerationJob{
		ID:        id,
		SessionID: sessionID,
		Prompt:    prompt,
		Status:    JobStatusPending,
	}
}

// Done reports whether the job reached a terminal status.
func (j *GenerationJob) Done() bool {
	return j.Status == JobStatusComplete || j.Status == JobStatusError
}
