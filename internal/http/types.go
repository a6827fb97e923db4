package http

import (
	"vodworks/internal/model"
	"vodworks/internal/session"
)

// SubmitRequest is the shared input shape of the job submission
// endpoints. Each endpoint reads the subset of fields it cares about;
// the kind comes from the route, not the body.
type SubmitRequest struct {
	URL  string `json:"url"`
	Sync bool   `json:"sync,omitempty"`

	// Download jobs.
	Format    string                  `json:"format,omitempty"`
	Transcode *model.TranscodeOptions `json:"transcode,omitempty"`

	// Audio jobs.
	AudioFormat string `json:"audioFormat,omitempty"`
	Bitrate     string `json:"bitrate,omitempty"`
	SampleRate  string `json:"sampleRate,omitempty"`

	// Streaming-package jobs.
	SegmentSeconds int `json:"segmentSeconds,omitempty"`

	// Thumbnail jobs.
	Count int `json:"count,omitempty"`
}

// ErrorResponse is the error envelope shared by all endpoints.
type ErrorResponse struct {
	Success bool   `json:"success"`
	Code    string `json:"code,omitempty"`
	Error   string `json:"error"`
}

// SubmitResponse acknowledges an asynchronous submission.
type SubmitResponse struct {
	Success bool   `json:"success"`
	ID      string `json:"id"`
	Status  string `json:"status"`
}

// SyncResponse carries the result of a synchronous run. The job leaves
// no status record behind; the artifact is retrievable once via the
// files endpoint using the returned id.
type SyncResponse struct {
	Success bool            `json:"success"`
	ID      string          `json:"id"`
	Result  *session.Result `json:"result"`
}

// StatusResponse wraps a single session record.
type StatusResponse struct {
	Success bool             `json:"success"`
	Session *session.Session `json:"session"`
}

// SessionsResponse wraps the session listing.
type SessionsResponse struct {
	Success  bool               `json:"success"`
	Count    int                `json:"count"`
	Sessions []*session.Session `json:"sessions"`
}

// InfoResponse wraps a source metadata probe.
type InfoResponse struct {
	Success bool              `json:"success"`
	Info    *model.SourceInfo `json:"info"`
}

// CleanupResponse reports what an on-demand retention pass removed.
type CleanupResponse struct {
	Success           bool `json:"success"`
	WorkspacesRemoved int  `json:"workspacesRemoved"`
	SessionsRemoved   int  `json:"sessionsRemoved"`
}
