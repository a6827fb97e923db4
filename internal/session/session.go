package session

import (
	"time"

	"vodworks/internal/model"
)

// Status is the lifecycle state of a session record. Centralizing the
// values here avoids scattering string literals across packages.
type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
	StatusCancelled  Status = "cancelled"
)

// Terminal reports whether no further transition is allowed out of s.
func (s Status) Terminal() bool {
	switch s {
	case StatusCompleted, StatusFailed, StatusCancelled:
		return true
	}
	return false
}

// CanTransition reports whether a status write from "from" to "to" is
// a legal lifecycle step. The store itself does not enforce this; the
// dispatcher, worker, and cancel path consult it before writing.
func CanTransition(from, to Status) bool {
	switch from {
	case StatusPending:
		return to == StatusProcessing || to == StatusCancelled
	case StatusProcessing:
		return to == StatusCompleted || to == StatusFailed || to == StatusCancelled
	}
	return false
}

// VariantResult describes one packaged rendition inside a
// streaming-package result.
type VariantResult struct {
	Name         string `json:"name"`
	ManifestPath string `json:"manifestPath"`
	Bandwidth    int    `json:"bandwidth"`
	Resolution   string `json:"resolution"`
}

// Result is the kind-tagged outcome payload of a finished job. The
// session's Kind decides which fields are meaningful: filename/size
// for download and audio jobs, the archive and variant fields for
// streaming packages, thumbnailFilenames for thumbnail jobs, and
// error for any failed job.
type Result struct {
	Filename           string          `json:"filename,omitempty"`
	Size               int64           `json:"size,omitempty"`
	ArchiveFilename    string          `json:"archiveFilename,omitempty"`
	ArchiveSize        int64           `json:"archiveSize,omitempty"`
	Variants           []VariantResult `json:"variants,omitempty"`
	ThumbnailFilenames []string        `json:"thumbnailFilenames,omitempty"`
	Error              string          `json:"error,omitempty"`
}

// PrimaryFilename returns the single retrievable artifact name for the
// result, or "" when the result has none (thumbnails expose a list).
func (r Result) PrimaryFilename() string {
	if r.ArchiveFilename != "" {
		return r.ArchiveFilename
	}
	return r.Filename
}

// Session is one tracked media-processing job and its durable status
// record.
type Session struct {
	ID        string            `json:"id"`
	Kind      model.Kind        `json:"kind"`
	Status    Status            `json:"status"`
	Progress  int               `json:"progress"`
	CreatedAt time.Time         `json:"createdAt"`
	UpdatedAt time.Time         `json:"updatedAt"`
	Metadata  map[string]string `json:"metadata,omitempty"`
	Result    *Result           `json:"result,omitempty"`
}
