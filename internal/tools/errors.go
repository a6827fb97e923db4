package tools

import "fmt"

// DownloadError is a terminal failure of the external downloader:
// network failure, tool failure, or no output file materializing.
type DownloadError struct {
	URL string
	Err error
}

func (e *DownloadError) Error() string {
	return fmt.Sprintf("download failed for %s: %v", e.URL, e.Err)
}

func (e *DownloadError) Unwrap() error { return e.Err }

// ToolError is a terminal failure of an external media tool. Diag
// carries the tool's combined output so the persisted job error is
// actionable.
type ToolError struct {
	Tool string
	Diag string
	Err  error
}

func (e *ToolError) Error() string {
	if e.Diag != "" {
		return fmt.Sprintf("%s failed: %v: %s", e.Tool, e.Err, e.Diag)
	}
	return fmt.Sprintf("%s failed: %v", e.Tool, e.Err)
}

func (e *ToolError) Unwrap() error { return e.Err }
