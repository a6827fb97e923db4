package pipeline

import (
	"context"

	"vodworks/internal/hls"
	"vodworks/internal/model"
)

// Downloader fetches remote media into a workspace directory.
type Downloader interface {
	Fetch(ctx context.Context, url, dir, format string, audioOnly bool) (model.FetchResult, error)
}

// Transcoder runs the local media transformations. Implementations
// shell out to the actual tools; tests substitute fakes.
type Transcoder interface {
	Probe(ctx context.Context, inputPath string) (model.ProbeResult, error)
	Transcode(ctx context.Context, inputPath string, opts model.TranscodeOptions) (string, error)
	ExtractAudio(ctx context.Context, inputPath, format string, opts model.AudioOptions) (string, error)
	GenerateThumbnails(ctx context.Context, inputPath, dir string, count int) ([]string, error)
	PackageSegments(ctx context.Context, inputPath, dir string, variant hls.Variant, segmentSeconds int) error
}
