package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"vodworks/internal/archive"
	"vodworks/internal/config"
	"vodworks/internal/hls"
	"vodworks/internal/model"
	"vodworks/internal/session"
	"vodworks/internal/tools"
	"vodworks/internal/workspace"
)

const archiveName = "hls_package.zip"

// Runner executes the stage sequence for a job inside its workspace.
// It behaves identically for synchronous and queued execution; only
// the caller differs. On failure the workspace is destroyed before the
// error is returned, so a failed job never leaves artifacts behind.
type Runner struct {
	ws         *workspace.Manager
	downloader Downloader
	transcoder Transcoder
	catalog    []hls.Variant

	segmentSeconds int
	minDiskBytes   uint64
	minMemoryBytes uint64

	logger *slog.Logger
}

func NewRunner(ws *workspace.Manager, dl Downloader, tc Transcoder, cfg *config.Config, logger *slog.Logger) *Runner {
	return &Runner{
		ws:             ws,
		downloader:     dl,
		transcoder:     tc,
		catalog:        hls.DefaultCatalog(),
		segmentSeconds: cfg.Streaming.SegmentSeconds,
		minDiskBytes:   cfg.Tools.MinFreeDiskBytes,
		minMemoryBytes: cfg.Tools.MinFreeMemoryBytes,
		logger:         logger,
	}
}

// Run executes the stages for req and returns the success result. The
// progress callback receives coarse percentages at stage boundaries
// and may be nil.
func (r *Runner) Run(ctx context.Context, req model.JobRequest, progress func(int)) (session.Result, error) {
	if progress == nil {
		progress = func(int) {}
	}

	if err := tools.CheckResources(r.ws.Root(), r.minDiskBytes, r.minMemoryBytes); err != nil {
		return session.Result{}, fmt.Errorf("resource pre-flight: %w", err)
	}

	dir, err := r.ws.Create(req.ID)
	if err != nil {
		return session.Result{}, err
	}

	result, err := r.run(ctx, req, dir, progress)
	if err != nil {
		r.logger.Error("pipeline_failed", "session_id", req.ID, "kind", req.Kind, "error", err)
		if derr := r.ws.Destroy(req.ID); derr != nil {
			r.logger.Warn("workspace_cleanup_failed", "session_id", req.ID, "error", derr)
		}
		return session.Result{}, err
	}

	progress(100)
	r.logger.Info("pipeline_completed", "session_id", req.ID, "kind", req.Kind)
	return result, nil
}

func (r *Runner) run(ctx context.Context, req model.JobRequest, dir string, progress func(int)) (session.Result, error) {
	switch req.Kind {
	case model.KindDownload:
		return r.runDownload(ctx, req, dir, progress)
	case model.KindAudio:
		return r.runAudio(ctx, req, dir, progress)
	case model.KindStreaming:
		return r.runStreaming(ctx, req, dir, progress)
	case model.KindThumbnails:
		return r.runThumbnails(ctx, req, dir, progress)
	}
	return session.Result{}, fmt.Errorf("unknown job kind %q", req.Kind)
}

// fetch downloads the source media and renames it to its sanitized
// original filename so the artifact is retrievable under a stable name.
func (r *Runner) fetch(ctx context.Context, req model.JobRequest, dir string, audioOnly bool) (model.FetchResult, error) {
	f, err := r.downloader.Fetch(ctx, req.URL, dir, req.Format, audioOnly)
	if err != nil {
		return model.FetchResult{}, err
	}
	named := filepath.Join(dir, f.Filename)
	if named != f.Path {
		if err := os.Rename(f.Path, named); err != nil {
			return model.FetchResult{}, fmt.Errorf("rename download: %w", err)
		}
		f.Path = named
	}
	return f, nil
}

func (r *Runner) runDownload(ctx context.Context, req model.JobRequest, dir string, progress func(int)) (session.Result, error) {
	f, err := r.fetch(ctx, req, dir, false)
	if err != nil {
		return session.Result{}, err
	}
	if !req.Transcode.Enabled {
		return session.Result{Filename: f.Filename, Size: f.Size}, nil
	}
	progress(50)

	out, err := r.transcoder.Transcode(ctx, f.Path, req.Transcode)
	if err != nil {
		return session.Result{}, err
	}
	info, err := os.Stat(out)
	if err != nil {
		return session.Result{}, fmt.Errorf("stat transcode output: %w", err)
	}
	return session.Result{Filename: filepath.Base(out), Size: info.Size()}, nil
}

func (r *Runner) runAudio(ctx context.Context, req model.JobRequest, dir string, progress func(int)) (session.Result, error) {
	f, err := r.fetch(ctx, req, dir, false)
	if err != nil {
		return session.Result{}, err
	}
	progress(50)

	out, err := r.transcoder.ExtractAudio(ctx, f.Path, req.AudioFormat, req.Audio)
	if err != nil {
		return session.Result{}, err
	}
	info, err := os.Stat(out)
	if err != nil {
		return session.Result{}, fmt.Errorf("stat audio output: %w", err)
	}
	return session.Result{Filename: filepath.Base(out), Size: info.Size()}, nil
}

func (r *Runner) runStreaming(ctx context.Context, req model.JobRequest, dir string, progress func(int)) (session.Result, error) {
	f, err := r.fetch(ctx, req, dir, false)
	if err != nil {
		return session.Result{}, err
	}
	progress(20)

	probe, err := r.transcoder.Probe(ctx, f.Path)
	if err != nil {
		return session.Result{}, err
	}
	variants := hls.Select(r.catalog, probe.VideoWidth())

	segmentSeconds := req.Streaming.SegmentSeconds
	if segmentSeconds <= 0 {
		segmentSeconds = r.segmentSeconds
	}

	hlsDir := filepath.Join(dir, "hls")
	if err := os.MkdirAll(hlsDir, 0o755); err != nil {
		return session.Result{}, fmt.Errorf("create package dir: %w", err)
	}

	var (
		results []session.VariantResult
		streams []hls.Stream
	)
	for i, v := range variants {
		variantDir := filepath.Join(hlsDir, v.Name)
		if err := os.MkdirAll(variantDir, 0o755); err != nil {
			return session.Result{}, fmt.Errorf("create variant dir: %w", err)
		}
		if err := r.transcoder.PackageSegments(ctx, f.Path, variantDir, v, segmentSeconds); err != nil {
			return session.Result{}, err
		}
		results = append(results, session.VariantResult{
			Name:         v.Name,
			ManifestPath: v.Name + "/playlist.m3u8",
			Bandwidth:    v.Bandwidth,
			Resolution:   v.Resolution(),
		})
		streams = append(streams, hls.Stream{
			Bandwidth:  v.Bandwidth,
			Resolution: v.Resolution(),
			URI:        v.Name + "/playlist.m3u8",
		})
		progress(20 + (i+1)*60/max(len(variants), 1))
	}

	master := hls.MasterManifest(streams)
	if err := os.WriteFile(filepath.Join(hlsDir, "master.m3u8"), []byte(master), 0o644); err != nil {
		return session.Result{}, fmt.Errorf("write master manifest: %w", err)
	}

	archivePath := filepath.Join(dir, archiveName)
	if err := archive.BundleDir(hlsDir, archivePath); err != nil {
		return session.Result{}, fmt.Errorf("bundle package: %w", err)
	}
	info, err := os.Stat(archivePath)
	if err != nil {
		return session.Result{}, fmt.Errorf("stat archive: %w", err)
	}

	return session.Result{
		ArchiveFilename: archiveName,
		ArchiveSize:     info.Size(),
		Variants:        results,
	}, nil
}

func (r *Runner) runThumbnails(ctx context.Context, req model.JobRequest, dir string, progress func(int)) (session.Result, error) {
	f, err := r.fetch(ctx, req, dir, false)
	if err != nil {
		return session.Result{}, err
	}
	progress(50)

	names, err := r.transcoder.GenerateThumbnails(ctx, f.Path, dir, req.ThumbnailCount)
	if err != nil {
		return session.Result{}, err
	}
	if len(names) == 0 {
		return session.Result{}, fmt.Errorf("no thumbnails could be extracted")
	}
	return session.Result{ThumbnailFilenames: names}, nil
}
