package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/lithammer/shortuuid/v4"

	"vodworks/internal/config"
	"vodworks/internal/model"
)

var filenameSanitizer = regexp.MustCompile(`[^a-zA-Z0-9_\-]`)

// Downloader fetches remote media into a local directory via yt-dlp.
type Downloader struct {
	bin          string
	fetchTimeout time.Duration
	infoTimeout  time.Duration
	logger       *slog.Logger
}

func NewDownloader(cfg config.ToolsConfig, logger *slog.Logger) *Downloader {
	return &Downloader{
		bin:          cfg.YtdlpBin,
		fetchTimeout: time.Duration(cfg.DownloadTimeoutSeconds) * time.Second,
		infoTimeout:  time.Duration(cfg.ProbeTimeoutSeconds) * time.Second,
		logger:       logger,
	}
}

// Fetch downloads url into dir and returns the resulting file. For
// audioOnly fetches the media is extracted to mp3 at best quality;
// otherwise the requested format (or bestvideo+bestaudio/best) is
// merged into an mp4 container.
func (d *Downloader) Fetch(ctx context.Context, url, dir, format string, audioOnly bool) (model.FetchResult, error) {
	ctx, cancel := context.WithTimeout(ctx, d.fetchTimeout)
	defer cancel()

	// Unique prefix keeps concurrent fetches into a shared directory
	// from colliding; yt-dlp fills in the real extension.
	prefix := fmt.Sprintf("%s_%d", strings.ToLower(shortuuid.New()), time.Now().Unix())
	outputTemplate := filepath.Join(dir, prefix+".%(ext)s")

	var args []string
	if audioOnly {
		args = []string{"-x", "--audio-format", "mp3", "--audio-quality", "0", "-o", outputTemplate, url}
	} else {
		formatOption := "bestvideo+bestaudio/best"
		if format != "" && format != "best" {
			formatOption = format
		}
		args = []string{"-f", formatOption, "--merge-output-format", "mp4", "-o", outputTemplate, url}
	}

	d.logger.Info("download_started", "url", url, "audio_only", audioOnly)

	cmd := exec.CommandContext(ctx, d.bin, args...)
	if out, err := cmd.CombinedOutput(); err != nil {
		return model.FetchResult{}, &DownloadError{URL: url, Err: fmt.Errorf("%w: %s", err, tail(out))}
	}

	matches, err := filepath.Glob(filepath.Join(dir, prefix+".*"))
	if err != nil {
		return model.FetchResult{}, &DownloadError{URL: url, Err: err}
	}
	if len(matches) == 0 {
		return model.FetchResult{}, &DownloadError{URL: url, Err: fmt.Errorf("no output file produced")}
	}

	path := matches[0]
	info, err := os.Stat(path)
	if err != nil {
		return model.FetchResult{}, &DownloadError{URL: url, Err: err}
	}

	ext := strings.TrimPrefix(filepath.Ext(path), ".")
	base := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))

	result := model.FetchResult{
		Path:      path,
		Filename:  SanitizeFilename(base) + "." + ext,
		Size:      info.Size(),
		Extension: ext,
	}
	d.logger.Info("download_completed", "url", url, "size", result.Size, "extension", ext)
	return result, nil
}

// Info probes url for its metadata without downloading the media.
func (d *Downloader) Info(ctx context.Context, url string) (model.SourceInfo, error) {
	ctx, cancel := context.WithTimeout(ctx, d.infoTimeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, d.bin, "--dump-json", "--no-playlist", url)
	out, err := cmd.Output()
	if err != nil {
		return model.SourceInfo{}, &DownloadError{URL: url, Err: fmt.Errorf("%w: %s", err, exitDiag(err))}
	}

	var raw struct {
		Title     string  `json:"title"`
		Duration  float64 `json:"duration"`
		Uploader  string  `json:"uploader"`
		Thumbnail string  `json:"thumbnail"`
		Formats   []struct {
			FormatID   string  `json:"format_id"`
			Ext        string  `json:"ext"`
			Resolution string  `json:"resolution"`
			FormatNote string  `json:"format_note"`
			Filesize   float64 `json:"filesize"`
		} `json:"formats"`
	}
	if err := json.Unmarshal(out, &raw); err != nil {
		return model.SourceInfo{}, &DownloadError{URL: url, Err: fmt.Errorf("unexpected metadata output: %w", err)}
	}

	info := model.SourceInfo{
		Title:           raw.Title,
		DurationSeconds: raw.Duration,
		Uploader:        raw.Uploader,
		Thumbnail:       raw.Thumbnail,
	}
	for _, f := range raw.Formats {
		info.Formats = append(info.Formats, model.SourceFormat{
			ID:         f.FormatID,
			Extension:  f.Ext,
			Resolution: f.Resolution,
			Note:       f.FormatNote,
			Filesize:   int64(f.Filesize),
		})
	}
	return info, nil
}

// SanitizeFilename reduces a downloaded title to a safe filename stem.
func SanitizeFilename(name string) string {
	name = filenameSanitizer.ReplaceAllString(name, "_")
	if len(name) > 200 {
		name = name[:200]
	}
	return name
}

// tail trims combined tool output to a size small enough to persist in
// a session error.
func tail(out []byte) string {
	s := strings.TrimSpace(string(out))
	if len(s) > 512 {
		s = s[len(s)-512:]
	}
	return s
}

// exitDiag pulls stderr from an exec error when it is an *ExitError.
func exitDiag(err error) string {
	if ee, ok := err.(*exec.ExitError); ok {
		return tail(ee.Stderr)
	}
	return ""
}
