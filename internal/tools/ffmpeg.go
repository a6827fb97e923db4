package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/google/shlex"

	"vodworks/internal/config"
	"vodworks/internal/hls"
	"vodworks/internal/model"
)

// Transcoder wraps ffmpeg and ffprobe invocations.
type Transcoder struct {
	ffmpegBin  string
	ffprobeBin string

	probeTimeout     time.Duration
	transcodeTimeout time.Duration
	audioTimeout     time.Duration
	thumbTimeout     time.Duration

	logger *slog.Logger
}

func NewTranscoder(cfg config.ToolsConfig, logger *slog.Logger) *Transcoder {
	return &Transcoder{
		ffmpegBin:        cfg.FFmpegBin,
		ffprobeBin:       cfg.FFprobeBin,
		probeTimeout:     time.Duration(cfg.ProbeTimeoutSeconds) * time.Second,
		transcodeTimeout: time.Duration(cfg.TranscodeTimeoutSeconds) * time.Second,
		audioTimeout:     time.Duration(cfg.AudioTimeoutSeconds) * time.Second,
		thumbTimeout:     time.Duration(cfg.ThumbnailTimeoutSeconds) * time.Second,
		logger:           logger,
	}
}

// Probe inspects a local media file and returns its duration and
// stream layout.
func (t *Transcoder) Probe(ctx context.Context, inputPath string) (model.ProbeResult, error) {
	ctx, cancel := context.WithTimeout(ctx, t.probeTimeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, t.ffprobeBin,
		"-v", "quiet",
		"-print_format", "json",
		"-show_format",
		"-show_streams",
		inputPath,
	)
	out, err := cmd.Output()
	if err != nil {
		return model.ProbeResult{}, &ToolError{Tool: "ffprobe", Diag: exitDiag(err), Err: err}
	}

	var raw struct {
		Format struct {
			Duration string `json:"duration"`
		} `json:"format"`
		Streams []struct {
			CodecType string `json:"codec_type"`
			CodecName string `json:"codec_name"`
			Width     int    `json:"width"`
			Height    int    `json:"height"`
		} `json:"streams"`
	}
	if err := json.Unmarshal(out, &raw); err != nil {
		return model.ProbeResult{}, &ToolError{Tool: "ffprobe", Err: fmt.Errorf("unexpected probe output: %w", err)}
	}

	result := model.ProbeResult{}
	if d, err := strconv.ParseFloat(raw.Format.Duration, 64); err == nil {
		result.DurationSeconds = d
	}
	for _, s := range raw.Streams {
		result.Streams = append(result.Streams, model.StreamInfo{
			Type:   s.CodecType,
			Codec:  s.CodecName,
			Width:  s.Width,
			Height: s.Height,
		})
	}
	return result, nil
}

// Transcode re-encodes inputPath according to opts and returns the
// output path. The output lands next to the input with a _transcoded
// suffix and the requested container extension.
func (t *Transcoder) Transcode(ctx context.Context, inputPath string, opts model.TranscodeOptions) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, t.transcodeTimeout)
	defer cancel()

	format := opts.Format
	if format == "" {
		format = "mp4"
	}
	stem := strings.TrimSuffix(inputPath, filepath.Ext(inputPath))
	outputPath := stem + "_transcoded." + format

	args := []string{"-i", inputPath}

	videoCodec := opts.VideoCodec
	if videoCodec == "" {
		videoCodec = "libx264"
	}
	args = append(args, "-c:v", videoCodec)
	if opts.VideoBitrate != "" {
		args = append(args, "-b:v", opts.VideoBitrate)
	}
	if opts.Resolution != "" {
		args = append(args, "-vf", "scale="+opts.Resolution)
	}
	if opts.Framerate != "" {
		args = append(args, "-r", opts.Framerate)
	}

	audioCodec := opts.AudioCodec
	if audioCodec == "" {
		audioCodec = "aac"
	}
	args = append(args, "-c:a", audioCodec)
	if opts.AudioBitrate != "" {
		args = append(args, "-b:a", opts.AudioBitrate)
	}
	if opts.Preset != "" {
		args = append(args, "-preset", opts.Preset)
	}
	if opts.CRF != "" {
		args = append(args, "-crf", opts.CRF)
	}
	if opts.ExtraArgs != "" {
		extra, err := shlex.Split(opts.ExtraArgs)
		if err != nil {
			return "", &ToolError{Tool: "ffmpeg", Err: fmt.Errorf("bad extra arguments: %w", err)}
		}
		args = append(args, extra...)
	}
	args = append(args, "-y", outputPath)

	t.logger.Info("transcode_started", "input", inputPath, "output", outputPath)
	if err := t.runFFmpeg(ctx, args); err != nil {
		return "", err
	}
	if _, err := os.Stat(outputPath); err != nil {
		return "", &ToolError{Tool: "ffmpeg", Err: fmt.Errorf("transcode produced no output: %w", err)}
	}
	return outputPath, nil
}

// ExtractAudio strips the video track and encodes the audio as format,
// returning the output path.
func (t *Transcoder) ExtractAudio(ctx context.Context, inputPath, format string, opts model.AudioOptions) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, t.audioTimeout)
	defer cancel()

	if format == "" {
		format = "mp3"
	}
	bitrate := opts.Bitrate
	if bitrate == "" {
		bitrate = "192k"
	}
	sampleRate := opts.SampleRate
	if sampleRate == "" {
		sampleRate = "44100"
	}

	stem := strings.TrimSuffix(inputPath, filepath.Ext(inputPath))
	outputPath := stem + "." + format

	args := []string{
		"-i", inputPath,
		"-vn",
		"-acodec", audioCodecFor(format),
		"-ab", bitrate,
		"-ar", sampleRate,
		"-y",
		outputPath,
	}

	t.logger.Info("audio_extraction_started", "input", inputPath, "format", format)
	if err := t.runFFmpeg(ctx, args); err != nil {
		return "", err
	}
	return outputPath, nil
}

// GenerateThumbnails captures count frames at evenly spaced timestamps
// into dir as thumb_NNN.jpg. Frames that fail to extract are skipped;
// the error return covers only the up-front probe.
func (t *Transcoder) GenerateThumbnails(ctx context.Context, inputPath, dir string, count int) ([]string, error) {
	ctx, cancel := context.WithTimeout(ctx, t.thumbTimeout)
	defer cancel()

	if count <= 0 {
		count = 5
	}

	probe, err := t.Probe(ctx, inputPath)
	if err != nil {
		return nil, err
	}
	interval := probe.DurationSeconds / float64(count+1)

	var thumbnails []string
	for i := 1; i <= count; i++ {
		timestamp := interval * float64(i)
		outputPath := filepath.Join(dir, fmt.Sprintf("thumb_%03d.jpg", i))

		args := []string{
			"-ss", strconv.FormatFloat(timestamp, 'f', -1, 64),
			"-i", inputPath,
			"-vframes", "1",
			"-q:v", "2",
			"-y",
			outputPath,
		}
		if err := t.runFFmpeg(ctx, args); err != nil {
			t.logger.Warn("thumbnail_frame_failed", "input", inputPath, "index", i, "error", err)
			continue
		}
		if _, err := os.Stat(outputPath); err == nil {
			thumbnails = append(thumbnails, filepath.Base(outputPath))
		}
	}
	return thumbnails, nil
}

// PackageSegments encodes inputPath as one fixed-duration VOD segment
// rendition of the given variant, writing segments and the variant
// playlist into dir.
func (t *Transcoder) PackageSegments(ctx context.Context, inputPath, dir string, variant hls.Variant, segmentSeconds int) error {
	ctx, cancel := context.WithTimeout(ctx, t.transcodeTimeout)
	defer cancel()

	if segmentSeconds <= 0 {
		segmentSeconds = 6
	}

	args := []string{
		"-i", inputPath,

		"-c:v", "libx264",
		"-preset", "medium",
		"-profile:v", "main",
		"-level", "4.0",
		"-b:v", variant.VideoBitrate,
		"-maxrate", variant.VideoBitrate,
		"-bufsize", hls.BufferSize(variant.VideoBitrate),
		"-vf", fmt.Sprintf("scale=%d:%d", variant.Width, variant.Height),
		"-g", "48",
		"-keyint_min", "48",
		"-sc_threshold", "0",

		"-c:a", "aac",
		"-b:a", variant.AudioBitrate,
		"-ar", "48000",
		"-ac", "2",

		"-f", "hls",
		"-hls_time", strconv.Itoa(segmentSeconds),
		"-hls_list_size", "0",
		"-hls_delete_threshold", "1",
		"-hls_segment_filename", filepath.Join(dir, "segment_%03d.ts"),
		"-hls_playlist_type", "vod",
		"-hls_flags", "independent_segments",

		filepath.Join(dir, "playlist.m3u8"),
	}

	t.logger.Info("variant_packaging_started", "input", inputPath, "variant", variant.Name)
	return t.runFFmpeg(ctx, args)
}

func (t *Transcoder) runFFmpeg(ctx context.Context, args []string) error {
	cmd := exec.CommandContext(ctx, t.ffmpegBin, args...)
	if out, err := cmd.CombinedOutput(); err != nil {
		return &ToolError{Tool: "ffmpeg", Diag: tail(out), Err: err}
	}
	return nil
}

func audioCodecFor(format string) string {
	switch format {
	case "mp3":
		return "libmp3lame"
	case "aac", "m4a":
		return "aac"
	case "ogg":
		return "libvorbis"
	case "flac":
		return "flac"
	case "wav":
		return "pcm_s16le"
	default:
		return "libmp3lame"
	}
}
