package model

import "time"

// Kind identifies which stage sequence a job runs. The values are
// stored in session records and queue descriptors, so they must stay
// stable across releases.
type Kind string

const (
	KindDownload   Kind = "download"
	KindAudio      Kind = "audio"
	KindStreaming  Kind = "streaming-package"
	KindThumbnails Kind = "thumbnails"
)

// Valid reports whether k is one of the known job kinds.
func (k Kind) Valid() bool {
	switch k {
	case KindDownload, KindAudio, KindStreaming, KindThumbnails:
		return true
	}
	return false
}

// FetchResult describes a file retrieved into a session workspace.
type FetchResult struct {
	Path      string `json:"path"`
	Filename  string `json:"filename"`
	Size      int64  `json:"size"`
	Extension string `json:"extension"`
}

// StreamInfo is one stream entry from a media probe.
type StreamInfo struct {
	Type   string `json:"type"`
	Codec  string `json:"codec,omitempty"`
	Width  int    `json:"width,omitempty"`
	Height int    `json:"height,omitempty"`
}

// ProbeResult is the container-level view of a local media file.
type ProbeResult struct {
	DurationSeconds float64      `json:"durationSeconds"`
	Streams         []StreamInfo `json:"streams"`
}

// VideoWidth returns the width of the first video stream, or zero when
// no video stream was found (audio-only input, probe failure).
func (p ProbeResult) VideoWidth() int {
	for _, s := range p.Streams {
		if s.Type == "video" {
			return s.Width
		}
	}
	return 0
}

// SourceFormat is one downloadable rendition reported for a remote URL.
type SourceFormat struct {
	ID         string `json:"id"`
	Extension  string `json:"extension,omitempty"`
	Resolution string `json:"resolution,omitempty"`
	Note       string `json:"note,omitempty"`
	Filesize   int64  `json:"filesize,omitempty"`
}

// SourceInfo is the metadata probe of a remote URL, taken without
// downloading the media itself.
type SourceInfo struct {
	Title           string         `json:"title"`
	DurationSeconds float64        `json:"durationSeconds,omitempty"`
	Uploader        string         `json:"uploader,omitempty"`
	Thumbnail       string         `json:"thumbnail,omitempty"`
	Formats         []SourceFormat `json:"formats,omitempty"`
}

// TranscodeOptions are the caller-controllable ffmpeg parameters for a
// post-download transcode. Zero values mean "let ffmpeg decide" except
// for codecs, which default to libx264/aac.
type TranscodeOptions struct {
	Enabled      bool   `json:"enabled"`
	VideoCodec   string `json:"videoCodec,omitempty"`
	VideoBitrate string `json:"videoBitrate,omitempty"`
	AudioCodec   string `json:"audioCodec,omitempty"`
	AudioBitrate string `json:"audioBitrate,omitempty"`
	Resolution   string `json:"resolution,omitempty"`
	Framerate    string `json:"framerate,omitempty"`
	Preset       string `json:"preset,omitempty"`
	CRF          string `json:"crf,omitempty"`
	Format       string `json:"format,omitempty"`
	// ExtraArgs is a shell-style string of additional ffmpeg arguments,
	// split with shlex before the output path is appended.
	ExtraArgs string `json:"extraArgs,omitempty"`
}

// AudioOptions control audio extraction.
type AudioOptions struct {
	Bitrate    string `json:"bitrate,omitempty"`
	SampleRate string `json:"sampleRate,omitempty"`
}

// StreamingOptions control adaptive-streaming packaging.
type StreamingOptions struct {
	SegmentSeconds int `json:"segmentSeconds,omitempty"`
}

// JobRequest is the full job descriptor: everything a worker needs to
// run the stage sequence without consulting any other source. It is
// what gets serialized onto the queue.
type JobRequest struct {
	ID             string           `json:"id"`
	Kind           Kind             `json:"kind"`
	URL            string           `json:"url"`
	Format         string           `json:"format,omitempty"`
	AudioFormat    string           `json:"audioFormat,omitempty"`
	ThumbnailCount int              `json:"thumbnailCount,omitempty"`
	Transcode      TranscodeOptions `json:"transcode,omitempty"`
	Audio          AudioOptions     `json:"audio,omitempty"`
	Streaming      StreamingOptions `json:"streaming,omitempty"`
	EnqueuedAt     time.Time        `json:"enqueuedAt,omitempty"`
}
