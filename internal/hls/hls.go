// Package hls holds the pure pieces of adaptive-streaming packaging:
// the rendition catalog, source-resolution filtering, the encoder
// buffer heuristic, and master playlist assembly. Everything that
// actually runs ffmpeg lives elsewhere.
package hls

import (
	"fmt"
	"strconv"
	"strings"
)

// Variant is one quality rendition definition.
type Variant struct {
	Name         string `json:"name"`
	Width        int    `json:"width"`
	Height       int    `json:"height"`
	VideoBitrate string `json:"videoBitrate"`
	AudioBitrate string `json:"audioBitrate"`
	// Bandwidth is the peak bits/sec advertised in the master playlist.
	Bandwidth int `json:"bandwidth"`
}

// Resolution returns the "WxH" form used in playlists.
func (v Variant) Resolution() string {
	return fmt.Sprintf("%dx%d", v.Width, v.Height)
}

// DefaultCatalog is the fixed ladder packaging starts from, ordered
// highest quality first.
func DefaultCatalog() []Variant {
	return []Variant{
		{Name: "1080p", Width: 1920, Height: 1080, VideoBitrate: "5000k", AudioBitrate: "192k", Bandwidth: 5200000},
		{Name: "720p", Width: 1280, Height: 720, VideoBitrate: "3000k", AudioBitrate: "128k", Bandwidth: 3100000},
		{Name: "480p", Width: 854, Height: 480, VideoBitrate: "1500k", AudioBitrate: "128k", Bandwidth: 1600000},
		{Name: "360p", Width: 640, Height: 360, VideoBitrate: "800k", AudioBitrate: "96k", Bandwidth: 900000},
	}
}

// Select keeps the variants that do not upscale the source: every
// catalog entry with width <= sourceWidth, in catalog order. When the
// source width is unknown (<= 0) the whole catalog is kept. The result
// may be empty when the source is narrower than the smallest entry;
// callers accept that and emit a header-only master playlist.
func Select(catalog []Variant, sourceWidth int) []Variant {
	if sourceWidth <= 0 {
		return catalog
	}
	out := make([]Variant, 0, len(catalog))
	for _, v := range catalog {
		if v.Width <= sourceWidth {
			out = append(out, v)
		}
	}
	return out
}

// BufferSize computes the encoder -bufsize value as twice the numeric
// part of the nominal video bitrate, preserving the unit suffix:
// "3000k" becomes "6000k". Inputs without a leading number are
// returned unchanged.
func BufferSize(bitrate string) string {
	i := 0
	for i < len(bitrate) && bitrate[i] >= '0' && bitrate[i] <= '9' {
		i++
	}
	n, err := strconv.Atoi(bitrate[:i])
	if err != nil {
		return bitrate
	}
	return strconv.Itoa(n*2) + bitrate[i:]
}

// Stream is one master playlist entry.
type Stream struct {
	Bandwidth  int
	Resolution string
	// URI is the path to the variant playlist, relative to the master.
	URI string
}

// MasterManifest renders the master playlist text. Entries appear in
// the order given; no reordering or bandwidth sorting happens here.
// With no entries the output is just the header.
func MasterManifest(streams []Stream) string {
	var b strings.Builder
	b.WriteString("#EXTM3U\n")
	b.WriteString("#EXT-X-VERSION:3\n\n")

	for _, s := range streams {
		fmt.Fprintf(&b, "#EXT-X-STREAM-INF:BANDWIDTH=%d,RESOLUTION=%s\n", s.Bandwidth, s.Resolution)
		b.WriteString(s.URI)
		b.WriteString("\n\n")
	}
	return b.String()
}
