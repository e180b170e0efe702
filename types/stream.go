package types

// Detection methods recorded in the stream format cache.
const (
	DetectionMethodHead    = "head"
	DetectionMethodFFprobe = "ffprobe"
)

// StreamFormatEntry is one cached content-type detection result. URL is kept
// verbatim for diagnostics; the cache key is a hash, not the URL itself.
type StreamFormatEntry struct {
	URL             string `json:"url"`
	MimeType        string `json:"mime_type"`
	DetectionMethod string `json:"detection_method"`
	Timestamp       int64  `json:"timestamp"`
}

// PlayResult reports the outcome of a /play orchestration.
type PlayResult struct {
	StreamURL   string `json:"stream_url"`
	PlaybackURL string `json:"playback_url"`
	Transcoding bool   `json:"transcoding"`
	Format      string `json:"format,omitempty"`
}
