package player

import (
	"context"
	"os/exec"
	"strings"
	"time"

	"github.com/aosaki/dlnacast/tool"
	"github.com/aosaki/dlnacast/types"
)

const (
	// ffprobe gets a bounded analysis window so a slow or silent stream
	// cannot stall a /play call.
	ffprobeAnalyzeDuration = "2000000"
	ffprobeProbeSize       = "1000000"
	ffprobeTimeout         = 20 * time.Second

	maxContentTypeLength = 100
)

// Codec names as ffprobe reports them, mapped to the MIME type the rest of
// the pipeline reasons about.
var codecToMime = map[string]string{
	"aac":       "audio/aac",
	"mp3":       "audio/mpeg",
	"flac":      "audio/flac",
	"vorbis":    "audio/ogg",
	"opus":      "audio/ogg",
	"pcm_s16le": "audio/wav",
	"pcm_s24le": "audio/wav",
}

// DetectStreamFormat resolves the MIME type of a stream URL, cheapest method
// first: cache, then a HEAD request, then ffprobe. A successful detection is
// cached with the method that produced it. Returns "" when every method
// fails; callers treat unknown as "needs transcoding".
func (o *Orchestrator) DetectStreamFormat(streamURL string) string {
	if entry := o.cache.Get(streamURL); entry != nil {
		tool.DefaultLogger.Debugf("Stream format from cache: %s (%s)", entry.MimeType, entry.DetectionMethod)
		return entry.MimeType
	}

	if mime := o.detectViaHead(streamURL); mime != "" {
		tool.DefaultLogger.Infof("Detected stream format via HEAD: %s", mime)
		if err := o.cache.Set(streamURL, mime, types.DetectionMethodHead); err != nil {
			tool.DefaultLogger.Warnf("Failed to cache stream format: %v", err)
		}
		return mime
	}

	if mime := o.detectViaFFprobe(streamURL); mime != "" {
		tool.DefaultLogger.Infof("Detected stream format via ffprobe: %s", mime)
		if err := o.cache.Set(streamURL, mime, types.DetectionMethodFFprobe); err != nil {
			tool.DefaultLogger.Warnf("Failed to cache stream format: %v", err)
		}
		return mime
	}

	tool.DefaultLogger.Warnf("Could not detect format of %s", streamURL)
	return ""
}

// detectViaHead issues a HEAD request (redirects followed by the shared
// client) and reads Content-Type up to the parameter separator. The value is
// length-capped before it travels any further.
func (o *Orchestrator) detectViaHead(streamURL string) string {
	timeout := time.Duration(o.cfg.Timeouts.StreamDetection) * time.Second
	resp, err := tool.HTTPHead(streamURL, timeout)
	if err != nil {
		tool.DefaultLogger.Debugf("HEAD detection failed: %v", err)
		return ""
	}
	defer resp.Body.Close()

	contentType := resp.Header.Get("Content-Type")
	contentType, _, _ = strings.Cut(contentType, ";")
	contentType = strings.TrimSpace(strings.ToLower(contentType))
	if len(contentType) > maxContentTypeLength {
		contentType = contentType[:maxContentTypeLength]
	}
	if !strings.Contains(contentType, "/") {
		return ""
	}
	return contentType
}

// detectViaFFprobe asks ffprobe for the first audio stream's codec and maps
// it through the codec table. Unknown codecs return "".
func (o *Orchestrator) detectViaFFprobe(streamURL string) string {
	ctx, cancel := context.WithTimeout(context.Background(), ffprobeTimeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, "ffprobe",
		"-v", "error",
		"-analyzeduration", ffprobeAnalyzeDuration,
		"-probesize", ffprobeProbeSize,
		"-select_streams", "a:0",
		"-show_entries", "stream=codec_name",
		"-of", "default=noprint_wrappers=1:nokey=1",
		streamURL,
	)
	output, err := cmd.Output()
	if err != nil {
		tool.DefaultLogger.Debugf("ffprobe detection failed: %v", err)
		return ""
	}
	codec := strings.TrimSpace(strings.ToLower(string(output)))
	mime, ok := codecToMime[codec]
	if !ok {
		tool.DefaultLogger.Debugf("ffprobe reported unmapped codec %q", codec)
		return ""
	}
	return mime
}
