package dlna

import (
	"strings"

	"github.com/aosaki/dlnacast/tool"
	"github.com/aosaki/dlnacast/types"
)

// GetProtocolInfo asks the ConnectionManager service what the device can
// render and returns the raw Sink list: comma-separated
// protocol:network:mime:extra tuples. Empty string on any failure.
func (c *Client) GetProtocolInfo() string {
	tool.DefaultLogger.Debugf("Getting protocol info from %s", c.ConnectionManagerURL)

	body, err := postSOAP(c.ConnectionManagerURL, connectionManagerService, "GetProtocolInfo", nil, defaultSOAPTimeout)
	if err != nil {
		tool.DefaultLogger.Warnf("GetProtocolInfo failed: %v", err)
		return ""
	}

	sink, err := extractElementText(body, "Sink")
	if err != nil || sink == "" {
		tool.DefaultLogger.Warn("Could not find Sink element in GetProtocolInfo response")
		return ""
	}
	tool.DefaultLogger.Debugf("Device supports protocols: %s", truncate(sink, 200))
	return sink
}

// DetectCapabilities probes the device's declared formats and caches the
// result on the client. A failed probe yields all-false flags and an
// explicit "unknown" raw value rather than an error: absence of a successful
// probe means unknown, and callers treat unknown as "transcode".
func (c *Client) DetectCapabilities() *types.Capabilities {
	protocolInfo := c.GetProtocolInfo()

	caps := &types.Capabilities{RawProtocolInfo: protocolInfo}
	if protocolInfo == "" {
		caps.RawProtocolInfo = "unknown"
	} else {
		caps.SupportsMP3, caps.SupportsAAC, caps.SupportsFLAC, caps.SupportsWAV, caps.SupportsOGG = ParseSinkFormats(protocolInfo)
	}

	c.Capabilities = caps
	tool.DefaultLogger.Infof("Device capabilities: MP3=%t, AAC=%t, FLAC=%t, WAV=%t, OGG=%t",
		caps.SupportsMP3, caps.SupportsAAC, caps.SupportsFLAC, caps.SupportsWAV, caps.SupportsOGG)
	return caps
}

// ParseSinkFormats substring-matches a ConnectionManager Sink list against
// known MIME markers, case-insensitively.
func ParseSinkFormats(sink string) (mp3, aac, flac, wav, ogg bool) {
	for _, proto := range strings.Split(sink, ",") {
		p := strings.ToLower(proto)
		if strings.Contains(p, "audio/mpeg") || strings.Contains(p, "audio/mp3") {
			mp3 = true
		}
		if strings.Contains(p, "audio/aac") || strings.Contains(p, "audio/x-aac") || strings.Contains(p, "audio/mp4") {
			aac = true
		}
		if strings.Contains(p, "audio/flac") || strings.Contains(p, "audio/x-flac") {
			flac = true
		}
		if strings.Contains(p, "audio/wav") || strings.Contains(p, "audio/x-wav") {
			wav = true
		}
		if strings.Contains(p, "audio/ogg") || strings.Contains(p, "audio/x-ogg") {
			ogg = true
		}
	}
	return
}

// CanPlayFormat reports whether the device declared support for the MIME
// type's format family. Detection runs lazily on first use; when it is
// unavailable the answer is false, i.e. assume transcoding is required.
func (c *Client) CanPlayFormat(mimeType string) bool {
	if c.Capabilities == nil {
		c.DetectCapabilities()
	}
	if c.Capabilities == nil {
		return false
	}
	return FormatSupported(mimeType, c.Capabilities)
}

// FormatSupported maps a MIME type into one of the capability buckets via
// substring family matching; mp4/aac/adts/m4a all route to the AAC bucket.
func FormatSupported(mimeType string, caps *types.Capabilities) bool {
	if caps == nil {
		return false
	}
	mime := strings.ToLower(mimeType)
	switch {
	case strings.Contains(mime, "mpeg") || strings.Contains(mime, "mp3"):
		return caps.SupportsMP3
	case strings.Contains(mime, "aac") || strings.Contains(mime, "mp4") ||
		strings.Contains(mime, "adts") || strings.Contains(mime, "m4a"):
		return caps.SupportsAAC
	case strings.Contains(mime, "flac"):
		return caps.SupportsFLAC
	case strings.Contains(mime, "wav"):
		return caps.SupportsWAV
	case strings.Contains(mime, "ogg"):
		return caps.SupportsOGG
	}
	return false
}
