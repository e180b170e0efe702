package dlna

import (
	"fmt"
	"strings"

	"github.com/aosaki/dlnacast/types"
)

// Fixed streaming flags for synthesized protocolInfo: streamable over
// http-get, no conversion indication, standard streaming flags bitmask.
const dlnaStreamingExtras = "DLNA.ORG_OP=01;DLNA.ORG_CI=0;DLNA.ORG_FLAGS=01700000000000000000000000000000"

// MIME aliases per format family in lookup preference order. AAC prefers
// audio/mp4 over audio/aac because that is the more common DLNA declaration.
var mimeAliases = map[string][]string{
	"mp3":  {"audio/mpeg", "audio/mp3"},
	"aac":  {"audio/mp4", "audio/aac", "audio/x-aac"},
	"flac": {"audio/flac", "audio/x-flac"},
	"wav":  {"audio/wav", "audio/x-wav"},
	"ogg":  {"audio/ogg", "audio/x-ogg"},
}

// DLNA profile names used when the device declares nothing usable.
var dlnaProfiles = map[string]string{
	"mp3":  "MP3",
	"aac":  "AAC_ISO",
	"flac": "FLAC",
}

var didlEscaper = strings.NewReplacer(
	"&", "&amp;",
	"<", "&lt;",
	">", "&gt;",
	`"`, "&quot;",
	"'", "&apos;",
)

// BuildDIDLMetadata constructs the DIDL-Lite item document that accompanies
// SetAVTransportURI. Title and URL are always entity-escaped; protocolInfo is
// resolved from the device's own Sink declaration when possible.
func BuildDIDLMetadata(title, mediaURL, mimeType string, caps *types.Capabilities) string {
	protocolInfo := ResolveProtocolInfo(mimeType, caps)
	return `<DIDL-Lite xmlns="urn:schemas-upnp-org:metadata-1-0/DIDL-Lite/"` +
		` xmlns:dc="http://purl.org/dc/elements/1.1/"` +
		` xmlns:upnp="urn:schemas-upnp-org:metadata-1-0/upnp/">` +
		`<item id="0" parentID="-1" restricted="1">` +
		`<dc:title>` + didlEscaper.Replace(title) + `</dc:title>` +
		`<upnp:class>object.item.audioItem.audioBroadcast</upnp:class>` +
		`<res protocolInfo="` + didlEscaper.Replace(protocolInfo) + `">` +
		didlEscaper.Replace(mediaURL) + `</res>` +
		`</item></DIDL-Lite>`
}

// ResolveProtocolInfo picks the protocolInfo string for a MIME type: an exact
// entry from the device's declared Sink list when one matches (trying MIME
// aliases in preference order), otherwise a synthesized string with an
// inferred DLNA profile name.
func ResolveProtocolInfo(mimeType string, caps *types.Capabilities) string {
	family := mimeFamily(mimeType)

	if caps != nil && caps.RawProtocolInfo != "" && caps.RawProtocolInfo != "unknown" {
		entries := strings.Split(caps.RawProtocolInfo, ",")
		for _, alias := range aliasesFor(family, mimeType) {
			for _, entry := range entries {
				if strings.Contains(strings.ToLower(entry), ":"+alias+":") {
					return strings.TrimSpace(entry)
				}
			}
		}
	}

	profile, ok := dlnaProfiles[family]
	if !ok {
		profile = "MP3"
	}
	return fmt.Sprintf("http-get:*:%s:DLNA.ORG_PN=%s;%s", mimeType, profile, dlnaStreamingExtras)
}

func aliasesFor(family, mimeType string) []string {
	if aliases, ok := mimeAliases[family]; ok {
		return aliases
	}
	return []string{strings.ToLower(mimeType)}
}

func mimeFamily(mimeType string) string {
	mime := strings.ToLower(mimeType)
	switch {
	case strings.Contains(mime, "mpeg") || strings.Contains(mime, "mp3"):
		return "mp3"
	case strings.Contains(mime, "aac") || strings.Contains(mime, "mp4") ||
		strings.Contains(mime, "adts") || strings.Contains(mime, "m4a"):
		return "aac"
	case strings.Contains(mime, "flac"):
		return "flac"
	case strings.Contains(mime, "wav"):
		return "wav"
	case strings.Contains(mime, "ogg"):
		return "ogg"
	}
	return ""
}
