package dlna

import (
	"strings"
	"testing"

	"github.com/aosaki/dlnacast/types"
)

func TestBuildDIDLMetadataEscaping(t *testing.T) {
	didl := BuildDIDLMetadata(`Rock & Roll <"Live">`, "http://radio.example.com/a?b=1&c=2", "audio/mpeg", nil)

	if strings.Contains(didl, `Rock & Roll`) {
		t.Error("title ampersand not escaped")
	}
	for _, want := range []string{"&amp;", "&lt;", "&gt;", "&quot;"} {
		if !strings.Contains(didl, want) {
			t.Errorf("escaped entity %s missing from DIDL", want)
		}
	}
	if !strings.Contains(didl, "http://radio.example.com/a?b=1&amp;c=2") {
		t.Error("URL ampersand not escaped")
	}
	if !strings.Contains(didl, "object.item.audioItem.audioBroadcast") {
		t.Error("upnp:class missing")
	}
	if !strings.Contains(didl, `<item id="0" parentID="-1" restricted="1">`) {
		t.Error("item attributes missing")
	}
}

func TestResolveProtocolInfoExactMatch(t *testing.T) {
	caps := &types.Capabilities{
		RawProtocolInfo: "http-get:*:audio/mpeg:DLNA.ORG_PN=MP3;DLNA.ORG_OP=01,http-get:*:audio/flac:*",
	}
	got := ResolveProtocolInfo("audio/mpeg", caps)
	if got != "http-get:*:audio/mpeg:DLNA.ORG_PN=MP3;DLNA.ORG_OP=01" {
		t.Errorf("expected the device's own protocolInfo entry, got %q", got)
	}
}

func TestResolveProtocolInfoAACPrefersMP4(t *testing.T) {
	caps := &types.Capabilities{
		RawProtocolInfo: "http-get:*:audio/aac:*,http-get:*:audio/mp4:DLNA.ORG_PN=AAC_ISO",
	}
	got := ResolveProtocolInfo("audio/aac", caps)
	if !strings.Contains(got, "audio/mp4") {
		t.Errorf("AAC resolution should prefer the audio/mp4 entry, got %q", got)
	}
}

func TestResolveProtocolInfoSynthesized(t *testing.T) {
	got := ResolveProtocolInfo("audio/flac", nil)
	want := "http-get:*:audio/flac:DLNA.ORG_PN=FLAC;DLNA.ORG_OP=01;DLNA.ORG_CI=0;DLNA.ORG_FLAGS=01700000000000000000000000000000"
	if got != want {
		t.Errorf("synthesized protocolInfo = %q, want %q", got, want)
	}
}

func TestResolveProtocolInfoUnknownFamilyDefaultsToMP3Profile(t *testing.T) {
	got := ResolveProtocolInfo("audio/weird", &types.Capabilities{RawProtocolInfo: "unknown"})
	if !strings.Contains(got, "DLNA.ORG_PN=MP3") {
		t.Errorf("unknown family should fall back to the MP3 profile, got %q", got)
	}
}
