package types

// Capabilities records which audio formats a renderer declared via
// ConnectionManager GetProtocolInfo. RawProtocolInfo keeps the verbatim Sink
// list so DIDL metadata can reuse the device's own protocolInfo strings.
// A failed probe yields all-false flags and RawProtocolInfo "unknown";
// callers must treat that as "assume transcoding needed", not "unsupported".
type Capabilities struct {
	SupportsMP3     bool   `json:"supports_mp3"`
	SupportsAAC     bool   `json:"supports_aac"`
	SupportsFLAC    bool   `json:"supports_flac"`
	SupportsWAV     bool   `json:"supports_wav"`
	SupportsOGG     bool   `json:"supports_ogg"`
	RawProtocolInfo string `json:"raw_protocol_info"`
}

// Device is a DLNA MediaRenderer discovered on the network or restored from
// the state file. Capabilities stays nil until a GetProtocolInfo probe ran.
type Device struct {
	ID                   string        `json:"id"`
	FriendlyName         string        `json:"friendly_name"`
	Manufacturer         string        `json:"manufacturer"`
	ModelName            string        `json:"model_name"`
	IP                   string        `json:"ip"`
	Port                 int           `json:"port"`
	Location             string        `json:"location"`
	ControlURL           string        `json:"control_url"`
	ConnectionManagerURL string        `json:"connection_manager_url"`
	UDN                  string        `json:"udn"`
	Capabilities         *Capabilities `json:"capabilities,omitempty"`
}

// DeviceSummary is the public shape returned by the device endpoints.
type DeviceSummary struct {
	ID           string        `json:"id"`
	FriendlyName string        `json:"friendly_name"`
	Manufacturer string        `json:"manufacturer"`
	ModelName    string        `json:"model_name"`
	IP           string        `json:"ip"`
	Capabilities *Capabilities `json:"capabilities,omitempty"`
}

// Summary trims a device down to its public fields.
func (d *Device) Summary() DeviceSummary {
	return DeviceSummary{
		ID:           d.ID,
		FriendlyName: d.FriendlyName,
		Manufacturer: d.Manufacturer,
		ModelName:    d.ModelName,
		IP:           d.IP,
		Capabilities: d.Capabilities,
	}
}

// TransportInfo is the parsed result of an AVTransport GetTransportInfo call.
type TransportInfo struct {
	State  string `json:"state"`
	Status string `json:"status"`
}
