package dlna

import (
	"fmt"
	"time"

	"github.com/aosaki/dlnacast/tool"
	"github.com/aosaki/dlnacast/types"
)

const (
	defaultSOAPTimeout = 10 * time.Second
	// Devices may probe the target URI's reachability before acknowledging
	// SetAVTransportURI, so it deliberately gets a longer timeout than the
	// other actions.
	setURITimeout = 15 * time.Second

	// Some devices need a moment to prepare a new URI before accepting Play.
	playSettleDelay = 500 * time.Millisecond

	transportRetryDelay = 300 * time.Millisecond
)

// Client issues AVTransport and ConnectionManager actions against one device.
// All operations return false/nil sentinels on failure; the orchestrator
// decides what is fatal.
type Client struct {
	ControlURL           string
	ConnectionManagerURL string
	InstanceID           string
	Capabilities         *types.Capabilities
}

// NewClient builds a control client from a device record, falling back to the
// conventional control paths when the description did not resolve them.
func NewClient(device *types.Device) *Client {
	controlURL := device.ControlURL
	if controlURL == "" {
		controlURL = fmt.Sprintf("http://%s:%d/AVTransport/ctrl", device.IP, device.Port)
	}
	cmURL := device.ConnectionManagerURL
	if cmURL == "" {
		cmURL = fmt.Sprintf("http://%s:%d/ConnectionManager/ctrl", device.IP, device.Port)
	}
	return &Client{
		ControlURL:           controlURL,
		ConnectionManagerURL: cmURL,
		InstanceID:           "0",
		Capabilities:         device.Capabilities,
	}
}

func (c *Client) avTransportAction(action string, args []soapArg, timeout time.Duration) (string, bool) {
	all := append([]soapArg{{Name: "InstanceID", Value: c.InstanceID}}, args...)
	body, err := postSOAP(c.ControlURL, avTransportService, action, all, timeout)
	if err != nil {
		tool.DefaultLogger.Errorf("SOAP action %s failed: %v", action, err)
		return "", false
	}
	tool.DefaultLogger.Debugf("SOAP action %s succeeded", action)
	return body, true
}

// SetAVTransportURI points the device at a playback source. Metadata may be
// an empty string or a DIDL-Lite document; both URI and metadata are
// entity-escaped into the envelope.
func (c *Client) SetAVTransportURI(uri, metadata string) bool {
	tool.DefaultLogger.Infof("Setting AV transport URI to %s", uri)
	_, ok := c.avTransportAction("SetAVTransportURI", []soapArg{
		{Name: "CurrentURI", Value: uri, Escape: true},
		{Name: "CurrentURIMetaData", Value: metadata, Escape: true},
	}, setURITimeout)
	return ok
}

// Play starts playback. Success is an HTTP 200 from the device.
func (c *Client) Play(speed string) bool {
	if speed == "" {
		speed = "1"
	}
	tool.DefaultLogger.Info("Sending Play command")
	_, ok := c.avTransportAction("Play", []soapArg{{Name: "Speed", Value: speed}}, defaultSOAPTimeout)
	return ok
}

func (c *Client) Pause() bool {
	tool.DefaultLogger.Info("Sending Pause command")
	_, ok := c.avTransportAction("Pause", nil, defaultSOAPTimeout)
	return ok
}

func (c *Client) Stop() bool {
	tool.DefaultLogger.Info("Sending Stop command")
	_, ok := c.avTransportAction("Stop", nil, defaultSOAPTimeout)
	return ok
}

// StopIfPlaying stops the device only when it reports PLAYING or
// PAUSED_PLAYBACK. TRANSITIONING is excluded: some devices reject Stop
// mid-transition, so that state counts as already acceptable. Unknown state
// also returns true to avoid failing a playback attempt over a flaky query.
func (c *Client) StopIfPlaying() bool {
	info := c.GetTransportInfo(2)
	if info == nil {
		tool.DefaultLogger.Debug("Could not get transport info, skipping Stop command")
		return true
	}
	switch info.State {
	case "PLAYING", "PAUSED_PLAYBACK":
		tool.DefaultLogger.Infof("Device is %s, sending Stop command", info.State)
		return c.Stop()
	default:
		tool.DefaultLogger.Debugf("Device is %s, skipping Stop command", info.State)
		return true
	}
}

// GetTransportInfo queries the current transport state, retrying on empty or
// unparseable responses with a short fixed delay. Returns nil when the budget
// is exhausted ("unavailable").
func (c *Client) GetTransportInfo(retries int) *types.TransportInfo {
	for attempt := 0; attempt <= retries; attempt++ {
		if attempt > 0 {
			time.Sleep(transportRetryDelay)
		}
		body, ok := c.avTransportAction("GetTransportInfo", nil, defaultSOAPTimeout)
		if !ok || body == "" {
			tool.DefaultLogger.Debugf("GetTransportInfo attempt %d failed, retrying...", attempt+1)
			continue
		}

		state, stateErr := extractElementText(body, "CurrentTransportState")
		status, statusErr := extractElementText(body, "CurrentTransportStatus")
		if stateErr != nil || statusErr != nil {
			tool.DefaultLogger.Debugf("GetTransportInfo parse error on attempt %d, retrying...", attempt+1)
			continue
		}
		if state == "" {
			state = "UNKNOWN"
		}
		if status == "" {
			status = "UNKNOWN"
		}
		if attempt > 0 {
			tool.DefaultLogger.Debugf("GetTransportInfo succeeded on attempt %d", attempt+1)
		}
		return &types.TransportInfo{State: state, Status: status}
	}
	tool.DefaultLogger.Debugf("GetTransportInfo failed after %d attempts", retries+1)
	return nil
}

// PlayURL composes SetAVTransportURI and Play with a settle delay in between.
// Metadata is skipped when useMetadata is false, since some devices reject
// any CurrentURIMetaData at all.
func (c *Client) PlayURL(url, title, mimeType string, useMetadata bool) bool {
	metadata := ""
	if useMetadata {
		metadata = BuildDIDLMetadata(title, url, mimeType, c.Capabilities)
	}
	if !c.SetAVTransportURI(url, metadata) {
		return false
	}
	time.Sleep(playSettleDelay)
	return c.Play("1")
}
