package types

// Event types pushed over the /events/ws websocket.
const (
	NotifyTypeDeviceDiscovered = "device_discovered"
	NotifyTypeDeviceSelected   = "device_selected"
	NotifyTypePlaybackStarted  = "playback_started"
	NotifyTypePlaybackStopped  = "playback_stopped"
	NotifyTypeStreamerCrashed  = "streamer_crashed"
)

// Notification is the JSON payload broadcast to event subscribers.
type Notification struct {
	Type    string         `json:"type"`
	Title   string         `json:"title"`
	Message string         `json:"message"`
	Data    map[string]any `json:"data,omitempty"`
}
