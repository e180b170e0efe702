// Package player owns the playback state machine: it resolves the selected
// device, detects the source format, decides between passthrough and
// transcoding, runs the streaming session and drives the renderer.
package player

import (
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/aosaki/dlnacast/discovery"
	"github.com/aosaki/dlnacast/dlna"
	"github.com/aosaki/dlnacast/registry"
	"github.com/aosaki/dlnacast/streamcache"
	"github.com/aosaki/dlnacast/streamer"
	"github.com/aosaki/dlnacast/tool"
	"github.com/aosaki/dlnacast/types"
)

// Notifier receives loss-tolerant event broadcasts. Implemented by the
// websocket hub; a nil-safe no-op is used when events are disabled.
type Notifier interface {
	Broadcast(notification types.Notification)
}

type noopNotifier struct{}

func (noopNotifier) Broadcast(types.Notification) {}

type session struct {
	streamer    streamer.Streamer
	transcoding bool
	format      string
	sourceURL   string
	playbackURL string
}

// Orchestrator serializes playback sessions: at most one streaming session
// exists at a time, and starting a new one is strictly ordered after fully
// stopping the previous one because the relay port is fixed and exclusive.
type Orchestrator struct {
	cfg      *types.AppConfig
	registry *registry.Registry
	cache    *streamcache.Cache
	events   Notifier

	mu      sync.Mutex
	current *session
}

func New(cfg *types.AppConfig, reg *registry.Registry, cache *streamcache.Cache, events Notifier) *Orchestrator {
	if events == nil {
		events = noopNotifier{}
	}
	return &Orchestrator{cfg: cfg, registry: reg, cache: cache, events: events}
}

// NeedsTranscoding decides the delivery strategy. Transcoding is the safe
// default: it is chosen whenever the format is unknown or unsupported, and
// also for HTTPS sources the device could otherwise play natively, because
// many renderers cannot negotiate TLS.
func NeedsTranscoding(mimeType string, caps *types.Capabilities, sourceURL string) bool {
	if mimeType == "" {
		return true
	}
	if !dlna.FormatSupported(mimeType, caps) {
		return true
	}
	return strings.HasPrefix(strings.ToLower(sourceURL), "https://")
}

// Play runs the full playback flow for one source URL and reports the final
// session state. Any failure after the streamer started tears the session
// down before the error surfaces, so no orphaned transcoder is left behind.
func (o *Orchestrator) Play(sourceURL string) (*types.PlayResult, error) {
	device := o.registry.Current()
	if device == nil {
		return nil, errors.New("no device selected")
	}

	o.mu.Lock()
	defer o.mu.Unlock()

	o.stopSessionLocked()

	client := dlna.NewClient(device)
	if !client.StopIfPlaying() {
		tool.DefaultLogger.Warn("Could not stop current playback, continuing anyway")
	}

	mimeType := o.DetectStreamFormat(sourceURL)

	caps := device.Capabilities
	if caps == nil {
		caps = client.DetectCapabilities()
	}
	transcoding := NeedsTranscoding(mimeType, caps, sourceURL)
	tool.DefaultLogger.Infof("Playback decision: format=%s transcoding=%t", formatLabel(mimeType), transcoding)

	var active streamer.Streamer
	var playbackURL string
	if transcoding {
		audio := streamer.NewAudioStreamer(streamer.Options{
			SourceURL:         sourceURL,
			Port:              o.cfg.Streaming.Port,
			Bitrate:           o.cfg.Streaming.MP3Bitrate,
			ChunkSize:         o.cfg.FFmpeg.ChunkSize,
			MaxStderrLines:    o.cfg.FFmpeg.MaxStderrLines,
			ProtocolWhitelist: o.cfg.FFmpeg.ProtocolWhitelist,
			DataDir:           o.cfg.Cache.DataDir,
			OnCrash:           o.onStreamerCrash,
		})
		if err := audio.Start(); err != nil {
			return nil, err
		}
		startupTimeout := time.Duration(o.cfg.Timeouts.FFmpegStartup) * time.Second
		if !audio.WaitUntilReady(startupTimeout) {
			audio.Stop()
			return nil, errors.New("streaming server failed to start")
		}
		active = audio
		playbackURL = o.playbackURL(audio)
	} else {
		passthrough := streamer.NewPassthroughStreamer(sourceURL)
		if err := passthrough.Start(); err != nil {
			return nil, err
		}
		active = passthrough
		playbackURL = sourceURL
	}

	deviceMime := mimeType
	if transcoding {
		deviceMime = "audio/mpeg"
	}
	if !client.PlayURL(playbackURL, "Radio Stream", deviceMime, true) {
		active.Stop()
		return nil, errors.New("failed to start playback on device")
	}

	o.current = &session{
		streamer:    active,
		transcoding: transcoding,
		format:      formatLabel(mimeType),
		sourceURL:   sourceURL,
		playbackURL: playbackURL,
	}
	o.events.Broadcast(types.Notification{
		Type:    types.NotifyTypePlaybackStarted,
		Title:   "Playback started",
		Message: device.FriendlyName,
		Data:    map[string]any{"stream_url": sourceURL, "transcoding": transcoding},
	})

	return &types.PlayResult{
		StreamURL:   sourceURL,
		PlaybackURL: playbackURL,
		Transcoding: transcoding,
		Format:      formatLabel(mimeType),
	}, nil
}

// playbackURL builds the URL the renderer pulls from: the configured public
// base when set (reverse-proxy or NAT deployments), else the auto-detected
// outbound IP.
func (o *Orchestrator) playbackURL(audio *streamer.AudioStreamer) string {
	if base := o.cfg.Streaming.PublicURL; base != "" {
		return strings.TrimSuffix(base, "/") + "/stream.mp3"
	}
	return audio.StreamURL(tool.GetLocalIP())
}

// Stop force-stops device playback (best effort) and tears down the active
// session. Device errors are swallowed: teardown must always complete.
func (o *Orchestrator) Stop() {
	if device := o.registry.Current(); device != nil {
		client := dlna.NewClient(device)
		if !client.Stop() {
			tool.DefaultLogger.Warn("Device Stop command failed, continuing teardown")
		}
	}

	o.mu.Lock()
	stopped := o.current != nil
	o.stopSessionLocked()
	o.mu.Unlock()

	if stopped {
		o.events.Broadcast(types.Notification{
			Type:  types.NotifyTypePlaybackStopped,
			Title: "Playback stopped",
		})
	}
}

// stopSessionLocked tears down the active session. Callers hold o.mu.
func (o *Orchestrator) stopSessionLocked() {
	if o.current == nil {
		return
	}
	tool.DefaultLogger.Info("Stopping active streaming session")
	o.current.streamer.Stop()
	o.current = nil
}

func (o *Orchestrator) onStreamerCrash(stderrTail []string) {
	o.events.Broadcast(types.Notification{
		Type:    types.NotifyTypeStreamerCrashed,
		Title:   "Transcoder crashed",
		Message: "ffmpeg exited unexpectedly",
		Data:    map[string]any{"stderr": stderrTail},
	})
}

// Streaming reports whether a session is live. A crashed session is cleaned
// up here, so /status and /health observe crashes promptly.
func (o *Orchestrator) Streaming() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.current == nil {
		return false
	}
	if !o.current.streamer.IsRunning() {
		o.current = nil
		return false
	}
	return true
}

// TransportInfo queries the selected device's transport state, or nil when no
// device is selected or the device does not answer.
func (o *Orchestrator) TransportInfo() *types.TransportInfo {
	device := o.registry.Current()
	if device == nil {
		return nil
	}
	return dlna.NewClient(device).GetTransportInfo(2)
}

// Devices returns the renderer list, running a fresh SSDP scan when forced or
// when no scan has completed yet. Discovered devices flow into the registry
// cache incrementally through the per-device callback.
func (o *Orchestrator) Devices(forceScan bool, timeout time.Duration) ([]types.DeviceSummary, *float64) {
	if forceScan || o.registry.CacheAge() == nil {
		devices := discovery.Discover(timeout, o.onDeviceDiscovered)
		if err := o.registry.UpdateCache(devices); err != nil {
			tool.DefaultLogger.Warnf("Failed to update device cache: %v", err)
		}
	}

	cached := o.registry.Cached()
	summaries := make([]types.DeviceSummary, 0, len(cached))
	for i := range cached {
		summaries = append(summaries, cached[i].Summary())
	}

	var cacheAge *float64
	if age := o.registry.CacheAge(); age != nil {
		seconds := age.Seconds()
		cacheAge = &seconds
	}
	return summaries, cacheAge
}

func (o *Orchestrator) onDeviceDiscovered(device types.Device) {
	if err := o.registry.AppendToCache(device); err != nil {
		tool.DefaultLogger.Warnf("Failed to cache discovered device: %v", err)
	}
	o.events.Broadcast(types.Notification{
		Type:    types.NotifyTypeDeviceDiscovered,
		Title:   "Device discovered",
		Message: device.FriendlyName,
		Data:    map[string]any{"device": device.Summary()},
	})
}

// SelectDevice resolves a device by IP (discovery cache first, direct
// connection probe second), detects its capabilities and persists the
// selection.
func (o *Orchestrator) SelectDevice(ip string) (*types.Device, error) {
	device := o.registry.FindInCache(ip)
	if device == nil {
		timeout := time.Duration(o.cfg.Timeouts.HTTPRequest) * time.Second
		device = discovery.TryDirectConnection(ip, timeout)
	}
	if device == nil {
		return nil, errors.New("no DLNA device found at " + ip)
	}

	client := dlna.NewClient(device)
	device.Capabilities = client.DetectCapabilities()

	if err := o.registry.Select(*device); err != nil {
		return nil, err
	}
	o.events.Broadcast(types.Notification{
		Type:    types.NotifyTypeDeviceSelected,
		Title:   "Device selected",
		Message: device.FriendlyName,
		Data:    map[string]any{"device": device.Summary()},
	})
	return device, nil
}

// CurrentDevice returns the persisted selection, or nil.
func (o *Orchestrator) CurrentDevice() *types.Device {
	return o.registry.Current()
}

// CachedStreams exposes the format cache for diagnostics.
func (o *Orchestrator) CachedStreams() map[string]types.StreamFormatEntry {
	return o.cache.Entries()
}

// RunStartupTasks launches the background warm-up work: restoring or
// auto-selecting a device, an initial discovery scan and pre-caching the
// default stream's format. Everything runs on goroutines and is non-fatal.
func (o *Orchestrator) RunStartupTasks() {
	if device := o.registry.Current(); device != nil {
		tool.DefaultLogger.Infof("Restored device from previous session: %s", device.FriendlyName)
	} else if ip := o.cfg.DLNA.DefaultDeviceIP; ip != "" {
		go func() {
			tool.DefaultLogger.Infof("Auto-selecting default device %s", ip)
			if _, err := o.SelectDevice(ip); err != nil {
				tool.DefaultLogger.Warnf("Default device auto-select failed: %v", err)
			}
		}()
	}

	go func() {
		timeout := time.Duration(o.cfg.Timeouts.DeviceDiscovery) * time.Second
		devices, _ := o.Devices(true, timeout)
		tool.DefaultLogger.Infof("Background discovery scan found %d device(s)", len(devices))
	}()

	if url := o.cfg.Radio.DefaultURL; url != "" {
		go func() {
			if mime := o.DetectStreamFormat(url); mime != "" {
				tool.DefaultLogger.Infof("Pre-cached default stream format: %s", mime)
			}
		}()
	}
}

func formatLabel(mimeType string) string {
	if mimeType == "" {
		return "unknown"
	}
	return mimeType
}
