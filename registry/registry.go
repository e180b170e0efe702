// Package registry persists the selected DLNA device and the discovery cache
// in a single JSON document. The file is the source of truth: every read
// re-loads it first, because independent workers may share the store and must
// observe each other's writes. Writes are atomic (write-temp-then-rename) so
// a concurrent reader never sees a partial document.
package registry

import (
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/bytedance/sonic"
	"github.com/google/renameio/v2"

	"github.com/aosaki/dlnacast/tool"
	"github.com/aosaki/dlnacast/types"
)

const stateFileName = "state.json"

type stateDocument struct {
	CurrentDevice *types.Device  `json:"current_device"`
	CachedDevices []types.Device `json:"cached_devices"`
	LastScanTime  int64          `json:"last_scan_time"` // unix seconds, 0 = no scan yet
}

type Registry struct {
	statePath string
	mu        sync.Mutex
	state     stateDocument
}

// New opens (or initializes) the registry under dataDir. A missing or corrupt
// state file starts empty and is never fatal.
func New(dataDir string) *Registry {
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		tool.DefaultLogger.Errorf("Failed to create data directory %s: %v", dataDir, err)
	}
	r := &Registry{statePath: filepath.Join(dataDir, stateFileName)}
	r.mu.Lock()
	r.reload()
	if r.state.CurrentDevice != nil {
		tool.DefaultLogger.Infof("Loaded saved device: %s", r.state.CurrentDevice.FriendlyName)
	}
	r.mu.Unlock()
	return r
}

// reload refreshes the in-memory snapshot from disk. Callers hold r.mu.
func (r *Registry) reload() {
	data, err := os.ReadFile(r.statePath)
	if err != nil {
		if !os.IsNotExist(err) {
			tool.DefaultLogger.Warnf("Failed to read state file: %v", err)
		}
		r.state = stateDocument{}
		return
	}
	var doc stateDocument
	if err := sonic.Unmarshal(data, &doc); err != nil {
		tool.DefaultLogger.Warnf("Failed to parse state file, starting empty: %v", err)
		r.state = stateDocument{}
		return
	}
	r.state = doc
}

// persist writes the snapshot atomically. Callers hold r.mu.
func (r *Registry) persist() error {
	data, err := sonic.MarshalIndent(r.state, "", "  ")
	if err != nil {
		return err
	}
	if err := renameio.WriteFile(r.statePath, data, 0o644); err != nil {
		tool.DefaultLogger.Errorf("Failed to save state file: %v", err)
		return err
	}
	return nil
}

// Select persists a device as the current selection. The previous selection
// stays intact when the write fails.
func (r *Registry) Select(device types.Device) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.reload()
	previous := r.state.CurrentDevice
	r.state.CurrentDevice = &device
	if err := r.persist(); err != nil {
		r.state.CurrentDevice = previous
		return err
	}
	tool.DefaultLogger.Infof("Selected device: %s", device.FriendlyName)
	return nil
}

// Clear removes the current selection.
func (r *Registry) Clear() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.reload()
	r.state.CurrentDevice = nil
	if err := r.persist(); err != nil {
		return err
	}
	tool.DefaultLogger.Info("Cleared selected device")
	return nil
}

func (r *Registry) HasDevice() bool {
	return r.Current() != nil
}

// Current returns a copy of the selected device, or nil.
func (r *Registry) Current() *types.Device {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.reload()
	if r.state.CurrentDevice == nil {
		return nil
	}
	device := *r.state.CurrentDevice
	return &device
}

// UpdateCache replaces the discovered-device cache wholesale and stamps the
// scan time.
func (r *Registry) UpdateCache(devices []types.Device) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.reload()
	r.state.CachedDevices = devices
	r.state.LastScanTime = time.Now().Unix()
	return r.persist()
}

// AppendToCache adds one device to the cache if its ID is not present yet.
// Used by the discovery callback to populate the cache incrementally while a
// scan is still running; it does not touch the scan timestamp.
func (r *Registry) AppendToCache(device types.Device) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.reload()
	for _, cached := range r.state.CachedDevices {
		if cached.ID == device.ID {
			return nil
		}
	}
	r.state.CachedDevices = append(r.state.CachedDevices, device)
	return r.persist()
}

func (r *Registry) Cached() []types.Device {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.reload()
	return append([]types.Device(nil), r.state.CachedDevices...)
}

// CacheAge returns the time since the last completed scan, or nil when no
// scan has completed yet.
func (r *Registry) CacheAge() *time.Duration {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.reload()
	if r.state.LastScanTime == 0 {
		return nil
	}
	age := time.Since(time.Unix(r.state.LastScanTime, 0))
	return &age
}

// FindInCache returns the cached device with the given IP, or nil.
func (r *Registry) FindInCache(ip string) *types.Device {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.reload()
	for _, cached := range r.state.CachedDevices {
		if cached.IP == ip {
			device := cached
			return &device
		}
	}
	return nil
}
