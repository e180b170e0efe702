package controllers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/aosaki/dlnacast/player"
	"github.com/aosaki/dlnacast/registry"
	"github.com/aosaki/dlnacast/streamcache"
	"github.com/aosaki/dlnacast/tool"
	"github.com/aosaki/dlnacast/types"
)

// setupRouter builds a test router over an orchestrator with isolated state.
// The returned registry allows tests to seed the device cache without
// touching the network.
func setupRouter(t *testing.T) (*gin.Engine, *registry.Registry) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	dir := t.TempDir()
	tool.CurrentConfig = types.AppConfig{
		Timeouts: types.TimeoutConfig{HTTPRequest: 2, StreamDetection: 2, DeviceDiscovery: 1, FFmpegStartup: 2},
		Cache:    types.CacheConfig{DataDir: dir, StreamTTL: 3600},
	}

	reg := registry.New(dir)
	cache := streamcache.New(dir, time.Hour)
	orchestrator := player.New(tool.GetCurrentConfig(), reg, cache, nil)

	statusCtrl := NewStatusController(orchestrator)
	deviceCtrl := NewDeviceController(orchestrator)
	playbackCtrl := NewPlaybackController(orchestrator)
	streamCtrl := NewStreamController(orchestrator)

	router := gin.New()
	router.GET("/health", statusCtrl.HandleHealth)
	router.GET("/devices", deviceCtrl.HandleList)
	router.POST("/devices/select", deviceCtrl.HandleSelect)
	router.GET("/devices/current", deviceCtrl.HandleCurrent)
	router.POST("/play", playbackCtrl.HandlePlay)
	router.POST("/stop", playbackCtrl.HandleStop)
	router.GET("/status", playbackCtrl.HandleStatus)
	router.GET("/streams/cached", streamCtrl.HandleCached)
	return router, reg
}

func doRequest(router *gin.Engine, method, path string) *httptest.ResponseRecorder {
	req, _ := http.NewRequest(method, path, nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestHealthShape(t *testing.T) {
	router, _ := setupRouter(t)

	w := doRequest(router, "GET", "/health")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var body map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if body["status"] != "ok" {
		t.Errorf("status field = %v", body["status"])
	}
	if body["streaming"] != false {
		t.Errorf("streaming field = %v", body["streaming"])
	}
}

func TestDeviceListRejectsBadForceScan(t *testing.T) {
	router, _ := setupRouter(t)

	for _, value := range []string{"TRUE", "1", "yes", "False"} {
		w := doRequest(router, "GET", "/devices?force_scan="+value)
		if w.Code != http.StatusBadRequest {
			t.Errorf("force_scan=%s: status = %d, want 400", value, w.Code)
		}
	}
}

func TestDeviceListRejectsBadTimeout(t *testing.T) {
	router, _ := setupRouter(t)

	for _, value := range []string{"0", "16", "-1", "abc", "1.5"} {
		w := doRequest(router, "GET", "/devices?force_scan=false&timeout="+value)
		if w.Code != http.StatusBadRequest {
			t.Errorf("timeout=%s: status = %d, want 400", value, w.Code)
		}
	}
}

func TestDeviceListServesFromCache(t *testing.T) {
	router, reg := setupRouter(t)

	device := types.Device{ID: "dev-1", FriendlyName: "Speaker", IP: "192.168.1.50", Port: 49152}
	if err := reg.UpdateCache([]types.Device{device}); err != nil {
		t.Fatal(err)
	}

	w := doRequest(router, "GET", "/devices?force_scan=false")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	var body struct {
		Devices         []types.DeviceSummary `json:"devices"`
		Count           int                   `json:"count"`
		CacheAgeSeconds *float64              `json:"cache_age_seconds"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if body.Count != 1 || len(body.Devices) != 1 {
		t.Errorf("count = %d, devices = %d", body.Count, len(body.Devices))
	}
	if body.CacheAgeSeconds == nil {
		t.Error("cache_age_seconds must be set after a cache update")
	}
}

func TestSelectRejectsBadIP(t *testing.T) {
	router, _ := setupRouter(t)

	for _, ip := range []string{"", "not-an-ip", "256.1.1.1", "1.2.3", "192.168.1.50;id"} {
		w := doRequest(router, "POST", "/devices/select?ip="+ip)
		if w.Code != http.StatusBadRequest {
			t.Errorf("ip=%q: status = %d, want 400", ip, w.Code)
		}
	}
}

func TestCurrentDeviceNullWhenUnselected(t *testing.T) {
	router, _ := setupRouter(t)

	w := doRequest(router, "GET", "/devices/current")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var body map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if body["device"] != nil {
		t.Errorf("device = %v, want null", body["device"])
	}
}

func TestPlayRejectsBadStreamURL(t *testing.T) {
	router, _ := setupRouter(t)

	urls := []string{
		"",
		"ftp%3A%2F%2Fhost%2Fstream",
		"http%3A%2F%2Flocalhost%2Fstream",
		"http%3A%2F%2F169.254.169.254%2Fmeta",
	}
	for _, u := range urls {
		w := doRequest(router, "POST", "/play?streamUrl="+u)
		if w.Code != http.StatusBadRequest {
			t.Errorf("streamUrl=%q: status = %d, want 400", u, w.Code)
		}
	}
}

func TestPlayWithoutDeviceFails(t *testing.T) {
	router, _ := setupRouter(t)

	w := doRequest(router, "POST", "/play?streamUrl=http%3A%2F%2Fradio.example.invalid%2Fstream")
	if w.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", w.Code)
	}
	var body map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if body["error"] != "no device selected" {
		t.Errorf("error = %v", body["error"])
	}
}

func TestStatusShape(t *testing.T) {
	router, _ := setupRouter(t)

	w := doRequest(router, "GET", "/status")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var body map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if body["streaming"] != false {
		t.Errorf("streaming = %v", body["streaming"])
	}
	if body["dlna"] != nil {
		t.Errorf("dlna = %v, want null", body["dlna"])
	}
	if body["current_device"] != nil {
		t.Errorf("current_device = %v, want null", body["current_device"])
	}
}

func TestStopIsAlwaysSafe(t *testing.T) {
	router, _ := setupRouter(t)

	w := doRequest(router, "POST", "/stop")
	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want 200 even with no session", w.Code)
	}
}

func TestCachedStreamsEmpty(t *testing.T) {
	router, _ := setupRouter(t)

	w := doRequest(router, "GET", "/streams/cached")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var body struct {
		Count int `json:"count"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if body.Count != 0 {
		t.Errorf("count = %d, want 0", body.Count)
	}
}
