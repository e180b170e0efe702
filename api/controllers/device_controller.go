package controllers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/aosaki/dlnacast/player"
	"github.com/aosaki/dlnacast/tool"
)

const (
	minScanTimeout = 1
	maxScanTimeout = 15
)

// DeviceController serves discovery and device-selection endpoints.
type DeviceController struct {
	player *player.Orchestrator
}

func NewDeviceController(p *player.Orchestrator) *DeviceController {
	return &DeviceController{player: p}
}

// HandleList returns the known renderers, optionally forcing a fresh scan.
// GET /devices?force_scan={true|false}&timeout=<1-15>
func (ctrl *DeviceController) HandleList(c *gin.Context) {
	forceScanParam := c.DefaultQuery("force_scan", "false")
	if !tool.ValidateBooleanString(forceScanParam) {
		c.JSON(http.StatusBadRequest, tool.FastReturnError("force_scan must be 'true' or 'false'"))
		return
	}
	forceScan := forceScanParam == "true"

	timeoutSeconds := tool.GetCurrentConfig().Timeouts.DeviceDiscovery
	if timeoutParam := c.Query("timeout"); timeoutParam != "" {
		parsed, err := strconv.Atoi(timeoutParam)
		if err != nil || parsed < minScanTimeout || parsed > maxScanTimeout {
			c.JSON(http.StatusBadRequest, tool.FastReturnError("timeout must be an integer between 1 and 15 seconds"))
			return
		}
		timeoutSeconds = parsed
	}

	devices, cacheAge := ctrl.player.Devices(forceScan, time.Duration(timeoutSeconds)*time.Second)
	c.JSON(http.StatusOK, gin.H{
		"devices":           devices,
		"count":             len(devices),
		"cache_age_seconds": cacheAge,
	})
}

// HandleSelect probes and selects the renderer at the given IP.
// POST /devices/select?ip=<IPv4>
func (ctrl *DeviceController) HandleSelect(c *gin.Context) {
	ip := c.Query("ip")
	if !tool.ValidateIPAddress(ip) {
		c.JSON(http.StatusBadRequest, tool.FastReturnError("ip must be a valid IPv4 address"))
		return
	}

	device, err := ctrl.player.SelectDevice(ip)
	if err != nil {
		c.JSON(http.StatusNotFound, tool.FastReturnError(err.Error()))
		return
	}
	c.JSON(http.StatusOK, tool.FastReturnSuccessWithData(device.Summary()))
}

// HandleCurrent returns the selected renderer, or null.
// GET /devices/current
func (ctrl *DeviceController) HandleCurrent(c *gin.Context) {
	device := ctrl.player.CurrentDevice()
	if device == nil {
		c.JSON(http.StatusOK, gin.H{"device": nil})
		return
	}
	c.JSON(http.StatusOK, gin.H{"device": device.Summary()})
}
