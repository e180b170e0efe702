package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/aosaki/dlnacast/player"
	"github.com/aosaki/dlnacast/tool"
)

// PlaybackController serves the play/stop/status endpoints.
type PlaybackController struct {
	player *player.Orchestrator
}

func NewPlaybackController(p *player.Orchestrator) *PlaybackController {
	return &PlaybackController{player: p}
}

// HandlePlay runs the full playback orchestration for a stream URL, falling
// back to the configured default stream when none is given.
// POST /play?streamUrl=<url>
func (ctrl *PlaybackController) HandlePlay(c *gin.Context) {
	streamURL := c.Query("streamUrl")
	if streamURL == "" {
		streamURL = tool.GetCurrentConfig().Radio.DefaultURL
	}
	if !tool.ValidateStreamURL(streamURL) {
		c.JSON(http.StatusBadRequest, tool.FastReturnError("streamUrl must be a valid http(s) URL with a public host"))
		return
	}

	result, err := ctrl.player.Play(streamURL)
	if err != nil {
		c.JSON(http.StatusInternalServerError, tool.FastReturnError(err.Error()))
		return
	}
	c.JSON(http.StatusOK, tool.FastReturnSuccessWithData(result))
}

// HandleStop force-stops device playback and tears down the session.
// POST /stop
func (ctrl *PlaybackController) HandleStop(c *gin.Context) {
	ctrl.player.Stop()
	c.JSON(http.StatusOK, tool.FastReturnMessage("Playback stopped"))
}

// HandleStatus reports session and transport state.
// GET /status
func (ctrl *PlaybackController) HandleStatus(c *gin.Context) {
	response := gin.H{
		"streaming":      ctrl.player.Streaming(),
		"dlna":           nil,
		"current_device": nil,
	}
	if info := ctrl.player.TransportInfo(); info != nil {
		response["dlna"] = info
	}
	if device := ctrl.player.CurrentDevice(); device != nil {
		response["current_device"] = device.Summary()
	}
	c.JSON(http.StatusOK, response)
}
