package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/aosaki/dlnacast/player"
)

// StreamController exposes the stream format cache for diagnostics.
type StreamController struct {
	player *player.Orchestrator
}

func NewStreamController(p *player.Orchestrator) *StreamController {
	return &StreamController{player: p}
}

// HandleCached dumps the live entries of the stream format cache.
// GET /streams/cached
func (ctrl *StreamController) HandleCached(c *gin.Context) {
	entries := ctrl.player.CachedStreams()
	c.JSON(http.StatusOK, gin.H{
		"streams": entries,
		"count":   len(entries),
	})
}
