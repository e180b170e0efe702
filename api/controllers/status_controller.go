package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/aosaki/dlnacast/player"
)

// StatusController serves the liveness endpoint.
type StatusController struct {
	player *player.Orchestrator
}

func NewStatusController(p *player.Orchestrator) *StatusController {
	return &StatusController{player: p}
}

// HandleHealth reports liveness plus whether a streaming session is active.
// GET /health
func (ctrl *StatusController) HandleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "ok",
		"streaming": ctrl.player.Streaming(),
	})
}
