package http

import (
	nethttp "net/http"

	"github.com/gin-gonic/gin"
)

type HealthResponse struct {
	Status   string `json:"status"`
	Sessions int    `json:"sessions"`
}

func (h *relayHandler) health(c *gin.Context) {
	c.JSON(nethttp.StatusOK, HealthResponse{
		Status:   "ok",
		Sessions: h.deps.Registry.Count(),
	})
}
