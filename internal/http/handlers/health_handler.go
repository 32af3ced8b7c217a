// README: Health handler.
package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"ridesim/internal/modules/dispatch"
)

type HealthHandler struct {
	dispatch *dispatch.Service
}

func NewHealthHandler(svc *dispatch.Service) *HealthHandler {
	return &HealthHandler{dispatch: svc}
}

func (h *HealthHandler) Get(c *gin.Context) {
	writeJSON(c, http.StatusOK, gin.H{
		"status":           "healthy",
		"timestamp":        time.Now().UTC().Format(time.RFC3339),
		"connectedClients": h.dispatch.ConnectedSessions(),
		"activeTrips":      len(h.dispatch.ActiveTrips()),
	})
}
