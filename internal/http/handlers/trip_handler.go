// README: Trip handlers exposing in-flight trips and recent completions.
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"ridesim/internal/modules/dispatch"
)

const defaultHistoryLimit = 20

type TripHandler struct {
	dispatch *dispatch.Service
}

func NewTripHandler(svc *dispatch.Service) *TripHandler {
	return &TripHandler{dispatch: svc}
}

func (h *TripHandler) Active(c *gin.Context) {
	trips := h.dispatch.ActiveTrips()
	writeJSON(c, http.StatusOK, gin.H{"count": len(trips), "trips": trips})
}

func (h *TripHandler) History(c *gin.Context) {
	trips := h.dispatch.History(queryInt(c, "limit", defaultHistoryLimit))
	writeJSON(c, http.StatusOK, gin.H{"count": len(trips), "trips": trips})
}
