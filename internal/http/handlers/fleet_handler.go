// README: Fleet handlers for nearby queries and the simulator's debug controls.
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"ridesim/internal/geo"
	"ridesim/internal/modules/fleet"
	"ridesim/internal/types"
)

type FleetHandler struct {
	fleet        *fleet.Registry
	nearbyRadius float64
}

func NewFleetHandler(reg *fleet.Registry, nearbyRadius float64) *FleetHandler {
	return &FleetHandler{fleet: reg, nearbyRadius: nearbyRadius}
}

func (h *FleetHandler) Nearby(c *gin.Context) {
	lat, err := queryFloat(c, "lat")
	if err != nil {
		writeError(c, http.StatusBadRequest, err.Error())
		return
	}
	lng, err := queryFloat(c, "lng")
	if err != nil {
		writeError(c, http.StatusBadRequest, err.Error())
		return
	}
	if !geo.ValidPoint(types.Point{Lat: lat, Lng: lng}) {
		writeError(c, http.StatusBadRequest, fleet.ErrInvalidPoint.Error())
		return
	}
	radius := h.nearbyRadius
	if c.Query("radius") != "" {
		r, err := queryFloat(c, "radius")
		if err != nil || r <= 0 {
			writeError(c, http.StatusBadRequest, "invalid radius")
			return
		}
		radius = r
	}
	writeJSON(c, http.StatusOK, gin.H{"locations": h.fleet.NearbyVehicles(lat, lng, radius)})
}

func (h *FleetHandler) Status(c *gin.Context) {
	writeJSON(c, http.StatusOK, h.fleet.Status())
}

type addCabRequest struct {
	Lat       *float64      `json:"lat" binding:"required"`
	Lng       *float64      `json:"lng" binding:"required"`
	Heading   *float64      `json:"heading"`
	Speed     *float64      `json:"speed"`
	Available *bool         `json:"available"`
	Pattern   fleet.Pattern `json:"pattern"`
}

func (h *FleetHandler) Add(c *gin.Context) {
	var req addCabRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "lat and lng are required")
		return
	}
	if req.Pattern != "" && !req.Pattern.Valid() {
		writeError(c, http.StatusBadRequest, "unknown movement pattern")
		return
	}
	id, err := h.fleet.Add(types.Point{Lat: *req.Lat, Lng: *req.Lng}, fleet.AddOptions{
		Heading:   req.Heading,
		Speed:     req.Speed,
		Available: req.Available,
		Pattern:   req.Pattern,
	})
	if err != nil {
		writeFleetError(c, err)
		return
	}
	writeJSON(c, http.StatusCreated, gin.H{"id": id})
}

func (h *FleetHandler) Remove(c *gin.Context) {
	if err := h.fleet.Remove(types.ID(c.Param("id"))); err != nil {
		writeFleetError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *FleetHandler) Reset(c *gin.Context) {
	h.fleet.ResetAvailability()
	writeJSON(c, http.StatusOK, h.fleet.Status())
}
