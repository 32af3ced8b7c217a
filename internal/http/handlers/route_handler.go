// README: Route cache inspection handlers.
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"ridesim/internal/modules/route"
)

type RouteHandler struct {
	routes *route.Generator
}

func NewRouteHandler(gen *route.Generator) *RouteHandler {
	return &RouteHandler{routes: gen}
}

func (h *RouteHandler) CacheStats(c *gin.Context) {
	writeJSON(c, http.StatusOK, h.routes.CacheStats())
}

func (h *RouteHandler) ClearCache(c *gin.Context) {
	h.routes.ClearCache()
	c.Status(http.StatusNoContent)
}
