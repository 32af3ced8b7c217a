// README: User handlers echoing the verified token back to the caller.
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"ridesim/internal/http/middleware"
)

type UserHandler struct{}

func NewUserHandler() *UserHandler {
	return &UserHandler{}
}

func (h *UserHandler) Profile(c *gin.Context) {
	email, _ := middleware.CallerClaims(c)["email"].(string)
	writeJSON(c, http.StatusOK, gin.H{
		"userId": middleware.CallerUID(c),
		"email":  email,
		"role":   middleware.CallerRole(c),
	})
}

func (h *UserHandler) Validate(c *gin.Context) {
	writeJSON(c, http.StatusOK, gin.H{"valid": true, "user": middleware.CallerClaims(c)})
}
