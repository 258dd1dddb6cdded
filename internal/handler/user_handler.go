package handler

import (
	"net/http"

	"gamelobby/coordinator/internal/models"

	"github.com/gin-gonic/gin"
)

// UserResponse is the authenticated user's own record.
type UserResponse struct {
	UID             string  `json:"uid"`
	DisplayName     string  `json:"display_name"`
	CurrentGameCode *string `json:"current_game_code,omitempty"`
}

// GetMe godoc
// @Summary      Get own user record
// @Tags         users
// @Produce      json
// @Security     BearerAuth
// @Success      200 {object} UserResponse
// @Failure      404 {object} ErrorResponse "User not found"
// @Router       /users/me [get]
func (h *Handler) GetMe(c *gin.Context) {
	uid := c.GetString("uid")

	raw, err := h.store.Read(c.Request.Context(), models.UserPath(uid))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to read user"})
		return
	}
	user, ok, err := models.DecodeUser(raw)
	if err != nil || !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "User not found"})
		return
	}

	c.JSON(http.StatusOK, UserResponse{
		UID:             user.UID,
		DisplayName:     user.DisplayName,
		CurrentGameCode: user.CurrentGameCode,
	})
}
