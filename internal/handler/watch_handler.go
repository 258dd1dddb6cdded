package handler

import (
	"io"
	"net/http"

	"gamelobby/coordinator/internal/hub"

	"github.com/gin-gonic/gin"
)

// WatchGame godoc
// @Summary      Stream live game changes (SSE)
// @Description  Streams the full game document on every change to the game the caller is in. The stream ends when the game is deleted or the client disconnects.
// @Tags         lobbies
// @Produce      text/event-stream
// @Security     BearerAuth
// @Success      200 {string} string "event stream"
// @Failure      404 {object} ErrorResponse "User is not in a game"
// @Router       /lobbies/watch [get]
func (h *Handler) WatchGame(c *gin.Context) {
	sess, err := h.session(c)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load user state"})
		return
	}

	code := sess.Snapshot().User.GameCode()
	if code == "" {
		c.JSON(http.StatusNotFound, gin.H{"error": "User is not in a game"})
		return
	}

	client := make(hub.Client, 16)
	h.hub.Subscribe(code, client)
	h.retainBridge(code)
	defer func() {
		h.hub.Unsubscribe(code, client)
		h.releaseBridge(code)
	}()

	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")

	clientGone := c.Request.Context().Done()
	c.Stream(func(w io.Writer) bool {
		select {
		case <-clientGone:
			return false
		case msg, ok := <-client:
			if !ok {
				return false
			}
			c.SSEvent("message", string(msg))
			return true
		}
	})
}
