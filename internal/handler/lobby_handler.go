package handler

import (
	"errors"
	"net/http"

	"gamelobby/coordinator/internal/lobby"
	"gamelobby/coordinator/internal/models"
	"gamelobby/coordinator/internal/registry"
	"gamelobby/coordinator/internal/roster"

	"github.com/gin-gonic/gin"
)

// region --- DTOs ---

type JoinInput struct {
	Code string `json:"code" binding:"required" example:"WQDS"`
}

type RenameInput struct {
	DisplayName string `json:"display_name" binding:"required" example:"Sam the GM"`
}

// RosterMemberResponse is one player's game-local record.
type RosterMemberResponse struct {
	UID             string `json:"uid"`
	GameDisplayName string `json:"game_display_name"`
	IsHost          bool   `json:"is_host"`
	IsGM            bool   `json:"is_gm"`
}

// GameResponse is the full game document plus its roster as a list.
type GameResponse struct {
	GameCode            string                 `json:"game_code"`
	GameHostUID         string                 `json:"game_host_uid"`
	GameGmUID           string                 `json:"game_gm_uid"`
	GameStatus          string                 `json:"game_status"`
	GameCreateTimestamp int64                  `json:"game_create_timestamp"`
	Roster              []RosterMemberResponse `json:"roster"`
}

// LobbyStateResponse is one client's derived lobby view.
type LobbyStateResponse struct {
	Phase           string        `json:"phase"`
	UID             string        `json:"uid"`
	DisplayName     string        `json:"display_name"`
	CurrentGameCode *string       `json:"current_game_code,omitempty"`
	Game            *GameResponse `json:"game,omitempty"`
}

func newGameResponse(game models.Game) *GameResponse {
	resp := &GameResponse{
		GameCode:            game.GameCode,
		GameHostUID:         game.GameHostUID,
		GameGmUID:           game.GameGmUID,
		GameStatus:          game.GameStatus,
		GameCreateTimestamp: game.GameCreateTimestamp,
	}
	for _, entry := range game.Roster() {
		resp.Roster = append(resp.Roster, RosterMemberResponse{
			UID:             entry.UID,
			GameDisplayName: entry.GameDisplayName,
			IsHost:          entry.IsHost,
			IsGM:            entry.IsGM,
		})
	}
	return resp
}

func newLobbyStateResponse(snap lobby.Snapshot) LobbyStateResponse {
	resp := LobbyStateResponse{
		Phase:           string(snap.Phase),
		UID:             snap.User.UID,
		DisplayName:     snap.User.DisplayName,
		CurrentGameCode: snap.User.CurrentGameCode,
	}
	if snap.Game != nil {
		resp.Game = newGameResponse(*snap.Game)
	}
	return resp
}

// endregion

// CreateGame godoc
// @Summary      Create a new game
// @Description  Creates a game in lobby status, making the creator the host and GM.
// @Tags         lobbies
// @Produce      json
// @Security     BearerAuth
// @Success      201  {object}  GameResponse
// @Failure      401  {object}  ErrorResponse
// @Failure      409  {object}  ErrorResponse "User is already in a game"
// @Router       /lobbies [post]
func (h *Handler) CreateGame(c *gin.Context) {
	sess, err := h.session(c)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load user state"})
		return
	}

	game, err := sess.CreateGame(c.Request.Context())
	if errors.Is(err, lobby.ErrAlreadyInGame) {
		c.JSON(http.StatusConflict, gin.H{"error": "User is already in a game"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create game"})
		return
	}

	c.JSON(http.StatusCreated, newGameResponse(game))
}

// JoinGame godoc
// @Summary      Join a game by code
// @Description  Case-insensitive code lookup; on success the user's pointer is set and the roster entry follows asynchronously.
// @Tags         lobbies
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        input body JoinInput true "Game code"
// @Success      200  {object}  map[string]string "{"message": "Joined game successfully"}"
// @Failure      404  {object}  ErrorResponse "Game not found"
// @Failure      409  {object}  ErrorResponse "Game not joinable or user already in a game"
// @Router       /lobbies/join [post]
func (h *Handler) JoinGame(c *gin.Context) {
	var input JoinInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	sess, err := h.session(c)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load user state"})
		return
	}

	err = sess.JoinGame(c.Request.Context(), input.Code)
	switch {
	case errors.Is(err, lobby.ErrGameNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "No game found for that code"})
	case errors.Is(err, lobby.ErrGameNotJoinable):
		c.JSON(http.StatusConflict, gin.H{"error": "Game is no longer in lobby"})
	case errors.Is(err, lobby.ErrAlreadyInGame):
		c.JSON(http.StatusConflict, gin.H{"error": "User is already in a game"})
	case err != nil:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to join game"})
	default:
		c.JSON(http.StatusOK, gin.H{"message": "Joined game successfully"})
	}
}

// LeaveGame godoc
// @Summary      Leave the current game
// @Description  Removes the caller's roster entry and clears their pointer.
// @Tags         lobbies
// @Produce      json
// @Security     BearerAuth
// @Success      200 {object} map[string]string "{"message": "Left game successfully"}"
// @Failure      404 {object} ErrorResponse "User is not in a game"
// @Router       /lobbies/leave [post]
func (h *Handler) LeaveGame(c *gin.Context) {
	sess, err := h.session(c)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load user state"})
		return
	}

	err = sess.LeaveGame(c.Request.Context())
	if errors.Is(err, lobby.ErrNotInGame) {
		c.JSON(http.StatusNotFound, gin.H{"error": "User is not in a game"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to leave game"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Left game successfully"})
}

// CancelGame godoc
// @Summary      Cancel the current game (Host only)
// @Description  Deletes the game and marks every member's pointer cancelled.
// @Tags         lobbies
// @Produce      json
// @Security     BearerAuth
// @Success      200 {object} map[string]string "{"message": "Game cancelled"}"
// @Failure      403 {object} ErrorResponse "Only the host can cancel the game"
// @Failure      404 {object} ErrorResponse "User is not in a game"
// @Router       /lobbies/cancel [post]
func (h *Handler) CancelGame(c *gin.Context) {
	sess, err := h.session(c)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load user state"})
		return
	}

	err = sess.CancelGame(c.Request.Context())
	switch {
	case errors.Is(err, lobby.ErrNotInGame):
		c.JSON(http.StatusNotFound, gin.H{"error": "User is not in a game"})
	case errors.Is(err, lobby.ErrNotHost):
		c.JSON(http.StatusForbidden, gin.H{"error": "Only the host can cancel the game"})
	case err != nil:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to cancel game"})
	default:
		c.JSON(http.StatusOK, gin.H{"message": "Game cancelled"})
	}
}

// AcknowledgeCancel godoc
// @Summary      Acknowledge a cancelled game
// @Description  Clears the cancelled marker so the user returns to the start phase.
// @Tags         lobbies
// @Produce      json
// @Security     BearerAuth
// @Success      200 {object} map[string]string "{"message": "Acknowledged"}"
// @Router       /lobbies/ack-cancel [post]
func (h *Handler) AcknowledgeCancel(c *gin.Context) {
	sess, err := h.session(c)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load user state"})
		return
	}

	if err := sess.AcknowledgeCancel(c.Request.Context()); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to acknowledge"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Acknowledged"})
}

// KickMember godoc
// @Summary      Remove a player from the game (GM only)
// @Description  Deletes the target's roster entry and marks their pointer cancelled.
// @Tags         lobbies
// @Produce      json
// @Security     BearerAuth
// @Param        uid path string true "UID of member to kick"
// @Success      200 {object} map[string]string "{"message": "Member removed"}"
// @Failure      400 {object} ErrorResponse "GM cannot kick themselves"
// @Failure      403 {object} ErrorResponse "Only the GM can kick members"
// @Failure      404 {object} ErrorResponse "User is not in a game"
// @Router       /lobbies/members/{uid} [delete]
func (h *Handler) KickMember(c *gin.Context) {
	sess, err := h.session(c)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load user state"})
		return
	}

	err = sess.KickPlayer(c.Request.Context(), c.Param("uid"))
	switch {
	case errors.Is(err, lobby.ErrNotInGame):
		c.JSON(http.StatusNotFound, gin.H{"error": "User is not in a game"})
	case errors.Is(err, roster.ErrNotGM):
		c.JSON(http.StatusForbidden, gin.H{"error": "Only the GM can kick members"})
	case errors.Is(err, roster.ErrSelfKick):
		c.JSON(http.StatusBadRequest, gin.H{"error": "GM cannot kick themselves"})
	case err != nil:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to remove member"})
	default:
		c.JSON(http.StatusOK, gin.H{"message": "Member removed"})
	}
}

// RenameMember godoc
// @Summary      Edit a player's game display name
// @Description  Permitted for the entry's owner and the GM; host/GM flags are untouched.
// @Tags         lobbies
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        uid   path string      true "UID of member to rename"
// @Param        input body RenameInput true "New display name"
// @Success      200 {object} map[string]string "{"message": "Display name updated"}"
// @Failure      403 {object} ErrorResponse "Not the owner or GM"
// @Failure      404 {object} ErrorResponse "User is not in a game"
// @Router       /lobbies/members/{uid} [put]
func (h *Handler) RenameMember(c *gin.Context) {
	var input RenameInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	sess, err := h.session(c)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load user state"})
		return
	}

	err = sess.RenamePlayer(c.Request.Context(), c.Param("uid"), input.DisplayName)
	switch {
	case errors.Is(err, lobby.ErrNotInGame):
		c.JSON(http.StatusNotFound, gin.H{"error": "User is not in a game"})
	case errors.Is(err, roster.ErrNotPermitted):
		c.JSON(http.StatusForbidden, gin.H{"error": "Only the entry owner or GM may edit"})
	case err != nil:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update display name"})
	default:
		c.JSON(http.StatusOK, gin.H{"message": "Display name updated"})
	}
}

// GetLobbyState godoc
// @Summary      Get the caller's derived lobby state
// @Description  Returns the current phase plus the user record and game document it derives from.
// @Tags         lobbies
// @Produce      json
// @Security     BearerAuth
// @Success      200 {object} LobbyStateResponse
// @Router       /lobbies/current [get]
func (h *Handler) GetLobbyState(c *gin.Context) {
	sess, err := h.session(c)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load user state"})
		return
	}

	c.JSON(http.StatusOK, newLobbyStateResponse(sess.Snapshot()))
}

// GetGameByCode godoc
// @Summary      Look up a game by code
// @Description  Case-insensitive existence and status check; no auth required.
// @Tags         games
// @Produce      json
// @Param        code path string true "Game code"
// @Success      200 {object} GameResponse
// @Failure      404 {object} ErrorResponse "Game not found"
// @Router       /games/{code} [get]
func (h *Handler) GetGameByCode(c *gin.Context) {
	reg := registry.New(h.store)
	game, ok, err := reg.LookupGame(c.Request.Context(), c.Param("code"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to look up game"})
		return
	}
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "Game not found"})
		return
	}
	c.JSON(http.StatusOK, newGameResponse(game))
}
