package handler

import (
	"errors"
	"net/http"

	"gamelobby/coordinator/internal/identity"

	"github.com/gin-gonic/gin"
)

// region --- DTOs ---

// AnonymousInput defines the structure for anonymous sign-in.
type AnonymousInput struct {
	DisplayName string `json:"display_name" binding:"required" example:"Sam"`
}

// RegisterInput defines the structure for account registration.
type RegisterInput struct {
	Username    string `json:"username" binding:"required" example:"sam42"`
	Password    string `json:"password" binding:"required,min=8" example:"password123"`
	DisplayName string `json:"display_name" binding:"required" example:"Sam"`
}

// LoginInput defines the structure for account login.
type LoginInput struct {
	Username string `json:"username" binding:"required" example:"sam42"`
	Password string `json:"password" binding:"required" example:"password123"`
}

// AuthResponse carries the session token and the signed-in principal.
type AuthResponse struct {
	Token       string `json:"token"`
	UID         string `json:"uid"`
	DisplayName string `json:"display_name"`
}

// endregion

// AnonymousLogin godoc
// @Summary      Sign in anonymously
// @Description  Mints a fresh user with the chosen display name and returns a session token.
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        input body AnonymousInput true "Display name"
// @Success      201  {object}  AuthResponse
// @Failure      400  {object}  ErrorResponse
// @Failure      500  {object}  ErrorResponse
// @Router       /auth/anonymous [post]
func (h *Handler) AnonymousLogin(c *gin.Context) {
	var input AnonymousInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	principal, t, err := h.provider.SignInAnonymously(c.Request.Context(), input.DisplayName)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to sign in"})
		return
	}

	c.JSON(http.StatusCreated, AuthResponse{Token: t, UID: principal.UID, DisplayName: principal.DisplayName})
}

// RegisterUser godoc
// @Summary      Register a new account
// @Description  Creates a password account plus its user record and returns a session token.
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        input body RegisterInput true "Registration Info"
// @Success      201  {object}  AuthResponse
// @Failure      400  {object}  ErrorResponse
// @Failure      409  {object}  ErrorResponse
// @Failure      500  {object}  ErrorResponse
// @Router       /auth/register [post]
func (h *Handler) RegisterUser(c *gin.Context) {
	var input RegisterInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	principal, t, err := h.provider.Register(c.Request.Context(), input.Username, input.Password, input.DisplayName)
	if errors.Is(err, identity.ErrUsernameTaken) {
		c.JSON(http.StatusConflict, gin.H{"error": "Username already exists"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create account"})
		return
	}

	c.JSON(http.StatusCreated, AuthResponse{Token: t, UID: principal.UID, DisplayName: principal.DisplayName})
}

// LoginUser godoc
// @Summary      Log in
// @Description  Verifies credentials and returns a session token.
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        input body LoginInput true "Login Info"
// @Success      200  {object}  AuthResponse
// @Failure      400  {object}  ErrorResponse
// @Failure      401  {object}  ErrorResponse
// @Router       /auth/login [post]
func (h *Handler) LoginUser(c *gin.Context) {
	var input LoginInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	principal, t, err := h.provider.Login(c.Request.Context(), input.Username, input.Password)
	if errors.Is(err, identity.ErrInvalidCredentials) {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid username or password"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to log in"})
		return
	}

	c.JSON(http.StatusOK, AuthResponse{Token: t, UID: principal.UID, DisplayName: principal.DisplayName})
}
