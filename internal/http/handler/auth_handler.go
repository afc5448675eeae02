package handler

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/fabworks/fabworks-auth/internal/config"
	"github.com/fabworks/fabworks-auth/internal/http/middleware"
	"github.com/fabworks/fabworks-auth/internal/service"
)

const (
	accessCookie  = "fw_access_token"
	refreshCookie = "fw_refresh_token"
)

// AuthHandler exposes the authentication flow over HTTP.
type AuthHandler struct {
	Auth *service.AuthService
	Cfg  config.Config
}

// NewAuthHandler wires dependencies.
func NewAuthHandler(auth *service.AuthService, cfg config.Config) *AuthHandler {
	return &AuthHandler{Auth: auth, Cfg: cfg}
}

// Login verifies email/password and either returns tokens or an MFA
// challenge token the client must complete.
func (h *AuthHandler) Login(c *gin.Context) {
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request", "error_description": "Invalid payload."})
		return
	}
	if strings.TrimSpace(req.Email) == "" || strings.TrimSpace(req.Password) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request", "error_description": "Email and password are required."})
		return
	}

	resp, err := h.Auth.Login(c.Request.Context(), req.Email, req.Password, c.ClientIP(), c.Request.UserAgent())
	if err != nil {
		respondAuthError(c, err)
		return
	}

	if resp.TokenPair != nil {
		h.setTokenCookies(c, resp.TokenPair)
	}
	c.JSON(http.StatusOK, resp)
}

// VerifyMFA completes a pending challenge with a TOTP or backup code.
func (h *AuthHandler) VerifyMFA(c *gin.Context) {
	var req struct {
		ChallengeToken string `json:"challenge_token"`
		Code           string `json:"code"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request", "error_description": "Invalid payload."})
		return
	}
	if strings.TrimSpace(req.ChallengeToken) == "" || strings.TrimSpace(req.Code) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request", "error_description": "Challenge token and code are required."})
		return
	}

	resp, err := h.Auth.VerifyMFA(c.Request.Context(), req.ChallengeToken, req.Code, c.ClientIP(), c.Request.UserAgent())
	if err != nil {
		respondAuthError(c, err)
		return
	}

	if resp.TokenPair != nil {
		h.setTokenCookies(c, resp.TokenPair)
	}
	c.JSON(http.StatusOK, resp)
}

// Refresh rotates the refresh token from the body or cookie.
func (h *AuthHandler) Refresh(c *gin.Context) {
	raw := h.refreshTokenFromRequest(c)
	if raw == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request", "error_description": "Refresh token required."})
		return
	}

	resp, err := h.Auth.Refresh(c.Request.Context(), raw, c.ClientIP(), c.Request.UserAgent())
	if err != nil {
		respondAuthError(c, err)
		return
	}

	if resp.TokenPair != nil {
		h.setTokenCookies(c, resp.TokenPair)
	}
	c.JSON(http.StatusOK, resp)
}

// Logout revokes the presented refresh token's family and clears cookies.
func (h *AuthHandler) Logout(c *gin.Context) {
	raw := h.refreshTokenFromRequest(c)
	if raw != "" {
		if err := h.Auth.Logout(c.Request.Context(), raw); err != nil {
			respondAuthError(c, err)
			return
		}
	}

	h.clearTokenCookies(c)
	c.JSON(http.StatusOK, gin.H{"message": "Logged out."})
}

// LogoutAll revokes every token and session for the authenticated user.
func (h *AuthHandler) LogoutAll(c *gin.Context) {
	identity, ok := middleware.GetIdentity(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid_token", "error_description": "Missing identity."})
		return
	}

	if err := h.Auth.LogoutAll(c.Request.Context(), identity.UserID); err != nil {
		respondAuthError(c, err)
		return
	}

	h.clearTokenCookies(c)
	c.JSON(http.StatusOK, gin.H{"message": "Logged out everywhere."})
}

// ChangePassword swaps the credential and forces re-login everywhere.
func (h *AuthHandler) ChangePassword(c *gin.Context) {
	identity, ok := middleware.GetIdentity(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid_token", "error_description": "Missing identity."})
		return
	}

	var req struct {
		CurrentPassword string `json:"current_password"`
		NewPassword     string `json:"new_password"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request", "error_description": "Invalid payload."})
		return
	}
	if req.CurrentPassword == "" || req.NewPassword == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request", "error_description": "Current and new password are required."})
		return
	}

	if err := h.Auth.ChangePassword(c.Request.Context(), identity.UserID, req.CurrentPassword, req.NewPassword); err != nil {
		respondAuthError(c, err)
		return
	}

	h.clearTokenCookies(c)
	c.JSON(http.StatusOK, gin.H{"message": "Password changed. Sign in again."})
}

// Me returns the authenticated account profile.
func (h *AuthHandler) Me(c *gin.Context) {
	identity, ok := middleware.GetIdentity(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid_token", "error_description": "Missing identity."})
		return
	}

	user, err := h.Auth.GetUserInfo(c.Request.Context(), identity.UserID)
	if err != nil {
		respondAuthError(c, err)
		return
	}

	c.JSON(http.StatusOK, user)
}

// Sessions lists the user's live sessions.
func (h *AuthHandler) Sessions(c *gin.Context) {
	identity, ok := middleware.GetIdentity(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid_token", "error_description": "Missing identity."})
		return
	}

	sessions, err := h.Auth.Sessions(c.Request.Context(), identity.UserID)
	if err != nil {
		respondAuthError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"sessions": sessions})
}

// RevokeSession drops one of the user's sessions by id.
func (h *AuthHandler) RevokeSession(c *gin.Context) {
	identity, ok := middleware.GetIdentity(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid_token", "error_description": "Missing identity."})
		return
	}

	sessionID := strings.TrimSpace(c.Param("id"))
	if sessionID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request", "error_description": "Session id required."})
		return
	}

	if err := h.Auth.RevokeSession(c.Request.Context(), identity.UserID, sessionID); err != nil {
		respondAuthError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Session revoked."})
}

func (h *AuthHandler) refreshTokenFromRequest(c *gin.Context) string {
	var req struct {
		RefreshToken string `json:"refresh_token"`
	}
	if err := c.ShouldBindJSON(&req); err == nil && strings.TrimSpace(req.RefreshToken) != "" {
		return strings.TrimSpace(req.RefreshToken)
	}
	if cookie, err := c.Cookie(refreshCookie); err == nil {
		return cookie
	}
	return ""
}

func (h *AuthHandler) setTokenCookies(c *gin.Context, pair *service.TokenPair) {
	secure := h.Cfg.Environment != "development"
	c.SetCookie(accessCookie, pair.AccessToken, pair.ExpiresIn, "/", "", secure, true)
	c.SetCookie(refreshCookie, pair.RefreshToken, int(h.Cfg.RefreshTokenTTL.Seconds()), "/", "", secure, true)
}

func (h *AuthHandler) clearTokenCookies(c *gin.Context) {
	secure := h.Cfg.Environment != "development"
	c.SetCookie(accessCookie, "", -1, "/", "", secure, true)
	c.SetCookie(refreshCookie, "", -1, "/", "", secure, true)
}

func respondAuthError(c *gin.Context, err error) {
	if authErr, ok := err.(*service.AuthError); ok {
		c.JSON(authErr.Status, gin.H{"error": authErr.Code, "error_description": authErr.Description})
		return
	}
	c.JSON(http.StatusInternalServerError, gin.H{"error": "server_error", "error_description": "Unexpected error."})
}
