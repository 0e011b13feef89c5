package handlers

import (
	"net/http"
	"time"

	"github.com/bugdesk/bugdesk/internal/middleware"
	"github.com/bugdesk/bugdesk/internal/services"
	"github.com/bugdesk/bugdesk/pkg/response"
	"github.com/gin-gonic/gin"
)

const refreshCookie = "refresh_token"

type AuthHandler struct {
	authService  *services.AuthService
	secureCookie bool
}

func NewAuthHandler(authService *services.AuthService, secureCookie bool) *AuthHandler {
	return &AuthHandler{authService: authService, secureCookie: secureCookie}
}

type tokenResponse struct {
	AccessToken     string      `json:"access_token"`
	ExpiresAt       time.Time   `json:"expires_at"`
	RefreshToken    string      `json:"refresh_token"`
	RefreshExpireAt time.Time   `json:"refresh_expires_at"`
	User            interface{} `json:"user"`
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

// Register creates an account and optionally joins an organization
// POST /api/auth/register
func (h *AuthHandler) Register(c *gin.Context) {
	var req services.RegisterRequest
	if !bindJSON(c, &req) {
		return
	}

	result, err := h.authService.Register(&req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, result)
}

// Login handles user login
// POST /api/auth/login
func (h *AuthHandler) Login(c *gin.Context) {
	var req services.LoginRequest
	if !bindJSON(c, &req) {
		return
	}

	result, err := h.authService.Login(&req, clientInfo(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	h.respondTokens(c, result)
}

// Refresh exchanges a refresh token for a new token pair
// POST /api/auth/refresh
func (h *AuthHandler) Refresh(c *gin.Context) {
	result, err := h.authService.Refresh(h.refreshToken(c), clientInfo(c))
	if err != nil {
		h.clearCookie(c)
		response.Error(c, err)
		return
	}
	h.respondTokens(c, result)
}

// Logout revokes the refresh token
// GET|POST /api/auth/logout
func (h *AuthHandler) Logout(c *gin.Context) {
	if err := h.authService.Logout(h.refreshToken(c)); err != nil {
		response.Error(c, err)
		return
	}
	h.clearCookie(c)
	response.Message(c, "logged out successfully")
}

// GetCurrentUser returns the current logged-in user
// GET /api/auth/me
func (h *AuthHandler) GetCurrentUser(c *gin.Context) {
	user, err := h.authService.GetUserByID(middleware.GetUserID(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, user)
}

// GetAuthConfig returns authentication configuration
// GET /api/auth/config
func (h *AuthHandler) GetAuthConfig(c *gin.Context) {
	response.Success(c, gin.H{"ldap_enabled": h.authService.IsLDAPEnabled()})
}

// POST /api/auth/change-password
func (h *AuthHandler) ChangePassword(c *gin.Context) {
	var req services.ChangePasswordRequest
	if !bindJSON(c, &req) {
		return
	}
	if err := h.authService.ChangePassword(middleware.GetUserID(c), &req); err != nil {
		response.Error(c, err)
		return
	}
	response.Message(c, "password changed")
}

// ForgotPassword answers identically for known and unknown addresses
// POST /api/auth/forgot-password
func (h *AuthHandler) ForgotPassword(c *gin.Context) {
	var req services.ForgotPasswordRequest
	if !bindJSON(c, &req) {
		return
	}
	if err := h.authService.ForgotPassword(req.Email); err != nil {
		response.Error(c, err)
		return
	}
	response.Message(c, "if the address belongs to an account, a reset link has been sent")
}

// POST /api/auth/reset-password
func (h *AuthHandler) ResetPassword(c *gin.Context) {
	var req services.ResetPasswordRequest
	if !bindJSON(c, &req) {
		return
	}
	if err := h.authService.ResetPassword(req.Token, req.NewPassword); err != nil {
		response.Error(c, err)
		return
	}
	response.Message(c, "password has been reset")
}

func (h *AuthHandler) respondTokens(c *gin.Context, result *services.LoginResult) {
	http.SetCookie(c.Writer, &http.Cookie{
		Name:     refreshCookie,
		Value:    result.RefreshToken,
		Path:     "/api/auth",
		Expires:  result.RefreshExpireAt,
		HttpOnly: true,
		Secure:   h.secureCookie,
		SameSite: http.SameSiteLaxMode,
	})
	response.Success(c, tokenResponse{
		AccessToken:     result.AccessToken,
		ExpiresAt:       result.AccessExpireAt,
		RefreshToken:    result.RefreshToken,
		RefreshExpireAt: result.RefreshExpireAt,
		User:            result.User,
	})
}

func (h *AuthHandler) clearCookie(c *gin.Context) {
	http.SetCookie(c.Writer, &http.Cookie{
		Name:     refreshCookie,
		Value:    "",
		Path:     "/api/auth",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.secureCookie,
		SameSite: http.SameSiteLaxMode,
	})
}

// refreshToken looks in the JSON body, then the query string, then the cookie.
func (h *AuthHandler) refreshToken(c *gin.Context) string {
	var req refreshRequest
	if c.Request.Method == http.MethodPost && c.Request.ContentLength != 0 {
		_ = c.ShouldBindJSON(&req)
	}
	if req.RefreshToken != "" {
		return req.RefreshToken
	}
	if token := c.Query("refresh_token"); token != "" {
		return token
	}
	token, _ := c.Cookie(refreshCookie)
	return token
}

func clientInfo(c *gin.Context) services.ClientInfo {
	return services.ClientInfo{IP: c.ClientIP(), UserAgent: c.Request.UserAgent()}
}
