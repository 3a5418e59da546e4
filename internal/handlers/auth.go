// internal/handlers/auth.go
package handlers

import (
	"errors"

	"github.com/gin-gonic/gin"

	"github.com/javajoker/retail-backend/internal/i18n"
	"github.com/javajoker/retail-backend/internal/services"
	"github.com/javajoker/retail-backend/internal/utils"
)

type AuthHandler struct {
	authService *services.AuthService
}

func NewAuthHandler(authService *services.AuthService) *AuthHandler {
	return &AuthHandler{
		authService: authService,
	}
}

// POST /auth/register
func (h *AuthHandler) Register(c *gin.Context) {
	lang := utils.GetLangFromContext(c)

	var req services.RegisterRequest
	if !bindAndValidate(c, &req) {
		return
	}

	authResponse, err := h.authService.Register(c.Request.Context(), &req)
	if err != nil {
		if errors.Is(err, services.ErrEmailTaken) {
			utils.ConflictResponse(c, "EMAIL_TAKEN", i18n.T(lang, i18n.KeyAuthEmailTaken))
			return
		}
		respondError(c, "user", err)
		return
	}

	if authResponse.ActivationRequired {
		utils.CreatedResponse(c, gin.H{
			"message":             i18n.T(lang, i18n.KeyAuthActivationSent),
			"user":                authResponse.User,
			"activation_required": true,
		})
		return
	}

	utils.CreatedResponse(c, gin.H{
		"message":    i18n.T(lang, i18n.KeyAuthRegistered),
		"user":       authResponse.User,
		"token":      authResponse.AccessToken,
		"token_type": authResponse.TokenType,
		"expires_in": authResponse.ExpiresIn,
	})
}

// POST /auth/login
func (h *AuthHandler) Login(c *gin.Context) {
	lang := utils.GetLangFromContext(c)

	var req services.LoginRequest
	if !bindAndValidate(c, &req) {
		return
	}

	authResponse, err := h.authService.Login(c.Request.Context(), &req)
	if err != nil {
		if errors.Is(err, services.ErrInvalidCredentials) {
			utils.UnauthorizedResponse(c, i18n.T(lang, i18n.KeyAuthBadLogin))
			return
		}
		respondError(c, "user", err)
		return
	}

	utils.SuccessResponse(c, gin.H{
		"message":    i18n.T(lang, i18n.KeyAuthLoggedIn),
		"user":       authResponse.User,
		"token":      authResponse.AccessToken,
		"token_type": authResponse.TokenType,
		"expires_in": authResponse.ExpiresIn,
	})
}

// GET /auth/activate?email=&key=
func (h *AuthHandler) Activate(c *gin.Context) {
	lang := utils.GetLangFromContext(c)

	activated, err := h.authService.Activate(c.Request.Context(), c.Query("email"), c.Query("key"))
	if err != nil {
		respondError(c, "user", err)
		return
	}

	message := i18n.T(lang, i18n.KeyAuthActivated)
	if !activated {
		message = i18n.T(lang, i18n.KeyAuthActivationInvalid)
	}
	utils.SuccessResponse(c, gin.H{
		"activated": activated,
		"message":   message,
	})
}

// GET /auth/me
func (h *AuthHandler) GetProfile(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	user, err := h.authService.GetUserByID(c.Request.Context(), userID)
	if err != nil {
		respondError(c, "user", err)
		return
	}
	utils.SuccessResponse(c, user)
}
