package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/ignatzorin/scout-reports/internal/dto"
	"github.com/ignatzorin/scout-reports/internal/http/handlers/common"
	"github.com/ignatzorin/scout-reports/internal/service"
)

// AuthHandler предоставляет HTTP слой для регистрации и входа.
type AuthHandler struct {
	auth *service.AuthService
}

// NewAuthHandler создаёт хэндлер.
func NewAuthHandler(auth *service.AuthService) *AuthHandler {
	return &AuthHandler{auth: auth}
}

// SignUp обрабатывает POST /api/auth/signup.
func (h *AuthHandler) SignUp(c *gin.Context) {
	var req dto.SignUpRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		common.RespondBadRequest(c, "email и password обязательны")
		return
	}

	result, err := h.auth.SignUp(c.Request.Context(), service.SignUpInput{
		Email:    req.Email,
		Password: req.Password,
		Username: req.Username,
		Role:     req.Role,
	}, sessionMeta(c))
	if err != nil {
		common.RespondErr(c, err)
		return
	}

	common.RespondData(c, http.StatusCreated, result)
}

// SignIn обрабатывает POST /api/auth/signin.
func (h *AuthHandler) SignIn(c *gin.Context) {
	var req dto.SignInRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		common.RespondBadRequest(c, "email и password обязательны")
		return
	}

	result, err := h.auth.SignIn(c.Request.Context(), service.SignInInput{
		Email:    req.Email,
		Password: req.Password,
	}, sessionMeta(c))
	if err != nil {
		common.RespondErr(c, err)
		return
	}

	common.RespondData(c, http.StatusOK, result)
}

// Refresh обрабатывает POST /api/auth/refresh.
func (h *AuthHandler) Refresh(c *gin.Context) {
	var req dto.RefreshRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		common.RespondBadRequest(c, "refresh_token обязателен")
		return
	}

	pair, err := h.auth.Refresh(c.Request.Context(), req.RefreshToken, sessionMeta(c))
	if err != nil {
		common.RespondErr(c, err)
		return
	}

	common.RespondData(c, http.StatusOK, gin.H{"tokens": pair})
}

// SignOut обрабатывает POST /api/auth/signout. Тело необязательно.
func (h *AuthHandler) SignOut(c *gin.Context) {
	userID, err := common.CurrentUserID(c)
	if err != nil {
		common.RespondUnauthorized(c, "")
		return
	}

	var req dto.SignOutRequest
	_ = c.ShouldBindJSON(&req)

	if err := h.auth.SignOut(c.Request.Context(), userID, req.RefreshToken); err != nil {
		common.RespondErr(c, err)
		return
	}

	common.RespondData(c, http.StatusOK, gin.H{"signed_out": true})
}

func sessionMeta(c *gin.Context) service.SessionMeta {
	return service.SessionMeta{
		UserAgent: c.GetHeader("User-Agent"),
		IP:        c.ClientIP(),
	}
}
