package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"llm-chat-go/internal/model"
	"llm-chat-go/internal/service"
	"llm-chat-go/pkg/log"
)

// AuthHandler 负责注册、登录与 token 生命周期相关的 API 请求。
type AuthHandler struct {
	userService service.UserService
}

// NewAuthHandler 创建一个新的 AuthHandler 实例。
func NewAuthHandler(userService service.UserService) *AuthHandler {
	return &AuthHandler{userService: userService}
}

// RegisterRequest 定义了用户注册 API 的请求体结构。
type RegisterRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
	Name     string `json:"name"`
}

// LoginRequest 定义了用户登录 API 的请求体结构。
type LoginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// RefreshTokenRequest 定义了刷新 token API 的请求体结构。
type RefreshTokenRequest struct {
	RefreshToken string `json:"refreshToken" binding:"required"`
}

type authResponse struct {
	User         *model.User `json:"user"`
	Token        string      `json:"token"`
	RefreshToken string      `json:"refreshToken"`
}

// Register 处理用户注册请求。
func (h *AuthHandler) Register(c *gin.Context) {
	var req RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		log.Warnf("Register: Invalid request payload, error: %v", err)
		fail(c, http.StatusBadRequest, "无效的请求负载：邮箱和密码不能为空")
		return
	}

	user, pair, err := h.userService.Register(c.Request.Context(), req.Email, req.Password, req.Name)
	if err != nil {
		writeError(c, "Register", err)
		return
	}

	log.Infof("User '%s' registered successfully", user.Email)
	created(c, authResponse{User: user, Token: pair.AccessToken, RefreshToken: pair.RefreshToken})
}

// Login 处理用户登录请求。
func (h *AuthHandler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		log.Warnf("Login: Invalid request payload, error: %v", err)
		fail(c, http.StatusBadRequest, "无效的请求负载：邮箱和密码不能为空")
		return
	}

	user, pair, err := h.userService.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		writeError(c, "Login", err)
		return
	}
	ok(c, authResponse{User: user, Token: pair.AccessToken, RefreshToken: pair.RefreshToken})
}

// RefreshToken 处理刷新 token 的请求，旧的 refresh token 随即失效。
func (h *AuthHandler) RefreshToken(c *gin.Context) {
	var req RefreshTokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		log.Warnf("RefreshToken: Invalid request payload, error: %v", err)
		fail(c, http.StatusBadRequest, "无效的请求负载：refreshToken 不能为空")
		return
	}

	pair, err := h.userService.RefreshToken(c.Request.Context(), req.RefreshToken)
	if err != nil {
		writeError(c, "RefreshToken", err)
		return
	}

	log.Info("Token refreshed successfully")
	ok(c, gin.H{"token": pair.AccessToken, "refreshToken": pair.RefreshToken})
}

// Me 返回当前登录用户。
func (h *AuthHandler) Me(c *gin.Context) {
	ok(c, currentUser(c))
}

// Logout 吊销当前 access token。
func (h *AuthHandler) Logout(c *gin.Context) {
	claims := currentClaims(c)
	if err := h.userService.Logout(c.Request.Context(), claims); err != nil {
		writeError(c, "Logout", err)
		return
	}
	log.Infof("User %d logged out, jti=%s", claims.UserID, claims.ID)
	ok(c, nil)
}
