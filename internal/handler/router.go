package handler

import (
	"github.com/gin-gonic/gin"
	"llm-chat-go/internal/middleware"
	"llm-chat-go/internal/service"
)

// Handlers 汇总所有控制器，由 main 与测试共同装配。
type Handlers struct {
	Auth     *AuthHandler
	Folder   *FolderHandler
	Group    *GroupHandler
	Session  *SessionHandler
	Message  *MessageHandler
	Model    *ModelHandler
	Search   *SearchHandler
	Chat     *ChatHandler

	// UserService 供认证中间件使用
	UserService service.UserService
}

// RegisterRoutes 注册全部路由。
func RegisterRoutes(r *gin.Engine, h Handlers) {
	authed := middleware.AuthMiddleware(h.UserService)

	apiV1 := r.Group("/api/v1")
	{
		auth := apiV1.Group("/auth")
		{
			auth.POST("/register", h.Auth.Register)
			auth.POST("/login", h.Auth.Login)
			auth.POST("/refresh", h.Auth.RefreshToken)
			auth.GET("/me", authed, h.Auth.Me)
			auth.POST("/logout", authed, h.Auth.Logout)
		}

		// 模型目录是静态数据，无需认证
		ai := apiV1.Group("/ai")
		{
			ai.GET("/models", h.Model.Models)
			ai.GET("/providers", h.Model.Providers)
		}

		folders := apiV1.Group("/folders", authed)
		{
			folders.GET("", h.Folder.List)
			folders.POST("", h.Folder.Create)
			folders.GET("/:id", h.Folder.Get)
			folders.PATCH("/:id", h.Folder.Update)
			folders.DELETE("/:id", h.Folder.Delete)
			folders.PATCH("/:id/favorite", h.Folder.ToggleFavorite)
			folders.GET("/:id/sessions", h.Folder.Sessions)
		}

		groups := apiV1.Group("/groups", authed)
		{
			groups.GET("", h.Group.List)
			groups.POST("", h.Group.Create)
			groups.GET("/:id", h.Group.Get)
			groups.PATCH("/:id", h.Group.Rename)
			groups.DELETE("/:id", h.Group.Delete)
			groups.GET("/:id/sessions", h.Group.Sessions)
		}

		sessions := apiV1.Group("/sessions", authed)
		{
			sessions.GET("", h.Session.List)
			sessions.POST("", h.Session.Create)
			sessions.GET("/:id", h.Session.Get)
			sessions.PATCH("/:id", h.Session.Update)
			sessions.DELETE("/:id", h.Session.Delete)
			sessions.PATCH("/:id/favorite", h.Session.SetFavorite)
			sessions.PATCH("/:id/folder", h.Session.MoveToFolder)
			sessions.PATCH("/:id/group", h.Session.MoveToGroup)
			sessions.GET("/:id/export.json", h.Session.ExportJSON)
			sessions.GET("/:id/export.md", h.Session.ExportMarkdown)
			sessions.POST("/:id/archive", h.Session.Archive)
		}

		messages := apiV1.Group("/messages", authed)
		{
			messages.POST("/stream", h.Message.Stream)
			messages.GET("/:sessionId", h.Message.List)
			messages.POST("", h.Message.Create)
		}

		search := apiV1.Group("/search", authed)
		{
			search.GET("/messages", h.Search.SearchMessages)
		}
	}

	// WebSocket 路由，token 在路径中
	r.GET("/chat/:token", h.Chat.Handle)
}
