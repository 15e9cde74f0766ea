package handler

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"llm-chat-go/internal/service"
	"llm-chat-go/pkg/log"
)

// SessionHandler 处理会话的增删改查与导出。
type SessionHandler struct {
	sessionService service.SessionService
}

// NewSessionHandler 创建一个新的 SessionHandler。
func NewSessionHandler(sessionService service.SessionService) *SessionHandler {
	return &SessionHandler{sessionService: sessionService}
}

func (h *SessionHandler) List(c *gin.Context) {
	sessions, err := h.sessionService.List(currentUser(c).ID)
	if err != nil {
		writeError(c, "ListSessions", err)
		return
	}
	ok(c, sessions)
}

func (h *SessionHandler) Get(c *gin.Context) {
	session, err := h.sessionService.Get(currentUser(c).ID, c.Param("id"))
	if err != nil {
		writeError(c, "GetSession", err)
		return
	}
	ok(c, session)
}

// Create 新建会话，请求体可以为空。
func (h *SessionHandler) Create(c *gin.Context) {
	var req service.SessionCreate
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			fail(c, http.StatusBadRequest, "无效的请求负载")
			return
		}
	}
	session, err := h.sessionService.Create(currentUser(c).ID, req)
	if err != nil {
		writeError(c, "CreateSession", err)
		return
	}
	created(c, session)
}

func (h *SessionHandler) Update(c *gin.Context) {
	var upd service.SessionUpdate
	if err := c.ShouldBindJSON(&upd); err != nil {
		fail(c, http.StatusBadRequest, "无效的请求负载")
		return
	}
	h.apply(c, "UpdateSession", upd)
}

func (h *SessionHandler) apply(c *gin.Context, op string, upd service.SessionUpdate) {
	session, err := h.sessionService.Update(currentUser(c).ID, c.Param("id"), upd)
	if err != nil {
		writeError(c, op, err)
		return
	}
	ok(c, session)
}

// SetFavorite 处理 PATCH /:id/favorite {isFavorite}。
func (h *SessionHandler) SetFavorite(c *gin.Context) {
	var req struct {
		IsFavorite *bool `json:"isFavorite"`
	}
	if err := c.ShouldBindJSON(&req); err != nil || req.IsFavorite == nil {
		fail(c, http.StatusBadRequest, "isFavorite 不能为空")
		return
	}
	h.apply(c, "SetSessionFavorite", service.SessionUpdate{IsFavorite: req.IsFavorite})
}

// MoveToFolder 处理 PATCH /:id/folder {folderId}，folderId 为 null 时移出文件夹。
func (h *SessionHandler) MoveToFolder(c *gin.Context) {
	var req struct {
		FolderID service.OptionalID `json:"folderId"`
	}
	if err := c.ShouldBindJSON(&req); err != nil || !req.FolderID.Set {
		fail(c, http.StatusBadRequest, "folderId 必须提供（可以为 null）")
		return
	}
	h.apply(c, "MoveSessionToFolder", service.SessionUpdate{FolderID: req.FolderID})
}

// MoveToGroup 处理 PATCH /:id/group {groupId}。
func (h *SessionHandler) MoveToGroup(c *gin.Context) {
	var req struct {
		GroupID service.OptionalID `json:"groupId"`
	}
	if err := c.ShouldBindJSON(&req); err != nil || !req.GroupID.Set {
		fail(c, http.StatusBadRequest, "groupId 必须提供（可以为 null）")
		return
	}
	h.apply(c, "MoveSessionToGroup", service.SessionUpdate{GroupID: req.GroupID})
}

func (h *SessionHandler) Delete(c *gin.Context) {
	if err := h.sessionService.Delete(currentUser(c).ID, c.Param("id")); err != nil {
		writeError(c, "DeleteSession", err)
		return
	}
	ok(c, nil)
}

func (h *SessionHandler) ExportJSON(c *gin.Context) {
	data, err := h.sessionService.Export(currentUser(c).ID, c.Param("id"))
	if err != nil {
		writeError(c, "ExportSessionJSON", err)
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s.json"`, data.Session.ID))
	c.JSON(http.StatusOK, data)
}

func (h *SessionHandler) ExportMarkdown(c *gin.Context) {
	id := c.Param("id")
	md, err := h.sessionService.ExportMarkdown(currentUser(c).ID, id)
	if err != nil {
		writeError(c, "ExportSessionMarkdown", err)
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s.md"`, id))
	c.Data(http.StatusOK, "text/markdown; charset=utf-8", []byte(md))
}

// Archive 把会话快照上传到对象存储并返回预签名地址。
func (h *SessionHandler) Archive(c *gin.Context) {
	user := currentUser(c)
	archive, err := h.sessionService.Archive(c.Request.Context(), user.ID, c.Param("id"))
	if err != nil {
		writeError(c, "ArchiveSession", err)
		return
	}
	log.Infof("session archived user=%d object=%s", user.ID, archive.ObjectName)
	ok(c, archive)
}
