package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"llm-chat-go/internal/service"
)

// FolderHandler 处理文件夹相关的 API 请求。
type FolderHandler struct {
	folderService service.FolderService
}

// NewFolderHandler 创建一个新的 FolderHandler。
func NewFolderHandler(folderService service.FolderService) *FolderHandler {
	return &FolderHandler{folderService: folderService}
}

type nameRequest struct {
	Name string `json:"name"`
}

func (h *FolderHandler) List(c *gin.Context) {
	folders, err := h.folderService.List(currentUser(c).ID)
	if err != nil {
		writeError(c, "ListFolders", err)
		return
	}
	ok(c, folders)
}

func (h *FolderHandler) Create(c *gin.Context) {
	var req nameRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, "无效的请求负载")
		return
	}
	folder, err := h.folderService.Create(currentUser(c).ID, req.Name)
	if err != nil {
		writeError(c, "CreateFolder", err)
		return
	}
	created(c, folder)
}

func (h *FolderHandler) Get(c *gin.Context) {
	folder, err := h.folderService.Get(currentUser(c).ID, c.Param("id"))
	if err != nil {
		writeError(c, "GetFolder", err)
		return
	}
	ok(c, folder)
}

func (h *FolderHandler) Update(c *gin.Context) {
	var upd service.FolderUpdate
	if err := c.ShouldBindJSON(&upd); err != nil {
		fail(c, http.StatusBadRequest, "无效的请求负载")
		return
	}
	folder, err := h.folderService.Update(currentUser(c).ID, c.Param("id"), upd)
	if err != nil {
		writeError(c, "UpdateFolder", err)
		return
	}
	ok(c, folder)
}

// ToggleFavorite 翻转文件夹的收藏状态。
func (h *FolderHandler) ToggleFavorite(c *gin.Context) {
	folder, err := h.folderService.ToggleFavorite(currentUser(c).ID, c.Param("id"))
	if err != nil {
		writeError(c, "ToggleFolderFavorite", err)
		return
	}
	ok(c, folder)
}

func (h *FolderHandler) Delete(c *gin.Context) {
	if err := h.folderService.Delete(currentUser(c).ID, c.Param("id")); err != nil {
		writeError(c, "DeleteFolder", err)
		return
	}
	ok(c, nil)
}

func (h *FolderHandler) Sessions(c *gin.Context) {
	sessions, err := h.folderService.ListSessions(currentUser(c).ID, c.Param("id"))
	if err != nil {
		writeError(c, "ListFolderSessions", err)
		return
	}
	ok(c, sessions)
}
