package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"llm-chat-go/internal/service"
)

// GroupHandler 处理会话分组相关的 API 请求。
type GroupHandler struct {
	groupService service.GroupService
}

// NewGroupHandler 创建一个新的 GroupHandler。
func NewGroupHandler(groupService service.GroupService) *GroupHandler {
	return &GroupHandler{groupService: groupService}
}

func (h *GroupHandler) List(c *gin.Context) {
	groups, err := h.groupService.List(currentUser(c).ID)
	if err != nil {
		writeError(c, "ListGroups", err)
		return
	}
	ok(c, groups)
}

func (h *GroupHandler) Create(c *gin.Context) {
	var req nameRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, "无效的请求负载")
		return
	}
	group, err := h.groupService.Create(currentUser(c).ID, req.Name)
	if err != nil {
		writeError(c, "CreateGroup", err)
		return
	}
	created(c, group)
}

func (h *GroupHandler) Get(c *gin.Context) {
	group, err := h.groupService.Get(currentUser(c).ID, c.Param("id"))
	if err != nil {
		writeError(c, "GetGroup", err)
		return
	}
	ok(c, group)
}

func (h *GroupHandler) Rename(c *gin.Context) {
	var req nameRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, "无效的请求负载")
		return
	}
	group, err := h.groupService.Rename(currentUser(c).ID, c.Param("id"), req.Name)
	if err != nil {
		writeError(c, "RenameGroup", err)
		return
	}
	ok(c, group)
}

func (h *GroupHandler) Delete(c *gin.Context) {
	if err := h.groupService.Delete(currentUser(c).ID, c.Param("id")); err != nil {
		writeError(c, "DeleteGroup", err)
		return
	}
	ok(c, nil)
}

func (h *GroupHandler) Sessions(c *gin.Context) {
	sessions, err := h.groupService.ListSessions(currentUser(c).ID, c.Param("id"))
	if err != nil {
		writeError(c, "ListGroupSessions", err)
		return
	}
	ok(c, sessions)
}
