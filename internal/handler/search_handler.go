package handler

import (
	"strconv"

	"github.com/gin-gonic/gin"
	"llm-chat-go/internal/service"
	"llm-chat-go/pkg/log"
)

// SearchHandler 结构体定义了搜索相关的处理器。
type SearchHandler struct {
	searchService service.SearchService
}

// NewSearchHandler 创建一个新的 SearchHandler 实例。
func NewSearchHandler(searchService service.SearchService) *SearchHandler {
	return &SearchHandler{searchService: searchService}
}

// SearchMessages 在当前用户的全部消息中做全文搜索。
func (h *SearchHandler) SearchMessages(c *gin.Context) {
	query := c.Query("query")
	size, err := strconv.Atoi(c.DefaultQuery("size", "0"))
	if err != nil {
		size = 0
	}
	user := currentUser(c)
	log.Infof("[SearchHandler] 收到消息搜索请求, user: %d, query: %s", user.ID, query)

	results, err := h.searchService.SearchMessages(c.Request.Context(), user.ID, query, size)
	if err != nil {
		writeError(c, "SearchMessages", err)
		return
	}
	log.Infof("[SearchHandler] 搜索成功, query: '%s', 返回 %d 条结果", query, len(results))
	ok(c, results)
}
