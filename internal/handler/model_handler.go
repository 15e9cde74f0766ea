package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"llm-chat-go/pkg/llm"
)

// ModelHandler 提供模型目录与供应商可用性。
type ModelHandler struct {
	registry *llm.Registry
}

// NewModelHandler 创建一个新的 ModelHandler。
func NewModelHandler(registry *llm.Registry) *ModelHandler {
	return &ModelHandler{registry: registry}
}

// Models 处理 GET /ai/models[?provider=]，provider 大小写不敏感。
func (h *ModelHandler) Models(c *gin.Context) {
	raw := c.Query("provider")
	if raw == "" {
		ok(c, gin.H{
			"modelsByProvider": llm.Catalog(),
			"models":           llm.AllModels(),
		})
		return
	}
	name, valid := llm.ParseName(raw)
	if !valid {
		fail(c, http.StatusBadRequest, "invalid provider: "+raw)
		return
	}
	ok(c, gin.H{"provider": name, "models": llm.ModelsFor(name)})
}

type providerStatus struct {
	Name         llm.Name `json:"name"`
	Available    bool     `json:"available"`
	DefaultModel string   `json:"defaultModel"`
}

// Providers 返回启动时的供应商可用性报告。
func (h *ModelHandler) Providers(c *gin.Context) {
	avail := h.registry.Availability()
	out := make([]providerStatus, 0, len(avail))
	for _, name := range h.registry.Names() {
		status := providerStatus{Name: name, Available: avail[name]}
		if p, found := h.registry.Lookup(name); found {
			status.DefaultModel = p.DefaultModel()
		}
		out = append(out, status)
	}
	ok(c, out)
}
