package llm

import "net/http"

// Options 是构造单个供应商适配器所需的参数。
// APIKey 为空时适配器处于未配置状态（echo 模式）。
type Options struct {
	APIKey       string
	BaseURL      string
	DefaultModel string
	Temperature  float64
	MaxTokens    int
	HTTPClient   *http.Client
}

func (o Options) httpClient() *http.Client {
	if o.HTTPClient != nil {
		return o.HTTPClient
	}
	return &http.Client{}
}

func (o Options) maxTokens() int {
	if o.MaxTokens > 0 {
		return o.MaxTokens
	}
	return 1024
}
