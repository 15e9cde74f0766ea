package llm

import (
	"fmt"
	"strings"

	"llm-chat-go/pkg/log"
)

// Credentials 为三个真实供应商分别提供构造参数。
// 使用结构体而不是 map，保证新增供应商时编译期就能发现遗漏。
type Credentials struct {
	OpenAI    Options
	Google    Options
	Anthropic Options
}

// Registry 在启动时构建一次，之后只读。
type Registry struct {
	providers map[Name]Provider
	fallback  Provider
}

// NewRegistry 按固定列表构建注册表，ECHO 总是最后注册。
func NewRegistry(creds Credentials) *Registry {
	return newRegistry(
		NewOpenAIProvider(creds.OpenAI),
		NewGoogleProvider(creds.Google),
		NewAnthropicProvider(creds.Anthropic),
	)
}

// newRegistry 允许测试注入替身适配器；同名适配器后者覆盖前者。
func newRegistry(providers ...Provider) *Registry {
	echo := NewEchoProvider()
	r := &Registry{
		providers: make(map[Name]Provider, len(providers)+1),
		fallback:  echo,
	}
	for _, p := range providers {
		r.providers[p.Name()] = p
	}
	r.providers[Echo] = echo

	status := make([]string, 0, len(r.providers))
	for _, n := range r.Names() {
		state := "off"
		if r.providers[n].IsAvailable() {
			state = "on"
		}
		status = append(status, fmt.Sprintf("%s:%s", n, state))
	}
	log.Infof("AI providers registered → %s", strings.Join(status, ", "))
	return r
}

// Lookup 按名称查找适配器。
func (r *Registry) Lookup(name Name) (Provider, bool) {
	p, ok := r.providers[name]
	return p, ok
}

// Resolve 依次尝试请求的供应商、默认供应商、ECHO，永远返回可用的适配器。
func (r *Registry) Resolve(name Name) Provider {
	if p, ok := r.providers[name]; ok {
		return p
	}
	if p, ok := r.providers[DefaultProvider]; ok {
		return p
	}
	return r.fallback
}

// Fallback 返回始终可用的 ECHO 适配器。
func (r *Registry) Fallback() Provider { return r.fallback }

// Names 按固定顺序返回已注册的供应商名称。
func (r *Registry) Names() []Name {
	names := make([]Name, 0, len(r.providers))
	for _, n := range Names {
		if _, ok := r.providers[n]; ok {
			names = append(names, n)
		}
	}
	return names
}

// Availability 返回 name→是否已配置凭证 的快照。
func (r *Registry) Availability() map[Name]bool {
	out := make(map[Name]bool, len(r.providers))
	for n, p := range r.providers {
		out[n] = p.IsAvailable()
	}
	return out
}
