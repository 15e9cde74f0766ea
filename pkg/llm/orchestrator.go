package llm

import (
	"context"
	"fmt"

	"llm-chat-go/pkg/log"
)

// Orchestrator 在注册表之上实施回退策略：任何一次大模型调用最终都应得到文本。
type Orchestrator struct {
	registry *Registry
}

// NewOrchestrator 创建编排器。
func NewOrchestrator(registry *Registry) *Orchestrator {
	return &Orchestrator{registry: registry}
}

// Registry 返回底层注册表。
func (o *Orchestrator) Registry() *Registry { return o.registry }

// GenerateReply 生成完整回复。未知供应商解析为默认供应商；
// 调用失败后使用 ECHO 重试且仅重试一次，ECHO 也失败时返回错误。
func (o *Orchestrator) GenerateReply(ctx context.Context, prompt, model string, provider Name) (string, error) {
	if provider == "" {
		provider = DefaultProvider
	}
	impl := o.registry.Resolve(provider)
	text, err := impl.Generate(ctx, prompt, model)
	if err == nil {
		return text, nil
	}
	log.Errorw("provider generate failed, falling back", "provider", impl.Name(), "error", err)

	fallback := o.registry.Fallback()
	text, err = fallback.Generate(ctx, prompt, model)
	if err != nil {
		return "", fmt.Errorf("fallback %s generate: %w", fallback.Name(), err)
	}
	return text, nil
}

// StreamReply 返回片段序列。未知供应商在产出任何片段之前以 ErrUnknownProvider 失败。
// 上游流中途失败时，序列改为产出一次 GenerateReply 的完整结果后结束；
// 只有 GenerateReply 本身也失败时，错误才会出现在序列中。
func (o *Orchestrator) StreamReply(ctx context.Context, prompt, model string, provider Name) (Fragments, error) {
	if provider == "" {
		provider = DefaultProvider
	}
	impl, ok := o.registry.Lookup(provider)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownProvider, provider)
	}

	return func(yield func(string, error) bool) {
		for delta, err := range impl.Stream(ctx, prompt, model) {
			if err != nil {
				log.Errorw("provider stream failed, downgrading to single reply", "provider", impl.Name(), "error", err)
				text, gerr := o.GenerateReply(ctx, prompt, model, provider)
				if gerr != nil {
					yield("", gerr)
					return
				}
				if text != "" {
					yield(text, nil)
				}
				return
			}
			if !yield(delta, nil) {
				return
			}
		}
	}, nil
}
