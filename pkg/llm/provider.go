// Package llm provides the provider adapters, the registry that resolves them
// by name, and the orchestrator that applies the fallback policy on top.
package llm

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"regexp"
	"strings"
)

// Name 是供应商的符号名称，取值为固定枚举。
type Name string

const (
	OpenAI    Name = "OPENAI"
	Google    Name = "GOOGLE"
	Anthropic Name = "ANTHROPIC"
	Echo      Name = "ECHO"
)

// DefaultProvider 与 DefaultModel 在调用方未指定时使用。
const (
	DefaultProvider = OpenAI
	DefaultModel    = "gpt-3.5-turbo"
)

// Names 按注册顺序列出全部供应商，ECHO 始终在最后。
var Names = []Name{OpenAI, Google, Anthropic, Echo}

// ParseName 大小写不敏感地解析供应商名称。
func ParseName(s string) (Name, bool) {
	n := Name(strings.ToUpper(strings.TrimSpace(s)))
	for _, known := range Names {
		if n == known {
			return n, true
		}
	}
	return "", false
}

// Fragments 是一次流式生成产生的文本片段序列。
// 序列是惰性的、有限的且不可重放；中途失败以非 nil error 的形式产出一次后结束。
type Fragments = iter.Seq2[string, error]

// Provider 是所有供应商适配器的统一能力。
// 实例在启动时构造一次，之后只读，可被并发请求共享。
type Provider interface {
	Name() Name
	// IsAvailable 报告构造时是否提供了凭证。
	IsAvailable() bool
	DefaultModel() string
	Generate(ctx context.Context, prompt, model string) (string, error)
	Stream(ctx context.Context, prompt, model string) Fragments
}

// ErrUnknownProvider 表示注册表中不存在请求的供应商。
var ErrUnknownProvider = errors.New("unknown provider")

// UpstreamError 表示适配器调用上游失败或流被中途截断。
type UpstreamError struct {
	Provider Name
	Err      error
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("%s upstream error: %v", e.Provider, e.Err)
}

func (e *UpstreamError) Unwrap() error { return e.Err }

func upstream(name Name, format string, args ...any) error {
	return &UpstreamError{Provider: name, Err: fmt.Errorf(format, args...)}
}

const echoMarker = "Echo: "

// EchoText 返回无凭证模式下的确定性回显文本。
func EchoText(prompt string) string {
	return echoMarker + prompt
}

var echoToken = regexp.MustCompile(`\s+|\S+`)

// echoFragments 把回显文本拆成空白段与非空白段，拼接后与 EchoText 完全一致。
func echoFragments(prompt string) Fragments {
	return func(yield func(string, error) bool) {
		for _, part := range echoToken.FindAllString(EchoText(prompt), -1) {
			if !yield(part, nil) {
				return
			}
		}
	}
}

func modelOr(model, fallback string) string {
	if strings.TrimSpace(model) == "" {
		return fallback
	}
	return model
}
