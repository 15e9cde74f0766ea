package llm

import "context"

// EchoProvider 是始终可用的兜底供应商，不访问任何网络。
type EchoProvider struct{}

// NewEchoProvider 创建兜底供应商。
func NewEchoProvider() *EchoProvider { return &EchoProvider{} }

func (*EchoProvider) Name() Name           { return Echo }
func (*EchoProvider) IsAvailable() bool    { return true }
func (*EchoProvider) DefaultModel() string { return "echo" }

func (*EchoProvider) Generate(_ context.Context, prompt, _ string) (string, error) {
	return EchoText(prompt), nil
}

func (*EchoProvider) Stream(_ context.Context, prompt, _ string) Fragments {
	return echoFragments(prompt)
}
