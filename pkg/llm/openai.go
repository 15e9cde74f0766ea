package llm

import (
	"context"
	"errors"
	"io"

	"github.com/sashabaranov/go-openai"
)

const (
	openAIDefaultModel  = "gpt-3.5-turbo"
	openAISystemPrompt  = "You are a helpful assistant."
	openAIDefaultTemper = 0.7
)

// OpenAIProvider 通过 go-openai 调用 Chat Completions 接口。
type OpenAIProvider struct {
	client       *openai.Client
	defaultModel string
	temperature  float32
	maxTokens    int
}

// NewOpenAIProvider 创建 OpenAI 适配器；未提供 APIKey 时 client 为 nil。
func NewOpenAIProvider(opts Options) *OpenAIProvider {
	p := &OpenAIProvider{
		defaultModel: modelOr(opts.DefaultModel, openAIDefaultModel),
		temperature:  openAIDefaultTemper,
	}
	if opts.Temperature > 0 {
		p.temperature = float32(opts.Temperature)
	}
	if opts.MaxTokens > 0 {
		p.maxTokens = opts.MaxTokens
	}
	if opts.APIKey == "" {
		return p
	}
	cfg := openai.DefaultConfig(opts.APIKey)
	if opts.BaseURL != "" {
		cfg.BaseURL = opts.BaseURL
	}
	if opts.HTTPClient != nil {
		cfg.HTTPClient = opts.HTTPClient
	}
	p.client = openai.NewClientWithConfig(cfg)
	return p
}

func (p *OpenAIProvider) Name() Name           { return OpenAI }
func (p *OpenAIProvider) IsAvailable() bool    { return p.client != nil }
func (p *OpenAIProvider) DefaultModel() string { return p.defaultModel }

func (p *OpenAIProvider) request(prompt, model string, stream bool) openai.ChatCompletionRequest {
	return openai.ChatCompletionRequest{
		Model: modelOr(model, p.defaultModel),
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: openAISystemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
		Temperature: p.temperature,
		MaxTokens:   p.maxTokens,
		Stream:      stream,
	}
}

func (p *OpenAIProvider) Generate(ctx context.Context, prompt, model string) (string, error) {
	if p.client == nil {
		return EchoText(prompt), nil
	}
	resp, err := p.client.CreateChatCompletion(ctx, p.request(prompt, model, false))
	if err != nil {
		return "", &UpstreamError{Provider: OpenAI, Err: err}
	}
	if len(resp.Choices) == 0 {
		return "", nil
	}
	return resp.Choices[0].Message.Content, nil
}

func (p *OpenAIProvider) Stream(ctx context.Context, prompt, model string) Fragments {
	if p.client == nil {
		return echoFragments(prompt)
	}
	return func(yield func(string, error) bool) {
		stream, err := p.client.CreateChatCompletionStream(ctx, p.request(prompt, model, true))
		if err != nil {
			yield("", &UpstreamError{Provider: OpenAI, Err: err})
			return
		}
		defer stream.Close()

		for {
			chunk, err := stream.Recv()
			if errors.Is(err, io.EOF) {
				return
			}
			if err != nil {
				yield("", &UpstreamError{Provider: OpenAI, Err: err})
				return
			}
			if len(chunk.Choices) == 0 {
				continue
			}
			delta := chunk.Choices[0].Delta.Content
			if delta == "" {
				continue
			}
			if !yield(delta, nil) {
				return
			}
		}
	}
}
