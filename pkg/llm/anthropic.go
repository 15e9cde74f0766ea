package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
)

const (
	anthropicDefaultModel = "claude-3-5-sonnet-20240620"
	anthropicBaseURL      = "https://api.anthropic.com/v1"
	anthropicVersion      = "2023-06-01"
)

// AnthropicProvider 调用 Anthropic Messages API。
type AnthropicProvider struct {
	apiKey       string
	baseURL      string
	defaultModel string
	maxTokens    int
	client       *http.Client
}

type anthropicMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type anthropicRequest struct {
	Model     string             `json:"model"`
	MaxTokens int                `json:"max_tokens"`
	Messages  []anthropicMessage `json:"messages"`
	Stream    bool               `json:"stream,omitempty"`
}

type anthropicResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
}

// anthropicEvent 覆盖流式事件中我们关心的字段。
type anthropicEvent struct {
	Type  string `json:"type"`
	Delta struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"delta"`
	Error *struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error"`
}

// NewAnthropicProvider 创建 Anthropic 适配器。
func NewAnthropicProvider(opts Options) *AnthropicProvider {
	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = anthropicBaseURL
	}
	return &AnthropicProvider{
		apiKey:       opts.APIKey,
		baseURL:      baseURL,
		defaultModel: modelOr(opts.DefaultModel, anthropicDefaultModel),
		maxTokens:    opts.maxTokens(),
		client:       opts.httpClient(),
	}
}

func (p *AnthropicProvider) Name() Name           { return Anthropic }
func (p *AnthropicProvider) IsAvailable() bool    { return p.apiKey != "" }
func (p *AnthropicProvider) DefaultModel() string { return p.defaultModel }

func (p *AnthropicProvider) post(ctx context.Context, prompt, model string, stream bool) (*http.Response, error) {
	body, err := json.Marshal(anthropicRequest{
		Model:     modelOr(model, p.defaultModel),
		MaxTokens: p.maxTokens,
		Messages:  []anthropicMessage{{Role: "user", Content: prompt}},
		Stream:    stream,
	})
	if err != nil {
		return nil, upstream(Anthropic, "failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/messages", bytes.NewReader(body))
	if err != nil {
		return nil, upstream(Anthropic, "failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", p.apiKey)
	req.Header.Set("anthropic-version", anthropicVersion)
	if stream {
		req.Header.Set("Accept", "text/event-stream")
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, upstream(Anthropic, "failed to send request: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, upstream(Anthropic, "API error (status %d): %s", resp.StatusCode, string(b))
	}
	return resp, nil
}

func (p *AnthropicProvider) Generate(ctx context.Context, prompt, model string) (string, error) {
	if !p.IsAvailable() {
		return EchoText(prompt), nil
	}
	resp, err := p.post(ctx, prompt, model, false)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	var out anthropicResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", upstream(Anthropic, "failed to decode response: %w", err)
	}
	if len(out.Content) == 0 {
		return "", nil
	}
	return out.Content[0].Text, nil
}

func (p *AnthropicProvider) Stream(ctx context.Context, prompt, model string) Fragments {
	if !p.IsAvailable() {
		return echoFragments(prompt)
	}
	return func(yield func(string, error) bool) {
		resp, err := p.post(ctx, prompt, model, true)
		if err != nil {
			yield("", err)
			return
		}
		defer resp.Body.Close()

		events := newSSEReader(resp.Body)
		for {
			data, err := events.Next()
			if errors.Is(err, io.EOF) {
				// 没有收到 message_stop 就断开，视为截断。
				yield("", upstream(Anthropic, "stream closed before message_stop"))
				return
			}
			if err != nil {
				yield("", upstream(Anthropic, "stream read error: %w", err))
				return
			}

			var event anthropicEvent
			if err := json.Unmarshal([]byte(data), &event); err != nil {
				continue
			}
			switch event.Type {
			case "content_block_delta":
				if event.Delta.Type != "text_delta" || event.Delta.Text == "" {
					continue
				}
				if !yield(event.Delta.Text, nil) {
					return
				}
			case "message_stop":
				return
			case "error":
				msg := data
				if event.Error != nil {
					msg = fmt.Sprintf("%s: %s", event.Error.Type, event.Error.Message)
				}
				yield("", upstream(Anthropic, "stream error: %s", msg))
				return
			}
		}
	}
}
