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
	googleDefaultModel = "gemini-2.0-flash-exp"
	googleBaseURL      = "https://generativelanguage.googleapis.com/v1beta"
)

// GoogleProvider 调用 Gemini generateContent / streamGenerateContent 接口。
type GoogleProvider struct {
	apiKey       string
	baseURL      string
	defaultModel string
	client       *http.Client
}

type geminiPart struct {
	Text string `json:"text,omitempty"`
}

type geminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []geminiPart `json:"parts"`
}

type geminiRequest struct {
	Contents []geminiContent `json:"contents"`
}

type geminiResponse struct {
	Candidates []struct {
		Content struct {
			Parts []geminiPart `json:"parts"`
		} `json:"content"`
		FinishReason string `json:"finishReason"`
	} `json:"candidates"`
	Error *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Status  string `json:"status"`
	} `json:"error"`
}

// text 拼接首个候选的全部文本 part。
func (r geminiResponse) text() string {
	if len(r.Candidates) == 0 {
		return ""
	}
	var sb strings.Builder
	for _, part := range r.Candidates[0].Content.Parts {
		sb.WriteString(part.Text)
	}
	return sb.String()
}

// NewGoogleProvider 创建 Gemini 适配器。
func NewGoogleProvider(opts Options) *GoogleProvider {
	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = googleBaseURL
	}
	return &GoogleProvider{
		apiKey:       opts.APIKey,
		baseURL:      baseURL,
		defaultModel: modelOr(opts.DefaultModel, googleDefaultModel),
		client:       opts.httpClient(),
	}
}

func (p *GoogleProvider) Name() Name           { return Google }
func (p *GoogleProvider) IsAvailable() bool    { return p.apiKey != "" }
func (p *GoogleProvider) DefaultModel() string { return p.defaultModel }

func (p *GoogleProvider) post(ctx context.Context, prompt, model string, stream bool) (*http.Response, error) {
	body, err := json.Marshal(geminiRequest{
		Contents: []geminiContent{{Role: "user", Parts: []geminiPart{{Text: prompt}}}},
	})
	if err != nil {
		return nil, upstream(Google, "failed to marshal request: %w", err)
	}

	url := fmt.Sprintf("%s/models/%s:generateContent", p.baseURL, modelOr(model, p.defaultModel))
	if stream {
		url = fmt.Sprintf("%s/models/%s:streamGenerateContent?alt=sse", p.baseURL, modelOr(model, p.defaultModel))
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, upstream(Google, "failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-goog-api-key", p.apiKey)

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, upstream(Google, "failed to send request: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, upstream(Google, "API error (status %d): %s", resp.StatusCode, string(b))
	}
	return resp, nil
}

func (p *GoogleProvider) Generate(ctx context.Context, prompt, model string) (string, error) {
	if !p.IsAvailable() {
		return EchoText(prompt), nil
	}
	resp, err := p.post(ctx, prompt, model, false)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	var out geminiResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", upstream(Google, "failed to decode response: %w", err)
	}
	if out.Error != nil {
		return "", upstream(Google, "%s: %s", out.Error.Status, out.Error.Message)
	}
	return out.text(), nil
}

func (p *GoogleProvider) Stream(ctx context.Context, prompt, model string) Fragments {
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
				return
			}
			if err != nil {
				yield("", upstream(Google, "stream read error: %w", err))
				return
			}
			if data == "[DONE]" {
				return
			}

			var chunk geminiResponse
			if err := json.Unmarshal([]byte(data), &chunk); err != nil {
				continue
			}
			if chunk.Error != nil {
				yield("", upstream(Google, "stream error: %s: %s", chunk.Error.Status, chunk.Error.Message))
				return
			}
			if text := chunk.text(); text != "" {
				if !yield(text, nil) {
					return
				}
			}
			if len(chunk.Candidates) > 0 && chunk.Candidates[0].FinishReason == "SAFETY" {
				yield("", upstream(Google, "response blocked by safety filters"))
				return
			}
		}
	}
}
