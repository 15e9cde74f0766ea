// Package es 提供了与 Elasticsearch 交互的客户端功能。
package es

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"
	"llm-chat-go/internal/model"
	"llm-chat-go/pkg/log"
)

// Config 是 Elasticsearch 的连接参数。
type Config struct {
	Addresses []string
	Username  string
	Password  string
	IndexName string
	Transport http.RoundTripper
}

// Client 封装消息索引的读写。
type Client struct {
	es    *elasticsearch.Client
	index string
}

// NewClient 初始化 Elasticsearch 客户端，不会主动访问集群。
func NewClient(cfg Config) (*Client, error) {
	transport := cfg.Transport
	if transport == nil {
		transport = &http.Transport{
			TLSClientConfig: &tls.Config{InsecureSkipVerify: true},
		}
	}
	client, err := elasticsearch.NewClient(elasticsearch.Config{
		Addresses: cfg.Addresses,
		Username:  cfg.Username,
		Password:  cfg.Password,
		Transport: transport,
	})
	if err != nil {
		return nil, err
	}
	return &Client{es: client, index: cfg.IndexName}, nil
}

// messageMapping 对 content 做全文索引，其余字段用于过滤。
const messageMapping = `{
	"mappings": {
		"properties": {
			"message_id":    { "type": "keyword" },
			"session_id":    { "type": "keyword" },
			"session_title": { "type": "text" },
			"user_id":       { "type": "long" },
			"role":          { "type": "keyword" },
			"content":       { "type": "text" },
			"provider":      { "type": "keyword" },
			"model":         { "type": "keyword" },
			"created_at":    { "type": "date" }
		}
	}
}`

// EnsureIndex 检查索引是否存在，如果不存在则创建它。
func (c *Client) EnsureIndex(ctx context.Context) error {
	res, err := c.es.Indices.Exists([]string{c.index}, c.es.Indices.Exists.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("检查索引是否存在时出错: %w", err)
	}
	res.Body.Close()
	if res.StatusCode == http.StatusOK {
		log.Infof("索引 '%s' 已存在", c.index)
		return nil
	}
	if res.StatusCode != http.StatusNotFound {
		return fmt.Errorf("检查索引是否存在时收到意外的状态码: %d", res.StatusCode)
	}

	res, err = c.es.Indices.Create(
		c.index,
		c.es.Indices.Create.WithBody(strings.NewReader(messageMapping)),
		c.es.Indices.Create.WithContext(ctx),
	)
	if err != nil {
		return fmt.Errorf("创建索引 '%s' 失败: %w", c.index, err)
	}
	defer res.Body.Close()
	if res.IsError() {
		log.Errorf("创建索引 '%s' 时 Elasticsearch 返回错误: %s", c.index, res.String())
		return errors.New("创建索引时 Elasticsearch 返回错误")
	}
	log.Infof("索引 '%s' 创建成功", c.index)
	return nil
}

// IndexMessage 以消息 ID 作为文档 ID 写入，重复写入是幂等的。
func (c *Client) IndexMessage(ctx context.Context, doc model.EsMessageDocument) error {
	body, err := json.Marshal(doc)
	if err != nil {
		return err
	}
	req := esapi.IndexRequest{
		Index:      c.index,
		DocumentID: doc.MessageID,
		Body:       bytes.NewReader(body),
	}
	res, err := req.Do(ctx, c.es)
	if err != nil {
		return err
	}
	defer res.Body.Close()
	if res.IsError() {
		log.Errorf("索引消息到 Elasticsearch 出错: %s", res.String())
		return errors.New("failed to index message")
	}
	return nil
}

type searchResponse struct {
	Hits struct {
		Hits []struct {
			Score  float64                 `json:"_score"`
			Source model.EsMessageDocument `json:"_source"`
		} `json:"hits"`
	} `json:"hits"`
}

// SearchMessages 在 userID 的消息中做全文检索。
func (c *Client) SearchMessages(ctx context.Context, userID uint, query string, size int) ([]model.MessageSearchResult, error) {
	var buf bytes.Buffer
	q := map[string]any{
		"size": size,
		"query": map[string]any{
			"bool": map[string]any{
				"must":   []any{map[string]any{"match": map[string]any{"content": query}}},
				"filter": []any{map[string]any{"term": map[string]any{"user_id": userID}}},
			},
		},
	}
	if err := json.NewEncoder(&buf).Encode(q); err != nil {
		return nil, err
	}

	res, err := c.es.Search(
		c.es.Search.WithContext(ctx),
		c.es.Search.WithIndex(c.index),
		c.es.Search.WithBody(&buf),
	)
	if err != nil {
		return nil, err
	}
	defer res.Body.Close()
	if res.IsError() {
		b, _ := io.ReadAll(res.Body)
		return nil, fmt.Errorf("elasticsearch returned an error: %s %s", res.Status(), string(b))
	}

	var out searchResponse
	if err := json.NewDecoder(res.Body).Decode(&out); err != nil {
		return nil, err
	}
	results := make([]model.MessageSearchResult, 0, len(out.Hits.Hits))
	for _, hit := range out.Hits.Hits {
		results = append(results, model.MessageSearchResult{
			MessageID:    hit.Source.MessageID,
			SessionID:    hit.Source.SessionID,
			SessionTitle: hit.Source.SessionTitle,
			Role:         hit.Source.Role,
			Content:      hit.Source.Content,
			Score:        hit.Score,
			CreatedAt:    hit.Source.CreatedAt,
		})
	}
	return results, nil
}
