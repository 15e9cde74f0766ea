package service

import (
	"context"
	"strings"

	"llm-chat-go/internal/model"
	"llm-chat-go/internal/repository"
	"llm-chat-go/pkg/log"
)

// 搜索结果数量的默认值与上限。
const (
	defaultSearchSize = 20
	maxSearchSize     = 100
)

// MessageIndex 是全文索引的查询能力，由 pkg/es 实现。
type MessageIndex interface {
	SearchMessages(ctx context.Context, userID uint, query string, size int) ([]model.MessageSearchResult, error)
}

// SearchService 接口定义了消息搜索操作。
type SearchService interface {
	SearchMessages(ctx context.Context, userID uint, query string, size int) ([]model.MessageSearchResult, error)
}

type searchService struct {
	index       MessageIndex
	messageRepo repository.MessageRepository
}

// NewSearchService 创建一个新的 SearchService 实例；index 为 nil 时使用数据库子串匹配。
func NewSearchService(index MessageIndex, messageRepo repository.MessageRepository) SearchService {
	return &searchService{index: index, messageRepo: messageRepo}
}

// SearchMessages 优先查询 Elasticsearch，失败时退回数据库查询。
func (s *searchService) SearchMessages(ctx context.Context, userID uint, query string, size int) ([]model.MessageSearchResult, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, validationf("query is required")
	}
	if size <= 0 {
		size = defaultSearchSize
	}
	if size > maxSearchSize {
		size = maxSearchSize
	}

	if s.index != nil {
		results, err := s.index.SearchMessages(ctx, userID, query, size)
		if err == nil {
			return results, nil
		}
		log.Errorf("[SearchService] Elasticsearch 查询失败，退回数据库查询: %v", err)
	}

	results, err := s.messageRepo.Search(userID, query, size)
	if err != nil {
		return nil, persistence(err)
	}
	if results == nil {
		results = []model.MessageSearchResult{}
	}
	return results, nil
}
