// Package pipeline 定义了回复完成后的后处理流程：全文索引与会话标题生成。
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"gorm.io/gorm"
	"llm-chat-go/internal/model"
	"llm-chat-go/internal/repository"
	"llm-chat-go/pkg/llm"
	"llm-chat-go/pkg/log"
	"llm-chat-go/pkg/tasks"
)

const (
	maxTitleRunes = 60
	maxTitleWords = 6
	titlePrompt   = "Generate a short title (at most 6 words) for a conversation that starts with the message below. Reply with the title only.\n\n%s"
)

// MessageIndexer 把消息写入全文索引，由 pkg/es 实现。
type MessageIndexer interface {
	IndexMessage(ctx context.Context, doc model.EsMessageDocument) error
}

// TitleGenerator 生成会话标题，*llm.Orchestrator 实现了它。
type TitleGenerator interface {
	GenerateReply(ctx context.Context, prompt, model string, provider llm.Name) (string, error)
}

// ProviderLookup 用于判断会话的供应商是否配置了凭证。
type ProviderLookup interface {
	Lookup(name llm.Name) (llm.Provider, bool)
}

// Processor 封装了后处理的所有依赖和逻辑，实现 tasks.Processor。
type Processor struct {
	sessionRepo repository.SessionRepository
	messageRepo repository.MessageRepository
	indexer     MessageIndexer
	titles      TitleGenerator
	providers   ProviderLookup
}

// NewProcessor 创建一个新的 Processor 实例；indexer 为 nil 时跳过索引。
func NewProcessor(
	sessionRepo repository.SessionRepository,
	messageRepo repository.MessageRepository,
	indexer MessageIndexer,
	titles TitleGenerator,
	providers ProviderLookup,
) *Processor {
	return &Processor{
		sessionRepo: sessionRepo,
		messageRepo: messageRepo,
		indexer:     indexer,
		titles:      titles,
		providers:   providers,
	}
}

// Process 是后处理的主函数，重复执行是安全的。
func (p *Processor) Process(ctx context.Context, task tasks.CompletionTask) error {
	log.Infof("[Processor] 开始处理完成任务, session=%s, message=%s", task.SessionID, task.AssistantMessageID)

	session, err := p.sessionRepo.FindByID(task.SessionID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		log.Warnf("[Processor] 会话 %s 已删除，跳过", task.SessionID)
		return nil
	}
	if err != nil {
		return fmt.Errorf("查询会话失败: %w", err)
	}

	userMsg, err := p.messageRepo.FindByID(task.UserMessageID)
	if err != nil {
		return fmt.Errorf("查询用户消息失败: %w", err)
	}
	assistantMsg, err := p.messageRepo.FindByID(task.AssistantMessageID)
	if err != nil {
		return fmt.Errorf("查询助手消息失败: %w", err)
	}

	// 1. 写入全文索引
	if p.indexer != nil {
		for _, m := range []*model.Message{userMsg, assistantMsg} {
			if err := p.indexer.IndexMessage(ctx, toDocument(session, m)); err != nil {
				return fmt.Errorf("索引消息 %s 失败: %w", m.ID, err)
			}
		}
	}

	// 2. 为默认标题的会话生成标题
	if session.Title == model.DefaultSessionTitle {
		title := p.generateTitle(ctx, session, userMsg.Content)
		if title != model.DefaultSessionTitle {
			if _, err := p.sessionRepo.ReplaceTitle(session.ID, model.DefaultSessionTitle, title); err != nil {
				return fmt.Errorf("更新会话标题失败: %w", err)
			}
			log.Infof("[Processor] 会话 %s 标题更新为 '%s'", session.ID, title)
		}
	}
	return nil
}

func toDocument(session *model.Session, m *model.Message) model.EsMessageDocument {
	return model.EsMessageDocument{
		MessageID:    m.ID,
		SessionID:    session.ID,
		SessionTitle: session.Title,
		UserID:       session.UserID,
		Role:         m.Role,
		Content:      m.Content,
		Provider:     session.Provider,
		Model:        session.Model,
		CreatedAt:    m.CreatedAt,
	}
}

// generateTitle 只在供应商配置了凭证时调用模型，否则截取提问的前几个词。
func (p *Processor) generateTitle(ctx context.Context, session *model.Session, prompt string) string {
	name := llm.Name(session.Provider)
	if p.titles != nil && p.providers != nil {
		if impl, ok := p.providers.Lookup(name); ok && impl.IsAvailable() && name != llm.Echo {
			text, err := p.titles.GenerateReply(ctx, fmt.Sprintf(titlePrompt, prompt), session.Model, name)
			if err != nil {
				log.Warnf("[Processor] 标题生成失败，使用提问截取: %v", err)
			} else if !strings.HasPrefix(text, "Echo: ") {
				return CleanTitle(text)
			}
		}
	}
	return TitleFromPrompt(prompt)
}

// CleanTitle 去掉模型输出两侧的引号与空白，并限制长度。
func CleanTitle(title string) string {
	title = strings.TrimSpace(title)
	if i := strings.IndexByte(title, '\n'); i >= 0 {
		title = title[:i]
	}
	title = strings.TrimSpace(strings.Trim(title, "\"'`*# "))
	title = truncateRunes(title, maxTitleRunes)
	if title == "" {
		return model.DefaultSessionTitle
	}
	return title
}

// TitleFromPrompt 取提问的前几个词作为标题。
func TitleFromPrompt(prompt string) string {
	words := strings.Fields(prompt)
	if len(words) > maxTitleWords {
		words = words[:maxTitleWords]
	}
	return CleanTitle(strings.Join(words, " "))
}

func truncateRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	r := []rune(s)
	return strings.TrimSpace(string(r[:n])) + "..."
}
