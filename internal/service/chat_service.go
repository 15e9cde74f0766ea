package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"llm-chat-go/internal/model"
	"llm-chat-go/internal/repository"
	"llm-chat-go/pkg/llm"
	"llm-chat-go/pkg/log"
	"llm-chat-go/pkg/ndjson"
	"llm-chat-go/pkg/tasks"
)

// Replier 是编排器对外的能力，*llm.Orchestrator 实现了它。
type Replier interface {
	GenerateReply(ctx context.Context, prompt, model string, provider llm.Name) (string, error)
	StreamReply(ctx context.Context, prompt, model string, provider llm.Name) (llm.Fragments, error)
}

// FrameSink 接收流式帧。写入从不返回错误，只报告客户端是否仍然可达。
type FrameSink interface {
	Send(frame any) ndjson.Delivery
}

// Turn 是一次已通过校验、已落库用户消息与占位消息的对话轮次。
type Turn struct {
	Session     *model.Session
	UserMessage *model.Message
	Placeholder *model.Message
	Prompt      string
}

// RelayResult 汇总一次转发的结果。
type RelayResult struct {
	MessageID   string
	Content     string
	StreamError bool
	ClientGone  bool
}

// ChatService 实现流式回复的完整生命周期。
type ChatService interface {
	// StartTurn 校验参数与会话归属，并同步写入用户消息与空的助手占位消息。
	// 返回错误时没有任何副作用发生在响应通道上。
	StartTurn(ctx context.Context, userID uint, sessionID, prompt string) (*Turn, error)
	// Relay 把片段逐个写入 sink 并累积，最后一次性写入占位消息并发送结束帧。
	// 客户端断开不会中断生成，结束帧总是最后一帧。
	Relay(ctx context.Context, turn *Turn, sink FrameSink) RelayResult
}

type chatService struct {
	sessionRepo repository.SessionRepository
	messageRepo repository.MessageRepository
	replier     Replier
	events      EventPublisher
	completions tasks.Publisher
	defaults    SessionDefaults
}

// NewChatService 创建一个新的 ChatService 实例；events 与 completions 可以为 nil。
func NewChatService(
	sessionRepo repository.SessionRepository,
	messageRepo repository.MessageRepository,
	replier Replier,
	events EventPublisher,
	completions tasks.Publisher,
	defaults SessionDefaults,
) ChatService {
	if events == nil {
		events = nopPublisher{}
	}
	if defaults.Provider == "" {
		defaults.Provider = llm.DefaultProvider
	}
	if defaults.Model == "" {
		defaults.Model = llm.DefaultModel
	}
	return &chatService{
		sessionRepo: sessionRepo,
		messageRepo: messageRepo,
		replier:     replier,
		events:      events,
		completions: completions,
		defaults:    defaults,
	}
}

func (s *chatService) StartTurn(ctx context.Context, userID uint, sessionID, prompt string) (*Turn, error) {
	if strings.TrimSpace(sessionID) == "" || strings.TrimSpace(prompt) == "" {
		return nil, validationf("sessionId and prompt are required")
	}
	session, err := s.sessionRepo.FindOwned(sessionID, userID)
	if err != nil {
		return nil, notFoundOr(err, "session")
	}

	userMsg := &model.Message{SessionID: sessionID, Role: model.RoleUser, Content: prompt}
	if err := s.messageRepo.Create(userMsg); err != nil {
		return nil, persistence(err)
	}
	s.events.Publish(sessionID, EventMessageNew, userMsg)

	placeholder := &model.Message{SessionID: sessionID, Role: model.RoleAssistant, Content: ""}
	if err := s.messageRepo.Create(placeholder); err != nil {
		return nil, persistence(err)
	}
	s.events.Publish(sessionID, EventMessageNew, placeholder)

	return &Turn{Session: session, UserMessage: userMsg, Placeholder: placeholder, Prompt: prompt}, nil
}

// target 返回会话配置的供应商与模型，未设置时使用默认值。
func (s *chatService) target(session *model.Session) (llm.Name, string) {
	provider := llm.Name(session.Provider)
	if provider == "" {
		provider = s.defaults.Provider
	}
	modelName := session.Model
	if modelName == "" {
		modelName = s.defaults.Model
	}
	return provider, modelName
}

func (s *chatService) Relay(ctx context.Context, turn *Turn, sink FrameSink) RelayResult {
	// 生成不随客户端断开而取消。
	genCtx := context.WithoutCancel(ctx)
	provider, modelName := s.target(turn.Session)
	sessionID, messageID := turn.Session.ID, turn.Placeholder.ID
	log.Infof("stream start sid=%s provider=%s model=%s", sessionID, provider, modelName)

	res := RelayResult{MessageID: messageID}
	var acc strings.Builder
	send := func(frame any) {
		if res.ClientGone {
			return
		}
		if sink.Send(frame) == ndjson.ChannelClosed {
			res.ClientGone = true
			log.Infof("client left stream sid=%s, continuing generation", sessionID)
		}
	}

	err := s.drain(genCtx, turn.Prompt, modelName, provider, func(delta string) {
		acc.WriteString(delta)
		send(model.DeltaFrame{Delta: delta})
		s.events.Publish(sessionID, EventMessageStream, StreamEvent{MessageID: messageID, Delta: delta})
	})
	if err != nil {
		res.StreamError = true
		log.Errorf("stream error sid=%s: %v", sessionID, err)
		send(model.ErrorFrame{Error: model.StreamErrorCode})
	}

	res.Content = acc.String()
	persisted := true
	if uerr := s.messageRepo.UpdateContent(messageID, res.Content); uerr != nil {
		persisted = false
		log.Errorf("finalize placeholder failed sid=%s mid=%s: %v", sessionID, messageID, persistence(uerr))
	}
	send(model.DoneFrame{Done: true, MessageID: messageID})
	log.Infof("stream done sid=%s mid=%s chars=%d", sessionID, messageID, len(res.Content))

	final := *turn.Placeholder
	final.Content = res.Content
	s.events.Publish(sessionID, EventMessageUpdate, final)
	s.events.Publish(sessionID, EventMessageDone, DoneEvent{MessageID: messageID})

	if persisted && s.completions != nil {
		task := tasks.CompletionTask{
			SessionID:          sessionID,
			UserID:             turn.Session.UserID,
			UserMessageID:      turn.UserMessage.ID,
			AssistantMessageID: messageID,
			Provider:           string(provider),
			Model:              modelName,
			CompletedAt:        time.Now(),
		}
		if perr := s.completions.PublishCompletion(genCtx, task); perr != nil {
			log.Errorf("publish completion task failed mid=%s: %v", messageID, perr)
		}
	}
	return res
}

// drain 消费片段序列；编排器未能吸收的错误以及 panic 都作为返回值。
func (s *chatService) drain(ctx context.Context, prompt, modelName string, provider llm.Name, onDelta func(string)) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic while streaming: %v", r)
		}
	}()

	frags, err := s.replier.StreamReply(ctx, prompt, modelName, provider)
	if err != nil {
		return err
	}
	for delta, ferr := range frags {
		if ferr != nil {
			return ferr
		}
		onDelta(delta)
	}
	return nil
}
