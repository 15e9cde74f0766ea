package service

import (
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"
	"llm-chat-go/internal/model"
	"llm-chat-go/internal/repository"
)

// MessageCreate 是手动写入一条消息的请求。
type MessageCreate struct {
	SessionID string `json:"sessionId"`
	Role      string `json:"role"`
	Content   string `json:"content"`
}

// MessageService 负责消息的读取与手动写入，不触发模型回复。
type MessageService interface {
	List(userID uint, sessionID string) ([]model.Message, error)
	Create(userID uint, req MessageCreate) (*model.Message, error)
}

type messageService struct {
	sessionRepo repository.SessionRepository
	messageRepo repository.MessageRepository
	events      EventPublisher
}

// NewMessageService 创建一个新的 MessageService 实例。
func NewMessageService(sessionRepo repository.SessionRepository, messageRepo repository.MessageRepository, events EventPublisher) MessageService {
	if events == nil {
		events = nopPublisher{}
	}
	return &messageService{sessionRepo: sessionRepo, messageRepo: messageRepo, events: events}
}

// List 按时间升序返回会话消息，会话不属于 userID 时返回 ErrNotFound。
func (s *messageService) List(userID uint, sessionID string) ([]model.Message, error) {
	if _, err := s.sessionRepo.FindOwned(sessionID, userID); err != nil {
		return nil, notFoundOr(err, "session")
	}
	messages, err := s.messageRepo.ListBySession(sessionID)
	if err != nil {
		return nil, persistence(err)
	}
	if messages == nil {
		messages = []model.Message{}
	}
	return messages, nil
}

// Create 区分“会话不存在”(ErrNotFound) 与“会话属于他人”(ErrForbidden)。
func (s *messageService) Create(userID uint, req MessageCreate) (*model.Message, error) {
	if strings.TrimSpace(req.SessionID) == "" {
		return nil, validationf("sessionId is required")
	}
	if !model.IsValidRole(req.Role) {
		return nil, validationf("role must be one of user, assistant")
	}
	if strings.TrimSpace(req.Content) == "" {
		return nil, validationf("content is required")
	}

	session, err := s.sessionRepo.FindByID(req.SessionID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: session not found", ErrNotFound)
		}
		return nil, persistence(err)
	}
	if session.UserID != userID {
		return nil, fmt.Errorf("%w: session belongs to another user", ErrForbidden)
	}

	message := &model.Message{SessionID: req.SessionID, Role: req.Role, Content: req.Content}
	if err := s.messageRepo.Create(message); err != nil {
		return nil, persistence(err)
	}
	s.events.Publish(message.SessionID, EventMessageNew, message)
	return message, nil
}
