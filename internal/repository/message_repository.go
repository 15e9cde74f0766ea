package repository

import (
	"strings"
	"time"

	"gorm.io/gorm"
	"llm-chat-go/internal/model"
)

// MessageRepository 定义消息的持久化操作。
type MessageRepository interface {
	// Create 写入消息并刷新所属会话的 updated_at。
	Create(message *model.Message) error
	FindByID(id string) (*model.Message, error)
	// UpdateContent 单次写入消息全文。
	UpdateContent(id, content string) error
	ListBySession(sessionID string) ([]model.Message, error)
	// Search 在 userID 拥有的会话中做子串匹配，按时间倒序。
	Search(userID uint, query string, limit int) ([]model.MessageSearchResult, error)
}

type messageRepository struct {
	db *gorm.DB
}

// NewMessageRepository 创建一个新的 MessageRepository 实例。
func NewMessageRepository(db *gorm.DB) MessageRepository {
	return &messageRepository{db: db}
}

func (r *messageRepository) Create(message *model.Message) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(message).Error; err != nil {
			return err
		}
		return tx.Model(&model.Session{}).
			Where("id = ?", message.SessionID).
			Update("updated_at", time.Now()).Error
	})
}

func (r *messageRepository) FindByID(id string) (*model.Message, error) {
	var message model.Message
	if err := r.db.Where("id = ?", id).First(&message).Error; err != nil {
		return nil, err
	}
	return &message, nil
}

func (r *messageRepository) UpdateContent(id, content string) error {
	res := r.db.Model(&model.Message{}).Where("id = ?", id).Update("content", content)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// ListBySession 按创建时间升序返回消息。
func (r *messageRepository) ListBySession(sessionID string) ([]model.Message, error) {
	var messages []model.Message
	err := r.db.Where("session_id = ?", sessionID).Order("created_at asc").Find(&messages).Error
	return messages, err
}

func (r *messageRepository) Search(userID uint, query string, limit int) ([]model.MessageSearchResult, error) {
	var results []model.MessageSearchResult
	pattern := "%" + escapeLike(query) + "%"
	err := r.db.Table("chat_messages AS m").
		Select("m.id AS message_id, m.session_id, s.title AS session_title, m.role, m.content, m.created_at").
		Joins("JOIN chat_sessions AS s ON s.id = m.session_id").
		Where("s.user_id = ? AND m.content LIKE ? ESCAPE '!'", userID, pattern).
		Order("m.created_at desc").
		Limit(limit).
		Scan(&results).Error
	return results, err
}

func escapeLike(s string) string {
	return strings.NewReplacer("!", "!!", "%", "!%", "_", "!_").Replace(s)
}
