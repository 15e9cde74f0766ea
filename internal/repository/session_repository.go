package repository

import (
	"time"

	"gorm.io/gorm"
	"llm-chat-go/internal/model"
)

// SessionFilter 限定列表查询的范围，零值表示不过滤。
type SessionFilter struct {
	FolderID string
	GroupID  string
}

// SessionRepository 定义会话的持久化操作。
type SessionRepository interface {
	Create(session *model.Session) error
	List(userID uint, filter SessionFilter) ([]model.Session, error)
	// FindOwned 只返回属于 userID 的会话，其余情况一律 gorm.ErrRecordNotFound。
	FindOwned(id string, userID uint) (*model.Session, error)
	FindByID(id string) (*model.Session, error)
	Update(session *model.Session) error
	// ReplaceTitle 仅当标题仍为 from 时改为 to，不刷新 updated_at。
	ReplaceTitle(id, from, to string) (bool, error)
	Delete(id string, userID uint) error
}

type sessionRepository struct {
	db *gorm.DB
}

// NewSessionRepository 创建一个新的 SessionRepository 实例。
func NewSessionRepository(db *gorm.DB) SessionRepository {
	return &sessionRepository{db: db}
}

func (r *sessionRepository) Create(session *model.Session) error {
	return r.db.Create(session).Error
}

// List 按最近更新时间倒序返回会话。
func (r *sessionRepository) List(userID uint, filter SessionFilter) ([]model.Session, error) {
	var sessions []model.Session
	q := r.db.Where("user_id = ?", userID)
	if filter.FolderID != "" {
		q = q.Where("folder_id = ?", filter.FolderID)
	}
	if filter.GroupID != "" {
		q = q.Where("group_id = ?", filter.GroupID)
	}
	err := q.Order("updated_at desc").Find(&sessions).Error
	return sessions, err
}

func (r *sessionRepository) FindOwned(id string, userID uint) (*model.Session, error) {
	var session model.Session
	if err := r.db.Where("id = ? AND user_id = ?", id, userID).First(&session).Error; err != nil {
		return nil, err
	}
	return &session, nil
}

func (r *sessionRepository) FindByID(id string) (*model.Session, error) {
	var session model.Session
	if err := r.db.Where("id = ?", id).First(&session).Error; err != nil {
		return nil, err
	}
	return &session, nil
}

// Update 保存全部字段，包括被置空的 folder_id / group_id。
func (r *sessionRepository) Update(session *model.Session) error {
	session.UpdatedAt = time.Now()
	return r.db.Save(session).Error
}

func (r *sessionRepository) ReplaceTitle(id, from, to string) (bool, error) {
	res := r.db.Model(&model.Session{}).Where("id = ? AND title = ?", id, from).UpdateColumn("title", to)
	return res.RowsAffected > 0, res.Error
}

// Delete 只删除会话本身，消息保留。
func (r *sessionRepository) Delete(id string, userID uint) error {
	return r.db.Where("id = ? AND user_id = ?", id, userID).Delete(&model.Session{}).Error
}
