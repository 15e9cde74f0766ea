package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// 新建会话的默认值。
const (
	DefaultSessionTitle = "New Chat"
)

// Folder 用于收纳会话，可被收藏。
type Folder struct {
	ID         string    `gorm:"type:varchar(36);primaryKey" json:"id"`
	UserID     uint      `gorm:"index;not null" json:"userId"`
	Name       string    `gorm:"type:varchar(255);not null" json:"name"`
	IsFavorite bool      `gorm:"not null;default:false" json:"isFavorite"`
	CreatedAt  time.Time `gorm:"autoCreateTime" json:"createdAt"`
	UpdatedAt  time.Time `gorm:"autoUpdateTime" json:"updatedAt"`
}

func (Folder) TableName() string { return "folders" }

func (f *Folder) BeforeCreate(*gorm.DB) error {
	if f.ID == "" {
		f.ID = uuid.NewString()
	}
	return nil
}

// Group 是与文件夹平行的另一种分组方式。
type Group struct {
	ID        string    `gorm:"type:varchar(36);primaryKey" json:"id"`
	UserID    uint      `gorm:"index;not null" json:"userId"`
	Name      string    `gorm:"type:varchar(255);not null" json:"name"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"createdAt"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updatedAt"`
}

func (Group) TableName() string { return "chat_groups" }

func (g *Group) BeforeCreate(*gorm.DB) error {
	if g.ID == "" {
		g.ID = uuid.NewString()
	}
	return nil
}

// Session 即一次对话（conversation），记录所使用的供应商与模型。
// 删除会话不会级联删除其消息。
type Session struct {
	ID         string    `gorm:"type:varchar(36);primaryKey" json:"id"`
	UserID     uint      `gorm:"index;not null" json:"userId"`
	Title      string    `gorm:"type:varchar(255);not null" json:"title"`
	Provider   string    `gorm:"type:varchar(20);not null" json:"provider"`
	Model      string    `gorm:"type:varchar(100);not null" json:"model"`
	IsFavorite bool      `gorm:"not null;default:false" json:"isFavorite"`
	FolderID   *string   `gorm:"type:varchar(36);index" json:"folderId"`
	GroupID    *string   `gorm:"type:varchar(36);index" json:"groupId"`
	CreatedAt  time.Time `gorm:"autoCreateTime" json:"createdAt"`
	UpdatedAt  time.Time `gorm:"autoUpdateTime;index" json:"updatedAt"`
}

func (Session) TableName() string { return "chat_sessions" }

func (s *Session) BeforeCreate(*gorm.DB) error {
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	return nil
}
