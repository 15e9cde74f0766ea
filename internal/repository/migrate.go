package repository

import (
	"gorm.io/gorm"
	"llm-chat-go/internal/model"
)

// AutoMigrate 创建或更新全部表结构。
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&model.User{},
		&model.Folder{},
		&model.Group{},
		&model.Session{},
		&model.Message{},
	)
}
