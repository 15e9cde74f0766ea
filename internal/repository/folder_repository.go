package repository

import (
	"gorm.io/gorm"
	"llm-chat-go/internal/model"
)

// FolderRepository 定义文件夹的持久化操作，所有查询都限定在所有者范围内。
type FolderRepository interface {
	Create(folder *model.Folder) error
	ListByUser(userID uint) ([]model.Folder, error)
	FindOwned(id string, userID uint) (*model.Folder, error)
	Update(folder *model.Folder) error
	// Delete 先把所有者会话上的 folder_id 置空，再删除文件夹。
	Delete(id string, userID uint) error
}

type folderRepository struct {
	db *gorm.DB
}

// NewFolderRepository 创建一个新的 FolderRepository 实例。
func NewFolderRepository(db *gorm.DB) FolderRepository {
	return &folderRepository{db: db}
}

func (r *folderRepository) Create(folder *model.Folder) error {
	return r.db.Create(folder).Error
}

func (r *folderRepository) ListByUser(userID uint) ([]model.Folder, error) {
	var folders []model.Folder
	err := r.db.Where("user_id = ?", userID).Order("created_at asc").Find(&folders).Error
	return folders, err
}

func (r *folderRepository) FindOwned(id string, userID uint) (*model.Folder, error) {
	var folder model.Folder
	if err := r.db.Where("id = ? AND user_id = ?", id, userID).First(&folder).Error; err != nil {
		return nil, err
	}
	return &folder, nil
}

func (r *folderRepository) Update(folder *model.Folder) error {
	return r.db.Save(folder).Error
}

func (r *folderRepository) Delete(id string, userID uint) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&model.Session{}).
			Where("folder_id = ? AND user_id = ?", id, userID).
			Update("folder_id", nil).Error; err != nil {
			return err
		}
		return tx.Where("id = ? AND user_id = ?", id, userID).Delete(&model.Folder{}).Error
	})
}
