package repository

import (
	"gorm.io/gorm"
	"llm-chat-go/internal/model"
)

// GroupRepository 定义分组的持久化操作。
type GroupRepository interface {
	Create(group *model.Group) error
	ListByUser(userID uint) ([]model.Group, error)
	FindOwned(id string, userID uint) (*model.Group, error)
	Update(group *model.Group) error
	Delete(id string, userID uint) error
}

type groupRepository struct {
	db *gorm.DB
}

// NewGroupRepository 创建一个新的 GroupRepository 实例。
func NewGroupRepository(db *gorm.DB) GroupRepository {
	return &groupRepository{db: db}
}

func (r *groupRepository) Create(group *model.Group) error {
	return r.db.Create(group).Error
}

func (r *groupRepository) ListByUser(userID uint) ([]model.Group, error) {
	var groups []model.Group
	err := r.db.Where("user_id = ?", userID).Order("created_at asc").Find(&groups).Error
	return groups, err
}

func (r *groupRepository) FindOwned(id string, userID uint) (*model.Group, error) {
	var group model.Group
	if err := r.db.Where("id = ? AND user_id = ?", id, userID).First(&group).Error; err != nil {
		return nil, err
	}
	return &group, nil
}

func (r *groupRepository) Update(group *model.Group) error {
	return r.db.Save(group).Error
}

// Delete 与文件夹相同：先解除会话引用，再删除分组。
func (r *groupRepository) Delete(id string, userID uint) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&model.Session{}).
			Where("group_id = ? AND user_id = ?", id, userID).
			Update("group_id", nil).Error; err != nil {
			return err
		}
		return tx.Where("id = ? AND user_id = ?", id, userID).Delete(&model.Group{}).Error
	})
}
