package service

import (
	"strings"

	"llm-chat-go/internal/model"
	"llm-chat-go/internal/repository"
)

// FolderUpdate 描述一次部分更新，nil 字段保持不变。
type FolderUpdate struct {
	Name       *string `json:"name"`
	IsFavorite *bool   `json:"isFavorite"`
}

// FolderService 管理用户的文件夹。
type FolderService interface {
	Create(userID uint, name string) (*model.Folder, error)
	List(userID uint) ([]model.Folder, error)
	Get(userID uint, id string) (*model.Folder, error)
	Update(userID uint, id string, upd FolderUpdate) (*model.Folder, error)
	ToggleFavorite(userID uint, id string) (*model.Folder, error)
	Delete(userID uint, id string) error
	ListSessions(userID uint, id string) ([]model.Session, error)
}

type folderService struct {
	folderRepo  repository.FolderRepository
	sessionRepo repository.SessionRepository
}

// NewFolderService 创建一个新的 FolderService 实例。
func NewFolderService(folderRepo repository.FolderRepository, sessionRepo repository.SessionRepository) FolderService {
	return &folderService{folderRepo: folderRepo, sessionRepo: sessionRepo}
}

func (s *folderService) Create(userID uint, name string) (*model.Folder, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, validationf("name is required")
	}
	folder := &model.Folder{UserID: userID, Name: name}
	if err := s.folderRepo.Create(folder); err != nil {
		return nil, persistence(err)
	}
	return folder, nil
}

func (s *folderService) List(userID uint) ([]model.Folder, error) {
	folders, err := s.folderRepo.ListByUser(userID)
	if err != nil {
		return nil, persistence(err)
	}
	return folders, nil
}

func (s *folderService) Get(userID uint, id string) (*model.Folder, error) {
	folder, err := s.folderRepo.FindOwned(id, userID)
	if err != nil {
		return nil, notFoundOr(err, "folder")
	}
	return folder, nil
}

func (s *folderService) Update(userID uint, id string, upd FolderUpdate) (*model.Folder, error) {
	folder, err := s.Get(userID, id)
	if err != nil {
		return nil, err
	}
	if upd.Name != nil {
		name := strings.TrimSpace(*upd.Name)
		if name == "" {
			return nil, validationf("name must not be empty")
		}
		folder.Name = name
	}
	if upd.IsFavorite != nil {
		folder.IsFavorite = *upd.IsFavorite
	}
	if err := s.folderRepo.Update(folder); err != nil {
		return nil, persistence(err)
	}
	return folder, nil
}

func (s *folderService) ToggleFavorite(userID uint, id string) (*model.Folder, error) {
	folder, err := s.Get(userID, id)
	if err != nil {
		return nil, err
	}
	folder.IsFavorite = !folder.IsFavorite
	if err := s.folderRepo.Update(folder); err != nil {
		return nil, persistence(err)
	}
	return folder, nil
}

func (s *folderService) Delete(userID uint, id string) error {
	if _, err := s.Get(userID, id); err != nil {
		return err
	}
	if err := s.folderRepo.Delete(id, userID); err != nil {
		return persistence(err)
	}
	return nil
}

func (s *folderService) ListSessions(userID uint, id string) ([]model.Session, error) {
	if _, err := s.Get(userID, id); err != nil {
		return nil, err
	}
	sessions, err := s.sessionRepo.List(userID, repository.SessionFilter{FolderID: id})
	if err != nil {
		return nil, persistence(err)
	}
	return sessions, nil
}
