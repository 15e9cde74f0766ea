package service

import (
	"strings"

	"llm-chat-go/internal/model"
	"llm-chat-go/internal/repository"
)

// GroupService 管理用户的会话分组。
type GroupService interface {
	Create(userID uint, name string) (*model.Group, error)
	List(userID uint) ([]model.Group, error)
	Get(userID uint, id string) (*model.Group, error)
	Rename(userID uint, id, name string) (*model.Group, error)
	Delete(userID uint, id string) error
	ListSessions(userID uint, id string) ([]model.Session, error)
}

type groupService struct {
	groupRepo   repository.GroupRepository
	sessionRepo repository.SessionRepository
}

// NewGroupService 创建一个新的 GroupService 实例。
func NewGroupService(groupRepo repository.GroupRepository, sessionRepo repository.SessionRepository) GroupService {
	return &groupService{groupRepo: groupRepo, sessionRepo: sessionRepo}
}

func (s *groupService) Create(userID uint, name string) (*model.Group, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, validationf("name is required")
	}
	group := &model.Group{UserID: userID, Name: name}
	if err := s.groupRepo.Create(group); err != nil {
		return nil, persistence(err)
	}
	return group, nil
}

func (s *groupService) List(userID uint) ([]model.Group, error) {
	groups, err := s.groupRepo.ListByUser(userID)
	if err != nil {
		return nil, persistence(err)
	}
	return groups, nil
}

func (s *groupService) Get(userID uint, id string) (*model.Group, error) {
	group, err := s.groupRepo.FindOwned(id, userID)
	if err != nil {
		return nil, notFoundOr(err, "group")
	}
	return group, nil
}

func (s *groupService) Rename(userID uint, id, name string) (*model.Group, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, validationf("name is required")
	}
	group, err := s.Get(userID, id)
	if err != nil {
		return nil, err
	}
	group.Name = name
	if err := s.groupRepo.Update(group); err != nil {
		return nil, persistence(err)
	}
	return group, nil
}

func (s *groupService) Delete(userID uint, id string) error {
	if _, err := s.Get(userID, id); err != nil {
		return err
	}
	if err := s.groupRepo.Delete(id, userID); err != nil {
		return persistence(err)
	}
	return nil
}

func (s *groupService) ListSessions(userID uint, id string) ([]model.Session, error) {
	if _, err := s.Get(userID, id); err != nil {
		return nil, err
	}
	sessions, err := s.sessionRepo.List(userID, repository.SessionFilter{GroupID: id})
	if err != nil {
		return nil, persistence(err)
	}
	return sessions, nil
}
