package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"llm-chat-go/internal/model"
	"llm-chat-go/internal/repository"
	"llm-chat-go/pkg/llm"
)

// OptionalID 区分 JSON 中“未出现”、“显式 null”和“给定值”三种情况。
type OptionalID struct {
	Set   bool
	Value *string
}

func (o *OptionalID) UnmarshalJSON(b []byte) error {
	o.Set = true
	if string(b) == "null" {
		o.Value = nil
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	o.Value = &s
	return nil
}

// SessionCreate 是新建会话的可选参数。
type SessionCreate struct {
	Title    string `json:"title"`
	Provider string `json:"provider"`
	Model    string `json:"model"`
	FolderID string `json:"folderId"`
	GroupID  string `json:"groupId"`
}

// SessionUpdate 是部分更新，nil / 未出现的字段保持不变。
type SessionUpdate struct {
	Title      *string    `json:"title"`
	IsFavorite *bool      `json:"isFavorite"`
	Provider   *string    `json:"provider"`
	Model      *string    `json:"model"`
	FolderID   OptionalID `json:"folderId"`
	GroupID    OptionalID `json:"groupId"`
}

// SessionExport 是导出与归档的数据结构。
type SessionExport struct {
	Session  model.Session   `json:"session"`
	Messages []model.Message `json:"messages"`
}

// ArchiveStore 是对象存储的抽象，由 pkg/storage 实现。
type ArchiveStore interface {
	PutArchive(ctx context.Context, objectName string, data []byte, contentType string) (string, error)
}

// Archive 是一次归档的结果。
type Archive struct {
	ObjectName string `json:"objectName"`
	URL        string `json:"url"`
}

// SessionDefaults 是新建会话时使用的供应商与模型。
type SessionDefaults struct {
	Provider llm.Name
	Model    string
}

// SessionService 管理会话本身，不涉及消息生成。
type SessionService interface {
	List(userID uint) ([]model.Session, error)
	Get(userID uint, id string) (*model.Session, error)
	Create(userID uint, req SessionCreate) (*model.Session, error)
	Update(userID uint, id string, upd SessionUpdate) (*model.Session, error)
	// Delete 只删除会话记录，消息保留为孤儿数据。
	Delete(userID uint, id string) error
	Export(userID uint, id string) (*SessionExport, error)
	ExportMarkdown(userID uint, id string) (string, error)
	Archive(ctx context.Context, userID uint, id string) (*Archive, error)
}

type sessionService struct {
	sessionRepo repository.SessionRepository
	messageRepo repository.MessageRepository
	folderRepo  repository.FolderRepository
	groupRepo   repository.GroupRepository
	archives    ArchiveStore
	defaults    SessionDefaults
}

// NewSessionService 创建一个新的 SessionService 实例；archives 为 nil 时归档不可用。
func NewSessionService(
	sessionRepo repository.SessionRepository,
	messageRepo repository.MessageRepository,
	folderRepo repository.FolderRepository,
	groupRepo repository.GroupRepository,
	archives ArchiveStore,
	defaults SessionDefaults,
) SessionService {
	if defaults.Provider == "" {
		defaults.Provider = llm.DefaultProvider
	}
	if defaults.Model == "" {
		defaults.Model = llm.DefaultModel
	}
	return &sessionService{
		sessionRepo: sessionRepo,
		messageRepo: messageRepo,
		folderRepo:  folderRepo,
		groupRepo:   groupRepo,
		archives:    archives,
		defaults:    defaults,
	}
}

func (s *sessionService) List(userID uint) ([]model.Session, error) {
	sessions, err := s.sessionRepo.List(userID, repository.SessionFilter{})
	if err != nil {
		return nil, persistence(err)
	}
	return sessions, nil
}

func (s *sessionService) Get(userID uint, id string) (*model.Session, error) {
	session, err := s.sessionRepo.FindOwned(id, userID)
	if err != nil {
		return nil, notFoundOr(err, "session")
	}
	return session, nil
}

func parseProvider(raw string) (llm.Name, error) {
	name, ok := llm.ParseName(raw)
	if !ok {
		return "", validationf("invalid provider %q", raw)
	}
	return name, nil
}

func (s *sessionService) checkFolder(userID uint, id string) error {
	if _, err := s.folderRepo.FindOwned(id, userID); err != nil {
		return notFoundOr(err, "folder")
	}
	return nil
}

func (s *sessionService) checkGroup(userID uint, id string) error {
	if _, err := s.groupRepo.FindOwned(id, userID); err != nil {
		return notFoundOr(err, "group")
	}
	return nil
}

func (s *sessionService) Create(userID uint, req SessionCreate) (*model.Session, error) {
	session := &model.Session{
		UserID:   userID,
		Title:    strings.TrimSpace(req.Title),
		Provider: string(s.defaults.Provider),
		Model:    strings.TrimSpace(req.Model),
	}
	if session.Title == "" {
		session.Title = model.DefaultSessionTitle
	}
	if req.Provider != "" {
		name, err := parseProvider(req.Provider)
		if err != nil {
			return nil, err
		}
		session.Provider = string(name)
	}
	if session.Model == "" {
		session.Model = s.defaults.Model
	}
	if req.FolderID != "" {
		if err := s.checkFolder(userID, req.FolderID); err != nil {
			return nil, err
		}
		session.FolderID = &req.FolderID
	}
	if req.GroupID != "" {
		if err := s.checkGroup(userID, req.GroupID); err != nil {
			return nil, err
		}
		session.GroupID = &req.GroupID
	}

	if err := s.sessionRepo.Create(session); err != nil {
		return nil, persistence(err)
	}
	return session, nil
}

func (s *sessionService) Update(userID uint, id string, upd SessionUpdate) (*model.Session, error) {
	session, err := s.Get(userID, id)
	if err != nil {
		return nil, err
	}

	if upd.Title != nil {
		title := strings.TrimSpace(*upd.Title)
		if title == "" {
			return nil, validationf("title must not be empty")
		}
		session.Title = title
	}
	if upd.IsFavorite != nil {
		session.IsFavorite = *upd.IsFavorite
	}
	if upd.Provider != nil {
		name, err := parseProvider(*upd.Provider)
		if err != nil {
			return nil, err
		}
		session.Provider = string(name)
	}
	if upd.Model != nil {
		m := strings.TrimSpace(*upd.Model)
		if m == "" {
			return nil, validationf("model must not be empty")
		}
		session.Model = m
	}
	if upd.FolderID.Set {
		if v := upd.FolderID.Value; v != nil && *v != "" {
			if err := s.checkFolder(userID, *v); err != nil {
				return nil, err
			}
			session.FolderID = v
		} else {
			session.FolderID = nil
		}
	}
	if upd.GroupID.Set {
		if v := upd.GroupID.Value; v != nil && *v != "" {
			if err := s.checkGroup(userID, *v); err != nil {
				return nil, err
			}
			session.GroupID = v
		} else {
			session.GroupID = nil
		}
	}

	if err := s.sessionRepo.Update(session); err != nil {
		return nil, persistence(err)
	}
	return session, nil
}

func (s *sessionService) Delete(userID uint, id string) error {
	if _, err := s.Get(userID, id); err != nil {
		return err
	}
	if err := s.sessionRepo.Delete(id, userID); err != nil {
		return persistence(err)
	}
	return nil
}

func (s *sessionService) Export(userID uint, id string) (*SessionExport, error) {
	session, err := s.Get(userID, id)
	if err != nil {
		return nil, err
	}
	messages, err := s.messageRepo.ListBySession(id)
	if err != nil {
		return nil, persistence(err)
	}
	if messages == nil {
		messages = []model.Message{}
	}
	return &SessionExport{Session: *session, Messages: messages}, nil
}

// RenderMarkdown 把导出数据渲染为 Markdown：标题行、空行、每条消息一行。
func RenderMarkdown(data *SessionExport) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# %s (model: %s)\n\n", data.Session.Title, data.Session.Model)
	for _, m := range data.Messages {
		fmt.Fprintf(&b, "**%s**: %s\n", m.Role, m.Content)
	}
	return b.String()
}

func (s *sessionService) ExportMarkdown(userID uint, id string) (string, error) {
	data, err := s.Export(userID, id)
	if err != nil {
		return "", err
	}
	return RenderMarkdown(data), nil
}

// Archive 把 JSON 导出上传到对象存储，返回限时下载地址。
func (s *sessionService) Archive(ctx context.Context, userID uint, id string) (*Archive, error) {
	if s.archives == nil {
		return nil, fmt.Errorf("%w: archive storage is not configured", ErrUnavailable)
	}
	data, err := s.Export(userID, id)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetIndent("", "  ")
	if err := enc.Encode(data); err != nil {
		return nil, err
	}

	objectName := fmt.Sprintf("%d/%s-%s.json", userID, id, time.Now().UTC().Format("20060102T150405Z"))
	url, err := s.archives.PutArchive(ctx, objectName, buf.Bytes(), "application/json")
	if err != nil {
		return nil, err
	}
	return &Archive{ObjectName: objectName, URL: url}, nil
}
