package service

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"llm-chat-go/internal/model"
	"llm-chat-go/internal/repository"
	"llm-chat-go/pkg/llm"
)

type memArchives struct {
	objects map[string][]byte
	err     error
}

func (m *memArchives) PutArchive(_ context.Context, objectName string, data []byte, _ string) (string, error) {
	if m.err != nil {
		return "", m.err
	}
	m.objects[objectName] = data
	return "https://archives.local/" + objectName, nil
}

type sessionFixture struct {
	svc      SessionService
	folders  FolderService
	groups   GroupService
	messages repository.MessageRepository
	archives *memArchives
}

func newSessionFixture(t *testing.T) *sessionFixture {
	t.Helper()
	db := newTestDB(t)
	sessions := repository.NewSessionRepository(db)
	messages := repository.NewMessageRepository(db)
	folders := repository.NewFolderRepository(db)
	groups := repository.NewGroupRepository(db)
	archives := &memArchives{objects: map[string][]byte{}}
	return &sessionFixture{
		svc:      NewSessionService(sessions, messages, folders, groups, archives, SessionDefaults{}),
		folders:  NewFolderService(folders, sessions),
		groups:   NewGroupService(groups, sessions),
		messages: messages,
		archives: archives,
	}
}

func TestOptionalIDDistinguishesNullFromAbsent(t *testing.T) {
	var upd SessionUpdate
	require.NoError(t, json.Unmarshal([]byte(`{"title":"x"}`), &upd))
	assert.False(t, upd.FolderID.Set)

	require.NoError(t, json.Unmarshal([]byte(`{"folderId":null}`), &upd))
	assert.True(t, upd.FolderID.Set)
	assert.Nil(t, upd.FolderID.Value)

	upd = SessionUpdate{}
	require.NoError(t, json.Unmarshal([]byte(`{"groupId":"g1"}`), &upd))
	assert.True(t, upd.GroupID.Set)
	require.NotNil(t, upd.GroupID.Value)
	assert.Equal(t, "g1", *upd.GroupID.Value)

	assert.Error(t, json.Unmarshal([]byte(`{"groupId":5}`), &upd))
}

func TestCreateSessionDefaults(t *testing.T) {
	f := newSessionFixture(t)

	s, err := f.svc.Create(1, SessionCreate{})
	require.NoError(t, err)
	assert.Equal(t, model.DefaultSessionTitle, s.Title)
	assert.Equal(t, string(llm.DefaultProvider), s.Provider)
	assert.Equal(t, llm.DefaultModel, s.Model)

	s, err = f.svc.Create(1, SessionCreate{Title: " Trip ", Provider: "anthropic", Model: "claude-3-haiku-20240307"})
	require.NoError(t, err)
	assert.Equal(t, "Trip", s.Title)
	assert.Equal(t, string(llm.Anthropic), s.Provider)

	_, err = f.svc.Create(1, SessionCreate{Provider: "skynet"})
	assert.ErrorIs(t, err, ErrValidation)
}

func TestSessionReferencesMustBeOwned(t *testing.T) {
	f := newSessionFixture(t)
	foreign, err := f.folders.Create(2, "theirs")
	require.NoError(t, err)
	mine, err := f.groups.Create(1, "mine")
	require.NoError(t, err)

	_, err = f.svc.Create(1, SessionCreate{FolderID: foreign.ID})
	assert.ErrorIs(t, err, ErrNotFound)

	s, err := f.svc.Create(1, SessionCreate{GroupID: mine.ID})
	require.NoError(t, err)
	require.NotNil(t, s.GroupID)

	id := foreign.ID
	_, err = f.svc.Update(1, s.ID, SessionUpdate{FolderID: OptionalID{Set: true, Value: &id}})
	assert.ErrorIs(t, err, ErrNotFound)

	s, err = f.svc.Update(1, s.ID, SessionUpdate{GroupID: OptionalID{Set: true}})
	require.NoError(t, err)
	assert.Nil(t, s.GroupID)
}

func TestUpdateRejectsBlankFields(t *testing.T) {
	f := newSessionFixture(t)
	s, err := f.svc.Create(1, SessionCreate{})
	require.NoError(t, err)

	blank := "  "
	_, err = f.svc.Update(1, s.ID, SessionUpdate{Title: &blank})
	assert.ErrorIs(t, err, ErrValidation)
	_, err = f.svc.Update(1, s.ID, SessionUpdate{Model: &blank})
	assert.ErrorIs(t, err, ErrValidation)

	_, err = f.svc.Update(2, s.ID, SessionUpdate{})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRenderMarkdown(t *testing.T) {
	md := RenderMarkdown(&SessionExport{
		Session: model.Session{Title: "Plans", Model: "gpt-4o"},
		Messages: []model.Message{
			{Role: model.RoleUser, Content: "hi"},
			{Role: model.RoleAssistant, Content: "hello"},
		},
	})
	assert.Equal(t, "# Plans (model: gpt-4o)\n\n**user**: hi\n**assistant**: hello\n", md)
}

func TestArchiveUploadsExport(t *testing.T) {
	f := newSessionFixture(t)
	s, err := f.svc.Create(3, SessionCreate{Title: "keep"})
	require.NoError(t, err)
	require.NoError(t, f.messages.Create(&model.Message{SessionID: s.ID, Role: model.RoleUser, Content: "remember this"}))

	archive, err := f.svc.Archive(context.Background(), 3, s.ID)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(archive.ObjectName, "3/"+s.ID+"-"))
	assert.True(t, strings.HasSuffix(archive.ObjectName, ".json"))
	assert.Equal(t, "https://archives.local/"+archive.ObjectName, archive.URL)

	var stored SessionExport
	require.NoError(t, json.Unmarshal(f.archives.objects[archive.ObjectName], &stored))
	assert.Equal(t, "keep", stored.Session.Title)
	require.Len(t, stored.Messages, 1)
	assert.Equal(t, "remember this", stored.Messages[0].Content)

	_, err = f.svc.Archive(context.Background(), 4, s.ID)
	assert.ErrorIs(t, err, ErrNotFound)

	f.archives.err = errors.New("bucket gone")
	_, err = f.svc.Archive(context.Background(), 3, s.ID)
	assert.Error(t, err)
}

func TestFolderFavoriteAndDelete(t *testing.T) {
	f := newSessionFixture(t)
	folder, err := f.folders.Create(1, "inbox")
	require.NoError(t, err)
	s, err := f.svc.Create(1, SessionCreate{FolderID: folder.ID})
	require.NoError(t, err)

	toggled, err := f.folders.ToggleFavorite(1, folder.ID)
	require.NoError(t, err)
	assert.True(t, toggled.IsFavorite)

	_, err = f.folders.Create(1, " ")
	assert.ErrorIs(t, err, ErrValidation)

	require.NoError(t, f.folders.Delete(1, folder.ID))
	got, err := f.svc.Get(1, s.ID)
	require.NoError(t, err)
	assert.Nil(t, got.FolderID)

	assert.ErrorIs(t, f.folders.Delete(1, folder.ID), ErrNotFound)
}
