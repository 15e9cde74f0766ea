package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"llm-chat-go/internal/model"
	"llm-chat-go/internal/repository"
)

type fakeIndex struct {
	results  []model.MessageSearchResult
	err      error
	lastSize int
}

func (f *fakeIndex) SearchMessages(_ context.Context, _ uint, _ string, size int) ([]model.MessageSearchResult, error) {
	f.lastSize = size
	return f.results, f.err
}

func seedSearch(t *testing.T) repository.MessageRepository {
	t.Helper()
	db := newTestDB(t)
	sessions := repository.NewSessionRepository(db)
	messages := repository.NewMessageRepository(db)
	s := &model.Session{UserID: 1, Title: "ops", Provider: "OPENAI", Model: "gpt-4o"}
	require.NoError(t, sessions.Create(s))
	require.NoError(t, messages.Create(&model.Message{SessionID: s.ID, Role: model.RoleUser, Content: "restart the pods"}))
	return messages
}

func TestSearchUsesIndexWhenHealthy(t *testing.T) {
	idx := &fakeIndex{results: []model.MessageSearchResult{{MessageID: "m1", Content: "from es"}}}
	svc := NewSearchService(idx, seedSearch(t))

	got, err := svc.SearchMessages(context.Background(), 1, "pods", 500)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "from es", got[0].Content)
	assert.Equal(t, maxSearchSize, idx.lastSize)

	_, err = svc.SearchMessages(context.Background(), 1, "pods", 0)
	require.NoError(t, err)
	assert.Equal(t, defaultSearchSize, idx.lastSize)
}

func TestSearchFallsBackToDatabase(t *testing.T) {
	idx := &fakeIndex{err: errors.New("cluster red")}
	svc := NewSearchService(idx, seedSearch(t))

	got, err := svc.SearchMessages(context.Background(), 1, "pods", 10)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "restart the pods", got[0].Content)
	assert.Equal(t, "ops", got[0].SessionTitle)
}

func TestSearchWithoutIndex(t *testing.T) {
	svc := NewSearchService(nil, seedSearch(t))

	got, err := svc.SearchMessages(context.Background(), 2, "pods", 10)
	require.NoError(t, err)
	assert.NotNil(t, got)
	assert.Empty(t, got)

	_, err = svc.SearchMessages(context.Background(), 1, "   ", 10)
	assert.ErrorIs(t, err, ErrValidation)
}
