package handler

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"llm-chat-go/internal/model"
	"llm-chat-go/internal/realtime"
	"llm-chat-go/internal/repository"
	"llm-chat-go/internal/service"
	"llm-chat-go/pkg/database"
	"llm-chat-go/pkg/llm"
	"llm-chat-go/pkg/ndjson"
	"llm-chat-go/pkg/token"
)

type memTokenRepo struct {
	mu      sync.Mutex
	revoked map[string]bool
}

func (r *memTokenRepo) Revoke(_ context.Context, jti string, _ time.Duration) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.revoked[jti] = true
	return nil
}

func (r *memTokenRepo) IsRevoked(_ context.Context, jti string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.revoked[jti], nil
}

type testApp struct {
	router *gin.Engine
	hub    *realtime.Hub
}

func newTestApp(t *testing.T) *testApp {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db, err := database.Open(database.DriverSQLite, ":memory:")
	require.NoError(t, err)
	require.NoError(t, repository.AutoMigrate(db))

	userRepo := repository.NewUserRepository(db)
	folderRepo := repository.NewFolderRepository(db)
	groupRepo := repository.NewGroupRepository(db)
	sessionRepo := repository.NewSessionRepository(db)
	messageRepo := repository.NewMessageRepository(db)

	jwtManager := token.NewJWTManager("test-secret", 15*time.Minute, 24*time.Hour)
	userService := service.NewUserService(userRepo, &memTokenRepo{revoked: map[string]bool{}}, jwtManager)

	// 不提供任何凭证，所有供应商都处于 echo 模式
	registry := llm.NewRegistry(llm.Credentials{})
	orchestrator := llm.NewOrchestrator(registry)
	defaults := service.SessionDefaults{Provider: llm.DefaultProvider, Model: llm.DefaultModel}

	sessionService := service.NewSessionService(sessionRepo, messageRepo, folderRepo, groupRepo, nil, defaults)
	hub := realtime.NewHub(sessionService)
	chatService := service.NewChatService(sessionRepo, messageRepo, orchestrator, hub, nil, defaults)

	r := gin.New()
	RegisterRoutes(r, Handlers{
		Auth:        NewAuthHandler(userService),
		Folder:      NewFolderHandler(service.NewFolderService(folderRepo, sessionRepo)),
		Group:       NewGroupHandler(service.NewGroupService(groupRepo, sessionRepo)),
		Session:     NewSessionHandler(sessionService),
		Message:     NewMessageHandler(service.NewMessageService(sessionRepo, messageRepo, hub), chatService),
		Model:       NewModelHandler(registry),
		Search:      NewSearchHandler(service.NewSearchService(nil, messageRepo)),
		Chat:        NewChatHandler(hub, userService),
		UserService: userService,
	})
	return &testApp{router: r, hub: hub}
}

type envelope struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func (a *testApp) do(t *testing.T, method, path, accessToken string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if accessToken != "" {
		req.Header.Set("Authorization", "Bearer "+accessToken)
	}
	w := httptest.NewRecorder()
	a.router.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var env envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env), w.Body.String())
	var out T
	require.NoError(t, json.Unmarshal(env.Data, &out))
	return out
}

func (a *testApp) register(t *testing.T, email string) string {
	t.Helper()
	w := a.do(t, http.MethodPost, "/api/v1/auth/register", "", gin.H{"email": email, "password": "secret123"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	return decode[authResponse](t, w).Token
}

func (a *testApp) newSession(t *testing.T, accessToken string) model.Session {
	t.Helper()
	w := a.do(t, http.MethodPost, "/api/v1/sessions", accessToken, gin.H{})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	return decode[model.Session](t, w)
}

func (a *testApp) messages(t *testing.T, accessToken, sessionID string) []model.Message {
	t.Helper()
	w := a.do(t, http.MethodGet, "/api/v1/messages/"+sessionID, accessToken, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	return decode[[]model.Message](t, w)
}

type streamFrame struct {
	Delta     *string `json:"delta"`
	Error     string  `json:"error"`
	Done      bool    `json:"done"`
	MessageID string  `json:"messageId"`
}

func parseFrames(t *testing.T, body string) []streamFrame {
	t.Helper()
	var frames []streamFrame
	sc := bufio.NewScanner(strings.NewReader(body))
	for sc.Scan() {
		var f streamFrame
		require.NoError(t, json.Unmarshal(sc.Bytes(), &f), sc.Text())
		frames = append(frames, f)
	}
	require.NoError(t, sc.Err())
	return frames
}

func TestStreamPersistsExactlyOneTurn(t *testing.T) {
	app := newTestApp(t)
	tok := app.register(t, "alice@example.com")
	s := app.newSession(t, tok)

	prompt := "hello  there world"
	w := app.do(t, http.MethodPost, "/api/v1/messages/stream", tok, gin.H{"conversationId": s.ID, "prompt": prompt})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, ndjson.ContentType, w.Header().Get("Content-Type"))
	assert.Equal(t, "no-cache", w.Header().Get("Cache-Control"))

	frames := parseFrames(t, w.Body.String())
	require.NotEmpty(t, frames)
	last := frames[len(frames)-1]
	assert.True(t, last.Done)
	require.NotEmpty(t, last.MessageID)

	var deltas strings.Builder
	for _, f := range frames[:len(frames)-1] {
		require.NotNil(t, f.Delta)
		assert.Empty(t, f.Error)
		deltas.WriteString(*f.Delta)
	}
	assert.Equal(t, llm.EchoText(prompt), deltas.String())

	msgs := app.messages(t, tok, s.ID)
	require.Len(t, msgs, 2)
	byRole := map[string]model.Message{}
	for _, m := range msgs {
		byRole[m.Role] = m
	}
	assert.Equal(t, prompt, byRole[model.RoleUser].Content)
	assert.Equal(t, last.MessageID, byRole[model.RoleAssistant].ID)
	assert.Equal(t, deltas.String(), byRole[model.RoleAssistant].Content)
}

func TestStreamEmptyPromptIsRejected(t *testing.T) {
	app := newTestApp(t)
	tok := app.register(t, "bob@example.com")
	s := app.newSession(t, tok)

	w := app.do(t, http.MethodPost, "/api/v1/messages/stream", tok, gin.H{"sessionId": s.ID, "prompt": "   "})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.NotEqual(t, ndjson.ContentType, w.Header().Get("Content-Type"))
	assert.Empty(t, app.messages(t, tok, s.ID))
}

func TestStreamForeignSessionIsNotFound(t *testing.T) {
	app := newTestApp(t)
	owner := app.register(t, "owner@example.com")
	intruder := app.register(t, "intruder@example.com")
	s := app.newSession(t, owner)

	w := app.do(t, http.MethodPost, "/api/v1/messages/stream", intruder, gin.H{"sessionId": s.ID, "prompt": "hi"})
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.NotEqual(t, ndjson.ContentType, w.Header().Get("Content-Type"))
	assert.Empty(t, app.messages(t, owner, s.ID))
}

func TestStreamRequiresAuthentication(t *testing.T) {
	app := newTestApp(t)
	w := app.do(t, http.MethodPost, "/api/v1/messages/stream", "", gin.H{"sessionId": "x", "prompt": "hi"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestCreateMessageOwnership(t *testing.T) {
	app := newTestApp(t)
	owner := app.register(t, "o@example.com")
	other := app.register(t, "x@example.com")
	s := app.newSession(t, owner)

	w := app.do(t, http.MethodPost, "/api/v1/messages", other, gin.H{"sessionId": s.ID, "role": "user", "content": "hi"})
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = app.do(t, http.MethodPost, "/api/v1/messages", owner, gin.H{"sessionId": "missing", "role": "user", "content": "hi"})
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = app.do(t, http.MethodPost, "/api/v1/messages", owner, gin.H{"sessionId": s.ID, "role": "system", "content": "hi"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = app.do(t, http.MethodPost, "/api/v1/messages", owner, gin.H{"sessionId": s.ID, "role": "user", "content": "hi"})
	require.Equal(t, http.StatusCreated, w.Code)
	assert.Len(t, app.messages(t, owner, s.ID), 1)
}

func TestModelCatalogIsStable(t *testing.T) {
	app := newTestApp(t)

	first := app.do(t, http.MethodGet, "/api/v1/ai/models", "", nil)
	second := app.do(t, http.MethodGet, "/api/v1/ai/models", "", nil)
	require.Equal(t, http.StatusOK, first.Code)
	assert.JSONEq(t, first.Body.String(), second.Body.String())

	w := app.do(t, http.MethodGet, "/api/v1/ai/models?provider=google", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	got := decode[struct {
		Provider llm.Name        `json:"provider"`
		Models   []llm.ModelInfo `json:"models"`
	}](t, w)
	assert.Equal(t, llm.Google, got.Provider)
	assert.NotEmpty(t, got.Models)

	w = app.do(t, http.MethodGet, "/api/v1/ai/models?provider=nope", "", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestProvidersReportsEchoMode(t *testing.T) {
	app := newTestApp(t)
	w := app.do(t, http.MethodGet, "/api/v1/ai/providers", "", nil)
	require.Equal(t, http.StatusOK, w.Code)

	report := decode[[]providerStatus](t, w)
	require.Len(t, report, len(llm.Names))
	for _, p := range report {
		if p.Name == llm.Echo {
			assert.True(t, p.Available)
		} else {
			assert.False(t, p.Available, p.Name)
		}
	}
}

func TestAuthLifecycle(t *testing.T) {
	app := newTestApp(t)
	tok := app.register(t, "carol@example.com")

	w := app.do(t, http.MethodPost, "/api/v1/auth/register", "", gin.H{"email": "CAROL@example.com", "password": "secret123"})
	assert.Equal(t, http.StatusConflict, w.Code)

	w = app.do(t, http.MethodPost, "/api/v1/auth/login", "", gin.H{"email": "carol@example.com", "password": "wrong-pass"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = app.do(t, http.MethodPost, "/api/v1/auth/login", "", gin.H{"email": "carol@example.com", "password": "secret123"})
	require.Equal(t, http.StatusOK, w.Code)
	login := decode[authResponse](t, w)

	w = app.do(t, http.MethodPost, "/api/v1/auth/refresh", "", gin.H{"refreshToken": login.RefreshToken})
	require.Equal(t, http.StatusOK, w.Code)
	// 轮换后旧 refresh token 不能再用
	w = app.do(t, http.MethodPost, "/api/v1/auth/refresh", "", gin.H{"refreshToken": login.RefreshToken})
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = app.do(t, http.MethodGet, "/api/v1/auth/me", tok, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "carol@example.com", decode[model.User](t, w).Email)

	w = app.do(t, http.MethodPost, "/api/v1/auth/logout", tok, nil)
	require.Equal(t, http.StatusOK, w.Code)
	w = app.do(t, http.MethodGet, "/api/v1/auth/me", tok, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	// query 参数形式的 token
	w = app.do(t, http.MethodGet, "/api/v1/auth/me?token="+login.Token, "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestSessionOrganisation(t *testing.T) {
	app := newTestApp(t)
	tok := app.register(t, "dave@example.com")
	s := app.newSession(t, tok)
	assert.Equal(t, model.DefaultSessionTitle, s.Title)
	assert.Equal(t, string(llm.DefaultProvider), s.Provider)

	w := app.do(t, http.MethodPost, "/api/v1/folders", tok, gin.H{"name": "work"})
	require.Equal(t, http.StatusCreated, w.Code)
	folder := decode[model.Folder](t, w)

	w = app.do(t, http.MethodPatch, "/api/v1/sessions/"+s.ID+"/folder", tok, gin.H{"folderId": folder.ID})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = app.do(t, http.MethodGet, "/api/v1/folders/"+folder.ID+"/sessions", tok, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode[[]model.Session](t, w), 1)

	w = app.do(t, http.MethodPatch, "/api/v1/sessions/"+s.ID+"/folder", tok, gin.H{"folderId": nil})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Nil(t, decode[model.Session](t, w).FolderID)

	w = app.do(t, http.MethodPatch, "/api/v1/sessions/"+s.ID+"/folder", tok, gin.H{})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = app.do(t, http.MethodPatch, "/api/v1/sessions/"+s.ID+"/favorite", tok, gin.H{"isFavorite": true})
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, decode[model.Session](t, w).IsFavorite)

	w = app.do(t, http.MethodPatch, "/api/v1/sessions/"+s.ID, tok, gin.H{"provider": "martian"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = app.do(t, http.MethodPatch, "/api/v1/folders/"+folder.ID+"/favorite", tok, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, decode[model.Folder](t, w).IsFavorite)
}

func TestSessionExport(t *testing.T) {
	app := newTestApp(t)
	tok := app.register(t, "erin@example.com")
	s := app.newSession(t, tok)
	w := app.do(t, http.MethodPost, "/api/v1/messages/stream", tok, gin.H{"sessionId": s.ID, "prompt": "ping"})
	require.Equal(t, http.StatusOK, w.Code)

	w = app.do(t, http.MethodGet, "/api/v1/sessions/"+s.ID+"/export.md", tok, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "text/markdown; charset=utf-8", w.Header().Get("Content-Type"))
	assert.Contains(t, w.Body.String(), "**user**: ping\n")
	assert.Contains(t, w.Body.String(), "**assistant**: Echo: ping\n")

	w = app.do(t, http.MethodGet, "/api/v1/sessions/"+s.ID+"/export.json", tok, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var export service.SessionExport
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &export))
	assert.Equal(t, s.ID, export.Session.ID)
	assert.Len(t, export.Messages, 2)

	// 未配置对象存储
	w = app.do(t, http.MethodPost, "/api/v1/sessions/"+s.ID+"/archive", tok, nil)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestSessionDeleteHidesConversation(t *testing.T) {
	app := newTestApp(t)
	tok := app.register(t, "frank@example.com")
	s := app.newSession(t, tok)
	w := app.do(t, http.MethodPost, "/api/v1/messages/stream", tok, gin.H{"sessionId": s.ID, "prompt": "orphan check"})
	require.Equal(t, http.StatusOK, w.Code)

	w = app.do(t, http.MethodDelete, "/api/v1/sessions/"+s.ID, tok, nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = app.do(t, http.MethodGet, "/api/v1/sessions/"+s.ID, tok, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	w = app.do(t, http.MethodGet, "/api/v1/messages/"+s.ID, tok, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestSearchMessages(t *testing.T) {
	app := newTestApp(t)
	tok := app.register(t, "gina@example.com")
	other := app.register(t, "hank@example.com")
	s := app.newSession(t, tok)
	w := app.do(t, http.MethodPost, "/api/v1/messages/stream", tok, gin.H{"sessionId": s.ID, "prompt": "kubernetes rollout"})
	require.Equal(t, http.StatusOK, w.Code)

	w = app.do(t, http.MethodGet, "/api/v1/search/messages?query=rollout", tok, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode[[]model.MessageSearchResult](t, w), 2)

	w = app.do(t, http.MethodGet, "/api/v1/search/messages?query=rollout", other, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, decode[[]model.MessageSearchResult](t, w))

	w = app.do(t, http.MethodGet, "/api/v1/search/messages?query=", tok, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func readEnvelope(t *testing.T, conn *websocket.Conn) realtime.Envelope {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	var env realtime.Envelope
	require.NoError(t, conn.ReadJSON(&env))
	return env
}

func TestWebsocketReceivesStreamEvents(t *testing.T) {
	app := newTestApp(t)
	srv := httptest.NewServer(app.router)
	defer srv.Close()

	tok := app.register(t, "ivy@example.com")
	intruder := app.register(t, "jack@example.com")
	s := app.newSession(t, tok)

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/chat/"
	_, resp, err := websocket.DefaultDialer.Dial(wsURL+"not-a-token", nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	foreign, _, err := websocket.DefaultDialer.Dial(wsURL+intruder, nil)
	require.NoError(t, err)
	defer foreign.Close()
	require.NoError(t, foreign.WriteJSON(gin.H{"type": "join", "sessionId": s.ID}))
	assert.Equal(t, "error", readEnvelope(t, foreign).Type)

	conn, _, err := websocket.DefaultDialer.Dial(wsURL+tok, nil)
	require.NoError(t, err)
	defer conn.Close()
	require.NoError(t, conn.WriteJSON(gin.H{"type": "join", "sessionId": s.ID}))
	joined := readEnvelope(t, conn)
	require.Equal(t, "joined", joined.Type)
	assert.Equal(t, 1, app.hub.RoomSize(s.ID))

	w := app.do(t, http.MethodPost, "/api/v1/messages/stream", tok, gin.H{"sessionId": s.ID, "prompt": "hi there"})
	require.Equal(t, http.StatusOK, w.Code)

	var seen []string
	var streamed strings.Builder
	for {
		env := readEnvelope(t, conn)
		assert.Equal(t, s.ID, env.SessionID)
		seen = append(seen, env.Type)
		if env.Type == service.EventMessageStream {
			data := env.Data.(map[string]any)
			streamed.WriteString(data["delta"].(string))
		}
		if env.Type == service.EventMessageDone {
			break
		}
	}
	assert.Equal(t, []string{service.EventMessageNew, service.EventMessageNew}, seen[:2])
	assert.Contains(t, seen, service.EventMessageUpdate)
	assert.Equal(t, llm.EchoText("hi there"), streamed.String())
}
