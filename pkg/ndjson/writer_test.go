package ndjson

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriterFramesAndHeaders(t *testing.T) {
	rec := httptest.NewRecorder()
	w := NewWriter(context.Background(), rec)
	w.Open()

	assert.Equal(t, Delivered, w.Send(map[string]string{"delta": "a"}))
	assert.Equal(t, Delivered, w.Send(map[string]any{"done": true, "messageId": "m1"}))

	assert.Equal(t, ContentType, rec.Header().Get("Content-Type"))
	assert.Equal(t, "no-cache", rec.Header().Get("Cache-Control"))
	assert.Equal(t, "no", rec.Header().Get("X-Accel-Buffering"))
	assert.True(t, rec.Flushed)
	assert.Equal(t, "{\"delta\":\"a\"}\n{\"done\":true,\"messageId\":\"m1\"}\n", rec.Body.String())
}

func TestWriterCanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	rec := httptest.NewRecorder()
	w := NewWriter(ctx, rec)
	w.Open()
	require.Equal(t, Delivered, w.Send("first"))

	cancel()
	assert.Equal(t, ChannelClosed, w.Send("second"))
	assert.True(t, w.Closed())
	assert.Equal(t, "\"first\"\n", rec.Body.String())
}

type brokenWriter struct {
	http.ResponseWriter
	writes int
}

func (b *brokenWriter) Write(p []byte) (int, error) {
	b.writes++
	return 0, errors.New("broken pipe")
}

func TestWriterStaysClosedAfterWriteFailure(t *testing.T) {
	bw := &brokenWriter{ResponseWriter: httptest.NewRecorder()}
	w := NewWriter(context.Background(), bw)
	assert.Equal(t, ChannelClosed, w.Send("x"))
	assert.Equal(t, ChannelClosed, w.Send("y"))
	assert.Equal(t, 1, bw.writes)
	assert.Equal(t, "channel_closed", ChannelClosed.String())
}
