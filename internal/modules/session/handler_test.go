package session

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/moody-app/moody/internal/middleware"
	"github.com/moody-app/moody/internal/modules/entry"
	"github.com/moody-app/moody/internal/modules/journal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRouter(h *harness) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	auth := func(c *gin.Context) {
		c.Set(middleware.ContextKeyUserID, "u1")
		c.Next()
	}
	api := r.Group("/api")
	NewHandler(h.reg).RegisterRoutes(api, auth)
	entry.NewHandler(EntryResolver(h.reg), nil).RegisterRoutes(api, auth)
	journal.NewHandler(JournalResolver(h.reg)).RegisterRoutes(api, auth)
	return r
}

func TestEventStreamUntilSignOut(t *testing.T) {
	h := newHarness(t)
	r := newRouter(h)

	w := httptest.NewRecorder()
	done := make(chan struct{})
	go func() {
		defer close(done)
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/session/events", nil))
	}()

	require.Eventually(t, func() bool {
		s, ok := h.reg.Lookup("u1")
		return ok && s.streams.Load() == 1
	}, time.Second, 5*time.Millisecond)

	put := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPut, "/api/journal/today", strings.NewReader(`{"text":"streamed","source":"typed"}`))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(put, req)
	require.Equal(t, http.StatusAccepted, put.Code, put.Body.String())

	del := httptest.NewRecorder()
	r.ServeHTTP(del, httptest.NewRequest(http.MethodDelete, "/api/session", nil))
	assert.Equal(t, http.StatusNoContent, del.Code)

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("event stream did not end on sign-out")
	}
	body := w.Body.String()
	assert.Equal(t, "text/event-stream", w.Header().Get("Content-Type"))
	assert.Contains(t, body, "event: snapshot\n")
	assert.Contains(t, body, "event: autosave\n")
	assert.Contains(t, body, `"text":"streamed"`)
	assert.True(t, strings.HasSuffix(body, "event: closed\ndata: null\n\n"))

	assert.Equal(t, "streamed", h.stored(t, "u1").GetDay(2025, 3, 15).Journal)
}

func TestEntryRoutesShareSession(t *testing.T) {
	h := newHarness(t)
	r := newRouter(h)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPut, "/api/entries/2025/3/15/mood", strings.NewReader(`{"rank":4}`))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)
	require.Less(t, w.Code, 300, w.Body.String())

	s, ok := h.reg.Lookup("u1")
	require.True(t, ok)
	assert.Equal(t, 4, s.Entries().Snapshot().GetDay(2025, 3, 15).Mood)
}
