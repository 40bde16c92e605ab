package session

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/moody-app/moody/internal/middleware"
	"github.com/moody-app/moody/internal/modules/entry"
	"github.com/moody-app/moody/internal/modules/journal"
	"github.com/moody-app/moody/internal/pkg/response"
)

const heartbeatEvery = 25 * time.Second

// EntryResolver serves entry routes from the caller's session.
func EntryResolver(reg *Registry) entry.Resolver {
	return func(c *gin.Context) (*entry.Coordinator, error) {
		s, err := reg.Get(c.Request.Context(), middleware.CurrentUserID(c))
		if err != nil {
			return nil, err
		}
		return s.Entries(), nil
	}
}

// JournalResolver serves journal routes from the caller's session.
func JournalResolver(reg *Registry) journal.Resolver {
	return func(c *gin.Context) (*journal.Editor, error) {
		s, err := reg.Get(c.Request.Context(), middleware.CurrentUserID(c))
		if err != nil {
			return nil, err
		}
		return s.Editor(), nil
	}
}

type Handler struct {
	reg *Registry
}

func NewHandler(reg *Registry) *Handler { return &Handler{reg: reg} }

// RegisterRoutes mounts the event stream and sign-out. EventSource clients
// pass the bearer token as ?token=.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup, authMW gin.HandlerFunc) {
	rg.GET("/session/events", authMW, h.events)
	rg.DELETE("/session", authMW, h.signOut)
}

func (h *Handler) events(c *gin.Context) {
	s, err := h.reg.Get(c.Request.Context(), middleware.CurrentUserID(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	ch, cancel := s.Subscribe()
	defer cancel()

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")
	c.Status(http.StatusOK)

	writeEvent(c, Event{Type: "snapshot", Data: gin.H{
		"session": s.ID,
		"stats":   s.Entries().Stats(),
		"journal": s.Editor().Auto.Status(),
	}})

	beat := h.reg.clock.NewTicker(heartbeatEvery)
	defer beat.Stop()
	for {
		select {
		case <-c.Request.Context().Done():
			return
		case ev, ok := <-ch:
			if !ok {
				writeEvent(c, Event{Type: "closed"})
				return
			}
			writeEvent(c, ev)
		case <-beat.Chan():
			_, _ = c.Writer.WriteString(": ping\n\n")
			c.Writer.Flush()
		}
	}
}

func writeEvent(c *gin.Context, ev Event) {
	data, err := json.Marshal(ev.Data)
	if err != nil {
		data = []byte("null")
	}
	fmt.Fprintf(c.Writer, "event: %s\ndata: %s\n\n", ev.Type, data)
	c.Writer.Flush()
}

func (h *Handler) signOut(c *gin.Context) {
	if err := h.reg.Remove(c.Request.Context(), middleware.CurrentUserID(c)); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
