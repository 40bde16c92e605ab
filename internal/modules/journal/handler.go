package journal

import (
	"github.com/gin-gonic/gin"
	"github.com/moody-app/moody/internal/pkg/response"
)

// Editor is the journal editing state of one signed-in user: the autosave
// buffer for today and the voice session feeding it.
type Editor struct {
	Auto  *Autosave
	Voice *Dictation
}

// Resolver returns the editor of the request's signed-in user, pointed at
// the current day.
type Resolver func(c *gin.Context) (*Editor, error)

type EditDTO struct {
	Text   string `json:"text"`
	Source string `json:"source"`
}

type ChunkDTO struct {
	Index      int    `json:"index"`
	Transcript string `json:"transcript"`
	Final      bool   `json:"final"`
}

type VoiceErrorDTO struct {
	Code string `json:"code" binding:"required"`
}

type Handler struct {
	resolve Resolver
}

func NewHandler(resolve Resolver) *Handler { return &Handler{resolve: resolve} }

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup, authMW gin.HandlerFunc) {
	g := rg.Group("/journal", authMW)
	g.GET("/today", h.status)
	g.PUT("/today", h.edit)
	g.POST("/today/flush", h.flush)
	g.POST("/today/exit", h.exit)

	v := g.Group("/today/voice")
	v.POST("/start", h.voiceStart)
	v.POST("/chunk", h.voiceChunk)
	v.POST("/stop", h.voiceStop)
	v.POST("/error", h.voiceError)
}

func (h *Handler) editor(c *gin.Context) (*Editor, bool) {
	ed, err := h.resolve(c)
	if err != nil {
		response.Error(c, err)
		return nil, false
	}
	return ed, true
}

func (h *Handler) status(c *gin.Context) {
	ed, ok := h.editor(c)
	if !ok {
		return
	}
	response.OK(c, ed.Auto.Status())
}

func (h *Handler) edit(c *gin.Context) {
	var dto EditDTO
	if err := c.ShouldBindJSON(&dto); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	ed, ok := h.editor(c)
	if !ok {
		return
	}
	if err := ed.Auto.Edit(dto.Text, ParseSource(dto.Source)); err != nil {
		response.Error(c, err)
		return
	}
	response.Accepted(c, ed.Auto.Status())
}

func (h *Handler) flush(c *gin.Context) {
	ed, ok := h.editor(c)
	if !ok {
		return
	}
	if err := ed.Auto.Flush(c.Request.Context()); err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, ed.Auto.Status())
}

// exit hands unsaved text to the beacon path and returns at once.
func (h *Handler) exit(c *gin.Context) {
	ed, ok := h.editor(c)
	if !ok {
		return
	}
	if err := ed.Auto.ExitFlush(); err != nil {
		response.Error(c, err)
		return
	}
	response.Accepted(c, ed.Auto.Status())
}

func (h *Handler) voiceStart(c *gin.Context) {
	ed, ok := h.editor(c)
	if !ok {
		return
	}
	if err := ed.Voice.Start(); err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, ed.Auto.Status())
}

func (h *Handler) voiceChunk(c *gin.Context) {
	var dto ChunkDTO
	if err := c.ShouldBindJSON(&dto); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	ed, ok := h.editor(c)
	if !ok {
		return
	}
	shown, err := ed.Voice.Push(Chunk(dto))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, gin.H{"display": shown, "status": ed.Auto.Status()})
}

func (h *Handler) voiceStop(c *gin.Context) {
	ed, ok := h.editor(c)
	if !ok {
		return
	}
	if err := ed.Voice.Stop(c.Request.Context()); err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, ed.Auto.Status())
}

func (h *Handler) voiceError(c *gin.Context) {
	var dto VoiceErrorDTO
	if err := c.ShouldBindJSON(&dto); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	ed, ok := h.editor(c)
	if !ok {
		return
	}
	if err := ed.Voice.Fail(c.Request.Context(), dto.Code); err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, ed.Auto.Status())
}
