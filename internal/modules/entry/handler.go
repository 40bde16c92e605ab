package entry

import (
	"fmt"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/moody-app/moody/internal/pkg/datekey"
	"github.com/moody-app/moody/internal/pkg/mood"
	"github.com/moody-app/moody/internal/pkg/response"
)

// Resolver returns the coordinator of the request's signed-in user.
type Resolver func(c *gin.Context) (*Coordinator, error)

type SetMoodDTO struct {
	Rank int `json:"rank" binding:"required"`
}

type UpdateEntryDTO struct {
	Mood    *int    `json:"mood"`
	Journal *string `json:"journal"`
}

type statsResponse struct {
	Stats
	LastMoodName  mood.Name `json:"lastMoodName,omitempty"`
	LastMoodGlyph string    `json:"lastMoodGlyph,omitempty"`
	TimeRemaining string    `json:"timeRemaining"`
}

type Handler struct {
	resolve Resolver
	moods   *mood.Taxonomy
}

func NewHandler(resolve Resolver, moods *mood.Taxonomy) *Handler {
	if moods == nil {
		moods = mood.Default
	}
	return &Handler{resolve: resolve, moods: moods}
}

// RegisterRoutes mounts the calendar routes. Months in paths are zero-based
// like the stored document.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup, authMW gin.HandlerFunc) {
	rg.GET("/moods", h.listMoods)
	rg.GET("/stats", authMW, h.stats)

	g := rg.Group("/entries", authMW)
	g.GET("", h.list)
	g.POST("/flush", h.flush)
	g.PUT("/:year/:month/:day/mood", h.setMood)
	g.PUT("/:year/:month/:day", h.update)
	g.DELETE("/:year/:month/:day", h.delete)
}

func (h *Handler) listMoods(c *gin.Context) {
	levels := h.moods.Levels()
	out := make([]gin.H, 0, len(levels))
	for i, l := range levels {
		out = append(out, gin.H{"rank": i + 1, "name": l.Name, "glyph": l.Glyph})
	}
	response.OK(c, out)
}

func (h *Handler) list(c *gin.Context) {
	co, err := h.resolve(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	y, m, d := co.Today()
	response.OK(c, gin.H{
		"entries": Encode(co.Snapshot()),
		"stats":   h.toStats(co),
		"today":   gin.H{"year": y, "month": m, "day": d},
	})
}

func (h *Handler) stats(c *gin.Context) {
	co, err := h.resolve(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, h.toStats(co))
}

func (h *Handler) toStats(co *Coordinator) statsResponse {
	st := co.Stats()
	out := statsResponse{Stats: st, TimeRemaining: formatRemaining(datekey.UntilEndOfDay(co.Now()))}
	if st.LastMood > 0 {
		out.LastMoodName = h.moods.RankToName(st.LastMood)
		out.LastMoodGlyph = h.moods.NameToGlyph(out.LastMoodName)
	}
	return out
}

func formatRemaining(d time.Duration) string {
	s := int(d.Seconds())
	return fmt.Sprintf("%dH %dM %dS", s/3600, s%3600/60, s%60)
}

func (h *Handler) setMood(c *gin.Context) {
	y, m, d, ok := dateParams(c)
	if !ok {
		return
	}
	var dto SetMoodDTO
	if err := c.ShouldBindJSON(&dto); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	co, err := h.resolve(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	pending, err := co.SetMood(c.Request.Context(), y, m, d, dto.Rank)
	if err != nil {
		response.Error(c, err)
		return
	}
	if c.Query("wait") == "1" || c.Query("wait") == "true" {
		if err := pending.Wait(c.Request.Context()); err != nil {
			response.Error(c, err)
			return
		}
		response.OK(c, h.dayResponse(co, y, m, d))
		return
	}
	response.Accepted(c, h.dayResponse(co, y, m, d))
}

func (h *Handler) update(c *gin.Context) {
	y, m, d, ok := dateParams(c)
	if !ok {
		return
	}
	var dto UpdateEntryDTO
	if err := c.ShouldBindJSON(&dto); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	co, err := h.resolve(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	err = co.UpdateEntry(c.Request.Context(), EntryUpdate{Year: y, Month: m, Day: d, Mood: dto.Mood, Journal: dto.Journal})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, h.dayResponse(co, y, m, d))
}

func (h *Handler) delete(c *gin.Context) {
	y, m, d, ok := dateParams(c)
	if !ok {
		return
	}
	co, err := h.resolve(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	if err := co.DeleteEntry(c.Request.Context(), y, m, d); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

func (h *Handler) flush(c *gin.Context) {
	co, err := h.resolve(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	if err := co.Flush(c.Request.Context()); err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, h.toStats(co))
}

func (h *Handler) dayResponse(co *Coordinator, y, m, d int) gin.H {
	day := co.Snapshot().GetDay(y, m, d)
	out := gin.H{
		"date":  datekey.Key(y, m, d),
		"entry": day,
		"stats": h.toStats(co),
	}
	if day.HasMood() {
		name := h.moods.RankToName(day.Mood)
		out["moodName"] = name
		out["glyph"] = h.moods.NameToGlyph(name)
	}
	return out
}

func dateParams(c *gin.Context) (year, month, day int, ok bool) {
	var err error
	if year, err = strconv.Atoi(c.Param("year")); err != nil {
		response.BadRequest(c, "invalid year")
		return 0, 0, 0, false
	}
	if month, err = strconv.Atoi(c.Param("month")); err != nil {
		response.BadRequest(c, "invalid month")
		return 0, 0, 0, false
	}
	if day, err = strconv.Atoi(c.Param("day")); err != nil {
		response.BadRequest(c, "invalid day")
		return 0, 0, 0, false
	}
	return year, month, day, true
}
