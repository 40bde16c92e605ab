package insight

import (
	"github.com/gin-gonic/gin"
	"github.com/moody-app/moody/internal/middleware"
	"github.com/moody-app/moody/internal/pkg/response"
)

type AnalyzeDTO struct {
	Text string `json:"text" binding:"required"`
}

type Handler struct {
	svc   *Service
	limit gin.HandlerFunc
}

// NewHandler mounts limit in front of analysis requests; nil disables it.
func NewHandler(svc *Service, limit gin.HandlerFunc) *Handler {
	if limit == nil {
		limit = func(c *gin.Context) { c.Next() }
	}
	return &Handler{svc: svc, limit: limit}
}

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup, authMW gin.HandlerFunc) {
	g := rg.Group("/insights", authMW)
	g.POST("", h.limit, h.analyze)
	g.GET("/placeholder", h.placeholder)
}

func (h *Handler) analyze(c *gin.Context) {
	var dto AnalyzeDTO
	if err := c.ShouldBindJSON(&dto); err != nil {
		response.BadRequest(c, "Journal text is required")
		return
	}
	ins, err := h.svc.Get(c.Request.Context(), middleware.CurrentUserID(c), dto.Text)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, ins)
}

func (h *Handler) placeholder(c *gin.Context) {
	response.OK(c, gin.H{"placeholder": h.svc.Placeholder(c.Request.Context())})
}
