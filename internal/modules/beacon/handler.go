package beacon

import (
	"encoding/json"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/moody-app/moody/internal/pkg/apperr"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler { return &Handler{svc: svc} }

// RegisterRoutes mounts the beacon endpoint. It carries its credential in
// the body, so no auth middleware applies.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup, _ gin.HandlerFunc) {
	rg.POST("/journal-beacon", h.save)
}

func (h *Handler) save(c *gin.Context) {
	// sendBeacon posts text/plain, so decode regardless of content type
	raw, err := c.GetRawData()
	var p Payload
	if err == nil {
		err = json.Unmarshal(raw, &p)
	}
	if err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "Missing required fields"})
		return
	}
	if err := h.svc.Save(c.Request.Context(), p); err != nil {
		switch apperr.KindOf(err) {
		case apperr.KindInvalid:
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "Missing required fields"})
		case apperr.KindUnauthenticated:
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid token"})
		default:
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		}
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}
