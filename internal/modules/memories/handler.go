package memories

import (
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/moody-app/moody/internal/middleware"
	"github.com/moody-app/moody/internal/pkg/response"
)

type DeleteDTO struct {
	PublicID  string `json:"publicId"`
	YearMonth string `json:"yearMonth"`
}

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler { return &Handler{svc: svc} }

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup, authMW gin.HandlerFunc) {
	rg.GET("/memories/:year/:month", authMW, h.list)
	rg.POST("/memories", authMW, h.upload)
	rg.POST("/delete-memory", authMW, h.delete)
}

func (h *Handler) list(c *gin.Context) {
	year, err := strconv.Atoi(c.Param("year"))
	if err != nil {
		response.BadRequest(c, "invalid year")
		return
	}
	month, err := strconv.Atoi(c.Param("month"))
	if err != nil {
		response.BadRequest(c, "invalid month")
		return
	}
	items, err := h.svc.List(c.Request.Context(), middleware.CurrentUserID(c), year, month)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, items)
}

// upload takes multipart form fields "day" and "files".
func (h *Handler) upload(c *gin.Context) {
	// room for four photos at the size limit plus form overhead
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, int64(h.svc.opts.MaxPerDay+1)*h.svc.opts.MaxSize)
	form, err := c.MultipartForm()
	if err != nil {
		response.BadRequest(c, "invalid multipart form")
		return
	}
	day, err := strconv.Atoi(c.PostForm("day"))
	if err != nil {
		response.BadRequest(c, "invalid day")
		return
	}
	headers := form.File["files"]
	files := make([]File, 0, len(headers))
	for _, fh := range headers {
		if fh.Size > h.svc.opts.MaxSize {
			response.BadRequest(c, fh.Filename+": image must be less than "+strconv.FormatInt(h.svc.opts.MaxSize>>20, 10)+"MB")
			return
		}
		f, err := fh.Open()
		if err != nil {
			response.BadRequest(c, "cannot read "+fh.Filename)
			return
		}
		data, err := io.ReadAll(f)
		_ = f.Close()
		if err != nil {
			response.BadRequest(c, "cannot read "+fh.Filename)
			return
		}
		files = append(files, File{Name: fh.Filename, Data: data})
	}

	items, err := h.svc.Upload(c.Request.Context(), middleware.CurrentUserID(c), day, files)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, gin.H{"data": items})
}

func (h *Handler) delete(c *gin.Context) {
	var dto DeleteDTO
	if err := c.ShouldBindJSON(&dto); err != nil {
		response.BadRequest(c, "Missing required fields: publicId and yearMonth")
		return
	}
	err := h.svc.Delete(c.Request.Context(), middleware.CurrentUserID(c), dto.PublicID, dto.YearMonth)
	if errors.Is(err, ErrNotOwner) {
		response.Forbidden(c, "Unauthorized: cannot delete this resource")
		return
	}
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, gin.H{"success": true})
}
