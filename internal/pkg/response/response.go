package response

import (
	"errors"
	"math/rand/v2"
	"net/http"
	"reflect"

	"github.com/gin-gonic/gin"
	"github.com/moody-app/moody/internal/pkg/apperr"
)

var notFoundMessages = []string{
	"Nothing here, not even yesterday's mood (._.)",
	"That page wandered off to journal somewhere else",
	"404: this day was never logged",
	"We looked under every calendar square. Nothing.",
	"The request landed in the void ଘ(੭ˊ꒳ˋ)੭✧",
}

// OK sends a 200 response. Arrays/slices are wrapped in {data: [...]}.
func OK(c *gin.Context, data interface{}) {
	if data != nil {
		v := reflect.ValueOf(data)
		if v.Kind() == reflect.Slice {
			c.JSON(http.StatusOK, gin.H{"data": data})
			return
		}
	}
	c.JSON(http.StatusOK, data)
}

// Created sends a 201 response.
func Created(c *gin.Context, data interface{}) {
	c.JSON(http.StatusCreated, data)
}

// Accepted sends a 202 response for work that settles later.
func Accepted(c *gin.Context, data interface{}) {
	c.JSON(http.StatusAccepted, data)
}

// NoContent sends a 204 response.
func NoContent(c *gin.Context) {
	c.Status(http.StatusNoContent)
}

func abort(c *gin.Context, status int, message string, extra gin.H) {
	body := gin.H{"ok": 0, "code": status, "message": message}
	for k, v := range extra {
		body[k] = v
	}
	c.AbortWithStatusJSON(status, body)
}

// BadRequest sends a 400 error response.
func BadRequest(c *gin.Context, message string) {
	abort(c, http.StatusBadRequest, message, nil)
}

// Unauthorized sends a 401 error response.
func Unauthorized(c *gin.Context) {
	abort(c, http.StatusUnauthorized, "Looks like you are not signed in ((/- -)/", nil)
}

// Forbidden sends a 403 error response.
func Forbidden(c *gin.Context, message string) {
	abort(c, http.StatusForbidden, message, nil)
}

// NotFound sends a 404 error response.
func NotFound(c *gin.Context) {
	abort(c, http.StatusNotFound, notFoundMessages[rand.IntN(len(notFoundMessages))], nil)
}

// NotFoundMsg sends a 404 error with a custom message.
func NotFoundMsg(c *gin.Context, message string) {
	abort(c, http.StatusNotFound, message, nil)
}

// MethodNotAllowed sends a 405 error response.
func MethodNotAllowed(c *gin.Context) {
	abort(c, http.StatusMethodNotAllowed, "Method not allowed", nil)
}

// InternalError sends a 500 error response.
func InternalError(c *gin.Context, err error) {
	abort(c, http.StatusInternalServerError, err.Error(), nil)
}

// TooManyRequests sends a 429 error response.
func TooManyRequests(c *gin.Context, retryAfter string) {
	c.Header("Retry-After", retryAfter)
	abort(c, http.StatusTooManyRequests, "Whoa, slow down a little ∑(っ °Д °;)っ", nil)
}

// Error maps a classified error to its HTTP status. Remote failures are
// 502 so clients can offer a retry.
func Error(c *gin.Context, err error) {
	var ae *apperr.Error
	if !errors.As(err, &ae) {
		InternalError(c, err)
		return
	}
	switch ae.Kind {
	case apperr.KindUnauthenticated:
		Unauthorized(c)
	case apperr.KindInvalid:
		BadRequest(c, ae.Error())
	case apperr.KindNotFound:
		NotFoundMsg(c, ae.Error())
	case apperr.KindRemoteWriteFailed, apperr.KindRemoteReadFailed, apperr.KindAnalysisFailed:
		abort(c, http.StatusBadGateway, ae.Error(), gin.H{"kind": ae.Kind.String(), "retryable": true})
	case apperr.KindPartialFailure:
		abort(c, http.StatusInternalServerError, ae.Error(), gin.H{"kind": ae.Kind.String(), "partial": true})
	default:
		InternalError(c, err)
	}
}
