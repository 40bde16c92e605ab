package response

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/moody-app/moody/internal/pkg/apperr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func run(t *testing.T, fn func(c *gin.Context)) (*httptest.ResponseRecorder, map[string]interface{}) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/", nil)
	fn(c)
	var body map[string]interface{}
	if w.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	}
	return w, body
}

func TestErrorMapping(t *testing.T) {
	cases := []struct {
		err    error
		status int
	}{
		{apperr.Unauthenticated("op"), http.StatusUnauthorized},
		{apperr.Invalid("op", "bad"), http.StatusBadRequest},
		{apperr.NotFound("op", "gone"), http.StatusNotFound},
		{apperr.Wrap(apperr.KindRemoteWriteFailed, "op", errors.New("x")), http.StatusBadGateway},
		{apperr.Wrap(apperr.KindAnalysisFailed, "op", errors.New("quota")), http.StatusBadGateway},
		{apperr.New(apperr.KindPartialFailure, "op", "index"), http.StatusInternalServerError},
		{errors.New("plain"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		w, _ := run(t, func(c *gin.Context) { Error(c, tc.err) })
		assert.Equal(t, tc.status, w.Code, tc.err.Error())
	}
}

func TestPartialFailureIsFlagged(t *testing.T) {
	_, body := run(t, func(c *gin.Context) {
		Error(c, apperr.New(apperr.KindPartialFailure, "memories.delete", "photo removed, index not updated"))
	})
	assert.Equal(t, true, body["partial"])
	assert.Equal(t, "partial_failure", body["kind"])
}

func TestOKWrapsSlices(t *testing.T) {
	_, body := run(t, func(c *gin.Context) { OK(c, []int{1, 2}) })
	assert.Equal(t, []interface{}{float64(1), float64(2)}, body["data"])
}
