package beacon

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/moody-app/moody/internal/pkg/apperr"
	"github.com/moody-app/moody/internal/pkg/docstore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func verifier(token string) (string, error) {
	if token == "good" {
		return "u1", nil
	}
	return "", errors.New("bad token")
}

func newRouter(svc *Service) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	NewHandler(svc).RegisterRoutes(r.Group("/api"), nil)
	return r
}

func post(r http.Handler, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/api/journal-beacon", strings.NewReader(body))
	req.Header.Set("Content-Type", "text/plain;charset=UTF-8")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestBeaconSavesJournal(t *testing.T) {
	mem := docstore.NewMemory(nil)
	r := newRouter(NewService(mem, verifier, nil))

	w := post(r, `{"idToken":"good","year":2025,"month":0,"day":1,"entry":"new year notes"}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.JSONEq(t, `{"success":true}`, w.Body.String())

	doc, err := mem.Get(context.Background(), docstore.UserKey("u1"))
	require.NoError(t, err)
	year, _ := docstore.Map(doc["2025"])
	month, _ := docstore.Map(year["0"])
	assert.Equal(t, "new year notes", month["journal_1"])
	assert.IsType(t, time.Time{}, month["updatedAt_1"])
}

func TestBeaconValidation(t *testing.T) {
	mem := docstore.NewMemory(nil)
	r := newRouter(NewService(mem, verifier, nil))

	for _, body := range []string{
		`{"year":2025,"month":3,"day":1,"entry":"x"}`,
		`{"idToken":"good","year":2025,"day":1,"entry":"x"}`,
		`{"idToken":"good","year":2025,"month":3,"day":1,"entry":""}`,
		`not json`,
	} {
		assert.Equal(t, http.StatusBadRequest, post(r, body).Code, body)
	}
	w := post(r, `{"idToken":"forged","year":2025,"month":3,"day":1,"entry":"x"}`)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Zero(t, mem.Len())
}

func TestClientSendsToEndpoint(t *testing.T) {
	mem := docstore.NewMemory(nil)
	srv := httptest.NewServer(newRouter(NewService(mem, verifier, nil)))
	defer srv.Close()

	c := NewClient(srv.URL+"/api/journal-beacon", time.Second, nil)
	require.NoError(t, c.Send(context.Background(), NewPayload("good", 2025, 3, 15, "late thoughts")))
	assert.Equal(t, 1, mem.Len())

	err := c.Send(context.Background(), NewPayload("forged", 2025, 3, 15, "x"))
	assert.ErrorContains(t, err, "401")
}

func TestServiceErrorKinds(t *testing.T) {
	svc := NewService(docstore.NewMemory(nil), verifier, nil)
	err := svc.Save(context.Background(), NewPayload("good", 2025, 12, 1, "x"))
	assert.ErrorIs(t, err, apperr.ErrInvalid)
	err = svc.Save(context.Background(), NewPayload("nope", 2025, 1, 1, "x"))
	assert.ErrorIs(t, err, apperr.ErrUnauthenticated)
}
