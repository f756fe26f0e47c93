package http

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"forum/internal/assistant"
	"forum/internal/core"
	"forum/internal/sheets"
)

func TestResponseBuilder_JSON(t *testing.T) {
	w := httptest.NewRecorder()

	NewResponse().
		Created("/api/members/M-001").
		Header("X-Custom", "value").
		JSON(map[string]string{"id": "M-001"}).
		Write(w)

	assert.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, "/api/members/M-001", w.Header().Get("Location"))
	assert.Equal(t, "value", w.Header().Get("X-Custom"))
	assert.Equal(t, "application/json; charset=utf-8", w.Header().Get("Content-Type"))
	assert.JSONEq(t, `{"id":"M-001"}`, w.Body.String())
}

func TestResponseBuilder_NoContent(t *testing.T) {
	w := httptest.NewRecorder()
	NewResponse().Status(http.StatusNoContent).JSON("ignored").Write(w)
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Empty(t, w.Body.String())
}

func TestWriteErrorMapping(t *testing.T) {
	tests := []struct {
		err    error
		status int
		kind   string
	}{
		{core.Invalid("bad"), 400, "validation_error"},
		{fmt.Errorf("get member: %w", core.ErrNotFound), 404, "not_found_error"},
		{fmt.Errorf("%w: key reused", core.ErrConflict), 409, "conflict_error"},
		{fmt.Errorf("%w: timeout", core.ErrStoreUnavailable), 503, "store_unavailable"},
		{sheets.ErrNotConfigured, 503, "configuration_error"},
		{assistant.ErrUnavailable, 503, "assistant_unavailable"},
		{errors.New("boom: secret detail"), 500, "internal_error"},
	}
	for _, tt := range tests {
		t.Run(tt.kind, func(t *testing.T) {
			w := httptest.NewRecorder()
			writeError(w, httptest.NewRequest(http.MethodGet, "/", nil), tt.err)
			assert.Equal(t, tt.status, w.Code)
			assert.Contains(t, w.Body.String(), `"kind":"`+tt.kind+`"`)
			if tt.status == 500 {
				assert.False(t, strings.Contains(w.Body.String(), "secret"))
			}
		})
	}
}
