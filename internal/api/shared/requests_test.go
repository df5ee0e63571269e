package shared

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type samplePayload struct {
	Title string `json:"title" validate:"required,max=5"`
}

func TestDecodeJSON(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name    string
		body    string
		wantErr bool
	}{
		{"single object", `{"title":"ok"}`, false},
		{"unknown field", `{"title":"ok","extra":1}`, true},
		{"trailing object", `{"title":"ok"}{"title":"again"}`, true},
		{"malformed", `{"title":`, true},
		{"oversized", `{"title":"` + strings.Repeat("a", MaxRequestBodyBytes) + `"}`, true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(tc.body))
			var payload samplePayload
			err := DecodeJSON(httptest.NewRecorder(), req, &payload)
			if tc.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, "ok", payload.Title)
		})
	}
}

func TestValidateRequest(t *testing.T) {
	t.Parallel()
	assert.NoError(t, ValidateRequest(&samplePayload{Title: "abc"}))
	assert.Error(t, ValidateRequest(&samplePayload{}))
	assert.Error(t, ValidateRequest(&samplePayload{Title: "too long"}))
}

func TestUserIDContext(t *testing.T) {
	t.Parallel()

	_, ok := UserIDFromContext(context.Background())
	assert.False(t, ok)

	_, ok = UserIDFromContext(WithUserID(context.Background(), uuid.Nil))
	assert.False(t, ok, "the nil UUID is not an authenticated user")

	id := uuid.New()
	got, ok := UserIDFromContext(WithUserID(context.Background(), id))
	assert.True(t, ok)
	assert.Equal(t, id, got)
}

func TestRespondWithErrorIncludesTraceID(t *testing.T) {
	t.Parallel()

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req = req.WithContext(SetTraceID(req.Context()))
	rec := httptest.NewRecorder()

	RespondWithError(rec, req, http.StatusNotFound, "Card not found")

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.JSONEq(t,
		`{"error":"Card not found","traceId":"`+GetTraceID(req.Context())+`"}`,
		rec.Body.String())
}
