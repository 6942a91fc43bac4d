package core

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"floatchat/internal/types"
)

func TestJSON_WritesEnvelope(t *testing.T) {
	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodGet, "/", nil)

	JSON(w, r, http.StatusOK, APIResponse{Data: map[string]int{"count": 3}})

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
	assert.JSONEq(t, `{"data":{"count":3}}`, w.Body.String())
}

func TestError_AppErrorKeepsCodeAndStatus(t *testing.T) {
	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r = r.WithContext(types.WithRequestID(r.Context(), "req_42"))

	Error(w, r, types.NewAppError(types.ErrCodeQueryAmbiguous, "analysis not supported", nil))

	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	var resp APIErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "query_ambiguous", resp.Error.Code)
	assert.Equal(t, "analysis not supported", resp.Error.Message)
	assert.Equal(t, "req_42", resp.Error.RequestID)
}

func TestError_GenericErrorIsOpaque500(t *testing.T) {
	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodGet, "/", nil)

	Error(w, r, errors.New("pq: secret connection string"))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.NotContains(t, w.Body.String(), "secret")
	assert.Contains(t, w.Body.String(), string(types.ErrCodeInternalUnexpected))
}

func TestDecodeJSON(t *testing.T) {
	type payload struct {
		Query string `json:"query"`
	}

	cases := []struct {
		name    string
		body    string
		wantErr string
	}{
		{name: "valid", body: `{"query":"hi"}`},
		{name: "malformed", body: `{"query"`, wantErr: "malformed JSON"},
		{name: "unknown field", body: `{"query":"hi","extra":1}`, wantErr: "unknown field"},
		{name: "empty body", body: ``, wantErr: "must not be empty"},
		{name: "two documents", body: `{"query":"a"}{"query":"b"}`, wantErr: "single JSON object"},
		{name: "wrong type", body: `{"query":7}`, wantErr: "invalid value for field"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(tc.body))

			var dst payload
			err := DecodeJSON(w, r, &dst)
			if tc.wantErr == "" {
				require.NoError(t, err)
				assert.Equal(t, "hi", dst.Query)
				return
			}
			var appErr *types.AppError
			require.ErrorAs(t, err, &appErr)
			assert.Equal(t, errCodeValidationInvalidJSON, appErr.Code)
			assert.Contains(t, appErr.Message, tc.wantErr)
		})
	}
}
