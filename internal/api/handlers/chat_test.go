package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"floatchat/internal/observability"
	"floatchat/internal/types"
)

type mockChatService struct {
	answer       *types.ChatAnswer
	err          error
	lastQuestion string
}

func (m *mockChatService) Ask(_ context.Context, question string) (*types.ChatAnswer, error) {
	m.lastQuestion = question
	return m.answer, m.err
}

type mockHistoryReader struct {
	records   []types.QueryRecord
	err       error
	lastLimit int
}

func (m *mockHistoryReader) Recent(_ context.Context, limit int) ([]types.QueryRecord, error) {
	m.lastLimit = limit
	return m.records, m.err
}

func makeChatRouter(svc ChatServiceInterface, history HistoryReaderInterface) http.Handler {
	r := chi.NewRouter()
	NewChatHandler(svc, history, observability.NewMetricsForTesting(), testLogger()).RegisterRoutes(r)
	return r
}

func postQuery(t *testing.T, router http.Handler, body string) *httptest.ResponseRecorder {
	t.Helper()
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/chat/query", bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)
	return w
}

func TestHandleQuery_Success(t *testing.T) {
	svc := &mockChatService{answer: &types.ChatAnswer{
		Answer:        "Mean surface temperature was 28.4 degrees.",
		MatchedCount:  12,
		Truncated:     false,
		ExecutionTime: 0.8,
	}}
	router := makeChatRouter(svc, nil)

	w := postQuery(t, router, `{"query":"  temperature near the equator last month "}`)

	require.Equal(t, http.StatusOK, w.Code)
	var resp struct {
		Data types.ChatAnswer `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, 12, resp.Data.MatchedCount)
	assert.Contains(t, resp.Data.Answer, "28.4")
	assert.Equal(t, "temperature near the equator last month", svc.lastQuestion)
}

func TestHandleQuery_EmptyQueryRejected(t *testing.T) {
	svc := &mockChatService{}
	router := makeChatRouter(svc, nil)

	w := postQuery(t, router, `{"query":"   "}`)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, string(types.ErrCodeValidationMissingField), decodeError(t, w.Body.Bytes()))
	assert.Empty(t, svc.lastQuestion)
}

func TestHandleQuery_MalformedBodyRejected(t *testing.T) {
	router := makeChatRouter(&mockChatService{}, nil)

	w := postQuery(t, router, `{"query": `)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = postQuery(t, router, `{"question":"wrong field"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHandleQuery_AmbiguousPropagates422(t *testing.T) {
	svc := &mockChatService{
		err: types.NewAppError(types.ErrCodeQueryAmbiguous, "query requires trend analysis", nil),
	}
	router := makeChatRouter(svc, nil)

	w := postQuery(t, router, `{"query":"why is salinity increasing"}`)

	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Equal(t, string(types.ErrCodeQueryAmbiguous), decodeError(t, w.Body.Bytes()))
}

func TestHandleQuery_UpstreamErrorPropagates502(t *testing.T) {
	svc := &mockChatService{
		err: types.NewAppError(types.ErrCodeUpstreamLLM, "language model unavailable", nil),
	}
	router := makeChatRouter(svc, nil)

	w := postQuery(t, router, `{"query":"salinity in the arabian sea"}`)

	assert.Equal(t, http.StatusBadGateway, w.Code)
}

func TestHandleHistory_Success(t *testing.T) {
	history := &mockHistoryReader{records: []types.QueryRecord{
		{
			ID:          "a4c9e1f2-0000-0000-0000-000000000001",
			UserQuery:   "temperature near the equator",
			ResultCount: 12,
			CreatedAt:   time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC),
		},
	}}
	router := makeChatRouter(&mockChatService{}, history)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/chat/history?limit=5", nil))

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 5, history.lastLimit)
	assert.Contains(t, w.Body.String(), "temperature near the equator")
}

func TestHandleHistory_DefaultLimit(t *testing.T) {
	history := &mockHistoryReader{}
	router := makeChatRouter(&mockChatService{}, history)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/chat/history", nil))

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, defaultHistoryLimit, history.lastLimit)
}

func TestHandleHistory_NoRecorderConfigured(t *testing.T) {
	router := makeChatRouter(&mockChatService{}, nil)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/chat/history", nil))

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"queries":[]`)
}

func TestChatOutcome(t *testing.T) {
	tests := []struct {
		name   string
		answer *types.ChatAnswer
		err    error
		want   string
	}{
		{"answered", &types.ChatAnswer{MatchedCount: 3}, nil, "answered"},
		{"no data", &types.ChatAnswer{MatchedCount: 0}, nil, "no_data"},
		{"ambiguous", nil, types.NewAppError(types.ErrCodeQueryAmbiguous, "", nil), "ambiguous"},
		{"upstream", nil, types.NewAppError(types.ErrCodeUpstreamLLM, "", nil), "upstream_error"},
		{"rate limited", nil, types.NewAppError(types.ErrCodeUpstreamRateLimit, "", nil), "upstream_error"},
		{"db error", nil, types.NewAppError(types.ErrCodeInternalDB, "", nil), "error"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, chatOutcome(tc.answer, tc.err))
		})
	}
}
