package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"floatchat/internal/core"
	"floatchat/internal/observability"
	"floatchat/internal/types"
)

// maxQuestionLength bounds the free-text question a single chat turn accepts.
const maxQuestionLength = 2000

// defaultHistoryLimit applies when GET /v1/chat/history has no limit param.
const defaultHistoryLimit = 20

// maxHistoryLimit caps GET /v1/chat/history result sizes.
const maxHistoryLimit = 200

// ChatServiceInterface is the answer-composer contract the chat handler needs.
type ChatServiceInterface interface {
	Ask(ctx context.Context, question string) (*types.ChatAnswer, error)
}

// HistoryReaderInterface reads back persisted chat turns.
type HistoryReaderInterface interface {
	Recent(ctx context.Context, limit int) ([]types.QueryRecord, error)
}

// ChatHandler maps HTTP requests onto the grounded answer composer.
type ChatHandler struct {
	service ChatServiceInterface
	history HistoryReaderInterface
	metrics *observability.Metrics
	logger  *slog.Logger
}

// NewChatHandler creates a ChatHandler. history and metrics may be nil.
func NewChatHandler(svc ChatServiceInterface, history HistoryReaderInterface,
	metrics *observability.Metrics, logger *slog.Logger) *ChatHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &ChatHandler{service: svc, history: history, metrics: metrics, logger: logger}
}

// RegisterRoutes mounts the chat endpoints onto the /v1 group.
func (h *ChatHandler) RegisterRoutes(r chi.Router) {
	r.Route("/chat", func(r chi.Router) {
		r.Post("/query", h.HandleQuery)
		r.Get("/history", h.HandleHistory)
	})
}

// chatQueryRequest is the body of POST /v1/chat/query.
type chatQueryRequest struct {
	Query string `json:"query"`
}

// HandleQuery handles POST /v1/chat/query: free-text question in, grounded
// answer out.
func (h *ChatHandler) HandleQuery(w http.ResponseWriter, r *http.Request) {
	var req chatQueryRequest
	if err := core.DecodeJSON(w, r, &req); err != nil {
		core.Error(w, r, err)
		return
	}

	question := strings.TrimSpace(req.Query)
	if question == "" {
		core.Error(w, r, types.NewAppError(types.ErrCodeValidationMissingField,
			"query must not be empty", nil))
		return
	}
	if len(question) > maxQuestionLength {
		core.Error(w, r, types.NewAppError(types.ErrCodeValidationInvalidFilter,
			"query exceeds the maximum question length", nil))
		return
	}

	started := time.Now()
	answer, err := h.service.Ask(r.Context(), question)
	h.observe(answer, err, started)
	if err != nil {
		core.Error(w, r, err)
		return
	}

	core.JSON(w, r, http.StatusOK, core.APIResponse{Data: answer})
}

// HandleHistory handles GET /v1/chat/history: the most recent persisted
// chat turns, newest first.
func (h *ChatHandler) HandleHistory(w http.ResponseWriter, r *http.Request) {
	if h.history == nil {
		core.JSON(w, r, http.StatusOK, core.APIResponse{Data: map[string]any{
			"queries": []types.QueryRecord{},
		}})
		return
	}

	limit, err := parseLimitParam(r, maxHistoryLimit)
	if err != nil {
		core.Error(w, r, err)
		return
	}
	if limit == 0 {
		limit = defaultHistoryLimit
	}

	records, err := h.history.Recent(r.Context(), limit)
	if err != nil {
		core.Error(w, r, err)
		return
	}
	core.JSON(w, r, http.StatusOK, core.APIResponse{Data: map[string]any{
		"queries": records,
	}})
}

func (h *ChatHandler) observe(answer *types.ChatAnswer, err error, started time.Time) {
	if h.metrics == nil {
		return
	}
	h.metrics.ChatDuration.Observe(time.Since(started).Seconds())
	h.metrics.ChatRequests.WithLabelValues(chatOutcome(answer, err)).Inc()
	if err == nil && answer.Truncated {
		h.metrics.ChatTruncated.Inc()
	}
	if err != nil {
		var appErr *types.AppError
		if errors.As(err, &appErr) &&
			(appErr.Code == types.ErrCodeUpstreamLLM || appErr.Code == types.ErrCodeUpstreamRateLimit) {
			h.metrics.UpstreamErrors.WithLabelValues("llm").Inc()
		}
	}
}

func chatOutcome(answer *types.ChatAnswer, err error) string {
	if err == nil {
		if answer.MatchedCount == 0 {
			return "no_data"
		}
		return "answered"
	}
	var appErr *types.AppError
	if errors.As(err, &appErr) {
		switch appErr.Code {
		case types.ErrCodeQueryAmbiguous:
			return "ambiguous"
		case types.ErrCodeUpstreamLLM, types.ErrCodeUpstreamRateLimit:
			return "upstream_error"
		}
	}
	return "error"
}
