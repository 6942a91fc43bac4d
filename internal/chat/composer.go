// Package chat composes grounded answers: a question is translated to a
// filter, the filter runs against the store, and only the retrieved rows are
// offered to the language model. The model phrases; it never sources facts.
package chat

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"floatchat/internal/config"
	"floatchat/internal/llm"
	"floatchat/internal/types"
)

// ProfileStore is the slice of the store the composer needs.
type ProfileStore interface {
	Query(ctx context.Context, filter types.StructuredFilter) ([]types.FloatProfile, error)
	Count(ctx context.Context, filter types.StructuredFilter) (int64, error)
}

// Translator turns a question into a filter.
type Translator interface {
	Translate(ctx context.Context, query string) (types.StructuredFilter, error)
}

// HistoryRecorder persists answered turns. Failures are logged, not
// surfaced: history must never break an answer.
type HistoryRecorder interface {
	Record(ctx context.Context, rec *types.QueryRecord) error
}

// Composer wires translation, retrieval, and generation into one turn.
type Composer struct {
	translator Translator
	store      ProfileStore
	provider   llm.Provider
	history    HistoryRecorder
	cfg        config.ChatConfig
	logger     *slog.Logger
}

// NewComposer creates a Composer. history may be nil to disable the query
// log.
func NewComposer(translator Translator, store ProfileStore, provider llm.Provider,
	history HistoryRecorder, cfg config.ChatConfig, logger *slog.Logger) *Composer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Composer{
		translator: translator,
		store:      store,
		provider:   provider,
		history:    history,
		cfg:        cfg,
		logger:     logger,
	}
}

// Ask answers one question. Errors from translation (ambiguous queries) and
// from the upstream model propagate with their taxonomy codes; an empty
// result set is a normal answer, not an error.
func (c *Composer) Ask(ctx context.Context, question string) (*types.ChatAnswer, error) {
	started := time.Now()

	filter, err := c.translator.Translate(ctx, question)
	if err != nil {
		return nil, err
	}

	matched, err := c.store.Count(ctx, filter)
	if err != nil {
		return nil, err
	}

	if matched == 0 {
		answer := &types.ChatAnswer{
			Answer:        noDataAnswer(filter),
			MatchedCount:  0,
			ExecutionTime: time.Since(started).Seconds(),
		}
		c.record(ctx, question, filter, answer)
		return answer, nil
	}

	// Retrieval is capped: ascending order means the cap keeps the oldest
	// profiles and reports the cut instead of silently overflowing the
	// prompt.
	capped := filter
	if capped.Limit <= 0 || capped.Limit > c.cfg.MaxContextProfiles {
		capped.Limit = c.cfg.MaxContextProfiles
	}
	profiles, err := c.store.Query(ctx, capped)
	if err != nil {
		return nil, err
	}
	truncated := matched > int64(len(profiles))

	prompt := buildPrompt(question, filter, profiles, matched, truncated, c.cfg.AggregateThreshold)
	resp, err := c.provider.Generate(ctx, llm.Request{
		SystemPrompt: systemPrompt,
		UserPrompt:   prompt,
	})
	if err != nil {
		return nil, err
	}

	answer := &types.ChatAnswer{
		Answer:        resp.Content,
		MatchedCount:  int(matched),
		Truncated:     truncated,
		ExecutionTime: time.Since(started).Seconds(),
	}
	c.record(ctx, question, filter, answer)
	return answer, nil
}

// record writes the turn to the query log, best effort.
func (c *Composer) record(ctx context.Context, question string, filter types.StructuredFilter, answer *types.ChatAnswer) {
	if c.history == nil {
		return
	}
	filterJSON, err := json.Marshal(filter)
	if err != nil {
		filterJSON = []byte("{}")
	}
	rec := &types.QueryRecord{
		UserQuery:   question,
		FilterJSON:  filterJSON,
		ExecutionMS: int64(answer.ExecutionTime * 1000),
		ResultCount: answer.MatchedCount,
		Answer:      answer.Answer,
	}
	if err := c.history.Record(ctx, rec); err != nil {
		c.logger.Warn("query history write failed",
			slog.String("error", err.Error()),
			slog.String("request_id", types.GetRequestID(ctx)))
	}
}
