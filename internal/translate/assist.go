package translate

import (
	"context"
	"encoding/json"
	"strings"

	"floatchat/internal/llm"
	"floatchat/internal/types"
)

// assistSystemPrompt instructs the model to emit a filter, nothing else.
// Fields mirror types.StructuredFilter; unknown keys are rejected.
const assistSystemPrompt = `You convert one question about ocean float measurements into a JSON filter.
Respond with a single JSON object and no other text. Use only these keys,
omitting any the question does not constrain:
  "time": {"start": RFC3339, "end": RFC3339}
  "region": {"lat_min", "lat_max", "lon_min", "lon_max"}
  "float_ids": ["platform numbers"]
  "parameter": one of "temperature", "salinity", "pressure"
  "compare": {"parameter", "op": one of ">", ">=", "<", "<=", "value"}
  "limit": integer
If the question constrains nothing, respond with {}.`

// assistMaxTokens bounds the assist completion; a filter is tiny.
const assistMaxTokens = 256

// NewLLMAssist adapts a language model into an AssistFunc. The model's
// output is parsed strictly and then clamped by the caller's Normalize pass;
// anything unparseable yields a nil filter rather than an error the
// translator would act on.
func NewLLMAssist(provider llm.Provider) AssistFunc {
	return func(ctx context.Context, query string) (*types.StructuredFilter, error) {
		resp, err := provider.Generate(ctx, llm.Request{
			SystemPrompt: assistSystemPrompt,
			UserPrompt:   query,
			MaxTokens:    assistMaxTokens,
		})
		if err != nil {
			return nil, err
		}
		return parseAssistFilter(resp.Content)
	}
}

// parseAssistFilter extracts the first JSON object from the completion and
// decodes it with unknown fields disallowed.
func parseAssistFilter(content string) (*types.StructuredFilter, error) {
	start := strings.IndexByte(content, '{')
	end := strings.LastIndexByte(content, '}')
	if start < 0 || end <= start {
		return nil, nil
	}

	var filter types.StructuredFilter
	dec := json.NewDecoder(strings.NewReader(content[start : end+1]))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&filter); err != nil {
		return nil, nil
	}
	return &filter, nil
}
