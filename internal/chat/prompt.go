package chat

import (
	"fmt"
	"math"
	"strings"

	"floatchat/internal/types"
)

// systemPrompt pins the model to the retrieved rows. The data block is the
// only source of truth it is allowed to use.
const systemPrompt = `You are an assistant for an ARGO ocean float dataset.
Answer using ONLY the measurements in the DATA section. Quote numbers as
given. If the data cannot answer the question, say exactly that. Never
invent floats, positions, dates, or values.`

// noDataAnswer is composed locally: with nothing retrieved there is nothing
// for a model to ground on, so no upstream call is made.
func noDataAnswer(filter types.StructuredFilter) string {
	return fmt.Sprintf("No data: no profiles in the store match your question (%s). "+
		"Try widening the time range or the area.", filter.Describe())
}

// buildPrompt renders the user prompt: the question, the interpreted filter,
// and the data block. Small result sets are listed profile by profile;
// larger ones are summarized so the prompt stays bounded.
func buildPrompt(question string, filter types.StructuredFilter, profiles []types.FloatProfile,
	matched int64, truncated bool, aggregateThreshold int) string {
	var b strings.Builder

	fmt.Fprintf(&b, "QUESTION: %s\n\n", question)
	fmt.Fprintf(&b, "INTERPRETED AS: %s\n", filter.Describe())
	fmt.Fprintf(&b, "MATCHED PROFILES: %d\n", matched)
	if truncated {
		fmt.Fprintf(&b, "NOTE: only the first %d profiles (oldest first) are shown below; "+
			"mention that the answer covers a subset.\n", len(profiles))
	}
	b.WriteString("\nDATA:\n")

	if len(profiles) > aggregateThreshold {
		writeAggregate(&b, profiles)
	} else {
		for i := range profiles {
			writeExcerpt(&b, &profiles[i])
		}
	}
	return b.String()
}

// writeExcerpt renders one profile: identity, position, time, and the
// surface and deepest sample of each series.
func writeExcerpt(b *strings.Builder, p *types.FloatProfile) {
	fmt.Fprintf(b, "- float %s cycle %d at (%.3f, %.3f) on %s",
		p.FloatID, p.CycleNumber, p.Latitude, p.Longitude, p.Timestamp.Format("2006-01-02"))
	if p.OceanRegion != "" {
		fmt.Fprintf(b, " [%s]", p.OceanRegion)
	}
	b.WriteString("\n")
	for _, s := range p.Series {
		if len(s.Levels) == 0 {
			continue
		}
		top, bottom := s.Levels[0], s.Levels[len(s.Levels)-1]
		fmt.Fprintf(b, "    %s: %.2f at %.1f dbar .. %.2f at %.1f dbar (%d levels)\n",
			s.Parameter, top.Value, top.Depth, bottom.Value, bottom.Depth, len(s.Levels))
	}
}

// writeAggregate renders a compact summary of a large result set: float
// count, time extent, position extent, and per-parameter min/mean/max over
// all levels.
func writeAggregate(b *strings.Builder, profiles []types.FloatProfile) {
	floats := map[string]struct{}{}
	tMin, tMax := profiles[0].Timestamp, profiles[0].Timestamp
	latMin, latMax := profiles[0].Latitude, profiles[0].Latitude
	lonMin, lonMax := profiles[0].Longitude, profiles[0].Longitude

	type acc struct {
		min, max, sum float64
		n             int
	}
	stats := map[types.Parameter]*acc{}

	for i := range profiles {
		p := &profiles[i]
		floats[p.FloatID] = struct{}{}
		if p.Timestamp.Before(tMin) {
			tMin = p.Timestamp
		}
		if p.Timestamp.After(tMax) {
			tMax = p.Timestamp
		}
		latMin = math.Min(latMin, p.Latitude)
		latMax = math.Max(latMax, p.Latitude)
		lonMin = math.Min(lonMin, p.Longitude)
		lonMax = math.Max(lonMax, p.Longitude)

		for _, s := range p.Series {
			a := stats[s.Parameter]
			if a == nil {
				a = &acc{min: math.Inf(1), max: math.Inf(-1)}
				stats[s.Parameter] = a
			}
			for _, lv := range s.Levels {
				a.min = math.Min(a.min, lv.Value)
				a.max = math.Max(a.max, lv.Value)
				a.sum += lv.Value
				a.n++
			}
		}
	}

	fmt.Fprintf(b, "- %d profiles from %d floats\n", len(profiles), len(floats))
	fmt.Fprintf(b, "- time span %s to %s\n", tMin.Format("2006-01-02"), tMax.Format("2006-01-02"))
	fmt.Fprintf(b, "- positions lat [%.2f, %.2f], lon [%.2f, %.2f]\n", latMin, latMax, lonMin, lonMax)
	for _, param := range types.Parameters() {
		a, ok := stats[param]
		if !ok || a.n == 0 {
			continue
		}
		fmt.Fprintf(b, "- %s: min %.2f, mean %.2f, max %.2f over %d samples\n",
			param, a.min, a.sum/float64(a.n), a.max, a.n)
	}
}
