package translate

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"floatchat/internal/types"
)

var monthsByName = map[string]time.Month{
	"january": time.January, "jan": time.January,
	"february": time.February, "feb": time.February,
	"march": time.March, "mar": time.March,
	"april": time.April, "apr": time.April,
	"may": time.May,
	"june": time.June, "jun": time.June,
	"july": time.July, "jul": time.July,
	"august": time.August, "aug": time.August,
	"september": time.September, "sep": time.September,
	"october": time.October, "oct": time.October,
	"november": time.November, "nov": time.November,
	"december": time.December, "dec": time.December,
}

const monthAlt = `january|february|march|april|may|june|july|august|september|october|november|december|jan|feb|mar|apr|jun|jul|aug|sep|oct|nov|dec`

// dateExpr matches the date forms the grammar accepts: ISO dates, month-year
// pairs, and bare years.
const dateExpr = `\d{4}-\d{2}-\d{2}|(?:` + monthAlt + `)\s+\d{4}|\d{4}`

var (
	reBetween  = regexp.MustCompile(`\b(?:between|from)\s+(` + dateExpr + `)\s+(?:and|to|until)\s+(` + dateExpr + `)\b`)
	reSince    = regexp.MustCompile(`\bsince\s+(` + dateExpr + `)\b`)
	reLastN    = regexp.MustCompile(`\b(?:last|past)\s+(\d+)\s+(day|week|month|year)s?\b`)
	reLastUnit = regexp.MustCompile(`\b(?:last|past)\s+(day|week|month|year)\b`)
	reInYear   = regexp.MustCompile(`\bin\s+((?:19|20)\d{2})\b`)
	reMonthYr  = regexp.MustCompile(`\b(` + monthAlt + `)\s+((?:19|20)\d{2})\b`)
	reISODate  = regexp.MustCompile(`\b\d{4}-\d{2}-\d{2}\b`)
)

// parseDateExpr resolves one dateExpr match to the start of its span and the
// span's width (a day, a month, or a year).
func parseDateExpr(s string) (start time.Time, span time.Duration, ok bool) {
	s = strings.TrimSpace(s)
	if t, err := time.Parse("2006-01-02", s); err == nil {
		return t.UTC(), 24 * time.Hour, true
	}
	if fields := strings.Fields(s); len(fields) == 2 {
		m, okM := monthsByName[fields[0]]
		y, errY := strconv.Atoi(fields[1])
		if okM && errY == nil {
			start = time.Date(y, m, 1, 0, 0, 0, 0, time.UTC)
			return start, start.AddDate(0, 1, 0).Sub(start), true
		}
	}
	if y, err := strconv.Atoi(s); err == nil && y >= 1900 && y <= 2200 {
		start = time.Date(y, time.January, 1, 0, 0, 0, 0, time.UTC)
		return start, start.AddDate(1, 0, 0).Sub(start), true
	}
	return time.Time{}, 0, false
}

func unitDuration(now time.Time, n int, unit string) time.Time {
	switch unit {
	case "day":
		return now.AddDate(0, 0, -n)
	case "week":
		return now.AddDate(0, 0, -7*n)
	case "month":
		return now.AddDate(0, -n, 0)
	case "year":
		return now.AddDate(-n, 0, 0)
	}
	return now
}

// matchTimeRange extracts every temporal phrase from the normalized query
// and resolves the narrowest one. It returns the remaining query text with
// the matched phrases removed, so a year inside "between 2022 and 2023" is
// not re-read as a standalone "in 2022".
func matchTimeRange(query string) (*types.TimeRange, string) {
	now := clock.Now().UTC()
	var candidates []types.TimeRange

	consume := func(re *regexp.Regexp, build func(m []string) (types.TimeRange, bool)) {
		for _, m := range re.FindAllStringSubmatch(query, -1) {
			if tr, ok := build(m); ok {
				candidates = append(candidates, tr)
			}
		}
		query = re.ReplaceAllString(query, " ")
	}

	consume(reBetween, func(m []string) (types.TimeRange, bool) {
		start, _, okA := parseDateExpr(m[1])
		endStart, endSpan, okB := parseDateExpr(m[2])
		if !okA || !okB {
			return types.TimeRange{}, false
		}
		return types.TimeRange{Start: start, End: endStart.Add(endSpan)}, true
	})
	consume(reSince, func(m []string) (types.TimeRange, bool) {
		start, _, ok := parseDateExpr(m[1])
		return types.TimeRange{Start: start}, ok
	})
	consume(reLastN, func(m []string) (types.TimeRange, bool) {
		n, err := strconv.Atoi(m[1])
		if err != nil || n <= 0 {
			return types.TimeRange{}, false
		}
		return types.TimeRange{Start: unitDuration(now, n, m[2]), End: now}, true
	})
	consume(reLastUnit, func(m []string) (types.TimeRange, bool) {
		return types.TimeRange{Start: unitDuration(now, 1, m[1]), End: now}, true
	})
	if strings.Contains(query, "yesterday") {
		day := now.Truncate(24 * time.Hour)
		candidates = append(candidates, types.TimeRange{Start: day.AddDate(0, 0, -1), End: day})
		query = strings.ReplaceAll(query, "yesterday", " ")
	}
	if strings.Contains(query, "today") {
		candidates = append(candidates, types.TimeRange{Start: now.Truncate(24 * time.Hour), End: now})
		query = strings.ReplaceAll(query, "today", " ")
	}
	consume(reMonthYr, func(m []string) (types.TimeRange, bool) {
		start, span, ok := parseDateExpr(m[1] + " " + m[2])
		if !ok {
			return types.TimeRange{}, false
		}
		return types.TimeRange{Start: start, End: start.Add(span)}, true
	})
	consume(reInYear, func(m []string) (types.TimeRange, bool) {
		start, span, ok := parseDateExpr(m[1])
		if !ok {
			return types.TimeRange{}, false
		}
		return types.TimeRange{Start: start, End: start.Add(span)}, true
	})
	consume(reISODate, func(m []string) (types.TimeRange, bool) {
		start, span, ok := parseDateExpr(m[0])
		if !ok {
			return types.TimeRange{}, false
		}
		return types.TimeRange{Start: start, End: start.Add(span)}, true
	})

	if len(candidates) == 0 {
		return nil, query
	}

	// Several phrases may apply; the narrowest window wins. Open-ended
	// ranges are measured up to now.
	best := candidates[0]
	for _, c := range candidates[1:] {
		if effectiveWidth(c, now) < effectiveWidth(best, now) {
			best = c
		}
	}
	return &best, query
}

func effectiveWidth(tr types.TimeRange, now time.Time) time.Duration {
	end := tr.End
	if end.IsZero() {
		end = now
	}
	return end.Sub(tr.Start)
}
