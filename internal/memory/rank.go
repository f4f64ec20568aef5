package memory

import (
	"fmt"
	"sort"
	"strings"
)

// NoResultsMessage is returned when a search yields nothing.
const NoResultsMessage = "no results found"

// queryStopwords is a small fixed set of filler tokens dropped from search
// queries before they reach the service. This is best-effort cleanup, not a
// full stopword system.
var queryStopwords = map[string]struct{}{
	"的": {},
	"是": {},
	"在": {},
	"和": {},
	"有": {},
}

// PreprocessQuery tokenizes the query on whitespace, drops stopwords, and
// rejoins the remaining tokens with single spaces.
func PreprocessQuery(query string) string {
	words := strings.Fields(query)
	kept := make([]string, 0, len(words))
	for _, w := range words {
		if _, ok := queryStopwords[strings.ToLower(w)]; ok {
			continue
		}
		kept = append(kept, w)
	}
	return strings.Join(kept, " ")
}

// RankAndFormat post-processes a raw search response into presentable text.
//
// Two strategies compose by early return. First the response is passed
// through Normalize: services that already return flat text are done there.
// Only when that yields nothing does structured extraction run: score
// filtering, descending sort, truncation to limit, and line formatting.
// Note that the flat-text path bypasses min-score filtering entirely;
// callers depend on that, so it must stay even though it looks like a bug.
func RankAndFormat(raw any, limit int, minScore float64) string {
	if text := normalizedText(raw); text != "" {
		return text
	}

	entries := extractEntries(raw, minScore)
	entries = sortByScore(entries)

	// Truncation must come after filtering and sorting so that low-scored
	// candidates cannot crowd out qualifying ones.
	if len(entries) > limit {
		entries = entries[:limit]
	}

	lines := make([]string, 0, len(entries))
	for _, entry := range entries {
		lines = append(lines, formatEntry(entry))
	}
	if len(lines) == 0 {
		return NoResultsMessage
	}
	return strings.Join(lines, "\n\n")
}

// normalizedText applies the flat-text strategy. A mapping without a text
// field is structured data: rendering it verbatim would shadow the
// results/facts extraction, so it falls through to the second strategy.
func normalizedText(raw any) string {
	if m, ok := raw.(map[string]any); ok {
		if _, ok := m["text"]; !ok {
			return ""
		}
	}
	return Normalize(raw)
}

// extractEntries pulls result entries out of the raw response shape.
// Only the results-shaped branch carries scores, so min-score filtering
// applies there and nowhere else.
func extractEntries(raw any, minScore float64) []any {
	switch v := raw.(type) {
	case map[string]any:
		if results, ok := v["results"]; ok {
			list, _ := results.([]any)
			entries := make([]any, 0, len(list))
			for _, r := range list {
				rec, ok := r.(map[string]any)
				if !ok {
					continue
				}
				score, _ := numericField(rec, "score")
				if score < minScore {
					continue
				}
				entries = append(entries, map[string]any{
					"text":      rec["memory"],
					"score":     rec["score"],
					"timestamp": rec["timestamp"],
				})
			}
			return entries
		}
		if facts, ok := v["facts"]; ok {
			// Facts carry no scores, so they pass through unfiltered.
			list, _ := facts.([]any)
			return list
		}
		return []any{v}

	case []any:
		return v

	case nil:
		return nil

	default:
		return []any{v}
	}
}

// sortByScore sorts entries by descending score, but only when every entry
// is a scored record. Equal scores keep their original order.
func sortByScore(entries []any) []any {
	for _, e := range entries {
		rec, ok := e.(map[string]any)
		if !ok {
			return entries
		}
		if _, ok := rec["score"]; !ok {
			return entries
		}
	}

	sort.SliceStable(entries, func(i, j int) bool {
		si, _ := numericField(entries[i].(map[string]any), "score")
		sj, _ := numericField(entries[j].(map[string]any), "score")
		return si > sj
	})
	return entries
}

// formatEntry renders one result line. Scored records get a similarity
// prefix; everything else is rendered plainly.
func formatEntry(entry any) string {
	rec, ok := entry.(map[string]any)
	if !ok {
		return stringify(entry)
	}

	score, scored := numericField(rec, "score")
	text := entryText(rec)
	if !scored {
		return text
	}
	return fmt.Sprintf("[similarity: %.2f] %s", score, text)
}

// entryText picks the display text of a record: text, then memory, then a
// rendering of the whole record.
func entryText(rec map[string]any) string {
	if t, ok := rec["text"].(string); ok && t != "" {
		return t
	}
	if m, ok := rec["memory"].(string); ok && m != "" {
		return m
	}
	return stringify(rec)
}

// numericField reads a numeric field from a decoded JSON record.
func numericField(rec map[string]any, key string) (float64, bool) {
	switch n := rec[key].(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	}
	return 0, false
}
