package retrieval

import (
	"sort"
	"strings"
)

// skillKeywords maps observability skill tags to substrings matched against
// the query and retrieved chunks. Tags have no effect on correctness.
var skillKeywords = map[string][]string{
	"anxiety":    {"anxious", "anxiety", "panic", "worry", "worried"},
	"grounding":  {"grounding", "breathing", "breathe", "present moment"},
	"sleep":      {"sleep", "insomnia", "tired", "bedtime", "awake"},
	"mood":       {"sad", "down", "depress", "mood", "hopeless"},
	"support":    {"lonely", "alone", "listen", "support", "crisis"},
	"stress":     {"stress", "overwhelm", "burnout", "pressure"},
}

func matchSkills(query, knowledge string) []string {
	haystack := strings.ToLower(query + "\n" + knowledge)

	var tags []string
	for tag, keywords := range skillKeywords {
		for _, kw := range keywords {
			if strings.Contains(haystack, kw) {
				tags = append(tags, tag)
				break
			}
		}
	}
	sort.Strings(tags)
	return tags
}
