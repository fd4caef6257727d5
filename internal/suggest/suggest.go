// Package suggest implements the keyword-scored agent/tool suggestion
// algorithm shared by suggest_agents_for_task and suggest_tools_for_task
// (spec.md §4.7).
package suggest

import (
	"regexp"
	"sort"
	"strings"
)

// Candidate is one entry in a suggestion registry: an agent or a tool,
// scored against a task's title+description.
type Candidate struct {
	Name     string
	Type     string // agent_type or tool_type
	Category string // preferred task category, or "" if none
	Keywords []string
}

// Suggestion is a scored Candidate returned to the caller.
type Suggestion struct {
	Name       string   `json:"name"`
	Type       string   `json:"type"`
	Reason     string   `json:"reason"`
	Confidence float64  `json:"confidence"`
	Matched    []string `json:"matched_keywords"`
}

var wordRe = regexp.MustCompile(`[a-zA-Z0-9_]+`)

// Score runs spec.md §4.7's algorithm over text against one candidate:
// match_count is the number of distinct keywords present as whole words in
// text (case-insensitive), +2 if category matches, and
// confidence = min(0.95, match_count/total_keywords + 0.2).
func Score(c Candidate, text, taskCategory string) (confidence float64, matched []string) {
	if len(c.Keywords) == 0 {
		return 0, nil
	}
	words := map[string]bool{}
	for _, w := range wordRe.FindAllString(strings.ToLower(text), -1) {
		words[w] = true
	}

	matchCount := 0
	for _, kw := range c.Keywords {
		if words[strings.ToLower(kw)] {
			matchCount++
			matched = append(matched, kw)
		}
	}
	if c.Category != "" && c.Category == taskCategory {
		matchCount += 2
	}

	confidence = float64(matchCount)/float64(len(c.Keywords)) + 0.2
	if confidence > 0.95 {
		confidence = 0.95
	}
	if confidence < 0 {
		confidence = 0
	}
	return round2(confidence), matched
}

// Top returns the top n candidates by confidence for text, deterministic
// for a fixed registry and input. A candidate with no keyword match and no
// genuine (non-empty) category match contributes nothing to match_count and
// is dropped, rather than surfaced at the bare 0.2 floor.
func Top(registry []Candidate, text, taskCategory string, n int) []Suggestion {
	out := make([]Suggestion, 0, len(registry))
	for _, c := range registry {
		confidence, matched := Score(c, text, taskCategory)
		categoryMatch := taskCategory != "" && c.Category != "" && c.Category == taskCategory
		if len(matched) == 0 && !categoryMatch {
			continue
		}
		reason := "no keywords matched"
		if len(matched) > 0 {
			reason = "matched: " + strings.Join(matched, ", ")
		}
		out = append(out, Suggestion{
			Name:       c.Name,
			Type:       c.Type,
			Reason:     reason,
			Confidence: confidence,
			Matched:    matched,
		})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Confidence > out[j].Confidence })
	if len(out) > n {
		out = out[:n]
	}
	return out
}

func round2(v float64) float64 {
	return float64(int(v*100+0.5)) / 100
}
