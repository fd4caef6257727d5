package workflow

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/taskforge-mcp/taskforge-mcp/internal/store"
	"github.com/taskforge-mcp/taskforge-mcp/internal/suggest"
)

// AnalysisPrompt is prepare_task_for_execution's output (spec.md §4.8.3).
type AnalysisPrompt struct {
	TaskID          string     `json:"task_id"`
	TaskTitle       string     `json:"task_title"`
	TaskDescription string     `json:"task_description"`
	Prompt          string     `json:"prompt"`
	SearchPatterns  []string   `json:"search_patterns"`
	FilesToCheck    []string   `json:"files_to_check"`
	RisksToIdentify []string   `json:"risks_to_identify"`
	NextSteps       *NextSteps `json:"next_steps"`
}

var stopWords = map[string]bool{
	"the": true, "a": true, "an": true, "to": true, "of": true, "and": true,
	"or": true, "in": true, "on": true, "for": true, "with": true, "is": true,
	"be": true, "via": true, "should": true, "able": true, "user": true,
}

var tokenRe = regexp.MustCompile(`[a-zA-Z0-9_]+`)

// extractKeywords pulls candidate search terms from task text: lowercase
// words of 4+ characters, stop words removed, de-duplicated, longest first.
func extractKeywords(text string, limit int) []string {
	seen := map[string]bool{}
	var out []string
	for _, w := range tokenRe.FindAllString(strings.ToLower(text), -1) {
		if len(w) < 4 || stopWords[w] || seen[w] {
			continue
		}
		seen[w] = true
		out = append(out, w)
	}
	sort.SliceStable(out, func(i, j int) bool { return len(out[i]) > len(out[j]) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out
}

// filesToCheckGlobs seeds file globs to check from configured tech stack
// entries, falling back to a generic source-tree glob if none configured.
func filesToCheckGlobs(stack []*store.TechStack) []string {
	if len(stack) == 0 {
		return []string{"**/*"}
	}
	var out []string
	for _, ts := range stack {
		switch strings.ToLower(ts.Category) {
		case "language", "runtime":
			out = append(out, fmt.Sprintf("**/*.%s", strings.ToLower(ts.Name)))
		default:
			out = append(out, fmt.Sprintf("**/%s/**", strings.ToLower(ts.Name)))
		}
	}
	return out
}

// risksToIdentify derives heuristic risk prompts from a task's category
// and tags.
func risksToIdentify(category string, tags []string) []string {
	risks := []string{"breaking changes to existing callers", "missing test coverage for the new behavior"}
	switch category {
	case store.CategoryBackendDatabase:
		risks = append(risks, "schema migrations that can't be rolled back", "N+1 query patterns")
	case store.CategoryDesignFrontend:
		risks = append(risks, "accessibility regressions", "layout shifts on smaller viewports")
	case store.CategoryTestFix:
		risks = append(risks, "masking the underlying defect instead of fixing it")
	}
	for _, t := range tags {
		if strings.EqualFold(t, "security") {
			risks = append(risks, "introducing an injection or auth-bypass vector")
		}
	}
	return risks
}

// BuildAnalysisPrompt assembles prepare_task_for_execution's response.
func BuildAnalysisPrompt(ctx context.Context, s *store.Store, task *store.Task, projectID string) (*AnalysisPrompt, error) {
	stack, err := s.ListTechStack(ctx, projectID)
	if err != nil {
		return nil, err
	}
	similar, err := s.SimilarLearnings(ctx, store.SimilarLearningsFilter{Context: task.Title + " " + task.Description}, 3)
	if err != nil {
		return nil, err
	}

	searchPatterns := extractKeywords(task.Title+" "+task.Description, 8)
	filesToCheck := filesToCheckGlobs(stack)
	risks := risksToIdentify(task.Category, task.Tags)

	var b strings.Builder
	fmt.Fprintf(&b, "Task: %s\n\n%s\n\n", task.Title, task.Description)
	b.WriteString("Use your own read, search, and glob capabilities to inspect the codebase. ")
	b.WriteString("Start from the search patterns and file globs below, then identify the risks listed. ")
	b.WriteString("Do not make any changes yet — when you're done, call save_task_analysis with your findings.\n\n")
	if len(searchPatterns) > 0 {
		fmt.Fprintf(&b, "Search patterns: %s\n", strings.Join(searchPatterns, ", "))
	}
	if len(filesToCheck) > 0 {
		fmt.Fprintf(&b, "Files to check: %s\n", strings.Join(filesToCheck, ", "))
	}
	if len(risks) > 0 {
		fmt.Fprintf(&b, "Risks to identify: %s\n", strings.Join(risks, "; "))
	}
	if len(similar) > 0 {
		b.WriteString("\nRelevant past learnings:\n")
		for _, l := range similar {
			fmt.Fprintf(&b, "- [%s] %s\n", l.Pattern, l.Lesson)
		}
	}

	return &AnalysisPrompt{
		TaskID: task.ID, TaskTitle: task.Title, TaskDescription: task.Description,
		Prompt: b.String(), SearchPatterns: searchPatterns, FilesToCheck: filesToCheck,
		RisksToIdentify: risks, NextSteps: AnalysisPrepared(task.ID),
	}, nil
}

// ExecutionPrompt is get_execution_prompt's output (spec.md §4.8.4).
type ExecutionPrompt struct {
	TaskID    string         `json:"task_id"`
	Prompt    string         `json:"prompt"`
	Context   map[string]any `json:"context"`
	NextSteps *NextSteps     `json:"next_steps"`
}

// BuildExecutionPrompt assembles get_execution_prompt's response. It does
// not report NotAnalyzed itself: get_execution_prompt checks task.Analysis
// first, and a nil Analysis here just leaves out the analysis sections.
func BuildExecutionPrompt(ctx context.Context, s *store.Store, task *store.Task, guidelines []*store.Guideline) (*ExecutionPrompt, error) {
	analysis := task.Analysis

	agentSuggestions := suggest.Top(suggest.DefaultAgents, task.Title+" "+task.Description, task.Category, 1)
	toolSuggestions := suggest.Top(suggest.DefaultTools, task.Title+" "+task.Description, task.Category, 3)

	graphEdges, graphNodes, err := s.TaskDependencyGraphEdges(ctx, task.ID)
	if err != nil {
		return nil, err
	}

	similar, err := s.SimilarLearnings(ctx, store.SimilarLearningsFilter{Context: task.Title + " " + task.Description}, 3)
	if err != nil {
		return nil, err
	}

	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n\n%s\n\n", task.Title, task.Description)

	if len(agentSuggestions) > 0 {
		a := agentSuggestions[0]
		fmt.Fprintf(&b, "## Suggested agent\n%s (confidence %.2f) — %s\n\n", a.Name, a.Confidence, a.Reason)
	}
	if len(toolSuggestions) > 0 {
		b.WriteString("## Suggested tools\n")
		for _, t := range toolSuggestions {
			fmt.Fprintf(&b, "- %s (confidence %.2f)\n", t.Name, t.Confidence)
		}
		b.WriteString("\n")
	}

	if analysis != nil {
		if len(analysis.FilesToModify) > 0 {
			b.WriteString("## Files to modify\n")
			for _, f := range analysis.FilesToModify {
				fmt.Fprintf(&b, "- [%s risk] %s — %s\n", f.Risk, f.Path, f.Reason)
			}
			b.WriteString("\n")
		}
		if len(analysis.FilesToCreate) > 0 {
			b.WriteString("## Files to create\n")
			for _, f := range analysis.FilesToCreate {
				fmt.Fprintf(&b, "- %s — %s\n", f.Path, f.Reason)
			}
			b.WriteString("\n")
		}
	}

	if len(graphEdges) > 0 {
		b.WriteString("## Dependencies (resource graph)\n")
		for i, e := range graphEdges {
			var name string
			if i < len(graphNodes) {
				name = graphNodes[i].Name
			}
			fmt.Fprintf(&b, "- %s %s\n", e.Action, name)
		}
		b.WriteString("\n")
	}

	if analysis != nil && len(analysis.Risks) > 0 {
		b.WriteString("## Risks\n")
		for _, lvl := range []string{"high", "medium", "low"} {
			for _, r := range analysis.Risks {
				if r.Level != lvl {
					continue
				}
				fmt.Fprintf(&b, "- [%s] %s — mitigation: %s\n", r.Level, r.Description, r.Mitigation)
			}
		}
		b.WriteString("\n")
	}

	if analysis != nil && len(analysis.RelatedCode) > 0 {
		b.WriteString("## Related code\n")
		for _, rc := range analysis.RelatedCode {
			fmt.Fprintf(&b, "- %s (%s) — %s\n", rc.File, rc.Lines, rc.Description)
		}
		b.WriteString("\n")
	}

	if analysis != nil && len(analysis.Recommendations) > 0 {
		b.WriteString("## Recommendations\n")
		for _, r := range analysis.Recommendations {
			fmt.Fprintf(&b, "- %s\n", r)
		}
		b.WriteString("\n")
	}

	if len(similar) > 0 {
		b.WriteString("## Similar past learnings\n")
		for _, l := range similar {
			fmt.Fprintf(&b, "- [%s] %s\n", l.Pattern, l.Lesson)
		}
		b.WriteString("\n")
	}

	b.WriteString("## Project guidelines\n")
	if len(guidelines) == 0 {
		b.WriteString("- Follow existing conventions in the surrounding code.\n- Add or update tests alongside behavioral changes.\n")
	} else {
		for _, g := range guidelines {
			fmt.Fprintf(&b, "- %s\n", g.Text)
		}
	}

	b.WriteString("\n## After implementing\n1. Call update_task to set status to in_progress, then done once complete.\n2. Call add_feedback describing what worked or didn't, so future suggestions improve.\n")

	return &ExecutionPrompt{
		TaskID: task.ID,
		Prompt: b.String(),
		Context: map[string]any{
			"agent_suggestions": agentSuggestions,
			"tool_suggestions":  toolSuggestions,
			"analysis":          analysis,
			"similar_learnings": similar,
		},
		NextSteps: ReadyToImplement(task.ID),
	}, nil
}
