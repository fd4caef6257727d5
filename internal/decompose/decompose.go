// Package decompose turns a free-text user story into a user-story task
// plus dependency-linked sub-tasks (spec.md §4.9).
package decompose

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/taskforge-mcp/taskforge-mcp/internal/engine"
	"github.com/taskforge-mcp/taskforge-mcp/internal/store"
	"github.com/taskforge-mcp/taskforge-mcp/internal/suggest"
	"github.com/taskforge-mcp/taskforge-mcp/internal/workflow"
)

const completerTimeout = 30 * time.Second

// Decomposer wires the Engine (task persistence) and an injected
// TextCompleter together.
type Decomposer struct {
	Engine    *engine.Engine
	Completer TextCompleter
}

func New(e *engine.Engine, completer TextCompleter) *Decomposer {
	return &Decomposer{Engine: e, Completer: completer}
}

// rawSubtask is the shape a TextCompleter (or a caller of
// save_story_decomposition) must supply per sub-task.
type rawSubtask struct {
	Title          string   `json:"title"`
	Description    string   `json:"description"`
	Complexity     string   `json:"complexity,omitempty"`
	EstimatedHours float64  `json:"estimated_hours,omitempty"`
	Dependencies   []string `json:"dependencies,omitempty"` // titles, resolved to ids in pass two
	Tags           []string `json:"tags,omitempty"`
}

// Result is decompose_story / save_story_decomposition's output.
type Result struct {
	Success                  bool                `json:"success"`
	OriginalStory            string              `json:"original_story"`
	Tasks                    []*store.Task       `json:"tasks"`
	DependencyMap            map[string]string   `json:"dependency_map"` // title -> task id
	TotalEstimatedHours      float64             `json:"total_estimated_hours"`
	NextSteps                *workflow.NextSteps `json:"next_steps"`
	RecommendedAnalysisOrder []string            `json:"recommended_analysis_order"`
}

// fencedCodeBlock strips a surrounding ```json ... ``` or ``` ... ``` fence.
var fencedCodeBlock = regexp.MustCompile("(?s)```(?:json)?\\s*(.*?)\\s*```")

func extractJSONArray(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if m := fencedCodeBlock.FindStringSubmatch(raw); m != nil {
		raw = strings.TrimSpace(m[1])
	}
	if !strings.HasPrefix(raw, "[") {
		start := strings.Index(raw, "[")
		end := strings.LastIndex(raw, "]")
		if start == -1 || end == -1 || end < start {
			return "", fmt.Errorf("%w: completer output is not a JSON array", errParseError)
		}
		raw = raw[start : end+1]
	}
	return raw, nil
}

// DecomposeStory implements decompose_story: invokes the TextCompleter,
// parses and validates its output, then performs the shared
// save-decomposition steps.
func (d *Decomposer) DecomposeStory(ctx context.Context, projectID, userStory string, stack []*store.TechStack, patterns []*store.CodePattern) (*Result, error) {
	prompt := buildDecompositionPrompt(userStory, stack, patterns)

	cctx, cancel := context.WithTimeout(ctx, completerTimeout)
	defer cancel()

	text, err := d.Completer.Complete(cctx, prompt)
	if err != nil {
		if cctx.Err() != nil {
			return nil, fmt.Errorf("%w: text completer exceeded %s", errUpstreamTimeout, completerTimeout)
		}
		return nil, fmt.Errorf("%w: %v", errUpstreamError, err)
	}

	raw, err := extractJSONArray(text)
	if err != nil {
		return nil, err
	}
	var subtasks []rawSubtask
	if err := json.Unmarshal([]byte(raw), &subtasks); err != nil {
		return nil, fmt.Errorf("%w: %v", errParseError, err)
	}
	if len(subtasks) == 0 {
		return nil, fmt.Errorf("%w: completer returned no sub-tasks", store.ErrValidation)
	}

	return d.saveDecomposition(ctx, projectID, userStory, subtasks)
}

// IntelligentPrompt is intelligent_decompose_story's output: a prompt that
// asks the caller to perform the decomposition itself.
func (d *Decomposer) IntelligentPrompt(userStory string, stack []*store.TechStack, patterns []*store.CodePattern) string {
	return buildDecompositionPrompt(userStory, stack, patterns) +
		"\n\nReturn your decomposition as a JSON array matching the schema above, then call save_story_decomposition with it."
}

// SaveStoryDecomposition implements save_story_decomposition: the caller
// has already performed the analysis (via intelligent_decompose_story) and
// submits the structured result directly.
func (d *Decomposer) SaveStoryDecomposition(ctx context.Context, projectID, userStory string, subtasksJSON json.RawMessage) (*Result, error) {
	var subtasks []rawSubtask
	if err := json.Unmarshal(subtasksJSON, &subtasks); err != nil {
		return nil, fmt.Errorf("%w: %v", errParseError, err)
	}
	if len(subtasks) == 0 {
		return nil, fmt.Errorf("%w: no sub-tasks provided", store.ErrValidation)
	}
	return d.saveDecomposition(ctx, projectID, userStory, subtasks)
}

func (d *Decomposer) saveDecomposition(ctx context.Context, projectID, userStory string, subtasks []rawSubtask) (*Result, error) {
	for i := range subtasks {
		if subtasks[i].Title == "" {
			return nil, fmt.Errorf("%w: sub-task %d is missing a title", store.ErrValidation, i)
		}
		if subtasks[i].Complexity == "" {
			subtasks[i].Complexity = "medium"
		}
	}

	storyTask, _, err := d.Engine.CreateTask(ctx, engine.CreateTaskInput{
		Title:       firstLine(userStory),
		Description: userStory,
		IsUserStory: true,
		StoryMetadata: store.StoryMetadata{
			OriginalStory: userStory,
		},
	})
	if err != nil {
		return nil, err
	}

	// Pass one: create every sub-task, collecting title -> id.
	titleToID := make(map[string]string, len(subtasks))
	created := make([]*store.Task, 0, len(subtasks))
	total := 0.0
	for _, st := range subtasks {
		agent, tools := suggestFor(st.Title + " " + st.Description)
		task, _, err := d.Engine.CreateTask(ctx, engine.CreateTaskInput{
			Title: st.Title, Description: st.Description,
			UserStoryID: storyTask.ID, Tags: st.Tags,
			StoryMetadata: store.StoryMetadata{
				Complexity: st.Complexity, EstimatedHours: st.EstimatedHours,
				SuggestedAgent: agent, SuggestedTools: tools,
			},
		})
		if err != nil {
			return nil, err
		}
		titleToID[st.Title] = task.ID
		created = append(created, task)
		total += st.EstimatedHours
	}

	// Pass two: resolve each sub-task's title-based dependencies to ids.
	depMap := make(map[string]string, len(subtasks))
	noDeps := make([]string, 0, len(subtasks))
	for i, st := range subtasks {
		depMap[st.Title] = titleToID[st.Title]
		if len(st.Dependencies) == 0 {
			noDeps = append(noDeps, created[i].ID)
			continue
		}
		ids := make([]string, 0, len(st.Dependencies))
		for _, depTitle := range st.Dependencies {
			if depID, ok := titleToID[depTitle]; ok {
				ids = append(ids, depID)
			}
		}
		if len(ids) > 0 {
			if _, _, err := d.Engine.UpdateTask(ctx, created[i].ID, engine.UpdateTaskInput{Deps: &ids}); err != nil {
				return nil, err
			}
		} else {
			noDeps = append(noDeps, created[i].ID)
		}
	}
	sort.Strings(noDeps)

	if err := d.Engine.Store.Emit(ctx, store.EventUserStoryCreated, map[string]any{
		"user_story_id": storyTask.ID, "task_count": len(created),
	}); err != nil {
		return nil, err
	}

	firstTaskID := storyTask.ID
	if len(noDeps) > 0 {
		firstTaskID = noDeps[0]
	}

	return &Result{
		Success: true, OriginalStory: userStory, Tasks: created,
		DependencyMap: depMap, TotalEstimatedHours: total,
		NextSteps:                workflow.StoryDecomposed(firstTaskID),
		RecommendedAnalysisOrder: noDeps,
	}, nil
}

func suggestFor(text string) (string, []string) {
	agents := suggest.Top(suggest.DefaultAgents, text, "", 1)
	tools := suggest.Top(suggest.DefaultTools, text, "", 3)
	agent := ""
	if len(agents) > 0 {
		agent = agents[0].Name
	}
	toolNames := make([]string, 0, len(tools))
	for _, t := range tools {
		toolNames = append(toolNames, t.Name)
	}
	return agent, toolNames
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i != -1 {
		s = s[:i]
	}
	if len(s) > 120 {
		s = s[:120]
	}
	return s
}

func buildDecompositionPrompt(userStory string, stack []*store.TechStack, patterns []*store.CodePattern) string {
	var b strings.Builder
	b.WriteString("Decompose the following user story into 3-8 concrete technical tasks.\n\n")
	fmt.Fprintf(&b, "User story: %s\n\n", userStory)
	if len(stack) > 0 {
		b.WriteString("Tech stack:\n")
		for _, ts := range stack {
			fmt.Fprintf(&b, "- %s: %s %s\n", ts.Category, ts.Name, ts.Version)
		}
		b.WriteString("\n")
	}
	if len(patterns) > 0 {
		b.WriteString("Known code patterns:\n")
		for _, p := range patterns {
			fmt.Fprintf(&b, "- %s: %s\n", p.Name, p.Description)
		}
		b.WriteString("\n")
	}
	b.WriteString("Respond with a JSON array only, each element: " +
		`{"title","description","complexity":"simple|medium|complex","estimated_hours","dependencies":["title",...],"tags":["..."]}`)
	return b.String()
}
