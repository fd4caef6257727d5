// Package workflow implements the workflow tool group: decompose_story,
// intelligent_decompose_story, save_story_decomposition,
// prepare_task_for_execution, save_task_analysis, get_execution_prompt.
package workflow

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/taskforge-mcp/taskforge-mcp/internal/decompose"
	"github.com/taskforge-mcp/taskforge-mcp/internal/graph"
	"github.com/taskforge-mcp/taskforge-mcp/internal/mcp"
	"github.com/taskforge-mcp/taskforge-mcp/internal/store"
	workflowcore "github.com/taskforge-mcp/taskforge-mcp/internal/workflow"
)

func errResult(err error) (*mcp.ToolsCallResult, error) {
	return mcp.ErrorResult(err.Error()), nil
}

func invalidParams(err error) (*mcp.ToolsCallResult, error) {
	return mcp.ErrorResult(fmt.Sprintf("invalid parameters: %v", err)), nil
}

// --- decompose_story ---

type DecomposeStory struct {
	store *store.Store
	dec   *decompose.Decomposer
}

func NewDecomposeStory(s *store.Store, d *decompose.Decomposer) *DecomposeStory {
	return &DecomposeStory{store: s, dec: d}
}

func (t *DecomposeStory) Name() string { return "decompose_story" }
func (t *DecomposeStory) Description() string {
	return "Decompose a free-text user story into a user-story task plus dependency-linked sub-tasks, using the configured text completer."
}
func (t *DecomposeStory) InputSchema() json.RawMessage {
	return json.RawMessage(`{
  "type": "object",
  "properties": {
    "project_id": {"type": "string"},
    "user_story": {"type": "string"}
  },
  "required": ["user_story"]
}`)
}

func (t *DecomposeStory) Execute(ctx context.Context, params json.RawMessage) (*mcp.ToolsCallResult, error) {
	var p struct {
		ProjectID string `json:"project_id"`
		UserStory string `json:"user_story"`
	}
	if err := json.Unmarshal(params, &p); err != nil {
		return invalidParams(err)
	}
	projectID, err := resolveProjectID(ctx, t.store, p.ProjectID)
	if err != nil {
		return errResult(err)
	}
	stack, err := t.store.ListTechStack(ctx, projectID)
	if err != nil {
		return errResult(err)
	}
	patterns, err := t.store.ListCodePatterns(ctx, projectID)
	if err != nil {
		return errResult(err)
	}
	result, err := t.dec.DecomposeStory(ctx, projectID, p.UserStory, stack, patterns)
	if err != nil {
		return errResult(err)
	}
	return mcp.JSONResult(result)
}

// --- intelligent_decompose_story ---

type IntelligentDecomposeStory struct {
	store *store.Store
	dec   *decompose.Decomposer
}

func NewIntelligentDecomposeStory(s *store.Store, d *decompose.Decomposer) *IntelligentDecomposeStory {
	return &IntelligentDecomposeStory{store: s, dec: d}
}

func (t *IntelligentDecomposeStory) Name() string { return "intelligent_decompose_story" }
func (t *IntelligentDecomposeStory) Description() string {
	return "Return a decomposition prompt for the calling assistant to answer itself, then submit via save_story_decomposition."
}
func (t *IntelligentDecomposeStory) InputSchema() json.RawMessage {
	return json.RawMessage(`{
  "type": "object",
  "properties": {
    "project_id": {"type": "string"},
    "user_story": {"type": "string"}
  },
  "required": ["user_story"]
}`)
}

func (t *IntelligentDecomposeStory) Execute(ctx context.Context, params json.RawMessage) (*mcp.ToolsCallResult, error) {
	var p struct {
		ProjectID string `json:"project_id"`
		UserStory string `json:"user_story"`
	}
	if err := json.Unmarshal(params, &p); err != nil {
		return invalidParams(err)
	}
	projectID, err := resolveProjectID(ctx, t.store, p.ProjectID)
	if err != nil {
		return errResult(err)
	}
	stack, err := t.store.ListTechStack(ctx, projectID)
	if err != nil {
		return errResult(err)
	}
	patterns, err := t.store.ListCodePatterns(ctx, projectID)
	if err != nil {
		return errResult(err)
	}
	prompt := t.dec.IntelligentPrompt(p.UserStory, stack, patterns)
	return mcp.JSONResult(map[string]any{"prompt": prompt})
}

// --- save_story_decomposition ---

type SaveStoryDecomposition struct {
	store *store.Store
	dec   *decompose.Decomposer
}

func NewSaveStoryDecomposition(s *store.Store, d *decompose.Decomposer) *SaveStoryDecomposition {
	return &SaveStoryDecomposition{store: s, dec: d}
}

func (t *SaveStoryDecomposition) Name() string { return "save_story_decomposition" }
func (t *SaveStoryDecomposition) Description() string {
	return "Persist a caller-supplied story decomposition as a user-story task plus dependency-linked sub-tasks."
}
func (t *SaveStoryDecomposition) InputSchema() json.RawMessage {
	return json.RawMessage(`{
  "type": "object",
  "properties": {
    "project_id": {"type": "string"},
    "user_story": {"type": "string"},
    "subtasks": {"type": "array", "items": {"type": "object"}}
  },
  "required": ["user_story", "subtasks"]
}`)
}

func (t *SaveStoryDecomposition) Execute(ctx context.Context, params json.RawMessage) (*mcp.ToolsCallResult, error) {
	var p struct {
		ProjectID string          `json:"project_id"`
		UserStory string          `json:"user_story"`
		Subtasks  json.RawMessage `json:"subtasks"`
	}
	if err := json.Unmarshal(params, &p); err != nil {
		return invalidParams(err)
	}
	projectID, err := resolveProjectID(ctx, t.store, p.ProjectID)
	if err != nil {
		return errResult(err)
	}
	result, err := t.dec.SaveStoryDecomposition(ctx, projectID, p.UserStory, p.Subtasks)
	if err != nil {
		return errResult(err)
	}
	return mcp.JSONResult(result)
}

// --- prepare_task_for_execution ---

type PrepareTaskForExecution struct{ store *store.Store }

func NewPrepareTaskForExecution(s *store.Store) *PrepareTaskForExecution {
	return &PrepareTaskForExecution{store: s}
}

func (t *PrepareTaskForExecution) Name() string { return "prepare_task_for_execution" }
func (t *PrepareTaskForExecution) Description() string {
	return "Build a codebase-analysis prompt for a task: search patterns, files to check, risks to identify."
}
func (t *PrepareTaskForExecution) InputSchema() json.RawMessage {
	return json.RawMessage(`{
  "type": "object",
  "properties": {"task_id": {"type": "string"}, "project_id": {"type": "string"}},
  "required": ["task_id"]
}`)
}

func (t *PrepareTaskForExecution) Execute(ctx context.Context, params json.RawMessage) (*mcp.ToolsCallResult, error) {
	var p struct {
		TaskID    string `json:"task_id"`
		ProjectID string `json:"project_id"`
	}
	if err := json.Unmarshal(params, &p); err != nil {
		return invalidParams(err)
	}
	task, err := t.store.GetTask(ctx, p.TaskID)
	if err != nil {
		return errResult(err)
	}
	projectID, err := resolveProjectID(ctx, t.store, p.ProjectID)
	if err != nil {
		return errResult(err)
	}
	result, err := workflowcore.BuildAnalysisPrompt(ctx, t.store, task, projectID)
	if err != nil {
		return errResult(err)
	}
	if err := t.store.Emit(ctx, store.EventAutoAnalysisStarted, map[string]any{"task_id": task.ID}); err != nil {
		return errResult(err)
	}
	return mcp.JSONResult(result)
}

// --- save_task_analysis ---

type SaveTaskAnalysis struct{ store *store.Store }

func NewSaveTaskAnalysis(s *store.Store) *SaveTaskAnalysis { return &SaveTaskAnalysis{store: s} }

func (t *SaveTaskAnalysis) Name() string { return "save_task_analysis" }
func (t *SaveTaskAnalysis) Description() string {
	return "Persist a codebase analysis for a task: resource nodes/edges, conflict detection, recommendations."
}
func (t *SaveTaskAnalysis) InputSchema() json.RawMessage {
	return json.RawMessage(`{
  "type": "object",
  "properties": {
    "task_id": {"type": "string"},
    "analysis": {
      "type": "object",
      "properties": {
        "files_to_modify": {"type": "array"},
        "files_to_create": {"type": "array"},
        "dependencies": {"type": "array"},
        "risks": {"type": "array"},
        "related_code": {"type": "array"},
        "recommendations": {"type": "array", "items": {"type": "string"}}
      }
    }
  },
  "required": ["task_id", "analysis"]
}`)
}

func (t *SaveTaskAnalysis) Execute(ctx context.Context, params json.RawMessage) (*mcp.ToolsCallResult, error) {
	var p struct {
		TaskID   string             `json:"task_id"`
		Analysis *store.TaskAnalysis `json:"analysis"`
	}
	if err := json.Unmarshal(params, &p); err != nil {
		return invalidParams(err)
	}
	result, err := graph.SaveTaskAnalysis(ctx, t.store, p.TaskID, p.Analysis)
	if err != nil {
		return errResult(err)
	}
	if err := t.store.Emit(ctx, store.EventTaskAnalysisPrepared, map[string]any{"task_id": p.TaskID}); err != nil {
		return errResult(err)
	}
	if result.HighSeverityCount > 0 {
		if err := t.store.Emit(ctx, store.EventGuardianIntervention, map[string]any{
			"task_id": p.TaskID, "high_severity_conflicts": result.HighSeverityCount,
		}); err != nil {
			return errResult(err)
		}
	}
	if err := t.store.Emit(ctx, store.EventAutoAnalysisCompleted, map[string]any{"task_id": p.TaskID}); err != nil {
		return errResult(err)
	}
	return mcp.JSONResult(struct {
		*graph.AnalysisResult
		NextSteps *workflowcore.NextSteps `json:"next_steps"`
	}{result, workflowcore.AnalysisSaved(p.TaskID)})
}

// --- get_execution_prompt ---

type GetExecutionPrompt struct{ store *store.Store }

func NewGetExecutionPrompt(s *store.Store) *GetExecutionPrompt { return &GetExecutionPrompt{store: s} }

func (t *GetExecutionPrompt) Name() string { return "get_execution_prompt" }
func (t *GetExecutionPrompt) Description() string {
	return "Build the implementation prompt for an already-analyzed task: suggested agent/tools, files, risks, guidelines."
}
func (t *GetExecutionPrompt) InputSchema() json.RawMessage {
	return json.RawMessage(`{
  "type": "object",
  "properties": {"task_id": {"type": "string"}, "project_id": {"type": "string"}},
  "required": ["task_id"]
}`)
}

func (t *GetExecutionPrompt) Execute(ctx context.Context, params json.RawMessage) (*mcp.ToolsCallResult, error) {
	var p struct {
		TaskID    string `json:"task_id"`
		ProjectID string `json:"project_id"`
	}
	if err := json.Unmarshal(params, &p); err != nil {
		return invalidParams(err)
	}
	task, err := t.store.GetTask(ctx, p.TaskID)
	if err != nil {
		return errResult(err)
	}
	if task.Analysis == nil {
		return errResult(store.ErrNotAnalyzed)
	}
	projectID, err := resolveProjectID(ctx, t.store, p.ProjectID)
	if err != nil {
		return errResult(err)
	}
	guidelines, err := t.store.ListGuidelines(ctx, projectID)
	if err != nil {
		return errResult(err)
	}
	result, err := workflowcore.BuildExecutionPrompt(ctx, t.store, task, guidelines)
	if err != nil {
		return errResult(err)
	}
	return mcp.JSONResult(result)
}

// resolveProjectID defaults an empty project id to the store's default
// project, the same fallback every configuration tool applies.
func resolveProjectID(ctx context.Context, s *store.Store, projectID string) (string, error) {
	if projectID != "" {
		return projectID, nil
	}
	p, err := s.DefaultProject(ctx)
	if err != nil {
		return "", err
	}
	return p.ID, nil
}
