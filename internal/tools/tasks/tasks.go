// Package tasks implements the task CRUD tool group: create_task,
// update_task, list_tasks, get_task, delete_task, get_task_context.
package tasks

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/taskforge-mcp/taskforge-mcp/internal/engine"
	"github.com/taskforge-mcp/taskforge-mcp/internal/mcp"
	"github.com/taskforge-mcp/taskforge-mcp/internal/store"
)

func errResult(err error) (*mcp.ToolsCallResult, error) {
	return mcp.ErrorResult(err.Error()), nil
}

// --- create_task ---

type CreateTask struct{ eng *engine.Engine }

func NewCreateTask(eng *engine.Engine) *CreateTask { return &CreateTask{eng: eng} }

func (t *CreateTask) Name() string { return "create_task" }
func (t *CreateTask) Description() string {
	return "Create a new task or user story. Validates title, dependency existence, and acyclicity before persisting."
}
func (t *CreateTask) InputSchema() json.RawMessage {
	return json.RawMessage(`{
  "type": "object",
  "properties": {
    "title": {"type": "string"},
    "description": {"type": "string"},
    "status": {"type": "string", "enum": ["backlog", "todo", "in_progress", "done"]},
    "dependencies": {"type": "array", "items": {"type": "string"}},
    "assignee": {"type": "string"},
    "priority": {"type": "string", "enum": ["low", "medium", "high", "urgent"]},
    "tags": {"type": "array", "items": {"type": "string"}},
    "category": {"type": "string"},
    "user_story_id": {"type": "string"},
    "is_user_story": {"type": "boolean"}
  },
  "required": ["title"]
}`)
}

type createTaskParams struct {
	Title        string   `json:"title"`
	Description  string   `json:"description"`
	Status       string   `json:"status"`
	Dependencies []string `json:"dependencies"`
	Assignee     string   `json:"assignee"`
	Priority     string   `json:"priority"`
	Tags         []string `json:"tags"`
	Category     string   `json:"category"`
	UserStoryID  string   `json:"user_story_id"`
	IsUserStory  bool     `json:"is_user_story"`
}

func (t *CreateTask) Execute(ctx context.Context, params json.RawMessage) (*mcp.ToolsCallResult, error) {
	var p createTaskParams
	if err := json.Unmarshal(params, &p); err != nil {
		return mcp.ErrorResult(fmt.Sprintf("invalid parameters: %v", err)), nil
	}

	task, next, err := t.eng.CreateTask(ctx, engine.CreateTaskInput{
		Title: p.Title, Description: p.Description, Status: p.Status, Deps: p.Dependencies,
		Assignee: p.Assignee, Priority: p.Priority, Tags: p.Tags, Category: p.Category,
		UserStoryID: p.UserStoryID, IsUserStory: p.IsUserStory,
	})
	if err != nil {
		return errResult(err)
	}
	return mcp.JSONResult(map[string]any{"task": task, "next_steps": next})
}

// --- update_task ---

type UpdateTask struct{ eng *engine.Engine }

func NewUpdateTask(eng *engine.Engine) *UpdateTask { return &UpdateTask{eng: eng} }

func (t *UpdateTask) Name() string { return "update_task" }
func (t *UpdateTask) Description() string {
	return "Update any subset of a task's fields. Status changes are validated against the transition state machine and dependency-completion gate."
}
func (t *UpdateTask) InputSchema() json.RawMessage {
	return json.RawMessage(`{
  "type": "object",
  "properties": {
    "task_id": {"type": "string"},
    "title": {"type": "string"},
    "description": {"type": "string"},
    "status": {"type": "string", "enum": ["backlog", "todo", "in_progress", "done"]},
    "dependencies": {"type": "array", "items": {"type": "string"}},
    "assignee": {"type": "string"},
    "priority": {"type": "string"},
    "tags": {"type": "array", "items": {"type": "string"}},
    "category": {"type": "string"}
  },
  "required": ["task_id"]
}`)
}

type updateTaskParams struct {
	TaskID       string    `json:"task_id"`
	Title        *string   `json:"title"`
	Description  *string   `json:"description"`
	Status       *string   `json:"status"`
	Dependencies *[]string `json:"dependencies"`
	Assignee     *string   `json:"assignee"`
	Priority     *string   `json:"priority"`
	Tags         *[]string `json:"tags"`
	Category     *string   `json:"category"`
}

func (t *UpdateTask) Execute(ctx context.Context, params json.RawMessage) (*mcp.ToolsCallResult, error) {
	var p updateTaskParams
	if err := json.Unmarshal(params, &p); err != nil {
		return mcp.ErrorResult(fmt.Sprintf("invalid parameters: %v", err)), nil
	}
	if p.TaskID == "" {
		return mcp.ErrorResult("task_id is required"), nil
	}

	task, changes, err := t.eng.UpdateTask(ctx, p.TaskID, engine.UpdateTaskInput{
		Title: p.Title, Description: p.Description, Status: p.Status, Deps: p.Dependencies,
		Assignee: p.Assignee, Priority: p.Priority, Tags: p.Tags, Category: p.Category,
	})
	if err != nil {
		return errResult(err)
	}
	return mcp.JSONResult(map[string]any{"task": task, "changes": changes})
}

// --- list_tasks ---

type ListTasks struct{ store *store.Store }

func NewListTasks(s *store.Store) *ListTasks { return &ListTasks{store: s} }

func (t *ListTasks) Name() string        { return "list_tasks" }
func (t *ListTasks) Description() string { return "List tasks, optionally filtered by status or category." }
func (t *ListTasks) InputSchema() json.RawMessage {
	return json.RawMessage(`{
  "type": "object",
  "properties": {
    "status": {"type": "string"},
    "category": {"type": "string"}
  }
}`)
}

func (t *ListTasks) Execute(ctx context.Context, params json.RawMessage) (*mcp.ToolsCallResult, error) {
	var p struct {
		Status   string `json:"status"`
		Category string `json:"category"`
	}
	if len(params) > 0 {
		if err := json.Unmarshal(params, &p); err != nil {
			return mcp.ErrorResult(fmt.Sprintf("invalid parameters: %v", err)), nil
		}
	}
	tasks, err := t.store.ListTasks(ctx, store.TaskFilter{Status: p.Status, Category: p.Category})
	if err != nil {
		return errResult(err)
	}
	return mcp.JSONResult(map[string]any{"tasks": tasks})
}

// --- get_task ---

type GetTask struct{ store *store.Store }

func NewGetTask(s *store.Store) *GetTask { return &GetTask{store: s} }

func (t *GetTask) Name() string        { return "get_task" }
func (t *GetTask) Description() string { return "Fetch a single task by id." }
func (t *GetTask) InputSchema() json.RawMessage {
	return json.RawMessage(`{"type":"object","properties":{"task_id":{"type":"string"}},"required":["task_id"]}`)
}

func (t *GetTask) Execute(ctx context.Context, params json.RawMessage) (*mcp.ToolsCallResult, error) {
	var p struct {
		TaskID string `json:"task_id"`
	}
	if err := json.Unmarshal(params, &p); err != nil {
		return mcp.ErrorResult(fmt.Sprintf("invalid parameters: %v", err)), nil
	}
	task, err := t.store.GetTask(ctx, p.TaskID)
	if err != nil {
		return errResult(err)
	}
	return mcp.JSONResult(task)
}

// --- delete_task ---

type DeleteTask struct{ eng *engine.Engine }

func NewDeleteTask(eng *engine.Engine) *DeleteTask { return &DeleteTask{eng: eng} }

func (t *DeleteTask) Name() string { return "delete_task" }
func (t *DeleteTask) Description() string {
	return "Delete a task. Fails if another task still depends on it."
}
func (t *DeleteTask) InputSchema() json.RawMessage {
	return json.RawMessage(`{"type":"object","properties":{"task_id":{"type":"string"}},"required":["task_id"]}`)
}

func (t *DeleteTask) Execute(ctx context.Context, params json.RawMessage) (*mcp.ToolsCallResult, error) {
	var p struct {
		TaskID string `json:"task_id"`
	}
	if err := json.Unmarshal(params, &p); err != nil {
		return mcp.ErrorResult(fmt.Sprintf("invalid parameters: %v", err)), nil
	}
	if err := t.eng.DeleteTask(ctx, p.TaskID); err != nil {
		return errResult(err)
	}
	return mcp.JSONResult(map[string]any{"success": true, "task_id": p.TaskID})
}

// --- get_task_context ---

type GetTaskContext struct{ store *store.Store }

func NewGetTaskContext(s *store.Store) *GetTaskContext { return &GetTaskContext{store: s} }

func (t *GetTaskContext) Name() string { return "get_task_context" }
func (t *GetTaskContext) Description() string {
	return "Fetch a task along with its dependencies, dependents, and resource edges."
}
func (t *GetTaskContext) InputSchema() json.RawMessage {
	return json.RawMessage(`{"type":"object","properties":{"task_id":{"type":"string"}},"required":["task_id"]}`)
}

func (t *GetTaskContext) Execute(ctx context.Context, params json.RawMessage) (*mcp.ToolsCallResult, error) {
	var p struct {
		TaskID string `json:"task_id"`
	}
	if err := json.Unmarshal(params, &p); err != nil {
		return mcp.ErrorResult(fmt.Sprintf("invalid parameters: %v", err)), nil
	}
	task, err := t.store.GetTask(ctx, p.TaskID)
	if err != nil {
		return errResult(err)
	}
	deps, err := t.store.ListDependencies(ctx, p.TaskID)
	if err != nil {
		return errResult(err)
	}
	dependents, err := t.store.ListDependents(ctx, p.TaskID)
	if err != nil {
		return errResult(err)
	}
	edges, err := t.store.TaskResourceEdges(ctx, p.TaskID)
	if err != nil {
		return errResult(err)
	}
	return mcp.JSONResult(map[string]any{
		"task": task, "dependencies": deps, "dependents": dependents, "resource_edges": edges,
	})
}
