// Package userstories implements the user-story tool group:
// get_user_stories, get_tasks_by_user_story, delete_user_story,
// safe_delete_tasks_by_status, get_user_story_health.
package userstories

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

// --- get_user_stories ---

type GetUserStories struct{ store *store.Store }

func NewGetUserStories(s *store.Store) *GetUserStories { return &GetUserStories{store: s} }

func (t *GetUserStories) Name() string        { return "get_user_stories" }
func (t *GetUserStories) Description() string { return "List every user-story task." }
func (t *GetUserStories) InputSchema() json.RawMessage {
	return json.RawMessage(`{"type":"object","properties":{}}`)
}

func (t *GetUserStories) Execute(ctx context.Context, params json.RawMessage) (*mcp.ToolsCallResult, error) {
	stories, err := t.store.ListTasks(ctx, store.TaskFilter{OnlyStories: true})
	if err != nil {
		return errResult(err)
	}
	return mcp.JSONResult(map[string]any{"user_stories": stories})
}

// --- get_tasks_by_user_story ---

type GetTasksByUserStory struct{ store *store.Store }

func NewGetTasksByUserStory(s *store.Store) *GetTasksByUserStory { return &GetTasksByUserStory{store: s} }

func (t *GetTasksByUserStory) Name() string { return "get_tasks_by_user_story" }
func (t *GetTasksByUserStory) Description() string {
	return "List the sub-tasks of a user story."
}
func (t *GetTasksByUserStory) InputSchema() json.RawMessage {
	return json.RawMessage(`{"type":"object","properties":{"user_story_id":{"type":"string"}},"required":["user_story_id"]}`)
}

func (t *GetTasksByUserStory) Execute(ctx context.Context, params json.RawMessage) (*mcp.ToolsCallResult, error) {
	var p struct {
		UserStoryID string `json:"user_story_id"`
	}
	if err := json.Unmarshal(params, &p); err != nil {
		return mcp.ErrorResult(fmt.Sprintf("invalid parameters: %v", err)), nil
	}
	tasks, err := t.store.ListTasks(ctx, store.TaskFilter{UserStoryID: p.UserStoryID})
	if err != nil {
		return errResult(err)
	}
	return mcp.JSONResult(map[string]any{"tasks": tasks})
}

// --- delete_user_story ---

type DeleteUserStory struct{ eng *engine.Engine }

func NewDeleteUserStory(eng *engine.Engine) *DeleteUserStory { return &DeleteUserStory{eng: eng} }

func (t *DeleteUserStory) Name() string { return "delete_user_story" }
func (t *DeleteUserStory) Description() string {
	return "Delete a user story and its sub-tasks. Fails if any sub-task is done (unless force) or has an external dependent."
}
func (t *DeleteUserStory) InputSchema() json.RawMessage {
	return json.RawMessage(`{
  "type": "object",
  "properties": {
    "user_story_id": {"type": "string"},
    "force": {"type": "boolean"}
  },
  "required": ["user_story_id"]
}`)
}

func (t *DeleteUserStory) Execute(ctx context.Context, params json.RawMessage) (*mcp.ToolsCallResult, error) {
	var p struct {
		UserStoryID string `json:"user_story_id"`
		Force       bool   `json:"force"`
	}
	if err := json.Unmarshal(params, &p); err != nil {
		return mcp.ErrorResult(fmt.Sprintf("invalid parameters: %v", err)), nil
	}
	result, err := t.eng.DeleteUserStory(ctx, p.UserStoryID, p.Force)
	if err != nil {
		return errResult(err)
	}
	return mcp.JSONResult(map[string]any{
		"deleted_story":    result.DeletedStory,
		"deleted_subtasks": result.DeletedSubtasks,
	})
}

// --- safe_delete_tasks_by_status ---

type SafeDeleteTasksByStatus struct{ eng *engine.Engine }

func NewSafeDeleteTasksByStatus(eng *engine.Engine) *SafeDeleteTasksByStatus {
	return &SafeDeleteTasksByStatus{eng: eng}
}

func (t *SafeDeleteTasksByStatus) Name() string { return "safe_delete_tasks_by_status" }
func (t *SafeDeleteTasksByStatus) Description() string {
	return "Delete every task with the given status, preserving those with completed work or external dependents."
}
func (t *SafeDeleteTasksByStatus) InputSchema() json.RawMessage {
	return json.RawMessage(`{
  "type": "object",
  "properties": {"status": {"type": "string", "enum": ["backlog", "todo", "in_progress", "done"]}},
  "required": ["status"]
}`)
}

func (t *SafeDeleteTasksByStatus) Execute(ctx context.Context, params json.RawMessage) (*mcp.ToolsCallResult, error) {
	var p struct {
		Status string `json:"status"`
	}
	if err := json.Unmarshal(params, &p); err != nil {
		return mcp.ErrorResult(fmt.Sprintf("invalid parameters: %v", err)), nil
	}
	result, err := t.eng.SafeDeleteTasksByStatus(ctx, p.Status)
	if err != nil {
		return errResult(err)
	}
	return mcp.JSONResult(map[string]any{
		"deleted_ids": result.DeletedIDs,
		"preserved":   result.Preserved,
	})
}

// --- get_user_story_health ---

type GetUserStoryHealth struct{ eng *engine.Engine }

func NewGetUserStoryHealth(eng *engine.Engine) *GetUserStoryHealth {
	return &GetUserStoryHealth{eng: eng}
}

func (t *GetUserStoryHealth) Name() string { return "get_user_story_health" }
func (t *GetUserStoryHealth) Description() string {
	return "Report the derived-vs-actual status of every user story."
}
func (t *GetUserStoryHealth) InputSchema() json.RawMessage {
	return json.RawMessage(`{"type":"object","properties":{}}`)
}

func (t *GetUserStoryHealth) Execute(ctx context.Context, params json.RawMessage) (*mcp.ToolsCallResult, error) {
	health, err := t.eng.UserStoryHealth(ctx)
	if err != nil {
		return errResult(err)
	}
	return mcp.JSONResult(map[string]any{"user_stories": health})
}
