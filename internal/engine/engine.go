// Package engine implements task CRUD orchestration on top of
// internal/store: transition validation, dependency-gating, cache
// invalidation, event emission, and the user-story auto-status
// derivation (spec.md §4.4).
package engine

import (
	"context"
	"fmt"

	"github.com/taskforge-mcp/taskforge-mcp/internal/cache"
	"github.com/taskforge-mcp/taskforge-mcp/internal/store"
	"github.com/taskforge-mcp/taskforge-mcp/internal/workflow"
)

// Engine wires the Store and Cache together behind the validated task
// operations spec.md §4.4 names.
type Engine struct {
	Store *store.Store
	Cache *cache.Cache
}

func New(s *store.Store, c *cache.Cache) *Engine {
	return &Engine{Store: s, Cache: c}
}

// allowedTransitions is the state machine from spec.md §4.4.4. Symmetric
// edges are listed once per direction so validity is a simple map lookup.
var allowedTransitions = map[string]map[string]bool{
	store.StatusBacklog:    {store.StatusTodo: true},
	store.StatusTodo:       {store.StatusBacklog: true, store.StatusInProgress: true},
	store.StatusInProgress: {store.StatusDone: true, store.StatusTodo: true},
	store.StatusDone:       {store.StatusInProgress: true},
}

func isAllowedTransition(from, to string) bool {
	if from == to {
		return true
	}
	return allowedTransitions[from][to]
}

// CreateTaskInput mirrors spec.md §4.4.1's input fields.
type CreateTaskInput struct {
	Title         string
	Description   string
	Status        string
	Deps          []string
	Assignee      string
	Priority      string
	Tags          []string
	Category      string
	UserStoryID   string
	IsUserStory   bool
	StoryMetadata store.StoryMetadata
}

// CreateTask validates and persists a new task, emits the appropriate
// creation event, invalidates caches, and attaches next_steps.
func (e *Engine) CreateTask(ctx context.Context, in CreateTaskInput) (*store.Task, *workflow.NextSteps, error) {
	if in.Title == "" {
		return nil, nil, fmt.Errorf("%w: title is required", store.ErrValidation)
	}
	if in.IsUserStory && in.UserStoryID != "" {
		return nil, nil, fmt.Errorf("%w: a user story cannot itself have a user_story_id", store.ErrValidation)
	}
	if in.UserStoryID != "" {
		parent, err := e.Store.GetTask(ctx, in.UserStoryID)
		if err != nil {
			return nil, nil, fmt.Errorf("%w: user_story_id does not reference an existing task", store.ErrValidation)
		}
		if !parent.IsUserStory {
			return nil, nil, fmt.Errorf("%w: user_story_id does not reference a user-story task", store.ErrValidation)
		}
	}

	t := &store.Task{
		Title: in.Title, Description: in.Description, Status: in.Status,
		Assignee: in.Assignee, Priority: in.Priority, Tags: in.Tags, Category: in.Category,
		IsUserStory: in.IsUserStory, UserStoryID: in.UserStoryID, StoryMetadata: in.StoryMetadata,
	}

	created, err := e.Store.InsertTaskWithDeps(ctx, t, in.Deps)
	if err != nil {
		return nil, nil, err
	}

	eventType := store.EventTaskCreated
	if created.IsUserStory {
		eventType = store.EventUserStoryCreated
	}
	if err := e.Store.Emit(ctx, eventType, map[string]any{"task_id": created.ID, "title": created.Title}); err != nil {
		return nil, nil, err
	}

	e.invalidateTaskCaches(created.ID)

	if created.UserStoryID != "" {
		if err := e.refreshUserStoryStatus(ctx, created.UserStoryID); err != nil {
			return nil, nil, err
		}
	}

	return created, workflow.TaskCreated(created.ID), nil
}

// UpdateTaskInput mirrors the mutable subset spec.md §4.4.2 names.
type UpdateTaskInput struct {
	Title       *string
	Description *string
	Status      *string
	Deps        *[]string
	Assignee    *string
	Priority    *string
	Tags        *[]string
	Category    *string
}

// UpdateTask validates a status transition (if present) against the state
// machine and the dependency-gating rule, applies the update, emits
// task_updated with the changed-fields record, and invalidates caches.
func (e *Engine) UpdateTask(ctx context.Context, id string, in UpdateTaskInput) (*store.Task, map[string]any, error) {
	existing, err := e.Store.GetTask(ctx, id)
	if err != nil {
		return nil, nil, err
	}

	if in.Status != nil && *in.Status != existing.Status {
		if !isAllowedTransition(existing.Status, *in.Status) {
			return nil, nil, fmt.Errorf("%w: %s -> %s", store.ErrInvalidTransition, existing.Status, *in.Status)
		}
		if *in.Status == store.StatusInProgress {
			ok, err := e.dependenciesDone(ctx, id)
			if err != nil {
				return nil, nil, err
			}
			if !ok {
				return nil, nil, fmt.Errorf("%w: task has incomplete dependencies", store.ErrDependenciesNotDone)
			}
		}
	}

	updated, changes, err := e.Store.UpdateTask(ctx, id, store.TaskUpdate{
		Title: in.Title, Description: in.Description, Status: in.Status,
		Assignee: in.Assignee, Priority: in.Priority, Tags: in.Tags, Category: in.Category, Deps: in.Deps,
	})
	if err != nil {
		return nil, nil, err
	}

	if len(changes) > 0 {
		if err := e.Store.Emit(ctx, store.EventTaskUpdated, map[string]any{"task_id": id, "changes": changes}); err != nil {
			return nil, nil, err
		}
		if _, ok := changes["status"]; ok {
			if err := e.Store.Emit(ctx, store.EventStatusTransition, map[string]any{
				"task_id": id, "from": existing.Status, "to": updated.Status,
			}); err != nil {
				return nil, nil, err
			}
		}
	}

	e.invalidateTaskCaches(id)

	if updated.UserStoryID != "" {
		if err := e.refreshUserStoryStatus(ctx, updated.UserStoryID); err != nil {
			return nil, nil, err
		}
	}

	return updated, changes, nil
}

func (e *Engine) dependenciesDone(ctx context.Context, taskID string) (bool, error) {
	deps, err := e.Store.ListDependencies(ctx, taskID)
	if err != nil {
		return false, err
	}
	for _, depID := range deps {
		dep, err := e.Store.GetTask(ctx, depID)
		if err != nil {
			return false, err
		}
		if dep.Status != store.StatusDone {
			return false, nil
		}
	}
	return true, nil
}

// DeleteTask removes a task (failing with ErrHasDependents if blocked),
// emits task_deleted, and invalidates caches.
func (e *Engine) DeleteTask(ctx context.Context, id string) error {
	task, err := e.Store.GetTask(ctx, id)
	if err != nil {
		return err
	}
	if err := e.Store.DeleteTask(ctx, id); err != nil {
		return err
	}
	if err := e.Store.Emit(ctx, store.EventTaskDeleted, map[string]any{"task_id": id}); err != nil {
		return err
	}
	e.invalidateTaskCaches(id)
	if task.UserStoryID != "" {
		if err := e.refreshUserStoryStatus(ctx, task.UserStoryID); err != nil {
			return err
		}
	}
	return nil
}

// refreshUserStoryStatus re-derives a user story's status from its
// sub-tasks' current statuses and writes it via the bypass path if it
// changed (spec.md §4.4.4's derived-field-refresh, not a transition).
func (e *Engine) refreshUserStoryStatus(ctx context.Context, userStoryID string) error {
	story, err := e.Store.GetTask(ctx, userStoryID)
	if err != nil {
		return err
	}
	subtasks, err := e.Store.ListTasks(ctx, store.TaskFilter{UserStoryID: userStoryID})
	if err != nil {
		return err
	}
	suggested := store.DeriveUserStoryStatus(subtasks, story.Status)
	if suggested == story.Status {
		return nil
	}
	if err := e.Store.UpdateTaskStatusRaw(ctx, userStoryID, suggested); err != nil {
		return err
	}
	e.invalidateTaskCaches(userStoryID)
	return e.Store.Emit(ctx, store.EventStatusTransition, map[string]any{
		"task_id": userStoryID, "from": story.Status, "to": suggested, "derived": true,
	})
}

// DeleteUserStory removes a user story and its sub-tasks atomically,
// emitting user_story_deleted on success (spec.md §4.4.5).
func (e *Engine) DeleteUserStory(ctx context.Context, id string, force bool) (*store.DeleteUserStoryResult, error) {
	result, err := e.Store.DeleteUserStory(ctx, id, force)
	if err != nil {
		return nil, err
	}
	if err := e.Store.Emit(ctx, store.EventUserStoryDeleted, map[string]any{
		"deleted_story": result.DeletedStory.ID, "deleted_subtasks": len(result.DeletedSubtasks),
	}); err != nil {
		return nil, err
	}
	e.invalidateTaskListCache()
	return result, nil
}

// SafeDeleteTasksByStatus deletes every eligible task with the given
// status, preserving those with completed work or external dependents
// (spec.md §4.4.6).
func (e *Engine) SafeDeleteTasksByStatus(ctx context.Context, status string) (*store.SafeDeleteTasksByStatusResult, error) {
	result, err := e.Store.SafeDeleteTasksByStatus(ctx, status)
	if err != nil {
		return nil, err
	}
	if len(result.DeletedIDs) > 0 {
		e.invalidateTaskListCache()
	}
	return result, nil
}

// UserStoryHealth implements user_story_health() (spec.md §4.4.7).
func (e *Engine) UserStoryHealth(ctx context.Context) ([]*store.UserStoryHealth, error) {
	return e.Store.UserStoryHealthView(ctx)
}

func (e *Engine) invalidateTaskCaches(taskID string) {
	if e.Cache == nil {
		return
	}
	e.Cache.InvalidatePattern("tasks:*")
	e.Cache.Invalidate("task:" + taskID)
}

func (e *Engine) invalidateTaskListCache() {
	if e.Cache == nil {
		return
	}
	e.Cache.InvalidatePattern("tasks:*")
}
