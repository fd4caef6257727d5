package store

import (
	"context"
	"database/sql"
	"fmt"
)

// DeleteUserStoryResult reports what a DeleteUserStory call removed.
type DeleteUserStoryResult struct {
	DeletedStory    *Task
	DeletedSubtasks []*Task
}

// DeleteUserStory removes a user-story task and all of its sub-tasks
// atomically. Fails with ErrHasCompletedWork if any sub-task is done and
// force is false; fails with ErrExternalDependents (force does not override
// this) if any task outside the sub-task set depends on a sub-task.
func (s *Store) DeleteUserStory(ctx context.Context, id string, force bool) (*DeleteUserStoryResult, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	story, err := scanTask(tx.QueryRow(taskSelectColumns+` FROM tasks WHERE id = ?`, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, err
	}

	subtasks, err := subtasksTx(tx, id)
	if err != nil {
		return nil, err
	}

	if !force {
		for _, st := range subtasks {
			if st.Status == StatusDone {
				return nil, fmt.Errorf("%w: %d sub-task(s) are done", ErrHasCompletedWork, countDone(subtasks))
			}
		}
	}

	subtaskIDs := make(map[string]bool, len(subtasks))
	for _, st := range subtasks {
		subtaskIDs[st.ID] = true
	}

	externals, err := externalDependents(tx, subtaskIDs)
	if err != nil {
		return nil, err
	}
	if len(externals) > 0 {
		return nil, fmt.Errorf("%w: %v", ErrExternalDependents, externals)
	}

	for _, st := range subtasks {
		if err := deleteTaskTx(tx, st.ID); err != nil {
			return nil, err
		}
	}
	if err := deleteTaskTx(tx, id); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing transaction: %w", err)
	}
	return &DeleteUserStoryResult{DeletedStory: story, DeletedSubtasks: subtasks}, nil
}

func subtasksTx(tx *sql.Tx, userStoryID string) ([]*Task, error) {
	rows, err := tx.Query(taskSelectColumns+` FROM tasks WHERE user_story_id = ?`, userStoryID)
	if err != nil {
		return nil, fmt.Errorf("listing sub-tasks: %w", err)
	}
	defer rows.Close()
	var out []*Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// externalDependents returns the ids of tasks outside the given set that
// depend on any member of the set.
func externalDependents(tx *sql.Tx, within map[string]bool) ([]string, error) {
	seen := map[string]bool{}
	var out []string
	for id := range within {
		rows, err := tx.Query(`SELECT task_id FROM task_dependencies WHERE depends_on_task_id = ?`, id)
		if err != nil {
			return nil, fmt.Errorf("checking external dependents: %w", err)
		}
		for rows.Next() {
			var dependent string
			if err := rows.Scan(&dependent); err != nil {
				rows.Close()
				return nil, err
			}
			if !within[dependent] && !seen[dependent] {
				seen[dependent] = true
				out = append(out, dependent)
			}
		}
		rows.Close()
	}
	return out, nil
}

func countDone(tasks []*Task) int {
	n := 0
	for _, t := range tasks {
		if t.Status == StatusDone {
			n++
		}
	}
	return n
}

// PreservedTask describes a task skipped by SafeDeleteTasksByStatus.
type PreservedTask struct {
	ID                   string
	Title                string
	Reason               string
	CompletionPercentage float64
	DoneTasks            int
	TotalTasks           int
}

// SafeDeleteTasksByStatusResult is the output of SafeDeleteTasksByStatus.
type SafeDeleteTasksByStatusResult struct {
	DeletedIDs []string
	Preserved  []PreservedTask
}

// SafeDeleteTasksByStatus deletes every task with the given status unless it
// is a user story with completed sub-tasks, or has external dependents; in
// either case it is preserved and a reason recorded. Each task's fate is
// decided and applied atomically.
func (s *Store) SafeDeleteTasksByStatus(ctx context.Context, status string) (*SafeDeleteTasksByStatusResult, error) {
	candidates, err := s.ListTasks(ctx, TaskFilter{Status: status})
	if err != nil {
		return nil, err
	}

	result := &SafeDeleteTasksByStatusResult{}
	// ListTasks returns newest first; walk the list oldest first so a user
	// story is judged before its newer sub-tasks are deleted, and a task
	// before the newer tasks that depend on it.
	for i := len(candidates) - 1; i >= 0; i-- {
		t := candidates[i]
		preserved, err := s.safeDeleteOne(ctx, t)
		if err != nil {
			return nil, err
		}
		if preserved != nil {
			result.Preserved = append(result.Preserved, *preserved)
		} else {
			result.DeletedIDs = append(result.DeletedIDs, t.ID)
		}
	}
	return result, nil
}

func (s *Store) safeDeleteOne(ctx context.Context, t *Task) (*PreservedTask, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	if t.IsUserStory {
		subtasks, err := subtasksTx(tx, t.ID)
		if err != nil {
			return nil, err
		}
		done := countDone(subtasks)
		if done > 0 {
			pct := 0.0
			if len(subtasks) > 0 {
				pct = round2(float64(done) / float64(len(subtasks)) * 100)
			}
			return &PreservedTask{
				ID: t.ID, Title: t.Title, Reason: "has completed work",
				CompletionPercentage: pct, DoneTasks: done, TotalTasks: len(subtasks),
			}, nil
		}
	}

	dependents, err := externalDependents(tx, map[string]bool{t.ID: true})
	if err != nil {
		return nil, err
	}
	if len(dependents) > 0 {
		return &PreservedTask{ID: t.ID, Title: t.Title, Reason: "has external dependents"}, nil
	}

	if err := deleteTaskTx(tx, t.ID); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing transaction: %w", err)
	}
	return nil, nil
}

// UserStoryHealth describes the derived-vs-actual status of one user story.
type UserStoryHealth struct {
	ID                   string
	Title                string
	CurrentStatus        string
	SuggestedStatus      string
	TotalSubtasks        int
	DoneCount            int
	InProgressCount      int
	TodoCount            int
	BacklogCount         int
	CompletionPercentage float64
	StatusMismatch       bool
	SafeToDelete         bool
}

func round2(v float64) float64 {
	return float64(int(v*100+0.5)) / 100
}

// UserStoryDoneThreshold is the done_count/total fraction at or above which
// a user story is derived as done (spec.md §4.4.4 rule 2). Stated as-is in
// spec.md §9, not measured; kept as a constant rather than a config field
// per the open-question decision in DESIGN.md.
const UserStoryDoneThreshold = 0.80

// DeriveUserStoryStatus applies the user-story auto-status rule in the
// order spec.md §4.4.4 lists: done once done_count/total clears the
// threshold, else in_progress if any sub-task is in_progress, else todo if
// any sub-task is todo, else backlog. Note a sub-task being done does not,
// by itself, count toward the todo/in_progress checks below the threshold.
// A user story with no sub-tasks keeps its current status.
func DeriveUserStoryStatus(subtasks []*Task, current string) string {
	if len(subtasks) == 0 {
		return current
	}
	done, inProgress, todo := 0, 0, 0
	for _, st := range subtasks {
		switch st.Status {
		case StatusDone:
			done++
		case StatusInProgress:
			inProgress++
		case StatusTodo:
			todo++
		}
	}
	if float64(done)/float64(len(subtasks)) >= UserStoryDoneThreshold {
		return StatusDone
	}
	if inProgress > 0 {
		return StatusInProgress
	}
	if todo > 0 {
		return StatusTodo
	}
	return StatusBacklog
}

// UserStoryHealthView computes UserStoryHealth for every user-story task.
func (s *Store) UserStoryHealthView(ctx context.Context) ([]*UserStoryHealth, error) {
	stories, err := s.ListTasks(ctx, TaskFilter{OnlyStories: true})
	if err != nil {
		return nil, err
	}

	out := make([]*UserStoryHealth, 0, len(stories))
	for _, story := range stories {
		subtasks, err := s.ListTasks(ctx, TaskFilter{UserStoryID: story.ID})
		if err != nil {
			return nil, err
		}

		h := &UserStoryHealth{
			ID:            story.ID,
			Title:         story.Title,
			CurrentStatus: story.Status,
			TotalSubtasks: len(subtasks),
		}
		for _, st := range subtasks {
			switch st.Status {
			case StatusDone:
				h.DoneCount++
			case StatusInProgress:
				h.InProgressCount++
			case StatusTodo:
				h.TodoCount++
			case StatusBacklog:
				h.BacklogCount++
			}
		}
		if h.TotalSubtasks > 0 {
			h.CompletionPercentage = round2(float64(h.DoneCount) / float64(h.TotalSubtasks) * 100)
		}
		h.SuggestedStatus = DeriveUserStoryStatus(subtasks, story.Status)
		h.StatusMismatch = h.SuggestedStatus != story.Status

		externals, err := s.externalDependentsOf(ctx, story.ID, subtasks)
		if err != nil {
			return nil, err
		}
		h.SafeToDelete = h.DoneCount == 0 && len(externals) == 0

		out = append(out, h)
	}
	return out, nil
}

// externalDependentsOf is the non-transactional counterpart of
// externalDependents, used by read-only views.
func (s *Store) externalDependentsOf(ctx context.Context, storyID string, subtasks []*Task) ([]string, error) {
	within := make(map[string]bool, len(subtasks)+1)
	within[storyID] = true
	for _, st := range subtasks {
		within[st.ID] = true
	}

	seen := map[string]bool{}
	var out []string
	for id := range within {
		rows, err := s.db.QueryContext(ctx, `SELECT task_id FROM task_dependencies WHERE depends_on_task_id = ?`, id)
		if err != nil {
			return nil, fmt.Errorf("checking external dependents: %w", err)
		}
		for rows.Next() {
			var dependent string
			if err := rows.Scan(&dependent); err != nil {
				rows.Close()
				return nil, err
			}
			if !within[dependent] && !seen[dependent] {
				seen[dependent] = true
				out = append(out, dependent)
			}
		}
		rows.Close()
	}
	return out, nil
}
