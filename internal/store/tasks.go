package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// InsertTaskWithDeps persists a new task and its dependencies atomically.
// If any dependency id does not exist the insert is rolled back and
// ErrMissingDep is returned; if the dependency set would create a cycle
// (impossible for a brand-new node in practice, but checked for symmetry
// with ReplaceTaskDeps) ErrCycle is returned.
func (s *Store) InsertTaskWithDeps(ctx context.Context, t *Task, deps []string) (*Task, error) {
	if t.Title == "" {
		return nil, fmt.Errorf("%w: title is required", ErrValidation)
	}
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	if t.Status == "" {
		t.Status = StatusBacklog
	}
	if !TaskStatuses[t.Status] {
		return nil, fmt.Errorf("%w: unknown status %q", ErrValidation, t.Status)
	}
	now := time.Now().UTC()
	t.CreatedAt = now
	t.UpdatedAt = now

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	if err := insertTaskRow(tx, t); err != nil {
		return nil, err
	}

	if len(deps) > 0 {
		if err := attachDeps(tx, t.ID, deps); err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing transaction: %w", err)
	}
	return t, nil
}

func insertTaskRow(tx *sql.Tx, t *Task) error {
	tags, err := json.Marshal(t.Tags)
	if err != nil {
		return fmt.Errorf("marshaling tags: %w", err)
	}
	storyMeta, err := json.Marshal(t.StoryMetadata)
	if err != nil {
		return fmt.Errorf("marshaling story_metadata: %w", err)
	}
	var analysis []byte
	if t.Analysis != nil {
		analysis, err = json.Marshal(t.Analysis)
		if err != nil {
			return fmt.Errorf("marshaling analysis: %w", err)
		}
	}

	_, err = tx.Exec(`INSERT INTO tasks
		(id, project_id, title, description, status, assignee, priority, tags, category,
		 is_user_story, user_story_id, story_metadata, analysis, created_at, updated_at)
		VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)`,
		t.ID, t.ProjectID, t.Title, t.Description, t.Status, t.Assignee, t.Priority,
		string(tags), t.Category, boolToInt(t.IsUserStory), t.UserStoryID,
		string(storyMeta), string(analysis), t.CreatedAt, t.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("inserting task: %w", err)
	}
	return nil
}

// attachDeps validates and inserts dependency rows for taskID within tx.
// Returns ErrMissingDep if a dependency task does not exist, ErrCycle if
// the resulting graph would contain a cycle.
func attachDeps(tx *sql.Tx, taskID string, deps []string) error {
	for _, d := range deps {
		if d == taskID {
			return fmt.Errorf("%w: task cannot depend on itself", ErrCycle)
		}
		var exists int
		if err := tx.QueryRow(`SELECT 1 FROM tasks WHERE id = ?`, d).Scan(&exists); err != nil {
			if err == sql.ErrNoRows {
				return fmt.Errorf("%w: %s", ErrMissingDep, d)
			}
			return fmt.Errorf("checking dependency existence: %w", err)
		}
	}

	if err := checkNoCycle(tx, taskID, deps); err != nil {
		return err
	}

	for _, d := range deps {
		if _, err := tx.Exec(`INSERT OR IGNORE INTO task_dependencies (task_id, depends_on_task_id) VALUES (?,?)`, taskID, d); err != nil {
			return fmt.Errorf("inserting dependency: %w", err)
		}
	}
	return nil
}

// checkNoCycle verifies that adding edges taskID -> each of newDeps would
// not create a cycle in the existing depends_on graph. A cycle exists iff
// taskID is reachable from one of newDeps by following existing
// depends_on_task_id edges.
func checkNoCycle(tx *sql.Tx, taskID string, newDeps []string) error {
	visited := map[string]bool{}
	queue := append([]string{}, newDeps...)
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		if cur == taskID {
			return fmt.Errorf("%w: adding dependency would create a cycle", ErrCycle)
		}
		if visited[cur] {
			continue
		}
		visited[cur] = true

		rows, err := tx.Query(`SELECT depends_on_task_id FROM task_dependencies WHERE task_id = ?`, cur)
		if err != nil {
			return fmt.Errorf("walking dependency graph: %w", err)
		}
		for rows.Next() {
			var next string
			if err := rows.Scan(&next); err != nil {
				rows.Close()
				return fmt.Errorf("scanning dependency row: %w", err)
			}
			queue = append(queue, next)
		}
		rows.Close()
	}
	return nil
}

// ReplaceTaskDeps deletes and re-inserts a task's dependency set atomically.
func (s *Store) ReplaceTaskDeps(ctx context.Context, taskID string, deps []string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	var exists int
	if err := tx.QueryRow(`SELECT 1 FROM tasks WHERE id = ?`, taskID).Scan(&exists); err != nil {
		if err == sql.ErrNoRows {
			return ErrNotFound
		}
		return fmt.Errorf("checking task existence: %w", err)
	}

	if _, err := tx.Exec(`DELETE FROM task_dependencies WHERE task_id = ?`, taskID); err != nil {
		return fmt.Errorf("clearing dependencies: %w", err)
	}

	if len(deps) > 0 {
		if err := attachDeps(tx, taskID, deps); err != nil {
			return err
		}
	}

	if err := touchTask(tx, taskID); err != nil {
		return err
	}

	return tx.Commit()
}

func touchTask(tx *sql.Tx, taskID string) error {
	_, err := tx.Exec(`UPDATE tasks SET updated_at = ? WHERE id = ?`, time.Now().UTC(), taskID)
	if err != nil {
		return fmt.Errorf("touching task: %w", err)
	}
	return nil
}

// GetTask fetches a single task by id.
func (s *Store) GetTask(ctx context.Context, id string) (*Task, error) {
	row := s.db.QueryRowContext(ctx, taskSelectColumns+` FROM tasks WHERE id = ?`, id)
	t, err := scanTask(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return t, nil
}

// TaskFilter narrows ListTasks.
type TaskFilter struct {
	Status      string
	Category    string
	UserStoryID string
	OnlyStories bool
}

// ListTasks returns tasks matching the filter, newest first.
func (s *Store) ListTasks(ctx context.Context, f TaskFilter) ([]*Task, error) {
	query := taskSelectColumns + ` FROM tasks WHERE 1=1`
	var args []any
	if f.Status != "" {
		query += ` AND status = ?`
		args = append(args, f.Status)
	}
	if f.Category != "" {
		query += ` AND category = ?`
		args = append(args, f.Category)
	}
	if f.UserStoryID != "" {
		query += ` AND user_story_id = ?`
		args = append(args, f.UserStoryID)
	}
	if f.OnlyStories {
		query += ` AND is_user_story = 1`
	}
	query += ` ORDER BY created_at DESC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing tasks: %w", err)
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

// TaskUpdate carries the subset of fields to change. Nil means "leave as is".
type TaskUpdate struct {
	Title       *string
	Description *string
	Status      *string
	Assignee    *string
	Priority    *string
	Tags        *[]string
	Category    *string
	Deps        *[]string // when non-nil, replaces dependencies
}

// UpdateTask applies a partial update to a task and returns the fields that
// changed (keyed by field name) along with the refreshed task. Status
// transition legality and dependency-gating are the caller's (internal/engine)
// responsibility; this method persists whatever status it's given.
func (s *Store) UpdateTask(ctx context.Context, id string, u TaskUpdate) (*Task, map[string]any, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	existing, err := scanTask(tx.QueryRow(taskSelectColumns+` FROM tasks WHERE id = ?`, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil, ErrNotFound
		}
		return nil, nil, err
	}

	changes := map[string]any{}
	if u.Title != nil && *u.Title != existing.Title {
		changes["title"] = *u.Title
		existing.Title = *u.Title
	}
	if u.Description != nil && *u.Description != existing.Description {
		changes["description"] = *u.Description
		existing.Description = *u.Description
	}
	if u.Status != nil && *u.Status != existing.Status {
		changes["status"] = *u.Status
		existing.Status = *u.Status
	}
	if u.Assignee != nil && *u.Assignee != existing.Assignee {
		changes["assignee"] = *u.Assignee
		existing.Assignee = *u.Assignee
	}
	if u.Priority != nil && *u.Priority != existing.Priority {
		changes["priority"] = *u.Priority
		existing.Priority = *u.Priority
	}
	if u.Tags != nil {
		changes["tags"] = *u.Tags
		existing.Tags = *u.Tags
	}
	if u.Category != nil && *u.Category != existing.Category {
		changes["category"] = *u.Category
		existing.Category = *u.Category
	}

	existing.UpdatedAt = time.Now().UTC()
	tagsJSON, _ := json.Marshal(existing.Tags)
	if _, err := tx.Exec(`UPDATE tasks SET title=?, description=?, status=?, assignee=?, priority=?, tags=?, category=?, updated_at=? WHERE id=?`,
		existing.Title, existing.Description, existing.Status, existing.Assignee, existing.Priority,
		string(tagsJSON), existing.Category, existing.UpdatedAt, id); err != nil {
		return nil, nil, fmt.Errorf("updating task: %w", err)
	}

	if u.Deps != nil {
		if _, err := tx.Exec(`DELETE FROM task_dependencies WHERE task_id = ?`, id); err != nil {
			return nil, nil, fmt.Errorf("clearing dependencies: %w", err)
		}
		if len(*u.Deps) > 0 {
			if err := attachDeps(tx, id, *u.Deps); err != nil {
				return nil, nil, err
			}
		}
		changes["dependencies"] = *u.Deps
	}

	if err := tx.Commit(); err != nil {
		return nil, nil, fmt.Errorf("committing transaction: %w", err)
	}
	return existing, changes, nil
}

// UpdateTaskStatusRaw writes a new status without any transition validation
// (used by internal/engine for the derived user-story status refresh, which
// must bypass the transition machine per spec.md §4.4.4).
func (s *Store) UpdateTaskStatusRaw(ctx context.Context, id, status string) error {
	if !TaskStatuses[status] {
		return fmt.Errorf("%w: unknown status %q", ErrValidation, status)
	}
	res, err := s.db.ExecContext(ctx, `UPDATE tasks SET status=?, updated_at=? WHERE id=?`, status, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("updating status: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteTask removes a task, its resource edges, and its learnings
// atomically. Fails with ErrHasDependents if another task depends on it.
func (s *Store) DeleteTask(ctx context.Context, id string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	if err := deleteTaskTx(tx, id); err != nil {
		return err
	}
	return tx.Commit()
}

func deleteTaskTx(tx *sql.Tx, id string) error {
	var dependentCount int
	if err := tx.QueryRow(`SELECT COUNT(*) FROM task_dependencies WHERE depends_on_task_id = ?`, id).Scan(&dependentCount); err != nil {
		return fmt.Errorf("checking dependents: %w", err)
	}
	if dependentCount > 0 {
		return ErrHasDependents
	}

	res, err := tx.Exec(`DELETE FROM tasks WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("deleting task: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	if _, err := tx.Exec(`DELETE FROM task_dependencies WHERE task_id = ?`, id); err != nil {
		return fmt.Errorf("deleting task dependencies: %w", err)
	}
	if _, err := tx.Exec(`DELETE FROM resource_edges WHERE task_id = ?`, id); err != nil {
		return fmt.Errorf("deleting resource edges: %w", err)
	}
	if _, err := tx.Exec(`DELETE FROM learnings WHERE task_id = ?`, id); err != nil {
		return fmt.Errorf("deleting learnings: %w", err)
	}
	return nil
}

// SaveAnalysis stores the analysis record verbatim on the task.
func (s *Store) SaveAnalysis(ctx context.Context, taskID string, analysis *TaskAnalysis) error {
	b, err := json.Marshal(analysis)
	if err != nil {
		return fmt.Errorf("marshaling analysis: %w", err)
	}
	res, err := s.db.ExecContext(ctx, `UPDATE tasks SET analysis=?, updated_at=? WHERE id=?`, string(b), time.Now().UTC(), taskID)
	if err != nil {
		return fmt.Errorf("saving analysis: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// ListDependencies returns the ids a task directly depends on.
func (s *Store) ListDependencies(ctx context.Context, taskID string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT depends_on_task_id FROM task_dependencies WHERE task_id = ?`, taskID)
	if err != nil {
		return nil, fmt.Errorf("listing dependencies: %w", err)
	}
	defer rows.Close()
	var out []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

// ListDependents returns the ids of tasks that depend on taskID.
func (s *Store) ListDependents(ctx context.Context, taskID string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT task_id FROM task_dependencies WHERE depends_on_task_id = ?`, taskID)
	if err != nil {
		return nil, fmt.Errorf("listing dependents: %w", err)
	}
	defer rows.Close()
	var out []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

const taskSelectColumns = `SELECT id, project_id, title, description, status, assignee, priority, tags, category,
	is_user_story, user_story_id, story_metadata, analysis, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTask(row rowScanner) (*Task, error) {
	var t Task
	var tags, storyMeta, analysis string
	var isUserStory int
	if err := row.Scan(&t.ID, &t.ProjectID, &t.Title, &t.Description, &t.Status, &t.Assignee,
		&t.Priority, &tags, &t.Category, &isUserStory, &t.UserStoryID, &storyMeta, &analysis,
		&t.CreatedAt, &t.UpdatedAt); err != nil {
		return nil, err
	}
	t.IsUserStory = isUserStory != 0
	if tags != "" {
		_ = json.Unmarshal([]byte(tags), &t.Tags)
	}
	if storyMeta != "" {
		_ = json.Unmarshal([]byte(storyMeta), &t.StoryMetadata)
	}
	if analysis != "" {
		var a TaskAnalysis
		if err := json.Unmarshal([]byte(analysis), &a); err == nil {
			t.Analysis = &a
		}
	}
	return &t, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
