package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
)

// UpsertResourceNode creates or returns the existing node for (type, name).
func (s *Store) UpsertResourceNode(ctx context.Context, typ, name, path string) (*ResourceNode, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	node, err := upsertResourceNodeTx(tx, typ, name, path)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing transaction: %w", err)
	}
	return node, nil
}

func upsertResourceNodeTx(tx *sql.Tx, typ, name, path string) (*ResourceNode, error) {
	var id string
	err := tx.QueryRow(`SELECT id FROM resource_nodes WHERE type = ? AND name = ?`, typ, name).Scan(&id)
	if err == nil {
		if path != "" {
			if _, err := tx.Exec(`UPDATE resource_nodes SET path = ? WHERE id = ?`, path, id); err != nil {
				return nil, fmt.Errorf("updating resource node path: %w", err)
			}
		}
		return &ResourceNode{ID: id, Type: typ, Name: name, Path: path}, nil
	}
	if err != sql.ErrNoRows {
		return nil, fmt.Errorf("looking up resource node: %w", err)
	}

	id = uuid.NewString()
	if _, err := tx.Exec(`INSERT INTO resource_nodes (id, type, name, path) VALUES (?,?,?,?)`, id, typ, name, path); err != nil {
		return nil, fmt.Errorf("inserting resource node: %w", err)
	}
	return &ResourceNode{ID: id, Type: typ, Name: name, Path: path}, nil
}

// ReplaceTaskResourceEdges atomically deletes a task's existing resource
// edges and inserts the given replacement set.
func (s *Store) ReplaceTaskResourceEdges(ctx context.Context, taskID string, edges []ResourceEdge) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM resource_edges WHERE task_id = ?`, taskID); err != nil {
		return fmt.Errorf("clearing resource edges: %w", err)
	}
	for _, e := range edges {
		if _, err := tx.Exec(`INSERT OR IGNORE INTO resource_edges (task_id, resource_id, action) VALUES (?,?,?)`,
			taskID, e.ResourceID, e.Action); err != nil {
			return fmt.Errorf("inserting resource edge: %w", err)
		}
	}
	return tx.Commit()
}

// ResourceNodeByID fetches a resource node.
func (s *Store) ResourceNodeByID(ctx context.Context, id string) (*ResourceNode, error) {
	var n ResourceNode
	err := s.db.QueryRowContext(ctx, `SELECT id, type, name, path FROM resource_nodes WHERE id = ?`, id).
		Scan(&n.ID, &n.Type, &n.Name, &n.Path)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("fetching resource node: %w", err)
	}
	return &n, nil
}

// TaskResourceEdges returns the resource edges owned by a task.
func (s *Store) TaskResourceEdges(ctx context.Context, taskID string) ([]ResourceEdge, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT task_id, resource_id, action FROM resource_edges WHERE task_id = ?`, taskID)
	if err != nil {
		return nil, fmt.Errorf("listing resource edges: %w", err)
	}
	defer rows.Close()
	var out []ResourceEdge
	for rows.Next() {
		var e ResourceEdge
		if err := rows.Scan(&e.TaskID, &e.ResourceID, &e.Action); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// ResourceEdgesByResource returns every edge pointing at a resource, across
// all tasks, along with the owning task's status (needed for conflict
// detection, which only considers tasks not yet done).
type ResourceEdgeWithTask struct {
	ResourceEdge
	TaskTitle  string
	TaskStatus string
}

func (s *Store) ResourceEdgesByResource(ctx context.Context, resourceID string) ([]ResourceEdgeWithTask, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT re.task_id, re.resource_id, re.action, t.title, t.status
		FROM resource_edges re JOIN tasks t ON t.id = re.task_id
		WHERE re.resource_id = ?`, resourceID)
	if err != nil {
		return nil, fmt.Errorf("listing resource edges by resource: %w", err)
	}
	defer rows.Close()
	var out []ResourceEdgeWithTask
	for rows.Next() {
		var e ResourceEdgeWithTask
		if err := rows.Scan(&e.TaskID, &e.ResourceID, &e.Action, &e.TaskTitle, &e.TaskStatus); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// TaskDependencyGraphEdges returns one task's resource edges and, index for
// index, the resource node each edge points at, used to build a
// dependency-graph view.
func (s *Store) TaskDependencyGraphEdges(ctx context.Context, taskID string) ([]ResourceEdge, []*ResourceNode, error) {
	edges, err := s.TaskResourceEdges(ctx, taskID)
	if err != nil {
		return nil, nil, err
	}
	nodes := make([]*ResourceNode, 0, len(edges))
	for _, e := range edges {
		n, err := s.ResourceNodeByID(ctx, e.ResourceID)
		if err != nil {
			return nil, nil, err
		}
		nodes = append(nodes, n)
	}
	return edges, nodes, nil
}
