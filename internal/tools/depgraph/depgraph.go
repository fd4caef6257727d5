// Package depgraph implements the dependency-graph tool group:
// save_dependencies, get_task_dependency_graph, get_resource_usage,
// get_task_conflicts.
package depgraph

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/taskforge-mcp/taskforge-mcp/internal/graph"
	"github.com/taskforge-mcp/taskforge-mcp/internal/mcp"
	"github.com/taskforge-mcp/taskforge-mcp/internal/store"
)

func errResult(err error) (*mcp.ToolsCallResult, error) {
	return mcp.ErrorResult(err.Error()), nil
}

func invalidParams(err error) (*mcp.ToolsCallResult, error) {
	return mcp.ErrorResult(fmt.Sprintf("invalid parameters: %v", err)), nil
}

// --- save_dependencies ---

type SaveDependencies struct{ store *store.Store }

func NewSaveDependencies(s *store.Store) *SaveDependencies { return &SaveDependencies{store: s} }

func (t *SaveDependencies) Name() string { return "save_dependencies" }
func (t *SaveDependencies) Description() string {
	return "Replace a task's resource edges (type/name/path + action), emitting dependency_added/dependency_removed for the diff."
}
func (t *SaveDependencies) InputSchema() json.RawMessage {
	return json.RawMessage(`{
  "type": "object",
  "properties": {
    "task_id": {"type": "string"},
    "dependencies": {
      "type": "array",
      "items": {
        "type": "object",
        "properties": {
          "type": {"type": "string"},
          "name": {"type": "string"},
          "path": {"type": "string"},
          "action": {"type": "string", "enum": ["creates", "modifies", "uses"]}
        },
        "required": ["type", "name", "action"]
      }
    }
  },
  "required": ["task_id", "dependencies"]
}`)
}

type dependencyInput struct {
	Type   string `json:"type"`
	Name   string `json:"name"`
	Path   string `json:"path"`
	Action string `json:"action"`
}

func (t *SaveDependencies) Execute(ctx context.Context, params json.RawMessage) (*mcp.ToolsCallResult, error) {
	var p struct {
		TaskID       string             `json:"task_id"`
		Dependencies []dependencyInput `json:"dependencies"`
	}
	if err := json.Unmarshal(params, &p); err != nil {
		return invalidParams(err)
	}

	before, err := t.store.TaskResourceEdges(ctx, p.TaskID)
	if err != nil {
		return errResult(err)
	}
	beforeKeys := make(map[string]bool, len(before))
	for _, e := range before {
		beforeKeys[e.ResourceID+"/"+e.Action] = true
	}

	edges := make([]store.ResourceEdge, 0, len(p.Dependencies))
	afterKeys := make(map[string]bool, len(p.Dependencies))
	for _, d := range p.Dependencies {
		node, err := t.store.UpsertResourceNode(ctx, d.Type, d.Name, d.Path)
		if err != nil {
			return errResult(err)
		}
		edges = append(edges, store.ResourceEdge{TaskID: p.TaskID, ResourceID: node.ID, Action: d.Action})
		afterKeys[node.ID+"/"+d.Action] = true
	}

	if err := t.store.ReplaceTaskResourceEdges(ctx, p.TaskID, edges); err != nil {
		return errResult(err)
	}

	added, removed := 0, 0
	for k := range afterKeys {
		if !beforeKeys[k] {
			added++
		}
	}
	for k := range beforeKeys {
		if !afterKeys[k] {
			removed++
		}
	}
	if added > 0 {
		if err := t.store.Emit(ctx, store.EventDependencyAdded, map[string]any{"task_id": p.TaskID, "count": added}); err != nil {
			return errResult(err)
		}
	}
	if removed > 0 {
		if err := t.store.Emit(ctx, store.EventDependencyRemoved, map[string]any{"task_id": p.TaskID, "count": removed}); err != nil {
			return errResult(err)
		}
	}

	return mcp.JSONResult(map[string]any{"edges": edges, "added": added, "removed": removed})
}

// --- get_task_dependency_graph ---

type GetTaskDependencyGraph struct{ store *store.Store }

func NewGetTaskDependencyGraph(s *store.Store) *GetTaskDependencyGraph {
	return &GetTaskDependencyGraph{store: s}
}

func (t *GetTaskDependencyGraph) Name() string { return "get_task_dependency_graph" }
func (t *GetTaskDependencyGraph) Description() string {
	return "Return a task's resource nodes and edges."
}
func (t *GetTaskDependencyGraph) InputSchema() json.RawMessage {
	return json.RawMessage(`{"type":"object","properties":{"task_id":{"type":"string"}},"required":["task_id"]}`)
}

func (t *GetTaskDependencyGraph) Execute(ctx context.Context, params json.RawMessage) (*mcp.ToolsCallResult, error) {
	var p struct {
		TaskID string `json:"task_id"`
	}
	if err := json.Unmarshal(params, &p); err != nil {
		return invalidParams(err)
	}
	result, err := graph.TaskDependencyGraph(ctx, t.store, p.TaskID)
	if err != nil {
		return errResult(err)
	}
	return mcp.JSONResult(result)
}

// --- get_resource_usage ---

type GetResourceUsage struct{ store *store.Store }

func NewGetResourceUsage(s *store.Store) *GetResourceUsage { return &GetResourceUsage{store: s} }

func (t *GetResourceUsage) Name() string { return "get_resource_usage" }
func (t *GetResourceUsage) Description() string {
	return "Return every task referencing a given resource node, with the action each took."
}
func (t *GetResourceUsage) InputSchema() json.RawMessage {
	return json.RawMessage(`{"type":"object","properties":{"resource_id":{"type":"string"}},"required":["resource_id"]}`)
}

func (t *GetResourceUsage) Execute(ctx context.Context, params json.RawMessage) (*mcp.ToolsCallResult, error) {
	var p struct {
		ResourceID string `json:"resource_id"`
	}
	if err := json.Unmarshal(params, &p); err != nil {
		return invalidParams(err)
	}
	result, err := graph.ResourceUsageFor(ctx, t.store, p.ResourceID)
	if err != nil {
		return errResult(err)
	}
	return mcp.JSONResult(result)
}

// --- get_task_conflicts ---

type GetTaskConflicts struct{ store *store.Store }

func NewGetTaskConflicts(s *store.Store) *GetTaskConflicts { return &GetTaskConflicts{store: s} }

func (t *GetTaskConflicts) Name() string { return "get_task_conflicts" }
func (t *GetTaskConflicts) Description() string {
	return "Detect conflicts between a task's resource edges and those of other not-done tasks."
}
func (t *GetTaskConflicts) InputSchema() json.RawMessage {
	return json.RawMessage(`{"type":"object","properties":{"task_id":{"type":"string"}},"required":["task_id"]}`)
}

func (t *GetTaskConflicts) Execute(ctx context.Context, params json.RawMessage) (*mcp.ToolsCallResult, error) {
	var p struct {
		TaskID string `json:"task_id"`
	}
	if err := json.Unmarshal(params, &p); err != nil {
		return invalidParams(err)
	}
	conflicts, err := graph.TaskConflicts(ctx, t.store, p.TaskID)
	if err != nil {
		return errResult(err)
	}
	return mcp.JSONResult(map[string]any{"conflicts": conflicts})
}
