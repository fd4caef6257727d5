// Package graph implements the resource dependency graph: analysis
// persistence, conflict detection, and the read-side resource usage
// queries (spec.md §4.5).
package graph

import (
	"context"
	"fmt"

	"github.com/taskforge-mcp/taskforge-mcp/internal/store"
)

// Conflict is one entry of task_conflicts' output (spec.md §4.5.2).
type Conflict struct {
	TaskID       string `json:"task_id"`
	TaskTitle    string `json:"task_title"`
	ResourceID   string `json:"resource_id"`
	ResourceName string `json:"resource_name"`
	ConflictType string `json:"conflict_type"`
	Severity     string `json:"severity"` // medium|high
	Description  string `json:"description"`
}

// conflictRule maps an (action, otherAction) pair to its conflict type and
// severity, per the table in spec.md §4.5.2. lookupRule tries a pair in the
// given order and then reversed, so the uses/modifies entry also covers a
// modifies edge meeting a uses edge. uses/uses has no entry and is never a
// conflict.
var conflictRule = map[[2]string]struct {
	conflictType string
	severity     string
}{
	{store.ActionModifies, store.ActionModifies}: {"concurrent_modify", "high"},
	{store.ActionCreates, store.ActionCreates}:   {"concurrent_write", "high"},
	{store.ActionModifies, store.ActionCreates}:  {"concurrent_write", "high"},
	{store.ActionCreates, store.ActionModifies}:  {"concurrent_write", "high"},
	{store.ActionUses, store.ActionModifies}:     {"potential_collision", "medium"},
}

// AnalysisResult is save_task_analysis's return payload.
type AnalysisResult struct {
	OK                bool       `json:"ok"`
	Message           string     `json:"message"`
	HighSeverityCount int        `json:"high_severity_conflicts"`
	Conflicts         []Conflict `json:"conflicts,omitempty"`
}

// SaveTaskAnalysis upserts resource nodes and edges for a task's analysis,
// detects conflicts against other not-done tasks, persists the analysis
// record, and reports whether any high-severity conflict was found (the
// caller emits guardian_intervention when HighSeverityCount > 0).
func SaveTaskAnalysis(ctx context.Context, s *store.Store, taskID string, analysis *store.TaskAnalysis) (*AnalysisResult, error) {
	task, err := s.GetTask(ctx, taskID)
	if err != nil {
		return nil, err
	}

	edges := make([]store.ResourceEdge, 0, len(analysis.Dependencies))
	for _, dep := range analysis.Dependencies {
		node, err := s.UpsertResourceNode(ctx, dep.Type, dep.Name, dep.Path)
		if err != nil {
			return nil, fmt.Errorf("upserting resource node: %w", err)
		}
		edges = append(edges, store.ResourceEdge{TaskID: taskID, ResourceID: node.ID, Action: dep.Action})
	}

	if err := s.ReplaceTaskResourceEdges(ctx, taskID, edges); err != nil {
		return nil, fmt.Errorf("replacing resource edges: %w", err)
	}

	var conflicts []Conflict
	for _, e := range edges {
		cs, err := taskConflictsForEdge(ctx, s, task, e)
		if err != nil {
			return nil, err
		}
		conflicts = append(conflicts, cs...)
	}

	if err := s.SaveAnalysis(ctx, taskID, analysis); err != nil {
		return nil, fmt.Errorf("saving analysis: %w", err)
	}

	high := 0
	for _, c := range conflicts {
		if c.Severity == "high" {
			high++
		}
	}

	return &AnalysisResult{
		OK:                true,
		Message:           fmt.Sprintf("Analysis saved: %d file(s) to modify, %d to create, %d conflict(s) detected.", len(analysis.FilesToModify), len(analysis.FilesToCreate), len(conflicts)),
		HighSeverityCount: high,
		Conflicts:         conflicts,
	}, nil
}

// TaskConflicts implements task_conflicts(task_id).
func TaskConflicts(ctx context.Context, s *store.Store, taskID string) ([]Conflict, error) {
	task, err := s.GetTask(ctx, taskID)
	if err != nil {
		return nil, err
	}
	edges, err := s.TaskResourceEdges(ctx, taskID)
	if err != nil {
		return nil, err
	}

	var all []Conflict
	for _, e := range edges {
		cs, err := taskConflictsForEdge(ctx, s, task, e)
		if err != nil {
			return nil, err
		}
		all = append(all, cs...)
	}
	return all, nil
}

func taskConflictsForEdge(ctx context.Context, s *store.Store, task *store.Task, edge store.ResourceEdge) ([]Conflict, error) {
	others, err := s.ResourceEdgesByResource(ctx, edge.ResourceID)
	if err != nil {
		return nil, err
	}
	node, err := s.ResourceNodeByID(ctx, edge.ResourceID)
	if err != nil {
		return nil, err
	}

	var conflicts []Conflict
	for _, o := range others {
		if o.TaskID == task.ID || o.TaskStatus == store.StatusDone {
			continue
		}
		rule, conflictType, severity := lookupRule(edge.Action, o.Action)
		if !rule {
			continue
		}
		conflicts = append(conflicts, Conflict{
			TaskID:       o.TaskID,
			TaskTitle:    o.TaskTitle,
			ResourceID:   node.ID,
			ResourceName: node.Name,
			ConflictType: conflictType,
			Severity:     severity,
			Description:  fmt.Sprintf("%q (%s) also %s %s %q", o.TaskTitle, o.TaskStatus, o.Action, node.Type, node.Name),
		})
	}
	return conflicts, nil
}

func lookupRule(a, b string) (ok bool, conflictType, severity string) {
	if r, found := conflictRule[[2]string{a, b}]; found {
		return true, r.conflictType, r.severity
	}
	if r, found := conflictRule[[2]string{b, a}]; found {
		return true, r.conflictType, r.severity
	}
	return false, "", ""
}

// DependencyGraph is task_dependency_graph's output.
type DependencyGraph struct {
	Nodes []*store.ResourceNode `json:"nodes"`
	Edges []store.ResourceEdge  `json:"edges"`
}

// TaskDependencyGraph implements task_dependency_graph(task_id).
func TaskDependencyGraph(ctx context.Context, s *store.Store, taskID string) (*DependencyGraph, error) {
	edges, nodes, err := s.TaskDependencyGraphEdges(ctx, taskID)
	if err != nil {
		return nil, err
	}
	return &DependencyGraph{Nodes: nodes, Edges: edges}, nil
}

// ResourceUsageEntry is one row of resource_usage's task list.
type ResourceUsageEntry struct {
	TaskID string `json:"task_id"`
	Title  string `json:"title"`
	Action string `json:"action"`
}

// ResourceUsage is resource_usage's output.
type ResourceUsage struct {
	Resource *store.ResourceNode  `json:"resource"`
	Tasks    []ResourceUsageEntry `json:"tasks"`
}

// ResourceUsage implements resource_usage(resource_id).
func ResourceUsageFor(ctx context.Context, s *store.Store, resourceID string) (*ResourceUsage, error) {
	node, err := s.ResourceNodeByID(ctx, resourceID)
	if err != nil {
		return nil, err
	}
	edges, err := s.ResourceEdgesByResource(ctx, resourceID)
	if err != nil {
		return nil, err
	}
	tasks := make([]ResourceUsageEntry, 0, len(edges))
	for _, e := range edges {
		tasks = append(tasks, ResourceUsageEntry{TaskID: e.TaskID, Title: e.TaskTitle, Action: e.Action})
	}
	return &ResourceUsage{Resource: node, Tasks: tasks}, nil
}
