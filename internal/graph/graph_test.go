package graph_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/taskforge-mcp/taskforge-mcp/internal/cache"
	"github.com/taskforge-mcp/taskforge-mcp/internal/engine"
	"github.com/taskforge-mcp/taskforge-mcp/internal/graph"
	"github.com/taskforge-mcp/taskforge-mcp/internal/store"
)

func newTestEngine(t *testing.T) (*engine.Engine, *store.Store) {
	t.Helper()
	s, err := store.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	c := cache.New(5*time.Minute, 15*time.Minute, time.Minute)
	return engine.New(s, c), s
}

// TestSaveTaskAnalysis_S2 exercises scenario S2 from spec.md §8.4.
func TestSaveTaskAnalysis_S2(t *testing.T) {
	e, s := newTestEngine(t)
	ctx := context.Background()

	task, _, err := e.CreateTask(ctx, engine.CreateTaskInput{Title: "T"})
	require.NoError(t, err)

	analysis := &store.TaskAnalysis{
		Dependencies: []store.AnalysisDependency{
			{Type: store.ResourceFile, Name: "a.ts", Action: store.ActionModifies},
		},
	}
	result, err := graph.SaveTaskAnalysis(ctx, s, task.ID, analysis)
	require.NoError(t, err)
	require.True(t, result.OK)

	edges, err := s.TaskResourceEdges(ctx, task.ID)
	require.NoError(t, err)
	require.Len(t, edges, 1)
	require.Equal(t, store.ActionModifies, edges[0].Action)

	node, err := s.ResourceNodeByID(ctx, edges[0].ResourceID)
	require.NoError(t, err)
	require.Equal(t, "a.ts", node.Name)
	require.Equal(t, store.ResourceFile, node.Type)

	got, err := s.GetTask(ctx, task.ID)
	require.NoError(t, err)
	require.NotNil(t, got.Analysis)
}

// TestTaskConflicts_S3 exercises scenario S3 from spec.md §8.4.
func TestTaskConflicts_S3(t *testing.T) {
	e, s := newTestEngine(t)
	ctx := context.Background()

	t1, _, err := e.CreateTask(ctx, engine.CreateTaskInput{Title: "T1"})
	require.NoError(t, err)
	t2, _, err := e.CreateTask(ctx, engine.CreateTaskInput{Title: "T2"})
	require.NoError(t, err)

	analysis := &store.TaskAnalysis{
		Dependencies: []store.AnalysisDependency{
			{Type: store.ResourceFile, Name: "auth.ts", Action: store.ActionModifies},
		},
	}
	_, err = graph.SaveTaskAnalysis(ctx, s, t1.ID, analysis)
	require.NoError(t, err)
	_, err = graph.SaveTaskAnalysis(ctx, s, t2.ID, analysis)
	require.NoError(t, err)

	conflicts, err := graph.TaskConflicts(ctx, s, t1.ID)
	require.NoError(t, err)
	require.Len(t, conflicts, 1)
	require.Equal(t, "concurrent_modify", conflicts[0].ConflictType)
	require.Equal(t, "high", conflicts[0].Severity)

	done := store.StatusTodo
	_, _, err = e.UpdateTask(ctx, t2.ID, engine.UpdateTaskInput{Status: &done})
	require.NoError(t, err)
	inProgress := store.StatusInProgress
	_, _, err = e.UpdateTask(ctx, t2.ID, engine.UpdateTaskInput{Status: &inProgress})
	require.NoError(t, err)
	doneStatus := store.StatusDone
	_, _, err = e.UpdateTask(ctx, t2.ID, engine.UpdateTaskInput{Status: &doneStatus})
	require.NoError(t, err)

	conflicts, err = graph.TaskConflicts(ctx, s, t1.ID)
	require.NoError(t, err)
	require.Empty(t, conflicts, "a done task's edges no longer conflict")
}

func TestSaveTaskAnalysis_UsesModifiesIsMediumSeverity(t *testing.T) {
	e, s := newTestEngine(t)
	ctx := context.Background()

	t1, _, err := e.CreateTask(ctx, engine.CreateTaskInput{Title: "T1"})
	require.NoError(t, err)
	t2, _, err := e.CreateTask(ctx, engine.CreateTaskInput{Title: "T2"})
	require.NoError(t, err)

	_, err = graph.SaveTaskAnalysis(ctx, s, t1.ID, &store.TaskAnalysis{
		Dependencies: []store.AnalysisDependency{{Type: store.ResourceFile, Name: "x.ts", Action: store.ActionUses}},
	})
	require.NoError(t, err)
	result, err := graph.SaveTaskAnalysis(ctx, s, t2.ID, &store.TaskAnalysis{
		Dependencies: []store.AnalysisDependency{{Type: store.ResourceFile, Name: "x.ts", Action: store.ActionModifies}},
	})
	require.NoError(t, err)
	require.Equal(t, 0, result.HighSeverityCount)
	require.Len(t, result.Conflicts, 1)
	require.Equal(t, "potential_collision", result.Conflicts[0].ConflictType)
	require.Equal(t, "medium", result.Conflicts[0].Severity)
}

func TestTaskConflicts_UsesUsesNeverConflicts(t *testing.T) {
	e, s := newTestEngine(t)
	ctx := context.Background()

	t1, _, err := e.CreateTask(ctx, engine.CreateTaskInput{Title: "T1"})
	require.NoError(t, err)
	t2, _, err := e.CreateTask(ctx, engine.CreateTaskInput{Title: "T2"})
	require.NoError(t, err)

	analysis := &store.TaskAnalysis{
		Dependencies: []store.AnalysisDependency{{Type: store.ResourceFile, Name: "x.ts", Action: store.ActionUses}},
	}
	_, err = graph.SaveTaskAnalysis(ctx, s, t1.ID, analysis)
	require.NoError(t, err)
	_, err = graph.SaveTaskAnalysis(ctx, s, t2.ID, analysis)
	require.NoError(t, err)

	conflicts, err := graph.TaskConflicts(ctx, s, t1.ID)
	require.NoError(t, err)
	require.Empty(t, conflicts)
}

func TestResourceUsageFor(t *testing.T) {
	e, s := newTestEngine(t)
	ctx := context.Background()

	task, _, err := e.CreateTask(ctx, engine.CreateTaskInput{Title: "T"})
	require.NoError(t, err)
	_, err = graph.SaveTaskAnalysis(ctx, s, task.ID, &store.TaskAnalysis{
		Dependencies: []store.AnalysisDependency{{Type: store.ResourceModel, Name: "User", Action: store.ActionCreates}},
	})
	require.NoError(t, err)

	edges, err := s.TaskResourceEdges(ctx, task.ID)
	require.NoError(t, err)
	require.Len(t, edges, 1)

	usage, err := graph.ResourceUsageFor(ctx, s, edges[0].ResourceID)
	require.NoError(t, err)
	require.Equal(t, "User", usage.Resource.Name)
	require.Len(t, usage.Tasks, 1)
	require.Equal(t, task.ID, usage.Tasks[0].TaskID)
}
