package depgraph_test

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/taskforge-mcp/taskforge-mcp/internal/cache"
	"github.com/taskforge-mcp/taskforge-mcp/internal/engine"
	"github.com/taskforge-mcp/taskforge-mcp/internal/store"
	"github.com/taskforge-mcp/taskforge-mcp/internal/tools/depgraph"
)

func newTestEngine(t *testing.T) (*engine.Engine, *store.Store) {
	t.Helper()
	s, err := store.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	c := cache.New(5*time.Minute, 15*time.Minute, time.Minute)
	return engine.New(s, c), s
}

func TestSaveDependencies_Execute_EmitsAddedOnFirstCall(t *testing.T) {
	e, s := newTestEngine(t)
	ctx := context.Background()
	task, _, err := e.CreateTask(ctx, engine.CreateTaskInput{Title: "t"})
	require.NoError(t, err)

	tool := depgraph.NewSaveDependencies(s)
	params := `{"task_id":"` + task.ID + `","dependencies":[{"type":"file","name":"a.ts","action":"modifies"}]}`
	res, err := tool.Execute(ctx, json.RawMessage(params))
	require.NoError(t, err)
	require.False(t, res.IsError)
	require.Contains(t, res.Content[0].Text, `"added": 1`)

	events, err := s.FetchUnprocessed(ctx, 10)
	require.NoError(t, err)
	var sawAdded bool
	for _, ev := range events {
		if ev.EventType == store.EventDependencyAdded {
			sawAdded = true
		}
	}
	require.True(t, sawAdded)
}

func TestGetTaskDependencyGraph_Execute(t *testing.T) {
	e, s := newTestEngine(t)
	ctx := context.Background()
	task, _, err := e.CreateTask(ctx, engine.CreateTaskInput{Title: "t"})
	require.NoError(t, err)

	saveTool := depgraph.NewSaveDependencies(s)
	_, err = saveTool.Execute(ctx, json.RawMessage(`{"task_id":"`+task.ID+`","dependencies":[{"type":"file","name":"a.ts","action":"creates"}]}`))
	require.NoError(t, err)

	tool := depgraph.NewGetTaskDependencyGraph(s)
	res, err := tool.Execute(ctx, json.RawMessage(`{"task_id":"`+task.ID+`"}`))
	require.NoError(t, err)
	require.False(t, res.IsError)
	require.Contains(t, res.Content[0].Text, "a.ts")
}

func TestGetTaskConflicts_Execute_DetectsConcurrentModify(t *testing.T) {
	e, s := newTestEngine(t)
	ctx := context.Background()
	t1, _, err := e.CreateTask(ctx, engine.CreateTaskInput{Title: "t1"})
	require.NoError(t, err)
	t2, _, err := e.CreateTask(ctx, engine.CreateTaskInput{Title: "t2"})
	require.NoError(t, err)

	saveTool := depgraph.NewSaveDependencies(s)
	dep := `{"task_id":"%s","dependencies":[{"type":"file","name":"auth.ts","action":"modifies"}]}`
	_, err = saveTool.Execute(ctx, json.RawMessage(fmt.Sprintf(dep, t1.ID)))
	require.NoError(t, err)
	_, err = saveTool.Execute(ctx, json.RawMessage(fmt.Sprintf(dep, t2.ID)))
	require.NoError(t, err)

	tool := depgraph.NewGetTaskConflicts(s)
	res, err := tool.Execute(ctx, json.RawMessage(`{"task_id":"`+t1.ID+`"}`))
	require.NoError(t, err)
	require.False(t, res.IsError)
	require.Contains(t, res.Content[0].Text, "concurrent_modify")
}
