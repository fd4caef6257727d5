package tasks_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/taskforge-mcp/taskforge-mcp/internal/cache"
	"github.com/taskforge-mcp/taskforge-mcp/internal/engine"
	"github.com/taskforge-mcp/taskforge-mcp/internal/store"
	"github.com/taskforge-mcp/taskforge-mcp/internal/tools/tasks"
)

func newTestEngine(t *testing.T) (*engine.Engine, *store.Store) {
	t.Helper()
	s, err := store.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	c := cache.New(5*time.Minute, 15*time.Minute, time.Minute)
	return engine.New(s, c), s
}

func TestCreateTask_Execute_ReturnsTaskAndNextSteps(t *testing.T) {
	e, _ := newTestEngine(t)
	tool := tasks.NewCreateTask(e)
	ctx := context.Background()

	res, err := tool.Execute(ctx, json.RawMessage(`{"title":"Do the thing"}`))
	require.NoError(t, err)
	require.False(t, res.IsError)
	require.Contains(t, res.Content[0].Text, "next_steps")
	require.Contains(t, res.Content[0].Text, "Do the thing")
}

func TestCreateTask_Execute_ValidationErrorSurfacesAsToolError(t *testing.T) {
	e, _ := newTestEngine(t)
	tool := tasks.NewCreateTask(e)

	res, err := tool.Execute(context.Background(), json.RawMessage(`{"title":""}`))
	require.NoError(t, err, "tool errors are returned as isError results, not Go errors")
	require.True(t, res.IsError)
}

func TestCreateTask_Execute_InvalidJSONSurfacesAsToolError(t *testing.T) {
	e, _ := newTestEngine(t)
	tool := tasks.NewCreateTask(e)

	res, err := tool.Execute(context.Background(), json.RawMessage(`not json`))
	require.NoError(t, err)
	require.True(t, res.IsError)
}

func TestUpdateTask_Execute_RequiresTaskID(t *testing.T) {
	e, _ := newTestEngine(t)
	tool := tasks.NewUpdateTask(e)

	res, err := tool.Execute(context.Background(), json.RawMessage(`{"title":"new title"}`))
	require.NoError(t, err)
	require.True(t, res.IsError)
}

func TestListTasks_Execute_FiltersByStatus(t *testing.T) {
	e, s := newTestEngine(t)
	ctx := context.Background()
	_, _, err := e.CreateTask(ctx, engine.CreateTaskInput{Title: "a"})
	require.NoError(t, err)
	_, _, err = e.CreateTask(ctx, engine.CreateTaskInput{Title: "b"})
	require.NoError(t, err)

	tool := tasks.NewListTasks(s)
	res, err := tool.Execute(ctx, json.RawMessage(`{"status":"backlog"}`))
	require.NoError(t, err)
	require.False(t, res.IsError)
	require.Contains(t, res.Content[0].Text, `"a"`)
}

func TestGetTask_Execute_UnknownIDSurfacesAsToolError(t *testing.T) {
	e, s := newTestEngine(t)
	_ = e
	tool := tasks.NewGetTask(s)
	res, err := tool.Execute(context.Background(), json.RawMessage(`{"task_id":"does-not-exist"}`))
	require.NoError(t, err)
	require.True(t, res.IsError)
}

func TestDeleteTask_Execute_BlocksWhenDependentsExist(t *testing.T) {
	e, _ := newTestEngine(t)
	ctx := context.Background()
	dep, _, err := e.CreateTask(ctx, engine.CreateTaskInput{Title: "dep"})
	require.NoError(t, err)
	_, _, err = e.CreateTask(ctx, engine.CreateTaskInput{Title: "t", Deps: []string{dep.ID}})
	require.NoError(t, err)

	tool := tasks.NewDeleteTask(e)
	res, err := tool.Execute(ctx, json.RawMessage(`{"task_id":"`+dep.ID+`"}`))
	require.NoError(t, err)
	require.True(t, res.IsError)
}

func TestGetTaskContext_Execute_IncludesDependenciesAndEdges(t *testing.T) {
	e, s := newTestEngine(t)
	ctx := context.Background()
	dep, _, err := e.CreateTask(ctx, engine.CreateTaskInput{Title: "dep"})
	require.NoError(t, err)
	task, _, err := e.CreateTask(ctx, engine.CreateTaskInput{Title: "t", Deps: []string{dep.ID}})
	require.NoError(t, err)

	tool := tasks.NewGetTaskContext(s)
	res, err := tool.Execute(ctx, json.RawMessage(`{"task_id":"`+task.ID+`"}`))
	require.NoError(t, err)
	require.False(t, res.IsError)
	require.Contains(t, res.Content[0].Text, `"dependencies"`)
	require.Contains(t, res.Content[0].Text, dep.ID)
}
