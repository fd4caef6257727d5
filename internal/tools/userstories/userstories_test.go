package userstories_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/taskforge-mcp/taskforge-mcp/internal/cache"
	"github.com/taskforge-mcp/taskforge-mcp/internal/engine"
	"github.com/taskforge-mcp/taskforge-mcp/internal/store"
	"github.com/taskforge-mcp/taskforge-mcp/internal/tools/userstories"
)

func newTestEngine(t *testing.T) (*engine.Engine, *store.Store) {
	t.Helper()
	s, err := store.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	c := cache.New(5*time.Minute, 15*time.Minute, time.Minute)
	return engine.New(s, c), s
}

func TestGetUserStories_Execute_OnlyReturnsStories(t *testing.T) {
	e, s := newTestEngine(t)
	ctx := context.Background()
	_, _, err := e.CreateTask(ctx, engine.CreateTaskInput{Title: "story", IsUserStory: true})
	require.NoError(t, err)
	_, _, err = e.CreateTask(ctx, engine.CreateTaskInput{Title: "plain task"})
	require.NoError(t, err)

	tool := userstories.NewGetUserStories(s)
	res, err := tool.Execute(ctx, nil)
	require.NoError(t, err)
	require.Contains(t, res.Content[0].Text, "story")
	require.NotContains(t, res.Content[0].Text, "plain task")
}

func TestGetTasksByUserStory_Execute_FiltersSubtasks(t *testing.T) {
	e, s := newTestEngine(t)
	ctx := context.Background()
	story, _, err := e.CreateTask(ctx, engine.CreateTaskInput{Title: "story", IsUserStory: true})
	require.NoError(t, err)
	_, _, err = e.CreateTask(ctx, engine.CreateTaskInput{Title: "sub1", UserStoryID: story.ID})
	require.NoError(t, err)

	tool := userstories.NewGetTasksByUserStory(s)
	res, err := tool.Execute(ctx, json.RawMessage(`{"user_story_id":"`+story.ID+`"}`))
	require.NoError(t, err)
	require.Contains(t, res.Content[0].Text, "sub1")
}

func TestDeleteUserStory_Execute_BlocksOnCompletedWorkWithoutForce(t *testing.T) {
	e, _ := newTestEngine(t)
	ctx := context.Background()
	story, _, err := e.CreateTask(ctx, engine.CreateTaskInput{Title: "story", IsUserStory: true})
	require.NoError(t, err)
	sub, _, err := e.CreateTask(ctx, engine.CreateTaskInput{Title: "sub", UserStoryID: story.ID})
	require.NoError(t, err)
	todo := store.StatusTodo
	_, _, err = e.UpdateTask(ctx, sub.ID, engine.UpdateTaskInput{Status: &todo})
	require.NoError(t, err)
	inProgress := store.StatusInProgress
	_, _, err = e.UpdateTask(ctx, sub.ID, engine.UpdateTaskInput{Status: &inProgress})
	require.NoError(t, err)
	done := store.StatusDone
	_, _, err = e.UpdateTask(ctx, sub.ID, engine.UpdateTaskInput{Status: &done})
	require.NoError(t, err)

	tool := userstories.NewDeleteUserStory(e)
	res, err := tool.Execute(ctx, json.RawMessage(`{"user_story_id":"`+story.ID+`"}`))
	require.NoError(t, err)
	require.True(t, res.IsError)
}

func TestSafeDeleteTasksByStatus_Execute(t *testing.T) {
	e, _ := newTestEngine(t)
	ctx := context.Background()
	_, _, err := e.CreateTask(ctx, engine.CreateTaskInput{Title: "a"})
	require.NoError(t, err)

	tool := userstories.NewSafeDeleteTasksByStatus(e)
	res, err := tool.Execute(ctx, json.RawMessage(`{"status":"backlog"}`))
	require.NoError(t, err)
	require.False(t, res.IsError)
	require.Contains(t, res.Content[0].Text, "deleted_ids")
}

func TestGetUserStoryHealth_Execute(t *testing.T) {
	e, s := newTestEngine(t)
	ctx := context.Background()
	_, _, err := e.CreateTask(ctx, engine.CreateTaskInput{Title: "story", IsUserStory: true})
	require.NoError(t, err)

	tool := userstories.NewGetUserStoryHealth(e)
	_ = s
	res, err := tool.Execute(ctx, nil)
	require.NoError(t, err)
	require.Contains(t, res.Content[0].Text, "user_stories")
}
