package store_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/taskforge-mcp/taskforge-mcp/internal/store"
)

func newTestStore(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func mustCreateTask(t *testing.T, s *store.Store, title string, deps ...string) *store.Task {
	t.Helper()
	task, err := s.InsertTaskWithDeps(context.Background(), &store.Task{Title: title}, deps)
	require.NoError(t, err)
	return task
}

func TestInsertTaskWithDeps_RoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	created, err := s.InsertTaskWithDeps(ctx, &store.Task{
		Title:       "Add password reset endpoint",
		Description: "POST /reset-password",
		Priority:    store.PriorityHigh,
		Tags:        []string{"auth", "backend"},
	}, nil)
	require.NoError(t, err)
	require.NotEmpty(t, created.ID)
	require.Equal(t, store.StatusBacklog, created.Status)

	fetched, err := s.GetTask(ctx, created.ID)
	require.NoError(t, err)
	require.Equal(t, created.Title, fetched.Title)
	require.Equal(t, created.Description, fetched.Description)
	require.Equal(t, created.Priority, fetched.Priority)
	require.ElementsMatch(t, created.Tags, fetched.Tags)
}

func TestInsertTaskWithDeps_MissingDep(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	_, err := s.InsertTaskWithDeps(ctx, &store.Task{Title: "orphan dep"}, []string{"does-not-exist"})
	require.ErrorIs(t, err, store.ErrMissingDep)

	tasks, err := s.ListTasks(ctx, store.TaskFilter{})
	require.NoError(t, err)
	require.Empty(t, tasks, "failed insert must leave no partial task behind")
}

func TestReplaceTaskDeps_CycleRejected(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	a := mustCreateTask(t, s, "A")
	b := mustCreateTask(t, s, "B", a.ID) // B depends on A

	// Making A depend on B would close the cycle A -> B -> A.
	err := s.ReplaceTaskDeps(ctx, a.ID, []string{b.ID})
	require.ErrorIs(t, err, store.ErrCycle)
}

func TestReplaceTaskDeps_SelfEdgeForbidden(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	a := mustCreateTask(t, s, "A")

	err := s.ReplaceTaskDeps(ctx, a.ID, []string{a.ID})
	require.ErrorIs(t, err, store.ErrCycle)
}

func TestDeleteTask_HasDependents(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	a := mustCreateTask(t, s, "A")
	mustCreateTask(t, s, "B", a.ID)

	err := s.DeleteTask(ctx, a.ID)
	require.ErrorIs(t, err, store.ErrHasDependents)
}

func TestDeleteTask_CascadesEdgesAndLearnings(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	a := mustCreateTask(t, s, "A")
	node, err := s.UpsertResourceNode(ctx, store.ResourceFile, "a.ts", "")
	require.NoError(t, err)
	require.NoError(t, s.ReplaceTaskResourceEdges(ctx, a.ID, []store.ResourceEdge{
		{TaskID: a.ID, ResourceID: node.ID, Action: store.ActionModifies},
	}))
	_, err = s.AddFeedback(ctx, &store.Learning{TaskID: a.ID, Context: "ctx", Result: "worked", Pattern: "p1", Type: store.LearningSuccess})
	require.NoError(t, err)

	require.NoError(t, s.DeleteTask(ctx, a.ID))

	edges, err := s.TaskResourceEdges(ctx, a.ID)
	require.NoError(t, err)
	require.Empty(t, edges)

	learnings, err := s.SimilarLearnings(ctx, store.SimilarLearningsFilter{TaskID: a.ID}, 10)
	require.NoError(t, err)
	require.Empty(t, learnings)
}

func TestUpdateTask_OnlyChangedFieldsRecorded(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	a := mustCreateTask(t, s, "A")

	newTitle := "A renamed"
	_, changes, err := s.UpdateTask(ctx, a.ID, store.TaskUpdate{Title: &newTitle})
	require.NoError(t, err)
	require.Equal(t, map[string]any{"title": newTitle}, changes)
}

func TestSafeDeleteTasksByStatus_PreservesUserStoryWithCompletedWork(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	story, err := s.InsertTaskWithDeps(ctx, &store.Task{Title: "Story", IsUserStory: true}, nil)
	require.NoError(t, err)
	sub1, err := s.InsertTaskWithDeps(ctx, &store.Task{Title: "sub1", UserStoryID: story.ID, Status: store.StatusDone}, nil)
	require.NoError(t, err)
	_, err = s.InsertTaskWithDeps(ctx, &store.Task{Title: "sub2", UserStoryID: story.ID}, nil)
	require.NoError(t, err)
	_, err = s.InsertTaskWithDeps(ctx, &store.Task{Title: "sub3", UserStoryID: story.ID}, nil)
	require.NoError(t, err)

	standalone := mustCreateTask(t, s, "standalone backlog task")

	res, err := s.SafeDeleteTasksByStatus(ctx, store.StatusBacklog)
	require.NoError(t, err)

	require.Contains(t, res.DeletedIDs, standalone.ID)
	require.NotContains(t, res.DeletedIDs, story.ID)

	var preservedStory *store.PreservedTask
	for i := range res.Preserved {
		if res.Preserved[i].ID == story.ID {
			preservedStory = &res.Preserved[i]
		}
	}
	require.NotNil(t, preservedStory)
	require.Equal(t, "has completed work", preservedStory.Reason)
	require.InDelta(t, 33.33, preservedStory.CompletionPercentage, 0.01)

	// sub1 is done, so it's untouched by the backlog-status sweep; the
	// story itself must still exist.
	_, err = s.GetTask(ctx, story.ID)
	require.NoError(t, err)
	_, err = s.GetTask(ctx, sub1.ID)
	require.NoError(t, err)
}

func TestSafeDeleteTasksByStatus_PreservesExternalDependents(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	a := mustCreateTask(t, s, "A")
	mustCreateTask(t, s, "B", a.ID)

	res, err := s.SafeDeleteTasksByStatus(ctx, store.StatusBacklog)
	require.NoError(t, err)
	require.NotContains(t, res.DeletedIDs, a.ID)

	var preserved *store.PreservedTask
	for i := range res.Preserved {
		if res.Preserved[i].ID == a.ID {
			preserved = &res.Preserved[i]
		}
	}
	require.NotNil(t, preserved)
	require.Equal(t, "has external dependents", preserved.Reason)
}

func TestDeleteUserStory_HasCompletedWorkWithoutForce(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	story, err := s.InsertTaskWithDeps(ctx, &store.Task{Title: "Story", IsUserStory: true}, nil)
	require.NoError(t, err)
	_, err = s.InsertTaskWithDeps(ctx, &store.Task{Title: "sub", UserStoryID: story.ID, Status: store.StatusDone}, nil)
	require.NoError(t, err)

	_, err = s.DeleteUserStory(ctx, story.ID, false)
	require.ErrorIs(t, err, store.ErrHasCompletedWork)
}

func TestDeleteUserStory_AllBacklogSucceedsWithoutForce(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	story, err := s.InsertTaskWithDeps(ctx, &store.Task{Title: "Story", IsUserStory: true}, nil)
	require.NoError(t, err)
	sub, err := s.InsertTaskWithDeps(ctx, &store.Task{Title: "sub", UserStoryID: story.ID}, nil)
	require.NoError(t, err)

	res, err := s.DeleteUserStory(ctx, story.ID, false)
	require.NoError(t, err)
	require.Equal(t, story.ID, res.DeletedStory.ID)
	require.Len(t, res.DeletedSubtasks, 1)

	_, err = s.GetTask(ctx, story.ID)
	require.ErrorIs(t, err, store.ErrNotFound)
	_, err = s.GetTask(ctx, sub.ID)
	require.ErrorIs(t, err, store.ErrNotFound)
}

func TestDeleteUserStory_ExternalDependentsBlockEvenWithForce(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	story, err := s.InsertTaskWithDeps(ctx, &store.Task{Title: "Story", IsUserStory: true}, nil)
	require.NoError(t, err)
	sub, err := s.InsertTaskWithDeps(ctx, &store.Task{Title: "sub", UserStoryID: story.ID, Status: store.StatusDone}, nil)
	require.NoError(t, err)
	mustCreateTask(t, s, "external", sub.ID)

	_, err = s.DeleteUserStory(ctx, story.ID, true)
	require.ErrorIs(t, err, store.ErrExternalDependents)
}

func TestDeriveUserStoryStatus(t *testing.T) {
	mk := func(statuses ...string) []*store.Task {
		out := make([]*store.Task, len(statuses))
		for i, s := range statuses {
			out[i] = &store.Task{Status: s}
		}
		return out
	}

	cases := []struct {
		name     string
		subtasks []*store.Task
		current  string
		want     string
	}{
		{"no subtasks keeps current", nil, store.StatusTodo, store.StatusTodo},
		{"all backlog", mk(store.StatusBacklog, store.StatusBacklog, store.StatusBacklog), store.StatusBacklog, store.StatusBacklog},
		{"one in_progress", mk(store.StatusBacklog, store.StatusInProgress, store.StatusBacklog), store.StatusBacklog, store.StatusInProgress},
		{"one todo no in_progress", mk(store.StatusBacklog, store.StatusTodo), store.StatusBacklog, store.StatusTodo},
		{"80pct done", mk(store.StatusDone, store.StatusDone, store.StatusDone, store.StatusDone, store.StatusBacklog), store.StatusBacklog, store.StatusDone},
		{"one done two backlog stays backlog", mk(store.StatusDone, store.StatusBacklog, store.StatusBacklog), store.StatusInProgress, store.StatusBacklog},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			got := store.DeriveUserStoryStatus(c.subtasks, c.current)
			require.Equal(t, c.want, got)
		})
	}
}
