package store_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/taskforge-mcp/taskforge-mcp/internal/store"
)

func TestUpsertResourceNode_SameIdentityReused(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	n1, err := s.UpsertResourceNode(ctx, store.ResourceFile, "auth.ts", "src/auth.ts")
	require.NoError(t, err)

	n2, err := s.UpsertResourceNode(ctx, store.ResourceFile, "auth.ts", "")
	require.NoError(t, err)

	require.Equal(t, n1.ID, n2.ID, "identity is (type, name); second call must upsert, not duplicate")
}

func TestReplaceTaskResourceEdges_DeleteThenInsertAtomic(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	task := mustCreateTask(t, s, "task")
	n1, err := s.UpsertResourceNode(ctx, store.ResourceFile, "a.ts", "")
	require.NoError(t, err)
	n2, err := s.UpsertResourceNode(ctx, store.ResourceFile, "b.ts", "")
	require.NoError(t, err)

	require.NoError(t, s.ReplaceTaskResourceEdges(ctx, task.ID, []store.ResourceEdge{
		{TaskID: task.ID, ResourceID: n1.ID, Action: store.ActionModifies},
	}))
	edges, err := s.TaskResourceEdges(ctx, task.ID)
	require.NoError(t, err)
	require.Len(t, edges, 1)

	require.NoError(t, s.ReplaceTaskResourceEdges(ctx, task.ID, []store.ResourceEdge{
		{TaskID: task.ID, ResourceID: n2.ID, Action: store.ActionCreates},
	}))
	edges, err = s.TaskResourceEdges(ctx, task.ID)
	require.NoError(t, err)
	require.Len(t, edges, 1)
	require.Equal(t, n2.ID, edges[0].ResourceID)
}

func TestResourceEdgesByResource_JoinsTaskInfo(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	task := mustCreateTask(t, s, "task one")
	node, err := s.UpsertResourceNode(ctx, store.ResourceFile, "shared.ts", "")
	require.NoError(t, err)
	require.NoError(t, s.ReplaceTaskResourceEdges(ctx, task.ID, []store.ResourceEdge{
		{TaskID: task.ID, ResourceID: node.ID, Action: store.ActionModifies},
	}))

	usages, err := s.ResourceEdgesByResource(ctx, node.ID)
	require.NoError(t, err)
	require.Len(t, usages, 1)
	require.Equal(t, "task one", usages[0].TaskTitle)
	require.Equal(t, store.StatusBacklog, usages[0].TaskStatus)
}
