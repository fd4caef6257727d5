package store_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/taskforge-mcp/taskforge-mcp/internal/store"
)

func TestDefaultProject_LazilyCreatedOnce(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	p1, err := s.DefaultProject(ctx)
	require.NoError(t, err)
	require.NotEmpty(t, p1.ID)

	p2, err := s.DefaultProject(ctx)
	require.NoError(t, err)
	require.Equal(t, p1.ID, p2.ID)
}

func TestTechStack_AddUpdateRemove(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	p, err := s.DefaultProject(ctx)
	require.NoError(t, err)

	ts, err := s.AddTechStack(ctx, &store.TechStack{ProjectID: p.ID, Category: "backend", Name: "Go", Version: "1.25"})
	require.NoError(t, err)

	newVersion := "1.26"
	updated, err := s.UpdateTechStack(ctx, ts.ID, nil, nil, &newVersion, nil)
	require.NoError(t, err)
	require.Equal(t, "1.26", updated.Version)
	require.Equal(t, "Go", updated.Name, "unset fields must be left unchanged")

	require.NoError(t, s.RemoveTechStack(ctx, ts.ID))
	_, err = s.GetTechStack(ctx, ts.ID)
	require.ErrorIs(t, err, store.ErrNotFound)
}

func TestSubAgent_UpsertByCompositeKey(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	p, err := s.DefaultProject(ctx)
	require.NoError(t, err)

	agent := &store.SubAgent{
		ProjectID: p.ID, Name: "my-guardian", AgentType: store.AgentDatabaseGuardian,
		Enabled: true, Triggers: []string{"schema change"}, Priority: 1,
	}
	_, err = s.AddSubAgent(ctx, agent)
	require.NoError(t, err)

	disabled := false
	updated, err := s.UpdateSubAgent(ctx, p.ID, "my-guardian", store.AgentDatabaseGuardian, &disabled, nil)
	require.NoError(t, err)
	require.False(t, updated.Enabled)

	_, err = s.AddSubAgent(ctx, agent)
	require.NoError(t, err)

	agents, err := s.ListSubAgents(ctx, p.ID)
	require.NoError(t, err)
	require.Len(t, agents, 1, "identity is (project_id, name, agent_type); re-adding must not duplicate")
}

func TestMCPTool_UsageCounters(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	p, err := s.DefaultProject(ctx)
	require.NoError(t, err)

	_, err = s.AddMCPTool(ctx, &store.MCPTool{ProjectID: p.ID, Name: "grep", ToolType: "search", Enabled: true})
	require.NoError(t, err)

	updated, err := s.UpdateMCPTool(ctx, p.ID, "grep", nil, nil, true, true)
	require.NoError(t, err)
	require.Equal(t, 1, updated.UsageCount)
	require.Equal(t, 1, updated.SuccessCount)

	updated, err = s.UpdateMCPTool(ctx, p.ID, "grep", nil, nil, true, false)
	require.NoError(t, err)
	require.Equal(t, 2, updated.UsageCount)
	require.Equal(t, 1, updated.SuccessCount, "failed usage increments usage_count but not success_count")
}
