package workflow_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/taskforge-mcp/taskforge-mcp/internal/cache"
	"github.com/taskforge-mcp/taskforge-mcp/internal/engine"
	"github.com/taskforge-mcp/taskforge-mcp/internal/store"
	"github.com/taskforge-mcp/taskforge-mcp/internal/workflow"
)

func newTestEngine(t *testing.T) (*engine.Engine, *store.Store) {
	t.Helper()
	s, err := store.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	c := cache.New(5*time.Minute, 15*time.Minute, time.Minute)
	return engine.New(s, c), s
}

func TestTaskCreated_PointsAtPrepareTaskForExecution(t *testing.T) {
	ns := workflow.TaskCreated("t1")
	require.Equal(t, 1, ns.Step)
	require.Equal(t, "prepare_task_for_execution", ns.NextTool)
	require.Len(t, ns.ToolsToCall, 1)
	require.Equal(t, "t1", ns.ToolsToCall[0].Params["task_id"])
}

func TestStageOrder_StepsAreSequential(t *testing.T) {
	require.Equal(t, 1, workflow.TaskCreated("x").Step)
	require.Equal(t, 2, workflow.AnalysisPrepared("x").Step)
	require.Equal(t, 3, workflow.AnalysisSaved("x").Step)
	require.Equal(t, 4, workflow.ReadyToImplement("x").Step)
	require.Equal(t, 5, workflow.Done("x").Step)
}

func TestDone_NextToolIsEmptyTerminalStage(t *testing.T) {
	ns := workflow.Done("t1")
	require.Empty(t, ns.NextTool)
}

func TestBuildAnalysisPrompt_IncludesSearchPatternsAndRisks(t *testing.T) {
	e, s := newTestEngine(t)
	ctx := context.Background()

	task, _, err := e.CreateTask(ctx, engine.CreateTaskInput{
		Title: "Add database migration for users table", Category: store.CategoryBackendDatabase,
	})
	require.NoError(t, err)

	prompt, err := workflow.BuildAnalysisPrompt(ctx, s, task, "")
	require.NoError(t, err)
	require.Equal(t, task.ID, prompt.TaskID)
	require.NotEmpty(t, prompt.SearchPatterns)
	require.Contains(t, prompt.RisksToIdentify, "schema migrations that can't be rolled back")
	require.Equal(t, 2, prompt.NextSteps.Step)
}

func TestBuildAnalysisPrompt_SecurityTagAddsRisk(t *testing.T) {
	e, s := newTestEngine(t)
	ctx := context.Background()

	task, _, err := e.CreateTask(ctx, engine.CreateTaskInput{Title: "Rotate API keys", Tags: []string{"security"}})
	require.NoError(t, err)

	prompt, err := workflow.BuildAnalysisPrompt(ctx, s, task, "")
	require.NoError(t, err)
	require.Contains(t, prompt.RisksToIdentify, "introducing an injection or auth-bypass vector")
}

func TestBuildExecutionPrompt_IncludesAnalysisSections(t *testing.T) {
	e, s := newTestEngine(t)
	ctx := context.Background()

	task, _, err := e.CreateTask(ctx, engine.CreateTaskInput{Title: "Add endpoint"})
	require.NoError(t, err)

	err = s.SaveAnalysis(ctx, task.ID, &store.TaskAnalysis{
		FilesToModify: []store.FileToModify{{Path: "api/routes.go", Reason: "register route", Risk: "low"}},
		Risks:         []store.AnalysisRisk{{Level: "high", Description: "breaks auth", Mitigation: "add test"}},
		Recommendations: []string{"write integration test"},
	})
	require.NoError(t, err)

	got, err := e.Store.GetTask(ctx, task.ID)
	require.NoError(t, err)

	prompt, err := workflow.BuildExecutionPrompt(ctx, s, got, nil)
	require.NoError(t, err)
	require.Contains(t, prompt.Prompt, "api/routes.go")
	require.Contains(t, prompt.Prompt, "breaks auth")
	require.Contains(t, prompt.Prompt, "write integration test")
	require.Contains(t, prompt.Prompt, "Follow existing conventions")
	require.Equal(t, 4, prompt.NextSteps.Step)
}

func TestBuildExecutionPrompt_UsesSuppliedGuidelines(t *testing.T) {
	e, s := newTestEngine(t)
	ctx := context.Background()

	task, _, err := e.CreateTask(ctx, engine.CreateTaskInput{Title: "Add endpoint"})
	require.NoError(t, err)
	got, err := e.Store.GetTask(ctx, task.ID)
	require.NoError(t, err)

	prompt, err := workflow.BuildExecutionPrompt(ctx, s, got, []*store.Guideline{{Text: "Always wrap handlers in auth middleware"}})
	require.NoError(t, err)
	require.Contains(t, prompt.Prompt, "Always wrap handlers in auth middleware")
	require.NotContains(t, prompt.Prompt, "Follow existing conventions")
}
