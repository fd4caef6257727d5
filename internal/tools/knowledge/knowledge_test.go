package knowledge_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/taskforge-mcp/taskforge-mcp/internal/cache"
	"github.com/taskforge-mcp/taskforge-mcp/internal/store"
	"github.com/taskforge-mcp/taskforge-mcp/internal/tools/knowledge"
)

func newTestStoreAndCache(t *testing.T) (*store.Store, *cache.Cache) {
	t.Helper()
	s, err := store.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s, cache.New(5*time.Minute, 15*time.Minute, time.Minute)
}

func TestListTemplates_Execute_UsesDefaultProject(t *testing.T) {
	s, c := newTestStoreAndCache(t)
	ctx := context.Background()
	proj, err := s.DefaultProject(ctx)
	require.NoError(t, err)
	_, err = s.AddTemplate(ctx, &store.Template{ProjectID: proj.ID, Name: "readme", Content: "# {{.Name}}"})
	require.NoError(t, err)

	tool := knowledge.NewListTemplates(s, c)
	res, err := tool.Execute(ctx, json.RawMessage(`{}`))
	require.NoError(t, err)
	require.False(t, res.IsError)
	require.Contains(t, res.Content[0].Text, "readme")
}

func TestRenderTemplate_Execute_ExpandsParams(t *testing.T) {
	s, _ := newTestStoreAndCache(t)
	ctx := context.Background()
	proj, err := s.DefaultProject(ctx)
	require.NoError(t, err)
	_, err = s.AddTemplate(ctx, &store.Template{ProjectID: proj.ID, Name: "greeting", Content: "Hello, {{.name}}!"})
	require.NoError(t, err)

	tool := knowledge.NewRenderTemplate(s)
	res, err := tool.Execute(ctx, json.RawMessage(`{"name":"greeting","params":{"name":"World"}}`))
	require.NoError(t, err)
	require.False(t, res.IsError)
	require.Contains(t, res.Content[0].Text, "Hello, World!")
}

func TestRenderTemplate_Execute_UnknownNameSurfacesAsToolError(t *testing.T) {
	s, _ := newTestStoreAndCache(t)
	tool := knowledge.NewRenderTemplate(s)
	res, err := tool.Execute(context.Background(), json.RawMessage(`{"name":"nope"}`))
	require.NoError(t, err)
	require.True(t, res.IsError)
}

func TestAddFeedback_Execute_EmitsFeedbackReceivedAndInvalidatesCache(t *testing.T) {
	s, c := newTestStoreAndCache(t)
	ctx := context.Background()
	c.Set("learnings:recent", []string{"stale"}, cache.Default)

	tool := knowledge.NewAddFeedback(s, c)
	params := `{"result":"failed","type":"failure","pattern":"regex-parser"}`
	res, err := tool.Execute(ctx, json.RawMessage(params))
	require.NoError(t, err)
	require.False(t, res.IsError)

	_, ok := c.Get("learnings:recent")
	require.False(t, ok, "add_feedback must invalidate the learnings:* cache namespace")

	events, err := s.FetchUnprocessed(ctx, 10)
	require.NoError(t, err)
	var saw bool
	for _, ev := range events {
		if ev.EventType == store.EventFeedbackReceived {
			saw = true
		}
	}
	require.True(t, saw)
}

func TestAddFeedback_Execute_MissingPatternSurfacesAsToolError(t *testing.T) {
	s, c := newTestStoreAndCache(t)
	tool := knowledge.NewAddFeedback(s, c)
	res, err := tool.Execute(context.Background(), json.RawMessage(`{"result":"failed","type":"failure"}`))
	require.NoError(t, err)
	require.True(t, res.IsError)
}

func TestCheckPatternRisk_Execute(t *testing.T) {
	s, _ := newTestStoreAndCache(t)
	ctx := context.Background()
	for i := 0; i < 3; i++ {
		_, err := s.AddFeedback(ctx, &store.Learning{Context: "c", Result: "failed", Pattern: "regex-parser", Type: store.LearningFailure})
		require.NoError(t, err)
	}

	tool := knowledge.NewCheckPatternRisk(s)
	res, err := tool.Execute(ctx, json.RawMessage(`{"pattern":"regex-parser"}`))
	require.NoError(t, err)
	require.False(t, res.IsError)
	require.Contains(t, res.Content[0].Text, "high")
}

func TestGetSimilarLearnings_Execute(t *testing.T) {
	s, _ := newTestStoreAndCache(t)
	ctx := context.Background()
	_, err := s.AddFeedback(ctx, &store.Learning{Context: "database migration rollback", Result: "failed", Pattern: "migration", Type: store.LearningFailure, Lesson: "always write the down migration first"})
	require.NoError(t, err)

	tool := knowledge.NewGetSimilarLearnings(s)
	res, err := tool.Execute(ctx, json.RawMessage(`{"context":"migration rollback"}`))
	require.NoError(t, err)
	require.False(t, res.IsError)
	require.Contains(t, res.Content[0].Text, "down migration first")
}

func TestDetectFailurePatterns_Execute_DefaultsThresholds(t *testing.T) {
	s, _ := newTestStoreAndCache(t)
	ctx := context.Background()
	for i := 0; i < 3; i++ {
		_, err := s.AddFeedback(ctx, &store.Learning{Context: "c", Result: "failed", Pattern: "flaky", Type: store.LearningFailure})
		require.NoError(t, err)
	}

	tool := knowledge.NewDetectFailurePatterns(s)
	res, err := tool.Execute(ctx, json.RawMessage(`{}`))
	require.NoError(t, err)
	require.False(t, res.IsError)
	require.Contains(t, res.Content[0].Text, "flaky")
}
