// Package knowledge implements the knowledge tool group: list_templates,
// list_patterns, list_learnings, render_template, get_relevant_knowledge,
// add_feedback, get_similar_learnings, get_top_patterns,
// get_trending_patterns, get_pattern_stats, detect_failure_patterns,
// check_pattern_risk.
package knowledge

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"text/template"

	"github.com/taskforge-mcp/taskforge-mcp/internal/cache"
	"github.com/taskforge-mcp/taskforge-mcp/internal/learning"
	"github.com/taskforge-mcp/taskforge-mcp/internal/mcp"
	"github.com/taskforge-mcp/taskforge-mcp/internal/store"
)

func errResult(err error) (*mcp.ToolsCallResult, error) {
	return mcp.ErrorResult(err.Error()), nil
}

func invalidParams(err error) (*mcp.ToolsCallResult, error) {
	return mcp.ErrorResult(fmt.Sprintf("invalid parameters: %v", err)), nil
}

func resolveProjectID(ctx context.Context, s *store.Store, projectID string) (string, error) {
	if projectID != "" {
		return projectID, nil
	}
	p, err := s.DefaultProject(ctx)
	if err != nil {
		return "", err
	}
	return p.ID, nil
}

// --- list_templates ---

type ListTemplates struct {
	store *store.Store
	cache *cache.Cache
}

func NewListTemplates(s *store.Store, c *cache.Cache) *ListTemplates {
	return &ListTemplates{store: s, cache: c}
}

func (t *ListTemplates) Name() string        { return "list_templates" }
func (t *ListTemplates) Description() string { return "List project templates." }
func (t *ListTemplates) InputSchema() json.RawMessage {
	return json.RawMessage(`{"type":"object","properties":{"project_id":{"type":"string"}}}`)
}

func (t *ListTemplates) Execute(ctx context.Context, params json.RawMessage) (*mcp.ToolsCallResult, error) {
	var p struct {
		ProjectID string `json:"project_id"`
	}
	if err := json.Unmarshal(params, &p); err != nil {
		return invalidParams(err)
	}
	projectID, err := resolveProjectID(ctx, t.store, p.ProjectID)
	if err != nil {
		return errResult(err)
	}
	templates, err := cache.GetOrSet(t.cache, "templates:"+projectID, cache.Knowledge, func() ([]*store.Template, error) {
		return t.store.ListTemplates(ctx, projectID)
	})
	if err != nil {
		return errResult(err)
	}
	return mcp.JSONResult(map[string]any{"templates": templates})
}

// --- list_patterns ---

type ListPatterns struct {
	store *store.Store
	cache *cache.Cache
}

func NewListPatterns(s *store.Store, c *cache.Cache) *ListPatterns {
	return &ListPatterns{store: s, cache: c}
}

func (t *ListPatterns) Name() string        { return "list_patterns" }
func (t *ListPatterns) Description() string { return "List project code patterns." }
func (t *ListPatterns) InputSchema() json.RawMessage {
	return json.RawMessage(`{"type":"object","properties":{"project_id":{"type":"string"}}}`)
}

func (t *ListPatterns) Execute(ctx context.Context, params json.RawMessage) (*mcp.ToolsCallResult, error) {
	var p struct {
		ProjectID string `json:"project_id"`
	}
	if err := json.Unmarshal(params, &p); err != nil {
		return invalidParams(err)
	}
	projectID, err := resolveProjectID(ctx, t.store, p.ProjectID)
	if err != nil {
		return errResult(err)
	}
	patterns, err := cache.GetOrSet(t.cache, "patterns:"+projectID, cache.Knowledge, func() ([]*store.CodePattern, error) {
		return t.store.ListCodePatterns(ctx, projectID)
	})
	if err != nil {
		return errResult(err)
	}
	return mcp.JSONResult(map[string]any{"patterns": patterns})
}

// --- list_learnings ---

type ListLearnings struct{ store *store.Store }

func NewListLearnings(s *store.Store) *ListLearnings { return &ListLearnings{store: s} }

func (t *ListLearnings) Name() string        { return "list_learnings" }
func (t *ListLearnings) Description() string { return "List the most recent learnings." }
func (t *ListLearnings) InputSchema() json.RawMessage {
	return json.RawMessage(`{"type":"object","properties":{"limit":{"type":"integer"}}}`)
}

func (t *ListLearnings) Execute(ctx context.Context, params json.RawMessage) (*mcp.ToolsCallResult, error) {
	var p struct {
		Limit int `json:"limit"`
	}
	if err := json.Unmarshal(params, &p); err != nil {
		return invalidParams(err)
	}
	if p.Limit <= 0 {
		p.Limit = 20
	}
	learnings, err := t.store.ListLearnings(ctx, p.Limit)
	if err != nil {
		return errResult(err)
	}
	return mcp.JSONResult(map[string]any{"learnings": learnings})
}

// --- render_template ---

type RenderTemplate struct{ store *store.Store }

func NewRenderTemplate(s *store.Store) *RenderTemplate { return &RenderTemplate{store: s} }

func (t *RenderTemplate) Name() string { return "render_template" }
func (t *RenderTemplate) Description() string {
	return "Render a named project template's content against caller-supplied parameters using Go templating."
}
func (t *RenderTemplate) InputSchema() json.RawMessage {
	return json.RawMessage(`{
  "type": "object",
  "properties": {
    "project_id": {"type": "string"},
    "name": {"type": "string"},
    "params": {"type": "object"}
  },
  "required": ["name"]
}`)
}

func (t *RenderTemplate) Execute(ctx context.Context, params json.RawMessage) (*mcp.ToolsCallResult, error) {
	var p struct {
		ProjectID string         `json:"project_id"`
		Name      string         `json:"name"`
		Params    map[string]any `json:"params"`
	}
	if err := json.Unmarshal(params, &p); err != nil {
		return invalidParams(err)
	}
	projectID, err := resolveProjectID(ctx, t.store, p.ProjectID)
	if err != nil {
		return errResult(err)
	}
	tmpl, err := t.store.GetTemplate(ctx, projectID, p.Name)
	if err != nil {
		return errResult(err)
	}
	parsed, err := template.New(tmpl.Name).Parse(tmpl.Content)
	if err != nil {
		return errResult(fmt.Errorf("%w: parsing template %q: %v", store.ErrValidation, p.Name, err))
	}
	var b strings.Builder
	if err := parsed.Execute(&b, p.Params); err != nil {
		return errResult(fmt.Errorf("%w: rendering template %q: %v", store.ErrValidation, p.Name, err))
	}
	return mcp.JSONResult(map[string]any{"rendered": b.String()})
}

// --- get_relevant_knowledge ---

type GetRelevantKnowledge struct{ store *store.Store }

func NewGetRelevantKnowledge(s *store.Store) *GetRelevantKnowledge {
	return &GetRelevantKnowledge{store: s}
}

func (t *GetRelevantKnowledge) Name() string { return "get_relevant_knowledge" }
func (t *GetRelevantKnowledge) Description() string {
	return "Aggregate tech stack, guidelines, code patterns, and similar past learnings for a piece of context text."
}
func (t *GetRelevantKnowledge) InputSchema() json.RawMessage {
	return json.RawMessage(`{
  "type": "object",
  "properties": {"project_id": {"type": "string"}, "context": {"type": "string"}},
  "required": ["context"]
}`)
}

func (t *GetRelevantKnowledge) Execute(ctx context.Context, params json.RawMessage) (*mcp.ToolsCallResult, error) {
	var p struct {
		ProjectID string `json:"project_id"`
		Context   string `json:"context"`
	}
	if err := json.Unmarshal(params, &p); err != nil {
		return invalidParams(err)
	}
	projectID, err := resolveProjectID(ctx, t.store, p.ProjectID)
	if err != nil {
		return errResult(err)
	}
	stack, err := t.store.ListTechStack(ctx, projectID)
	if err != nil {
		return errResult(err)
	}
	guidelines, err := t.store.ListGuidelines(ctx, projectID)
	if err != nil {
		return errResult(err)
	}
	patterns, err := t.store.ListCodePatterns(ctx, projectID)
	if err != nil {
		return errResult(err)
	}
	similar, err := t.store.SimilarLearnings(ctx, store.SimilarLearningsFilter{Context: p.Context}, 5)
	if err != nil {
		return errResult(err)
	}
	return mcp.JSONResult(map[string]any{
		"tech_stack":        stack,
		"guidelines":        guidelines,
		"code_patterns":     patterns,
		"similar_learnings": similar,
	})
}

// --- add_feedback ---

type AddFeedback struct {
	store *store.Store
	cache *cache.Cache
}

func NewAddFeedback(s *store.Store, c *cache.Cache) *AddFeedback {
	return &AddFeedback{store: s, cache: c}
}

func (t *AddFeedback) Name() string { return "add_feedback" }
func (t *AddFeedback) Description() string {
	return "Record a learning (success/failure/improvement) and bump the matching pattern's frequency aggregate."
}
func (t *AddFeedback) InputSchema() json.RawMessage {
	return json.RawMessage(`{
  "type": "object",
  "properties": {
    "task_id": {"type": "string"},
    "context": {"type": "string"},
    "action": {"type": "string"},
    "result": {"type": "string"},
    "lesson": {"type": "string"},
    "type": {"type": "string", "enum": ["success", "failure", "improvement"]},
    "pattern": {"type": "string"},
    "tags": {"type": "array", "items": {"type": "string"}}
  },
  "required": ["result", "type", "pattern"]
}`)
}

func (t *AddFeedback) Execute(ctx context.Context, params json.RawMessage) (*mcp.ToolsCallResult, error) {
	var p struct {
		TaskID  string   `json:"task_id"`
		Context string   `json:"context"`
		Action  string   `json:"action"`
		Result  string   `json:"result"`
		Lesson  string   `json:"lesson"`
		Type    string   `json:"type"`
		Pattern string   `json:"pattern"`
		Tags    []string `json:"tags"`
	}
	if err := json.Unmarshal(params, &p); err != nil {
		return invalidParams(err)
	}
	rec, err := t.store.AddFeedback(ctx, &store.Learning{
		TaskID: p.TaskID, Context: p.Context, Action: p.Action,
		Result: p.Result, Lesson: p.Lesson, Type: p.Type,
		Pattern: p.Pattern, Tags: p.Tags,
	})
	if err != nil {
		return errResult(err)
	}
	if err := t.store.Emit(ctx, store.EventFeedbackReceived, map[string]any{
		"learning_id": rec.ID, "pattern": rec.Pattern, "type": rec.Type,
	}); err != nil {
		return errResult(err)
	}
	t.cache.InvalidatePattern("learnings:*")
	return mcp.JSONResult(rec)
}

// --- get_similar_learnings ---

type GetSimilarLearnings struct{ store *store.Store }

func NewGetSimilarLearnings(s *store.Store) *GetSimilarLearnings {
	return &GetSimilarLearnings{store: s}
}

func (t *GetSimilarLearnings) Name() string { return "get_similar_learnings" }
func (t *GetSimilarLearnings) Description() string {
	return "Find learnings matching a context substring, optionally narrowed by task, type, or pattern."
}
func (t *GetSimilarLearnings) InputSchema() json.RawMessage {
	return json.RawMessage(`{
  "type": "object",
  "properties": {
    "context": {"type": "string"},
    "task_id": {"type": "string"},
    "type": {"type": "string"},
    "pattern": {"type": "string"},
    "limit": {"type": "integer"}
  }
}`)
}

func (t *GetSimilarLearnings) Execute(ctx context.Context, params json.RawMessage) (*mcp.ToolsCallResult, error) {
	var p struct {
		Context string `json:"context"`
		TaskID  string `json:"task_id"`
		Type    string `json:"type"`
		Pattern string `json:"pattern"`
		Limit   int    `json:"limit"`
	}
	if err := json.Unmarshal(params, &p); err != nil {
		return invalidParams(err)
	}
	if p.Limit <= 0 {
		p.Limit = 10
	}
	learnings, err := t.store.SimilarLearnings(ctx, store.SimilarLearningsFilter{
		Context: p.Context, TaskID: p.TaskID, Type: p.Type, Pattern: p.Pattern,
	}, p.Limit)
	if err != nil {
		return errResult(err)
	}
	return mcp.JSONResult(map[string]any{"learnings": learnings})
}

// --- get_top_patterns ---

type GetTopPatterns struct{ store *store.Store }

func NewGetTopPatterns(s *store.Store) *GetTopPatterns { return &GetTopPatterns{store: s} }

func (t *GetTopPatterns) Name() string        { return "get_top_patterns" }
func (t *GetTopPatterns) Description() string { return "Rank patterns by observed frequency." }
func (t *GetTopPatterns) InputSchema() json.RawMessage {
	return json.RawMessage(`{"type":"object","properties":{"limit":{"type":"integer"}}}`)
}

func (t *GetTopPatterns) Execute(ctx context.Context, params json.RawMessage) (*mcp.ToolsCallResult, error) {
	var p struct {
		Limit int `json:"limit"`
	}
	if err := json.Unmarshal(params, &p); err != nil {
		return invalidParams(err)
	}
	if p.Limit <= 0 {
		p.Limit = 10
	}
	patterns, err := t.store.TopPatterns(ctx, p.Limit)
	if err != nil {
		return errResult(err)
	}
	return mcp.JSONResult(map[string]any{"patterns": patterns})
}

// --- get_trending_patterns ---

type GetTrendingPatterns struct{ store *store.Store }

func NewGetTrendingPatterns(s *store.Store) *GetTrendingPatterns {
	return &GetTrendingPatterns{store: s}
}

func (t *GetTrendingPatterns) Name() string { return "get_trending_patterns" }
func (t *GetTrendingPatterns) Description() string {
	return "Rank patterns by how often they've been observed within a recent window."
}
func (t *GetTrendingPatterns) InputSchema() json.RawMessage {
	return json.RawMessage(`{"type":"object","properties":{"days":{"type":"integer"},"limit":{"type":"integer"}}}`)
}

func (t *GetTrendingPatterns) Execute(ctx context.Context, params json.RawMessage) (*mcp.ToolsCallResult, error) {
	var p struct {
		Days  int `json:"days"`
		Limit int `json:"limit"`
	}
	if err := json.Unmarshal(params, &p); err != nil {
		return invalidParams(err)
	}
	if p.Days <= 0 {
		p.Days = 7
	}
	if p.Limit <= 0 {
		p.Limit = 10
	}
	trending, err := learning.TrendingPatterns(ctx, t.store, p.Days, p.Limit)
	if err != nil {
		return errResult(err)
	}
	return mcp.JSONResult(map[string]any{"patterns": trending})
}

// --- get_pattern_stats ---

type GetPatternStats struct{ store *store.Store }

func NewGetPatternStats(s *store.Store) *GetPatternStats { return &GetPatternStats{store: s} }

func (t *GetPatternStats) Name() string        { return "get_pattern_stats" }
func (t *GetPatternStats) Description() string { return "Fetch a single pattern's frequency aggregate." }
func (t *GetPatternStats) InputSchema() json.RawMessage {
	return json.RawMessage(`{"type":"object","properties":{"pattern":{"type":"string"}},"required":["pattern"]}`)
}

func (t *GetPatternStats) Execute(ctx context.Context, params json.RawMessage) (*mcp.ToolsCallResult, error) {
	var p struct {
		Pattern string `json:"pattern"`
	}
	if err := json.Unmarshal(params, &p); err != nil {
		return invalidParams(err)
	}
	stats, err := t.store.PatternByName(ctx, p.Pattern)
	if err != nil {
		return errResult(err)
	}
	return mcp.JSONResult(stats)
}

// --- detect_failure_patterns ---

type DetectFailurePatterns struct{ store *store.Store }

func NewDetectFailurePatterns(s *store.Store) *DetectFailurePatterns {
	return &DetectFailurePatterns{store: s}
}

func (t *DetectFailurePatterns) Name() string { return "detect_failure_patterns" }
func (t *DetectFailurePatterns) Description() string {
	return "Find patterns whose observed failure rate meets a threshold, given a minimum observation count."
}
func (t *DetectFailurePatterns) InputSchema() json.RawMessage {
	return json.RawMessage(`{
  "type": "object",
  "properties": {"min_occurrences": {"type": "integer"}, "failure_threshold": {"type": "number"}}
}`)
}

func (t *DetectFailurePatterns) Execute(ctx context.Context, params json.RawMessage) (*mcp.ToolsCallResult, error) {
	var p struct {
		MinOccurrences   int     `json:"min_occurrences"`
		FailureThreshold float64 `json:"failure_threshold"`
	}
	if err := json.Unmarshal(params, &p); err != nil {
		return invalidParams(err)
	}
	if p.MinOccurrences <= 0 {
		p.MinOccurrences = 3
	}
	if p.FailureThreshold <= 0 {
		p.FailureThreshold = 0.5
	}
	patterns, err := learning.DetectFailurePatterns(ctx, t.store, p.MinOccurrences, p.FailureThreshold)
	if err != nil {
		return errResult(err)
	}
	return mcp.JSONResult(map[string]any{"patterns": patterns})
}

// --- check_pattern_risk ---

type CheckPatternRisk struct{ store *store.Store }

func NewCheckPatternRisk(s *store.Store) *CheckPatternRisk { return &CheckPatternRisk{store: s} }

func (t *CheckPatternRisk) Name() string { return "check_pattern_risk" }
func (t *CheckPatternRisk) Description() string {
	return "Classify a single pattern's failure risk against the low/medium/high thresholds."
}
func (t *CheckPatternRisk) InputSchema() json.RawMessage {
	return json.RawMessage(`{"type":"object","properties":{"pattern":{"type":"string"}},"required":["pattern"]}`)
}

func (t *CheckPatternRisk) Execute(ctx context.Context, params json.RawMessage) (*mcp.ToolsCallResult, error) {
	var p struct {
		Pattern string `json:"pattern"`
	}
	if err := json.Unmarshal(params, &p); err != nil {
		return invalidParams(err)
	}
	risk, err := learning.CheckPatternRisk(ctx, t.store, p.Pattern)
	if err != nil {
		return errResult(err)
	}
	return mcp.JSONResult(risk)
}
