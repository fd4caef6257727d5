// Package suggestions implements the suggestions tool group:
// suggest_agents_for_task, suggest_tools_for_task, sync_claude_code_agents,
// read_claude_code_agents, update_agent_prompt_templates.
package suggestions

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/taskforge-mcp/taskforge-mcp/internal/agentfile"
	"github.com/taskforge-mcp/taskforge-mcp/internal/mcp"
	"github.com/taskforge-mcp/taskforge-mcp/internal/store"
	"github.com/taskforge-mcp/taskforge-mcp/internal/suggest"
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

// subAgentCandidates converts project sub-agent rows into suggest
// candidates, appended to suggest.DefaultAgents (registry.go's documented
// extension point).
func subAgentCandidates(agents []*store.SubAgent) []suggest.Candidate {
	out := make([]suggest.Candidate, 0, len(agents))
	for _, a := range agents {
		if !a.Enabled {
			continue
		}
		out = append(out, suggest.Candidate{Name: a.Name, Type: "agent", Keywords: a.Triggers})
	}
	return out
}

func mcpToolCandidates(tools []*store.MCPTool) []suggest.Candidate {
	out := make([]suggest.Candidate, 0, len(tools))
	for _, t := range tools {
		if !t.Enabled {
			continue
		}
		out = append(out, suggest.Candidate{Name: t.Name, Type: t.ToolType, Keywords: t.WhenToUse})
	}
	return out
}

// --- suggest_agents_for_task ---

type SuggestAgentsForTask struct{ store *store.Store }

func NewSuggestAgentsForTask(s *store.Store) *SuggestAgentsForTask {
	return &SuggestAgentsForTask{store: s}
}

func (t *SuggestAgentsForTask) Name() string { return "suggest_agents_for_task" }
func (t *SuggestAgentsForTask) Description() string {
	return "Score the built-in and project-specific agent registries against a task's title/description/category."
}
func (t *SuggestAgentsForTask) InputSchema() json.RawMessage {
	return json.RawMessage(`{
  "type": "object",
  "properties": {"task_id": {"type": "string"}, "project_id": {"type": "string"}},
  "required": ["task_id"]
}`)
}

func (t *SuggestAgentsForTask) Execute(ctx context.Context, params json.RawMessage) (*mcp.ToolsCallResult, error) {
	var p struct {
		TaskID    string `json:"task_id"`
		ProjectID string `json:"project_id"`
	}
	if err := json.Unmarshal(params, &p); err != nil {
		return invalidParams(err)
	}
	task, err := t.store.GetTask(ctx, p.TaskID)
	if err != nil {
		return errResult(err)
	}
	projectID, err := resolveProjectID(ctx, t.store, p.ProjectID)
	if err != nil {
		return errResult(err)
	}
	agents, err := t.store.ListSubAgents(ctx, projectID)
	if err != nil {
		return errResult(err)
	}
	registry := append(append([]suggest.Candidate{}, suggest.DefaultAgents...), subAgentCandidates(agents)...)
	suggestions := suggest.Top(registry, task.Title+" "+task.Description, task.Category, 3)
	return mcp.JSONResult(map[string]any{"suggestions": suggestions})
}

// --- suggest_tools_for_task ---

type SuggestToolsForTask struct{ store *store.Store }

func NewSuggestToolsForTask(s *store.Store) *SuggestToolsForTask {
	return &SuggestToolsForTask{store: s}
}

func (t *SuggestToolsForTask) Name() string { return "suggest_tools_for_task" }
func (t *SuggestToolsForTask) Description() string {
	return "Score the built-in and project-specific tool registries against a task's title/description/category."
}
func (t *SuggestToolsForTask) InputSchema() json.RawMessage {
	return json.RawMessage(`{
  "type": "object",
  "properties": {"task_id": {"type": "string"}, "project_id": {"type": "string"}},
  "required": ["task_id"]
}`)
}

func (t *SuggestToolsForTask) Execute(ctx context.Context, params json.RawMessage) (*mcp.ToolsCallResult, error) {
	var p struct {
		TaskID    string `json:"task_id"`
		ProjectID string `json:"project_id"`
	}
	if err := json.Unmarshal(params, &p); err != nil {
		return invalidParams(err)
	}
	task, err := t.store.GetTask(ctx, p.TaskID)
	if err != nil {
		return errResult(err)
	}
	projectID, err := resolveProjectID(ctx, t.store, p.ProjectID)
	if err != nil {
		return errResult(err)
	}
	tools, err := t.store.ListMCPTools(ctx, projectID)
	if err != nil {
		return errResult(err)
	}
	registry := append(append([]suggest.Candidate{}, suggest.DefaultTools...), mcpToolCandidates(tools)...)
	suggestions := suggest.Top(registry, task.Title+" "+task.Description, task.Category, 3)
	return mcp.JSONResult(map[string]any{"suggestions": suggestions})
}

// defaultAgentsDir is where sync_claude_code_agents/read_claude_code_agents
// look for agent Markdown files when the caller doesn't name a directory.
const defaultAgentsDir = ".claude/agents"

// --- sync_claude_code_agents ---

type SyncClaudeCodeAgents struct{ store *store.Store }

func NewSyncClaudeCodeAgents(s *store.Store) *SyncClaudeCodeAgents {
	return &SyncClaudeCodeAgents{store: s}
}

func (t *SyncClaudeCodeAgents) Name() string { return "sync_claude_code_agents" }
func (t *SyncClaudeCodeAgents) Description() string {
	return "Write every enabled project sub-agent out as a Claude Code agent Markdown file (YAML front matter + custom prompt body)."
}
func (t *SyncClaudeCodeAgents) InputSchema() json.RawMessage {
	return json.RawMessage(`{
  "type": "object",
  "properties": {"project_id": {"type": "string"}, "dir": {"type": "string"}}
}`)
}

func (t *SyncClaudeCodeAgents) Execute(ctx context.Context, params json.RawMessage) (*mcp.ToolsCallResult, error) {
	var p struct {
		ProjectID string `json:"project_id"`
		Dir       string `json:"dir"`
	}
	if err := json.Unmarshal(params, &p); err != nil {
		return invalidParams(err)
	}
	dir := p.Dir
	if dir == "" {
		dir = defaultAgentsDir
	}
	projectID, err := resolveProjectID(ctx, t.store, p.ProjectID)
	if err != nil {
		return errResult(err)
	}
	agents, err := t.store.ListSubAgents(ctx, projectID)
	if err != nil {
		return errResult(err)
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return errResult(fmt.Errorf("creating agents directory: %w", err))
	}

	written := make([]string, 0, len(agents))
	for _, a := range agents {
		if !a.Enabled {
			continue
		}
		extra := map[string]any{}
		if yc, ok := a.Configuration["yaml_config"].(map[string]any); ok {
			extra = yc
		}
		af := &agentfile.Agent{
			Name:        a.Name,
			Description: descriptionFromConfig(a.Configuration),
			Model:       modelFromConfig(a.Configuration),
			Tools:       a.Triggers,
			Extra:       extra,
			Prompt:      a.CustomPrompt,
		}
		body, err := agentfile.Render(af)
		if err != nil {
			return errResult(err)
		}
		path := filepath.Join(dir, a.Name+".md")
		if err := os.WriteFile(path, body, 0o644); err != nil {
			return errResult(fmt.Errorf("writing agent file %s: %w", path, err))
		}
		written = append(written, path)
	}

	return mcp.JSONResult(map[string]any{"written": written})
}

func descriptionFromConfig(cfg map[string]any) string {
	if v, ok := cfg["description"].(string); ok {
		return v
	}
	return ""
}

func modelFromConfig(cfg map[string]any) string {
	if v, ok := cfg["model"].(string); ok {
		return v
	}
	return ""
}

// --- read_claude_code_agents ---

type ReadClaudeCodeAgents struct{ store *store.Store }

func NewReadClaudeCodeAgents(s *store.Store) *ReadClaudeCodeAgents {
	return &ReadClaudeCodeAgents{store: s}
}

func (t *ReadClaudeCodeAgents) Name() string { return "read_claude_code_agents" }
func (t *ReadClaudeCodeAgents) Description() string {
	return "Read every *.md agent file in a directory and upsert it as a project sub-agent, preserving unrecognized front-matter keys under configuration.yaml_config."
}
func (t *ReadClaudeCodeAgents) InputSchema() json.RawMessage {
	return json.RawMessage(`{
  "type": "object",
  "properties": {"project_id": {"type": "string"}, "dir": {"type": "string"}}
}`)
}

func (t *ReadClaudeCodeAgents) Execute(ctx context.Context, params json.RawMessage) (*mcp.ToolsCallResult, error) {
	var p struct {
		ProjectID string `json:"project_id"`
		Dir       string `json:"dir"`
	}
	if err := json.Unmarshal(params, &p); err != nil {
		return invalidParams(err)
	}
	dir := p.Dir
	if dir == "" {
		dir = defaultAgentsDir
	}
	projectID, err := resolveProjectID(ctx, t.store, p.ProjectID)
	if err != nil {
		return errResult(err)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return mcp.JSONResult(map[string]any{"agents": []any{}})
		}
		return errResult(fmt.Errorf("reading agents directory: %w", err))
	}

	var loaded []*store.SubAgent
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".md") {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		data, err := os.ReadFile(path)
		if err != nil {
			return errResult(fmt.Errorf("reading agent file %s: %w", path, err))
		}
		af, err := agentfile.Parse(data)
		if err != nil {
			return errResult(fmt.Errorf("%s: %w", path, err))
		}
		name := af.Name
		if name == "" {
			name = strings.TrimSuffix(entry.Name(), ".md")
		}
		config := map[string]any{}
		if af.Description != "" {
			config["description"] = af.Description
		}
		if af.Model != "" {
			config["model"] = af.Model
		}
		if len(af.Extra) > 0 {
			config["yaml_config"] = af.Extra
		}
		a := &store.SubAgent{
			ProjectID: projectID, Name: name, AgentType: "claude_code_agent",
			Enabled: true, Triggers: af.Tools, CustomPrompt: af.Prompt,
			Configuration: config,
		}
		saved, err := t.store.AddSubAgent(ctx, a)
		if err != nil {
			return errResult(err)
		}
		loaded = append(loaded, saved)
	}

	return mcp.JSONResult(map[string]any{"agents": loaded})
}

// --- update_agent_prompt_templates ---

type UpdateAgentPromptTemplates struct{ store *store.Store }

func NewUpdateAgentPromptTemplates(s *store.Store) *UpdateAgentPromptTemplates {
	return &UpdateAgentPromptTemplates{store: s}
}

func (t *UpdateAgentPromptTemplates) Name() string { return "update_agent_prompt_templates" }
func (t *UpdateAgentPromptTemplates) Description() string {
	return "Overwrite a sub-agent's custom prompt body."
}
func (t *UpdateAgentPromptTemplates) InputSchema() json.RawMessage {
	return json.RawMessage(`{
  "type": "object",
  "properties": {
    "project_id": {"type": "string"},
    "name": {"type": "string"},
    "agent_type": {"type": "string"},
    "prompt": {"type": "string"}
  },
  "required": ["name", "agent_type", "prompt"]
}`)
}

func (t *UpdateAgentPromptTemplates) Execute(ctx context.Context, params json.RawMessage) (*mcp.ToolsCallResult, error) {
	var p struct {
		ProjectID string `json:"project_id"`
		Name      string `json:"name"`
		AgentType string `json:"agent_type"`
		Prompt    string `json:"prompt"`
	}
	if err := json.Unmarshal(params, &p); err != nil {
		return invalidParams(err)
	}
	projectID, err := resolveProjectID(ctx, t.store, p.ProjectID)
	if err != nil {
		return errResult(err)
	}
	agent, err := t.store.UpdateSubAgentPrompt(ctx, projectID, p.Name, p.AgentType, p.Prompt)
	if err != nil {
		return errResult(err)
	}
	return mcp.JSONResult(agent)
}
