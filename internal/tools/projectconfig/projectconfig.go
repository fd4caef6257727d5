// Package projectconfig implements the configuration tool group:
// get_project_info, get_project_configuration,
// initialize_project_configuration, add_tech_stack, update_tech_stack,
// remove_tech_stack, add_sub_agent, update_sub_agent, add_mcp_tool,
// update_mcp_tool, add_guideline, add_template, add_code_pattern.
package projectconfig

import (
	"context"
	"encoding/json"
	"fmt"

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

// --- get_project_info ---

type GetProjectInfo struct{ store *store.Store }

func NewGetProjectInfo(s *store.Store) *GetProjectInfo { return &GetProjectInfo{store: s} }

func (t *GetProjectInfo) Name() string        { return "get_project_info" }
func (t *GetProjectInfo) Description() string { return "Fetch a project's identity (or the default project)." }
func (t *GetProjectInfo) InputSchema() json.RawMessage {
	return json.RawMessage(`{"type":"object","properties":{"project_id":{"type":"string"}}}`)
}

func (t *GetProjectInfo) Execute(ctx context.Context, params json.RawMessage) (*mcp.ToolsCallResult, error) {
	var p struct {
		ProjectID string `json:"project_id"`
	}
	if err := json.Unmarshal(params, &p); err != nil {
		return invalidParams(err)
	}
	var (
		project *store.Project
		err     error
	)
	if p.ProjectID == "" {
		project, err = t.store.DefaultProject(ctx)
	} else {
		project, err = t.store.GetProject(ctx, p.ProjectID)
	}
	if err != nil {
		return errResult(err)
	}
	return mcp.JSONResult(project)
}

// --- get_project_configuration ---

type GetProjectConfiguration struct{ store *store.Store }

func NewGetProjectConfiguration(s *store.Store) *GetProjectConfiguration {
	return &GetProjectConfiguration{store: s}
}

func (t *GetProjectConfiguration) Name() string { return "get_project_configuration" }
func (t *GetProjectConfiguration) Description() string {
	return "Aggregate a project's tech stack, guidelines, code patterns, sub-agents, MCP tools, and templates."
}
func (t *GetProjectConfiguration) InputSchema() json.RawMessage {
	return json.RawMessage(`{"type":"object","properties":{"project_id":{"type":"string"}}}`)
}

func (t *GetProjectConfiguration) Execute(ctx context.Context, params json.RawMessage) (*mcp.ToolsCallResult, error) {
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
	agents, err := t.store.ListSubAgents(ctx, projectID)
	if err != nil {
		return errResult(err)
	}
	tools, err := t.store.ListMCPTools(ctx, projectID)
	if err != nil {
		return errResult(err)
	}
	templates, err := t.store.ListTemplates(ctx, projectID)
	if err != nil {
		return errResult(err)
	}
	return mcp.JSONResult(map[string]any{
		"project_id": projectID, "tech_stack": stack, "guidelines": guidelines,
		"code_patterns": patterns, "sub_agents": agents, "mcp_tools": tools, "templates": templates,
	})
}

// --- initialize_project_configuration ---

type InitializeProjectConfiguration struct{ store *store.Store }

func NewInitializeProjectConfiguration(s *store.Store) *InitializeProjectConfiguration {
	return &InitializeProjectConfiguration{store: s}
}

func (t *InitializeProjectConfiguration) Name() string {
	return "initialize_project_configuration"
}
func (t *InitializeProjectConfiguration) Description() string {
	return "Create a new project to hold tech stack, guidelines, patterns, sub-agents, and MCP tool configuration."
}
func (t *InitializeProjectConfiguration) InputSchema() json.RawMessage {
	return json.RawMessage(`{
  "type": "object",
  "properties": {"name": {"type": "string"}, "description": {"type": "string"}},
  "required": ["name"]
}`)
}

func (t *InitializeProjectConfiguration) Execute(ctx context.Context, params json.RawMessage) (*mcp.ToolsCallResult, error) {
	var p struct {
		Name        string `json:"name"`
		Description string `json:"description"`
	}
	if err := json.Unmarshal(params, &p); err != nil {
		return invalidParams(err)
	}
	project, err := t.store.CreateProject(ctx, p.Name, p.Description)
	if err != nil {
		return errResult(err)
	}
	return mcp.JSONResult(project)
}

// --- add_tech_stack ---

type AddTechStack struct{ store *store.Store }

func NewAddTechStack(s *store.Store) *AddTechStack { return &AddTechStack{store: s} }

func (t *AddTechStack) Name() string        { return "add_tech_stack" }
func (t *AddTechStack) Description() string { return "Add a tech-stack entry to a project." }
func (t *AddTechStack) InputSchema() json.RawMessage {
	return json.RawMessage(`{
  "type": "object",
  "properties": {
    "project_id": {"type": "string"}, "category": {"type": "string"},
    "name": {"type": "string"}, "version": {"type": "string"}, "notes": {"type": "string"}
  },
  "required": ["category", "name"]
}`)
}

func (t *AddTechStack) Execute(ctx context.Context, params json.RawMessage) (*mcp.ToolsCallResult, error) {
	var p struct {
		ProjectID string `json:"project_id"`
		Category  string `json:"category"`
		Name      string `json:"name"`
		Version   string `json:"version"`
		Notes     string `json:"notes"`
	}
	if err := json.Unmarshal(params, &p); err != nil {
		return invalidParams(err)
	}
	projectID, err := resolveProjectID(ctx, t.store, p.ProjectID)
	if err != nil {
		return errResult(err)
	}
	ts, err := t.store.AddTechStack(ctx, &store.TechStack{
		ProjectID: projectID, Category: p.Category, Name: p.Name, Version: p.Version, Notes: p.Notes,
	})
	if err != nil {
		return errResult(err)
	}
	return mcp.JSONResult(ts)
}

// --- update_tech_stack ---

type UpdateTechStack struct{ store *store.Store }

func NewUpdateTechStack(s *store.Store) *UpdateTechStack { return &UpdateTechStack{store: s} }

func (t *UpdateTechStack) Name() string        { return "update_tech_stack" }
func (t *UpdateTechStack) Description() string { return "Partially update a tech-stack entry." }
func (t *UpdateTechStack) InputSchema() json.RawMessage {
	return json.RawMessage(`{
  "type": "object",
  "properties": {
    "id": {"type": "string"}, "category": {"type": "string"},
    "name": {"type": "string"}, "version": {"type": "string"}, "notes": {"type": "string"}
  },
  "required": ["id"]
}`)
}

func (t *UpdateTechStack) Execute(ctx context.Context, params json.RawMessage) (*mcp.ToolsCallResult, error) {
	var p struct {
		ID       string  `json:"id"`
		Category *string `json:"category"`
		Name     *string `json:"name"`
		Version  *string `json:"version"`
		Notes    *string `json:"notes"`
	}
	if err := json.Unmarshal(params, &p); err != nil {
		return invalidParams(err)
	}
	ts, err := t.store.UpdateTechStack(ctx, p.ID, p.Category, p.Name, p.Version, p.Notes)
	if err != nil {
		return errResult(err)
	}
	return mcp.JSONResult(ts)
}

// --- remove_tech_stack ---

type RemoveTechStack struct{ store *store.Store }

func NewRemoveTechStack(s *store.Store) *RemoveTechStack { return &RemoveTechStack{store: s} }

func (t *RemoveTechStack) Name() string        { return "remove_tech_stack" }
func (t *RemoveTechStack) Description() string { return "Remove a tech-stack entry." }
func (t *RemoveTechStack) InputSchema() json.RawMessage {
	return json.RawMessage(`{"type":"object","properties":{"id":{"type":"string"}},"required":["id"]}`)
}

func (t *RemoveTechStack) Execute(ctx context.Context, params json.RawMessage) (*mcp.ToolsCallResult, error) {
	var p struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(params, &p); err != nil {
		return invalidParams(err)
	}
	if err := t.store.RemoveTechStack(ctx, p.ID); err != nil {
		return errResult(err)
	}
	return mcp.JSONResult(map[string]any{"removed": p.ID})
}

// --- add_sub_agent ---

type AddSubAgent struct{ store *store.Store }

func NewAddSubAgent(s *store.Store) *AddSubAgent { return &AddSubAgent{store: s} }

func (t *AddSubAgent) Name() string { return "add_sub_agent" }
func (t *AddSubAgent) Description() string {
	return "Create or replace a project sub-agent configuration."
}
func (t *AddSubAgent) InputSchema() json.RawMessage {
	return json.RawMessage(`{
  "type": "object",
  "properties": {
    "project_id": {"type": "string"}, "name": {"type": "string"}, "agent_type": {"type": "string"},
    "enabled": {"type": "boolean"}, "triggers": {"type": "array", "items": {"type": "string"}},
    "custom_prompt": {"type": "string"}, "configuration": {"type": "object"}, "priority": {"type": "integer"}
  },
  "required": ["name", "agent_type"]
}`)
}

func (t *AddSubAgent) Execute(ctx context.Context, params json.RawMessage) (*mcp.ToolsCallResult, error) {
	var p struct {
		ProjectID     string         `json:"project_id"`
		Name          string         `json:"name"`
		AgentType     string         `json:"agent_type"`
		Enabled       bool           `json:"enabled"`
		Triggers      []string       `json:"triggers"`
		CustomPrompt  string         `json:"custom_prompt"`
		Configuration map[string]any `json:"configuration"`
		Priority      int            `json:"priority"`
	}
	if err := json.Unmarshal(params, &p); err != nil {
		return invalidParams(err)
	}
	projectID, err := resolveProjectID(ctx, t.store, p.ProjectID)
	if err != nil {
		return errResult(err)
	}
	agent, err := t.store.AddSubAgent(ctx, &store.SubAgent{
		ProjectID: projectID, Name: p.Name, AgentType: p.AgentType, Enabled: p.Enabled,
		Triggers: p.Triggers, CustomPrompt: p.CustomPrompt, Configuration: p.Configuration, Priority: p.Priority,
	})
	if err != nil {
		return errResult(err)
	}
	return mcp.JSONResult(agent)
}

// --- update_sub_agent ---

type UpdateSubAgent struct{ store *store.Store }

func NewUpdateSubAgent(s *store.Store) *UpdateSubAgent { return &UpdateSubAgent{store: s} }

func (t *UpdateSubAgent) Name() string { return "update_sub_agent" }
func (t *UpdateSubAgent) Description() string {
	return "Toggle a sub-agent's enabled flag or adjust its priority."
}
func (t *UpdateSubAgent) InputSchema() json.RawMessage {
	return json.RawMessage(`{
  "type": "object",
  "properties": {
    "project_id": {"type": "string"}, "name": {"type": "string"}, "agent_type": {"type": "string"},
    "enabled": {"type": "boolean"}, "priority": {"type": "integer"}
  },
  "required": ["name", "agent_type"]
}`)
}

func (t *UpdateSubAgent) Execute(ctx context.Context, params json.RawMessage) (*mcp.ToolsCallResult, error) {
	var p struct {
		ProjectID string `json:"project_id"`
		Name      string `json:"name"`
		AgentType string `json:"agent_type"`
		Enabled   *bool  `json:"enabled"`
		Priority  *int   `json:"priority"`
	}
	if err := json.Unmarshal(params, &p); err != nil {
		return invalidParams(err)
	}
	projectID, err := resolveProjectID(ctx, t.store, p.ProjectID)
	if err != nil {
		return errResult(err)
	}
	agent, err := t.store.UpdateSubAgent(ctx, projectID, p.Name, p.AgentType, p.Enabled, p.Priority)
	if err != nil {
		return errResult(err)
	}
	return mcp.JSONResult(agent)
}

// --- add_mcp_tool ---

type AddMCPTool struct{ store *store.Store }

func NewAddMCPTool(s *store.Store) *AddMCPTool { return &AddMCPTool{store: s} }

func (t *AddMCPTool) Name() string        { return "add_mcp_tool" }
func (t *AddMCPTool) Description() string { return "Create or replace a project MCP tool configuration." }
func (t *AddMCPTool) InputSchema() json.RawMessage {
	return json.RawMessage(`{
  "type": "object",
  "properties": {
    "project_id": {"type": "string"}, "name": {"type": "string"}, "tool_type": {"type": "string"},
    "command": {"type": "string"}, "enabled": {"type": "boolean"},
    "when_to_use": {"type": "array", "items": {"type": "string"}}, "priority": {"type": "integer"}
  },
  "required": ["name", "tool_type"]
}`)
}

func (t *AddMCPTool) Execute(ctx context.Context, params json.RawMessage) (*mcp.ToolsCallResult, error) {
	var p struct {
		ProjectID  string   `json:"project_id"`
		Name       string   `json:"name"`
		ToolType   string   `json:"tool_type"`
		Command    string   `json:"command"`
		Enabled    bool     `json:"enabled"`
		WhenToUse  []string `json:"when_to_use"`
		Priority   int      `json:"priority"`
	}
	if err := json.Unmarshal(params, &p); err != nil {
		return invalidParams(err)
	}
	projectID, err := resolveProjectID(ctx, t.store, p.ProjectID)
	if err != nil {
		return errResult(err)
	}
	tool, err := t.store.AddMCPTool(ctx, &store.MCPTool{
		ProjectID: projectID, Name: p.Name, ToolType: p.ToolType, Command: p.Command,
		Enabled: p.Enabled, WhenToUse: p.WhenToUse, Priority: p.Priority,
	})
	if err != nil {
		return errResult(err)
	}
	return mcp.JSONResult(tool)
}

// --- update_mcp_tool ---

type UpdateMCPTool struct{ store *store.Store }

func NewUpdateMCPTool(s *store.Store) *UpdateMCPTool { return &UpdateMCPTool{store: s} }

func (t *UpdateMCPTool) Name() string { return "update_mcp_tool" }
func (t *UpdateMCPTool) Description() string {
	return "Toggle an MCP tool's enabled flag, adjust its priority, or record a usage outcome."
}
func (t *UpdateMCPTool) InputSchema() json.RawMessage {
	return json.RawMessage(`{
  "type": "object",
  "properties": {
    "project_id": {"type": "string"}, "name": {"type": "string"},
    "enabled": {"type": "boolean"}, "priority": {"type": "integer"},
    "record_usage": {"type": "boolean"}, "success": {"type": "boolean"}
  },
  "required": ["name"]
}`)
}

func (t *UpdateMCPTool) Execute(ctx context.Context, params json.RawMessage) (*mcp.ToolsCallResult, error) {
	var p struct {
		ProjectID   string `json:"project_id"`
		Name        string `json:"name"`
		Enabled     *bool  `json:"enabled"`
		Priority    *int   `json:"priority"`
		RecordUsage bool   `json:"record_usage"`
		Success     bool   `json:"success"`
	}
	if err := json.Unmarshal(params, &p); err != nil {
		return invalidParams(err)
	}
	projectID, err := resolveProjectID(ctx, t.store, p.ProjectID)
	if err != nil {
		return errResult(err)
	}
	tool, err := t.store.UpdateMCPTool(ctx, projectID, p.Name, p.Enabled, p.Priority, p.RecordUsage, p.Success)
	if err != nil {
		return errResult(err)
	}
	return mcp.JSONResult(tool)
}

// --- add_guideline ---

type AddGuideline struct{ store *store.Store }

func NewAddGuideline(s *store.Store) *AddGuideline { return &AddGuideline{store: s} }

func (t *AddGuideline) Name() string        { return "add_guideline" }
func (t *AddGuideline) Description() string { return "Add a project guideline." }
func (t *AddGuideline) InputSchema() json.RawMessage {
	return json.RawMessage(`{
  "type": "object",
  "properties": {"project_id": {"type": "string"}, "text": {"type": "string"}, "category": {"type": "string"}},
  "required": ["text"]
}`)
}

func (t *AddGuideline) Execute(ctx context.Context, params json.RawMessage) (*mcp.ToolsCallResult, error) {
	var p struct {
		ProjectID string `json:"project_id"`
		Text      string `json:"text"`
		Category  string `json:"category"`
	}
	if err := json.Unmarshal(params, &p); err != nil {
		return invalidParams(err)
	}
	projectID, err := resolveProjectID(ctx, t.store, p.ProjectID)
	if err != nil {
		return errResult(err)
	}
	g, err := t.store.AddGuideline(ctx, &store.Guideline{ProjectID: projectID, Text: p.Text, Category: p.Category})
	if err != nil {
		return errResult(err)
	}
	return mcp.JSONResult(g)
}

// --- add_template ---

type AddTemplate struct{ store *store.Store }

func NewAddTemplate(s *store.Store) *AddTemplate { return &AddTemplate{store: s} }

func (t *AddTemplate) Name() string        { return "add_template" }
func (t *AddTemplate) Description() string { return "Add a project template, rendered later via render_template." }
func (t *AddTemplate) InputSchema() json.RawMessage {
	return json.RawMessage(`{
  "type": "object",
  "properties": {
    "project_id": {"type": "string"}, "name": {"type": "string"},
    "content": {"type": "string"}, "category": {"type": "string"}
  },
  "required": ["name", "content"]
}`)
}

func (t *AddTemplate) Execute(ctx context.Context, params json.RawMessage) (*mcp.ToolsCallResult, error) {
	var p struct {
		ProjectID string `json:"project_id"`
		Name      string `json:"name"`
		Content   string `json:"content"`
		Category  string `json:"category"`
	}
	if err := json.Unmarshal(params, &p); err != nil {
		return invalidParams(err)
	}
	projectID, err := resolveProjectID(ctx, t.store, p.ProjectID)
	if err != nil {
		return errResult(err)
	}
	tmpl, err := t.store.AddTemplate(ctx, &store.Template{ProjectID: projectID, Name: p.Name, Content: p.Content, Category: p.Category})
	if err != nil {
		return errResult(err)
	}
	return mcp.JSONResult(tmpl)
}

// --- add_code_pattern ---

type AddCodePattern struct{ store *store.Store }

func NewAddCodePattern(s *store.Store) *AddCodePattern { return &AddCodePattern{store: s} }

func (t *AddCodePattern) Name() string        { return "add_code_pattern" }
func (t *AddCodePattern) Description() string { return "Add a project code pattern to the knowledge library." }
func (t *AddCodePattern) InputSchema() json.RawMessage {
	return json.RawMessage(`{
  "type": "object",
  "properties": {
    "project_id": {"type": "string"}, "name": {"type": "string"}, "description": {"type": "string"},
    "category": {"type": "string"}, "example": {"type": "string"}
  },
  "required": ["name", "description"]
}`)
}

func (t *AddCodePattern) Execute(ctx context.Context, params json.RawMessage) (*mcp.ToolsCallResult, error) {
	var p struct {
		ProjectID   string `json:"project_id"`
		Name        string `json:"name"`
		Description string `json:"description"`
		Category    string `json:"category"`
		Example     string `json:"example"`
	}
	if err := json.Unmarshal(params, &p); err != nil {
		return invalidParams(err)
	}
	projectID, err := resolveProjectID(ctx, t.store, p.ProjectID)
	if err != nil {
		return errResult(err)
	}
	cp, err := t.store.AddCodePattern(ctx, &store.CodePattern{
		ProjectID: projectID, Name: p.Name, Description: p.Description, Category: p.Category, Example: p.Example,
	})
	if err != nil {
		return errResult(err)
	}
	return mcp.JSONResult(cp)
}
