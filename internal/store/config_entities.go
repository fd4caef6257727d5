package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// --- Project ---

func (s *Store) CreateProject(ctx context.Context, name, description string) (*Project, error) {
	p := &Project{ID: uuid.NewString(), Name: name, Description: description, CreatedAt: time.Now().UTC()}
	_, err := s.db.ExecContext(ctx, `INSERT INTO projects (id, name, description, created_at) VALUES (?,?,?,?)`,
		p.ID, p.Name, p.Description, p.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("creating project: %w", err)
	}
	return p, nil
}

func (s *Store) GetProject(ctx context.Context, id string) (*Project, error) {
	var p Project
	err := s.db.QueryRowContext(ctx, `SELECT id, name, description, created_at FROM projects WHERE id = ?`, id).
		Scan(&p.ID, &p.Name, &p.Description, &p.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("fetching project: %w", err)
	}
	return &p, nil
}

// DefaultProject returns the first project, creating one if none exists.
// This server manages a single project per store instance (spec.md treats
// multi-tenancy as out of scope), so a lazily-created default project backs
// every configuration tool that needs a project_id.
func (s *Store) DefaultProject(ctx context.Context) (*Project, error) {
	var p Project
	err := s.db.QueryRowContext(ctx, `SELECT id, name, description, created_at FROM projects ORDER BY created_at ASC LIMIT 1`).
		Scan(&p.ID, &p.Name, &p.Description, &p.CreatedAt)
	if err == nil {
		return &p, nil
	}
	if err != sql.ErrNoRows {
		return nil, fmt.Errorf("fetching default project: %w", err)
	}
	return s.CreateProject(ctx, "default", "")
}

// --- TechStack ---

func (s *Store) AddTechStack(ctx context.Context, ts *TechStack) (*TechStack, error) {
	ts.ID = uuid.NewString()
	_, err := s.db.ExecContext(ctx, `INSERT INTO tech_stack (id, project_id, category, name, version, notes) VALUES (?,?,?,?,?,?)`,
		ts.ID, ts.ProjectID, ts.Category, ts.Name, ts.Version, ts.Notes)
	if err != nil {
		return nil, fmt.Errorf("adding tech stack entry: %w", err)
	}
	return ts, nil
}

func (s *Store) UpdateTechStack(ctx context.Context, id string, category, name, version, notes *string) (*TechStack, error) {
	ts, err := s.GetTechStack(ctx, id)
	if err != nil {
		return nil, err
	}
	if category != nil {
		ts.Category = *category
	}
	if name != nil {
		ts.Name = *name
	}
	if version != nil {
		ts.Version = *version
	}
	if notes != nil {
		ts.Notes = *notes
	}
	_, err = s.db.ExecContext(ctx, `UPDATE tech_stack SET category=?, name=?, version=?, notes=? WHERE id=?`,
		ts.Category, ts.Name, ts.Version, ts.Notes, id)
	if err != nil {
		return nil, fmt.Errorf("updating tech stack entry: %w", err)
	}
	return ts, nil
}

func (s *Store) GetTechStack(ctx context.Context, id string) (*TechStack, error) {
	var ts TechStack
	err := s.db.QueryRowContext(ctx, `SELECT id, project_id, category, name, version, notes FROM tech_stack WHERE id = ?`, id).
		Scan(&ts.ID, &ts.ProjectID, &ts.Category, &ts.Name, &ts.Version, &ts.Notes)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("fetching tech stack entry: %w", err)
	}
	return &ts, nil
}

func (s *Store) RemoveTechStack(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM tech_stack WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("removing tech stack entry: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *Store) ListTechStack(ctx context.Context, projectID string) ([]*TechStack, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, project_id, category, name, version, notes FROM tech_stack WHERE project_id = ?`, projectID)
	if err != nil {
		return nil, fmt.Errorf("listing tech stack: %w", err)
	}
	defer rows.Close()
	var out []*TechStack
	for rows.Next() {
		var ts TechStack
		if err := rows.Scan(&ts.ID, &ts.ProjectID, &ts.Category, &ts.Name, &ts.Version, &ts.Notes); err != nil {
			return nil, err
		}
		out = append(out, &ts)
	}
	return out, rows.Err()
}

// --- Guidelines ---

func (s *Store) AddGuideline(ctx context.Context, g *Guideline) (*Guideline, error) {
	g.ID = uuid.NewString()
	_, err := s.db.ExecContext(ctx, `INSERT INTO project_guidelines (id, project_id, text, category) VALUES (?,?,?,?)`,
		g.ID, g.ProjectID, g.Text, g.Category)
	if err != nil {
		return nil, fmt.Errorf("adding guideline: %w", err)
	}
	return g, nil
}

func (s *Store) ListGuidelines(ctx context.Context, projectID string) ([]*Guideline, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, project_id, text, category FROM project_guidelines WHERE project_id = ?`, projectID)
	if err != nil {
		return nil, fmt.Errorf("listing guidelines: %w", err)
	}
	defer rows.Close()
	var out []*Guideline
	for rows.Next() {
		var g Guideline
		if err := rows.Scan(&g.ID, &g.ProjectID, &g.Text, &g.Category); err != nil {
			return nil, err
		}
		out = append(out, &g)
	}
	return out, rows.Err()
}

// --- CodePatterns ---

func (s *Store) AddCodePattern(ctx context.Context, p *CodePattern) (*CodePattern, error) {
	p.ID = uuid.NewString()
	_, err := s.db.ExecContext(ctx, `INSERT INTO code_patterns_library (id, project_id, name, description, category, example) VALUES (?,?,?,?,?,?)`,
		p.ID, p.ProjectID, p.Name, p.Description, p.Category, p.Example)
	if err != nil {
		return nil, fmt.Errorf("adding code pattern: %w", err)
	}
	return p, nil
}

func (s *Store) ListCodePatterns(ctx context.Context, projectID string) ([]*CodePattern, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, project_id, name, description, category, example FROM code_patterns_library WHERE project_id = ?`, projectID)
	if err != nil {
		return nil, fmt.Errorf("listing code patterns: %w", err)
	}
	defer rows.Close()
	var out []*CodePattern
	for rows.Next() {
		var p CodePattern
		if err := rows.Scan(&p.ID, &p.ProjectID, &p.Name, &p.Description, &p.Category, &p.Example); err != nil {
			return nil, err
		}
		out = append(out, &p)
	}
	return out, rows.Err()
}

// --- Templates ---

func (s *Store) AddTemplate(ctx context.Context, t *Template) (*Template, error) {
	t.ID = uuid.NewString()
	_, err := s.db.ExecContext(ctx, `INSERT INTO templates (id, project_id, name, content, category) VALUES (?,?,?,?,?)`,
		t.ID, t.ProjectID, t.Name, t.Content, t.Category)
	if err != nil {
		return nil, fmt.Errorf("adding template: %w", err)
	}
	return t, nil
}

func (s *Store) ListTemplates(ctx context.Context, projectID string) ([]*Template, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, project_id, name, content, category FROM templates WHERE project_id = ?`, projectID)
	if err != nil {
		return nil, fmt.Errorf("listing templates: %w", err)
	}
	defer rows.Close()
	var out []*Template
	for rows.Next() {
		var t Template
		if err := rows.Scan(&t.ID, &t.ProjectID, &t.Name, &t.Content, &t.Category); err != nil {
			return nil, err
		}
		out = append(out, &t)
	}
	return out, rows.Err()
}

func (s *Store) GetTemplate(ctx context.Context, projectID, name string) (*Template, error) {
	var t Template
	err := s.db.QueryRowContext(ctx, `SELECT id, project_id, name, content, category FROM templates WHERE project_id = ? AND name = ?`, projectID, name).
		Scan(&t.ID, &t.ProjectID, &t.Name, &t.Content, &t.Category)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("fetching template: %w", err)
	}
	return &t, nil
}

// --- SubAgents ---

func (s *Store) AddSubAgent(ctx context.Context, a *SubAgent) (*SubAgent, error) {
	triggers, _ := json.Marshal(a.Triggers)
	config, _ := json.Marshal(a.Configuration)
	_, err := s.db.ExecContext(ctx, `INSERT INTO sub_agents (project_id, name, agent_type, enabled, triggers, custom_prompt, configuration, priority)
		VALUES (?,?,?,?,?,?,?,?)
		ON CONFLICT(project_id, name, agent_type) DO UPDATE SET
			enabled=excluded.enabled, triggers=excluded.triggers, custom_prompt=excluded.custom_prompt,
			configuration=excluded.configuration, priority=excluded.priority`,
		a.ProjectID, a.Name, a.AgentType, boolToInt(a.Enabled), string(triggers), a.CustomPrompt, string(config), a.Priority)
	if err != nil {
		return nil, fmt.Errorf("adding sub-agent: %w", err)
	}
	return a, nil
}

func (s *Store) UpdateSubAgent(ctx context.Context, projectID, name, agentType string, enabled *bool, priority *int) (*SubAgent, error) {
	a, err := s.getSubAgent(ctx, projectID, name, agentType)
	if err != nil {
		return nil, err
	}
	if enabled != nil {
		a.Enabled = *enabled
	}
	if priority != nil {
		a.Priority = *priority
	}
	_, err = s.db.ExecContext(ctx, `UPDATE sub_agents SET enabled=?, priority=? WHERE project_id=? AND name=? AND agent_type=?`,
		boolToInt(a.Enabled), a.Priority, projectID, name, agentType)
	if err != nil {
		return nil, fmt.Errorf("updating sub-agent: %w", err)
	}
	return a, nil
}

// UpdateSubAgentPrompt overwrites a sub-agent's custom_prompt, used by
// update_agent_prompt_templates to push a refreshed prompt body without
// touching enabled/priority.
func (s *Store) UpdateSubAgentPrompt(ctx context.Context, projectID, name, agentType, prompt string) (*SubAgent, error) {
	a, err := s.getSubAgent(ctx, projectID, name, agentType)
	if err != nil {
		return nil, err
	}
	a.CustomPrompt = prompt
	_, err = s.db.ExecContext(ctx, `UPDATE sub_agents SET custom_prompt=? WHERE project_id=? AND name=? AND agent_type=?`,
		prompt, projectID, name, agentType)
	if err != nil {
		return nil, fmt.Errorf("updating sub-agent prompt: %w", err)
	}
	return a, nil
}

func (s *Store) getSubAgent(ctx context.Context, projectID, name, agentType string) (*SubAgent, error) {
	var a SubAgent
	var enabled int
	var triggers, config string
	err := s.db.QueryRowContext(ctx, `SELECT project_id, name, agent_type, enabled, triggers, custom_prompt, configuration, priority
		FROM sub_agents WHERE project_id=? AND name=? AND agent_type=?`, projectID, name, agentType).
		Scan(&a.ProjectID, &a.Name, &a.AgentType, &enabled, &triggers, &a.CustomPrompt, &config, &a.Priority)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("fetching sub-agent: %w", err)
	}
	a.Enabled = enabled != 0
	_ = json.Unmarshal([]byte(triggers), &a.Triggers)
	_ = json.Unmarshal([]byte(config), &a.Configuration)
	return &a, nil
}

func (s *Store) ListSubAgents(ctx context.Context, projectID string) ([]*SubAgent, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT project_id, name, agent_type, enabled, triggers, custom_prompt, configuration, priority
		FROM sub_agents WHERE project_id = ?`, projectID)
	if err != nil {
		return nil, fmt.Errorf("listing sub-agents: %w", err)
	}
	defer rows.Close()
	var out []*SubAgent
	for rows.Next() {
		var a SubAgent
		var enabled int
		var triggers, config string
		if err := rows.Scan(&a.ProjectID, &a.Name, &a.AgentType, &enabled, &triggers, &a.CustomPrompt, &config, &a.Priority); err != nil {
			return nil, err
		}
		a.Enabled = enabled != 0
		_ = json.Unmarshal([]byte(triggers), &a.Triggers)
		_ = json.Unmarshal([]byte(config), &a.Configuration)
		out = append(out, &a)
	}
	return out, rows.Err()
}

// --- MCPTools ---

func (s *Store) AddMCPTool(ctx context.Context, t *MCPTool) (*MCPTool, error) {
	whenToUse, _ := json.Marshal(t.WhenToUse)
	_, err := s.db.ExecContext(ctx, `INSERT INTO mcp_tools (project_id, name, tool_type, command, enabled, when_to_use, priority, usage_count, success_count)
		VALUES (?,?,?,?,?,?,?,0,0)
		ON CONFLICT(project_id, name) DO UPDATE SET
			tool_type=excluded.tool_type, command=excluded.command, enabled=excluded.enabled,
			when_to_use=excluded.when_to_use, priority=excluded.priority`,
		t.ProjectID, t.Name, t.ToolType, t.Command, boolToInt(t.Enabled), string(whenToUse), t.Priority)
	if err != nil {
		return nil, fmt.Errorf("adding mcp tool: %w", err)
	}
	return t, nil
}

func (s *Store) UpdateMCPTool(ctx context.Context, projectID, name string, enabled *bool, priority *int, recordUsage bool, success bool) (*MCPTool, error) {
	t, err := s.getMCPTool(ctx, projectID, name)
	if err != nil {
		return nil, err
	}
	if enabled != nil {
		t.Enabled = *enabled
	}
	if priority != nil {
		t.Priority = *priority
	}
	if recordUsage {
		t.UsageCount++
		if success {
			t.SuccessCount++
		}
	}
	_, err = s.db.ExecContext(ctx, `UPDATE mcp_tools SET enabled=?, priority=?, usage_count=?, success_count=? WHERE project_id=? AND name=?`,
		boolToInt(t.Enabled), t.Priority, t.UsageCount, t.SuccessCount, projectID, name)
	if err != nil {
		return nil, fmt.Errorf("updating mcp tool: %w", err)
	}
	return t, nil
}

func (s *Store) getMCPTool(ctx context.Context, projectID, name string) (*MCPTool, error) {
	var t MCPTool
	var enabled int
	var whenToUse string
	err := s.db.QueryRowContext(ctx, `SELECT project_id, name, tool_type, command, enabled, when_to_use, priority, usage_count, success_count
		FROM mcp_tools WHERE project_id=? AND name=?`, projectID, name).
		Scan(&t.ProjectID, &t.Name, &t.ToolType, &t.Command, &enabled, &whenToUse, &t.Priority, &t.UsageCount, &t.SuccessCount)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("fetching mcp tool: %w", err)
	}
	t.Enabled = enabled != 0
	_ = json.Unmarshal([]byte(whenToUse), &t.WhenToUse)
	return &t, nil
}

func (s *Store) ListMCPTools(ctx context.Context, projectID string) ([]*MCPTool, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT project_id, name, tool_type, command, enabled, when_to_use, priority, usage_count, success_count
		FROM mcp_tools WHERE project_id = ?`, projectID)
	if err != nil {
		return nil, fmt.Errorf("listing mcp tools: %w", err)
	}
	defer rows.Close()
	var out []*MCPTool
	for rows.Next() {
		var t MCPTool
		var enabled int
		var whenToUse string
		if err := rows.Scan(&t.ProjectID, &t.Name, &t.ToolType, &t.Command, &enabled, &whenToUse, &t.Priority, &t.UsageCount, &t.SuccessCount); err != nil {
			return nil, err
		}
		t.Enabled = enabled != 0
		_ = json.Unmarshal([]byte(whenToUse), &t.WhenToUse)
		out = append(out, &t)
	}
	return out, rows.Err()
}
