package suggest

import "github.com/taskforge-mcp/taskforge-mcp/internal/store"

// DefaultAgents is the built-in agent registry suggest_agents_for_task
// scores against. Project-specific sub_agents (internal/store's SubAgent
// rows) are appended to this set at call time by the tool layer.
var DefaultAgents = []Candidate{
	{
		Name:     store.AgentArchitectureGuardian,
		Type:     "agent",
		Category: store.CategoryDesignFrontend,
		Keywords: []string{"architecture", "design", "pattern", "structure", "refactor", "coupling"},
	},
	{
		Name:     store.AgentDatabaseGuardian,
		Type:     "agent",
		Category: store.CategoryBackendDatabase,
		Keywords: []string{"database", "schema", "migration", "sql", "table", "index", "query"},
	},
	{
		Name:     store.AgentTestMaintainer,
		Type:     "agent",
		Category: store.CategoryTestFix,
		Keywords: []string{"test", "coverage", "assertion", "mock", "fixture", "regression"},
	},
	{
		Name:     store.AgentAPIGuardian,
		Type:     "agent",
		Category: store.CategoryBackendDatabase,
		Keywords: []string{"api", "endpoint", "route", "request", "response", "rest", "rpc"},
	},
	{
		Name:     store.AgentProductionReadyCodeReviewer,
		Type:     "agent",
		Keywords: []string{"review", "security", "performance", "production", "hardening"},
	},
	{
		Name:     store.AgentGeneralPurpose,
		Type:     "agent",
		Keywords: []string{"implement", "build", "add", "create", "update"},
	},
}

// DefaultTools is the built-in tool registry suggest_tools_for_task scores
// against. Project-specific mcp_tools rows are appended by the tool layer.
var DefaultTools = []Candidate{
	{
		Name:     "grep",
		Type:     "search",
		Keywords: []string{"find", "search", "locate", "grep", "usages"},
	},
	{
		Name:     "sqlite-inspector",
		Type:     "database",
		Category: store.CategoryBackendDatabase,
		Keywords: []string{"database", "schema", "migration", "table", "query"},
	},
	{
		Name:     "test-runner",
		Type:     "testing",
		Category: store.CategoryTestFix,
		Keywords: []string{"test", "coverage", "suite", "assertion"},
	},
	{
		Name:     "http-client",
		Type:     "network",
		Keywords: []string{"api", "endpoint", "request", "http", "curl"},
	},
	{
		Name:     "component-explorer",
		Type:     "frontend",
		Category: store.CategoryDesignFrontend,
		Keywords: []string{"component", "ui", "frontend", "style", "layout"},
	},
}
