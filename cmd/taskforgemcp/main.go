// Command taskforgemcp runs the TaskForge MCP server.
//
// It communicates over stdio using JSON-RPC 2.0 (MCP protocol), persists
// state to a local SQLite database, and exposes task decomposition,
// dependency-graph, learning, and suggestion tools to an external AI
// coding assistant.
//
// Optional environment variables:
//
//	TASKFORGEMCP_CONFIG                    - path to a taskforgemcp.toml config file
//	TASKFORGEMCP_STORE_PATH                - SQLite database path (default: taskforgemcp.db)
//	TASKFORGEMCP_LOG_LEVEL                 - debug, info, warn, error (default: info)
//	TASKFORGEMCP_COMPLETER_BASE_URL        - OpenAI-compatible chat completions endpoint
//	TASKFORGEMCP_COMPLETER_MODEL           - model name for story decomposition
//	TASKFORGEMCP_COMPLETER_API_KEY         - bearer token for the completions endpoint
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/taskforge-mcp/taskforge-mcp/internal/cache"
	"github.com/taskforge-mcp/taskforge-mcp/internal/config"
	"github.com/taskforge-mcp/taskforge-mcp/internal/decompose"
	"github.com/taskforge-mcp/taskforge-mcp/internal/engine"
	"github.com/taskforge-mcp/taskforge-mcp/internal/mcp"
	"github.com/taskforge-mcp/taskforge-mcp/internal/scheduler"
	"github.com/taskforge-mcp/taskforge-mcp/internal/store"
	"github.com/taskforge-mcp/taskforge-mcp/internal/tools/depgraph"
	"github.com/taskforge-mcp/taskforge-mcp/internal/tools/knowledge"
	"github.com/taskforge-mcp/taskforge-mcp/internal/tools/projectconfig"
	"github.com/taskforge-mcp/taskforge-mcp/internal/tools/suggestions"
	"github.com/taskforge-mcp/taskforge-mcp/internal/tools/tasks"
	"github.com/taskforge-mcp/taskforge-mcp/internal/tools/userstories"
	"github.com/taskforge-mcp/taskforge-mcp/internal/tools/workflow"
)

// Version is set via ldflags at build time.
var Version = "dev"

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "taskforgemcp: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load("")
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	logLevel := parseLogLevel(cfg.Log.Level)
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: logLevel,
	}))

	version := cfg.Server.Version
	if Version != "dev" {
		version = Version
	}

	logger.Info("starting taskforgemcp",
		"version", version,
		"store_path", cfg.Store.Path,
	)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	s, err := store.Open(cfg.Store.Path)
	if err != nil {
		return fmt.Errorf("opening store: %w", err)
	}
	defer s.Close()

	c := cache.New(
		secondsToDuration(cfg.Cache.DefaultTTLSeconds),
		secondsToDuration(cfg.Cache.KnowledgeTTLSeconds),
		secondsToDuration(cfg.Cache.CleanupIntervalSeconds),
	)

	eng := engine.New(s, c)

	completer := decompose.NewHTTPCompleter(decompose.HTTPCompleterConfig{
		BaseURL: cfg.Completer.BaseURL,
		APIKey:  cfg.Completer.APIKey,
		Model:   cfg.Completer.Model,
	})
	dec := decompose.New(eng, completer)

	registry := mcp.NewRegistry()

	// Task CRUD
	registry.Register(tasks.NewCreateTask(eng))
	registry.Register(tasks.NewUpdateTask(eng))
	registry.Register(tasks.NewListTasks(s))
	registry.Register(tasks.NewGetTask(s))
	registry.Register(tasks.NewDeleteTask(eng))
	registry.Register(tasks.NewGetTaskContext(s))

	// User stories
	registry.Register(userstories.NewGetUserStories(s))
	registry.Register(userstories.NewGetTasksByUserStory(s))
	registry.Register(userstories.NewDeleteUserStory(eng))
	registry.Register(userstories.NewSafeDeleteTasksByStatus(eng))
	registry.Register(userstories.NewGetUserStoryHealth(eng))

	// Workflow
	registry.Register(workflow.NewDecomposeStory(s, dec))
	registry.Register(workflow.NewIntelligentDecomposeStory(s, dec))
	registry.Register(workflow.NewSaveStoryDecomposition(s, dec))
	registry.Register(workflow.NewPrepareTaskForExecution(s))
	registry.Register(workflow.NewSaveTaskAnalysis(s))
	registry.Register(workflow.NewGetExecutionPrompt(s))

	// Dependency graph
	registry.Register(depgraph.NewSaveDependencies(s))
	registry.Register(depgraph.NewGetTaskDependencyGraph(s))
	registry.Register(depgraph.NewGetResourceUsage(s))
	registry.Register(depgraph.NewGetTaskConflicts(s))

	// Knowledge
	registry.Register(knowledge.NewListTemplates(s, c))
	registry.Register(knowledge.NewListPatterns(s, c))
	registry.Register(knowledge.NewListLearnings(s))
	registry.Register(knowledge.NewRenderTemplate(s))
	registry.Register(knowledge.NewGetRelevantKnowledge(s))
	registry.Register(knowledge.NewAddFeedback(s, c))
	registry.Register(knowledge.NewGetSimilarLearnings(s))
	registry.Register(knowledge.NewGetTopPatterns(s))
	registry.Register(knowledge.NewGetTrendingPatterns(s))
	registry.Register(knowledge.NewGetPatternStats(s))
	registry.Register(knowledge.NewDetectFailurePatterns(s))
	registry.Register(knowledge.NewCheckPatternRisk(s))

	// Suggestions
	registry.Register(suggestions.NewSuggestAgentsForTask(s))
	registry.Register(suggestions.NewSuggestToolsForTask(s))
	registry.Register(suggestions.NewSyncClaudeCodeAgents(s))
	registry.Register(suggestions.NewReadClaudeCodeAgents(s))
	registry.Register(suggestions.NewUpdateAgentPromptTemplates(s))

	// Configuration
	registry.Register(projectconfig.NewGetProjectInfo(s))
	registry.Register(projectconfig.NewGetProjectConfiguration(s))
	registry.Register(projectconfig.NewInitializeProjectConfiguration(s))
	registry.Register(projectconfig.NewAddTechStack(s))
	registry.Register(projectconfig.NewUpdateTechStack(s))
	registry.Register(projectconfig.NewRemoveTechStack(s))
	registry.Register(projectconfig.NewAddSubAgent(s))
	registry.Register(projectconfig.NewUpdateSubAgent(s))
	registry.Register(projectconfig.NewAddMCPTool(s))
	registry.Register(projectconfig.NewUpdateMCPTool(s))
	registry.Register(projectconfig.NewAddGuideline(s))
	registry.Register(projectconfig.NewAddCodePattern(s))
	registry.Register(projectconfig.NewAddTemplate(s))

	sched := scheduler.NewScheduler(logger)
	if cfg.Events.PurgeEnabled {
		sched.AddJob(store.NewPurgeJob(s, logger, cfg.RetainProcessed()), cfg.PurgeInterval())
	}
	sched.Start(ctx)
	defer sched.Stop()

	server := mcp.NewServer(registry, mcp.ServerInfo{
		Name:    cfg.Server.Name,
		Version: version,
	}, logger)

	return server.Run(ctx)
}

func secondsToDuration(n int) time.Duration {
	return time.Duration(n) * time.Second
}

func parseLogLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
