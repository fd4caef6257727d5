package store

import (
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"
)

// Store is the typed persistence layer. Multi-row writes run inside
// ordinary database/sql transactions; because Open caps the pool at one
// connection, transactions never overlap, so each transaction's
// invariant-checking reads see no concurrent writer.
type Store struct {
	db *sql.DB
}

// Open creates (or attaches to) a SQLite database at path and ensures the
// schema exists. path may be ":memory:" for tests.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	// SQLite allows only one writer; a single connection serializes every
	// transaction and avoids "database is locked" errors.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(`PRAGMA foreign_keys = ON`); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling foreign keys: %w", err)
	}

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrating schema: %w", err)
	}
	return s, nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS projects (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			description TEXT NOT NULL DEFAULT '',
			created_at DATETIME NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS tasks (
			id TEXT PRIMARY KEY,
			project_id TEXT NOT NULL DEFAULT '',
			title TEXT NOT NULL,
			description TEXT NOT NULL DEFAULT '',
			status TEXT NOT NULL,
			assignee TEXT NOT NULL DEFAULT '',
			priority TEXT NOT NULL DEFAULT '',
			tags TEXT NOT NULL DEFAULT '[]',
			category TEXT NOT NULL DEFAULT '',
			is_user_story INTEGER NOT NULL DEFAULT 0,
			user_story_id TEXT NOT NULL DEFAULT '',
			story_metadata TEXT NOT NULL DEFAULT '{}',
			analysis TEXT NOT NULL DEFAULT '',
			created_at DATETIME NOT NULL,
			updated_at DATETIME NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_tasks_user_story_id ON tasks(user_story_id)`,
		`CREATE INDEX IF NOT EXISTS idx_tasks_status ON tasks(status)`,
		`CREATE TABLE IF NOT EXISTS task_dependencies (
			task_id TEXT NOT NULL,
			depends_on_task_id TEXT NOT NULL,
			PRIMARY KEY (task_id, depends_on_task_id)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_task_deps_depends_on ON task_dependencies(depends_on_task_id)`,
		`CREATE TABLE IF NOT EXISTS resource_nodes (
			id TEXT PRIMARY KEY,
			type TEXT NOT NULL,
			name TEXT NOT NULL,
			path TEXT NOT NULL DEFAULT '',
			UNIQUE(type, name)
		)`,
		`CREATE TABLE IF NOT EXISTS resource_edges (
			task_id TEXT NOT NULL,
			resource_id TEXT NOT NULL,
			action TEXT NOT NULL,
			PRIMARY KEY (task_id, resource_id, action)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_resource_edges_resource ON resource_edges(resource_id)`,
		`CREATE TABLE IF NOT EXISTS event_queue (
			id TEXT PRIMARY KEY,
			event_type TEXT NOT NULL,
			payload TEXT NOT NULL,
			processed INTEGER NOT NULL DEFAULT 0,
			created_at DATETIME NOT NULL,
			processed_at DATETIME
		)`,
		`CREATE INDEX IF NOT EXISTS idx_event_queue_processed ON event_queue(processed, created_at)`,
		`CREATE TABLE IF NOT EXISTS learnings (
			id TEXT PRIMARY KEY,
			task_id TEXT NOT NULL DEFAULT '',
			context TEXT NOT NULL,
			action TEXT NOT NULL,
			result TEXT NOT NULL,
			lesson TEXT NOT NULL,
			type TEXT NOT NULL DEFAULT '',
			pattern TEXT NOT NULL DEFAULT '',
			tags TEXT NOT NULL DEFAULT '[]',
			created_at DATETIME NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_learnings_pattern ON learnings(pattern)`,
		`CREATE INDEX IF NOT EXISTS idx_learnings_task ON learnings(task_id)`,
		`CREATE TABLE IF NOT EXISTS pattern_frequency (
			pattern TEXT PRIMARY KEY,
			frequency INTEGER NOT NULL DEFAULT 0,
			success_count INTEGER NOT NULL DEFAULT 0,
			failure_count INTEGER NOT NULL DEFAULT 0,
			improvement_count INTEGER NOT NULL DEFAULT 0,
			first_seen DATETIME NOT NULL,
			last_seen DATETIME NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS sub_agents (
			project_id TEXT NOT NULL,
			name TEXT NOT NULL,
			agent_type TEXT NOT NULL,
			enabled INTEGER NOT NULL DEFAULT 1,
			triggers TEXT NOT NULL DEFAULT '[]',
			custom_prompt TEXT NOT NULL DEFAULT '',
			configuration TEXT NOT NULL DEFAULT '{}',
			priority INTEGER NOT NULL DEFAULT 0,
			PRIMARY KEY (project_id, name, agent_type)
		)`,
		`CREATE TABLE IF NOT EXISTS mcp_tools (
			project_id TEXT NOT NULL,
			name TEXT NOT NULL,
			tool_type TEXT NOT NULL,
			command TEXT NOT NULL DEFAULT '',
			enabled INTEGER NOT NULL DEFAULT 1,
			when_to_use TEXT NOT NULL DEFAULT '[]',
			priority INTEGER NOT NULL DEFAULT 0,
			usage_count INTEGER NOT NULL DEFAULT 0,
			success_count INTEGER NOT NULL DEFAULT 0,
			PRIMARY KEY (project_id, name)
		)`,
		`CREATE TABLE IF NOT EXISTS tech_stack (
			id TEXT PRIMARY KEY,
			project_id TEXT NOT NULL,
			category TEXT NOT NULL DEFAULT '',
			name TEXT NOT NULL,
			version TEXT NOT NULL DEFAULT '',
			notes TEXT NOT NULL DEFAULT ''
		)`,
		`CREATE TABLE IF NOT EXISTS project_guidelines (
			id TEXT PRIMARY KEY,
			project_id TEXT NOT NULL,
			text TEXT NOT NULL,
			category TEXT NOT NULL DEFAULT ''
		)`,
		`CREATE TABLE IF NOT EXISTS code_patterns_library (
			id TEXT PRIMARY KEY,
			project_id TEXT NOT NULL,
			name TEXT NOT NULL,
			description TEXT NOT NULL DEFAULT '',
			category TEXT NOT NULL DEFAULT '',
			example TEXT NOT NULL DEFAULT ''
		)`,
		`CREATE TABLE IF NOT EXISTS templates (
			id TEXT PRIMARY KEY,
			project_id TEXT NOT NULL,
			name TEXT NOT NULL,
			content TEXT NOT NULL DEFAULT '',
			category TEXT NOT NULL DEFAULT ''
		)`,
	}

	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("executing migration statement: %w", err)
		}
	}
	return nil
}
