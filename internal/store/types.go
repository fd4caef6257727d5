// Package store provides typed, transactional persistence for every entity
// the orchestration engine manages: tasks, dependencies, the resource graph,
// learnings, the event queue, and project configuration. It is backed by an
// embedded SQLite database (modernc.org/sqlite) and implements the invariant
// checks the schema itself cannot express (dependency existence and
// acyclicity, delete guards) inside explicit transactions. Status transition
// legality and dependency completion are checked by internal/engine before
// it calls the store.
package store

import "time"

// Task status values. Transition legality lives in internal/engine, not here;
// the store only persists whatever status it is told to write, but validates
// it against this closed set.
const (
	StatusBacklog    = "backlog"
	StatusTodo       = "todo"
	StatusInProgress = "in_progress"
	StatusDone       = "done"
)

var TaskStatuses = map[string]bool{
	StatusBacklog:    true,
	StatusTodo:       true,
	StatusInProgress: true,
	StatusDone:       true,
}

// Priority values.
const (
	PriorityLow    = "low"
	PriorityMedium = "medium"
	PriorityHigh   = "high"
	PriorityUrgent = "urgent"
)

// Category values.
const (
	CategoryDesignFrontend   = "design_frontend"
	CategoryBackendDatabase  = "backend_database"
	CategoryTestFix          = "test_fix"
)

// Resource node types.
const (
	ResourceFile      = "file"
	ResourceComponent = "component"
	ResourceAPI       = "api"
	ResourceModel     = "model"
)

// Resource edge actions.
const (
	ActionUses     = "uses"
	ActionModifies = "modifies"
	ActionCreates  = "creates"
)

// Learning types.
const (
	LearningSuccess     = "success"
	LearningFailure     = "failure"
	LearningImprovement = "improvement"
)

// Task is the unit of work tracked by the engine.
type Task struct {
	ID            string
	ProjectID     string
	Title         string
	Description   string
	Status        string
	Assignee      string
	Priority      string
	Tags          []string
	Category      string
	IsUserStory   bool
	UserStoryID   string // empty when not a sub-task
	StoryMetadata StoryMetadata
	Analysis      *TaskAnalysis // populated after save_task_analysis
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// StoryMetadata is the free-form record attached to story-decomposed tasks.
type StoryMetadata struct {
	Complexity      string   `json:"complexity,omitempty"`
	EstimatedHours  float64  `json:"estimated_hours,omitempty"`
	OriginalStory   string   `json:"original_story,omitempty"`
	SuggestedAgent  string   `json:"suggested_agent,omitempty"`
	SuggestedTools  []string `json:"suggested_tools,omitempty"`
}

// TaskAnalysis is the structured record produced by the external assistant
// while inspecting source for a task, stored verbatim once saved.
type TaskAnalysis struct {
	FilesToModify   []FileToModify      `json:"files_to_modify"`
	FilesToCreate   []FileToCreate      `json:"files_to_create"`
	Dependencies    []AnalysisDependency `json:"dependencies"`
	Risks           []AnalysisRisk      `json:"risks"`
	RelatedCode     []RelatedCode       `json:"related_code"`
	Recommendations []string            `json:"recommendations"`
	AnalyzedAt      time.Time           `json:"analyzed_at"`
}

type FileToModify struct {
	Path string `json:"path"`
	Reason string `json:"reason"`
	Risk string `json:"risk"` // low|medium|high
}

type FileToCreate struct {
	Path   string `json:"path"`
	Reason string `json:"reason"`
}

type AnalysisDependency struct {
	Type   string `json:"type"`
	Name   string `json:"name"`
	Path   string `json:"path,omitempty"`
	Action string `json:"action"`
}

type AnalysisRisk struct {
	Level       string `json:"level"`
	Description string `json:"description"`
	Mitigation  string `json:"mitigation"`
}

type RelatedCode struct {
	File        string `json:"file"`
	Description string `json:"description"`
	Lines       string `json:"lines,omitempty"`
}

// TaskDependency is a directed edge task -> depends_on_task.
type TaskDependency struct {
	TaskID         string
	DependsOnTaskID string
}

// ResourceNode is a nameable artifact referenced by tasks. Identity is (Type, Name).
type ResourceNode struct {
	ID   string
	Type string
	Name string
	Path string
}

// ResourceEdge is a directed edge task -> resource labeled with an action.
// Identity is (TaskID, ResourceID, Action).
type ResourceEdge struct {
	TaskID     string
	ResourceID string
	Action     string
}

// QueuedEvent is an append-only record on the event queue.
type QueuedEvent struct {
	ID          string
	EventType   string
	Payload     []byte // opaque JSON
	Processed   bool
	CreatedAt   time.Time
	ProcessedAt *time.Time
}

// Learning is a feedback record, optionally tied to a task.
type Learning struct {
	ID        string
	TaskID    string // empty when untied
	Context   string
	Action    string
	Result    string
	Lesson    string
	Type      string // success|failure|improvement
	Pattern   string
	Tags      []string
	CreatedAt time.Time
}

// PatternFrequency is the aggregate maintained per pattern.
type PatternFrequency struct {
	Pattern           string
	Frequency         int
	SuccessCount      int
	FailureCount      int
	ImprovementCount  int
	FirstSeen         time.Time
	LastSeen          time.Time
}

// SubAgent describes a configured agent a task might be routed to.
type SubAgent struct {
	ProjectID     string         `json:"project_id"`
	Name          string         `json:"name"`
	AgentType     string         `json:"agent_type"`
	Enabled       bool           `json:"enabled"`
	Triggers      []string       `json:"triggers"`
	CustomPrompt  string         `json:"custom_prompt"`
	Configuration map[string]any `json:"configuration"`
	Priority      int            `json:"priority"`
}

// Closed set of agent types.
const (
	AgentArchitectureGuardian        = "architecture-guardian"
	AgentDatabaseGuardian            = "database-guardian"
	AgentTestMaintainer              = "test-maintainer"
	AgentAPIGuardian                 = "api-guardian"
	AgentProductionReadyCodeReviewer = "production-ready-code-reviewer"
	AgentGeneralPurpose              = "general-purpose"
	AgentCustom                      = "custom"
)

// MCPTool describes a tool an assistant may be pointed at.
type MCPTool struct {
	ProjectID    string   `json:"project_id"`
	Name         string   `json:"name"`
	ToolType     string   `json:"tool_type"`
	Command      string   `json:"command"`
	Enabled      bool     `json:"enabled"`
	WhenToUse    []string `json:"when_to_use"`
	Priority     int      `json:"priority"`
	UsageCount   int      `json:"usage_count"`
	SuccessCount int      `json:"success_count"`
}

// Project and its configuration entities.
type Project struct {
	ID          string
	Name        string
	Description string
	CreatedAt   time.Time
}

type TechStack struct {
	ID        string
	ProjectID string
	Category  string
	Name      string
	Version   string
	Notes     string
}

type Guideline struct {
	ID        string
	ProjectID string
	Text      string
	Category  string
}

type CodePattern struct {
	ID          string
	ProjectID   string
	Name        string
	Description string
	Category    string
	Example     string
}

type Template struct {
	ID        string
	ProjectID string
	Name      string
	Content   string
	Category  string
}
