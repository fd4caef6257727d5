// Package workflow tracks the fixed analysis→implementation stage sequence
// and builds the next_steps hint that the workflow tools attach to their
// results.
package workflow

// Stage names (spec.md §4.8.1).
const (
	StageTaskCreated        = "TASK_CREATED"
	StageStoryDecomposed    = "STORY_DECOMPOSED"
	StageAnalysisPrepared   = "ANALYSIS_PREPARED"
	StageAnalysisSaved      = "ANALYSIS_SAVED"
	StageReadyToImplement   = "READY_TO_IMPLEMENT"
	StageImplementationDone = "IMPLEMENTATION_COMPLETE"
)

// ToolCall is a machine-usable follow-up hint: a tool name plus suggested
// parameters, which the assistant may invoke literally.
type ToolCall struct {
	Tool   string         `json:"tool"`
	Params map[string]any `json:"params,omitempty"`
}

// NextSteps is attached to every tool result that advances or requires
// continuation of the workflow (spec.md §4.8.2).
type NextSteps struct {
	Step         int        `json:"step"`
	Action       string     `json:"action"`
	Instructions string     `json:"instructions"`
	NextTool     string     `json:"next_tool"`
	ToolsToCall  []ToolCall `json:"tools_to_call,omitempty"`
}

// stageOrder fixes the step number and next_tool for each stage, per the
// table in §4.8.1.
var stageOrder = map[string]struct {
	step     int
	nextTool string
}{
	StageTaskCreated:        {1, "prepare_task_for_execution"},
	StageAnalysisPrepared:   {2, "save_task_analysis"},
	StageAnalysisSaved:      {3, "get_execution_prompt"},
	StageReadyToImplement:   {4, "update_task"},
	StageImplementationDone: {5, ""},
}

// After builds the next_steps record for completing the given stage, with
// a human-facing instruction and an optional machine-usable tool call.
func After(stage, action, instructions string, call *ToolCall) *NextSteps {
	info := stageOrder[stage]
	ns := &NextSteps{
		Step:         info.step,
		Action:       action,
		Instructions: instructions,
		NextTool:     info.nextTool,
	}
	if call != nil {
		ns.ToolsToCall = []ToolCall{*call}
	}
	return ns
}

// TaskCreated builds the next_steps for a freshly created task.
func TaskCreated(taskID string) *NextSteps {
	return After(StageTaskCreated, "analyze",
		"Call prepare_task_for_execution to generate a structured analysis prompt for this task.",
		&ToolCall{Tool: "prepare_task_for_execution", Params: map[string]any{"task_id": taskID}})
}

// AnalysisPrepared builds the next_steps returned by prepare_task_for_execution.
func AnalysisPrepared(taskID string) *NextSteps {
	return After(StageAnalysisPrepared, "save_analysis",
		"Inspect the codebase using your own read/search/glob tools, then call save_task_analysis with the findings.",
		&ToolCall{Tool: "save_task_analysis", Params: map[string]any{"task_id": taskID}})
}

// AnalysisSaved builds the next_steps returned by save_task_analysis.
func AnalysisSaved(taskID string) *NextSteps {
	return After(StageAnalysisSaved, "get_execution_prompt",
		"Call get_execution_prompt to assemble the full implementation prompt.",
		&ToolCall{Tool: "get_execution_prompt", Params: map[string]any{"task_id": taskID}})
}

// ReadyToImplement builds the next_steps returned by get_execution_prompt.
func ReadyToImplement(taskID string) *NextSteps {
	return After(StageReadyToImplement, "implement",
		"Implement the change, then call update_task to move this task to in_progress, and again to done when complete.",
		&ToolCall{Tool: "update_task", Params: map[string]any{"task_id": taskID, "status": "in_progress"}})
}

// Done builds the terminal next_steps record for a task that has reached
// done. update_task does not attach it to its result.
func Done(taskID string) *NextSteps {
	return After(StageImplementationDone, "add_feedback",
		"Record what worked or didn't via add_feedback so future suggestions improve.",
		&ToolCall{Tool: "add_feedback", Params: map[string]any{"task_id": taskID}})
}

// StoryDecomposed builds the next_steps returned by decompose_story and
// save_story_decomposition, pointing at the first task with no dependencies.
func StoryDecomposed(firstTaskID string) *NextSteps {
	return After(StageTaskCreated, "begin_analysis",
		"Begin with the first task in recommended_analysis_order by calling prepare_task_for_execution.",
		&ToolCall{Tool: "prepare_task_for_execution", Params: map[string]any{"task_id": firstTaskID}})
}
