package orchestrator

import "github.com/huanchong-99/gitcortex/internal/dbmodel"

// RunState is the orchestrator agent's own control-loop state, distinct
// from Workflow/Task/Terminal status (spec §4.11): Idle between events,
// Processing while handling one.
type RunState string

const (
	RunStateIdle       RunState = "idle"
	RunStateProcessing RunState = "processing"
)

// maxConversationHistory bounds retained conversation turns (spec §4.10).
const maxConversationHistory = 50

// ConversationMessage is one role/content turn in the LLM conversation.
type ConversationMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// TaskExecutionState tracks per-task terminal completion within a Workflow.
type TaskExecutionState struct {
	TotalTerminals     int             `json:"totalTerminals"`
	CompletedTerminals map[string]bool `json:"completedTerminals"`
	FailedTerminals    map[string]bool `json:"failedTerminals"`
}

// IsCompleted reports whether every terminal in the task has either
// completed or failed (spec §3 OrchestratorState invariant).
func (t *TaskExecutionState) IsCompleted() bool {
	return len(t.CompletedTerminals)+len(t.FailedTerminals) >= t.TotalTerminals
}

// State is the orchestrator's per-workflow in-memory snapshot, persisted as
// an opaque blob on the Workflow row (spec §3, §4.15).
type State struct {
	WorkflowID          string                         `json:"workflowId"`
	RunState            RunState                       `json:"runState"`
	TaskStates          map[string]*TaskExecutionState `json:"taskStates"`
	ConversationHistory []ConversationMessage          `json:"conversationHistory"`
	TotalTokensUsed     int                            `json:"totalTokensUsed"`
	ErrorCount          int                            `json:"errorCount"`
}

// NewState returns an empty State seeded with the orchestrator's system prompt.
func NewState(workflowID, systemPrompt string) *State {
	return &State{
		WorkflowID: workflowID,
		RunState:   RunStateIdle,
		TaskStates: make(map[string]*TaskExecutionState),
		ConversationHistory: []ConversationMessage{
			{Role: "system", Content: systemPrompt},
		},
	}
}

// AppendHistory appends a turn and enforces the retention rule: when history
// length exceeds maxConversationHistory, keep every system message plus the
// most recent (max - #system) non-system messages, preserving original
// order (spec §4.10).
func (s *State) AppendHistory(msg ConversationMessage) {
	s.ConversationHistory = append(s.ConversationHistory, msg)
	if len(s.ConversationHistory) <= maxConversationHistory {
		return
	}

	systemCount := 0
	for _, m := range s.ConversationHistory {
		if m.Role == "system" {
			systemCount++
		}
	}
	keepRest := maxConversationHistory - systemCount
	if keepRest < 0 {
		keepRest = 0
	}
	totalNonSystem := len(s.ConversationHistory) - systemCount
	dropThreshold := totalNonSystem - keepRest

	merged := make([]ConversationMessage, 0, systemCount+keepRest)
	seenNonSystem := 0
	for _, m := range s.ConversationHistory {
		if m.Role == "system" {
			merged = append(merged, m)
			continue
		}
		seenNonSystem++
		if seenNonSystem > dropThreshold {
			merged = append(merged, m)
		}
	}
	s.ConversationHistory = merged
}

// TaskState returns (creating if necessary) the execution state for taskID.
func (s *State) TaskState(taskID string, totalTerminals int) *TaskExecutionState {
	t, ok := s.TaskStates[taskID]
	if !ok {
		t = &TaskExecutionState{
			TotalTerminals:     totalTerminals,
			CompletedTerminals: make(map[string]bool),
			FailedTerminals:    make(map[string]bool),
		}
		s.TaskStates[taskID] = t
	}
	return t
}

// RecordTerminalOutcome marks terminalID completed or failed within taskID's
// execution state, per the translated TerminalCompletionStatus.
func (s *State) RecordTerminalOutcome(taskID, terminalID string, status dbmodel.TerminalCompletionStatus) {
	t := s.TaskState(taskID, 0)
	switch status {
	case dbmodel.CompletionCompleted, dbmodel.CompletionReviewPass:
		t.CompletedTerminals[terminalID] = true
	default:
		t.FailedTerminals[terminalID] = true
	}
}
