// Package dbmodel defines the persisted entities of the orchestration
// runtime: projects, workflows, tasks, terminals, git events, and the
// CLI/model registry consulted by the terminal launcher.
package dbmodel

import "time"

// WorkflowStatus is the lifecycle state of a Workflow. Only the edges in
// spec §4.10 are legal transitions: created -> starting -> ready ->
// running <-> paused; running -> merging -> completed; running -> failed;
// running -> cancelled; merging -> completed | failed.
type WorkflowStatus string

const (
	WorkflowStatusCreated   WorkflowStatus = "created"
	WorkflowStatusStarting  WorkflowStatus = "starting"
	WorkflowStatusReady     WorkflowStatus = "ready"
	WorkflowStatusRunning   WorkflowStatus = "running"
	WorkflowStatusPaused    WorkflowStatus = "paused"
	WorkflowStatusMerging   WorkflowStatus = "merging"
	WorkflowStatusCompleted WorkflowStatus = "completed"
	WorkflowStatusFailed    WorkflowStatus = "failed"
	WorkflowStatusCancelled WorkflowStatus = "cancelled"
)

// workflowTransitions enumerates the legal WorkflowStatus edges.
var workflowTransitions = map[WorkflowStatus][]WorkflowStatus{
	WorkflowStatusCreated:   {WorkflowStatusStarting},
	WorkflowStatusStarting:  {WorkflowStatusReady},
	WorkflowStatusReady:     {WorkflowStatusRunning},
	WorkflowStatusRunning:   {WorkflowStatusPaused, WorkflowStatusMerging, WorkflowStatusFailed, WorkflowStatusCancelled},
	WorkflowStatusPaused:    {WorkflowStatusRunning},
	WorkflowStatusMerging:   {WorkflowStatusCompleted, WorkflowStatusFailed},
	WorkflowStatusCompleted: {},
	WorkflowStatusFailed:    {},
	WorkflowStatusCancelled: {},
}

// CanTransitionWorkflow reports whether moving a Workflow from `from` to
// `to` is a legal edge of the status graph in spec §4.10.
func CanTransitionWorkflow(from, to WorkflowStatus) bool {
	for _, next := range workflowTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// TaskStatus is the lifecycle state of a WorkflowTask:
// pending -> running -> review_pending? -> (completed | failed) | cancelled.
type TaskStatus string

const (
	TaskStatusPending       TaskStatus = "pending"
	TaskStatusRunning       TaskStatus = "running"
	TaskStatusReviewPending TaskStatus = "review_pending"
	TaskStatusCompleted     TaskStatus = "completed"
	TaskStatusFailed        TaskStatus = "failed"
	TaskStatusCancelled     TaskStatus = "cancelled"
)

// TerminalRole identifies what a Terminal is responsible for within its task.
type TerminalRole string

const (
	RoleCoder    TerminalRole = "coder"
	RoleReviewer TerminalRole = "reviewer"
	RoleFixer    TerminalRole = "fixer"
	RoleError    TerminalRole = "error"
	RoleMerge    TerminalRole = "merge"
)

// ErrorTerminalOrderIndex is the fixed order_index assigned to a workflow's
// error-investigation terminal (spec §4.13).
const ErrorTerminalOrderIndex = 999

// TerminalStatus is the lifecycle state of a Terminal (a PTY-wrapped CLI
// process). The first cycle is monotonic: not_started -> starting ->
// started -> waiting; thereafter waiting <-> working until completed/failed.
type TerminalStatus string

const (
	TerminalStatusNotStarted TerminalStatus = "not_started"
	TerminalStatusStarting   TerminalStatus = "starting"
	TerminalStatusStarted    TerminalStatus = "started"
	TerminalStatusWaiting    TerminalStatus = "waiting"
	TerminalStatusWorking    TerminalStatus = "working"
	TerminalStatusCompleted  TerminalStatus = "completed"
	TerminalStatusFailed     TerminalStatus = "failed"
)

// TerminalCompletionStatus is the translated meaning of a commit's metadata
// status field (spec §4.12).
type TerminalCompletionStatus string

const (
	CompletionCompleted    TerminalCompletionStatus = "completed"
	CompletionReviewPass   TerminalCompletionStatus = "review_pass"
	CompletionReviewReject TerminalCompletionStatus = "review_reject"
	CompletionFailed       TerminalCompletionStatus = "failed"
)

// GitEventProcessStatus tracks how far a detected commit has progressed
// toward becoming a TerminalCompleted event.
type GitEventProcessStatus string

const (
	GitEventPending    GitEventProcessStatus = "pending"
	GitEventProcessing GitEventProcessStatus = "processing"
	GitEventProcessed  GitEventProcessStatus = "processed"
	GitEventFailed     GitEventProcessStatus = "failed"
)

// CliType names one of the supported interactive agent CLIs.
type CliType string

const (
	CliClaude CliType = "claude"
	CliCodex  CliType = "codex"
	CliGemini CliType = "gemini"
)

// Project is a local git repository under orchestration.
type Project struct {
	ID         string    `db:"id" json:"id"`
	Name       string    `db:"name" json:"name"`
	RepoPath   string    `db:"repo_path" json:"repoPath"`
	BaseBranch string    `db:"base_branch" json:"baseBranch"`
	CreatedAt  time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt  time.Time `db:"updated_at" json:"updatedAt"`
}

// Workflow is one run of the orchestrator agent against a Project: it owns
// an ordered set of WorkflowTasks and the conversation history fed to the LLM.
//
// Invariants (spec §3): MergeTerminalCliID/MergeTerminalModelID are always
// set; when OrchestratorEnabled, BaseURL/APIKey/Model are all non-empty;
// ErrorTerminalCliID/ErrorTerminalModelID are set iff ErrorTerminalEnabled;
// EncryptedAPIKey holds the orchestrator's API key under the process-wide
// master key (internal/secrets).
type Workflow struct {
	ID                   string         `db:"id" json:"id"`
	ProjectID            string         `db:"project_id" json:"projectId"`
	Name                 string         `db:"name" json:"name"`
	Status               WorkflowStatus `db:"status" json:"status"`
	UseSlashCommands     bool           `db:"use_slash_commands" json:"useSlashCommands"`
	OrchestratorEnabled  bool           `db:"orchestrator_enabled" json:"orchestratorEnabled"`
	OrchestratorAPIType  string         `db:"orchestrator_api_type" json:"orchestratorApiType"`
	OrchestratorBaseURL  string         `db:"orchestrator_base_url" json:"orchestratorBaseUrl"`
	OrchestratorModel    string         `db:"orchestrator_model" json:"orchestratorModel"`
	EncryptedAPIKey      []byte         `db:"encrypted_api_key" json:"-"`
	APIKeyNonce          []byte         `db:"api_key_nonce" json:"-"`
	ErrorTerminalEnabled bool           `db:"error_terminal_enabled" json:"errorTerminalEnabled"`
	ErrorTerminalCliID   string         `db:"error_terminal_cli_id" json:"errorTerminalCliId,omitempty"`
	ErrorTerminalModelID string         `db:"error_terminal_model_id" json:"errorTerminalModelId,omitempty"`
	MergeTerminalCliID   string         `db:"merge_terminal_cli_id" json:"mergeTerminalCliId"`
	MergeTerminalModelID string         `db:"merge_terminal_model_id" json:"mergeTerminalModelId"`
	TargetBranch         string         `db:"target_branch" json:"targetBranch"`
	OrchestratorState    []byte         `db:"orchestrator_state" json:"-"`
	CreatedAt            time.Time      `db:"created_at" json:"createdAt"`
	UpdatedAt            time.Time      `db:"updated_at" json:"updatedAt"`
	ReadyAt              *time.Time     `db:"ready_at" json:"readyAt,omitempty"`
	StartedAt            *time.Time     `db:"started_at" json:"startedAt,omitempty"`
	CompletedAt          *time.Time     `db:"completed_at" json:"completedAt,omitempty"`
}

// WorkflowTask is a unit of work that owns an ordered set of Terminals
// within a Workflow. Branch is unique per workflow:
// workflow/{workflow_id}/{slug(name)}, with a numeric suffix to break
// collisions.
type WorkflowTask struct {
	ID         string     `db:"id" json:"id"`
	WorkflowID string     `db:"workflow_id" json:"workflowId"`
	Name       string     `db:"name" json:"name"`
	Branch     string     `db:"branch" json:"branch"`
	Status     TaskStatus `db:"status" json:"status"`
	OrderIndex int        `db:"order_index" json:"orderIndex"`
	CreatedAt  time.Time  `db:"created_at" json:"createdAt"`
	UpdatedAt  time.Time  `db:"updated_at" json:"updatedAt"`
}

// Terminal is a single PTY-wrapped CLI process executing a WorkflowTask.
// Invariant: at most one live Terminal may hold a given process_id on a
// host; the error terminal has Role = error and OrderIndex = 999.
type Terminal struct {
	ID                string         `db:"id" json:"id"`
	WorkflowTaskID     string         `db:"workflow_task_id" json:"workflowTaskId"`
	CliTypeID          string         `db:"cli_type_id" json:"cliTypeId"`
	ModelConfigID      string         `db:"model_config_id" json:"modelConfigId"`
	CustomBaseURL      string         `db:"custom_base_url" json:"customBaseUrl,omitempty"`
	EncryptedAPIKey    []byte         `db:"custom_api_key" json:"-"`
	APIKeyNonce        []byte         `db:"custom_api_key_nonce" json:"-"`
	Role               TerminalRole   `db:"role" json:"role"`
	OrderIndex         int            `db:"order_index" json:"orderIndex"`
	Status             TerminalStatus `db:"status" json:"status"`
	ProcessID          int            `db:"process_id" json:"processId,omitempty"`
	PTYSessionID       string         `db:"pty_session_id" json:"ptySessionId,omitempty"`
	SessionID          string         `db:"session_id" json:"sessionId,omitempty"`
	ExecutionProcessID string         `db:"execution_process_id" json:"executionProcessId,omitempty"`
	LastCommitHash     string         `db:"last_commit_hash" json:"lastCommitHash,omitempty"`
	LastCommitMessage  string         `db:"last_commit_message" json:"lastCommitMessage,omitempty"`
	AutoConfirm        bool           `db:"auto_confirm" json:"autoConfirm"`
}

// GitEvent is a commit observed by the git watcher, carrying the parsed
// `---METADATA---` JSON block (if any) describing which terminal produced it.
type GitEvent struct {
	ID            string                `db:"id" json:"id"`
	WorkflowID    string                `db:"workflow_id" json:"workflowId"`
	TerminalID    string                `db:"terminal_id" json:"terminalId,omitempty"`
	CommitHash    string                `db:"commit_hash" json:"commitHash"`
	Branch        string                `db:"branch" json:"branch"`
	CommitMessage string                `db:"commit_message" json:"commitMessage"`
	Metadata      []byte                `db:"metadata" json:"metadata,omitempty"`
	ProcessStatus GitEventProcessStatus `db:"process_status" json:"processStatus"`
	AgentResponse string                `db:"agent_response" json:"agentResponse,omitempty"`
	CreatedAt     time.Time             `db:"created_at" json:"createdAt"`
	ProcessedAt   *time.Time            `db:"processed_at" json:"processedAt,omitempty"`
}

// CommitMetadata is the JSON payload a terminal appends to its commit
// messages after the `---METADATA---` marker line (spec §4.12).
type CommitMetadata struct {
	WorkflowID       string         `json:"workflowId"`
	TaskID           string         `json:"taskId"`
	TerminalID       string         `json:"terminalId"`
	Status           string         `json:"status"`
	ReviewedTerminal string         `json:"reviewedTerminal,omitempty"`
	Issues           []ReviewIssue  `json:"issues,omitempty"`
	FilesChanged     []FileChange   `json:"filesChanged,omitempty"`
}

// ReviewIssue is one reviewer-reported defect, carried in CommitMetadata and
// in a fix_issues orchestrator instruction.
type ReviewIssue struct {
	Line     int    `json:"line"`
	Severity string `json:"severity"`
	Message  string `json:"message"`
}

// FileChange is one path touched by a terminal's commit, carried in
// CommitMetadata.FilesChanged.
type FileChange struct {
	Path       string `json:"path"`
	ChangeType string `json:"changeType"`
}

// ModelConfig is a selectable model for a CliType, surfaced by the
// terminal launcher's model-switch phase.
type ModelConfig struct {
	ID      string  `db:"id" json:"id"`
	Cli     CliType `db:"cli" json:"cli"`
	Name    string  `db:"name" json:"name"`
	Label   string  `db:"label" json:"label"`
	Default bool    `db:"is_default" json:"default"`
}
