package bus

// Event type tags carried in Event.Type. These are the bus's tagged message
// variants: the orchestrator agent, git watcher, and terminal bridge only
// ever exchange events carrying one of these types.
const (
	EventTerminalCompleted      = "terminal_completed"
	EventGitEvent               = "git_event"
	EventStatusUpdate           = "status_update"
	EventTaskStatusUpdate       = "task_status_update"
	EventTerminalStatusUpdate   = "terminal_status_update"
	EventTerminalMessage        = "terminal_message"
	EventTerminalPromptDetected = "terminal_prompt_detected"
	EventPromptAwaitingUser     = "prompt_awaiting_user"
	EventError                  = "error"
	EventShutdown               = "shutdown"
)

// WorkflowTopic returns the broadcast topic for a workflow's orchestrator
// agent: status updates, completion events, and shutdown all flow here.
func WorkflowTopic(workflowID string) string {
	return "workflow:" + workflowID
}

// TerminalTopic returns the per-PTY topic the terminal<->bus bridge
// subscribes to; TerminalMessage events published here are written to the
// PTY's stdin.
func TerminalTopic(ptySessionID string) string {
	return "terminal:" + ptySessionID
}

// GitEventTopic returns the topic the git watcher publishes raw commit
// observations to, ahead of translating them into TerminalCompleted events.
func GitEventTopic(workflowID string) string {
	return "git_event:" + workflowID
}
