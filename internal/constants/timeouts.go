// Package constants provides runtime-wide timeout constants.
package constants

import "time"

// Timeouts for various orchestration operations.
const (
	// TerminalLaunchTimeout is the maximum time to wait for a terminal to
	// spawn, including worktree creation and setup script execution.
	TerminalLaunchTimeout = 6 * time.Minute

	// SetupScriptTimeout is the maximum time to wait for a setup script to complete.
	SetupScriptTimeout = 5 * time.Minute

	// CleanupScriptTimeout is the maximum time to wait for a cleanup script to complete.
	CleanupScriptTimeout = 5 * time.Minute

	// WorkflowDeleteTimeout is the maximum time to wait for workflow teardown,
	// including cleanup scripts and worktree removal.
	WorkflowDeleteTimeout = 2 * time.Minute

	// PromptTimeout is the maximum time to wait for a terminal to respond to
	// a prompt before the watcher escalates to the error handler.
	PromptTimeout = 60 * time.Minute

	// MergeTimeout is the maximum time to wait for a squash-merge operation.
	MergeTimeout = 3 * time.Minute
)
