// Package apierr defines the error taxonomy shared across the orchestrator,
// terminal launcher, prompt watcher, and git watcher components.
package apierr

import "fmt"

// Code classifies an Error for callers that need to branch on failure kind
// (e.g. the orchestrator deciding whether to retry or escalate).
type Code string

const (
	InvalidConfig         Code = "invalid_config"
	UnsupportedCli         Code = "unsupported_cli"
	InvalidTerminalID      Code = "invalid_terminal_id"
	PathNotAllowed         Code = "path_not_allowed"
	ApiKeyMissing          Code = "api_key_missing"
	AtomicWriteError       Code = "atomic_write_error"
	IoError                Code = "io_error"
	ExecutableNotFound     Code = "executable_not_found"
	RateLimitExceeded      Code = "rate_limit_exceeded"
	LlmApiError            Code = "llm_api_error"
	WorkflowNotFound       Code = "workflow_not_found"
	TerminalNotFound       Code = "terminal_not_found"
	InvalidStateTransition Code = "invalid_state_transition"
	MergeConflicts         Code = "merge_conflicts"
	WorktreeNotFound       Code = "worktree_not_found"
	RepoNotGit             Code = "repo_not_git"
	InvalidBaseBranch      Code = "invalid_base_branch"
	GitCommandFailed       Code = "git_command_failed"
)

// Error is the structured error type returned across component boundaries.
type Error struct {
	Code    Code
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// New constructs an Error with no underlying cause.
func New(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// Wrap constructs an Error carrying an underlying cause.
func Wrap(code Code, message string, cause error) *Error {
	return &Error{Code: code, Message: message, Cause: cause}
}

// Is reports whether err is an *Error with the given Code, so callers can
// write `apierr.Is(err, apierr.MergeConflicts)` instead of type-asserting.
func Is(err error, code Code) bool {
	var e *Error
	for err != nil {
		if ae, ok := err.(*Error); ok {
			e = ae
			break
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			break
		}
		err = u.Unwrap()
	}
	return e != nil && e.Code == code
}
