package orchestrator

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseInstructionSendToTerminal(t *testing.T) {
	inst, err := ParseInstruction([]byte(`{"type":"send_to_terminal","terminal_id":"term-1","message":"go"}`))
	require.NoError(t, err)
	require.Equal(t, InstructionSendToTerminal, inst.Kind)
	require.Equal(t, "term-1", inst.SendToTerminal.TerminalID)
	require.Equal(t, "go", inst.SendToTerminal.Message)
}

func TestParseInstructionRejectsMissingRequiredField(t *testing.T) {
	_, err := ParseInstruction([]byte(`{"type":"send_to_terminal","terminal_id":"term-1"}`))
	require.Error(t, err)
}

func TestParseInstructionRejectsEmptyRequiredField(t *testing.T) {
	_, err := ParseInstruction([]byte(`{"type":"pause_workflow","reason":""}`))
	require.Error(t, err)
}

func TestParseInstructionMergeBranch(t *testing.T) {
	inst, err := ParseInstruction([]byte(`{"type":"merge_branch","source_branch":"task/1","target_branch":"main"}`))
	require.NoError(t, err)
	require.Equal(t, "task/1", inst.MergeBranch.SourceBranch)
	require.Equal(t, "main", inst.MergeBranch.TargetBranch)
}

func TestParseInstructionFixIssuesAllowsEmptyIssuesList(t *testing.T) {
	inst, err := ParseInstruction([]byte(`{"type":"fix_issues","terminal_id":"term-1","issues":[]}`))
	require.NoError(t, err)
	require.Equal(t, "term-1", inst.FixIssues.TerminalID)
	require.Empty(t, inst.FixIssues.Issues)
}
