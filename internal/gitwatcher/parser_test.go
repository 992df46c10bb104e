package gitwatcher

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseCommitMetadataValid(t *testing.T) {
	msg := "Fix flaky retry loop\n\n---METADATA---\n" +
		`{"workflowId":"wf-1","taskId":"task-1","terminalId":"term-1","status":"completed"}`

	meta, err := ParseCommitMetadata(msg)
	require.NoError(t, err)
	require.Equal(t, "wf-1", meta.WorkflowID)
	require.Equal(t, "task-1", meta.TaskID)
	require.Equal(t, "term-1", meta.TerminalID)
	require.Equal(t, "completed", meta.Status)
}

func TestParseCommitMetadataUsesFirstMarker(t *testing.T) {
	msg := "First\n---METADATA---\n" +
		`{"workflowId":"wf-1","taskId":"task-1","terminalId":"term-1","status":"completed"}` +
		"\n---METADATA---\n{\"workflowId\":\"ignored\"}"

	meta, err := ParseCommitMetadata(msg)
	require.NoError(t, err)
	require.Equal(t, "wf-1", meta.WorkflowID)
}

func TestParseCommitMetadataMissingMarker(t *testing.T) {
	_, err := ParseCommitMetadata("just a normal commit message")
	require.Error(t, err)
}

func TestParseCommitMetadataEmptyPayload(t *testing.T) {
	_, err := ParseCommitMetadata("message\n---METADATA---\n   \n")
	require.Error(t, err)
}

func TestParseCommitMetadataInvalidJSON(t *testing.T) {
	_, err := ParseCommitMetadata("message\n---METADATA---\nnot json")
	require.Error(t, err)
}

func TestParseCommitMetadataMissingRequiredField(t *testing.T) {
	_, err := ParseCommitMetadata("message\n---METADATA---\n" +
		`{"workflowId":"wf-1","taskId":"","terminalId":"term-1","status":"completed"}`)
	require.Error(t, err)
}

func TestParseCommitMetadataWithReviewIssues(t *testing.T) {
	msg := "Review feedback\n---METADATA---\n" + `{
		"workflowId":"wf-1","taskId":"task-1","terminalId":"term-1","status":"review_reject",
		"reviewedTerminal":"term-0",
		"issues":[{"line":42,"severity":"major","message":"missing nil check"}]
	}`

	meta, err := ParseCommitMetadata(msg)
	require.NoError(t, err)
	require.Equal(t, "review_reject", meta.Status)
	require.Equal(t, "term-0", meta.ReviewedTerminal)
	require.Len(t, meta.Issues, 1)
	require.Equal(t, 42, meta.Issues[0].Line)
}

func TestParseCommitMetadataWithFilesChanged(t *testing.T) {
	msg := "Add retry budget\n---METADATA---\n" + `{
		"workflowId":"wf-1","taskId":"task-1","terminalId":"term-1","status":"completed",
		"filesChanged":[
			{"path":"internal/retry/budget.go","changeType":"added"},
			{"path":"internal/retry/budget_test.go","changeType":"added"},
			{"path":"go.mod","changeType":"modified"}
		]
	}`

	meta, err := ParseCommitMetadata(msg)
	require.NoError(t, err)
	require.Len(t, meta.FilesChanged, 3)
	require.Equal(t, "internal/retry/budget.go", meta.FilesChanged[0].Path)
	require.Equal(t, "added", meta.FilesChanged[0].ChangeType)
	require.Equal(t, "go.mod", meta.FilesChanged[2].Path)
	require.Equal(t, "modified", meta.FilesChanged[2].ChangeType)
}

func TestParseCommitMetadataRejectsArrayPayload(t *testing.T) {
	_, err := ParseCommitMetadata("message\n---METADATA---\n[1,2,3]")
	require.Error(t, err)
}
