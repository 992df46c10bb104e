package gitwatcher

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/huanchong-99/gitcortex/internal/dbmodel"
)

// ParseCommitMetadata locates the first `---METADATA---` marker line in a
// commit message and unmarshals the JSON that follows it. workflowId,
// taskId, terminalId and status must all be present and non-empty.
func ParseCommitMetadata(commitMessage string) (*dbmodel.CommitMetadata, error) {
	lines := strings.Split(commitMessage, "\n")
	markerAt := -1
	for i, line := range lines {
		if strings.TrimSpace(line) == metadataMarker {
			markerAt = i
			break
		}
	}
	if markerAt == -1 {
		return nil, fmt.Errorf("gitwatcher: no %s marker found", metadataMarker)
	}

	payload := strings.TrimSpace(strings.Join(lines[markerAt+1:], "\n"))
	if payload == "" {
		return nil, fmt.Errorf("gitwatcher: empty metadata payload")
	}

	var meta dbmodel.CommitMetadata
	if err := json.Unmarshal([]byte(payload), &meta); err != nil {
		return nil, fmt.Errorf("gitwatcher: invalid metadata json: %w", err)
	}

	if meta.WorkflowID == "" || meta.TaskID == "" || meta.TerminalID == "" || meta.Status == "" {
		return nil, fmt.Errorf("gitwatcher: metadata missing required field(s)")
	}

	return &meta, nil
}
