package orchestrator

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/huanchong-99/gitcortex/internal/dbmodel"
	"github.com/huanchong-99/gitcortex/internal/store"
)

// SaveState serializes state as an opaque blob into the workflow row. Callers
// performing a state mutation that advances task progress must call this
// before broadcasting any status update, so a crash leaves either the prior
// consistent state or a resumable snapshot (spec §4.15).
func SaveState(ctx context.Context, s store.Store, state *State) error {
	blob, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("orchestrator: marshal state: %w", err)
	}
	if err := s.SaveWorkflowState(ctx, state.WorkflowID, blob); err != nil {
		return fmt.Errorf("orchestrator: save state for workflow %s: %w", state.WorkflowID, err)
	}
	return nil
}

// LoadState reconstructs a previously saved State for workflowID.
func LoadState(ctx context.Context, s store.Store, workflowID string) (*State, error) {
	blob, err := s.LoadWorkflowState(ctx, workflowID)
	if err != nil {
		return nil, fmt.Errorf("orchestrator: load state for workflow %s: %w", workflowID, err)
	}
	if len(blob) == 0 {
		return nil, store.ErrNotFound
	}
	var state State
	if err := json.Unmarshal(blob, &state); err != nil {
		return nil, fmt.Errorf("orchestrator: unmarshal state for workflow %s: %w", workflowID, err)
	}
	return &state, nil
}

// RecoverWorkflow loads persisted state only when the workflow's current
// status is running; for any other status it returns (nil, nil) — the
// workflow is not resumable and the caller must not treat that as an error.
func RecoverWorkflow(ctx context.Context, s store.Store, workflowID string) (*State, error) {
	wf, err := s.GetWorkflow(ctx, workflowID)
	if err != nil {
		return nil, fmt.Errorf("orchestrator: load workflow %s for recovery: %w", workflowID, err)
	}
	if wf.Status != dbmodel.WorkflowStatusRunning {
		return nil, nil
	}
	state, err := LoadState(ctx, s, workflowID)
	if err != nil {
		return nil, err
	}
	return state, nil
}

// ClearState removes the persisted snapshot. Called on terminal workflow
// transitions: completed, failed, cancelled.
func ClearState(ctx context.Context, s store.Store, workflowID string) error {
	if err := s.ClearWorkflowState(ctx, workflowID); err != nil {
		return fmt.Errorf("orchestrator: clear state for workflow %s: %w", workflowID, err)
	}
	return nil
}
