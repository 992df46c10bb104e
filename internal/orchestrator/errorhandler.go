package orchestrator

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/huanchong-99/gitcortex/internal/bus"
	"github.com/huanchong-99/gitcortex/internal/dbmodel"
	"github.com/huanchong-99/gitcortex/internal/store"
)

// ErrorEvent is published on a workflow's topic when the agent fails a
// workflow (spec §4.13).
type ErrorEvent struct {
	WorkflowID string `json:"workflow_id"`
	Error      string `json:"error"`
}

// HandleTerminalFailure implements the error handler: the workflow is marked
// failed, an error terminal is notified (or created) if enabled, and an
// Error event is published on the workflow topic.
func HandleTerminalFailure(ctx context.Context, s store.Store, eventBus bus.EventBus, workflowID, taskID, terminalID, errorMessage string) error {
	if err := s.UpdateWorkflowStatus(ctx, workflowID, dbmodel.WorkflowStatusFailed); err != nil {
		return fmt.Errorf("orchestrator: mark workflow %s failed: %w", workflowID, err)
	}

	wf, err := s.GetWorkflow(ctx, workflowID)
	if err != nil {
		return fmt.Errorf("orchestrator: load workflow %s: %w", workflowID, err)
	}

	if wf.ErrorTerminalEnabled {
		if err := notifyOrCreateErrorTerminal(ctx, s, eventBus, wf, taskID, terminalID, errorMessage); err != nil {
			return err
		}
	}

	data, err := bus.Encode(ErrorEvent{WorkflowID: workflowID, Error: errorMessage})
	if err != nil {
		return fmt.Errorf("orchestrator: encode error event: %w", err)
	}
	evt := bus.NewEvent(bus.EventError, "orchestrator", data)
	if err := eventBus.Publish(ctx, bus.WorkflowTopic(workflowID), evt); err != nil {
		return fmt.Errorf("orchestrator: publish error event for workflow %s: %w", workflowID, err)
	}
	return nil
}

func notifyOrCreateErrorTerminal(ctx context.Context, s store.Store, eventBus bus.EventBus, wf *dbmodel.Workflow, taskID, failedTerminalID, errorMessage string) error {
	terms, err := s.ListTerminalsByWorkflow(ctx, wf.ID)
	if err != nil {
		return fmt.Errorf("orchestrator: list terminals for workflow %s: %w", wf.ID, err)
	}

	for _, t := range terms {
		if t.Role == dbmodel.RoleError {
			if err := s.UpdateTerminalStatus(ctx, t.ID, dbmodel.TerminalStatusWaiting); err != nil {
				return fmt.Errorf("orchestrator: mark error terminal %s waiting: %w", t.ID, err)
			}
			return publishFailureMessage(ctx, eventBus, t, failedTerminalID, errorMessage)
		}
	}

	newTerminal := &dbmodel.Terminal{
		ID:             uuid.New().String(),
		WorkflowTaskID: taskID,
		CliTypeID:      wf.ErrorTerminalCliID,
		ModelConfigID:  wf.ErrorTerminalModelID,
		Role:           dbmodel.RoleError,
		OrderIndex:     dbmodel.ErrorTerminalOrderIndex,
		Status:         dbmodel.TerminalStatusNotStarted,
	}
	if err := s.CreateTerminal(ctx, newTerminal); err != nil {
		return fmt.Errorf("orchestrator: create error terminal for workflow %s: %w", wf.ID, err)
	}
	return nil
}

func publishFailureMessage(ctx context.Context, eventBus bus.EventBus, errorTerminal *dbmodel.Terminal, failedTerminalID, errorMessage string) error {
	if errorTerminal.PTYSessionID == "" {
		return nil
	}
	data, err := bus.Encode(TerminalMessageEvent{
		Message: fmt.Sprintf("Terminal %s failed: %s", failedTerminalID, errorMessage),
	})
	if err != nil {
		return fmt.Errorf("orchestrator: encode failure message: %w", err)
	}
	evt := bus.NewEvent(bus.EventTerminalMessage, "orchestrator", data)
	return eventBus.Publish(ctx, bus.TerminalTopic(errorTerminal.PTYSessionID), evt)
}
