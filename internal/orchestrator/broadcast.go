package orchestrator

import (
	"context"
	"fmt"
	"time"

	"github.com/huanchong-99/gitcortex/internal/bus"
	"github.com/huanchong-99/gitcortex/internal/dbmodel"
	"github.com/huanchong-99/gitcortex/internal/store"
)

// bridgeLivenessPoll is how often a Bridge's WatchAndStop goroutine checks
// whether its PTY is still alive.
const bridgeLivenessPoll = 500 * time.Millisecond

// WorkflowStatusUpdateEvent is published on workflow:{workflow_id} after the
// workflow row's status column has been written (spec §4.11).
type WorkflowStatusUpdateEvent struct {
	WorkflowID string                `json:"workflow_id"`
	Status     dbmodel.WorkflowStatus `json:"status"`
}

// TaskStatusUpdateEvent is published on workflow:{workflow_id} after the
// task row's status column has been written.
type TaskStatusUpdateEvent struct {
	TaskID string            `json:"task_id"`
	Status dbmodel.TaskStatus `json:"status"`
}

// TerminalStatusUpdateEvent is published on workflow:{workflow_id} after the
// terminal row's status column has been written.
type TerminalStatusUpdateEvent struct {
	TerminalID string                `json:"terminal_id"`
	Status     dbmodel.TerminalStatus `json:"status"`
}

// BroadcastWorkflowStatus writes status to the workflow row, then emits a
// StatusUpdate. The DB write precedes the broadcast so subscribers that
// query on receipt never see stale state (spec §4.11).
func BroadcastWorkflowStatus(ctx context.Context, s store.Store, eventBus bus.EventBus, workflowID string, status dbmodel.WorkflowStatus) error {
	if err := s.UpdateWorkflowStatus(ctx, workflowID, status); err != nil {
		return fmt.Errorf("orchestrator: update workflow %s status: %w", workflowID, err)
	}
	data, err := bus.Encode(WorkflowStatusUpdateEvent{WorkflowID: workflowID, Status: status})
	if err != nil {
		return fmt.Errorf("orchestrator: encode workflow status update: %w", err)
	}
	evt := bus.NewEvent(bus.EventStatusUpdate, "orchestrator", data)
	return eventBus.Publish(ctx, bus.WorkflowTopic(workflowID), evt)
}

// BroadcastTaskStatus writes status to the task row, then emits a
// TaskStatusUpdate on its owning workflow's topic.
func BroadcastTaskStatus(ctx context.Context, s store.Store, eventBus bus.EventBus, workflowID, taskID string, status dbmodel.TaskStatus) error {
	if err := s.UpdateTaskStatus(ctx, taskID, status); err != nil {
		return fmt.Errorf("orchestrator: update task %s status: %w", taskID, err)
	}
	data, err := bus.Encode(TaskStatusUpdateEvent{TaskID: taskID, Status: status})
	if err != nil {
		return fmt.Errorf("orchestrator: encode task status update: %w", err)
	}
	evt := bus.NewEvent(bus.EventTaskStatusUpdate, "orchestrator", data)
	return eventBus.Publish(ctx, bus.WorkflowTopic(workflowID), evt)
}

// publishTerminalStatusUpdate emits a TerminalStatusUpdate for a terminal
// whose status column has already been written by the caller.
func publishTerminalStatusUpdate(ctx context.Context, eventBus bus.EventBus, workflowID, terminalID string, status dbmodel.TerminalStatus) error {
	data, err := bus.Encode(TerminalStatusUpdateEvent{TerminalID: terminalID, Status: status})
	if err != nil {
		return fmt.Errorf("orchestrator: encode terminal status update: %w", err)
	}
	evt := bus.NewEvent(bus.EventTerminalStatusUpdate, "orchestrator", data)
	return eventBus.Publish(ctx, bus.WorkflowTopic(workflowID), evt)
}

// BroadcastTerminalStatus writes status to the terminal row, then emits a
// TerminalStatusUpdate on its owning workflow's topic.
func BroadcastTerminalStatus(ctx context.Context, s store.Store, eventBus bus.EventBus, workflowID, terminalID string, status dbmodel.TerminalStatus) error {
	if err := s.UpdateTerminalStatus(ctx, terminalID, status); err != nil {
		return fmt.Errorf("orchestrator: update terminal %s status: %w", terminalID, err)
	}
	return publishTerminalStatusUpdate(ctx, eventBus, workflowID, terminalID, status)
}
