package orchestrator

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/huanchong-99/gitcortex/internal/bus"
	"github.com/huanchong-99/gitcortex/internal/dbmodel"
	"github.com/huanchong-99/gitcortex/internal/gitwatcher"
	"github.com/huanchong-99/gitcortex/internal/merge"
	"github.com/huanchong-99/gitcortex/internal/store"
)

func newAgentForTest(t *testing.T, s store.Store, eventBus bus.EventBus, workflowID string) *Agent {
	t.Helper()
	log := testLogger(t)
	mergeCoord := merge.New(s, eventBus)
	return &Agent{
		workflowID: workflowID,
		store:      s,
		bus:        eventBus,
		merge:      mergeCoord,
		log:        log,
		state:      NewState(workflowID, SystemPrompt),
	}
}

func TestAgentMarkGitEventProcessedSetsProcessedAt(t *testing.T) {
	s := store.NewMemStore()
	ctx := context.Background()
	_, wf, _ := seedWorkflow(t, s)

	require.NoError(t, s.CreateGitEvent(ctx, &dbmodel.GitEvent{
		WorkflowID:    wf.ID,
		CommitHash:    "deadbeef",
		Branch:        "workflow/wf-1/do-the-thing",
		CommitMessage: "did the thing",
		ProcessStatus: dbmodel.GitEventProcessing,
	}))

	eventBus := bus.NewMemoryEventBus(testLogger(t))
	a := newAgentForTest(t, s, eventBus, wf.ID)

	require.NoError(t, a.markGitEventProcessed(ctx, gitwatcher.TerminalCompletedEvent{
		WorkflowID: wf.ID,
		CommitHash: "deadbeef",
		Status:     dbmodel.CompletionCompleted,
	}))

	stored, err := s.GetGitEventByCommit(ctx, wf.ID, "deadbeef")
	require.NoError(t, err)
	require.Equal(t, dbmodel.GitEventProcessed, stored.ProcessStatus)
	require.NotNil(t, stored.ProcessedAt)
}

func TestAgentMarkGitEventProcessedMarksFailedStatusAsFailed(t *testing.T) {
	s := store.NewMemStore()
	ctx := context.Background()
	_, wf, _ := seedWorkflow(t, s)

	require.NoError(t, s.CreateGitEvent(ctx, &dbmodel.GitEvent{
		WorkflowID:    wf.ID,
		CommitHash:    "c0ffee",
		Branch:        "workflow/wf-1/do-the-thing",
		CommitMessage: "broke it",
		ProcessStatus: dbmodel.GitEventProcessing,
	}))

	eventBus := bus.NewMemoryEventBus(testLogger(t))
	a := newAgentForTest(t, s, eventBus, wf.ID)

	require.NoError(t, a.markGitEventProcessed(ctx, gitwatcher.TerminalCompletedEvent{
		WorkflowID: wf.ID,
		CommitHash: "c0ffee",
		Status:     dbmodel.CompletionFailed,
	}))

	stored, err := s.GetGitEventByCommit(ctx, wf.ID, "c0ffee")
	require.NoError(t, err)
	require.Equal(t, dbmodel.GitEventFailed, stored.ProcessStatus)
}

func TestAgentExecuteSendToTerminalRequiresPTYSession(t *testing.T) {
	s := store.NewMemStore()
	ctx := context.Background()
	_, wf, task := seedWorkflow(t, s)

	term := &dbmodel.Terminal{ID: "term-1", WorkflowTaskID: task.ID, CliTypeID: string(dbmodel.CliClaude), ModelConfigID: "claude-sonnet-4"}
	require.NoError(t, s.CreateTerminal(ctx, term))

	eventBus := bus.NewMemoryEventBus(testLogger(t))
	a := newAgentForTest(t, s, eventBus, wf.ID)

	err := a.execute(ctx, &Instruction{
		Kind:           InstructionSendToTerminal,
		SendToTerminal: &SendToTerminalInstruction{TerminalID: term.ID, Message: "go"},
	})
	require.Error(t, err)
}

func TestAgentExecuteSendToTerminalPublishesMessage(t *testing.T) {
	s := store.NewMemStore()
	ctx := context.Background()
	_, wf, task := seedWorkflow(t, s)

	term := &dbmodel.Terminal{ID: "term-1", WorkflowTaskID: task.ID, CliTypeID: string(dbmodel.CliClaude), ModelConfigID: "claude-sonnet-4", PTYSessionID: "pty-1"}
	require.NoError(t, s.CreateTerminal(ctx, term))

	eventBus := bus.NewMemoryEventBus(testLogger(t))
	a := newAgentForTest(t, s, eventBus, wf.ID)

	received := make(chan string, 1)
	_, err := eventBus.Subscribe(bus.TerminalTopic("pty-1"), func(_ context.Context, evt *bus.Event) error {
		var payload TerminalMessageEvent
		if err := bus.Decode(evt.Data, &payload); err != nil {
			return err
		}
		received <- payload.Message
		return nil
	})
	require.NoError(t, err)

	require.NoError(t, a.execute(ctx, &Instruction{
		Kind:           InstructionSendToTerminal,
		SendToTerminal: &SendToTerminalInstruction{TerminalID: term.ID, Message: "keep going"},
	}))

	select {
	case msg := <-received:
		require.Equal(t, "keep going", msg)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for terminal message")
	}
}

func TestAgentExecutePauseWorkflowBroadcastsStatus(t *testing.T) {
	s := store.NewMemStore()
	ctx := context.Background()
	_, wf, _ := seedWorkflow(t, s)

	eventBus := bus.NewMemoryEventBus(testLogger(t))
	a := newAgentForTest(t, s, eventBus, wf.ID)

	require.NoError(t, a.execute(ctx, &Instruction{
		Kind:          InstructionPauseWorkflow,
		PauseWorkflow: &PauseWorkflowInstruction{Reason: "waiting on human input"},
	}))

	stored, err := s.GetWorkflow(ctx, wf.ID)
	require.NoError(t, err)
	require.Equal(t, dbmodel.WorkflowStatusPaused, stored.Status)
}

func TestAgentFindTaskByBranch(t *testing.T) {
	s := store.NewMemStore()
	ctx := context.Background()
	_, wf, task := seedWorkflow(t, s)

	eventBus := bus.NewMemoryEventBus(testLogger(t))
	a := newAgentForTest(t, s, eventBus, wf.ID)

	found, err := a.findTaskByBranch(ctx, task.Branch)
	require.NoError(t, err)
	require.Equal(t, task.ID, found.ID)

	_, err = a.findTaskByBranch(ctx, "no-such-branch")
	require.Error(t, err)
}

func TestParseInstructionRejectsUnknownType(t *testing.T) {
	_, err := ParseInstruction([]byte(`{"type": "reboot_the_universe"}`))
	require.Error(t, err)
}

func TestHistoryToMessagesPreservesOrder(t *testing.T) {
	history := []ConversationMessage{
		{Role: "system", Content: "sys"},
		{Role: "user", Content: "u1"},
		{Role: "assistant", Content: "a1"},
	}
	msgs := historyToMessages(history)
	require.Len(t, msgs, 3)
	require.Equal(t, "sys", msgs[0].Content)
	require.Equal(t, "a1", msgs[2].Content)
}
