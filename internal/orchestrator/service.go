package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/huanchong-99/gitcortex/internal/bus"
	"github.com/huanchong-99/gitcortex/internal/dbmodel"
	"github.com/huanchong-99/gitcortex/internal/gitwatcher"
	"github.com/huanchong-99/gitcortex/internal/llmclient"
	"github.com/huanchong-99/gitcortex/internal/logger"
	"github.com/huanchong-99/gitcortex/internal/merge"
	"github.com/huanchong-99/gitcortex/internal/secrets"
	"github.com/huanchong-99/gitcortex/internal/store"
)

// Agent is the per-workflow event loop described in spec §4.11: one LLM
// conversation, one State, one subscription on workflow:{workflow_id}.
type Agent struct {
	workflowID string

	store    store.Store
	bus      bus.EventBus
	llm      *llmclient.Client
	launcher *Launcher
	merge    *merge.Coordinator
	log      *logger.Logger

	mu             sync.Mutex
	state          *State
	lastTaskID     string
	lastTerminalID string
	sub            bus.Subscription
}

// StartAgent builds the LLM client from the workflow's own config, recovers
// persisted state when resumable (spec §4.15) or seeds a fresh one, and
// subscribes to the workflow's topic. The returned Agent processes bus
// messages serially until Stop is called or a Shutdown event arrives.
func StartAgent(ctx context.Context, s store.Store, eventBus bus.EventBus, launcher *Launcher, mergeCoord *merge.Coordinator, masterKey []byte, workflowID string, log *logger.Logger) (*Agent, error) {
	wf, err := s.GetWorkflow(ctx, workflowID)
	if err != nil {
		return nil, fmt.Errorf("orchestrator: load workflow %s: %w", workflowID, err)
	}

	var apiKey string
	if len(wf.EncryptedAPIKey) > 0 {
		plain, err := secrets.Decrypt(wf.EncryptedAPIKey, wf.APIKeyNonce, masterKey, []byte(wf.ID))
		if err != nil {
			return nil, fmt.Errorf("orchestrator: decrypt workflow %s api key: %w", workflowID, err)
		}
		apiKey = string(plain)
	}

	llmClient, err := llmclient.New(llmclient.Config{
		APIKey:  apiKey,
		BaseURL: wf.OrchestratorBaseURL,
		Model:   wf.OrchestratorModel,
	})
	if err != nil {
		return nil, fmt.Errorf("orchestrator: build llm client for workflow %s: %w", workflowID, err)
	}

	state, err := RecoverWorkflow(ctx, s, workflowID)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("orchestrator: recover workflow %s: %w", workflowID, err)
	}
	if state == nil {
		state = NewState(workflowID, SystemPrompt)
	}

	a := &Agent{
		workflowID: workflowID,
		store:      s,
		bus:        eventBus,
		llm:        llmClient,
		launcher:   launcher,
		merge:      mergeCoord,
		log:        log,
		state:      state,
	}

	sub, err := eventBus.Subscribe(bus.WorkflowTopic(workflowID), a.handle)
	if err != nil {
		return nil, fmt.Errorf("orchestrator: subscribe workflow %s: %w", workflowID, err)
	}
	a.sub = sub
	return a, nil
}

// Stop unsubscribes the agent from its workflow topic.
func (a *Agent) Stop() {
	if a.sub != nil && a.sub.IsValid() {
		_ = a.sub.Unsubscribe()
	}
}

// handle dispatches one bus message. Handling is serialized per workflow
// (spec §5): a mutex stands in for what the runtime's cooperative scheduler
// would otherwise guarantee by construction, since the bus delivers to each
// subscriber on its own goroutine.
func (a *Agent) handle(ctx context.Context, event *bus.Event) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	switch event.Type {
	case bus.EventTerminalCompleted:
		return a.onTerminalCompleted(ctx, event)
	case bus.EventShutdown:
		a.Stop()
		return nil
	default:
		// GitEvent and status-update broadcasts are not acted on directly by
		// the agent (spec §4.11 step 3): GitEvent only matters to the
		// git-watcher that derives TerminalCompleted from it.
		return nil
	}
}

func (a *Agent) onTerminalCompleted(ctx context.Context, event *bus.Event) error {
	var completed gitwatcher.TerminalCompletedEvent
	if err := bus.Decode(event.Data, &completed); err != nil {
		if a.log != nil {
			a.log.Warn("orchestrator: malformed terminal completed event", zap.Error(err))
		}
		return nil
	}

	a.state.RunState = RunStateProcessing
	a.lastTaskID = completed.TaskID
	a.lastTerminalID = completed.TerminalID

	success := completed.Status == dbmodel.CompletionCompleted || completed.Status == dbmodel.CompletionReviewPass
	a.state.RecordTerminalOutcome(completed.TaskID, completed.TerminalID, completed.Status)

	terminalStatus := dbmodel.TerminalStatusCompleted
	if !success {
		terminalStatus = dbmodel.TerminalStatusFailed
	}
	if err := BroadcastTerminalStatus(ctx, a.store, a.bus, a.workflowID, completed.TerminalID, terminalStatus); err != nil {
		return err
	}
	if err := a.markGitEventProcessed(ctx, completed); err != nil {
		return err
	}

	prompt := fmt.Sprintf(
		"Terminal %s (task %s) finished with status %s on commit %s.",
		completed.TerminalID, completed.TaskID, completed.Status, completed.CommitHash,
	)
	a.state.AppendHistory(ConversationMessage{Role: "user", Content: prompt})

	response, err := a.llm.Chat(ctx, historyToMessages(a.state.ConversationHistory))
	if err != nil {
		a.state.ErrorCount++
		a.state.RunState = RunStateIdle
		if a.log != nil {
			a.log.Error("orchestrator: llm chat failed", zap.String("workflow_id", a.workflowID), zap.Error(err))
		}
		return SaveState(ctx, a.store, a.state)
	}
	if response.Usage != nil {
		a.state.TotalTokensUsed += response.Usage.TotalTokens
	}
	a.state.AppendHistory(ConversationMessage{Role: "assistant", Content: response.Content})

	if err := SaveState(ctx, a.store, a.state); err != nil {
		return err
	}

	inst, err := ParseInstruction([]byte(response.Content))
	if err != nil {
		// Malformed or unknown instruction: logged and ignored, no retry
		// (spec §4.11 step 4).
		if a.log != nil {
			a.log.Warn("orchestrator: unusable instruction", zap.String("workflow_id", a.workflowID), zap.Error(err))
		}
		a.state.RunState = RunStateIdle
		return nil
	}

	if err := a.execute(ctx, inst); err != nil {
		if a.log != nil {
			a.log.Error("orchestrator: instruction execution failed", zap.String("workflow_id", a.workflowID), zap.Error(err))
		}
	}
	a.state.RunState = RunStateIdle
	return nil
}

// markGitEventProcessed sets the originating GitEvent's process_status to
// processed (or failed) and processed_at, completing the transition gitwatcher
// left pending (spec §4.12).
func (a *Agent) markGitEventProcessed(ctx context.Context, completed gitwatcher.TerminalCompletedEvent) error {
	evt, err := a.store.GetGitEventByCommit(ctx, a.workflowID, completed.CommitHash)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil
		}
		return fmt.Errorf("orchestrator: load git event for commit %s: %w", completed.CommitHash, err)
	}
	now := time.Now().UTC()
	evt.ProcessedAt = &now
	if completed.Status == dbmodel.CompletionFailed {
		evt.ProcessStatus = dbmodel.GitEventFailed
	} else {
		evt.ProcessStatus = dbmodel.GitEventProcessed
	}
	if err := a.store.UpdateGitEvent(ctx, evt); err != nil {
		return fmt.Errorf("orchestrator: mark git event processed for commit %s: %w", completed.CommitHash, err)
	}
	return nil
}

// execute runs one parsed instruction (spec §4.11 step 5).
func (a *Agent) execute(ctx context.Context, inst *Instruction) error {
	switch inst.Kind {
	case InstructionSendToTerminal:
		return a.sendToTerminal(ctx, inst.SendToTerminal.TerminalID, inst.SendToTerminal.Message)
	case InstructionStartTask:
		return a.startTask(ctx, inst.StartTask)
	case InstructionReviewCode:
		msg := fmt.Sprintf("Review commit %s.", inst.ReviewCode.CommitHash)
		return a.sendToTerminal(ctx, inst.ReviewCode.TerminalID, msg)
	case InstructionFixIssues:
		return a.sendToTerminal(ctx, inst.FixIssues.TerminalID, formatIssues(inst.FixIssues.Issues))
	case InstructionMergeBranch:
		return a.mergeBranch(ctx, inst.MergeBranch)
	case InstructionPauseWorkflow:
		return BroadcastWorkflowStatus(ctx, a.store, a.bus, a.workflowID, dbmodel.WorkflowStatusPaused)
	case InstructionCompleteWorkflow:
		return a.completeWorkflow(ctx, inst.CompleteWorkflow)
	case InstructionFailWorkflow:
		err := HandleTerminalFailure(ctx, a.store, a.bus, a.workflowID, a.lastTaskID, a.lastTerminalID, inst.FailWorkflow.Reason)
		if err == nil {
			_ = ClearState(ctx, a.store, a.workflowID)
		}
		return err
	default:
		return fmt.Errorf("orchestrator: unhandled instruction kind %q", inst.Kind)
	}
}

func (a *Agent) sendToTerminal(ctx context.Context, terminalID, message string) error {
	t, err := a.store.GetTerminal(ctx, terminalID)
	if err != nil {
		return fmt.Errorf("orchestrator: load terminal %s: %w", terminalID, err)
	}
	if t.PTYSessionID == "" {
		return fmt.Errorf("orchestrator: terminal %s has no pty session", terminalID)
	}
	data, err := bus.Encode(TerminalMessageEvent{Message: message})
	if err != nil {
		return fmt.Errorf("orchestrator: encode terminal message: %w", err)
	}
	evt := bus.NewEvent(bus.EventTerminalMessage, "orchestrator", data)
	return a.bus.Publish(ctx, bus.TerminalTopic(t.PTYSessionID), evt)
}

// startTask transitions task to running, launching its first terminal if it
// has not yet been spawned, then forwards the agent's instruction text.
func (a *Agent) startTask(ctx context.Context, inst *StartTaskInstruction) error {
	if err := BroadcastTaskStatus(ctx, a.store, a.bus, a.workflowID, inst.TaskID, dbmodel.TaskStatusRunning); err != nil {
		return err
	}
	terms, err := a.store.ListTerminalsByTask(ctx, inst.TaskID)
	if err != nil {
		return fmt.Errorf("orchestrator: list terminals for task %s: %w", inst.TaskID, err)
	}
	if len(terms) == 0 {
		return fmt.Errorf("orchestrator: task %s has no terminals", inst.TaskID)
	}
	first := terms[0]
	if first.PTYSessionID == "" && a.launcher != nil {
		if _, err := a.launcher.LaunchTerminal(ctx, first); err != nil {
			return fmt.Errorf("orchestrator: launch terminal %s for task %s: %w", first.ID, inst.TaskID, err)
		}
	}
	return a.sendToTerminal(ctx, first.ID, inst.Instruction)
}

// mergeBranch finds the task owning SourceBranch and squash-merges it into
// TargetBranch via the merge coordinator.
func (a *Agent) mergeBranch(ctx context.Context, inst *MergeBranchInstruction) error {
	task, err := a.findTaskByBranch(ctx, inst.SourceBranch)
	if err != nil {
		return err
	}
	req, err := a.buildMergeRequest(ctx, task, inst.TargetBranch)
	if err != nil {
		return err
	}
	_, err = a.merge.MergeTaskBranch(ctx, req)
	return err
}

// completeWorkflow transitions the workflow to merging and squash-merges
// every task branch into the workflow's target branch, stopping at the
// first conflict (left for manual resolution, spec §4.14).
func (a *Agent) completeWorkflow(ctx context.Context, inst *CompleteWorkflowInstruction) error {
	if err := BroadcastWorkflowStatus(ctx, a.store, a.bus, a.workflowID, dbmodel.WorkflowStatusMerging); err != nil {
		return err
	}
	a.state.AppendHistory(ConversationMessage{Role: "system", Content: "completion summary: " + inst.Summary})

	wf, err := a.store.GetWorkflow(ctx, a.workflowID)
	if err != nil {
		return fmt.Errorf("orchestrator: load workflow %s: %w", a.workflowID, err)
	}
	tasks, err := a.store.ListTasksByWorkflow(ctx, a.workflowID)
	if err != nil {
		return fmt.Errorf("orchestrator: list tasks for workflow %s: %w", a.workflowID, err)
	}

	for _, task := range tasks {
		req, err := a.buildMergeRequest(ctx, task, wf.TargetBranch)
		if err != nil {
			return err
		}
		if _, err := a.merge.MergeTaskBranch(ctx, req); err != nil {
			return fmt.Errorf("orchestrator: merge task %s: %w", task.ID, err)
		}
	}
	return ClearState(ctx, a.store, a.workflowID)
}

func (a *Agent) findTaskByBranch(ctx context.Context, branch string) (*dbmodel.WorkflowTask, error) {
	tasks, err := a.store.ListTasksByWorkflow(ctx, a.workflowID)
	if err != nil {
		return nil, fmt.Errorf("orchestrator: list tasks for workflow %s: %w", a.workflowID, err)
	}
	for _, t := range tasks {
		if t.Branch == branch {
			return t, nil
		}
	}
	return nil, fmt.Errorf("orchestrator: no task with branch %q in workflow %s", branch, a.workflowID)
}

// buildMergeRequest resolves the project repo path and task worktree path
// (when worktree mode is enabled) into a merge.Request for task.
func (a *Agent) buildMergeRequest(ctx context.Context, task *dbmodel.WorkflowTask, targetBranch string) (merge.Request, error) {
	wf, err := a.store.GetWorkflow(ctx, a.workflowID)
	if err != nil {
		return merge.Request{}, fmt.Errorf("orchestrator: load workflow %s: %w", a.workflowID, err)
	}
	project, err := a.store.GetProject(ctx, wf.ProjectID)
	if err != nil {
		return merge.Request{}, fmt.Errorf("orchestrator: load project %s: %w", wf.ProjectID, err)
	}

	worktreePath := project.RepoPath
	if a.launcher != nil && a.launcher.worktrees != nil && a.launcher.worktrees.IsEnabled() {
		terms, err := a.store.ListTerminalsByTask(ctx, task.ID)
		if err != nil {
			return merge.Request{}, fmt.Errorf("orchestrator: list terminals for task %s: %w", task.ID, err)
		}
		for _, t := range terms {
			wt, err := a.launcher.worktrees.GetBySessionID(ctx, t.ID)
			if err == nil {
				worktreePath = wt.Path
				break
			}
		}
	}

	return merge.Request{
		WorkflowID:       a.workflowID,
		TaskID:           task.ID,
		TaskBranch:       task.Branch,
		TargetBranch:     targetBranch,
		BaseRepoPath:     project.RepoPath,
		TaskWorktreePath: worktreePath,
		CommitMessage:    fmt.Sprintf("Merge task %s (%s)", task.Name, task.Branch),
	}, nil
}

func historyToMessages(history []ConversationMessage) []llmclient.Message {
	out := make([]llmclient.Message, len(history))
	for i, m := range history {
		out[i] = llmclient.Message{Role: m.Role, Content: m.Content}
	}
	return out
}

func formatIssues(issues []dbmodel.ReviewIssue) string {
	msg := "Fix the following issues:\n"
	for _, iss := range issues {
		msg += fmt.Sprintf("- line %d [%s]: %s\n", iss.Line, iss.Severity, iss.Message)
	}
	return msg
}
