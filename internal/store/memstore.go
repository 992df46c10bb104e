package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/huanchong-99/gitcortex/internal/dbmodel"
)

// memStore is an in-memory Store for unit tests that exercise orchestrator
// logic without a real database.
type memStore struct {
	mu        sync.Mutex
	projects  map[string]*dbmodel.Project
	workflows map[string]*dbmodel.Workflow
	tasks     map[string]*dbmodel.WorkflowTask
	terminals map[string]*dbmodel.Terminal
	gitEvents map[string]*dbmodel.GitEvent
	models    map[string]*dbmodel.ModelConfig
}

// NewMemStore returns an empty in-memory Store.
func NewMemStore() Store {
	return &memStore{
		projects:  make(map[string]*dbmodel.Project),
		workflows: make(map[string]*dbmodel.Workflow),
		tasks:     make(map[string]*dbmodel.WorkflowTask),
		terminals: make(map[string]*dbmodel.Terminal),
		gitEvents: make(map[string]*dbmodel.GitEvent),
		models:    make(map[string]*dbmodel.ModelConfig),
	}
}

func (m *memStore) CreateProject(_ context.Context, p *dbmodel.Project) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *p
	m.projects[p.ID] = &cp
	return nil
}

func (m *memStore) GetProject(_ context.Context, id string) (*dbmodel.Project, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.projects[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (m *memStore) CreateWorkflow(_ context.Context, w *dbmodel.Workflow) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *w
	m.workflows[w.ID] = &cp
	return nil
}

func (m *memStore) GetWorkflow(_ context.Context, id string) (*dbmodel.Workflow, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	w, ok := m.workflows[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *w
	return &cp, nil
}

func (m *memStore) ListWorkflowsByStatus(_ context.Context, status dbmodel.WorkflowStatus) ([]*dbmodel.Workflow, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*dbmodel.Workflow
	for _, w := range m.workflows {
		if w.Status == status {
			cp := *w
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *memStore) UpdateWorkflowStatus(_ context.Context, id string, status dbmodel.WorkflowStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	w, ok := m.workflows[id]
	if !ok {
		return ErrNotFound
	}
	w.Status = status
	w.UpdatedAt = time.Now().UTC()
	return nil
}

func (m *memStore) SaveWorkflowState(_ context.Context, id string, state []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	w, ok := m.workflows[id]
	if !ok {
		return ErrNotFound
	}
	w.OrchestratorState = append([]byte(nil), state...)
	return nil
}

func (m *memStore) LoadWorkflowState(_ context.Context, id string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	w, ok := m.workflows[id]
	if !ok {
		return nil, ErrNotFound
	}
	return append([]byte(nil), w.OrchestratorState...), nil
}

func (m *memStore) ClearWorkflowState(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	w, ok := m.workflows[id]
	if !ok {
		return ErrNotFound
	}
	w.OrchestratorState = nil
	return nil
}

func (m *memStore) CreateTask(_ context.Context, t *dbmodel.WorkflowTask) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *t
	m.tasks[t.ID] = &cp
	return nil
}

func (m *memStore) GetTask(_ context.Context, id string) (*dbmodel.WorkflowTask, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tasks[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *t
	return &cp, nil
}

func (m *memStore) ListTasksByWorkflow(_ context.Context, workflowID string) ([]*dbmodel.WorkflowTask, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*dbmodel.WorkflowTask
	for _, t := range m.tasks {
		if t.WorkflowID == workflowID {
			cp := *t
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].OrderIndex < out[j].OrderIndex })
	return out, nil
}

func (m *memStore) UpdateTaskStatus(_ context.Context, id string, status dbmodel.TaskStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tasks[id]
	if !ok {
		return ErrNotFound
	}
	t.Status = status
	t.UpdatedAt = time.Now().UTC()
	return nil
}

func (m *memStore) CreateTerminal(_ context.Context, t *dbmodel.Terminal) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *t
	m.terminals[t.ID] = &cp
	return nil
}

func (m *memStore) GetTerminal(_ context.Context, id string) (*dbmodel.Terminal, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.terminals[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *t
	return &cp, nil
}

func (m *memStore) ListTerminalsByTask(_ context.Context, taskID string) ([]*dbmodel.Terminal, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*dbmodel.Terminal
	for _, t := range m.terminals {
		if t.WorkflowTaskID == taskID {
			cp := *t
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].OrderIndex < out[j].OrderIndex })
	return out, nil
}

func (m *memStore) ListTerminalsByWorkflow(_ context.Context, workflowID string) ([]*dbmodel.Terminal, error) {
	m.mu.Lock()
	taskIDs := make(map[string]bool)
	for _, t := range m.tasks {
		if t.WorkflowID == workflowID {
			taskIDs[t.ID] = true
		}
	}
	var out []*dbmodel.Terminal
	for _, t := range m.terminals {
		if taskIDs[t.WorkflowTaskID] {
			cp := *t
			out = append(out, &cp)
		}
	}
	m.mu.Unlock()
	sort.Slice(out, func(i, j int) bool { return out[i].OrderIndex < out[j].OrderIndex })
	return out, nil
}

func (m *memStore) ListActiveTerminals(_ context.Context) ([]*dbmodel.Terminal, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	active := map[dbmodel.TerminalStatus]bool{
		dbmodel.TerminalStatusStarting: true, dbmodel.TerminalStatusStarted: true,
		dbmodel.TerminalStatusWaiting: true, dbmodel.TerminalStatusWorking: true,
	}
	var out []*dbmodel.Terminal
	for _, t := range m.terminals {
		if active[t.Status] {
			cp := *t
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *memStore) UpdateTerminalStatus(_ context.Context, id string, status dbmodel.TerminalStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.terminals[id]
	if !ok {
		return ErrNotFound
	}
	t.Status = status
	return nil
}

func (m *memStore) UpdateTerminalProcess(_ context.Context, id string, processID int, ptySessionID, sessionID, executionProcessID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.terminals[id]
	if !ok {
		return ErrNotFound
	}
	t.ProcessID = processID
	t.PTYSessionID = ptySessionID
	t.SessionID = sessionID
	t.ExecutionProcessID = executionProcessID
	return nil
}

func (m *memStore) UpdateTerminalLastCommit(_ context.Context, id, commitHash, commitMessage string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.terminals[id]
	if !ok {
		return ErrNotFound
	}
	t.LastCommitHash = commitHash
	t.LastCommitMessage = commitMessage
	return nil
}

func (m *memStore) ResetTerminalProcess(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.terminals[id]
	if !ok {
		return ErrNotFound
	}
	t.Status = dbmodel.TerminalStatusNotStarted
	t.ProcessID = 0
	t.PTYSessionID = ""
	t.SessionID = ""
	t.ExecutionProcessID = ""
	return nil
}

func (m *memStore) CreateGitEvent(_ context.Context, e *dbmodel.GitEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := e.WorkflowID + "/" + e.CommitHash
	if _, exists := m.gitEvents[key]; exists {
		return fmt.Errorf("store: git event for commit %s already recorded", e.CommitHash)
	}
	cp := *e
	m.gitEvents[key] = &cp
	return nil
}

func (m *memStore) GetGitEventByCommit(_ context.Context, workflowID, commitHash string) (*dbmodel.GitEvent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.gitEvents[workflowID+"/"+commitHash]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *e
	return &cp, nil
}

func (m *memStore) UpdateGitEvent(_ context.Context, e *dbmodel.GitEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := e.WorkflowID + "/" + e.CommitHash
	existing, ok := m.gitEvents[key]
	if !ok {
		return ErrNotFound
	}
	cp := *e
	cp.CreatedAt = existing.CreatedAt
	m.gitEvents[key] = &cp
	return nil
}

func (m *memStore) GetCliType(_ context.Context, id string) (dbmodel.CliType, error) {
	switch dbmodel.CliType(id) {
	case dbmodel.CliClaude, dbmodel.CliCodex, dbmodel.CliGemini:
		return dbmodel.CliType(id), nil
	default:
		return "", fmt.Errorf("%w: unknown cli type %q", ErrNotFound, id)
	}
}

func (m *memStore) GetModelConfig(_ context.Context, id string) (*dbmodel.ModelConfig, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	mc, ok := m.models[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *mc
	return &cp, nil
}

func (m *memStore) ListModelConfigs(_ context.Context, cli dbmodel.CliType) ([]*dbmodel.ModelConfig, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*dbmodel.ModelConfig
	for _, mc := range m.models {
		if mc.Cli == cli {
			cp := *mc
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Label < out[j].Label })
	return out, nil
}

func (m *memStore) Close() error { return nil }

// SeedModelConfig registers a ModelConfig directly against a Store returned
// by NewMemStore, for test setup. It panics if s is not a memStore.
func SeedModelConfig(s Store, mc *dbmodel.ModelConfig) {
	ms := s.(*memStore)
	ms.mu.Lock()
	defer ms.mu.Unlock()
	cp := *mc
	ms.models[mc.ID] = &cp
}
