package installer

import (
	"context"
	"sync"

	"dropsclient/internal/logging"
)

// Update is what the manager publishes to the run loop for every
// change on any task: progress, completion (Release set) or failure
// (Err set). The loop owns all config mutation; the manager never
// touches persisted state.
type Update struct {
	GameNameID string
	Percent    float64
	Release    *InstalledRelease
	Err        *Error
}

// Task is a snapshot of one in-flight or errored download.
type Task struct {
	Request Request
	Percent float64
	Err     *Error
	cancel  context.CancelFunc
}

// Manager enforces the one-pipeline-per-game invariant and funnels
// all pipeline events into a single update channel.
type Manager struct {
	mu      sync.Mutex
	tasks   map[string]*Task
	updates chan Update
	logger  *logging.Logger
}

func NewManager() *Manager {
	return &Manager{
		tasks:   make(map[string]*Task),
		updates: make(chan Update, 16),
		logger:  logging.GetGlobalLogger(),
	}
}

// Updates is consumed by the run loop.
func (m *Manager) Updates() <-chan Update {
	return m.updates
}

// Begin starts a pipeline for the request unless one is already
// running for the same game. A duplicate request is a no-op and
// returns false.
func (m *Manager) Begin(ctx context.Context, req Request) bool {
	m.mu.Lock()
	if _, exists := m.tasks[req.GameNameID]; exists {
		m.mu.Unlock()
		m.logger.Warn("Download already in progress for %s, ignoring request", req.GameNameID)
		return false
	}

	taskCtx, cancel := context.WithCancel(ctx)
	task := &Task{Request: req, cancel: cancel}
	m.tasks[req.GameNameID] = task
	m.mu.Unlock()

	go m.watch(taskCtx, task)
	return true
}

// watch forwards one pipeline's events into the shared update channel
// and keeps the task snapshot current.
func (m *Manager) watch(ctx context.Context, task *Task) {
	events, errc := task.Request.Start(ctx)
	id := task.Request.GameNameID

	for ev := range events {
		m.mu.Lock()
		task.Percent = ev.Percent
		m.mu.Unlock()
		m.updates <- Update{GameNameID: id, Percent: ev.Percent, Release: ev.Release}
	}

	if err := <-errc; err != nil {
		m.mu.Lock()
		task.Err = err
		m.mu.Unlock()
		m.logger.Error("Download of %s failed: %v", id, err)
		m.updates <- Update{GameNameID: id, Err: err}
		// Errored tasks stay visible until dismissed.
		return
	}

	m.mu.Lock()
	task.cancel()
	delete(m.tasks, id)
	m.mu.Unlock()
}

// Dismiss drops a task, cancelling it if still running. Used to clear
// an errored task after the user acknowledged it.
func (m *Manager) Dismiss(gameNameID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if task, ok := m.tasks[gameNameID]; ok {
		task.cancel()
		delete(m.tasks, gameNameID)
	}
}

// Active reports whether a pipeline exists for the game, errored ones
// included.
func (m *Manager) Active(gameNameID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.tasks[gameNameID]
	return ok
}

// Snapshot returns the current state of one task.
func (m *Manager) Snapshot(gameNameID string) (Task, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	task, ok := m.tasks[gameNameID]
	if !ok {
		return Task{}, false
	}
	return Task{Request: task.Request, Percent: task.Percent, Err: task.Err}, true
}
