package store

import (
	"context"
	"sort"
	"sync"

	"github.com/codeready-toolchain/tarsy/pkg/models"
)

// MemStore is an in-memory Store, used by unit tests across packages that
// depend on the store contract without standing up Postgres. It implements
// the same CAS semantics as pkg/pgstore so callers can be tested against
// either interchangeably.
type MemStore struct {
	mu      sync.Mutex
	tasks   map[string]models.Task
	agents  map[string]models.Agent
	logs    map[string][]models.ExecutionLog
	reviews map[string]models.CodeReview // keyed by TaskID
}

// NewMemStore constructs an empty in-memory Store.
func NewMemStore() *MemStore {
	return &MemStore{
		tasks:   make(map[string]models.Task),
		agents:  make(map[string]models.Agent),
		logs:    make(map[string][]models.ExecutionLog),
		reviews: make(map[string]models.CodeReview),
	}
}

func (s *MemStore) CreateTask(_ context.Context, t *models.Task) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tasks[t.ID] = *t
	return nil
}

func (s *MemStore) GetTask(_ context.Context, id string) (*models.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tasks[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := t
	return &cp, nil
}

func (s *MemStore) ListTasks(_ context.Context, filters models.TaskFilters) ([]models.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Task
	for _, t := range s.tasks {
		if filters.Status != "" && string(t.Status) != filters.Status {
			continue
		}
		if filters.Agent != "" && (t.AssignedAgentID == nil || *t.AssignedAgentID != filters.Agent) {
			continue
		}
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	if filters.Limit > 0 && len(out) > filters.Limit {
		out = out[:filters.Limit]
	}
	return out, nil
}

func (s *MemStore) UpdateTask(_ context.Context, t *models.Task) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.tasks[t.ID]; !ok {
		return ErrNotFound
	}
	s.tasks[t.ID] = *t
	return nil
}

func (s *MemStore) CompareAndSwapStatus(_ context.Context, id string, expected, next models.TaskStatus, mutate func(*models.Task)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tasks[id]
	if !ok {
		return ErrNotFound
	}
	if t.Status != expected {
		return ErrCASConflict
	}
	t.Status = next
	if mutate != nil {
		mutate(&t)
	}
	s.tasks[id] = t
	return nil
}

func (s *MemStore) ListPendingByPriority(_ context.Context, limit int) ([]models.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Task
	for _, t := range s.tasks {
		if t.Status == models.TaskStatusPending {
			out = append(out, t)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Priority != out[j].Priority {
			return out[i].Priority > out[j].Priority
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *MemStore) CreateAgent(_ context.Context, a *models.Agent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.agents[a.ID] = *a
	return nil
}

func (s *MemStore) GetAgent(_ context.Context, id string) (*models.Agent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.agents[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := a
	return &cp, nil
}

func (s *MemStore) ListAgents(_ context.Context) ([]models.Agent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Agent
	for _, a := range s.agents {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *MemStore) UpdateAgent(_ context.Context, a *models.Agent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.agents[a.ID]; !ok {
		return ErrNotFound
	}
	s.agents[a.ID] = *a
	return nil
}

func (s *MemStore) IdleAgentsByKind(_ context.Context, kind models.AgentKind) ([]models.Agent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Agent
	for _, a := range s.agents {
		if a.Kind == kind && a.Status == models.AgentStatusIdle {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *MemStore) AppendLog(_ context.Context, entry *models.ExecutionLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if entry.Step == 0 {
		entry.Step = len(s.logs[entry.TaskID]) + 1
	}
	s.logs[entry.TaskID] = append(s.logs[entry.TaskID], *entry)
	return nil
}

func (s *MemStore) ListLogsForTask(_ context.Context, taskID string) ([]models.ExecutionLog, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.ExecutionLog, len(s.logs[taskID]))
	copy(out, s.logs[taskID])
	return out, nil
}

func (s *MemStore) CreateReview(_ context.Context, r *models.CodeReview) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reviews[r.TaskID] = *r
	return nil
}

func (s *MemStore) GetReviewForTask(_ context.Context, taskID string) (*models.CodeReview, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.reviews[taskID]
	if !ok {
		return nil, ErrNotFound
	}
	cp := r
	return &cp, nil
}

func (s *MemStore) UpdateReview(_ context.Context, r *models.CodeReview) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.reviews[r.TaskID]; !ok {
		return ErrNotFound
	}
	s.reviews[r.TaskID] = *r
	return nil
}

var _ Store = (*MemStore)(nil)
