// Package storage provides persistence backends for schedules and run
// records: in-memory for tests and development, a JSON file with periodic
// sync, and S3 for shared deployments. All backends implement
// schedule.Store.
package storage

import (
	"sort"
	"sync"

	"github.com/quadrabot/quadra/pkg/runlog"
	"github.com/quadrabot/quadra/pkg/schedule"
)

// MemoryStore implements in-memory persistence. Data is lost on restart.
type MemoryStore struct {
	schedules map[string]*schedule.Schedule
	runs      map[string]*runlog.Run
	mu        sync.RWMutex
}

// NewMemoryStore creates a new in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		schedules: make(map[string]*schedule.Schedule),
		runs:      make(map[string]*runlog.Run),
	}
}

// SaveSchedule stores a schedule.
func (m *MemoryStore) SaveSchedule(s *schedule.Schedule) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if s.ID == "" {
		return schedule.ErrInvalidSchedule{Field: "id", Message: "id is required"}
	}
	copied := *s
	m.schedules[s.ID] = &copied
	return nil
}

// LoadSchedule retrieves a schedule by ID.
func (m *MemoryStore) LoadSchedule(id string) (*schedule.Schedule, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	s, ok := m.schedules[id]
	if !ok {
		return nil, schedule.ErrScheduleNotFound{ID: id}
	}
	copied := *s
	return &copied, nil
}

// LoadSchedules retrieves all schedules.
func (m *MemoryStore) LoadSchedules() ([]*schedule.Schedule, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]*schedule.Schedule, 0, len(m.schedules))
	for _, s := range m.schedules {
		copied := *s
		out = append(out, &copied)
	}
	return out, nil
}

// DeleteSchedule removes a schedule by ID.
func (m *MemoryStore) DeleteSchedule(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.schedules, id)
	return nil
}

// SaveRun stores a run record.
func (m *MemoryStore) SaveRun(run *runlog.Run) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if run.ID == "" {
		return schedule.ErrRunNotFound{ID: ""}
	}
	copied := *run
	m.runs[run.ID] = &copied
	return nil
}

// LoadRun retrieves a run record by ID.
func (m *MemoryStore) LoadRun(id string) (*runlog.Run, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	run, ok := m.runs[id]
	if !ok {
		return nil, schedule.ErrRunNotFound{ID: id}
	}
	copied := *run
	return &copied, nil
}

// LoadRuns retrieves run records, newest first.
func (m *MemoryStore) LoadRuns(scheduleID string) ([]*runlog.Run, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]*runlog.Run, 0, len(m.runs))
	for _, run := range m.runs {
		if scheduleID != "" && run.ScheduleID != scheduleID {
			continue
		}
		copied := *run
		out = append(out, &copied)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].ExecutedAt.After(out[j].ExecutedAt)
	})
	return out, nil
}

// Close is a no-op for the in-memory store.
func (m *MemoryStore) Close() error {
	return nil
}
