package state

import (
	"fmt"
	"sync"
	"time"

	"github.com/five82/labbcat/model"
)

// Snapshot represents the latest task statuses available to the UI.
type Snapshot struct {
	// Tasks holds one status per watched task, in watch order.
	Tasks               []model.TaskStatus
	LastUpdated         time.Time
	LastError           error
	ConsecutiveFailures int // Number of consecutive poll failures
}

// IsOffline returns true when the server has been unreachable for multiple polls.
func (s Snapshot) IsOffline() bool {
	return s.ConsecutiveFailures >= 2
}

// Done reports whether every watched task has stopped running.
func (s Snapshot) Done() bool {
	if len(s.Tasks) == 0 {
		return false
	}
	for _, t := range s.Tasks {
		if t.Running {
			return false
		}
	}
	return true
}

// Store coordinates concurrent updates to the snapshot.
type Store struct {
	mu       sync.RWMutex
	snapshot Snapshot
}

// Update replaces the stored statuses. When err is non-nil the previous data
// is kept but the error is recorded for visibility.
func (s *Store) Update(tasks []model.TaskStatus, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err != nil {
		s.snapshot.LastError = err
		s.snapshot.LastUpdated = time.Now()
		s.snapshot.ConsecutiveFailures++
		return
	}

	s.snapshot.Tasks = cloneTasks(tasks)
	s.snapshot.LastError = nil
	s.snapshot.LastUpdated = time.Now()
	s.snapshot.ConsecutiveFailures = 0
}

// Snapshot returns a copy of the current snapshot.
func (s *Store) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap := s.snapshot
	snap.Tasks = cloneTasks(s.snapshot.Tasks)
	if s.snapshot.LastError != nil {
		snap.LastError = fmt.Errorf("%w", s.snapshot.LastError)
	}
	return snap
}

func cloneTasks(tasks []model.TaskStatus) []model.TaskStatus {
	if len(tasks) == 0 {
		return nil
	}
	dup := make([]model.TaskStatus, len(tasks))
	copy(dup, tasks)
	return dup
}
