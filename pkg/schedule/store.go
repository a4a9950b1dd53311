package schedule

import (
	"github.com/quadrabot/quadra/pkg/runlog"
)

// Store defines the persistence interface the manager runs on. Backends
// live in pkg/storage (memory, file, S3).
type Store interface {
	// SaveSchedule persists a schedule, overwriting any existing record
	SaveSchedule(s *Schedule) error

	// LoadSchedule retrieves a schedule by ID
	LoadSchedule(id string) (*Schedule, error)

	// LoadSchedules retrieves all schedules
	LoadSchedules() ([]*Schedule, error)

	// DeleteSchedule removes a schedule by ID
	DeleteSchedule(id string) error

	// SaveRun persists a run record
	SaveRun(run *runlog.Run) error

	// LoadRun retrieves a run record by ID
	LoadRun(id string) (*runlog.Run, error)

	// LoadRuns retrieves run records, newest first; scheduleID "" means all
	LoadRuns(scheduleID string) ([]*runlog.Run, error)

	// Close cleans up any resources
	Close() error
}
