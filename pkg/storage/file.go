package storage

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/quadrabot/quadra/pkg/runlog"
	"github.com/quadrabot/quadra/pkg/schedule"
)

// FileStore implements file-based persistence. The whole state is held in
// memory and written to a single JSON file with an atomic rename; an
// optional background ticker syncs periodically as well.
type FileStore struct {
	filePath       string
	encryptSecrets bool
	key            []byte
	schedules      map[string]*schedule.Schedule
	runs           map[string]*runlog.Run
	mu             sync.RWMutex
	syncInterval   time.Duration
	stopSync       chan struct{}
}

// NewFileStore creates a file store, loading any existing state.
func NewFileStore(filePath string, syncIntervalSeconds int, encryptSecrets bool) (*FileStore, error) {
	fs := &FileStore{
		filePath:       filePath,
		encryptSecrets: encryptSecrets,
		schedules:      make(map[string]*schedule.Schedule),
		runs:           make(map[string]*runlog.Run),
		syncInterval:   time.Duration(syncIntervalSeconds) * time.Second,
		stopSync:       make(chan struct{}),
	}
	if encryptSecrets {
		fs.key = encryptionKey()
	}

	dir := filepath.Dir(filePath)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create storage directory: %w", err)
	}

	if err := fs.loadFromFile(); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to load existing state: %w", err)
	}

	if syncIntervalSeconds > 0 {
		go fs.periodicSync()
	}
	return fs, nil
}

// SaveSchedule stores a schedule and syncs to file.
func (fs *FileStore) SaveSchedule(s *schedule.Schedule) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	if s.ID == "" {
		return schedule.ErrInvalidSchedule{Field: "id", Message: "id is required"}
	}
	if fs.encryptSecrets {
		s = encryptScheduleSecrets(s, fs.key)
	} else {
		copied := *s
		s = &copied
	}
	fs.schedules[s.ID] = s
	return fs.syncToFile()
}

// LoadSchedule retrieves a schedule by ID.
func (fs *FileStore) LoadSchedule(id string) (*schedule.Schedule, error) {
	fs.mu.RLock()
	defer fs.mu.RUnlock()

	s, ok := fs.schedules[id]
	if !ok {
		return nil, schedule.ErrScheduleNotFound{ID: id}
	}
	if fs.encryptSecrets {
		return decryptScheduleSecrets(s, fs.key), nil
	}
	copied := *s
	return &copied, nil
}

// LoadSchedules retrieves all schedules.
func (fs *FileStore) LoadSchedules() ([]*schedule.Schedule, error) {
	fs.mu.RLock()
	defer fs.mu.RUnlock()

	out := make([]*schedule.Schedule, 0, len(fs.schedules))
	for _, s := range fs.schedules {
		if fs.encryptSecrets {
			out = append(out, decryptScheduleSecrets(s, fs.key))
			continue
		}
		copied := *s
		out = append(out, &copied)
	}
	return out, nil
}

// DeleteSchedule removes a schedule and syncs to file.
func (fs *FileStore) DeleteSchedule(id string) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	delete(fs.schedules, id)
	return fs.syncToFile()
}

// SaveRun stores a run record and syncs to file.
func (fs *FileStore) SaveRun(run *runlog.Run) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	if run.ID == "" {
		return fmt.Errorf("run ID cannot be empty")
	}
	copied := *run
	fs.runs[run.ID] = &copied
	return fs.syncToFile()
}

// LoadRun retrieves a run record by ID.
func (fs *FileStore) LoadRun(id string) (*runlog.Run, error) {
	fs.mu.RLock()
	defer fs.mu.RUnlock()

	run, ok := fs.runs[id]
	if !ok {
		return nil, schedule.ErrRunNotFound{ID: id}
	}
	copied := *run
	return &copied, nil
}

// LoadRuns retrieves run records, newest first.
func (fs *FileStore) LoadRuns(scheduleID string) ([]*runlog.Run, error) {
	fs.mu.RLock()
	defer fs.mu.RUnlock()

	out := make([]*runlog.Run, 0, len(fs.runs))
	for _, run := range fs.runs {
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

// Close stops the sync routine and performs a final sync.
func (fs *FileStore) Close() error {
	close(fs.stopSync)

	fs.mu.Lock()
	defer fs.mu.Unlock()

	return fs.syncToFile()
}

// periodicSync runs periodic synchronization to disk.
func (fs *FileStore) periodicSync() {
	ticker := time.NewTicker(fs.syncInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			fs.mu.Lock()
			if err := fs.syncToFile(); err != nil {
				log.Printf("Error syncing state to file: %v", err)
			}
			fs.mu.Unlock()
		case <-fs.stopSync:
			return
		}
	}
}

type fileState struct {
	Schedules []*schedule.Schedule `json:"schedules"`
	Runs      []*runlog.Run        `json:"runs"`
	UpdatedAt time.Time            `json:"updated_at"`
}

// syncToFile writes the state to disk via a temp file and atomic rename.
func (fs *FileStore) syncToFile() error {
	tempFile := fs.filePath + ".tmp"
	file, err := os.Create(tempFile)
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	defer file.Close()

	data := fileState{
		Schedules: make([]*schedule.Schedule, 0, len(fs.schedules)),
		Runs:      make([]*runlog.Run, 0, len(fs.runs)),
		UpdatedAt: time.Now(),
	}
	for _, s := range fs.schedules {
		data.Schedules = append(data.Schedules, s)
	}
	for _, run := range fs.runs {
		data.Runs = append(data.Runs, run)
	}

	encoder := json.NewEncoder(file)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(&data); err != nil {
		os.Remove(tempFile)
		return fmt.Errorf("failed to encode state: %w", err)
	}

	if err := file.Sync(); err != nil {
		os.Remove(tempFile)
		return fmt.Errorf("failed to sync file: %w", err)
	}

	if err := os.Rename(tempFile, fs.filePath); err != nil {
		os.Remove(tempFile)
		return fmt.Errorf("failed to rename temp file: %w", err)
	}
	return nil
}

// loadFromFile reads the state from disk.
func (fs *FileStore) loadFromFile() error {
	file, err := os.Open(fs.filePath)
	if err != nil {
		return err
	}
	defer file.Close()

	var data fileState
	if err := json.NewDecoder(file).Decode(&data); err != nil {
		return fmt.Errorf("failed to decode state: %w", err)
	}

	fs.schedules = make(map[string]*schedule.Schedule, len(data.Schedules))
	for _, s := range data.Schedules {
		fs.schedules[s.ID] = s
	}
	fs.runs = make(map[string]*runlog.Run, len(data.Runs))
	for _, run := range data.Runs {
		fs.runs[run.ID] = run
	}
	return nil
}
