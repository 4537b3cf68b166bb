package interfaces

import "time"

// JobStatus is the observable state of one scheduled maintenance job
type JobStatus struct {
	Name        string
	Enabled     bool
	Schedule    string // Six-field cron expression with a seconds field
	Description string
	LastRun     *time.Time
	NextRun     *time.Time
	IsRunning   bool
	LastError   string
}

// SchedulerService runs cron-scheduled maintenance: badger value-log GC,
// the queue retention purge and the orphaned media sweep register against
// it at startup
type SchedulerService interface {
	// Start begins executing registered jobs on their schedules
	Start() error

	// Stop halts the scheduler, waiting for running jobs to finish
	Stop() error

	// IsRunning reports whether the scheduler is active
	IsRunning() bool

	// RegisterJob adds a named job. Registration fails on schedules
	// firing more often than once a minute.
	RegisterJob(name string, schedule string, description string, handler func() error) error

	// TriggerNow runs a registered job immediately, off-schedule
	TriggerNow(name string) error

	// EnableJob resumes a disabled job's schedule
	EnableJob(name string) error

	// DisableJob takes a job off its schedule without unregistering it
	DisableJob(name string) error

	// GetJobStatus returns the status of a specific job
	GetJobStatus(name string) (*JobStatus, error)

	// GetAllJobStatuses returns the status of every registered job
	GetAllJobStatuses() map[string]*JobStatus
}
