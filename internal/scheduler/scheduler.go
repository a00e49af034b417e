package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/go-co-op/gocron/v2"
)

// JobStatus represents the status of a job.
type JobStatus string

const (
	JobStatusScheduled JobStatus = "scheduled"
	JobStatusRunning   JobStatus = "running"
	JobStatusCompleted JobStatus = "completed"
	JobStatusFailed    JobStatus = "failed"
)

// JobInfo is a snapshot of a scheduled job.
type JobInfo struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	Schedule   string    `json:"schedule"`
	Status     JobStatus `json:"status"`
	LastRun    time.Time `json:"lastRun"`
	NextRun    time.Time `json:"nextRun"`
	RunCount   int       `json:"runCount"`
	ErrorCount int       `json:"errorCount"`
	LastError  string    `json:"lastError,omitempty"`
}

// JobFunc represents a function that can be scheduled.
type JobFunc func(ctx context.Context) error

type job struct {
	info   JobInfo
	gocron gocron.Job
}

// Scheduler runs singleton jobs on a gocron scheduler.
type Scheduler struct {
	gocron gocron.Scheduler
	mu     sync.RWMutex
	jobs   map[string]*job
	ctx    context.Context
	cancel context.CancelFunc
}

// New creates a new scheduler.
func New() (*Scheduler, error) {
	s, err := gocron.NewScheduler(gocron.WithLogger(newLogger()))
	if err != nil {
		return nil, fmt.Errorf("failed to create gocron scheduler: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		gocron: s,
		jobs:   make(map[string]*job),
		ctx:    ctx,
		cancel: cancel,
	}, nil
}

// Start starts the scheduler.
func (s *Scheduler) Start() {
	log.Info("Starting job scheduler")
	s.gocron.Start()

	s.mu.Lock()
	defer s.mu.Unlock()
	for id, j := range s.jobs {
		if next, err := j.gocron.NextRun(); err == nil {
			j.info.NextRun = next
			log.Debug("Next run time for job", "id", id, "nextRun", next)
		}
	}
}

// Stop cancels running jobs and shuts the scheduler down.
func (s *Scheduler) Stop() error {
	log.Info("Stopping job scheduler")
	s.cancel()
	return s.gocron.Shutdown()
}

// AddJob registers a job that never runs concurrently with itself.
func (s *Scheduler) AddJob(id, name, schedule string, def gocron.JobDefinition, fn JobFunc) error {
	gj, err := s.gocron.NewJob(def,
		gocron.NewTask(s.wrap(id, fn)),
		gocron.WithName(name),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		return fmt.Errorf("failed to create job %s: %w", id, err)
	}

	s.mu.Lock()
	s.jobs[id] = &job{
		info: JobInfo{
			ID:       id,
			Name:     name,
			Schedule: schedule,
			Status:   JobStatusScheduled,
		},
		gocron: gj,
	}
	s.mu.Unlock()

	log.Info("Added job to scheduler", "id", id, "name", name, "schedule", schedule)
	return nil
}

// RunJobNow triggers a job outside of its schedule.
func (s *Scheduler) RunJobNow(id string) error {
	s.mu.RLock()
	j, ok := s.jobs[id]
	s.mu.RUnlock()
	if !ok {
		return fmt.Errorf("job %s not found", id)
	}

	log.Info("Manually triggering job", "id", id)
	if err := j.gocron.RunNow(); err != nil {
		return fmt.Errorf("failed to trigger job %s: %w", id, err)
	}
	return nil
}

// GetJob returns a snapshot of the job.
func (s *Scheduler) GetJob(id string) (JobInfo, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	j, ok := s.jobs[id]
	if !ok {
		return JobInfo{}, false
	}
	return j.info, true
}

func (s *Scheduler) wrap(id string, fn JobFunc) func() {
	return func() {
		s.update(id, func(info *JobInfo) {
			info.Status = JobStatusRunning
			info.LastRun = time.Now()
			info.RunCount++
		})

		err := fn(s.ctx)

		s.update(id, func(info *JobInfo) {
			if err != nil {
				log.Error("Job failed", "id", id, "error", err)
				info.Status = JobStatusFailed
				info.ErrorCount++
				info.LastError = err.Error()
				return
			}
			log.Debug("Job completed", "id", id)
			info.Status = JobStatusCompleted
			info.LastError = ""
		})
	}
}

func (s *Scheduler) update(id string, fn func(*JobInfo)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	j, ok := s.jobs[id]
	if !ok {
		return
	}
	fn(&j.info)
	if next, err := j.gocron.NextRun(); err == nil {
		j.info.NextRun = next
	}
}
