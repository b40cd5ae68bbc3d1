// Package scheduler runs persisted cron jobs, sending each job's command
// through the engine and recording the outcome.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
)

// ErrJobNotFound is returned when an operation references an unknown job.
var ErrJobNotFound = errors.New("cron job not found")

// jobRunTimeout bounds a single command execution.
const jobRunTimeout = 2 * time.Minute

// Runner executes a job's command and returns its output.
type Runner func(ctx context.Context, command string) (string, error)

// Scheduler owns the cron runtime and the job registry.
type Scheduler struct {
	cron    *cron.Cron
	storage JobStorage
	runner  Runner
	logger  *slog.Logger

	mu      sync.Mutex
	jobs    map[string]*Job
	entries map[string]cron.EntryID
}

// New creates a scheduler backed by storage. Jobs run through runner.
func New(storage JobStorage, runner Runner, logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}

	return &Scheduler{
		cron:    cron.New(),
		storage: storage,
		runner:  runner,
		logger:  logger.With("component", "scheduler"),
		jobs:    make(map[string]*Job),
		entries: make(map[string]cron.EntryID),
	}
}

// Start loads persisted jobs, registers the enabled ones, and starts the
// cron runtime.
func (s *Scheduler) Start() error {
	jobs, err := s.storage.LoadAll()
	if err != nil {
		return fmt.Errorf("loading jobs: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, job := range jobs {
		s.jobs[job.ID] = job
		if job.Enabled {
			if err := s.register(job); err != nil {
				s.logger.Warn("skipping job with bad schedule",
					"job_id", job.ID, "schedule", job.Schedule, "error", err)
			}
		}
	}

	s.cron.Start()
	s.logger.Info("scheduler started", "jobs", len(s.jobs))
	return nil
}

// Stop halts the cron runtime, waiting for running jobs to finish.
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	s.logger.Info("scheduler stopped")
}

// Add validates, persists, and registers a new job.
func (s *Scheduler) Add(name, schedule, command string, enabled bool) (*Job, error) {
	if _, err := cron.ParseStandard(schedule); err != nil {
		return nil, fmt.Errorf("invalid schedule %q: %w", schedule, err)
	}

	job := &Job{
		ID:        uuid.NewString(),
		Name:      name,
		Schedule:  schedule,
		Command:   command,
		Enabled:   enabled,
		CreatedAt: time.Now().UTC(),
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if enabled {
		if err := s.register(job); err != nil {
			return nil, err
		}
	}
	s.jobs[job.ID] = job

	if err := s.storage.Save(job); err != nil {
		return nil, err
	}

	s.logger.Info("job added", "job_id", job.ID, "schedule", schedule)
	return copyJob(job), nil
}

// Remove deletes a job and unregisters it from the runtime.
func (s *Scheduler) Remove(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.jobs[id]; !ok {
		return ErrJobNotFound
	}

	s.unregister(id)
	delete(s.jobs, id)

	if err := s.storage.Delete(id); err != nil {
		return err
	}

	s.logger.Info("job removed", "job_id", id)
	return nil
}

// Toggle flips a job's enabled state and returns the updated job.
func (s *Scheduler) Toggle(id string) (*Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, ok := s.jobs[id]
	if !ok {
		return nil, ErrJobNotFound
	}

	if job.Enabled {
		s.unregister(id)
		job.Enabled = false
		job.NextRun = nil
	} else {
		if err := s.register(job); err != nil {
			return nil, err
		}
		job.Enabled = true
	}

	if err := s.storage.Save(job); err != nil {
		return nil, err
	}
	return copyJob(job), nil
}

// List returns all jobs, newest first.
func (s *Scheduler) List() []*Job {
	s.mu.Lock()
	defer s.mu.Unlock()

	jobs := make([]*Job, 0, len(s.jobs))
	for _, job := range s.jobs {
		jobs = append(jobs, copyJob(job))
	}
	sortJobs(jobs)
	return jobs
}

// register adds the job to the cron runtime and records its next run.
// Caller holds the mutex.
func (s *Scheduler) register(job *Job) error {
	id := job.ID
	entryID, err := s.cron.AddFunc(job.Schedule, func() { s.run(id) })
	if err != nil {
		return fmt.Errorf("invalid schedule %q: %w", job.Schedule, err)
	}
	s.entries[job.ID] = entryID

	next := s.cron.Entry(entryID).Next
	if !next.IsZero() {
		job.NextRun = &next
	}
	return nil
}

// unregister removes the job's cron entry. Caller holds the mutex.
func (s *Scheduler) unregister(id string) {
	if entryID, ok := s.entries[id]; ok {
		s.cron.Remove(entryID)
		delete(s.entries, id)
	}
}

// run executes one job occurrence and records the outcome.
func (s *Scheduler) run(id string) {
	s.mu.Lock()
	job, ok := s.jobs[id]
	if !ok {
		s.mu.Unlock()
		return
	}
	command := job.Command
	s.mu.Unlock()

	s.logger.Info("job running", "job_id", id)

	ctx, cancel := context.WithTimeout(context.Background(), jobRunTimeout)
	defer cancel()

	output, err := s.runner(ctx, command)

	s.mu.Lock()
	defer s.mu.Unlock()

	job, ok = s.jobs[id]
	if !ok {
		// Removed while running.
		return
	}

	now := time.Now().UTC()
	job.LastRun = &now
	job.RunCount++
	if err != nil {
		job.LastError = err.Error()
		s.logger.Error("job failed", "job_id", id, "error", err)
	} else {
		job.LastError = ""
		s.logger.Info("job finished", "job_id", id, "output_len", len(output))
	}

	if entryID, ok := s.entries[id]; ok {
		next := s.cron.Entry(entryID).Next
		if !next.IsZero() {
			job.NextRun = &next
		}
	}

	if err := s.storage.Save(job); err != nil {
		s.logger.Error("job state save failed", "job_id", id, "error", err)
	}
}

func copyJob(j *Job) *Job {
	c := *j
	return &c
}

// sortJobs orders newest first, matching the listing the API serves.
func sortJobs(jobs []*Job) {
	sort.Slice(jobs, func(i, k int) bool {
		return jobs[i].CreatedAt.After(jobs[k].CreatedAt)
	})
}
