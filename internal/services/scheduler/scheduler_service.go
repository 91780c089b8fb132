package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/reperio/internal/interfaces"
)

// jobEntry is one registered cron job with its bookkeeping.
type jobEntry struct {
	name        string
	schedule    string
	description string
	handler     func() error
	enabled     bool
	cronID      cron.EntryID
	lastRun     *time.Time
	nextRun     *time.Time
	isRunning   bool
	lastError   string
}

// Service runs registered pipeline jobs on cron schedules. Overlapping
// executions of the same job are skipped, not queued: the pipeline's own
// operation registry already refuses duplicate work, so a skipped tick is
// the cheaper of the two refusals.
type Service struct {
	cron         *cron.Cron
	eventService interfaces.EventService
	logger       arbor.ILogger
	mu           sync.Mutex
	jobs         map[string]*jobEntry
	running      bool
}

var _ interfaces.SchedulerService = (*Service)(nil)

// NewService creates a scheduler. eventService may be nil, which disables
// job lifecycle event publication.
func NewService(eventService interfaces.EventService, logger arbor.ILogger) *Service {
	return &Service{
		cron:         cron.New(),
		eventService: eventService,
		logger:       logger,
		jobs:         make(map[string]*jobEntry),
	}
}

// RegisterJob registers a named job. An empty schedule registers the job
// disabled so it can still be triggered manually.
func (s *Service) RegisterJob(name, schedule, description string, handler func() error) error {
	if name == "" {
		return fmt.Errorf("job name is required")
	}
	if handler == nil {
		return fmt.Errorf("job handler is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.jobs[name]; exists {
		return fmt.Errorf("job %q already registered", name)
	}

	entry := &jobEntry{
		name:        name,
		schedule:    schedule,
		description: description,
		handler:     handler,
		enabled:     schedule != "",
	}
	if entry.enabled {
		id, err := s.cron.AddFunc(schedule, func() { s.runJob(name) })
		if err != nil {
			return fmt.Errorf("invalid schedule %q for job %q: %w", schedule, name, err)
		}
		entry.cronID = id
	}
	s.jobs[name] = entry

	s.logger.Info().
		Str("job", name).
		Str("schedule", schedule).
		Bool("enabled", entry.enabled).
		Msg("Scheduled job registered")
	return nil
}

// Start begins executing registered schedules.
func (s *Service) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return fmt.Errorf("scheduler already running")
	}
	s.cron.Start()
	s.running = true
	s.logger.Info().Int("jobs", len(s.jobs)).Msg("Scheduler started")
	return nil
}

// Stop halts the cron loop and waits for in-flight jobs to finish.
func (s *Service) Stop() error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	s.running = false
	s.mu.Unlock()

	ctx := s.cron.Stop()
	<-ctx.Done()
	s.logger.Info().Msg("Scheduler stopped")
	return nil
}

func (s *Service) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// TriggerJob runs a registered job immediately, regardless of its schedule
// or enabled state. It blocks until the job finishes.
func (s *Service) TriggerJob(name string) error {
	s.mu.Lock()
	entry, ok := s.jobs[name]
	if !ok {
		s.mu.Unlock()
		return fmt.Errorf("job %q not registered", name)
	}
	if entry.isRunning {
		s.mu.Unlock()
		return fmt.Errorf("job %q is already running", name)
	}
	s.mu.Unlock()

	s.runJob(name)

	s.mu.Lock()
	defer s.mu.Unlock()
	if entry.lastError != "" {
		return fmt.Errorf("job %q failed: %s", name, entry.lastError)
	}
	return nil
}

// EnableJob re-adds a disabled job's schedule.
func (s *Service) EnableJob(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.jobs[name]
	if !ok {
		return fmt.Errorf("job %q not registered", name)
	}
	if entry.enabled {
		return nil
	}
	if entry.schedule == "" {
		return fmt.Errorf("job %q has no schedule to enable", name)
	}
	id, err := s.cron.AddFunc(entry.schedule, func() { s.runJob(name) })
	if err != nil {
		return fmt.Errorf("invalid schedule %q: %w", entry.schedule, err)
	}
	entry.cronID = id
	entry.enabled = true
	s.logger.Info().Str("job", name).Msg("Scheduled job enabled")
	return nil
}

// DisableJob removes a job's schedule. The job stays registered and can
// still be triggered manually.
func (s *Service) DisableJob(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.jobs[name]
	if !ok {
		return fmt.Errorf("job %q not registered", name)
	}
	if !entry.enabled {
		return nil
	}
	s.cron.Remove(entry.cronID)
	entry.enabled = false
	s.logger.Info().Str("job", name).Msg("Scheduled job disabled")
	return nil
}

func (s *Service) GetJobStatus(name string) (*interfaces.ScheduledJobStatus, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.jobs[name]
	if !ok {
		return nil, fmt.Errorf("job %q not registered", name)
	}
	return s.statusLocked(entry), nil
}

func (s *Service) GetAllJobStatuses() map[string]*interfaces.ScheduledJobStatus {
	s.mu.Lock()
	defer s.mu.Unlock()

	statuses := make(map[string]*interfaces.ScheduledJobStatus, len(s.jobs))
	for name, entry := range s.jobs {
		statuses[name] = s.statusLocked(entry)
	}
	return statuses
}

func (s *Service) statusLocked(entry *jobEntry) *interfaces.ScheduledJobStatus {
	status := &interfaces.ScheduledJobStatus{
		Name:        entry.name,
		Enabled:     entry.enabled,
		Schedule:    entry.schedule,
		Description: entry.description,
		LastRun:     entry.lastRun,
		IsRunning:   entry.isRunning,
		LastError:   entry.lastError,
	}
	if entry.enabled && s.running {
		if cronEntry := s.cron.Entry(entry.cronID); cronEntry.ID != 0 {
			next := cronEntry.Next
			status.NextRun = &next
		}
	}
	return status
}

// runJob executes one job, recording timing and the outcome. A tick that
// lands while the previous execution is still going is dropped.
func (s *Service) runJob(name string) {
	s.mu.Lock()
	entry, ok := s.jobs[name]
	if !ok || entry.isRunning {
		if ok {
			s.logger.Warn().Str("job", name).Msg("Skipping tick, previous run still in progress")
		}
		s.mu.Unlock()
		return
	}
	entry.isRunning = true
	handler := entry.handler
	s.mu.Unlock()

	start := time.Now().UTC()
	s.logger.Info().Str("job", name).Msg("Scheduled job starting")
	s.publish(interfaces.Event{Type: interfaces.EventScheduledJobStarted, Payload: name})

	err := handler()

	s.mu.Lock()
	entry.isRunning = false
	entry.lastRun = &start
	if err != nil {
		entry.lastError = err.Error()
	} else {
		entry.lastError = ""
	}
	s.mu.Unlock()

	if err != nil {
		s.logger.Error().Str("job", name).Dur("duration", time.Since(start)).Err(err).Msg("Scheduled job failed")
	} else {
		s.logger.Info().Str("job", name).Dur("duration", time.Since(start)).Msg("Scheduled job finished")
	}
	s.publish(interfaces.Event{Type: interfaces.EventScheduledJobFinished, Payload: name})
}

func (s *Service) publish(event interfaces.Event) {
	if s.eventService == nil {
		return
	}
	if err := s.eventService.Publish(context.Background(), event); err != nil {
		s.logger.Warn().Str("event", string(event.Type)).Err(err).Msg("Failed to publish scheduler event")
	}
}
