// Package scheduler runs background marketplace jobs: scheduled merchant
// syncs on a bounded worker pool and periodic triggers that feed it.
package scheduler

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	appintegration "github.com/souq/backend/internal/application/integration"
	"github.com/souq/backend/internal/domain/merchant"
	"go.uber.org/zap"
)

// JobStatus represents the status of a scheduled sync job
type JobStatus string

const (
	JobStatusPending JobStatus = "PENDING"
	JobStatusRunning JobStatus = "RUNNING"
	JobStatusSuccess JobStatus = "SUCCESS"
	JobStatusSkipped JobStatus = "SKIPPED"
	JobStatusFailed  JobStatus = "FAILED"
)

// SyncJob is one queued merchant sync
type SyncJob struct {
	ID          uuid.UUID
	MerchantID  uuid.UUID
	Status      JobStatus
	Error       string
	EnqueuedAt  time.Time
	StartedAt   *time.Time
	CompletedAt *time.Time
	Summary     *appintegration.SyncSummary
}

// NewSyncJob creates a pending job for the merchant
func NewSyncJob(merchantID uuid.UUID) *SyncJob {
	return &SyncJob{
		ID:         uuid.New(),
		MerchantID: merchantID,
		Status:     JobStatusPending,
		EnqueuedAt: time.Now(),
	}
}

// Start marks the job as running
func (j *SyncJob) Start() {
	now := time.Now()
	j.Status = JobStatusRunning
	j.StartedAt = &now
	j.Error = ""
}

// Complete marks the job as successful
func (j *SyncJob) Complete(summary appintegration.SyncSummary) {
	now := time.Now()
	j.Status = JobStatusSuccess
	j.CompletedAt = &now
	j.Summary = &summary
}

// Skip marks a job that did not run because the merchant was not syncable
func (j *SyncJob) Skip(reason string) {
	now := time.Now()
	j.Status = JobStatusSkipped
	j.CompletedAt = &now
	j.Error = reason
}

// Fail marks the job as failed
func (j *SyncJob) Fail(err string) {
	now := time.Now()
	j.Status = JobStatusFailed
	j.CompletedAt = &now
	j.Error = err
}

// SyncRunner runs a single merchant sync. Implemented by SyncService.
type SyncRunner interface {
	Sync(ctx context.Context, req appintegration.SyncRequest) (*appintegration.SyncResult, error)
}

// Config holds scheduler configuration
type Config struct {
	MaxConcurrentJobs int
	JobTimeout        time.Duration
	QueueSize         int
	HistorySize       int
}

// DefaultConfig returns default scheduler configuration
func DefaultConfig() Config {
	return Config{
		MaxConcurrentJobs: 2,
		JobTimeout:        15 * time.Minute,
		QueueSize:         100,
		HistorySize:       100,
	}
}

// Validate validates the configuration
func (c Config) Validate() error {
	if c.MaxConcurrentJobs <= 0 || c.JobTimeout <= 0 || c.QueueSize <= 0 || c.HistorySize < 0 {
		return ErrInvalidConfig
	}
	return nil
}

// Scheduler runs queued merchant syncs on a fixed pool of workers. A merchant
// is queued at most once; submitting it again while it is pending or running
// is a no-op. Failed jobs are not retried here; the next trigger tick
// queues the merchant again once its cooldown has elapsed.
type Scheduler struct {
	config Config
	runner SyncRunner
	logger *zap.Logger

	jobs      chan *SyncJob
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	mu        sync.Mutex
	isRunning bool
	inFlight  map[uuid.UUID]struct{}

	historyMu sync.RWMutex
	history   []*SyncJob
}

// NewScheduler creates a new scheduler instance
func NewScheduler(config Config, runner SyncRunner, logger *zap.Logger) (*Scheduler, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Scheduler{
		config:   config,
		runner:   runner,
		logger:   logger,
		jobs:     make(chan *SyncJob, config.QueueSize),
		inFlight: make(map[uuid.UUID]struct{}),
		history:  make([]*SyncJob, 0, config.HistorySize),
	}, nil
}

// Start starts the worker pool
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.isRunning {
		return nil
	}
	s.isRunning = true

	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel

	for i := 0; i < s.config.MaxConcurrentJobs; i++ {
		s.wg.Add(1)
		go s.worker(ctx, i)
	}

	s.logger.Info("Sync scheduler started",
		zap.Int("workers", s.config.MaxConcurrentJobs),
		zap.Duration("job_timeout", s.config.JobTimeout),
	)
	return nil
}

// Stop cancels running jobs and waits for the workers to exit
func (s *Scheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.isRunning {
		s.mu.Unlock()
		return nil
	}
	s.isRunning = false
	s.cancel()
	close(s.jobs)
	s.mu.Unlock()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.logger.Info("Sync scheduler stopped gracefully")
		return nil
	case <-ctx.Done():
		s.logger.Warn("Sync scheduler stop timed out")
		return ctx.Err()
	}
}

// Submit queues a sync for the merchant
func (s *Scheduler) Submit(merchantID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.isRunning {
		return ErrSchedulerNotRunning
	}
	if _, queued := s.inFlight[merchantID]; queued {
		return nil
	}

	job := NewSyncJob(merchantID)
	select {
	case s.jobs <- job:
		s.inFlight[merchantID] = struct{}{}
		s.logger.Debug("Sync job submitted",
			zap.String("job_id", job.ID.String()),
			zap.String("merchant_id", merchantID.String()),
		)
		return nil
	default:
		return ErrJobQueueFull
	}
}

func (s *Scheduler) worker(ctx context.Context, workerID int) {
	defer s.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case job, ok := <-s.jobs:
			if !ok {
				return
			}
			s.processJob(ctx, job, workerID)
		}
	}
}

func (s *Scheduler) processJob(ctx context.Context, job *SyncJob, workerID int) {
	log := s.logger.With(
		zap.Int("worker_id", workerID),
		zap.String("job_id", job.ID.String()),
		zap.String("merchant_id", job.MerchantID.String()),
	)

	job.Start()
	jobCtx, cancel := context.WithTimeout(ctx, s.config.JobTimeout)
	defer cancel()

	result, err := s.runner.Sync(jobCtx, appintegration.SyncRequest{MerchantID: job.MerchantID})
	switch {
	case err == nil:
		job.Complete(result.Summary)
		log.Info("Scheduled sync completed",
			zap.String("platform", result.Platform.String()),
			zap.Duration("elapsed", result.Duration),
		)
	case skippable(err):
		job.Skip(err.Error())
		log.Debug("Scheduled sync skipped", zap.Error(err))
	default:
		job.Fail(err.Error())
		log.Error("Scheduled sync failed", zap.Error(err))
	}

	s.release(job.MerchantID)
	s.addToHistory(job)
}

// skippable reports errors that describe the merchant's state rather than a broken run
func skippable(err error) bool {
	var conflict *merchant.LockConflictError
	return errors.As(err, &conflict) ||
		errors.Is(err, merchant.ErrNotConnected) ||
		errors.Is(err, merchant.ErrCredentialsInvalid)
}

func (s *Scheduler) release(merchantID uuid.UUID) {
	s.mu.Lock()
	delete(s.inFlight, merchantID)
	s.mu.Unlock()
}

func (s *Scheduler) addToHistory(job *SyncJob) {
	if s.config.HistorySize == 0 {
		return
	}
	s.historyMu.Lock()
	defer s.historyMu.Unlock()

	s.history = append([]*SyncJob{job}, s.history...)
	if len(s.history) > s.config.HistorySize {
		s.history = s.history[:s.config.HistorySize]
	}
}

// History returns the most recent finished jobs, newest first
func (s *Scheduler) History(limit int) []*SyncJob {
	s.historyMu.RLock()
	defer s.historyMu.RUnlock()

	if limit <= 0 || limit > len(s.history) {
		limit = len(s.history)
	}
	result := make([]*SyncJob, limit)
	copy(result, s.history[:limit])
	return result
}
