package analytics

import (
	"context"
	"sync"
	"time"

	"github.com/zfogg/petfinder/internal/logger"
	"go.uber.org/zap"
)

// Cleaner deletes events older than a retention window
type Cleaner interface {
	Cleanup(ctx context.Context, daysToKeep int) (int64, error)
}

// RetentionJob runs Cleanup on a fixed interval, once at start and then
// on every tick until stopped.
type RetentionJob struct {
	cleaner    Cleaner
	daysToKeep int
	interval   time.Duration
	timeout    time.Duration

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	mu     sync.Mutex
	runs   int
}

// DefaultCleanupInterval is used when NewRetentionJob gets a non-positive interval
const DefaultCleanupInterval = 24 * time.Hour

// NewRetentionJob creates a retention job
func NewRetentionJob(cleaner Cleaner, daysToKeep int, interval time.Duration) *RetentionJob {
	if interval <= 0 {
		interval = DefaultCleanupInterval
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &RetentionJob{
		cleaner:    cleaner,
		daysToKeep: daysToKeep,
		interval:   interval,
		timeout:    5 * time.Minute,
		ctx:        ctx,
		cancel:     cancel,
	}
}

// Start begins the periodic cleanup
func (j *RetentionJob) Start() {
	logger.Log.Info("Starting analytics retention job",
		zap.Int("days_to_keep", j.daysToKeep),
		zap.Duration("interval", j.interval),
	)
	j.wg.Add(1)
	go j.run()
}

// Stop cancels the job and waits for an in-flight cleanup to finish
func (j *RetentionJob) Stop() {
	j.cancel()
	j.wg.Wait()
	logger.Log.Info("Analytics retention job stopped")
}

// Runs reports how many cleanups have completed
func (j *RetentionJob) Runs() int {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.runs
}

func (j *RetentionJob) run() {
	defer j.wg.Done()

	j.cleanupOnce()

	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			j.cleanupOnce()
		case <-j.ctx.Done():
			return
		}
	}
}

func (j *RetentionJob) cleanupOnce() {
	ctx, cancel := context.WithTimeout(j.ctx, j.timeout)
	defer cancel()

	start := time.Now()
	deleted, err := j.cleaner.Cleanup(ctx, j.daysToKeep)

	j.mu.Lock()
	j.runs++
	j.mu.Unlock()

	if err != nil {
		logger.WarnWithFields("Analytics retention cleanup failed", err)
		return
	}
	logger.Log.Info("Analytics retention cleanup finished",
		zap.Int64("deleted", deleted),
		logger.WithDuration(time.Since(start)),
	)
}
