package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/secondbrainhq/secondbrain/pkg/config"
	"github.com/secondbrainhq/secondbrain/pkg/models"
	"github.com/secondbrainhq/secondbrain/pkg/services"
	"github.com/secondbrainhq/secondbrain/pkg/store"
)

// checkInterval is how often the runner looks for due jobs.
const checkInterval = 30 * time.Second

// JobFunc is one registered job handler.
type JobFunc func(ctx context.Context) error

// Receipt acknowledges a manual trigger.
type Receipt struct {
	ExecutionID string `json:"execution_id"`
	JobName     string `json:"job_name"`
	Status      string `json:"status"` // queued or running
}

// Runner drives scheduled jobs from the scheduled_jobs table. Each job runs
// single-flight: a tick that finds the previous run still going skips.
type Runner struct {
	schedules *store.Schedules
	cfg       *config.Manager
	logger    *slog.Logger

	mu       sync.Mutex
	handlers map[string]JobFunc
	running  map[string]bool
	skipped  map[string]int64

	cancel   context.CancelFunc
	done     chan struct{}
	wg       sync.WaitGroup
	stopOnce sync.Once
}

// NewRunner creates the job runner.
func NewRunner(schedules *store.Schedules, cfg *config.Manager, logger *slog.Logger) *Runner {
	return &Runner{
		schedules: schedules,
		cfg:       cfg,
		logger:    logger.With("component", "scheduler"),
		handlers:  make(map[string]JobFunc),
		running:   make(map[string]bool),
		skipped:   make(map[string]int64),
		done:      make(chan struct{}),
	}
}

// Register binds a handler to a job name. Jobs without a handler are ignored
// with a warning at tick time.
func (r *Runner) Register(jobName string, fn JobFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers[jobName] = fn
}

// Start launches the tick loop.
func (r *Runner) Start(ctx context.Context) {
	runCtx, cancel := context.WithCancel(ctx)
	r.cancel = cancel

	go func() {
		defer close(r.done)
		r.logger.Info("scheduler started", "check_interval", checkInterval)
		ticker := time.NewTicker(checkInterval)
		defer ticker.Stop()

		r.tick(runCtx)
		for {
			select {
			case <-ticker.C:
				r.tick(runCtx)
			case <-runCtx.Done():
				return
			}
		}
	}()
}

// Stop cancels the loop and waits for in-flight jobs to finish.
func (r *Runner) Stop() {
	r.stopOnce.Do(func() {
		if r.cancel != nil {
			r.cancel()
		}
		<-r.done
		r.wg.Wait()
		r.logger.Info("scheduler stopped")
	})
}

// RunNow triggers one job outside its schedule.
func (r *Runner) RunNow(ctx context.Context, jobName string) (*Receipt, error) {
	r.mu.Lock()
	fn, ok := r.handlers[jobName]
	if !ok {
		r.mu.Unlock()
		return nil, fmt.Errorf("%w: no handler for job %q", services.ErrNotFound, jobName)
	}
	if r.running[jobName] {
		r.mu.Unlock()
		return &Receipt{
			ExecutionID: uuid.New().String(),
			JobName:     jobName,
			Status:      "running",
		}, nil
	}
	r.running[jobName] = true
	r.mu.Unlock()

	receipt := &Receipt{
		ExecutionID: uuid.New().String(),
		JobName:     jobName,
		Status:      "queued",
	}
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		r.execute(context.WithoutCancel(ctx), jobName, fn, nil)
	}()
	return receipt, nil
}

// tick finds due jobs and dispatches them.
func (r *Runner) tick(ctx context.Context) {
	jobs, err := r.schedules.RunnableJobs(ctx)
	if err != nil {
		r.logger.Error("listing runnable jobs failed", "error", err)
		return
	}
	now := time.Now().In(r.cfg.Timezone(ctx))

	for _, job := range jobs {
		if job.NextRun == nil {
			// Freshly provisioned job: schedule it, don't fire it.
			next, err := r.computeNext(ctx, job, now)
			if err != nil {
				r.logger.Warn("cannot schedule job", "job", job.JobName, "error", err)
				continue
			}
			if err := r.schedules.SetNextRun(ctx, job.JobName, *next); err != nil {
				r.logger.Error("persisting next_run failed", "job", job.JobName, "error", err)
			}
			continue
		}
		if job.NextRun.After(now) {
			continue
		}

		r.mu.Lock()
		fn, registered := r.handlers[job.JobName]
		if !registered {
			r.mu.Unlock()
			r.logger.Warn("due job has no handler", "job", job.JobName)
			continue
		}
		if r.running[job.JobName] {
			r.skipped[job.JobName]++
			skips := r.skipped[job.JobName]
			r.mu.Unlock()
			r.logger.Warn("job still running, skipping tick", "job", job.JobName, "skips", skips)
			continue
		}
		r.running[job.JobName] = true
		r.mu.Unlock()

		next, err := r.computeNext(ctx, job, now)
		if err != nil {
			r.logger.Warn("cannot compute next run", "job", job.JobName, "error", err)
		}

		r.wg.Add(1)
		go func(job *models.ScheduledJob, next *time.Time) {
			defer r.wg.Done()
			r.execute(ctx, job.JobName, fn, next)
		}(job, next)
	}
}

func (r *Runner) execute(ctx context.Context, jobName string, fn JobFunc, next *time.Time) {
	defer func() {
		r.mu.Lock()
		delete(r.running, jobName)
		r.mu.Unlock()
	}()

	start := time.Now()
	err := fn(ctx)
	elapsed := time.Since(start)

	recordCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()

	if err != nil {
		r.logger.Error("job failed", "job", jobName, "duration", elapsed, "error", err)
		if recErr := r.schedules.RecordFailure(recordCtx, jobName, err.Error(), next); recErr != nil {
			r.logger.Error("recording job failure failed", "job", jobName, "error", recErr)
		}
		return
	}

	r.logger.Info("job completed", "job", jobName, "duration", elapsed)
	if recErr := r.schedules.RecordSuccess(recordCtx, jobName, next); recErr != nil {
		r.logger.Error("recording job success failed", "job", jobName, "error", recErr)
	}
}

func (r *Runner) computeNext(ctx context.Context, job *models.ScheduledJob, now time.Time) (*time.Time, error) {
	if job.ScheduleID == nil {
		return nil, nil
	}
	sched, err := r.schedules.GetSchedule(ctx, *job.ScheduleID)
	if err != nil {
		return nil, err
	}
	next, err := NextRun(sched, now)
	if err != nil {
		return nil, err
	}
	return &next, nil
}
