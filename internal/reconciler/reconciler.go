// Package reconciler keeps the graph in step with the ledger by polling every
// tracked program on a fixed interval.
//
// Each program gets its own task: fetch the program's accounts, ingest every
// decodable record, sleep, repeat. A failed fetch or a failed record is logged and
// the loop carries on; only cancellation ends a task.
package reconciler

import (
	"context"
	"sort"
	"time"

	"github.com/dyluth/discgraph/internal/decoder"
	"github.com/dyluth/discgraph/internal/ingest"
	"github.com/dyluth/discgraph/internal/ledger"
	"github.com/dyluth/discgraph/internal/metrics"
	"github.com/google/uuid"
	"github.com/puzpuzpuz/xsync/v3"
	"go.uber.org/zap"
)

// DefaultInterval is the pause between two passes over the same program.
const DefaultInterval = 10 * time.Second

// Options tunes a Reconciler. Zero values select the defaults.
type Options struct {
	Interval time.Duration
	Decoder  *decoder.Decoder
	Logger   *zap.Logger
}

// Reconciler owns one polling task per tracked program.
type Reconciler struct {
	source   ledger.Source
	engine   *ingest.Engine
	decoder  *decoder.Decoder
	interval time.Duration
	logger   *zap.Logger

	tasks *xsync.MapOf[string, *Task]
}

// Task is the handle of one program's polling loop.
type Task struct {
	ID        string
	ProgramID string
	StartedAt time.Time

	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
}

// Stop requests the task to end. It does not wait; use Done for that.
func (t *Task) Stop() {
	t.cancel()
}

// stopping reports whether the task has been told to end.
func (t *Task) stopping() bool {
	return t.ctx.Err() != nil
}

// Done is closed once the task's loop has returned.
func (t *Task) Done() <-chan struct{} {
	return t.done
}

// Pass is the outcome of one reconcile iteration.
type Pass struct {
	ProgramID string
	// FetchErr is set when the ledger could not be listed; Result is then empty.
	FetchErr error
	Result   ingest.BatchResult
	Duration time.Duration
}

// New creates a reconciler. No task runs until Track or Run is called.
func New(source ledger.Source, engine *ingest.Engine, opts Options) *Reconciler {
	if opts.Interval <= 0 {
		opts.Interval = DefaultInterval
	}
	if opts.Decoder == nil {
		opts.Decoder = decoder.Default()
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	return &Reconciler{
		source:   source,
		engine:   engine,
		decoder:  opts.Decoder,
		interval: opts.Interval,
		logger:   opts.Logger.Named("reconciler"),
		tasks:    xsync.NewMapOf[string, *Task](),
	}
}

// Interval returns the sleep between passes.
func (r *Reconciler) Interval() time.Duration {
	return r.interval
}

// Track starts polling programID and returns its task. Tracking a program that
// already has a live task returns the existing task; a task that is still
// winding down after Stop is replaced by a fresh one. The task ends when ctx is
// cancelled, Stop is called, or the program is untracked.
func (r *Reconciler) Track(ctx context.Context, programID string) *Task {
	var (
		taskCtx context.Context
		started bool
	)
	t, _ := r.tasks.Compute(programID, func(cur *Task, loaded bool) (*Task, bool) {
		if loaded && !cur.stopping() {
			return cur, false
		}
		var cancel context.CancelFunc
		taskCtx, cancel = context.WithCancel(ctx)
		started = true
		return &Task{
			ID:        uuid.New().String(),
			ProgramID: programID,
			StartedAt: time.Now(),
			ctx:       taskCtx,
			cancel:    cancel,
			done:      make(chan struct{}),
		}, false
	})
	if !started {
		return t
	}

	metrics.ActivePollers.Inc()
	r.logger.Info("poller started",
		zap.String("event", "poller_started"),
		zap.String("program_id", programID),
		zap.String("task_id", t.ID),
		zap.Duration("interval", r.interval))

	go r.loop(taskCtx, t)
	return t
}

// Untrack stops programID's task and waits for it to exit.
// Returns false if the program was not tracked.
func (r *Reconciler) Untrack(programID string) bool {
	t, ok := r.tasks.Load(programID)
	if !ok {
		return false
	}

	t.Stop()
	<-t.Done()
	return true
}

// Tracked returns the ids of programs with a live task, sorted.
func (r *Reconciler) Tracked() []string {
	ids := make([]string, 0, r.tasks.Size())
	r.tasks.Range(func(id string, _ *Task) bool {
		ids = append(ids, id)
		return true
	})
	sort.Strings(ids)
	return ids
}

// Task returns the live task for programID, if any.
func (r *Reconciler) Task(programID string) (*Task, bool) {
	return r.tasks.Load(programID)
}

// StopAll stops every task and waits for all of them to exit.
func (r *Reconciler) StopAll() {
	var tasks []*Task
	r.tasks.Range(func(_ string, t *Task) bool {
		tasks = append(tasks, t)
		return true
	})

	for _, t := range tasks {
		t.Stop()
	}
	for _, t := range tasks {
		<-t.Done()
	}
}

// Run tracks programIDs, blocks until ctx is cancelled, then stops every task
// (including ones tracked later through Track) and waits for them.
func (r *Reconciler) Run(ctx context.Context, programIDs []string) error {
	for _, id := range programIDs {
		r.Track(ctx, id)
	}

	<-ctx.Done()
	r.logger.Info("stopping pollers",
		zap.String("event", "reconciler_stopping"),
		zap.Int("tasks", len(r.Tracked())))
	r.StopAll()
	return nil
}

// ReconcileOnce performs a single fetch/decode/ingest pass for programID.
// Per-record failures are skipped; the pass never aborts part way for them.
func (r *Reconciler) ReconcileOnce(ctx context.Context, programID string) Pass {
	start := time.Now()
	pass := Pass{ProgramID: programID}

	accounts, err := r.source.ListAccounts(ctx, programID)
	if err != nil {
		pass.FetchErr = err
		pass.Duration = time.Since(start)
		if ctx.Err() == nil {
			metrics.PollPassesTotal.WithLabelValues(metrics.PollFetchFailed).Inc()
			r.logger.Warn("ledger fetch failed",
				zap.String("event", "poll_fetch_failed"),
				zap.String("program_id", programID),
				zap.Error(err))
		}
		return pass
	}

	pass.Result = r.engine.IngestAccounts(ctx, programID, accounts, r.decoder, ingest.BatchSkipAndContinue)
	pass.Duration = time.Since(start)

	if pass.Result.Failed > 0 {
		r.logger.Warn("records failed to ingest",
			zap.String("event", "poll_records_failed"),
			zap.String("program_id", programID),
			zap.Int("failed", pass.Result.Failed),
			zap.Error(pass.Result.Err))
	}

	metrics.PollPassesTotal.WithLabelValues(metrics.PollOK).Inc()
	r.logger.Debug("poll pass complete",
		zap.String("event", "poll_pass"),
		zap.String("program_id", programID),
		zap.Int("accounts", pass.Result.Accounts),
		zap.Int("ingested", pass.Result.Ingested),
		zap.Int("malformed", pass.Result.Malformed),
		zap.Int64("latency_ms", pass.Duration.Milliseconds()))
	return pass
}

func (r *Reconciler) loop(ctx context.Context, t *Task) {
	defer func() {
		r.tasks.Compute(t.ProgramID, func(cur *Task, loaded bool) (*Task, bool) {
			return cur, !loaded || cur == t
		})

		metrics.ActivePollers.Dec()
		r.logger.Info("poller stopped",
			zap.String("event", "poller_stopped"),
			zap.String("program_id", t.ProgramID),
			zap.String("task_id", t.ID))
		close(t.done)
	}()

	timer := time.NewTimer(0)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
		}

		pass := r.ReconcileOnce(ctx, t.ProgramID)
		if ctx.Err() != nil {
			return
		}
		if pass.FetchErr != nil {
			r.logger.Debug("retrying after interval",
				zap.String("event", "poll_retry"),
				zap.String("program_id", t.ProgramID),
				zap.Duration("interval", r.interval))
		}
		timer.Reset(r.interval)
	}
}
