package worker

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/rehostd/rehostd/internal/config"
	"github.com/rehostd/rehostd/internal/domain"
	"github.com/rehostd/rehostd/internal/metrics"
	"github.com/rehostd/rehostd/internal/notify"
	"github.com/rehostd/rehostd/internal/platform/logger"
	"github.com/rehostd/rehostd/internal/store"
)

// transitionTimeout bounds the store write and webhook delivery that follow
// an attempt. It is independent of the loop context so a shutdown cannot
// leave a finished attempt unrecorded.
const transitionTimeout = 30 * time.Second

// TaskExecutor runs one attempt for a claimed task. Satisfied by *Executor;
// declared as an interface so loop tests can substitute a scripted one.
type TaskExecutor interface {
	Execute(ctx context.Context, task *domain.Task) Outcome
}

// Loop is one independent claim-execute-transition cycle. A process runs
// several; they coordinate only through the store's atomic claim.
type Loop struct {
	id       string
	tasks    store.TaskStore
	executor TaskExecutor
	notifier notify.Notifier
	policy   RetryPolicy
	logger   *slog.Logger

	idleInterval  time.Duration
	errorBackoff  time.Duration
	shutdownGrace time.Duration
}

// NewLoop assembles a worker loop from its collaborators.
func NewLoop(id string, tasks store.TaskStore, executor TaskExecutor, notifier notify.Notifier, cfg config.WorkerConfig, log *slog.Logger) *Loop {
	return &Loop{
		id:       id,
		tasks:    tasks,
		executor: executor,
		notifier: notifier,
		policy: RetryPolicy{
			MaxAttempts: cfg.MaxAttempts,
			BaseDelay:   cfg.BaseDelay,
		},
		logger:        log.With("worker_id", id),
		idleInterval:  cfg.IdleInterval,
		errorBackoff:  cfg.ErrorBackoff,
		shutdownGrace: cfg.ShutdownGrace,
	}
}

// Run drives the loop until ctx is canceled. It processes at most one task
// at a time and always returns nil: infrastructure errors are logged,
// counted and absorbed with a backoff pause, never allowed to kill the loop.
func (l *Loop) Run(ctx context.Context) error {
	l.logger.Info("worker loop started")
	for {
		if ctx.Err() != nil {
			l.logger.Info("worker loop stopped")
			return nil
		}

		task, err := l.tasks.ClaimNext(ctx)
		switch {
		case errors.Is(err, store.ErrNoTask):
			l.pause(ctx, l.idleInterval)
			continue
		case err != nil:
			if ctx.Err() != nil {
				continue
			}
			metrics.ClaimErrors.Inc()
			l.logger.Error("claim failed", "error", err)
			l.pause(ctx, l.errorBackoff)
			continue
		}

		metrics.TasksClaimed.Inc()
		l.process(ctx, task)
	}
}

// process runs one attempt and applies the resulting transition. The attempt
// gets a context detached from the loop's: on shutdown it keeps running for
// the grace period, then is canceled, which surfaces as a recoverable
// failure and a requeue.
func (l *Loop) process(ctx context.Context, task *domain.Task) {
	log := l.logger.With("task_id", task.ID, "attempt", task.AttemptCount, "source_url", task.SourceURL)
	log.Info("task claimed")
	start := time.Now()

	execCtx, cancelExec := context.WithCancel(logger.WithLogger(context.Background(), log))
	defer cancelExec()
	watchdogDone := make(chan struct{})
	defer close(watchdogDone)
	go func() {
		select {
		case <-watchdogDone:
		case <-ctx.Done():
			select {
			case <-watchdogDone:
			case <-time.After(l.shutdownGrace):
				cancelExec()
			}
		}
	}()

	outcome := l.executor.Execute(execCtx, task)
	metrics.TaskDuration.Observe(time.Since(start).Seconds())

	transition := l.policy.Decide(outcome, task.AttemptCount)
	l.apply(log, task, outcome, transition)
}

// apply persists the decided transition and, once it is durably committed,
// delivers the webhook. Store and notifier calls run under their own bounded
// context so neither shutdown nor a slow endpoint can strand them.
func (l *Loop) apply(log *slog.Logger, task *domain.Task, outcome Outcome, transition Transition) {
	ctx, cancel := context.WithTimeout(logger.WithLogger(context.Background(), log), transitionTimeout)
	defer cancel()

	var err error
	switch transition.Action {
	case ActionComplete:
		err = l.tasks.Complete(ctx, task.ID, outcome.Result)
		task.Status = domain.TaskStatusCompleted
		task.Result = outcome.Result
		task.ErrorDetail = ""
	case ActionFail:
		err = l.tasks.Fail(ctx, task.ID, transition.ErrorDetail)
		task.Status = domain.TaskStatusFailed
		task.Result = nil
		task.ErrorDetail = transition.ErrorDetail
	case ActionRequeue:
		err = l.tasks.Requeue(ctx, task.ID, transition.ErrorDetail, time.Now().Add(transition.Delay))
		task.Status = domain.TaskStatusQueued
		task.Result = nil
		task.ErrorDetail = transition.ErrorDetail
	}
	if err != nil {
		// The row stays in processing; the reaper will requeue it once it
		// exceeds the stuck age.
		log.Error("transition failed", "action", transition.Action, "error", err)
		return
	}

	metrics.TaskTransitions.WithLabelValues(string(transition.Action)).Inc()
	switch transition.Action {
	case ActionComplete:
		log.Info("task completed", "duration", time.Since(task.CreatedAt))
	case ActionFail:
		log.Warn("task failed", "stage", outcome.Stage, "error_detail", transition.ErrorDetail)
	case ActionRequeue:
		// No webhook on requeue: callers hear about final states only.
		log.Warn("task requeued", "stage", outcome.Stage, "delay", transition.Delay, "error_detail", transition.ErrorDetail)
		return
	}

	if notifyErr := l.notifier.Notify(ctx, task); notifyErr != nil {
		// Best effort only: delivery failure never alters task state.
		log.Warn("webhook delivery failed", "error", notifyErr)
	}
}

// pause sleeps for d or until ctx is canceled, whichever comes first.
func (l *Loop) pause(ctx context.Context, d time.Duration) {
	select {
	case <-ctx.Done():
	case <-time.After(d):
	}
}
