// Package dispatch turns moderation verdicts into block/mute calls against
// the upstream API, with deduplication, a bounded-concurrency queue, and a
// deferral path for targets whose stable identifier is not yet resolvable.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/feedsieve/feedsieve/eventlog"
	"github.com/feedsieve/feedsieve/timeline"
	"github.com/feedsieve/feedsieve/xclient"

	"github.com/puzpuzpuz/xsync/v4"
)

// ActionClient is the slice of the upstream client the dispatcher needs.
type ActionClient interface {
	LookupUserID(ctx context.Context, handle string) (string, error)
	Block(ctx context.Context, userID string) error
	Mute(ctx context.Context, userID string) error
}

var _ ActionClient = (*xclient.Client)(nil)

const (
	// queueWorkers bounds concurrent upstream mutation calls. The upstream
	// rate-limits aggressively; two in flight is the ceiling that has proven
	// safe in practice.
	queueWorkers = 2
	queueDepth   = 256

	// maxDeferrals caps identifier-deferral retries per handle. Without a
	// cap a handle whose lookup operation id never gets captured would
	// reschedule itself forever.
	maxDeferrals = 3

	defaultDeferDelay = 20 * time.Second
)

type Config struct {
	Logger *slog.Logger
	Client ActionClient
	Events eventlog.Log

	// DeferDelay overrides the identifier-deferral retry delay. Zero means
	// the default; tests set it low.
	DeferDelay time.Duration
}

// Dispatcher runs the per-handle action state machine:
// unseen -> attempted -> succeeded | deferred (bounded retries) | failed.
type Dispatcher struct {
	logger     *slog.Logger
	client     ActionClient
	events     eventlog.Log
	queue      *queue
	deferDelay time.Duration

	// succeeded holds lowercased handles whose action completed; entries are
	// never removed for the process lifetime, which is what makes repeat
	// sightings of the same account free.
	succeeded *xsync.Map[string, struct{}]
	// inflight holds handles with an attempt anywhere between submission and
	// a terminal outcome, including the deferral wait. It is the dedup gate.
	inflight *xsync.Map[string, struct{}]
	// pending holds handles with a scheduled deferral timer, preventing a
	// second timer for the same handle.
	pending *xsync.Map[string, *time.Timer]
}

func NewDispatcher(cfg Config) *Dispatcher {
	delay := cfg.DeferDelay
	if delay == 0 {
		delay = defaultDeferDelay
	}
	return &Dispatcher{
		logger:     cfg.Logger.With("component", "dispatcher"),
		client:     cfg.Client,
		events:     cfg.Events,
		queue:      newQueue(queueWorkers, queueDepth),
		deferDelay: delay,
		succeeded:  xsync.NewMap[string, struct{}](),
		inflight:   xsync.NewMap[string, struct{}](),
		pending:    xsync.NewMap[string, *time.Timer](),
	}
}

// Shutdown cancels pending deferral timers and drains the queue.
func (d *Dispatcher) Shutdown() {
	d.pending.Range(func(handle string, t *time.Timer) bool {
		t.Stop()
		d.pending.Delete(handle)
		return true
	})
	d.queue.shutdown()
}

type task struct {
	ctx     context.Context
	rec     timeline.UserRecord
	action  eventlog.Action
	reason  string
	attempt int
}

// Submit queues a block or mute for the record's account. Safety gate first:
// accounts connected to the viewer in either direction are never acted on,
// even when only one side of the relationship is known. Duplicate submissions
// for a handle already in flight or already actioned are dropped.
func (d *Dispatcher) Submit(ctx context.Context, rec timeline.UserRecord, action eventlog.Action, reason string) {
	if rec.Handle == "" {
		return
	}
	if rec.WeFollow || rec.FollowedByThem {
		d.events.Record(eventlog.Event{
			Handle:  rec.Handle,
			Action:  action,
			Outcome: eventlog.OutcomeSkipped,
			Reason:  "connected account",
		})
		return
	}
	key := strings.ToLower(rec.Handle)
	if _, ok := d.succeeded.Load(key); ok {
		return
	}
	if _, loaded := d.inflight.LoadOrStore(key, struct{}{}); loaded {
		return
	}
	d.queue.submit(func() {
		d.perform(task{ctx: ctx, rec: rec, action: action, reason: reason})
	})
}

func (d *Dispatcher) perform(t task) {
	key := strings.ToLower(t.rec.Handle)

	id, err := d.resolveID(t.ctx, t.rec)
	if err != nil {
		if errors.Is(err, xclient.ErrNoOperationID) && t.attempt < maxDeferrals {
			d.deferRetry(t, key)
			return
		}
		d.finish(key, t, eventlog.OutcomeFailure, fmt.Sprintf("identifier resolution: %v", err))
		return
	}

	if err := d.act(t.ctx, t.action, id); err != nil {
		d.finish(key, t, eventlog.OutcomeFailure, err.Error())
		return
	}
	d.succeeded.Store(key, struct{}{})
	d.finish(key, t, eventlog.OutcomeSuccess, t.reason)
}

// deferRetry schedules exactly one retry for the handle. The handle stays in
// the inflight set for the duration, so concurrent submissions stay
// deduplicated.
func (d *Dispatcher) deferRetry(t task, key string) {
	timer := time.AfterFunc(d.deferDelay, func() {
		d.pending.Delete(key)
		next := t
		next.attempt++
		d.queue.submit(func() { d.perform(next) })
	})
	if _, loaded := d.pending.LoadOrStore(key, timer); loaded {
		timer.Stop()
		return
	}
	actionDeferrals.Inc()
	d.logger.Info("deferring action until operation id is captured",
		"handle", t.rec.Handle, "action", t.action, "attempt", t.attempt+1)
}

func (d *Dispatcher) finish(key string, t task, outcome eventlog.Outcome, reason string) {
	d.inflight.Delete(key)
	actionsProcessed.WithLabelValues(string(t.action), string(outcome)).Inc()
	d.events.Record(eventlog.Event{
		Handle:  t.rec.Handle,
		Action:  t.action,
		Outcome: outcome,
		Reason:  reason,
	})
	if outcome == eventlog.OutcomeFailure {
		d.logger.Warn("moderation action failed",
			"handle", t.rec.Handle, "action", t.action, "reason", reason)
	}
}

func (d *Dispatcher) resolveID(ctx context.Context, rec timeline.UserRecord) (string, error) {
	if rec.HasID() {
		return rec.ID, nil
	}
	return d.client.LookupUserID(ctx, rec.Handle)
}

func (d *Dispatcher) act(ctx context.Context, action eventlog.Action, userID string) error {
	switch action {
	case eventlog.ActionBlock:
		return d.client.Block(ctx, userID)
	case eventlog.ActionMute:
		return d.client.Mute(ctx, userID)
	default:
		return fmt.Errorf("unknown action %q", action)
	}
}

// Do runs a single action through the bounded queue and waits for its
// outcome. The bulk batch path uses this so operator-triggered passes share
// the same rate-limit funnel as auto-moderation, while keeping per-target
// errors synchronous. No deferral: a target whose identifier cannot be
// resolved right now just fails this invocation.
func (d *Dispatcher) Do(ctx context.Context, rec timeline.UserRecord, action eventlog.Action) error {
	done := make(chan error, 1)
	d.queue.submit(func() {
		id, err := d.resolveID(ctx, rec)
		if err != nil {
			done <- fmt.Errorf("identifier resolution: %w", err)
			return
		}
		done <- d.act(ctx, action, id)
	})
	select {
	case err := <-done:
		outcome := eventlog.OutcomeSuccess
		reason := "bulk pass"
		if err != nil {
			outcome = eventlog.OutcomeFailure
			reason = err.Error()
		}
		actionsProcessed.WithLabelValues(string(action), string(outcome)).Inc()
		d.events.Record(eventlog.Event{
			Handle:  rec.Handle,
			Action:  action,
			Outcome: outcome,
			Reason:  reason,
		})
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}
