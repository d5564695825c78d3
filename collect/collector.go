// Package collect accumulates user records seen on repost/quote listing pages
// into deduplicated working sets, and runs operator-triggered batch moderation
// passes over them.
package collect

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/feedsieve/feedsieve/dispatch"
	"github.com/feedsieve/feedsieve/endpoint"
	"github.com/feedsieve/feedsieve/eventlog"
	"github.com/feedsieve/feedsieve/timeline"

	"golang.org/x/time/rate"
)

// defaultItemInterval spaces batch items out beyond the dispatch queue's
// concurrency bound, to stay further under upstream rate limits.
const defaultItemInterval = 2 * time.Second

// workingSet is an insertion-ordered, id-deduplicated record list tied to one
// status. Navigating to a different status discards it.
type workingSet struct {
	statusID string
	order    []timeline.UserRecord
	seen     map[string]bool
}

func newWorkingSet(statusID string) *workingSet {
	return &workingSet{
		statusID: statusID,
		seen:     make(map[string]bool),
	}
}

type Options struct {
	DryRun  bool
	DoBlock bool
	DoMute  bool
}

// Progress is the running tally of a batch pass, safe to poll while the pass
// runs.
type Progress struct {
	Processed int64
	Succeeded int64
	Skipped   int64
}

type Config struct {
	Logger     *slog.Logger
	Dispatcher *dispatch.Dispatcher
	Events     eventlog.Log

	// ItemInterval overrides the inter-item batch delay. Zero means the
	// default; tests set it low.
	ItemInterval time.Duration
}

type Collector struct {
	logger     *slog.Logger
	dispatcher *dispatch.Dispatcher
	events     eventlog.Log
	limiter    *rate.Limiter

	mu   sync.Mutex
	sets map[endpoint.ListingPage]*workingSet

	processed atomic.Int64
	succeeded atomic.Int64
	skipped   atomic.Int64
}

func NewCollector(cfg Config) *Collector {
	interval := cfg.ItemInterval
	if interval == 0 {
		interval = defaultItemInterval
	}
	return &Collector{
		logger:     cfg.Logger.With("component", "collector"),
		dispatcher: cfg.Dispatcher,
		events:     cfg.Events,
		limiter:    rate.NewLimiter(rate.Every(interval), 1),
		sets:       make(map[endpoint.ListingPage]*workingSet),
	}
}

// SetContext points a page type's working set at a status. A status change
// discards whatever the previous navigation accumulated.
func (c *Collector) SetContext(page endpoint.ListingPage, statusID string) {
	if page == "" || statusID == "" {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	ws := c.sets[page]
	if ws != nil && ws.statusID == statusID {
		return
	}
	if ws != nil {
		c.logger.Debug("discarding working set on status change",
			"page", page, "old", ws.statusID, "new", statusID)
	}
	c.sets[page] = newWorkingSet(statusID)
}

// Collect appends a record to the page's working set, deduplicated by account
// id. Records without a usable id are dropped: the batch pass could never act
// on them. No-op for unsupported page types or before SetContext.
func (c *Collector) Collect(page endpoint.ListingPage, rec timeline.UserRecord) {
	if !rec.HasID() {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	ws := c.sets[page]
	if ws == nil {
		return
	}
	if ws.seen[rec.ID] {
		return
	}
	ws.seen[rec.ID] = true
	ws.order = append(ws.order, rec)
}

// Size reports the current working-set length for a page type.
func (c *Collector) Size(page endpoint.ListingPage) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	ws := c.sets[page]
	if ws == nil {
		return 0
	}
	return len(ws.order)
}

// Progress snapshots the running batch tallies.
func (c *Collector) Progress() Progress {
	return Progress{
		Processed: c.processed.Load(),
		Succeeded: c.succeeded.Load(),
		Skipped:   c.skipped.Load(),
	}
}

// RunBatch walks the page's working set in insertion order and applies the
// requested actions through the dispatch queue, with an inter-item delay on
// top of the queue's concurrency bound. Connected accounts are skipped, same
// gate as auto-moderation. Per-item failures do not abort the pass.
func (c *Collector) RunBatch(ctx context.Context, page endpoint.ListingPage, opts Options) (Progress, error) {
	c.mu.Lock()
	ws := c.sets[page]
	var records []timeline.UserRecord
	if ws != nil {
		records = make([]timeline.UserRecord, len(ws.order))
		copy(records, ws.order)
	}
	c.mu.Unlock()

	c.processed.Store(0)
	c.succeeded.Store(0)
	c.skipped.Store(0)

	for _, rec := range records {
		if err := ctx.Err(); err != nil {
			return c.Progress(), err
		}
		c.processed.Add(1)

		if rec.WeFollow || rec.FollowedByThem {
			c.skipped.Add(1)
			c.events.Record(eventlog.Event{
				Handle:  rec.Handle,
				Action:  eventlog.ActionBlock,
				Outcome: eventlog.OutcomeSkipped,
				Reason:  "connected account",
			})
			continue
		}

		if opts.DryRun {
			c.succeeded.Add(1)
			continue
		}

		if err := c.limiter.Wait(ctx); err != nil {
			return c.Progress(), err
		}

		ok := true
		if opts.DoBlock {
			if err := c.dispatcher.Do(ctx, rec, eventlog.ActionBlock); err != nil {
				ok = false
			}
		}
		if opts.DoMute {
			if err := c.dispatcher.Do(ctx, rec, eventlog.ActionMute); err != nil {
				ok = false
			}
		}
		if ok {
			c.succeeded.Add(1)
		}
	}
	return c.Progress(), nil
}
