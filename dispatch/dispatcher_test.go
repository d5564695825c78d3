package dispatch

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/feedsieve/feedsieve/eventlog"
	"github.com/feedsieve/feedsieve/timeline"
	"github.com/feedsieve/feedsieve/xclient"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClient struct {
	mu          sync.Mutex
	lookupErr   error
	lookupCalls int
	blocked     []string
	muted       []string

	actDelay    time.Duration
	inflight    int
	maxInflight int
}

func (f *fakeClient) LookupUserID(ctx context.Context, handle string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lookupCalls++
	if f.lookupErr != nil {
		return "", f.lookupErr
	}
	return "id-" + handle, nil
}

func (f *fakeClient) lookups() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.lookupCalls
}

func (f *fakeClient) act(list *[]string, id string) error {
	f.mu.Lock()
	f.inflight++
	if f.inflight > f.maxInflight {
		f.maxInflight = f.inflight
	}
	f.mu.Unlock()

	time.Sleep(f.actDelay)

	f.mu.Lock()
	f.inflight--
	*list = append(*list, id)
	f.mu.Unlock()
	return nil
}

func (f *fakeClient) Block(ctx context.Context, userID string) error {
	return f.act(&f.blocked, userID)
}

func (f *fakeClient) Mute(ctx context.Context, userID string) error {
	return f.act(&f.muted, userID)
}

func (f *fakeClient) blockedIDs() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.blocked))
	copy(out, f.blocked)
	return out
}

func testDispatcher(t *testing.T, client ActionClient, deferDelay time.Duration) (*Dispatcher, *eventlog.MemLog) {
	t.Helper()
	events := &eventlog.MemLog{}
	d := NewDispatcher(Config{
		Logger:     slog.Default(),
		Client:     client,
		Events:     events,
		DeferDelay: deferDelay,
	})
	t.Cleanup(d.Shutdown)
	return d, events
}

func TestSubmitDedupSingleDeferral(t *testing.T) {
	assert := assert.New(t)

	client := &fakeClient{lookupErr: xclient.ErrNoOperationID}
	d, _ := testDispatcher(t, client, time.Hour)

	rec := timeline.UserRecord{Handle: "SpamBot"}
	d.Submit(context.Background(), rec, eventlog.ActionBlock, "matched keyword")
	d.Submit(context.Background(), rec, eventlog.ActionBlock, "matched keyword")

	assert.Eventually(func() bool { return client.lookups() == 1 }, time.Second, 5*time.Millisecond)

	// exactly one deferral timer outstanding, case-insensitively
	d.Submit(context.Background(), timeline.UserRecord{Handle: "spambot"}, eventlog.ActionBlock, "matched keyword")
	time.Sleep(50 * time.Millisecond)
	assert.Equal(1, client.lookups())
}

func TestDeferralGivesUpAfterCap(t *testing.T) {
	assert := assert.New(t)

	client := &fakeClient{lookupErr: xclient.ErrNoOperationID}
	d, events := testDispatcher(t, client, 2*time.Millisecond)

	d.Submit(context.Background(), timeline.UserRecord{Handle: "spambot"}, eventlog.ActionMute, "matched keyword")

	assert.Eventually(func() bool {
		for _, ev := range events.Events() {
			if ev.Outcome == eventlog.OutcomeFailure {
				return true
			}
		}
		return false
	}, 2*time.Second, 5*time.Millisecond)

	// initial attempt plus three deferral retries, then terminal failure
	assert.Equal(4, client.lookups())
	assert.Empty(client.muted)
}

func TestDeferralRetrySucceeds(t *testing.T) {
	assert := assert.New(t)

	client := &fakeClient{lookupErr: xclient.ErrNoOperationID}
	d, events := testDispatcher(t, client, 2*time.Millisecond)

	d.Submit(context.Background(), timeline.UserRecord{Handle: "spambot"}, eventlog.ActionBlock, "matched keyword")
	assert.Eventually(func() bool { return client.lookups() == 1 }, time.Second, time.Millisecond)

	// operation id "arrives" before the retry fires
	client.mu.Lock()
	client.lookupErr = nil
	client.mu.Unlock()

	assert.Eventually(func() bool { return len(client.blockedIDs()) == 1 }, time.Second, 5*time.Millisecond)
	assert.Equal([]string{"id-spambot"}, client.blockedIDs())

	evs := events.Events()
	require.NotEmpty(t, evs)
	assert.Equal(eventlog.OutcomeSuccess, evs[len(evs)-1].Outcome)
}

func TestSafetyGateConnectedAccounts(t *testing.T) {
	assert := assert.New(t)

	client := &fakeClient{}
	d, events := testDispatcher(t, client, time.Hour)

	d.Submit(context.Background(), timeline.UserRecord{Handle: "friend", FollowedByThem: true}, eventlog.ActionBlock, "matched keyword")
	d.Submit(context.Background(), timeline.UserRecord{Handle: "hero", WeFollow: true}, eventlog.ActionMute, "matched keyword")
	time.Sleep(50 * time.Millisecond)

	assert.Zero(client.lookups())
	assert.Empty(client.blockedIDs())

	evs := events.Events()
	require.Len(t, evs, 2)
	for _, ev := range evs {
		assert.Equal(eventlog.OutcomeSkipped, ev.Outcome)
	}
}

func TestQueueBoundsConcurrency(t *testing.T) {
	assert := assert.New(t)

	client := &fakeClient{actDelay: 20 * time.Millisecond}
	d, _ := testDispatcher(t, client, time.Hour)

	for _, h := range []string{"a", "b", "c", "d", "e"} {
		d.Submit(context.Background(), timeline.UserRecord{ID: "id-" + h, Handle: h}, eventlog.ActionBlock, "batch")
	}

	assert.Eventually(func() bool { return len(client.blockedIDs()) == 5 }, 2*time.Second, 5*time.Millisecond)
	client.mu.Lock()
	defer client.mu.Unlock()
	assert.LessOrEqual(client.maxInflight, 2)
}

func TestSucceededHandlesNotResubmitted(t *testing.T) {
	assert := assert.New(t)

	client := &fakeClient{}
	d, _ := testDispatcher(t, client, time.Hour)

	rec := timeline.UserRecord{ID: "42", Handle: "spambot"}
	d.Submit(context.Background(), rec, eventlog.ActionBlock, "matched keyword")
	assert.Eventually(func() bool { return len(client.blockedIDs()) == 1 }, time.Second, time.Millisecond)

	d.Submit(context.Background(), rec, eventlog.ActionBlock, "matched keyword")
	time.Sleep(50 * time.Millisecond)
	assert.Len(client.blockedIDs(), 1)
}

func TestDoReportsResolutionFailure(t *testing.T) {
	assert := assert.New(t)

	client := &fakeClient{lookupErr: errors.New("upstream sad")}
	d, events := testDispatcher(t, client, time.Hour)

	err := d.Do(context.Background(), timeline.UserRecord{Handle: "ghost"}, eventlog.ActionBlock)
	assert.Error(err)

	evs := events.Events()
	require.Len(t, evs, 1)
	assert.Equal(eventlog.OutcomeFailure, evs[0].Outcome)
}

func TestQueueSubmitAfterShutdown(t *testing.T) {
	q := newQueue(2, 4)
	q.shutdown()
	assert.NotPanics(t, func() { q.submit(func() {}) })
	// idempotent
	assert.NotPanics(t, q.shutdown)
}

func TestQueueDrainsAcceptedJobsOnShutdown(t *testing.T) {
	q := newQueue(1, 8)
	var ran atomic.Int64
	for i := 0; i < 5; i++ {
		q.submit(func() { ran.Add(1) })
	}
	q.shutdown()
	assert.Equal(t, int64(5), ran.Load())
}

func TestLateDeferralTimerDoesNotPanic(t *testing.T) {
	client := &fakeClient{lookupErr: xclient.ErrNoOperationID}
	d, _ := testDispatcher(t, client, 5*time.Millisecond)

	d.Submit(context.Background(), timeline.UserRecord{Handle: "ghost"}, eventlog.ActionBlock, "matched keyword")
	assert.Eventually(t, func() bool { return client.lookups() >= 1 }, time.Second, time.Millisecond)

	// shut down while a deferral may be mid-flight; the retry must be
	// dropped, not crash the process
	assert.NotPanics(t, d.Shutdown)
	time.Sleep(20 * time.Millisecond)
}
