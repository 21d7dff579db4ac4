package usecase

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/example/storefront-sync/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type notice struct {
	message  string
	severity domain.Severity
}

type recordingNotifier struct {
	mu      sync.Mutex
	notices []notice
}

func (r *recordingNotifier) Notify(message string, severity domain.Severity) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.notices = append(r.notices, notice{message, severity})
}

func (r *recordingNotifier) all() []notice {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]notice(nil), r.notices...)
}

type fakeSub struct {
	feed    *fakeFeed
	ids     []string
	handler func([]byte) bool
	onError func(error)
	closed  bool
}

func (s *fakeSub) Close() error {
	s.feed.mu.Lock()
	defer s.feed.mu.Unlock()
	s.closed = true
	return nil
}

type fakeFeed struct {
	mu   sync.Mutex
	subs []*fakeSub
	// failNext makes the next Subscribe call fail.
	failNext bool
	// gate, when set, blocks Subscribe until it receives a value.
	gate chan struct{}
	// replayThenFail delivers this message and then fails the subscribe,
	// like a transport that replayed one subject before the next refused.
	replayThenFail []byte
	accepted       []bool
}

func (f *fakeFeed) Subscribe(ctx context.Context, ids []string, handler func([]byte) bool, onError func(error)) (domain.FeedSubscription, error) {
	if f.replayThenFail != nil {
		ok := handler(f.replayThenFail)
		f.mu.Lock()
		defer f.mu.Unlock()
		f.replayThenFail = nil
		f.accepted = append(f.accepted, ok)
		return nil, errors.New("subscribe refused for second subject")
	}
	if f.gate != nil {
		select {
		case <-f.gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failNext {
		f.failNext = false
		return nil, errors.New("connection refused")
	}
	s := &fakeSub{feed: f, ids: append([]string(nil), ids...), handler: handler, onError: onError}
	f.subs = append(f.subs, s)
	return s, nil
}

func (f *fakeFeed) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.subs)
}

func (f *fakeFeed) last() *fakeSub {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.subs) == 0 {
		return nil
	}
	return f.subs[len(f.subs)-1]
}

func (f *fakeFeed) openSubs() []*fakeSub {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*fakeSub
	for _, s := range f.subs {
		if !s.closed {
			out = append(out, s)
		}
	}
	return out
}

const (
	waitFor = 2 * time.Second
	tick    = 5 * time.Millisecond
)

func updateEvent(id, status string) []byte {
	return []byte(`{"type":"UPDATE","record":{"id":"` + id + `","status":"` + status + `"}}`)
}

func newEngine(t *testing.T, feed domain.ChangeFeed) (*SyncEngine, *OrderStore, *recordingNotifier) {
	t.Helper()
	orders, _ := newOrders(t)
	notes := &recordingNotifier{}
	return NewSyncEngine(orders, feed, notes, nil), orders, notes
}

func TestSyncEngine_StatusTransitionNotifiesOnce(t *testing.T) {
	ctx := context.Background()
	engine, orders, notes := newEngine(t, nil)
	require.NoError(t, orders.AddOrder(ctx, trackedOrder("abc123", domain.StatusWaiting, 1)))

	engine.handleMessage(ctx, updateEvent("abc123", "Processing"))

	status, _ := orders.Status("abc123")
	assert.Equal(t, domain.StatusInProgress, status)
	got := notes.all()
	require.Len(t, got, 1)
	assert.Equal(t, domain.SeverityInfo, got[0].severity)
	assert.Equal(t, "Status pesanan #ABC123... berubah menjadi InProgress.", got[0].message)
}

func TestSyncEngine_DuplicateStatusAppliesFieldsWithoutNotice(t *testing.T) {
	ctx := context.Background()
	engine, orders, notes := newEngine(t, nil)
	require.NoError(t, orders.AddOrder(ctx, trackedOrder("abc123", domain.StatusWaiting, 1)))

	engine.handleMessage(ctx, updateEvent("abc123", "Processing"))
	engine.handleMessage(ctx, []byte(`{"type":"UPDATE","record":{"id":"abc123","status":"Processing","total_amount":125000,"rejection_reason":"ongkir berubah"}}`))

	assert.Len(t, notes.all(), 1)
	o, _ := orders.Order("abc123")
	require.NotNil(t, o.TotalAmount)
	assert.Equal(t, int64(125000), *o.TotalAmount)
	require.NotNil(t, o.RejectionReason)
	assert.Equal(t, "ongkir berubah", *o.RejectionReason)
}

func TestSyncEngine_UnknownOrderIgnored(t *testing.T) {
	ctx := context.Background()
	engine, orders, notes := newEngine(t, nil)
	require.NoError(t, orders.AddOrder(ctx, trackedOrder("abc123", domain.StatusWaiting, 1)))

	engine.handleMessage(ctx, updateEvent("zzz999", "Delivered"))

	assert.Empty(t, notes.all())
	assert.Equal(t, []string{"abc123"}, orders.IDs())
	status, _ := orders.Status("abc123")
	assert.Equal(t, domain.StatusWaiting, status)
}

func TestSyncEngine_NotificationRules(t *testing.T) {
	tests := []struct {
		name     string
		old      domain.OrderStatus
		remote   string
		severity domain.Severity
		contains string
	}{
		{"completed", domain.StatusShipped, "Delivered", domain.SeveritySuccess, "telah sampai"},
		{"cancelled", domain.StatusWaiting, "Cancelled", domain.SeverityError, "dibatalkan"},
		{"cancellation rejected", domain.StatusCancellationPending, "Processing", domain.SeverityError, "ditolak oleh admin"},
		{"in progress from waiting is generic", domain.StatusWaiting, "Processing", domain.SeverityInfo, "berubah menjadi InProgress"},
		{"shipped", domain.StatusInProgress, "Shipped", domain.SeverityInfo, "dalam perjalanan"},
		{"cancellation requested is generic", domain.StatusInProgress, "Cancellation Requested", domain.SeverityInfo, "berubah menjadi CancellationPending"},
		{"unknown remote passes through", domain.StatusWaiting, "OnHold", domain.SeverityInfo, "berubah menjadi OnHold"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			engine, orders, notes := newEngine(t, nil)
			require.NoError(t, orders.AddOrder(ctx, trackedOrder("5f3c9a7e-1b2d", tt.old, 1)))

			engine.handleMessage(ctx, updateEvent("5f3c9a7e-1b2d", tt.remote))

			got := notes.all()
			require.Len(t, got, 1)
			assert.Equal(t, tt.severity, got[0].severity)
			assert.Contains(t, got[0].message, tt.contains)
			assert.Contains(t, got[0].message, "#5F3C9A7E...")
			assert.NotContains(t, got[0].message, "5f3c9a7e-1b2d")
		})
	}
}

func TestSyncEngine_CancelledMessageIncludesReason(t *testing.T) {
	ctx := context.Background()
	engine, orders, notes := newEngine(t, nil)
	require.NoError(t, orders.AddOrder(ctx, trackedOrder("abc123", domain.StatusWaiting, 1)))

	engine.handleMessage(ctx, []byte(`{"type":"UPDATE","record":{"id":"abc123","status":"Cancelled","rejection_reason":"stok habis"}}`))

	got := notes.all()
	require.Len(t, got, 1)
	assert.Contains(t, got[0].message, "Alasan: stok habis")
}

func TestSyncEngine_DeleteRemovesWithoutNotice(t *testing.T) {
	ctx := context.Background()
	engine, orders, notes := newEngine(t, nil)
	require.NoError(t, orders.AddOrder(ctx, trackedOrder("a", domain.StatusWaiting, 1)))
	require.NoError(t, orders.AddOrder(ctx, trackedOrder("b", domain.StatusWaiting, 2)))

	engine.handleMessage(ctx, []byte(`{"type":"DELETE","old_record":{"id":"a"}}`))
	engine.handleMessage(ctx, []byte(`{"type":"delete","record":{"id":"b"}}`))
	// unfiltered delete for an order this shopper never had
	engine.handleMessage(ctx, []byte(`{"type":"DELETE","old_record":{"id":"other"}}`))

	assert.Empty(t, orders.IDs())
	assert.Empty(t, notes.all())
}

func TestSyncEngine_MalformedEventsDropped(t *testing.T) {
	ctx := context.Background()
	engine, orders, notes := newEngine(t, nil)
	require.NoError(t, orders.AddOrder(ctx, trackedOrder("a", domain.StatusWaiting, 1)))

	for _, raw := range []string{`{`, `{"type":"INSERT","record":{"id":"a"}}`, `{"type":"UPDATE"}`, `{"type":"DELETE"}`} {
		engine.handleMessage(ctx, []byte(raw))
	}
	assert.Empty(t, notes.all())
	assert.Equal(t, []string{"a"}, orders.IDs())
}

func TestSyncEngine_EmptyStatusKeepsCurrent(t *testing.T) {
	ctx := context.Background()
	engine, orders, notes := newEngine(t, nil)
	require.NoError(t, orders.AddOrder(ctx, trackedOrder("a", domain.StatusShipped, 1)))

	engine.handleMessage(ctx, []byte(`{"type":"UPDATE","record":{"id":"a","total_amount":0}}`))

	o, _ := orders.Order("a")
	assert.Equal(t, domain.StatusShipped, o.Status)
	require.NotNil(t, o.TotalAmount)
	assert.Zero(t, *o.TotalAmount)
	assert.Empty(t, notes.all())
}

func TestSyncEngine_NilFeedStaysIdle(t *testing.T) {
	ctx := context.Background()
	engine, orders, _ := newEngine(t, nil)
	require.NoError(t, orders.AddOrder(ctx, trackedOrder("a", domain.StatusWaiting, 1)))

	engine.Start(ctx)
	defer engine.Stop()

	assert.Equal(t, EngineIdle, engine.State())
	assert.Nil(t, engine.Scope())
}

func TestSyncEngine_SubscribesToWholeScope(t *testing.T) {
	ctx := context.Background()
	feed := &fakeFeed{}
	engine, orders, _ := newEngine(t, feed)

	engine.Start(ctx)
	defer engine.Stop()
	assert.Equal(t, EngineIdle, engine.State())
	assert.Zero(t, feed.count())

	require.NoError(t, orders.AddOrder(ctx, trackedOrder("b", domain.StatusWaiting, 1)))
	require.Eventually(t, func() bool { return engine.State() == EngineActive }, waitFor, tick)
	assert.Equal(t, []string{"b"}, engine.Scope())

	require.NoError(t, orders.AddOrder(ctx, trackedOrder("a", domain.StatusWaiting, 2)))
	require.Eventually(t, func() bool { return len(engine.Scope()) == 2 }, waitFor, tick)
	assert.Equal(t, []string{"a", "b"}, engine.Scope())
	assert.Equal(t, []string{"a", "b"}, feed.last().ids)

	open := feed.openSubs()
	require.Len(t, open, 1, "previous subscription must be released")

	require.NoError(t, orders.RemoveOrder(ctx, "b"))
	require.Eventually(t, func() bool { return len(engine.Scope()) == 1 }, waitFor, tick)
	assert.Equal(t, []string{"a"}, engine.Scope())

	require.NoError(t, orders.ClearOrders(ctx))
	require.Eventually(t, func() bool { return engine.State() == EngineIdle }, waitFor, tick)
	assert.Empty(t, feed.openSubs())
}

func TestSyncEngine_UnrelatedChangesDoNotResubscribe(t *testing.T) {
	ctx := context.Background()
	feed := &fakeFeed{}
	engine, orders, notes := newEngine(t, feed)
	require.NoError(t, orders.AddOrder(ctx, trackedOrder("a", domain.StatusWaiting, 1)))

	engine.Start(ctx)
	defer engine.Stop()
	require.Eventually(t, func() bool { return engine.State() == EngineActive }, waitFor, tick)

	feed.last().handler(updateEvent("a", "Processing"))
	require.Eventually(t, func() bool { return len(notes.all()) == 1 }, waitFor, tick)
	require.NoError(t, orders.UpdateOrderStatus(ctx, "a", domain.StatusShipped, domain.Absent[string](), domain.Absent[int64]()))

	// give the loop a chance to act on the change signals
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, 1, feed.count())
}

func TestSyncEngine_EventsAppliedInDeliveryOrder(t *testing.T) {
	ctx := context.Background()
	feed := &fakeFeed{}
	engine, orders, notes := newEngine(t, feed)
	require.NoError(t, orders.AddOrder(ctx, trackedOrder("a", domain.StatusWaiting, 1)))

	engine.Start(ctx)
	defer engine.Stop()
	require.Eventually(t, func() bool { return engine.State() == EngineActive }, waitFor, tick)

	sub := feed.last()
	for _, st := range []string{"Processing", "Shipped", "Delivered"} {
		sub.handler(updateEvent("a", st))
	}
	require.Eventually(t, func() bool { return len(notes.all()) == 3 }, waitFor, tick)

	got := notes.all()
	assert.Contains(t, got[0].message, "InProgress")
	assert.Contains(t, got[1].message, "dalam perjalanan")
	assert.Equal(t, domain.SeveritySuccess, got[2].severity)
	status, _ := orders.Status("a")
	assert.Equal(t, domain.StatusCompleted, status)
}

func TestSyncEngine_SubscribeFailureWaitsForNextChange(t *testing.T) {
	ctx := context.Background()
	feed := &fakeFeed{failNext: true}
	engine, orders, _ := newEngine(t, feed)
	require.NoError(t, orders.AddOrder(ctx, trackedOrder("a", domain.StatusWaiting, 1)))

	engine.Start(ctx)
	defer engine.Stop()

	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, EngineIdle, engine.State())
	assert.Zero(t, feed.count())

	// same id set does not retry
	require.NoError(t, orders.UpdateOrderStatus(ctx, "a", domain.StatusShipped, domain.Absent[string](), domain.Absent[int64]()))
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, EngineIdle, engine.State())

	require.NoError(t, orders.AddOrder(ctx, trackedOrder("b", domain.StatusWaiting, 2)))
	require.Eventually(t, func() bool { return engine.State() == EngineActive }, waitFor, tick)
	assert.Equal(t, []string{"a", "b"}, engine.Scope())
}

func TestSyncEngine_TransportErrorReturnsToIdle(t *testing.T) {
	ctx := context.Background()
	feed := &fakeFeed{}
	engine, orders, notes := newEngine(t, feed)
	require.NoError(t, orders.AddOrder(ctx, trackedOrder("a", domain.StatusWaiting, 1)))

	engine.Start(ctx)
	defer engine.Stop()
	require.Eventually(t, func() bool { return engine.State() == EngineActive }, waitFor, tick)

	failed := feed.last()
	failed.onError(errors.New("network drop"))
	require.Eventually(t, func() bool { return engine.State() == EngineIdle }, waitFor, tick)
	assert.True(t, func() bool { feed.mu.Lock(); defer feed.mu.Unlock(); return failed.closed }())

	// messages from the failed subscription are ignored
	go failed.handler(updateEvent("a", "Delivered"))
	time.Sleep(50 * time.Millisecond)
	assert.Empty(t, notes.all())

	require.NoError(t, orders.AddOrder(ctx, trackedOrder("b", domain.StatusWaiting, 2)))
	require.Eventually(t, func() bool { return engine.State() == EngineActive }, waitFor, tick)
	assert.Equal(t, 2, feed.count())
}

func TestSyncEngine_LatestScopeWinsWhileSubscribing(t *testing.T) {
	ctx := context.Background()
	feed := &fakeFeed{gate: make(chan struct{})}
	engine, orders, _ := newEngine(t, feed)
	require.NoError(t, orders.AddOrder(ctx, trackedOrder("a", domain.StatusWaiting, 1)))

	engine.Start(ctx)
	defer engine.Stop()
	require.Eventually(t, func() bool { return engine.State() == EngineSubscribing }, waitFor, tick)

	// scope changes while the first attempt is in flight
	require.NoError(t, orders.AddOrder(ctx, trackedOrder("b", domain.StatusWaiting, 2)))
	require.NoError(t, orders.AddOrder(ctx, trackedOrder("c", domain.StatusWaiting, 3)))

	feed.gate <- struct{}{}
	feed.gate <- struct{}{}

	require.Eventually(t, func() bool { return len(engine.Scope()) == 3 }, waitFor, tick)
	open := feed.openSubs()
	require.Len(t, open, 1)
	assert.Equal(t, []string{"a", "b", "c"}, open[0].ids)
}

func TestSyncEngine_StopIsIdempotentAndFinal(t *testing.T) {
	ctx := context.Background()
	feed := &fakeFeed{}
	engine, orders, notes := newEngine(t, feed)

	engine.Stop() // before start

	require.NoError(t, orders.AddOrder(ctx, trackedOrder("a", domain.StatusWaiting, 1)))
	engine.Start(ctx)
	require.Eventually(t, func() bool { return engine.State() == EngineActive }, waitFor, tick)
	sub := feed.last()

	engine.Stop()
	engine.Stop()

	assert.Equal(t, EngineIdle, engine.State())
	assert.Empty(t, feed.openSubs())

	accepted := make(chan bool, 1)
	go func() { accepted <- sub.handler(updateEvent("a", "Delivered")) }()
	select {
	case ok := <-accepted:
		assert.False(t, ok, "released subscription must not ack")
	case <-time.After(waitFor):
		t.Fatal("handler blocked after Stop")
	}
	assert.Empty(t, notes.all())
	status, _ := orders.Status("a")
	assert.Equal(t, domain.StatusWaiting, status)
}

func TestSyncEngine_FailedSubscribeDiscardsReplayedMessages(t *testing.T) {
	ctx := context.Background()
	feed := &fakeFeed{replayThenFail: updateEvent("a", "Delivered")}
	engine, orders, notes := newEngine(t, feed)
	require.NoError(t, orders.AddOrder(ctx, trackedOrder("a", domain.StatusWaiting, 1)))

	engine.Start(ctx)
	defer engine.Stop()

	require.Eventually(t, func() bool {
		feed.mu.Lock()
		defer feed.mu.Unlock()
		return len(feed.accepted) == 1
	}, waitFor, tick)
	time.Sleep(50 * time.Millisecond)

	assert.Equal(t, EngineIdle, engine.State())
	assert.Empty(t, notes.all())
	status, _ := orders.Status("a")
	assert.Equal(t, domain.StatusWaiting, status)

	// the next id set change subscribes normally
	require.NoError(t, orders.AddOrder(ctx, trackedOrder("b", domain.StatusWaiting, 2)))
	require.Eventually(t, func() bool { return engine.State() == EngineActive }, waitFor, tick)
	assert.True(t, feed.last().handler(updateEvent("a", "Shipped")))
	require.Eventually(t, func() bool { return len(notes.all()) == 1 }, waitFor, tick)
}

func TestSyncEngine_RestartAfterStop(t *testing.T) {
	ctx := context.Background()
	feed := &fakeFeed{}
	engine, orders, notes := newEngine(t, feed)
	require.NoError(t, orders.AddOrder(ctx, trackedOrder("a", domain.StatusWaiting, 1)))

	engine.Start(ctx)
	require.Eventually(t, func() bool { return engine.State() == EngineActive }, waitFor, tick)
	engine.Stop()
	require.Empty(t, feed.openSubs())

	engine.Start(ctx)
	defer engine.Stop()
	require.Eventually(t, func() bool { return engine.State() == EngineActive }, waitFor, tick)
	assert.Equal(t, 2, feed.count())
	assert.Equal(t, []string{"a"}, engine.Scope())

	assert.True(t, feed.last().handler(updateEvent("a", "Processing")))
	require.Eventually(t, func() bool { return len(notes.all()) == 1 }, waitFor, tick)
}

func TestShortOrderID(t *testing.T) {
	assert.Equal(t, "ABC123", ShortOrderID("abc123"))
	assert.Equal(t, "5F3C9A7E", ShortOrderID("5f3c9a7e-1b2d-4c3e"))
	assert.Equal(t, "", ShortOrderID(""))
}

func TestSyncEngine_PersistFailureStillAppliesInMemory(t *testing.T) {
	ctx := context.Background()
	orders, storage := newOrders(t)
	notes := &recordingNotifier{}
	engine := NewSyncEngine(orders, nil, notes, nil)
	require.NoError(t, orders.AddOrder(ctx, trackedOrder("a", domain.StatusWaiting, 1)))
	require.NoError(t, orders.AddOrder(ctx, trackedOrder("b", domain.StatusWaiting, 2)))
	storage.SaveErr = errors.New("disk full")

	engine.handleMessage(ctx, updateEvent("a", "Shipped"))
	engine.handleMessage(ctx, []byte(`{"type":"DELETE","old_record":{"id":"b"}}`))

	status, _ := orders.Status("a")
	assert.Equal(t, domain.StatusShipped, status)
	assert.Equal(t, []string{"a"}, orders.IDs())
	assert.Len(t, notes.all(), 1)
}
