package usecase

import (
	"context"
	"slices"
	"sync"

	"github.com/example/storefront-sync/internal/domain"
	"go.uber.org/zap"
)

// EngineState is the lifecycle state of the sync engine's subscription.
type EngineState string

const (
	EngineIdle        EngineState = "idle"
	EngineSubscribing EngineState = "subscribing"
	EngineActive      EngineState = "active"
)

const inboxSize = 64

type feedMessage struct {
	gen uint64
	raw []byte
	err error
}

// SyncEngine keeps one remote subscription scoped to exactly the ids held by
// the OrderStore and applies incoming events to it.
//
// All event handling and (re)subscription happen on a single loop goroutine,
// so events are applied one at a time in delivery order.
type SyncEngine struct {
	orders   *OrderStore
	feed     domain.ChangeFeed
	notifier domain.Notifier
	logger   *zap.Logger

	reconcileCh chan struct{}
	inbox       chan feedMessage

	// owned by the loop goroutine
	sub       domain.FeedSubscription
	subStop   chan struct{}
	gen       uint64
	attempted []string

	mu     sync.Mutex
	state  EngineState
	active []string
	cancel context.CancelFunc
	done   chan struct{}
}

// NewSyncEngine wires the engine to the order store. A nil feed means the
// remote transport is not configured and the engine stays idle.
func NewSyncEngine(orders *OrderStore, feed domain.ChangeFeed, notifier domain.Notifier, logger *zap.Logger) *SyncEngine {
	if notifier == nil {
		notifier = nopNotifier{}
	}
	e := &SyncEngine{
		orders:      orders,
		feed:        feed,
		notifier:    notifier,
		logger:      orNop(logger).Named("sync"),
		reconcileCh: make(chan struct{}, 1),
		inbox:       make(chan feedMessage, inboxSize),
		state:       EngineIdle,
	}
	orders.OnChange(e.requestReconcile)
	return e
}

// Start launches the engine loop. It returns immediately. A stopped engine
// can be started again.
func (e *SyncEngine) Start(ctx context.Context) {
	if e.feed == nil {
		e.logger.Warn("change feed not configured, order sync disabled", zap.Error(domain.ErrFeedUnavailable))
		return
	}

	e.mu.Lock()
	if e.done != nil {
		e.mu.Unlock()
		return
	}
	loopCtx, cancel := context.WithCancel(ctx)
	e.cancel = cancel
	e.done = make(chan struct{})
	done := e.done
	e.mu.Unlock()

	go e.run(loopCtx, done)
}

// Stop releases the subscription and waits for the loop to exit. No event
// is handled after Stop returns. Calling Stop more than once is a no-op.
func (e *SyncEngine) Stop() {
	e.mu.Lock()
	cancel, done := e.cancel, e.done
	e.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done

	e.mu.Lock()
	if e.done == done {
		e.cancel, e.done = nil, nil
	}
	e.mu.Unlock()
}

// Run starts the engine and blocks until ctx is cancelled.
func (e *SyncEngine) Run(ctx context.Context) error {
	e.Start(ctx)
	<-ctx.Done()
	e.Stop()
	return nil
}

// State reports the current lifecycle state.
func (e *SyncEngine) State() EngineState {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// Scope returns the sorted ids of the live subscription, nil when idle.
func (e *SyncEngine) Scope() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return slices.Clone(e.active)
}

func (e *SyncEngine) requestReconcile() {
	select {
	case e.reconcileCh <- struct{}{}:
	default:
	}
}

func (e *SyncEngine) run(ctx context.Context, done chan struct{}) {
	defer close(done)
	defer e.teardown()

	e.attempted = nil
	e.reconcile(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-e.reconcileCh:
			e.reconcile(ctx)
		case msg := <-e.inbox:
			if msg.gen != e.gen {
				// superseded subscription
				continue
			}
			if msg.err != nil {
				e.transportFailed(msg.err)
				continue
			}
			e.handleMessage(ctx, msg.raw)
		}
	}
}

// reconcile compares the desired scope with the last attempted one and
// resubscribes only when the id set differs.
func (e *SyncEngine) reconcile(ctx context.Context) {
	desired := scopeOf(e.orders.IDs())
	if slices.Equal(desired, e.attempted) {
		return
	}

	e.teardown()
	e.attempted = desired
	if len(desired) == 0 {
		return
	}

	e.setState(EngineSubscribing, nil)
	gen := e.gen
	stop := make(chan struct{})
	sub, err := e.feed.Subscribe(ctx, desired,
		func(raw []byte) bool { return e.deliver(stop, feedMessage{gen: gen, raw: raw}) },
		func(err error) { e.deliver(stop, feedMessage{gen: gen, err: err}) },
	)
	if err != nil {
		// drop whatever the failed attempt already queued
		close(stop)
		e.gen++
		if ctx.Err() == nil {
			// retried on the next id set change
			e.logger.Warn("subscribe to order feed failed",
				zap.Strings("order_ids", desired), zap.Error(err))
		}
		e.setState(EngineIdle, nil)
		return
	}

	e.sub, e.subStop = sub, stop
	e.setState(EngineActive, desired)
	e.logger.Info("subscribed to order feed", zap.Int("orders", len(desired)))
}

func (e *SyncEngine) transportFailed(err error) {
	e.logger.Warn("order feed transport failed, waiting for next change",
		zap.Strings("order_ids", e.attempted), zap.Error(err))
	e.teardown()
}

// teardown closes the live subscription and invalidates its pending messages.
func (e *SyncEngine) teardown() {
	if e.sub != nil {
		close(e.subStop)
		if err := e.sub.Close(); err != nil {
			e.logger.Debug("close order feed subscription", zap.Error(err))
		}
		e.sub, e.subStop = nil, nil
	}
	e.gen++
	e.setState(EngineIdle, nil)
}

// deliver hands a message to the loop. It reports false once the
// subscription has been released.
func (e *SyncEngine) deliver(stop <-chan struct{}, msg feedMessage) bool {
	select {
	case <-stop:
		return false
	default:
	}
	select {
	case e.inbox <- msg:
		return true
	case <-stop:
		return false
	}
}

func (e *SyncEngine) setState(st EngineState, scope []string) {
	e.mu.Lock()
	e.state = st
	e.active = scope
	e.mu.Unlock()
}

func (e *SyncEngine) handleMessage(ctx context.Context, raw []byte) {
	ev, err := domain.DecodeOrderEvent(raw)
	if err != nil {
		e.logger.Warn("dropping malformed order event", zap.Error(err))
		return
	}
	switch ev.Kind {
	case domain.EventUpdate:
		e.applyUpdate(ctx, *ev.Record)
	case domain.EventDelete:
		// deletes may arrive unfiltered; unknown ids are a no-op
		if err := e.orders.RemoveOrder(ctx, ev.OrderID()); err != nil {
			e.logger.Debug("order delete not persisted", zap.String("order_id", ev.OrderID()), zap.Error(err))
		}
	}
}

func (e *SyncEngine) applyUpdate(ctx context.Context, rec domain.RemoteOrder) {
	old, ok := e.orders.Status(rec.ID)
	if !ok {
		// removed locally while the event was in flight
		return
	}
	next := old
	if rec.Status != "" {
		next = domain.TranslateStatus(rec.Status)
	}

	if err := e.orders.UpdateOrderStatus(ctx, rec.ID, next, rec.RejectionReason, rec.TotalAmount); err != nil {
		// memory state is updated, the store already logged the write
		e.logger.Debug("order update not persisted", zap.String("order_id", rec.ID), zap.Error(err))
	}
	if old == next {
		return
	}

	reason := ""
	if o, ok := e.orders.Order(rec.ID); ok && o.RejectionReason != nil {
		reason = *o.RejectionReason
	}
	msg, sev := transitionNotice(rec.ID, old, next, reason)
	e.notifier.Notify(msg, sev)
}

// scopeOf turns the store's id list into a sorted set.
func scopeOf(ids []string) []string {
	if len(ids) == 0 {
		return nil
	}
	out := slices.Clone(ids)
	slices.Sort(out)
	return slices.Compact(out)
}

type nopNotifier struct{}

func (nopNotifier) Notify(string, domain.Severity) {}
