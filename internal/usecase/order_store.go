package usecase

import (
	"context"
	"sync"

	"github.com/example/storefront-sync/internal/domain"
	"go.uber.org/zap"
)

type orderState struct {
	Orders []domain.TrackedOrder `json:"orders"`
}

// OrderStore holds the shopper's placed orders, most recent first.
type OrderStore struct {
	mu      sync.RWMutex
	orders  []domain.TrackedOrder
	storage domain.StateStorage
	logger  *zap.Logger

	lmu       sync.Mutex
	listeners []func()
}

// NewOrderStore restores tracked orders from storage. Missing or corrupt
// data yields an empty store.
func NewOrderStore(ctx context.Context, storage domain.StateStorage, logger *zap.Logger) *OrderStore {
	s := &OrderStore{storage: storage, logger: orNop(logger)}
	s.Reload(ctx)
	return s
}

// Reload replaces the in-memory orders with the persisted ones.
func (s *OrderStore) Reload(ctx context.Context) {
	var st orderState
	ok := loadState(ctx, s.storage, domain.OrderStorageKey, &st, s.logger)

	s.mu.Lock()
	s.orders = nil
	if ok {
		for _, o := range st.Orders {
			if o.ID != "" {
				s.orders = append(s.orders, o)
			}
		}
	}
	s.mu.Unlock()
	s.changed()
}

// OnChange registers fn to run after every mutation. Listeners run outside
// the store lock and must not block.
func (s *OrderStore) OnChange(fn func()) {
	s.lmu.Lock()
	s.listeners = append(s.listeners, fn)
	s.lmu.Unlock()
}

// AddOrder prepends the order as supplied by the checkout flow.
func (s *OrderStore) AddOrder(ctx context.Context, order domain.TrackedOrder) error {
	s.mu.Lock()
	s.orders = append([]domain.TrackedOrder{order.Clone()}, s.orders...)
	err := s.persistLocked(ctx)
	s.mu.Unlock()

	s.changed()
	return err
}

// UpdateOrderStatus overwrites the status of a tracked order. reason is
// applied unless absent (null clears it); amount is applied when present.
// Unknown ids are ignored.
func (s *OrderStore) UpdateOrderStatus(ctx context.Context, id string, status domain.OrderStatus, reason domain.Optional[string], amount domain.Optional[int64]) error {
	s.mu.Lock()
	i := s.indexOf(id)
	if i < 0 {
		s.mu.Unlock()
		return nil
	}
	o := &s.orders[i]
	o.Status = status
	switch {
	case reason.IsNull():
		o.RejectionReason = nil
	case !reason.IsAbsent():
		v, _ := reason.Get()
		o.RejectionReason = &v
	}
	if v, ok := amount.Get(); ok {
		o.TotalAmount = &v
	}
	err := s.persistLocked(ctx)
	s.mu.Unlock()

	s.changed()
	return err
}

func (s *OrderStore) RemoveOrder(ctx context.Context, id string) error {
	s.mu.Lock()
	i := s.indexOf(id)
	if i < 0 {
		s.mu.Unlock()
		return nil
	}
	s.orders = append(s.orders[:i], s.orders[i+1:]...)
	err := s.persistLocked(ctx)
	s.mu.Unlock()

	s.changed()
	return err
}

func (s *OrderStore) ClearOrders(ctx context.Context) error {
	s.mu.Lock()
	s.orders = nil
	err := s.persistLocked(ctx)
	s.mu.Unlock()

	s.changed()
	return err
}

// Orders returns deep copies in most-recent-first order.
func (s *OrderStore) Orders() []domain.TrackedOrder {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if len(s.orders) == 0 {
		return nil
	}
	out := make([]domain.TrackedOrder, len(s.orders))
	for i, o := range s.orders {
		out[i] = o.Clone()
	}
	return out
}

func (s *OrderStore) Order(id string) (domain.TrackedOrder, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if i := s.indexOf(id); i >= 0 {
		return s.orders[i].Clone(), true
	}
	return domain.TrackedOrder{}, false
}

// Status returns the last known local status of an order.
func (s *OrderStore) Status(id string) (domain.OrderStatus, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if i := s.indexOf(id); i >= 0 {
		return s.orders[i].Status, true
	}
	return "", false
}

// IDs returns the tracked order ids in store order.
func (s *OrderStore) IDs() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := make([]string, 0, len(s.orders))
	for _, o := range s.orders {
		ids = append(ids, o.ID)
	}
	return ids
}

func (s *OrderStore) persistLocked(ctx context.Context) error {
	if err := saveState(ctx, s.storage, domain.OrderStorageKey, orderState{Orders: s.orders}); err != nil {
		s.logger.Error("persist orders failed", zap.Error(err))
		return err
	}
	return nil
}

func (s *OrderStore) changed() {
	s.lmu.Lock()
	fns := append([]func(){}, s.listeners...)
	s.lmu.Unlock()
	for _, fn := range fns {
		fn()
	}
}

func (s *OrderStore) indexOf(id string) int {
	for i := range s.orders {
		if s.orders[i].ID == id {
			return i
		}
	}
	return -1
}
