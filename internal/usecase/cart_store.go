package usecase

import (
	"context"
	"sync"

	"github.com/example/storefront-sync/internal/domain"
	"go.uber.org/zap"
)

type cartState struct {
	Items []domain.CartItem `json:"items"`
}

// CartStore holds the shopper's cart and writes it through to storage on
// every mutation.
type CartStore struct {
	mu      sync.RWMutex
	items   []domain.CartItem
	storage domain.StateStorage
	logger  *zap.Logger
}

// NewCartStore restores the cart from storage. Missing or corrupt data
// yields an empty cart.
func NewCartStore(ctx context.Context, storage domain.StateStorage, logger *zap.Logger) *CartStore {
	s := &CartStore{storage: storage, logger: orNop(logger)}
	s.Reload(ctx)
	return s
}

// Reload replaces the in-memory cart with the persisted one.
func (s *CartStore) Reload(ctx context.Context) {
	var st cartState
	ok := loadState(ctx, s.storage, domain.CartStorageKey, &st, s.logger)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.items = nil
	if ok {
		s.items = normalizeCart(st.Items)
	}
}

// AddItem increments an existing line by one or inserts a new selected line.
// Existing lines keep their name and price.
func (s *CartStore) AddItem(ctx context.Context, p domain.Product) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if i := s.indexOf(p.ID); i >= 0 {
		s.items[i].Quantity++
		return s.persistLocked(ctx)
	}
	s.items = append(s.items, domain.CartItem{
		ID:         p.ID,
		Name:       p.Name,
		Image:      p.Image,
		UnitPrice:  p.UnitPrice,
		UnitWeight: p.UnitWeight,
		Quantity:   1,
		Selected:   true,
	})
	return s.persistLocked(ctx)
}

func (s *CartStore) RemoveItem(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.removeLocked(ctx, id)
}

// UpdateQuantity sets the quantity of a line; n <= 0 removes it.
func (s *CartStore) UpdateQuantity(ctx context.Context, id string, n int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if n <= 0 {
		return s.removeLocked(ctx, id)
	}
	i := s.indexOf(id)
	if i < 0 {
		return nil
	}
	s.items[i].Quantity = n
	return s.persistLocked(ctx)
}

func (s *CartStore) ToggleSelectItem(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.indexOf(id)
	if i < 0 {
		return nil
	}
	s.items[i].Selected = !s.items[i].Selected
	return s.persistLocked(ctx)
}

func (s *CartStore) ToggleSelectAll(ctx context.Context, selected bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.items {
		s.items[i].Selected = selected
	}
	return s.persistLocked(ctx)
}

func (s *CartStore) ClearCart(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.items = nil
	return s.persistLocked(ctx)
}

// TotalPrice sums price*quantity, optionally over selected lines only.
func (s *CartStore) TotalPrice(onlySelected bool) int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var total int64
	for _, it := range s.items {
		if onlySelected && !it.Selected {
			continue
		}
		total += it.UnitPrice * int64(it.Quantity)
	}
	return total
}

// TotalWeight sums weight*quantity in grams, optionally over selected lines only.
func (s *CartStore) TotalWeight(onlySelected bool) int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	total := 0
	for _, it := range s.items {
		if onlySelected && !it.Selected {
			continue
		}
		total += it.UnitWeight * it.Quantity
	}
	return total
}

// Count is the number of units across all lines.
func (s *CartStore) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	n := 0
	for _, it := range s.items {
		n += it.Quantity
	}
	return n
}

// Items returns a copy of the cart lines in insertion order.
func (s *CartStore) Items() []domain.CartItem {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return cloneCart(s.items)
}

func (s *CartStore) Item(id string) (domain.CartItem, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if i := s.indexOf(id); i >= 0 {
		return s.items[i], true
	}
	return domain.CartItem{}, false
}

func (s *CartStore) removeLocked(ctx context.Context, id string) error {
	i := s.indexOf(id)
	if i < 0 {
		return nil
	}
	s.items = append(s.items[:i], s.items[i+1:]...)
	return s.persistLocked(ctx)
}

// persistLocked writes under the store lock so a later mutation can never be
// overtaken by an earlier write.
func (s *CartStore) persistLocked(ctx context.Context) error {
	if err := saveState(ctx, s.storage, domain.CartStorageKey, cartState{Items: s.items}); err != nil {
		s.logger.Error("persist cart failed", zap.Error(err))
		return err
	}
	return nil
}

func (s *CartStore) indexOf(id string) int {
	for i := range s.items {
		if s.items[i].ID == id {
			return i
		}
	}
	return -1
}

// normalizeCart enforces one line per id and quantity >= 1 on restored data.
func normalizeCart(items []domain.CartItem) []domain.CartItem {
	out := make([]domain.CartItem, 0, len(items))
	seen := make(map[string]int, len(items))
	for _, it := range items {
		if it.ID == "" || it.Quantity <= 0 {
			continue
		}
		if i, ok := seen[it.ID]; ok {
			out[i].Quantity += it.Quantity
			continue
		}
		seen[it.ID] = len(out)
		out = append(out, it)
	}
	return out
}

func cloneCart(items []domain.CartItem) []domain.CartItem {
	if len(items) == 0 {
		return nil
	}
	dup := make([]domain.CartItem, len(items))
	copy(dup, items)
	return dup
}
