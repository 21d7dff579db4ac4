package usecase

import (
	"context"

	"github.com/example/storefront-sync/internal/domain"
)

// SnapshotCart freezes the selected cart lines into order line items.
type SnapshotCart struct {
	Cart *CartStore
}

func (uc SnapshotCart) Execute() []domain.LineItem {
	var lines []domain.LineItem
	for _, it := range uc.Cart.Items() {
		if !it.Selected {
			continue
		}
		lines = append(lines, domain.LineItem{
			ID:        it.ID,
			Name:      it.Name,
			Image:     it.Image,
			Quantity:  it.Quantity,
			UnitPrice: it.UnitPrice,
		})
	}
	return lines
}

// PlaceOrder records an order handed over by the checkout flow and, when
// asked, drops the checked-out lines from the cart.
type PlaceOrder struct {
	Orders *OrderStore
	Cart   *CartStore
}

func (uc PlaceOrder) Execute(ctx context.Context, order domain.TrackedOrder, clearCheckedOut bool) error {
	if order.ID == "" {
		return domain.ErrValidation
	}
	if err := uc.Orders.AddOrder(ctx, order); err != nil {
		return err
	}
	if !clearCheckedOut || uc.Cart == nil {
		return nil
	}
	for _, li := range order.Items {
		if err := uc.Cart.RemoveItem(ctx, li.ID); err != nil {
			return err
		}
	}
	return nil
}
