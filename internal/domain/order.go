package domain

// OrderStatus is the local status vocabulary shown to the shopper.
type OrderStatus string

const (
	StatusWaiting             OrderStatus = "Waiting"
	StatusInProgress          OrderStatus = "InProgress"
	StatusShipped             OrderStatus = "Shipped"
	StatusCompleted           OrderStatus = "Completed"
	StatusCancelled           OrderStatus = "Cancelled"
	StatusCancellationPending OrderStatus = "CancellationPending"
)

// LineItem is a frozen copy of a cart line taken when the order was placed.
type LineItem struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Image     string `json:"image"`
	Quantity  int    `json:"quantity"`
	UnitPrice int64  `json:"price"`
}

// TrackedOrder is an order the shopper placed and keeps receiving updates for.
type TrackedOrder struct {
	ID               string      `json:"id"`
	Status           OrderStatus `json:"status"`
	EstimatedArrival string      `json:"estimated_arrival"`
	CreatedAt        int64       `json:"created_at"`
	TotalAmount      *int64      `json:"total_amount,omitempty"`
	RejectionReason  *string     `json:"rejection_reason,omitempty"`
	Items            []LineItem  `json:"items"`
}

// Clone returns a deep copy so callers never share pointers or slices with a store.
func (o TrackedOrder) Clone() TrackedOrder {
	dup := o
	if o.TotalAmount != nil {
		v := *o.TotalAmount
		dup.TotalAmount = &v
	}
	if o.RejectionReason != nil {
		v := *o.RejectionReason
		dup.RejectionReason = &v
	}
	if o.Items != nil {
		dup.Items = make([]LineItem, len(o.Items))
		copy(dup.Items, o.Items)
	}
	return dup
}
