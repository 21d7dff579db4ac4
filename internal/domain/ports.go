package domain

import "context"

// Fixed storage keys, one per store.
const (
	CartStorageKey  = "cart-storage"
	OrderStorageKey = "order-storage"
)

// StateStorage is durable key-value persistence for serialized store state.
type StateStorage interface {
	// Load returns ErrNotFound when nothing was saved under key.
	Load(ctx context.Context, key string) ([]byte, error)
	// Save fully overwrites the value under key.
	Save(ctx context.Context, key string, raw []byte) error
}

// FeedSubscription is a live channel scoped to a fixed set of order ids.
type FeedSubscription interface {
	Close() error
}

// ChangeFeed opens subscriptions on the remote order change stream.
type ChangeFeed interface {
	// Subscribe returns once the transport acknowledged the subscription.
	// handler receives raw event envelopes and reports false when the
	// message was dropped, in which case it must not be acknowledged.
	// onError reports a transport failure after which no more messages
	// arrive on this subscription.
	Subscribe(ctx context.Context, ids []string, handler func(raw []byte) bool, onError func(error)) (FeedSubscription, error)
}

// Severity of a user-facing notification.
type Severity string

const (
	SeveritySuccess Severity = "success"
	SeverityError   Severity = "error"
	SeverityInfo    Severity = "info"
)

// Notifier displays messages to the shopper. Fire-and-forget.
type Notifier interface {
	Notify(message string, severity Severity)
}

// Common domain errors
var (
	ErrNotFound        = notFoundError("not found")
	ErrValidation      = validationError("invalid data")
	ErrFeedUnavailable = unavailableError("change feed not configured")
)

type notFoundError string

func (e notFoundError) Error() string { return string(e) }

type validationError string

func (e validationError) Error() string { return string(e) }

type unavailableError string

func (e unavailableError) Error() string { return string(e) }
