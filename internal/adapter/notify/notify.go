package notify

import (
	"sync"
	"time"

	"github.com/example/storefront-sync/internal/domain"
	"go.uber.org/zap"
)

// Notification is one message shown to the shopper.
type Notification struct {
	Seq      uint64          `json:"seq"`
	Message  string          `json:"message"`
	Severity domain.Severity `json:"severity"`
	At       time.Time       `json:"at"`
}

// Recorder keeps the most recent notifications for the UI to poll.
type Recorder struct {
	mu    sync.RWMutex
	limit int
	seq   uint64
	items []Notification
}

const defaultRecorderLimit = 50

func NewRecorder(limit int) *Recorder {
	if limit <= 0 {
		limit = defaultRecorderLimit
	}
	return &Recorder{limit: limit}
}

func (r *Recorder) Notify(message string, severity domain.Severity) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seq++
	r.items = append(r.items, Notification{Seq: r.seq, Message: message, Severity: severity, At: time.Now()})
	if over := len(r.items) - r.limit; over > 0 {
		r.items = append([]Notification(nil), r.items[over:]...)
	}
}

// Since returns notifications with Seq greater than after, oldest first.
func (r *Recorder) Since(after uint64) []Notification {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []Notification
	for _, n := range r.items {
		if n.Seq > after {
			out = append(out, n)
		}
	}
	return out
}

// Logger writes notifications to a zap logger.
type Logger struct {
	L *zap.Logger
}

func (l Logger) Notify(message string, severity domain.Severity) {
	l.L.Info("notification", zap.String("severity", string(severity)), zap.String("message", message))
}

// Fanout forwards every notification to all sinks in order.
type Fanout []domain.Notifier

func (f Fanout) Notify(message string, severity domain.Severity) {
	for _, n := range f {
		n.Notify(message, severity)
	}
}

var (
	_ domain.Notifier = (*Recorder)(nil)
	_ domain.Notifier = Logger{}
	_ domain.Notifier = Fanout(nil)
)
