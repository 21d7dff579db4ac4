package usecase

import (
	"fmt"
	"strings"

	"github.com/example/storefront-sync/internal/domain"
)

const shortIDLen = 8

// ShortOrderID is the shopper-facing order reference: the first eight
// characters of the id, upper-cased.
func ShortOrderID(id string) string {
	r := []rune(id)
	if len(r) > shortIDLen {
		r = r[:shortIDLen]
	}
	return strings.ToUpper(string(r))
}

// transitionNotice picks the single notification for an old -> next status
// change. Rules are evaluated in priority order.
func transitionNotice(id string, old, next domain.OrderStatus, reason string) (string, domain.Severity) {
	ref := ShortOrderID(id)
	switch {
	case next == domain.StatusCompleted:
		return fmt.Sprintf("Pesanan #%s... telah sampai di tujuan. Terima kasih sudah berbelanja!", ref), domain.SeveritySuccess
	case next == domain.StatusCancelled:
		msg := fmt.Sprintf("Pesanan #%s... telah dibatalkan.", ref)
		if reason != "" {
			msg += " Alasan: " + reason
		}
		return msg, domain.SeverityError
	case next == domain.StatusInProgress && old == domain.StatusCancellationPending:
		return fmt.Sprintf("Permintaan pembatalan pesanan #%s... ditolak oleh admin. Pesanan tetap diproses.", ref), domain.SeverityError
	case next == domain.StatusShipped:
		return fmt.Sprintf("Pesanan #%s... sedang dalam perjalanan.", ref), domain.SeverityInfo
	default:
		return fmt.Sprintf("Status pesanan #%s... berubah menjadi %s.", ref, next), domain.SeverityInfo
	}
}
