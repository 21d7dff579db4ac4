package domain

// Remote status vocabulary emitted by the admin backend.
const (
	RemotePending               = "Pending"
	RemoteProcessing            = "Processing"
	RemoteShipped               = "Shipped"
	RemoteDelivered             = "Delivered"
	RemoteCancelled             = "Cancelled"
	RemoteCancellationRequested = "Cancellation Requested"
)

var remoteToLocal = map[string]OrderStatus{
	RemotePending:               StatusWaiting,
	RemoteProcessing:            StatusInProgress,
	RemoteShipped:               StatusShipped,
	RemoteDelivered:             StatusCompleted,
	RemoteCancelled:             StatusCancelled,
	RemoteCancellationRequested: StatusCancellationPending,
}

// TranslateStatus maps a remote status to the local vocabulary. Unknown
// values pass through unchanged.
func TranslateStatus(remote string) OrderStatus {
	if local, ok := remoteToLocal[remote]; ok {
		return local
	}
	return OrderStatus(remote)
}
