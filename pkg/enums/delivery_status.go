package enums

import "fmt"

// DeliveryStatus tracks the lifecycle of a provider delivery.
type DeliveryStatus string

const (
	DeliveryStatusCreated    DeliveryStatus = "created"
	DeliveryStatusAssigned   DeliveryStatus = "assigned"
	DeliveryStatusPickedUp   DeliveryStatus = "picked_up"
	DeliveryStatusInProgress DeliveryStatus = "in_progress"
	DeliveryStatusDelivered  DeliveryStatus = "delivered"
	DeliveryStatusCanceled   DeliveryStatus = "canceled"
)

var validDeliveryStatuses = []DeliveryStatus{
	DeliveryStatusCreated,
	DeliveryStatusAssigned,
	DeliveryStatusPickedUp,
	DeliveryStatusInProgress,
	DeliveryStatusDelivered,
	DeliveryStatusCanceled,
}

// deliveryStatusRank defines the monotonic progression used to drop stale
// provider updates that arrive out of order.
var deliveryStatusRank = map[DeliveryStatus]int{
	DeliveryStatusCreated:    0,
	DeliveryStatusAssigned:   1,
	DeliveryStatusPickedUp:   2,
	DeliveryStatusInProgress: 3,
	DeliveryStatusDelivered:  4,
	DeliveryStatusCanceled:   5,
}

// String implements fmt.Stringer.
func (d DeliveryStatus) String() string {
	return string(d)
}

// IsValid reports whether the value is a known DeliveryStatus.
func (d DeliveryStatus) IsValid() bool {
	for _, candidate := range validDeliveryStatuses {
		if candidate == d {
			return true
		}
	}
	return false
}

// IsTerminal reports whether the delivery reached a final state.
func (d DeliveryStatus) IsTerminal() bool {
	return d == DeliveryStatusDelivered || d == DeliveryStatusCanceled
}

// Rank returns the position in the monotonic progression, or -1 when unknown.
func (d DeliveryStatus) Rank() int {
	if rank, ok := deliveryStatusRank[d]; ok {
		return rank
	}
	return -1
}

// ParseDeliveryStatus converts raw input into a DeliveryStatus.
func ParseDeliveryStatus(value string) (DeliveryStatus, error) {
	for _, candidate := range validDeliveryStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid delivery status %q", value)
}
