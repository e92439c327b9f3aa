package enums

import "fmt"

// WebhookDirection marks whether a logged exchange was received or sent.
type WebhookDirection string

const (
	WebhookDirectionInbound  WebhookDirection = "inbound"
	WebhookDirectionOutbound WebhookDirection = "outbound"
)

var validWebhookDirections = []WebhookDirection{
	WebhookDirectionInbound,
	WebhookDirectionOutbound,
}

// String implements fmt.Stringer.
func (w WebhookDirection) String() string {
	return string(w)
}

// IsValid reports whether the value is a known WebhookDirection.
func (w WebhookDirection) IsValid() bool {
	for _, candidate := range validWebhookDirections {
		if candidate == w {
			return true
		}
	}
	return false
}

// ParseWebhookDirection converts raw input into a WebhookDirection.
func ParseWebhookDirection(value string) (WebhookDirection, error) {
	for _, candidate := range validWebhookDirections {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid webhook direction %q", value)
}
