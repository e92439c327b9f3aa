package enums

import "fmt"

// IntegrationType classifies the external system a credential bundle targets.
type IntegrationType string

const (
	IntegrationTypeDelivery  IntegrationType = "delivery"
	IntegrationTypeEcommerce IntegrationType = "ecommerce"
	IntegrationTypePOS       IntegrationType = "pos"
)

var validIntegrationTypes = []IntegrationType{
	IntegrationTypeDelivery,
	IntegrationTypeEcommerce,
	IntegrationTypePOS,
}

// String implements fmt.Stringer.
func (i IntegrationType) String() string {
	return string(i)
}

// IsValid reports whether the value is a known IntegrationType.
func (i IntegrationType) IsValid() bool {
	for _, candidate := range validIntegrationTypes {
		if candidate == i {
			return true
		}
	}
	return false
}

// ParseIntegrationType converts raw input into an IntegrationType.
func ParseIntegrationType(value string) (IntegrationType, error) {
	for _, candidate := range validIntegrationTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid integration type %q", value)
}
