package enums

import "fmt"

// Provider identifies a delivery partner.
type Provider string

const (
	ProviderUberDirect Provider = "uberdirect"
	ProviderJetGo      Provider = "jetgo"
	ProviderDoorDash   Provider = "doordash"
)

var validProviders = []Provider{
	ProviderUberDirect,
	ProviderJetGo,
	ProviderDoorDash,
}

// String implements fmt.Stringer.
func (p Provider) String() string {
	return string(p)
}

// IsValid reports whether the value is a known Provider.
func (p Provider) IsValid() bool {
	for _, candidate := range validProviders {
		if candidate == p {
			return true
		}
	}
	return false
}

// ParseProvider converts raw input into a Provider.
func ParseProvider(value string) (Provider, error) {
	for _, candidate := range validProviders {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid provider %q", value)
}
