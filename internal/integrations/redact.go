package integrations

import (
	"strings"

	"github.com/feastline/relay-backend/pkg/db/models"
	"github.com/feastline/relay-backend/pkg/types"
)

const redactedPlaceholder = "[REDACTED]"

// secretKeyFragments flags payload keys whose values must never reach the
// webhook log in plaintext.
var secretKeyFragments = []string{
	"secret",
	"api_key",
	"apikey",
	"token",
	"authorization",
	"password",
	"signature",
}

// RedactPayload returns a copy of the payload with secret-bearing values
// replaced. Nested objects are walked recursively.
func RedactPayload(payload types.JSONMap) types.JSONMap {
	if payload == nil {
		return nil
	}
	out := make(types.JSONMap, len(payload))
	for key, value := range payload {
		if isSecretKey(key) {
			out[key] = redactedPlaceholder
			continue
		}
		switch nested := value.(type) {
		case map[string]any:
			out[key] = map[string]any(RedactPayload(nested))
		case types.JSONMap:
			out[key] = RedactPayload(nested)
		default:
			out[key] = value
		}
	}
	return out
}

func isSecretKey(key string) bool {
	lowered := strings.ToLower(key)
	for _, fragment := range secretKeyFragments {
		if strings.Contains(lowered, fragment) {
			return true
		}
	}
	return false
}

// PublicView strips credential material from an integration before it is
// serialized in an API response.
type PublicView struct {
	ID          string  `json:"id"`
	TenantID    string  `json:"tenant_id"`
	Provider    string  `json:"provider"`
	Type        string  `json:"type"`
	Environment string  `json:"environment"`
	WebhookURL  *string `json:"webhook_url,omitempty"`
	Active      bool    `json:"active"`
}

// ToPublicView maps an integration to its credential-free representation.
func ToPublicView(integration *models.Integration) PublicView {
	return PublicView{
		ID:          integration.ID.String(),
		TenantID:    integration.TenantID.String(),
		Provider:    integration.Provider,
		Type:        integration.Type.String(),
		Environment: integration.Environment.String(),
		WebhookURL:  integration.WebhookURL,
		Active:      integration.Active,
	}
}
