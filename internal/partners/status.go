package partners

import (
	"github.com/feastline/relay-backend/pkg/enums"
	pkgerrors "github.com/feastline/relay-backend/pkg/errors"
)

// webhookStatusTables maps each provider's wire status vocabulary, reused by
// both polling responses and inbound status webhooks.
var webhookStatusTables = map[enums.Provider]map[string]enums.DeliveryStatus{
	enums.ProviderUberDirect: uberDirectStatuses,
	enums.ProviderJetGo:      jetGoStates,
	enums.ProviderDoorDash:   doorDashStatuses,
}

// MapWebhookStatus translates a provider's raw status string from an inbound
// webhook into the relay's delivery status.
func MapWebhookStatus(provider enums.Provider, raw string) (enums.DeliveryStatus, error) {
	table, ok := webhookStatusTables[provider]
	if !ok {
		return "", pkgerrors.New(pkgerrors.CodeValidation, "unsupported delivery provider")
	}
	return mapProviderStatus(table, raw)
}
