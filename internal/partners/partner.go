package partners

import (
	"context"
	"time"

	"github.com/feastline/relay-backend/pkg/db/models"
	"github.com/feastline/relay-backend/pkg/enums"
	pkgerrors "github.com/feastline/relay-backend/pkg/errors"
	"github.com/feastline/relay-backend/pkg/logger"
	"github.com/feastline/relay-backend/pkg/metrics"
	"github.com/feastline/relay-backend/pkg/types"
)

// Quote is an ephemeral delivery estimate. It is never persisted; once
// ExpiresAt passes it must be re-fetched before a delivery can be created.
type Quote struct {
	ID         string
	FeeCents   int
	Currency   enums.Currency
	ETAMinutes int
	ExpiresAt  time.Time
}

// Expired reports whether the quote can no longer back a delivery creation.
func (q *Quote) Expired(now time.Time) bool {
	return q != nil && !q.ExpiresAt.IsZero() && now.After(q.ExpiresAt)
}

// QuoteRequest describes the route to price.
type QuoteRequest struct {
	Pickup          types.Waypoint
	Dropoff         types.Waypoint
	OrderValueCents int
	Currency        enums.Currency
}

// Item is a manifest line handed to the courier.
type Item struct {
	Name string
	Qty  int
}

// CreateRequest asks the provider to create a delivery, optionally against a
// previously obtained quote.
type CreateRequest struct {
	Quote    *Quote
	Pickup   types.Waypoint
	Dropoff  types.Waypoint
	Items    []Item
	OrderRef string
}

// CreateResult is the provider's view of a freshly created delivery.
type CreateResult struct {
	ProviderDeliveryID string
	Status             enums.DeliveryStatus
	TrackingURL        string
	FeeCents           int
	Currency           enums.Currency
}

// StatusResult is the provider's current view of a delivery.
type StatusResult struct {
	Status      enums.DeliveryStatus
	TrackingURL string
}

// Client is the uniform delivery-partner surface. Implementations authenticate
// lazily, cache bearer tokens until expiry, retry transient failures with
// backoff, and bound every call with a timeout.
type Client interface {
	Provider() enums.Provider
	GetQuote(ctx context.Context, req QuoteRequest) (*Quote, error)
	CreateDelivery(ctx context.Context, req CreateRequest) (*CreateResult, error)
	GetStatus(ctx context.Context, providerDeliveryID string) (*StatusResult, error)
	Cancel(ctx context.Context, providerDeliveryID string) error
}

// FactoryParams carries the shared dependencies for partner clients.
type FactoryParams struct {
	Attempts    int
	CallTimeout time.Duration
	Metrics     *metrics.RelayMetrics
	Logger      *logger.Logger

	// BaseURLs overrides the per-provider endpoint, used by tests.
	BaseURLs map[enums.Provider]string
}

// Factory builds the concrete client for a stored integration.
type Factory struct {
	params FactoryParams
}

// NewFactory constructs a partner client factory.
func NewFactory(params FactoryParams) *Factory {
	if params.Attempts <= 0 {
		params.Attempts = 3
	}
	if params.CallTimeout <= 0 {
		params.CallTimeout = 10 * time.Second
	}
	return &Factory{params: params}
}

// ClientFor returns the provider client configured with the integration's
// credentials and environment.
func (f *Factory) ClientFor(integration *models.Integration) (Client, error) {
	provider, err := enums.ParseProvider(integration.Provider)
	if err != nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "unsupported delivery provider")
	}

	core := newCore(coreParams{
		provider:    provider,
		environment: integration.Environment,
		apiKey:      integration.APIKey,
		apiSecret:   integration.APISecret,
		attempts:    f.params.Attempts,
		callTimeout: f.params.CallTimeout,
		metrics:     f.params.Metrics,
		logg:        f.params.Logger,
		baseURL:     f.params.BaseURLs[provider],
	})

	switch provider {
	case enums.ProviderUberDirect:
		return newUberDirectClient(core), nil
	case enums.ProviderJetGo:
		return newJetGoClient(core), nil
	case enums.ProviderDoorDash:
		return newDoorDashClient(core), nil
	default:
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "unsupported delivery provider")
	}
}
