package controllers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/feastline/relay-backend/api/responses"
	"github.com/feastline/relay-backend/api/validators"
	"github.com/feastline/relay-backend/internal/adapters"
	"github.com/feastline/relay-backend/internal/dispatch"
	"github.com/feastline/relay-backend/internal/integrations"
	"github.com/feastline/relay-backend/internal/webhooklogs"
	"github.com/feastline/relay-backend/pkg/enums"
	pkgerrors "github.com/feastline/relay-backend/pkg/errors"
	"github.com/feastline/relay-backend/pkg/logger"
	"github.com/feastline/relay-backend/pkg/types"
)

type relayRequest struct {
	EcommerceIntegrationID string          `json:"ecommerceIntegrationId" validate:"required,uuid"`
	DeliveryIntegrationID  string          `json:"deliveryIntegrationId" validate:"required,uuid"`
	Order                  json.RawMessage `json:"order" validate:"required"`
	Pickup                 types.Waypoint  `json:"pickup" validate:"required"`
	Dropoff                *types.Waypoint `json:"dropoff"`
}

type relayDeliveryView struct {
	ID          string `json:"id"`
	Status      string `json:"status"`
	TrackingURL string `json:"trackingUrl"`
}

// OrderRelay ingests an e-commerce order payload and dispatches a delivery in
// a single call. Edge forwarders that proxy platform webhooks use this path;
// the platform signature covers the nested order document.
func OrderRelay(svc *dispatch.Service, registry *integrations.Registry, logs *webhooklogs.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		start := time.Now()

		var body relayRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		integration, err := registry.ResolveByID(ctx, uuid.MustParse(body.EcommerceIntegrationID))
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		if integration.Type != enums.IntegrationTypeEcommerce {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeValidation, "integration is not an e-commerce integration"))
			return
		}

		adapter, err := adapters.ForPlatform(integration.Provider)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		signature := r.Header.Get(adapter.SignatureHeader())

		order, ingestErr := svc.IngestOrder(ctx, integration, integration.Provider, body.Order, signature)

		statusCode := http.StatusCreated
		if ingestErr != nil {
			statusCode = pkgerrors.MetadataFor(pkgerrors.As(ingestErr).Code()).HTTPStatus
		}
		logs.Record(ctx, webhooklogs.Entry{
			IntegrationID:  integration.ID,
			EventType:      "order.relay",
			Direction:      enums.WebhookDirectionInbound,
			RequestPayload: payloadMap(body.Order),
			StatusCode:     statusCode,
			Duration:       time.Since(start),
			Err:            ingestErr,
		})
		if ingestErr != nil {
			responses.WriteError(ctx, logg, w, ingestErr)
			return
		}

		delivery, err := svc.Dispatch(ctx, dispatch.Request{
			OrderID:       order.ID,
			IntegrationID: uuid.MustParse(body.DeliveryIntegrationID),
			Pickup:        body.Pickup,
			Dropoff:       body.Dropoff,
		})
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		responses.WriteSuccessStatus(w, http.StatusCreated, map[string]any{
			"delivery": relayDeliveryView{
				ID:          delivery.ID.String(),
				Status:      delivery.Status.String(),
				TrackingURL: delivery.TrackingURL,
			},
		})
	}
}
