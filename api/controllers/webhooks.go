package controllers

import (
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/feastline/relay-backend/api/responses"
	"github.com/feastline/relay-backend/api/validators"
	"github.com/feastline/relay-backend/internal/adapters"
	"github.com/feastline/relay-backend/internal/dispatch"
	"github.com/feastline/relay-backend/internal/integrations"
	"github.com/feastline/relay-backend/internal/partners"
	"github.com/feastline/relay-backend/internal/webhooklogs"
	"github.com/feastline/relay-backend/pkg/enums"
	pkgerrors "github.com/feastline/relay-backend/pkg/errors"
	"github.com/feastline/relay-backend/pkg/logger"
	"github.com/feastline/relay-backend/pkg/types"
)

const maxWebhookBody = 1 << 20

// OrderWebhook receives an e-commerce order webhook, verifies it against the
// integration's secret, and persists the canonical order. Every attempt is
// logged, signature failures included.
func OrderWebhook(svc *dispatch.Service, registry *integrations.Registry, logs *webhooklogs.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		start := time.Now()

		platform := platformParam(r)
		integrationID, err := validators.ParseUUIDParam(r, "integrationId")
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		integration, err := registry.ResolveByID(ctx, integrationID)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		if integration.Type != enums.IntegrationTypeEcommerce {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeValidation, "integration is not an e-commerce integration"))
			return
		}

		adapter, err := adapters.ForPlatform(platform)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		raw, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
		if err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "read webhook body"))
			return
		}
		signature := r.Header.Get(adapter.SignatureHeader())

		order, ingestErr := svc.IngestOrder(ctx, integration, platform, raw, signature)

		statusCode := http.StatusCreated
		if ingestErr != nil {
			statusCode = pkgerrors.MetadataFor(pkgerrors.As(ingestErr).Code()).HTTPStatus
		}
		logs.Record(ctx, webhooklogs.Entry{
			IntegrationID:  integration.ID,
			EventType:      "order.webhook",
			Direction:      enums.WebhookDirectionInbound,
			RequestPayload: payloadMap(raw),
			StatusCode:     statusCode,
			Duration:       time.Since(start),
			Err:            ingestErr,
		})

		if ingestErr != nil {
			responses.WriteError(ctx, logg, w, ingestErr)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, order)
	}
}

type providerStatusEvent struct {
	EventID     string `json:"event_id" validate:"required"`
	DeliveryID  string `json:"delivery_id" validate:"required"`
	Status      string `json:"status" validate:"required"`
	TrackingURL string `json:"tracking_url"`
}

// ProviderWebhook receives a delivery partner's status push. Event ids are
// deduplicated; stale statuses are dropped inside the orchestrator.
func ProviderWebhook(svc *dispatch.Service, guard *dispatch.IdempotencyGuard, logs *webhooklogs.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		provider, err := enums.ParseProvider(providerParam(r))
		if err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeValidation, "unsupported delivery provider"))
			return
		}

		var event providerStatusEvent
		if err := validators.DecodeJSONBody(r, &event); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		applyProviderEvent(w, r, svc, guard, logs, logg, provider, event)
	}
}

type flatStatusEvent struct {
	Provider    string `json:"provider" validate:"required"`
	EventID     string `json:"event_id" validate:"required"`
	DeliveryID  string `json:"delivery_id" validate:"required"`
	Status      string `json:"status" validate:"required"`
	TrackingURL string `json:"tracking_url"`
}

// DeliveryStatusWebhook is the flat-path variant of ProviderWebhook for
// partners whose callback URL cannot be templated; the provider rides in the
// body instead of the path.
func DeliveryStatusWebhook(svc *dispatch.Service, guard *dispatch.IdempotencyGuard, logs *webhooklogs.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		var body flatStatusEvent
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		provider, err := enums.ParseProvider(body.Provider)
		if err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeValidation, "unsupported delivery provider"))
			return
		}

		applyProviderEvent(w, r, svc, guard, logs, logg, provider, providerStatusEvent{
			EventID:     body.EventID,
			DeliveryID:  body.DeliveryID,
			Status:      body.Status,
			TrackingURL: body.TrackingURL,
		})
	}
}

func applyProviderEvent(w http.ResponseWriter, r *http.Request, svc *dispatch.Service, guard *dispatch.IdempotencyGuard, logs *webhooklogs.Service, logg *logger.Logger, provider enums.Provider, event providerStatusEvent) {
	ctx := r.Context()
	start := time.Now()

	duplicate, err := guard.CheckAndMark(ctx, provider.String(), event.EventID)
	if err != nil {
		responses.WriteError(ctx, logg, w, err)
		return
	}
	if duplicate {
		responses.WriteSuccess(w, map[string]any{"duplicate": true})
		return
	}

	status, err := partners.MapWebhookStatus(provider, event.Status)
	if err != nil {
		guard.Release(ctx, provider.String(), event.EventID)
		responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeMalformedPayload, "unrecognized delivery status").
			WithDetails(map[string]any{"status": event.Status}))
		return
	}

	delivery, applyErr := svc.ApplyStatusUpdate(ctx, provider, event.DeliveryID, status, event.TrackingURL)
	if applyErr != nil {
		guard.Release(ctx, provider.String(), event.EventID)
		responses.WriteError(ctx, logg, w, applyErr)
		return
	}

	logs.Record(ctx, webhooklogs.Entry{
		IntegrationID: delivery.IntegrationID,
		EventType:     "delivery.status",
		Direction:     enums.WebhookDirectionInbound,
		RequestPayload: types.JSONMap{
			"event_id":     event.EventID,
			"delivery_id":  event.DeliveryID,
			"status":       event.Status,
			"tracking_url": event.TrackingURL,
		},
		StatusCode: http.StatusOK,
		Duration:   time.Since(start),
	})

	responses.WriteSuccess(w, delivery)
}

func platformParam(r *http.Request) string {
	return chi.URLParam(r, "platform")
}

func providerParam(r *http.Request) string {
	return chi.URLParam(r, "provider")
}

func payloadMap(raw []byte) types.JSONMap {
	var payload types.JSONMap
	if err := json.Unmarshal(raw, &payload); err != nil {
		return types.JSONMap{"raw": string(raw)}
	}
	return payload
}
