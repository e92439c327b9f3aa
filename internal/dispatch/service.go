package dispatch

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/feastline/relay-backend/internal/adapters"
	"github.com/feastline/relay-backend/internal/deliveries"
	"github.com/feastline/relay-backend/internal/integrations"
	"github.com/feastline/relay-backend/internal/orders"
	"github.com/feastline/relay-backend/internal/partners"
	"github.com/feastline/relay-backend/internal/webhooklogs"
	"github.com/feastline/relay-backend/pkg/db/models"
	"github.com/feastline/relay-backend/pkg/enums"
	pkgerrors "github.com/feastline/relay-backend/pkg/errors"
	"github.com/feastline/relay-backend/pkg/logger"
	"github.com/feastline/relay-backend/pkg/metrics"
	"github.com/feastline/relay-backend/pkg/types"
)

// orderStatusFor maps a delivery state onto the order lifecycle. Creation does
// not advance the order; only courier progress does.
var orderStatusFor = map[enums.DeliveryStatus]enums.OrderStatus{
	enums.DeliveryStatusAssigned:   enums.OrderStatusPrepared,
	enums.DeliveryStatusPickedUp:   enums.OrderStatusPickedUp,
	enums.DeliveryStatusInProgress: enums.OrderStatusInTransit,
	enums.DeliveryStatusDelivered:  enums.OrderStatusDelivered,
	enums.DeliveryStatusCanceled:   enums.OrderStatusCancelled,
}

// txRunner abstracts the transactional boundary so tests can stub it.
type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// partnerFactory builds the provider client for an integration.
type partnerFactory interface {
	ClientFor(integration *models.Integration) (partners.Client, error)
}

// Request asks the orchestrator to create a delivery for an order through a
// tenant's delivery integration. Pickup is the store location; Dropoff
// defaults to the order's customer address when omitted.
type Request struct {
	OrderID       uuid.UUID
	IntegrationID uuid.UUID
	Pickup        types.Waypoint
	Dropoff       *types.Waypoint
}

// Service is the order-to-delivery orchestrator: it normalizes inbound orders,
// creates provider deliveries, and applies status updates.
type Service struct {
	db        txRunner
	orderRepo orders.Repository
	delivRepo deliveries.Repository
	registry  *integrations.Registry
	partners  partnerFactory
	locker    Locker
	logs      *webhooklogs.Service
	metrics   *metrics.RelayMetrics
	logg      *logger.Logger
}

// Params carries the orchestrator dependencies.
type Params struct {
	DB           txRunner
	OrderRepo    orders.Repository
	DeliveryRepo deliveries.Repository
	Registry     *integrations.Registry
	Partners     partnerFactory
	Locker       Locker
	Logs         *webhooklogs.Service
	Metrics      *metrics.RelayMetrics
	Logger       *logger.Logger
}

// NewService validates dependencies and builds the orchestrator.
func NewService(params Params) (*Service, error) {
	switch {
	case params.DB == nil:
		return nil, errors.New("dispatch: db is required")
	case params.OrderRepo == nil:
		return nil, errors.New("dispatch: order repository is required")
	case params.DeliveryRepo == nil:
		return nil, errors.New("dispatch: delivery repository is required")
	case params.Registry == nil:
		return nil, errors.New("dispatch: integration registry is required")
	case params.Partners == nil:
		return nil, errors.New("dispatch: partner factory is required")
	case params.Locker == nil:
		return nil, errors.New("dispatch: locker is required")
	case params.Logs == nil:
		return nil, errors.New("dispatch: webhook log service is required")
	case params.Logger == nil:
		return nil, errors.New("dispatch: logger is required")
	}
	return &Service{
		db:        params.DB,
		orderRepo: params.OrderRepo,
		delivRepo: params.DeliveryRepo,
		registry:  params.Registry,
		partners:  params.Partners,
		locker:    params.Locker,
		logs:      params.Logs,
		metrics:   params.Metrics,
		logg:      params.Logger,
	}, nil
}

// IngestOrder verifies and normalizes an inbound e-commerce webhook against
// the integration's secret, then persists the canonical order in state
// received. Replayed webhooks return the already stored order.
func (s *Service) IngestOrder(ctx context.Context, integration *models.Integration, platform string, raw []byte, signature string) (*models.Order, error) {
	adapter, err := adapters.ForPlatform(platform)
	if err != nil {
		return nil, err
	}

	normalized, err := adapter.Normalize(raw, signature, integration.WebhookSecret)
	if err != nil {
		return nil, err
	}

	existing, err := s.orderRepo.FindByExternalID(ctx, integration.TenantID, normalized.Platform, normalized.ExternalOrderID)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "look up order by external id")
	}

	order := &models.Order{
		TenantID:        integration.TenantID,
		Platform:        normalized.Platform,
		ExternalOrderID: normalized.ExternalOrderID,
		CustomerName:    normalized.CustomerName,
		CustomerEmail:   normalized.CustomerEmail,
		CustomerPhone:   normalized.CustomerPhone,
		CustomerAddress: normalized.CustomerAddress,
		SubtotalCents:   normalized.SubtotalCents,
		TotalCents:      normalized.TotalCents,
		Currency:        normalized.Currency,
		Notes:           normalized.Notes,
		Status:          enums.OrderStatusReceived,
	}
	for _, item := range normalized.Items {
		order.Items = append(order.Items, models.OrderLineItem{
			Name:           item.Name,
			Qty:            item.Qty,
			UnitPriceCents: item.UnitPriceCents,
			TotalCents:     item.TotalCents,
		})
	}

	if _, err := s.orderRepo.Create(ctx, order); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "persist order")
	}

	logCtx := s.logg.WithOrderID(ctx, order.ID.String())
	s.logg.Info(logCtx, "order ingested")
	return order, nil
}

// Dispatch creates a provider delivery for the order: quote, create, persist.
// Concurrent attempts for the same order serialize through the per-order lock;
// losers fail fast with DispatchInProgress.
func (s *Service) Dispatch(ctx context.Context, req Request) (*models.Delivery, error) {
	if field := req.Pickup.Validate(); field != "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "pickup waypoint incomplete").
			WithDetails(map[string]any{"field": field})
	}

	release, err := s.locker.Acquire(ctx, req.OrderID)
	if err != nil {
		return nil, err
	}
	defer release()

	order, err := s.orderRepo.FindByID(ctx, req.OrderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
	}
	if order.Status.IsTerminal() {
		return nil, pkgerrors.New(pkgerrors.CodeConflict, "order is in a terminal state")
	}
	if _, err := s.delivRepo.FindActiveByOrder(ctx, req.OrderID); err == nil {
		return nil, pkgerrors.New(pkgerrors.CodeConflict, "order already has an active delivery")
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check active delivery")
	}

	integration, err := s.registry.ResolveByID(ctx, req.IntegrationID)
	if err != nil {
		return nil, err
	}
	if integration.Type != enums.IntegrationTypeDelivery {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "integration is not a delivery integration")
	}
	if integration.TenantID != order.TenantID {
		return nil, pkgerrors.New(pkgerrors.CodeIntegrationNotFound, "integration not found")
	}

	client, err := s.partners.ClientFor(integration)
	if err != nil {
		return nil, err
	}

	delivery, err := s.createWithProvider(ctx, req, order, integration, client)
	if err != nil {
		if s.metrics != nil {
			s.metrics.IncDispatchFailure(integration.Provider, string(pkgerrors.As(err).Code()))
		}
		return nil, err
	}
	if s.metrics != nil {
		s.metrics.IncDispatchSuccess(integration.Provider)
	}

	logCtx := s.logg.WithOrderID(ctx, order.ID.String())
	logCtx = s.logg.WithDeliveryID(logCtx, delivery.ID.String())
	logCtx = s.logg.WithProvider(logCtx, delivery.Provider.String())
	s.logg.Info(logCtx, "delivery dispatched")
	return delivery, nil
}

func (s *Service) createWithProvider(ctx context.Context, req Request, order *models.Order, integration *models.Integration, client partners.Client) (*models.Delivery, error) {
	dropoff := s.dropoffFor(req, order)

	start := time.Now()
	quote, err := client.GetQuote(ctx, partners.QuoteRequest{
		Pickup:          req.Pickup,
		Dropoff:         dropoff,
		OrderValueCents: order.TotalCents,
		Currency:        order.Currency,
	})
	if err != nil {
		s.recordDispatchLog(ctx, integration.ID, "delivery.quote", order, nil, start, err)
		return nil, err
	}

	createReq := partners.CreateRequest{
		Quote:    quote,
		Pickup:   req.Pickup,
		Dropoff:  dropoff,
		OrderRef: order.ID.String(),
	}
	for _, item := range order.Items {
		createReq.Items = append(createReq.Items, partners.Item{Name: item.Name, Qty: item.Qty})
	}

	result, err := client.CreateDelivery(ctx, createReq)
	s.recordDispatchLog(ctx, integration.ID, "delivery.create", order, result, start, err)
	if err != nil {
		return nil, err
	}

	delivery := &models.Delivery{
		OrderID:            order.ID,
		IntegrationID:      integration.ID,
		Provider:           client.Provider(),
		ProviderDeliveryID: result.ProviderDeliveryID,
		Status:             result.Status,
		Pickup:             req.Pickup,
		Dropoff:            dropoff,
		TrackingURL:        result.TrackingURL,
		FeeCents:           result.FeeCents,
		Currency:           result.Currency,
	}
	err = s.db.WithTx(ctx, func(tx *gorm.DB) error {
		_, err := s.delivRepo.WithTx(tx).Create(ctx, delivery)
		return err
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "persist delivery")
	}
	return delivery, nil
}

// ApplyStatusUpdate applies a provider-reported delivery status. Stale updates
// (rank not advancing) are dropped silently; legal progress also advances the
// order state machine.
func (s *Service) ApplyStatusUpdate(ctx context.Context, provider enums.Provider, providerDeliveryID string, status enums.DeliveryStatus, trackingURL string) (*models.Delivery, error) {
	if !status.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeMalformedPayload, "unknown delivery status").
			WithDetails(map[string]any{"status": status.String()})
	}

	var updated *models.Delivery
	err := s.db.WithTx(ctx, func(tx *gorm.DB) error {
		delivRepo := s.delivRepo.WithTx(tx)
		orderRepo := s.orderRepo.WithTx(tx)

		delivery, err := delivRepo.FindByProviderRefForUpdate(ctx, provider, providerDeliveryID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "delivery not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load delivery")
		}

		if delivery.Status.IsTerminal() || status.Rank() <= delivery.Status.Rank() {
			if s.metrics != nil {
				s.metrics.IncStatusDropped()
			}
			logCtx := s.logg.WithDeliveryID(ctx, delivery.ID.String())
			s.logg.Warn(logCtx, "stale delivery status update dropped")
			updated = delivery
			return nil
		}

		if err := delivRepo.UpdateStatus(ctx, delivery.ID, status, trackingURL); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update delivery status")
		}
		delivery.Status = status
		if trackingURL != "" {
			delivery.TrackingURL = trackingURL
		}
		updated = delivery

		next, ok := orderStatusFor[status]
		if !ok {
			return nil
		}
		order, err := orderRepo.FindByIDForUpdate(ctx, delivery.OrderID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order for status update")
		}
		if !order.Status.CanTransitionTo(next) {
			return nil
		}
		if err := orderRepo.UpdateStatus(ctx, order.ID, next); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update order status")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// Cancel asks the provider to cancel first; local state changes only after the
// provider accepts. A delivery already picked up fails with AlreadyInTransit
// and leaves the order untouched.
func (s *Service) Cancel(ctx context.Context, deliveryID uuid.UUID) (*models.Delivery, error) {
	delivery, err := s.delivRepo.FindByID(ctx, deliveryID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "delivery not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load delivery")
	}
	if delivery.Status == enums.DeliveryStatusCanceled {
		return delivery, nil
	}
	if delivery.Status.Rank() >= enums.DeliveryStatusPickedUp.Rank() {
		return nil, pkgerrors.New(pkgerrors.CodeAlreadyInTransit, "delivery already picked up")
	}

	integration, err := s.registry.ResolveByID(ctx, delivery.IntegrationID)
	if err != nil {
		return nil, err
	}
	client, err := s.partners.ClientFor(integration)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	err = client.Cancel(ctx, delivery.ProviderDeliveryID)
	s.recordCancelLog(ctx, integration.ID, delivery, start, err)
	if err != nil {
		return nil, err
	}

	return s.applyCancellation(ctx, delivery)
}

// applyCancellation marks the delivery canceled and soft-cancels the order.
// Cancellation bypasses the rank check: it is legal from any non-terminal
// delivery state.
func (s *Service) applyCancellation(ctx context.Context, delivery *models.Delivery) (*models.Delivery, error) {
	var updated *models.Delivery
	err := s.db.WithTx(ctx, func(tx *gorm.DB) error {
		delivRepo := s.delivRepo.WithTx(tx)
		orderRepo := s.orderRepo.WithTx(tx)

		current, err := delivRepo.FindByIDForUpdate(ctx, delivery.ID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load delivery")
		}
		if current.Status.IsTerminal() {
			updated = current
			return nil
		}
		if err := delivRepo.UpdateStatus(ctx, current.ID, enums.DeliveryStatusCanceled, ""); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "cancel delivery")
		}
		current.Status = enums.DeliveryStatusCanceled
		updated = current

		order, err := orderRepo.FindByIDForUpdate(ctx, current.OrderID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order for cancellation")
		}
		if !order.Status.CanTransitionTo(enums.OrderStatusCancelled) {
			return nil
		}
		return orderRepo.UpdateStatus(ctx, order.ID, enums.OrderStatusCancelled)
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

func (s *Service) dropoffFor(req Request, order *models.Order) types.Waypoint {
	if req.Dropoff != nil {
		return *req.Dropoff
	}
	dropoff := types.Waypoint{
		Name:  order.CustomerName,
		Line1: order.CustomerAddress,
	}
	if order.CustomerPhone != nil {
		dropoff.Phone = *order.CustomerPhone
	}
	return dropoff
}

func (s *Service) recordDispatchLog(ctx context.Context, integrationID uuid.UUID, eventType string, order *models.Order, result *partners.CreateResult, start time.Time, opErr error) {
	request := types.JSONMap{
		"order_id":    order.ID.String(),
		"total_cents": order.TotalCents,
		"currency":    order.Currency.String(),
	}
	var response types.JSONMap
	statusCode := 200
	if result != nil {
		response = types.JSONMap{
			"provider_delivery_id": result.ProviderDeliveryID,
			"status":               result.Status.String(),
			"tracking_url":         result.TrackingURL,
			"fee_cents":            result.FeeCents,
		}
	}
	if opErr != nil {
		statusCode = pkgerrors.MetadataFor(pkgerrors.As(opErr).Code()).HTTPStatus
	}
	s.logs.Record(ctx, webhooklogs.Entry{
		IntegrationID:   integrationID,
		EventType:       eventType,
		Direction:       enums.WebhookDirectionOutbound,
		RequestPayload:  request,
		ResponsePayload: response,
		StatusCode:      statusCode,
		Duration:        time.Since(start),
		Err:             opErr,
	})
}

func (s *Service) recordCancelLog(ctx context.Context, integrationID uuid.UUID, delivery *models.Delivery, start time.Time, opErr error) {
	statusCode := 200
	if opErr != nil {
		statusCode = pkgerrors.MetadataFor(pkgerrors.As(opErr).Code()).HTTPStatus
	}
	s.logs.Record(ctx, webhooklogs.Entry{
		IntegrationID: integrationID,
		EventType:     "delivery.cancel",
		Direction:     enums.WebhookDirectionOutbound,
		RequestPayload: types.JSONMap{
			"delivery_id":          delivery.ID.String(),
			"provider_delivery_id": delivery.ProviderDeliveryID,
		},
		StatusCode: statusCode,
		Duration:   time.Since(start),
		Err:        opErr,
	})
}
