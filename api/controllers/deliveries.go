package controllers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/feastline/relay-backend/api/responses"
	"github.com/feastline/relay-backend/api/validators"
	"github.com/feastline/relay-backend/internal/deliveries"
	"github.com/feastline/relay-backend/internal/dispatch"
	pkgerrors "github.com/feastline/relay-backend/pkg/errors"
	"github.com/feastline/relay-backend/pkg/logger"
	"github.com/feastline/relay-backend/pkg/pagination"
	"github.com/feastline/relay-backend/pkg/types"
)

type dispatchRequest struct {
	OrderID       string          `json:"order_id" validate:"required,uuid"`
	IntegrationID string          `json:"integration_id" validate:"required,uuid"`
	Pickup        types.Waypoint  `json:"pickup" validate:"required"`
	Dropoff       *types.Waypoint `json:"dropoff"`
}

// DeliveryDispatch creates a provider delivery for an order.
func DeliveryDispatch(svc *dispatch.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		var body dispatchRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		delivery, err := svc.Dispatch(ctx, dispatch.Request{
			OrderID:       uuid.MustParse(body.OrderID),
			IntegrationID: uuid.MustParse(body.IntegrationID),
			Pickup:        body.Pickup,
			Dropoff:       body.Dropoff,
		})
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, delivery)
	}
}

// DeliveryDetail returns one delivery.
func DeliveryDetail(repo deliveries.Repository, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		deliveryID, err := validators.ParseUUIDParam(r, "deliveryId")
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		delivery, err := repo.FindByID(ctx, deliveryID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeNotFound, "delivery not found"))
				return
			}
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load delivery"))
			return
		}
		responses.WriteSuccess(w, delivery)
	}
}

// DeliveryCancel cancels a delivery with the provider, then locally.
func DeliveryCancel(svc *dispatch.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		deliveryID, err := validators.ParseUUIDParam(r, "deliveryId")
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		delivery, err := svc.Cancel(ctx, deliveryID)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, delivery)
	}
}

// DeliveryList returns in-flight deliveries, newest first. Only the active
// filter is supported; terminal deliveries are reached via their order.
func DeliveryList(repo deliveries.Repository, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		status := strings.TrimSpace(r.URL.Query().Get("status"))
		if status != "" && status != "active" {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeValidation, "unsupported status filter").
				WithDetails(map[string]any{"status": status}))
			return
		}

		limit, err := validators.ParseQueryInt(r, "limit", pagination.DefaultLimit, 1, pagination.MaxLimit)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		list, err := repo.ListActive(ctx, limit)
		if err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list active deliveries"))
			return
		}
		responses.WriteSuccess(w, list)
	}
}

// OrderDeliveries lists all deliveries created for an order, newest first.
func OrderDeliveries(repo deliveries.Repository, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		orderID, err := validators.ParseUUIDParam(r, "orderId")
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		list, err := repo.ListByOrder(ctx, orderID)
		if err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list deliveries"))
			return
		}
		responses.WriteSuccess(w, list)
	}
}
