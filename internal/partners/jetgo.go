package partners

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/feastline/relay-backend/pkg/enums"
	pkgerrors "github.com/feastline/relay-backend/pkg/errors"
	"github.com/feastline/relay-backend/pkg/types"
)

var jetGoBaseURLs = map[enums.Environment]string{
	enums.EnvironmentSandbox: "https://api.sandbox.jetgo.dev",
	enums.EnvironmentLive:    "https://api.jetgo.dev",
}

var jetGoStates = map[string]enums.DeliveryStatus{
	"CREATED":         enums.DeliveryStatusCreated,
	"DRIVER_ASSIGNED": enums.DeliveryStatusAssigned,
	"COLLECTED":       enums.DeliveryStatusPickedUp,
	"IN_TRANSIT":      enums.DeliveryStatusInProgress,
	"DELIVERED":       enums.DeliveryStatusDelivered,
	"CANCELLED":       enums.DeliveryStatusCanceled,
}

type jetGoClient struct {
	core *core
}

func newJetGoClient(c *core) *jetGoClient {
	if c.baseURL == "" {
		c.baseURL = jetGoBaseURLs[c.environment]
	}
	c.authPath = "/oauth2/token"
	return &jetGoClient{core: c}
}

func (j *jetGoClient) Provider() enums.Provider {
	return enums.ProviderJetGo
}

type jetGoStop struct {
	Contact string  `json:"contact"`
	Phone   string  `json:"phone,omitempty"`
	Address string  `json:"address"`
	Lat     float64 `json:"lat"`
	Lng     float64 `json:"lng"`
}

func toJetGoStop(w types.Waypoint) jetGoStop {
	return jetGoStop{
		Contact: w.Name,
		Phone:   w.Phone,
		Address: w.FormattedAddress(),
		Lat:     w.Lat,
		Lng:     w.Lng,
	}
}

type jetGoQuoteRequest struct {
	Origin             jetGoStop `json:"origin"`
	Destination        jetGoStop `json:"destination"`
	DeclaredValueCents int       `json:"declared_value_cents"`
	Currency           string    `json:"currency"`
}

type jetGoQuoteResponse struct {
	ID         string    `json:"id"`
	PriceCents int       `json:"price_cents"`
	Currency   string    `json:"currency"`
	ETAMin     int       `json:"eta_min"`
	ValidUntil time.Time `json:"valid_until"`
}

func (j *jetGoClient) GetQuote(ctx context.Context, req QuoteRequest) (*Quote, error) {
	body := jetGoQuoteRequest{
		Origin:             toJetGoStop(req.Pickup),
		Destination:        toJetGoStop(req.Dropoff),
		DeclaredValueCents: req.OrderValueCents,
		Currency:           req.Currency.String(),
	}
	var resp jetGoQuoteResponse
	overrides := map[int]pkgerrors.Code{
		http.StatusUnprocessableEntity: pkgerrors.CodeQuoteUnavailable,
	}
	if err := j.core.authedCall(ctx, "get_quote", http.MethodPost, "/v2/quotes", body, &resp, overrides); err != nil {
		return nil, err
	}
	currency, err := enums.ParseCurrency(resp.Currency)
	if err != nil {
		currency = req.Currency
	}
	return &Quote{
		ID:         resp.ID,
		FeeCents:   resp.PriceCents,
		Currency:   currency,
		ETAMinutes: resp.ETAMin,
		ExpiresAt:  resp.ValidUntil,
	}, nil
}

type jetGoParcel struct {
	Description string `json:"description"`
	Count       int    `json:"count"`
}

type jetGoCreateRequest struct {
	QuoteID     string        `json:"quote_id,omitempty"`
	Origin      jetGoStop     `json:"origin"`
	Destination jetGoStop     `json:"destination"`
	Parcels     []jetGoParcel `json:"parcels"`
	Reference   string        `json:"reference"`
}

type jetGoShipmentResponse struct {
	ShipmentID   string `json:"shipment_id"`
	State        string `json:"state"`
	TrackingLink string `json:"tracking_link"`
	PriceCents   int    `json:"price_cents"`
	Currency     string `json:"currency"`
}

func (j *jetGoClient) CreateDelivery(ctx context.Context, req CreateRequest) (*CreateResult, error) {
	if req.Quote.Expired(time.Now()) {
		return nil, pkgerrors.New(pkgerrors.CodeQuoteExpired, "quote expired before delivery creation")
	}

	body := jetGoCreateRequest{
		Origin:      toJetGoStop(req.Pickup),
		Destination: toJetGoStop(req.Dropoff),
		Reference:   req.OrderRef,
	}
	if req.Quote != nil {
		body.QuoteID = req.Quote.ID
	}
	for _, item := range req.Items {
		body.Parcels = append(body.Parcels, jetGoParcel{Description: item.Name, Count: item.Qty})
	}

	var resp jetGoShipmentResponse
	overrides := map[int]pkgerrors.Code{
		http.StatusGone:                pkgerrors.CodeQuoteExpired,
		http.StatusUnprocessableEntity: pkgerrors.CodeQuoteUnavailable,
	}
	if err := j.core.authedCall(ctx, "create_delivery", http.MethodPost, "/v2/shipments", body, &resp, overrides); err != nil {
		return nil, err
	}

	status, err := mapProviderStatus(jetGoStates, resp.State)
	if err != nil {
		return nil, err
	}
	currency, err := enums.ParseCurrency(resp.Currency)
	if err != nil {
		currency = enums.CurrencyUSD
	}
	return &CreateResult{
		ProviderDeliveryID: resp.ShipmentID,
		Status:             status,
		TrackingURL:        resp.TrackingLink,
		FeeCents:           resp.PriceCents,
		Currency:           currency,
	}, nil
}

func (j *jetGoClient) GetStatus(ctx context.Context, providerDeliveryID string) (*StatusResult, error) {
	var resp jetGoShipmentResponse
	path := fmt.Sprintf("/v2/shipments/%s", providerDeliveryID)
	if err := j.core.authedCall(ctx, "get_status", http.MethodGet, path, nil, &resp, nil); err != nil {
		return nil, err
	}
	status, err := mapProviderStatus(jetGoStates, resp.State)
	if err != nil {
		return nil, err
	}
	return &StatusResult{Status: status, TrackingURL: resp.TrackingLink}, nil
}

func (j *jetGoClient) Cancel(ctx context.Context, providerDeliveryID string) error {
	path := fmt.Sprintf("/v2/shipments/%s/cancel", providerDeliveryID)
	overrides := map[int]pkgerrors.Code{
		http.StatusConflict: pkgerrors.CodeAlreadyInTransit,
	}
	return j.core.authedCall(ctx, "cancel", http.MethodPost, path, nil, nil, overrides)
}
