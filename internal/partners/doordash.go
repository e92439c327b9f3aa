package partners

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/feastline/relay-backend/pkg/enums"
	pkgerrors "github.com/feastline/relay-backend/pkg/errors"
)

var doorDashBaseURLs = map[enums.Environment]string{
	enums.EnvironmentSandbox: "https://openapi.sandbox.doordash.com",
	enums.EnvironmentLive:    "https://openapi.doordash.com",
}

var doorDashStatuses = map[string]enums.DeliveryStatus{
	"created":            enums.DeliveryStatusCreated,
	"confirmed":          enums.DeliveryStatusAssigned,
	"picked_up":          enums.DeliveryStatusPickedUp,
	"enroute_to_dropoff": enums.DeliveryStatusInProgress,
	"delivered":          enums.DeliveryStatusDelivered,
	"cancelled":          enums.DeliveryStatusCanceled,
}

type doorDashClient struct {
	core *core
}

func newDoorDashClient(c *core) *doorDashClient {
	if c.baseURL == "" {
		c.baseURL = doorDashBaseURLs[c.environment]
	}
	c.authPath = "/auth/token"
	return &doorDashClient{core: c}
}

func (d *doorDashClient) Provider() enums.Provider {
	return enums.ProviderDoorDash
}

type doorDashQuoteRequest struct {
	PickupAddress   string  `json:"pickup_address"`
	PickupLat       float64 `json:"pickup_latitude"`
	PickupLng       float64 `json:"pickup_longitude"`
	DropoffAddress  string  `json:"dropoff_address"`
	DropoffLat      float64 `json:"dropoff_latitude"`
	DropoffLng      float64 `json:"dropoff_longitude"`
	OrderValueCents int     `json:"order_value"`
	Currency        string  `json:"currency"`
}

type doorDashQuoteResponse struct {
	QuoteID    string    `json:"external_quote_id"`
	Fee        int       `json:"fee"`
	Currency   string    `json:"currency"`
	DurationMn int       `json:"duration_minutes"`
	ExpiresAt  time.Time `json:"expires_at"`
}

func (d *doorDashClient) GetQuote(ctx context.Context, req QuoteRequest) (*Quote, error) {
	body := doorDashQuoteRequest{
		PickupAddress:   req.Pickup.FormattedAddress(),
		PickupLat:       req.Pickup.Lat,
		PickupLng:       req.Pickup.Lng,
		DropoffAddress:  req.Dropoff.FormattedAddress(),
		DropoffLat:      req.Dropoff.Lat,
		DropoffLng:      req.Dropoff.Lng,
		OrderValueCents: req.OrderValueCents,
		Currency:        req.Currency.String(),
	}
	var resp doorDashQuoteResponse
	overrides := map[int]pkgerrors.Code{
		http.StatusUnprocessableEntity: pkgerrors.CodeQuoteUnavailable,
	}
	if err := d.core.authedCall(ctx, "get_quote", http.MethodPost, "/drive/v2/quotes", body, &resp, overrides); err != nil {
		return nil, err
	}
	currency, err := enums.ParseCurrency(resp.Currency)
	if err != nil {
		currency = req.Currency
	}
	return &Quote{
		ID:         resp.QuoteID,
		FeeCents:   resp.Fee,
		Currency:   currency,
		ETAMinutes: resp.DurationMn,
		ExpiresAt:  resp.ExpiresAt,
	}, nil
}

type doorDashItem struct {
	Name     string `json:"name"`
	Quantity int    `json:"quantity"`
}

type doorDashCreateRequest struct {
	QuoteID             string         `json:"quote_id,omitempty"`
	ExternalDeliveryID  string         `json:"external_delivery_id"`
	PickupAddress       string         `json:"pickup_address"`
	PickupBusinessName  string         `json:"pickup_business_name"`
	PickupPhone         string         `json:"pickup_phone_number,omitempty"`
	DropoffAddress      string         `json:"dropoff_address"`
	DropoffContactName  string         `json:"dropoff_contact_given_name"`
	DropoffPhone        string         `json:"dropoff_phone_number,omitempty"`
	Items               []doorDashItem `json:"items"`
}

type doorDashDeliveryResponse struct {
	DeliveryID  string `json:"external_delivery_id"`
	Status      string `json:"delivery_status"`
	TrackingURL string `json:"tracking_url"`
	Fee         int    `json:"fee"`
	Currency    string `json:"currency"`
}

func (d *doorDashClient) CreateDelivery(ctx context.Context, req CreateRequest) (*CreateResult, error) {
	if req.Quote.Expired(time.Now()) {
		return nil, pkgerrors.New(pkgerrors.CodeQuoteExpired, "quote expired before delivery creation")
	}

	body := doorDashCreateRequest{
		ExternalDeliveryID: req.OrderRef,
		PickupAddress:      req.Pickup.FormattedAddress(),
		PickupBusinessName: req.Pickup.Name,
		PickupPhone:        req.Pickup.Phone,
		DropoffAddress:     req.Dropoff.FormattedAddress(),
		DropoffContactName: req.Dropoff.Name,
		DropoffPhone:       req.Dropoff.Phone,
	}
	if req.Quote != nil {
		body.QuoteID = req.Quote.ID
	}
	for _, item := range req.Items {
		body.Items = append(body.Items, doorDashItem{Name: item.Name, Quantity: item.Qty})
	}

	var resp doorDashDeliveryResponse
	overrides := map[int]pkgerrors.Code{
		http.StatusGone:                pkgerrors.CodeQuoteExpired,
		http.StatusUnprocessableEntity: pkgerrors.CodeQuoteUnavailable,
	}
	if err := d.core.authedCall(ctx, "create_delivery", http.MethodPost, "/drive/v2/deliveries", body, &resp, overrides); err != nil {
		return nil, err
	}

	status, err := mapProviderStatus(doorDashStatuses, resp.Status)
	if err != nil {
		return nil, err
	}
	currency, err := enums.ParseCurrency(resp.Currency)
	if err != nil {
		currency = enums.CurrencyUSD
	}
	return &CreateResult{
		ProviderDeliveryID: resp.DeliveryID,
		Status:             status,
		TrackingURL:        resp.TrackingURL,
		FeeCents:           resp.Fee,
		Currency:           currency,
	}, nil
}

func (d *doorDashClient) GetStatus(ctx context.Context, providerDeliveryID string) (*StatusResult, error) {
	var resp doorDashDeliveryResponse
	path := fmt.Sprintf("/drive/v2/deliveries/%s", providerDeliveryID)
	if err := d.core.authedCall(ctx, "get_status", http.MethodGet, path, nil, &resp, nil); err != nil {
		return nil, err
	}
	status, err := mapProviderStatus(doorDashStatuses, resp.Status)
	if err != nil {
		return nil, err
	}
	return &StatusResult{Status: status, TrackingURL: resp.TrackingURL}, nil
}

func (d *doorDashClient) Cancel(ctx context.Context, providerDeliveryID string) error {
	path := fmt.Sprintf("/drive/v2/deliveries/%s/cancel", providerDeliveryID)
	overrides := map[int]pkgerrors.Code{
		http.StatusConflict: pkgerrors.CodeAlreadyInTransit,
	}
	return d.core.authedCall(ctx, "cancel", http.MethodPut, path, nil, nil, overrides)
}
