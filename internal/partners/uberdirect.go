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

var uberDirectBaseURLs = map[enums.Environment]string{
	enums.EnvironmentSandbox: "https://sandbox-api.uberdirect.com",
	enums.EnvironmentLive:    "https://api.uberdirect.com",
}

var uberDirectStatuses = map[string]enums.DeliveryStatus{
	"pending":         enums.DeliveryStatusCreated,
	"pickup":          enums.DeliveryStatusAssigned,
	"pickup_complete": enums.DeliveryStatusPickedUp,
	"dropoff":         enums.DeliveryStatusInProgress,
	"delivered":       enums.DeliveryStatusDelivered,
	"canceled":        enums.DeliveryStatusCanceled,
}

type uberDirectClient struct {
	core *core
}

func newUberDirectClient(c *core) *uberDirectClient {
	if c.baseURL == "" {
		c.baseURL = uberDirectBaseURLs[c.environment]
	}
	c.authPath = "/v1/oauth/token"
	return &uberDirectClient{core: c}
}

func (u *uberDirectClient) Provider() enums.Provider {
	return enums.ProviderUberDirect
}

type uberWaypoint struct {
	Name      string  `json:"name"`
	Address   string  `json:"address"`
	Phone     string  `json:"phone_number,omitempty"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

func toUberWaypoint(w types.Waypoint) uberWaypoint {
	return uberWaypoint{
		Name:      w.Name,
		Address:   w.FormattedAddress(),
		Phone:     w.Phone,
		Latitude:  w.Lat,
		Longitude: w.Lng,
	}
}

type uberQuoteRequest struct {
	Pickup     uberWaypoint `json:"pickup"`
	Dropoff    uberWaypoint `json:"dropoff"`
	OrderValue int          `json:"order_value"`
	Currency   string       `json:"currency"`
}

type uberQuoteResponse struct {
	QuoteID    string    `json:"quote_id"`
	Fee        int       `json:"fee"`
	Currency   string    `json:"currency"`
	ETAMinutes int       `json:"eta_minutes"`
	ExpiresAt  time.Time `json:"expires_at"`
}

func (u *uberDirectClient) GetQuote(ctx context.Context, req QuoteRequest) (*Quote, error) {
	body := uberQuoteRequest{
		Pickup:     toUberWaypoint(req.Pickup),
		Dropoff:    toUberWaypoint(req.Dropoff),
		OrderValue: req.OrderValueCents,
		Currency:   req.Currency.String(),
	}
	var resp uberQuoteResponse
	overrides := map[int]pkgerrors.Code{
		http.StatusUnprocessableEntity: pkgerrors.CodeQuoteUnavailable,
		http.StatusNotFound:            pkgerrors.CodeQuoteUnavailable,
	}
	if err := u.core.authedCall(ctx, "get_quote", http.MethodPost, "/v1/quotes", body, &resp, overrides); err != nil {
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
		ETAMinutes: resp.ETAMinutes,
		ExpiresAt:  resp.ExpiresAt,
	}, nil
}

type uberManifestItem struct {
	Name     string `json:"name"`
	Quantity int    `json:"quantity"`
}

type uberCreateRequest struct {
	QuoteID       string             `json:"quote_id,omitempty"`
	Pickup        uberWaypoint       `json:"pickup"`
	Dropoff       uberWaypoint       `json:"dropoff"`
	ManifestItems []uberManifestItem `json:"manifest_items"`
	ExternalID    string             `json:"external_id"`
}

type uberCreateResponse struct {
	DeliveryID  string `json:"delivery_id"`
	Status      string `json:"status"`
	TrackingURL string `json:"tracking_url"`
	Fee         int    `json:"fee"`
	Currency    string `json:"currency"`
}

func (u *uberDirectClient) CreateDelivery(ctx context.Context, req CreateRequest) (*CreateResult, error) {
	if req.Quote.Expired(time.Now()) {
		return nil, pkgerrors.New(pkgerrors.CodeQuoteExpired, "quote expired before delivery creation")
	}

	body := uberCreateRequest{
		Pickup:     toUberWaypoint(req.Pickup),
		Dropoff:    toUberWaypoint(req.Dropoff),
		ExternalID: req.OrderRef,
	}
	if req.Quote != nil {
		body.QuoteID = req.Quote.ID
	}
	for _, item := range req.Items {
		body.ManifestItems = append(body.ManifestItems, uberManifestItem{Name: item.Name, Quantity: item.Qty})
	}

	var resp uberCreateResponse
	overrides := map[int]pkgerrors.Code{
		http.StatusGone:                pkgerrors.CodeQuoteExpired,
		http.StatusUnprocessableEntity: pkgerrors.CodeQuoteUnavailable,
	}
	if err := u.core.authedCall(ctx, "create_delivery", http.MethodPost, "/v1/deliveries", body, &resp, overrides); err != nil {
		return nil, err
	}

	status, err := mapProviderStatus(uberDirectStatuses, resp.Status)
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

type uberStatusResponse struct {
	Status      string `json:"status"`
	TrackingURL string `json:"tracking_url"`
}

func (u *uberDirectClient) GetStatus(ctx context.Context, providerDeliveryID string) (*StatusResult, error) {
	var resp uberStatusResponse
	path := fmt.Sprintf("/v1/deliveries/%s", providerDeliveryID)
	if err := u.core.authedCall(ctx, "get_status", http.MethodGet, path, nil, &resp, nil); err != nil {
		return nil, err
	}
	status, err := mapProviderStatus(uberDirectStatuses, resp.Status)
	if err != nil {
		return nil, err
	}
	return &StatusResult{Status: status, TrackingURL: resp.TrackingURL}, nil
}

func (u *uberDirectClient) Cancel(ctx context.Context, providerDeliveryID string) error {
	path := fmt.Sprintf("/v1/deliveries/%s/cancel", providerDeliveryID)
	overrides := map[int]pkgerrors.Code{
		http.StatusConflict: pkgerrors.CodeAlreadyInTransit,
	}
	return u.core.authedCall(ctx, "cancel", http.MethodPost, path, nil, nil, overrides)
}

// mapProviderStatus translates a provider status string into the relay's
// delivery status, failing on values the mapping does not know.
func mapProviderStatus(mapping map[string]enums.DeliveryStatus, raw string) (enums.DeliveryStatus, error) {
	if status, ok := mapping[raw]; ok {
		return status, nil
	}
	return "", pkgerrors.New(pkgerrors.CodeDependency, fmt.Sprintf("unrecognized provider status %q", raw))
}
