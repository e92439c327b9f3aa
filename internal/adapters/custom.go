package adapters

import (
	"encoding/json"
	"strconv"
	"strings"

	"github.com/feastline/relay-backend/pkg/enums"
	pkgerrors "github.com/feastline/relay-backend/pkg/errors"
)

const customSignatureHeader = "X-Relay-Signature"

// customAdapter accepts the relay's own push format, used by storefronts
// without a native webhook integration. Prices are already integer cents and
// the signature is hex-encoded HMAC-SHA256.
type customAdapter struct{}

type customPayload struct {
	Order *customOrder `json:"order"`
}

type customOrder struct {
	ID            string           `json:"id"`
	CustomerName  string           `json:"customerName"`
	CustomerEmail string           `json:"customerEmail"`
	CustomerPhone string           `json:"customerPhone"`
	Address       string           `json:"address"`
	Items         []customLineItem `json:"items"`
	TotalAmount   int              `json:"totalAmount"`
	Currency      string           `json:"currency"`
	Notes         string           `json:"notes"`
}

type customLineItem struct {
	Name     string `json:"name"`
	Quantity int    `json:"quantity"`
	Price    int    `json:"price"`
}

func (a *customAdapter) Platform() enums.Platform {
	return enums.PlatformCustom
}

func (a *customAdapter) SignatureHeader() string {
	return customSignatureHeader
}

func (a *customAdapter) Normalize(raw []byte, signature, secret string) (*NormalizedOrder, error) {
	if err := verifyHexHMAC(raw, signature, secret); err != nil {
		return nil, err
	}

	var payload customPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeMalformedPayload, err, "decode custom payload")
	}
	if payload.Order == nil {
		return nil, missingField("order")
	}
	if strings.TrimSpace(payload.Order.ID) == "" {
		return nil, missingField("order.id")
	}
	if len(payload.Order.Items) == 0 {
		return nil, missingField("order.items")
	}

	order := &NormalizedOrder{
		Platform:        enums.PlatformCustom,
		ExternalOrderID: payload.Order.ID,
		CustomerName:    payload.Order.CustomerName,
		CustomerAddress: payload.Order.Address,
		TotalCents:      payload.Order.TotalAmount,
		Currency:        enums.CurrencyUSD,
	}
	if payload.Order.CustomerEmail != "" {
		order.CustomerEmail = &payload.Order.CustomerEmail
	}
	if payload.Order.CustomerPhone != "" {
		order.CustomerPhone = &payload.Order.CustomerPhone
	}
	if payload.Order.Notes != "" {
		order.Notes = &payload.Order.Notes
	}
	if payload.Order.Currency != "" {
		currency, err := enums.ParseCurrency(payload.Order.Currency)
		if err != nil {
			return nil, pkgerrors.New(pkgerrors.CodeMalformedPayload, "unsupported currency").
				WithDetails(map[string]any{"currency": payload.Order.Currency})
		}
		order.Currency = currency
	}

	for i, line := range payload.Order.Items {
		if strings.TrimSpace(line.Name) == "" {
			return nil, missingField("order.items[" + strconv.Itoa(i) + "].name")
		}
		order.Items = append(order.Items, LineItem{
			Name:           line.Name,
			Qty:            line.Quantity,
			UnitPriceCents: line.Price,
			TotalCents:     line.Quantity * line.Price,
		})
	}

	if err := checkTotals(order); err != nil {
		return nil, err
	}
	return order, nil
}
