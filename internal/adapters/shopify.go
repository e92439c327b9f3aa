package adapters

import (
	"encoding/json"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/feastline/relay-backend/pkg/enums"
	pkgerrors "github.com/feastline/relay-backend/pkg/errors"
)

const shopifySignatureHeader = "X-Shopify-Hmac-Sha256"

// shopifyAdapter normalizes Shopify order webhooks. Shopify signs the raw body
// with base64-encoded HMAC-SHA256 and ships money as decimal strings.
type shopifyAdapter struct{}

type shopifyOrder struct {
	ID              json.Number         `json:"id"`
	Email           string              `json:"email"`
	Phone           string              `json:"phone"`
	Note            string              `json:"note"`
	Currency        string              `json:"currency"`
	SubtotalPrice   string              `json:"subtotal_price"`
	TotalPrice      string              `json:"total_price"`
	ShippingAddress *shopifyAddress     `json:"shipping_address"`
	LineItems       []shopifyLineItem   `json:"line_items"`
}

type shopifyAddress struct {
	Name     string `json:"name"`
	Address1 string `json:"address1"`
	Address2 string `json:"address2"`
	City     string `json:"city"`
	Province string `json:"province"`
	Zip      string `json:"zip"`
	Country  string `json:"country"`
	Phone    string `json:"phone"`
}

type shopifyLineItem struct {
	Title    string `json:"title"`
	Quantity int    `json:"quantity"`
	Price    string `json:"price"`
}

func (a *shopifyAdapter) Platform() enums.Platform {
	return enums.PlatformShopify
}

func (a *shopifyAdapter) SignatureHeader() string {
	return shopifySignatureHeader
}

func (a *shopifyAdapter) Normalize(raw []byte, signature, secret string) (*NormalizedOrder, error) {
	if err := verifyBase64HMAC(raw, signature, secret); err != nil {
		return nil, err
	}

	var payload shopifyOrder
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeMalformedPayload, err, "decode shopify payload")
	}
	if payload.ID.String() == "" {
		return nil, missingField("id")
	}
	if payload.ShippingAddress == nil {
		return nil, missingField("shipping_address")
	}
	if strings.TrimSpace(payload.ShippingAddress.Name) == "" {
		return nil, missingField("shipping_address.name")
	}
	if strings.TrimSpace(payload.ShippingAddress.Address1) == "" {
		return nil, missingField("shipping_address.address1")
	}
	if len(payload.LineItems) == 0 {
		return nil, missingField("line_items")
	}

	order := &NormalizedOrder{
		Platform:        enums.PlatformShopify,
		ExternalOrderID: payload.ID.String(),
		CustomerName:    payload.ShippingAddress.Name,
		CustomerAddress: joinAddress(
			payload.ShippingAddress.Address1,
			payload.ShippingAddress.Address2,
			payload.ShippingAddress.City,
			payload.ShippingAddress.Province,
			payload.ShippingAddress.Zip,
			payload.ShippingAddress.Country,
		),
	}
	if payload.Email != "" {
		order.CustomerEmail = &payload.Email
	}
	if phone := firstNonEmpty(payload.Phone, payload.ShippingAddress.Phone); phone != "" {
		order.CustomerPhone = &phone
	}
	if payload.Note != "" {
		order.Notes = &payload.Note
	}

	currency, err := enums.ParseCurrency(payload.Currency)
	if err != nil {
		return nil, pkgerrors.New(pkgerrors.CodeMalformedPayload, "unsupported currency").
			WithDetails(map[string]any{"currency": payload.Currency})
	}
	order.Currency = currency

	for i, line := range payload.LineItems {
		if strings.TrimSpace(line.Title) == "" {
			return nil, missingField("line_items[" + strconv.Itoa(i) + "].title")
		}
		unit, err := decimalToCents(line.Price)
		if err != nil {
			return nil, pkgerrors.New(pkgerrors.CodeMalformedPayload, "invalid line item price").
				WithDetails(map[string]any{"field": "line_items[" + strconv.Itoa(i) + "].price"})
		}
		order.Items = append(order.Items, LineItem{
			Name:           line.Title,
			Qty:            line.Quantity,
			UnitPriceCents: unit,
			TotalCents:     line.Quantity * unit,
		})
	}

	if payload.SubtotalPrice != "" {
		if order.SubtotalCents, err = decimalToCents(payload.SubtotalPrice); err != nil {
			return nil, missingField("subtotal_price")
		}
	}
	if payload.TotalPrice != "" {
		if order.TotalCents, err = decimalToCents(payload.TotalPrice); err != nil {
			return nil, missingField("total_price")
		}
	}

	if err := checkTotals(order); err != nil {
		return nil, err
	}
	return order, nil
}

// decimalToCents converts a decimal money string such as "15.99" into integer
// cents without floating-point drift.
func decimalToCents(value string) (int, error) {
	amount, err := decimal.NewFromString(value)
	if err != nil {
		return 0, err
	}
	return int(amount.Mul(decimal.NewFromInt(100)).IntPart()), nil
}

func joinAddress(parts ...string) string {
	kept := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			kept = append(kept, trimmed)
		}
	}
	return strings.Join(kept, ", ")
}

func firstNonEmpty(values ...string) string {
	for _, value := range values {
		if strings.TrimSpace(value) != "" {
			return value
		}
	}
	return ""
}
