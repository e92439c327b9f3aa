package adapters

import (
	pkgerrors "github.com/feastline/relay-backend/pkg/errors"

	"github.com/feastline/relay-backend/pkg/enums"
)

// LineItem is a normalized order line. Money is integer cents.
type LineItem struct {
	Name           string
	Qty            int
	UnitPriceCents int
	TotalCents     int
}

// NormalizedOrder is the platform-agnostic shape produced from an inbound
// e-commerce webhook. It carries no database identity; persistence happens
// downstream.
type NormalizedOrder struct {
	Platform        enums.Platform
	ExternalOrderID string
	CustomerName    string
	CustomerEmail   *string
	CustomerPhone   *string
	CustomerAddress string
	Items           []LineItem
	SubtotalCents   int
	TotalCents      int
	Currency        enums.Currency
	Notes           *string
}

// Adapter translates one platform's webhook into a NormalizedOrder. Normalize
// must verify the signature over the raw body before trusting any field.
type Adapter interface {
	Platform() enums.Platform
	SignatureHeader() string
	Normalize(raw []byte, signature, secret string) (*NormalizedOrder, error)
}

// ForPlatform returns the adapter registered for the platform.
func ForPlatform(platform string) (Adapter, error) {
	parsed, err := enums.ParsePlatform(platform)
	if err != nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "unsupported e-commerce platform").
			WithDetails(map[string]any{"platform": platform})
	}
	switch parsed {
	case enums.PlatformShopify:
		return &shopifyAdapter{}, nil
	case enums.PlatformWooCommerce:
		return &wooCommerceAdapter{}, nil
	case enums.PlatformCustom:
		return &customAdapter{}, nil
	default:
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "unsupported e-commerce platform").
			WithDetails(map[string]any{"platform": platform})
	}
}

func missingField(field string) error {
	return pkgerrors.New(pkgerrors.CodeMalformedPayload, "missing required field").
		WithDetails(map[string]any{"field": field})
}

// checkTotals enforces that each line's total matches qty x unit price and the
// order total matches the sum of line totals.
func checkTotals(order *NormalizedOrder) error {
	sum := 0
	for i, item := range order.Items {
		if item.Qty <= 0 {
			return pkgerrors.New(pkgerrors.CodeMalformedPayload, "line item quantity must be positive").
				WithDetails(map[string]any{"index": i})
		}
		if item.TotalCents != item.Qty*item.UnitPriceCents {
			return pkgerrors.New(pkgerrors.CodeMalformedPayload, "line item total does not match quantity times unit price").
				WithDetails(map[string]any{"index": i})
		}
		sum += item.TotalCents
	}
	if order.SubtotalCents == 0 {
		order.SubtotalCents = sum
	}
	if order.TotalCents == 0 {
		order.TotalCents = sum
	}
	if order.TotalCents != sum {
		return pkgerrors.New(pkgerrors.CodeMalformedPayload, "order total does not match the sum of line items").
			WithDetails(map[string]any{"total_cents": order.TotalCents, "line_sum_cents": sum})
	}
	return nil
}
