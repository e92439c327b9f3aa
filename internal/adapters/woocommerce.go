package adapters

import (
	"encoding/json"
	"strconv"
	"strings"

	"github.com/feastline/relay-backend/pkg/enums"
	pkgerrors "github.com/feastline/relay-backend/pkg/errors"
)

const wooCommerceSignatureHeader = "X-WC-Webhook-Signature"

// wooCommerceAdapter normalizes WooCommerce order webhooks. WooCommerce signs
// the raw body with base64-encoded HMAC-SHA256 using the webhook secret.
type wooCommerceAdapter struct{}

type wooOrder struct {
	ID           json.Number   `json:"id"`
	Currency     string        `json:"currency"`
	Total        string        `json:"total"`
	CustomerNote string        `json:"customer_note"`
	Billing      *wooAddress   `json:"billing"`
	Shipping     *wooAddress   `json:"shipping"`
	LineItems    []wooLineItem `json:"line_items"`
}

type wooAddress struct {
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Address1  string `json:"address_1"`
	Address2  string `json:"address_2"`
	City      string `json:"city"`
	State     string `json:"state"`
	Postcode  string `json:"postcode"`
	Country   string `json:"country"`
	Email     string `json:"email"`
	Phone     string `json:"phone"`
}

type wooLineItem struct {
	Name     string `json:"name"`
	Quantity int    `json:"quantity"`
	Total    string `json:"total"`
}

func (a *wooCommerceAdapter) Platform() enums.Platform {
	return enums.PlatformWooCommerce
}

func (a *wooCommerceAdapter) SignatureHeader() string {
	return wooCommerceSignatureHeader
}

func (a *wooCommerceAdapter) Normalize(raw []byte, signature, secret string) (*NormalizedOrder, error) {
	if err := verifyBase64HMAC(raw, signature, secret); err != nil {
		return nil, err
	}

	var payload wooOrder
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeMalformedPayload, err, "decode woocommerce payload")
	}
	if payload.ID.String() == "" {
		return nil, missingField("id")
	}

	// WooCommerce often leaves shipping empty for local pickup; billing is
	// the authoritative fallback.
	address := payload.Shipping
	if address == nil || strings.TrimSpace(address.Address1) == "" {
		address = payload.Billing
	}
	if address == nil {
		return nil, missingField("billing")
	}
	name := strings.TrimSpace(address.FirstName + " " + address.LastName)
	if name == "" {
		return nil, missingField("billing.first_name")
	}
	if strings.TrimSpace(address.Address1) == "" {
		return nil, missingField("billing.address_1")
	}
	if len(payload.LineItems) == 0 {
		return nil, missingField("line_items")
	}

	order := &NormalizedOrder{
		Platform:        enums.PlatformWooCommerce,
		ExternalOrderID: payload.ID.String(),
		CustomerName:    name,
		CustomerAddress: joinAddress(address.Address1, address.Address2, address.City, address.State, address.Postcode, address.Country),
	}
	if payload.Billing != nil {
		if payload.Billing.Email != "" {
			order.CustomerEmail = &payload.Billing.Email
		}
		if payload.Billing.Phone != "" {
			order.CustomerPhone = &payload.Billing.Phone
		}
	}
	if payload.CustomerNote != "" {
		order.Notes = &payload.CustomerNote
	}

	currency, err := enums.ParseCurrency(payload.Currency)
	if err != nil {
		return nil, pkgerrors.New(pkgerrors.CodeMalformedPayload, "unsupported currency").
			WithDetails(map[string]any{"currency": payload.Currency})
	}
	order.Currency = currency

	for i, line := range payload.LineItems {
		if strings.TrimSpace(line.Name) == "" {
			return nil, missingField("line_items[" + strconv.Itoa(i) + "].name")
		}
		if line.Quantity <= 0 {
			return nil, missingField("line_items[" + strconv.Itoa(i) + "].quantity")
		}
		total, err := decimalToCents(line.Total)
		if err != nil {
			return nil, pkgerrors.New(pkgerrors.CodeMalformedPayload, "invalid line item total").
				WithDetails(map[string]any{"field": "line_items[" + strconv.Itoa(i) + "].total"})
		}
		if total%line.Quantity != 0 {
			return nil, pkgerrors.New(pkgerrors.CodeMalformedPayload, "line item total not divisible by quantity").
				WithDetails(map[string]any{"index": i})
		}
		order.Items = append(order.Items, LineItem{
			Name:           line.Name,
			Qty:            line.Quantity,
			UnitPriceCents: total / line.Quantity,
			TotalCents:     total,
		})
	}

	if payload.Total != "" {
		if order.TotalCents, err = decimalToCents(payload.Total); err != nil {
			return nil, missingField("total")
		}
	}

	if err := checkTotals(order); err != nil {
		return nil, err
	}
	return order, nil
}
