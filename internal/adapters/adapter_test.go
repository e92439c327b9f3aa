package adapters

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/feastline/relay-backend/pkg/enums"
	pkgerrors "github.com/feastline/relay-backend/pkg/errors"
)

const testSecret = "whsec_test"

func signBase64(t *testing.T, body []byte) string {
	t.Helper()
	mac := hmac.New(sha256.New, []byte(testSecret))
	mac.Write(body)
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

func signHex(t *testing.T, body []byte) string {
	t.Helper()
	mac := hmac.New(sha256.New, []byte(testSecret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

func TestForPlatform(t *testing.T) {
	for _, platform := range []string{"shopify", "woocommerce", "custom"} {
		adapter, err := ForPlatform(platform)
		require.NoError(t, err)
		assert.Equal(t, platform, adapter.Platform().String())
	}

	_, err := ForPlatform("magento")
	require.Error(t, err)
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeValidation))
}

func TestCustomAdapter_Normalize(t *testing.T) {
	adapter := &customAdapter{}
	body := []byte(`{"order":{"id":"ord-77","items":[{"name":"Kebab","quantity":2,"price":1599}],"totalAmount":3198}}`)

	order, err := adapter.Normalize(body, signHex(t, body), testSecret)
	require.NoError(t, err)

	assert.Equal(t, "ord-77", order.ExternalOrderID)
	assert.Equal(t, 3198, order.TotalCents)
	assert.Equal(t, enums.CurrencyUSD, order.Currency)
	require.Len(t, order.Items, 1)
	assert.Equal(t, "Kebab", order.Items[0].Name)
	assert.Equal(t, 2, order.Items[0].Qty)
	assert.Equal(t, 1599, order.Items[0].UnitPriceCents)
}

func TestCustomAdapter_Normalize_BadSignature(t *testing.T) {
	adapter := &customAdapter{}
	body := []byte(`{"order":{"id":"ord-77","items":[{"name":"Kebab","quantity":1,"price":1599}]}}`)

	order, err := adapter.Normalize(body, "deadbeef", testSecret)
	require.Error(t, err)
	assert.Nil(t, order)
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeInvalidSignature))
}

func TestCustomAdapter_Normalize_TotalMismatch(t *testing.T) {
	adapter := &customAdapter{}
	body := []byte(`{"order":{"id":"ord-77","items":[{"name":"Kebab","quantity":2,"price":1599}],"totalAmount":3000}}`)

	_, err := adapter.Normalize(body, signHex(t, body), testSecret)
	require.Error(t, err)
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeMalformedPayload))
}

func TestCustomAdapter_Normalize_InflatedTotal(t *testing.T) {
	adapter := &customAdapter{}
	body := []byte(`{"order":{"id":"ord-77","items":[{"name":"Kebab","quantity":2,"price":1599}],"totalAmount":3500}}`)

	order, err := adapter.Normalize(body, signHex(t, body), testSecret)
	require.Error(t, err)
	assert.Nil(t, order)
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeMalformedPayload, typed.Code())
	assert.Equal(t, map[string]any{"total_cents": 3500, "line_sum_cents": 3198}, typed.Details())
}

func TestCustomAdapter_Normalize_MissingItems(t *testing.T) {
	adapter := &customAdapter{}
	body := []byte(`{"order":{"id":"ord-77"}}`)

	_, err := adapter.Normalize(body, signHex(t, body), testSecret)
	require.Error(t, err)
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeMalformedPayload, typed.Code())
	assert.Equal(t, map[string]any{"field": "order.items"}, typed.Details())
}

func TestShopifyAdapter_Normalize(t *testing.T) {
	adapter := &shopifyAdapter{}
	body := []byte(`{
		"id": 450789469,
		"email": "jane@example.com",
		"currency": "USD",
		"subtotal_price": "31.98",
		"total_price": "31.98",
		"shipping_address": {
			"name": "Jane Doe",
			"address1": "123 Elm St",
			"city": "Austin",
			"province": "TX",
			"zip": "78701",
			"country": "US",
			"phone": "+15125550100"
		},
		"line_items": [
			{"title": "Kebab", "quantity": 2, "price": "15.99"}
		]
	}`)

	order, err := adapter.Normalize(body, signBase64(t, body), testSecret)
	require.NoError(t, err)

	assert.Equal(t, "450789469", order.ExternalOrderID)
	assert.Equal(t, enums.PlatformShopify, order.Platform)
	assert.Equal(t, "Jane Doe", order.CustomerName)
	assert.Contains(t, order.CustomerAddress, "123 Elm St")
	assert.Equal(t, 3198, order.TotalCents)
	assert.Equal(t, 3198, order.SubtotalCents)
	require.NotNil(t, order.CustomerPhone)
	assert.Equal(t, "+15125550100", *order.CustomerPhone)
	require.Len(t, order.Items, 1)
	assert.Equal(t, 1599, order.Items[0].UnitPriceCents)
	assert.Equal(t, 3198, order.Items[0].TotalCents)
}

func TestShopifyAdapter_Normalize_MissingAddress(t *testing.T) {
	adapter := &shopifyAdapter{}
	body := []byte(`{"id": 1, "currency": "USD", "line_items": [{"title": "Kebab", "quantity": 1, "price": "15.99"}]}`)

	_, err := adapter.Normalize(body, signBase64(t, body), testSecret)
	require.Error(t, err)
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeMalformedPayload, typed.Code())
	assert.Equal(t, map[string]any{"field": "shipping_address"}, typed.Details())
}

func TestWooCommerceAdapter_Normalize(t *testing.T) {
	adapter := &wooCommerceAdapter{}
	body := []byte(`{
		"id": 727,
		"currency": "EUR",
		"total": "12.00",
		"customer_note": "ring the bell",
		"billing": {
			"first_name": "Max",
			"last_name": "Muster",
			"address_1": "Hauptstr. 5",
			"city": "Berlin",
			"postcode": "10115",
			"country": "DE",
			"email": "max@example.com",
			"phone": "+493012345"
		},
		"line_items": [
			{"name": "Falafel Wrap", "quantity": 3, "total": "12.00"}
		]
	}`)

	order, err := adapter.Normalize(body, signBase64(t, body), testSecret)
	require.NoError(t, err)

	assert.Equal(t, "727", order.ExternalOrderID)
	assert.Equal(t, "Max Muster", order.CustomerName)
	assert.Equal(t, enums.CurrencyEUR, order.Currency)
	assert.Equal(t, 1200, order.TotalCents)
	require.Len(t, order.Items, 1)
	assert.Equal(t, 400, order.Items[0].UnitPriceCents)
	require.NotNil(t, order.Notes)
	assert.Equal(t, "ring the bell", *order.Notes)
}

func TestWooCommerceAdapter_Normalize_UnsupportedCurrency(t *testing.T) {
	adapter := &wooCommerceAdapter{}
	body := []byte(`{
		"id": 727,
		"currency": "JPY",
		"billing": {"first_name": "A", "last_name": "B", "address_1": "x"},
		"line_items": [{"name": "Item", "quantity": 1, "total": "100"}]
	}`)

	_, err := adapter.Normalize(body, signBase64(t, body), testSecret)
	require.Error(t, err)
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeMalformedPayload))
}

func TestCheckTotals_FillsDerivedAmounts(t *testing.T) {
	order := &NormalizedOrder{
		Items: []LineItem{
			{Name: "A", Qty: 2, UnitPriceCents: 500, TotalCents: 1000},
			{Name: "B", Qty: 1, UnitPriceCents: 250, TotalCents: 250},
		},
	}
	require.NoError(t, checkTotals(order))
	assert.Equal(t, 1250, order.SubtotalCents)
	assert.Equal(t, 1250, order.TotalCents)
}
