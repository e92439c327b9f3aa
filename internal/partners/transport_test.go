package partners

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/feastline/relay-backend/pkg/db/models"
	"github.com/feastline/relay-backend/pkg/enums"
	pkgerrors "github.com/feastline/relay-backend/pkg/errors"
	"github.com/feastline/relay-backend/pkg/types"
)

type fakeProvider struct {
	authCalls   atomic.Int64
	tokens      []string
	statusCalls atomic.Int64
	quoteCalls  atomic.Int64
	createCalls atomic.Int64

	// statusResponder lets a test script per-call behavior.
	statusResponder func(call int64, w http.ResponseWriter)
	quoteResponder  func(call int64, w http.ResponseWriter)
	createResponder func(call int64, w http.ResponseWriter)
}

func (f *fakeProvider) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /v1/oauth/token", func(w http.ResponseWriter, r *http.Request) {
		call := f.authCalls.Add(1)
		token := "tok-1"
		if int(call) <= len(f.tokens) {
			token = f.tokens[call-1]
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"access_token": token,
			"expires_in":   3600,
		})
	})
	mux.HandleFunc("GET /v1/deliveries/{id}", func(w http.ResponseWriter, r *http.Request) {
		call := f.statusCalls.Add(1)
		if f.statusResponder != nil {
			f.statusResponder(call, w)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"status": "pending"})
	})
	mux.HandleFunc("POST /v1/quotes", func(w http.ResponseWriter, r *http.Request) {
		call := f.quoteCalls.Add(1)
		if f.quoteResponder != nil {
			f.quoteResponder(call, w)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"quote_id":    "q-1",
			"fee":         499,
			"currency":    "USD",
			"eta_minutes": 25,
			"expires_at":  time.Now().Add(5 * time.Minute).UTC().Format(time.RFC3339),
		})
	})
	mux.HandleFunc("POST /v1/deliveries", func(w http.ResponseWriter, r *http.Request) {
		call := f.createCalls.Add(1)
		if f.createResponder != nil {
			f.createResponder(call, w)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"delivery_id":  "del-1",
			"status":       "pending",
			"tracking_url": "https://track.example/del-1",
			"fee":          499,
			"currency":     "USD",
		})
	})
	return mux
}

func newTestClient(t *testing.T, fake *fakeProvider) Client {
	t.Helper()
	server := httptest.NewServer(fake.handler())
	t.Cleanup(server.Close)

	factory := NewFactory(FactoryParams{
		Attempts:    3,
		CallTimeout: 2 * time.Second,
		BaseURLs:    map[enums.Provider]string{enums.ProviderUberDirect: server.URL},
	})
	client, err := factory.ClientFor(&models.Integration{
		Provider:    enums.ProviderUberDirect.String(),
		Environment: enums.EnvironmentSandbox,
		APIKey:      "key",
		APISecret:   "secret",
	})
	require.NoError(t, err)
	return client
}

func testWaypoint(name string) types.Waypoint {
	return types.Waypoint{
		Name:   name,
		Line1:  "123 Main St",
		City:   "Springfield",
		Postal: "62701",
	}
}

func TestClient_TokenFetchedOnceAcrossCalls(t *testing.T) {
	fake := &fakeProvider{}
	client := newTestClient(t, fake)

	_, err := client.GetStatus(context.Background(), "del-1")
	require.NoError(t, err)
	_, err = client.GetStatus(context.Background(), "del-1")
	require.NoError(t, err)

	assert.Equal(t, int64(1), fake.authCalls.Load())
	assert.Equal(t, int64(2), fake.statusCalls.Load())
}

func TestClient_RetriesServerError(t *testing.T) {
	fake := &fakeProvider{
		quoteResponder: func(call int64, w http.ResponseWriter) {
			if call == 1 {
				http.Error(w, `{"message":"upstream hiccup"}`, http.StatusInternalServerError)
				return
			}
			_ = json.NewEncoder(w).Encode(map[string]any{
				"quote_id": "q-2",
				"fee":      350,
				"currency": "USD",
			})
		},
	}
	client := newTestClient(t, fake)

	quote, err := client.GetQuote(context.Background(), QuoteRequest{
		Pickup:          testWaypoint("Store"),
		Dropoff:         testWaypoint("Customer"),
		OrderValueCents: 3198,
		Currency:        enums.CurrencyUSD,
	})
	require.NoError(t, err)
	assert.Equal(t, "q-2", quote.ID)
	assert.Equal(t, 350, quote.FeeCents)
	assert.Equal(t, int64(2), fake.quoteCalls.Load())
}

func TestClient_RetriesRateLimit(t *testing.T) {
	fake := &fakeProvider{
		statusResponder: func(call int64, w http.ResponseWriter) {
			if call == 1 {
				http.Error(w, `{"message":"slow down"}`, http.StatusTooManyRequests)
				return
			}
			_ = json.NewEncoder(w).Encode(map[string]any{"status": "dropoff"})
		},
	}
	client := newTestClient(t, fake)

	status, err := client.GetStatus(context.Background(), "del-1")
	require.NoError(t, err)
	assert.Equal(t, enums.DeliveryStatusInProgress, status.Status)
	assert.Equal(t, int64(2), fake.statusCalls.Load())
}

func TestClient_DoesNotRetryClientError(t *testing.T) {
	fake := &fakeProvider{
		createResponder: func(call int64, w http.ResponseWriter) {
			http.Error(w, `{"message":"bad manifest"}`, http.StatusBadRequest)
		},
	}
	client := newTestClient(t, fake)

	_, err := client.CreateDelivery(context.Background(), CreateRequest{
		Pickup:   testWaypoint("Store"),
		Dropoff:  testWaypoint("Customer"),
		OrderRef: "order-1",
	})
	require.Error(t, err)
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeValidation))
	assert.Equal(t, int64(1), fake.createCalls.Load())
}

func TestClient_AuthFailureInvalidatesToken(t *testing.T) {
	fake := &fakeProvider{
		tokens: []string{"tok-1", "tok-2"},
		statusResponder: func(call int64, w http.ResponseWriter) {
			if call == 1 {
				http.Error(w, `{"message":"token revoked"}`, http.StatusUnauthorized)
				return
			}
			_ = json.NewEncoder(w).Encode(map[string]any{"status": "pending"})
		},
	}
	client := newTestClient(t, fake)

	_, err := client.GetStatus(context.Background(), "del-1")
	require.Error(t, err)
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeAuthFailure))

	// The rejected token is dropped, so the next call re-authenticates.
	_, err = client.GetStatus(context.Background(), "del-1")
	require.NoError(t, err)
	assert.Equal(t, int64(2), fake.authCalls.Load())
}

func TestClient_StatusCodeOverrides(t *testing.T) {
	fake := &fakeProvider{
		createResponder: func(call int64, w http.ResponseWriter) {
			http.Error(w, `{"message":"quote no longer valid"}`, http.StatusGone)
		},
	}
	client := newTestClient(t, fake)

	_, err := client.CreateDelivery(context.Background(), CreateRequest{
		Quote:    &Quote{ID: "q-1", ExpiresAt: time.Now().Add(time.Minute)},
		Pickup:   testWaypoint("Store"),
		Dropoff:  testWaypoint("Customer"),
		OrderRef: "order-1",
	})
	require.Error(t, err)
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeQuoteExpired))
}

func TestCreateDelivery_ExpiredQuoteNeverReachesProvider(t *testing.T) {
	fake := &fakeProvider{}
	client := newTestClient(t, fake)

	_, err := client.CreateDelivery(context.Background(), CreateRequest{
		Quote:    &Quote{ID: "q-1", ExpiresAt: time.Now().Add(-time.Minute)},
		Pickup:   testWaypoint("Store"),
		Dropoff:  testWaypoint("Customer"),
		OrderRef: "order-1",
	})
	require.Error(t, err)
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeQuoteExpired))
	assert.Equal(t, int64(0), fake.authCalls.Load())
	assert.Equal(t, int64(0), fake.createCalls.Load())
}

func TestQuote_Expired(t *testing.T) {
	now := time.Now()

	var missing *Quote
	assert.False(t, missing.Expired(now))
	assert.False(t, (&Quote{}).Expired(now))
	assert.False(t, (&Quote{ExpiresAt: now.Add(time.Minute)}).Expired(now))
	assert.True(t, (&Quote{ExpiresAt: now.Add(-time.Second)}).Expired(now))
}

func TestFactory_UnsupportedProvider(t *testing.T) {
	factory := NewFactory(FactoryParams{})
	_, err := factory.ClientFor(&models.Integration{Provider: "pigeon_post"})
	require.Error(t, err)
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeValidation))
}
