package controllers

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/feastline/relay-backend/internal/deliveries"
	"github.com/feastline/relay-backend/internal/dispatch"
	"github.com/feastline/relay-backend/internal/integrations"
	"github.com/feastline/relay-backend/internal/orders"
	"github.com/feastline/relay-backend/internal/partners"
	"github.com/feastline/relay-backend/internal/webhooklogs"
	"github.com/feastline/relay-backend/pkg/db/models"
	"github.com/feastline/relay-backend/pkg/enums"
	"github.com/feastline/relay-backend/pkg/logger"
	"github.com/feastline/relay-backend/pkg/pagination"
	"github.com/feastline/relay-backend/pkg/types"
)

type memOrderRepo struct {
	mu   sync.Mutex
	rows map[uuid.UUID]*models.Order
}

func (r *memOrderRepo) WithTx(*gorm.DB) orders.Repository { return r }

func (r *memOrderRepo) Create(_ context.Context, order *models.Order) (*models.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if order.ID == uuid.Nil {
		order.ID = uuid.New()
	}
	r.rows[order.ID] = order
	return order, nil
}

func (r *memOrderRepo) FindByID(_ context.Context, id uuid.UUID) (*models.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if order, ok := r.rows[id]; ok {
		return order, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *memOrderRepo) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	return r.FindByID(ctx, id)
}

func (r *memOrderRepo) FindByExternalID(_ context.Context, tenantID uuid.UUID, platform enums.Platform, externalOrderID string) (*models.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, order := range r.rows {
		if order.TenantID == tenantID && order.Platform == platform && order.ExternalOrderID == externalOrderID {
			return order, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *memOrderRepo) ListByTenant(context.Context, uuid.UUID, int) ([]models.Order, error) {
	return nil, nil
}

func (r *memOrderRepo) UpdateStatus(_ context.Context, id uuid.UUID, status enums.OrderStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if order, ok := r.rows[id]; ok {
		order.Status = status
		return nil
	}
	return gorm.ErrRecordNotFound
}

type memDeliveryRepo struct {
	mu   sync.Mutex
	rows map[uuid.UUID]*models.Delivery
}

func (r *memDeliveryRepo) WithTx(*gorm.DB) deliveries.Repository { return r }

func (r *memDeliveryRepo) Create(_ context.Context, delivery *models.Delivery) (*models.Delivery, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if delivery.ID == uuid.Nil {
		delivery.ID = uuid.New()
	}
	r.rows[delivery.ID] = delivery
	return delivery, nil
}

func (r *memDeliveryRepo) FindByID(_ context.Context, id uuid.UUID) (*models.Delivery, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if delivery, ok := r.rows[id]; ok {
		return delivery, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *memDeliveryRepo) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*models.Delivery, error) {
	return r.FindByID(ctx, id)
}

func (r *memDeliveryRepo) FindByProviderRef(_ context.Context, provider enums.Provider, providerDeliveryID string) (*models.Delivery, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, delivery := range r.rows {
		if delivery.Provider == provider && delivery.ProviderDeliveryID == providerDeliveryID {
			return delivery, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *memDeliveryRepo) FindByProviderRefForUpdate(ctx context.Context, provider enums.Provider, providerDeliveryID string) (*models.Delivery, error) {
	return r.FindByProviderRef(ctx, provider, providerDeliveryID)
}

func (r *memDeliveryRepo) FindActiveByOrder(_ context.Context, orderID uuid.UUID) (*models.Delivery, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, delivery := range r.rows {
		if delivery.OrderID == orderID && delivery.Status != enums.DeliveryStatusCanceled {
			return delivery, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *memDeliveryRepo) ListByOrder(_ context.Context, orderID uuid.UUID) ([]models.Delivery, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var list []models.Delivery
	for _, delivery := range r.rows {
		if delivery.OrderID == orderID {
			list = append(list, *delivery)
		}
	}
	return list, nil
}

func (r *memDeliveryRepo) ListActive(_ context.Context, limit int) ([]models.Delivery, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var list []models.Delivery
	for _, delivery := range r.rows {
		if !delivery.Status.IsTerminal() && len(list) < limit {
			list = append(list, *delivery)
		}
	}
	return list, nil
}

func (r *memDeliveryRepo) UpdateStatus(_ context.Context, id uuid.UUID, status enums.DeliveryStatus, trackingURL string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delivery, ok := r.rows[id]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	delivery.Status = status
	if trackingURL != "" {
		delivery.TrackingURL = trackingURL
	}
	return nil
}

type memIntegrationRepo struct {
	mu   sync.Mutex
	rows map[uuid.UUID]*models.Integration
}

func (r *memIntegrationRepo) WithTx(*gorm.DB) integrations.Repository { return r }

func (r *memIntegrationRepo) Create(_ context.Context, integration *models.Integration) (*models.Integration, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if integration.ID == uuid.Nil {
		integration.ID = uuid.New()
	}
	r.rows[integration.ID] = integration
	return integration, nil
}

func (r *memIntegrationRepo) FindByID(_ context.Context, id uuid.UUID) (*models.Integration, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if integration, ok := r.rows[id]; ok {
		return integration, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *memIntegrationRepo) FindActive(context.Context, uuid.UUID, enums.IntegrationType, string) (*models.Integration, error) {
	return nil, gorm.ErrRecordNotFound
}

func (r *memIntegrationRepo) ListByTenant(context.Context, uuid.UUID) ([]models.Integration, error) {
	return nil, nil
}

func (r *memIntegrationRepo) SetActive(_ context.Context, id uuid.UUID, active bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if integration, ok := r.rows[id]; ok {
		integration.Active = active
		return nil
	}
	return gorm.ErrRecordNotFound
}

type memLogRepo struct {
	mu   sync.Mutex
	rows []*models.WebhookLog
}

func (r *memLogRepo) WithTx(*gorm.DB) webhooklogs.Repository { return r }

func (r *memLogRepo) Insert(_ context.Context, record *models.WebhookLog) (*models.WebhookLog, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rows = append(r.rows, record)
	return record, nil
}

func (r *memLogRepo) ListByIntegration(context.Context, uuid.UUID, pagination.Params) ([]models.WebhookLog, error) {
	return nil, nil
}

func (r *memLogRepo) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.rows)
}

type memKeyStore struct {
	mu   sync.Mutex
	keys map[string]struct{}
}

func (s *memKeyStore) SetNX(_ context.Context, key string, _ any, _ time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, held := s.keys[key]; held {
		return false, nil
	}
	s.keys[key] = struct{}{}
	return true, nil
}

func (s *memKeyStore) Del(_ context.Context, keys ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, key := range keys {
		delete(s.keys, key)
	}
	return nil
}

func (s *memKeyStore) IdempotencyKey(scope, id string) string {
	return "idem:" + scope + ":" + id
}

type nullClient struct{}

func (nullClient) Provider() enums.Provider { return enums.ProviderUberDirect }

func (nullClient) GetQuote(context.Context, partners.QuoteRequest) (*partners.Quote, error) {
	return &partners.Quote{ID: "q-1", FeeCents: 499, Currency: enums.CurrencyUSD, ExpiresAt: time.Now().Add(5 * time.Minute)}, nil
}

func (nullClient) CreateDelivery(context.Context, partners.CreateRequest) (*partners.CreateResult, error) {
	return &partners.CreateResult{ProviderDeliveryID: "prov-1", Status: enums.DeliveryStatusCreated, FeeCents: 499, Currency: enums.CurrencyUSD}, nil
}

func (nullClient) GetStatus(context.Context, string) (*partners.StatusResult, error) {
	return &partners.StatusResult{Status: enums.DeliveryStatusCreated}, nil
}

func (nullClient) Cancel(context.Context, string) error { return nil }

type nullFactory struct{}

func (nullFactory) ClientFor(*models.Integration) (partners.Client, error) {
	return nullClient{}, nil
}

type webhookHarness struct {
	router       *chi.Mux
	orders       *memOrderRepo
	deliveries   *memDeliveryRepo
	integrations *memIntegrationRepo
	logs         *memLogRepo

	tenantID  uuid.UUID
	ecommerce *models.Integration
	delivery  *models.Integration
}

func newWebhookHarness(t *testing.T) *webhookHarness {
	t.Helper()

	logg := logger.New(logger.Options{ServiceName: "test", Output: io.Discard})
	orderRepo := &memOrderRepo{rows: make(map[uuid.UUID]*models.Order)}
	deliveryRepo := &memDeliveryRepo{rows: make(map[uuid.UUID]*models.Delivery)}
	integrationRepo := &memIntegrationRepo{rows: make(map[uuid.UUID]*models.Integration)}
	logRepo := &memLogRepo{}

	tenantID := uuid.New()
	ecommerce := &models.Integration{
		TenantID:      tenantID,
		Provider:      "custom",
		Type:          enums.IntegrationTypeEcommerce,
		Environment:   enums.EnvironmentSandbox,
		APIKey:        "key",
		APISecret:     "secret",
		WebhookSecret: "whsec_test",
		Active:        true,
	}
	delivery := &models.Integration{
		TenantID:      tenantID,
		Provider:      enums.ProviderUberDirect.String(),
		Type:          enums.IntegrationTypeDelivery,
		Environment:   enums.EnvironmentSandbox,
		APIKey:        "key",
		APISecret:     "secret",
		WebhookSecret: "whsec_delivery",
		Active:        true,
	}
	for _, integration := range []*models.Integration{ecommerce, delivery} {
		_, err := integrationRepo.Create(context.Background(), integration)
		require.NoError(t, err)
	}

	registry, err := integrations.NewRegistry(integrations.RegistryParams{Repo: integrationRepo, Logger: logg})
	require.NoError(t, err)

	logService, err := webhooklogs.NewService(webhooklogs.Params{Repo: logRepo, Logger: logg})
	require.NoError(t, err)

	svc, err := dispatch.NewService(dispatch.Params{
		DB:           txFunc(func(ctx context.Context, fn func(tx *gorm.DB) error) error { return fn(nil) }),
		OrderRepo:    orderRepo,
		DeliveryRepo: deliveryRepo,
		Registry:     registry,
		Partners:     nullFactory{},
		Locker:       dispatch.NewMemoryLocker(),
		Logs:         logService,
		Logger:       logg,
	})
	require.NoError(t, err)

	guard := dispatch.NewIdempotencyGuard(&memKeyStore{keys: make(map[string]struct{})}, time.Hour)

	router := chi.NewRouter()
	router.Post("/api/v1/webhooks/orders/{platform}/{integrationId}", OrderWebhook(svc, registry, logService, logg))
	router.Post("/api/v1/webhooks/providers/{provider}", ProviderWebhook(svc, guard, logService, logg))
	router.Post("/api/webhook/delivery-status", DeliveryStatusWebhook(svc, guard, logService, logg))
	router.Post("/api/v1/deliveries", DeliveryDispatch(svc, logg))
	router.Post("/api/webhook/ecommerce-to-delivery", OrderRelay(svc, registry, logService, logg))
	router.Get("/api/deliveries", DeliveryList(deliveryRepo, logg))

	return &webhookHarness{
		router:       router,
		orders:       orderRepo,
		deliveries:   deliveryRepo,
		integrations: integrationRepo,
		logs:         logRepo,
		tenantID:     tenantID,
		ecommerce:    ecommerce,
		delivery:     delivery,
	}
}

type txFunc func(ctx context.Context, fn func(tx *gorm.DB) error) error

func (f txFunc) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return f(ctx, fn)
}

func signHex(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

func decodeEnvelope(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var envelope map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope))
	return envelope
}

func TestOrderWebhook_CreatesOrder(t *testing.T) {
	h := newWebhookHarness(t)
	body := []byte(`{"order":{"id":"ord-100","items":[{"name":"Shawarma","quantity":2,"price":1250}],"totalAmount":2500}}`)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/webhooks/orders/custom/"+h.ecommerce.ID.String(), bytes.NewReader(body))
	req.Header.Set("X-Relay-Signature", signHex(h.ecommerce.WebhookSecret, body))
	rec := httptest.NewRecorder()
	h.router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	envelope := decodeEnvelope(t, rec)
	data := envelope["data"].(map[string]any)
	assert.Equal(t, "ord-100", data["ExternalOrderID"])
	assert.Equal(t, 1, h.logs.count())
}

func TestOrderWebhook_BadSignatureLoggedButRejected(t *testing.T) {
	h := newWebhookHarness(t)
	body := []byte(`{"order":{"id":"ord-101","items":[{"name":"Shawarma","quantity":1,"price":1250}]}}`)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/webhooks/orders/custom/"+h.ecommerce.ID.String(), bytes.NewReader(body))
	req.Header.Set("X-Relay-Signature", "deadbeef")
	rec := httptest.NewRecorder()
	h.router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusUnauthorized, rec.Code)
	envelope := decodeEnvelope(t, rec)
	errBody := envelope["error"].(map[string]any)
	assert.Equal(t, "INVALID_SIGNATURE", errBody["code"])

	// The rejected attempt is still audited.
	assert.Equal(t, 1, h.logs.count())
	assert.Empty(t, h.orders.rows)
}

func TestOrderWebhook_WrongIntegrationType(t *testing.T) {
	h := newWebhookHarness(t)
	body := []byte(`{}`)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/webhooks/orders/custom/"+h.delivery.ID.String(), bytes.NewReader(body))
	rec := httptest.NewRecorder()
	h.router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestOrderWebhook_UnknownIntegration(t *testing.T) {
	h := newWebhookHarness(t)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/webhooks/orders/custom/"+uuid.NewString(), bytes.NewReader([]byte(`{}`)))
	rec := httptest.NewRecorder()
	h.router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusNotFound, rec.Code)
	envelope := decodeEnvelope(t, rec)
	errBody := envelope["error"].(map[string]any)
	assert.Equal(t, "INTEGRATION_NOT_FOUND", errBody["code"])
}

func (h *webhookHarness) seedDispatchedDelivery(t *testing.T) *models.Delivery {
	t.Helper()
	order := &models.Order{
		TenantID:        h.tenantID,
		Platform:        enums.PlatformCustom,
		ExternalOrderID: uuid.NewString(),
		CustomerName:    "Dana Customer",
		CustomerAddress: "456 Oak Ave",
		TotalCents:      2500,
		Currency:        enums.CurrencyUSD,
		Status:          enums.OrderStatusReceived,
	}
	_, err := h.orders.Create(context.Background(), order)
	require.NoError(t, err)

	delivery := &models.Delivery{
		OrderID:            order.ID,
		IntegrationID:      h.delivery.ID,
		Provider:           enums.ProviderUberDirect,
		ProviderDeliveryID: "prov-55",
		Status:             enums.DeliveryStatusCreated,
		Currency:           enums.CurrencyUSD,
	}
	_, err = h.deliveries.Create(context.Background(), delivery)
	require.NoError(t, err)
	return delivery
}

func TestProviderWebhook_AppliesStatus(t *testing.T) {
	h := newWebhookHarness(t)
	delivery := h.seedDispatchedDelivery(t)

	body := []byte(`{"event_id":"evt-1","delivery_id":"prov-55","status":"pickup_complete","tracking_url":"https://track.example/p55"}`)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/webhooks/providers/uberdirect", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	h.router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	stored, err := h.deliveries.FindByID(context.Background(), delivery.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.DeliveryStatusPickedUp, stored.Status)
	assert.Equal(t, "https://track.example/p55", stored.TrackingURL)

	storedOrder, err := h.orders.FindByID(context.Background(), delivery.OrderID)
	require.NoError(t, err)
	assert.Equal(t, enums.OrderStatusPickedUp, storedOrder.Status)
}

func TestProviderWebhook_DuplicateEventShortCircuits(t *testing.T) {
	h := newWebhookHarness(t)
	delivery := h.seedDispatchedDelivery(t)

	body := []byte(`{"event_id":"evt-2","delivery_id":"prov-55","status":"pickup_complete"}`)
	for i := 0; i < 2; i++ {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/webhooks/providers/uberdirect", bytes.NewReader(body))
		rec := httptest.NewRecorder()
		h.router.ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code)

		if i == 1 {
			envelope := decodeEnvelope(t, rec)
			data := envelope["data"].(map[string]any)
			assert.Equal(t, true, data["duplicate"])
		}
	}

	stored, err := h.deliveries.FindByID(context.Background(), delivery.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.DeliveryStatusPickedUp, stored.Status)
}

func TestProviderWebhook_UnknownStatusReleasesEvent(t *testing.T) {
	h := newWebhookHarness(t)
	h.seedDispatchedDelivery(t)

	body := []byte(`{"event_id":"evt-3","delivery_id":"prov-55","status":"teleported"}`)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/webhooks/providers/uberdirect", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	h.router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	// The event id was released, so a corrected redelivery goes through.
	body = []byte(`{"event_id":"evt-3","delivery_id":"prov-55","status":"pickup_complete"}`)
	req = httptest.NewRequest(http.MethodPost, "/api/v1/webhooks/providers/uberdirect", bytes.NewReader(body))
	rec = httptest.NewRecorder()
	h.router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	envelope := decodeEnvelope(t, rec)
	data := envelope["data"].(map[string]any)
	assert.NotEqual(t, true, data["duplicate"])
}

func TestDeliveryStatusWebhook_ProviderInBody(t *testing.T) {
	h := newWebhookHarness(t)
	delivery := h.seedDispatchedDelivery(t)

	body := []byte(`{"provider":"uberdirect","event_id":"evt-flat-1","delivery_id":"prov-55","status":"pickup_complete","tracking_url":"https://track.example/p55"}`)
	req := httptest.NewRequest(http.MethodPost, "/api/webhook/delivery-status", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	h.router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	stored, err := h.deliveries.FindByID(context.Background(), delivery.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.DeliveryStatusPickedUp, stored.Status)
}

func TestDeliveryStatusWebhook_MissingProvider(t *testing.T) {
	h := newWebhookHarness(t)

	body := []byte(`{"event_id":"evt-flat-2","delivery_id":"prov-55","status":"pickup_complete"}`)
	req := httptest.NewRequest(http.MethodPost, "/api/webhook/delivery-status", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	h.router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestProviderWebhook_UnsupportedProvider(t *testing.T) {
	h := newWebhookHarness(t)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/webhooks/providers/pigeonpost", bytes.NewReader([]byte(`{"event_id":"e","delivery_id":"d","status":"s"}`)))
	rec := httptest.NewRecorder()
	h.router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestDeliveryDispatch_ValidationErrors(t *testing.T) {
	h := newWebhookHarness(t)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/deliveries", bytes.NewReader([]byte(`{"order_id":"not-a-uuid"}`)))
	rec := httptest.NewRecorder()
	h.router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	envelope := decodeEnvelope(t, rec)
	errBody := envelope["error"].(map[string]any)
	assert.Equal(t, "VALIDATION_ERROR", errBody["code"])
	details := errBody["details"].(map[string]any)
	assert.Contains(t, details, "order_id")
	assert.Contains(t, details, "integration_id")
}

func TestDeliveryDispatch_CreatesDelivery(t *testing.T) {
	h := newWebhookHarness(t)

	order := &models.Order{
		TenantID:        h.tenantID,
		Platform:        enums.PlatformCustom,
		ExternalOrderID: uuid.NewString(),
		CustomerName:    "Dana Customer",
		CustomerAddress: "456 Oak Ave",
		TotalCents:      2500,
		Currency:        enums.CurrencyUSD,
		Status:          enums.OrderStatusReceived,
	}
	_, err := h.orders.Create(context.Background(), order)
	require.NoError(t, err)

	payload := map[string]any{
		"order_id":       order.ID.String(),
		"integration_id": h.delivery.ID.String(),
		"pickup": types.Waypoint{
			Name:   "Feastline Store",
			Line1:  "123 Main St",
			City:   "Springfield",
			Postal: "62701",
		},
	}
	body, err := json.Marshal(payload)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/deliveries", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	h.router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	envelope := decodeEnvelope(t, rec)
	data := envelope["data"].(map[string]any)
	assert.Equal(t, "prov-1", data["ProviderDeliveryID"])
}

func relayBody(t *testing.T, h *webhookHarness, orderDoc []byte) []byte {
	t.Helper()
	body, err := json.Marshal(map[string]any{
		"ecommerceIntegrationId": h.ecommerce.ID.String(),
		"deliveryIntegrationId":  h.delivery.ID.String(),
		"order":                  json.RawMessage(orderDoc),
		"pickup": types.Waypoint{
			Name:   "Feastline Store",
			Line1:  "123 Main St",
			City:   "Springfield",
			Postal: "62701",
		},
	})
	require.NoError(t, err)
	return body
}

func TestOrderRelay_IngestsAndDispatches(t *testing.T) {
	h := newWebhookHarness(t)
	orderDoc := []byte(`{"order":{"id":"ord-relay-1","items":[{"name":"Shawarma","quantity":2,"price":1250}],"totalAmount":2500}}`)

	req := httptest.NewRequest(http.MethodPost, "/api/webhook/ecommerce-to-delivery", bytes.NewReader(relayBody(t, h, orderDoc)))
	req.Header.Set("X-Relay-Signature", signHex(h.ecommerce.WebhookSecret, orderDoc))
	rec := httptest.NewRecorder()
	h.router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	envelope := decodeEnvelope(t, rec)
	data := envelope["data"].(map[string]any)
	delivery := data["delivery"].(map[string]any)
	assert.Equal(t, "created", delivery["status"])
	assert.NotEmpty(t, delivery["id"])

	require.Len(t, h.deliveries.rows, 1)
	require.Len(t, h.orders.rows, 1)
}

func TestOrderRelay_BadSignatureDispatchesNothing(t *testing.T) {
	h := newWebhookHarness(t)
	orderDoc := []byte(`{"order":{"id":"ord-relay-2","items":[{"name":"Shawarma","quantity":1,"price":1250}]}}`)

	req := httptest.NewRequest(http.MethodPost, "/api/webhook/ecommerce-to-delivery", bytes.NewReader(relayBody(t, h, orderDoc)))
	req.Header.Set("X-Relay-Signature", "deadbeef")
	rec := httptest.NewRecorder()
	h.router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Empty(t, h.orders.rows)
	assert.Empty(t, h.deliveries.rows)
	// The rejected ingest is still audited.
	assert.Equal(t, 1, h.logs.count())
}

func TestDeliveryList_ActiveOnly(t *testing.T) {
	h := newWebhookHarness(t)
	active := h.seedDispatchedDelivery(t)

	done := &models.Delivery{
		OrderID:            active.OrderID,
		IntegrationID:      h.delivery.ID,
		Provider:           enums.ProviderUberDirect,
		ProviderDeliveryID: "prov-done",
		Status:             enums.DeliveryStatusDelivered,
		Currency:           enums.CurrencyUSD,
	}
	_, err := h.deliveries.Create(context.Background(), done)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/api/deliveries?status=active", nil)
	rec := httptest.NewRecorder()
	h.router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	envelope := decodeEnvelope(t, rec)
	list := envelope["data"].([]any)
	require.Len(t, list, 1)
	row := list[0].(map[string]any)
	assert.Equal(t, "prov-55", row["ProviderDeliveryID"])
}

func TestDeliveryList_UnsupportedStatus(t *testing.T) {
	h := newWebhookHarness(t)

	req := httptest.NewRequest(http.MethodGet, "/api/deliveries?status=delivered", nil)
	rec := httptest.NewRecorder()
	h.router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
