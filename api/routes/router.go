package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/feastline/relay-backend/api/controllers"
	"github.com/feastline/relay-backend/api/middleware"
	"github.com/feastline/relay-backend/internal/deliveries"
	"github.com/feastline/relay-backend/internal/dispatch"
	"github.com/feastline/relay-backend/internal/integrations"
	"github.com/feastline/relay-backend/internal/orders"
	"github.com/feastline/relay-backend/internal/webhooklogs"
	"github.com/feastline/relay-backend/pkg/config"
	"github.com/feastline/relay-backend/pkg/db"
	"github.com/feastline/relay-backend/pkg/logger"
	"github.com/feastline/relay-backend/pkg/redis"
)

// Deps carries everything the router wires into handlers.
type Deps struct {
	Config          *config.Config
	Logger          *logger.Logger
	DB              db.Pinger
	Redis           redis.Pinger
	Registry        *integrations.Registry
	IntegrationRepo integrations.Repository
	OrderRepo       orders.Repository
	DeliveryRepo    deliveries.Repository
	Dispatch        *dispatch.Service
	WebhookGuard    *dispatch.IdempotencyGuard
	WebhookLogs     *webhooklogs.Service
	PromRegistry    *prometheus.Registry
}

// NewRouter assembles the relay's HTTP surface.
func NewRouter(deps Deps) http.Handler {
	cfg := deps.Config
	logg := deps.Logger

	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(cfg.CORS),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, deps.DB, deps.Redis))
	})

	if deps.PromRegistry != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(deps.PromRegistry, promhttp.HandlerOpts{}))
	}

	r.Route("/api/v1/webhooks", func(r chi.Router) {
		r.Post("/orders/{platform}/{integrationId}", controllers.OrderWebhook(deps.Dispatch, deps.Registry, deps.WebhookLogs, logg))
		r.Post("/providers/{provider}", controllers.ProviderWebhook(deps.Dispatch, deps.WebhookGuard, deps.WebhookLogs, logg))
	})

	// Flat aliases for edge forwarders that cannot template versioned paths.
	r.Post("/api/webhook/ecommerce-to-delivery", controllers.OrderRelay(deps.Dispatch, deps.Registry, deps.WebhookLogs, logg))
	r.Post("/api/webhook/delivery-status", controllers.DeliveryStatusWebhook(deps.Dispatch, deps.WebhookGuard, deps.WebhookLogs, logg))
	r.Get("/api/webhooks/{integrationId}/logs", controllers.WebhookLogList(deps.WebhookLogs, logg))
	r.Get("/api/deliveries", controllers.DeliveryList(deps.DeliveryRepo, logg))

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/orders", func(r chi.Router) {
			r.Get("/", controllers.OrderList(deps.OrderRepo, logg))
			r.Get("/{orderId}", controllers.OrderDetail(deps.OrderRepo, logg))
			r.Get("/{orderId}/deliveries", controllers.OrderDeliveries(deps.DeliveryRepo, logg))
		})
		r.Route("/deliveries", func(r chi.Router) {
			r.Get("/", controllers.DeliveryList(deps.DeliveryRepo, logg))
			r.Post("/", controllers.DeliveryDispatch(deps.Dispatch, logg))
			r.Get("/{deliveryId}", controllers.DeliveryDetail(deps.DeliveryRepo, logg))
			r.Post("/{deliveryId}/cancel", controllers.DeliveryCancel(deps.Dispatch, logg))
		})
		r.Route("/integrations", func(r chi.Router) {
			r.Post("/", controllers.IntegrationCreate(deps.IntegrationRepo, logg))
			r.Get("/", controllers.IntegrationList(deps.IntegrationRepo, logg))
			r.Post("/{integrationId}/activate", controllers.IntegrationSetActive(deps.IntegrationRepo, deps.Registry, true, logg))
			r.Post("/{integrationId}/deactivate", controllers.IntegrationSetActive(deps.IntegrationRepo, deps.Registry, false, logg))
			r.Get("/{integrationId}/webhook-logs", controllers.WebhookLogList(deps.WebhookLogs, logg))
		})
	})

	return r
}
