package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/mechastore/mecha-backend/api/controllers"
	webhookcontrollers "github.com/mechastore/mecha-backend/api/controllers/webhooks"
	"github.com/mechastore/mecha-backend/api/middleware"
	cartsvc "github.com/mechastore/mecha-backend/internal/cart"
	"github.com/mechastore/mecha-backend/internal/catalog"
	checkoutsvc "github.com/mechastore/mecha-backend/internal/checkout"
	"github.com/mechastore/mecha-backend/internal/notifications"
	ordersvc "github.com/mechastore/mecha-backend/internal/orders"
	sepaysvc "github.com/mechastore/mecha-backend/internal/payments/sepay"
	"github.com/mechastore/mecha-backend/pkg/config"
	"github.com/mechastore/mecha-backend/pkg/db"
	"github.com/mechastore/mecha-backend/pkg/logger"
)

// Deps bundles everything the router mounts.
type Deps struct {
	Config        *config.Config
	Logger        *logger.Logger
	DBPinger      db.Pinger
	RedisPinger   db.Pinger
	Catalog       catalog.Repository
	Cart          cartsvc.Service
	Checkout      checkoutsvc.Service
	Orders        ordersvc.Service
	Sepay         sepaysvc.Service
	Notifications notifications.Repository
}

func NewRouter(deps Deps) http.Handler {
	cfg := deps.Config
	logg := deps.Logger

	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(cfg.App.CORSOrigins),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, deps.DBPinger, deps.RedisPinger))
	})

	r.Route("/api/v1/catalog", func(r chi.Router) {
		r.Get("/products", controllers.CatalogListProducts(deps.Catalog, logg))
		r.Get("/products/{productId}", controllers.CatalogGetProduct(deps.Catalog, logg))
		r.Get("/services", controllers.CatalogListServices(deps.Catalog, logg))
	})

	r.Route("/api/v1/webhooks", func(r chi.Router) {
		r.Post("/sepay", webhookcontrollers.SepayWebhook(deps.Sepay, logg))
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, logg))

		r.Route("/cart", func(r chi.Router) {
			r.Get("/", controllers.CartGet(deps.Cart, logg))
			r.Post("/items", controllers.CartAddItem(deps.Cart, logg))
			r.Patch("/items/{itemId}", controllers.CartUpdateItem(deps.Cart, logg))
			r.Delete("/items/{itemId}", controllers.CartRemoveItem(deps.Cart, logg))
			r.Delete("/", controllers.CartClear(deps.Cart, logg))
		})

		r.Post("/checkout", controllers.Checkout(deps.Checkout, deps.Sepay, logg))

		r.Route("/orders", func(r chi.Router) {
			r.Get("/", controllers.OrdersMine(deps.Orders, logg))
			r.Get("/{orderId}", controllers.OrderGet(deps.Orders, logg))
			r.Post("/{orderId}/cancel", controllers.OrderCancel(deps.Orders, logg))
			r.Get("/{orderId}/payment-info", controllers.OrderPaymentInfo(deps.Orders, deps.Sepay, logg))
		})

		r.Route("/notifications", func(r chi.Router) {
			r.Get("/", controllers.ListNotifications(deps.Notifications, logg))
			r.Post("/{notificationId}/read", controllers.NotificationMarkRead(deps.Notifications, logg))
			r.Post("/read-all", controllers.NotificationsMarkAllRead(deps.Notifications, logg))
		})

		r.Route("/admin/orders", func(r chi.Router) {
			r.Use(middleware.RequireElevated(logg))
			r.Get("/", controllers.AdminOrderSearch(deps.Orders, logg))
			r.Patch("/{orderId}/status", controllers.AdminOrderUpdateStatus(deps.Orders, logg))
			r.Patch("/{orderId}/payment-status", controllers.AdminOrderOverridePaymentStatus(deps.Orders, logg))
		})
	})

	return r
}
