package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"

	"github.com/andreasstove999/ecommerce-system/services/storefront-service-go/internal/metrics"
	"github.com/andreasstove999/ecommerce-system/services/storefront-service-go/internal/middleware"
)

type RouterOptions struct {
	Logger      *zap.Logger
	Metrics     *metrics.Metrics
	CORSOrigins []string
}

func NewRouter(h *Handler, opts RouterOptions) http.Handler {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}

	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(middleware.CorrelationID)
	r.Use(middleware.RequestLogger(opts.Logger))
	r.Use(middleware.Metrics(opts.Metrics))
	r.Use(middleware.Recover(opts.Logger))
	r.Use(middleware.CORS(opts.CORSOrigins))

	r.Get("/health", h.Health)
	if opts.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", opts.Metrics.Handler())
	}

	r.Route("/api", func(r chi.Router) {
		r.Route("/cart", func(r chi.Router) {
			r.Post("/add", h.AddToCart)
			r.Delete("/delete", h.RemoveFromCart)
			r.Post("/order", h.PlaceInternationalOrder)
			r.Post("/inr-order", h.PlaceDomesticOrder)
			r.Get("/{userId}", h.GetCart)
			r.Patch("/{userId}/items/{cartItemId}", h.UpdateQuantity)
		})
		r.Route("/order", func(r chi.Router) {
			r.Get("/user/{userId}", h.ListUserOrders)
			r.Get("/{orderId}", h.GetOrder)
		})
		r.Route("/razorpay", func(r chi.Router) {
			r.Post("/checkout", h.CreatePaymentIntent)
			r.Post("/verify", h.VerifyPayment)
			r.Post("/failure", h.ReportPaymentFailure)
		})
		r.Route("/indcharge", func(r chi.Router) {
			r.Put("/addindcharge", h.SetDeliveryCharge)
			r.Get("/getingcharge", h.GetDeliveryCharge)
		})
		r.Route("/sale", func(r chi.Router) {
			r.Post("/submitsale", h.SubmitSale)
			r.Get("/getsale", h.ListSales)
		})
	})

	return otelhttp.NewHandler(r, "storefront",
		otelhttp.WithSpanNameFormatter(func(_ string, r *http.Request) string {
			return r.Method + " " + r.URL.Path
		}))
}
