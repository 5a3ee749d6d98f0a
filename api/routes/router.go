package routes

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/seramic/shop-backend/api/controllers"
	"github.com/seramic/shop-backend/api/middleware"
	"github.com/seramic/shop-backend/internal/address"
	"github.com/seramic/shop-backend/internal/auth"
	"github.com/seramic/shop-backend/internal/cart"
	"github.com/seramic/shop-backend/internal/orders"
	product "github.com/seramic/shop-backend/internal/products"
	"github.com/seramic/shop-backend/internal/reviews"
	"github.com/seramic/shop-backend/internal/users"
	"github.com/seramic/shop-backend/internal/wishlist"
	"github.com/seramic/shop-backend/pkg/config"
	"github.com/seramic/shop-backend/pkg/logger"
	"github.com/seramic/shop-backend/pkg/metrics"
	"github.com/seramic/shop-backend/pkg/redis"
)

// Store backs idempotency replay and the credential rate limits. A nil Store
// disables both.
type Store interface {
	redis.IdempotencyStore
	RateLimitKey(scope string) string
	IncrWithTTL(ctx context.Context, key string, ttl time.Duration) (int64, error)
}

// Deps carries everything the HTTP layer calls into.
type Deps struct {
	Config *config.Config
	Logger *logger.Logger

	// Readiness probes keyed by the name reported on failure.
	Readiness map[string]controllers.Pinger
	Redis     Store
	Gatherer  prometheus.Gatherer
	Metrics   *metrics.HTTPMetrics

	Auth     auth.Service
	Users    users.Service
	Products product.Service
	Orders   orders.Service
	Reviews  reviews.Service
	Cart     cart.Service
	Wishlist wishlist.Service
	Address  address.Service
	Uploads  controllers.ImageUploader
}

func NewRouter(d Deps) http.Handler {
	cfg, logg := d.Config, d.Logger

	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.Metrics(d.Metrics),
		middleware.CORS(cfg.CORS),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, d.Readiness))
	})
	if d.Gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(d.Gatherer, promhttp.HandlerOpts{}))
	}

	loginPolicy := middleware.NewAuthRateLimitPolicy(
		"login",
		cfg.AuthRateLimit.LoginWindow,
		cfg.AuthRateLimit.LoginIPLimit,
		cfg.AuthRateLimit.LoginEmailLimit,
	)
	registerPolicy := middleware.NewAuthRateLimitPolicy(
		"register",
		cfg.AuthRateLimit.RegisterWindow,
		cfg.AuthRateLimit.RegisterIPLimit,
		cfg.AuthRateLimit.RegisterEmailLimit,
	)
	forgotPolicy := middleware.NewAuthRateLimitPolicy(
		"forgot-password",
		cfg.AuthRateLimit.RegisterWindow,
		cfg.AuthRateLimit.RegisterIPLimit,
		cfg.AuthRateLimit.RegisterEmailLimit,
	)

	authn := middleware.Auth(d.Auth, cfg.JWT.CookieName, logg)
	idem := middleware.Idempotency(d.Redis, cfg.Eventing.IdempotencyTTL, logg)
	idemOrders := middleware.Idempotency(d.Redis, cfg.Eventing.OrderIdempotencyTTL, logg)
	require := func(c middleware.Capability) func(http.Handler) http.Handler {
		return middleware.Require(c, logg)
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.RateLimit(cfg.RateLimit, logg))

		r.Route("/auth", func(r chi.Router) {
			r.With(middleware.AuthRateLimit(registerPolicy, d.Redis, logg), idem).Post("/register", controllers.AuthRegister(d.Auth, cfg.JWT, logg))
			r.With(middleware.AuthRateLimit(loginPolicy, d.Redis, logg)).Post("/login", controllers.AuthLogin(d.Auth, cfg.JWT, logg))
			r.Get("/logout", controllers.AuthLogout(cfg.JWT))
			r.With(middleware.AuthRateLimit(forgotPolicy, d.Redis, logg)).Post("/forgot-password", controllers.AuthForgotPassword(d.Auth, logg))
			r.Patch("/reset-password/{token}", controllers.AuthResetPassword(d.Auth, cfg.JWT, logg))
			r.Get("/verify-email/{token}", controllers.AuthVerifyEmail(d.Auth, logg))

			r.Group(func(r chi.Router) {
				r.Use(authn)
				r.Get("/me", controllers.AuthMe(d.Users, logg))
				r.Post("/resend-verification", controllers.AuthResendVerification(d.Auth, logg))
				r.Patch("/update-password", controllers.AuthUpdatePassword(d.Auth, cfg.JWT, logg))
			})
		})

		r.Route("/products", func(r chi.Router) {
			r.Get("/", controllers.ProductsList(d.Products, logg))
			r.Get("/featured", controllers.ProductsFeatured(d.Products, logg))
			r.Get("/{id}", controllers.ProductGet(d.Products, logg))
			r.Get("/{id}/related", controllers.ProductRelated(d.Products, logg))

			r.Group(func(r chi.Router) {
				r.Use(authn, require(middleware.CapManageCatalog))
				r.Post("/", controllers.ProductCreate(d.Products, d.Uploads, logg))
				r.Patch("/{id}", controllers.ProductUpdate(d.Products, d.Uploads, logg))
				r.Delete("/{id}", controllers.ProductDeactivate(d.Products, logg))
				r.Patch("/{id}/stock", controllers.ProductAdjustStock(d.Products, logg))
			})
		})

		r.Route("/orders", func(r chi.Router) {
			r.Use(authn)

			r.Group(func(r chi.Router) {
				r.Use(require(middleware.CapShop))
				r.With(idemOrders).Post("/", controllers.OrderCreate(d.Orders, logg))
				r.Get("/my-orders", controllers.OrdersMine(d.Orders, logg))
				r.Get("/{id}", controllers.OrderGet(d.Orders, logg))
				r.Patch("/{id}/cancel", controllers.OrderCancel(d.Orders, logg))
			})

			r.Group(func(r chi.Router) {
				r.Use(require(middleware.CapViewReports))
				r.Get("/stats", controllers.OrdersStats(d.Orders, logg))
				r.Get("/revenue", controllers.OrdersRevenue(d.Orders, logg))
			})

			r.Group(func(r chi.Router) {
				r.Use(require(middleware.CapManageOrders))
				r.Get("/", controllers.OrdersList(d.Orders, logg))
				r.Patch("/{id}/status", controllers.OrderUpdateStatus(d.Orders, logg))
				r.With(idemOrders).Patch("/{id}/pay", controllers.OrderMarkPaid(d.Orders, logg))
				r.Patch("/{id}/tracking", controllers.OrderSetTracking(d.Orders, logg))
				r.With(idemOrders).Patch("/{id}/refund", controllers.OrderRefund(d.Orders, logg))
				r.Delete("/{id}", controllers.OrderDelete(d.Orders, logg))
			})
		})

		r.Route("/reviews", func(r chi.Router) {
			r.Get("/product/{productId}", controllers.ReviewsForProduct(d.Reviews, logg))

			r.Group(func(r chi.Router) {
				r.Use(authn, require(middleware.CapShop))
				r.Get("/my-reviews", controllers.ReviewsMine(d.Reviews, logg))
				r.With(idem).Post("/", controllers.ReviewCreate(d.Reviews, logg))
				r.Patch("/{id}", controllers.ReviewUpdate(d.Reviews, logg))
				r.Delete("/{id}", controllers.ReviewDelete(d.Reviews, logg))
				r.Post("/{id}/helpful", controllers.ReviewHelpful(d.Reviews, logg))
				r.Post("/{id}/report", controllers.ReviewReport(d.Reviews, logg))
			})

			r.Group(func(r chi.Router) {
				r.Use(authn, require(middleware.CapModerate))
				r.Get("/", controllers.ReviewsList(d.Reviews, false, logg))
				r.Get("/pending", controllers.ReviewsList(d.Reviews, true, logg))
				r.Get("/stats", controllers.ReviewsStats(d.Reviews, logg))
				r.Patch("/{id}/approve", controllers.ReviewApprove(d.Reviews, logg))
				r.Patch("/{id}/reject", controllers.ReviewReject(d.Reviews, logg))
				r.Post("/{id}/response", controllers.ReviewRespond(d.Reviews, logg))
			})
		})

		r.Route("/users", func(r chi.Router) {
			r.Use(authn)

			r.Route("/me", func(r chi.Router) {
				r.Use(require(middleware.CapShop))
				r.Patch("/", controllers.UserUpdateMe(d.Users, logg))
				r.Post("/avatar", controllers.UserUploadAvatar(d.Users, d.Uploads, logg))

				r.Route("/cart", func(r chi.Router) {
					r.Get("/", controllers.CartGet(d.Cart, logg))
					r.Post("/", controllers.CartAdd(d.Cart, logg))
					r.Delete("/", controllers.CartClear(d.Cart, logg))
					r.Patch("/{productId}", controllers.CartUpdate(d.Cart, logg))
					r.Delete("/{productId}", controllers.CartRemove(d.Cart, logg))
				})

				r.Route("/wishlist", func(r chi.Router) {
					r.Get("/", controllers.WishlistGet(d.Wishlist, logg))
					r.Post("/", controllers.WishlistAdd(d.Wishlist, logg))
					r.Delete("/{productId}", controllers.WishlistRemove(d.Wishlist, logg))
				})

				r.Route("/addresses", func(r chi.Router) {
					r.Get("/", controllers.AddressesList(d.Address, logg))
					r.Post("/", controllers.AddressCreate(d.Address, logg))
					r.Patch("/{id}", controllers.AddressUpdate(d.Address, logg))
					r.Delete("/{id}", controllers.AddressDelete(d.Address, logg))
				})
			})

			r.Group(func(r chi.Router) {
				r.Use(require(middleware.CapManageAccounts))
				r.Get("/", controllers.UsersList(d.Users, logg))
				r.Patch("/{id}/active", controllers.UserSetActive(d.Users, logg))
			})
		})
	})

	return r
}
