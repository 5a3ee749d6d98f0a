package routes

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/seramic/shop-backend/api/controllers"
	"github.com/seramic/shop-backend/internal/auth"
	"github.com/seramic/shop-backend/internal/orders"
	product "github.com/seramic/shop-backend/internal/products"
	"github.com/seramic/shop-backend/internal/reviews"
	"github.com/seramic/shop-backend/internal/users"
	pkgAuth "github.com/seramic/shop-backend/pkg/auth"
	"github.com/seramic/shop-backend/pkg/config"
	"github.com/seramic/shop-backend/pkg/db/models"
	"github.com/seramic/shop-backend/pkg/enums"
	pkgerrors "github.com/seramic/shop-backend/pkg/errors"
	"github.com/seramic/shop-backend/pkg/logger"
	"github.com/seramic/shop-backend/pkg/metrics"
	"github.com/seramic/shop-backend/pkg/pagination"
)

type stubPinger struct{ err error }

func (s stubPinger) Ping(context.Context) error { return s.err }

// stubAuthService resolves bearer tokens of the form "<role>-token".
type stubAuthService struct {
	auth.Service
}

func (stubAuthService) VerifySession(_ context.Context, token string) (*models.User, error) {
	role, ok := strings.CutSuffix(token, "-token")
	if !ok {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "invalid or expired session token")
	}
	return &models.User{ID: uuid.New(), Role: enums.Role(role), IsActive: true}, nil
}

type stubUsersService struct {
	users.Service
}

func (stubUsersService) Get(_ context.Context, id uuid.UUID) (*users.UserDTO, error) {
	return &users.UserDTO{ID: id}, nil
}

type stubProductService struct {
	product.Service
	lastList *product.ListInput
}

func (s *stubProductService) List(_ context.Context, input product.ListInput) (*product.ProductList, error) {
	s.lastList = &input
	return &product.ProductList{Products: []product.ProductDTO{}}, nil
}

func (s *stubProductService) Get(_ context.Context, idOrSlug string) (*product.ProductDTO, error) {
	if idOrSlug != "stoneware-mug" {
		return nil, product.ErrProductNotFound()
	}
	return &product.ProductDTO{Slug: idOrSlug}, nil
}

type stubOrdersService struct {
	orders.Service
}

func (stubOrdersService) Stats(context.Context, *time.Time, *time.Time) (*orders.Stats, error) {
	return &orders.Stats{TotalOrders: 3}, nil
}

func (stubOrdersService) ListMine(context.Context, pkgAuth.Actor, pagination.Page) (*orders.OrderList, error) {
	return &orders.OrderList{}, nil
}

type stubReviewsService struct {
	reviews.Service
	lastFilters *reviews.ListFilters
}

func (s *stubReviewsService) List(_ context.Context, filters reviews.ListFilters, _ pagination.Page) (*reviews.ReviewList, error) {
	s.lastFilters = &filters
	return &reviews.ReviewList{Reviews: []reviews.ReviewDTO{}}, nil
}

type testRouter struct {
	handler  http.Handler
	products *stubProductService
	reviews  *stubReviewsService
	registry *prometheus.Registry
}

func testConfig() *config.Config {
	return &config.Config{
		App: config.AppConfig{Env: "test", Port: "0"},
		JWT: config.JWTConfig{Secret: "secret", Issuer: "seramic", ExpirationMinutes: 60, CookieName: "jwt"},
	}
}

func newTestRouter(t *testing.T, readiness map[string]controllers.Pinger) testRouter {
	t.Helper()
	logg := logger.New(logger.Options{ServiceName: "test-routing", Level: logger.ParseLevel("debug"), Output: io.Discard})
	reg := prometheus.NewRegistry()
	products := &stubProductService{}
	reviewsSvc := &stubReviewsService{}
	if readiness == nil {
		readiness = map[string]controllers.Pinger{"postgres": stubPinger{}}
	}
	handler := NewRouter(Deps{
		Config:    testConfig(),
		Logger:    logg,
		Readiness: readiness,
		Gatherer:  reg,
		Metrics:   metrics.NewHTTPMetrics(reg),
		Auth:      stubAuthService{},
		Users:     stubUsersService{},
		Products:  products,
		Orders:    stubOrdersService{},
		Reviews:   reviewsSvc,
	})
	return testRouter{handler: handler, products: products, reviews: reviewsSvc, registry: reg}
}

func (tr testRouter) do(method, path, role string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	if role != "" {
		req.Header.Set("Authorization", "Bearer "+role+"-token")
	}
	resp := httptest.NewRecorder()
	tr.handler.ServeHTTP(resp, req)
	return resp
}

func TestHealthEndpoints(t *testing.T) {
	tr := newTestRouter(t, nil)
	if resp := tr.do(http.MethodGet, "/health/live", ""); resp.Code != http.StatusOK {
		t.Fatalf("expected live 200 got %d", resp.Code)
	}
	if resp := tr.do(http.MethodGet, "/health/ready", ""); resp.Code != http.StatusOK {
		t.Fatalf("expected ready 200 got %d", resp.Code)
	}

	down := newTestRouter(t, map[string]controllers.Pinger{"redis": stubPinger{err: io.ErrUnexpectedEOF}})
	resp := down.do(http.MethodGet, "/health/ready", "")
	if resp.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 when a dependency is down got %d", resp.Code)
	}
	if !strings.Contains(resp.Body.String(), "redis") {
		t.Fatalf("expected failed dependency in body: %s", resp.Body.String())
	}
}

func TestPublicCatalogNeedsNoToken(t *testing.T) {
	tr := newTestRouter(t, nil)

	resp := tr.do(http.MethodGet, "/api/v1/products?category=Ceramics&sort=price_asc&search=%3Cb%3Emug%3C%2Fb%3E", "")
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d: %s", resp.Code, resp.Body.String())
	}
	got := tr.products.lastList
	if got == nil || got.Filters.Category == nil || *got.Filters.Category != enums.ProductCategoryCeramics {
		t.Fatalf("category filter not parsed: %+v", got)
	}
	if got.Sort != enums.ProductSortPriceAsc {
		t.Fatalf("expected price_asc got %s", got.Sort)
	}

	if resp := tr.do(http.MethodGet, "/api/v1/products/stoneware-mug", ""); resp.Code != http.StatusOK {
		t.Fatalf("expected slug lookup 200 got %d", resp.Code)
	}
	if resp := tr.do(http.MethodGet, "/api/v1/products/missing", ""); resp.Code != http.StatusNotFound {
		t.Fatalf("expected 404 got %d", resp.Code)
	}
	if resp := tr.do(http.MethodGet, "/api/v1/products?sort=cheapest", ""); resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown sort got %d", resp.Code)
	}
}

func TestProtectedRoutesRejectMissingToken(t *testing.T) {
	tr := newTestRouter(t, nil)
	for _, path := range []string{"/api/v1/auth/me", "/api/v1/orders/my-orders", "/api/v1/users/me/cart", "/api/v1/reviews/pending"} {
		if resp := tr.do(http.MethodGet, path, ""); resp.Code != http.StatusUnauthorized {
			t.Fatalf("%s: expected 401 got %d", path, resp.Code)
		}
	}
}

func TestRoleGates(t *testing.T) {
	tr := newTestRouter(t, nil)
	tests := []struct {
		path   string
		role   string
		status int
	}{
		{"/api/v1/orders/stats", "customer", http.StatusForbidden},
		{"/api/v1/orders/stats", "moderator", http.StatusForbidden},
		{"/api/v1/orders/stats", "admin", http.StatusOK},
		{"/api/v1/orders/my-orders", "customer", http.StatusOK},
		{"/api/v1/reviews/pending", "customer", http.StatusForbidden},
		{"/api/v1/reviews/pending", "moderator", http.StatusOK},
		{"/api/v1/auth/me", "customer", http.StatusOK},
	}
	for _, tt := range tests {
		resp := tr.do(http.MethodGet, tt.path, tt.role)
		if resp.Code != tt.status {
			t.Fatalf("%s as %s: expected %d got %d", tt.path, tt.role, tt.status, resp.Code)
		}
	}
}

func TestModerationQueueForcesPendingStatus(t *testing.T) {
	tr := newTestRouter(t, nil)
	resp := tr.do(http.MethodGet, "/api/v1/reviews/pending?status=approved", "admin")
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", resp.Code)
	}
	if tr.reviews.lastFilters == nil || tr.reviews.lastFilters.Status == nil || *tr.reviews.lastFilters.Status != enums.ReviewStatusPending {
		t.Fatalf("expected pending filter got %+v", tr.reviews.lastFilters)
	}
}

func TestMetricsUseRoutePatterns(t *testing.T) {
	tr := newTestRouter(t, nil)
	tr.do(http.MethodGet, "/api/v1/products/stoneware-mug", "")

	resp := tr.do(http.MethodGet, "/metrics", "")
	if resp.Code != http.StatusOK {
		t.Fatalf("expected metrics 200 got %d", resp.Code)
	}
	body := resp.Body.String()
	if !strings.Contains(body, `route="/api/v1/products/{id}"`) {
		t.Fatalf("expected route pattern label in metrics output")
	}
	if strings.Contains(body, "stoneware-mug") {
		t.Fatalf("raw path leaked into metric labels")
	}
}

func TestErrorEnvelopeShape(t *testing.T) {
	tr := newTestRouter(t, nil)
	resp := tr.do(http.MethodGet, "/api/v1/products/missing", "")

	var payload struct {
		Status string `json:"status"`
		Error  struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal(resp.Body.Bytes(), &payload); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if payload.Status != "fail" || payload.Error.Code != string(pkgerrors.CodeNotFound) {
		t.Fatalf("unexpected envelope %+v", payload)
	}
}
