package controllers

import (
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/seramic/shop-backend/api/responses"
	"github.com/seramic/shop-backend/api/validators"
	"github.com/seramic/shop-backend/internal/orders"
	pkgAuth "github.com/seramic/shop-backend/pkg/auth"
	"github.com/seramic/shop-backend/pkg/enums"
	pkgerrors "github.com/seramic/shop-backend/pkg/errors"
	"github.com/seramic/shop-backend/pkg/logger"
)

const (
	defaultOrderPageSize = 10
	dateOnly             = "2006-01-02"
)

func OrderCreate(svc orders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, ok := requireActor(w, r, logg)
		if !ok {
			return
		}
		var body orders.CreateOrderInput
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		order, err := svc.Create(r.Context(), actor, body)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, order)
	}
}

func OrdersMine(svc orders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, ok := requireActor(w, r, logg)
		if !ok {
			return
		}
		page, err := parsePage(r, defaultOrderPageSize)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		list, err := svc.ListMine(r.Context(), actor, page)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, list)
	}
}

// OrderGet returns the order to its owner or to an admin. Other callers see
// 404 so order ids cannot be probed.
func OrderGet(svc orders.Service, logg *logger.Logger) http.HandlerFunc {
	return withOrder(logg, func(w http.ResponseWriter, r *http.Request, actor pkgAuth.Actor, id uuid.UUID) {
		order, err := svc.Get(r.Context(), actor, id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, order)
	})
}

func OrderCancel(svc orders.Service, logg *logger.Logger) http.HandlerFunc {
	return withOrder(logg, func(w http.ResponseWriter, r *http.Request, actor pkgAuth.Actor, id uuid.UUID) {
		var body orders.CancelInput
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		writeOrder(w, r, logg)(svc.Cancel(r.Context(), actor, id, body))
	})
}

// OrdersList is the admin listing, optionally narrowed by status or account.
func OrdersList(svc orders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var filters orders.ListFilters
		if raw := strings.TrimSpace(r.URL.Query().Get("status")); raw != "" {
			status, err := enums.ParseOrderStatus(raw)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid order status"))
				return
			}
			filters.Status = &status
		}
		if raw := strings.TrimSpace(r.URL.Query().Get("userId")); raw != "" {
			userID, err := uuid.Parse(raw)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid userId"))
				return
			}
			filters.UserID = &userID
		}
		page, err := parsePage(r, defaultOrderPageSize)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		list, err := svc.List(r.Context(), filters, page)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, list)
	}
}

// OrdersStats reads startDate and endDate as dates or timestamps. A plain
// endDate covers the whole day.
func OrdersStats(svc orders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		from, err := validators.ParseQueryDate(r, "startDate")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		to, err := validators.ParseQueryDate(r, "endDate")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if to != nil && len(strings.TrimSpace(r.URL.Query().Get("endDate"))) == len(dateOnly) {
			end := to.Add(24*time.Hour - time.Nanosecond)
			to = &end
		}
		stats, err := svc.Stats(r.Context(), from, to)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, stats)
	}
}

func OrdersRevenue(svc orders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		year, err := validators.ParseQueryInt(r, "year", time.Now().UTC().Year(), 2000, 9999)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		rows, err := svc.RevenueByMonth(r.Context(), year)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]any{"year": year, "months": rows})
	}
}

func OrderUpdateStatus(svc orders.Service, logg *logger.Logger) http.HandlerFunc {
	return withOrder(logg, func(w http.ResponseWriter, r *http.Request, actor pkgAuth.Actor, id uuid.UUID) {
		var body orders.StatusInput
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		writeOrder(w, r, logg)(svc.UpdateStatus(r.Context(), actor, id, body))
	})
}

func OrderMarkPaid(svc orders.Service, logg *logger.Logger) http.HandlerFunc {
	return withOrder(logg, func(w http.ResponseWriter, r *http.Request, actor pkgAuth.Actor, id uuid.UUID) {
		var body orders.PaymentInput
		if err := validators.DecodeOptionalJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		writeOrder(w, r, logg)(svc.MarkPaid(r.Context(), actor, id, body))
	})
}

func OrderSetTracking(svc orders.Service, logg *logger.Logger) http.HandlerFunc {
	return withOrder(logg, func(w http.ResponseWriter, r *http.Request, actor pkgAuth.Actor, id uuid.UUID) {
		var body orders.TrackingInput
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		writeOrder(w, r, logg)(svc.SetTracking(r.Context(), actor, id, body))
	})
}

// OrderRefund refunds the full total unless an amount is given.
func OrderRefund(svc orders.Service, logg *logger.Logger) http.HandlerFunc {
	return withOrder(logg, func(w http.ResponseWriter, r *http.Request, actor pkgAuth.Actor, id uuid.UUID) {
		var body orders.RefundInput
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		writeOrder(w, r, logg)(svc.Refund(r.Context(), actor, id, body))
	})
}

func OrderDelete(svc orders.Service, logg *logger.Logger) http.HandlerFunc {
	return withOrder(logg, func(w http.ResponseWriter, r *http.Request, _ pkgAuth.Actor, id uuid.UUID) {
		if err := svc.Delete(r.Context(), id); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteNoContent(w)
	})
}

type orderHandler func(w http.ResponseWriter, r *http.Request, actor pkgAuth.Actor, id uuid.UUID)

func withOrder(logg *logger.Logger, fn orderHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, ok := requireActor(w, r, logg)
		if !ok {
			return
		}
		id, err := validators.ParseUUIDParam(r, "id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		ctx := r.Context()
		if logg != nil {
			ctx = logg.WithOrderID(ctx, id.String())
		}
		fn(w, r.WithContext(ctx), actor, id)
	}
}

func writeOrder(w http.ResponseWriter, r *http.Request, logg *logger.Logger) func(*orders.OrderDTO, error) {
	return func(order *orders.OrderDTO, err error) {
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, order)
	}
}
