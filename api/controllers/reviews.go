package controllers

import (
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/seramic/shop-backend/api/responses"
	"github.com/seramic/shop-backend/api/validators"
	"github.com/seramic/shop-backend/internal/reviews"
	pkgAuth "github.com/seramic/shop-backend/pkg/auth"
	"github.com/seramic/shop-backend/pkg/enums"
	pkgerrors "github.com/seramic/shop-backend/pkg/errors"
	"github.com/seramic/shop-backend/pkg/logger"
)

const defaultReviewPageSize = 10

// ReviewsForProduct lists approved reviews only.
func ReviewsForProduct(svc reviews.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		productID, err := validators.ParseUUIDParam(r, "productId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		page, err := parsePage(r, defaultReviewPageSize)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		list, err := svc.ListForProduct(r.Context(), productID, page)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, list)
	}
}

func ReviewsMine(svc reviews.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, ok := requireActor(w, r, logg)
		if !ok {
			return
		}
		page, err := parsePage(r, defaultReviewPageSize)
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

// ReviewsList is the staff listing. forcePending pins the status filter for
// the moderation queue route.
func ReviewsList(svc reviews.Service, forcePending bool, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		filters, err := parseReviewFilters(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if forcePending {
			pending := enums.ReviewStatusPending
			filters.Status = &pending
		}
		page, err := parsePage(r, defaultReviewPageSize)
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

func parseReviewFilters(r *http.Request) (reviews.ListFilters, error) {
	q := r.URL.Query()
	var filters reviews.ListFilters
	if raw := strings.TrimSpace(q.Get("status")); raw != "" {
		status, err := enums.ParseReviewStatus(raw)
		if err != nil {
			return filters, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid review status")
		}
		filters.Status = &status
	}
	for key, dest := range map[string]**uuid.UUID{"productId": &filters.ProductID, "userId": &filters.UserID} {
		raw := strings.TrimSpace(q.Get(key))
		if raw == "" {
			continue
		}
		id, err := uuid.Parse(raw)
		if err != nil {
			return filters, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid "+key)
		}
		*dest = &id
	}
	if q.Get("rating") != "" {
		rating, err := validators.ParseQueryInt(r, "rating", 0, 1, 5)
		if err != nil {
			return filters, err
		}
		filters.Rating = &rating
	}
	return filters, nil
}

func ReviewsStats(svc reviews.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		stats, err := svc.Stats(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, stats)
	}
}

// ReviewCreate stores the review as pending; it stays out of product ratings
// until a moderator approves it.
func ReviewCreate(svc reviews.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, ok := requireActor(w, r, logg)
		if !ok {
			return
		}
		var body reviews.CreateReviewInput
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		review, err := svc.Create(r.Context(), actor, body)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, review)
	}
}

func ReviewUpdate(svc reviews.Service, logg *logger.Logger) http.HandlerFunc {
	return withReview(logg, func(w http.ResponseWriter, r *http.Request, actor pkgAuth.Actor, id uuid.UUID) {
		var body reviews.UpdateReviewInput
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		writeReview(w, r, logg)(svc.Update(r.Context(), actor, id, body))
	})
}

func ReviewDelete(svc reviews.Service, logg *logger.Logger) http.HandlerFunc {
	return withReview(logg, func(w http.ResponseWriter, r *http.Request, actor pkgAuth.Actor, id uuid.UUID) {
		if err := svc.Delete(r.Context(), actor, id); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteNoContent(w)
	})
}

func ReviewHelpful(svc reviews.Service, logg *logger.Logger) http.HandlerFunc {
	return withReview(logg, func(w http.ResponseWriter, r *http.Request, actor pkgAuth.Actor, id uuid.UUID) {
		writeReview(w, r, logg)(svc.MarkHelpful(r.Context(), actor, id))
	})
}

func ReviewReport(svc reviews.Service, logg *logger.Logger) http.HandlerFunc {
	return withReview(logg, func(w http.ResponseWriter, r *http.Request, actor pkgAuth.Actor, id uuid.UUID) {
		writeReview(w, r, logg)(svc.Report(r.Context(), actor, id))
	})
}

func ReviewApprove(svc reviews.Service, logg *logger.Logger) http.HandlerFunc {
	return withReview(logg, func(w http.ResponseWriter, r *http.Request, actor pkgAuth.Actor, id uuid.UUID) {
		var body reviews.ModerationInput
		if err := validators.DecodeOptionalJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		writeReview(w, r, logg)(svc.Approve(r.Context(), actor, id, body))
	})
}

// ReviewReject requires a note; the service enforces it.
func ReviewReject(svc reviews.Service, logg *logger.Logger) http.HandlerFunc {
	return withReview(logg, func(w http.ResponseWriter, r *http.Request, actor pkgAuth.Actor, id uuid.UUID) {
		var body reviews.ModerationInput
		if err := validators.DecodeOptionalJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		writeReview(w, r, logg)(svc.Reject(r.Context(), actor, id, body))
	})
}

func ReviewRespond(svc reviews.Service, logg *logger.Logger) http.HandlerFunc {
	return withReview(logg, func(w http.ResponseWriter, r *http.Request, actor pkgAuth.Actor, id uuid.UUID) {
		var body reviews.ResponseInput
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		writeReview(w, r, logg)(svc.Respond(r.Context(), actor, id, body))
	})
}

func withReview(logg *logger.Logger, fn func(w http.ResponseWriter, r *http.Request, actor pkgAuth.Actor, id uuid.UUID)) http.HandlerFunc {
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
		fn(w, r, actor, id)
	}
}

func writeReview(w http.ResponseWriter, r *http.Request, logg *logger.Logger) func(*reviews.ReviewDTO, error) {
	return func(review *reviews.ReviewDTO, err error) {
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, review)
	}
}
