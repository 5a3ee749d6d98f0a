package reviews

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"gorm.io/gorm"

	product "github.com/seramic/shop-backend/internal/products"
	"github.com/seramic/shop-backend/pkg/auth"
	"github.com/seramic/shop-backend/pkg/db"
	"github.com/seramic/shop-backend/pkg/db/models"
	"github.com/seramic/shop-backend/pkg/enums"
	pkgerrors "github.com/seramic/shop-backend/pkg/errors"
	"github.com/seramic/shop-backend/pkg/logger"
	"github.com/seramic/shop-backend/pkg/pagination"
)

// Service covers author actions and the moderation workflow. Product rating
// aggregates only ever count approved reviews.
type Service interface {
	ListForProduct(ctx context.Context, productID uuid.UUID, page pagination.Page) (*ReviewList, error)
	ListMine(ctx context.Context, actor auth.Actor, page pagination.Page) (*ReviewList, error)
	List(ctx context.Context, filters ListFilters, page pagination.Page) (*ReviewList, error)
	Stats(ctx context.Context) (*Stats, error)
	Create(ctx context.Context, actor auth.Actor, input CreateReviewInput) (*ReviewDTO, error)
	Update(ctx context.Context, actor auth.Actor, id uuid.UUID, input UpdateReviewInput) (*ReviewDTO, error)
	Delete(ctx context.Context, actor auth.Actor, id uuid.UUID) error
	MarkHelpful(ctx context.Context, actor auth.Actor, id uuid.UUID) (*ReviewDTO, error)
	Report(ctx context.Context, actor auth.Actor, id uuid.UUID) (*ReviewDTO, error)
	Approve(ctx context.Context, actor auth.Actor, id uuid.UUID, input ModerationInput) (*ReviewDTO, error)
	Reject(ctx context.Context, actor auth.Actor, id uuid.UUID, input ModerationInput) (*ReviewDTO, error)
	Respond(ctx context.Context, actor auth.Actor, id uuid.UUID, input ResponseInput) (*ReviewDTO, error)
}

type ServiceParams struct {
	DB     *db.Client
	Logger *logger.Logger
}

type service struct {
	db   *db.Client
	repo *Repository
	logg *logger.Logger
	now  func() time.Time
}

func NewService(params ServiceParams) (Service, error) {
	if params.DB == nil {
		return nil, fmt.Errorf("db client required")
	}
	return &service{
		db:   params.DB,
		repo: NewRepository(params.DB.DB()),
		logg: params.Logger,
		now:  time.Now,
	}, nil
}

func (s *service) ListForProduct(ctx context.Context, productID uuid.UUID, page pagination.Page) (*ReviewList, error) {
	if _, err := s.loadProduct(ctx, s.db.DB(), productID); err != nil {
		return nil, err
	}
	approved := enums.ReviewStatusApproved
	return s.List(ctx, ListFilters{ProductID: &productID, Status: &approved}, page)
}

func (s *service) ListMine(ctx context.Context, actor auth.Actor, page pagination.Page) (*ReviewList, error) {
	return s.List(ctx, ListFilters{UserID: &actor.UserID}, page)
}

func (s *service) List(ctx context.Context, filters ListFilters, page pagination.Page) (*ReviewList, error) {
	if filters.Status != nil && !filters.Status.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid review status filter")
	}
	if filters.Rating != nil && (*filters.Rating < 1 || *filters.Rating > 5) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "rating filter must be between 1 and 5")
	}
	rows, total, err := s.repo.List(ctx, filters, page)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list reviews")
	}
	return toList(rows, total, page), nil
}

func (s *service) Stats(ctx context.Context) (*Stats, error) {
	stats, err := s.repo.Stats(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "review stats")
	}
	return stats, nil
}

func (s *service) Create(ctx context.Context, actor auth.Actor, input CreateReviewInput) (*ReviewDTO, error) {
	title := trimmedPtr(input.Title)
	body := strings.TrimSpace(input.Body)
	if err := validateContent(title, body, input.Rating); err != nil {
		return nil, err
	}
	p, err := s.loadProduct(ctx, s.db.DB(), input.ProductID)
	if err != nil {
		return nil, err
	}
	if !p.IsActive {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "Product not found")
	}

	review := &models.Review{
		ProductID: p.ID,
		UserID:    actor.UserID,
		Title:     title,
		Body:      body,
		Rating:    input.Rating,
		Status:    enums.ReviewStatusPending,
	}
	if err := s.repo.Create(ctx, review); err != nil {
		if db.IsUniqueViolation(err, productUserIndex) || db.IsUniqueViolation(err, "reviews.product_id") {
			return nil, ErrAlreadyReviewed()
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "create review")
	}
	s.info(ctx, review, "review submitted")
	return FromModel(review), nil
}

// Update lets the author edit; any edit sends the review back to moderation.
func (s *service) Update(ctx context.Context, actor auth.Actor, id uuid.UUID, input UpdateReviewInput) (*ReviewDTO, error) {
	return s.mutate(ctx, id, func(review *models.Review) error {
		if !actor.Owns(review.UserID) {
			return ErrNotAuthor()
		}
		if input.Title != nil {
			review.Title = trimmedPtr(input.Title)
		}
		if input.Body != nil {
			review.Body = strings.TrimSpace(*input.Body)
		}
		if input.Rating != nil {
			review.Rating = *input.Rating
		}
		if err := validateContent(review.Title, review.Body, review.Rating); err != nil {
			return err
		}
		review.Status = enums.ReviewStatusPending
		review.ModeratedAt = nil
		review.ModeratedBy = nil
		return nil
	})
}

func (s *service) Delete(ctx context.Context, actor auth.Actor, id uuid.UUID) error {
	return s.db.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		review, err := s.load(ctx, repo, id)
		if err != nil {
			return err
		}
		if !actor.IsAdmin() && !actor.Owns(review.UserID) {
			return pkgerrors.New(pkgerrors.CodeForbidden, "You do not have permission to delete this review")
		}
		if err := repo.Delete(ctx, id); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "delete review")
		}
		if review.Status == enums.ReviewStatusApproved {
			return s.refreshRating(ctx, tx, review.ProductID)
		}
		return nil
	})
}

func (s *service) MarkHelpful(ctx context.Context, actor auth.Actor, id uuid.UUID) (*ReviewDTO, error) {
	return s.bump(ctx, actor, id, "helpful_count", "You cannot mark your own review as helpful")
}

func (s *service) Report(ctx context.Context, actor auth.Actor, id uuid.UUID) (*ReviewDTO, error) {
	return s.bump(ctx, actor, id, "report_count", "You cannot report your own review")
}

func (s *service) Approve(ctx context.Context, actor auth.Actor, id uuid.UUID, input ModerationInput) (*ReviewDTO, error) {
	return s.moderate(ctx, actor, id, enums.ReviewStatusApproved, input.Note)
}

func (s *service) Reject(ctx context.Context, actor auth.Actor, id uuid.UUID, input ModerationInput) (*ReviewDTO, error) {
	if strings.TrimSpace(input.Note) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "A moderation note is required when rejecting a review").
			WithDetails(map[string]string{"note": "required"})
	}
	return s.moderate(ctx, actor, id, enums.ReviewStatusRejected, input.Note)
}

func (s *service) Respond(ctx context.Context, actor auth.Actor, id uuid.UUID, input ResponseInput) (*ReviewDTO, error) {
	text := strings.TrimSpace(input.Text)
	if text == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "Response text is required").
			WithDetails(map[string]string{"text": "required"})
	}
	return s.mutate(ctx, id, func(review *models.Review) error {
		review.Response = &models.ReviewResponse{
			Text:        text,
			RespondedBy: actor.UserID,
			RespondedAt: s.now().UTC(),
		}
		return nil
	})
}

func (s *service) moderate(ctx context.Context, actor auth.Actor, id uuid.UUID, to enums.ReviewStatus, note string) (*ReviewDTO, error) {
	return s.mutate(ctx, id, func(review *models.Review) error {
		if review.Status == to {
			return pkgerrors.New(pkgerrors.CodeStateConflict, fmt.Sprintf("Review is already %s", to))
		}
		at := s.now().UTC()
		review.Status = to
		review.ModeratedBy = actor.Ref()
		review.ModeratedAt = &at
		review.ModerationNote = trimmedPtr(&note)
		return nil
	})
}

// mutate applies fn in a transaction and refreshes the product rating when
// the approved set changed.
func (s *service) mutate(ctx context.Context, id uuid.UUID, fn func(review *models.Review) error) (*ReviewDTO, error) {
	var out *models.Review
	err := s.db.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		review, err := s.load(ctx, repo, id)
		if err != nil {
			return err
		}
		before := *review
		if err := fn(review); err != nil {
			return err
		}
		if err := repo.Save(ctx, review); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "save review")
		}
		if affectsRating(&before, review) {
			if err := s.refreshRating(ctx, tx, review.ProductID); err != nil {
				return err
			}
		}
		out = review
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.info(ctx, out, "review updated")
	return FromModel(out), nil
}

func (s *service) bump(ctx context.Context, actor auth.Actor, id uuid.UUID, column, ownMsg string) (*ReviewDTO, error) {
	review, err := s.load(ctx, s.repo, id)
	if err != nil {
		return nil, err
	}
	if actor.Owns(review.UserID) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, ownMsg)
	}
	n, err := s.repo.Bump(ctx, id, column)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrReviewNotFound()
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "update review feedback")
	}
	if column == "helpful_count" {
		review.HelpfulCount = n
	} else {
		review.ReportCount = n
	}
	return FromModel(review), nil
}

func (s *service) refreshRating(ctx context.Context, tx *gorm.DB, productID uuid.UUID) error {
	average, count, err := s.repo.WithTx(tx).ApprovedRating(ctx, productID)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "aggregate ratings")
	}
	if err := product.NewRepository(tx).UpdateRating(ctx, productID, roundRating(average), count); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "update product rating")
	}
	return nil
}

func (s *service) load(ctx context.Context, repo *Repository, id uuid.UUID) (*models.Review, error) {
	review, err := repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrReviewNotFound()
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load review")
	}
	return review, nil
}

func (s *service) loadProduct(ctx context.Context, conn *gorm.DB, id uuid.UUID) (*models.Product, error) {
	p, err := product.NewRepository(conn).FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "Product not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load product")
	}
	return p, nil
}

func (s *service) info(ctx context.Context, review *models.Review, msg string) {
	if s.logg == nil || review == nil {
		return
	}
	ctx = s.logg.WithFields(ctx, map[string]any{
		"review_id":  review.ID.String(),
		"product_id": review.ProductID.String(),
		"status":     review.Status,
	})
	s.logg.Info(ctx, msg)
}

func affectsRating(before, after *models.Review) bool {
	wasApproved := before.Status == enums.ReviewStatusApproved
	isApproved := after.Status == enums.ReviewStatusApproved
	return wasApproved != isApproved || (isApproved && before.Rating != after.Rating)
}

func validateContent(title *string, body string, rating int) error {
	details := map[string]string{}
	if rating < 1 || rating > 5 {
		details["rating"] = "must be between 1 and 5"
	}
	if n := utf8.RuneCountInString(body); n < 10 || n > 1000 {
		details["body"] = "must be between 10 and 1000 characters"
	}
	if title != nil && utf8.RuneCountInString(*title) > 100 {
		details["title"] = "must be at most 100 characters"
	}
	if len(details) > 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "Invalid review").WithDetails(details)
	}
	return nil
}

func trimmedPtr(v *string) *string {
	if v == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*v)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}
