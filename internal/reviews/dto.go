package reviews

import (
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/seramic/shop-backend/pkg/db/models"
	"github.com/seramic/shop-backend/pkg/enums"
	"github.com/seramic/shop-backend/pkg/pagination"
)

// CreateReviewInput is the author's submission.
type CreateReviewInput struct {
	ProductID uuid.UUID `json:"productId" validate:"required"`
	Title     *string   `json:"title,omitempty" validate:"omitempty,max=100"`
	Body      string    `json:"body" validate:"required,min=10,max=1000"`
	Rating    int       `json:"rating" validate:"required,min=1,max=5"`
}

// UpdateReviewInput edits an existing review; nil fields are kept.
type UpdateReviewInput struct {
	Title  *string `json:"title,omitempty" validate:"omitempty,max=100"`
	Body   *string `json:"body,omitempty" validate:"omitempty,min=10,max=1000"`
	Rating *int    `json:"rating,omitempty" validate:"omitempty,min=1,max=5"`
}

type ModerationInput struct {
	Note string `json:"note,omitempty" validate:"max=500"`
}

type ResponseInput struct {
	Text string `json:"text" validate:"required,max=1000"`
}

// ListFilters narrows admin listings.
type ListFilters struct {
	ProductID *uuid.UUID
	UserID    *uuid.UUID
	Status    *enums.ReviewStatus
	Rating    *int
}

// Stats summarises the moderation queue.
type Stats struct {
	Total         int64                        `json:"total"`
	ByStatus      map[enums.ReviewStatus]int64 `json:"byStatus"`
	AverageRating float64                      `json:"averageRating"`
}

type ReviewDTO struct {
	ID             uuid.UUID              `json:"id"`
	ProductID      uuid.UUID              `json:"product"`
	UserID         uuid.UUID              `json:"user"`
	Title          *string                `json:"title,omitempty"`
	Body           string                 `json:"body"`
	Rating         int                    `json:"rating"`
	Status         enums.ReviewStatus     `json:"status"`
	HelpfulCount   int                    `json:"helpfulCount"`
	ReportCount    int                    `json:"reportCount"`
	Response       *models.ReviewResponse `json:"response,omitempty"`
	ModerationNote *string                `json:"moderationNote,omitempty"`
	ModeratedAt    *time.Time             `json:"moderatedAt,omitempty"`
	CreatedAt      time.Time              `json:"createdAt"`
	UpdatedAt      time.Time              `json:"updatedAt"`
}

type ReviewList struct {
	Reviews []ReviewDTO         `json:"reviews"`
	Meta    pagination.PageMeta `json:"meta"`
}

func FromModel(r *models.Review) *ReviewDTO {
	if r == nil {
		return nil
	}
	return &ReviewDTO{
		ID:             r.ID,
		ProductID:      r.ProductID,
		UserID:         r.UserID,
		Title:          r.Title,
		Body:           r.Body,
		Rating:         r.Rating,
		Status:         r.Status,
		HelpfulCount:   r.HelpfulCount,
		ReportCount:    r.ReportCount,
		Response:       r.Response,
		ModerationNote: r.ModerationNote,
		ModeratedAt:    r.ModeratedAt,
		CreatedAt:      r.CreatedAt,
		UpdatedAt:      r.UpdatedAt,
	}
}

func toList(rows []models.Review, total int64, page pagination.Page) *ReviewList {
	out := make([]ReviewDTO, 0, len(rows))
	for i := range rows {
		out = append(out, *FromModel(&rows[i]))
	}
	return &ReviewList{Reviews: out, Meta: pagination.MetaFor(page, total)}
}

// roundRating keeps one decimal place.
func roundRating(v float64) float64 {
	return math.Round(v*10) / 10
}
