package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/seramic/shop-backend/pkg/enums"
)

// ReviewResponse is the shop's public reply to a review.
type ReviewResponse struct {
	Text        string    `json:"text"`
	RespondedBy uuid.UUID `json:"respondedBy"`
	RespondedAt time.Time `json:"respondedAt"`
}

type Review struct {
	ID             uuid.UUID          `gorm:"column:id;type:uuid;primaryKey"`
	ProductID      uuid.UUID          `gorm:"column:product_id;type:uuid;not null;uniqueIndex:ux_reviews_product_user;index:idx_reviews_product_id"`
	UserID         uuid.UUID          `gorm:"column:user_id;type:uuid;not null;uniqueIndex:ux_reviews_product_user"`
	Title          *string            `gorm:"column:title"`
	Body           string             `gorm:"column:body;not null"`
	Rating         int                `gorm:"column:rating;not null"`
	Status         enums.ReviewStatus `gorm:"column:status;type:text;not null;default:'pending';index:idx_reviews_status"`
	HelpfulCount   int                `gorm:"column:helpful_count;not null;default:0"`
	ReportCount    int                `gorm:"column:report_count;not null;default:0"`
	Response       *ReviewResponse    `gorm:"column:response;type:jsonb;serializer:json"`
	ModerationNote *string            `gorm:"column:moderation_note"`
	ModeratedBy    *uuid.UUID         `gorm:"column:moderated_by;type:uuid"`
	ModeratedAt    *time.Time         `gorm:"column:moderated_at"`
	CreatedAt      time.Time          `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt      time.Time          `gorm:"column:updated_at;autoUpdateTime"`
}

func (r *Review) BeforeCreate(*gorm.DB) error {
	return ensureID(&r.ID)
}
