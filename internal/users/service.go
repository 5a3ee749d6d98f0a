package users

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/seramic/shop-backend/pkg/db/models"
	pkgerrors "github.com/seramic/shop-backend/pkg/errors"
	"github.com/seramic/shop-backend/pkg/pagination"
)

// Service covers profile self-service and admin account management.
type Service interface {
	Get(ctx context.Context, id uuid.UUID) (*UserDTO, error)
	UpdateProfile(ctx context.Context, id uuid.UUID, input UpdateProfileInput) (*UserDTO, error)
	SetAvatar(ctx context.Context, id uuid.UUID, url string) (*UserDTO, error)
	List(ctx context.Context, filters ListFilters, page pagination.Page) (*UserList, error)
	SetActive(ctx context.Context, id uuid.UUID, active bool) (*UserDTO, error)
}

type repository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	UpdateFields(ctx context.Context, id uuid.UUID, fields map[string]any) error
	List(ctx context.Context, filters ListFilters, page pagination.Page) ([]models.User, int64, error)
}

type service struct {
	repo repository
}

func NewService(repo repository) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("users repository is required")
	}
	return &service{repo: repo}, nil
}

func (s *service) Get(ctx context.Context, id uuid.UUID) (*UserDTO, error) {
	user, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, mapLookupError(err)
	}
	return FromModel(user), nil
}

func (s *service) UpdateProfile(ctx context.Context, id uuid.UUID, input UpdateProfileInput) (*UserDTO, error) {
	fields := input.fields()
	if len(fields) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "no profile fields to update")
	}
	if err := s.repo.UpdateFields(ctx, id, fields); err != nil {
		return nil, mapLookupError(err)
	}
	return s.Get(ctx, id)
}

func (s *service) SetAvatar(ctx context.Context, id uuid.UUID, url string) (*UserDTO, error) {
	if url == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "avatar url is required")
	}
	if err := s.repo.UpdateFields(ctx, id, map[string]any{"avatar_url": url}); err != nil {
		return nil, mapLookupError(err)
	}
	return s.Get(ctx, id)
}

func (s *service) List(ctx context.Context, filters ListFilters, page pagination.Page) (*UserList, error) {
	rows, total, err := s.repo.List(ctx, filters, page)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list users")
	}
	out := make([]UserDTO, 0, len(rows))
	for i := range rows {
		out = append(out, *FromModel(&rows[i]))
	}
	return &UserList{Users: out, Meta: pagination.MetaFor(page, total)}, nil
}

func (s *service) SetActive(ctx context.Context, id uuid.UUID, active bool) (*UserDTO, error) {
	if err := s.repo.UpdateFields(ctx, id, map[string]any{"is_active": active}); err != nil {
		return nil, mapLookupError(err)
	}
	return s.Get(ctx, id)
}

func mapLookupError(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return pkgerrors.New(pkgerrors.CodeNotFound, "user not found")
	}
	return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "user lookup")
}
