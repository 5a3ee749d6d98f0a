package users

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/seramic/shop-backend/pkg/db/models"
	pkgerrors "github.com/seramic/shop-backend/pkg/errors"
	"github.com/seramic/shop-backend/pkg/pagination"
)

type stubRepo struct {
	user    *models.User
	findErr error
	updated map[string]any
	rows    []models.User
	total   int64
}

func (s *stubRepo) FindByID(context.Context, uuid.UUID) (*models.User, error) {
	if s.findErr != nil {
		return nil, s.findErr
	}
	return s.user, nil
}

func (s *stubRepo) UpdateFields(_ context.Context, _ uuid.UUID, fields map[string]any) error {
	if s.findErr != nil {
		return s.findErr
	}
	s.updated = fields
	return nil
}

func (s *stubRepo) List(context.Context, ListFilters, pagination.Page) ([]models.User, int64, error) {
	return s.rows, s.total, nil
}

func TestUpdateProfileOnlyWritesProvidedFields(t *testing.T) {
	repo := &stubRepo{user: &models.User{ID: uuid.New(), FirstName: "Ada"}}
	svc, err := NewService(repo)
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	first := "Augusta"
	if _, err := svc.UpdateProfile(context.Background(), repo.user.ID, UpdateProfileInput{FirstName: &first}); err != nil {
		t.Fatalf("UpdateProfile: %v", err)
	}
	if len(repo.updated) != 1 || repo.updated["first_name"] != "Augusta" {
		t.Fatalf("unexpected update set %+v", repo.updated)
	}
}

func TestUpdateProfileRejectsEmptyPatch(t *testing.T) {
	svc, _ := NewService(&stubRepo{})
	_, err := svc.UpdateProfile(context.Background(), uuid.New(), UpdateProfileInput{})
	if !pkgerrors.IsCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestSetActiveMissingUserIsNotFound(t *testing.T) {
	svc, _ := NewService(&stubRepo{findErr: gorm.ErrRecordNotFound})
	_, err := svc.SetActive(context.Background(), uuid.New(), false)
	if !pkgerrors.IsCode(err, pkgerrors.CodeNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestGetWrapsUnexpectedErrors(t *testing.T) {
	svc, _ := NewService(&stubRepo{findErr: errors.New("connection reset")})
	_, err := svc.Get(context.Background(), uuid.New())
	if !pkgerrors.IsCode(err, pkgerrors.CodeInternal) {
		t.Fatalf("expected internal error, got %v", err)
	}
}

func TestListBuildsMeta(t *testing.T) {
	repo := &stubRepo{rows: []models.User{{Email: "a@example.com"}}, total: 30}
	svc, _ := NewService(repo)
	list, err := svc.List(context.Background(), ListFilters{}, pagination.Page{Page: 2, Limit: 10})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(list.Users) != 1 || list.Meta.Pages != 3 || list.Meta.Page != 2 {
		t.Fatalf("unexpected list %+v", list)
	}
}
