package address

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/seramic/shop-backend/pkg/db"
	"github.com/seramic/shop-backend/pkg/db/models"
	"github.com/seramic/shop-backend/pkg/enums"
	pkgerrors "github.com/seramic/shop-backend/pkg/errors"
	"github.com/seramic/shop-backend/pkg/types"
)

const maxAddresses = 10

// Service manages the saved addresses of one account. At most one address is
// the default for each type; "both" counts as shipping and billing.
type Service interface {
	List(ctx context.Context, userID uuid.UUID) ([]AddressDTO, error)
	Create(ctx context.Context, userID uuid.UUID, input AddressInput) (*AddressDTO, error)
	Update(ctx context.Context, userID, id uuid.UUID, input UpdateAddressInput) (*AddressDTO, error)
	Delete(ctx context.Context, userID, id uuid.UUID) error
}

type service struct {
	db   *db.Client
	repo *Repository
}

func NewService(client *db.Client) (Service, error) {
	if client == nil {
		return nil, fmt.Errorf("db client required")
	}
	return &service{db: client, repo: NewRepository(client.DB())}, nil
}

func (s *service) List(ctx context.Context, userID uuid.UUID) ([]AddressDTO, error) {
	rows, err := s.repo.List(ctx, userID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list addresses")
	}
	out := make([]AddressDTO, 0, len(rows))
	for i := range rows {
		out = append(out, toDTO(&rows[i]))
	}
	return out, nil
}

func (s *service) Create(ctx context.Context, userID uuid.UUID, input AddressInput) (*AddressDTO, error) {
	kind := input.Type
	if kind == "" {
		kind = enums.AddressTypeShipping
	}
	postal := input.PostalAddress.Normalize()
	if err := validate(kind, postal); err != nil {
		return nil, err
	}

	record := &models.Address{UserID: userID, Type: kind, IsDefault: input.IsDefault}
	record.SetPostal(postal)

	err := s.db.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		n, err := repo.Count(ctx, userID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "count addresses")
		}
		if n >= maxAddresses {
			return pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("You can save at most %d addresses", maxAddresses))
		}
		if n == 0 {
			record.IsDefault = true
		}
		if err := repo.Create(ctx, record); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "create address")
		}
		return s.keepSingleDefault(ctx, repo, record)
	})
	if err != nil {
		return nil, err
	}
	dto := toDTO(record)
	return &dto, nil
}

func (s *service) Update(ctx context.Context, userID, id uuid.UUID, input UpdateAddressInput) (*AddressDTO, error) {
	var out *models.Address
	err := s.db.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		record, err := repo.Find(ctx, userID, id)
		if err != nil {
			return mapLookupError(err)
		}
		postal := record.Postal()
		input.apply(&postal)
		postal = postal.Normalize()
		if input.Type != nil {
			record.Type = *input.Type
		}
		if input.IsDefault != nil {
			record.IsDefault = *input.IsDefault
		}
		if err := validate(record.Type, postal); err != nil {
			return err
		}
		record.SetPostal(postal)
		if err := repo.Save(ctx, record); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "update address")
		}
		out = record
		return s.keepSingleDefault(ctx, repo, record)
	})
	if err != nil {
		return nil, err
	}
	dto := toDTO(out)
	return &dto, nil
}

func (s *service) Delete(ctx context.Context, userID, id uuid.UUID) error {
	if err := s.repo.Delete(ctx, userID, id); err != nil {
		return mapLookupError(err)
	}
	return nil
}

func (s *service) keepSingleDefault(ctx context.Context, repo *Repository, record *models.Address) error {
	if !record.IsDefault {
		return nil
	}
	if err := repo.ClearDefaults(ctx, record.UserID, record.Type, record.ID); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "reset default address")
	}
	return nil
}

func mapLookupError(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return pkgerrors.New(pkgerrors.CodeNotFound, "No address found with that ID")
	}
	return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load address")
}

func validate(kind enums.AddressType, a types.PostalAddress) error {
	details := map[string]string{}
	if !kind.IsValid() {
		details["type"] = "must be one of shipping, billing, both"
	}
	required := map[string]string{
		"firstName":    a.FirstName,
		"lastName":     a.LastName,
		"addressLine1": a.AddressLine1,
		"city":         a.City,
		"state":        a.State,
		"postalCode":   a.PostalCode,
		"country":      a.Country,
	}
	for field, v := range required {
		if strings.TrimSpace(v) == "" {
			details[field] = "required"
		}
	}
	if len(details) > 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "Invalid address").WithDetails(details)
	}
	return nil
}
