package address

import (
	"time"

	"github.com/google/uuid"

	"github.com/seramic/shop-backend/pkg/db/models"
	"github.com/seramic/shop-backend/pkg/enums"
	"github.com/seramic/shop-backend/pkg/types"
)

type AddressInput struct {
	Type      enums.AddressType `json:"type,omitempty"`
	IsDefault bool              `json:"isDefault"`
	types.PostalAddress
}

// UpdateAddressInput carries optional changes; nil fields are kept.
type UpdateAddressInput struct {
	Type         *enums.AddressType `json:"type,omitempty"`
	IsDefault    *bool              `json:"isDefault,omitempty"`
	FirstName    *string            `json:"firstName,omitempty" validate:"omitempty,max=50"`
	LastName     *string            `json:"lastName,omitempty" validate:"omitempty,max=50"`
	Company      *string            `json:"company,omitempty"`
	AddressLine1 *string            `json:"addressLine1,omitempty"`
	AddressLine2 *string            `json:"addressLine2,omitempty"`
	City         *string            `json:"city,omitempty"`
	State        *string            `json:"state,omitempty"`
	PostalCode   *string            `json:"postalCode,omitempty"`
	Country      *string            `json:"country,omitempty"`
	Phone        *string            `json:"phone,omitempty"`
}

func (in UpdateAddressInput) apply(p *types.PostalAddress) {
	set := func(dst *string, v *string) {
		if v != nil {
			*dst = *v
		}
	}
	set(&p.FirstName, in.FirstName)
	set(&p.LastName, in.LastName)
	set(&p.AddressLine1, in.AddressLine1)
	set(&p.City, in.City)
	set(&p.State, in.State)
	set(&p.PostalCode, in.PostalCode)
	set(&p.Country, in.Country)
	if in.Company != nil {
		p.Company = in.Company
	}
	if in.AddressLine2 != nil {
		p.AddressLine2 = in.AddressLine2
	}
	if in.Phone != nil {
		p.Phone = in.Phone
	}
}

type AddressDTO struct {
	ID        uuid.UUID         `json:"id"`
	Type      enums.AddressType `json:"type"`
	IsDefault bool              `json:"isDefault"`
	types.PostalAddress
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func toDTO(a *models.Address) AddressDTO {
	return AddressDTO{
		ID:            a.ID,
		Type:          a.Type,
		IsDefault:     a.IsDefault,
		PostalAddress: a.Postal(),
		CreatedAt:     a.CreatedAt,
		UpdatedAt:     a.UpdatedAt,
	}
}
