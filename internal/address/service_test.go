package address

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/seramic/shop-backend/pkg/db/dbtest"
	"github.com/seramic/shop-backend/pkg/enums"
	pkgerrors "github.com/seramic/shop-backend/pkg/errors"
	"github.com/seramic/shop-backend/pkg/types"
)

func postal(city string) types.PostalAddress {
	return types.PostalAddress{
		FirstName:    "Mira",
		LastName:     "Potter",
		AddressLine1: "1 Kiln Rd",
		City:         city,
		State:        "ST",
		PostalCode:   "ST1 1AA",
		Country:      " gb ",
	}
}

func defaults(list []AddressDTO) map[string]bool {
	out := map[string]bool{}
	for _, a := range list {
		out[a.City] = a.IsDefault
	}
	return out
}

func TestOneDefaultPerType(t *testing.T) {
	svc, err := NewService(dbtest.Client(t))
	require.NoError(t, err)
	ctx := context.Background()
	user := uuid.New()

	first, err := svc.Create(ctx, user, AddressInput{PostalAddress: postal("Stoke")})
	require.NoError(t, err)
	assert.True(t, first.IsDefault, "first address becomes the default")
	assert.Equal(t, enums.AddressTypeShipping, first.Type)
	assert.Equal(t, "GB", first.Country)

	_, err = svc.Create(ctx, user, AddressInput{Type: enums.AddressTypeBilling, IsDefault: true, PostalAddress: postal("Leek")})
	require.NoError(t, err)
	_, err = svc.Create(ctx, user, AddressInput{Type: enums.AddressTypeShipping, IsDefault: true, PostalAddress: postal("Hanley")})
	require.NoError(t, err)

	list, err := svc.List(ctx, user)
	require.NoError(t, err)
	assert.Equal(t, map[string]bool{"Stoke": false, "Leek": true, "Hanley": true}, defaults(list))

	// "both" overlaps every type
	_, err = svc.Create(ctx, user, AddressInput{Type: enums.AddressTypeBoth, IsDefault: true, PostalAddress: postal("Burslem")})
	require.NoError(t, err)
	list, err = svc.List(ctx, user)
	require.NoError(t, err)
	assert.Equal(t, map[string]bool{"Stoke": false, "Leek": false, "Hanley": false, "Burslem": true}, defaults(list))
	assert.Equal(t, "Burslem", list[0].City, "default listed first")

	yes := true
	_, err = svc.Update(ctx, user, first.ID, UpdateAddressInput{IsDefault: &yes})
	require.NoError(t, err)
	list, err = svc.List(ctx, user)
	require.NoError(t, err)
	assert.Equal(t, map[string]bool{"Stoke": true, "Leek": false, "Hanley": false, "Burslem": false}, defaults(list))
}

func TestAddressOwnershipAndValidation(t *testing.T) {
	svc, err := NewService(dbtest.Client(t))
	require.NoError(t, err)
	ctx := context.Background()
	owner, other := uuid.New(), uuid.New()

	bad := postal("Stoke")
	bad.City = " "
	_, err = svc.Create(ctx, owner, AddressInput{PostalAddress: bad})
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeValidation, typed.Code())

	created, err := svc.Create(ctx, owner, AddressInput{PostalAddress: postal("Stoke")})
	require.NoError(t, err)

	city := "Longton"
	_, err = svc.Update(ctx, other, created.ID, UpdateAddressInput{City: &city})
	typed = pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeNotFound, typed.Code())

	updated, err := svc.Update(ctx, owner, created.ID, UpdateAddressInput{City: &city})
	require.NoError(t, err)
	assert.Equal(t, "Longton", updated.City)
	assert.Equal(t, "Mira", updated.FirstName)

	err = svc.Delete(ctx, other, created.ID)
	require.Error(t, err)
	require.NoError(t, svc.Delete(ctx, owner, created.ID))

	list, err := svc.List(ctx, owner)
	require.NoError(t, err)
	assert.Empty(t, list)
}
