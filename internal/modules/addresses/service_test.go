package addresses_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"shirly.shop/app/internal/modules/addresses"
	"shirly.shop/app/internal/testutil"
)

func home(name string) addresses.Input {
	return addresses.Input{FullName: name, Line1: "1 Main St", City: "Springfield", PostalCode: "12345", Country: "us"}
}

func defaults(t *testing.T, svc *addresses.Service, userID string) []string {
	t.Helper()
	list, err := svc.List(context.Background(), userID)
	require.NoError(t, err)
	var out []string
	for _, a := range list {
		if a.IsDefault {
			out = append(out, a.FullName)
		}
	}
	return out
}

func TestFirstAddressBecomesDefault(t *testing.T) {
	ctx := context.Background()
	gdb := testutil.DB(t)
	svc := addresses.NewService(gdb)
	u := testutil.CreateUser(t, gdb, "a@example.com", "")

	a, err := svc.Create(ctx, u.ID, home("Home"))
	require.NoError(t, err)
	assert.True(t, a.IsDefault)
	assert.Equal(t, "US", a.Country)

	b, err := svc.Create(ctx, u.ID, home("Work"))
	require.NoError(t, err)
	assert.False(t, b.IsDefault)

	in := home("Cabin")
	in.IsDefault = true
	_, err = svc.Create(ctx, u.ID, in)
	require.NoError(t, err)
	assert.Equal(t, []string{"Cabin"}, defaults(t, svc, u.ID))

	_, err = svc.SetDefault(ctx, u.ID, b.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"Work"}, defaults(t, svc, u.ID))
}

func TestDeleteDefaultPromotesRemaining(t *testing.T) {
	ctx := context.Background()
	gdb := testutil.DB(t)
	svc := addresses.NewService(gdb)
	u := testutil.CreateUser(t, gdb, "a@example.com", "")

	a, err := svc.Create(ctx, u.ID, home("Home"))
	require.NoError(t, err)
	_, err = svc.Create(ctx, u.ID, home("Work"))
	require.NoError(t, err)

	require.NoError(t, svc.Delete(ctx, u.ID, a.ID))
	assert.Equal(t, []string{"Work"}, defaults(t, svc, u.ID))

	assert.ErrorIs(t, svc.Delete(ctx, u.ID, a.ID), addresses.ErrNotFound)
}

func TestAddressOwnershipAndValidation(t *testing.T) {
	ctx := context.Background()
	gdb := testutil.DB(t)
	svc := addresses.NewService(gdb)
	u := testutil.CreateUser(t, gdb, "a@example.com", "")
	other := testutil.CreateUser(t, gdb, "b@example.com", "")

	a, err := svc.Create(ctx, u.ID, home("Home"))
	require.NoError(t, err)

	_, err = svc.Get(ctx, other.ID, a.ID)
	assert.ErrorIs(t, err, addresses.ErrNotFound)
	_, err = svc.Update(ctx, other.ID, a.ID, home("Stolen"))
	assert.ErrorIs(t, err, addresses.ErrNotFound)

	bad := home("Home")
	bad.Country = "USA"
	_, err = svc.Create(ctx, u.ID, bad)
	assert.ErrorIs(t, err, addresses.ErrInvalid)

	upd := home("Home 2")
	got, err := svc.Update(ctx, u.ID, a.ID, upd)
	require.NoError(t, err)
	assert.Equal(t, "Home 2", got.FullName)
	assert.True(t, got.IsDefault)
}
