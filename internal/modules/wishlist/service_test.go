package wishlist_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"shirly.shop/app/internal/modules/cart"
	"shirly.shop/app/internal/modules/products"
	"shirly.shop/app/internal/modules/wishlist"
	"shirly.shop/app/internal/testutil"
)

func TestWishlistAddIsIdempotent(t *testing.T) {
	ctx := context.Background()
	gdb := testutil.DB(t)
	repo := products.NewRepo(gdb)
	svc := wishlist.NewService(gdb, repo, cart.NewService(gdb, repo))
	u := testutil.CreateUser(t, gdb, "w@example.com", "")
	p := testutil.CreateProduct(t, gdb, "Mug", 900)

	_, err := svc.Add(ctx, u.ID, p.ID)
	require.NoError(t, err)
	items, err := svc.Add(ctx, u.ID, p.ID)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, p.ID, items[0].Product.ID)

	_, err = svc.Add(ctx, u.ID, "missing")
	assert.ErrorIs(t, err, wishlist.ErrProductNotFound)

	items, err = svc.Remove(ctx, u.ID, p.ID)
	require.NoError(t, err)
	assert.Empty(t, items)
}

func TestMoveToCart(t *testing.T) {
	ctx := context.Background()
	gdb := testutil.DB(t)
	repo := products.NewRepo(gdb)
	svc := wishlist.NewService(gdb, repo, cart.NewService(gdb, repo))
	u := testutil.CreateUser(t, gdb, "w@example.com", "")
	p := testutil.CreateProduct(t, gdb, "Mug", 900)
	soldOut := testutil.CreateProduct(t, gdb, "Rare", 900, testutil.WithStock(0))

	_, err := svc.Add(ctx, u.ID, p.ID)
	require.NoError(t, err)
	_, err = svc.Add(ctx, u.ID, soldOut.ID)
	require.NoError(t, err)

	res, err := svc.MoveToCart(ctx, u.ID, p.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Cart.Count)
	require.Len(t, res.Wishlist, 1)
	assert.Equal(t, soldOut.ID, res.Wishlist[0].Product.ID)
	assert.False(t, res.Wishlist[0].Product.Available)

	_, err = svc.MoveToCart(ctx, u.ID, soldOut.ID)
	assert.ErrorIs(t, err, cart.ErrProductUnavailable)
	still, err := svc.Contains(ctx, u.ID, soldOut.ID)
	require.NoError(t, err)
	assert.True(t, still)

	_, err = svc.MoveToCart(ctx, u.ID, p.ID)
	assert.ErrorIs(t, err, wishlist.ErrNotInWishlist)
}
