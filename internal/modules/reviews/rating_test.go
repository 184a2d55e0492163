package reviews

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"shirly.shop/app/internal/modules/products"
	"shirly.shop/app/internal/testutil"
)

func TestRecomputeRatingHonorsContext(t *testing.T) {
	gdb := testutil.DB(t)
	p := testutil.CreateProduct(t, gdb, "Teapot", 1500)
	for i, rating := range []int{4, 5} {
		u := testutil.CreateUser(t, gdb, uuid.NewString()+"@example.com", "")
		now := time.Now().UTC().Add(time.Duration(i) * time.Second)
		require.NoError(t, gdb.Create(&Review{
			ID: uuid.NewString(), ProductID: p.ID, UserID: u.ID, Rating: rating,
			Body: "ok", CreatedAt: now, UpdatedAt: now,
		}).Error)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, recomputeRatingInTx(ctx, gdb, p.ID), context.Canceled)

	require.NoError(t, recomputeRatingInTx(context.Background(), gdb, p.ID))
	var got products.Product
	require.NoError(t, gdb.First(&got, "id = ?", p.ID).Error)
	assert.InDelta(t, 4.5, got.RatingAvg, 0.001)
	assert.Equal(t, 2, got.RatingCount)
}
