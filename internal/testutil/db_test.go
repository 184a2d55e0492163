package testutil

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"shirly.shop/app/internal/modules/auth"
	"shirly.shop/app/internal/modules/orders"
)

func TestTimeColumnsScanBack(t *testing.T) {
	gdb := DB(t)
	u := CreateUser(t, gdb, "time@example.com", "")

	var got auth.User
	require.NoError(t, gdb.First(&got, "id = ?", u.ID).Error)
	assert.WithinDuration(t, u.CreatedAt, got.CreatedAt, time.Millisecond)

	paid := time.Now().UTC().Truncate(time.Millisecond)
	o := orders.Order{
		ID:             uuid.NewString(),
		UserID:         u.ID,
		Status:         orders.StatusPaid,
		Currency:       "USD",
		IdempotencyKey: "k1",
		PaidAt:         &paid,
	}
	require.NoError(t, gdb.Create(&o).Error)

	var back orders.Order
	require.NoError(t, gdb.First(&back, "id = ?", o.ID).Error)
	require.NotNil(t, back.PaidAt)
	assert.True(t, paid.Equal(back.PaidAt.UTC()))
	assert.Nil(t, back.CancelledAt)
	assert.False(t, back.CreatedAt.IsZero())
}
