package orders

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNextStatus(t *testing.T) {
	tests := []struct {
		from, action, want string
	}{
		{StatusCreated, ActionCancel, StatusCancelled},
		{StatusCreated, ActionExpire, StatusCancelled},
		{StatusPaid, ActionShip, StatusShipped},
		{StatusShipped, ActionDeliver, StatusDelivered},
		{StatusPaid, ActionCancel, ""},
		{StatusCreated, ActionShip, ""},
		{StatusDelivered, ActionDeliver, ""},
		{StatusRefunded, ActionShip, ""},
		{StatusPaid, "refund", ""},
	}
	for _, tt := range tests {
		got, err := nextStatus(tt.from, tt.action)
		if tt.want == "" {
			assert.ErrorIs(t, err, ErrInvalidTransition, "%s/%s", tt.from, tt.action)
			continue
		}
		assert.NoError(t, err)
		assert.Equal(t, tt.want, got, "%s/%s", tt.from, tt.action)
	}
}
