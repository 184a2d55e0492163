package shipping

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQuote(t *testing.T) {
	tests := []struct {
		method   string
		subtotal int
		want     int
		err      error
	}{
		{"standard", 9999, StandardCents, nil},
		{"standard", FreeStandardFromCents, 0, nil},
		{"standard", 10001, 0, nil},
		{"express", FreeStandardFromCents, ExpressCents, nil},
		{"", 500, StandardCents, nil},
		{"EXPRESS", 50000, ExpressCents, nil},
		{"drone", 100, 0, ErrUnknownMethod},
	}
	for _, tt := range tests {
		got, err := Quote(tt.method, tt.subtotal)
		if tt.err != nil {
			assert.ErrorIs(t, err, tt.err, tt.method)
			continue
		}
		require.NoError(t, err, tt.method)
		assert.Equal(t, tt.want, got, "%s %d", tt.method, tt.subtotal)
	}
}

func TestOptions(t *testing.T) {
	opts := Options(20000)
	require.Len(t, opts, 2)
	assert.Equal(t, 0, opts[0].PriceCents)
	assert.Equal(t, ExpressCents, opts[1].PriceCents)
}
