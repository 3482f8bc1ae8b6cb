package order

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/omeyang/xseckill/pkg/mq/xstream"
)

func TestDecode(t *testing.T) {
	ev, err := Decode(xstream.Message{ID: "1-0", Values: map[string]any{
		"id": "123456789012", "userId": "7", "voucherId": "10",
	}})
	require.NoError(t, err)
	assert.Equal(t, Event{OrderID: 123456789012, UserID: 7, VoucherID: 10}, ev)
}

func TestDecode_Invalid(t *testing.T) {
	tests := []struct {
		name   string
		values map[string]any
	}{
		{"missing id", map[string]any{"userId": "7", "voucherId": "10"}},
		{"missing user", map[string]any{"id": "1", "voucherId": "10"}},
		{"non numeric", map[string]any{"id": "abc", "userId": "7", "voucherId": "10"}},
		{"zero voucher", map[string]any{"id": "1", "userId": "7", "voucherId": "0"}},
		{"negative user", map[string]any{"id": "1", "userId": "-7", "voucherId": "10"}},
		{"empty", map[string]any{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode(xstream.Message{ID: "1-0", Values: tt.values})
			assert.ErrorIs(t, err, ErrBadEvent)
		})
	}
}

func TestOutcome_String(t *testing.T) {
	assert.Equal(t, "created", Created.String())
	assert.Equal(t, "duplicate", Duplicate.String())
	assert.Equal(t, "sold_out", SoldOut.String())
	assert.Equal(t, "Outcome(9)", Outcome(9).String())
}
