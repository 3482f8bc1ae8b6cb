package domain

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestSeckillVoucher_CheckWindow(t *testing.T) {
	begin := time.Date(2026, 1, 1, 10, 0, 0, 0, time.UTC)
	v := SeckillVoucher{VoucherID: 1, Stock: 10, BeginTime: begin, EndTime: begin.Add(time.Hour)}

	assert.ErrorIs(t, v.CheckWindow(begin.Add(-time.Second)), ErrSeckillNotStarted)
	assert.NoError(t, v.CheckWindow(begin))
	assert.NoError(t, v.CheckWindow(begin.Add(30*time.Minute)))
	assert.ErrorIs(t, v.CheckWindow(begin.Add(2*time.Hour)), ErrSeckillEnded)

	open := SeckillVoucher{BeginTime: begin}
	assert.NoError(t, open.CheckWindow(begin.AddDate(1, 0, 0)))
}

func TestIsBusinessError(t *testing.T) {
	assert.True(t, IsBusinessError(ErrStockExhausted))
	assert.True(t, IsBusinessError(fmt.Errorf("seckill: %w", ErrDuplicateOrder)))
	assert.True(t, IsBusinessError(ErrSeckillEnded))
	assert.False(t, IsBusinessError(ErrLockNotAcquired))
	assert.False(t, IsBusinessError(errors.New("connection refused")))
	assert.False(t, IsBusinessError(nil))
}
