package solana

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingSource struct {
	calls atomic.Int32
	err   error
}

func (s *countingSource) GetLatestBlockhash(context.Context) (*Blockhash, error) {
	n := s.calls.Add(1)
	if s.err != nil {
		return nil, s.err
	}
	return &Blockhash{Hash: "hash", Slot: uint64(n)}, nil
}

func TestBlockhashCache_GetUsesCache(t *testing.T) {
	src := &countingSource{}
	c := NewBlockhashCache(src, time.Second, time.Minute, zerolog.Nop())

	ctx := context.Background()
	first, err := c.Get(ctx)
	require.NoError(t, err)
	second, err := c.Get(ctx)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, int32(1), src.calls.Load())
}

func TestBlockhashCache_StaleRefetches(t *testing.T) {
	src := &countingSource{}
	c := NewBlockhashCache(src, time.Second, time.Millisecond, zerolog.Nop())

	ctx := context.Background()
	_, err := c.Get(ctx)
	require.NoError(t, err)
	time.Sleep(5 * time.Millisecond)
	bh, err := c.Get(ctx)
	require.NoError(t, err)

	assert.Equal(t, uint64(2), bh.Slot)
}

func TestBlockhashCache_Error(t *testing.T) {
	c := NewBlockhashCache(&countingSource{err: errors.New("down")}, time.Second, time.Minute, zerolog.Nop())
	_, err := c.Get(context.Background())
	assert.ErrorIs(t, err, ErrNoBlockhash)
}

func TestBlockhashCache_Run(t *testing.T) {
	src := &countingSource{}
	c := NewBlockhashCache(src, 10*time.Millisecond, time.Minute, zerolog.Nop())

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Millisecond)
	defer cancel()
	require.NoError(t, c.Run(ctx))

	assert.GreaterOrEqual(t, src.calls.Load(), int32(3))
}
