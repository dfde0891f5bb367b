package ledger

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"solana-copy-trader/internal/domain"
	"solana-copy-trader/internal/storage/memory"
)

type flakyStore struct {
	*memory.PositionStore
	fail bool
}

func (s *flakyStore) Upsert(ctx context.Context, p *domain.Position) error {
	if s.fail {
		return errors.New("db down")
	}
	return s.PositionStore.Upsert(ctx, p)
}

func TestPersister_CoalescesAndWrites(t *testing.T) {
	store := memory.NewPositionStore()
	p := NewPersister(store, time.Second, zerolog.Nop())
	l := New(Options{OnChange: p.Offer, AllowPyramiding: true})

	_, err := l.OnConfirmed(buy("a1", "p1", 10, "1"))
	require.NoError(t, err)
	_, err = l.OnConfirmed(buy("a2", "p1", 10, "1"))
	require.NoError(t, err)
	assert.Equal(t, 1, p.Pending())

	p.Flush(context.Background())
	assert.Equal(t, 0, p.Pending())

	got, err := store.Get(context.Background(), w1, m1)
	require.NoError(t, err)
	assert.Equal(t, uint64(20), got.Quantity)
}

func TestPersister_RequeuesFailedWrite(t *testing.T) {
	store := &flakyStore{PositionStore: memory.NewPositionStore(), fail: true}
	p := NewPersister(store, time.Second, zerolog.Nop())

	p.Offer(domain.Position{Wallet: w1, Mint: m1, Quantity: 1, Status: domain.PositionOpen})
	p.Flush(context.Background())
	assert.Equal(t, 1, p.Pending())

	store.fail = false
	p.Flush(context.Background())
	assert.Equal(t, 0, p.Pending())
}

func TestPersister_RunDrainsOnShutdown(t *testing.T) {
	store := memory.NewPositionStore()
	p := NewPersister(store, time.Second, zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		_ = p.Run(ctx)
		close(done)
	}()

	p.Offer(domain.Position{Wallet: w1, Mint: m1, Quantity: 7, Status: domain.PositionOpen})
	cancel()
	<-done

	got, err := store.Get(context.Background(), w1, m1)
	require.NoError(t, err)
	assert.Equal(t, uint64(7), got.Quantity)
}

func TestLoad_RestoresLedger(t *testing.T) {
	store := memory.NewPositionStore()
	require.NoError(t, store.Upsert(context.Background(), &domain.Position{
		Wallet: w1, Mint: m1, Quantity: 50, Status: domain.PositionOpen,
		AvgEntryPrice: decimal.NewFromInt(2), OpenedBy: "p0", Fills: 1,
	}))

	l := New(Options{})
	n, err := Load(context.Background(), l, store)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.True(t, l.HasOpen(w1, m1))

	_, err = l.OnConfirmed(buy("a1", "p1", 1, "1"))
	assert.ErrorIs(t, err, domain.ErrLedgerConflict)
}

type memBlob struct {
	mu    sync.Mutex
	paths []string
	body  string
}

func (b *memBlob) Put(_ context.Context, path string, data io.Reader, _ string) error {
	var buf bytes.Buffer
	if _, err := io.Copy(&buf, data); err != nil {
		return err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.paths = append(b.paths, path)
	b.body = buf.String()
	return nil
}

func TestArchiver_Snapshot(t *testing.T) {
	l := New(Options{})
	blob := &memBlob{}
	a := NewArchiver(l, blob, time.Minute, "", zerolog.Nop())
	a.now = func() time.Time { return time.Date(2026, 10, 19, 15, 45, 1, 0, time.UTC) }

	path, n, err := a.Snapshot(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, n, "empty ledger uploads nothing")
	assert.Empty(t, path)

	_, err = l.OnConfirmed(buy("a1", "p1", 10, "1.5"))
	require.NoError(t, err)

	path, n, err = a.Snapshot(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, "positions/2026-10-19/154501.jsonl", path)
	assert.True(t, strings.Contains(blob.body, `"avg_entry_price":"1.5"`), blob.body)
	assert.True(t, strings.HasSuffix(blob.body, "\n"))
}
