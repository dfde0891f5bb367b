package redis

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"solana-copy-trader/internal/domain"
)

// setupRedis starts a Redis container and returns a connected client.
func setupRedis(t *testing.T) *Client {
	t.Helper()

	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	ctx := context.Background()
	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "redis:7-alpine",
			ExposedPorts: []string{"6379/tcp"},
			WaitingFor:   wait.ForListeningPort("6379/tcp").WithStartupTimeout(60 * time.Second),
		},
		Started: true,
	})
	require.NoError(t, err)

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "6379")
	require.NoError(t, err)

	client, err := New(ctx, ClientConfig{Addr: fmt.Sprintf("%s:%s", host, port.Port()), PoolSize: 4})
	require.NoError(t, err)

	t.Cleanup(func() {
		client.Close()
		_ = container.Terminate(ctx)
	})
	return client
}

func TestRedis(t *testing.T) {
	client := setupRedis(t)
	ctx := context.Background()

	t.Run("stream round trip", func(t *testing.T) {
		bus := NewEventBus(client)
		require.NoError(t, bus.StreamAppend(ctx, "obs", []byte(`{"n":1}`)))
		require.NoError(t, bus.StreamAppend(ctx, "obs", []byte(`{"n":2}`)))

		msgs, err := bus.StreamRead(ctx, "obs", "0", 10, 0)
		require.NoError(t, err)
		require.Len(t, msgs, 2)
		assert.Equal(t, `{"n":1}`, string(msgs[0].Payload))

		msgs, err = bus.StreamRead(ctx, "obs", msgs[1].ID, 10, 0)
		require.NoError(t, err)
		assert.Empty(t, msgs)
	})

	t.Run("stream read blocks until timeout", func(t *testing.T) {
		bus := NewEventBus(client)
		start := time.Now()
		msgs, err := bus.StreamRead(ctx, "quiet", "$", 10, 100*time.Millisecond)
		require.NoError(t, err)
		assert.Empty(t, msgs)
		assert.GreaterOrEqual(t, time.Since(start), 90*time.Millisecond)
	})

	t.Run("inflight lock is exclusive across holders", func(t *testing.T) {
		a := NewInflightLock(client, time.Minute)
		b := NewInflightLock(client, time.Minute)

		ok, err := a.TryAcquire(ctx, "w1", "m1")
		require.NoError(t, err)
		assert.True(t, ok)

		ok, err = b.TryAcquire(ctx, "w1", "m1")
		require.NoError(t, err)
		assert.False(t, ok, "second holder must be refused")

		// A holder that never acquired cannot release.
		b.Release(ctx, "w1", "m1")
		ok, err = b.TryAcquire(ctx, "w1", "m1")
		require.NoError(t, err)
		assert.False(t, ok)

		a.Release(ctx, "w1", "m1")
		ok, err = b.TryAcquire(ctx, "w1", "m1")
		require.NoError(t, err)
		assert.True(t, ok)
	})

	t.Run("inflight claim expires", func(t *testing.T) {
		l := NewInflightLock(client, 50*time.Millisecond)
		ok, err := l.TryAcquire(ctx, "w2", "m2")
		require.NoError(t, err)
		require.True(t, ok)

		time.Sleep(120 * time.Millisecond)
		ok, err = NewInflightLock(client, time.Minute).TryAcquire(ctx, "w2", "m2")
		require.NoError(t, err)
		assert.True(t, ok)
	})

	t.Run("venue store", func(t *testing.T) {
		store := NewVenueStore(client, time.Hour)
		st := domain.VenueState{
			Mint:    "mint1",
			Venue:   domain.VenuePumpFun,
			Curve:   &domain.CurveParams{VirtualSolReserves: 30, VirtualTokenReserves: 1000},
			Creator: "creator1",
		}
		require.NoError(t, store.PublishVenue(ctx, st))

		got, ok, err := store.GetVenue(ctx, "mint1")
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, domain.VenuePumpFun, got.Venue)
		require.NotNil(t, got.Curve)
		assert.Equal(t, uint64(1000), got.Curve.VirtualTokenReserves)

		_, ok, err = store.GetVenue(ctx, "absent")
		require.NoError(t, err)
		assert.False(t, ok)

		all, err := store.LoadVenues(ctx)
		require.NoError(t, err)
		assert.Len(t, all, 1)
	})
}
