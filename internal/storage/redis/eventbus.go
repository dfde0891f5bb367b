package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"solana-copy-trader/internal/storage"
)

// streamMaxLen bounds each stream through XADD MAXLEN ~.
const streamMaxLen int64 = 10000

// payloadField is the stream entry field holding the message body.
const payloadField = "payload"

// EventBus implements storage.EventBus on Redis Streams.
type EventBus struct {
	rdb *redis.Client
}

// NewEventBus creates an EventBus backed by c.
func NewEventBus(c *Client) *EventBus {
	return &EventBus{rdb: c.Underlying()}
}

// StreamAppend appends payload to stream, trimming it to roughly
// streamMaxLen entries.
func (b *EventBus) StreamAppend(ctx context.Context, stream string, payload []byte) error {
	args := &redis.XAddArgs{
		Stream: stream,
		MaxLen: streamMaxLen,
		Approx: true,
		Values: map[string]interface{}{payloadField: payload},
	}
	if err := b.rdb.XAdd(ctx, args).Err(); err != nil {
		return fmt.Errorf("redis: stream append %s: %w", stream, err)
	}
	return nil
}

// StreamRead reads up to count messages after lastID. "$" reads only new
// messages and "0" reads from the beginning. A block of zero returns at once;
// otherwise the call waits up to block for data. No data is not an error.
func (b *EventBus) StreamRead(ctx context.Context, stream, lastID string, count int, block time.Duration) ([]storage.StreamMessage, error) {
	args := &redis.XReadArgs{
		Streams: []string{stream, lastID},
		Count:   int64(count),
		Block:   block,
	}
	if block <= 0 {
		// go-redis treats a negative Block as "do not block".
		args.Block = -1
	}

	results, err := b.rdb.XRead(ctx, args).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("redis: stream read %s: %w", stream, err)
	}

	var messages []storage.StreamMessage
	for _, s := range results {
		for _, msg := range s.Messages {
			var data []byte
			switch v := msg.Values[payloadField].(type) {
			case string:
				data = []byte(v)
			case []byte:
				data = v
			default:
				continue
			}
			messages = append(messages, storage.StreamMessage{ID: msg.ID, Payload: data})
		}
	}
	return messages, nil
}

var _ storage.EventBus = (*EventBus)(nil)
