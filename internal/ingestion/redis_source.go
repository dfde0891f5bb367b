package ingestion

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	"github.com/sugawarayuuta/sonnet"

	"solana-copy-trader/internal/domain"
	"solana-copy-trader/internal/storage"
)

// DefaultObservationStream is the stream an external feed (a geyser relay,
// for instance) publishes observations to.
const DefaultObservationStream = "copytrader:observations"

// StreamReader reads a durable stream. Satisfied by the Redis event bus.
type StreamReader interface {
	StreamRead(ctx context.Context, stream, lastID string, count int, block time.Duration) ([]storage.StreamMessage, error)
}

// streamObservation is the JSON shape published to the stream.
type streamObservation struct {
	Signature   string   `json:"signature"`
	Slot        uint64   `json:"slot"`
	BlockTime   int64    `json:"block_time"`
	Wallet      string   `json:"wallet"`
	Mint        string   `json:"mint"`
	Side        string   `json:"side"`
	TokenAmount uint64   `json:"token_amount"`
	SolAmount   uint64   `json:"sol_amount"`
	PreBalance  uint64   `json:"pre_balance"`
	Programs    []string `json:"programs"`
	Creator     string   `json:"creator,omitempty"`
	MintCreated bool     `json:"mint_created,omitempty"`
	Curve       *struct {
		VirtualSol   uint64 `json:"virtual_sol"`
		VirtualToken uint64 `json:"virtual_token"`
		RealSol      uint64 `json:"real_sol"`
		RealToken    uint64 `json:"real_token"`
	} `json:"curve,omitempty"`
}

// RedisStreamSource consumes pre-normalized observations from a stream.
type RedisStreamSource struct {
	reader StreamReader
	stream string
	lastID string
	batch  int
	block  time.Duration
	log    zerolog.Logger
}

// NewRedisStreamSource reads stream starting after the newest entry.
func NewRedisStreamSource(reader StreamReader, stream string, logger zerolog.Logger) *RedisStreamSource {
	if stream == "" {
		stream = DefaultObservationStream
	}
	return &RedisStreamSource{
		reader: reader,
		stream: stream,
		lastID: "$",
		batch:  100,
		block:  time.Second,
		log:    logger.With().Str("component", "redis_source").Str("stream", stream).Logger(),
	}
}

// Name implements Source.
func (s *RedisStreamSource) Name() string { return "redis" }

// Subscribe implements Source.
func (s *RedisStreamSource) Subscribe(ctx context.Context) (<-chan domain.Observation, error) {
	out := make(chan domain.Observation, 100)
	go func() {
		defer close(out)
		for ctx.Err() == nil {
			msgs, err := s.reader.StreamRead(ctx, s.stream, s.lastID, s.batch, s.block)
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				s.log.Warn().Err(err).Msg("stream read failed")
				select {
				case <-time.After(time.Second):
				case <-ctx.Done():
					return
				}
				continue
			}
			for _, m := range msgs {
				s.lastID = m.ID
				obs, err := decodeObservation(m.Payload)
				if err != nil {
					s.log.Warn().Err(err).Str("id", m.ID).Msg("malformed observation")
					continue
				}
				select {
				case out <- obs:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, nil
}

func decodeObservation(payload []byte) (domain.Observation, error) {
	var so streamObservation
	if err := sonnet.Unmarshal(payload, &so); err != nil {
		return domain.Observation{}, err
	}
	obs := domain.Observation{
		Signature:   so.Signature,
		Slot:        so.Slot,
		Wallet:      so.Wallet,
		Mint:        so.Mint,
		Direction:   domain.Direction(so.Side),
		Amount:      so.TokenAmount,
		SolAmount:   so.SolAmount,
		PreBalance:  so.PreBalance,
		ProgramRefs: so.Programs,
		Hints: domain.VenueHints{
			Creator:     so.Creator,
			MintCreated: so.MintCreated,
		},
	}
	if so.BlockTime > 0 {
		obs.BlockTime = time.Unix(so.BlockTime, 0).UTC()
	}
	if so.Curve != nil {
		obs.Hints.Curve = &domain.CurveParams{
			VirtualSolReserves:   so.Curve.VirtualSol,
			VirtualTokenReserves: so.Curve.VirtualToken,
			RealSolReserves:      so.Curve.RealSol,
			RealTokenReserves:    so.Curve.RealToken,
		}
	}
	return obs, nil
}
