package ledger

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"time"

	"github.com/rs/zerolog"
	"github.com/sugawarayuuta/sonnet"
)

// BlobWriter uploads an object. Satisfied by the S3 archive writer.
type BlobWriter interface {
	Put(ctx context.Context, path string, data io.Reader, contentType string) error
}

// Archiver periodically uploads a JSONL snapshot of every position.
type Archiver struct {
	ledger   *Ledger
	writer   BlobWriter
	interval time.Duration
	prefix   string
	now      func() time.Time
	log      zerolog.Logger
}

// NewArchiver creates an archiver writing under prefix every interval.
func NewArchiver(l *Ledger, w BlobWriter, interval time.Duration, prefix string, logger zerolog.Logger) *Archiver {
	if interval <= 0 {
		interval = time.Hour
	}
	if prefix == "" {
		prefix = "positions"
	}
	return &Archiver{
		ledger:   l,
		writer:   w,
		interval: interval,
		prefix:   prefix,
		now:      time.Now,
		log:      logger.With().Str("component", "ledger_archiver").Logger(),
	}
}

// snapshotRow is the archived shape of a position.
type snapshotRow struct {
	Wallet        string    `json:"wallet"`
	Mint          string    `json:"mint"`
	Quantity      uint64    `json:"quantity"`
	AvgEntryPrice string    `json:"avg_entry_price"`
	CostBasis     uint64    `json:"cost_basis"`
	RealizedPnL   string    `json:"realized_pnl"`
	Status        string    `json:"status"`
	OpenedBy      string    `json:"opened_by,omitempty"`
	Fills         int       `json:"fills"`
	OpenedAt      time.Time `json:"opened_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// Snapshot uploads the current positions and returns the object path and
// row count. An empty ledger uploads nothing.
func (a *Archiver) Snapshot(ctx context.Context) (string, int, error) {
	positions := a.ledger.Positions()
	if len(positions) == 0 {
		return "", 0, nil
	}

	var buf bytes.Buffer
	for _, p := range positions {
		line, err := sonnet.Marshal(snapshotRow{
			Wallet:        p.Wallet,
			Mint:          p.Mint,
			Quantity:      p.Quantity,
			AvgEntryPrice: p.AvgEntryPrice.String(),
			CostBasis:     p.CostBasis,
			RealizedPnL:   p.RealizedPnL.String(),
			Status:        string(p.Status),
			OpenedBy:      p.OpenedBy,
			Fills:         p.Fills,
			OpenedAt:      p.OpenedAt,
			UpdatedAt:     p.UpdatedAt,
		})
		if err != nil {
			return "", 0, fmt.Errorf("ledger: marshal snapshot: %w", err)
		}
		buf.Write(line)
		buf.WriteByte('\n')
	}

	path := snapshotPath(a.prefix, a.now())
	if err := a.writer.Put(ctx, path, &buf, "application/x-ndjson"); err != nil {
		return "", 0, fmt.Errorf("ledger: upload snapshot: %w", err)
	}
	return path, len(positions), nil
}

// Run snapshots every interval until ctx is done. Upload failures are logged.
func (a *Archiver) Run(ctx context.Context) error {
	ticker := time.NewTicker(a.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			path, n, err := a.Snapshot(ctx)
			if err != nil {
				a.log.Error().Err(err).Msg("position snapshot failed")
				continue
			}
			if n > 0 {
				a.log.Info().Str("path", path).Int("positions", n).Msg("position snapshot uploaded")
			}
		}
	}
}

// snapshotPath partitions snapshots by UTC day:
//
//	positions/2026-10-19/154501.jsonl
func snapshotPath(prefix string, at time.Time) string {
	at = at.UTC()
	return fmt.Sprintf("%s/%s/%s.jsonl", prefix, at.Format("2006-01-02"), at.Format("150405"))
}
