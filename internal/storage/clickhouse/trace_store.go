package clickhouse

import (
	"context"
	"fmt"

	"solana-copy-trader/internal/domain"
	"solana-copy-trader/internal/storage"
)

// TraceStore implements storage.TraceStore using ClickHouse.
type TraceStore struct {
	conn *Conn
}

// NewTraceStore creates a new TraceStore.
func NewTraceStore(conn *Conn) *TraceStore {
	return &TraceStore{conn: conn}
}

// Compile-time interface check.
var _ storage.TraceStore = (*TraceStore)(nil)

// Insert adds a trace. Returns ErrDuplicateKey if the signal ID exists.
func (s *TraceStore) Insert(ctx context.Context, t *domain.SignalTrace) error {
	if t == nil || t.SignalID == "" {
		return storage.ErrInvalidInput
	}

	var existing uint64
	if err := s.conn.QueryRow(ctx,
		`SELECT count() FROM signal_traces WHERE signal_id = ?`, t.SignalID,
	).Scan(&existing); err != nil {
		return fmt.Errorf("check exists: %w", err)
	}
	if existing > 0 {
		return storage.ErrDuplicateKey
	}

	query := `
		INSERT INTO signal_traces (
			signal_id, source, mint, direction, venue, final_state, reason,
			eligible, planned, confirmed, failed, observed_at, finished_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	err := s.conn.Exec(ctx, query,
		t.SignalID, t.Source, t.Mint, string(t.Direction), string(t.Venue), string(t.FinalState), t.Reason,
		uint32(t.Eligible), uint32(t.Planned), uint32(t.Confirmed), uint32(t.Failed),
		t.ObservedAt.UTC(), t.FinishedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("insert signal trace: %w", err)
	}
	return nil
}

// GetByMint retrieves traces for a mint ordered by observed_at ASC.
func (s *TraceStore) GetByMint(ctx context.Context, mint string) ([]*domain.SignalTrace, error) {
	query := `
		SELECT
			signal_id, source, mint, direction, venue, final_state, reason,
			eligible, planned, confirmed, failed, observed_at, finished_at
		FROM signal_traces FINAL
		WHERE mint = ?
		ORDER BY observed_at ASC
	`

	rows, err := s.conn.Query(ctx, query, mint)
	if err != nil {
		return nil, fmt.Errorf("query traces by mint: %w", err)
	}
	defer rows.Close()

	var result []*domain.SignalTrace
	for rows.Next() {
		var (
			t                               domain.SignalTrace
			direction, venue, state         string
			eligible, planned, conf, failed uint32
		)
		if err := rows.Scan(
			&t.SignalID, &t.Source, &t.Mint, &direction, &venue, &state, &t.Reason,
			&eligible, &planned, &conf, &failed, &t.ObservedAt, &t.FinishedAt,
		); err != nil {
			return nil, fmt.Errorf("scan trace: %w", err)
		}
		t.Direction = domain.Direction(direction)
		t.Venue = domain.Venue(venue)
		t.FinalState = domain.SignalState(state)
		t.Eligible, t.Planned, t.Confirmed, t.Failed = int(eligible), int(planned), int(conf), int(failed)
		result = append(result, &t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate traces: %w", err)
	}
	return result, nil
}
