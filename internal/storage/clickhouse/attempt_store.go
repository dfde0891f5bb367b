package clickhouse

import (
	"context"
	"fmt"
	"time"

	"solana-copy-trader/internal/domain"
	"solana-copy-trader/internal/observability"
	"solana-copy-trader/internal/storage"
)

// AttemptStore implements storage.AttemptStore using ClickHouse.
type AttemptStore struct {
	conn *Conn
}

// NewAttemptStore creates a new AttemptStore.
func NewAttemptStore(conn *Conn) *AttemptStore {
	return &AttemptStore{conn: conn}
}

// Compile-time interface check.
var _ storage.AttemptStore = (*AttemptStore)(nil)

// InsertBulk adds attempts in one batch. Fails entire batch on any duplicate.
func (s *AttemptStore) InsertBulk(ctx context.Context, attempts []*domain.SubmissionAttempt) (err error) {
	if len(attempts) == 0 {
		return nil
	}
	start := time.Now()
	defer func() { observability.RecordDBQuery("clickhouse", "insert_attempts", time.Since(start).Seconds(), err) }()

	// MergeTree does not enforce uniqueness, so append-only is checked here.
	seen := make(map[string]struct{}, len(attempts))
	ids := make([]string, 0, len(attempts))
	for _, a := range attempts {
		if a == nil || a.ID == "" || a.PlanID == "" {
			return storage.ErrInvalidInput
		}
		if _, exists := seen[a.ID]; exists {
			return storage.ErrDuplicateKey
		}
		seen[a.ID] = struct{}{}
		ids = append(ids, a.ID)
	}

	var existing uint64
	if err := s.conn.QueryRow(ctx,
		`SELECT count() FROM submission_attempts WHERE id IN (?)`, ids,
	).Scan(&existing); err != nil {
		return fmt.Errorf("check existing attempts: %w", err)
	}
	if existing > 0 {
		return storage.ErrDuplicateKey
	}

	batch, err := s.conn.PrepareBatch(ctx, `
		INSERT INTO submission_attempts (
			id, plan_id, wallet, mint, venue, direction, channel, signature,
			submitted_at, finished_at, status, slot, error
		)
	`)
	if err != nil {
		return fmt.Errorf("prepare batch: %w", err)
	}

	for _, a := range attempts {
		err = batch.Append(
			a.ID, a.PlanID, a.Wallet, a.Mint, string(a.Venue), string(a.Direction), a.Channel, a.Signature,
			a.SubmittedAt.UTC(), a.FinishedAt.UTC(), string(a.Status), a.Slot, a.Error,
		)
		if err != nil {
			return fmt.Errorf("append to batch: %w", err)
		}
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("send batch: %w", err)
	}
	return nil
}

// GetByPlanID retrieves attempts for a plan ordered by submitted_at ASC.
func (s *AttemptStore) GetByPlanID(ctx context.Context, planID string) ([]*domain.SubmissionAttempt, error) {
	query := `
		SELECT
			id, plan_id, wallet, mint, venue, direction, channel, signature,
			submitted_at, finished_at, status, slot, error
		FROM submission_attempts FINAL
		WHERE plan_id = ?
		ORDER BY submitted_at ASC, channel ASC
	`

	rows, err := s.conn.Query(ctx, query, planID)
	if err != nil {
		return nil, fmt.Errorf("query attempts by plan: %w", err)
	}
	defer rows.Close()

	var result []*domain.SubmissionAttempt
	for rows.Next() {
		var (
			a                        domain.SubmissionAttempt
			venue, direction, status string
		)
		if err := rows.Scan(
			&a.ID, &a.PlanID, &a.Wallet, &a.Mint, &venue, &direction, &a.Channel, &a.Signature,
			&a.SubmittedAt, &a.FinishedAt, &status, &a.Slot, &a.Error,
		); err != nil {
			return nil, fmt.Errorf("scan attempt: %w", err)
		}
		a.Venue = domain.Venue(venue)
		a.Direction = domain.Direction(direction)
		a.Status = domain.AttemptStatus(status)
		result = append(result, &a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate attempts: %w", err)
	}
	return result, nil
}
