package postgres

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/alanyoungcy/btcsniper/internal/domain"
)

// DecisionStore implements domain.DecisionJournal.
type DecisionStore struct {
	pool *pgxpool.Pool
}

// NewDecisionStore creates a DecisionStore backed by pool.
func NewDecisionStore(pool *pgxpool.Pool) *DecisionStore {
	return &DecisionStore{pool: pool}
}

// Record inserts rec. Re-recording an id updates the outcome fields only.
func (s *DecisionStore) Record(ctx context.Context, rec domain.DecisionRecord) error {
	const query = `
		INSERT INTO decisions (
			id, condition_id, action, confidence, reasoning,
			btc_price, yes_price, no_price, limit_price, fee,
			outcome, order_status, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		ON CONFLICT (id) DO UPDATE SET
			outcome      = EXCLUDED.outcome,
			order_status = EXCLUDED.order_status`

	_, err := s.pool.Exec(ctx, query,
		rec.ID, rec.ConditionID, string(rec.Action), rec.Confidence, rec.Reasoning,
		rec.BTCPrice, rec.YesPrice, rec.NoPrice, rec.LimitPrice, rec.Fee,
		string(rec.Outcome), string(rec.OrderStatus), rec.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("postgres: record decision %s: %w", rec.ID, err)
	}
	return nil
}

// List returns journaled decisions, newest first.
func (s *DecisionStore) List(ctx context.Context, opts domain.ListOpts) ([]domain.DecisionRecord, error) {
	query, args := listQuery(`
		SELECT id, condition_id, action, confidence, reasoning,
		       btc_price, yes_price, no_price, limit_price, fee,
		       outcome, order_status, created_at
		FROM decisions`, opts)

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: list decisions: %w", err)
	}
	defer rows.Close()

	var out []domain.DecisionRecord
	for rows.Next() {
		var (
			r                       domain.DecisionRecord
			action, outcome, status string
		)
		if err := rows.Scan(
			&r.ID, &r.ConditionID, &action, &r.Confidence, &r.Reasoning,
			&r.BTCPrice, &r.YesPrice, &r.NoPrice, &r.LimitPrice, &r.Fee,
			&outcome, &status, &r.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("postgres: scan decision: %w", err)
		}
		r.Action = domain.Action(action)
		r.Outcome = domain.BriefOutcome(outcome)
		r.OrderStatus = domain.OrderStatus(status)
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: list decisions rows: %w", err)
	}
	return out, nil
}

// listQuery appends the since filter, newest-first ordering and paging to
// base.
func listQuery(base string, opts domain.ListOpts) (string, []any) {
	var sb strings.Builder
	sb.WriteString(strings.TrimSpace(base))
	args := []any{}

	if opts.Since != nil {
		args = append(args, *opts.Since)
		fmt.Fprintf(&sb, " WHERE created_at >= $%d", len(args))
	}
	sb.WriteString(" ORDER BY created_at DESC")
	if opts.Limit > 0 {
		args = append(args, opts.Limit)
		fmt.Fprintf(&sb, " LIMIT $%d", len(args))
	}
	if opts.Offset > 0 {
		args = append(args, opts.Offset)
		fmt.Fprintf(&sb, " OFFSET $%d", len(args))
	}
	return sb.String(), args
}
