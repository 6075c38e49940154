package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"booking-engine/internal/domain"
	"booking-engine/internal/telemetry"
)

// PostgresHoldStore implements HoldStore using PostgreSQL with pgxpool.
// Status transitions use conditional UPDATEs (WHERE status = 'HELD') so a
// record can never leave a terminal state.
type PostgresHoldStore struct {
	pool *pgxpool.Pool
}

// NewPostgresHoldStore creates a new PostgresHoldStore
func NewPostgresHoldStore(pool *pgxpool.Pool) *PostgresHoldStore {
	return &PostgresHoldStore{pool: pool}
}

const holdColumns = `
	id, user_id, showing_id, status, seats, total_cents,
	expires_at, payment_ref, confirmation_code, status_reason,
	created_at, updated_at, confirmed_at, cancelled_at
`

// Create persists a new hold in HELD status
func (s *PostgresHoldStore) Create(ctx context.Context, hold *domain.Hold) error {
	ctx, span := telemetry.StartSpan(ctx, "repo.postgres.hold.create")
	defer span.End()

	span.SetAttributes(
		attribute.String("hold_id", hold.ID),
		attribute.String("user_id", hold.UserID),
		attribute.String("showing_id", hold.ShowingID),
	)

	seats, err := json.Marshal(hold.Seats)
	if err != nil {
		return fmt.Errorf("failed to marshal hold seats: %w", err)
	}

	query := `
		INSERT INTO holds (
			id, user_id, showing_id, status, seats, total_cents,
			expires_at, payment_ref, confirmation_code, status_reason,
			created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5, $6,
			$7, $8, $9, $10,
			$11, $12
		)
	`

	_, err = s.pool.Exec(ctx, query,
		hold.ID,
		hold.UserID,
		hold.ShowingID,
		hold.Status.String(),
		seats,
		hold.TotalCents,
		hold.ExpiresAt,
		nullString(hold.PaymentRef),
		nullString(hold.ConfirmationCode),
		nullString(hold.StatusReason),
		hold.CreatedAt,
		hold.UpdatedAt,
	)
	if err != nil {
		// The partial unique index on (user_id, showing_id) backs the
		// one-active-hold-per-user precondition at the store level.
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" && pgErr.ConstraintName == "idx_holds_active_user_showing" {
			return domain.ErrDuplicateHold
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("failed to create hold: %w", err)
	}

	span.SetStatus(codes.Ok, "")
	return nil
}

// GetByID returns a hold by its id
func (s *PostgresHoldStore) GetByID(ctx context.Context, holdID string) (*domain.Hold, error) {
	ctx, span := telemetry.StartSpan(ctx, "repo.postgres.hold.get_by_id")
	defer span.End()

	span.SetAttributes(attribute.String("hold_id", holdID))

	query := `SELECT ` + holdColumns + ` FROM holds WHERE id = $1`
	hold, err := scanHold(s.pool.QueryRow(ctx, query, holdID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrHoldNotFound
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("failed to get hold: %w", err)
	}

	span.SetStatus(codes.Ok, "")
	return hold, nil
}

// GetActiveByUser returns the caller's unexpired HELD records
func (s *PostgresHoldStore) GetActiveByUser(ctx context.Context, userID string, now time.Time) ([]*domain.Hold, error) {
	ctx, span := telemetry.StartSpan(ctx, "repo.postgres.hold.get_active_by_user")
	defer span.End()

	span.SetAttributes(attribute.String("user_id", userID))

	query := `
		SELECT ` + holdColumns + `
		FROM holds
		WHERE user_id = $1 AND status = 'HELD' AND expires_at > $2
		ORDER BY created_at DESC
	`
	return s.queryHolds(ctx, span, query, userID, now)
}

// GetActiveByUserAndShowing returns the caller's active hold on a showing,
// or (nil, nil) when there is none
func (s *PostgresHoldStore) GetActiveByUserAndShowing(ctx context.Context, userID, showingID string, now time.Time) (*domain.Hold, error) {
	ctx, span := telemetry.StartSpan(ctx, "repo.postgres.hold.get_active_by_user_showing")
	defer span.End()

	span.SetAttributes(
		attribute.String("user_id", userID),
		attribute.String("showing_id", showingID),
	)

	query := `
		SELECT ` + holdColumns + `
		FROM holds
		WHERE user_id = $1 AND showing_id = $2 AND status = 'HELD' AND expires_at > $3
		LIMIT 1
	`
	hold, err := scanHold(s.pool.QueryRow(ctx, query, userID, showingID, now))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("failed to get active hold: %w", err)
	}

	span.SetStatus(codes.Ok, "")
	return hold, nil
}

// GetByUser returns the caller's records, newest first
func (s *PostgresHoldStore) GetByUser(ctx context.Context, userID string, limit, offset int) ([]*domain.Hold, error) {
	ctx, span := telemetry.StartSpan(ctx, "repo.postgres.hold.get_by_user")
	defer span.End()

	span.SetAttributes(
		attribute.String("user_id", userID),
		attribute.Int("limit", limit),
		attribute.Int("offset", offset),
	)

	query := `
		SELECT ` + holdColumns + `
		FROM holds
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`
	return s.queryHolds(ctx, span, query, userID, limit, offset)
}

// GetExpired returns HELD records whose deadline has passed
func (s *PostgresHoldStore) GetExpired(ctx context.Context, now time.Time, limit int) ([]*domain.Hold, error) {
	ctx, span := telemetry.StartSpan(ctx, "repo.postgres.hold.get_expired")
	defer span.End()

	span.SetAttributes(attribute.Int("limit", limit))

	query := `
		SELECT ` + holdColumns + `
		FROM holds
		WHERE status = 'HELD' AND expires_at <= $1
		ORDER BY expires_at ASC
		LIMIT $2
	`
	return s.queryHolds(ctx, span, query, now, limit)
}

// Confirm transitions a HELD record to CONFIRMED
func (s *PostgresHoldStore) Confirm(ctx context.Context, holdID, paymentRef, confirmationCode string, at time.Time) error {
	ctx, span := telemetry.StartSpan(ctx, "repo.postgres.hold.confirm")
	defer span.End()

	span.SetAttributes(attribute.String("hold_id", holdID))

	query := `
		UPDATE holds
		SET status = 'CONFIRMED',
		    payment_ref = $2,
		    confirmation_code = $3,
		    expires_at = NULL,
		    confirmed_at = $4,
		    updated_at = $4
		WHERE id = $1 AND status = 'HELD'
	`
	tag, err := s.pool.Exec(ctx, query, holdID, paymentRef, confirmationCode, at)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("failed to confirm hold: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return s.transitionFailure(ctx, holdID)
	}

	span.SetStatus(codes.Ok, "")
	return nil
}

// Cancel transitions a HELD record to CANCELLED
func (s *PostgresHoldStore) Cancel(ctx context.Context, holdID, reason string, at time.Time) error {
	ctx, span := telemetry.StartSpan(ctx, "repo.postgres.hold.cancel")
	defer span.End()

	span.SetAttributes(attribute.String("hold_id", holdID))

	query := `
		UPDATE holds
		SET status = 'CANCELLED',
		    status_reason = $2,
		    expires_at = NULL,
		    cancelled_at = $3,
		    updated_at = $3
		WHERE id = $1 AND status = 'HELD'
	`
	tag, err := s.pool.Exec(ctx, query, holdID, reason, at)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("failed to cancel hold: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return s.transitionFailure(ctx, holdID)
	}

	span.SetStatus(codes.Ok, "")
	return nil
}

// transitionFailure distinguishes a missing record from one that already
// left HELD
func (s *PostgresHoldStore) transitionFailure(ctx context.Context, holdID string) error {
	var exists bool
	err := s.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM holds WHERE id = $1)`, holdID).Scan(&exists)
	if err != nil {
		return fmt.Errorf("failed to check hold existence: %w", err)
	}
	if !exists {
		return domain.ErrHoldNotFound
	}
	return domain.ErrHoldNotActive
}

func (s *PostgresHoldStore) queryHolds(ctx context.Context, span telemetry.Span, query string, args ...interface{}) ([]*domain.Hold, error) {
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("failed to query holds: %w", err)
	}
	defer rows.Close()

	var holds []*domain.Hold
	for rows.Next() {
		hold, err := scanHold(rows)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return nil, fmt.Errorf("failed to scan hold: %w", err)
		}
		holds = append(holds, hold)
	}
	if err := rows.Err(); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("failed to iterate holds: %w", err)
	}

	span.SetStatus(codes.Ok, "")
	return holds, nil
}

// scanHold maps one row onto a domain.Hold
func scanHold(row pgx.Row) (*domain.Hold, error) {
	hold := &domain.Hold{}
	var (
		status           string
		seats            []byte
		expiresAt        *time.Time
		paymentRef       *string
		confirmationCode *string
		statusReason     *string
		confirmedAt      *time.Time
		cancelledAt      *time.Time
	)

	err := row.Scan(
		&hold.ID,
		&hold.UserID,
		&hold.ShowingID,
		&status,
		&seats,
		&hold.TotalCents,
		&expiresAt,
		&paymentRef,
		&confirmationCode,
		&statusReason,
		&hold.CreatedAt,
		&hold.UpdatedAt,
		&confirmedAt,
		&cancelledAt,
	)
	if err != nil {
		return nil, err
	}

	hold.Status = domain.HoldStatus(status)
	if err := json.Unmarshal(seats, &hold.Seats); err != nil {
		return nil, fmt.Errorf("failed to unmarshal hold seats: %w", err)
	}
	hold.ExpiresAt = expiresAt
	hold.ConfirmedAt = confirmedAt
	hold.CancelledAt = cancelledAt
	if paymentRef != nil {
		hold.PaymentRef = *paymentRef
	}
	if confirmationCode != nil {
		hold.ConfirmationCode = *confirmationCode
	}
	if statusReason != nil {
		hold.StatusReason = *statusReason
	}
	return hold, nil
}

// nullString maps empty strings to NULL
func nullString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
