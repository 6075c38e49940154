package repository

import (
	"context"
	_ "embed"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"booking-engine/internal/domain"
	"booking-engine/internal/redisclient"
	"booking-engine/internal/telemetry"
)

//go:embed scripts/claim_seats.lua
var claimSeatsScript string

//go:embed scripts/release_seats.lua
var releaseSeatsScript string

//go:embed scripts/reserve_seats.lua
var reserveSeatsScript string

// Script names for caching
const (
	scriptClaimSeats   = "claim_seats"
	scriptReleaseSeats = "release_seats"
	scriptReserveSeats = "reserve_seats"
)

// Cell value encoding inside the cells hash
const (
	cellAvailable    = "AVAILABLE"
	cellHeldPrefix   = "HELD|"
	cellReservedPref = "RESERVED|"
)

// RedisShowingStore implements ShowingStore on Redis. Each showing keeps
// its cells in a hash and its version in a plain counter; every mutation
// runs as a single Lua script so the per-cell checks, the version fence
// and the writes are one atomic server-side step.
type RedisShowingStore struct {
	client *redisclient.Client
}

// NewRedisShowingStore creates a new RedisShowingStore
func NewRedisShowingStore(client *redisclient.Client) *RedisShowingStore {
	return &RedisShowingStore{client: client}
}

// LoadScripts preloads all Lua scripts into Redis
func (s *RedisShowingStore) LoadScripts(ctx context.Context) error {
	scripts := map[string]string{
		scriptClaimSeats:   claimSeatsScript,
		scriptReleaseSeats: releaseSeatsScript,
		scriptReserveSeats: reserveSeatsScript,
	}
	for name, script := range scripts {
		if err := s.client.LoadScript(ctx, name, script); err != nil {
			return fmt.Errorf("failed to load script %s: %w", name, err)
		}
	}
	return nil
}

func metaKey(showingID string) string    { return fmt.Sprintf("showing:%s:meta", showingID) }
func cellsKey(showingID string) string   { return fmt.Sprintf("showing:%s:cells", showingID) }
func versionKey(showingID string) string { return fmt.Sprintf("showing:%s:version", showingID) }

// CreateShowing registers a new showing with its full seat grid
func (s *RedisShowingStore) CreateShowing(ctx context.Context, showing *domain.Showing) error {
	ctx, span := telemetry.StartSpan(ctx, "repo.redis.showing.create")
	defer span.End()

	span.SetAttributes(
		attribute.String("showing_id", showing.ID),
		attribute.Int("seat_count", showing.SeatCount()),
	)

	meta := showing.Clone()
	meta.Cells = nil
	meta.Version = 0
	data, err := json.Marshal(meta)
	if err != nil {
		return fmt.Errorf("failed to marshal showing meta: %w", err)
	}

	// The version key doubles as the existence marker; claiming it first
	// keeps creation race-safe.
	ok, err := s.client.Client().SetNX(ctx, versionKey(showing.ID), showing.Version, 0).Result()
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("failed to create showing version: %w", err)
	}
	if !ok {
		return domain.ErrShowingExists
	}

	fields := make([]interface{}, 0, len(showing.Cells)*2)
	for key, cell := range showing.Cells {
		fields = append(fields, key, encodeCell(cell))
	}

	pipe := s.client.Client().TxPipeline()
	pipe.Set(ctx, metaKey(showing.ID), data, 0)
	if len(fields) > 0 {
		pipe.HSet(ctx, cellsKey(showing.ID), fields...)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("failed to store showing: %w", err)
	}

	span.SetStatus(codes.Ok, "")
	return nil
}

// GetShowing returns a snapshot of the showing and its grid
func (s *RedisShowingStore) GetShowing(ctx context.Context, showingID string) (*domain.Showing, error) {
	ctx, span := telemetry.StartSpan(ctx, "repo.redis.showing.get")
	defer span.End()

	span.SetAttributes(attribute.String("showing_id", showingID))

	data, err := s.client.Client().Get(ctx, metaKey(showingID)).Bytes()
	if err == redis.Nil {
		return nil, domain.ErrShowingNotFound
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("failed to get showing meta: %w", err)
	}

	showing := &domain.Showing{}
	if err := json.Unmarshal(data, showing); err != nil {
		return nil, fmt.Errorf("failed to unmarshal showing meta: %w", err)
	}

	cells, err := s.client.Client().HGetAll(ctx, cellsKey(showingID)).Result()
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("failed to get showing cells: %w", err)
	}
	showing.Cells = make(map[string]domain.SeatCell, len(cells))
	for key, value := range cells {
		cell, err := decodeCell(value)
		if err != nil {
			return nil, fmt.Errorf("corrupt cell %s in showing %s: %w", key, showingID, err)
		}
		showing.Cells[key] = cell
	}

	version, err := s.client.Client().Get(ctx, versionKey(showingID)).Int64()
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("failed to get showing version: %w", err)
	}
	showing.Version = version

	span.SetStatus(codes.Ok, "")
	return showing, nil
}

// ClaimSeats transitions available cells to held, gated by per-cell state
// and the version fence
func (s *RedisShowingStore) ClaimSeats(ctx context.Context, showingID string, expectedVersion int64, coords []domain.SeatCoord, holdID string, deadline time.Time) (int64, error) {
	ctx, span := telemetry.StartSpan(ctx, "repo.redis.showing.claim_seats")
	defer span.End()

	span.SetAttributes(
		attribute.String("showing_id", showingID),
		attribute.String("hold_id", holdID),
		attribute.Int64("expected_version", expectedVersion),
		attribute.Int("seat_count", len(coords)),
	)

	args := []interface{}{expectedVersion, holdID, deadline.Unix()}
	return s.runSeatScript(ctx, span, scriptClaimSeats, claimSeatsScript, showingID, coords, args)
}

// ReleaseSeats transitions cells held under holdID back to available
func (s *RedisShowingStore) ReleaseSeats(ctx context.Context, showingID string, coords []domain.SeatCoord, holdID string) (int64, error) {
	ctx, span := telemetry.StartSpan(ctx, "repo.redis.showing.release_seats")
	defer span.End()

	span.SetAttributes(
		attribute.String("showing_id", showingID),
		attribute.String("hold_id", holdID),
		attribute.Int("seat_count", len(coords)),
	)

	args := []interface{}{holdID}
	return s.runSeatScript(ctx, span, scriptReleaseSeats, releaseSeatsScript, showingID, coords, args)
}

// ReserveSeats transitions cells held under holdID to reserved
func (s *RedisShowingStore) ReserveSeats(ctx context.Context, showingID string, coords []domain.SeatCoord, holdID, bookingID string) (int64, error) {
	ctx, span := telemetry.StartSpan(ctx, "repo.redis.showing.reserve_seats")
	defer span.End()

	span.SetAttributes(
		attribute.String("showing_id", showingID),
		attribute.String("hold_id", holdID),
		attribute.String("booking_id", bookingID),
		attribute.Int("seat_count", len(coords)),
	)

	args := []interface{}{holdID, bookingID}
	return s.runSeatScript(ctx, span, scriptReserveSeats, reserveSeatsScript, showingID, coords, args)
}

// runSeatScript executes one of the seat mutation scripts and maps its
// result to domain errors
func (s *RedisShowingStore) runSeatScript(ctx context.Context, span telemetry.Span, name, script, showingID string, coords []domain.SeatCoord, args []interface{}) (int64, error) {
	fieldLabels := make(map[string]string, len(coords))
	for _, c := range coords {
		fieldLabels[c.Key()] = c.Label()
		args = append(args, c.Key())
	}

	keys := []string{cellsKey(showingID), versionKey(showingID)}
	result := s.client.EvalWithFallback(ctx, name, script, keys, args...)
	if result.Err() != nil {
		span.RecordError(result.Err())
		span.SetStatus(codes.Error, result.Err().Error())
		return 0, fmt.Errorf("failed to execute %s script: %w", name, result.Err())
	}

	values, err := result.Slice()
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return 0, fmt.Errorf("failed to parse %s script result: %w", name, err)
	}
	if len(values) < 2 {
		return 0, fmt.Errorf("unexpected %s script result length: %d", name, len(values))
	}

	success, _ := toInt64(values[0])
	if success == 1 {
		version, _ := toInt64(values[1])
		span.SetStatus(codes.Ok, "")
		return version, nil
	}

	errorCode, _ := values[1].(string)
	detail := ""
	if len(values) > 2 {
		detail, _ = values[2].(string)
	}
	span.SetAttributes(attribute.String("error_code", errorCode))
	span.SetStatus(codes.Error, errorCode)

	switch errorCode {
	case "NOT_FOUND":
		return 0, domain.ErrShowingNotFound
	case "VERSION_CONFLICT":
		return 0, domain.ErrVersionConflict
	case "SEAT_CONFLICT":
		var labels []string
		for _, field := range strings.Split(detail, ",") {
			if label, ok := fieldLabels[field]; ok {
				labels = append(labels, label)
			}
		}
		return 0, &domain.SeatConflictError{ShowingID: showingID, Seats: labels}
	default:
		return 0, fmt.Errorf("%s script failed: %s %s", name, errorCode, detail)
	}
}

func encodeCell(cell domain.SeatCell) string {
	switch cell.State {
	case domain.SeatHeld:
		return fmt.Sprintf("%s%s|%d", cellHeldPrefix, cell.HoldID, cell.HoldExpiresAt.Unix())
	case domain.SeatReserved:
		return cellReservedPref + cell.BookingID
	default:
		return cellAvailable
	}
}

func decodeCell(value string) (domain.SeatCell, error) {
	switch {
	case value == cellAvailable:
		return domain.SeatCell{State: domain.SeatAvailable}, nil
	case strings.HasPrefix(value, cellHeldPrefix):
		parts := strings.SplitN(value, "|", 3)
		if len(parts) != 3 {
			return domain.SeatCell{}, fmt.Errorf("malformed held cell value %q", value)
		}
		unix, err := strconv.ParseInt(parts[2], 10, 64)
		if err != nil {
			return domain.SeatCell{}, fmt.Errorf("malformed hold expiry in %q", value)
		}
		expires := time.Unix(unix, 0)
		return domain.SeatCell{State: domain.SeatHeld, HoldID: parts[1], HoldExpiresAt: &expires}, nil
	case strings.HasPrefix(value, cellReservedPref):
		return domain.SeatCell{State: domain.SeatReserved, BookingID: strings.TrimPrefix(value, cellReservedPref)}, nil
	default:
		return domain.SeatCell{}, fmt.Errorf("unknown cell value %q", value)
	}
}

// toInt64 converts a Lua script result element to an int64
func toInt64(v interface{}) (int64, bool) {
	switch n := v.(type) {
	case int64:
		return n, true
	case string:
		parsed, err := strconv.ParseInt(n, 10, 64)
		return parsed, err == nil
	default:
		return 0, false
	}
}
