package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ds124wfegd/roombooker/internal/entity"
	"github.com/lib/pq"
)

const reservationColumns = `
	id, room_id, user_id, title, purpose, start_time, end_time,
	attendees, status, cancellation_reason, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...interface{}) error
}

type reservationRepository struct {
	db *sql.DB
}

func NewReservationRepository(db *sql.DB) ReservationRepository {
	return &reservationRepository{db: db}
}

func scanReservation(row rowScanner) (*entity.Reservation, error) {
	var r entity.Reservation
	err := row.Scan(
		&r.ID,
		&r.RoomID,
		&r.UserID,
		&r.Title,
		&r.Purpose,
		&r.StartTime,
		&r.EndTime,
		&r.Attendees,
		&r.Status,
		&r.CancellationReason,
		&r.CreatedAt,
		&r.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	r.StartTime = r.StartTime.UTC()
	r.EndTime = r.EndTime.UTC()
	r.CreatedAt = r.CreatedAt.UTC()
	r.UpdatedAt = r.UpdatedAt.UTC()
	return &r, nil
}

func (r *reservationRepository) queryList(ctx context.Context, query string, args ...interface{}) ([]*entity.Reservation, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query reservations: %w", err)
	}
	defer rows.Close()

	var reservations []*entity.Reservation
	for rows.Next() {
		reservation, err := scanReservation(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan reservation: %w", err)
		}
		reservations = append(reservations, reservation)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating reservations: %w", err)
	}

	return reservations, nil
}

// lockRoom serializes writers of one room until the transaction ends.
func lockRoom(ctx context.Context, tx *sql.Tx, roomID string) error {
	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, roomID); err != nil {
		return fmt.Errorf("failed to lock room %s: %w", roomID, err)
	}
	return nil
}

func hasConflict(ctx context.Context, tx *sql.Tx, reservation *entity.Reservation) (bool, error) {
	query := `
		SELECT EXISTS (
			SELECT 1 FROM reservations
			WHERE room_id = $1
			  AND status IN ('pending', 'confirmed')
			  AND start_time < $3
			  AND end_time > $2
			  AND id <> $4
		)
	`
	var exists bool
	excludeID := reservation.ID
	if excludeID == "" {
		excludeID = "00000000-0000-0000-0000-000000000000"
	}
	err := tx.QueryRowContext(ctx, query,
		reservation.RoomID,
		reservation.StartTime,
		reservation.EndTime,
		excludeID,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check conflicting reservations: %w", err)
	}
	return exists, nil
}

// Create inserts a reservation under a per-room advisory lock so that two
// overlapping requests can never both pass the conflict check.
func (r *reservationRepository) Create(ctx context.Context, reservation *entity.Reservation) error {
	tx, err := r.db.BeginTx(ctx, &sql.TxOptions{
		Isolation: sql.LevelReadCommitted,
	})
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := lockRoom(ctx, tx, reservation.RoomID); err != nil {
		return err
	}

	conflict, err := hasConflict(ctx, tx, reservation)
	if err != nil {
		return err
	}
	if conflict {
		return fmt.Errorf("%w: room %s is already booked for the requested time", entity.ErrConflict, reservation.RoomID)
	}

	query := `
		INSERT INTO reservations (
			id, room_id, user_id, title, purpose, start_time, end_time,
			attendees, status, cancellation_reason, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`
	_, err = tx.ExecContext(ctx, query,
		reservation.ID,
		reservation.RoomID,
		reservation.UserID,
		reservation.Title,
		reservation.Purpose,
		reservation.StartTime,
		reservation.EndTime,
		reservation.Attendees,
		reservation.Status,
		reservation.CancellationReason,
		reservation.CreatedAt,
		reservation.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create reservation: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

// Update rewrites the editable fields. The row must still hold its slot;
// a reservation cancelled in the meantime yields ErrInvalidState.
func (r *reservationRepository) Update(ctx context.Context, reservation *entity.Reservation) error {
	tx, err := r.db.BeginTx(ctx, &sql.TxOptions{
		Isolation: sql.LevelReadCommitted,
	})
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := lockRoom(ctx, tx, reservation.RoomID); err != nil {
		return err
	}

	conflict, err := hasConflict(ctx, tx, reservation)
	if err != nil {
		return err
	}
	if conflict {
		return fmt.Errorf("%w: room %s is already booked for the requested time", entity.ErrConflict, reservation.RoomID)
	}

	query := `
		UPDATE reservations
		SET title = $1, purpose = $2, start_time = $3, end_time = $4,
		    attendees = $5, updated_at = $6
		WHERE id = $7 AND status IN ('pending', 'confirmed')
	`
	result, err := tx.ExecContext(ctx, query,
		reservation.Title,
		reservation.Purpose,
		reservation.StartTime,
		reservation.EndTime,
		reservation.Attendees,
		reservation.UpdatedAt,
		reservation.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update reservation: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("%w: reservation %s can no longer be modified", entity.ErrInvalidState, reservation.ID)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

func (r *reservationRepository) GetByID(ctx context.Context, id string) (*entity.Reservation, error) {
	query := `SELECT ` + reservationColumns + ` FROM reservations WHERE id = $1`

	reservation, err := scanReservation(r.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, entity.ErrReservationNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get reservation: %w", err)
	}

	return reservation, nil
}

// GetByUserID returns the user's reservations, latest start first.
func (r *reservationRepository) GetByUserID(ctx context.Context, userID string) ([]*entity.Reservation, error) {
	query := `SELECT ` + reservationColumns + `
		FROM reservations
		WHERE user_id = $1
		ORDER BY start_time DESC
	`
	return r.queryList(ctx, query, userID)
}

func (r *reservationRepository) GetConfirmedByRoom(ctx context.Context, roomID string) ([]*entity.Reservation, error) {
	query := `SELECT ` + reservationColumns + `
		FROM reservations
		WHERE room_id = $1 AND status = 'confirmed'
		ORDER BY start_time ASC
	`
	return r.queryList(ctx, query, roomID)
}

// GetActiveByRoomBetween returns pending and confirmed reservations
// intersecting [from, to).
func (r *reservationRepository) GetActiveByRoomBetween(ctx context.Context, roomID string, from, to time.Time) ([]*entity.Reservation, error) {
	query := `SELECT ` + reservationColumns + `
		FROM reservations
		WHERE room_id = $1
		  AND status IN ('pending', 'confirmed')
		  AND start_time < $3
		  AND end_time > $2
		ORDER BY start_time ASC
	`
	return r.queryList(ctx, query, roomID, from, to)
}

func (r *reservationRepository) List(ctx context.Context, filter entity.ReservationFilter) ([]*entity.Reservation, int, error) {
	var conds []string
	var args []interface{}
	arg := func(v interface{}) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if filter.Status != "" {
		conds = append(conds, "status = "+arg(string(filter.Status)))
	}
	if filter.RoomID != "" {
		conds = append(conds, "room_id = "+arg(filter.RoomID))
	}
	if filter.UserID != "" {
		conds = append(conds, "user_id = "+arg(filter.UserID))
	}
	if filter.From != nil {
		conds = append(conds, "start_time >= "+arg(*filter.From))
	}
	if filter.To != nil {
		conds = append(conds, "start_time < "+arg(*filter.To))
	}

	where := ""
	if len(conds) > 0 {
		where = ` WHERE ` + strings.Join(conds, " AND ")
	}

	var total int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM reservations`+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count reservations: %w", err)
	}

	query := `SELECT ` + reservationColumns + ` FROM reservations` + where + ` ORDER BY start_time DESC, id ASC`
	if filter.Limit > 0 {
		query += ` LIMIT ` + arg(filter.Limit)
	}
	if filter.Offset > 0 {
		query += ` OFFSET ` + arg(filter.Offset)
	}

	reservations, err := r.queryList(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	return reservations, total, nil
}

func (r *reservationRepository) GetConfirmedStartedBefore(ctx context.Context, before time.Time) ([]*entity.Reservation, error) {
	query := `SELECT ` + reservationColumns + `
		FROM reservations
		WHERE status = 'confirmed' AND start_time < $1
		ORDER BY start_time ASC
	`
	return r.queryList(ctx, query, before)
}

func (r *reservationRepository) GetConfirmedEndedBefore(ctx context.Context, before time.Time) ([]*entity.Reservation, error) {
	query := `SELECT ` + reservationColumns + `
		FROM reservations
		WHERE status = 'confirmed' AND end_time < $1
		ORDER BY end_time ASC
	`
	return r.queryList(ctx, query, before)
}

func (r *reservationRepository) UpdateStatus(ctx context.Context, id string, from []entity.ReservationStatus, to entity.ReservationStatus, reason *string) (*entity.Reservation, error) {
	allowed := make([]string, 0, len(from))
	for _, s := range from {
		allowed = append(allowed, string(s))
	}

	query := `
		UPDATE reservations
		SET status = $2,
		    cancellation_reason = COALESCE($3, cancellation_reason),
		    updated_at = $4
		WHERE id = $1 AND status = ANY($5)
		RETURNING ` + reservationColumns

	reservation, err := scanReservation(r.db.QueryRowContext(ctx, query,
		id,
		to,
		reason,
		time.Now().UTC(),
		pq.Array(allowed),
	))
	if err == nil {
		return reservation, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("failed to update reservation status: %w", err)
	}

	current, err := r.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return nil, fmt.Errorf("%w: reservation is %s, cannot move to %s", entity.ErrInvalidState, current.Status, to)
}
