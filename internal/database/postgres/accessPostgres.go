package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/ds124wfegd/roombooker/internal/entity"
)

const accessColumns = `
	id, reservation_id, user_id, room_id, access_method, access_token,
	access_time, expires_at, is_used, created_at`

type accessRepository struct {
	db *sql.DB
}

func NewAccessRepository(db *sql.DB) AccessRepository {
	return &accessRepository{db: db}
}

func scanAccess(row rowScanner) (*entity.RoomAccess, error) {
	var a entity.RoomAccess
	var accessTime sql.NullTime
	err := row.Scan(
		&a.ID,
		&a.ReservationID,
		&a.UserID,
		&a.RoomID,
		&a.AccessMethod,
		&a.AccessToken,
		&accessTime,
		&a.ExpiresAt,
		&a.IsUsed,
		&a.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	if accessTime.Valid {
		t := accessTime.Time.UTC()
		a.AccessTime = &t
	}
	a.ExpiresAt = a.ExpiresAt.UTC()
	a.CreatedAt = a.CreatedAt.UTC()
	return &a, nil
}

func (r *accessRepository) queryList(ctx context.Context, query string, args ...interface{}) ([]*entity.RoomAccess, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query room accesses: %w", err)
	}
	defer rows.Close()

	var accesses []*entity.RoomAccess
	for rows.Next() {
		access, err := scanAccess(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan room access: %w", err)
		}
		accesses = append(accesses, access)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating room accesses: %w", err)
	}

	return accesses, nil
}

// CreateIfAbsent relies on the partial unique indexes on unused tokens.
// When the insert is skipped and no live token exists for the reservation,
// the token value itself collided and the caller should mint another one.
func (r *accessRepository) CreateIfAbsent(ctx context.Context, access *entity.RoomAccess) (*entity.RoomAccess, error) {
	query := `
		INSERT INTO room_accesses (
			id, reservation_id, user_id, room_id, access_method, access_token,
			access_time, expires_at, is_used, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT DO NOTHING
		RETURNING ` + accessColumns

	created, err := scanAccess(r.db.QueryRowContext(ctx, query,
		access.ID,
		access.ReservationID,
		access.UserID,
		access.RoomID,
		access.AccessMethod,
		access.AccessToken,
		access.AccessTime,
		access.ExpiresAt,
		access.IsUsed,
		access.CreatedAt,
	))
	if err == nil {
		return created, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("failed to create room access: %w", err)
	}

	existing, err := r.GetActiveByReservation(ctx, access.ReservationID)
	if errors.Is(err, entity.ErrAccessNotFound) {
		return nil, entity.ErrTokenCollision
	}
	if err != nil {
		return nil, err
	}
	return existing, nil
}

func (r *accessRepository) GetActiveByReservation(ctx context.Context, reservationID string) (*entity.RoomAccess, error) {
	query := `SELECT ` + accessColumns + `
		FROM room_accesses
		WHERE reservation_id = $1 AND is_used = false
		LIMIT 1
	`
	access, err := scanAccess(r.db.QueryRowContext(ctx, query, reservationID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, entity.ErrAccessNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get active room access: %w", err)
	}
	return access, nil
}

// GetByToken prefers the unused row; consumed tokens may share a value with
// a newer one.
func (r *accessRepository) GetByToken(ctx context.Context, token string) (*entity.RoomAccess, error) {
	query := `SELECT ` + accessColumns + `
		FROM room_accesses
		WHERE access_token = $1
		ORDER BY is_used ASC, created_at DESC
		LIMIT 1
	`
	access, err := scanAccess(r.db.QueryRowContext(ctx, query, token))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, entity.ErrAccessNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get room access by token: %w", err)
	}
	return access, nil
}

func (r *accessRepository) Consume(ctx context.Context, id string, at time.Time) (*entity.RoomAccess, error) {
	query := `
		UPDATE room_accesses
		SET is_used = true, access_time = $2
		WHERE id = $1 AND is_used = false
		RETURNING ` + accessColumns

	access, err := scanAccess(r.db.QueryRowContext(ctx, query, id, at))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, entity.ErrTokenAlreadyUsed
	}
	if err != nil {
		return nil, fmt.Errorf("failed to consume room access: %w", err)
	}
	return access, nil
}

func (r *accessRepository) GetByUserID(ctx context.Context, userID string) ([]*entity.RoomAccess, error) {
	query := `SELECT ` + accessColumns + `
		FROM room_accesses
		WHERE user_id = $1
		ORDER BY created_at DESC
	`
	return r.queryList(ctx, query, userID)
}

func (r *accessRepository) GetByReservationID(ctx context.Context, reservationID string) ([]*entity.RoomAccess, error) {
	query := `SELECT ` + accessColumns + `
		FROM room_accesses
		WHERE reservation_id = $1
		ORDER BY created_at DESC
	`
	return r.queryList(ctx, query, reservationID)
}
