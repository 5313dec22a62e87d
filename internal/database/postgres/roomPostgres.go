package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/ds124wfegd/roombooker/internal/entity"
	"github.com/lib/pq"
)

const roomColumns = `
	id, room_number, name, capacity, location, facilities,
	open_time, close_time, weekdays, is_active, created_at, updated_at`

type roomRepository struct {
	db *sql.DB
}

func NewRoomRepository(db *sql.DB) RoomRepository {
	return &roomRepository{db: db}
}

func scanRoom(row rowScanner) (*entity.Room, error) {
	var room entity.Room
	var facilities []string
	var weekdays []int64
	err := row.Scan(
		&room.ID,
		&room.RoomNumber,
		&room.Name,
		&room.Capacity,
		&room.Location,
		pq.Array(&facilities),
		&room.OperatingHours.StartTime,
		&room.OperatingHours.EndTime,
		pq.Array(&weekdays),
		&room.IsActive,
		&room.CreatedAt,
		&room.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	room.Facilities = facilities
	room.OperatingHours.Weekdays = make([]int, 0, len(weekdays))
	for _, wd := range weekdays {
		room.OperatingHours.Weekdays = append(room.OperatingHours.Weekdays, int(wd))
	}
	return &room, nil
}

func weekdaysArray(days []int) interface{} {
	out := make([]int64, 0, len(days))
	for _, d := range days {
		out = append(out, int64(d))
	}
	return pq.Array(out)
}

func (r *roomRepository) Create(ctx context.Context, room *entity.Room) error {
	query := `
		INSERT INTO rooms (
			id, room_number, name, capacity, location, facilities,
			open_time, close_time, weekdays, is_active, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`
	_, err := r.db.ExecContext(ctx, query,
		room.ID,
		room.RoomNumber,
		room.Name,
		room.Capacity,
		room.Location,
		pq.Array(room.Facilities),
		room.OperatingHours.StartTime,
		room.OperatingHours.EndTime,
		weekdaysArray(room.OperatingHours.Weekdays),
		room.IsActive,
		room.CreatedAt,
		room.UpdatedAt,
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			return fmt.Errorf("%w: room number %s already exists", entity.ErrInvalidInput, room.RoomNumber)
		}
		return fmt.Errorf("failed to create room: %w", err)
	}
	return nil
}

func (r *roomRepository) GetByID(ctx context.Context, id string) (*entity.Room, error) {
	query := `SELECT ` + roomColumns + ` FROM rooms WHERE id = $1`

	room, err := scanRoom(r.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, entity.ErrRoomNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get room: %w", err)
	}
	return room, nil
}

func (r *roomRepository) List(ctx context.Context, filter entity.RoomFilter) ([]*entity.Room, error) {
	var conds []string
	var args []interface{}
	arg := func(v interface{}) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if !filter.IncludeInactive {
		conds = append(conds, "is_active = true")
	}
	if filter.MinCapacity > 0 {
		conds = append(conds, "capacity >= "+arg(filter.MinCapacity))
	}
	if filter.Location != "" {
		conds = append(conds, "position(lower("+arg(filter.Location)+") in lower(location)) > 0")
	}
	for _, facility := range filter.Facilities {
		conds = append(conds, "EXISTS (SELECT 1 FROM unnest(facilities) f WHERE lower(f) = lower("+arg(facility)+"))")
	}

	query := `SELECT ` + roomColumns + ` FROM rooms`
	if len(conds) > 0 {
		query += ` WHERE ` + strings.Join(conds, " AND ")
	}
	query += ` ORDER BY room_number ASC`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query rooms: %w", err)
	}
	defer rows.Close()

	var rooms []*entity.Room
	for rows.Next() {
		room, err := scanRoom(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan room: %w", err)
		}
		rooms = append(rooms, room)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rooms: %w", err)
	}
	return rooms, nil
}

func (r *roomRepository) Update(ctx context.Context, room *entity.Room) error {
	query := `
		UPDATE rooms
		SET room_number = $1, name = $2, capacity = $3, location = $4, facilities = $5,
		    open_time = $6, close_time = $7, weekdays = $8, is_active = $9, updated_at = $10
		WHERE id = $11
	`
	result, err := r.db.ExecContext(ctx, query,
		room.RoomNumber,
		room.Name,
		room.Capacity,
		room.Location,
		pq.Array(room.Facilities),
		room.OperatingHours.StartTime,
		room.OperatingHours.EndTime,
		weekdaysArray(room.OperatingHours.Weekdays),
		room.IsActive,
		room.UpdatedAt,
		room.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update room: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return entity.ErrRoomNotFound
	}
	return nil
}
