package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/example/room-booking/internal/persistence"
)

// RoomRepository implements persistence.RoomRepository on SQLite.
type RoomRepository struct {
	pool *ConnectionPool
}

// NewRoomRepository creates a SQLite room repository.
func NewRoomRepository(pool *ConnectionPool) *RoomRepository {
	return &RoomRepository{pool: pool}
}

const roomColumns = `id, room_number, floor, available_seats, created_at, updated_at`

// CreateRoom inserts a new room.
func (r *RoomRepository) CreateRoom(ctx context.Context, room persistence.Room) error {
	if room.ID == "" || room.AvailableSeats < 1 {
		return persistence.ErrConstraintViolation
	}

	query := `
		INSERT INTO rooms (` + roomColumns + `)
		VALUES (?, ?, ?, ?, ?, ?)
	`

	_, err := r.pool.DB().ExecContext(ctx, query,
		room.ID,
		room.RoomNumber,
		room.Floor,
		room.AvailableSeats,
		formatTime(room.CreatedAt),
		formatTime(room.UpdatedAt),
	)
	if err != nil {
		return mapSQLiteError(err)
	}

	return nil
}

// UpdateRoom replaces a stored room. When expectedUpdatedAt is non-nil the
// update is conditional on the stored updated_at still matching it, which
// detects writes that have raced in since the caller's read.
func (r *RoomRepository) UpdateRoom(ctx context.Context, room persistence.Room, expectedUpdatedAt *time.Time) error {
	if room.AvailableSeats < 1 {
		return persistence.ErrConstraintViolation
	}

	query := `
		UPDATE rooms
		SET room_number = ?, floor = ?, available_seats = ?, updated_at = ?
		WHERE id = ?
	`
	args := []any{
		room.RoomNumber,
		room.Floor,
		room.AvailableSeats,
		formatTime(room.UpdatedAt),
		room.ID,
	}
	if expectedUpdatedAt != nil {
		query += ` AND updated_at = ?`
		args = append(args, formatTime(*expectedUpdatedAt))
	}

	result, err := r.pool.DB().ExecContext(ctx, query, args...)
	if err != nil {
		return mapSQLiteError(err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected == 0 {
		// Distinguish a vanished room from a lost conditional write.
		if expectedUpdatedAt != nil {
			var exists int
			if scanErr := r.pool.DB().QueryRowContext(ctx, `SELECT COUNT(1) FROM rooms WHERE id = ?`, room.ID).Scan(&exists); scanErr == nil && exists > 0 {
				return persistence.ErrStaleVersion
			}
		}
		return persistence.ErrNotFound
	}

	return nil
}

// GetRoom retrieves a room by ID.
func (r *RoomRepository) GetRoom(ctx context.Context, id string) (persistence.Room, error) {
	if id == "" {
		return persistence.Room{}, persistence.ErrNotFound
	}
	row := r.pool.DB().QueryRowContext(ctx, `SELECT `+roomColumns+` FROM rooms WHERE id = ?`, id)
	return scanRoom(row)
}

// GetRoomByNumber retrieves a room by its unique label.
func (r *RoomRepository) GetRoomByNumber(ctx context.Context, roomNumber string) (persistence.Room, error) {
	row := r.pool.DB().QueryRowContext(ctx, `SELECT `+roomColumns+` FROM rooms WHERE room_number = ?`, roomNumber)
	return scanRoom(row)
}

// ListRooms returns all rooms ordered by floor then room number.
func (r *RoomRepository) ListRooms(ctx context.Context) ([]persistence.Room, error) {
	return r.queryRooms(ctx, `SELECT `+roomColumns+` FROM rooms ORDER BY floor ASC, room_number ASC`)
}

// FilterRooms returns rooms seating at least filter.MinSeats people,
// restricted to a floor when one is supplied.
func (r *RoomRepository) FilterRooms(ctx context.Context, filter persistence.RoomFilter) ([]persistence.Room, error) {
	query := `SELECT ` + roomColumns + ` FROM rooms WHERE available_seats >= ?`
	args := []any{filter.MinSeats}
	if filter.Floor != nil {
		query += ` AND floor = ?`
		args = append(args, *filter.Floor)
	}
	query += ` ORDER BY room_number ASC`
	return r.queryRooms(ctx, query, args...)
}

// DeleteRoom removes a room by ID. Meetings referencing the room are
// deliberately left in place for audit.
func (r *RoomRepository) DeleteRoom(ctx context.Context, id string) error {
	if id == "" {
		return persistence.ErrNotFound
	}

	result, err := r.pool.DB().ExecContext(ctx, `DELETE FROM rooms WHERE id = ?`, id)
	if err != nil {
		return mapSQLiteError(err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected == 0 {
		return persistence.ErrNotFound
	}

	return nil
}

func (r *RoomRepository) queryRooms(ctx context.Context, query string, args ...any) ([]persistence.Room, error) {
	rows, err := r.pool.DB().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, mapSQLiteError(err)
	}
	defer rows.Close()

	var rooms []persistence.Room
	for rows.Next() {
		room, err := scanRoomRow(rows)
		if err != nil {
			return nil, err
		}
		rooms = append(rooms, room)
	}
	if err := rows.Err(); err != nil {
		return nil, mapSQLiteError(err)
	}
	return rooms, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRoom(row *sql.Row) (persistence.Room, error) {
	room, err := scanRoomRow(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return persistence.Room{}, persistence.ErrNotFound
		}
		return persistence.Room{}, err
	}
	return room, nil
}

func scanRoomRow(scanner rowScanner) (persistence.Room, error) {
	var room persistence.Room
	var createdAt, updatedAt string

	if err := scanner.Scan(
		&room.ID,
		&room.RoomNumber,
		&room.Floor,
		&room.AvailableSeats,
		&createdAt,
		&updatedAt,
	); err != nil {
		return persistence.Room{}, err
	}

	var err error
	if room.CreatedAt, err = parseTime(createdAt); err != nil {
		return persistence.Room{}, fmt.Errorf("failed to parse created_at: %w", err)
	}
	if room.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return persistence.Room{}, fmt.Errorf("failed to parse updated_at: %w", err)
	}

	return room, nil
}

// timeLayout is RFC 3339 UTC with fixed nanosecond width. The fixed width
// keeps lexical ordering of the TEXT columns identical to chronological
// ordering, which the overlap range queries depend on.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(value string) (time.Time, error) {
	return time.Parse(timeLayout, value)
}
