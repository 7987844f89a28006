package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/example/room-booking/internal/persistence"
)

// MeetingRepository implements persistence.MeetingRepository on SQLite.
type MeetingRepository struct {
	pool *ConnectionPool
}

// NewMeetingRepository creates a SQLite meeting repository.
func NewMeetingRepository(pool *ConnectionPool) *MeetingRepository {
	return &MeetingRepository{pool: pool}
}

const meetingColumns = `id, room_id, organizer_id, start_time, end_time, created_at`

// CreateMeeting runs the booking transaction: inside one immediate
// transaction it verifies the room exists, checks for an overlapping
// meeting, inserts, and bumps the room's updated_at. The transaction holds
// the database write lock from BEGIN (via the pool's `_txlock=immediate`
// DSN), so a concurrent booking for the same room observes either nothing
// or the committed meeting, never the gap between check and insert.
func (r *MeetingRepository) CreateMeeting(ctx context.Context, meeting persistence.Meeting) error {
	if meeting.ID == "" || !meeting.Start.Before(meeting.End) {
		return persistence.ErrConstraintViolation
	}

	return r.pool.WithTransaction(ctx, func(tx *sql.Tx) error {
		var roomExists int
		if err := tx.QueryRow(`SELECT COUNT(1) FROM rooms WHERE id = ?`, meeting.RoomID).Scan(&roomExists); err != nil {
			return mapSQLiteError(err)
		}
		if roomExists == 0 {
			return persistence.ErrNotFound
		}

		// Half-open windows: existing.start < new.end AND new.start < existing.end.
		row := tx.QueryRow(`
			SELECT `+meetingColumns+`
			FROM meetings
			WHERE room_id = ? AND start_time < ? AND ? < end_time
			ORDER BY start_time ASC
			LIMIT 1
		`, meeting.RoomID, formatTime(meeting.End), formatTime(meeting.Start))

		existing, err := scanMeetingRow(row)
		switch {
		case err == sql.ErrNoRows:
			// Room is free for the window.
		case err != nil:
			return mapSQLiteError(err)
		default:
			return &persistence.OverlapError{
				MeetingID: existing.ID,
				RoomID:    existing.RoomID,
				Start:     existing.Start,
				End:       existing.End,
			}
		}

		if _, err := tx.Exec(`
			INSERT INTO meetings (`+meetingColumns+`)
			VALUES (?, ?, ?, ?, ?, ?)
		`,
			meeting.ID,
			meeting.RoomID,
			meeting.OrganizerID,
			formatTime(meeting.Start),
			formatTime(meeting.End),
			formatTime(meeting.CreatedAt),
		); err != nil {
			return mapSQLiteError(err)
		}

		// Touch the room so recency ranking reflects booking activity.
		if _, err := tx.Exec(`UPDATE rooms SET updated_at = ? WHERE id = ?`,
			formatTime(meeting.CreatedAt), meeting.RoomID); err != nil {
			return mapSQLiteError(err)
		}

		return nil
	})
}

// GetMeeting retrieves a meeting by ID.
func (r *MeetingRepository) GetMeeting(ctx context.Context, id string) (persistence.Meeting, error) {
	if id == "" {
		return persistence.Meeting{}, persistence.ErrNotFound
	}

	row := r.pool.DB().QueryRowContext(ctx, `SELECT `+meetingColumns+` FROM meetings WHERE id = ?`, id)
	meeting, err := scanMeetingRow(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return persistence.Meeting{}, persistence.ErrNotFound
		}
		return persistence.Meeting{}, err
	}
	return meeting, nil
}

// ListMeetingsForRoom returns a room's meetings ordered by start time.
func (r *MeetingRepository) ListMeetingsForRoom(ctx context.Context, roomID string) ([]persistence.Meeting, error) {
	return r.queryMeetings(ctx,
		`SELECT `+meetingColumns+` FROM meetings WHERE room_id = ? ORDER BY start_time ASC, id ASC`, roomID)
}

// ListMeetingsOverlapping returns meetings for the given rooms whose windows
// intersect [start, end), as one range query.
func (r *MeetingRepository) ListMeetingsOverlapping(ctx context.Context, roomIDs []string, start, end time.Time) ([]persistence.Meeting, error) {
	if len(roomIDs) == 0 {
		return nil, nil
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(roomIDs)), ", ")
	args := make([]any, 0, len(roomIDs)+2)
	for _, id := range roomIDs {
		args = append(args, id)
	}
	args = append(args, formatTime(end), formatTime(start))

	return r.queryMeetings(ctx, `
		SELECT `+meetingColumns+`
		FROM meetings
		WHERE room_id IN (`+placeholders+`) AND start_time < ? AND ? < end_time
		ORDER BY start_time ASC, id ASC
	`, args...)
}

// CountMeetingsEndingAfter reports how many meetings for the room end after
// the reference instant.
func (r *MeetingRepository) CountMeetingsEndingAfter(ctx context.Context, roomID string, reference time.Time) (int, error) {
	var count int
	err := r.pool.DB().QueryRowContext(ctx,
		`SELECT COUNT(1) FROM meetings WHERE room_id = ? AND end_time > ?`,
		roomID, formatTime(reference),
	).Scan(&count)
	if err != nil {
		return 0, mapSQLiteError(err)
	}
	return count, nil
}

func (r *MeetingRepository) queryMeetings(ctx context.Context, query string, args ...any) ([]persistence.Meeting, error) {
	rows, err := r.pool.DB().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, mapSQLiteError(err)
	}
	defer rows.Close()

	var meetings []persistence.Meeting
	for rows.Next() {
		meeting, err := scanMeetingRow(rows)
		if err != nil {
			return nil, err
		}
		meetings = append(meetings, meeting)
	}
	if err := rows.Err(); err != nil {
		return nil, mapSQLiteError(err)
	}
	return meetings, nil
}

func scanMeetingRow(scanner rowScanner) (persistence.Meeting, error) {
	var meeting persistence.Meeting
	var start, end, createdAt string

	if err := scanner.Scan(
		&meeting.ID,
		&meeting.RoomID,
		&meeting.OrganizerID,
		&start,
		&end,
		&createdAt,
	); err != nil {
		return persistence.Meeting{}, err
	}

	var err error
	if meeting.Start, err = parseTime(start); err != nil {
		return persistence.Meeting{}, fmt.Errorf("failed to parse start_time: %w", err)
	}
	if meeting.End, err = parseTime(end); err != nil {
		return persistence.Meeting{}, fmt.Errorf("failed to parse end_time: %w", err)
	}
	if meeting.CreatedAt, err = parseTime(createdAt); err != nil {
		return persistence.Meeting{}, fmt.Errorf("failed to parse created_at: %w", err)
	}

	return meeting, nil
}
