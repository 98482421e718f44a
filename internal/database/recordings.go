package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"screen-recorder/internal/edit"
)

// ErrRecordingNotFound is returned when no recording has the given id.
var ErrRecordingNotFound = errors.New("recording not found")

const recordingColumns = `id, user_id, title, video_url, storage_path, duration, thumbnail_url,
	is_starred, start_time, end_time, is_muted, overlays, folder_id, created_at, updated_at`

// SaveRecordingMetadata stores a freshly uploaded recording and returns its
// id. The trim window starts as the whole recording.
func (d *Database) SaveRecordingMetadata(ctx context.Context, userID, title, link, remoteID string, duration float64) (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	id := uuid.NewString()
	now := time.Now().Unix()
	if duration < 0 {
		duration = 0
	}

	start := time.Now()
	err := d.inTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO recordings (id, user_id, title, video_url, storage_path, duration,
				thumbnail_url, start_time, end_time, overlays, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, 0, ?, '[]', ?, ?)
		`, id, userID, title, link, remoteID, duration, "/api/recordings/"+id+"/thumbnail", duration, now, now)
		if err != nil {
			return err
		}
		_, err = tx.ExecContext(ctx, `
			INSERT INTO metadata (key, value) VALUES (?, ?)
			ON CONFLICT(key) DO UPDATE SET value = excluded.value
		`, lastUploadKey, time.Unix(now, 0).UTC().Format(time.RFC3339))
		return err
	})
	recordQuery("save_recording", start, err)
	if err != nil {
		return "", fmt.Errorf("failed to save recording: %w", err)
	}
	return id, nil
}

// GetRecording returns one recording.
func (d *Database) GetRecording(ctx context.Context, id string) (*Recording, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	start := time.Now()
	row := d.db.QueryRowContext(ctx, "SELECT "+recordingColumns+" FROM recordings WHERE id = ?", id)
	rec, err := scanRecording(row)
	if errors.Is(err, sql.ErrNoRows) {
		recordQuery("get_recording", start, nil)
		return nil, ErrRecordingNotFound
	}
	recordQuery("get_recording", start, err)
	if err != nil {
		return nil, fmt.Errorf("failed to get recording: %w", err)
	}
	return rec, nil
}

// ListRecordings returns a user's recordings, newest first. An empty
// userID lists every recording.
func (d *Database) ListRecordings(ctx context.Context, userID string) ([]Recording, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	query := "SELECT " + recordingColumns + " FROM recordings"
	var args []any
	if userID != "" {
		query += " WHERE user_id = ?"
		args = append(args, userID)
	}
	query += " ORDER BY created_at DESC, rowid DESC"

	start := time.Now()
	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		recordQuery("list_recordings", start, err)
		return nil, fmt.Errorf("failed to list recordings: %w", err)
	}
	defer rows.Close()

	recordings := []Recording{}
	for rows.Next() {
		rec, err := scanRecording(rows)
		if err != nil {
			recordQuery("list_recordings", start, err)
			return nil, fmt.Errorf("failed to scan recording: %w", err)
		}
		recordings = append(recordings, *rec)
	}
	err = rows.Err()
	recordQuery("list_recordings", start, err)
	if err != nil {
		return nil, err
	}
	return recordings, nil
}

// UpdateRecordingMetadata applies a partial update and returns the result.
func (d *Database) UpdateRecordingMetadata(ctx context.Context, id string, u RecordingUpdate) (*Recording, error) {
	if !u.Empty() {
		var sets []string
		var args []any
		if u.Title != nil {
			title := strings.TrimSpace(*u.Title)
			if title == "" {
				return nil, errors.New("title cannot be empty")
			}
			sets = append(sets, "title = ?")
			args = append(args, title)
		}
		if u.IsStarred != nil {
			sets = append(sets, "is_starred = ?")
			args = append(args, boolToInt(*u.IsStarred))
		}
		if u.FolderID != nil {
			sets = append(sets, "folder_id = ?")
			args = append(args, *u.FolderID)
		}
		sets = append(sets, "updated_at = ?")
		args = append(args, time.Now().Unix(), id)

		if err := d.exec(ctx, "update_recording", "UPDATE recordings SET "+strings.Join(sets, ", ")+" WHERE id = ?", args...); err != nil {
			return nil, err
		}
	}
	return d.GetRecording(ctx, id)
}

// SaveEdit persists the editor state of a recording. The document is
// normalised against the stored duration first.
func (d *Database) SaveEdit(ctx context.Context, id string, doc edit.Document) (*Recording, error) {
	rec, err := d.GetRecording(ctx, id)
	if err != nil {
		return nil, err
	}

	doc.Normalize(rec.Duration)
	if doc.Title == "" {
		doc.Title = rec.Title
	}
	overlays, err := edit.MarshalOverlays(doc.Overlays)
	if err != nil {
		return nil, err
	}

	err = d.exec(ctx, "save_edit", `
		UPDATE recordings
		SET title = ?, start_time = ?, end_time = ?, is_muted = ?, overlays = ?, updated_at = ?
		WHERE id = ?
	`, doc.Title, doc.StartTime, doc.EndTime, boolToInt(doc.IsMuted), overlays, time.Now().Unix(), id)
	if err != nil {
		return nil, err
	}
	return d.GetRecording(ctx, id)
}

// DeleteRecording removes a recording's metadata.
func (d *Database) DeleteRecording(ctx context.Context, id string) error {
	return d.exec(ctx, "delete_recording", "DELETE FROM recordings WHERE id = ?", id)
}

// RecordingStats summarises the library of userID, or every user when
// userID is empty.
func (d *Database) RecordingStats(ctx context.Context, userID string) (RecordingStats, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	query := `SELECT COUNT(*), COALESCE(SUM(is_starred), 0), COALESCE(SUM(duration), 0) FROM recordings`
	var args []any
	if userID != "" {
		query += " WHERE user_id = ?"
		args = append(args, userID)
	}

	var stats RecordingStats
	start := time.Now()
	err := d.db.QueryRowContext(ctx, query, args...).Scan(&stats.Total, &stats.Starred, &stats.TotalDuration)
	recordQuery("recording_stats", start, err)
	if err != nil {
		return RecordingStats{}, fmt.Errorf("failed to get recording stats: %w", err)
	}
	return stats, nil
}

// exec runs a write that must touch exactly one recording.
func (d *Database) exec(ctx context.Context, op, query string, args ...any) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	start := time.Now()
	result, err := d.db.ExecContext(ctx, query, args...)
	recordQuery(op, start, err)
	if err != nil {
		return fmt.Errorf("%s failed: %w", op, err)
	}
	if n, err := result.RowsAffected(); err == nil && n == 0 {
		return ErrRecordingNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecording(s rowScanner) (*Recording, error) {
	var (
		rec                  Recording
		starred, muted       int
		overlays             string
		createdAt, updatedAt int64
	)
	err := s.Scan(&rec.ID, &rec.UserID, &rec.Title, &rec.VideoURL, &rec.StoragePath,
		&rec.Duration, &rec.ThumbnailURL, &starred, &rec.StartTime, &rec.EndTime,
		&muted, &overlays, &rec.FolderID, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}

	rec.IsStarred = starred != 0
	rec.IsMuted = muted != 0
	rec.CreatedAt = time.Unix(createdAt, 0)
	rec.UpdatedAt = time.Unix(updatedAt, 0)
	rec.Overlays, err = edit.UnmarshalOverlays(overlays)
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
