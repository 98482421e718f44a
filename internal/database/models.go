package database

import (
	"time"

	"screen-recorder/internal/edit"
)

// Recording is the persisted metadata for one uploaded recording.
type Recording struct {
	ID           string         `json:"id"`
	UserID       string         `json:"userId"`
	Title        string         `json:"title"`
	VideoURL     string         `json:"videoUrl"`
	StoragePath  string         `json:"storagePath"`
	Duration     float64        `json:"duration"`
	ThumbnailURL string         `json:"thumbnailUrl,omitempty"`
	CreatedAt    time.Time      `json:"createdAt"`
	UpdatedAt    time.Time      `json:"updatedAt"`
	IsStarred    bool           `json:"isStarred"`
	StartTime    float64        `json:"startTime"`
	EndTime      float64        `json:"endTime"`
	IsMuted      bool           `json:"isMuted"`
	Overlays     []edit.Overlay `json:"overlays"`
	FolderID     string         `json:"folderId,omitempty"`
}

// Document returns the recording's editable state.
func (r *Recording) Document() edit.Document {
	return edit.Document{
		Title:     r.Title,
		StartTime: r.StartTime,
		EndTime:   r.EndTime,
		IsMuted:   r.IsMuted,
		Overlays:  r.Overlays,
	}
}

// RecordingUpdate carries the fields of a partial update. Nil fields are
// left unchanged.
type RecordingUpdate struct {
	Title     *string `json:"title,omitempty" validate:"omitempty,min=1,max=200"`
	IsStarred *bool   `json:"isStarred,omitempty"`
	FolderID  *string `json:"folderId,omitempty" validate:"omitempty,max=64"`
}

// Empty reports whether the update changes nothing.
func (u RecordingUpdate) Empty() bool {
	return u.Title == nil && u.IsStarred == nil && u.FolderID == nil
}

// RecordingStats summarises a user's library.
type RecordingStats struct {
	Total         int     `json:"total"`
	Starred       int     `json:"starred"`
	TotalDuration float64 `json:"totalDuration"`
}
