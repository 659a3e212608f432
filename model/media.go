package model

import "time"

// MediaItem is an uploaded audio file belonging to a playlist.
type MediaItem struct {
	ID              string    `gorm:"primaryKey;type:varchar(36)" json:"id"`
	PlaylistID      string    `gorm:"type:varchar(191);not null;index:idx_playlist_order,priority:1" json:"playListId"`
	FilePath        string    `gorm:"type:varchar(512);not null" json:"filePath"` // public path, e.g. /uploads/<name>
	DurationSeconds float64   `gorm:"not null" json:"duration"`
	SortOrder       int       `gorm:"not null;index:idx_playlist_order,priority:2" json:"sortOrder"`
	CreatedAt       time.Time `json:"createdAt"`
}

// TableName pins the table name regardless of naming strategy.
func (MediaItem) TableName() string {
	return "media_items"
}
