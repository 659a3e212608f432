package model

// PlaylistState is the live playback state of one playlist.
type PlaylistState struct {
	PlaylistID      string
	CurrentMediaID  string
	CurrentFilePath string
	IsPlaying       bool
	Position        float64 // seconds
	Volume          float64 // 0..1, not clamped
	Duration        float64 // seconds
}

// Status is the payload of a "status" message sent to clients.
type Status struct {
	PlaylistID string  `json:"playListId"`
	MediaID    string  `json:"mediaId"`
	IsPlaying  bool    `json:"isPlaying"`
	FilePath   string  `json:"filePath"`
	Time       float64 `json:"time"`
	Volume     float64 `json:"volume"`
	Duration   float64 `json:"duration"`
}

// Status builds the wire snapshot of s.
func (s PlaylistState) Status() Status {
	return Status{
		PlaylistID: s.PlaylistID,
		MediaID:    s.CurrentMediaID,
		IsPlaying:  s.IsPlaying,
		FilePath:   s.CurrentFilePath,
		Time:       s.Position,
		Volume:     s.Volume,
		Duration:   s.Duration,
	}
}

// IdleStatus is broadcast when a playlist is torn down.
func IdleStatus(playlistID string) Status {
	return Status{PlaylistID: playlistID}
}

// NewPlaylistState seeds a playing state from the first media item at zero with full volume.
func NewPlaylistState(item *MediaItem) PlaylistState {
	return PlaylistState{
		PlaylistID:      item.PlaylistID,
		CurrentMediaID:  item.ID,
		CurrentFilePath: item.FilePath,
		IsPlaying:       true,
		Position:        0,
		Volume:          1,
		Duration:        item.DurationSeconds,
	}
}
