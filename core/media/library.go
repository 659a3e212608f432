package media

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"

	"PlaySync/core/audio"
	"PlaySync/core/playlist"
	"PlaySync/logger"
	"PlaySync/model"
	"PlaySync/repository"
	"PlaySync/storage"

	"github.com/google/uuid"
)

// ErrInvalidUpload 上传参数错误
var ErrInvalidUpload = errors.New("invalid upload")

const maxNameLen = 120

// Library 媒体库: catalog records plus the stored files behind them.
// It is the engine's Catalog, so a deferred delete also removes the file.
type Library struct {
	repo    repository.MediaRepository
	store   storage.Store
	prober  audio.DurationProber
	pending *playlist.PendingDeletions
	tmpDir  string
}

// NewLibrary 创建媒体库
func NewLibrary(repo repository.MediaRepository, store storage.Store, prober audio.DurationProber, pending *playlist.PendingDeletions) *Library {
	return &Library{repo: repo, store: store, prober: prober, pending: pending}
}

// SetTempDir overrides where uploads are staged before they reach the store.
func (l *Library) SetTempDir(dir string) {
	l.tmpDir = dir
}

// Upload stages src, probes its duration, stores it and creates the record.
// Nothing is left behind when a step fails.
func (l *Library) Upload(ctx context.Context, playlistID, filename string, src io.Reader) (*model.MediaItem, error) {
	if playlistID == "" {
		return nil, fmt.Errorf("%w: missing playListId", ErrInvalidUpload)
	}

	id := uuid.NewString()
	name := id + "_" + safeName(filename)

	staged, err := l.stage(src, path.Ext(name))
	if err != nil {
		return nil, err
	}
	defer os.Remove(staged) // no-op once the store has taken it

	duration, err := l.prober.Duration(ctx, staged)
	if err != nil {
		return nil, fmt.Errorf("probe duration: %w", err)
	}

	if err := l.store.Put(ctx, name, staged); err != nil {
		return nil, fmt.Errorf("store media: %w", err)
	}

	item := &model.MediaItem{
		ID:              id,
		PlaylistID:      playlistID,
		FilePath:        storage.PublicPath(name),
		DurationSeconds: duration,
	}
	if err := l.repo.Create(ctx, item); err != nil {
		if rmErr := l.store.Remove(ctx, name); rmErr != nil && !errors.Is(rmErr, storage.ErrObjectNotFound) {
			logger.Warn("cleanup stored media failed", logger.String("object", name), logger.ErrorField(rmErr))
		}
		return nil, fmt.Errorf("create media record: %w", err)
	}

	logger.Info("media uploaded",
		logger.String("playListId", playlistID),
		logger.String("mediaId", id),
		logger.String("object", name),
		logger.Float64("duration", duration))
	return item, nil
}

func (l *Library) stage(src io.Reader, ext string) (string, error) {
	f, err := os.CreateTemp(l.tmpDir, "playsync-upload-*"+ext)
	if err != nil {
		return "", fmt.Errorf("create staging file: %w", err)
	}
	if _, err := io.Copy(f, src); err != nil {
		f.Close()
		os.Remove(f.Name())
		return "", fmt.Errorf("write staging file: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(f.Name())
		return "", fmt.Errorf("close staging file: %w", err)
	}
	return f.Name(), nil
}

// safeName keeps the base name of a client supplied filename.
func safeName(filename string) string {
	base := filepath.Base(strings.ReplaceAll(filename, `\`, "/"))
	base = strings.Map(func(r rune) rune {
		switch {
		case r == '/' || r < 0x20:
			return -1
		case r == ' ':
			return '_'
		}
		return r
	}, base)
	if base == "" || base == "." || base == ".." {
		return "media"
	}
	if len(base) > maxNameLen {
		ext := path.Ext(base)
		if len(ext) > 16 {
			ext = ""
		}
		base = base[:maxNameLen-len(ext)] + ext
	}
	return base
}

// MarkForDeletion queues id; the engine deletes it when it is playing.
func (l *Library) MarkForDeletion(id string) error {
	if id == "" {
		return fmt.Errorf("%w: missing id", ErrInvalidUpload)
	}
	l.pending.Add(id)
	logger.Info("media marked for deletion", logger.String("mediaId", id))
	return nil
}

// ListVisible returns the playlist in play order, hiding items waiting for deletion.
func (l *Library) ListVisible(ctx context.Context, playlistID string) ([]*model.MediaItem, error) {
	items, err := l.repo.ListByPlaylist(ctx, playlistID)
	if err != nil {
		return nil, err
	}
	visible := make([]*model.MediaItem, 0, len(items))
	for _, item := range items {
		if !l.pending.Contains(item.ID) {
			visible = append(visible, item)
		}
	}
	return visible, nil
}

func (l *Library) ListByPlaylist(ctx context.Context, playlistID string) ([]*model.MediaItem, error) {
	return l.repo.ListByPlaylist(ctx, playlistID)
}

func (l *Library) ListAll(ctx context.Context) ([]*model.MediaItem, error) {
	return l.repo.ListAll(ctx)
}

func (l *Library) FindInPlaylist(ctx context.Context, playlistID, id string) (*model.MediaItem, error) {
	return l.repo.FindInPlaylist(ctx, playlistID, id)
}

// DeleteByID removes the record, then its file. A file that cannot be removed
// is only logged: the record is gone and nothing will serve it again.
func (l *Library) DeleteByID(ctx context.Context, id string) error {
	item, err := l.repo.FindByID(ctx, id)
	if err != nil {
		return err
	}
	if err := l.repo.DeleteByID(ctx, id); err != nil {
		return err
	}

	name, err := storage.ObjectName(item.FilePath)
	if err != nil {
		logger.Warn("media file path not in store", logger.String("mediaId", id), logger.String("filePath", item.FilePath))
		return nil
	}
	if err := l.store.Remove(ctx, name); err != nil && !errors.Is(err, storage.ErrObjectNotFound) {
		logger.Warn("remove media file failed",
			logger.String("mediaId", id),
			logger.String("object", name),
			logger.ErrorField(err))
	}
	return nil
}
