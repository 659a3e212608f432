package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"PlaySync/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ErrMediaNotFound is returned when a media record does not exist.
var ErrMediaNotFound = errors.New("media not found")

// MediaRepository 媒体记录数据访问接口
type MediaRepository interface {
	Create(ctx context.Context, item *model.MediaItem) error
	ListByPlaylist(ctx context.Context, playlistID string) ([]*model.MediaItem, error)
	ListAll(ctx context.Context) ([]*model.MediaItem, error)
	FindByID(ctx context.Context, id string) (*model.MediaItem, error)
	FindInPlaylist(ctx context.Context, playlistID, id string) (*model.MediaItem, error)
	FindFirst(ctx context.Context, playlistID string) (*model.MediaItem, error)
	DeleteByID(ctx context.Context, id string) error
}

type gormMediaRepository struct {
	db *gorm.DB
}

// NewGormMediaRepository 创建 GORM 媒体仓库
func NewGormMediaRepository(db *gorm.DB) MediaRepository {
	return &gormMediaRepository{db: db}
}

// Create 创建媒体记录，sortOrder 在事务内取当前最大值加一
func (r *gormMediaRepository) Create(ctx context.Context, item *model.MediaItem) error {
	if item.ID == "" {
		item.ID = uuid.NewString()
	}
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var maxOrder sql.NullInt64
		if err := tx.Model(&model.MediaItem{}).
			Where("playlist_id = ?", item.PlaylistID).
			Select("MAX(sort_order)").
			Row().Scan(&maxOrder); err != nil {
			return fmt.Errorf("read max sort order: %w", err)
		}
		item.SortOrder = 1
		if maxOrder.Valid {
			item.SortOrder = int(maxOrder.Int64) + 1
		}
		if err := tx.Create(item).Error; err != nil {
			return fmt.Errorf("create media %s: %w", item.ID, err)
		}
		return nil
	})
}

// ListByPlaylist 按 sortOrder 升序列出播放列表
func (r *gormMediaRepository) ListByPlaylist(ctx context.Context, playlistID string) ([]*model.MediaItem, error) {
	var items []*model.MediaItem
	err := r.db.WithContext(ctx).
		Where("playlist_id = ?", playlistID).
		Order("sort_order ASC").
		Find(&items).Error
	return items, err
}

// ListAll 列出全部媒体，按播放列表和 sortOrder 排序
func (r *gormMediaRepository) ListAll(ctx context.Context) ([]*model.MediaItem, error) {
	var items []*model.MediaItem
	err := r.db.WithContext(ctx).
		Order("playlist_id ASC").
		Order("sort_order ASC").
		Find(&items).Error
	return items, err
}

func (r *gormMediaRepository) FindByID(ctx context.Context, id string) (*model.MediaItem, error) {
	return r.first(r.db.WithContext(ctx).Where("id = ?", id))
}

func (r *gormMediaRepository) FindInPlaylist(ctx context.Context, playlistID, id string) (*model.MediaItem, error) {
	return r.first(r.db.WithContext(ctx).Where("id = ? AND playlist_id = ?", id, playlistID))
}

// FindFirst 返回 sortOrder 最小的一条
func (r *gormMediaRepository) FindFirst(ctx context.Context, playlistID string) (*model.MediaItem, error) {
	return r.first(r.db.WithContext(ctx).Where("playlist_id = ?", playlistID).Order("sort_order ASC"))
}

func (r *gormMediaRepository) first(q *gorm.DB) (*model.MediaItem, error) {
	var item model.MediaItem
	if err := q.First(&item).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrMediaNotFound
		}
		return nil, err
	}
	return &item, nil
}

// DeleteByID 删除媒体记录
func (r *gormMediaRepository) DeleteByID(ctx context.Context, id string) error {
	res := r.db.WithContext(ctx).Where("id = ?", id).Delete(&model.MediaItem{})
	if res.Error != nil {
		return fmt.Errorf("delete media %s: %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrMediaNotFound
	}
	return nil
}
