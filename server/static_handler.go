package server

import (
	"errors"
	"net/http"

	"PlaySync/logger"
	"PlaySync/storage"
)

// MediaFileHandler 处理媒体文件请求, from the local directory or MinIO alike.
// Range requests are supported through http.ServeContent.
type MediaFileHandler struct {
	store storage.Store
}

// NewMediaFileHandler 创建 MediaFileHandler 实例
func NewMediaFileHandler(store storage.Store) *MediaFileHandler {
	return &MediaFileHandler{store: store}
}

// ServeHTTP expects the path with the public prefix already stripped.
func (h *MediaFileHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	obj, info, err := h.store.Open(r.Context(), r.URL.Path)
	switch {
	case errors.Is(err, storage.ErrObjectNotFound), errors.Is(err, storage.ErrInvalidName):
		http.Error(w, "File not found", http.StatusNotFound)
		return
	case err != nil:
		logger.Error("open media file failed", logger.String("object", r.URL.Path), logger.ErrorField(err))
		http.Error(w, "Failed to open file", http.StatusInternalServerError)
		return
	}
	defer obj.Close()

	w.Header().Set("Content-Type", info.ContentType)
	w.Header().Set("Cache-Control", "public, max-age=31536000")
	http.ServeContent(w, r, info.Key, info.LastModified, obj)
}
