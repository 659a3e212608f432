package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"PlaySync/core/media"
	"PlaySync/logger"

	"github.com/gorilla/mux"
)

// UserTokenRequest add-user / remove-user 请求体
type UserTokenRequest struct {
	UserToken string `json:"userToken"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Warn("write response failed", logger.ErrorField(err))
	}
}

// readUserToken accepts a JSON body or a form field.
func readUserToken(r *http.Request) (string, error) {
	if strings.HasPrefix(r.Header.Get("Content-Type"), "application/json") {
		var req UserTokenRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			return "", fmt.Errorf("invalid request body: %w", err)
		}
		return strings.TrimSpace(req.UserToken), nil
	}
	if err := r.ParseForm(); err != nil {
		return "", fmt.Errorf("invalid form: %w", err)
	}
	return strings.TrimSpace(r.FormValue("userToken")), nil
}

// AddUserHandler 添加管理员令牌
func (s *Server) AddUserHandler(w http.ResponseWriter, r *http.Request) {
	token, err := readUserToken(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if token == "" {
		http.Error(w, "Missing 'userToken'", http.StatusBadRequest)
		return
	}
	if err := s.gate.Users.Add(r.Context(), token); err != nil {
		logger.Error("add admin token failed", logger.ErrorField(err))
		http.Error(w, fmt.Sprintf("Failed to add user: %v", err), http.StatusInternalServerError)
		return
	}
	logger.Info("admin token added")
	w.WriteHeader(http.StatusOK)
}

// RemoveUserHandler 移除管理员令牌. Removing an unknown token succeeds.
func (s *Server) RemoveUserHandler(w http.ResponseWriter, r *http.Request) {
	token, err := readUserToken(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if token == "" {
		http.Error(w, "Missing 'userToken'", http.StatusBadRequest)
		return
	}
	if err := s.gate.Users.Remove(r.Context(), token); err != nil {
		logger.Error("remove admin token failed", logger.ErrorField(err))
		http.Error(w, fmt.Sprintf("Failed to remove user: %v", err), http.StatusInternalServerError)
		return
	}
	logger.Info("admin token removed")
	w.WriteHeader(http.StatusOK)
}

// UploadHandler 上传媒体文件
// multipart fields: playListId, file
func (s *Server) UploadHandler(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.maxUpload)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			http.Error(w, "File too large", http.StatusRequestEntityTooLarge)
			return
		}
		http.Error(w, fmt.Sprintf("Failed to parse multipart form: %v", err), http.StatusBadRequest)
		return
	}
	defer r.MultipartForm.RemoveAll()

	playlistID := strings.TrimSpace(r.FormValue("playListId"))
	if playlistID == "" {
		http.Error(w, "Missing 'playListId' in form", http.StatusBadRequest)
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		http.Error(w, "Missing 'file' in form", http.StatusBadRequest)
		return
	}
	defer file.Close()

	item, err := s.library.Upload(r.Context(), playlistID, header.Filename, file)
	if err != nil {
		if errors.Is(err, media.ErrInvalidUpload) {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		logger.Error("upload failed",
			logger.String("playListId", playlistID),
			logger.String("filename", header.Filename),
			logger.ErrorField(err))
		http.Error(w, fmt.Sprintf("Failed to upload media: %v", err), http.StatusInternalServerError)
		return
	}

	// the record exists either way; a playlist that cannot be seeded now is
	// seeded on the next start
	if _, _, err := s.engine.Activate(r.Context(), item); err != nil {
		logger.Error("activate playlist failed",
			logger.String("playListId", playlistID),
			logger.String("mediaId", item.ID),
			logger.ErrorField(err))
	}
	writeJSON(w, http.StatusOK, item)
}

// DeleteMediaHandler 标记媒体待删除; the engine removes it once it is playing
func (s *Server) DeleteMediaHandler(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if err := s.library.MarkForDeletion(id); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	w.WriteHeader(http.StatusOK)
}

// ListPlaylistHandler 获取播放列表
func (s *Server) ListPlaylistHandler(w http.ResponseWriter, r *http.Request) {
	playlistID := mux.Vars(r)["playListId"]
	items, err := s.library.ListVisible(r.Context(), playlistID)
	if err != nil {
		logger.Error("list playlist failed", logger.String("playListId", playlistID), logger.ErrorField(err))
		http.Error(w, fmt.Sprintf("Failed to list playlist: %v", err), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, items)
}

// HealthHandler 健康检查
func (s *Server) HealthHandler(w http.ResponseWriter, r *http.Request) {
	stats := s.engine.Stats()
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":           "ok",
		"time":             time.Now().UTC().Format(time.RFC3339),
		"playlists":        stats.Playlists,
		"pendingDeletions": stats.PendingDeletions,
	})
}
