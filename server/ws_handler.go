package server

import (
	"net/http"

	"PlaySync/core/playlist"
	"PlaySync/logger"
)

// WebSocketHandler 建立事件通道连接
func (s *Server) WebSocketHandler(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Error("WebSocket 升级失败", logger.ErrorField(err))
		return
	}

	client := playlist.NewClient(conn, s.subs)
	go client.WritePump()
	go client.ReadPump(s.ctx, s.commands)

	logger.Debug("WebSocket 连接建立",
		logger.String("conn", client.ID()),
		logger.String("remote", r.RemoteAddr))
}
