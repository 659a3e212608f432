package playlist

import (
	"encoding/json"
	"time"
)

// MessageType 消息类型
type MessageType string

const (
	MsgTypeSubscribe MessageType = "subscribe" // 订阅播放列表
	MsgTypeSub       MessageType = "sub"       // subscribe 的旧名称
	MsgTypePlay      MessageType = "play"
	MsgTypePause     MessageType = "pause"
	MsgTypeStop      MessageType = "stop"
	MsgTypeSeek      MessageType = "seek"
	MsgTypeVolume    MessageType = "volume"
	MsgTypeSwitch    MessageType = "switch" // 切换媒体
	MsgTypePing      MessageType = "ping"
	MsgTypePong      MessageType = "pong"
	MsgTypeStatus    MessageType = "status" // 播放状态推送
)

// WSMessage WebSocket 消息结构
type WSMessage struct {
	Type      MessageType     `json:"type"`
	Data      json.RawMessage `json:"data,omitempty"`
	Timestamp int64           `json:"timestamp"`
}

// CommandData is the payload of inbound commands. Fields a command does not use are ignored.
type CommandData struct {
	PlayListID string   `json:"playListId"`
	PlaylistID string   `json:"playlistId"` // accepted spelling from newer clients
	UserToken  string   `json:"userToken"`
	Time       *float64 `json:"time,omitempty"`
	Volume     *float64 `json:"volume,omitempty"`
	MediaID    string   `json:"mediaId,omitempty"`
}

// Playlist returns whichever playlist id spelling was sent.
func (d *CommandData) Playlist() string {
	if d.PlayListID != "" {
		return d.PlayListID
	}
	return d.PlaylistID
}

// encode builds a timestamped envelope.
func encode(t MessageType, data interface{}) ([]byte, error) {
	msg := WSMessage{Type: t, Timestamp: time.Now().UnixMilli()}
	if data != nil {
		raw, err := json.Marshal(data)
		if err != nil {
			return nil, err
		}
		msg.Data = raw
	}
	return json.Marshal(msg)
}
