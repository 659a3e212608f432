package playlist

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"PlaySync/core/auth"
	"PlaySync/logger"
	"PlaySync/metrics"
	"PlaySync/model"
	"PlaySync/repository"
)

// ErrCommandInvalid is returned for malformed commands.
var ErrCommandInvalid = errors.New("invalid command")

// Authorizer checks admin tokens carried in commands.
type Authorizer interface {
	AuthorizeToken(token string) error
}

// MessageHandler processes one inbound message from a connection.
type MessageHandler interface {
	Handle(ctx context.Context, c Conn, msg *WSMessage) error
}

// CommandHandler applies client commands to playlist state. Every outcome other
// than success is a silent no-op towards the client; the returned error is for
// logging and tests only.
type CommandHandler struct {
	reg      *Registry
	subs     *Subscribers
	dispatch *Dispatcher
	catalog  Catalog
	auth     Authorizer
}

// NewCommandHandler 创建命令处理器
func NewCommandHandler(reg *Registry, subs *Subscribers, dispatch *Dispatcher, catalog Catalog, auth Authorizer) *CommandHandler {
	return &CommandHandler{reg: reg, subs: subs, dispatch: dispatch, catalog: catalog, auth: auth}
}

// Handle dispatches msg by type.
func (h *CommandHandler) Handle(ctx context.Context, c Conn, msg *WSMessage) error {
	var data CommandData
	if len(msg.Data) > 0 {
		if err := json.Unmarshal(msg.Data, &data); err != nil {
			return h.done(msg.Type, c, "", fmt.Errorf("%w: %v", ErrCommandInvalid, err))
		}
	}
	playlistID := data.Playlist()

	var err error
	switch msg.Type {
	case MsgTypeSubscribe, MsgTypeSub:
		err = h.subscribe(ctx, c, playlistID)
	case MsgTypePlay:
		err = h.control(ctx, playlistID, data.UserToken, func(st *model.PlaylistState) error {
			st.IsPlaying = true
			return nil
		})
	case MsgTypePause:
		err = h.control(ctx, playlistID, data.UserToken, func(st *model.PlaylistState) error {
			st.IsPlaying = false
			return nil
		})
	case MsgTypeStop:
		err = h.control(ctx, playlistID, data.UserToken, func(st *model.PlaylistState) error {
			st.IsPlaying = false
			st.Position = 0
			return nil
		})
	case MsgTypeSeek:
		// no clamp: a position past the end is corrected by the next tick
		err = h.control(ctx, playlistID, data.UserToken, func(st *model.PlaylistState) error {
			if data.Time == nil {
				return fmt.Errorf("%w: seek without time", ErrCommandInvalid)
			}
			st.Position = *data.Time
			return nil
		})
	case MsgTypeVolume:
		err = h.control(ctx, playlistID, data.UserToken, func(st *model.PlaylistState) error {
			if data.Volume == nil {
				return fmt.Errorf("%w: volume without value", ErrCommandInvalid)
			}
			st.Volume = *data.Volume
			return nil
		})
	case MsgTypeSwitch:
		err = h.control(ctx, playlistID, data.UserToken, func(st *model.PlaylistState) error {
			return h.switchTo(ctx, st, data.MediaID)
		})
	default:
		err = fmt.Errorf("%w: unknown type %q", ErrCommandInvalid, msg.Type)
	}
	return h.done(msg.Type, c, playlistID, err)
}

func (h *CommandHandler) done(t MessageType, c Conn, playlistID string, err error) error {
	result := "ok"
	switch {
	case err == nil:
	case errors.Is(err, ErrPlaylistNotFound), errors.Is(err, repository.ErrMediaNotFound):
		result = "not_found"
	case errors.Is(err, ErrCommandInvalid):
		result = "invalid"
	case errors.Is(err, auth.ErrUnauthorized):
		result = "unauthorized"
	default:
		result = "error"
	}
	metrics.Commands.WithLabelValues(string(t), result).Inc()

	if err != nil {
		logger.Debug("command ignored",
			logger.String("type", string(t)),
			logger.String("playListId", playlistID),
			logger.String("conn", c.ID()),
			logger.String("reason", result),
			logger.ErrorField(err))
	}
	return err
}

// subscribe needs no token: it only grants read access to status.
func (h *CommandHandler) subscribe(ctx context.Context, c Conn, playlistID string) error {
	if playlistID == "" {
		return fmt.Errorf("%w: missing playListId", ErrCommandInvalid)
	}
	h.subs.Add(playlistID, c)

	// the reply is sent on the actor, so no broadcast can overtake it
	var err error
	if !h.reg.View(ctx, playlistID, func(st model.PlaylistState) {
		err = h.dispatch.Unicast(c, st.Status())
	}) {
		// unknown playlist: stay subscribed, nothing to send yet
		return nil
	}
	return err
}

// control runs an admin-only transition. The order of checks is token, then
// playlist existence, so unauthorized callers learn nothing about playlists.
func (h *CommandHandler) control(ctx context.Context, playlistID, token string, fn func(st *model.PlaylistState) error) error {
	if playlistID == "" {
		return fmt.Errorf("%w: missing playListId", ErrCommandInvalid)
	}
	if err := h.auth.AuthorizeToken(token); err != nil {
		return err
	}

	_, err := h.reg.Mutate(ctx, playlistID, func(st *model.PlaylistState) error {
		if err := fn(st); err != nil {
			return err
		}
		h.dispatch.Broadcast(playlistID, st.Status())
		return nil
	})
	switch {
	case errors.Is(err, ErrPlaylistNotFound):
		// unknown playlist: no state change, no broadcast
		return err
	case err != nil:
		// invalid payload or media not in this playlist: state left as it was
		return err
	}
	return nil
}

// switchTo runs on the actor, so the catalog lookup and the state change are one step.
func (h *CommandHandler) switchTo(ctx context.Context, st *model.PlaylistState, mediaID string) error {
	if mediaID == "" {
		return fmt.Errorf("%w: switch without mediaId", ErrCommandInvalid)
	}
	item, err := h.catalog.FindInPlaylist(ctx, st.PlaylistID, mediaID)
	if err != nil {
		// ErrMediaNotFound: media of another playlist or unknown, no-op
		return err
	}
	st.CurrentMediaID = item.ID
	st.CurrentFilePath = item.FilePath
	st.Duration = item.DurationSeconds
	st.IsPlaying = true
	st.Position = 0
	return nil
}
