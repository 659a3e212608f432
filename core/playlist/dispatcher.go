package playlist

import (
	"PlaySync/logger"
	"PlaySync/metrics"
	"PlaySync/model"
)

// Dispatcher fans status messages out to subscribers.
type Dispatcher struct {
	subs *Subscribers
}

// NewDispatcher 创建分发器
func NewDispatcher(subs *Subscribers) *Dispatcher {
	return &Dispatcher{subs: subs}
}

// Broadcast sends st to every current subscriber of playlistID. A failed send
// is logged and skipped; disconnect handling removes the handle later.
func (d *Dispatcher) Broadcast(playlistID string, st model.Status) {
	d.fanOut(playlistID, st, "broadcast")
}

// BroadcastIdle sends the teardown status.
func (d *Dispatcher) BroadcastIdle(playlistID string) {
	d.fanOut(playlistID, model.IdleStatus(playlistID), "teardown")
}

// Unicast sends st to a single handle.
func (d *Dispatcher) Unicast(c Conn, st model.Status) error {
	data, err := encode(MsgTypeStatus, st)
	if err != nil {
		return err
	}
	metrics.Broadcasts.WithLabelValues("unicast").Inc()
	if err := c.Send(data); err != nil {
		metrics.SendFailures.Inc()
		logger.Warn("status unicast failed",
			logger.String("playListId", st.PlaylistID),
			logger.String("conn", c.ID()),
			logger.ErrorField(err))
		return err
	}
	return nil
}

func (d *Dispatcher) fanOut(playlistID string, st model.Status, kind string) {
	conns := d.subs.Of(playlistID)
	if len(conns) == 0 {
		return
	}
	data, err := encode(MsgTypeStatus, st)
	if err != nil {
		logger.Error("encode status failed", logger.String("playListId", playlistID), logger.ErrorField(err))
		return
	}
	metrics.Broadcasts.WithLabelValues(kind).Inc()

	for _, c := range conns {
		if err := c.Send(data); err != nil {
			metrics.SendFailures.Inc()
			logger.Warn("status send failed",
				logger.String("playListId", playlistID),
				logger.String("conn", c.ID()),
				logger.ErrorField(err))
		}
	}
}
