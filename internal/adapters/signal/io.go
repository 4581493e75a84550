package signal

import (
	"context"
	"errors"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/dkeye/devicefarm/internal/core"
)

// writePump drains the send queue until it is closed or ctx ends.
// Exiting closes the socket so the read pump unblocks.
func (ctl *SignalWSController) writePump(ctx context.Context, c *WsSignalConn) {
	defer func() { _ = c.conn.Close() }()
	for {
		select {
		case <-ctx.Done():
			log.Debug().Str("module", "signal").Str("conn", string(c.id)).Msg("writePump ctx done")
			return
		case data, ok := <-c.send:
			if !ok {
				log.Debug().Str("module", "signal").Str("conn", string(c.id)).Msg("writePump channel closed")
				return
			}
			if err := c.conn.SetWriteDeadline(time.Now().Add(ctl.opts.WriteWait)); err != nil {
				log.Error().Err(err).Str("module", "signal").Str("conn", string(c.id)).Msg("writePump set deadline")
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				log.Warn().Err(err).Str("module", "signal").Str("conn", string(c.id)).Msg("writePump write error")
				return
			}
		}
	}
}

// readPump feeds every inbound frame to the relay and deregisters the
// connection when the socket closes or fails.
func (ctl *SignalWSController) readPump(ctx context.Context, cancel context.CancelFunc, c *WsSignalConn) {
	var cause error
	defer func() {
		cancel()
		ctl.Relay.Disconnect(c.id, cause)
	}()

	for {
		mt, data, err := c.conn.ReadMessage()
		if err != nil {
			if !isNormalClose(err) && ctx.Err() == nil {
				cause = err
			}
			return
		}
		if mt != websocket.TextMessage {
			// Binary frames are decoded the same way; browsers only send text here.
			log.Debug().Str("module", "signal").Str("conn", string(c.id)).Int("message_type", mt).Msg("non-text frame")
		}
		ctl.Relay.Dispatch(c.id, core.Frame(data))
	}
}

func isNormalClose(err error) bool {
	if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseNoStatusReceived) {
		return true
	}
	return errors.Is(err, websocket.ErrCloseSent)
}
