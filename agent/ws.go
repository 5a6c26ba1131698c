package agent

import (
	"net/http"

	"github.com/julienschmidt/httprouter"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"
)

const wsReadLimit = 1 << 24

// plotWS serves a streaming draw: the client sends one DrawRequest, the
// server streams warning messages while the draw runs, then a final message
// with Done set.
func (a *Agent) plotWS(w http.ResponseWriter, r *http.Request, params httprouter.Params) {
	wsConn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		CompressionMode: websocket.CompressionContextTakeover,
	})
	if err != nil {
		a.logger.Debugf("error accepting WebSocket conn: %s", err)
		http.Error(w, err.Error(), http.StatusServiceUnavailable)
		return
	}
	wsConn.SetReadLimit(wsReadLimit)
	ctx := r.Context()

	var req DrawRequest
	if err := wsjson.Read(ctx, wsConn, &req); err != nil {
		a.logger.Debugf("error reading draw request: %s", err)
		wsConn.Close(websocket.StatusInvalidFramePayloadData, "reading draw request")
		return
	}

	// The draw is synchronous; warnings are streamed from inside its
	// warning sink as the child reports them.
	resp, err := a.draw(&req, func(warning string) {
		msg := drawStreamMessage{Warning: warning}
		if err := wsjson.Write(ctx, wsConn, &msg); err != nil {
			a.logger.Debugf("error streaming warning: %s", err)
		}
	})
	if err != nil {
		a.logger.Debugf("streaming draw failed: %s", err)
		wsConn.Close(websocket.StatusInternalError, err.Error())
		return
	}

	final := drawStreamMessage{
		Done:        true,
		Rejected:    resp.Rejected,
		Diagnostics: resp.Diagnostics,
		Output:      resp.Output,
	}
	if err := wsjson.Write(ctx, wsConn, &final); err != nil {
		a.logger.Debugf("error writing final message: %s", err)
		wsConn.Close(websocket.StatusInternalError, err.Error())
		return
	}
	wsConn.Close(websocket.StatusNormalClosure, "")
}
