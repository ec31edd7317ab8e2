package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"medinv/m/domain"
	"medinv/m/internal/auth"
	"medinv/m/internal/dispense"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Origins are enforced by the CORS layer and the token check.
	CheckOrigin: func(r *http.Request) bool { return true },
}

type dispensingState struct {
	Paused  bool                    `json:"paused"`
	Records []domain.DispenseRecord `json:"records"`
}

func (h *Handler) feedOrUnavailable(w http.ResponseWriter) bool {
	if h.feed == nil {
		respondError(w, http.StatusServiceUnavailable, "dispensing feed disabled")
		return false
	}
	return true
}

func (h *Handler) dispensingSnapshot(w http.ResponseWriter, r *http.Request) {
	if !h.feedOrUnavailable(w) {
		return
	}
	respondJSON(w, http.StatusOK, dispensingState{Paused: h.feed.Paused(), Records: h.feed.Snapshot()})
}

func (h *Handler) pauseDispensing(w http.ResponseWriter, r *http.Request) {
	if !h.feedOrUnavailable(w) {
		return
	}
	h.feed.Pause()
	respondJSON(w, http.StatusOK, map[string]bool{"paused": true})
}

func (h *Handler) resumeDispensing(w http.ResponseWriter, r *http.Request) {
	if !h.feedOrUnavailable(w) {
		return
	}
	h.feed.Resume()
	respondJSON(w, http.StatusOK, map[string]bool{"paused": false})
}

// markDispensed toggles the flag. Only the transition to dispensed is audited.
func (h *Handler) markDispensed(w http.ResponseWriter, r *http.Request) {
	if !h.feedOrUnavailable(w) {
		return
	}
	record, err := h.feed.MarkDispensed(chi.URLParam(r, "folio"))
	if errors.Is(err, dispense.ErrUnknownFolio) {
		respondError(w, http.StatusNotFound, "not found")
		return
	}
	if record.Dispensed {
		principal, _ := auth.FromContext(r.Context())
		if _, err := h.activities.RecordDispense(r.Context(), principal, record); err != nil {
			// Without an audit row the record must not stay dispensed.
			if _, undoErr := h.feed.MarkDispensed(record.Folio); undoErr != nil {
				h.logger.Warn("undo dispensed flag", zap.Error(undoErr), zap.String("folio", record.Folio))
			}
			h.respondServiceError(w, r, err, "unable to record dispense")
			return
		}
	}
	respondJSON(w, http.StatusOK, record)
}

// dispensingStream pushes each new record as a JSON text frame.
func (h *Handler) dispensingStream(w http.ResponseWriter, r *http.Request) {
	if !h.feedOrUnavailable(w) {
		return
	}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}
	records, cancel := h.feed.Subscribe()
	defer cancel()

	closed := make(chan struct{})
	go readPump(conn, closed)
	h.writePump(conn, records, closed)
}

// readPump discards client frames and keeps the read deadline alive on pongs.
func readPump(conn *websocket.Conn, closed chan<- struct{}) {
	defer close(closed)
	conn.SetReadLimit(512)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *Handler) writePump(conn *websocket.Conn, records <-chan domain.DispenseRecord, closed <-chan struct{}) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = conn.Close()
	}()
	for {
		select {
		case <-closed:
			return
		case record, ok := <-records:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := conn.WriteJSON(record); err != nil {
				h.logger.Debug("websocket write failed", zap.Error(err))
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
