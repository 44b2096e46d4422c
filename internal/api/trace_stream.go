package api

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"

	"crossover-lab/internal/storage"
)

const writeWait = 10 * time.Second

// handleTraceStream sends a stored run trace as one JSON message per bar,
// followed by a "done" message, then closes the connection.
// Lookup errors are answered over plain HTTP before the upgrade.
func (s *Server) handleTraceStream(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if s.traceStore == nil {
		writeError(w, http.StatusNotFound, errors.New("no trace store configured"), "storage")
		return
	}

	rows, err := s.traceStore.GetByRunID(r.Context(), id)
	switch {
	case errors.Is(err, storage.ErrNotFound):
		writeError(w, http.StatusNotFound, fmt.Errorf("no trace for run %s", id), "storage")
		return
	case err != nil:
		writeError(w, http.StatusInternalServerError, err, "storage")
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already replied to the client
		s.logger.Warn().Err(err).Str("run_id", id).Msg("websocket upgrade failed")
		return
	}
	defer conn.Close()

	s.metrics.WSClients.Inc()
	defer s.metrics.WSClients.Dec()

	for i, row := range rows {
		if r.Context().Err() != nil {
			return
		}
		_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := conn.WriteJSON(toTraceRowJSON(i, row)); err != nil {
			s.logger.Debug().Err(err).Str("run_id", id).Int("row", i).Msg("trace client went away")
			return
		}
		s.metrics.TraceRowsStreamed.Inc()
	}

	_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := conn.WriteJSON(traceDoneJSON{Event: "done", RunID: id, Rows: len(rows)}); err != nil {
		return
	}
	_ = conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, "trace complete"),
		time.Now().Add(writeWait))
}
