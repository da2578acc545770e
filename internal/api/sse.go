package api

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/google/uuid"
	"github.com/micro-nova/campower/internal/models"
)

// sseEvents handles the SSE (Server-Sent Events) endpoint.
// Clients receive a snapshot event per sensor immediately, then every sensor
// event as it happens. Repeated ?sensor= parameters narrow the stream to the
// named sensors.
func (h *Handlers) sseEvents(w http.ResponseWriter, r *http.Request) {
	names := r.URL.Query()["sensor"]
	for _, name := range names {
		if _, appErr := h.ctrl.Sensor(name); appErr != nil {
			writeError(w, appErr)
			return
		}
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming not supported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no") // Disable nginx buffering

	id := uuid.New().String()
	ch := h.events.Subscribe(id, names...)
	defer h.events.Unsubscribe(id)

	for _, st := range h.snapshot(names) {
		sendSSE(w, flusher, models.Event{Sensor: st, Reason: "snapshot"})
	}

	for {
		select {
		case ev, ok := <-ch:
			if !ok {
				return
			}
			sendSSE(w, flusher, ev)
		case <-r.Context().Done():
			return
		}
	}
}

func (h *Handlers) snapshot(names []string) []models.SensorStatus {
	if len(names) == 0 {
		return h.ctrl.Sensors()
	}
	out := make([]models.SensorStatus, 0, len(names))
	for _, name := range names {
		if st, appErr := h.ctrl.Sensor(name); appErr == nil {
			out = append(out, st)
		}
	}
	return out
}

func sendSSE(w http.ResponseWriter, flusher http.Flusher, v interface{}) {
	data, err := json.Marshal(v)
	if err != nil {
		return
	}
	_, _ = fmt.Fprintf(w, "data: %s\n\n", data)
	flusher.Flush()
}
