package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/micro-nova/campower/internal/models"
)

func (h *Handlers) getInfo(w http.ResponseWriter, r *http.Request) {
	info := models.Info{}
	if h.info != nil {
		info = h.info()
	}
	info.Sensors = len(h.ctrl.Sensors())
	writeJSON(w, http.StatusOK, info)
}

func (h *Handlers) getSensors(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{"sensors": h.ctrl.Sensors()})
}

func (h *Handlers) getSensor(w http.ResponseWriter, r *http.Request) {
	st, appErr := h.ctrl.Sensor(chi.URLParam(r, "name"))
	if appErr != nil {
		writeError(w, appErr)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

// setPower runs the composite power-up or power-down sequence.
func (h *Handlers) setPower(w http.ResponseWriter, r *http.Request) {
	on, appErr := decodeOn(r)
	if appErr != nil {
		writeError(w, appErr)
		return
	}
	name := chi.URLParam(r, "name")
	var st models.SensorStatus
	if on {
		st, appErr = h.ctrl.PowerUp(r.Context(), name)
	} else {
		st, appErr = h.ctrl.PowerDown(r.Context(), name)
	}
	if appErr != nil {
		writeError(w, appErr)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

// setOp drives one platform entry point (gpio, clock, rail or csi).
func (h *Handlers) setOp(w http.ResponseWriter, r *http.Request) {
	op := chi.URLParam(r, "op")
	if !models.ValidOp(op) {
		writeError(w, models.ErrNotFound("unknown op "+op))
		return
	}
	on, appErr := decodeOn(r)
	if appErr != nil {
		writeError(w, appErr)
		return
	}
	st, appErr := h.ctrl.SetOp(r.Context(), chi.URLParam(r, "name"), op, on)
	if appErr != nil {
		writeError(w, appErr)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func (h *Handlers) reattach(w http.ResponseWriter, r *http.Request) {
	st, appErr := h.ctrl.Reattach(r.Context(), chi.URLParam(r, "name"))
	if appErr != nil {
		writeError(w, appErr)
		return
	}
	writeJSON(w, http.StatusOK, st)
}
