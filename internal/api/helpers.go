// Package api implements the campower HTTP control API.
package api

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/micro-nova/campower/internal/models"
)

// Handlers holds dependencies for all HTTP handlers.
type Handlers struct {
	ctrl   Controller
	events EventBus
	info   func() models.Info
}

// Controller is the interface the handlers use to drive sensors.
type Controller interface {
	Sensors() []models.SensorStatus
	Sensor(name string) (models.SensorStatus, *models.AppError)
	PowerUp(ctx context.Context, name string) (models.SensorStatus, *models.AppError)
	PowerDown(ctx context.Context, name string) (models.SensorStatus, *models.AppError)
	SetOp(ctx context.Context, name, op string, on bool) (models.SensorStatus, *models.AppError)
	Reattach(ctx context.Context, name string) (models.SensorStatus, *models.AppError)
}

// EventBus is the interface for subscribing to sensor events. Naming no
// sensors subscribes to all of them.
type EventBus interface {
	Subscribe(id string, sensors ...string) <-chan models.Event
	Unsubscribe(id string)
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError writes an AppError as a JSON response.
func writeError(w http.ResponseWriter, err error) {
	w.Header().Set("Content-Type", "application/json")
	if appErr, ok := err.(*models.AppError); ok {
		w.WriteHeader(appErr.Status)
		_ = json.NewEncoder(w).Encode(appErr)
		return
	}
	w.WriteHeader(http.StatusInternalServerError)
	_ = json.NewEncoder(w).Encode(models.ErrInternal(err.Error()))
}

// decodeOn reads a PowerRequest body and requires the "on" field.
func decodeOn(r *http.Request) (bool, *models.AppError) {
	var req models.PowerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return false, models.ErrBadRequest("invalid JSON: " + err.Error())
	}
	if req.On == nil {
		return false, &models.AppError{Code: "BAD_REQUEST", Message: "missing field", Field: "on", Status: http.StatusBadRequest}
	}
	return *req.On, nil
}
