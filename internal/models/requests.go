package models

// PowerRequest is the body of the power endpoints.
type PowerRequest struct {
	On *bool `json:"on"`
}

// Op names accepted by POST /api/sensors/{name}/ops/{op}.
const (
	OpGPIO  = "gpio"
	OpClock = "clock"
	OpRail  = "rail"
	OpCSI   = "csi"
)

// ValidOp reports whether op names a single platform entry point.
func ValidOp(op string) bool {
	switch op {
	case OpGPIO, OpClock, OpRail, OpCSI:
		return true
	}
	return false
}
