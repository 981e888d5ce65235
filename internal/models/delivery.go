package models

type DeliveryStatus string

const (
	DeliverySuccess DeliveryStatus = "success"
	DeliveryFailed  DeliveryStatus = "failed"
)

// DeliveryResult records the single attempt made for one subscriber.
type DeliveryResult struct {
	ID         string         `json:"id"`
	URL        string         `json:"url"`
	Event      string         `json:"event"`
	Status     DeliveryStatus `json:"status"`
	StatusCode int            `json:"status_code"`
	LatencyMs  int64          `json:"latency_ms"`
	Error      string         `json:"error,omitempty"`
}
