package logging

import (
	"encoding/json"
	"log"
	"time"
)

// Fields is one structured log line. Zero-valued fields are omitted.
type Fields struct {
	Service    string `json:"service"`
	Route      string `json:"route,omitempty"`
	Method     string `json:"method,omitempty"`
	Status     int    `json:"status,omitempty"`
	UserID     string `json:"user_id,omitempty"`
	OrderID    string `json:"order_id,omitempty"`
	ProductID  string `json:"product_id,omitempty"`
	Event      string `json:"event,omitempty"`
	DurationMS int64  `json:"duration_ms,omitempty"`
	Error      string `json:"error,omitempty"`
	Message    string `json:"message,omitempty"`
}

// Log writes fields as one JSON line with a timestamp.
func Log(fields Fields) {
	payload := map[string]any{
		"service":   fields.Service,
		"timestamp": time.Now().UTC().Format(time.RFC3339Nano),
	}
	if fields.Route != "" {
		payload["route"] = fields.Route
	}
	if fields.Method != "" {
		payload["method"] = fields.Method
	}
	if fields.Status != 0 {
		payload["status"] = fields.Status
	}
	if fields.UserID != "" {
		payload["user_id"] = fields.UserID
	}
	if fields.OrderID != "" {
		payload["order_id"] = fields.OrderID
	}
	if fields.ProductID != "" {
		payload["product_id"] = fields.ProductID
	}
	if fields.Event != "" {
		payload["event"] = fields.Event
	}
	if fields.DurationMS != 0 {
		payload["duration_ms"] = fields.DurationMS
	}
	if fields.Error != "" {
		payload["error"] = fields.Error
	}
	if fields.Message != "" {
		payload["message"] = fields.Message
	}

	data, err := json.Marshal(payload)
	if err != nil {
		log.Printf("{\"service\":%q,\"event\":\"log_error\",\"error\":%q}", fields.Service, err.Error())
		return
	}
	log.Print(string(data))
}
