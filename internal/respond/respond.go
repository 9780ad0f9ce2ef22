// Package respond writes the service's JSON response envelope.
package respond

import (
	"encoding/json"
	"net/http"
	"time"
)

// Envelope is the body of every JSON response. Data is omitted on failures.
type Envelope struct {
	Success   bool        `json:"success"`
	Message   string      `json:"message"`
	Data      interface{} `json:"data,omitempty"`
	Timestamp string      `json:"timestamp"`
}

var now = time.Now

// JSON writes a success envelope carrying data.
func JSON(w http.ResponseWriter, status int, message string, data interface{}) {
	write(w, status, Envelope{
		Success:   true,
		Message:   message,
		Data:      data,
		Timestamp: now().UTC().Format(time.RFC3339),
	})
}

// Error writes a failure envelope. message must be safe to show a client.
func Error(w http.ResponseWriter, status int, message string) {
	write(w, status, Envelope{
		Success:   false,
		Message:   message,
		Timestamp: now().UTC().Format(time.RFC3339),
	})
}

func write(w http.ResponseWriter, status int, env Envelope) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(env)
}

// Raw writes v as the whole body, without the envelope. It serves probes
// whose callers expect a flat document.
func Raw(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
