package utils

import (
	"encoding/json"
	"log"
	"net/http"
	"time"
)

// TimestampLayout formats Envelope.Timestamp.
const TimestampLayout = "2006-01-02 15:04:05.000000"

const (
	StatusOK    = "OK"
	StatusError = "ERROR"
)

// Envelope wraps every JSON body the API returns.
type Envelope struct {
	Data      any    `json:"data"`
	Status    string `json:"status"`
	Message   string `json:"message"`
	Timestamp string `json:"timestamp"`
}

// NewEnvelope stamps an envelope with the current time.
func NewEnvelope(status string, data any, message string) Envelope {
	return Envelope{
		Data:      data,
		Status:    status,
		Message:   message,
		Timestamp: time.Now().Format(TimestampLayout),
	}
}

// RespondJSON writes payload as JSON.
func RespondJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.Printf("failed to encode response: %v", err)
	}
}

// RespondOK writes a 200 envelope.
func RespondOK(w http.ResponseWriter, data any, message string) {
	RespondJSON(w, http.StatusOK, NewEnvelope(StatusOK, data, message))
}

// RespondError writes an ERROR envelope with the given status code.
func RespondError(w http.ResponseWriter, status int, message string) {
	RespondJSON(w, status, NewEnvelope(StatusError, nil, message))
}
