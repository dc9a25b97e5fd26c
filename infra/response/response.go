package response

import (
	"encoding/json"
	"net/http"
)

// Envelope is the standardized API response structure.
type Envelope struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	Error   string `json:"error,omitempty"`
	Data    any    `json:"data,omitempty"`
}

// Success writes a successful response with data.
func Success(w http.ResponseWriter, statusCode int, message string, data any) {
	writeJSON(w, statusCode, Envelope{
		Success: true,
		Message: message,
		Data:    data,
	})
}

// Error writes an error response.
func Error(w http.ResponseWriter, statusCode int, message string, err error) {
	env := Envelope{
		Success: false,
		Message: message,
	}
	if err != nil {
		env.Error = err.Error()
	}
	writeJSON(w, statusCode, env)
}

func writeJSON(w http.ResponseWriter, statusCode int, env Envelope) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(env)
}
