package res

import (
	"encoding/json"
	"net/http"
)

// Json writes data as a JSON response with the given status code.
func Json(w http.ResponseWriter, data any, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(data)
}

// Error writes the {"error": message} body used by every endpoint.
func Error(w http.ResponseWriter, message string, statusCode int) {
	Json(w, map[string]string{"error": message}, statusCode)
}
