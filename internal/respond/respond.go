// Package respond writes JSON bodies for the gateway's own endpoints.
package respond

import (
	"encoding/json"
	"net/http"
)

// JSON writes v with the given status. Encoding errors are ignored once the
// header is out; there is nothing left to tell the client.
func JSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func Error(w http.ResponseWriter, status int, message string) {
	JSON(w, status, map[string]string{"error": message})
}
