package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"unicode/utf8"
)

const maxBodyBytes = 1 << 20

// errorBody matches the {"detail": ...} error shape the web client expects.
type errorBody struct {
	Detail string `json:"detail"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, errorBody{Detail: detail})
}

// decodeJSON reads a bounded JSON body into dst. Failures are reported to the client as 422.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	body := http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(body).Decode(dst); err != nil {
		var maxErr *http.MaxBytesError
		switch {
		case errors.As(err, &maxErr):
			writeError(w, http.StatusRequestEntityTooLarge, "Request body too large")
		case errors.Is(err, io.EOF):
			writeError(w, http.StatusUnprocessableEntity, "Request body is required")
		default:
			writeError(w, http.StatusUnprocessableEntity, "Invalid JSON body: "+err.Error())
		}
		return false
	}
	return true
}

// checkLength validates a field length in characters. It writes a 422 and returns false when
// value falls outside [minLen, maxLen]; maxLen 0 means unbounded.
func checkLength(w http.ResponseWriter, field, value string, minLen, maxLen int) bool {
	n := utf8.RuneCountInString(value)
	switch {
	case n < minLen:
		writeError(w, http.StatusUnprocessableEntity, fmt.Sprintf("%s must be at least %d characters", field, minLen))
		return false
	case maxLen > 0 && n > maxLen:
		writeError(w, http.StatusUnprocessableEntity, fmt.Sprintf("%s must be at most %d characters", field, maxLen))
		return false
	}
	return true
}
