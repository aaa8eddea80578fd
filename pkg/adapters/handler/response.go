package handler

import (
	"net/http"

	"github.com/goccy/go-json"

	"github.com/wadjakorntonsri/ngo-site-api/pkg/logging"
)

type errorResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Error   string `json:"error,omitempty"`
}

func writeJSON(w http.ResponseWriter, r *http.Request, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		logging.Ctx(r.Context()).Warn().Err(err).Msg("failed to write response")
	}
}

// writeError sends the failure envelope. The underlying error text is only
// exposed when debug is set.
func writeError(w http.ResponseWriter, r *http.Request, status int, message string, err error, debug bool) {
	resp := errorResponse{Success: false, Message: message}
	if debug && err != nil {
		resp.Error = err.Error()
	}
	writeJSON(w, r, status, resp)
}
