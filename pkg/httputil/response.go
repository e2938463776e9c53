package httputil

import (
	"encoding/json"
	"net/http"

	"github.com/Aniket2927/Renx-sub004/pkg/apierror"
)

// SuccessResponse is the envelope for successful API responses
type SuccessResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Message string      `json:"message,omitempty"`
}

// WriteJSON writes a JSON response with the given status code
func WriteJSON(w http.ResponseWriter, status int, data interface{}) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	return json.NewEncoder(w).Encode(data)
}

// WriteSuccess writes a 200 response wrapping data in the success envelope
func WriteSuccess(w http.ResponseWriter, data interface{}) error {
	return WriteJSON(w, http.StatusOK, SuccessResponse{Success: true, Data: data})
}

// WriteError writes err as an error envelope. Errors outside the apierror
// taxonomy are rendered as INTERNAL_ERROR so internals never leak.
func WriteError(w http.ResponseWriter, err error) {
	apierror.Write(w, err)
}
