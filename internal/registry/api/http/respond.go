package httpapi

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	apperrors "github.com/terrachain/registry/internal/platform/errors"
)

// errorBody is the JSON error envelope of the API.
type errorBody struct {
	Error errorDetail `json:"error"`
}

type errorDetail struct {
	Code     string            `json:"code"`
	Message  string            `json:"message"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if body == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.Printf("encode response: %v", err)
	}
}

func writeError(w http.ResponseWriter, err error) {
	code := apperrors.CodeOf(err)
	detail := errorDetail{Code: string(code), Message: err.Error()}
	var domainErr *apperrors.Error
	if errors.As(err, &domainErr) {
		detail.Metadata = domainErr.Metadata
	}
	status := code.HTTPStatus()
	if status >= http.StatusInternalServerError {
		// Internal failures keep their detail in the logs only.
		log.Printf("request failed: %v", err)
		detail.Message = http.StatusText(status)
		detail.Metadata = nil
	}
	writeJSON(w, status, errorBody{Error: detail})
}
