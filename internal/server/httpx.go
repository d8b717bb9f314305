package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/joseph-ayodele/legalaid-petitions/internal/common"
)

type errorBody struct {
	RequestID string    `json:"request_id,omitempty"`
	Error     errorInfo `json:"error"`
}

type errorInfo struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("content-type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeErrorCode(w http.ResponseWriter, r *http.Request, status int, code, message string) {
	writeJSON(w, status, errorBody{
		RequestID: common.RequestIDFromContext(r.Context()),
		Error:     errorInfo{Code: code, Message: message},
	})
}

// writeError maps err onto a status code; AppError codes are passed through.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := common.HTTPStatus(err)
	code := "INTERNAL"
	var appErr *common.AppError
	if errors.As(err, &appErr) {
		code = appErr.Code
	}
	msg := err.Error()
	if status == http.StatusInternalServerError && appErr == nil {
		msg = "internal error"
	}
	writeErrorCode(w, r, status, code, msg)
}
