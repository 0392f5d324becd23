package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/harborgrid/c360/internal/model"
)

type errorBody struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zap.L().Warn("response encode failed", zap.Error(err))
	}
}

// writeError maps domain errors onto HTTP statuses: unknown ids are 404,
// malformed input 400, operations on terminal jobs or issues 409, and scan
// adapter failures 502.
func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	var (
		ve *model.ValidationError
		sf *model.ScanFailure
	)
	switch {
	case errors.Is(err, model.ErrNotFound):
		status = http.StatusNotFound
	case errors.As(err, &ve):
		status = http.StatusBadRequest
	case errors.Is(err, model.ErrAlreadyTerminal):
		status = http.StatusConflict
	case errors.As(err, &sf):
		status = http.StatusBadGateway
	}
	if status == http.StatusInternalServerError {
		zap.L().Error("request failed", zap.Error(err))
	}
	writeJSON(w, status, errorBody{Error: err.Error()})
}

func decode(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return model.NewValidationError("body", "malformed JSON: "+err.Error())
	}
	return nil
}
