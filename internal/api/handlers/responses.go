package handlers

import (
	"encoding/json"
	"net/http"

	apperrors "github.com/iamgolden55/basebackend-sub001/pkg/errors"
)

func respondWithJSON(w http.ResponseWriter, statusCode int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(payload)
}

func respondWithError(w http.ResponseWriter, statusCode int, message string) {
	respondWithJSON(w, statusCode, map[string]string{
		"error": message,
	})
}

// respondWithAppError maps application errors onto HTTP statuses and
// surfaces the machine-readable code when one is set
func respondWithAppError(w http.ResponseWriter, err error) {
	appErr, ok := err.(*apperrors.AppError)
	if !ok {
		respondWithError(w, http.StatusInternalServerError, err.Error())
		return
	}

	var statusCode int
	switch appErr.Type {
	case apperrors.ErrorTypeValidation:
		statusCode = http.StatusBadRequest
	case apperrors.ErrorTypeNotFound:
		statusCode = http.StatusNotFound
	case apperrors.ErrorTypeInsufficient:
		statusCode = http.StatusUnprocessableEntity
	case apperrors.ErrorTypeConflict:
		statusCode = http.StatusConflict
	case apperrors.ErrorTypeStale:
		statusCode = http.StatusPreconditionFailed
	case apperrors.ErrorTypeUnauthorized:
		statusCode = http.StatusUnauthorized
	case apperrors.ErrorTypeExternal:
		statusCode = http.StatusBadGateway
	default:
		statusCode = http.StatusInternalServerError
	}

	body := map[string]string{"error": appErr.Message}
	if appErr.Code != "" {
		body["code"] = appErr.Code
	}
	respondWithJSON(w, statusCode, body)
}
