// Package respond provides helpers for writing JSON responses.
package respond

import (
	"encoding/json"
	"net/http"

	"github.com/wb-go/wbf/zlog"
)

type successResponse struct {
	Data any `json:"data"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// JSON writes a JSON response with the given status code and payload.
func JSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zlog.Logger.Error().Err(err).Int("status_code", code).Msg("failed to encode response")
	}
}

// OK writes a 200 response wrapping the payload in a data envelope.
func OK(w http.ResponseWriter, data any) {
	JSON(w, http.StatusOK, successResponse{Data: data})
}

// Created writes a 201 response wrapping the payload in a data envelope.
func Created(w http.ResponseWriter, data any) {
	JSON(w, http.StatusCreated, successResponse{Data: data})
}

// Fail writes an error response with the given status code.
func Fail(w http.ResponseWriter, code int, err error) {
	JSON(w, code, errorResponse{Error: err.Error()})
}
