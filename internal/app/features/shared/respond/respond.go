// Package respond centralizes the JSON conventions shared by every
// feature: response encoding, error envelopes, request decoding with
// validation, and the mapping from engine errors to HTTP status codes.
package respond

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/jmestre/hearth/internal/app/engine/steps"
	"go.mongodb.org/mongo-driver/mongo"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

type errorBody struct {
	Error string `json:"error"`
}

// JSON writes v as a JSON response with the given status.
func JSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		_ = json.NewEncoder(w).Encode(v)
	}
}

// Error writes a JSON error envelope.
func Error(w http.ResponseWriter, status int, msg string) {
	JSON(w, status, errorBody{Error: msg})
}

// Decode parses the request body into dst and validates it. On failure
// it writes a 400 and returns false; callers should return immediately.
func Decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		Error(w, http.StatusBadRequest, "invalid request body")
		return false
	}
	if err := validate.Struct(dst); err != nil {
		Error(w, http.StatusBadRequest, err.Error())
		return false
	}
	return true
}

// partialBody reports an operation whose primary effect succeeded but
// whose follow-up steps did not all complete.
type partialBody struct {
	Status string   `json:"status"`
	Failed []string `json:"failed_steps"`
}

// EngineError maps the errors the engine surfaces onto HTTP responses.
// A PartialFailure is reported as success with the failed follow-ups
// listed, because the primary record change has already been committed.
func EngineError(w http.ResponseWriter, err error, notFoundMsg string) {
	var pf *steps.PartialFailure
	if errors.As(err, &pf) {
		JSON(w, http.StatusOK, partialBody{Status: "partial", Failed: pf.StepNames()})
		return
	}
	if errors.Is(err, mongo.ErrNoDocuments) {
		Error(w, http.StatusNotFound, notFoundMsg)
		return
	}
	Error(w, http.StatusInternalServerError, "internal error")
}
