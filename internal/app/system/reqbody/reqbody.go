// Package reqbody decodes JSON request bodies for the API handlers.
package reqbody

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/dalemusser/crmhub/internal/app/system/apperr"
	"github.com/dalemusser/crmhub/internal/app/system/limits"
	"github.com/go-chi/chi/v5"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Decode reads a single JSON object from r into v, capped at limit bytes
// (limits.MaxJSONBody when limit <= 0). Unknown fields are rejected.
// Every failure is InvalidInput.
func Decode(w http.ResponseWriter, r *http.Request, v any, limit int64) error {
	if limit <= 0 {
		limit = limits.MaxJSONBody
	}
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, limit))
	dec.DisallowUnknownFields()

	if err := dec.Decode(v); err != nil {
		var tooBig *http.MaxBytesError
		switch {
		case errors.As(err, &tooBig):
			return apperr.Newf(apperr.InvalidInput, "request body is too large")
		case errors.Is(err, io.EOF):
			return apperr.Newf(apperr.InvalidInput, "request body is empty")
		default:
			return &apperr.Error{Kind: apperr.InvalidInput, Message: "request body is not valid JSON", Err: err}
		}
	}
	if dec.More() {
		return apperr.Newf(apperr.InvalidInput, "request body must contain a single JSON object")
	}
	return nil
}

// ObjectIDParam parses the chi URL parameter name as an ObjectID.
func ObjectIDParam(r *http.Request, name string) (primitive.ObjectID, error) {
	id, err := primitive.ObjectIDFromHex(chi.URLParam(r, name))
	if err != nil {
		return primitive.NilObjectID, apperr.Newf(apperr.InvalidInput, name+" is malformed")
	}
	return id, nil
}
