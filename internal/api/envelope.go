package api

import (
	"strconv"

	"github.com/danielgtaylor/huma/v2"
)

// successEnvelope wraps every successful response body.
type successEnvelope struct {
	Success bool `json:"success"`
	Data    any  `json:"data,omitempty"`
}

// errorEnvelope wraps every error response body.
type errorEnvelope struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Details any    `json:"details,omitempty"`
}

// EnvelopeTransformer wraps huma response bodies in the same envelope the
// plain chi handlers emit via the response package, so every endpoint on
// the server has an identical JSON shape.
func EnvelopeTransformer(_ huma.Context, status string, v any) (any, error) {
	if v == nil {
		return v, nil
	}

	if apiErr, ok := v.(*APIError); ok {
		return &errorEnvelope{
			Error:   apiErr.Message,
			Code:    apiErr.Code,
			Details: apiErr.Details,
		}, nil
	}

	// huma's built-in error model (panics, content negotiation failures)
	// bypasses our NewError override.
	if errModel, ok := v.(*huma.ErrorModel); ok {
		return &errorEnvelope{Error: errModel.Title}, nil
	}

	if code, err := strconv.Atoi(status); err == nil && code >= 400 {
		return &errorEnvelope{Error: status}, nil
	}

	return &successEnvelope{Success: true, Data: v}, nil
}
