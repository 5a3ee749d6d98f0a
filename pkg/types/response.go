// Package types holds the JSON envelopes every handler answers with.
package types

import "net/http"

// Envelope status values.
const (
	StatusSuccess = "success"
	StatusFail    = "fail"
	StatusError   = "error"
)

type SuccessEnvelope struct {
	Status string `json:"status"`
	Data   any    `json:"data"`
}

type ErrorEnvelope struct {
	Status string   `json:"status"`
	Error  APIError `json:"error"`
}

type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

// StatusFor picks the envelope status for an HTTP status: "fail" when the
// caller is at fault, "error" when the server is.
func StatusFor(httpStatus int) string {
	switch {
	case httpStatus >= http.StatusInternalServerError:
		return StatusError
	case httpStatus >= http.StatusBadRequest:
		return StatusFail
	}
	return StatusSuccess
}
