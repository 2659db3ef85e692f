package server

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/jayakrishnap100/california-housing-mlops/pkg/errors"
	"github.com/jayakrishnap100/california-housing-mlops/pkg/log"
)

type codedError struct {
	err  error
	code int
}

func (e *codedError) Error() string {
	return e.err.Error()
}

func (e *codedError) Unwrap() error {
	return e.err
}

// CodedError attaches an HTTP status to err.
func CodedError(code int, err error) error {
	return &codedError{err: err, code: code}
}

// CodedErrorf formats an error carrying an HTTP status.
func CodedErrorf(code int, format string, args ...any) error {
	return &codedError{err: fmt.Errorf(format, args...), code: code}
}

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

// RestHandler adapts handler to http. Errors without a code are reported as 400
// since every failure of this API is attributed to the request.
func RestHandler(handler func(r *http.Request) (any, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		res, err := handler(r)
		if err != nil {
			code := http.StatusBadRequest
			var cerr *codedError
			if errors.As(err, &cerr) {
				code = cerr.code
			}
			WriteJsonResponse(w, code, ErrorResponse{Status: "error", Message: err.Error()})
			return
		}

		if res == nil {
			res = struct{}{}
		}
		WriteJsonResponse(w, http.StatusOK, res)
	}
}

// WriteJsonResponse encodes data with the given status.
func WriteJsonResponse(w http.ResponseWriter, code int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.GetLoggerWithName("server").Error("error serializing response body", log.ErrAttr(err))
	}
}
