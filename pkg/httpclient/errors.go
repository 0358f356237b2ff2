package httpclient

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	apperrors "github.com/utafrali/revu/pkg/errors"
)

// StatusError describes a non-2xx response from an external API.
type StatusError struct {
	API        string
	StatusCode int
	Message    string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s returned status %d: %s", e.API, e.StatusCode, e.Message)
}

// errorBody covers the error envelopes used by the APIs revu calls:
// {"error": "..."}, {"error": {"message": "..."}} and {"errorMessage": "..."}.
type errorBody struct {
	Error        json.RawMessage `json:"error"`
	ErrorMessage string          `json:"errorMessage"`
}

// ParseResponseError consumes and closes the body of a non-2xx response and
// returns an upstream AppError wrapping a *StatusError.
func ParseResponseError(resp *http.Response, api string) error {
	defer func() { _ = resp.Body.Close() }()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return apperrors.Upstream(api, &StatusError{API: api, StatusCode: resp.StatusCode, Message: "unreadable body: " + err.Error()})
	}

	return StatusErrorFromBody(api, resp.StatusCode, raw)
}

// StatusErrorFromBody returns an upstream AppError wrapping a *StatusError
// built from an already-read error body.
func StatusErrorFromBody(api string, status int, raw []byte) error {
	return apperrors.Upstream(api, &StatusError{
		API:        api,
		StatusCode: status,
		Message:    extractMessage(raw),
	})
}

func extractMessage(raw []byte) string {
	var body errorBody
	if json.Unmarshal(raw, &body) == nil {
		if body.ErrorMessage != "" {
			return body.ErrorMessage
		}
		var s string
		if json.Unmarshal(body.Error, &s) == nil && s != "" {
			return s
		}
		var nested struct {
			Message string `json:"message"`
		}
		if json.Unmarshal(body.Error, &nested) == nil && nested.Message != "" {
			return nested.Message
		}
	}
	msg := strings.TrimSpace(string(raw))
	if len(msg) > 512 {
		msg = msg[:512]
	}
	return msg
}

// IsClientError returns true if the HTTP status code is a 4xx client error.
func IsClientError(status int) bool {
	return status >= 400 && status < 500
}
