package httpclient

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
)

//Error is returned for every response with a non 2xx status code
type Error struct {
	Method     string
	Path       string
	StatusCode int
	Body       []byte
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s %s: upstream status %d", e.Method, e.Path, e.StatusCode)
}

//Detail extracts a human readable explanation from the response body. It understands
//{"message": ...}, {"title": ..., "errors": {field: [...]}} and plain text bodies.
func (e *Error) Detail() string {
	body := strings.TrimSpace(string(e.Body))
	if body == "" {
		return ""
	}

	var problem struct {
		Message string              `json:"message"`
		Error   string              `json:"error"`
		Title   string              `json:"title"`
		Errors  map[string][]string `json:"errors"`
	}

	if err := json.Unmarshal(e.Body, &problem); err != nil {
		if strings.HasPrefix(body, "{") || strings.HasPrefix(body, "[") || strings.HasPrefix(body, "<") {
			return ""
		}
		if len(body) > 200 {
			body = body[:200]
		}
		return body
	}

	if len(problem.Errors) > 0 {
		fields := make([]string, 0, len(problem.Errors))
		for f := range problem.Errors {
			fields = append(fields, f)
		}
		sort.Strings(fields)

		parts := make([]string, 0, len(fields))
		for _, f := range fields {
			parts = append(parts, f+": "+strings.Join(problem.Errors[f], ", "))
		}
		return strings.Join(parts, "; ")
	}

	for _, candidate := range []string{problem.Message, problem.Error, problem.Title} {
		if candidate != "" {
			return candidate
		}
	}

	return ""
}

//DecodeError is returned when a successful response cannot be decoded
type DecodeError struct {
	Method string
	Path   string
	Err    error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("%s %s: decode response: %s", e.Method, e.Path, e.Err.Error())
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

//StatusCode returns the HTTP status carried by err, or 0 if err is not an API error
func StatusCode(err error) int {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode
	}
	return 0
}
