package application

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"testing"

	"github.com/iot-for-tillgenglighet/farmdash/internal/pkg/domain"
	"github.com/iot-for-tillgenglighet/farmdash/internal/pkg/infrastructure/httpclient"
	"github.com/iot-for-tillgenglighet/farmdash/internal/pkg/services"
	"github.com/iot-for-tillgenglighet/farmdash/internal/pkg/session"
	"github.com/sony/gobreaker"
)

func apiError(status int, body string) error {
	return &httpclient.Error{Method: http.MethodGet, Path: "/Farm/1", StatusCode: status, Body: []byte(body)}
}

func TestThatErrorsAreMappedToUserMessages(t *testing.T) {
	cases := []struct {
		name     string
		err      error
		expected string
	}{
		{"nil", nil, ""},
		{"validation", domain.ValidationErrors{"name": "is required"}, MessageInvalid},
		{"bad request with message", apiError(400, `{"message":"Acreage must be positive"}`), "Acreage must be positive"},
		{"bad request with field errors", apiError(400, `{"title":"x","errors":{"Name":["too long"]}}`), "Name: too long"},
		{"bad request without detail", apiError(400, `<html></html>`), MessageRejected},
		{"unauthorized", apiError(401, ``), MessageSessionExpired},
		{"forbidden", apiError(403, `{"message":"no"}`), MessageForbidden},
		{"not found", apiError(404, ``), "Farm not found"},
		{"conflict", apiError(409, ``), MessageConflict},
		{"server error", apiError(502, `bad gateway`), MessageServerError},
		{"wrapped server error", fmt.Errorf("loading: %w", apiError(500, ``)), MessageServerError},
		{"no session", services.ErrNoSession, MessageLoginRequired},
		{"not authenticated", session.ErrNotAuthenticated, MessageLoginRequired},
		{"image type", fmt.Errorf("%w: text/plain", services.ErrUnsupportedImage), MessageUnsupportedImage},
		{"image size", services.ErrImageTooLarge, MessageImageTooLarge},
		{"breaker open", gobreaker.ErrOpenState, MessageUnavailable},
		{"deadline", fmt.Errorf("GET /x: %w", context.DeadlineExceeded), MessageTimeout},
		{"network", fmt.Errorf("GET /x: %w", &net.OpError{Op: "dial", Net: "tcp", Err: errors.New("connection refused")}), MessageUnreachable},
		{"decode", &httpclient.DecodeError{Method: "GET", Path: "/x", Err: errors.New("eof")}, MessageUnexpected},
		{"anything else", errors.New("boom"), MessageUnexpected},
	}

	for _, c := range cases {
		if msg := UserMessage(c.err, "Farm"); msg != c.expected {
			t.Errorf("%s: expected %q, got %q", c.name, c.expected, msg)
		}
	}
}

func TestThatNotFoundWithoutEntityIsGeneric(t *testing.T) {
	if msg := UserMessage(apiError(404, ``), ""); msg != "Not found" {
		t.Errorf("unexpected message %q", msg)
	}
}
