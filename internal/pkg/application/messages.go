package application

import (
	"context"
	"errors"
	"net"
	"net/http"

	"github.com/iot-for-tillgenglighet/farmdash/internal/pkg/domain"
	"github.com/iot-for-tillgenglighet/farmdash/internal/pkg/infrastructure/httpclient"
	"github.com/iot-for-tillgenglighet/farmdash/internal/pkg/services"
	"github.com/iot-for-tillgenglighet/farmdash/internal/pkg/session"
	"github.com/sony/gobreaker"
)

//Messages shown to the user when an operation fails
const (
	MessageInvalid          = "Please fix the highlighted fields"
	MessageLoginRequired    = "Please log in to continue."
	MessageSessionExpired   = "Your session has expired. Please log in again."
	MessageForbidden        = "You do not have permission to perform this action."
	MessageRejected         = "The request was rejected by the server."
	MessageConflict         = "The record was changed by someone else. Reload and try again."
	MessageServerError      = "The server encountered an error. Please try again later."
	MessageUnreachable      = "Unable to reach the server. Please check your connection."
	MessageTimeout          = "The request took too long. Please try again."
	MessageUnavailable      = "The service is temporarily unavailable. Please try again later."
	MessageUnsupportedImage = "Only JPEG, PNG, GIF and WebP images can be uploaded."
	MessageImageTooLarge    = "The image must be smaller than 5 MB."
	MessageUnexpected       = "Something went wrong. Please try again."
)

//UserMessage maps err to the text shown next to the form or list that caused it. entity
//names the record type involved and is used for not found messages.
func UserMessage(err error, entity string) string {
	if err == nil {
		return ""
	}

	if _, ok := domain.AsValidationErrors(err); ok {
		return MessageInvalid
	}

	switch {
	case errors.Is(err, services.ErrNoSession), errors.Is(err, session.ErrNotAuthenticated):
		return MessageLoginRequired
	case errors.Is(err, services.ErrUnsupportedImage):
		return MessageUnsupportedImage
	case errors.Is(err, services.ErrImageTooLarge), errors.Is(err, services.ErrEmptyImage):
		return MessageImageTooLarge
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		return MessageUnavailable
	case errors.Is(err, context.DeadlineExceeded):
		return MessageTimeout
	}

	var apiErr *httpclient.Error
	if errors.As(err, &apiErr) {
		return statusMessage(apiErr, entity)
	}

	var decodeErr *httpclient.DecodeError
	if errors.As(err, &decodeErr) {
		return MessageUnexpected
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		if netErr.Timeout() {
			return MessageTimeout
		}
		return MessageUnreachable
	}

	return MessageUnexpected
}

func statusMessage(apiErr *httpclient.Error, entity string) string {
	switch code := apiErr.StatusCode; {
	case code == http.StatusBadRequest || code == http.StatusUnprocessableEntity:
		if detail := apiErr.Detail(); detail != "" {
			return detail
		}
		return MessageRejected
	case code == http.StatusUnauthorized:
		return MessageSessionExpired
	case code == http.StatusForbidden:
		return MessageForbidden
	case code == http.StatusNotFound:
		if entity == "" {
			return "Not found"
		}
		return entity + " not found"
	case code == http.StatusConflict:
		if detail := apiErr.Detail(); detail != "" {
			return detail
		}
		return MessageConflict
	case code >= 500:
		return MessageServerError
	}

	return MessageUnexpected
}
