package http

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/aussiebroadwan/quill/internal/auth/service"
	"github.com/aussiebroadwan/quill/pkg/authsdk"
	"github.com/aussiebroadwan/quill/pkg/slogx"
)

var errorMap = []struct {
	err error
	api *authsdk.APIError
}{
	{service.ErrInvalidCredentials, authsdk.ErrInvalidCredentials},
	{service.ErrInvalidOrExpiredToken, authsdk.ErrInvalidOrExpiredToken},
	{service.ErrInvalidCode, authsdk.ErrInvalidCode},
	{service.ErrAccountInactive, authsdk.ErrAccountInactive},
	{service.ErrTooManyRequests, authsdk.ErrTooManyRequests},
	{service.ErrInvalidRequest, authsdk.ErrInvalidRequest},
	{service.ErrWeakPassword, authsdk.ErrInvalidRequest},
	{service.ErrCaptchaFailed, authsdk.ErrCaptchaFailed},
	{service.ErrEmailUnavailable, authsdk.ErrEmailUnavailable},
	{service.ErrMFAAlreadyEnabled, authsdk.ErrMFAAlreadyEnabled},
	{service.ErrMFANotEnabled, authsdk.ErrMFANotEnabled},
	{service.ErrForbidden, authsdk.ErrForbidden},
	{service.ErrNotFound, authsdk.ErrNotFound},
}

// apiError maps a service error onto its wire form. Errors outside the
// taxonomy become server_error.
func apiError(err error) *authsdk.APIError {
	for _, m := range errorMap {
		if !errors.Is(err, m.err) {
			continue
		}
		// Credential failures keep the fixed text so they all read the same.
		if m.err == service.ErrInvalidCredentials {
			return m.api
		}
		if reason := service.Reason(err); reason != "" {
			return m.api.WithDescription(reason)
		}
		return m.api
	}
	return authsdk.ErrServerError
}

// writeError logs err and writes its wire form. Client errors log at debug.
func writeError(ctx context.Context, w http.ResponseWriter, msg string, err error) {
	apiErr := apiError(err)

	l := slogx.FromContext(ctx)
	if apiErr.StatusCode >= http.StatusInternalServerError {
		l.Error(msg, slog.Any("err", err))
	} else {
		l.Debug(msg, slog.String("code", apiErr.Code), slog.Any("err", err))
	}
	apiErr.WriteError(w)
}
