package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/aussiebroadwan/quill/pkg/slogx"
	"github.com/samber/oops"
)

// CaptchaVerifier checks the token a browser captcha widget produced.
// A rejected token gives ErrCaptchaFailed.
type CaptchaVerifier interface {
	Verify(ctx context.Context, token, remoteIP string) error
}

const RecaptchaEndpoint = "https://www.google.com/recaptcha/api/siteverify"

// Recaptcha verifies Google reCAPTCHA v2 and v3 tokens. MinScore only
// applies to v3 responses, which carry a score.
type Recaptcha struct {
	Secret   string
	MinScore float64

	Endpoint string
	Client   *http.Client
}

type recaptchaResponse struct {
	Success    bool     `json:"success"`
	Score      *float64 `json:"score,omitempty"`
	Action     string   `json:"action,omitempty"`
	Hostname   string   `json:"hostname,omitempty"`
	ErrorCodes []string `json:"error-codes,omitempty"`
}

func (r *Recaptcha) Verify(ctx context.Context, token, remoteIP string) error {
	ctx, span := tracer.Start(ctx, "Recaptcha.Verify")
	defer span.End()

	token = strings.TrimSpace(token)
	if token == "" {
		return withReason(ErrCaptchaFailed, "captcha token is required")
	}

	form := url.Values{"secret": {r.Secret}, "response": {token}}
	if remoteIP != "" {
		form.Set("remoteip", remoteIP)
	}

	endpoint := r.Endpoint
	if endpoint == "" {
		endpoint = RecaptchaEndpoint
	}
	client := r.Client
	if client == nil {
		client = &http.Client{Timeout: 5 * time.Second}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return oops.Code("CAPTCHA_REQUEST_FAILED").Wrap(err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := client.Do(req)
	if err != nil {
		span.RecordError(err)
		return oops.Code("CAPTCHA_UNAVAILABLE").Wrap(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return oops.Code("CAPTCHA_UNAVAILABLE").With("status", resp.StatusCode).
			Wrap(fmt.Errorf("siteverify returned %s", resp.Status))
	}

	var out recaptchaResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return oops.Code("CAPTCHA_UNAVAILABLE").Wrap(err)
	}

	l := slogx.FromContext(ctx)
	if !out.Success {
		l.Info("captcha rejected", slog.Any("error_codes", out.ErrorCodes))
		return ErrCaptchaFailed
	}
	if out.Score != nil && *out.Score < r.MinScore {
		l.Info("captcha score too low", slog.Float64("score", *out.Score), slog.String("action", out.Action))
		return ErrCaptchaFailed
	}
	return nil
}
