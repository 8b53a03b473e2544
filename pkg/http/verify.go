package http

import (
	"mime"
	"net/http"
	"strconv"
	"time"

	"github.com/rs/zerolog"
	"github.com/slack-go/slack"
)

const (
	contentTypeHeader = "Content-Type"
	timestampHeader   = "X-Slack-Request-Timestamp"
	signatureHeader   = "X-Slack-Signature"

	contentTypeJSON = "application/json"
	contentTypeForm = "application/x-www-form-urlencoded"

	// The maximum shift/delay that we allow between an inbound request's
	// timestamp, and our current timestamp, to defend against replay attacks.
	// See https://docs.slack.dev/authentication/verifying-requests-from-slack.
	maxDifference = 5 * time.Minute
)

// checkContentTypeHeader returns the media type of a Slack request: JSON
// for Events API callbacks, or a web form for interactivity payloads.
func checkContentTypeHeader(l zerolog.Logger, h http.Header) (string, int) {
	v := h.Get(contentTypeHeader)
	mt, _, err := mime.ParseMediaType(v)
	if err != nil || (mt != contentTypeJSON && mt != contentTypeForm) {
		l.Warn().Str("header", contentTypeHeader).Str("got", v).
			Msg("bad request: unexpected header value")
		return "", http.StatusBadRequest
	}

	return mt, http.StatusOK
}

func checkTimestampHeader(l zerolog.Logger, h http.Header, now time.Time) int {
	ts := h.Get(timestampHeader)
	if ts == "" {
		l.Warn().Str("header", timestampHeader).Msg("bad request: missing header")
		return http.StatusBadRequest
	}

	secs, err := strconv.ParseInt(ts, 10, 64)
	if err != nil {
		l.Warn().Str("header", timestampHeader).Str("got", ts).
			Msg("bad request: invalid header value")
		return http.StatusBadRequest
	}

	d := now.Sub(time.Unix(secs, 0))
	if d.Abs() > maxDifference {
		l.Warn().Str("header", timestampHeader).Dur("difference", d).
			Msg("bad request: stale header value")
		return http.StatusBadRequest
	}

	return http.StatusOK
}

// checkSignatureHeader implements
// https://docs.slack.dev/authentication/verifying-requests-from-slack.
func checkSignatureHeader(l zerolog.Logger, h http.Header, body []byte, signingSecret string) int {
	if signingSecret == "" {
		l.Error().Msg("signing secret is not configured")
		return http.StatusInternalServerError
	}

	sig := h.Get(signatureHeader)
	if sig == "" {
		l.Warn().Str("header", signatureHeader).Msg("unauthorized request: missing header")
		return http.StatusUnauthorized
	}

	sv, err := slack.NewSecretsVerifier(h, signingSecret)
	if err != nil {
		l.Warn().Err(err).Str("signature", sig).Msg("unauthorized request: invalid signature")
		return http.StatusUnauthorized
	}

	if _, err := sv.Write(body); err != nil {
		l.Err(err).Msg("HMAC write error")
		return http.StatusInternalServerError
	}

	if err := sv.Ensure(); err != nil {
		l.Warn().Str("signature", sig).Msg("unauthorized request: signature verification failed")
		return http.StatusUnauthorized
	}

	return http.StatusOK
}
