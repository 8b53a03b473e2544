package http

import (
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/slack-go/slack/slackevents"

	"github.com/tzrikka/manabi/pkg/dispatch"
	"github.com/tzrikka/manabi/pkg/oauth"
)

const (
	timeout     = 3 * time.Second
	maxBodySize = 1 << 20 // 1 MiB.
)

type httpServer struct {
	port          int
	eventsPath    string
	signingSecret string
	devMode       bool
	socketMode    bool // Slack requests arrive over Socket Mode, not HTTP.

	router *dispatch.Router
	flow   *oauth.Flow // Nil in single-workspace mode.

	now func() time.Time
}

// handler returns the server's routes: Slack requests (unless they arrive
// in Socket Mode), the OAuth install flow (if enabled), and a liveness check.
func (s *httpServer) handler() http.Handler {
	mux := http.NewServeMux()
	if !s.socketMode {
		mux.HandleFunc("POST "+s.eventsPath, s.eventsHandler)
	}
	mux.HandleFunc("GET /healthz", healthHandler)

	if s.flow != nil {
		o := s.flow.Settings()
		if o.InstallPath == o.RedirectPath {
			mux.HandleFunc("GET "+o.InstallPath, s.installOrCallbackHandler)
		} else {
			mux.HandleFunc("GET "+o.InstallPath, s.flow.HandleInstall)
			mux.HandleFunc("GET "+o.RedirectPath, s.flow.HandleCallback)
		}
	}

	return withLogger(mux)
}

// withLogger attaches a request-scoped logger to every request's context.
func withLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		l := log.With().Str("http_method", r.Method).Str("url_path", r.URL.EscapedPath()).Logger()
		next.ServeHTTP(w, r.WithContext(l.WithContext(r.Context())))
	})
}

// run starts an HTTP server to receive Slack requests, or only
// OAuth installations in Socket Mode. This is blocking.
func (s *httpServer) run() error {
	server := &http.Server{
		Addr:         net.JoinHostPort("", strconv.Itoa(s.port)),
		Handler:      s.handler(),
		ReadTimeout:  timeout,
		WriteTimeout: timeout,
	}

	log.Info().Msgf("HTTP server listening on port %d", s.port)
	if s.flow != nil {
		o := s.flow.Settings()
		log.Info().Str("install_path", o.InstallPath).Str("redirect_path", o.RedirectPath).
			Msg("OAuth installations enabled")
	}

	err := server.ListenAndServe()
	if err != nil {
		log.Err(err).Send()
		return err
	}

	return nil
}

func healthHandler(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
}

// installOrCallbackHandler serves the OAuth flow when the install and
// redirect paths are the same: a callback carries a "code" or "error".
func (s *httpServer) installOrCallbackHandler(w http.ResponseWriter, r *http.Request) {
	if oauth.IsCallback(r) {
		s.flow.HandleCallback(w, r)
		return
	}
	s.flow.HandleInstall(w, r)
}

// eventsHandler checks and processes incoming Slack requests:
// Events API callbacks, interactivity payloads, shortcuts, and options.
func (s *httpServer) eventsHandler(w http.ResponseWriter, r *http.Request) {
	defer r.Body.Close()

	l := *zerolog.Ctx(r.Context())
	l.Debug().Msg("received HTTP request")

	mediaType, status := checkContentTypeHeader(l, r.Header)
	if status != http.StatusOK {
		w.WriteHeader(status)
		return
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodySize))
	if err != nil {
		l.Warn().Err(err).Msg("failed to read request body")
		if mbe := new(http.MaxBytesError); errors.As(err, &mbe) {
			w.WriteHeader(http.StatusRequestEntityTooLarge)
		} else {
			w.WriteHeader(http.StatusBadRequest)
		}
		return
	}

	if s.devMode {
		l.Debug().Str("content_type", mediaType).Bytes("body", body).Msg("request body")
	}

	var form url.Values
	if mediaType == contentTypeForm {
		if form, err = url.ParseQuery(string(body)); err != nil {
			l.Warn().Err(err).Msg("bad request: invalid web form")
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		if form.Get("ssl_check") == "1" {
			w.WriteHeader(http.StatusOK)
			return
		}
	}

	if status := checkTimestampHeader(l, r.Header, s.now()); status != http.StatusOK {
		w.WriteHeader(status)
		return
	}
	if status := checkSignatureHeader(l, r.Header, body, s.signingSecret); status != http.StatusOK {
		w.WriteHeader(status)
		return
	}

	var req *dispatch.Request
	if mediaType == contentTypeJSON {
		var done bool
		if req, done = parseEvent(w, l, body); done {
			return
		}
	} else {
		payload := form.Get("payload")
		if payload == "" {
			l.Warn().Msg("bad request: missing interactivity payload")
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		if req, err = dispatch.ParseInteraction([]byte(payload)); err != nil {
			l.Warn().Err(err).Msg("bad request: invalid interactivity payload")
			w.WriteHeader(http.StatusBadRequest)
			return
		}
	}

	writeAck(w, l, s.router.Dispatch(r.Context(), req))
}

// parseEvent answers Events API requests that don't reach listeners,
// and parses event callbacks. It reports whether the request was handled.
func parseEvent(w http.ResponseWriter, l zerolog.Logger, body []byte) (*dispatch.Request, bool) {
	var peek struct {
		Type      string `json:"type"`
		Challenge string `json:"challenge"`
	}
	if err := json.Unmarshal(body, &peek); err != nil {
		l.Warn().Err(err).Msg("bad request: invalid JSON body")
		w.WriteHeader(http.StatusBadRequest)
		return nil, true
	}

	switch peek.Type {
	case slackevents.URLVerification:
		w.Header().Set(contentTypeHeader, "text/plain")
		if _, err := w.Write([]byte(peek.Challenge)); err != nil {
			l.Err(err).Msg("failed to write URL verification challenge")
		}
		return nil, true
	case slackevents.AppRateLimited:
		l.Warn().RawJSON("body", body).Msg("Slack is rate-limiting events")
		w.WriteHeader(http.StatusOK)
		return nil, true
	}

	req, err := dispatch.ParseEvent(body)
	if err != nil {
		l.Warn().Err(err).Msg("bad request: invalid event")
		w.WriteHeader(http.StatusBadRequest)
		return nil, true
	}

	return req, false
}

// writeAck responds to Slack with the listener's status and ack payload.
func writeAck(w http.ResponseWriter, l zerolog.Logger, resp *dispatch.Response) {
	if resp.StatusCode != http.StatusOK || resp.Body == nil {
		w.WriteHeader(resp.StatusCode)
		return
	}

	w.Header().Set(contentTypeHeader, contentTypeJSON)
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(resp.Body); err != nil {
		l.Err(err).Msg("failed to write ack payload")
	}
}
