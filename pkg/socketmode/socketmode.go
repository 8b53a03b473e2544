// Package socketmode receives Slack requests over a [Socket Mode] WebSocket
// connection instead of public HTTP endpoints, and dispatches them with the
// same router as the HTTP server.
//
// [Socket Mode]: https://docs.slack.dev/apis/events-api/using-socket-mode
package socketmode

import (
	"context"
	"errors"
	stdlog "log"
	"sync"

	"github.com/rs/zerolog/log"
	"github.com/slack-go/slack"
	sm "github.com/slack-go/slack/socketmode"

	"github.com/tzrikka/manabi/pkg/dispatch"
)

// acker sends acknowledgements of Socket Mode envelopes.
type acker interface {
	Ack(req sm.Request, payload ...any)
}

// Run connects to Slack with an app-level token ("xapp-..."), and dispatches
// incoming requests until the context is canceled or the connection fails.
func Run(ctx context.Context, appToken string, r *dispatch.Router, opts ...slack.Option) error {
	if appToken == "" {
		return errors.New("an app-level token is required in Socket Mode")
	}

	opts = append([]slack.Option{slack.OptionAppLevelToken(appToken)}, opts...)
	c := sm.New(slack.New("", opts...), sm.OptionLog(stdlog.New(log.Logger, "socketmode: ", 0)))

	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	go func() {
		defer close(done)
		serve(ctx, c.Events, c, r)
	}()

	log.Info().Msg("connecting to Slack in Socket Mode")
	err := c.RunContext(ctx)

	cancel()
	<-done
	return err
}

// serve handles incoming Socket Mode events until the context is canceled
// or the channel is closed. Envelopes are dispatched concurrently.
func serve(ctx context.Context, events <-chan sm.Event, c acker, r *dispatch.Router) {
	var wg sync.WaitGroup
	defer wg.Wait()

	for {
		select {
		case <-ctx.Done():
			return
		case evt, ok := <-events:
			if !ok {
				return
			}
			if evt.Request == nil {
				handle(ctx, c, r, evt)
				continue
			}
			wg.Go(func() {
				handle(ctx, c, r, evt)
			})
		}
	}
}

// handle dispatches a single Socket Mode event, and acknowledges it
// with the listener's response payload (if there is one).
func handle(ctx context.Context, c acker, r *dispatch.Router, evt sm.Event) {
	l := log.With().Str("socket_event_type", string(evt.Type)).Logger()

	switch evt.Type {
	case sm.EventTypeConnecting:
		l.Debug().Msg("connecting to Slack")
		return
	case sm.EventTypeConnected:
		l.Info().Msg("connected to Slack")
		return
	case sm.EventTypeConnectionError, sm.EventTypeInvalidAuth, sm.EventTypeIncomingError:
		l.Error().Any("data", evt.Data).Msg("Socket Mode error")
		return
	case sm.EventTypeEventsAPI, sm.EventTypeInteractive:
		// Handled below.
	case sm.EventTypeSlashCommand:
		l.Warn().Msg("slash commands are not supported")
		if evt.Request != nil {
			c.Ack(*evt.Request)
		}
		return
	default:
		l.Trace().Msg("ignoring Socket Mode event")
		return
	}

	if evt.Request == nil {
		l.Warn().Msg("Socket Mode event without a request")
		return
	}
	l = l.With().Str("envelope_id", evt.Request.EnvelopeID).Logger()

	var (
		req *dispatch.Request
		err error
	)
	if evt.Type == sm.EventTypeEventsAPI {
		req, err = dispatch.ParseEvent(evt.Request.Payload)
	} else {
		req, err = dispatch.ParseInteraction(evt.Request.Payload)
	}
	if err != nil {
		// Acknowledge anyway, to prevent retries of unusable payloads.
		l.Warn().Err(err).Msg("failed to parse Socket Mode payload")
		c.Ack(*evt.Request)
		return
	}

	resp := r.Dispatch(l.WithContext(ctx), req)
	if resp.Body == nil {
		c.Ack(*evt.Request)
		return
	}

	l.Trace().Any("payload", resp.Body).Msg("acknowledging with payload")
	c.Ack(*evt.Request, resp.Body)
}
