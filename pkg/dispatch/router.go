package dispatch

import (
	"context"
	"errors"
	"net/http"
	"regexp"
	"sync"

	"github.com/rs/zerolog"
	"github.com/slack-go/slack"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/tzrikka/manabi/pkg/dispatch"

// AckFunc handles a request synchronously. The returned value (if not nil) is
// encoded as the JSON body of the acknowledgement, e.g. a view submission
// response, or the options of a select menu.
type AckFunc func(ctx context.Context, req *Request) (any, error)

// LazyFunc handles a request after it is acknowledged.
type LazyFunc func(ctx context.Context, req *Request) error

// Ack is an [AckFunc] with an empty acknowledgement.
func Ack(context.Context, *Request) (any, error) {
	return nil, nil
}

// Response is the acknowledgement of a dispatched request.
type Response struct {
	StatusCode int
	Body       any
}

type listener struct {
	types   []string
	id      string
	pattern *regexp.Regexp
	ack     AckFunc
	lazy    []LazyFunc
}

func (l *listener) matches(req *Request) bool {
	typeMatch := false
	for _, t := range l.types {
		if t == req.Type {
			typeMatch = true
			break
		}
	}
	if !typeMatch {
		return false
	}

	if l.pattern != nil {
		return l.pattern.MatchString(req.key())
	}
	return l.id == req.key()
}

func (l *listener) name() string {
	if l.pattern != nil {
		return l.pattern.String()
	}
	return l.id
}

// Router dispatches requests to the first matching listener,
// in registration order.
type Router struct {
	auth       Authorizer
	clientOpts []slack.Option
	syncLazy   bool
	tracer     trace.Tracer

	listeners []*listener
	wg        sync.WaitGroup
}

// Option configures a [Router].
type Option func(*Router)

// WithProcessBeforeResponse runs lazy functions synchronously, before returning
// acknowledgements. This is required in environments which freeze the process
// after responding, such as FaaS platforms.
func WithProcessBeforeResponse(enabled bool) Option {
	return func(r *Router) {
		r.syncLazy = enabled
	}
}

// WithClientOptions configures the Slack API clients that listeners receive.
func WithClientOptions(opts ...slack.Option) Option {
	return func(r *Router) {
		r.clientOpts = append(r.clientOpts, opts...)
	}
}

// NewRouter returns a router which authorizes all requests with the given [Authorizer].
func NewRouter(auth Authorizer, opts ...Option) *Router {
	r := &Router{auth: auth, tracer: otel.Tracer(tracerName)}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *Router) add(l *listener) {
	r.listeners = append(r.listeners, l)
}

// Action registers a listener for "block_actions" requests with the given action ID.
func (r *Router) Action(actionID string, ack AckFunc, lazy ...LazyFunc) {
	r.add(&listener{types: []string{TypeBlockActions}, id: actionID, ack: ack, lazy: lazy})
}

// ActionPattern registers a listener for "block_actions" requests
// with action IDs that match the given regular expression.
func (r *Router) ActionPattern(pattern *regexp.Regexp, ack AckFunc, lazy ...LazyFunc) {
	r.add(&listener{types: []string{TypeBlockActions}, pattern: pattern, ack: ack, lazy: lazy})
}

// View registers a listener for "view_submission" requests with the given callback ID.
func (r *Router) View(callbackID string, ack AckFunc, lazy ...LazyFunc) {
	r.add(&listener{types: []string{TypeViewSubmission}, id: callbackID, ack: ack, lazy: lazy})
}

// Shortcut registers a listener for global ("shortcut") and message
// ("message_action") shortcut requests with the given callback ID.
func (r *Router) Shortcut(callbackID string, ack AckFunc, lazy ...LazyFunc) {
	r.add(&listener{types: []string{TypeShortcut, TypeMessageAction}, id: callbackID, ack: ack, lazy: lazy})
}

// Options registers a listener for "block_suggestion" requests with the given action ID.
func (r *Router) Options(actionID string, ack AckFunc) {
	r.add(&listener{types: []string{TypeBlockSuggestion}, id: actionID, ack: ack})
}

// Event registers a listener for Events API callbacks with the given inner event type.
func (r *Router) Event(eventType string, ack AckFunc, lazy ...LazyFunc) {
	r.add(&listener{types: []string{TypeEventCallback}, id: eventType, ack: ack, lazy: lazy})
}

// Dispatch authorizes the request, and passes it to the first matching listener.
func (r *Router) Dispatch(ctx context.Context, req *Request) *Response {
	ctx, span := r.tracer.Start(ctx, "slack."+req.Type, trace.WithSpanKind(trace.SpanKindServer),
		trace.WithAttributes(
			attribute.String("slack.request_type", req.Type),
			attribute.String("slack.enterprise_id", req.Identity.EnterpriseID),
			attribute.String("slack.team_id", req.Identity.TeamID),
		))
	defer span.End()

	l := zerolog.Ctx(ctx).With().Str("request_type", req.Type).Str("request_key", req.key()).Logger()
	if sc := span.SpanContext(); sc.IsValid() {
		l = l.With().Str("trace_id", sc.TraceID().String()).Logger()
	}
	ctx = l.WithContext(ctx)

	lis := r.match(req)
	if lis == nil {
		l.Warn().Msg("unhandled Slack request")
		span.SetStatus(codes.Error, "unhandled request")
		return &Response{StatusCode: http.StatusNotFound}
	}
	span.SetAttributes(attribute.String("slack.listener", lis.name()))

	auth, err := r.auth.Authorize(ctx, req.Identity)
	if err != nil {
		if errors.Is(err, ErrNotInstalled) {
			l.Warn().Err(err).Msg("authorization failed")
		} else {
			l.Err(err).Msg("authorization failed")
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, "authorization failed")
		return &Response{StatusCode: http.StatusUnauthorized}
	}
	req.Auth = auth
	req.Client = slack.New(auth.BotToken, r.clientOpts...)

	body, err := lis.ack(ctx, req)
	if err != nil {
		l.Err(err).Msg("listener failed to acknowledge request")
		span.RecordError(err)
		span.SetStatus(codes.Error, "ack failed")
		return &Response{StatusCode: http.StatusInternalServerError}
	}

	if len(lis.lazy) > 0 {
		if r.syncLazy {
			r.runLazy(ctx, lis, req)
		} else {
			// Detached from the request's cancellation, but not from its logger and span.
			lazyCtx := context.WithoutCancel(ctx)
			r.wg.Add(1)
			go func() {
				defer r.wg.Done()
				r.runLazy(lazyCtx, lis, req)
			}()
		}
	}

	return &Response{StatusCode: http.StatusOK, Body: body}
}

func (r *Router) match(req *Request) *listener {
	for _, l := range r.listeners {
		if l.matches(req) {
			return l
		}
	}
	return nil
}

func (r *Router) runLazy(ctx context.Context, lis *listener, req *Request) {
	ctx, span := r.tracer.Start(ctx, "slack.lazy", trace.WithAttributes(attribute.String("slack.listener", lis.name())))
	defer span.End()

	for _, f := range lis.lazy {
		if err := f(ctx, req); err != nil {
			zerolog.Ctx(ctx).Err(err).Msg("lazy listener failed")
			span.RecordError(err)
			span.SetStatus(codes.Error, "lazy listener failed")
		}
	}
}

// Wait blocks until all the lazy functions that are running in the background are done.
func (r *Router) Wait() {
	r.wg.Wait()
}
