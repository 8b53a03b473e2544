// Package oauth implements Slack's [OAuth v2 installation flow]: an install
// endpoint which starts it, and a redirect endpoint which completes it by
// exchanging a temporary code for access tokens and persisting them.
//
// [OAuth v2 installation flow]: https://docs.slack.dev/authentication/installing-with-oauth
package oauth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/slack-go/slack"
	"golang.org/x/text/language"

	"github.com/tzrikka/manabi/pkg/installations"
	"github.com/tzrikka/manabi/pkg/tutorial"
)

// StateCookieName is the browser cookie that binds an OAuth state to the user who started the flow.
const StateCookieName = "slack-app-oauth-state"

// Failure reasons, as reported to [FailureFunc] callbacks.
const (
	ReasonInvalidState   = "invalid_state"
	ReasonInvalidBrowser = "invalid_browser"
	ReasonMissingCode    = "missing_code"
	ReasonInvalidCode    = "invalid_code"
	ReasonStorageError   = "storage_error"
)

// Settings configures the OAuth flow.
type Settings struct {
	ClientID          string
	ClientSecret      string
	Scopes            []string
	UserScopes        []string
	RedirectURI       string
	InstallPath       string
	RedirectPath      string
	StateExpiration   time.Duration
	RenderInstallPage bool
	AuthorizeURL      string
}

// HTTPClient sends HTTP requests to the Slack API.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// SuccessArgs are passed to a [SuccessFunc] after a new installation is stored.
type SuccessArgs struct {
	Installation *installations.Installation
	// Client is a Slack API client with the new installation's bot token.
	Client      *slack.Client
	Catalog     *tutorial.Catalog
	InstallPath string
}

// FailureArgs are passed to a [FailureFunc] when the OAuth flow fails.
type FailureArgs struct {
	Reason      string
	StatusCode  int
	Catalog     *tutorial.Catalog
	InstallPath string
}

// SuccessFunc writes the HTTP response of a successful OAuth callback.
type SuccessFunc func(w http.ResponseWriter, r *http.Request, args SuccessArgs)

// FailureFunc writes the HTTP response of a failed OAuth callback.
type FailureFunc func(w http.ResponseWriter, r *http.Request, args FailureArgs)

// Flow handles the install and redirect endpoints of Slack's OAuth v2 flow.
type Flow struct {
	settings   Settings
	store      installations.Store
	states     installations.StateStore
	bundle     *tutorial.Bundle
	httpClient HTTPClient
	clientOpts []slack.Option

	success SuccessFunc
	failure FailureFunc
}

// Option configures a [Flow].
type Option func(*Flow)

// WithHTTPClient replaces the default HTTP client in all Slack API calls.
func WithHTTPClient(c HTTPClient) Option {
	return func(f *Flow) {
		f.httpClient = c
	}
}

// WithSuccess replaces the default response of successful callbacks.
func WithSuccess(fn SuccessFunc) Option {
	return func(f *Flow) {
		f.success = fn
	}
}

// WithFailure replaces the default response of failed callbacks.
func WithFailure(fn FailureFunc) Option {
	return func(f *Flow) {
		f.failure = fn
	}
}

// NewFlow initializes an OAuth flow, with default success and failure pages.
func NewFlow(s Settings, store installations.Store, states installations.StateStore, b *tutorial.Bundle, opts ...Option) (*Flow, error) {
	if s.ClientID == "" || s.ClientSecret == "" {
		return nil, errors.New("OAuth flow requires both client ID and client secret")
	}
	if store == nil || states == nil {
		return nil, errors.New("OAuth flow requires installation and state stores")
	}
	if s.InstallPath == "" {
		s.InstallPath = DefaultInstallPath
	}
	if s.RedirectPath == "" {
		s.RedirectPath = DefaultRedirectPath
	}
	if s.AuthorizeURL == "" {
		s.AuthorizeURL = DefaultAuthorizeURL
	}

	f := &Flow{
		settings:   s,
		store:      store,
		states:     states,
		bundle:     b,
		httpClient: http.DefaultClient,
		success:    DefaultSuccess,
		failure:    DefaultFailure,
	}
	for _, opt := range opts {
		opt(f)
	}
	f.clientOpts = []slack.Option{slack.OptionHTTPClient(f.httpClient)}

	return f, nil
}

// Settings returns the flow's effective settings.
func (f *Flow) Settings() Settings {
	return f.settings
}

// IsCallback reports whether a request to a shared install/redirect
// path is actually a callback (i.e. it has a "code" or "error" parameter).
func IsCallback(r *http.Request) bool {
	q := r.URL.Query()
	return q.Has("code") || q.Has("error")
}

// Catalog selects the language of HTML pages: the "lang" query
// parameter, then the "Accept-Language" header, then the default.
func (f *Flow) Catalog(r *http.Request) *tutorial.Catalog {
	if lang := r.URL.Query().Get("lang"); lang != "" {
		return f.bundle.Lookup(lang)
	}

	tags, _, err := language.ParseAcceptLanguage(r.Header.Get("Accept-Language"))
	if err != nil || len(tags) == 0 {
		return f.bundle.Lookup("")
	}
	return f.bundle.Match(tags...)
}

// AuthorizeURL returns Slack's authorization URL for the given state.
func (f *Flow) AuthorizeURL(state string) string {
	q := url.Values{}
	q.Set("state", state)
	q.Set("client_id", f.settings.ClientID)
	q.Set("scope", strings.Join(f.settings.Scopes, ","))
	q.Set("user_scope", strings.Join(f.settings.UserScopes, ","))
	if f.settings.RedirectURI != "" {
		q.Set("redirect_uri", f.settings.RedirectURI)
	}
	return f.settings.AuthorizeURL + "?" + q.Encode()
}

// HandleInstall starts an OAuth flow: it issues a new state parameter, binds
// it to the browser with a cookie, and sends the user to Slack to authorize.
func (f *Flow) HandleInstall(w http.ResponseWriter, r *http.Request) {
	l := zerolog.Ctx(r.Context())

	state, err := f.states.Issue(r.Context())
	if err != nil {
		l.Err(err).Msg("failed to issue OAuth state")
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     StateCookieName,
		Value:    state,
		Path:     "/",
		MaxAge:   int(f.settings.stateMaxAge().Seconds()),
		Secure:   true,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})

	u := f.AuthorizeURL(state)
	if !f.settings.RenderInstallPage {
		http.Redirect(w, r, u, http.StatusFound)
		return
	}

	page, err := f.Catalog(r).InstallPage(u)
	if err != nil {
		l.Err(err).Msg("failed to render install page")
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	writeHTML(w, http.StatusOK, page)
}

// HandleCallback completes an OAuth flow, and responds with the flow's success or
// failure callback. The failure reasons and their status codes match Bolt's.
func (f *Flow) HandleCallback(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	l := zerolog.Ctx(ctx)
	q := r.URL.Query()

	http.SetCookie(w, &http.Cookie{
		Name:     StateCookieName,
		Value:    "deleted",
		Path:     "/",
		Expires:  time.Unix(0, 0),
		Secure:   true,
		HttpOnly: true,
	})

	if reason := q.Get("error"); reason != "" {
		l.Warn().Str("reason", reason).Msg("OAuth flow was not approved")
		f.fail(w, r, reason, http.StatusOK)
		return
	}

	state := q.Get("state")
	if state == "" {
		f.fail(w, r, ReasonInvalidState, http.StatusBadRequest)
		return
	}

	if c, err := r.Cookie(StateCookieName); err != nil || c.Value != state {
		f.fail(w, r, ReasonInvalidBrowser, http.StatusBadRequest)
		return
	}

	ok, err := f.states.Consume(ctx, state)
	if err != nil {
		l.Err(err).Msg("failed to consume OAuth state")
	}
	if !ok {
		f.fail(w, r, ReasonInvalidState, http.StatusUnauthorized)
		return
	}

	code := q.Get("code")
	if code == "" {
		f.fail(w, r, ReasonMissingCode, http.StatusUnauthorized)
		return
	}

	resp, err := slack.GetOAuthV2ResponseContext(ctx, f.httpClient, f.settings.ClientID, f.settings.ClientSecret, code, f.settings.RedirectURI)
	if err != nil {
		l.Warn().Err(err).Msg("OAuth code exchange failed")
		f.fail(w, r, ReasonInvalidCode, http.StatusUnauthorized)
		return
	}

	i, err := f.installation(ctx, resp)
	if err == nil {
		err = f.store.Save(ctx, i)
	}
	if err != nil {
		l.Err(err).Msg("failed to store Slack installation")
		f.fail(w, r, ReasonStorageError, http.StatusInternalServerError)
		return
	}

	l.Info().Str("enterprise_id", i.EnterpriseID).Str("team_id", i.TeamID).Str("user_id", i.UserID).
		Bool("is_enterprise_install", i.IsEnterpriseInstall).Msg("new Slack installation")

	f.success(w, r, SuccessArgs{
		Installation: i,
		Client:       slack.New(i.BotToken, f.clientOpts...),
		Catalog:      f.Catalog(r),
		InstallPath:  f.settings.InstallPath,
	})
}

// installation converts an "oauth.v2.access" response into an [installations.Installation],
// with the bot ID that only "auth.test" reports.
func (f *Flow) installation(ctx context.Context, resp *slack.OAuthV2Response) (*installations.Installation, error) {
	i := &installations.Installation{
		AppID:               resp.AppID,
		EnterpriseID:        resp.Enterprise.ID,
		EnterpriseName:      resp.Enterprise.Name,
		TeamID:              resp.Team.ID,
		TeamName:            resp.Team.Name,
		IsEnterpriseInstall: resp.IsEnterpriseInstall,
		TokenType:           resp.TokenType,
		BotToken:            resp.AccessToken,
		BotUserID:           resp.BotUserID,
		BotScopes:           splitScopes(resp.Scope),
		UserID:              resp.AuthedUser.ID,
		UserToken:           resp.AuthedUser.AccessToken,
		UserScopes:          splitScopes(resp.AuthedUser.Scope),
		InstalledAt:         time.Now().UTC(),
	}

	if i.BotToken != "" {
		bot, err := slack.New(i.BotToken, f.clientOpts...).AuthTestContext(ctx)
		if err != nil {
			return nil, fmt.Errorf("auth.test failed: %w", err)
		}
		i.BotID = bot.BotID
	}

	return i, nil
}

func splitScopes(s string) []string {
	if s == "" {
		return nil
	}
	return strings.Split(s, ",")
}

func (f *Flow) fail(w http.ResponseWriter, r *http.Request, reason string, status int) {
	f.failure(w, r, FailureArgs{
		Reason:      reason,
		StatusCode:  status,
		Catalog:     f.Catalog(r),
		InstallPath: f.settings.InstallPath,
	})
}

// DefaultSuccess renders a page which redirects to the app in the Slack client.
func DefaultSuccess(w http.ResponseWriter, r *http.Request, args SuccessArgs) {
	page, err := args.Catalog.SuccessPage(args.Installation.AppID, args.Installation.TeamID)
	if err != nil {
		zerolog.Ctx(r.Context()).Err(err).Msg("failed to render success page")
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	writeHTML(w, http.StatusOK, page)
}

// DefaultFailure renders an error page with a link to restart the installation.
func DefaultFailure(w http.ResponseWriter, r *http.Request, args FailureArgs) {
	page, err := args.Catalog.FailurePage(args.InstallPath, args.Reason)
	if err != nil {
		zerolog.Ctx(r.Context()).Err(err).Msg("failed to render failure page")
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	writeHTML(w, args.StatusCode, page)
}

func writeHTML(w http.ResponseWriter, status int, page []byte) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Content-Length", strconv.Itoa(len(page)))
	w.WriteHeader(status)
	_, _ = w.Write(page)
}
