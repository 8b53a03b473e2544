package oauth

import (
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/slack-go/slack/slacktest"
	"golang.org/x/text/language"

	"github.com/tzrikka/manabi/pkg/installations"
	"github.com/tzrikka/manabi/pkg/tutorial"
)

const (
	oauthOK = `{"ok":true,"app_id":"A111","access_token":"xoxb-111","token_type":"bot","scope":"chat:write,commands",
		"bot_user_id":"U999","team":{"id":"T111","name":"Team"},"enterprise":null,"is_enterprise_install":false,
		"authed_user":{"id":"U111","scope":"search:read","access_token":"xoxp-111","token_type":"user"}}`
	oauthBadCode = `{"ok":false,"error":"invalid_code"}`
)

// redirectClient sends Slack API requests to a test server.
type redirectClient struct {
	target *url.URL
}

func (c redirectClient) Do(req *http.Request) (*http.Response, error) {
	req.URL.Scheme = c.target.Scheme
	req.URL.Host = c.target.Host
	req.URL.Path = strings.TrimPrefix(req.URL.Path, "/api")
	return http.DefaultClient.Do(req)
}

type testEnv struct {
	flow  *Flow
	store *installations.SQLStore
	mu    sync.Mutex
	dms   []url.Values
}

func (e *testEnv) postedDMs() []url.Values {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.dms
}

func newTestEnv(t *testing.T, oauthResp, postMessageResp string, opts ...Option) *testEnv {
	t.Helper()
	env := &testEnv{}

	ts := slacktest.NewTestServer(func(c slacktest.Customize) {
		c.Handle("/oauth.v2.access", func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(oauthResp))
		})
		c.Handle("/auth.test", func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"ok":true,"team_id":"T111","user_id":"U999","bot_id":"B999"}`))
		})
		c.Handle("/chat.postMessage", func(w http.ResponseWriter, r *http.Request) {
			body, _ := io.ReadAll(r.Body)
			v, _ := url.ParseQuery(string(body))
			env.mu.Lock()
			env.dms = append(env.dms, v)
			env.mu.Unlock()

			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(postMessageResp))
		})
	})
	ts.Start()
	t.Cleanup(ts.Stop)

	target, err := url.Parse(ts.GetAPIURL())
	if err != nil {
		t.Fatalf("failed to parse test server URL: %v", err)
	}

	dsn := fmt.Sprintf("file:oauth-test-%d?mode=memory&cache=shared", time.Now().UnixNano())
	env.store, err = installations.OpenSQLite(t.Context(), dsn, time.Minute)
	if err != nil {
		t.Fatalf("OpenSQLite() error = %v", err)
	}
	t.Cleanup(func() {
		_ = env.store.Close()
	})

	b, err := tutorial.LoadEmbedded()
	if err != nil {
		t.Fatalf("LoadEmbedded() error = %v", err)
	}

	s := Settings{
		ClientID:          "111.222",
		ClientSecret:      "secret",
		Scopes:            []string{"chat:write", "commands"},
		UserScopes:        []string{"search:read"},
		RenderInstallPage: true,
	}
	opts = append([]Option{WithHTTPClient(redirectClient{target: target})}, opts...)
	env.flow, err = NewFlow(s, env.store, env.store, b, opts...)
	if err != nil {
		t.Fatalf("NewFlow() error = %v", err)
	}

	return env
}

func TestNewFlow(t *testing.T) {
	b, err := tutorial.LoadEmbedded()
	if err != nil {
		t.Fatalf("LoadEmbedded() error = %v", err)
	}

	if _, err := NewFlow(Settings{ClientID: "111.222"}, nil, nil, b); err == nil {
		t.Error("NewFlow() without client secret: error = nil")
	}
	if _, err := NewFlow(Settings{ClientID: "111.222", ClientSecret: "secret"}, nil, nil, b); err == nil {
		t.Error("NewFlow() without stores: error = nil")
	}
}

func TestAuthorizeURL(t *testing.T) {
	env := newTestEnv(t, oauthOK, `{"ok":true}`)

	u, err := url.Parse(env.flow.AuthorizeURL("state123"))
	if err != nil {
		t.Fatalf("AuthorizeURL() returned an invalid URL: %v", err)
	}
	if got := u.Scheme + "://" + u.Host + u.Path; got != DefaultAuthorizeURL {
		t.Errorf("AuthorizeURL() base = %q, want %q", got, DefaultAuthorizeURL)
	}

	want := url.Values{
		"state":      {"state123"},
		"client_id":  {"111.222"},
		"scope":      {"chat:write,commands"},
		"user_scope": {"search:read"},
	}
	if got := u.Query(); got.Encode() != want.Encode() {
		t.Errorf("AuthorizeURL() query = %v, want %v", got, want)
	}
}

func stateCookie(t *testing.T, w *httptest.ResponseRecorder) *http.Cookie {
	t.Helper()
	for _, c := range w.Result().Cookies() {
		if c.Name == StateCookieName {
			return c
		}
	}
	t.Fatalf("response has no %q cookie", StateCookieName)
	return nil
}

func TestHandleInstall(t *testing.T) {
	t.Run("install_page", func(t *testing.T) {
		env := newTestEnv(t, oauthOK, `{"ok":true}`)
		w := httptest.NewRecorder()
		env.flow.HandleInstall(w, httptest.NewRequest(http.MethodGet, "/slack/install?lang=en", nil))

		if w.Code != http.StatusOK {
			t.Fatalf("HandleInstall() status = %d, want %d", w.Code, http.StatusOK)
		}
		c := stateCookie(t, w)
		if c.Value == "" || !c.HttpOnly || !c.Secure {
			t.Errorf("state cookie = %+v", c)
		}
		if body := w.Body.String(); !strings.Contains(body, "state="+c.Value) {
			t.Errorf("install page doesn't link to the authorization URL with the state:\n%s", body)
		}
		if ct := w.Header().Get("Content-Type"); ct != "text/html; charset=utf-8" {
			t.Errorf("HandleInstall() content type = %q", ct)
		}
		if cl, want := w.Header().Get("Content-Length"), strconv.Itoa(w.Body.Len()); cl != want {
			t.Errorf("HandleInstall() content length = %q, want %q", cl, want)
		}
	})

	t.Run("redirect", func(t *testing.T) {
		env := newTestEnv(t, oauthOK, `{"ok":true}`)
		env.flow.settings.RenderInstallPage = false

		w := httptest.NewRecorder()
		env.flow.HandleInstall(w, httptest.NewRequest(http.MethodGet, "/slack/install", nil))

		if w.Code != http.StatusFound {
			t.Fatalf("HandleInstall() status = %d, want %d", w.Code, http.StatusFound)
		}
		c := stateCookie(t, w)
		if want := env.flow.AuthorizeURL(c.Value); w.Header().Get("Location") != want {
			t.Errorf("HandleInstall() location = %q, want %q", w.Header().Get("Location"), want)
		}
	})
}

func TestHandleCallbackFailures(t *testing.T) {
	tests := []struct {
		name       string
		oauthResp  string
		query      string
		cookie     string
		wantReason string
		wantStatus int
	}{
		{
			name:       "access_denied",
			query:      "error=access_denied",
			wantReason: "access_denied",
			wantStatus: http.StatusOK,
		},
		{
			name:       "missing_state",
			query:      "code=123",
			wantReason: ReasonInvalidState,
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "missing_cookie",
			query:      "code=123&state={{state}}",
			wantReason: ReasonInvalidBrowser,
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "cookie_mismatch",
			query:      "code=123&state={{state}}",
			cookie:     "other",
			wantReason: ReasonInvalidBrowser,
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "unknown_state",
			query:      "code=123&state=unknown",
			cookie:     "unknown",
			wantReason: ReasonInvalidState,
			wantStatus: http.StatusUnauthorized,
		},
		{
			name:       "missing_code",
			query:      "state={{state}}",
			cookie:     "{{state}}",
			wantReason: ReasonMissingCode,
			wantStatus: http.StatusUnauthorized,
		},
		{
			name:       "invalid_code",
			oauthResp:  oauthBadCode,
			query:      "code=123&state={{state}}",
			cookie:     "{{state}}",
			wantReason: ReasonInvalidCode,
			wantStatus: http.StatusUnauthorized,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.oauthResp == "" {
				tt.oauthResp = oauthOK
			}

			var got *FailureArgs
			env := newTestEnv(t, tt.oauthResp, `{"ok":true}`, WithFailure(func(w http.ResponseWriter, _ *http.Request, args FailureArgs) {
				got = &args
				w.WriteHeader(args.StatusCode)
			}))

			state, err := env.store.Issue(t.Context())
			if err != nil {
				t.Fatalf("Issue() error = %v", err)
			}

			r := httptest.NewRequest(http.MethodGet, "/slack/oauth_redirect?"+strings.ReplaceAll(tt.query, "{{state}}", state), nil)
			if tt.cookie != "" {
				r.AddCookie(&http.Cookie{Name: StateCookieName, Value: strings.ReplaceAll(tt.cookie, "{{state}}", state)})
			}

			w := httptest.NewRecorder()
			env.flow.HandleCallback(w, r)

			if got == nil {
				t.Fatal("failure callback wasn't called")
			}
			if got.Reason != tt.wantReason {
				t.Errorf("failure reason = %q, want %q", got.Reason, tt.wantReason)
			}
			if w.Code != tt.wantStatus {
				t.Errorf("HandleCallback() status = %d, want %d", w.Code, tt.wantStatus)
			}
			if got.InstallPath != DefaultInstallPath {
				t.Errorf("failure install path = %q, want %q", got.InstallPath, DefaultInstallPath)
			}
		})
	}
}

func callbackRequest(t *testing.T, env *testEnv) *http.Request {
	t.Helper()

	state, err := env.store.Issue(t.Context())
	if err != nil {
		t.Fatalf("Issue() error = %v", err)
	}

	r := httptest.NewRequest(http.MethodGet, "/slack/oauth_redirect?code=123&state="+state, nil)
	r.AddCookie(&http.Cookie{Name: StateCookieName, Value: state})
	r.Header.Set("Accept-Language", "en-US,en;q=0.9")
	return r
}

func TestHandleCallbackSuccess(t *testing.T) {
	env := newTestEnv(t, oauthOK, `{"ok":true}`)
	r := callbackRequest(t, env)

	w := httptest.NewRecorder()
	env.flow.HandleCallback(w, r)

	if w.Code != http.StatusOK {
		t.Fatalf("HandleCallback() status = %d, want %d", w.Code, http.StatusOK)
	}
	if body := w.Body.String(); !strings.Contains(body, "slack://app?team=T111&amp;id=A111") {
		t.Errorf("success page doesn't redirect to the app:\n%s", body)
	}
	if cl, want := w.Header().Get("Content-Length"), strconv.Itoa(w.Body.Len()); cl != want {
		t.Errorf("HandleCallback() content length = %q, want %q", cl, want)
	}
	if c := stateCookie(t, w); c.MaxAge >= 0 && c.Value != "deleted" {
		t.Errorf("state cookie wasn't cleared: %+v", c)
	}

	bot, err := env.store.FindBot(t.Context(), "", "T111", false)
	if err != nil {
		t.Fatalf("FindBot() error = %v", err)
	}
	if bot == nil || bot.BotToken != "xoxb-111" || bot.BotID != "B999" || bot.BotUserID != "U999" {
		t.Errorf("FindBot() = %+v, want token xoxb-111, bot ID B999, bot user ID U999", bot)
	}

	i, err := env.store.FindInstallation(t.Context(), "", "T111", "U111", false)
	if err != nil {
		t.Fatalf("FindInstallation() error = %v", err)
	}
	if i == nil || i.UserToken != "xoxp-111" || len(i.BotScopes) != 2 {
		t.Errorf("FindInstallation() = %+v, want user token xoxp-111 and 2 bot scopes", i)
	}

	// The state is single-use.
	w = httptest.NewRecorder()
	env.flow.HandleCallback(w, r)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("replayed HandleCallback() status = %d, want %d", w.Code, http.StatusUnauthorized)
	}

	if n := len(env.postedDMs()); n != 0 {
		t.Errorf("default success callback posted %d messages, want 0", n)
	}
}

func TestOnboarding(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		env := newTestEnv(t, oauthOK, `{"ok":true,"channel":"D111","ts":"1.2"}`, WithSuccess(Onboarding(time.UTC)))
		w := httptest.NewRecorder()
		env.flow.HandleCallback(w, callbackRequest(t, env))

		if w.Code != http.StatusOK {
			t.Fatalf("HandleCallback() status = %d, want %d", w.Code, http.StatusOK)
		}

		dms := env.postedDMs()
		if len(dms) != 1 {
			t.Fatalf("chat.postMessage calls = %d, want 1", len(dms))
		}
		if dms[0].Get("channel") != "U111" {
			t.Errorf("installation message channel = %q, want %q", dms[0].Get("channel"), "U111")
		}
		if dms[0].Get("token") != "xoxb-111" {
			t.Errorf("installation message token = %q, want the new bot token", dms[0].Get("token"))
		}
		if !strings.Contains(dms[0].Get("blocks"), "https://my.slack.com/apps/A111") {
			t.Error("installation message doesn't link to the app's management page")
		}
	})

	t.Run("api_error", func(t *testing.T) {
		env := newTestEnv(t, oauthOK, `{"ok":false,"error":"channel_not_found"}`, WithSuccess(Onboarding(time.UTC)))
		w := httptest.NewRecorder()
		env.flow.HandleCallback(w, callbackRequest(t, env))

		if w.Code != http.StatusInternalServerError {
			t.Fatalf("HandleCallback() status = %d, want %d", w.Code, http.StatusInternalServerError)
		}
		body := w.Body.String()
		if !strings.Contains(body, "channel_not_found") || !strings.Contains(body, `href="/slack/install"`) {
			t.Errorf("failure page = %s", body)
		}
	})
}

func TestCatalog(t *testing.T) {
	env := newTestEnv(t, oauthOK, `{"ok":true}`)

	tests := []struct {
		name           string
		query          string
		acceptLanguage string
		want           language.Tag
	}{
		{name: "default", want: language.Japanese},
		{name: "query", query: "?lang=en", want: language.English},
		{name: "query_overrides_header", query: "?lang=ja", acceptLanguage: "en-US", want: language.Japanese},
		{name: "header", acceptLanguage: "en-GB,en;q=0.9,ja;q=0.5", want: language.English},
		{name: "unsupported_header", acceptLanguage: "fr-FR", want: language.Japanese},
		{name: "malformed_header", acceptLanguage: ";;;", want: language.Japanese},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/slack/install"+tt.query, nil)
			if tt.acceptLanguage != "" {
				r.Header.Set("Accept-Language", tt.acceptLanguage)
			}

			if got := env.flow.Catalog(r).Tag(); got != tt.want {
				t.Errorf("Catalog() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestIsCallback(t *testing.T) {
	tests := []struct {
		query string
		want  bool
	}{
		{query: "", want: false},
		{query: "?lang=en", want: false},
		{query: "?code=123&state=abc", want: true},
		{query: "?error=access_denied", want: true},
	}

	for _, tt := range tests {
		r := httptest.NewRequest(http.MethodGet, "/slack/install"+tt.query, nil)
		if got := IsCallback(r); got != tt.want {
			t.Errorf("IsCallback(%q) = %v, want %v", tt.query, got, tt.want)
		}
	}
}
