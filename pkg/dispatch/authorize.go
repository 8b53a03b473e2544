package dispatch

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/slack-go/slack"

	"github.com/tzrikka/manabi/pkg/installations"
)

// Authorization contains the credentials to handle a request on behalf of its workspace.
type Authorization struct {
	Identity

	BotToken  string
	BotID     string
	BotUserID string
	UserToken string
}

// Authorizer resolves the credentials of the workspace (or org) that a request came from.
type Authorizer interface {
	Authorize(ctx context.Context, id Identity) (*Authorization, error)
}

// ErrNotInstalled means that the app isn't installed in the request's workspace.
var ErrNotInstalled = errors.New("no installation found")

// StaticAuthorizer serves a single workspace with a fixed bot token.
// The bot's identity is resolved with the "auth.test" API method
// on first use, and then reused in all subsequent requests.
type StaticAuthorizer struct {
	token string
	opts  []slack.Option

	mu  sync.Mutex
	bot *slack.AuthTestResponse
}

// NewStaticAuthorizer returns an [Authorizer] for single-workspace apps.
func NewStaticAuthorizer(botToken string, opts ...slack.Option) *StaticAuthorizer {
	return &StaticAuthorizer{token: botToken, opts: opts}
}

func (a *StaticAuthorizer) Authorize(ctx context.Context, id Identity) (*Authorization, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.bot == nil {
		resp, err := slack.New(a.token, a.opts...).AuthTestContext(ctx)
		if err != nil {
			return nil, fmt.Errorf("auth.test failed: %w", err)
		}
		a.bot = resp
	}

	return &Authorization{
		Identity:  id,
		BotToken:  a.token,
		BotID:     a.bot.BotID,
		BotUserID: a.bot.UserID,
	}, nil
}

// InstallationAuthorizer serves multiple workspaces, based on the
// installations that were persisted by the OAuth installation flow.
type InstallationAuthorizer struct {
	store installations.Store
}

// NewInstallationAuthorizer returns an [Authorizer] for apps that support OAuth installations.
func NewInstallationAuthorizer(s installations.Store) *InstallationAuthorizer {
	return &InstallationAuthorizer{store: s}
}

func (a *InstallationAuthorizer) Authorize(ctx context.Context, id Identity) (*Authorization, error) {
	bot, err := a.store.FindBot(ctx, id.EnterpriseID, id.TeamID, id.IsEnterpriseInstall)
	if err != nil {
		return nil, err
	}
	if bot == nil {
		return nil, fmt.Errorf("%w: enterprise %q, team %q", ErrNotInstalled, id.EnterpriseID, id.TeamID)
	}

	auth := &Authorization{
		Identity:  id,
		BotToken:  bot.BotToken,
		BotID:     bot.BotID,
		BotUserID: bot.BotUserID,
	}

	if id.UserID != "" {
		i, err := a.store.FindInstallation(ctx, id.EnterpriseID, id.TeamID, id.UserID, id.IsEnterpriseInstall)
		if err != nil {
			return nil, err
		}
		if i != nil {
			auth.UserToken = i.UserToken
		}
	}

	return auth, nil
}
