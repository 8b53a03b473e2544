// Package installations persists the results of Slack's [OAuth v2 flow]
// (bot and user tokens per workspace or Enterprise Grid organization),
// and the short-lived state parameters that protect that flow.
//
// [OAuth v2 flow]: https://docs.slack.dev/authentication/installing-with-oauth
package installations

import (
	"context"
	"time"
)

// Installation is the outcome of a single successful OAuth flow.
type Installation struct {
	AppID               string    `json:"app_id"`
	EnterpriseID        string    `json:"enterprise_id,omitempty"`
	EnterpriseName      string    `json:"enterprise_name,omitempty"`
	TeamID              string    `json:"team_id,omitempty"`
	TeamName            string    `json:"team_name,omitempty"`
	IsEnterpriseInstall bool      `json:"is_enterprise_install"`
	TokenType           string    `json:"token_type,omitempty"`
	BotToken            string    `json:"bot_token,omitempty"`
	BotID               string    `json:"bot_id,omitempty"`
	BotUserID           string    `json:"bot_user_id,omitempty"`
	BotScopes           []string  `json:"bot_scopes,omitempty"`
	UserID              string    `json:"user_id"`
	UserToken           string    `json:"user_token,omitempty"`
	UserScopes          []string  `json:"user_scopes,omitempty"`
	InstalledAt         time.Time `json:"installed_at"`
}

// Bot is the subset of an [Installation] needed to act on behalf of the app.
type Bot struct {
	AppID               string    `json:"app_id"`
	EnterpriseID        string    `json:"enterprise_id,omitempty"`
	TeamID              string    `json:"team_id,omitempty"`
	IsEnterpriseInstall bool      `json:"is_enterprise_install"`
	BotToken            string    `json:"bot_token"`
	BotID               string    `json:"bot_id"`
	BotUserID           string    `json:"bot_user_id"`
	BotScopes           []string  `json:"bot_scopes,omitempty"`
	InstalledAt         time.Time `json:"installed_at"`
}

// Bot extracts the app's bot credentials from the installation.
func (i *Installation) Bot() *Bot {
	return &Bot{
		AppID:               i.AppID,
		EnterpriseID:        i.EnterpriseID,
		TeamID:              i.TeamID,
		IsEnterpriseInstall: i.IsEnterpriseInstall,
		BotToken:            i.BotToken,
		BotID:               i.BotID,
		BotUserID:           i.BotUserID,
		BotScopes:           i.BotScopes,
		InstalledAt:         i.InstalledAt,
	}
}

// Store persists installations. All the Find functions report
// storage errors, but if nothing is found they return nothing.
//
// The team ID is ignored in lookups of Enterprise Grid org-wide
// installations, and an empty user ID means the latest installer.
type Store interface {
	Save(ctx context.Context, i *Installation) error
	FindBot(ctx context.Context, enterpriseID, teamID string, isEnterpriseInstall bool) (*Bot, error)
	FindInstallation(ctx context.Context, enterpriseID, teamID, userID string, isEnterpriseInstall bool) (*Installation, error)
	DeleteBot(ctx context.Context, enterpriseID, teamID string) error
	DeleteInstallation(ctx context.Context, enterpriseID, teamID, userID string) error
}

// StateStore issues and consumes single-use OAuth state parameters.
type StateStore interface {
	Issue(ctx context.Context) (string, error)
	Consume(ctx context.Context, state string) (bool, error)
}

// DefaultStateExpiration is the lifetime of OAuth state parameters, unless configured otherwise.
const DefaultStateExpiration = 10 * time.Minute

// teamKey normalizes the identifiers of an installation's workspace or org.
func teamKey(enterpriseID, teamID string, isEnterpriseInstall bool) (string, string) {
	if isEnterpriseInstall {
		teamID = ""
	}
	if enterpriseID == "" {
		enterpriseID = "none"
	}
	if teamID == "" {
		teamID = "none"
	}
	return enterpriseID, teamID
}
