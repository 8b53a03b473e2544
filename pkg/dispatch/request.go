// Package dispatch routes incoming Slack requests (Events API callbacks and
// interaction payloads, from HTTP or Socket Mode) to registered listeners.
//
// Each listener has a synchronous "ack" function, which must return within
// Slack's 3-second deadline, and optional "lazy" functions which run after
// the acknowledgement (or before it, in process-before-response mode).
package dispatch

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/slack-go/slack"
	"github.com/slack-go/slack/slackevents"
)

// Request types, as reported in Slack payloads.
const (
	TypeEventCallback   = slackevents.CallbackEvent
	TypeBlockActions    = string(slack.InteractionTypeBlockActions)
	TypeBlockSuggestion = string(slack.InteractionTypeBlockSuggestion)
	TypeViewSubmission  = string(slack.InteractionTypeViewSubmission)
	TypeShortcut        = string(slack.InteractionTypeShortcut)
	TypeMessageAction   = string(slack.InteractionTypeMessageAction)
)

// Identity identifies the workspace (or org) and user that a request came from.
type Identity struct {
	EnterpriseID        string
	TeamID              string
	UserID              string
	IsEnterpriseInstall bool
}

// Request is a parsed Slack request, enriched with
// authorization details and an API client before dispatching.
type Request struct {
	Type        string
	Identity    Identity
	Event       *slackevents.EventsAPIEvent
	Interaction *slack.InteractionCallback

	Auth   *Authorization
	Client *slack.Client
}

type eventEnvelope struct {
	Type         string `json:"type"`
	TeamID       string `json:"team_id"`
	EnterpriseID string `json:"enterprise_id"`
	Event        struct {
		Type   string          `json:"type"`
		User   json.RawMessage `json:"user"`
		UserID string          `json:"user_id"`
	} `json:"event"`
	Authorizations []struct {
		IsEnterpriseInstall bool `json:"is_enterprise_install"`
	} `json:"authorizations"`
}

// ParseEvent parses an Events API callback. Inner events which the SDK
// doesn't recognize are not an error: they are simply not dispatchable.
func ParseEvent(body []byte) (*Request, error) {
	env := new(eventEnvelope)
	if err := json.Unmarshal(body, env); err != nil {
		return nil, fmt.Errorf("failed to parse event: %w", err)
	}
	if env.Type != TypeEventCallback {
		return nil, fmt.Errorf("unexpected event type: %q", env.Type)
	}

	e, err := slackevents.ParseEvent(body, slackevents.OptionNoVerifyToken())
	if err != nil {
		e = slackevents.EventsAPIEvent{
			Type:         env.Type,
			TeamID:       env.TeamID,
			EnterpriseID: env.EnterpriseID,
			InnerEvent:   slackevents.EventsAPIInnerEvent{Type: env.Event.Type},
		}
	}

	userID := env.Event.UserID
	if id := rawUserID(env.Event.User); id != "" {
		userID = id
	}

	return &Request{
		Type: TypeEventCallback,
		Identity: Identity{
			EnterpriseID:        env.EnterpriseID,
			TeamID:              env.TeamID,
			UserID:              userID,
			IsEnterpriseInstall: len(env.Authorizations) > 0 && env.Authorizations[0].IsEnterpriseInstall,
		},
		Event: &e,
	}, nil
}

// rawUserID extracts a user ID from a JSON string, or from an object with an "id" field.
func rawUserID(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}

	var id string
	if err := json.Unmarshal(raw, &id); err == nil {
		return id
	}

	var u struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(raw, &u); err == nil {
		return u.ID
	}

	return ""
}

// ParseInteraction parses the JSON payload of an interaction request.
func ParseInteraction(payload []byte) (*Request, error) {
	if len(payload) == 0 {
		return nil, errors.New("missing interaction payload")
	}

	ic := new(slack.InteractionCallback)
	if err := json.Unmarshal(payload, ic); err != nil {
		return nil, fmt.Errorf("failed to parse interaction payload: %w", err)
	}
	if ic.Type == "" {
		return nil, errors.New("missing interaction type")
	}

	teamID := ic.Team.ID
	if teamID == "" {
		teamID = ic.User.TeamID
	}

	return &Request{
		Type: string(ic.Type),
		Identity: Identity{
			EnterpriseID:        ic.Enterprise.ID,
			TeamID:              teamID,
			UserID:              ic.User.ID,
			IsEnterpriseInstall: ic.IsEnterpriseInstall,
		},
		Interaction: ic,
	}, nil
}

// Action returns the first block action of a "block_actions" request, or nil.
func (r *Request) Action() *slack.BlockAction {
	if r.Interaction == nil || len(r.Interaction.ActionCallback.BlockActions) == 0 {
		return nil
	}
	return r.Interaction.ActionCallback.BlockActions[0]
}

// key returns the ID that listeners of this request's type are registered with.
func (r *Request) key() string {
	if r.Type == TypeEventCallback {
		if r.Event == nil {
			return ""
		}
		return r.Event.InnerEvent.Type
	}
	if r.Interaction == nil {
		return ""
	}

	switch r.Type {
	case TypeBlockActions:
		if a := r.Action(); a != nil {
			return a.ActionID
		}
	case TypeBlockSuggestion:
		return r.Interaction.ActionID
	case TypeViewSubmission:
		return r.Interaction.View.CallbackID
	case TypeShortcut, TypeMessageAction:
		return r.Interaction.CallbackID
	}
	return ""
}
