package tutorial

import (
	"strings"

	"github.com/slack-go/slack"
)

// Message is the content of a chat message: blocks, and fallback text for notifications.
type Message struct {
	Text   string
	Blocks []slack.Block
}

// MsgOptions converts the message into chat.postMessage options.
func (m Message) MsgOptions() []slack.MsgOption {
	opts := []slack.MsgOption{slack.MsgOptionText(m.Text, false)}
	if len(m.Blocks) > 0 {
		opts = append(opts, slack.MsgOptionBlocks(m.Blocks...))
	}
	return opts
}

// InstallationMessage is sent as a DM to the user who installed the app.
func (c *Content) InstallationMessage(appID, userID string) Message {
	step1 := slack.NewButtonBlockElement(LinkButtonActionID, "chat.postMessage", c.plain("install.step1_button")).
		WithURL("https://api.slack.com/methods/chat.postMessage")
	step2 := slack.NewOptionsMultiSelectBlockElement(slack.MultiOptTypeUser, c.plain("common.select_user"), MultiUsersSelectActionID)
	step3 := slack.NewButtonBlockElement(LinkButtonActionID, "chat.postMessage", c.plain("install.step3_button")).
		WithURL("https://api.slack.com/reference/surfaces/formatting")

	return Message{
		Text: c.text("install.text"),
		Blocks: []slack.Block{
			header(c.text("install.header")),
			section(c.text("install.welcome")),
			slack.NewDividerBlock(),
			section(c.format("install.explanation", map[string]string{"AppID": appID})),
			slack.NewDividerBlock(),
			section(c.text("install.posting_intro")),
			slack.NewSectionBlock(markdown(c.text("install.step1")), nil, slack.NewAccessory(step1)),
			slack.NewSectionBlock(markdown(c.text("install.step2")), nil, slack.NewAccessory(step2)),
			slack.NewSectionBlock(markdown(c.format("install.step3", map[string]string{"UserID": userID})), nil, slack.NewAccessory(step3)),
			slack.NewDividerBlock(),
			section(c.text("install.more")),
			slack.NewDividerBlock(),
			section(c.text("install.next")),
			image(tabsImageURL, c.text("install.tabs_image")),
		},
	}
}

// UsersSelected responds to a selection of users in the installation message.
func (c *Content) UsersSelected(userIDs []string) string {
	mentions := make([]string, 0, len(userIDs))
	for _, id := range userIDs {
		mentions = append(mentions, "<@"+id+">")
	}
	return c.format("install.users_selected", map[string]string{"Users": strings.Join(mentions, ", ")})
}

// WelcomeMessage is posted in channels that the app creates.
func (c *Content) WelcomeMessage() Message {
	return Message{
		Text: c.text("welcome.text"),
		Blocks: []slack.Block{
			section(c.text("welcome.body")),
			image(shortcutsMenuImageURL, c.text("welcome.image")),
		},
	}
}

// GlobalShortcutFollowUp is posted after the global shortcut's modal is submitted.
func (c *Content) GlobalShortcutFollowUp() Message {
	text := c.text("global_shortcut.followup")
	return Message{
		Text: text,
		Blocks: []slack.Block{
			section(text),
			image(messageMenuImageURL, c.text("global_shortcut.followup_image")),
		},
	}
}

// MessageShortcutFollowUp links back to the app's Home tab after the message shortcut.
func (c *Content) MessageShortcutFollowUp(teamID, appID string) Message {
	return Message{Text: c.format("message_shortcut.followup", map[string]string{"TeamID": teamID, "AppID": appID})}
}

// Options returns the choices of the external select menu whose text
// contains the given keyword. An empty keyword matches all of them.
func (c *Content) Options(keyword string) []*slack.OptionBlockObject {
	opts := []*slack.OptionBlockObject{}
	for _, lang := range []string{"en", "ja", "kr"} {
		text := c.text("options." + lang)
		if keyword == "" || strings.Contains(text, keyword) {
			opts = append(opts, slack.NewOptionBlockObject(lang, plainText(text), nil))
		}
	}
	return opts
}
