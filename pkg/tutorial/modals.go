package tutorial

import (
	"errors"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/slack-go/slack"
)

const (
	minTitleLength       = 8
	minDescriptionLength = 20
)

func (c *Content) modal(callbackID, titleKey string, blocks ...slack.Block) *slack.ModalViewRequest {
	return &slack.ModalViewRequest{
		Type:       slack.VTModal,
		CallbackID: callbackID,
		Title:      c.plain(titleKey),
		Close:      c.plain("common.close"),
		Blocks:     slack.Blocks{BlockSet: blocks},
	}
}

// StarModal explains the Home tab button with the given number of stars.
func (c *Content) StarModal(num int) slack.ModalViewRequest {
	text := c.format("stars.text", map[string]any{
		"Num":   num,
		"Stars": strings.Repeat(":star:", max(num, 0)),
	})
	return *c.modal("", "common.demo_app", section(text))
}

// UserSelectedModal shows which user was selected in the Home tab.
func (c *Content) UserSelectedModal(userID string) slack.ModalViewRequest {
	return *c.modal("", "common.demo_app", section(c.format("user_selected.text", map[string]string{"UserID": userID})))
}

// TaskForm contains the values of a submitted task modal.
type TaskForm struct {
	Title       string
	Assignee    string
	Priority    string
	Deadline    string
	Description string
}

// TaskModal builds the task registration form, which demonstrates input validation.
func (c *Content) TaskModal() slack.ModalViewRequest {
	title := slack.NewPlainTextInputBlockElement(c.plain("task.title_placeholder"), inputActionID).
		WithInitialValue(c.text("task.title_initial"))

	assignee := slack.NewOptionsSelectBlockElement(slack.OptTypeUser, c.plain("task.assignee_placeholder"), inputActionID)

	medium := slack.NewOptionBlockObject("m", c.plain("task.priority_medium"), nil)
	priority := slack.NewRadioButtonsBlockElement(inputActionID,
		slack.NewOptionBlockObject("h", c.plain("task.priority_high"), nil),
		medium,
		slack.NewOptionBlockObject("l", c.plain("task.priority_low"), nil),
	)
	priority.InitialOption = medium

	deadline := slack.NewDatePickerBlockElement(inputActionID)
	deadline.Placeholder = c.plain("task.deadline_placeholder")
	deadline.InitialDate = c.Today()

	description := slack.NewPlainTextInputBlockElement(c.plain("task.description_placeholder"), inputActionID).
		WithInitialValue(c.text("task.description_initial")).WithMultiline(true)

	m := c.modal(TaskSubmissionCallbackID, "task.title",
		slack.NewInputBlock(TaskTitleBlockID, c.plain("task.title_label"), nil, title),
		slack.NewInputBlock(TaskAssigneeBlockID, c.plain("task.assignee_label"), nil, assignee).WithOptional(true),
		slack.NewInputBlock(TaskPriorityBlockID, c.plain("task.priority_label"), nil, priority),
		slack.NewInputBlock(TaskDeadlineBlockID, c.plain("task.deadline_label"), nil, deadline).WithOptional(true),
		slack.NewInputBlock(TaskDescriptionBlockID, c.plain("task.description_label"), nil, description).WithOptional(true),
	)
	m.Submit = c.plain("common.submit")
	m.Close = c.plain("common.cancel")
	return *m
}

// ParseTaskForm extracts the values of a submitted task modal.
func ParseTaskForm(state *slack.ViewState) TaskForm {
	var f TaskForm
	if state == nil {
		return f
	}

	input := func(blockID string) slack.BlockAction {
		return state.Values[blockID][inputActionID]
	}

	f.Title = input(TaskTitleBlockID).Value
	f.Assignee = input(TaskAssigneeBlockID).SelectedUser
	if t := input(TaskPriorityBlockID).SelectedOption.Text; t != nil {
		f.Priority = t.Text
	}
	f.Deadline = input(TaskDeadlineBlockID).SelectedDate
	f.Description = input(TaskDescriptionBlockID).Value

	return f
}

// ValidateTask returns error messages keyed by input block ID,
// or nil if the form is valid. The deadline must be after today.
func (c *Content) ValidateTask(f TaskForm) map[string]string {
	errs := map[string]string{}

	if utf8.RuneCountInString(f.Title) < minTitleLength {
		errs[TaskTitleBlockID] = c.text("task.error_title")
	}

	if f.Deadline != "" {
		d, err := time.ParseInLocation(time.DateOnly, f.Deadline, c.loc)
		if err != nil || !d.After(c.today()) {
			errs[TaskDeadlineBlockID] = c.text("task.error_deadline")
		}
	}

	if f.Description != "" && utf8.RuneCountInString(f.Description) < minDescriptionLength {
		errs[TaskDescriptionBlockID] = c.text("task.error_description")
	}

	if len(errs) == 0 {
		return nil
	}
	return errs
}

// TaskResultModal replaces the task modal after a valid submission.
func (c *Content) TaskResultModal(f TaskForm) *slack.ModalViewRequest {
	assignee := c.text("task.result_unassigned")
	if f.Assignee != "" {
		assignee = "<@" + f.Assignee + ">"
	}

	summary := slack.NewContextBlock("",
		markdown(c.format("task.result_assignee", map[string]string{"Assignee": assignee})),
		plainText(c.format("task.result_priority", map[string]string{"Priority": f.Priority})),
		plainText(c.format("task.result_deadline", map[string]string{"Deadline": f.Deadline})),
		plainText(c.format("task.result_description", map[string]string{"Description": f.Description})),
	)

	subject := slack.NewSectionBlock(plainText(c.format("task.result_subject", map[string]string{"Title": f.Title})), nil, nil)
	return c.modal(TaskResultCallbackID, "task.result_title", subject, summary)
}

// ChannelModal builds the form to create a test channel for the given user.
func (c *Content) ChannelModal(userID string) slack.ModalViewRequest {
	name := slack.NewPlainTextInputBlockElement(c.plain("channel.name_placeholder"), inputActionID).
		WithInitialValue(c.format("channel.default_name", map[string]string{"UserID": strings.ToLower(userID)}))

	m := c.modal(ChannelSubmissionCallbackID, "channel.title",
		slack.NewInputBlock(channelNameBlockID, c.plain("channel.name_label"), nil, name),
	)
	m.Submit = c.plain("channel.submit")
	m.Close = c.plain("common.cancel")
	return *m
}

// ChannelName extracts the channel name from a submitted channel modal.
func ChannelName(state *slack.ViewState) string {
	if state == nil {
		return ""
	}
	return state.Values[channelNameBlockID][inputActionID].Value
}

// ChannelErrors translates a channel creation error into
// an error message, keyed by the input block's ID.
func (c *Content) ChannelErrors(err error) map[string]string {
	code := err.Error()
	var resp slack.SlackErrorResponse
	if errors.As(err, &resp) {
		code = resp.Err
	}

	msg := c.format("channel.error_other", map[string]string{"Error": code})
	switch code {
	case "name_taken":
		msg = c.text("channel.error_name_taken")
	case "invalid_name_specials":
		msg = c.text("channel.error_invalid_name")
	}

	return map[string]string{channelNameBlockID: msg}
}

// ChannelResultModal replaces the channel modal after the channel is created.
func (c *Content) ChannelResultModal(channelID string) *slack.ModalViewRequest {
	return c.modal(ChannelResultCallbackID, "channel.result_title",
		section(c.text("channel.result_created")),
		section(c.format("channel.result_next", map[string]string{"ChannelID": channelID})),
	)
}

// GlobalShortcutModal is opened by the global shortcut. Its conversation
// selector defaults to the channel where the shortcut was invoked, if any.
func (c *Content) GlobalShortcutModal() slack.ModalViewRequest {
	sel := slack.NewOptionsSelectBlockElement(slack.OptTypeConversations, c.plain("global_shortcut.channel_placeholder"), inputActionID)
	sel.DefaultToCurrentConversation = true

	m := c.modal(GlobalShortcutSubmissionCallbackID, "global_shortcut.title",
		section(c.text("global_shortcut.intro")),
		slack.NewInputBlock(conversationSelectBlockID, c.plain("global_shortcut.channel_label"), nil, sel),
		section(c.text("global_shortcut.code")),
	)
	m.Submit = c.plain("common.submit")
	return *m
}

// SelectedConversation extracts the channel ID from a submitted global shortcut modal.
func SelectedConversation(state *slack.ViewState) string {
	if state == nil {
		return ""
	}
	return state.Values[conversationSelectBlockID][inputActionID].SelectedConversation
}

// MessageShortcutModal is opened by the message shortcut.
// It shares its callback ID with the global shortcut's modal.
func (c *Content) MessageShortcutModal() slack.ModalViewRequest {
	return *c.modal(GlobalShortcutSubmissionCallbackID, "message_shortcut.title",
		section(c.text("message_shortcut.body")),
	)
}
