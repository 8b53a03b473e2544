package tutorial

// Action IDs of interactive Block Kit elements.
const (
	LinkButtonActionID        = "link_button"
	MultiUsersSelectActionID  = "message_multi_users_select"
	PageTransitionActionID    = "tutorial_page_transition_"
	StarButtonActionID        = "page1_home_tab_button_"
	UsersSelectActionID       = "page1_home_tab_users_select"
	TaskModalActionID         = "page2_modal"
	ExternalSelectActionID    = "external-data-source-example"
	CreateChannelActionID     = "page4_create_channel"
	inputActionID             = "input"
	channelNameBlockID        = "channel_name"
	conversationSelectBlockID = "channel"
)

// Callback IDs of views and shortcuts.
const (
	TaskSubmissionCallbackID           = "page2_modal_submission"
	TaskResultCallbackID               = "page2_modal_submission_result"
	ChannelSubmissionCallbackID        = "page4_create_channel_submission"
	ChannelResultCallbackID            = "page4_create_channel_submission_result"
	GlobalShortcutCallbackID           = "global-shortcut-example"
	GlobalShortcutSubmissionCallbackID = "global-shortcut-example_submission"
	MessageShortcutCallbackID          = "message-shortcut-example"
)

// Input block IDs of the task modal, which are also the keys of validation errors.
const (
	TaskTitleBlockID       = "title"
	TaskAssigneeBlockID    = "assignee"
	TaskPriorityBlockID    = "priority"
	TaskDeadlineBlockID    = "deadline"
	TaskDescriptionBlockID = "description"
)
