package tutorial

import (
	"errors"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/slack-go/slack"
)

var jst = time.FixedZone("JST", 9*60*60)

func newTestContent(t *testing.T, lang string) *Content {
	t.Helper()

	b, err := LoadEmbedded()
	if err != nil {
		t.Fatalf("LoadEmbedded() error = %v", err)
	}

	c := NewContent(b.Lookup(lang), jst)
	c.now = func() time.Time {
		return time.Date(2026, time.October, 18, 12, 34, 56, 0, time.UTC)
	}
	return c
}

func TestHomeView(t *testing.T) {
	c := newTestContent(t, "ja")

	tests := []struct {
		name       string
		page       int
		wantBlocks int
		wantPager  []string
	}{
		{
			name:       "page_0",
			page:       0,
			wantBlocks: 4,
			wantPager:  []string{"tutorial_page_transition_2"},
		},
		{
			name:       "page_1",
			page:       1,
			wantBlocks: 10,
			wantPager:  []string{"tutorial_page_transition_2"},
		},
		{
			name:       "page_2",
			page:       2,
			wantBlocks: 10,
			wantPager:  []string{"tutorial_page_transition_1", "tutorial_page_transition_3"},
		},
		{
			name:       "page_3",
			page:       3,
			wantBlocks: 8,
			wantPager:  []string{"tutorial_page_transition_2", "tutorial_page_transition_4"},
		},
		{
			name:       "page_4",
			page:       4,
			wantBlocks: 10,
			wantPager:  []string{"tutorial_page_transition_3", "tutorial_page_transition_5"},
		},
		{
			name:       "page_5",
			page:       5,
			wantBlocks: 8,
			wantPager:  []string{"tutorial_page_transition_4", "tutorial_page_transition_6"},
		},
		{
			name:       "page_6",
			page:       6,
			wantBlocks: 6,
			wantPager:  []string{"tutorial_page_transition_5", "tutorial_page_transition_0"},
		},
		{
			name:       "page_7",
			page:       7,
			wantBlocks: 4,
			wantPager:  []string{"tutorial_page_transition_6", "tutorial_page_transition_0"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := c.HomeView(tt.page)
			if v.Type != slack.VTHomeTab {
				t.Errorf("HomeView() type = %q, want %q", v.Type, slack.VTHomeTab)
			}

			blocks := v.Blocks.BlockSet
			if len(blocks) != tt.wantBlocks {
				t.Fatalf("HomeView() len(blocks) = %d, want %d", len(blocks), tt.wantBlocks)
			}

			pager, ok := blocks[len(blocks)-3].(*slack.ActionBlock)
			if !ok {
				t.Fatalf("HomeView() pager block = %T, want *slack.ActionBlock", blocks[len(blocks)-3])
			}
			if got := buttonActionIDs(pager); !reflect.DeepEqual(got, tt.wantPager) {
				t.Errorf("HomeView() pager = %v, want %v", got, tt.wantPager)
			}

			footer, ok := blocks[len(blocks)-1].(*slack.ContextBlock)
			if !ok {
				t.Fatalf("HomeView() last block = %T, want *slack.ContextBlock", blocks[len(blocks)-1])
			}
			text := footer.ContextElements.Elements[0].(*slack.TextBlockObject).Text
			if want := "最終更新日時: 2026-10-18 21:34:56"; text != want {
				t.Errorf("HomeView() footer = %q, want %q", text, want)
			}
		})
	}
}

func buttonActionIDs(b *slack.ActionBlock) []string {
	var ids []string
	for _, e := range b.Elements.ElementSet {
		if btn, ok := e.(*slack.ButtonBlockElement); ok {
			ids = append(ids, btn.ActionID)
		}
	}
	return ids
}

func TestPagerBlockValues(t *testing.T) {
	c := newTestContent(t, "en")

	tests := []struct {
		name string
		page int
		want []string
	}{
		{
			name: "first",
			page: 1,
			want: []string{"2"},
		},
		{
			name: "middle",
			page: 3,
			want: []string{"2", "4"},
		},
		{
			name: "last",
			page: 6,
			want: []string{"5", "1"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got []string
			for _, e := range c.PagerBlock(tt.page).Elements.ElementSet {
				got = append(got, e.(*slack.ButtonBlockElement).Value)
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("PagerBlock(%d) values = %v, want %v", tt.page, got, tt.want)
			}
		})
	}
}

func TestPageSectionLengths(t *testing.T) {
	// Slack rejects section blocks with more than 3000 characters.
	for _, lang := range []string{"ja", "en"} {
		c := newTestContent(t, lang)
		for page := 1; page <= PageCount; page++ {
			for i, b := range c.pageBlocks(page) {
				s, ok := b.(*slack.SectionBlock)
				if !ok {
					continue
				}
				if n := len([]rune(s.Text.Text)); n > 3000 {
					t.Errorf("%s page %d block %d: section text length = %d", lang, page, i, n)
				}
			}
		}
	}
}

func TestInstallationMessage(t *testing.T) {
	c := newTestContent(t, "ja")
	m := c.InstallationMessage("A111", "U222")

	if !strings.HasPrefix(m.Text, ":wave:") {
		t.Errorf("InstallationMessage() text = %q", m.Text)
	}
	if len(m.Blocks) != 14 {
		t.Fatalf("InstallationMessage() len(blocks) = %d, want 14", len(m.Blocks))
	}

	explanation := m.Blocks[3].(*slack.SectionBlock).Text.Text
	if !strings.Contains(explanation, "https://my.slack.com/apps/A111|") {
		t.Errorf("InstallationMessage() explanation = %q", explanation)
	}

	step3 := m.Blocks[8].(*slack.SectionBlock)
	if !strings.Contains(step3.Text.Text, "<@U222>") {
		t.Errorf("InstallationMessage() step 3 = %q", step3.Text.Text)
	}
	if id := step3.Accessory.ButtonElement.ActionID; id != LinkButtonActionID {
		t.Errorf("InstallationMessage() step 3 action ID = %q, want %q", id, LinkButtonActionID)
	}

	step2 := m.Blocks[7].(*slack.SectionBlock)
	if id := step2.Accessory.MultiSelectElement.ActionID; id != MultiUsersSelectActionID {
		t.Errorf("InstallationMessage() step 2 action ID = %q, want %q", id, MultiUsersSelectActionID)
	}

	if got := len(m.MsgOptions()); got != 2 {
		t.Errorf("MsgOptions() len = %d, want 2", got)
	}
}

func TestUsersSelected(t *testing.T) {
	c := newTestContent(t, "en")
	got := c.UsersSelected([]string{"U1", "U2"})
	if want := "You selected <@U1>, <@U2>!"; got != want {
		t.Errorf("UsersSelected() = %q, want %q", got, want)
	}
}

func TestMessageShortcutFollowUp(t *testing.T) {
	c := newTestContent(t, "ja")
	m := c.MessageShortcutFollowUp("T111", "A111")
	if !strings.Contains(m.Text, "<slack://app?team=T111&id=A111|") {
		t.Errorf("MessageShortcutFollowUp() = %q", m.Text)
	}
	if len(m.MsgOptions()) != 1 {
		t.Errorf("MessageShortcutFollowUp() should not contain blocks")
	}
}

func TestOptions(t *testing.T) {
	tests := []struct {
		name    string
		lang    string
		keyword string
		want    []string
	}{
		{
			name: "empty_keyword",
			lang: "ja",
			want: []string{"en", "ja", "kr"},
		},
		{
			name:    "japanese_keyword",
			lang:    "ja",
			keyword: "日本",
			want:    []string{"ja"},
		},
		{
			name:    "shared_substring",
			lang:    "ja",
			keyword: "語",
			want:    []string{"en", "ja", "kr"},
		},
		{
			name:    "english_keyword",
			lang:    "en",
			keyword: "Kor",
			want:    []string{"kr"},
		},
		{
			name:    "emoji_keyword",
			lang:    "en",
			keyword: ":us:",
			want:    []string{"en"},
		},
		{
			name:    "no_match",
			lang:    "en",
			keyword: "French",
			want:    []string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := []string{}
			for _, o := range newTestContent(t, tt.lang).Options(tt.keyword) {
				got = append(got, o.Value)
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Options(%q) = %v, want %v", tt.keyword, got, tt.want)
			}
		})
	}
}

func TestValidateTask(t *testing.T) {
	c := newTestContent(t, "ja")

	tests := []struct {
		name string
		form TaskForm
		want []string
	}{
		{
			name: "valid",
			form: TaskForm{Title: "とても重要なタスクです", Deadline: "2026-10-19"},
		},
		{
			name: "valid_without_optional_fields",
			form: TaskForm{Title: "12345678"},
		},
		{
			name: "short_title",
			form: TaskForm{Title: "重要なタスク"},
			want: []string{TaskTitleBlockID},
		},
		{
			name: "deadline_today",
			form: TaskForm{Title: "12345678", Deadline: "2026-10-18"},
			want: []string{TaskDeadlineBlockID},
		},
		{
			name: "deadline_in_the_past",
			form: TaskForm{Title: "12345678", Deadline: "2020-10-23"},
			want: []string{TaskDeadlineBlockID},
		},
		{
			name: "invalid_deadline",
			form: TaskForm{Title: "12345678", Deadline: "tomorrow"},
			want: []string{TaskDeadlineBlockID},
		},
		{
			name: "short_description",
			form: TaskForm{Title: "12345678", Description: "なる早でお願いします！"},
			want: []string{TaskDescriptionBlockID},
		},
		{
			name: "long_enough_description",
			form: TaskForm{Title: "12345678", Description: "12345678901234567890"},
		},
		{
			name: "everything_wrong",
			form: TaskForm{Title: "short", Deadline: "2026-10-01", Description: "short"},
			want: []string{TaskTitleBlockID, TaskDeadlineBlockID, TaskDescriptionBlockID},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := c.ValidateTask(tt.form)
			if len(got) != len(tt.want) {
				t.Fatalf("ValidateTask() = %v, want errors in %v", got, tt.want)
			}
			for _, id := range tt.want {
				if got[id] == "" {
					t.Errorf("ValidateTask() missing error for %q", id)
				}
			}
		})
	}
}

func TestParseTaskForm(t *testing.T) {
	state := &slack.ViewState{Values: map[string]map[string]slack.BlockAction{
		"title":       {"input": {Value: "とても重要なタスクです"}},
		"assignee":    {"input": {SelectedUser: "U111"}},
		"priority":    {"input": {SelectedOption: slack.OptionBlockObject{Value: "h", Text: plainText("高")}}},
		"deadline":    {"input": {SelectedDate: "2026-10-20"}},
		"description": {"input": {Value: "詳細"}},
	}}

	want := TaskForm{
		Title:       "とても重要なタスクです",
		Assignee:    "U111",
		Priority:    "高",
		Deadline:    "2026-10-20",
		Description: "詳細",
	}
	if got := ParseTaskForm(state); !reflect.DeepEqual(got, want) {
		t.Errorf("ParseTaskForm() = %+v, want %+v", got, want)
	}

	if got := ParseTaskForm(nil); got != (TaskForm{}) {
		t.Errorf("ParseTaskForm(nil) = %+v, want zero value", got)
	}
}

func TestTaskModal(t *testing.T) {
	m := newTestContent(t, "ja").TaskModal()

	if m.CallbackID != TaskSubmissionCallbackID {
		t.Errorf("TaskModal() callback ID = %q, want %q", m.CallbackID, TaskSubmissionCallbackID)
	}

	var ids []string
	for _, b := range m.Blocks.BlockSet {
		ids = append(ids, b.ID())
	}
	want := []string{"title", "assignee", "priority", "deadline", "description"}
	if !reflect.DeepEqual(ids, want) {
		t.Errorf("TaskModal() block IDs = %v, want %v", ids, want)
	}

	deadline := m.Blocks.BlockSet[3].(*slack.InputBlock).Element.(*slack.DatePickerBlockElement)
	if deadline.InitialDate != "2026-10-18" {
		t.Errorf("TaskModal() initial deadline = %q, want %q", deadline.InitialDate, "2026-10-18")
	}
}

func TestTaskResultModal(t *testing.T) {
	c := newTestContent(t, "en")

	tests := []struct {
		name         string
		form         TaskForm
		wantAssignee string
	}{
		{
			name:         "assigned",
			form:         TaskForm{Title: "Important task", Assignee: "U111"},
			wantAssignee: "Assignee: <@U111>",
		},
		{
			name:         "unassigned",
			form:         TaskForm{Title: "Important task"},
			wantAssignee: "Assignee: Unassigned",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := c.TaskResultModal(tt.form)
			if m.CallbackID != TaskResultCallbackID {
				t.Errorf("TaskResultModal() callback ID = %q", m.CallbackID)
			}
			ctx := m.Blocks.BlockSet[1].(*slack.ContextBlock)
			if got := ctx.ContextElements.Elements[0].(*slack.TextBlockObject).Text; got != tt.wantAssignee {
				t.Errorf("TaskResultModal() assignee = %q, want %q", got, tt.wantAssignee)
			}
		})
	}
}

func TestChannelModal(t *testing.T) {
	m := newTestContent(t, "ja").ChannelModal("U0ABC")
	input := m.Blocks.BlockSet[0].(*slack.InputBlock)
	name := input.Element.(*slack.PlainTextInputBlockElement).InitialValue
	if want := "_学習用チャンネル-u0abc"; name != want {
		t.Errorf("ChannelModal() default name = %q, want %q", name, want)
	}

	state := &slack.ViewState{Values: map[string]map[string]slack.BlockAction{
		input.BlockID: {"input": {Value: "my-channel"}},
	}}
	if got := ChannelName(state); got != "my-channel" {
		t.Errorf("ChannelName() = %q, want %q", got, "my-channel")
	}
}

func TestChannelErrors(t *testing.T) {
	c := newTestContent(t, "en")

	tests := []struct {
		name string
		err  error
		want string
	}{
		{
			name: "name_taken",
			err:  slack.SlackErrorResponse{Err: "name_taken"},
			want: "This channel name already exists",
		},
		{
			name: "invalid_name_specials",
			err:  slack.SlackErrorResponse{Err: "invalid_name_specials"},
			want: "Channel names can't contain uppercase letters or special characters",
		},
		{
			name: "other_slack_error",
			err:  slack.SlackErrorResponse{Err: "restricted_action"},
			want: "An error occurred while creating the channel (restricted_action)",
		},
		{
			name: "other_error",
			err:  errors.New("timeout"),
			want: "An error occurred while creating the channel (timeout)",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := c.ChannelErrors(tt.err)
			if want := map[string]string{"channel_name": tt.want}; !reflect.DeepEqual(got, want) {
				t.Errorf("ChannelErrors() = %v, want %v", got, want)
			}
		})
	}
}

func TestGlobalShortcutModal(t *testing.T) {
	m := newTestContent(t, "ja").GlobalShortcutModal()
	if m.CallbackID != GlobalShortcutSubmissionCallbackID {
		t.Errorf("GlobalShortcutModal() callback ID = %q", m.CallbackID)
	}

	sel := m.Blocks.BlockSet[1].(*slack.InputBlock).Element.(*slack.SelectBlockElement)
	if !sel.DefaultToCurrentConversation {
		t.Error("GlobalShortcutModal() select should default to the current conversation")
	}

	state := &slack.ViewState{Values: map[string]map[string]slack.BlockAction{
		"channel": {"input": {SelectedConversation: "C111"}},
	}}
	if got := SelectedConversation(state); got != "C111" {
		t.Errorf("SelectedConversation() = %q, want %q", got, "C111")
	}
}

func TestMessageShortcutModal(t *testing.T) {
	m := newTestContent(t, "en").MessageShortcutModal()
	if m.Submit != nil {
		t.Error("MessageShortcutModal() should not have a submit button")
	}
	if m.CallbackID != GlobalShortcutSubmissionCallbackID {
		t.Errorf("MessageShortcutModal() callback ID = %q", m.CallbackID)
	}
}
