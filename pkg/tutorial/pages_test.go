package tutorial

import (
	"strings"
	"testing"
)

func TestSlackAppURL(t *testing.T) {
	tests := []struct {
		name   string
		appID  string
		teamID string
		want   string
	}{
		{
			name:  "enterprise_install_without_team",
			appID: "A111",
			want:  "slack://open",
		},
		{
			name:   "workspace_install",
			appID:  "A111",
			teamID: "T111",
			want:   "slack://app?team=T111&id=A111",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := SlackAppURL(tt.appID, tt.teamID); got != tt.want {
				t.Errorf("SlackAppURL() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestPages(t *testing.T) {
	b, err := LoadEmbedded()
	if err != nil {
		t.Fatalf("LoadEmbedded() error = %v", err)
	}
	ja, en := b.Lookup("ja"), b.Lookup("en")

	tests := []struct {
		name   string
		render func() ([]byte, error)
		want   []string
	}{
		{
			name: "install",
			render: func() ([]byte, error) {
				return en.InstallPage("https://slack.com/oauth/v2/authorize?client_id=1.2&scope=chat:write&state=abc")
			},
			want: []string{
				`<html lang="en">`,
				`<a href="https://slack.com/oauth/v2/authorize?client_id=1.2&amp;scope=chat:write&amp;state=abc">`,
				"Add to Slack",
			},
		},
		{
			name: "success",
			render: func() ([]byte, error) {
				return ja.SuccessPage("A111", "T111")
			},
			want: []string{
				`<meta http-equiv="refresh" content="0; URL=slack://app?team=T111&amp;id=A111">`,
				`<a href="slack://app?team=T111&amp;id=A111">こちら</a>`,
				"インストールありがとうございます！",
			},
		},
		{
			name: "success_without_team",
			render: func() ([]byte, error) {
				return en.SuccessPage("A111", "")
			},
			want: []string{
				`<a href="slack://open">here</a>`,
			},
		},
		{
			name: "failure",
			render: func() ([]byte, error) {
				return ja.FailurePage("/slack/install", "invalid_state")
			},
			want: []string{
				`<a href="/slack/install">こちら</a>`,
				"(エラー: invalid_state)",
			},
		},
		{
			name: "failure_with_html_in_reason",
			render: func() ([]byte, error) {
				return en.FailurePage("/slack/install", "<script>")
			},
			want: []string{
				"(error: &lt;script&gt;)",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.render()
			if err != nil {
				t.Fatalf("render error = %v", err)
			}
			for _, want := range tt.want {
				if !strings.Contains(string(got), want) {
					t.Errorf("page doesn't contain %q:\n%s", want, got)
				}
			}
		})
	}
}
