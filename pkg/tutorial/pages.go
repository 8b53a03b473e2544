package tutorial

import (
	"bytes"
	"fmt"
	"html/template"
	"net/url"
)

const pageStyle = `<style>
body {
  padding: 10px 15px;
  font-family: verdana;
  text-align: center;
}
</style>`

var pages = template.Must(template.New("pages").Parse(`
{{define "install"}}<!DOCTYPE html>
<html lang="{{.Lang}}">
<head>
<meta charset="utf-8">
<title>{{.Title}}</title>
` + pageStyle + `
</head>
<body>
<h2>{{.Heading}}</h2>
<p>{{.Body}}</p>
<a href="{{.URL}}"><img alt="Add to Slack" height="40" width="139" src="https://platform.slack-edge.com/img/add_to_slack.png" srcset="https://platform.slack-edge.com/img/add_to_slack.png 1x, https://platform.slack-edge.com/img/add_to_slack@2x.png 2x"></a>
</body>
</html>
{{end}}

{{define "success"}}<!DOCTYPE html>
<html lang="{{.Lang}}">
<head>
<meta charset="utf-8">
<meta http-equiv="refresh" content="0; URL={{.URL}}">
<title>{{.Title}}</title>
` + pageStyle + `
</head>
<body>
<h2>{{.Heading}}</h2>
<p>{{.Before}}<a href="{{.URL}}">{{.Link}}</a>{{.After}}</p>
</body>
</html>
{{end}}

{{define "failure"}}<!DOCTYPE html>
<html lang="{{.Lang}}">
<head>
<meta charset="utf-8">
<title>{{.Title}}</title>
` + pageStyle + `
</head>
<body>
<h2>{{.Heading}}</h2>
<p><a href="{{.URL}}">{{.Link}}</a>{{.After}} {{.Reason}}</p>
</body>
</html>
{{end}}
`))

type pageData struct {
	Lang    string
	Title   string
	Heading string
	Body    string
	URL     any
	Before  string
	Link    string
	After   string
	Reason  string
}

// InstallPage renders the "Add to Slack" page, which links to Slack's authorization URL.
func (c *Catalog) InstallPage(authorizeURL string) ([]byte, error) {
	return render("install", pageData{
		Lang:    c.tag.String(),
		Title:   c.Text("html.install_title"),
		Heading: c.Text("html.install_heading"),
		Body:    c.Text("html.install_body"),
		URL:     authorizeURL,
	})
}

// SuccessPage renders the page shown after a successful installation, which redirects
// to the app in the Slack client. Without a team ID (e.g. Enterprise Grid org-wide
// installations), it just opens the Slack client.
func (c *Catalog) SuccessPage(appID, teamID string) ([]byte, error) {
	return render("success", pageData{
		Lang:    c.tag.String(),
		Title:   c.Text("html.success_title"),
		Heading: c.Text("html.success_heading"),
		URL:     template.URL(SlackAppURL(appID, teamID)), //nolint:gosec // Deep link with URL-escaped Slack IDs.
		Before:  c.Text("html.success_before"),
		Link:    c.Text("html.success_link"),
		After:   c.Text("html.success_after"),
	})
}

// FailurePage renders the page shown after a failed installation, with a link to try again.
func (c *Catalog) FailurePage(installPath, reason string) ([]byte, error) {
	return render("failure", pageData{
		Lang:    c.tag.String(),
		Title:   c.Text("html.failure_title"),
		Heading: c.Text("html.failure_heading"),
		URL:     installPath,
		Link:    c.Text("html.failure_link"),
		After:   c.Text("html.failure_after"),
		Reason:  c.Format("html.failure_reason", map[string]string{"Reason": reason}),
	})
}

// SlackAppURL returns a deep link to the app in the Slack client.
func SlackAppURL(appID, teamID string) string {
	if teamID == "" {
		return "slack://open"
	}
	return fmt.Sprintf("slack://app?team=%s&id=%s", url.QueryEscape(teamID), url.QueryEscape(appID))
}

func render(name string, data pageData) ([]byte, error) {
	buf := new(bytes.Buffer)
	if err := pages.ExecuteTemplate(buf, name, data); err != nil {
		return nil, fmt.Errorf("failed to render %s page: %w", name, err)
	}
	return buf.Bytes(), nil
}
