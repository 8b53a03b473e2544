package tutorial

import (
	"time"

	"github.com/slack-go/slack"
)

// DefaultTimeZone is used to display timestamps in the Home tab.
const DefaultTimeZone = "Asia/Tokyo"

const (
	tabsImageURL          = "https://user-images.githubusercontent.com/19658/96687397-c717c280-13ba-11eb-8f24-f306d4ffa588.png"
	shortcutsMenuImageURL = "https://user-images.githubusercontent.com/19658/96969620-a92e9700-154d-11eb-9fa0-97ee7644a82f.png"
	messageMenuImageURL   = "https://user-images.githubusercontent.com/19658/96974266-f44ba880-1553-11eb-94f0-b40408ee0731.gif"
)

// Content builds the Block Kit surfaces of the tutorial, in a single language.
type Content struct {
	catalog *Catalog
	loc     *time.Location
	now     func() time.Time
}

// NewContent returns a content builder. A nil location means [DefaultTimeZone],
// or UTC if that isn't available on the system.
func NewContent(c *Catalog, loc *time.Location) *Content {
	if loc == nil {
		var err error
		if loc, err = time.LoadLocation(DefaultTimeZone); err != nil {
			loc = time.UTC
		}
	}
	return &Content{catalog: c, loc: loc, now: time.Now}
}

// Catalog returns the messages that this builder uses.
func (c *Content) Catalog() *Catalog {
	return c.catalog
}

// Today returns the current date in the builder's time zone, as "YYYY-MM-DD".
func (c *Content) Today() string {
	return c.now().In(c.loc).Format(time.DateOnly)
}

// today returns the start of the current day in the builder's time zone.
func (c *Content) today() time.Time {
	y, m, d := c.now().In(c.loc).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, c.loc)
}

func (c *Content) text(key string) string {
	return c.catalog.Text(key)
}

func (c *Content) format(key string, data any) string {
	return c.catalog.Format(key, data)
}

func (c *Content) plain(key string) *slack.TextBlockObject {
	return plainText(c.text(key))
}

func plainText(s string) *slack.TextBlockObject {
	return slack.NewTextBlockObject(slack.PlainTextType, s, true, false)
}

func markdown(s string) *slack.TextBlockObject {
	return slack.NewTextBlockObject(slack.MarkdownType, s, false, false)
}

func header(s string) *slack.HeaderBlock {
	return slack.NewHeaderBlock(plainText(s))
}

func section(s string) *slack.SectionBlock {
	return slack.NewSectionBlock(markdown(s), nil, nil)
}

func image(url, title string) *slack.ImageBlock {
	return slack.NewImageBlock(url, title, "", plainText(title))
}
