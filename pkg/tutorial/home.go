package tutorial

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/slack-go/slack"
)

// PageCount is the number of pages in the Home tab tutorial.
const PageCount = 6

// HomeView builds the Home tab for the given page number: the page's content, and
// a footer with a pager and the update time. Pages outside the range [1, PageCount]
// have no content, only a footer.
func (c *Content) HomeView(page int) slack.HomeTabViewRequest {
	blocks := c.pageBlocks(page)
	blocks = append(blocks,
		slack.NewDividerBlock(),
		c.PagerBlock(page),
		slack.NewDividerBlock(),
		slack.NewContextBlock("", plainText(c.format("home.last_updated", map[string]string{
			"Time": c.now().In(c.loc).Format(time.DateTime),
		}))),
	)

	return slack.HomeTabViewRequest{
		Type:   slack.VTHomeTab,
		Blocks: slack.Blocks{BlockSet: blocks},
	}
}

// PagerBlock builds the navigation buttons at the bottom of a Home tab page.
// The value of each button is the page number it leads to.
func (c *Content) PagerBlock(page int) *slack.ActionBlock {
	switch {
	case page <= 1:
		return slack.NewActionBlock("", c.pagerButton("pager.next", 2))
	case page >= PageCount:
		first := slack.NewButtonBlockElement(PageTransitionActionID+"0", "1", c.plain("pager.first"))
		return slack.NewActionBlock("", c.pagerButton("pager.prev", page-1), first)
	default:
		return slack.NewActionBlock("", c.pagerButton("pager.prev", page-1), c.pagerButton("pager.next", page+1))
	}
}

func (c *Content) pagerButton(key string, page int) *slack.ButtonBlockElement {
	p := strconv.Itoa(page)
	return slack.NewButtonBlockElement(PageTransitionActionID+p, p, c.plain(key))
}

func (c *Content) pageBlocks(page int) []slack.Block {
	switch page {
	case 1:
		return c.page1()
	case 2:
		return c.page2()
	case 3:
		return c.page3()
	case 4:
		return c.page4()
	case 5:
		return c.page5()
	case 6:
		return c.page6()
	default:
		return nil
	}
}

func (c *Content) page1() []slack.Block {
	buttons := []slack.BlockElement{}
	for n := 3; n > 0; n-- {
		id := fmt.Sprintf("%s%d", StarButtonActionID, n)
		buttons = append(buttons, slack.NewButtonBlockElement(id, strconv.Itoa(n), plainText(strings.Repeat(":star:", n))))
	}
	users := slack.NewOptionsSelectBlockElement(slack.OptTypeUser, c.plain("common.select_user"), UsersSelectActionID)

	return []slack.Block{
		header(c.text("page1.header")),
		section(c.text("page1.intro")),
		section(c.text("page1.blocks")),
		slack.NewActionBlock("", append(buttons, users)...),
		slack.NewDividerBlock(),
		section(c.text("page1.events")),
	}
}

func (c *Content) page2() []slack.Block {
	button := slack.NewButtonBlockElement(TaskModalActionID, "3", c.plain("page2.button")).WithStyle(slack.StylePrimary)

	return []slack.Block{
		header(c.text("page2.header")),
		section(c.text("page2.intro")),
		slack.NewActionBlock("", button),
		section(c.text("page2.validation")),
		section(c.format("page2.builder", map[string]string{"ModalJSON": c.taskModalJSON()})),
		section(c.text("page2.more")),
	}
}

// taskModalJSON renders the task modal for Block Kit Builder.
func (c *Content) taskModalJSON() string {
	b, err := json.Marshal(c.TaskModal())
	if err != nil {
		return "{}"
	}
	return string(b)
}

func (c *Content) page3() []slack.Block {
	minQueryLength := 0
	sel := slack.NewOptionsSelectBlockElement(slack.OptTypeExternal, c.plain("page3.select_placeholder"), ExternalSelectActionID)
	sel.MinQueryLength = &minQueryLength

	return []slack.Block{
		header(c.text("page3.header")),
		section(c.text("page3.intro")),
		slack.NewActionBlock("", sel),
		section(c.text("page3.code")),
	}
}

func (c *Content) page4() []slack.Block {
	button := slack.NewButtonBlockElement(CreateChannelActionID, "clicked", c.plain("page4.button")).WithStyle(slack.StylePrimary)

	return []slack.Block{
		header(c.text("page4.header")),
		section(c.text("page4.intro")),
		slack.NewActionBlock("", button),
		section(c.text("page4.explanation")),
		slack.NewDividerBlock(),
		section(c.text("page4.shortcuts")),
	}
}

func (c *Content) page5() []slack.Block {
	return []slack.Block{
		header(c.text("page5.header")),
		section(c.text("page5.body")),
		slack.NewDividerBlock(),
		section(c.text("page5.sandbox")),
	}
}

func (c *Content) page6() []slack.Block {
	return []slack.Block{
		header(c.text("page6.header")),
		section(c.text("page6.body")),
	}
}
