package checks

import (
	"context"
	"fmt"
	"strings"

	"github.com/silasary/apwikibot/internal/wiki"
	"github.com/silasary/apwikibot/internal/wikitext"
)

// SupportedNavbox keeps the {{navbox supported}} block in sync with the
// infobox's ap-status: supported statuses require its presence, custom
// statuses its absence. Anything else is reported and left alone.
func (c *Checker) SupportedNavbox(ctx context.Context, title string) error {
	page, err := c.store.Page(ctx, title)
	if err != nil {
		return fmt.Errorf("supported navbox %s: %w", title, err)
	}
	if !page.Exists {
		c.log.Warn("page vanished", "page", title)
		return nil
	}
	doc, err := wikitext.Parse(page.Content)
	if err != nil {
		return fmt.Errorf("supported navbox %s: %w", title, err)
	}

	infobox := doc.FirstTemplate(infoboxName)
	if infobox == nil {
		c.log.Info("missing infobox", "page", title)
		return nil
	}
	status := infobox.Arg("ap-status")
	if status == nil {
		c.log.Info("missing ap-status", "page", title)
		return nil
	}

	switch value := strings.TrimSpace(status.Plain()); value {
	case "Core-verified", "Approved for Core":
		if strings.Contains(page.Content, supportedNavboxMarker) {
			return nil
		}
		err := c.store.Edit(ctx, title, page.Content+"\n"+supportedNavboxMarker, wiki.EditOptions{
			Summary: "Automated addition of Supported Navbox for Core-verified games.",
			Minor:   true,
			Bot:     true,
		})
		if err != nil {
			return fmt.Errorf("supported navbox %s: %w", title, err)
		}
		c.log.Info("added supported navbox", "page", title)
	case "Custom", "After Dark":
		if !strings.Contains(page.Content, supportedNavboxMarker) {
			return nil
		}
		err := c.store.Edit(ctx, title, strings.ReplaceAll(page.Content, supportedNavboxMarker, ""), wiki.EditOptions{
			Summary: "Automated removal of Supported Navbox for Custom games.",
			Minor:   true,
			Bot:     true,
		})
		if err != nil {
			return fmt.Errorf("supported navbox %s: %w", title, err)
		}
		c.log.Info("removed supported navbox", "page", title)
	default:
		c.log.Info("unrecognized ap-status", "page", title, "status", value)
	}
	return nil
}

// FranchiseNavbox appends the franchise page's navbox to any game that
// declares a {{Series|...}} in its infobox and doesn't carry it yet.
// Franchise page contents are memoized for the run.
func (c *Checker) FranchiseNavbox(ctx context.Context, title string) error {
	page, err := c.store.Page(ctx, title)
	if err != nil {
		return fmt.Errorf("franchise navbox %s: %w", title, err)
	}
	if !page.Exists {
		c.log.Warn("page vanished", "page", title)
		return nil
	}
	doc, err := wikitext.Parse(page.Content)
	if err != nil {
		return fmt.Errorf("franchise navbox %s: %w", title, err)
	}

	infobox := doc.FirstTemplate(infoboxName)
	if infobox == nil {
		c.log.Info("missing infobox", "page", title)
		return nil
	}
	var series *wikitext.Template
	for _, t := range infobox.Templates() {
		if t.Is("Series") {
			series = t
			break
		}
	}
	if series == nil {
		return nil
	}
	nameArg := series.ArgAt(1)
	if nameArg == nil {
		c.log.Info("series template missing name", "page", title)
		return nil
	}
	franchiseTitle := strings.TrimSpace(nameArg.Plain()) + " (series)"

	content, ok := c.franchises.Get(franchiseTitle)
	if !ok {
		franchisePage, err := c.store.Page(ctx, franchiseTitle)
		if err != nil {
			c.log.Warn("franchise fetch failed", "page", title, "franchise", franchiseTitle, "error", err)
			return nil
		}
		content = franchisePage.Content
		if !franchisePage.Exists {
			content = ""
		}
		c.franchises.Add(franchiseTitle, content)
	}
	if content == "" {
		c.log.Info("references non-existent franchise page", "page", title, "franchise", franchiseTitle)
		return nil
	}
	if !containsFold(content, "navbox") {
		return nil
	}

	franchiseDoc, err := wikitext.Parse(content)
	if err != nil {
		c.log.Warn("franchise parse failed", "franchise", franchiseTitle, "error", err)
		return nil
	}
	var navbox *wikitext.Template
	for _, t := range franchiseDoc.Templates() {
		if !t.IsMagic() && containsFold(t.Name(), "navbox") {
			navbox = t
			break
		}
	}
	if navbox == nil {
		return nil
	}
	if containsFold(page.Content, navbox.Raw()) {
		return nil
	}

	err = c.store.Edit(ctx, title, page.Content+"\n\n"+navbox.Raw(), wiki.EditOptions{
		Summary: "Added " + navbox.Name(),
		Bot:     true,
	})
	if err != nil {
		return fmt.Errorf("franchise navbox %s: %w", title, err)
	}
	c.log.Info("added franchise navbox", "page", title, "navbox", navbox.Name())
	return nil
}
