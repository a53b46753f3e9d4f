package checks

import (
	"context"
	"fmt"
	"path"
	"slices"
	"strconv"
	"strings"

	"github.com/silasary/apwikibot/internal/igdb"
	"github.com/silasary/apwikibot/internal/wiki"
	"github.com/silasary/apwikibot/internal/wikitext"
)

// UploadBoxArt matches a page without box art against the catalog. An
// unambiguous match gets its cover uploaded and wired into the infobox; an
// ambiguous or empty result is routed to a talk-page disambiguation note,
// budget permitting. Catalog failures skip the check for this page only.
func (c *Checker) UploadBoxArt(ctx context.Context, title string) (Action, error) {
	page, err := c.store.Page(ctx, title)
	if err != nil {
		return ActionNone, fmt.Errorf("box art %s: %w", title, err)
	}
	if !page.Exists {
		c.log.Warn("page vanished", "page", title)
		return ActionNone, nil
	}
	doc, err := wikitext.Parse(page.Content)
	if err != nil {
		return ActionNone, fmt.Errorf("box art %s: %w", title, err)
	}

	infobox := doc.FirstTemplate(infoboxName)
	if infobox == nil {
		return ActionNone, nil
	}
	if infobox.Arg("boxart") != nil {
		return ActionNone, nil
	}
	c.log.Info("missing box art", "page", title)

	games, err := c.lookupGames(ctx, title, infobox)
	if err != nil {
		c.log.Warn("catalog query failed", "page", title, "error", err)
		return ActionNone, nil
	}

	if len(games) > 1 {
		if hint := platformHint(infobox); hint != "" {
			c.log.Info("filtering catalog candidates by platform", "page", title, "platform", hint)
			filtered, err := c.filterByPlatform(ctx, games, hint)
			if err != nil {
				c.log.Warn("platform filter failed", "page", title, "error", err)
				return ActionNone, nil
			}
			// Only a unique survivor settles the match; anything else
			// sends the full candidate list to a human.
			if len(filtered) == 1 {
				games = filtered
			}
		}
	}

	if len(games) == 1 {
		return c.commitBoxArt(ctx, page, infobox, games[0])
	}
	return c.requestDisambiguation(ctx, title, games)
}

// lookupGames queries by explicit catalog id when the infobox carries one,
// otherwise by exact title. Either query coming back empty falls through to
// a fuzzy search, so a stale explicit id still matches by title.
func (c *Checker) lookupGames(ctx context.Context, title string, infobox *wikitext.Template) ([]igdb.Game, error) {
	games, err := c.lookupExact(ctx, title, infobox)
	if err != nil {
		return nil, err
	}
	if len(games) == 0 {
		return c.catalog.Games(ctx, igdb.GameFields+"search "+igdb.Quote(title)+";")
	}
	return games, nil
}

func (c *Checker) lookupExact(ctx context.Context, title string, infobox *wikitext.Template) ([]igdb.Game, error) {
	if arg := infobox.Arg("igdbid"); arg != nil {
		if id, err := strconv.ParseInt(strings.TrimSpace(arg.Value), 10, 64); err == nil {
			return c.catalog.Games(ctx, fmt.Sprintf("%swhere id = %d;", igdb.GameFields, id))
		}
	}
	return c.catalog.Games(ctx, igdb.GameFields+"where name = "+igdb.Quote(title)+";")
}

// platformHint extracts the declared platform from the infobox. A platform
// argument whose plain text is empty usually wraps a platform template, in
// which case its second (or first) positional argument carries the value.
// The bare "PC" alias maps to the catalog's fuller label.
func platformHint(infobox *wikitext.Template) string {
	arg := infobox.Arg("platform")
	if arg == nil {
		return ""
	}
	hint := strings.TrimSpace(arg.Plain())
	if hint == "" {
		if nested := arg.Templates(); len(nested) > 0 {
			if v := nested[0].ArgAt(2); v != nil {
				hint = strings.TrimSpace(v.Plain())
			}
			if hint == "" {
				if v := nested[0].ArgAt(1); v != nil {
					hint = strings.TrimSpace(v.Plain())
				}
			}
		}
	}
	if hint == "PC" {
		hint = "PC (Microsoft Windows)"
	}
	return hint
}

func (c *Checker) filterByPlatform(ctx context.Context, games []igdb.Game, hint string) ([]igdb.Game, error) {
	var filtered []igdb.Game
	for _, g := range games {
		names, err := c.platformNames(ctx, g.Platforms)
		if err != nil {
			return nil, err
		}
		if slices.Contains(names, hint) {
			filtered = append(filtered, g)
		}
	}
	return filtered, nil
}

// commitBoxArt uploads the match's cover at full size and points the
// infobox at the uploaded file.
func (c *Checker) commitBoxArt(ctx context.Context, page *wiki.Page, infobox *wikitext.Template, game igdb.Game) (Action, error) {
	c.log.Info("matched catalog entry", "page", page.Title, "slug", game.Slug, "id", game.ID)
	if game.Cover == 0 {
		c.log.Info("catalog entry has no cover", "page", page.Title, "id", game.ID)
		return ActionNone, nil
	}
	covers, err := c.catalog.Covers(ctx, fmt.Sprintf("fields id,url; where id = %d;", game.Cover))
	if err != nil {
		c.log.Warn("cover query failed", "page", page.Title, "error", err)
		return ActionNone, nil
	}
	if len(covers) == 0 || covers[0].URL == "" {
		c.log.Info("cover record missing url", "page", page.Title, "cover", game.Cover)
		return ActionNone, nil
	}

	url := strings.ReplaceAll(covers[0].URL, "t_thumb", "t_cover_big")
	url = strings.ReplaceAll(url, ".jpg", ".png")
	filename := "File:" + strings.ReplaceAll(page.Title, ":", "") + " Cover" + path.Ext(url)

	img, err := c.catalog.Image(ctx, url)
	if err != nil {
		c.log.Warn("cover download failed", "page", page.Title, "url", url, "error", err)
		return ActionNone, nil
	}
	defer img.Close()
	if err := c.store.Upload(ctx, filename, img, "Uploading box art from IGDB"); err != nil {
		c.log.Warn("cover upload failed", "page", page.Title, "error", err)
		return ActionNone, nil
	}

	newContent := strings.Replace(page.Content, infobox.Raw(), infobox.WithArg("boxart", "["+filename+"]"), 1)
	if newContent == page.Content {
		return ActionNone, nil
	}
	err = c.store.Edit(ctx, page.Title, newContent, wiki.EditOptions{
		Summary: "Automated addition of box art from IGDB.",
		Minor:   true,
		Bot:     true,
	})
	if err != nil {
		return ActionNone, fmt.Errorf("set box art on %s: %w", page.Title, err)
	}
	c.log.Info("added box art", "page", page.Title, "slug", game.Slug)
	return ActionCommitted, nil
}

// requestDisambiguation posts the candidate list to the page's talk page,
// at most once per page and once per run.
func (c *Checker) requestDisambiguation(ctx context.Context, title string, games []igdb.Game) (Action, error) {
	c.log.Info("catalog match needs disambiguation", "page", title, "candidates", len(games))

	talkTitle := "Talk:" + title
	talk, err := c.store.Page(ctx, talkTitle)
	if err != nil {
		c.log.Warn("talk page fetch failed", "page", title, "error", err)
		return ActionDisambiguation, nil
	}
	if talk.Exists && strings.Contains(talk.Content, disambigHeading) {
		return ActionDisambiguation, nil
	}
	if !c.notes.Available() {
		return ActionDisambiguation, nil
	}

	var sb strings.Builder
	sb.WriteString("AP Wiki Bot was unable to automatically determine which game this page is about. Please add an <code>igdbid=</code> with the appropriate ID to the game's infobox.\n\n")
	for _, g := range games {
		names, err := c.platformNames(ctx, g.Platforms)
		if err != nil {
			c.log.Warn("platform lookup failed", "page", title, "error", err)
		}
		fmt.Fprintf(&sb, "* %s (%s) for %s: <code>igdbid=%d</code> (%s)\n",
			g.Name, g.ReleaseDate(), strings.Join(names, ", "), g.ID, g.URL)
	}
	sb.WriteString("\n~~~~")

	if err := c.store.NewSection(ctx, talkTitle, disambigHeading, sb.String()); err != nil {
		return ActionDisambiguation, fmt.Errorf("disambiguation note on %s: %w", talkTitle, err)
	}
	c.notes.Spend()
	c.log.Info("posted disambiguation note", "page", title)
	return ActionDisambiguation, nil
}
