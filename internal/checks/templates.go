package checks

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/silasary/apwikibot/internal/wiki"
	"github.com/silasary/apwikibot/internal/wikitext"
)

// RearrangeTemplates canonicalizes template names and enforces the marker
// layout around the infobox: {{NoTracker}} belongs at the top of the header
// block, stub markers at its bottom, and blank-line runs inside the header
// collapse to single newlines. The page is written only when the resulting
// text differs byte-for-byte from the current revision.
func (c *Checker) RearrangeTemplates(ctx context.Context, title string) error {
	page, err := c.store.Page(ctx, title)
	if err != nil {
		return fmt.Errorf("rearrange %s: %w", title, err)
	}
	if !page.Exists {
		c.log.Warn("page vanished", "page", title)
		return nil
	}

	doc, err := wikitext.Parse(page.Content)
	if err != nil {
		return fmt.Errorf("rearrange %s: %w", title, err)
	}

	infobox := doc.FirstTemplate(infoboxName)
	if infobox == nil {
		c.log.Info("missing infobox", "page", title)
	}

	text := page.Content

	// Marker moves, as span-accurate edits against the original text.
	// Both rules need the infobox as an anchor and a header block to land
	// in; lacking either, they are no-ops.
	if hdr, ok := doc.HeaderBlock(); ok && infobox != nil {
		var edits []splice
		if notracker := doc.FirstTemplate(noTrackerName); notracker != nil && infobox.Pos() < notracker.Pos() {
			c.log.Info("NoTracker was after infobox", "page", title)
			s, e := notracker.Span()
			edits = append(edits,
				splice{0, 0, notracker.Raw() + "\n"},
				splice{s, e, ""},
			)
		}
		stub := doc.FirstTemplate(stubName)
		if stub == nil {
			stub = doc.FirstTemplate(stubAlias)
		}
		if stub != nil && infobox.Pos() > stub.Pos() {
			c.log.Info("infobox was after stub marker", "page", title)
			s, e := stub.Span()
			edits = append(edits,
				splice{s, e, ""},
				splice{hdr.End, hdr.End, stub.Raw() + "\n"},
			)
		}
		text = applySplices(text, edits)
	}

	// Canonicalize names: one global rename per unique raw name. Done after
	// the moves so relocated markers are renamed consistently.
	renamed := map[string]bool{}
	for _, t := range doc.Templates() {
		if t.IsMagic() {
			continue
		}
		name := t.Name()
		if strings.EqualFold(name, stubAlias) || renamed[name] {
			continue
		}
		renamed[name] = true
		canonical := c.resolveTemplate(ctx, name)
		if !strings.EqualFold(canonical, name) {
			text = replaceTemplateName(text, name, canonical)
		}
	}
	if infobox != nil && infobox.Name() != infoboxName {
		text = replaceTemplateName(text, infobox.Name(), infoboxName)
	}

	// Collapse blank-line runs, scoped to the header block only.
	if end, ok := wikitext.HeaderSpan(text); ok {
		head := text[:end]
		for strings.Contains(head, "\n\n") {
			head = strings.ReplaceAll(head, "\n\n", "\n")
		}
		text = head + text[end:]
	}

	if text == page.Content {
		return nil
	}
	err = c.store.Edit(ctx, title, text, wiki.EditOptions{
		Summary: "Automated cleanup of templates.",
		Minor:   true,
		Bot:     true,
	})
	if err != nil {
		return fmt.Errorf("rearrange %s: %w", title, err)
	}
	c.log.Info("rearranged templates", "page", title)
	return nil
}

// splice replaces text[start:end] with its replacement; a zero-width span is
// an insertion.
type splice struct {
	start, end int
	text       string
}

func applySplices(s string, edits []splice) string {
	if len(edits) == 0 {
		return s
	}
	sort.SliceStable(edits, func(i, j int) bool {
		if edits[i].start != edits[j].start {
			return edits[i].start < edits[j].start
		}
		return edits[i].end < edits[j].end
	})
	var b strings.Builder
	pos := 0
	for _, e := range edits {
		if e.start < pos {
			// overlapping edits are dropped
			continue
		}
		b.WriteString(s[pos:e.start])
		b.WriteString(e.text)
		pos = e.end
	}
	b.WriteString(s[pos:])
	return b.String()
}

// replaceTemplateName rewrites every "{{from" opening token to "{{to". The
// name must end at a token boundary, so a template whose name merely starts
// with from is left alone.
func replaceTemplateName(text, from, to string) string {
	token := "{{" + from
	var b strings.Builder
	for {
		i := strings.Index(text, token)
		if i < 0 {
			b.WriteString(text)
			return b.String()
		}
		rest := i + len(token)
		b.WriteString(text[:i])
		if rest >= len(text) || isNameBoundary(text[rest]) {
			b.WriteString("{{")
			b.WriteString(to)
		} else {
			b.WriteString(token)
		}
		text = text[rest:]
	}
}

func isNameBoundary(c byte) bool {
	switch c {
	case '|', '}', '\n', ' ', '\t', ':':
		return true
	}
	return false
}
