package checks

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/silasary/apwikibot/internal/wikitext"
)

func TestRearrangeMovesNoTrackerAheadOfInfobox(t *testing.T) {
	store := newFakeStore()
	store.pages["Clique"] = "{{Infobox game|name=Clique}}\n{{NoTracker}}\nIntro text.\n"
	c := newTestChecker(store, newFakeCatalog())

	require.NoError(t, c.RearrangeTemplates(context.Background(), "Clique"))

	require.Len(t, store.edits, 1)
	edit := store.edits[0]
	assert.Equal(t, "{{NoTracker}}\n{{Infobox game|name=Clique}}\nIntro text.\n", edit.Content)
	assert.Equal(t, "Automated cleanup of templates.", edit.Opts.Summary)
	assert.True(t, edit.Opts.Minor)
	assert.True(t, edit.Opts.Bot)

	// A second pass over the rewritten page changes nothing.
	require.NoError(t, c.RearrangeTemplates(context.Background(), "Clique"))
	assert.Len(t, store.edits, 1)
}

func TestRearrangeLeavesOrderedMarkersAlone(t *testing.T) {
	store := newFakeStore()
	store.pages["Clique"] = "{{NoTracker}}\nText\n{{Infobox game|name=Clique}}"
	c := newTestChecker(store, newFakeCatalog())

	require.NoError(t, c.RearrangeTemplates(context.Background(), "Clique"))
	assert.Empty(t, store.edits)
}

func TestRearrangeMovesStubMarkerToHeaderEnd(t *testing.T) {
	store := newFakeStore()
	store.pages["Clique"] = "{{Asbox}}\nIntro.\n{{Infobox game|name=Clique}}\nMore.\n== History ==\nBody.\n"
	c := newTestChecker(store, newFakeCatalog())

	require.NoError(t, c.RearrangeTemplates(context.Background(), "Clique"))

	require.Len(t, store.edits, 1)
	assert.Equal(t,
		"\nIntro.\n{{Infobox game|name=Clique}}\nMore.\n{{Asbox}}\n== History ==\nBody.\n",
		store.edits[0].Content)
}

func TestRearrangeRenamesEveryOccurrenceOfARedirectedName(t *testing.T) {
	store := newFakeStore()
	store.pages["Clique"] = "{{GameStub}}\nIntro.\n{{GameStub}}\nSee {{GameStubSuffix}}.\n"
	store.redirects["Template:GameStub"] = "Template:Game stub"
	store.pages["Template:Game stub"] = "stub marker"
	c := newTestChecker(store, newFakeCatalog())

	require.NoError(t, c.RearrangeTemplates(context.Background(), "Clique"))

	require.Len(t, store.edits, 1)
	assert.Equal(t,
		"{{Game stub}}\nIntro.\n{{Game stub}}\nSee {{GameStubSuffix}}.\n",
		store.edits[0].Content)
	// One lookup per unique raw name, never per occurrence.
	assert.Equal(t, 1, store.fetchCount("Template:GameStub"))
	assert.Equal(t, 1, store.fetchCount("Template:GameStubSuffix"))
}

func TestRearrangeCanonicalizesInfoboxCasing(t *testing.T) {
	store := newFakeStore()
	store.pages["Clique"] = "{{Infobox Game|name=Clique}}\nText.\n"
	store.redirects["Template:Infobox Game"] = "Template:Infobox game"
	store.pages["Template:Infobox game"] = "infobox"
	c := newTestChecker(store, newFakeCatalog())

	require.NoError(t, c.RearrangeTemplates(context.Background(), "Clique"))

	require.Len(t, store.edits, 1)
	assert.Equal(t, "{{Infobox game|name=Clique}}\nText.\n", store.edits[0].Content)
}

func TestRearrangeCollapsesBlankLinesInHeaderOnly(t *testing.T) {
	store := newFakeStore()
	store.pages["Clique"] = "Intro.\n\n\n\nMore text.\n== History ==\nA.\n\n\nB.\n"
	c := newTestChecker(store, newFakeCatalog())

	require.NoError(t, c.RearrangeTemplates(context.Background(), "Clique"))

	require.Len(t, store.edits, 1)
	assert.Equal(t, "Intro.\nMore text.\n== History ==\nA.\n\n\nB.\n", store.edits[0].Content)
}

func TestRearrangeSkipsUnchangedPages(t *testing.T) {
	store := newFakeStore()
	store.pages["Clique"] = "{{NoTracker}}\n{{Infobox game|name=Clique}}\nIntro.\n"
	c := newTestChecker(store, newFakeCatalog())

	require.NoError(t, c.RearrangeTemplates(context.Background(), "Clique"))
	assert.Empty(t, store.edits)
}

func TestRearrangeReportsParseFailures(t *testing.T) {
	store := newFakeStore()
	store.pages["Clique"] = "{{Broken"
	c := newTestChecker(store, newFakeCatalog())

	err := c.RearrangeTemplates(context.Background(), "Clique")
	require.ErrorIs(t, err, wikitext.ErrParse)
	assert.Empty(t, store.edits)
}

func TestRearrangeIgnoresMissingPages(t *testing.T) {
	store := newFakeStore()
	c := newTestChecker(store, newFakeCatalog())

	require.NoError(t, c.RearrangeTemplates(context.Background(), "Gone"))
	assert.Empty(t, store.edits)
}
