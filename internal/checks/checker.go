// Package checks implements the per-page maintenance checks: template
// rearrangement, box art matching against the IGDB catalog, and navbox
// synchronization.
package checks

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/silasary/apwikibot/internal/igdb"
	"github.com/silasary/apwikibot/internal/wiki"
)

// Template and marker names recognized by the checks.
const (
	infoboxName   = "Infobox game"
	noTrackerName = "NoTracker"
	stubName      = "Game stub"

	// stub-marker templates never get renamed and stand in for a missing
	// {{Game stub}}.
	stubAlias = "asbox"

	supportedNavboxMarker = "{{navbox supported}}"
	disambigHeading       = "IGDB disambiguation required"
)

// PageStore is the document-store surface the checks write through.
type PageStore interface {
	Page(ctx context.Context, title string) (*wiki.Page, error)
	Edit(ctx context.Context, title, content string, opts wiki.EditOptions) error
	NewSection(ctx context.Context, title, heading, text string) error
	Upload(ctx context.Context, filename string, data io.Reader, comment string) error
}

// Catalog is the external game-catalog surface.
type Catalog interface {
	Games(ctx context.Context, query string) ([]igdb.Game, error)
	Covers(ctx context.Context, query string) ([]igdb.Cover, error)
	Platforms(ctx context.Context, query string) ([]igdb.Platform, error)
	Image(ctx context.Context, url string) (io.ReadCloser, error)
}

// Action is the outcome of the box art check for one page.
type Action int

const (
	ActionNone Action = iota
	ActionCommitted
	ActionDisambiguation
)

func (a Action) String() string {
	switch a {
	case ActionCommitted:
		return "committed"
	case ActionDisambiguation:
		return "disambiguation"
	default:
		return "none"
	}
}

// NoteBudget bounds how many disambiguation notes one run may post. Talk
// page notes are loud and unanswered ones pile up, so the first posted note
// closes the budget for the rest of the run.
type NoteBudget struct {
	mu    sync.Mutex
	spent bool
}

// Available reports whether a note may still be posted.
func (b *NoteBudget) Available() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return !b.spent
}

// Spend marks the run's note as posted.
func (b *NoteBudget) Spend() {
	b.mu.Lock()
	b.spent = true
	b.mu.Unlock()
}

// Checker runs the maintenance checks against one wiki. The caches live for
// one run and are safe for concurrent use.
type Checker struct {
	store   PageStore
	catalog Catalog
	notes   *NoteBudget
	log     *slog.Logger

	redirects  *lru.Cache[string, string]
	platforms  *lru.Cache[int64, string]
	franchises *lru.Cache[string, string]
}

func NewChecker(store PageStore, catalog Catalog, notes *NoteBudget, log *slog.Logger) *Checker {
	// Capacities sit far above the corpus size; entries are memos of
	// re-fetchable lookups, so eviction would cost a request, not
	// correctness.
	redirects, _ := lru.New[string, string](4096)
	platforms, _ := lru.New[int64, string](1024)
	franchises, _ := lru.New[string, string](512)
	return &Checker{
		store:      store,
		catalog:    catalog,
		notes:      notes,
		log:        log,
		redirects:  redirects,
		platforms:  platforms,
		franchises: franchises,
	}
}

// resolveTemplate maps a raw template name to its canonical name by
// following the redirect of its Template page. Each unique raw name is
// looked up at most once per run. A failed lookup falls back to the raw
// name with any namespace prefix stripped.
func (c *Checker) resolveTemplate(ctx context.Context, name string) string {
	if cached, ok := c.redirects.Get(name); ok {
		return cached
	}
	canonical := stripNamespace(name)
	page, err := c.store.Page(ctx, "Template:"+name)
	if err != nil {
		c.log.Warn("template lookup failed", "template", name, "error", err)
	} else if page.Title != "" {
		canonical = strings.TrimPrefix(page.Title, "Template:")
	}
	c.redirects.Add(name, canonical)
	return canonical
}

func stripNamespace(name string) string {
	if i := strings.IndexByte(name, ':'); i >= 0 {
		return name[i+1:]
	}
	return name
}

func containsFold(haystack, needle string) bool {
	return strings.Contains(strings.ToLower(haystack), strings.ToLower(needle))
}
