// Package bot drives a maintenance run: it reads the run configuration from
// the bot's user page, walks the game category, and dispatches the enabled
// checks page by page.
package bot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"

	"github.com/silasary/apwikibot/internal/checks"
	"github.com/silasary/apwikibot/internal/config"
	"github.com/silasary/apwikibot/internal/wiki"
	"github.com/silasary/apwikibot/internal/wikitext"
)

// PageSource enumerates the pages a run covers.
type PageSource interface {
	CategoryMembers(ctx context.Context, category string) ([]wiki.Member, error)
}

type Options struct {
	// Account is the logged-in bot account; its user page holds the run
	// configuration.
	Account string

	// Category scopes the run.
	Category string

	// Page, when set, restricts the run to that single page.
	Page string
}

type Runner struct {
	store   checks.PageStore
	source  PageSource
	checker *checks.Checker
	notes   *checks.NoteBudget
	log     *slog.Logger
	opts    Options
}

func NewRunner(store checks.PageStore, source PageSource, catalog checks.Catalog, log *slog.Logger, opts Options) *Runner {
	notes := &checks.NoteBudget{}
	return &Runner{
		store:   store,
		source:  source,
		checker: checks.NewChecker(store, catalog, notes, log),
		notes:   notes,
		log:     log,
		opts:    opts,
	}
}

// Run executes one full pass. The run configuration is fetched first; an
// inactive configuration ends the run before any page is touched.
func (r *Runner) Run(ctx context.Context) error {
	configPage := "User:" + r.opts.Account
	page, err := r.store.Page(ctx, configPage)
	if err != nil {
		return fmt.Errorf("run configuration: %w", err)
	}
	flags, raw := config.ParseRunFlags(page.Content)
	keys := make([]string, 0, len(raw))
	for key := range raw {
		keys = append(keys, key)
	}
	slices.Sort(keys)
	for _, key := range keys {
		r.log.Info("run flag", "key", key, "value", raw[key])
	}
	if !flags.Active {
		r.log.Info("bot disabled by configuration page", "page", configPage)
		return nil
	}
	if !flags.PromptForIGDBOnTalkPage {
		// Pre-spending the budget suppresses talk page notes for the run.
		r.notes.Spend()
	}

	if r.opts.Page != "" {
		r.processPage(ctx, r.opts.Page, flags)
		return nil
	}

	members, err := r.source.CategoryMembers(ctx, r.opts.Category)
	if err != nil {
		return fmt.Errorf("enumerate %s: %w", r.opts.Category, err)
	}
	r.log.Info("category enumerated", "category", r.opts.Category, "pages", len(members))

	for _, m := range members {
		if err := ctx.Err(); err != nil {
			return err
		}
		if m.Namespace != 0 {
			r.log.Info("skipping non-article category member", "page", m.Title, "namespace", m.Namespace)
			continue
		}
		r.processPage(ctx, m.Title, flags)
	}
	return nil
}

// processPage runs every enabled check against one page. A failed check is
// logged and the rest still run, except that a page that won't parse is
// abandoned entirely.
func (r *Runner) processPage(ctx context.Context, title string, flags config.RunFlags) {
	boxart := func(ctx context.Context, title string) error {
		_, err := r.checker.UploadBoxArt(ctx, title)
		return err
	}
	steps := []struct {
		name    string
		enabled bool
		run     func(context.Context, string) error
	}{
		{"rearrange-templates", flags.RearrangeTemplates, r.checker.RearrangeTemplates},
		{"upload-box-art", flags.UploadBoxArt, boxart},
		{"supported-navbox", flags.CheckSupportedNavbox, r.checker.SupportedNavbox},
		{"franchise-navbox", flags.CheckFranchiseNavbox, r.checker.FranchiseNavbox},
	}
	for _, step := range steps {
		if !step.enabled {
			continue
		}
		if err := step.run(ctx, title); err != nil {
			r.log.Error("check failed", "page", title, "check", step.name, "error", err)
			if errors.Is(err, wikitext.ErrParse) {
				// The page won't parse for any other check either.
				return
			}
		}
	}
}
