package bot

import (
	"context"
	"io"
	"log/slog"

	"github.com/silasary/apwikibot/internal/checks"
	"github.com/silasary/apwikibot/internal/wiki"
)

// DryRunStore wraps a PageStore so reads pass through while every write is
// logged instead of issued.
type DryRunStore struct {
	checks.PageStore
	Log *slog.Logger
}

func (s *DryRunStore) Edit(_ context.Context, title, content string, opts wiki.EditOptions) error {
	s.Log.Info("dry run: would edit", "page", title, "summary", opts.Summary, "bytes", len(content))
	return nil
}

func (s *DryRunStore) NewSection(_ context.Context, title, heading, text string) error {
	s.Log.Info("dry run: would post section", "page", title, "heading", heading, "bytes", len(text))
	return nil
}

func (s *DryRunStore) Upload(_ context.Context, filename string, data io.Reader, comment string) error {
	n, err := io.Copy(io.Discard, data)
	if err != nil {
		return err
	}
	s.Log.Info("dry run: would upload", "file", filename, "bytes", n, "comment", comment)
	return nil
}
