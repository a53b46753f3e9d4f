package checks

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/silasary/apwikibot/internal/igdb"
	"github.com/silasary/apwikibot/internal/wiki"
)

type editRecord struct {
	Title   string
	Content string
	Opts    wiki.EditOptions
}

type sectionRecord struct {
	Title   string
	Heading string
	Text    string
}

type uploadRecord struct {
	Filename string
	Comment  string
	Bytes    int
}

// fakeStore is an in-memory PageStore. redirects maps a requested title to
// the canonical title it resolves to.
type fakeStore struct {
	pages     map[string]string
	redirects map[string]string

	fetches  []string
	edits    []editRecord
	sections []sectionRecord
	uploads  []uploadRecord
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		pages:     map[string]string{},
		redirects: map[string]string{},
	}
}

func (s *fakeStore) Page(_ context.Context, title string) (*wiki.Page, error) {
	s.fetches = append(s.fetches, title)
	canonical := title
	if t, ok := s.redirects[title]; ok {
		canonical = t
	}
	content, ok := s.pages[canonical]
	return &wiki.Page{Title: canonical, Content: content, Exists: ok}, nil
}

func (s *fakeStore) Edit(_ context.Context, title, content string, opts wiki.EditOptions) error {
	s.edits = append(s.edits, editRecord{Title: title, Content: content, Opts: opts})
	s.pages[title] = content
	return nil
}

func (s *fakeStore) NewSection(_ context.Context, title, heading, text string) error {
	s.sections = append(s.sections, sectionRecord{Title: title, Heading: heading, Text: text})
	s.pages[title] += "\n== " + heading + " ==\n" + text
	return nil
}

func (s *fakeStore) Upload(_ context.Context, filename string, data io.Reader, comment string) error {
	b, err := io.ReadAll(data)
	if err != nil {
		return err
	}
	s.uploads = append(s.uploads, uploadRecord{Filename: filename, Comment: comment, Bytes: len(b)})
	return nil
}

// fetchCount returns how many times a title was fetched.
func (s *fakeStore) fetchCount(title string) int {
	n := 0
	for _, f := range s.fetches {
		if f == title {
			n++
		}
	}
	return n
}

// fakeCatalog is an in-memory Catalog. Games responses are consumed from a
// queue, one per query; covers and platforms are looked up by the id inside
// the query expression.
type fakeCatalog struct {
	gamesQueue []gamesResult
	covers     map[int64]igdb.Cover
	platforms  map[int64]string

	queries       []string
	platformCalls int
	imageURLs     []string
}

type gamesResult struct {
	games []igdb.Game
	err   error
}

func newFakeCatalog() *fakeCatalog {
	return &fakeCatalog{
		covers:    map[int64]igdb.Cover{},
		platforms: map[int64]string{},
	}
}

func (f *fakeCatalog) Games(_ context.Context, query string) ([]igdb.Game, error) {
	f.queries = append(f.queries, query)
	if len(f.gamesQueue) == 0 {
		return nil, nil
	}
	r := f.gamesQueue[0]
	f.gamesQueue = f.gamesQueue[1:]
	return r.games, r.err
}

func (f *fakeCatalog) Covers(_ context.Context, query string) ([]igdb.Cover, error) {
	f.queries = append(f.queries, query)
	for id, c := range f.covers {
		if strings.Contains(query, fmt.Sprintf("id = %d", id)) {
			return []igdb.Cover{c}, nil
		}
	}
	return nil, nil
}

func (f *fakeCatalog) Platforms(_ context.Context, query string) ([]igdb.Platform, error) {
	f.platformCalls++
	for id, name := range f.platforms {
		if strings.Contains(query, fmt.Sprintf("id = %d", id)) {
			return []igdb.Platform{{ID: id, Name: name}}, nil
		}
	}
	return nil, nil
}

func (f *fakeCatalog) Image(_ context.Context, url string) (io.ReadCloser, error) {
	f.imageURLs = append(f.imageURLs, url)
	return io.NopCloser(strings.NewReader("png bytes")), nil
}

func newTestChecker(store *fakeStore, catalog *fakeCatalog) *Checker {
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewChecker(store, catalog, &NoteBudget{}, log)
}
