package igdb

import (
	"strings"
	"time"
)

// GameFields is the field selection used by all game lookups.
const GameFields = "fields id,name,slug,url,cover,platforms,first_release_date; "

// Game is one catalog record from the games endpoint. Cover and Platforms
// are unexpanded reference ids.
type Game struct {
	ID               int64   `json:"id"`
	Name             string  `json:"name"`
	Slug             string  `json:"slug"`
	URL              string  `json:"url"`
	Cover            int64   `json:"cover"`
	Platforms        []int64 `json:"platforms"`
	FirstReleaseDate int64   `json:"first_release_date"`
}

// ReleaseDate renders the first release date as a calendar date, or empty
// when the catalog has none.
func (g Game) ReleaseDate() string {
	if g.FirstReleaseDate == 0 {
		return ""
	}
	return time.Unix(g.FirstReleaseDate, 0).UTC().Format("2006-01-02")
}

// Cover is one record from the covers endpoint.
type Cover struct {
	ID  int64  `json:"id"`
	URL string `json:"url"`
}

// Platform is one record from the platforms endpoint.
type Platform struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// Quote wraps a value for use inside an apicalypse string literal.
func Quote(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `\"`) + `"`
}
