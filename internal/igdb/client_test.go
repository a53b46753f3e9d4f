package igdb

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestGames_FetchesTokenOnceAndDecodes(t *testing.T) {
	tokenCalls := 0
	tokenSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tokenCalls++
		if r.FormValue("grant_type") != "client_credentials" {
			t.Errorf("unexpected grant_type: %q", r.FormValue("grant_type"))
		}
		fmt.Fprint(w, `{"access_token":"tok","expires_in":3600}`)
	}))
	defer tokenSrv.Close()

	apiSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer tok" {
			t.Errorf("unexpected auth header: %q", got)
		}
		if got := r.Header.Get("Client-ID"); got != "cid" {
			t.Errorf("unexpected client id: %q", got)
		}
		fmt.Fprint(w, `[{"id":7,"name":"Example","cover":11,"platforms":[6,48],"first_release_date":915148800}]`)
	}))
	defer apiSrv.Close()

	c := NewClient("cid", "secret")
	c.apiURL = apiSrv.URL
	c.tokenURL = tokenSrv.URL

	for i := 0; i < 2; i++ {
		games, err := c.Games(context.Background(), GameFields+`where name = "Example";`)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(games) != 1 || games[0].ID != 7 || games[0].Cover != 11 {
			t.Fatalf("unexpected decode: %+v", games)
		}
		if games[0].ReleaseDate() != "1999-01-01" {
			t.Errorf("unexpected release date: %q", games[0].ReleaseDate())
		}
	}
	if tokenCalls != 1 {
		t.Errorf("expected token fetched once, got %d", tokenCalls)
	}
}

func TestQuery_ErrorStatus(t *testing.T) {
	tokenSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"access_token":"tok","expires_in":3600}`)
	}))
	defer tokenSrv.Close()
	apiSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad query", http.StatusBadRequest)
	}))
	defer apiSrv.Close()

	c := NewClient("cid", "secret")
	c.apiURL = apiSrv.URL
	c.tokenURL = tokenSrv.URL

	if _, err := c.Games(context.Background(), "garbage"); err == nil {
		t.Fatal("expected error on bad status")
	}
}

func TestNormalizeImageURL(t *testing.T) {
	cases := map[string]string{
		"//images.igdb.com/x/t_thumb/a.jpg": "https://images.igdb.com/x/t_thumb/a.jpg",
		"https://images.igdb.com/a.png":     "https://images.igdb.com/a.png",
	}
	for in, want := range cases {
		if got := normalizeImageURL(in); got != want {
			t.Errorf("normalizeImageURL(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestQuote(t *testing.T) {
	if got := Quote(`He said "hi"`); got != `"He said \"hi\""` {
		t.Errorf("unexpected quoting: %s", got)
	}
}
