package wiki

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
)

func newTestClient(handler http.HandlerFunc) (*Client, *httptest.Server) {
	srv := httptest.NewServer(handler)
	c := NewClient(srv.URL+"/w/api.php", "test-agent")
	c.csrfToken = "token123"
	return c, srv
}

func TestPage_ExistingWithRedirectResolution(t *testing.T) {
	c, srv := newTestClient(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if q.Get("titles") != "Foo" {
			t.Errorf("unexpected titles param: %q", q.Get("titles"))
		}
		if q.Get("redirects") != "1" {
			t.Errorf("expected redirects=1")
		}
		fmt.Fprint(w, `{"query":{"pages":{"42":{"pageid":42,"title":"Bar","revisions":[{"slots":{"main":{"*":"page body"}}}]}}}}`)
	})
	defer srv.Close()

	page, err := c.Page(context.Background(), "Foo")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !page.Exists {
		t.Error("expected page to exist")
	}
	if page.Title != "Bar" {
		t.Errorf("expected canonical title Bar, got %q", page.Title)
	}
	if page.Content != "page body" {
		t.Errorf("expected content %q, got %q", "page body", page.Content)
	}
}

func TestPage_Missing(t *testing.T) {
	c, srv := newTestClient(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"query":{"pages":{"-1":{"title":"Nope","missing":""}}}}`)
	})
	defer srv.Close()

	page, err := c.Page(context.Background(), "Nope")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if page.Exists {
		t.Error("expected missing page")
	}
	if page.Title != "Nope" {
		t.Errorf("expected title Nope, got %q", page.Title)
	}
}

func TestEdit_SendsTokenAndFlags(t *testing.T) {
	var got url.Values
	c, srv := newTestClient(func(w http.ResponseWriter, r *http.Request) {
		r.ParseForm()
		got = r.PostForm
		fmt.Fprint(w, `{"edit":{"result":"Success"}}`)
	})
	defer srv.Close()

	err := c.Edit(context.Background(), "Foo", "new text", EditOptions{Summary: "cleanup", Minor: true, Bot: true})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for k, want := range map[string]string{
		"token":     "token123",
		"text":      "new text",
		"summary":   "cleanup",
		"minor":     "1",
		"bot":       "1",
		"watchlist": "nochange",
	} {
		if got.Get(k) != want {
			t.Errorf("form field %s: expected %q, got %q", k, want, got.Get(k))
		}
	}
}

func TestEdit_APIError(t *testing.T) {
	c, srv := newTestClient(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"error":{"code":"protectedpage","info":"This page is protected"}}`)
	})
	defer srv.Close()

	err := c.Edit(context.Background(), "Foo", "x", EditOptions{})
	if err == nil {
		t.Fatal("expected error from api error response")
	}
}

func TestLogout_EndsSession(t *testing.T) {
	var got url.Values
	c, srv := newTestClient(func(w http.ResponseWriter, r *http.Request) {
		r.ParseForm()
		got = r.PostForm
		fmt.Fprint(w, `{}`)
	})
	defer srv.Close()
	c.account = "APWikiBot"

	if err := c.Logout(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Get("action") != "logout" {
		t.Errorf("form field action: expected %q, got %q", "logout", got.Get("action"))
	}
	if got.Get("token") != "token123" {
		t.Errorf("form field token: expected %q, got %q", "token123", got.Get("token"))
	}
	if c.Account() != "" {
		t.Errorf("expected account cleared after logout, got %q", c.Account())
	}
}

func TestCategoryMembers_FollowsContinuation(t *testing.T) {
	calls := 0
	c, srv := newTestClient(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if r.URL.Query().Get("cmcontinue") == "" {
			fmt.Fprint(w, `{"continue":{"cmcontinue":"page|next"},"query":{"categorymembers":[{"ns":0,"title":"A"},{"ns":1,"title":"Talk:B"}]}}`)
			return
		}
		fmt.Fprint(w, `{"query":{"categorymembers":[{"ns":0,"title":"C"}]}}`)
	})
	defer srv.Close()

	members, err := c.CategoryMembers(context.Background(), "Category:Games")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if calls != 2 {
		t.Errorf("expected 2 requests, got %d", calls)
	}
	if len(members) != 3 {
		t.Fatalf("expected 3 members, got %d", len(members))
	}
	if members[1].Namespace != 1 || members[1].Title != "Talk:B" {
		t.Errorf("unexpected member: %+v", members[1])
	}
}
