package wiki

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"time"

	"github.com/tidwall/gjson"
)

// ErrAuth marks login/session failures; the run aborts before touching any
// page when it occurs.
var ErrAuth = errors.New("authentication failed")

// Page is one wiki page as fetched through the action API, with redirects
// already resolved (Title is the canonical title).
type Page struct {
	Title   string
	Content string
	Exists  bool
}

// EditOptions control how an edit is recorded.
type EditOptions struct {
	Summary string
	Minor   bool
	Bot     bool
}

// Member is one entry of a category listing.
type Member struct {
	Title     string
	Namespace int
}

// Client communicates with a MediaWiki action API endpoint. It holds the
// login session cookie jar and the CSRF token for write actions.
type Client struct {
	apiURL     string
	userAgent  string
	httpClient *http.Client

	csrfToken string
	account   string
}

func NewClient(apiURL, userAgent string) *Client {
	jar, _ := cookiejar.New(nil)
	return &Client{
		apiURL:    apiURL,
		userAgent: userAgent,
		httpClient: &http.Client{
			Timeout: 60 * time.Second,
			Jar:     jar,
		},
	}
}

// Login authenticates the bot account and fetches the CSRF token used by all
// subsequent write actions.
func (c *Client) Login(ctx context.Context, username, password string) error {
	body, err := c.get(ctx, url.Values{
		"action": {"query"},
		"meta":   {"tokens"},
		"type":   {"login"},
	})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrAuth, err)
	}
	loginToken := gjson.GetBytes(body, "query.tokens.logintoken").String()
	if loginToken == "" {
		return fmt.Errorf("%w: no login token issued", ErrAuth)
	}

	body, err = c.post(ctx, url.Values{
		"action":     {"login"},
		"lgname":     {username},
		"lgpassword": {password},
		"lgtoken":    {loginToken},
	})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrAuth, err)
	}
	if result := gjson.GetBytes(body, "login.result").String(); result != "Success" {
		reason := gjson.GetBytes(body, "login.reason").String()
		if reason == "" {
			reason = result
		}
		return fmt.Errorf("%w: %s", ErrAuth, reason)
	}
	c.account = gjson.GetBytes(body, "login.lgusername").String()

	body, err = c.get(ctx, url.Values{
		"action": {"query"},
		"meta":   {"tokens"},
	})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrAuth, err)
	}
	c.csrfToken = gjson.GetBytes(body, "query.tokens.csrftoken").String()
	if c.csrfToken == "" || c.csrfToken == `+\` {
		return fmt.Errorf("%w: no csrf token for session", ErrAuth)
	}
	return nil
}

// Account returns the logged-in account name.
func (c *Client) Account() string { return c.account }

// Logout invalidates the bot session server-side and drops the local
// session state.
func (c *Client) Logout(ctx context.Context) error {
	_, err := c.post(ctx, url.Values{
		"action": {"logout"},
		"token":  {c.csrfToken},
	})
	if err != nil {
		return fmt.Errorf("logout: %w", err)
	}
	c.csrfToken = ""
	c.account = ""
	return nil
}

// Page fetches a page's current content with redirect resolution.
func (c *Client) Page(ctx context.Context, title string) (*Page, error) {
	body, err := c.get(ctx, url.Values{
		"action":    {"query"},
		"prop":      {"revisions"},
		"rvprop":    {"content"},
		"rvslots":   {"main"},
		"redirects": {"1"},
		"titles":    {title},
	})
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", title, err)
	}

	var page *Page
	gjson.GetBytes(body, "query.pages").ForEach(func(_, v gjson.Result) bool {
		page = &Page{Title: v.Get("title").String()}
		if !v.Get("missing").Exists() && !v.Get("invalid").Exists() {
			page.Exists = true
			page.Content = v.Get(`revisions.0.slots.main.\*`).String()
		}
		return false
	})
	if page == nil {
		return nil, fmt.Errorf("fetch %s: empty query response", title)
	}
	return page, nil
}

// Edit replaces a page's content. The watchlist is never touched.
func (c *Client) Edit(ctx context.Context, title, content string, opts EditOptions) error {
	params := url.Values{
		"action":    {"edit"},
		"title":     {title},
		"text":      {content},
		"summary":   {opts.Summary},
		"watchlist": {"nochange"},
		"token":     {c.csrfToken},
	}
	if opts.Minor {
		params.Set("minor", "1")
	}
	if opts.Bot {
		params.Set("bot", "1")
	}
	body, err := c.post(ctx, params)
	if err != nil {
		return fmt.Errorf("edit %s: %w", title, err)
	}
	if result := gjson.GetBytes(body, "edit.result").String(); result != "Success" {
		return fmt.Errorf("edit %s: result %q", title, result)
	}
	return nil
}

// NewSection appends a new talk-page section. Deliberately not a bot-flagged
// edit: these sections are addressed to human editors.
func (c *Client) NewSection(ctx context.Context, title, heading, text string) error {
	body, err := c.post(ctx, url.Values{
		"action":       {"edit"},
		"title":        {title},
		"section":      {"new"},
		"sectiontitle": {heading},
		"text":         {text},
		"watchlist":    {"nochange"},
		"token":        {c.csrfToken},
	})
	if err != nil {
		return fmt.Errorf("new section on %s: %w", title, err)
	}
	if result := gjson.GetBytes(body, "edit.result").String(); result != "Success" {
		return fmt.Errorf("new section on %s: result %q", title, result)
	}
	return nil
}

// Upload stores a file under the given name (a "File:" prefix is accepted
// and stripped). Existing files are not overwritten: upload warnings abort.
func (c *Client) Upload(ctx context.Context, filename string, data io.Reader, comment string) error {
	name := strings.TrimPrefix(filename, "File:")

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range map[string]string{
		"action":   "upload",
		"format":   "json",
		"filename": name,
		"comment":  comment,
		"token":    c.csrfToken,
	} {
		if err := mw.WriteField(k, v); err != nil {
			return fmt.Errorf("upload %s: %w", name, err)
		}
	}
	part, err := mw.CreateFormFile("file", name)
	if err != nil {
		return fmt.Errorf("upload %s: %w", name, err)
	}
	if _, err := io.Copy(part, data); err != nil {
		return fmt.Errorf("upload %s: read source: %w", name, err)
	}
	if err := mw.Close(); err != nil {
		return fmt.Errorf("upload %s: %w", name, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.apiURL, &buf)
	if err != nil {
		return fmt.Errorf("upload %s: %w", name, err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("User-Agent", c.userAgent)

	body, err := c.send(req)
	if err != nil {
		return fmt.Errorf("upload %s: %w", name, err)
	}
	switch result := gjson.GetBytes(body, "upload.result").String(); result {
	case "Success":
		return nil
	case "Warning":
		var warnings []string
		gjson.GetBytes(body, "upload.warnings").ForEach(func(k, _ gjson.Result) bool {
			warnings = append(warnings, k.String())
			return true
		})
		return fmt.Errorf("upload %s: warnings: %s", name, strings.Join(warnings, ", "))
	default:
		return fmt.Errorf("upload %s: result %q", name, result)
	}
}

// CategoryMembers lists every member of a category, following continuation.
func (c *Client) CategoryMembers(ctx context.Context, category string) ([]Member, error) {
	var out []Member
	cont := ""
	for {
		params := url.Values{
			"action":  {"query"},
			"list":    {"categorymembers"},
			"cmtitle": {category},
			"cmprop":  {"title|ns"},
			"cmlimit": {"500"},
		}
		if cont != "" {
			params.Set("cmcontinue", cont)
		}
		body, err := c.get(ctx, params)
		if err != nil {
			return nil, fmt.Errorf("list %s: %w", category, err)
		}
		for _, m := range gjson.GetBytes(body, "query.categorymembers").Array() {
			out = append(out, Member{
				Title:     m.Get("title").String(),
				Namespace: int(m.Get("ns").Int()),
			})
		}
		cont = gjson.GetBytes(body, "continue.cmcontinue").String()
		if cont == "" {
			return out, nil
		}
	}
}

func (c *Client) get(ctx context.Context, params url.Values) ([]byte, error) {
	params.Set("format", "json")
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.apiURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)
	return c.send(req)
}

func (c *Client) post(ctx context.Context, params url.Values) ([]byte, error) {
	params.Set("format", "json")
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.apiURL, strings.NewReader(params.Encode()))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("User-Agent", c.userAgent)
	return c.send(req)
}

func (c *Client) send(req *http.Request) ([]byte, error) {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, fmt.Errorf("status %d: %s", resp.StatusCode, string(respBody))
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if e := gjson.GetBytes(body, "error"); e.Exists() {
		return nil, fmt.Errorf("api error %s: %s", e.Get("code").String(), e.Get("info").String())
	}
	return body, nil
}
