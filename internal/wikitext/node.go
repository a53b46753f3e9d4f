package wikitext

import (
	"regexp"
	"strconv"
	"strings"
)

// Node is one parsed unit of a page: either plain text or a template
// invocation. Nodes are immutable; edits are computed as new strings.
type Node interface {
	// Raw returns the exact source text of the node.
	Raw() string
	// Span returns the node's byte offsets within the page source.
	Span() (start, end int)
}

// Text is a run of source text between template invocations.
type Text struct {
	raw   string
	start int
}

func (t *Text) Raw() string { return t.raw }

func (t *Text) Span() (int, int) { return t.start, t.start + len(t.raw) }

// Template is a {{Name|arg|key=value}} invocation.
type Template struct {
	raw   string
	start int
	ord   int // position in the document's depth-first template sequence
	name  string
	args  []Argument
}

func (t *Template) Raw() string { return t.raw }

func (t *Template) Span() (int, int) { return t.start, t.start + len(t.raw) }

// Pos is the template's position in the document's depth-first sequence,
// usable for relative ordering comparisons.
func (t *Template) Pos() int { return t.ord }

// Name returns the template name with surrounding whitespace trimmed.
func (t *Template) Name() string { return strings.TrimSpace(t.name) }

// Is reports whether the template's name matches, ignoring case and
// surrounding whitespace.
func (t *Template) Is(name string) bool { return strings.EqualFold(t.Name(), name) }

// magicWords are parser directives that look like templates but carry no
// page content. They are excluded from all matching.
var magicWords = map[string]bool{
	"DISPLAYTITLE": true,
	"DEFAULTSORT":  true,
	"PAGENAME":     true,
	"FULLPAGENAME": true,
	"NAMESPACE":    true,
	"SITENAME":     true,
	"CURRENTYEAR":  true,
	"CURRENTMONTH": true,
	"CURRENTDAY":   true,
	"TOC":          true,
}

// IsMagic reports whether the template is a parser directive such as
// {{DISPLAYTITLE:...}} or a {{#if:...}} parser function.
func (t *Template) IsMagic() bool {
	name := t.Name()
	if strings.HasPrefix(name, "#") {
		return true
	}
	if i := strings.IndexByte(name, ':'); i >= 0 {
		name = name[:i]
	}
	return magicWords[strings.ToUpper(name)] && name == strings.ToUpper(name)
}

// Args returns the template's arguments in source order.
func (t *Template) Args() []Argument { return t.args }

// Arg returns the last argument whose key matches name (named arguments win
// over earlier duplicates), or nil if absent.
func (t *Template) Arg(name string) *Argument {
	var found *Argument
	for i := range t.args {
		if t.args[i].key == name {
			found = &t.args[i]
		}
	}
	return found
}

// ArgAt returns the positional argument at the given 1-based index. An
// explicit numeric key ("2=...") addresses the same slot and wins over a
// positional occurrence.
func (t *Template) ArgAt(i int) *Argument {
	return t.Arg(strconv.Itoa(i))
}

// Templates returns every template nested inside the arguments, depth-first.
func (t *Template) Templates() []*Template {
	var out []*Template
	for i := range t.args {
		for _, nested := range t.args[i].templates {
			out = append(out, nested)
			out = append(out, nested.Templates()...)
		}
	}
	return out
}

// WithArg returns the template's source text with the named argument set to
// value, preserving the rest of the invocation byte-for-byte. A missing
// argument is appended before the closing braces, on its own line when the
// invocation spans multiple lines.
func (t *Template) WithArg(name, value string) string {
	if arg := t.Arg(name); arg != nil {
		// Keep the old value's surrounding whitespace so the invocation
		// style survives the edit.
		core := strings.TrimSpace(arg.Value)
		var lead, trail int
		if core == "" {
			trail = len(arg.Value)
		} else {
			lead = strings.Index(arg.Value, core)
			trail = len(arg.Value) - lead - len(core)
		}
		rel := arg.valueStart - t.start
		return t.raw[:rel+lead] + value + t.raw[rel+len(arg.Value)-trail:]
	}
	body := t.raw[:len(t.raw)-2]
	if strings.Contains(t.raw, "\n") {
		if !strings.HasSuffix(body, "\n") {
			body += "\n"
		}
		return body + "|" + name + " = " + value + "\n}}"
	}
	return body + "|" + name + "=" + value + "}}"
}

// Argument is one key/value pair of a template invocation. Name is empty for
// positional arguments; Value is the raw value text, untrimmed.
type Argument struct {
	Name  string
	Value string

	key        string // effective lookup key; positional index for unnamed args
	valueStart int    // byte offset of Value within the page source
	templates  []*Template
}

// Templates returns the templates appearing directly in the argument value.
func (a *Argument) Templates() []*Template { return a.templates }

var linkRe = regexp.MustCompile(`\[\[([^|\]]*)(?:\|([^\]]*))?\]\]`)

// Plain reduces the argument value to its readable text: nested templates
// render as nothing and wikilinks render as their display text.
func (a *Argument) Plain() string {
	s := a.Value
	for _, t := range a.templates {
		s = strings.Replace(s, t.Raw(), "", 1)
	}
	return linkRe.ReplaceAllStringFunc(s, func(m string) string {
		sub := linkRe.FindStringSubmatch(m)
		if sub[2] != "" {
			return sub[2]
		}
		return sub[1]
	})
}
