package wikitext

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrParse wraps all structural parse failures.
var ErrParse = errors.New("malformed wikitext")

// Document is an immutable parse of one page. Its serialized form is
// byte-identical to the source it was parsed from.
type Document struct {
	src   string
	nodes []Node
	all   []*Template
}

// Parse builds the template tree for a page's wikitext.
func Parse(src string) (*Document, error) {
	d := &Document{src: src}
	p := &parser{src: src, doc: d}
	nodes, err := p.parseRegion(0, len(src))
	if err != nil {
		return nil, err
	}
	d.nodes = nodes
	return d, nil
}

// String returns the page source unchanged.
func (d *Document) String() string { return d.src }

// Nodes returns the top-level node sequence in source order.
func (d *Document) Nodes() []Node { return d.nodes }

// Templates returns every template in the document, depth-first, parents
// before their nested templates.
func (d *Document) Templates() []*Template { return d.all }

// FirstTemplate returns the first template matching name (case-insensitive,
// whitespace-trimmed), skipping parser directives. Nil when absent.
func (d *Document) FirstTemplate(name string) *Template {
	for _, t := range d.all {
		if !t.IsMagic() && t.Is(name) {
			return t
		}
	}
	return nil
}

// TemplatesNamed returns every template matching name, in document order,
// skipping parser directives.
func (d *Document) TemplatesNamed(name string) []*Template {
	var out []*Template
	for _, t := range d.all {
		if !t.IsMagic() && t.Is(name) {
			out = append(out, t)
		}
	}
	return out
}

// HeaderBlock is the leading portion of a page before its first heading
// line. End is the byte offset where the block stops.
type HeaderBlock struct {
	Text string
	End  int
}

// HeaderBlock returns the page's header block. ok is false when the page is
// empty or opens with a heading, in which case there is no header to edit.
func (d *Document) HeaderBlock() (HeaderBlock, bool) {
	end, ok := headerEnd(d.src)
	if !ok {
		return HeaderBlock{}, false
	}
	return HeaderBlock{Text: d.src[:end], End: end}, true
}

// HeaderSpan locates the header block's end within arbitrary page text
// without a full parse. ok follows the same rules as HeaderBlock.
func HeaderSpan(text string) (end int, ok bool) {
	return headerEnd(text)
}

// headerEnd finds the end of the leading pre-heading segment of text.
func headerEnd(text string) (int, bool) {
	if text == "" || strings.HasPrefix(text, "=") {
		return 0, false
	}
	off := 0
	for {
		nl := strings.IndexByte(text[off:], '\n')
		if nl < 0 {
			return len(text), true
		}
		lineStart := off + nl + 1
		if strings.HasPrefix(text[lineStart:], "=") {
			return lineStart, true
		}
		off = lineStart
	}
}

type parser struct {
	src string
	doc *Document
}

// parseRegion scans src[lo:hi] into alternating text and template nodes.
func (p *parser) parseRegion(lo, hi int) ([]Node, error) {
	var nodes []Node
	textStart := lo
	i := lo
	for i < hi-1 {
		if p.src[i] != '{' || p.src[i+1] != '{' {
			i++
			continue
		}
		if i+2 < hi && p.src[i+2] == '{' {
			// {{{param}}} syntax; treat the leading brace as text.
			i++
			continue
		}
		end, err := matchBraces(p.src, i, hi)
		if err != nil {
			return nil, err
		}
		if textStart < i {
			nodes = append(nodes, &Text{raw: p.src[textStart:i], start: textStart})
		}
		tpl, err := p.parseTemplate(i, end)
		if err != nil {
			return nil, err
		}
		nodes = append(nodes, tpl)
		i = end
		textStart = end
	}
	if textStart < hi {
		nodes = append(nodes, &Text{raw: p.src[textStart:hi], start: textStart})
	}
	return nodes, nil
}

// matchBraces returns the offset just past the "}}" closing the "{{" at
// start, honoring nesting.
func matchBraces(src string, start, hi int) (int, error) {
	depth := 0
	i := start
	for i < hi-1 {
		switch {
		case src[i] == '{' && src[i+1] == '{':
			depth++
			i += 2
		case src[i] == '}' && src[i+1] == '}':
			depth--
			i += 2
			if depth == 0 {
				return i, nil
			}
		default:
			i++
		}
	}
	return 0, fmt.Errorf("%w: unclosed template at offset %d", ErrParse, start)
}

// parseTemplate parses the invocation spanning src[start:end].
func (p *parser) parseTemplate(start, end int) (*Template, error) {
	t := &Template{
		raw:   p.src[start:end],
		start: start,
		ord:   len(p.doc.all),
	}
	p.doc.all = append(p.doc.all, t)

	inner := p.src[start+2 : end-2]
	pipes := topLevelPipes(inner)
	if len(pipes) == 0 {
		t.name = inner
		return t, nil
	}
	t.name = inner[:pipes[0]]

	positional := 0
	bounds := append(pipes, len(inner))
	for s := 0; s < len(pipes); s++ {
		segStart := bounds[s] + 1
		segEnd := bounds[s+1]
		seg := inner[segStart:segEnd]

		arg := Argument{}
		eq := topLevelIndexByte(seg, '=')
		if eq >= 0 {
			arg.Name = strings.TrimSpace(seg[:eq])
			arg.Value = seg[eq+1:]
			arg.key = arg.Name
			arg.valueStart = start + 2 + segStart + eq + 1
		} else {
			positional++
			arg.Value = seg
			arg.key = strconv.Itoa(positional)
			arg.valueStart = start + 2 + segStart
		}

		valNodes, err := p.parseRegion(arg.valueStart, arg.valueStart+len(arg.Value))
		if err != nil {
			return nil, err
		}
		for _, n := range valNodes {
			if nested, ok := n.(*Template); ok {
				arg.templates = append(arg.templates, nested)
			}
		}
		t.args = append(t.args, arg)
	}
	return t, nil
}

// topLevelPipes returns the offsets of '|' separators not nested inside
// templates or wikilinks.
func topLevelPipes(s string) []int {
	var out []int
	depthT, depthL := 0, 0
	for i := 0; i < len(s); i++ {
		switch {
		case i+1 < len(s) && s[i] == '{' && s[i+1] == '{':
			depthT++
			i++
		case i+1 < len(s) && s[i] == '}' && s[i+1] == '}':
			depthT--
			i++
		case i+1 < len(s) && s[i] == '[' && s[i+1] == '[':
			depthL++
			i++
		case i+1 < len(s) && s[i] == ']' && s[i+1] == ']':
			depthL--
			i++
		case s[i] == '|' && depthT == 0 && depthL == 0:
			out = append(out, i)
		}
	}
	return out
}

// topLevelIndexByte finds the first occurrence of c not nested inside
// templates or wikilinks, or -1.
func topLevelIndexByte(s string, c byte) int {
	depthT, depthL := 0, 0
	for i := 0; i < len(s); i++ {
		switch {
		case i+1 < len(s) && s[i] == '{' && s[i+1] == '{':
			depthT++
			i++
		case i+1 < len(s) && s[i] == '}' && s[i+1] == '}':
			depthT--
			i++
		case i+1 < len(s) && s[i] == '[' && s[i+1] == '[':
			depthL++
			i++
		case i+1 < len(s) && s[i] == ']' && s[i+1] == ']':
			depthL--
			i++
		case s[i] == c && depthT == 0 && depthL == 0:
			return i
		}
	}
	return -1
}
