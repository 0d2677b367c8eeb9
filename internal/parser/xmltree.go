package parser

import (
	"encoding/xml"
	"io"
	"strings"
)

// node is a namespace-free element tree. Names are local and compared
// case-insensitively.
type node struct {
	name     string
	text     strings.Builder
	children []*node
}

// parseTree decodes raw leniently: unknown entities and unclosed HTML-ish
// tags are tolerated. It returns nil when nothing could be decoded.
func parseTree(raw string) *node {
	dec := xml.NewDecoder(strings.NewReader(raw))
	dec.Strict = false
	dec.AutoClose = xml.HTMLAutoClose
	dec.Entity = xml.HTMLEntity
	dec.CharsetReader = func(_ string, in io.Reader) (io.Reader, error) { return in, nil }

	root := &node{name: "#root"}
	stack := []*node{root}
	for {
		tok, err := dec.Token()
		if err != nil {
			break
		}
		switch t := tok.(type) {
		case xml.StartElement:
			n := &node{name: t.Name.Local}
			top := stack[len(stack)-1]
			top.children = append(top.children, n)
			stack = append(stack, n)
		case xml.EndElement:
			if len(stack) > 1 {
				stack = stack[:len(stack)-1]
			}
		case xml.CharData:
			stack[len(stack)-1].text.Write(t)
		}
	}
	if len(root.children) == 0 {
		return nil
	}
	return root
}

// find returns the first descendant named any of names, depth first.
func (n *node) find(names ...string) *node {
	if n == nil {
		return nil
	}
	for _, c := range n.children {
		for _, name := range names {
			if strings.EqualFold(c.name, name) {
				return c
			}
		}
		if d := c.find(names...); d != nil {
			return d
		}
	}
	return nil
}

// findAll returns every descendant named any of names, not descending into
// matches.
func (n *node) findAll(names ...string) []*node {
	if n == nil {
		return nil
	}
	var out []*node
	for _, c := range n.children {
		matched := false
		for _, name := range names {
			if strings.EqualFold(c.name, name) {
				matched = true
				break
			}
		}
		if matched {
			out = append(out, c)
			continue
		}
		out = append(out, c.findAll(names...)...)
	}
	return out
}

// textContent is the whitespace-collapsed text of n and its descendants.
func (n *node) textContent() string {
	if n == nil {
		return ""
	}
	var b strings.Builder
	n.collect(&b)
	return strings.Join(strings.Fields(b.String()), " ")
}

func (n *node) collect(b *strings.Builder) {
	b.WriteString(n.text.String())
	b.WriteByte(' ')
	for _, c := range n.children {
		c.collect(b)
	}
}

// get returns the text of the first descendant named any of names.
func (n *node) get(names ...string) string {
	return n.find(names...).textContent()
}
