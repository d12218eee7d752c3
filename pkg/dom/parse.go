package dom

import (
	"io"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// Parse builds a live tree from serialized markup, typically the
// output of the markup serializer arriving from another process. The
// returned node is a root container holding the markup's top-level
// nodes; whitespace-only text between elements is dropped, matching
// what the serializer emits.
func Parse(r io.Reader) (*Node, error) {
	ctx := &html.Node{Type: html.ElementNode, Data: "body", DataAtom: atom.Body}
	frags, err := html.ParseFragment(r, ctx)
	if err != nil {
		return nil, err
	}
	root := newElementNode("#root")
	for _, f := range frags {
		if n := convert(f); n != nil {
			root.insertChild(n, len(root.children))
		}
	}
	return root, nil
}

// ParseString is Parse over a string.
func ParseString(markup string) (*Node, error) {
	return Parse(strings.NewReader(markup))
}

func convert(h *html.Node) *Node {
	switch h.Type {
	case html.TextNode:
		if strings.TrimSpace(h.Data) == "" {
			return nil
		}
		return newTextNode(h.Data)

	case html.ElementNode:
		n := newElementNode(h.Data)
		for _, a := range h.Attr {
			if a.Val == "" && isBareBooleanAttr(a.Key) {
				n.bools[a.Key] = true
				continue
			}
			if a.Key == "style" {
				parseStyleInto(n, a.Val)
				continue
			}
			n.attrs[a.Key] = a.Val
		}
		// The html parser moves template children into a separate
		// fragment node; boundary templates are empty so nothing is
		// lost, but walk it anyway for robustness.
		kids := h.FirstChild
		if h.DataAtom == atom.Template {
			for c := h.FirstChild; c != nil; c = c.NextSibling {
				if c.Type == html.DocumentNode {
					kids = c.FirstChild
					break
				}
			}
		}
		for c := kids; c != nil; c = c.NextSibling {
			if child := convert(c); child != nil {
				n.insertChild(child, len(n.children))
			}
		}
		return n
	}
	return nil
}

// parseStyleInto splits a composite style declaration back into
// individual entries.
func parseStyleInto(n *Node, style string) {
	for _, decl := range strings.Split(style, ";") {
		name, value, ok := strings.Cut(decl, ":")
		if !ok {
			continue
		}
		name = strings.TrimSpace(name)
		value = strings.TrimSpace(value)
		if name != "" {
			n.styles[name] = value
		}
	}
}

// isBareBooleanAttr reports whether a valueless attribute should be
// read back as a boolean attribute rather than an empty string.
func isBareBooleanAttr(name string) bool {
	switch name {
	case "allowfullscreen", "async", "autofocus", "autoplay", "checked",
		"controls", "default", "defer", "disabled", "formnovalidate",
		"hidden", "inert", "ismap", "itemscope", "loop", "multiple",
		"muted", "nomodule", "novalidate", "open", "playsinline",
		"readonly", "required", "reversed", "selected":
		return true
	}
	return false
}
