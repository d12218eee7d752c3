package render

import (
	"bytes"
	"io"
	"sort"

	"github.com/raven-ui/raven/pkg/dom"
	"github.com/raven-ui/raven/pkg/vdom"
)

// textGap separates adjacent text nodes in markup. An HTML parse
// coalesces a contiguous text run into one node; the comment keeps the
// runs distinct without rendering anything, so hydration pairs each
// text VNode with its own live node.
const textGap = "<!---->"

// Renderer serializes VNode trees to markup.
type Renderer struct{}

// NewRenderer creates a Renderer.
func NewRenderer() *Renderer {
	return &Renderer{}
}

// RenderToString renders a VNode tree to a markup string.
func (r *Renderer) RenderToString(node *vdom.VNode) (string, error) {
	var buf bytes.Buffer
	if err := r.RenderToWriter(&buf, node); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// RenderToWriter streams a VNode tree to the given writer.
func (r *Renderer) RenderToWriter(w io.Writer, node *vdom.VNode) error {
	lastText := false
	return r.renderNode(w, node, nil, &lastText)
}

// renderNode dispatches on node kind. suspend, when non-nil, marks
// subtrees to replace with a placeholder (streaming only). lastText
// tracks whether the previous byte of output ended a text node; a
// fragment exit keeps the run going, so the flag threads through the
// whole walk rather than one sibling list.
func (r *Renderer) renderNode(w io.Writer, node *vdom.VNode, suspend func(*vdom.VNode) bool, lastText *bool) error {
	if node == nil {
		return nil
	}
	if suspend != nil && suspend(node) {
		return r.renderSuspensePlaceholder(w, node, lastText)
	}

	switch node.Kind {
	case vdom.KindElement:
		return r.renderElement(w, node, suspend, lastText)
	case vdom.KindText:
		if *lastText {
			if _, err := io.WriteString(w, textGap); err != nil {
				return err
			}
		}
		*lastText = true
		_, err := io.WriteString(w, escapeHTML(node.Text))
		return err
	case vdom.KindFragment, vdom.KindComponent:
		return r.renderBoundary(w, node, suspend, lastText)
	}
	return nil
}

// renderElement renders an element with its attributes and children.
func (r *Renderer) renderElement(w io.Writer, node *vdom.VNode, suspend func(*vdom.VNode) bool, lastText *bool) error {
	if _, err := io.WriteString(w, "<"+node.Tag); err != nil {
		return err
	}
	if err := r.renderAttributes(w, node); err != nil {
		return err
	}
	*lastText = false

	// Void elements take no children and no closing tag; children
	// supplied anyway are a tolerated malformed input and dropped.
	if isVoidElement(node.Tag) {
		_, err := io.WriteString(w, ">")
		return err
	}

	if _, err := io.WriteString(w, ">"); err != nil {
		return err
	}
	for _, child := range node.Children {
		if err := r.renderNode(w, child, suspend, lastText); err != nil {
			return err
		}
	}
	*lastText = false
	_, err := io.WriteString(w, "</"+node.Tag+">")
	return err
}

// renderBoundary emits the inert anchor for a fragment or component
// boundary, then its children at the same level.
func (r *Renderer) renderBoundary(w io.Writer, node *vdom.VNode, suspend func(*vdom.VNode) bool, lastText *bool) error {
	if _, err := io.WriteString(w,
		`<template `+dom.FragmentAttr+`="`+dom.MarkerFor(node.ID)+`"></template>`); err != nil {
		return err
	}
	*lastText = false
	for _, child := range node.Children {
		if err := r.renderNode(w, child, suspend, lastText); err != nil {
			return err
		}
	}
	return nil
}

// renderSuspensePlaceholder emits the stable marker a later
// out-of-band replacement will target.
func (r *Renderer) renderSuspensePlaceholder(w io.Writer, node *vdom.VNode, lastText *bool) error {
	*lastText = false
	_, err := io.WriteString(w,
		`<template `+dom.SuspenseAttr+`="`+dom.MarkerFor(node.ID)+`"></template>`)
	return err
}

// renderAttributes emits the identity marker, the key marker when set,
// plain and boolean attributes, and the merged style declaration, all
// sorted by attribute name for deterministic output. Event bindings
// carry no server-observable value and are never emitted.
func (r *Renderer) renderAttributes(w io.Writer, node *vdom.VNode) error {
	type attrPair struct {
		name  string
		value string
		bare  bool
	}
	attrs := []attrPair{{name: dom.MarkerAttr, value: dom.MarkerFor(node.ID)}}
	if node.Key != "" {
		attrs = append(attrs, attrPair{name: dom.KeyAttr, value: node.Key})
	}

	for _, k := range node.Props.SortedKeys() {
		p := node.Props[k]
		switch p.Kind {
		case vdom.PropAttr:
			attrs = append(attrs, attrPair{name: p.Name, value: p.Value})
		case vdom.PropBool:
			if p.Bool {
				attrs = append(attrs, attrPair{name: p.Name, bare: true})
			}
		}
	}
	if style := node.Props.StyleString(); style != "" {
		attrs = append(attrs, attrPair{name: "style", value: style})
	}

	sort.Slice(attrs, func(i, j int) bool { return attrs[i].name < attrs[j].name })

	for _, a := range attrs {
		if a.bare {
			if _, err := io.WriteString(w, " "+a.name); err != nil {
				return err
			}
			continue
		}
		if _, err := io.WriteString(w, " "+a.name+`="`+escapeAttr(a.value)+`"`); err != nil {
			return err
		}
	}
	return nil
}
