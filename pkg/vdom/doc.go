// Package vdom provides Raven's virtual DOM: the immutable VNode tree
// model, the typed property vocabulary, and the reconciler.
//
// # Core Types
//
// VNode represents one rendered unit: an element, a text node, a
// component boundary, or a fragment. Every VNode is assigned a
// process-unique NodeID at construction. Trees are built fresh on each
// render pass and treated as read-only afterwards; "updating" a node
// means constructing a new tree and diffing it against the old one.
//
// # Properties
//
// Prop is a closed union of attribute, boolean attribute, style entry,
// and event binding. Style entries collapse into a single sorted style
// declaration during serialization.
//
// # Diffing
//
// Diff compares two VNode trees and returns an ordered list of Patch
// operations. Applying the patches in sequence against a render target
// that matches the old tree produces a target matching the new tree.
// Children with keys are reconciled by key; unkeyed children fall back
// to positional matching.
package vdom
