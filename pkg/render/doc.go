// Package render serializes VNode trees to HTML markup.
//
// Serialized markup is a "cold" render: no live behavior, but enough
// metadata for later hydration. Every element carries its identity
// marker (data-raven-id), keyed nodes carry data-raven-key, and
// fragment and component boundaries emit an inert template anchor so
// the hydrator can locate them even though they contribute no wrapper
// of their own.
//
// Output rules:
//
//   - attributes are emitted in sorted order for determinism
//   - all style entries merge into a single style attribute, sorted by
//     property name
//   - boolean attributes are emitted bare when true, omitted when false
//   - event bindings are never emitted
//   - text is escaped for the five HTML metacharacters
//   - void elements render without children or closing tags, even when
//     children were (incorrectly) supplied
//
// The streaming variant emits the same bytes as size-bounded chunks in
// document order, and can replace not-yet-available subtrees with a
// marked placeholder to be filled in out of band.
package render
