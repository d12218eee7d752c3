// Package protocol implements the binary wire protocol that carries
// patches from server to client and events from client to server.
//
// All messages are framed with a 4-byte header (type, flags, payload
// length). Payloads use varint encoding for integers, length-prefixed
// UTF-8 for strings, and big-endian for fixed-width fields. Node
// identities travel as raw uvarints; the textual "r<id>" form exists
// only in markup.
//
// Patches reuse the vdom patch vocabulary directly: Insert, Remove,
// Replace, Move, UpdateProps, UpdateText. Inserted subtrees are encoded
// as typed nodes with their props; event props carry only the event
// name, since callbacks cannot cross the wire. Events flow back as
// (sequence, handler token, name, value) tuples.
//
// The decoder enforces allocation and nesting limits so a malicious
// peer cannot force large allocations or deep recursion with a short
// message.
package protocol
