// Package types defines the packet store interface consumed by field
// descriptors, the catalog interface for persistent packets, and the
// standard error values shared by every avmeta package.
//
// A packet is an associative store of properties addressed by a namespace
// URI and a path. A property is a simple text value, an ordered (Seq) or
// unordered (Bag) array of text items, or a localized (Alt) text keyed by
// language. Array indices are 1-based.
package types
