// Package binspec is a declarative binary-format engine: given a
// user-defined description of a binary file or wire-protocol layout, it
// produces a bidirectional codec that parses a byte stream into a typed
// object graph and re-serializes that graph back to bytes.
//
// A format is declared with NewType and Field/Nested/Unknown, decorated
// with the cond/ctrl/xform/valid/hook/bitfield/bctx annotation packages,
// and driven by Read/Write. This package re-exports the pieces most format
// declarations need so a caller usually only imports this one.
package binspec
