// Package bctx implements the shared key-value scratchpad context engine:
// a process-provided store visible to every nested read/write in a parse
// tree, addressed by dot-path.
//
// The top-level table is a strongly-typed wrapper over sync.Map. Callers
// own synchronization, but a concurrency-safe top level costs nothing and
// means a caller who *does* share one Context across goroutines (e.g. to
// parse independent sibling streams that both append to a running total)
// does not hit a data race on the top-level key set.
package bctx

import (
	"fmt"
	"strconv"
	"strings"
	"sync"
)

// Context is the engine's shared scratchpad. The zero value is ready to use.
type Context struct {
	top sync.Map // string -> any
}

// New returns an empty Context.
func New() *Context { return &Context{} }

func splitPath(path string) []string {
	return strings.Split(path, ".")
}

// Get resolves a dot-path against the context. ok is false when any segment
// of the path is missing; GetOrDefault adds the fallback value.
func (c *Context) Get(path string) (any, bool) {
	segs := splitPath(path)
	v, ok := c.top.Load(segs[0])
	if !ok {
		return nil, false
	}
	return resolveRest(v, segs[1:])
}

// GetOrDefault resolves path, falling back to def when missing, matching
// the CtxGet(key, default?) built-in.
func (c *Context) GetOrDefault(path string, def any, hasDef bool) (any, error) {
	v, ok := c.Get(path)
	if ok {
		return v, nil
	}
	if hasDef {
		return def, nil
	}
	return nil, fmt.Errorf("bctx: context key %q not found", path)
}

func resolveRest(v any, segs []string) (any, bool) {
	cur := v
	for _, seg := range segs {
		switch m := cur.(type) {
		case map[string]any:
			next, ok := m[seg]
			if !ok {
				return nil, false
			}
			cur = next
		case []any:
			idx, err := strconv.Atoi(seg)
			if err != nil || idx < 0 || idx >= len(m) {
				return nil, false
			}
			cur = m[idx]
		default:
			return nil, false
		}
	}
	return cur, true
}

// Set writes v at path, creating intermediate map[string]any nodes as
// needed.
func (c *Context) Set(path string, v any) {
	segs := splitPath(path)
	if len(segs) == 1 {
		c.top.Store(segs[0], v)
		return
	}
	root, _ := c.top.LoadOrStore(segs[0], map[string]any{})
	m, ok := root.(map[string]any)
	if !ok {
		m = map[string]any{}
		c.top.Store(segs[0], m)
	}
	setRest(m, segs[1:], v)
}

func setRest(m map[string]any, segs []string, v any) {
	for i, seg := range segs {
		if i == len(segs)-1 {
			m[seg] = v
			return
		}
		next, ok := m[seg].(map[string]any)
		if !ok {
			next = map[string]any{}
			m[seg] = next
		}
		m = next
	}
}

// Append treats the slot at path as a list: if v is a slice, it is
// concatenated; otherwise v is pushed.
func (c *Context) Append(path string, v any) {
	cur, ok := c.Get(path)
	var list []any
	if ok {
		if existing, ok := cur.([]any); ok {
			list = existing
		} else {
			list = []any{cur}
		}
	}
	if incoming, ok := v.([]any); ok {
		list = append(list, incoming...)
	} else {
		list = append(list, v)
	}
	c.Set(path, list)
}

// All iterates over top-level keys, mirroring xsync.Map.All.
func (c *Context) All(yield func(key string, value any) bool) {
	c.top.Range(func(k, v any) bool {
		return yield(k.(string), v)
	})
}
