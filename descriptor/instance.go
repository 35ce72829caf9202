package descriptor

// Instance is the typed object graph the read loop builds and the write
// loop consumes. It is a dynamic, ordered record rather than a hydrated Go
// struct: the engine has no compile-time knowledge of user types, so field
// values are addressed by name, exactly as the expression resolver's path
// grammar expects.
//
// A nested Instance is exclusively owned by its parent;
// Parent is kept only so that a Choice/Select selector or a context Get/Set
// path can walk upward if a format ever needs it, and is never serialized.
type Instance struct {
	Type   *TypeDescriptor
	Parent *Instance

	order   []string
	values  map[string]any
	scratch map[string]any
}

// NewInstance allocates an empty instance of the given type.
func NewInstance(t *TypeDescriptor, parent *Instance) *Instance {
	return &Instance{Type: t, Parent: parent, values: map[string]any{}}
}

// Scratch returns private per-parse state keyed by name, for hook
// implementations (Peek's saved offset, EnsureSize's expected end,
// Endian's saved byte order) that must not leak into Fields()/the
// expression resolver's path grammar and must not be shared across
// concurrent parses of a cloned TypeDescriptor.
func (i *Instance) Scratch(name string) (any, bool) {
	v, ok := i.scratch[name]
	return v, ok
}

// SetScratch assigns private per-parse state at name.
func (i *Instance) SetScratch(name string, v any) {
	if i.scratch == nil {
		i.scratch = map[string]any{}
	}
	i.scratch[name] = v
}

// Get returns the value stored at name and whether it was set.
func (i *Instance) Get(name string) (any, bool) {
	v, ok := i.values[name]
	return v, ok
}

// MustGet returns the value at name, or nil if unset.
func (i *Instance) MustGet(name string) any {
	return i.values[name]
}

// Set assigns a field value, recording field order on first write.
func (i *Instance) Set(name string, v any) {
	if _, ok := i.values[name]; !ok {
		i.order = append(i.order, name)
	}
	i.values[name] = v
}

// Unset removes name's value and its place in the field order.
func (i *Instance) Unset(name string) {
	if _, ok := i.values[name]; !ok {
		return
	}
	delete(i.values, name)
	for idx, n := range i.order {
		if n == name {
			i.order = append(i.order[:idx:idx], i.order[idx+1:]...)
			break
		}
	}
}

// Fields returns field names in the order they were first set.
func (i *Instance) Fields() []string {
	out := make([]string, len(i.order))
	copy(out, i.order)
	return out
}

// Len returns the number of distinct properties set on this instance.
func (i *Instance) Len() int { return len(i.order) }
