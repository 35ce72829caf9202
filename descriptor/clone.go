package descriptor

import deepcopy "github.com/tiendc/go-deepcopy"

// Clone returns a deep copy of t suitable for a single parse's private
// overlay. Type descriptors are immutable once built except for the
// self-removal of "once" pre/post hooks; that mutation admits two
// strategies across concurrent parses of the same declared type: treat it as unsafe
// (the default here — engine.Read/Write run directly against the
// TypeDescriptor passed in, so concurrent parses of the same *pointer*
// must be externally serialized), or clone on use. A caller that needs to
// parse the same format concurrently from multiple goroutines should call
// Clone() once per goroutine and pass each goroutine its own copy.
func (t *TypeDescriptor) Clone() (*TypeDescriptor, error) {
	var clone TypeDescriptor
	if err := deepcopy.Copy(&clone, t); err != nil {
		return nil, err
	}
	clone.fieldIndex = make(map[string]*FieldDescriptor, len(clone.Fields))
	for _, f := range clone.Fields {
		clone.fieldIndex[f.Name] = f
	}
	return &clone, nil
}
