package bctx

import "github.com/binspecgo/binspec/descriptor"

// Get/Set/Append are the per-field context-engine annotations:
// Get seeds a field's value from the shared Context before the field's own
// phase pipeline runs (so a controller's count/size path expression, or the
// field itself, can reference it); Set and Append push the field's final
// value back into the Context after it is read.

type getRecord struct {
	Key    string
	Def    any
	HasDef bool
}

type setRecord struct{ Key string }

type appendRecord struct{ Key string }

// Get looks up key in the context and fails the parse if it is missing.
func Get(key string) descriptor.FieldOption {
	return func(f *descriptor.FieldDescriptor) {
		descriptor.AddAnnotation(f, descriptor.KindContextGet, "CtxGet", &getRecord{Key: key})
	}
}

// GetDefault looks up key, falling back to def when the key is absent.
func GetDefault(key string, def any) descriptor.FieldOption {
	return func(f *descriptor.FieldDescriptor) {
		descriptor.AddAnnotation(f, descriptor.KindContextGet, "CtxGet", &getRecord{Key: key, Def: def, HasDef: true})
	}
}

// Set writes the field's value into the context at key after it is read.
func Set(key string) descriptor.FieldOption {
	return func(f *descriptor.FieldDescriptor) {
		descriptor.AddAnnotation(f, descriptor.KindContextSet, "CtxSet", &setRecord{Key: key})
	}
}

// Append pushes/concatenates the field's value onto the list stored at key.
func Append(key string) descriptor.FieldOption {
	return func(f *descriptor.FieldDescriptor) {
		descriptor.AddAnnotation(f, descriptor.KindContextAppend, "CtxAppend", &appendRecord{Key: key})
	}
}

// RunGet seeds inst's field named f.Name from every attached Get record, in
// attachment order (the last one wins), before the field's descriptor is
// resolved.
func RunGet(f *descriptor.FieldDescriptor, g *Context, inst *descriptor.Instance) error {
	for _, ar := range f.Records(descriptor.KindContextGet) {
		rec, ok := ar.Payload.(*getRecord)
		if !ok {
			continue
		}
		v, err := g.GetOrDefault(rec.Key, rec.Def, rec.HasDef)
		if err != nil {
			return err
		}
		inst.Set(f.Name, v)
	}
	return nil
}

// RunSet pushes inst's field named f.Name into the context for every
// attached Set record, once the field has a value.
func RunSet(f *descriptor.FieldDescriptor, g *Context, inst *descriptor.Instance) {
	if !f.HasKind(descriptor.KindContextSet) {
		return
	}
	v, ok := inst.Get(f.Name)
	if !ok {
		return
	}
	for _, ar := range f.Records(descriptor.KindContextSet) {
		if rec, ok := ar.Payload.(*setRecord); ok {
			g.Set(rec.Key, v)
		}
	}
}

// RunAppend appends inst's field named f.Name into the context for every
// attached Append record.
func RunAppend(f *descriptor.FieldDescriptor, g *Context, inst *descriptor.Instance) {
	if !f.HasKind(descriptor.KindContextAppend) {
		return
	}
	v, ok := inst.Get(f.Name)
	if !ok {
		return
	}
	for _, ar := range f.Records(descriptor.KindContextAppend) {
		if rec, ok := ar.Payload.(*appendRecord); ok {
			g.Append(rec.Key, v)
		}
	}
}
