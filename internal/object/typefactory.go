package object

import "fmt"

// TypeFactory is the pluggable capability backing deftype, definterface
// and defenum. The core only sees opaque handles; hosts may substitute a
// richer implementation.
type TypeFactory interface {
	Define(name, kind string, base *TypeHandle, interfaces []*TypeHandle,
		members map[*Symbol]Object, variants []*Symbol) (*TypeHandle, error)
	Lookup(name string) (*TypeHandle, bool)
}

// mapTypeFactory is the default implementation: handles with plain method
// tables mapping symbols to closures.
type mapTypeFactory struct {
	types map[string]*TypeHandle
}

func NewMapTypeFactory() TypeFactory {
	return &mapTypeFactory{types: map[string]*TypeHandle{}}
}

func (f *mapTypeFactory) Define(name, kind string, base *TypeHandle, interfaces []*TypeHandle,
	members map[*Symbol]Object, variants []*Symbol) (*TypeHandle, error) {
	if _, exists := f.types[name]; exists {
		return nil, fmt.Errorf("type `%s` is already defined", name)
	}
	if members == nil {
		members = map[*Symbol]Object{}
	}
	th := &TypeHandle{
		Name:       name,
		Kind:       kind,
		Base:       base,
		Interfaces: interfaces,
		Members:    members,
		Variants:   variants,
	}
	f.types[name] = th
	return th, nil
}

func (f *mapTypeFactory) Lookup(name string) (*TypeHandle, bool) {
	th, ok := f.types[name]
	return th, ok
}
