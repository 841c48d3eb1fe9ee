package object

import (
	"fmt"
	"strings"
	"sync"
)

// Symbol is an interned identifier. Two names that are equal
// case-insensitively intern to the same Symbol, so pointer equality is
// symbol equality. The id orders and hashes symbols.
type Symbol struct {
	Name string
	id   uint64

	// Compound symbols ("a:b:c") are pre-split at intern time for
	// multiple-assignment destructuring. BindRestToLast reports whether
	// excess source values are gathered into the last component; a
	// trailing empty segment ("a:b:c:") turns it off.
	ComponentSymbols []*Symbol
	BindRestToLast   bool
}

func (s *Symbol) Type() ObjectType { return SYMBOL_OBJ }
func (s *Symbol) Inspect() string  { return s.Name }
func (s *Symbol) ID() uint64       { return s.id }
func (s *Symbol) MapKey() MapKey   { return MapKey{Type: s.Type(), Value: s.id} }

// IsCompound reports whether the symbol decomposes into components.
func (s *Symbol) IsCompound() bool { return len(s.ComponentSymbols) > 1 }

var (
	symbolMu    sync.Mutex
	symbolTable = map[string]*Symbol{}
	nextSymbol  uint64
)

// Intern returns the unique Symbol for name, creating it on first use.
// Lookup is case-insensitive; the first-seen spelling is kept.
func Intern(name string) *Symbol {
	key := strings.ToLower(name)

	symbolMu.Lock()
	defer symbolMu.Unlock()

	if sym, ok := symbolTable[key]; ok {
		return sym
	}
	sym := newSymbolLocked(name, key)

	// Compound names are decomposed after the symbol itself is
	// registered so "a" inside "a:b" resolves to a real entry.
	if strings.Contains(name, ":") && len(name) > 1 {
		parts := strings.Split(name, ":")
		bindRest := true
		if parts[len(parts)-1] == "" {
			parts = parts[:len(parts)-1]
			bindRest = false
		}
		if len(parts) > 1 {
			components := make([]*Symbol, 0, len(parts))
			for _, part := range parts {
				if part == "" {
					continue
				}
				partKey := strings.ToLower(part)
				comp, ok := symbolTable[partKey]
				if !ok {
					comp = newSymbolLocked(part, partKey)
				}
				components = append(components, comp)
			}
			sym.ComponentSymbols = components
			sym.BindRestToLast = bindRest
		}
	}
	return sym
}

func newSymbolLocked(name, key string) *Symbol {
	nextSymbol++
	sym := &Symbol{Name: name, id: nextSymbol, BindRestToLast: true}
	symbolTable[key] = sym
	return sym
}

// LookupSymbol returns the interned symbol for name, or nil. Never creates.
func LookupSymbol(name string) *Symbol {
	symbolMu.Lock()
	defer symbolMu.Unlock()
	return symbolTable[strings.ToLower(name)]
}

// FreshSymbol returns a symbol with a generated, guaranteed-unique name.
// Used for hygienic macro expansion; the name is not meant to be typed.
func FreshSymbol() *Symbol {
	symbolMu.Lock()
	defer symbolMu.Unlock()
	nextSymbol++
	name := fmt.Sprintf("g#%d", nextSymbol)
	sym := &Symbol{Name: name, id: nextSymbol, BindRestToLast: true}
	symbolTable[strings.ToLower(name)] = sym
	return sym
}
