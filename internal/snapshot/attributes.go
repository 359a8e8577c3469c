package snapshot

import (
	"fmt"
	"sort"
)

// Attributes is an ordered field map describing one observed entity.
//
// Values are nil, a scalar (string, bool, int64, uint64, float64) or a
// nested *Attributes. Insertion order is kept for rendering; equality
// ignores it. Collectors build an Attributes once and never touch it again.
type Attributes struct {
	keys []string
	vals map[string]any
}

// NewAttributes returns an empty map.
func NewAttributes() *Attributes {
	return &Attributes{vals: map[string]any{}}
}

// FromMap builds Attributes from a plain map with keys in sorted order.
// Nested map[string]any values become nested Attributes.
func FromMap(m map[string]any) *Attributes {
	a := NewAttributes()
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		a.Set(k, m[k])
	}
	return a
}

// Set stores v under key and returns a for chaining. A key set twice keeps
// its first position.
func (a *Attributes) Set(key string, v any) *Attributes {
	if a.vals == nil {
		a.vals = map[string]any{}
	}
	if _, ok := a.vals[key]; !ok {
		a.keys = append(a.keys, key)
	}
	a.vals[key] = normalize(v)
	return a
}

// Get returns the value for key.
func (a *Attributes) Get(key string) (any, bool) {
	if a == nil {
		return nil, false
	}
	v, ok := a.vals[key]
	return v, ok
}

// Keys returns the field names in insertion order.
func (a *Attributes) Keys() []string {
	if a == nil {
		return nil
	}
	return append([]string(nil), a.keys...)
}

func (a *Attributes) Len() int {
	if a == nil {
		return 0
	}
	return len(a.keys)
}

// Equal reports structural equality regardless of key order.
func (a *Attributes) Equal(b *Attributes) bool {
	if a.Len() != b.Len() {
		return false
	}
	if a.Len() == 0 {
		return true
	}
	for k, av := range a.vals {
		bv, ok := b.vals[k]
		if !ok || !valueEqual(av, bv) {
			return false
		}
	}
	return true
}

func valueEqual(a, b any) bool {
	an, aok := a.(*Attributes)
	bn, bok := b.(*Attributes)
	if aok || bok {
		return aok && bok && an.Equal(bn)
	}
	return a == b
}

func normalize(v any) any {
	switch x := v.(type) {
	case nil:
		return nil
	case string, bool, int64, uint64, float64, *Attributes:
		return x
	case int:
		return int64(x)
	case int8:
		return int64(x)
	case int16:
		return int64(x)
	case int32:
		return int64(x)
	case uint:
		return uint64(x)
	case uint8:
		return uint64(x)
	case uint16:
		return uint64(x)
	case uint32:
		return uint64(x)
	case float32:
		return float64(x)
	case *string:
		if x == nil {
			return nil
		}
		return *x
	case *bool:
		if x == nil {
			return nil
		}
		return *x
	case *int32:
		if x == nil {
			return nil
		}
		return int64(*x)
	case map[string]any:
		return FromMap(x)
	case map[string]string:
		m := make(map[string]any, len(x))
		for k, s := range x {
			m[k] = s
		}
		return FromMap(m)
	case fmt.Stringer:
		return x.String()
	default:
		return fmt.Sprint(x)
	}
}
