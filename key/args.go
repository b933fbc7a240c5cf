package key

// Kwarg is one keyword argument of a call.
type Kwarg struct {
	Name  string
	Value any
}

// Args carries the arguments of one call: positional values in order and
// keyword values in insertion order. Keyword order is significant for
// cache keys, exactly as it would be for an ordered mapping.
type Args struct {
	Positional []any
	Keyword    []Kwarg
}

// Pos returns Args holding only positional values.
func Pos(v ...any) Args { return Args{Positional: v} }

// With returns a copy of a with the keyword name bound to v.
// An existing binding keeps its position and gets the new value;
// a new name is appended.
func (a Args) With(name string, v any) Args {
	kw := make([]Kwarg, len(a.Keyword), len(a.Keyword)+1)
	copy(kw, a.Keyword)
	for i := range kw {
		if kw[i].Name == name {
			kw[i].Value = v
			return Args{Positional: a.Positional, Keyword: kw}
		}
	}
	return Args{Positional: a.Positional, Keyword: append(kw, Kwarg{Name: name, Value: v})}
}

// Kw looks up a keyword value by name.
func (a Args) Kw(name string) (any, bool) {
	for _, kv := range a.Keyword {
		if kv.Name == name {
			return kv.Value, true
		}
	}
	return nil, false
}
