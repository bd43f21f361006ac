package model

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// FactKind enumerates the observation shapes a probe may produce.
type FactKind string

const (
	KindPresence FactKind = "presence"
	KindString   FactKind = "string"
	KindInt      FactKind = "int"
	KindSet      FactKind = "set"
)

// Fact is a single captured observation about the host or a dependent
// service. Facts are values: build them with the constructors below and
// never mutate them afterwards.
type Fact struct {
	Key     string
	Kind    FactKind
	Present bool
	Str     string
	Int     int64
	Members []string
}

// Presence records whether something exists or is active.
func Presence(key string, present bool) Fact {
	return Fact{Key: key, Kind: KindPresence, Present: present}
}

// String records a scalar string value. An absent value (missing row,
// missing file) is reported with present=false and an empty string.
func String(key, value string, present bool) Fact {
	if !present {
		value = ""
	}
	return Fact{Key: key, Kind: KindString, Present: present, Str: value}
}

// Int records an integer measurement.
func Int(key string, value int64) Fact {
	return Fact{Key: key, Kind: KindInt, Present: true, Int: value}
}

// Set records set membership. Members are copied and sorted so two facts
// about the same set compare equal regardless of discovery order.
func Set(key string, members []string) Fact {
	copied := append([]string(nil), members...)
	sort.Strings(copied)
	return Fact{Key: key, Kind: KindSet, Present: len(copied) > 0, Members: copied}
}

// Has reports whether a set fact contains member.
func (f Fact) Has(member string) bool {
	for _, m := range f.Members {
		if m == member {
			return true
		}
	}
	return false
}

// Value renders the observation without its key.
func (f Fact) Value() string {
	switch f.Kind {
	case KindPresence:
		return strconv.FormatBool(f.Present)
	case KindString:
		if !f.Present {
			return "<absent>"
		}
		return strconv.Quote(f.Str)
	case KindInt:
		return strconv.FormatInt(f.Int, 10)
	case KindSet:
		return "{" + strings.Join(f.Members, ", ") + "}"
	default:
		return "?"
	}
}

// String implements fmt.Stringer as key=value.
func (f Fact) String() string {
	return fmt.Sprintf("%s=%s", f.Key, f.Value())
}

// Equal compares two facts by key, kind and observed value.
func (f Fact) Equal(other Fact) bool {
	if f.Key != other.Key || f.Kind != other.Kind || f.Present != other.Present {
		return false
	}
	if f.Str != other.Str || f.Int != other.Int || len(f.Members) != len(other.Members) {
		return false
	}
	for i := range f.Members {
		if f.Members[i] != other.Members[i] {
			return false
		}
	}
	return true
}

// FactSet is an ordered collection of facts keyed by Fact.Key. Order is the
// order in which facts were added, which is the probe declaration order.
type FactSet struct {
	facts []Fact
	index map[string]int
}

// NewFactSet builds a set from the given facts. Later duplicates replace
// earlier ones in place.
func NewFactSet(facts ...Fact) FactSet {
	var s FactSet
	for _, f := range facts {
		s = s.With(f)
	}
	return s
}

// With returns a copy of the set including f.
func (s FactSet) With(f Fact) FactSet {
	next := FactSet{
		facts: append(make([]Fact, 0, len(s.facts)+1), s.facts...),
		index: make(map[string]int, len(s.facts)+1),
	}
	for k, v := range s.index {
		next.index[k] = v
	}
	if i, ok := next.index[f.Key]; ok {
		next.facts[i] = f
		return next
	}
	next.index[f.Key] = len(next.facts)
	next.facts = append(next.facts, f)
	return next
}

// Merge returns a copy of s with every fact from other added.
func (s FactSet) Merge(other FactSet) FactSet {
	out := s
	for _, f := range other.facts {
		out = out.With(f)
	}
	return out
}

// Get looks a fact up by key.
func (s FactSet) Get(key string) (Fact, bool) {
	i, ok := s.index[key]
	if !ok {
		return Fact{}, false
	}
	return s.facts[i], true
}

// Present is shorthand for a presence or string fact being present.
func (s FactSet) Present(key string) bool {
	f, ok := s.Get(key)
	return ok && f.Present
}

// Str returns the string value of key, or "" when absent.
func (s FactSet) Str(key string) string {
	f, _ := s.Get(key)
	return f.Str
}

// Int returns the integer value of key, or 0 when absent.
func (s FactSet) Int(key string) int64 {
	f, _ := s.Get(key)
	return f.Int
}

// Members returns the members of a set fact.
func (s FactSet) Members(key string) []string {
	f, _ := s.Get(key)
	return append([]string(nil), f.Members...)
}

// All returns the facts in declaration order.
func (s FactSet) All() []Fact {
	return append([]Fact(nil), s.facts...)
}

// Len returns the number of facts.
func (s FactSet) Len() int {
	return len(s.facts)
}

// Strings renders every fact as key=value.
func (s FactSet) Strings() []string {
	out := make([]string, len(s.facts))
	for i, f := range s.facts {
		out[i] = f.String()
	}
	return out
}

// Equal reports whether both sets hold the same facts in the same order.
func (s FactSet) Equal(other FactSet) bool {
	if len(s.facts) != len(other.facts) {
		return false
	}
	for i := range s.facts {
		if !s.facts[i].Equal(other.facts[i]) {
			return false
		}
	}
	return true
}
