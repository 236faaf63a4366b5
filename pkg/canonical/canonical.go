package canonical

import (
	"strconv"
	"strings"
)

// Separator joins segments of the signature base. Values are not escaped:
// a literal pipe inside a value is indistinguishable from a field boundary.
// That is a property of the gateway protocol, not something to fix here.
const Separator = "|"

// OptionalPrefix marks an optional field in the textual order format
// consumed from the gateway documentation (e.g. "?createdDate").
const OptionalPrefix = "?"

// FieldSpec declares which value occupies a position of the signature base.
// Path is a dot-separated walk through nested maps. Optional fields that are
// absent from the data are elided entirely; required fields that are absent
// still occupy a position as an empty segment. The gateway's verifier
// depends on exactly this asymmetry.
type FieldSpec struct {
	Path     string
	Optional bool
}

// ParseFieldSpec parses the textual spec format ("?createdDate",
// "redirect.url") into a structured FieldSpec.
func ParseFieldSpec(spec string) FieldSpec {
	if strings.HasPrefix(spec, OptionalPrefix) {
		return FieldSpec{Path: spec[len(OptionalPrefix):], Optional: true}
	}
	return FieldSpec{Path: spec}
}

// ParseOrder parses a documented field order into FieldSpecs.
func ParseOrder(specs []string) []FieldSpec {
	out := make([]FieldSpec, 0, len(specs))
	for _, s := range specs {
		out = append(out, ParseFieldSpec(s))
	}
	return out
}

// Segments flattens a value depth-first in its own stored order.
// Scalars produce one segment each: booleans the literals "true"/"false",
// numbers their decimal text, null and the empty string an empty segment
// that still occupies a position. Nested maps and lists are spliced in
// place, their children's segments replacing the parent's single position.
func Segments(v Value) []string {
	switch t := v.(type) {
	case Map:
		var out []string
		for _, f := range t {
			out = append(out, Segments(f.Value)...)
		}
		return out
	case List:
		var out []string
		for _, el := range t {
			out = append(out, Segments(el)...)
		}
		return out
	default:
		return []string{scalarText(v)}
	}
}

// Linearize produces the pipe-joined canonical string of a value.
func Linearize(v Value) string {
	return strings.Join(Segments(v), Separator)
}

func scalarText(v Value) string {
	switch t := v.(type) {
	case String:
		return string(t)
	case Int:
		return strconv.FormatInt(int64(t), 10)
	case Float:
		return strconv.FormatFloat(float64(t), 'f', -1, 64)
	case Bool:
		if t {
			return "true"
		}
		return "false"
	case Null:
		return ""
	}
	return ""
}

// ResolveOrdered resolves an explicit ordered field list against data and
// returns the segments of the signature base. Unlike Linearize, the order
// here is dictated by the remote party's wire format, not by the data:
// responses must be replayable exactly, including gaps for optional fields.
//
// A path that lands on a nested map with no remaining segments expands the
// map's children in their own stored order. Specifying only a parent path
// of values that need a longer path selects nothing.
func ResolveOrdered(data Map, specs []FieldSpec) []string {
	segments := make([]string, 0, len(specs))
	for _, spec := range specs {
		v, found := resolvePath(data, spec.Path)
		if !found {
			if spec.Optional {
				continue
			}
			segments = append(segments, "")
			continue
		}
		segments = append(segments, Segments(v)...)
	}
	return segments
}

// ResolveOrderedString is ResolveOrdered joined into the canonical string.
func ResolveOrderedString(data Map, specs []FieldSpec) string {
	return strings.Join(ResolveOrdered(data, specs), Separator)
}

func resolvePath(data Map, path string) (Value, bool) {
	parts := strings.Split(path, ".")
	var current Value = data
	for _, part := range parts {
		m, ok := current.(Map)
		if !ok {
			return nil, false
		}
		v, ok := m.Get(part)
		if !ok {
			return nil, false
		}
		current = v
	}
	return current, true
}

// FilterEmpty removes entries whose value is null or the empty string.
// Falsy-but-present values (0, "0", false) are kept: a zero amount is data,
// an unset optional field is not, and the gateway rejects requests carrying
// keys with no value.
func FilterEmpty(m Map) Map {
	out := make(Map, 0, len(m))
	for _, f := range m {
		switch t := f.Value.(type) {
		case Null:
			continue
		case String:
			if t == "" {
				continue
			}
		}
		out = append(out, f)
	}
	return out
}
