package payload

import (
	"strconv"
	"strings"
)

// Document is a raw provider JSON object. The provider's schema varies per
// sport, so everything downstream of extraction treats it as opaque and only
// the lookup helpers below know how to reach into it.
type Document map[string]any

// String returns the string value at key. The provider substitutes an empty
// object for fields it has no data for, so a map value reads as absent.
func (d Document) String(key string) (string, bool) {
	v, ok := d[key]
	if !ok {
		return "", false
	}
	if _, isMap := v.(map[string]any); isMap {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}

// Int returns the integer value at key, accepting the number encodings the
// provider actually emits (JSON numbers and numeric strings).
func (d Document) Int(key string) (int, bool) {
	v, ok := d[key]
	if !ok {
		return 0, false
	}
	return toInt(v)
}

// StringAt resolves a dotted path ("score.overtime") to a string value.
func (d Document) StringAt(path string) (string, bool) {
	doc, key, ok := d.resolve(path)
	if !ok {
		return "", false
	}
	return doc.String(key)
}

// IntAt resolves a dotted path ("score.visitor") to an integer value.
func (d Document) IntAt(path string) (int, bool) {
	doc, key, ok := d.resolve(path)
	if !ok {
		return 0, false
	}
	return doc.Int(key)
}

// Map returns the nested object at key, or nil if missing or not an object.
func (d Document) Map(key string) Document {
	if v, ok := d[key]; ok {
		if m, ok := v.(map[string]any); ok {
			return Document(m)
		}
	}
	return nil
}

// MapAt resolves a dotted path to a nested object.
func (d Document) MapAt(path string) Document {
	doc, key, ok := d.resolve(path)
	if !ok {
		return nil
	}
	return doc.Map(key)
}

// Values returns the entries of a map-shaped collection at key. The provider
// encodes lists as objects keyed by ordinal ("1", "2", ...), so this is the
// only way it ever ships more than one of something.
func (d Document) Values(key string) []Document {
	m := d.Map(key)
	if m == nil {
		return nil
	}
	out := make([]Document, 0, len(m))
	for _, v := range m {
		if entry, ok := v.(map[string]any); ok {
			out = append(out, Document(entry))
		}
	}
	return out
}

// ValuesAt resolves a dotted path to a map-shaped collection. Returns nil when
// the path is missing entirely, distinct from an empty (but present) collection.
func (d Document) ValuesAt(path string) []Document {
	doc, key, ok := d.resolve(path)
	if !ok {
		return nil
	}
	if doc.Map(key) == nil {
		return nil
	}
	values := doc.Values(key)
	if values == nil {
		values = []Document{}
	}
	return values
}

// resolve walks all but the last segment of a dotted path.
func (d Document) resolve(path string) (Document, string, bool) {
	segments := strings.Split(path, ".")
	doc := d
	for _, seg := range segments[:len(segments)-1] {
		doc = doc.Map(seg)
		if doc == nil {
			return nil, "", false
		}
	}
	return doc, segments[len(segments)-1], true
}

// AsInt coerces a raw JSON value to an integer, accepting the encodings the
// provider mixes freely (numbers, numeric strings).
func AsInt(v any) (int, bool) {
	return toInt(v)
}

func toInt(v any) (int, bool) {
	switch val := v.(type) {
	case float64:
		return int(val), true
	case int:
		return val, true
	case string:
		i, err := strconv.Atoi(strings.TrimSpace(val))
		if err != nil {
			return 0, false
		}
		return i, true
	default:
		return 0, false
	}
}
