package lang

import (
	"iter"
	"strings"
)

// Attr is a single tag attribute.
//
// A value attribute keeps the exact surface text of its value, including any
// surrounding quotes. A bare attribute has no value: it is either a boolean
// flag or a run of foreign template syntax riding inside the tag, and its
// entire text is stored in Key.
type Attr struct {
	Key   string
	Value string
	Bare  bool
}

// String returns the surface form of the attribute.
func (a Attr) String() string {
	if a.Bare {
		return a.Key
	}

	return a.Key + "=" + a.Value
}

// Attributes is an ordered attribute mapping.
// Keys are unique; insertion order is preserved and significant.
type Attributes []Attr

// ParseAttrs parses the raw attribute text of a tag.
//
// Tokens are separated by whitespace outside of single- or double-quoted spans.
// A token containing "=" is split at the first "=" into key and value, where
// the value retains its quotes verbatim. Consecutive tokens without "=" are
// joined with single spaces into one bare attribute.
func ParseAttrs(s string) Attributes {
	var (
		attrs Attributes
		bare  []string
	)

	flush := func() {
		if len(bare) > 0 {
			attrs = attrs.SetBare(strings.Join(bare, " "))
			bare = bare[:0]
		}
	}

	for _, tok := range splitQuoted(s) {
		key, value, ok := strings.Cut(tok, "=")
		if !ok {
			bare = append(bare, tok)

			continue
		}

		flush()

		attrs = attrs.Set(key, value)
	}

	flush()

	return attrs
}

// splitQuoted splits s on whitespace that is not enclosed in quotes.
// Quote characters are kept in the returned tokens. An unterminated quote
// extends to the end of the input.
func splitQuoted(s string) []string {
	var (
		tokens []string
		quote  byte
		start  = -1
	)

	for i := 0; i < len(s); i++ {
		c := s[i]

		switch {
		case quote != 0:
			if c == quote {
				quote = 0
			}

		case c == '"' || c == '\'':
			quote = c

			if start < 0 {
				start = i
			}

		case isSpace(c):
			if start >= 0 {
				tokens = append(tokens, s[start:i])
				start = -1
			}

		default:
			if start < 0 {
				start = i
			}
		}
	}

	if start >= 0 {
		tokens = append(tokens, s[start:])
	}

	return tokens
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r' || c == '\f' ||
		c == '\v'
}

// String serializes the attributes back to tag syntax.
// Each attribute is preceded by a single space, so the result can be appended
// directly after a tag name. An empty mapping yields "".
func (a Attributes) String() string {
	if len(a) == 0 {
		return ""
	}

	var b strings.Builder

	for _, attr := range a {
		b.WriteByte(' ')
		b.WriteString(attr.String())
	}

	return b.String()
}

// Len returns the number of attributes.
func (a Attributes) Len() int { return len(a) }

// index returns the position of key, or -1.
func (a Attributes) index(key string) int {
	for i := range a {
		if a[i].Key == key {
			return i
		}
	}

	return -1
}

// Get returns the value of key and whether it is present.
// Bare attributes report an empty value.
func (a Attributes) Get(key string) (string, bool) {
	if i := a.index(key); i >= 0 {
		return a[i].Value, true
	}

	return "", false
}

// Has reports whether key is present.
func (a Attributes) Has(key string) bool { return a.index(key) >= 0 }

// Set replaces the value of key in place, or appends it when absent.
func (a Attributes) Set(key, value string) Attributes {
	if i := a.index(key); i >= 0 {
		a[i] = Attr{Key: key, Value: value}

		return a
	}

	return append(a, Attr{Key: key, Value: value})
}

// SetBare sets key as a bare attribute.
func (a Attributes) SetBare(key string) Attributes {
	if i := a.index(key); i >= 0 {
		a[i] = Attr{Key: key, Bare: true}

		return a
	}

	return append(a, Attr{Key: key, Bare: true})
}

// Delete removes key, preserving the order of the remaining attributes.
func (a Attributes) Delete(key string) Attributes {
	if i := a.index(key); i >= 0 {
		return append(a[:i], a[i+1:]...)
	}

	return a
}

// Clone returns a copy that shares no storage with a.
func (a Attributes) Clone() Attributes {
	if a == nil {
		return nil
	}

	return append(make(Attributes, 0, len(a)), a...)
}

// All returns an iterator over the attributes in order.
func (a Attributes) All() iter.Seq2[string, string] {
	return func(yield func(string, string) bool) {
		for _, attr := range a {
			if !yield(attr.Key, attr.Value) {
				return
			}
		}
	}
}

// ToMap converts the attributes to a map. Bare attributes map to true.
func (a Attributes) ToMap() map[string]any {
	if len(a) == 0 {
		return nil
	}

	m := make(map[string]any, len(a))
	for _, attr := range a {
		if attr.Bare {
			m[attr.Key] = true
		} else {
			m[attr.Key] = attr.Value
		}
	}

	return m
}

// Unquote strips one layer of matching single or double quotes.
func Unquote(v string) string {
	if len(v) >= 2 {
		if q := v[0]; (q == '"' || q == '\'') && v[len(v)-1] == q {
			return v[1 : len(v)-1]
		}
	}

	return v
}

// isQuoted reports whether v is enclosed in matching quotes.
func isQuoted(v string) bool { return Unquote(v) != v }
