package lang

import "strings"

// Override key suffixes understood by [Merge].
const (
	SuffixAdd = ":add"
	SuffixDel = ":del"
)

// Merge layers overrides onto base and returns the result, which shares
// storage with base. Callers that must keep base intact pass a [Attributes.Clone].
//
// Overrides are applied in order:
//
//   - key:add appends the override value to the value of key, separated by a
//     space, or sets key when it is absent.
//   - key:del removes every whitespace-delimited word of the override value
//     from the value of key wherever it occurs, then collapses whitespace.
//   - any other key replaces the value of key in place, or is appended.
//
// The merged value of key:add and key:del is quoted when either side was.
func Merge(base, overrides Attributes) Attributes {
	for _, o := range overrides {
		switch {
		case !o.Bare && strings.HasSuffix(o.Key, SuffixAdd):
			base = mergeAdd(base, strings.TrimSuffix(o.Key, SuffixAdd), o.Value)

		case !o.Bare && strings.HasSuffix(o.Key, SuffixDel):
			base = mergeDel(base, strings.TrimSuffix(o.Key, SuffixDel), o.Value)

		case o.Bare:
			base = base.SetBare(o.Key)

		default:
			base = base.Set(o.Key, o.Value)
		}
	}

	return base
}

func mergeAdd(base Attributes, key, value string) Attributes {
	cur, ok := base.Get(key)
	if !ok {
		return base.Set(key, value)
	}

	words := make([]string, 0, 2)

	for _, s := range []string{Unquote(cur), Unquote(value)} {
		if s != "" {
			words = append(words, s)
		}
	}

	return base.Set(key, requote(strings.Join(words, " "), cur, value))
}

func mergeDel(base Attributes, key, value string) Attributes {
	cur, ok := base.Get(key)
	if !ok {
		return base
	}

	// Removal is by substring, not by whole word.
	s := Unquote(cur)
	for _, word := range strings.Fields(Unquote(value)) {
		s = strings.ReplaceAll(s, word, "")
	}

	s = strings.Join(strings.Fields(s), " ")

	return base.Set(key, requote(s, cur, value))
}

// requote wraps s in the quote character of the first quoted source value.
func requote(s string, from ...string) string {
	for _, v := range from {
		if isQuoted(v) {
			q := v[:1]

			return q + s + q
		}
	}

	return s
}
