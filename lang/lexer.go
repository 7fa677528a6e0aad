package lang

import (
	"regexp"
	"strings"
	"sync"
)

// DefaultPrefix is the marker that distinguishes template tags from ordinary
// markup, as in <@tag>.
const DefaultPrefix = "@"

// TokenKind identifies the variant of a [Token].
type TokenKind int

const (
	TokenText      TokenKind = iota // text
	TokenOpen                       // open
	TokenOpenClose                  // open-close
	TokenClose                      // close
)

// String returns the name of the token kind.
func (k TokenKind) String() string {
	switch k {
	case TokenText:
		return "text"
	case TokenOpen:
		return "open"
	case TokenOpenClose:
		return "open-close"
	case TokenClose:
		return "close"
	default:
		return "unknown"
	}
}

// Token is a lexical element of template text.
// Text tokens carry Text; tag tokens carry Name and, unless closing, Attrs.
type Token struct {
	Kind  TokenKind
	Name  string
	Attrs Attributes
	Text  string
	Pos   int // byte offset in the trimmed input
}

// String returns a compact representation used in diagnostics.
func (t Token) String() string {
	switch t.Kind {
	case TokenText:
		return t.Text
	case TokenOpen:
		return "<" + t.Name + t.Attrs.String() + ">"
	case TokenOpenClose:
		return "<" + t.Name + t.Attrs.String() + "/>"
	case TokenClose:
		return "</" + t.Name + ">"
	default:
		return ""
	}
}

// Lexer splits template text into tokens using a single tag pattern.
type Lexer struct {
	prefix  string
	pattern *regexp.Regexp
}

// patterns caches compiled tag patterns by prefix.
var patterns sync.Map

// tagPattern returns the compiled tag pattern for prefix.
//
// Submatches:
//
//	1: "/" for a closing tag
//	2: tag name
//	3: raw attribute text
//	4: "/" for a self-closing tag
func tagPattern(prefix string) *regexp.Regexp {
	if re, ok := patterns.Load(prefix); ok {
		return re.(*regexp.Regexp)
	}

	re := regexp.MustCompile(
		`<(/?)\s*` + regexp.QuoteMeta(prefix) +
			`([a-zA-Z0-9_.:\-]+)` +
			`((?:\s+[^\s>]*[^\s>/])*)` +
			`\s*(/?)>`,
	)

	actual, _ := patterns.LoadOrStore(prefix, re)

	return actual.(*regexp.Regexp)
}

// NewLexer returns a lexer recognizing tags that begin with prefix.
// An empty prefix selects [DefaultPrefix].
func NewLexer(prefix string) *Lexer {
	if prefix == "" {
		prefix = DefaultPrefix
	}

	return &Lexer{prefix: prefix, pattern: tagPattern(prefix)}
}

// Prefix returns the tag marker recognized by l.
func (l *Lexer) Prefix() string { return l.prefix }

// Scan tokenizes text. Leading and trailing whitespace of text is trimmed
// before scanning, and text between tags that is empty or entirely whitespace
// is dropped. Anything not matching the tag pattern is returned as text.
func (l *Lexer) Scan(text string) []Token {
	text = strings.TrimSpace(text)

	var (
		tokens []Token
		end    int
	)

	addText := func(pos int, s string) {
		if strings.TrimSpace(s) != "" {
			tokens = append(tokens, Token{Kind: TokenText, Text: s, Pos: pos})
		}
	}

	for _, m := range l.pattern.FindAllStringSubmatchIndex(text, -1) {
		addText(end, text[end:m[0]])

		tokens = append(tokens, dispatch(text, m))
		end = m[1]
	}

	addText(end, text[end:])

	return tokens
}

// dispatch builds a tag token from the submatch indices of one match.
func dispatch(text string, m []int) Token {
	group := func(n int) string {
		if m[2*n] < 0 {
			return ""
		}

		return text[m[2*n]:m[2*n+1]]
	}

	tok := Token{Name: group(2), Pos: m[0]}

	switch {
	case group(1) != "":
		tok.Kind = TokenClose

		return tok

	case group(4) != "":
		tok.Kind = TokenOpenClose

	default:
		tok.Kind = TokenOpen
	}

	tok.Attrs = ParseAttrs(group(3))

	return tok
}
