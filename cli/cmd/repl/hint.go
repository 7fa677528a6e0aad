package repl

import (
	"strings"
	"unicode"

	"github.com/charmbracelet/lipgloss"

	"github.com/ardnew/htmlpp/lang"
)

// Styles for tag hints.
var (
	signatureStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	signatureNameStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("6")).
				Bold(true)
	currentAttrStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("11")).
				Bold(true)
)

// tagCall is the command start tag enclosing the cursor.
type tagCall struct {
	name  string // command name
	attr  string // attribute key at the cursor, if any
	inTag bool   // true if the cursor is inside an unterminated start tag
}

// detectTag reports the command start tag the cursor is in. The tag begins at
// the last "<"+prefix before the cursor and must not be closed by a '>'
// outside of a quoted attribute value.
func detectTag(input string, cursor int, prefix string) tagCall {
	cursor = min(cursor, len(input))

	open := strings.LastIndex(input[:cursor], "<"+prefix)
	if open < 0 {
		return tagCall{}
	}

	body := input[open+1+len(prefix) : cursor]

	var (
		quote  rune
		fields []string
		field  strings.Builder
	)

	for _, r := range body {
		switch {
		case quote != 0:
			if r == quote {
				quote = 0
			}

		case r == '"' || r == '\'':
			quote = r

		case r == '>':
			return tagCall{}

		case unicode.IsSpace(r):
			fields = append(fields, field.String())
			field.Reset()

			continue
		}

		field.WriteRune(r)
	}

	fields = append(fields, field.String())

	name := strings.TrimSuffix(fields[0], "/")
	if name == "" {
		return tagCall{}
	}

	call := tagCall{name: name, inTag: true}

	if len(fields) > 1 {
		key, _, _ := strings.Cut(fields[len(fields)-1], "=")
		call.attr = key
	}

	return call
}

// renderTagHint renders a command with its default attributes and yielded
// blocks, highlighting the attribute at the cursor.
func renderTagHint(
	name string,
	defaults lang.Attributes,
	yields []string,
	attr string,
) string {
	var b strings.Builder

	b.WriteString(signatureNameStyle.Render(name))

	for _, a := range defaults {
		b.WriteString(" ")

		if !a.Bare && a.Key == attr {
			b.WriteString(currentAttrStyle.Render(a.String()))
		} else {
			b.WriteString(signatureStyle.Render(a.String()))
		}
	}

	if len(yields) > 0 {
		b.WriteString(signatureStyle.Render(" {" + strings.Join(yields, " ") + "}"))
	}

	return b.String()
}
