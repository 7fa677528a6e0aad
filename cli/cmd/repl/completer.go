package repl

import (
	"strings"
	"unicode/utf8"

	"github.com/charmbracelet/lipgloss"
	"github.com/sahilm/fuzzy"

	"github.com/ardnew/htmlpp/lang"
)

// ctrlCommands are the available control-mode commands.
var ctrlCommands = []string{
	"help", "list", "modules", "listing", "edit", "reset", "clear", "quit",
}

// isWordBoundary reports whether r delimits a word for completion. Colons
// and dots are not boundaries since they join aliases, definitions, and
// block names (ui:card, card.title).
func isWordBoundary(r rune) bool {
	switch r {
	case ' ', '\t', '\n', '<', '>', '/', '=', '"', '\'':
		return true
	}

	return false
}

// wordBounds returns the word at the cursor and its byte boundaries within
// input. The word is empty when the cursor sits on a boundary.
func wordBounds(input string, cursor int) (word string, start, end int) {
	cursor = min(cursor, len(input))

	start = cursor

	for start > 0 {
		r, size := utf8.DecodeLastRuneInString(input[:start])
		if isWordBoundary(r) {
			break
		}

		start -= size
	}

	end = cursor

	for end < len(input) {
		r, size := utf8.DecodeRuneInString(input[end:])
		if isWordBoundary(r) {
			break
		}

		end += size
	}

	return input[start:end], start, end
}

// tagName reports whether the word starting at start is the name of a start
// or end tag, and if so returns the byte offset of the name after prefix.
func tagName(input string, start int, prefix string) (int, bool) {
	if !strings.HasPrefix(input[start:], prefix) {
		return 0, false
	}

	before := strings.TrimSuffix(input[:start], "/")
	if !strings.HasSuffix(before, "<") {
		return 0, false
	}

	return start + len(prefix), true
}

// attrName reports whether the word starting at start is an attribute name
// inside the open command tag call.
func attrName(input string, start int, call tagCall) bool {
	if !call.inTag || start == 0 {
		return false
	}

	r, _ := utf8.DecodeLastRuneInString(input[:start])

	return r == ' ' || r == '\t' || r == '\n'
}

// computeMatches calculates the fuzzy match results for the word at the
// cursor. It returns the matches (ranked best-first), the candidate list, and
// the word boundaries. A tag name with nothing typed after the prefix lists
// every candidate so the user can browse.
func (m model) computeMatches() (
	matches fuzzy.Matches,
	candidates []string,
	wordStart, wordEnd int,
) {
	input := m.input.Value()
	cursor := m.input.Position()

	word, wordStart, wordEnd := wordBounds(input, cursor)

	browse := false

	if m.mode == modeCtrl {
		candidates, browse = m.ctrlCandidates(input, wordStart)
	} else {
		prefix := m.session.Prefix()

		if at, ok := tagName(input, wordStart, prefix); ok {
			word = input[at:wordEnd]
			wordStart = at
			browse = true
			candidates = append(m.session.Reserved(), m.session.Commands(m.ctxFunc())...)
		} else if call := detectTag(input, cursor, prefix); attrName(input, wordStart, call) {
			candidates = m.attrCandidates(call.name)
		}
	}

	if len(candidates) == 0 || (word == "" && !browse) {
		return nil, nil, wordStart, wordEnd
	}

	if word == "" {
		matches = make(fuzzy.Matches, len(candidates))
		for i, c := range candidates {
			matches[i] = fuzzy.Match{Str: c, Index: i}
		}

		return matches, candidates, wordStart, wordEnd
	}

	return fuzzy.Find(word, candidates), candidates, wordStart, wordEnd
}

// ctrlCandidates returns the completions for the control-mode word starting
// at start. The first word completes commands and the argument of listing
// completes cached module names.
func (m model) ctrlCandidates(input string, start int) ([]string, bool) {
	fields := strings.Fields(input[:start])

	switch {
	case len(fields) == 0:
		return ctrlCommands, false

	case len(fields) == 1 && fields[0] == "listing":
		return m.session.Modules(), true

	default:
		return nil, false
	}
}

// attrCandidates returns the default attribute names of command.
func (m model) attrCandidates(command string) []string {
	defaults, _, ok := m.session.Signature(m.ctxFunc(), command)
	if !ok {
		return nil
	}

	var names []string

	for _, attr := range defaults {
		if !attr.Bare {
			names = append(names, attr.Key)
		}
	}

	return names
}

// renderCandidateBar builds the single-line completion bar, ellipsized to fit
// within the given terminal width. Each candidate is rendered with its matched
// characters highlighted. The selected candidate (when tabbing) uses the
// selected style.
func renderCandidateBar(
	matches fuzzy.Matches,
	suggIdx int,
	tabActive bool,
	width int,
) string {
	if len(matches) == 0 || width <= 0 {
		return ""
	}

	const sep = "  "

	sepWidth := lipgloss.Width(sep)
	ellipsis := hintStyle.Render("...")
	ellipsisWidth := lipgloss.Width(ellipsis)

	var b strings.Builder

	used := 0

	for i, match := range matches {
		rendered := renderCandidate(match, tabActive && i == suggIdx)

		entryWidth := lipgloss.Width(rendered)
		if i > 0 {
			entryWidth += sepWidth
		}

		if i > 0 && used+entryWidth+ellipsisWidth > width {
			b.WriteString(sep)
			b.WriteString(ellipsis)

			break
		}

		if i > 0 {
			b.WriteString(sep)
		}

		b.WriteString(rendered)

		used += entryWidth
	}

	return b.String()
}

// renderCandidate renders a single candidate with matched characters
// highlighted.
func renderCandidate(match fuzzy.Match, selected bool) string {
	base, highlight := suggestionStyle, matchStyle
	if selected {
		base, highlight = selectedStyle, selectedMatchStyle
	}

	matched := make(map[int]bool, len(match.MatchedIndexes))
	for _, idx := range match.MatchedIndexes {
		matched[idx] = true
	}

	var b strings.Builder

	for i, r := range match.Str {
		if matched[i] {
			b.WriteString(highlight.Render(string(r)))
		} else {
			b.WriteString(base.Render(string(r)))
		}
	}

	return b.String()
}

// formatPreview summarizes a definition by its default attributes and the
// blocks it yields.
func formatPreview(defaults lang.Attributes, yields []string) string {
	var parts []string

	if defaults.Len() > 0 {
		parts = append(parts, strings.TrimSpace(defaults.String()))
	}

	if len(yields) > 0 {
		parts = append(parts, "{"+strings.Join(yields, " ")+"}")
	}

	return strings.Join(parts, " ")
}
