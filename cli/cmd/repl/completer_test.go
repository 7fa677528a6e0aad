package repl

import (
	"context"
	"path/filepath"
	"slices"
	"testing"

	"github.com/ardnew/htmlpp/log"
)

func TestWordBounds_TagMarkup(t *testing.T) {
	tests := []struct {
		name      string
		input     string
		cursor    int
		wantWord  string
		wantStart int
		wantEnd   int
	}{
		{"simple", "foo", 3, "foo", 0, 3},
		{"tag_name", "<@bo", 4, "@bo", 1, 4},
		{"end_tag_name", "x</@bo", 6, "@bo", 3, 6},
		{"qualified", "<@ui:ca", 7, "@ui:ca", 1, 7},
		{"block", "<@card.ti", 9, "@card.ti", 1, 9},
		{"attribute", `<@card cl`, 9, "cl", 7, 9},
		{"after_equals", `<@card class=x`, 14, "x", 13, 14},
		{"inside_quotes", `<@card class="ab`, 16, "ab", 14, 16},
		{"empty_at_boundary", "<p ", 3, "", 3, 3},
		{"mid_word", "<@foobar>", 4, "@foobar", 1, 8},
		{"at_start", "foo", 0, "foo", 0, 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			word, start, end := wordBounds(tt.input, tt.cursor)
			if word != tt.wantWord || start != tt.wantStart || end != tt.wantEnd {
				t.Errorf("wordBounds(%q, %d) = (%q, %d, %d), want (%q, %d, %d)",
					tt.input, tt.cursor, word, start, end,
					tt.wantWord, tt.wantStart, tt.wantEnd)
			}
		})
	}
}

func TestTagName(t *testing.T) {
	tests := []struct {
		name   string
		input  string
		start  int
		prefix string
		want   int
		wantOK bool
	}{
		{"start_tag", "<@bo", 1, "@", 2, true},
		{"end_tag", "</@bo", 2, "@", 3, true},
		{"custom_prefix", "<pp:bo", 1, "pp:", 4, true},
		{"plain_html", "<div", 1, "@", 0, false},
		{"no_angle", "a @bo", 2, "@", 0, false},
		{"attribute", "<@x @bo", 4, "@", 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := tagName(tt.input, tt.start, tt.prefix)
			if got != tt.want || ok != tt.wantOK {
				t.Errorf("tagName(%q, %d, %q) = (%d, %v), want (%d, %v)",
					tt.input, tt.start, tt.prefix, got, ok, tt.want, tt.wantOK)
			}
		})
	}
}

func newTestModel(t *testing.T, mode inputMode, input string) model {
	t.Helper()

	s := newSession()
	ctx := context.Background()

	decls := `<@import module="ui.box" alias="b"/><@def name="hello" who="world">hi</@def>`
	if _, err := s.Render(ctx, decls); err != nil {
		t.Fatalf("Render() error: %v", err)
	}

	s.Commands(ctx) // resolves and caches ui.box

	history := NewHistory(filepath.Join(t.TempDir(), baseHistory))

	m := newModel(ctx, s, history, log.Logger{})
	m.mode = mode
	m.input.SetValue(input)
	m.input.SetCursor(len(input))

	return m
}

func TestComputeMatches(t *testing.T) {
	tests := []struct {
		name      string
		mode      inputMode
		input     string
		want      []string // candidates that must be matched
		wantNone  bool
		wantStart int
	}{
		{
			name:      "command after prefix",
			mode:      modeRender,
			input:     "<@hel",
			want:      []string{"hello"},
			wantStart: 2,
		},
		{
			name:      "browse after prefix",
			mode:      modeRender,
			input:     "<p><@",
			want:      []string{"b:box", "def", "hello", "import", "yield"},
			wantStart: 5,
		},
		{
			name:      "qualified command",
			mode:      modeRender,
			input:     "<@b:b",
			want:      []string{"b:box"},
			wantStart: 2,
		},
		{
			name:      "attribute of command",
			mode:      modeRender,
			input:     "<@hello w",
			want:      []string{"who"},
			wantStart: 8,
		},
		{
			name:     "plain text",
			mode:     modeRender,
			input:    "hel",
			wantNone: true,
		},
		{
			name:      "control command",
			mode:      modeCtrl,
			input:     "lis",
			want:      []string{"list", "listing"},
			wantStart: 0,
		},
		{
			name:      "listing module",
			mode:      modeCtrl,
			input:     "listing ",
			want:      []string{"ui.box"},
			wantStart: 8,
		},
		{
			name:     "control empty",
			mode:     modeCtrl,
			input:    "",
			wantNone: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := newTestModel(t, tt.mode, tt.input)

			matches, _, start, _ := m.computeMatches()

			if tt.wantNone {
				if len(matches) != 0 {
					t.Errorf("computeMatches(%q) = %d matches, want none", tt.input, len(matches))
				}

				return
			}

			if start != tt.wantStart {
				t.Errorf("computeMatches(%q) start = %d, want %d", tt.input, start, tt.wantStart)
			}

			var got []string
			for _, match := range matches {
				got = append(got, match.Str)
			}

			for _, w := range tt.want {
				if !slices.Contains(got, w) {
					t.Errorf("computeMatches(%q) = %q, missing %q", tt.input, got, w)
				}
			}
		})
	}
}

func TestCycle(t *testing.T) {
	m := newTestModel(t, modeCtrl, "l")
	refreshMatches(&m, false)

	if len(m.matches) < 2 {
		t.Fatalf("matches = %d, want at least 2", len(m.matches))
	}

	first := m.matches[0].Str

	m = m.cycle(1)
	if got := m.input.Value(); got != first {
		t.Errorf("after Tab input = %q, want %q", got, first)
	}

	last := m.matches[len(m.matches)-1].Str

	m = m.cycle(-1)
	if got := m.input.Value(); got != last {
		t.Errorf("after Shift-Tab input = %q, want %q", got, last)
	}
}
