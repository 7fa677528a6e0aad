package lang

import (
	"context"
	"errors"
	"slices"
	"strings"
	"testing"
)

func TestParse_Tokens(t *testing.T) {
	tests := []struct {
		name   string
		tokens []Token
		kinds  []Kind
	}{
		{
			name:   "yield open-close",
			tokens: []Token{{Kind: TokenOpenClose, Name: "yield"}},
			kinds:  []Kind{KindYield},
		},
		{
			name:   "command open-close",
			tokens: []Token{{Kind: TokenOpenClose, Name: "hmm"}},
			kinds:  []Kind{KindCommand},
		},
		{
			name: "import and block",
			tokens: []Token{
				{Kind: TokenOpenClose, Name: "import", Attrs: ParseAttrs(`module="a"`)},
				{Kind: TokenOpen, Name: "block", Attrs: ParseAttrs(`name="b"`)},
				{Kind: TokenClose, Name: "block"},
			},
			kinds: []Kind{KindImport, KindBlock},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			root, err := Parse(context.Background(), tt.tokens)
			if err != nil {
				t.Fatalf("Parse() error: %v", err)
			}

			var kinds []Kind
			for n := range root.Nodes() {
				kinds = append(kinds, n.Kind)
			}

			if !slices.Equal(kinds, tt.kinds) {
				t.Errorf("kinds = %v, want %v", kinds, tt.kinds)
			}
		})
	}
}

func TestParse_ShortcutBlock(t *testing.T) {
	tokens := []Token{{
		Kind:  TokenOpenClose,
		Name:  "box",
		Attrs: ParseAttrs(`:title="hmm" class="x"`),
	}}

	root, err := Parse(context.Background(), tokens)
	if err != nil {
		t.Fatalf("Parse() error: %v", err)
	}

	if len(root.Children) != 1 {
		t.Fatalf("root has %d children, want 1", len(root.Children))
	}

	box := root.Children[0].(*Node)
	if got, want := box.Attrs.String(), ` class="x"`; got != want {
		t.Errorf("command attrs = %q, want %q", got, want)
	}

	if len(box.Children) != 1 {
		t.Fatalf("command has %d children, want 1", len(box.Children))
	}

	block, ok := box.Children[0].(*Node)
	if !ok || block.Kind != KindBlock {
		t.Fatalf("child = %#v, want block", box.Children[0])
	}

	if block.Name != "box.title" {
		t.Errorf("block name = %q, want box.title", block.Name)
	}

	if len(block.Children) != 1 || block.Children[0] != Text("hmm") {
		t.Errorf("block children = %#v, want [hmm]", block.Children)
	}
}

func TestParse_NestedDefs(t *testing.T) {
	tokens := []Token{
		{Kind: TokenOpen, Name: "def", Attrs: ParseAttrs(`name="foo"`)},
		{Kind: TokenOpenClose, Name: "yield"},
		{Kind: TokenOpen, Name: "def", Attrs: ParseAttrs(`name="bar"`)},
		{Kind: TokenOpenClose, Name: "yield"},
		{Kind: TokenOpen, Name: "def", Attrs: ParseAttrs(`name="boo"`)},
		{Kind: TokenClose, Name: "def"},
		{Kind: TokenOpenClose, Name: "yield"},
		{Kind: TokenClose, Name: "def"},
		{Kind: TokenOpenClose, Name: "yield"},
		{Kind: TokenClose, Name: "def"},
		{Kind: TokenOpenClose, Name: "foo"},
	}

	root, err := Parse(context.Background(), tokens)
	if err != nil {
		t.Fatalf("Parse() error: %v", err)
	}

	if len(root.Children) != 2 {
		t.Fatalf("root has %d children, want 2", len(root.Children))
	}

	foo := root.Children[0].(*Node)
	if foo.Kind != KindDef || foo.Name != "foo" {
		t.Errorf("first child = %s, want <def foo>", foo)
	}

	if len(foo.Children) != 3 {
		t.Fatalf("foo has %d children, want 3", len(foo.Children))
	}

	bar := foo.Children[1].(*Node)
	if len(bar.Children) != 3 {
		t.Errorf("bar has %d children, want 3", len(bar.Children))
	}
}

func TestParseString_Unbalanced(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		pos     int
		stack   []string
		message string
	}{
		{
			name:    "extra close",
			input:   `</@foo>`,
			pos:     0,
			stack:   []string{"<root *root>"},
			message: "line 1, column 1",
		},
		{
			name:    "extra close after content",
			input:   "<@a></@a>\n<p>x</p></@b>",
			pos:     18,
			stack:   []string{"<root *root>"},
			message: "line 2, column 9",
		},
		{
			name:    "missing close",
			input:   `<@foo><@def name="bar">`,
			pos:     -1,
			stack:   []string{"<root *root>", "<command foo>", "<def bar>"},
			message: "at end of input",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseString(context.Background(), tt.input)
			if err == nil {
				t.Fatal("expected error")
			}

			if !errors.Is(err, ErrUnmatchedTag) {
				t.Errorf("errors.Is(err, ErrUnmatchedTag) = false for %v", err)
			}

			var pe *ParseError
			if !errors.As(err, &pe) {
				t.Fatalf("error %T is not *ParseError", err)
			}

			if pe.Pos != tt.pos {
				t.Errorf("Pos = %d, want %d", pe.Pos, tt.pos)
			}

			if !slices.Equal(pe.Stack, tt.stack) {
				t.Errorf("Stack = %q, want %q", pe.Stack, tt.stack)
			}

			if !strings.Contains(err.Error(), tt.message) {
				t.Errorf("error %q does not mention %q", err.Error(), tt.message)
			}
		})
	}
}

func TestParseString_Balanced(t *testing.T) {
	inputs := []string{
		``,
		`plain text`,
		`<@a/>`,
		`<@a></@a>`,
		`<@a><@b><@c/></@b></@a>`,
		`<div><@def name="x"><p><@yield/></p></@def></div><@x>y</@x>`,
	}

	for _, input := range inputs {
		t.Run(input, func(t *testing.T) {
			root, err := ParseString(context.Background(), input)
			if err != nil {
				t.Fatalf("ParseString(%q) error: %v", input, err)
			}

			if root.Kind != KindRoot || root.Name != RootName {
				t.Errorf("root = %s", root)
			}
		})
	}
}

func TestParseString_GensymNames(t *testing.T) {
	root, err := ParseString(
		context.Background(),
		`<@def>a</@def><@def>b</@def><@yield/>`,
	)
	if err != nil {
		t.Fatalf("ParseString() error: %v", err)
	}

	var names []string
	for n := range root.Nodes() {
		names = append(names, n.Name)
	}

	want := []string{"def0", "def1", "yield0"}
	if !slices.Equal(names, want) {
		t.Errorf("names = %q, want %q", names, want)
	}
}

func TestParseString_DefAlias(t *testing.T) {
	input := `<@define name="foo">x</@define><@def name="bar">y</@def>`

	root, err := ParseString(context.Background(), input, WithDefAlias("define"))
	if err != nil {
		t.Fatalf("ParseString() error: %v", err)
	}

	for n := range root.Nodes() {
		if n.Kind != KindDef {
			t.Errorf("%s: kind = %s, want def", n.Name, n.Kind)
		}
	}

	root, err = ParseString(context.Background(), input)
	if err != nil {
		t.Fatalf("ParseString() error: %v", err)
	}

	first := root.Children[0].(*Node)
	if first.Kind != KindCommand {
		t.Errorf("without alias kind = %s, want command", first.Kind)
	}
}

func TestParseString_Prefix(t *testing.T) {
	root, err := ParseString(
		context.Background(),
		`<pp:def name="a">x</pp:def><@a/>`,
		WithPrefix("pp:"),
	)
	if err != nil {
		t.Fatalf("ParseString() error: %v", err)
	}

	if len(root.Children) != 2 {
		t.Fatalf("root has %d children, want 2", len(root.Children))
	}

	if root.Children[1] != Text(`<@a/>`) {
		t.Errorf("second child = %#v, want text", root.Children[1])
	}
}

func TestReservedTags(t *testing.T) {
	got := ReservedTags(WithDefAlias("define"))
	want := []string{"block", "def", "define", "import", "yield"}

	if !slices.Equal(got, want) {
		t.Errorf("ReservedTags() = %q, want %q", got, want)
	}
}
