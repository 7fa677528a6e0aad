package lang

import (
	"slices"
	"testing"
)

func TestParseAttrs(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  Attributes
	}{
		{
			name:  "empty",
			input: "",
			want:  nil,
		},
		{
			name:  "quoted value keeps quotes",
			input: `foo="bar" `,
			want:  Attributes{{Key: "foo", Value: `"bar"`}},
		},
		{
			name:  "single quotes",
			input: `foo='bar'`,
			want:  Attributes{{Key: "foo", Value: `'bar'`}},
		},
		{
			name:  "unquoted value",
			input: `width=100`,
			want:  Attributes{{Key: "width", Value: "100"}},
		},
		{
			name:  "quoted value with spaces",
			input: `class="a b" id=x`,
			want: Attributes{
				{Key: "class", Value: `"a b"`},
				{Key: "id", Value: "x"},
			},
		},
		{
			name:  "value containing equals",
			input: `href="?a=b"`,
			want:  Attributes{{Key: "href", Value: `"?a=b"`}},
		},
		{
			name:  "boolean flag",
			input: `disabled`,
			want:  Attributes{{Key: "disabled", Bare: true}},
		},
		{
			name:  "foreign fragment after value",
			input: `name="foo" {{bar|boo}}`,
			want: Attributes{
				{Key: "name", Value: `"foo"`},
				{Key: "{{bar|boo}}", Bare: true},
			},
		},
		{
			name: "multi-line foreign fragment",
			input: `
        name="foo"
        {%for i in lines %}
          {{i}}
        {% endfor %}
        `,
			want: Attributes{
				{Key: "name", Value: `"foo"`},
				{Key: "{%for i in lines %} {{i}} {% endfor %}", Bare: true},
			},
		},
		{
			name:  "fragments separated by a value",
			input: `{% if x %} a=1 {% endif %}`,
			want: Attributes{
				{Key: "{% if x %}", Bare: true},
				{Key: "a", Value: "1"},
				{Key: "{% endif %}", Bare: true},
			},
		},
		{
			name:  "duplicate key keeps first position",
			input: `a=1 b=2 a=3`,
			want: Attributes{
				{Key: "a", Value: "3"},
				{Key: "b", Value: "2"},
			},
		},
		{
			name:  "unterminated quote runs to end",
			input: `title="a b`,
			want:  Attributes{{Key: "title", Value: `"a b`}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ParseAttrs(tt.input)
			if !slices.Equal(got, tt.want) {
				t.Errorf("ParseAttrs(%q) = %#v, want %#v", tt.input, got, tt.want)
			}
		})
	}
}

func TestAttributes_String(t *testing.T) {
	tests := []struct {
		name  string
		attrs Attributes
		want  string
	}{
		{
			name:  "empty",
			attrs: nil,
			want:  "",
		},
		{
			name:  "single value",
			attrs: Attributes{{Key: "foo", Value: `"bar"`}},
			want:  ` foo="bar"`,
		},
		{
			name: "value and fragment",
			attrs: Attributes{
				{Key: "name", Value: `"foo"`},
				{Key: "{%for i in lines %} {{i}} {% endfor %}", Bare: true},
			},
			want: ` name="foo" {%for i in lines %} {{i}} {% endfor %}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.attrs.String(); got != tt.want {
				t.Errorf("String() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestAttributes_RoundTrip(t *testing.T) {
	inputs := []string{
		`foo="bar"`,
		`a=1 b='two' c="three four"`,
		`name="x" {{bar|boo}}`,
		`checked`,
		`{% if x %} class="y" {% endif %}`,
	}

	for _, input := range inputs {
		t.Run(input, func(t *testing.T) {
			first := ParseAttrs(input)

			if got := first.String(); got != " "+input {
				t.Errorf("String() = %q, want %q", got, " "+input)
			}

			second := ParseAttrs(first.String())
			if !slices.Equal(first, second) {
				t.Errorf("reparse = %#v, want %#v", second, first)
			}
		})
	}
}

func TestAttributes_Edit(t *testing.T) {
	a := ParseAttrs(`a=1 b=2 c=3`)

	a = a.Set("b", "20")
	if got, want := a.String(), ` a=1 b=20 c=3`; got != want {
		t.Errorf("after Set existing: %q, want %q", got, want)
	}

	a = a.Set("d", "4")
	if got, want := a.String(), ` a=1 b=20 c=3 d=4`; got != want {
		t.Errorf("after Set new: %q, want %q", got, want)
	}

	a = a.Delete("a")
	if got, want := a.String(), ` b=20 c=3 d=4`; got != want {
		t.Errorf("after Delete: %q, want %q", got, want)
	}

	a = a.Delete("missing")
	if a.Len() != 3 {
		t.Errorf("Len() = %d after deleting missing key, want 3", a.Len())
	}

	if v, ok := a.Get("c"); !ok || v != "3" {
		t.Errorf("Get(c) = %q, %v", v, ok)
	}

	if a.Has("a") {
		t.Error("Has(a) after Delete")
	}
}

func TestAttributes_CloneIsIndependent(t *testing.T) {
	a := ParseAttrs(`a=1 b=2`)
	b := a.Clone().Set("a", "9")

	if v, _ := a.Get("a"); v != "1" {
		t.Errorf("original modified through clone: a=%q", v)
	}

	if v, _ := b.Get("a"); v != "9" {
		t.Errorf("clone a=%q, want 9", v)
	}
}

func TestAttributes_ToMap(t *testing.T) {
	m := ParseAttrs(`x="1" flag`).ToMap()

	if m["x"] != `"1"` {
		t.Errorf("x = %v", m["x"])
	}

	if m["flag"] != true {
		t.Errorf("flag = %v, want true", m["flag"])
	}

	if Attributes(nil).ToMap() != nil {
		t.Error("empty ToMap should be nil")
	}
}

func TestUnquote(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{`"a"`, "a"},
		{`'a'`, "a"},
		{`a`, "a"},
		{`"a'`, `"a'`},
		{`"`, `"`},
		{`""`, ""},
		{`"'a'"`, `'a'`},
	}

	for _, tt := range tests {
		if got := Unquote(tt.in); got != tt.want {
			t.Errorf("Unquote(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
