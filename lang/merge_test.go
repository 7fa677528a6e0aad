package lang

import "testing"

func TestMerge(t *testing.T) {
	tests := []struct {
		name      string
		base      string
		overrides string
		want      string
	}{
		{
			name:      "add and replace",
			base:      `class="box" id="nobodyBox"`,
			overrides: `class:add="mine" id="myBox"`,
			want:      ` class="box mine" id="myBox"`,
		},
		{
			name:      "delete only word",
			base:      `class="box"`,
			overrides: `class:del="box"`,
			want:      ` class=""`,
		},
		{
			name:      "delete one of several",
			base:      `class="a b c"`,
			overrides: `class:del="b"`,
			want:      ` class="a c"`,
		},
		{
			name:      "delete removes substrings",
			base:      `class="boxing box"`,
			overrides: `class:del="box"`,
			want:      ` class="ing"`,
		},
		{
			name:      "delete missing key",
			base:      `id="x"`,
			overrides: `class:del="box"`,
			want:      ` id="x"`,
		},
		{
			name:      "add to missing key",
			base:      `id="x"`,
			overrides: `class:add="b"`,
			want:      ` id="x" class="b"`,
		},
		{
			name:      "add keeps base quote style",
			base:      `class='a'`,
			overrides: `class:add="b"`,
			want:      ` class='a b'`,
		},
		{
			name:      "add to empty value",
			base:      `class=""`,
			overrides: `class:add="b"`,
			want:      ` class="b"`,
		},
		{
			name:      "new key appended",
			base:      `class="a"`,
			overrides: `id="x"`,
			want:      ` class="a" id="x"`,
		},
		{
			name:      "flag appended",
			base:      `type="checkbox"`,
			overrides: `checked`,
			want:      ` type="checkbox" checked`,
		},
		{
			name:      "overrides apply in order",
			base:      `class="a"`,
			overrides: `class:add="b" class:del="a"`,
			want:      ` class="b"`,
		},
		{
			name:      "no overrides",
			base:      `class="a"`,
			overrides: ``,
			want:      ` class="a"`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Merge(ParseAttrs(tt.base), ParseAttrs(tt.overrides))
			if got.String() != tt.want {
				t.Errorf("Merge(%q, %q) = %q, want %q",
					tt.base, tt.overrides, got.String(), tt.want)
			}
		})
	}
}

func TestMerge_PreservesBaseOrder(t *testing.T) {
	got := Merge(ParseAttrs(`a=1 b=2 c=3`), ParseAttrs(`c=30 a=10`))

	if want := ` a=10 b=2 c=30`; got.String() != want {
		t.Errorf("Merge() = %q, want %q", got.String(), want)
	}
}
