package lang

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/goccy/go-yaml"
)

// Format writes the tree back to w as template markup using the tag marker
// prefix. Formatting a parsed tree and parsing the result again yields an
// equivalent tree.
func (n *Node) Format(_ context.Context, w io.Writer, prefix string) error {
	if prefix == "" {
		prefix = DefaultPrefix
	}

	var b strings.Builder

	formatNode(&b, n, prefix)

	_, err := io.WriteString(w, b.String())

	return err
}

func formatNode(b *strings.Builder, n *Node, prefix string) {
	if n.Kind == KindRoot {
		formatChildren(b, n.Children, prefix)

		return
	}

	// Blocks lifted from ":suffix" attributes have no tag of their own and
	// are written as block-override commands.
	tag, attrs := n.Tag, n.Attrs
	if tag == "" {
		tag, attrs = n.Name, nil
	}

	b.WriteString("<" + prefix + tag + attrs.String())

	if len(n.Children) == 0 {
		b.WriteString("/>")

		return
	}

	b.WriteString(">")
	formatChildren(b, n.Children, prefix)
	b.WriteString("</" + prefix + tag + ">")
}

func formatChildren(b *strings.Builder, children []Child, prefix string) {
	for _, c := range children {
		switch c := c.(type) {
		case Text:
			b.WriteString(string(c))

		case *Node:
			formatNode(b, c, prefix)
		}
	}
}

// FormatJSON writes the tree as JSON to the writer.
func (n *Node) FormatJSON(_ context.Context, w io.Writer, indent int) error {
	return writeJSON(w, n, indent)
}

// FormatYAML writes the tree as YAML to the writer.
func (n *Node) FormatYAML(ctx context.Context, w io.Writer, indent int) error {
	return writeYAML(ctx, w, n.ToMap(), indent)
}

// FormatJSON writes the procedure table as JSON to the writer.
func (u *Unit) FormatJSON(_ context.Context, w io.Writer, indent int) error {
	return writeJSON(w, u, indent)
}

// FormatYAML writes the procedure table as YAML to the writer.
func (u *Unit) FormatYAML(ctx context.Context, w io.Writer, indent int) error {
	return writeYAML(ctx, w, u.ToMap(), indent)
}

// writeJSON writes v as JSON followed by a newline. An indent of zero or less
// writes compact JSON.
func writeJSON(w io.Writer, v any, indent int) error {
	var (
		jsonData []byte
		err      error
	)

	if indent > 0 {
		jsonData, err = json.MarshalIndent(v, "", strings.Repeat(" ", indent))
	} else {
		jsonData, err = json.Marshal(v)
	}

	if err != nil {
		return err
	}

	_, err = fmt.Fprintln(w, string(jsonData))

	return err
}

// writeYAML writes m as YAML. An indent of zero or less writes flow style.
func writeYAML(ctx context.Context, w io.Writer, m map[string]any, indent int) error {
	var opts []yaml.EncodeOption
	if indent > 0 {
		opts = append(opts, yaml.Indent(indent))
	} else {
		opts = append(opts, yaml.Flow(true))
	}

	yamlData, err := yaml.MarshalContext(ctx, m, opts...)
	if err != nil {
		return err
	}

	_, err = fmt.Fprint(w, string(yamlData))

	return err
}
