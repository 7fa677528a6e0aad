package lang

import "encoding/json"

// MarshalJSON implements json.Marshaler for Node.
func (n *Node) MarshalJSON() ([]byte, error) {
	return json.Marshal(n.ToMap())
}

// ToMap converts the unit's procedure table to a native Go structure for
// serialization.
func (u *Unit) ToMap() map[string]any {
	m := map[string]any{
		"name":     u.Name,
		"compiled": u.Compiled,
	}

	if u.Path != "" {
		m["path"] = u.Path
		m["modified"] = u.Modified
	}

	if len(u.Imports) > 0 {
		imports := make([]any, len(u.Imports))
		for i, imp := range u.Imports {
			imports[i] = map[string]any{"module": imp.Module, "alias": imp.Alias}
		}

		m["imports"] = imports
	}

	procs := make([]any, 0, len(u.procs))
	for _, p := range u.procs {
		procs = append(procs, p.ToMap())
	}

	m["procedures"] = procs

	return m
}

// ToMap converts the procedure to a native Go structure for serialization.
func (p *Procedure) ToMap() map[string]any {
	m := map[string]any{
		"name": p.Name,
		"kind": p.Kind.String(),
	}

	if attrs := p.Defaults.ToMap(); attrs != nil {
		m["defaults"] = attrs
	}

	ops := make([]any, len(p.Ops))
	for i, op := range p.Ops {
		ops[i] = op.String()
	}

	m["ops"] = ops

	return m
}

// MarshalJSON implements json.Marshaler for Unit.
func (u *Unit) MarshalJSON() ([]byte, error) {
	return json.Marshal(u.ToMap())
}
