package translator

// Template collects fragment and argument pairs in call order. Each Append
// adds one fragment together with the arguments its modifiers consume, so
// callers never track positions across fragments.
//
//	tpl := translator.SQL("SELECT %n", cols).
//		Append("FROM %n", "users").
//		Append("WHERE %and", conds)
type Template struct {
	fragments []string
	args      []any
}

func SQL(fragment string, args ...any) *Template {
	return new(Template).Append(fragment, args...)
}

func (t *Template) Append(fragment string, args ...any) *Template {
	t.fragments = append(t.fragments, fragment)
	t.args = append(t.args, args...)
	return t
}

// AppendIf appends only when cond holds.
func (t *Template) AppendIf(cond bool, fragment string, args ...any) *Template {
	if cond {
		return t.Append(fragment, args...)
	}
	return t
}

func (t *Template) Fragments() []string { return t.fragments }
func (t *Template) Args() []any         { return t.args }
func (t *Template) Empty() bool         { return len(t.fragments) == 0 }

// Clone returns an independent copy.
func (t *Template) Clone() *Template {
	return &Template{
		fragments: append([]string(nil), t.fragments...),
		args:      append([]any(nil), t.args...),
	}
}

func (t *Template) Expand() ([]string, []any, error) {
	return t.fragments, t.args, nil
}
