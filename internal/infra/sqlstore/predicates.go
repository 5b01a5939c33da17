package sqlstore

import "strings"

// predicates accumulates WHERE fragments together with their bound values.
// Fragments use ? placeholders; values are never spliced into the text.
type predicates struct {
	clauses []string
	args    []any
}

// add appends one fragment and the values for its placeholders, in order.
func (p *predicates) add(clause string, args ...any) {
	p.clauses = append(p.clauses, clause)
	p.args = append(p.args, args...)
}

// where renders " WHERE a AND b ..." and the accumulated args. It returns
// an empty clause when nothing was added.
func (p *predicates) where() (string, []any) {
	if len(p.clauses) == 0 {
		return "", nil
	}
	args := make([]any, len(p.args))
	copy(args, p.args)
	return " WHERE " + strings.Join(p.clauses, " AND "), args
}
