package identity

import (
	"fmt"
	"regexp"
	"strings"
)

var identPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// ValidIdentifier reports whether s is safe to splice into SQL as a table
// or column name. Values never take this path; they are bound arguments.
func ValidIdentifier(s string) bool {
	return identPattern.MatchString(s)
}

// ColumnTarget is a relational column caching the host address. Filter
// optionally narrows the rows (e.g. server_id = 'dialer1').
type ColumnTarget struct {
	Table       string
	Column      string
	FilterCol   string
	FilterValue string
}

// Name renders table.column.
func (t ColumnTarget) Name() string {
	return t.Table + "." + t.Column
}

// Validate rejects identifiers that are not plain SQL names.
func (t ColumnTarget) Validate() error {
	for _, ident := range []string{t.Table, t.Column} {
		if !ValidIdentifier(ident) {
			return fmt.Errorf("identity target %q: invalid sql identifier %q", t.Name(), ident)
		}
	}
	if t.FilterCol != "" && !ValidIdentifier(t.FilterCol) {
		return fmt.Errorf("identity target %q: invalid filter column %q", t.Name(), t.FilterCol)
	}
	return nil
}

func (t ColumnTarget) where(extra string) (string, []any) {
	clauses := []string{extra}
	var args []any
	if t.FilterCol != "" {
		clauses = append(clauses, t.FilterCol+" = ?")
		args = append(args, t.FilterValue)
	}
	return " WHERE " + strings.Join(clauses, " AND "), args
}

// selectQuery reads the first stored value.
func (t ColumnTarget) selectQuery() (string, []any) {
	q := "SELECT " + t.Column + " FROM " + t.Table
	var args []any
	if t.FilterCol != "" {
		q += " WHERE " + t.FilterCol + " = ?"
		args = append(args, t.FilterValue)
	}
	return q + " LIMIT 1", args
}

// countQuery counts rows still holding old.
func (t ColumnTarget) countQuery(old string) (string, []any) {
	where, args := t.where(t.Column + " = ?")
	return "SELECT COUNT(*) FROM " + t.Table + where, append([]any{old}, args...)
}

// updateStatement rewrites rows holding old to next.
func (t ColumnTarget) updateStatement(old, next string) (string, []any) {
	where, args := t.where(t.Column + " = ?")
	return "UPDATE " + t.Table + " SET " + t.Column + " = ?" + where, append([]any{next, old}, args...)
}

// FileTarget is a text artifact whose Pattern captures the address in
// exactly one group. Only the captured bytes are rewritten.
type FileTarget struct {
	Path    string
	Pattern *regexp.Regexp
}

// Name renders the path.
func (t FileTarget) Name() string {
	return t.Path
}

// Validate requires exactly one capture group.
func (t FileTarget) Validate() error {
	if t.Path == "" || t.Pattern == nil {
		return fmt.Errorf("file identity target needs a path and a pattern")
	}
	if n := t.Pattern.NumSubexp(); n != 1 {
		return fmt.Errorf("file identity target %s: pattern must have exactly one capture group, has %d", t.Path, n)
	}
	return nil
}

// Rewrite replaces every captured address that differs from next. It
// returns the new content and the number of replacements; content outside
// the captured spans is copied byte for byte.
func (t FileTarget) Rewrite(content []byte, next string) ([]byte, int) {
	matches := t.Pattern.FindAllSubmatchIndex(content, -1)
	if len(matches) == 0 {
		return content, 0
	}

	out := make([]byte, 0, len(content))
	last, changed := 0, 0
	for _, m := range matches {
		start, end := m[2], m[3]
		if start < 0 || string(content[start:end]) == next {
			continue
		}
		out = append(out, content[last:start]...)
		out = append(out, next...)
		last = end
		changed++
	}
	if changed == 0 {
		return content, 0
	}
	out = append(out, content[last:]...)
	return out, changed
}

// Stale counts captured addresses differing from next.
func (t FileTarget) Stale(content []byte, next string) int {
	n := 0
	for _, m := range t.Pattern.FindAllSubmatch(content, -1) {
		if string(m[1]) != next {
			n++
		}
	}
	return n
}
