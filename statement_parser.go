package tenancy

import (
	"fmt"
	"strings"
)

// ParseStatement parses one permission statement from its compact text
// form, as used by the DSL, the config tool and test fixtures:
//
//	allow ec2:*,s3:Get* on arn:bhoomi:s3:::*
//	deny *
//
// The effect keyword is followed by a comma-separated action pattern list
// and an optional "on" clause with a comma-separated resource pattern
// list. Patterns are taken verbatim; '*' is the only wildcard.
func ParseStatement(s string) (Statement, error) {
	fields := strings.Fields(strings.TrimSpace(s))
	if len(fields) < 2 {
		return Statement{}, fmt.Errorf("statement requires: <allow|deny> <actions> [on <resources>]")
	}

	effect := Effect(strings.ToLower(fields[0]))
	if !effect.Valid() {
		return Statement{}, fmt.Errorf("unknown effect %q", fields[0])
	}

	stmt := Statement{Effect: effect, Actions: splitPatternList(fields[1])}
	if len(stmt.Actions) == 0 {
		return Statement{}, fmt.Errorf("statement has no action patterns")
	}

	switch {
	case len(fields) == 2:
		// no resource clause
	case len(fields) == 4 && fields[2] == "on":
		stmt.Resources = splitPatternList(fields[3])
		if len(stmt.Resources) == 0 {
			return Statement{}, fmt.Errorf(`"on" clause has no resource patterns`)
		}
	default:
		return Statement{}, fmt.Errorf("malformed statement %q", s)
	}
	return stmt, nil
}

// ParseStatements parses multiple statements separated by newlines or
// semicolons, preserving their order. Blank lines and '#' comments are
// skipped.
func ParseStatements(s string) ([]Statement, error) {
	out := make([]Statement, 0, 4)
	for _, chunk := range strings.FieldsFunc(s, func(r rune) bool { return r == '\n' || r == ';' }) {
		chunk = strings.TrimSpace(chunk)
		if chunk == "" || strings.HasPrefix(chunk, "#") {
			continue
		}
		stmt, err := ParseStatement(chunk)
		if err != nil {
			return nil, err
		}
		out = append(out, stmt)
	}
	return out, nil
}

// FormatStatement renders a statement back into the compact text form
// accepted by ParseStatement.
func FormatStatement(stmt Statement) string {
	var b strings.Builder
	b.WriteString(string(stmt.Effect))
	b.WriteByte(' ')
	b.WriteString(strings.Join(stmt.Actions, ","))
	if len(stmt.Resources) > 0 {
		b.WriteString(" on ")
		b.WriteString(strings.Join(stmt.Resources, ","))
	}
	return b.String()
}

func splitPatternList(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
