// store/sqlstore/translate.go
package sqlstore

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/solatis/quarry/query"
)

// dialect abstracts the JSON access and update syntax differences
// between SQLite and PostgreSQL. All fragments use ? placeholders; the
// store rebinds them for the driver before execution.
type dialect interface {
	// compareExpr extracts the value at steps, cast so a comparison
	// against a bound literal of v's Go type behaves correctly.
	compareExpr(steps []query.Step, v any) (string, error)
	// textExpr extracts the value at steps as text (NULL when absent).
	textExpr(steps []query.Step) (string, error)
	// containsExpr tests whether the text at steps contains a bound
	// needle (one ? placeholder). Case-insensitive matching folds with
	// the database's lower(), which is ASCII-only in SQLite and
	// locale-dependent in PostgreSQL; non-ASCII needles can disagree
	// with the in-memory evaluator's Unicode folding.
	containsExpr(steps []query.Step, matchCase bool) (string, error)
	// bitsExpr tests the integer at steps against a bound mask. The
	// mask placeholder count varies per op, reported via nargs.
	bitsExpr(steps []query.Step, kind query.CondKind) (expr string, nargs int, err error)
	// setExpr returns docExpr with the value at steps replaced by a
	// bound JSON literal (one ? placeholder). Absent parents make the
	// whole expression a no-op, matching the applier.
	setExpr(docExpr string, steps []query.Step) (string, error)
	// numExpr returns docExpr with the numeric value at steps combined
	// with a bound operand (one ? placeholder). Absent values leave
	// docExpr unchanged.
	numExpr(docExpr string, steps []query.Step, kind query.ModKind) (string, error)
	// bindLiteral converts a Go literal into its bindable SQL form.
	// Times normalize to UTC so comparison stays chronological whatever
	// offset the stored document was serialized with.
	bindLiteral(v any) any
}

// Matrix describes what both SQL dialects translate natively, without
// needing an open connection.
func Matrix() query.SupportMatrix {
	return supportMatrix()
}

// supportMatrix describes what both SQL dialects translate natively.
// Regex, fuzzy search, element quantifiers, geo predicates and the
// collection/map modifications stay client-side via the fallback
// wrapper.
func supportMatrix() query.SupportMatrix {
	conds := map[query.CondKind]bool{
		query.CondAlways:       true,
		query.CondNever:        true,
		query.CondAnd:          true,
		query.CondOr:           true,
		query.CondNot:          true,
		query.CondEq:           true,
		query.CondNeq:          true,
		query.CondGt:           true,
		query.CondGte:          true,
		query.CondLt:           true,
		query.CondLte:          true,
		query.CondIn:           true,
		query.CondNotIn:        true,
		query.CondContains:     true,
		query.CondIsNil:        true,
		query.CondNotNil:       true,
		query.CondBitsAllSet:   true,
		query.CondBitsAnySet:   true,
		query.CondBitsAllClear: true,
	}
	mods := map[query.ModKind]bool{
		query.ModSet:     true,
		query.ModInc:     true,
		query.ModMul:     true,
		query.ModAtMost:  true,
		query.ModAtLeast: true,
		query.ModChain:   true,
	}
	return query.SupportMatrix{Conditions: conds, Modifications: mods}
}

var compareOps = map[query.CondKind]string{
	query.CondEq:  "=",
	query.CondNeq: "<>",
	query.CondGt:  ">",
	query.CondGte: ">=",
	query.CondLt:  "<",
	query.CondLte: "<=",
}

// condToSQL translates a condition tree into a WHERE fragment plus bound
// arguments. Operators outside the support matrix, and comparison
// literals with no scalar SQL representation, yield *query.UnsupportedError.
func condToSQL(d dialect, n *query.CondNode) (string, []any, error) {
	switch n.Kind {
	case query.CondAlways:
		return "1 = 1", nil, nil
	case query.CondNever:
		return "1 = 0", nil, nil

	case query.CondAnd, query.CondOr:
		if len(n.Nodes) == 0 {
			if n.Kind == query.CondAnd {
				return "1 = 1", nil, nil
			}
			return "1 = 0", nil, nil
		}
		sep := " AND "
		if n.Kind == query.CondOr {
			sep = " OR "
		}
		parts := make([]string, 0, len(n.Nodes))
		var args []any
		for _, child := range n.Nodes {
			sql, a, err := condToSQL(d, child)
			if err != nil {
				return "", nil, err
			}
			parts = append(parts, "("+sql+")")
			args = append(args, a...)
		}
		return strings.Join(parts, sep), args, nil

	case query.CondNot:
		sql, args, err := condToSQL(d, n.Inner)
		if err != nil {
			return "", nil, err
		}
		return "NOT (" + sql + ")", args, nil

	case query.CondEq, query.CondNeq, query.CondGt, query.CondGte, query.CondLt, query.CondLte:
		if !isScalar(n.Value) {
			return "", nil, &query.UnsupportedError{Cond: n}
		}
		expr, err := d.compareExpr(n.Path, n.Value)
		if err != nil {
			return "", nil, err
		}
		return fmt.Sprintf("%s %s ?", expr, compareOps[n.Kind]), []any{d.bindLiteral(n.Value)}, nil

	case query.CondIn, query.CondNotIn:
		if len(n.Values) == 0 {
			if n.Kind == query.CondIn {
				return "1 = 0", nil, nil
			}
			return "1 = 1", nil, nil
		}
		for _, v := range n.Values {
			if !isScalar(v) {
				return "", nil, &query.UnsupportedError{Cond: n}
			}
		}
		expr, err := d.compareExpr(n.Path, n.Values[0])
		if err != nil {
			return "", nil, err
		}
		op := "IN"
		if n.Kind == query.CondNotIn {
			op = "NOT IN"
		}
		placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(n.Values)), ", ")
		args := make([]any, 0, len(n.Values))
		for _, v := range n.Values {
			args = append(args, d.bindLiteral(v))
		}
		return fmt.Sprintf("%s %s (%s)", expr, op, placeholders), args, nil

	case query.CondContains:
		expr, err := d.containsExpr(n.Path, n.MatchCase)
		if err != nil {
			return "", nil, err
		}
		return expr, []any{n.Needle}, nil

	case query.CondIsNil:
		expr, err := d.textExpr(n.Path)
		if err != nil {
			return "", nil, err
		}
		return expr + " IS NULL", nil, nil

	case query.CondNotNil:
		expr, err := d.textExpr(n.Path)
		if err != nil {
			return "", nil, err
		}
		return expr + " IS NOT NULL", nil, nil

	case query.CondBitsAllSet, query.CondBitsAnySet, query.CondBitsAllClear:
		expr, nargs, err := d.bitsExpr(n.Path, n.Kind)
		if err != nil {
			return "", nil, err
		}
		args := make([]any, nargs)
		for i := range args {
			args[i] = int64(n.Mask)
		}
		return expr, args, nil

	default:
		return "", nil, &query.UnsupportedError{Cond: n}
	}
}

// modToSQL translates a modification tree into an expression computing
// the new document from docExpr, plus bound arguments. Chains nest the
// expression left to right.
func modToSQL(d dialect, docExpr string, n *query.ModNode) (string, []any, error) {
	switch n.Kind {
	case query.ModSet:
		b, err := json.Marshal(n.Value)
		if err != nil {
			return "", nil, fmt.Errorf("cannot encode set literal: %w", err)
		}
		expr, err := d.setExpr(docExpr, n.Path)
		if err != nil {
			return "", nil, err
		}
		return expr, []any{string(b)}, nil

	case query.ModInc, query.ModMul, query.ModAtMost, query.ModAtLeast:
		if !isNumeric(n.Value) {
			return "", nil, &query.UnsupportedError{Mod: n}
		}
		expr, err := d.numExpr(docExpr, n.Path, n.Kind)
		if err != nil {
			return "", nil, err
		}
		return expr, []any{n.Value}, nil

	case query.ModChain:
		expr := docExpr
		var args []any
		for _, m := range n.Mods {
			next, a, err := modToSQL(d, expr, m)
			if err != nil {
				return "", nil, err
			}
			expr = next
			args = append(args, a...)
		}
		return expr, args, nil

	default:
		return "", nil, &query.UnsupportedError{Mod: n}
	}
}

// isScalar reports whether a literal has a direct SQL representation.
func isScalar(v any) bool {
	switch v.(type) {
	case string, bool, time.Time,
		int, int8, int16, int32, int64,
		uint, uint8, uint16, uint32, uint64,
		float32, float64:
		return true
	}
	return false
}

func isNumeric(v any) bool {
	switch v.(type) {
	case int, int8, int16, int32, int64,
		uint, uint8, uint16, uint32, uint64,
		float32, float64:
		return true
	}
	return false
}

// sqliteTimeLayout is the output shape of strftime('%Y-%m-%dT%H:%M:%f'):
// UTC, millisecond precision, no zone suffix. Literals bind in the same
// layout so text comparison stays chronological.
const sqliteTimeLayout = "2006-01-02T15:04:05.000"

// pathSegments flattens a step sequence into JSON object keys. Optional
// steps vanish: pointer indirection has no JSON representation.
func pathSegments(steps []query.Step) ([]string, error) {
	var segs []string
	for _, st := range steps {
		var seg string
		switch st.Kind {
		case query.StepProperty:
			seg = st.Name
		case query.StepOptional:
			continue
		case query.StepKey:
			seg = st.Key
		default:
			return nil, fmt.Errorf("unknown path step kind %d", st.Kind)
		}
		if strings.ContainsAny(seg, `'".$[]{},`) {
			return nil, fmt.Errorf("path segment %q not expressible in SQL JSON path", seg)
		}
		segs = append(segs, seg)
	}
	return segs, nil
}

// sqliteDialect targets json_* scalar functions over a TEXT doc column.
type sqliteDialect struct{}

func sqlitePath(steps []query.Step) (string, error) {
	segs, err := pathSegments(steps)
	if err != nil {
		return "", err
	}
	return "$." + strings.Join(segs, "."), nil
}

func (sqliteDialect) compareExpr(steps []query.Step, v any) (string, error) {
	p, err := sqlitePath(steps)
	if err != nil {
		return "", err
	}
	if _, ok := v.(time.Time); ok {
		// strftime folds whatever offset the document carries into UTC
		return fmt.Sprintf("strftime('%%Y-%%m-%%dT%%H:%%M:%%f', json_extract(doc, '%s'))", p), nil
	}
	// json_extract yields native SQLite types, no casting required
	return fmt.Sprintf("json_extract(doc, '%s')", p), nil
}

func (sqliteDialect) bindLiteral(v any) any {
	if t, ok := v.(time.Time); ok {
		return t.UTC().Format(sqliteTimeLayout)
	}
	return v
}

func (d sqliteDialect) textExpr(steps []query.Step) (string, error) {
	return d.compareExpr(steps, nil)
}

func (d sqliteDialect) containsExpr(steps []query.Step, matchCase bool) (string, error) {
	expr, err := d.textExpr(steps)
	if err != nil {
		return "", err
	}
	if matchCase {
		return fmt.Sprintf("instr(%s, ?) > 0", expr), nil
	}
	return fmt.Sprintf("instr(lower(%s), lower(?)) > 0", expr), nil
}

func (d sqliteDialect) bitsExpr(steps []query.Step, kind query.CondKind) (string, int, error) {
	expr, err := d.textExpr(steps)
	if err != nil {
		return "", 0, err
	}
	switch kind {
	case query.CondBitsAllSet:
		return fmt.Sprintf("(%s & ?) = ?", expr), 2, nil
	case query.CondBitsAnySet:
		return fmt.Sprintf("(%s & ?) <> 0", expr), 1, nil
	default:
		return fmt.Sprintf("(%s & ?) = 0", expr), 1, nil
	}
}

func (sqliteDialect) setExpr(docExpr string, steps []query.Step) (string, error) {
	p, err := sqlitePath(steps)
	if err != nil {
		return "", err
	}
	// json_set only creates the leaf when its parent exists, so severed
	// paths leave the document untouched
	return fmt.Sprintf("json_set(%s, '%s', json(?))", docExpr, p), nil
}

func (sqliteDialect) numExpr(docExpr string, steps []query.Step, kind query.ModKind) (string, error) {
	p, err := sqlitePath(steps)
	if err != nil {
		return "", err
	}
	cur := fmt.Sprintf("json_extract(%s, '%s')", docExpr, p)
	var arith string
	switch kind {
	case query.ModInc:
		arith = cur + " + ?"
	case query.ModMul:
		arith = cur + " * ?"
	case query.ModAtMost:
		arith = fmt.Sprintf("min(%s, ?)", cur)
	default:
		arith = fmt.Sprintf("max(%s, ?)", cur)
	}
	// absent values must leave the document unchanged, never become null
	return fmt.Sprintf("CASE WHEN %s IS NULL THEN %s ELSE json_set(%s, '%s', %s) END",
		cur, docExpr, docExpr, p, arith), nil
}

// postgresDialect targets jsonb operators over a JSONB doc column.
type postgresDialect struct{}

func pgPath(steps []query.Step) (string, error) {
	segs, err := pathSegments(steps)
	if err != nil {
		return "", err
	}
	return "{" + strings.Join(segs, ",") + "}", nil
}

func (postgresDialect) compareExpr(steps []query.Step, v any) (string, error) {
	p, err := pgPath(steps)
	if err != nil {
		return "", err
	}
	// #>> yields text; cast per literal type so comparisons are not
	// accidentally lexicographic
	switch v.(type) {
	case bool:
		return fmt.Sprintf("(doc #>> '%s')::boolean", p), nil
	case time.Time:
		return fmt.Sprintf("(doc #>> '%s')::timestamptz", p), nil
	case int, int8, int16, int32, int64,
		uint, uint8, uint16, uint32, uint64,
		float32, float64:
		return fmt.Sprintf("(doc #>> '%s')::numeric", p), nil
	default:
		return fmt.Sprintf("doc #>> '%s'", p), nil
	}
}

func (postgresDialect) bindLiteral(v any) any {
	if t, ok := v.(time.Time); ok {
		// the timestamptz cast parses any RFC 3339 offset
		return t.Format(time.RFC3339Nano)
	}
	return v
}

func (d postgresDialect) textExpr(steps []query.Step) (string, error) {
	p, err := pgPath(steps)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("doc #>> '%s'", p), nil
}

func (d postgresDialect) containsExpr(steps []query.Step, matchCase bool) (string, error) {
	expr, err := d.textExpr(steps)
	if err != nil {
		return "", err
	}
	if matchCase {
		return fmt.Sprintf("strpos(%s, ?) > 0", expr), nil
	}
	return fmt.Sprintf("strpos(lower(%s), lower(?)) > 0", expr), nil
}

func (d postgresDialect) bitsExpr(steps []query.Step, kind query.CondKind) (string, int, error) {
	p, err := pgPath(steps)
	if err != nil {
		return "", 0, err
	}
	expr := fmt.Sprintf("(doc #>> '%s')::bigint", p)
	switch kind {
	case query.CondBitsAllSet:
		return fmt.Sprintf("(%s & ?) = ?", expr), 2, nil
	case query.CondBitsAnySet:
		return fmt.Sprintf("(%s & ?) <> 0", expr), 1, nil
	default:
		return fmt.Sprintf("(%s & ?) = 0", expr), 1, nil
	}
}

func (postgresDialect) setExpr(docExpr string, steps []query.Step) (string, error) {
	p, err := pgPath(steps)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("jsonb_set(%s, '%s', ?::jsonb, true)", docExpr, p), nil
}

func (postgresDialect) numExpr(docExpr string, steps []query.Step, kind query.ModKind) (string, error) {
	p, err := pgPath(steps)
	if err != nil {
		return "", err
	}
	cur := fmt.Sprintf("(%s #>> '%s')::numeric", docExpr, p)
	var arith string
	switch kind {
	case query.ModInc:
		arith = cur + " + ?"
	case query.ModMul:
		arith = cur + " * ?"
	case query.ModAtMost:
		arith = fmt.Sprintf("LEAST(%s, ?)", cur)
	default:
		arith = fmt.Sprintf("GREATEST(%s, ?)", cur)
	}
	// jsonb_set is strict; guard against a null new value nulling the doc
	return fmt.Sprintf("CASE WHEN %s IS NULL THEN %s ELSE jsonb_set(%s, '%s', to_jsonb(%s), false) END",
		cur, docExpr, docExpr, p, arith), nil
}
