// Package query filters tables with SQL WHERE fragments.
//
// Expressions are parsed with the PostgreSQL grammar (via pg_query), so
// the accepted syntax is exactly SQL: comparisons, AND/OR/NOT, IN,
// BETWEEN, LIKE/ILIKE, and IS [NOT] NULL over column references and
// literals. A compiled predicate evaluates column-at-a-time into a
// roaring bitmap of matching row positions, which boolean operators
// combine without re-touching the data.
//
// Missing values compare as no-match under every operator except the
// null tests. Referencing an unknown column is a SchemaError; ordering
// or pattern operators over incompatibly typed values are a DataError.
package query

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/RoaringBitmap/roaring/v2"
	pg_query "github.com/pganalyze/pg_query_go/v6"
	"go.uber.org/zap"

	"github.com/quiverdata/quiver/pkg/errors"
	"github.com/quiverdata/quiver/pkg/logger"
	"github.com/quiverdata/quiver/pkg/metrics"
	"github.com/quiverdata/quiver/pkg/table"
	"github.com/quiverdata/quiver/pkg/vector"
)

var queryCollector = metrics.NewCollector("query")

// Registers the "filter" step so job pipelines can filter by
// expression without importing this package.
func init() {
	err := table.RegisterOp("filter", func(t *table.Table, args map[string]interface{}) (*table.Table, error) {
		where, ok := args["where"].(string)
		if !ok {
			return nil, errors.New(errors.ErrorTypeArgument, `filter requires a "where" string`)
		}
		return Filter(t, where)
	})
	if err != nil {
		panic(err)
	}
}

// Predicate is a compiled WHERE fragment, reusable across tables.
type Predicate struct {
	source string
	expr   *pg_query.Node
}

// Compile parses a WHERE fragment such as
//
//	price > 100 AND region IN ('EU', 'US') OR name LIKE 'Q%'
//
// into a reusable predicate. Syntax errors are ArgumentErrors.
func Compile(where string) (*Predicate, error) {
	if strings.TrimSpace(where) == "" {
		return nil, errors.New(errors.ErrorTypeArgument, "empty filter expression")
	}
	res, err := pg_query.Parse("SELECT 1 WHERE " + where)
	if err != nil {
		return nil, errors.Wrapf(err, errors.ErrorTypeArgument, "invalid filter expression %q", where)
	}
	if len(res.Stmts) != 1 {
		return nil, errors.Newf(errors.ErrorTypeArgument, "expected one expression, got %d statements", len(res.Stmts))
	}
	sel := res.Stmts[0].Stmt.GetSelectStmt()
	if sel == nil || sel.GetWhereClause() == nil {
		return nil, errors.Newf(errors.ErrorTypeArgument, "%q is not a filter expression", where)
	}
	return &Predicate{source: where, expr: sel.GetWhereClause()}, nil
}

// String returns the original expression text.
func (p *Predicate) String() string { return p.source }

// Eval returns the set of matching row positions.
func (p *Predicate) Eval(t *table.Table) (*roaring.Bitmap, error) {
	return evalNode(t, p.expr)
}

// Apply returns a new table holding only the matching rows, in source
// order.
func (p *Predicate) Apply(t *table.Table) (*table.Table, error) {
	timer := metrics.NewTimer("filter")
	bm, err := p.Eval(t)
	if err != nil {
		queryCollector.ObserveOperation("filter", 0, timer.Stop(), err)
		return nil, err
	}

	indices := make([]int, 0, bm.GetCardinality())
	it := bm.Iterator()
	for it.HasNext() {
		indices = append(indices, int(it.Next()))
	}
	out, err := t.TakeRows(indices)
	queryCollector.ObserveOperation("filter", len(indices), timer.Stop(), err)
	logger.Debug("filter applied",
		zap.String("where", p.source),
		zap.Int("input_rows", t.RowCount()),
		zap.Int("output_rows", len(indices)))
	return out, err
}

// Filter is the one-shot compile-and-apply form.
func Filter(t *table.Table, where string) (*table.Table, error) {
	p, err := Compile(where)
	if err != nil {
		return nil, err
	}
	return p.Apply(t)
}

// Matches evaluates the predicate against a single row map. A column
// reference absent from the row is a SchemaError.
func (p *Predicate) Matches(row table.Row) (bool, error) {
	return matchNode(row, p.expr)
}

func matchNode(row table.Row, node *pg_query.Node) (bool, error) {
	switch {
	case node.GetBoolExpr() != nil:
		be := node.GetBoolExpr()
		args := be.GetArgs()
		if len(args) == 0 {
			return false, errors.New(errors.ErrorTypeArgument, "empty boolean expression")
		}
		switch be.GetBoolop() {
		case pg_query.BoolExprType_AND_EXPR:
			for _, arg := range args {
				ok, err := matchNode(row, arg)
				if err != nil || !ok {
					return false, err
				}
			}
			return true, nil
		case pg_query.BoolExprType_OR_EXPR:
			for _, arg := range args {
				ok, err := matchNode(row, arg)
				if err != nil || ok {
					return ok, err
				}
			}
			return false, nil
		case pg_query.BoolExprType_NOT_EXPR:
			ok, err := matchNode(row, args[0])
			return !ok, err
		default:
			return false, errors.Newf(errors.ErrorTypeArgument, "unsupported boolean operator %v", be.GetBoolop())
		}
	case node.GetNullTest() != nil:
		nt := node.GetNullTest()
		v, err := rowValue(row, nt.GetArg())
		if err != nil {
			return false, err
		}
		return vector.IsMissing(v) == (nt.GetNulltesttype() == pg_query.NullTestType_IS_NULL), nil
	case node.GetAExpr() != nil:
		return matchAExpr(row, node.GetAExpr())
	default:
		return false, errors.New(errors.ErrorTypeArgument, "unsupported filter construct")
	}
}

func matchAExpr(row table.Row, ae *pg_query.A_Expr) (bool, error) {
	op := exprName(ae)

	switch ae.GetKind() {
	case pg_query.A_Expr_Kind_AEXPR_OP:
		if op == "!=" {
			op = "<>"
		}
		l, err := rowOperand(row, ae.GetLexpr())
		if err != nil {
			return false, err
		}
		r, err := rowOperand(row, ae.GetRexpr())
		if err != nil {
			return false, err
		}
		return compareValues(l, r, op)
	case pg_query.A_Expr_Kind_AEXPR_LIKE, pg_query.A_Expr_Kind_AEXPR_ILIKE:
		v, err := rowValue(row, ae.GetLexpr())
		if err != nil {
			return false, err
		}
		if vector.IsMissing(v) {
			return false, nil
		}
		s, ok := v.(string)
		if !ok {
			return false, errors.Newf(errors.ErrorTypeData, "cannot match pattern against %T", v)
		}
		lit, err := literalOperand(ae.GetRexpr())
		if err != nil {
			return false, err
		}
		pattern, ok := lit.(string)
		if !ok {
			return false, errors.New(errors.ErrorTypeData, "LIKE pattern must be text")
		}
		re, err := likeRegexp(pattern, ae.GetKind() == pg_query.A_Expr_Kind_AEXPR_ILIKE)
		if err != nil {
			return false, errors.Wrap(err, errors.ErrorTypeArgument, "invalid LIKE pattern")
		}
		return re.MatchString(s) != strings.HasPrefix(op, "!"), nil
	case pg_query.A_Expr_Kind_AEXPR_IN:
		v, err := rowValue(row, ae.GetLexpr())
		if err != nil {
			return false, err
		}
		if vector.IsMissing(v) {
			return false, nil
		}
		list := ae.GetRexpr().GetList()
		if list == nil {
			return false, errors.New(errors.ErrorTypeArgument, "IN requires a literal list")
		}
		found := false
		for _, item := range list.GetItems() {
			lit, err := literalOperand(item)
			if err != nil {
				return false, err
			}
			if looseEqual(v, lit) {
				found = true
				break
			}
		}
		return found != (op == "<>"), nil
	case pg_query.A_Expr_Kind_AEXPR_BETWEEN, pg_query.A_Expr_Kind_AEXPR_NOT_BETWEEN:
		v, err := rowValue(row, ae.GetLexpr())
		if err != nil {
			return false, err
		}
		if vector.IsMissing(v) {
			return false, nil
		}
		list := ae.GetRexpr().GetList()
		if list == nil || len(list.GetItems()) != 2 {
			return false, errors.New(errors.ErrorTypeArgument, "BETWEEN requires two bounds")
		}
		low, err := literalOperand(list.GetItems()[0])
		if err != nil {
			return false, err
		}
		high, err := literalOperand(list.GetItems()[1])
		if err != nil {
			return false, err
		}
		geLow, err := compareValues(v, low, ">=")
		if err != nil {
			return false, err
		}
		leHigh, err := compareValues(v, high, "<=")
		if err != nil {
			return false, err
		}
		return (geLow && leHigh) != (ae.GetKind() == pg_query.A_Expr_Kind_AEXPR_NOT_BETWEEN), nil
	default:
		return false, errors.Newf(errors.ErrorTypeArgument, "unsupported operator kind %v", ae.GetKind())
	}
}

// rowOperand resolves a node against a row: a column reference by map
// lookup, anything else as a literal.
func rowOperand(row table.Row, node *pg_query.Node) (interface{}, error) {
	if node != nil && node.GetColumnRef() != nil {
		return rowValue(row, node)
	}
	return literalOperand(node)
}

// rowValue resolves a node that must be a column reference.
func rowValue(row table.Row, node *pg_query.Node) (interface{}, error) {
	if node == nil || node.GetColumnRef() == nil {
		return nil, errors.New(errors.ErrorTypeArgument, "operand must be a column reference")
	}
	fields := node.GetColumnRef().GetFields()
	if len(fields) != 1 {
		return nil, errors.New(errors.ErrorTypeArgument, "qualified column references are not supported")
	}
	name := fields[0].GetString_().GetSval()
	v, ok := row[name]
	if !ok {
		return nil, errors.Newf(errors.ErrorTypeSchema, "column %q not found", name)
	}
	return v, nil
}

func evalNode(t *table.Table, node *pg_query.Node) (*roaring.Bitmap, error) {
	switch {
	case node.GetBoolExpr() != nil:
		return evalBoolExpr(t, node.GetBoolExpr())
	case node.GetAExpr() != nil:
		return evalAExpr(t, node.GetAExpr())
	case node.GetNullTest() != nil:
		return evalNullTest(t, node.GetNullTest())
	default:
		return nil, errors.New(errors.ErrorTypeArgument, "unsupported filter construct")
	}
}

func evalBoolExpr(t *table.Table, be *pg_query.BoolExpr) (*roaring.Bitmap, error) {
	args := be.GetArgs()
	if len(args) == 0 {
		return nil, errors.New(errors.ErrorTypeArgument, "empty boolean expression")
	}

	switch be.GetBoolop() {
	case pg_query.BoolExprType_AND_EXPR, pg_query.BoolExprType_OR_EXPR:
		acc, err := evalNode(t, args[0])
		if err != nil {
			return nil, err
		}
		for _, arg := range args[1:] {
			bm, err := evalNode(t, arg)
			if err != nil {
				return nil, err
			}
			if be.GetBoolop() == pg_query.BoolExprType_AND_EXPR {
				acc.And(bm)
			} else {
				acc.Or(bm)
			}
		}
		return acc, nil
	case pg_query.BoolExprType_NOT_EXPR:
		inner, err := evalNode(t, args[0])
		if err != nil {
			return nil, err
		}
		return roaring.Flip(inner, 0, uint64(t.RowCount())), nil
	default:
		return nil, errors.Newf(errors.ErrorTypeArgument, "unsupported boolean operator %v", be.GetBoolop())
	}
}

func evalNullTest(t *table.Table, nt *pg_query.NullTest) (*roaring.Bitmap, error) {
	c, err := columnOperand(t, nt.GetArg())
	if err != nil {
		return nil, err
	}
	wantMissing := nt.GetNulltesttype() == pg_query.NullTestType_IS_NULL

	bm := roaring.New()
	n := c.Len()
	for i := 0; i < n; i++ {
		if vector.IsMissing(c.Value(i)) == wantMissing {
			bm.Add(uint32(i))
		}
	}
	return bm, nil
}

func evalAExpr(t *table.Table, ae *pg_query.A_Expr) (*roaring.Bitmap, error) {
	op := exprName(ae)

	switch ae.GetKind() {
	case pg_query.A_Expr_Kind_AEXPR_OP:
		return evalComparison(t, ae, op)
	case pg_query.A_Expr_Kind_AEXPR_LIKE, pg_query.A_Expr_Kind_AEXPR_ILIKE:
		return evalLike(t, ae, op)
	case pg_query.A_Expr_Kind_AEXPR_IN:
		return evalIn(t, ae, op)
	case pg_query.A_Expr_Kind_AEXPR_BETWEEN, pg_query.A_Expr_Kind_AEXPR_NOT_BETWEEN:
		return evalBetween(t, ae)
	default:
		return nil, errors.Newf(errors.ErrorTypeArgument, "unsupported operator kind %v", ae.GetKind())
	}
}

func exprName(ae *pg_query.A_Expr) string {
	names := ae.GetName()
	if len(names) == 0 {
		return ""
	}
	return names[0].GetString_().GetSval()
}

// evalComparison handles the binary operators =, <>, <, <=, >, >= with
// a column on at least one side.
func evalComparison(t *table.Table, ae *pg_query.A_Expr, op string) (*roaring.Bitmap, error) {
	switch op {
	case "=", "<>", "!=", "<", "<=", ">", ">=":
	default:
		return nil, errors.Newf(errors.ErrorTypeArgument, "unsupported operator %q", op)
	}
	if op == "!=" {
		op = "<>"
	}

	lc, lok, err := tryColumnOperand(t, ae.GetLexpr())
	if err != nil {
		return nil, err
	}
	rc, rok, err := tryColumnOperand(t, ae.GetRexpr())
	if err != nil {
		return nil, err
	}

	n := t.RowCount()
	bm := roaring.New()
	switch {
	case lok && rok:
		for i := 0; i < n; i++ {
			match, err := compareValues(lc.Value(i), rc.Value(i), op)
			if err != nil {
				return nil, err
			}
			if match {
				bm.Add(uint32(i))
			}
		}
	case lok:
		lit, err := literalOperand(ae.GetRexpr())
		if err != nil {
			return nil, err
		}
		for i := 0; i < n; i++ {
			match, err := compareValues(lc.Value(i), lit, op)
			if err != nil {
				return nil, err
			}
			if match {
				bm.Add(uint32(i))
			}
		}
	case rok:
		lit, err := literalOperand(ae.GetLexpr())
		if err != nil {
			return nil, err
		}
		for i := 0; i < n; i++ {
			match, err := compareValues(lit, rc.Value(i), op)
			if err != nil {
				return nil, err
			}
			if match {
				bm.Add(uint32(i))
			}
		}
	default:
		return nil, errors.New(errors.ErrorTypeArgument, "comparison needs a column reference")
	}
	return bm, nil
}

func evalLike(t *table.Table, ae *pg_query.A_Expr, op string) (*roaring.Bitmap, error) {
	c, err := columnOperand(t, ae.GetLexpr())
	if err != nil {
		return nil, err
	}
	lit, err := literalOperand(ae.GetRexpr())
	if err != nil {
		return nil, err
	}
	pattern, ok := lit.(string)
	if !ok {
		return nil, errors.New(errors.ErrorTypeData, "LIKE pattern must be text")
	}

	re, err := likeRegexp(pattern, ae.GetKind() == pg_query.A_Expr_Kind_AEXPR_ILIKE)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeArgument, "invalid LIKE pattern")
	}
	negate := strings.HasPrefix(op, "!")

	bm := roaring.New()
	n := c.Len()
	for i := 0; i < n; i++ {
		v := c.Value(i)
		if vector.IsMissing(v) {
			continue
		}
		s, ok := v.(string)
		if !ok {
			return nil, errors.Newf(errors.ErrorTypeData,
				"cannot match pattern against %T in column %q", v, c.Name())
		}
		if re.MatchString(s) != negate {
			bm.Add(uint32(i))
		}
	}
	return bm, nil
}

func evalIn(t *table.Table, ae *pg_query.A_Expr, op string) (*roaring.Bitmap, error) {
	c, err := columnOperand(t, ae.GetLexpr())
	if err != nil {
		return nil, err
	}
	list := ae.GetRexpr().GetList()
	if list == nil {
		return nil, errors.New(errors.ErrorTypeArgument, "IN requires a literal list")
	}
	candidates := make([]interface{}, 0, len(list.GetItems()))
	for _, item := range list.GetItems() {
		lit, err := literalOperand(item)
		if err != nil {
			return nil, err
		}
		candidates = append(candidates, lit)
	}
	negate := op == "<>"

	bm := roaring.New()
	n := c.Len()
	for i := 0; i < n; i++ {
		v := c.Value(i)
		if vector.IsMissing(v) {
			continue
		}
		found := false
		for _, cand := range candidates {
			if looseEqual(v, cand) {
				found = true
				break
			}
		}
		if found != negate {
			bm.Add(uint32(i))
		}
	}
	return bm, nil
}

func evalBetween(t *table.Table, ae *pg_query.A_Expr) (*roaring.Bitmap, error) {
	c, err := columnOperand(t, ae.GetLexpr())
	if err != nil {
		return nil, err
	}
	list := ae.GetRexpr().GetList()
	if list == nil || len(list.GetItems()) != 2 {
		return nil, errors.New(errors.ErrorTypeArgument, "BETWEEN requires two bounds")
	}
	low, err := literalOperand(list.GetItems()[0])
	if err != nil {
		return nil, err
	}
	high, err := literalOperand(list.GetItems()[1])
	if err != nil {
		return nil, err
	}
	negate := ae.GetKind() == pg_query.A_Expr_Kind_AEXPR_NOT_BETWEEN

	bm := roaring.New()
	n := c.Len()
	for i := 0; i < n; i++ {
		v := c.Value(i)
		if vector.IsMissing(v) {
			continue
		}
		geLow, err := compareValues(v, low, ">=")
		if err != nil {
			return nil, err
		}
		leHigh, err := compareValues(v, high, "<=")
		if err != nil {
			return nil, err
		}
		if (geLow && leHigh) != negate {
			bm.Add(uint32(i))
		}
	}
	return bm, nil
}

// columnOperand resolves an operand that must be a column reference.
func columnOperand(t *table.Table, node *pg_query.Node) (*table.Column, error) {
	c, ok, err := tryColumnOperand(t, node)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, errors.New(errors.ErrorTypeArgument, "operand must be a column reference")
	}
	return c, nil
}

// tryColumnOperand resolves a ColumnRef operand when node is one.
func tryColumnOperand(t *table.Table, node *pg_query.Node) (*table.Column, bool, error) {
	if node == nil || node.GetColumnRef() == nil {
		return nil, false, nil
	}
	fields := node.GetColumnRef().GetFields()
	if len(fields) != 1 {
		return nil, false, errors.New(errors.ErrorTypeArgument, "qualified column references are not supported")
	}
	name := fields[0].GetString_().GetSval()
	if name == "" {
		return nil, false, errors.New(errors.ErrorTypeArgument, "unsupported column reference")
	}
	if err := table.ValidateColumn(t, name); err != nil {
		return nil, false, err
	}
	c, _ := t.Col(name)
	return c, true, nil
}

// literalOperand extracts a constant: float64, string, bool, or nil.
func literalOperand(node *pg_query.Node) (interface{}, error) {
	if node == nil {
		return nil, errors.New(errors.ErrorTypeArgument, "missing literal operand")
	}

	// Unary minus on a numeric literal.
	if ae := node.GetAExpr(); ae != nil && exprName(ae) == "-" && ae.GetLexpr() == nil {
		inner, err := literalOperand(ae.GetRexpr())
		if err != nil {
			return nil, err
		}
		f, ok := inner.(float64)
		if !ok {
			return nil, errors.New(errors.ErrorTypeArgument, "cannot negate a non-numeric literal")
		}
		return -f, nil
	}

	ac := node.GetAConst()
	if ac == nil {
		return nil, errors.New(errors.ErrorTypeArgument, "operand must be a literal")
	}
	switch {
	case ac.GetIsnull():
		return nil, nil
	case ac.GetSval() != nil:
		return ac.GetSval().GetSval(), nil
	case ac.GetIval() != nil:
		return float64(ac.GetIval().GetIval()), nil
	case ac.GetFval() != nil:
		f, err := strconv.ParseFloat(ac.GetFval().GetFval(), 64)
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrorTypeArgument, "invalid numeric literal")
		}
		return f, nil
	case ac.GetBoolval() != nil:
		return ac.GetBoolval().GetBoolval(), nil
	default:
		return nil, errors.New(errors.ErrorTypeArgument, "unsupported literal type")
	}
}

// compareValues applies one comparison operator to two values. Missing
// values never match; equality across types is simply false, while
// ordering across incompatible types is a DataError.
func compareValues(a, b interface{}, op string) (bool, error) {
	if vector.IsMissing(a) || vector.IsMissing(b) {
		return false, nil
	}

	fa, aNum := vector.ToFloat64(a)
	fb, bNum := vector.ToFloat64(b)

	switch op {
	case "=", "<>":
		eq := looseEqual(a, b)
		return eq == (op == "="), nil
	case "<", "<=", ">", ">=":
		if aNum && bNum {
			return orderMatch(op, fa < fb, fa == fb), nil
		}
		sa, aStr := a.(string)
		sb, bStr := b.(string)
		if aStr && bStr {
			return orderMatch(op, sa < sb, sa == sb), nil
		}
		return false, errors.Newf(errors.ErrorTypeData, "cannot order %T against %T", a, b)
	default:
		return false, errors.Newf(errors.ErrorTypeArgument, "unsupported operator %q", op)
	}
}

func orderMatch(op string, less, equal bool) bool {
	switch op {
	case "<":
		return less
	case "<=":
		return less || equal
	case ">":
		return !less && !equal
	default:
		return !less
	}
}

// looseEqual compares across numeric widths; values of different
// classes are unequal, never an error.
func looseEqual(a, b interface{}) bool {
	if fa, ok := vector.ToFloat64(a); ok {
		fb, ok := vector.ToFloat64(b)
		return ok && fa == fb
	}
	switch av := a.(type) {
	case string:
		bv, ok := b.(string)
		return ok && av == bv
	case bool:
		bv, ok := b.(bool)
		return ok && av == bv
	default:
		return false
	}
}

// likeRegexp translates a SQL LIKE pattern ('%' any run, '_' any one
// character) into an anchored regular expression.
func likeRegexp(pattern string, caseInsensitive bool) (*regexp.Regexp, error) {
	var sb strings.Builder
	if caseInsensitive {
		sb.WriteString("(?is)")
	} else {
		sb.WriteString("(?s)")
	}
	sb.WriteString("^")
	for _, r := range pattern {
		switch r {
		case '%':
			sb.WriteString(".*")
		case '_':
			sb.WriteString(".")
		default:
			sb.WriteString(regexp.QuoteMeta(string(r)))
		}
	}
	sb.WriteString("$")
	return regexp.Compile(sb.String())
}
