package table

import (
	"go.uber.org/zap"

	"github.com/quiverdata/quiver/pkg/errors"
	"github.com/quiverdata/quiver/pkg/logger"
	"github.com/quiverdata/quiver/pkg/metrics"
	"github.com/quiverdata/quiver/pkg/vector"
)

// JoinMode selects the relational join semantics.
type JoinMode int

const (
	InnerJoin JoinMode = iota
	LeftJoin
	RightJoin
	OuterJoin
)

// String returns the mode name.
func (m JoinMode) String() string {
	switch m {
	case InnerJoin:
		return "inner"
	case LeftJoin:
		return "left"
	case RightJoin:
		return "right"
	case OuterJoin:
		return "outer"
	default:
		return "unknown"
	}
}

// ParseJoinMode maps a mode name to its JoinMode.
func ParseJoinMode(s string) (JoinMode, bool) {
	switch s {
	case "inner":
		return InnerJoin, true
	case "left":
		return LeftJoin, true
	case "right":
		return RightJoin, true
	case "outer", "full", "full_outer":
		return OuterJoin, true
	default:
		return InnerJoin, false
	}
}

// Join combines two tables by equality over one or more key columns,
// which must exist on both sides. Inner keeps only key tuples present
// in both tables; left preserves every left row and fills unmatched
// right columns with missing; right mirrors that; outer unions both key
// sets. Several right rows matching one left key all emit (a
// cross-product on duplicate keys), never a deduplicated single row.
//
// Output columns are the left columns followed by the right non-key
// columns; a right column whose name collides with a left column is
// renamed with a "_right" suffix. Key column values come from
// whichever side of a row is matched.
func (t *Table) Join(right *Table, on []string, mode JoinMode) (*Table, error) {
	if right == nil {
		return nil, errors.New(errors.ErrorTypeArgument, "join requires a right table")
	}
	if len(on) == 0 {
		return nil, errors.New(errors.ErrorTypeArgument, "join requires at least one key column")
	}
	for _, name := range on {
		if err := ValidateColumn(t, name); err != nil {
			return nil, err
		}
		if err := ValidateColumn(right, name); err != nil {
			return nil, err
		}
	}

	timer := metrics.NewTimer("join")

	// Hash the right side by composite key.
	rightKeys := tableKeys(right, on)
	rightBuckets := make(map[string][]int, right.RowCount())
	for i, k := range rightKeys {
		rightBuckets[k] = append(rightBuckets[k], i)
	}
	leftKeys := tableKeys(t, on)

	// Collect matched row-index pairs; -1 marks the unmatched side.
	var leftIdx, rightIdx []int
	appendPair := func(l, r int) {
		leftIdx = append(leftIdx, l)
		rightIdx = append(rightIdx, r)
	}

	switch mode {
	case InnerJoin:
		for i, k := range leftKeys {
			for _, r := range rightBuckets[k] {
				appendPair(i, r)
			}
		}
	case LeftJoin:
		for i, k := range leftKeys {
			matches := rightBuckets[k]
			if len(matches) == 0 {
				appendPair(i, -1)
				continue
			}
			for _, r := range matches {
				appendPair(i, r)
			}
		}
	case RightJoin, OuterJoin:
		matched := make(map[int]bool)
		for i, k := range leftKeys {
			matches := rightBuckets[k]
			if len(matches) == 0 {
				if mode == OuterJoin {
					appendPair(i, -1)
				}
				continue
			}
			for _, r := range matches {
				appendPair(i, r)
				matched[r] = true
			}
		}
		for r := 0; r < right.RowCount(); r++ {
			if !matched[r] {
				appendPair(-1, r)
			}
		}
	default:
		return nil, errors.Newf(errors.ErrorTypeArgument, "unsupported join mode %d", mode)
	}

	out, err := buildJoinResult(t, right, on, leftIdx, rightIdx)
	opsCollector.ObserveOperation("join", len(leftIdx), timer.Stop(), err)
	logger.Debug("join complete",
		zap.String("mode", mode.String()),
		zap.Strings("on", on),
		zap.Int("left_rows", t.RowCount()),
		zap.Int("right_rows", right.RowCount()),
		zap.Int("output_rows", len(leftIdx)))
	return out, err
}

// tableKeys encodes every row's composite key over the given columns.
func tableKeys(t *Table, on []string) []string {
	cols := make([]*Column, len(on))
	for i, name := range on {
		c, _ := t.Col(name)
		cols[i] = c
	}
	keys := make([]string, t.RowCount())
	tuple := make([]interface{}, len(on))
	for row := range keys {
		for j, c := range cols {
			tuple[j] = c.Value(row)
		}
		keys[row] = encodeKey(tuple)
	}
	return keys
}

// buildJoinResult projects the matched index pairs into output columns
// through the standard construction path.
func buildJoinResult(left, right *Table, on []string, leftIdx, rightIdx []int) (*Table, error) {
	keySet := make(map[string]struct{}, len(on))
	for _, name := range on {
		keySet[name] = struct{}{}
	}
	used := make(map[string]struct{}, left.ColumnCount())
	for _, name := range left.Names() {
		used[name] = struct{}{}
	}

	n := len(leftIdx)
	cols := make([]Column, 0, left.ColumnCount()+right.ColumnCount())

	for _, c := range left.Columns() {
		_, isKey := keySet[c.name]
		var rc *Column
		if isKey {
			rc, _ = right.Col(c.name)
		}
		values := make([]interface{}, n)
		for i := 0; i < n; i++ {
			switch {
			case leftIdx[i] >= 0:
				values[i] = c.Value(leftIdx[i])
			case isKey && rightIdx[i] >= 0:
				// Right-only rows still carry their key values.
				values[i] = rc.Value(rightIdx[i])
			}
		}
		cols = append(cols, Column{name: c.name, vec: vector.Select(c.name, values, left.opts)})
	}

	for _, c := range right.Columns() {
		if _, isKey := keySet[c.name]; isKey {
			continue
		}
		name := c.name
		if _, clash := used[name]; clash {
			name = uniqueName(name+"_right", used)
		}
		used[name] = struct{}{}
		values := make([]interface{}, n)
		for i := 0; i < n; i++ {
			if rightIdx[i] >= 0 {
				values[i] = c.Value(rightIdx[i])
			}
		}
		cols = append(cols, Column{name: name, vec: vector.Select(name, values, left.opts)})
	}

	return left.withColumns(cols)
}
