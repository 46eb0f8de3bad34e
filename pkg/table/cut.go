package table

import (
	"go.uber.org/zap"

	"github.com/quiverdata/quiver/pkg/errors"
	"github.com/quiverdata/quiver/pkg/logger"
	"github.com/quiverdata/quiver/pkg/metrics"
	"github.com/quiverdata/quiver/pkg/vector"
)

// Cut bins a numeric column into labeled categories and stores the
// labels in a new column (named into, or "<column>_bin" when empty).
// Bins are right-closed intervals; the lowest edge is inclusive.
// Values that are missing, non-numeric, or outside every bin get a
// missing label.
func (t *Table) Cut(column string, bins []float64, labels []string, into string) (*Table, error) {
	timer := metrics.NewTimer("cut")
	if err := ValidateColumn(t, column); err != nil {
		return nil, err
	}
	if len(bins) < 2 {
		return nil, errors.New(errors.ErrorTypeArgument, "cut requires at least two bin edges")
	}
	if len(labels) != len(bins)-1 {
		return nil, errors.Newf(errors.ErrorTypeArgument,
			"%d bin edges need %d labels, got %d", len(bins), len(bins)-1, len(labels))
	}
	for i := 1; i < len(bins); i++ {
		if bins[i] <= bins[i-1] {
			return nil, errors.New(errors.ErrorTypeArgument, "bin edges must be strictly increasing")
		}
	}
	if into == "" {
		into = column + "_bin"
	}

	c, _ := t.Col(column)
	n := t.RowCount()
	out := make([]interface{}, n)
	for i := 0; i < n; i++ {
		f, ok := vector.ToFloat64(c.Value(i))
		if !ok {
			continue
		}
		if idx := binIndex(f, bins); idx >= 0 {
			out[i] = labels[idx]
		}
	}

	result, err := t.WithColumn(into, out)
	if err != nil {
		return nil, err
	}
	opsCollector.ObserveOperation("cut", n, timer.Stop(), nil)
	logger.Debug("cut column into bins",
		zap.String("column", column),
		zap.String("into", into),
		zap.Int("bins", len(labels)))
	return result, nil
}

// binIndex locates the right-closed interval holding f, or -1.
func binIndex(f float64, bins []float64) int {
	if f == bins[0] {
		return 0
	}
	for i := 1; i < len(bins); i++ {
		if f > bins[i-1] && f <= bins[i] {
			return i - 1
		}
	}
	return -1
}
