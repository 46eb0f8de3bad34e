package table

import (
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/quiverdata/quiver/pkg/errors"
	"github.com/quiverdata/quiver/pkg/logger"
	"github.com/quiverdata/quiver/pkg/metrics"
	"github.com/quiverdata/quiver/pkg/vector"
)

// timestampLayouts are tried in order when a time column holds strings.
var timestampLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// Resample buckets rows by truncating a time column to a fixed
// frequency ("30s", "5m", "1h", "1d", "1w", "1mo") and aggregates each
// bucket with the given spec. The output is ordered by bucket,
// ascending, and the bucket column carries RFC 3339 labels in UTC.
func (t *Table) Resample(column, freq string, agg map[string]interface{}) (*Table, error) {
	timer := metrics.NewTimer("resample")
	if err := ValidateColumn(t, column); err != nil {
		return nil, err
	}
	step, err := parseFrequency(freq)
	if err != nil {
		return nil, err
	}

	c, _ := t.Col(column)
	n := t.RowCount()
	buckets := make([]interface{}, n)
	for i := 0; i < n; i++ {
		ts, err := parseTimestamp(c.Value(i))
		if err != nil {
			opsCollector.ObserveOperation("resample", 0, timer.Stop(), err)
			return nil, err
		}
		buckets[i] = step.bucket(ts).Format(time.RFC3339)
	}

	derived, err := t.WithColumn(column, buckets)
	if err != nil {
		return nil, err
	}
	g, err := derived.GroupBy(column)
	if err != nil {
		return nil, err
	}
	out, err := g.Agg(agg)
	if err != nil {
		opsCollector.ObserveOperation("resample", 0, timer.Stop(), err)
		return nil, err
	}
	out, err = out.Sort(column, true)
	if err != nil {
		return nil, err
	}

	opsCollector.ObserveOperation("resample", out.RowCount(), timer.Stop(), nil)
	logger.Debug("resampled table",
		zap.String("column", column),
		zap.String("freq", freq),
		zap.Int("buckets", out.RowCount()))
	return out, nil
}

// frequency is one bucket width: either a fixed duration or a whole
// number of calendar months.
type frequency struct {
	step   time.Duration
	months int
}

// bucket floors ts to the start of its bucket in UTC. Month buckets
// count months from year zero, so any positive month count aligns.
func (f frequency) bucket(ts time.Time) time.Time {
	u := ts.UTC()
	if f.months > 0 {
		m := u.Year()*12 + int(u.Month()) - 1
		m -= m % f.months
		return time.Date(m/12, time.Month(m%12+1), 1, 0, 0, 0, 0, time.UTC)
	}
	return u.Truncate(f.step)
}

// parseFrequency accepts the time.Duration syntax plus day, week, and
// month suffixes ("1d", "2w", "3mo").
func parseFrequency(freq string) (frequency, error) {
	if freq == "" {
		return frequency{}, errors.New(errors.ErrorTypeArgument, "resample requires a frequency")
	}
	if d, err := time.ParseDuration(freq); err == nil {
		if d <= 0 {
			return frequency{}, errors.Newf(errors.ErrorTypeArgument, "frequency %q must be positive", freq)
		}
		return frequency{step: d}, nil
	}
	if rest, ok := strings.CutSuffix(freq, "mo"); ok {
		n, err := strconv.Atoi(strings.TrimSpace(rest))
		if err == nil && n > 0 {
			return frequency{months: n}, nil
		}
		return frequency{}, errors.Newf(errors.ErrorTypeArgument, "invalid frequency %q", freq)
	}
	unit := freq[len(freq)-1]
	if unit == 'd' || unit == 'w' {
		n, err := strconv.Atoi(strings.TrimSpace(freq[:len(freq)-1]))
		if err == nil && n > 0 {
			d := time.Duration(n) * 24 * time.Hour
			if unit == 'w' {
				d *= 7
			}
			return frequency{step: d}, nil
		}
	}
	return frequency{}, errors.Newf(errors.ErrorTypeArgument, "invalid frequency %q", freq)
}

// parseTimestamp coerces one column element to a time. Numbers are
// Unix seconds.
func parseTimestamp(v interface{}) (time.Time, error) {
	if vector.IsMissing(v) {
		return time.Time{}, errors.New(errors.ErrorTypeData, "cannot resample over a missing timestamp")
	}
	switch tv := v.(type) {
	case time.Time:
		return tv, nil
	case string:
		for _, layout := range timestampLayouts {
			if ts, err := time.Parse(layout, tv); err == nil {
				return ts, nil
			}
		}
		return time.Time{}, errors.Newf(errors.ErrorTypeData, "cannot parse %q as a timestamp", tv)
	case int:
		return time.Unix(int64(tv), 0), nil
	case int64:
		return time.Unix(tv, 0), nil
	case float64:
		sec := int64(tv)
		nsec := int64((tv - float64(sec)) * float64(time.Second))
		return time.Unix(sec, nsec), nil
	default:
		return time.Time{}, errors.Newf(errors.ErrorTypeData, "cannot parse %v (%T) as a timestamp", v, v)
	}
}
