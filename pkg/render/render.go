// Package render draws tables as text, Markdown, HTML, or CSV strings
// for terminal and report output.
//
// The text and Markdown styles align columns on their widest cell and
// truncate cells wider than Options.MaxCellWidth; numeric columns
// right-align. HTML and CSV carry full cell text and leave layout to
// the consumer.
package render

import (
	"fmt"
	"html"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/quiverdata/quiver/pkg/errors"
	stringpool "github.com/quiverdata/quiver/pkg/strings"
	"github.com/quiverdata/quiver/pkg/table"
	"github.com/quiverdata/quiver/pkg/vector"
)

// Style selects an output form for Render.
type Style int

const (
	StyleText Style = iota
	StyleMarkdown
	StyleHTML
	StyleCSV
)

func (s Style) String() string {
	switch s {
	case StyleText:
		return "text"
	case StyleMarkdown:
		return "markdown"
	case StyleHTML:
		return "html"
	case StyleCSV:
		return "csv"
	}
	return "unknown"
}

// ParseStyle maps a style name to its Style. Unknown names are
// ArgumentErrors.
func ParseStyle(name string) (Style, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "text", "plain", "table":
		return StyleText, nil
	case "markdown", "md":
		return StyleMarkdown, nil
	case "html":
		return StyleHTML, nil
	case "csv":
		return StyleCSV, nil
	}
	return StyleText, errors.Newf(errors.ErrorTypeArgument, "unknown render style %q", name)
}

// Options adjust cell formatting. The zero value renders full cell
// text with the shortest float representation and empty missing cells.
type Options struct {
	// MaxCellWidth truncates wider cells in the text and Markdown
	// styles, marking the cut with "...". Values of 3 or less widen to
	// 4 so the marker fits. Zero or negative disables truncation.
	MaxCellWidth int

	// FloatFormat is an fmt verb applied to float cells, such as
	// "%.2f". Empty renders the shortest representation.
	FloatFormat string

	// Missing is the placeholder for missing values.
	Missing string
}

func (o *Options) orDefault() *Options {
	if o == nil {
		return &Options{}
	}
	return o
}

// Render draws t in the given style. Row limiting is the caller's
// concern; pass t.Head(n) to bound the output.
func Render(t *table.Table, style Style, opts *Options) (string, error) {
	switch style {
	case StyleText:
		return Text(t, opts), nil
	case StyleMarkdown:
		return Markdown(t, opts), nil
	case StyleHTML:
		return HTML(t, opts), nil
	case StyleCSV:
		return CSV(t, opts), nil
	}
	return "", errors.Newf(errors.ErrorTypeArgument, "unknown render style %q", style)
}

// Text renders an aligned plain-text table with a dashed rule under
// the header. Numeric columns right-align.
func Text(t *table.Table, opts *Options) string {
	g := makeGrid(t, opts.orDefault(), nil, 1)
	if len(g.names) == 0 {
		return ""
	}
	return stringpool.BuildWith(poolSize(t), func(b *stringpool.Builder) {
		writeTextRow(b, g.names, g)
		for i, w := range g.widths {
			if i > 0 {
				b.WriteString("  ")
			}
			b.WriteString(strings.Repeat("-", w))
		}
		b.WriteByte('\n')
		for _, row := range g.rows {
			writeTextRow(b, row, g)
		}
	})
}

func writeTextRow(b *stringpool.Builder, cells []string, g grid) {
	last := len(cells) - 1
	for i, cell := range cells {
		if i > 0 {
			b.WriteString("  ")
		}
		// The final left-aligned cell stays unpadded to avoid
		// trailing spaces.
		if i == last && !g.numeric[i] {
			b.WriteString(cell)
			continue
		}
		b.WriteString(pad(cell, g.widths[i], g.numeric[i]))
	}
	b.WriteByte('\n')
}

// Markdown renders a GitHub-style pipe table. Numeric columns carry
// the trailing-colon alignment marker.
func Markdown(t *table.Table, opts *Options) string {
	g := makeGrid(t, opts.orDefault(), escapeMarkdown, 3)
	if len(g.names) == 0 {
		return ""
	}
	return stringpool.BuildWith(poolSize(t), func(b *stringpool.Builder) {
		writeMarkdownRow(b, g.names, g)
		for i, w := range g.widths {
			b.WriteString("| ")
			if g.numeric[i] {
				b.WriteString(strings.Repeat("-", w-1))
				b.WriteByte(':')
			} else {
				b.WriteString(strings.Repeat("-", w))
			}
			b.WriteByte(' ')
		}
		b.WriteString("|\n")
		for _, row := range g.rows {
			writeMarkdownRow(b, row, g)
		}
	})
}

func writeMarkdownRow(b *stringpool.Builder, cells []string, g grid) {
	for i, cell := range cells {
		b.WriteString("| ")
		b.WriteString(pad(cell, g.widths[i], g.numeric[i]))
		b.WriteByte(' ')
	}
	b.WriteString("|\n")
}

func escapeMarkdown(s string) string {
	s = strings.ReplaceAll(s, "|", `\|`)
	return strings.ReplaceAll(s, "\n", " ")
}

// HTML renders a plain table fragment with escaped cell text, ready
// to drop into a page. MaxCellWidth does not apply.
func HTML(t *table.Table, opts *Options) string {
	o := opts.orDefault()
	names := t.Names()
	if len(names) == 0 {
		return ""
	}
	cols := t.Columns()
	return stringpool.BuildWith(poolSize(t), func(b *stringpool.Builder) {
		b.WriteString("<table>\n  <thead>\n    <tr>")
		for _, name := range names {
			b.WriteString("<th>")
			b.WriteString(html.EscapeString(name))
			b.WriteString("</th>")
		}
		b.WriteString("</tr>\n  </thead>\n  <tbody>\n")
		for r := 0; r < t.RowCount(); r++ {
			b.WriteString("    <tr>")
			for i := range cols {
				b.WriteString("<td>")
				b.WriteString(html.EscapeString(cellText(cols[i].Value(r), o)))
				b.WriteString("</td>")
			}
			b.WriteString("</tr>\n")
		}
		b.WriteString("  </tbody>\n</table>\n")
	})
}

// CSV renders RFC 4180 output through the pooled CSV builder.
// MaxCellWidth does not apply.
func CSV(t *table.Table, opts *Options) string {
	o := opts.orDefault()
	names := t.Names()
	if len(names) == 0 {
		return ""
	}
	cb := stringpool.NewCSVBuilder(t.RowCount(), len(names))
	defer cb.Close()
	cb.WriteHeader(names)
	cols := t.Columns()
	fields := make([]string, len(cols))
	for r := 0; r < t.RowCount(); r++ {
		for i := range cols {
			fields[i] = cellText(cols[i].Value(r), o)
		}
		cb.WriteRow(fields)
	}
	return cb.String()
}

// grid is the measured cell layout shared by the aligned styles.
type grid struct {
	names   []string
	rows    [][]string
	widths  []int
	numeric []bool
}

func makeGrid(t *table.Table, o *Options, escape func(string) string, minWidth int) grid {
	names := t.Names()
	if len(names) == 0 {
		return grid{}
	}
	cols := t.Columns()
	g := grid{
		names:   make([]string, len(names)),
		rows:    make([][]string, t.RowCount()),
		widths:  make([]int, len(names)),
		numeric: make([]bool, len(names)),
	}
	for i, name := range names {
		if escape != nil {
			name = escape(name)
		}
		g.names[i] = truncate(name, o.MaxCellWidth)
		g.widths[i] = utf8.RuneCountInString(g.names[i])
		if g.widths[i] < minWidth {
			g.widths[i] = minWidth
		}
		g.numeric[i] = cols[i].IsNumeric()
	}
	for r := range g.rows {
		row := make([]string, len(cols))
		for i := range cols {
			cell := cellText(cols[i].Value(r), o)
			if escape != nil {
				cell = escape(cell)
			}
			cell = truncate(cell, o.MaxCellWidth)
			if w := utf8.RuneCountInString(cell); w > g.widths[i] {
				g.widths[i] = w
			}
			row[i] = cell
		}
		g.rows[r] = row
	}
	return g
}

func cellText(v interface{}, o *Options) string {
	if vector.IsMissing(v) {
		return o.Missing
	}
	switch x := v.(type) {
	case time.Time:
		return x.Format(time.RFC3339Nano)
	case float64:
		if o.FloatFormat != "" {
			return fmt.Sprintf(o.FloatFormat, x)
		}
	case float32:
		if o.FloatFormat != "" {
			return fmt.Sprintf(o.FloatFormat, float64(x))
		}
	}
	return stringpool.ValueToString(v)
}

func truncate(s string, max int) string {
	if max <= 0 {
		return s
	}
	if max < 4 {
		max = 4
	}
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max-3]) + "..."
}

func pad(s string, width int, right bool) string {
	gap := width - utf8.RuneCountInString(s)
	if gap <= 0 {
		return s
	}
	fill := strings.Repeat(" ", gap)
	if right {
		return fill + s
	}
	return s + fill
}

func poolSize(t *table.Table) stringpool.BuilderSize {
	cells := t.RowCount() * t.ColumnCount()
	switch {
	case cells <= 256:
		return stringpool.Small
	case cells <= 8192:
		return stringpool.Medium
	}
	return stringpool.Large
}
