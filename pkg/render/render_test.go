package render

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quiverdata/quiver/pkg/errors"
	"github.com/quiverdata/quiver/pkg/table"
)

func quotesFixture(t *testing.T) *table.Table {
	t.Helper()
	tbl, err := table.FromColumns([]table.ColumnData{
		{Name: "sym", Values: []string{"AAPL", "B"}},
		{Name: "price", Values: []float64{10.5, 2.25}},
	}, nil)
	require.NoError(t, err)
	return tbl
}

// TestText verifies alignment: strings pad left, numbers pad right,
// and the dashed rule matches the column widths.
func TestText(t *testing.T) {
	got := Text(quotesFixture(t), nil)

	want := "sym   price\n" +
		"----  -----\n" +
		"AAPL   10.5\n" +
		"B      2.25\n"
	assert.Equal(t, want, got)
}

func TestTextTruncation(t *testing.T) {
	tbl, err := table.FromColumns([]table.ColumnData{
		{Name: "note", Values: []string{"abcdefghijkl", "ok"}},
	}, nil)
	require.NoError(t, err)

	got := Text(tbl, &Options{MaxCellWidth: 8})
	want := "note\n" +
		"--------\n" +
		"abcde...\n" +
		"ok\n"
	assert.Equal(t, want, got)

	// Widths below four widen so the marker fits.
	narrow := Text(tbl, &Options{MaxCellWidth: 2})
	assert.Contains(t, narrow, "a...")
	assert.NotContains(t, narrow, "ab...")
}

func TestTextMissingPlaceholder(t *testing.T) {
	tbl, err := table.FromColumns([]table.ColumnData{
		{Name: "price", Values: []interface{}{1.5, nil}},
	}, nil)
	require.NoError(t, err)

	got := Text(tbl, &Options{Missing: "NA"})
	want := "price\n" +
		"-----\n" +
		"  1.5\n" +
		"   NA\n"
	assert.Equal(t, want, got)
}

func TestTextFloatFormat(t *testing.T) {
	got := CSV(quotesFixture(t), &Options{FloatFormat: "%.2f"})
	assert.Equal(t, "sym,price\nAAPL,10.50\nB,2.25\n", got)
}

func TestMarkdown(t *testing.T) {
	got := Markdown(quotesFixture(t), nil)

	want := "| sym  | price |\n" +
		"| ---- | ----: |\n" +
		"| AAPL |  10.5 |\n" +
		"| B    |  2.25 |\n"
	assert.Equal(t, want, got)
}

func TestMarkdownEscapesPipes(t *testing.T) {
	tbl, err := table.FromColumns([]table.ColumnData{
		{Name: "expr", Values: []string{"x|y"}},
	}, nil)
	require.NoError(t, err)

	got := Markdown(tbl, nil)
	assert.Contains(t, got, `x\|y`)
}

func TestHTML(t *testing.T) {
	tbl, err := table.FromColumns([]table.ColumnData{
		{Name: "sym", Values: []string{"<b>&"}},
	}, nil)
	require.NoError(t, err)

	want := "<table>\n" +
		"  <thead>\n" +
		"    <tr><th>sym</th></tr>\n" +
		"  </thead>\n" +
		"  <tbody>\n" +
		"    <tr><td>&lt;b&gt;&amp;</td></tr>\n" +
		"  </tbody>\n" +
		"</table>\n"
	assert.Equal(t, want, HTML(tbl, nil))
}

func TestCSVQuoting(t *testing.T) {
	tbl, err := table.FromColumns([]table.ColumnData{
		{Name: "v", Values: []string{"a,b", `he said "hi"`}},
	}, nil)
	require.NoError(t, err)

	want := "v\n" +
		"\"a,b\"\n" +
		"\"he said \"\"hi\"\"\"\n"
	assert.Equal(t, want, CSV(tbl, nil))
}

func TestTimeCellsRenderAsRFC3339(t *testing.T) {
	tbl, err := table.FromColumns([]table.ColumnData{
		{Name: "ts", Values: []interface{}{time.Date(2024, 6, 15, 9, 30, 0, 0, time.UTC)}},
	}, nil)
	require.NoError(t, err)

	assert.Equal(t, "ts\n2024-06-15T09:30:00Z\n", CSV(tbl, nil))
}

func TestRenderDispatch(t *testing.T) {
	tbl := quotesFixture(t)

	got, err := Render(tbl, StyleMarkdown, nil)
	require.NoError(t, err)
	assert.Equal(t, Markdown(tbl, nil), got)

	_, err = Render(tbl, Style(42), nil)
	require.Error(t, err)
	assert.True(t, errors.IsArgument(err))
}

func TestParseStyle(t *testing.T) {
	cases := map[string]Style{
		"text":     StyleText,
		"plain":    StyleText,
		"Markdown": StyleMarkdown,
		"md":       StyleMarkdown,
		"HTML":     StyleHTML,
		"csv":      StyleCSV,
	}
	for name, want := range cases {
		got, err := ParseStyle(name)
		require.NoError(t, err, name)
		assert.Equal(t, want, got, name)
	}

	_, err := ParseStyle("latex")
	require.Error(t, err)
	assert.True(t, errors.IsArgument(err))
}

func TestEmptyAndHeaderOnlyTables(t *testing.T) {
	empty, err := table.FromColumns(nil, nil)
	require.NoError(t, err)
	assert.Empty(t, Text(empty, nil))
	assert.Empty(t, Markdown(empty, nil))
	assert.Empty(t, HTML(empty, nil))
	assert.Empty(t, CSV(empty, nil))

	headerOnly, err := table.FromColumns([]table.ColumnData{
		{Name: "sym", Values: []string{}},
	}, nil)
	require.NoError(t, err)
	assert.Equal(t, "sym\n---\n", Text(headerOnly, nil))
	assert.Equal(t, "| sym |\n| --- |\n", Markdown(headerOnly, nil))
	assert.Equal(t, "sym\n", CSV(headerOnly, nil))
}
