package dataset

import (
	"bytes"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quiverdata/quiver/pkg/compression"
	"github.com/quiverdata/quiver/pkg/errors"
	"github.com/quiverdata/quiver/pkg/table"
	"github.com/quiverdata/quiver/pkg/vector"
)

// tradesFixture covers the value classes every format must carry:
// text, floats with a missing entry, integers, and booleans.
func tradesFixture(t *testing.T) *table.Table {
	t.Helper()
	tbl, err := table.FromColumns([]table.ColumnData{
		{Name: "sym", Values: []string{"AAPL", "MSFT", "GOOG", "TSLA"}},
		{Name: "price", Values: []interface{}{101.5, nil, 250.0, 700.25}},
		{Name: "qty", Values: []int{10, 5, 8, 2}},
		{Name: "active", Values: []bool{true, false, true, false}},
	}, nil)
	require.NoError(t, err)
	return tbl
}

// assertSameRows compares tables by their materialized rows, ignoring
// column order.
func assertSameRows(t *testing.T, want, got *table.Table) {
	t.Helper()
	require.Equal(t, want.RowCount(), got.RowCount())

	wantNames := want.Names()
	gotNames := got.Names()
	sort.Strings(wantNames)
	sort.Strings(gotNames)
	require.Equal(t, wantNames, gotNames)

	assert.Equal(t, want.Rows(), got.Rows())
}

func roundTrip(t *testing.T, tbl *table.Table, format Format) *table.Table {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, WriteTo(&buf, tbl, format, nil))
	out, err := ReadFrom(&buf, format, nil)
	require.NoError(t, err)
	return out
}

func TestDetectFormat(t *testing.T) {
	cases := []struct {
		path   string
		format Format
		algo   compression.Algorithm
	}{
		{"trades.csv", FormatCSV, compression.None},
		{"trades.json.gz", FormatJSON, compression.Gzip},
		{"TRADES.NDJSON", FormatNDJSON, compression.None},
		{"data/trades.jsonl.zst", FormatNDJSON, compression.Zstd},
		{"trades.avro", FormatAvro, compression.None},
		{"trades.parquet", FormatParquet, compression.None},
		{"trades.arrow", FormatArrow, compression.None},
		{"trades.feather", FormatArrow, compression.None},
	}
	for _, tc := range cases {
		t.Run(tc.path, func(t *testing.T) {
			format, algo, err := DetectFormat(tc.path)
			require.NoError(t, err)
			assert.Equal(t, tc.format, format)
			assert.Equal(t, tc.algo, algo)
		})
	}

	_, _, err := DetectFormat("notes.txt")
	require.Error(t, err)
	assert.True(t, errors.IsArgument(err))

	_, _, err = DetectFormat("noextension")
	require.Error(t, err)
}

func TestParseFormat(t *testing.T) {
	f, err := ParseFormat("CSV")
	require.NoError(t, err)
	assert.Equal(t, FormatCSV, f)

	f, err = ParseFormat("jsonl")
	require.NoError(t, err)
	assert.Equal(t, FormatNDJSON, f)

	_, err = ParseFormat("xml")
	require.Error(t, err)
	assert.True(t, errors.IsArgument(err))
}

func TestCSVRoundTrip(t *testing.T) {
	tbl := tradesFixture(t)
	out := roundTrip(t, tbl, FormatCSV)

	assert.Equal(t, tbl.Names(), out.Names())
	assertSameRows(t, tbl, out)

	// The missing price survives as a missing value, not as text.
	price, ok := out.Col("price")
	require.True(t, ok)
	assert.Nil(t, price.Value(1))
}

func TestCSVInference(t *testing.T) {
	src := strings.Join([]string{
		"id,score,flag,day,label,mixed",
		"1,1.5,true,2024-03-01,alpha,7",
		"2,2.0,false,2024-03-02,beta,x",
		"3,,TRUE,2024-03-03,gamma,9",
	}, "\n")

	out, err := ReadFrom(strings.NewReader(src), FormatCSV, nil)
	require.NoError(t, err)
	require.Equal(t, 3, out.RowCount())
	assert.Equal(t, []string{"id", "score", "flag", "day", "label", "mixed"}, out.Names())

	id, _ := out.Col("id")
	f, ok := vector.ToFloat64(id.Value(0))
	require.True(t, ok)
	assert.Equal(t, 1.0, f)

	score, _ := out.Col("score")
	assert.Equal(t, 1.5, score.Value(0))
	assert.Nil(t, score.Value(2))

	flag, _ := out.Col("flag")
	assert.Equal(t, true, flag.Value(0))
	assert.Equal(t, true, flag.Value(2))

	day, _ := out.Col("day")
	assert.Equal(t, time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC), day.Value(0))

	label, _ := out.Col("label")
	assert.Equal(t, "beta", label.Value(1))

	// Two numbers and one word stay text: below the confidence bar.
	mixed, _ := out.Col("mixed")
	assert.Equal(t, "7", mixed.Value(0))
	assert.Equal(t, "x", mixed.Value(1))
}

func TestCSVInferenceDisabled(t *testing.T) {
	src := "n,b\n1,true\n2,false\n"
	out, err := ReadFrom(strings.NewReader(src), FormatCSV, &Options{DisableInference: true})
	require.NoError(t, err)

	n, _ := out.Col("n")
	assert.Equal(t, "1", n.Value(0))
	b, _ := out.Col("b")
	assert.Equal(t, "true", b.Value(0))
}

func TestCSVChunkedRead(t *testing.T) {
	tbl := tradesFixture(t)
	var buf bytes.Buffer
	require.NoError(t, WriteTo(&buf, tbl, FormatCSV, nil))

	out, err := ReadFrom(&buf, FormatCSV, &Options{ChunkRows: 2})
	require.NoError(t, err)
	assertSameRows(t, tbl, out)
}

func TestCSVDuplicateHeader(t *testing.T) {
	_, err := ReadFrom(strings.NewReader("a,b,a\n1,2,3\n"), FormatCSV, nil)
	require.Error(t, err)
	assert.True(t, errors.IsSchema(err))
}

func TestCSVRaggedRow(t *testing.T) {
	_, err := ReadFrom(strings.NewReader("a,b\n1,2\n3\n"), FormatCSV, nil)
	require.Error(t, err)
	assert.True(t, errors.IsData(err))
}

func TestCSVEmptyInput(t *testing.T) {
	out, err := ReadFrom(strings.NewReader(""), FormatCSV, nil)
	require.NoError(t, err)
	assert.Equal(t, 0, out.RowCount())
	assert.Equal(t, 0, out.ColumnCount())

	out, err = ReadFrom(strings.NewReader("a,b\n"), FormatCSV, nil)
	require.NoError(t, err)
	assert.Equal(t, 0, out.RowCount())
	assert.Equal(t, 2, out.ColumnCount())
}

func TestJSONRoundTrip(t *testing.T) {
	tbl := tradesFixture(t)
	out := roundTrip(t, tbl, FormatJSON)

	// JSON objects carry no key order, so columns come back sorted.
	assert.Equal(t, []string{"active", "price", "qty", "sym"}, out.Names())
	assertSameRows(t, tbl, out)
}

func TestNDJSONRoundTrip(t *testing.T) {
	tbl := tradesFixture(t)
	out := roundTrip(t, tbl, FormatNDJSON)
	assertSameRows(t, tbl, out)
}

func TestNDJSONRaggedRecords(t *testing.T) {
	src := "{\"a\": 1, \"b\": \"x\"}\n\n{\"b\": \"y\", \"c\": true}\n"
	out, err := ReadFrom(strings.NewReader(src), FormatNDJSON, nil)
	require.NoError(t, err)

	assert.Equal(t, []string{"a", "b", "c"}, out.Names())
	require.Equal(t, 2, out.RowCount())

	a, _ := out.Col("a")
	assert.Equal(t, 1.0, a.Value(0))
	assert.Nil(t, a.Value(1))
	c, _ := out.Col("c")
	assert.Nil(t, c.Value(0))
	assert.Equal(t, true, c.Value(1))
}

func TestJSONInvalidInput(t *testing.T) {
	_, err := ReadFrom(strings.NewReader("{not json"), FormatJSON, nil)
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeFormat))

	_, err = ReadFrom(strings.NewReader("{\"a\": }\n"), FormatNDJSON, nil)
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeFormat))
}

func TestAvroRoundTrip(t *testing.T) {
	tbl := tradesFixture(t)
	out := roundTrip(t, tbl, FormatAvro)

	// Avro schemas preserve field order.
	assert.Equal(t, tbl.Names(), out.Names())
	assertSameRows(t, tbl, out)
}

func TestAvroRejectsInvalidFieldName(t *testing.T) {
	tbl, err := table.FromColumns([]table.ColumnData{
		{Name: "bad name", Values: []int{1}},
	}, nil)
	require.NoError(t, err)

	var buf bytes.Buffer
	err = WriteTo(&buf, tbl, FormatAvro, nil)
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeFormat))
}

func TestParquetRoundTrip(t *testing.T) {
	tbl := tradesFixture(t)
	out := roundTrip(t, tbl, FormatParquet)

	// Group schemas sort fields by name.
	assert.Equal(t, []string{"active", "price", "qty", "sym"}, out.Names())
	assertSameRows(t, tbl, out)
}

func TestParquetRejectsColumnlessTable(t *testing.T) {
	tbl, err := table.FromColumns(nil, nil)
	require.NoError(t, err)

	var buf bytes.Buffer
	err = WriteTo(&buf, tbl, FormatParquet, nil)
	require.Error(t, err)
	assert.True(t, errors.IsArgument(err))
}

func TestArrowRoundTrip(t *testing.T) {
	tbl := tradesFixture(t)
	out := roundTrip(t, tbl, FormatArrow)

	assert.Equal(t, tbl.Names(), out.Names())
	assertSameRows(t, tbl, out)

	// Single-batch files import zero-copy through Arrow storage.
	price, ok := out.Col("price")
	require.True(t, ok)
	assert.Equal(t, vector.KindArrow, price.Vector().Kind())
}

func TestTimeColumnsRoundTripThroughCSV(t *testing.T) {
	day := time.Date(2024, 6, 15, 9, 30, 0, 0, time.UTC)
	tbl, err := table.FromColumns([]table.ColumnData{
		{Name: "stamp", Values: []interface{}{day, day.Add(time.Hour)}},
	}, nil)
	require.NoError(t, err)

	out := roundTrip(t, tbl, FormatCSV)
	stamp, ok := out.Col("stamp")
	require.True(t, ok)
	assert.Equal(t, day, stamp.Value(0))
	assert.Equal(t, day.Add(time.Hour), stamp.Value(1))
}

func TestFileRoundTripsWithCompression(t *testing.T) {
	tbl := tradesFixture(t)
	dir := t.TempDir()

	names := []string{
		"trades.csv",
		"trades.csv.gz",
		"trades.json",
		"trades.ndjson.zst",
		"trades.avro",
		"trades.parquet",
		"trades.arrow",
	}
	for _, name := range names {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(dir, name)
			require.NoError(t, Write(path, tbl, nil))

			out, err := Read(path, nil)
			require.NoError(t, err)
			assertSameRows(t, tbl, out)
		})
	}

	// The compressed variants really are compressed.
	gz, err := os.ReadFile(filepath.Join(dir, "trades.csv.gz"))
	require.NoError(t, err)
	require.True(t, len(gz) > 2)
	assert.Equal(t, []byte{0x1f, 0x8b}, gz[:2])

	zst, err := os.ReadFile(filepath.Join(dir, "trades.ndjson.zst"))
	require.NoError(t, err)
	require.True(t, len(zst) > 4)
	assert.Equal(t, []byte{0x28, 0xb5, 0x2f, 0xfd}, zst[:4])
}

func TestReadMissingFile(t *testing.T) {
	_, err := Read(filepath.Join(t.TempDir(), "absent.csv"), nil)
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeIO))
}

func TestUnknownFormats(t *testing.T) {
	tbl := tradesFixture(t)

	var buf bytes.Buffer
	err := WriteTo(&buf, tbl, FormatUnknown, nil)
	require.Error(t, err)
	assert.True(t, errors.IsArgument(err))

	_, err = ReadFrom(strings.NewReader("x"), FormatUnknown, nil)
	require.Error(t, err)
	assert.True(t, errors.IsArgument(err))

	err = Write(filepath.Join(t.TempDir(), "trades.dat"), tbl, nil)
	require.Error(t, err)
	assert.True(t, errors.IsArgument(err))
}

func TestFormatOverride(t *testing.T) {
	tbl := tradesFixture(t)
	dir := t.TempDir()

	// A .dat extension says nothing; opts.Format decides.
	path := filepath.Join(dir, "trades.dat")
	require.NoError(t, Write(path, tbl, &Options{Format: FormatCSV}))

	out, err := Read(path, &Options{Format: FormatCSV})
	require.NoError(t, err)
	assertSameRows(t, tbl, out)
}

func TestMappedRead(t *testing.T) {
	old := mmapThreshold
	mmapThreshold = 1
	defer func() { mmapThreshold = old }()

	tbl := tradesFixture(t)
	path := filepath.Join(t.TempDir(), "trades.csv")
	require.NoError(t, Write(path, tbl, nil))

	out, err := Read(path, nil)
	require.NoError(t, err)
	assertSameRows(t, tbl, out)

	// Compressed files stay on the stream path regardless of size.
	zpath := filepath.Join(t.TempDir(), "trades.csv.gz")
	require.NoError(t, Write(zpath, tbl, nil))
	out, err = Read(zpath, nil)
	require.NoError(t, err)
	assertSameRows(t, tbl, out)
}

func TestDetectFieldTypes(t *testing.T) {
	cases := []struct {
		in   string
		want fieldType
	}{
		{"true", fieldBool},
		{"FALSE", fieldBool},
		{"42", fieldInt},
		{"-7", fieldInt},
		{"3.14", fieldFloat},
		{"1e6", fieldFloat},
		{"2024-03-01", fieldTime},
		{"2024-03-01T12:30:00Z", fieldTime},
		{"03/15/2024", fieldTime},
		{"hello", fieldString},
		{"1,000", fieldString},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, detectField(tc.in), "input %q", tc.in)
	}
}

func TestInferFieldTypeThreshold(t *testing.T) {
	// 19 numbers and one word is 95%: just enough.
	fields := make([]string, 0, 20)
	for i := 0; i < 19; i++ {
		fields = append(fields, "7")
	}
	fields = append(fields, "x")
	assert.Equal(t, fieldInt, inferFieldType(fields))

	// 18 of 20 falls below the bar.
	fields[0] = "y"
	assert.Equal(t, fieldString, inferFieldType(fields))

	// Integers and floats merge into float.
	assert.Equal(t, fieldFloat, inferFieldType([]string{"1", "2.5", "3"}))

	// Empty fields do not vote.
	assert.Equal(t, fieldInt, inferFieldType([]string{"", "4", ""}))
	assert.Equal(t, fieldString, inferFieldType([]string{"", ""}))
	assert.Equal(t, fieldString, inferFieldType(nil))
}
