package dataset

import (
	"bufio"
	"bytes"
	"io"
	"sort"

	"github.com/quiverdata/quiver/pkg/errors"
	"github.com/quiverdata/quiver/pkg/json"
	"github.com/quiverdata/quiver/pkg/table"
	"github.com/quiverdata/quiver/pkg/vector"
)

// readJSON decodes an array of record objects.
func readJSON(r io.Reader, opts *Options) (*table.Table, error) {
	dec := json.GetDecoder(r)
	defer json.PutDecoder(dec)

	var rows []table.Row
	if err := dec.Decode(&rows); err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeFormat, "decoding JSON dataset")
	}
	return tableFromRows(rows, opts)
}

// readNDJSON decodes one record object per line, skipping blank lines.
func readNDJSON(r io.Reader, opts *Options) (*table.Table, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)

	var rows []table.Row
	line := 0
	for scanner.Scan() {
		line++
		data := bytes.TrimSpace(scanner.Bytes())
		if len(data) == 0 {
			continue
		}
		row := make(table.Row)
		if err := json.Unmarshal(data, &row); err != nil {
			return nil, errors.Wrapf(err, errors.ErrorTypeFormat, "decoding NDJSON line %d", line)
		}
		rows = append(rows, row)
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeIO, "reading NDJSON stream")
	}
	return tableFromRows(rows, opts)
}

// tableFromRows rebuilds columns from decoded records. JSON objects
// carry no key order, so columns sort by name; keys missing from a
// record are missing values, and keys appearing only in later records
// still become columns.
func tableFromRows(rows []table.Row, opts *Options) (*table.Table, error) {
	names := make(map[string]struct{})
	for _, row := range rows {
		for k := range row {
			names[k] = struct{}{}
		}
	}
	ordered := make([]string, 0, len(names))
	for k := range names {
		ordered = append(ordered, k)
	}
	sort.Strings(ordered)

	data := make([]table.ColumnData, len(ordered))
	for j, name := range ordered {
		values := make([]interface{}, len(rows))
		for i, row := range rows {
			if v, ok := row[name]; ok {
				values[i] = v
			}
		}
		data[j] = table.ColumnData{Name: name, Values: values}
	}
	return table.FromColumns(data, opts.Vector)
}

// writeJSON streams the rows as one JSON array. Missing values encode
// as null; NaN has no JSON form, so the normalization is mandatory, not
// cosmetic.
func writeJSON(w io.Writer, t *table.Table) error {
	enc := json.NewStreamingEncoder(w, true)
	if err := encodeRows(enc, t); err != nil {
		return err
	}
	return enc.Close()
}

// writeNDJSON streams one record object per line.
func writeNDJSON(w io.Writer, t *table.Table) error {
	enc := json.NewStreamingEncoder(w, false)
	if err := encodeRows(enc, t); err != nil {
		return err
	}
	return enc.Close()
}

func encodeRows(enc *json.StreamingEncoder, t *table.Table) error {
	for _, row := range t.Rows() {
		for k, v := range row {
			if vector.IsMissing(v) {
				row[k] = nil
			}
		}
		if err := enc.Encode(row); err != nil {
			return errors.Wrap(err, errors.ErrorTypeFormat, "encoding JSON row")
		}
	}
	return nil
}
