package dataset

import (
	"bufio"
	"io"

	"github.com/linkedin/goavro/v2"

	"github.com/quiverdata/quiver/pkg/errors"
	"github.com/quiverdata/quiver/pkg/json"
	"github.com/quiverdata/quiver/pkg/table"
	"github.com/quiverdata/quiver/pkg/vector"
)

// Avro blocks always compress with snappy; outer stream compression is
// independent of the container's internal codec.
const avroCompression = "snappy"

// writeAvro encodes the table as an Avro object container file. Every
// field is a nullable union, so missing values survive the trip. Avro
// restricts field names to [A-Za-z_][A-Za-z0-9_]*; columns outside that
// alphabet fail the schema build.
func writeAvro(w io.Writer, t *table.Table) error {
	schemaJSON, classes, err := avroSchema(t)
	if err != nil {
		return err
	}

	codec, err := goavro.NewCodec(schemaJSON)
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeFormat, "building Avro schema")
	}
	ocfw, err := goavro.NewOCFWriter(goavro.OCFConfig{
		W:               w,
		Codec:           codec,
		CompressionName: avroCompression,
	})
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeIO, "opening Avro container")
	}

	cols := t.Columns()
	n := t.RowCount()
	natives := make([]interface{}, 0, n)
	for i := 0; i < n; i++ {
		native := make(map[string]interface{}, len(cols))
		for j := range cols {
			native[cols[j].Name()] = avroNative(cols[j].Value(i), classes[j])
		}
		natives = append(natives, native)
	}
	if len(natives) == 0 {
		return nil
	}
	if err := ocfw.Append(natives); err != nil {
		return errors.Wrap(err, errors.ErrorTypeFormat, "appending Avro records")
	}
	return nil
}

// readAvro decodes an Avro object container file, columns in schema
// field order.
func readAvro(r io.Reader, opts *Options) (*table.Table, error) {
	ocfr, err := goavro.NewOCFReader(bufio.NewReader(r))
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeFormat, "opening Avro container")
	}

	names, err := avroFieldOrder(ocfr.Codec().Schema())
	if err != nil {
		return nil, err
	}

	values := make([][]interface{}, len(names))
	for ocfr.Scan() {
		datum, err := ocfr.Read()
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrorTypeFormat, "decoding Avro record")
		}
		rec, ok := datum.(map[string]interface{})
		if !ok {
			return nil, errors.Newf(errors.ErrorTypeFormat, "Avro datum is %T, want a record", datum)
		}
		for j, name := range names {
			values[j] = append(values[j], avroValue(rec[name]))
		}
	}
	if err := ocfr.Err(); err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeIO, "reading Avro container")
	}

	data := make([]table.ColumnData, len(names))
	for j, name := range names {
		data[j] = table.ColumnData{Name: name, Values: values[j]}
	}
	return table.FromColumns(data, opts.Vector)
}

func avroSchema(t *table.Table) (string, []colClass, error) {
	cols := t.Columns()
	classes := make([]colClass, len(cols))
	fields := make([]map[string]interface{}, 0, len(cols))
	for j := range cols {
		classes[j] = classifyColumn(&cols[j])
		fields = append(fields, map[string]interface{}{
			"name":    cols[j].Name(),
			"type":    []interface{}{"null", avroTypeName(classes[j])},
			"default": nil,
		})
	}
	schema := map[string]interface{}{
		"type":      "record",
		"name":      "Row",
		"namespace": "quiver",
		"fields":    fields,
	}
	data, err := json.Marshal(schema)
	if err != nil {
		return "", nil, errors.Wrap(err, errors.ErrorTypeFormat, "encoding Avro schema")
	}
	return string(data), classes, nil
}

func avroTypeName(cl colClass) string {
	switch cl {
	case classBool:
		return "boolean"
	case classInt:
		return "long"
	case classFloat:
		return "double"
	default:
		return "string"
	}
}

// avroNative wraps a value for goavro's union encoding: nil stays nil,
// everything else becomes the single-branch map goavro expects.
func avroNative(v interface{}, cl colClass) interface{} {
	if vector.IsMissing(v) {
		return nil
	}
	switch cl {
	case classBool:
		if b, ok := v.(bool); ok {
			return goavro.Union("boolean", b)
		}
	case classInt:
		if n, ok := toInt64(v); ok {
			return goavro.Union("long", n)
		}
	case classFloat:
		if f, ok := vector.ToFloat64(v); ok {
			return goavro.Union("double", f)
		}
	default:
		return goavro.Union("string", fieldText(v))
	}
	return nil
}

// avroValue unwraps goavro's union decoding.
func avroValue(v interface{}) interface{} {
	if m, ok := v.(map[string]interface{}); ok && len(m) == 1 {
		for _, inner := range m {
			return inner
		}
	}
	return v
}

func avroFieldOrder(schema string) ([]string, error) {
	var parsed struct {
		Fields []struct {
			Name string `json:"name"`
		} `json:"fields"`
	}
	if err := json.Unmarshal([]byte(schema), &parsed); err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeFormat, "parsing Avro schema")
	}
	names := make([]string, len(parsed.Fields))
	for i, f := range parsed.Fields {
		names[i] = f.Name
	}
	return names, nil
}
