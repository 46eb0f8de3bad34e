package table

import (
	"github.com/quiverdata/quiver/pkg/errors"
)

// Built-in pipeline operations. Each op is a thin adapter from loosely
// typed step arguments (decoded YAML or JSON) onto a Table method, so
// jobs can name transformations without compiling against this
// package.
func init() {
	mustRegister(RegisterOp("select", opSelect))
	mustRegister(RegisterOp("drop", opDrop))
	mustRegister(RegisterOp("rename", opRename))
	mustRegister(RegisterOp("head", opHead))
	mustRegister(RegisterOp("tail", opTail))
	mustRegister(RegisterOp("slice", opSlice))
	mustRegister(RegisterOp("sort", opSort))
	mustRegister(RegisterOp("fill_missing", opFillMissing))
	mustRegister(RegisterOp("drop_missing", opDropMissing))
	mustRegister(RegisterOp("group_by", opGroupBy))
	mustRegister(RegisterOp("pivot", opPivot))
	mustRegister(RegisterOp("join", opJoin))
	mustRegister(RegisterOp("resample", opResample))
	mustRegister(RegisterOp("cut", opCut))
	mustRegister(RegisterOp("describe", opDescribe))
}

func opSelect(t *Table, args map[string]interface{}) (*Table, error) {
	names, err := argStringSlice(args, "columns")
	if err != nil {
		return nil, err
	}
	return t.Select(names...)
}

func opDrop(t *Table, args map[string]interface{}) (*Table, error) {
	names, err := argStringSlice(args, "columns")
	if err != nil {
		return nil, err
	}
	return t.Drop(names...)
}

func opRename(t *Table, args map[string]interface{}) (*Table, error) {
	from, err := argString(args, "from")
	if err != nil {
		return nil, err
	}
	to, err := argString(args, "to")
	if err != nil {
		return nil, err
	}
	return t.Rename(from, to)
}

func opHead(t *Table, args map[string]interface{}) (*Table, error) {
	n, err := argInt(args, "n")
	if err != nil {
		return nil, err
	}
	return t.Head(n), nil
}

func opTail(t *Table, args map[string]interface{}) (*Table, error) {
	n, err := argInt(args, "n")
	if err != nil {
		return nil, err
	}
	return t.Tail(n), nil
}

func opSlice(t *Table, args map[string]interface{}) (*Table, error) {
	start, err := argInt(args, "start")
	if err != nil {
		return nil, err
	}
	end, err := argInt(args, "end")
	if err != nil {
		return nil, err
	}
	return t.SliceRows(start, end), nil
}

func opSort(t *Table, args map[string]interface{}) (*Table, error) {
	by, err := argString(args, "by")
	if err != nil {
		return nil, err
	}
	ascending := true
	if v, ok := args["ascending"]; ok {
		b, ok := v.(bool)
		if !ok {
			return nil, errors.Newf(errors.ErrorTypeArgument, "ascending must be a boolean, got %T", v)
		}
		ascending = b
	}
	return t.Sort(by, ascending)
}

func opFillMissing(t *Table, args map[string]interface{}) (*Table, error) {
	column, err := argString(args, "column")
	if err != nil {
		return nil, err
	}
	return t.FillMissing(column, args["value"])
}

func opDropMissing(t *Table, args map[string]interface{}) (*Table, error) {
	if _, ok := args["columns"]; !ok {
		return t.DropMissing()
	}
	names, err := argStringSlice(args, "columns")
	if err != nil {
		return nil, err
	}
	return t.DropMissing(names...)
}

func opGroupBy(t *Table, args map[string]interface{}) (*Table, error) {
	by, err := argStringSlice(args, "by")
	if err != nil {
		return nil, err
	}
	spec, err := argMap(args, "agg")
	if err != nil {
		return nil, err
	}
	g, err := t.GroupBy(by...)
	if err != nil {
		return nil, err
	}
	return g.Agg(spec)
}

func opPivot(t *Table, args map[string]interface{}) (*Table, error) {
	index, err := argStringSlice(args, "index")
	if err != nil {
		return nil, err
	}
	spread, err := argStringSlice(args, "columns")
	if err != nil {
		return nil, err
	}
	values, err := argString(args, "values")
	if err != nil {
		return nil, err
	}
	return t.Pivot(index, spread, values, args["agg"])
}

func opJoin(t *Table, args map[string]interface{}) (*Table, error) {
	right, ok := args["right"].(*Table)
	if !ok {
		return nil, errors.New(errors.ErrorTypeArgument, "join requires a right table")
	}
	on, err := argStringSlice(args, "on")
	if err != nil {
		return nil, err
	}
	mode := InnerJoin
	if v, ok := args["mode"]; ok {
		s, ok := v.(string)
		if !ok {
			return nil, errors.Newf(errors.ErrorTypeArgument, "mode must be a string, got %T", v)
		}
		m, ok := ParseJoinMode(s)
		if !ok {
			return nil, errors.Newf(errors.ErrorTypeArgument, "unknown join mode %q", s)
		}
		mode = m
	}
	return t.Join(right, on, mode)
}

func opResample(t *Table, args map[string]interface{}) (*Table, error) {
	column, err := argString(args, "column")
	if err != nil {
		return nil, err
	}
	freq, err := argString(args, "freq")
	if err != nil {
		return nil, err
	}
	spec, err := argMap(args, "agg")
	if err != nil {
		return nil, err
	}
	return t.Resample(column, freq, spec)
}

func opCut(t *Table, args map[string]interface{}) (*Table, error) {
	column, err := argString(args, "column")
	if err != nil {
		return nil, err
	}
	bins, err := argFloatSlice(args, "bins")
	if err != nil {
		return nil, err
	}
	labels, err := argStringSlice(args, "labels")
	if err != nil {
		return nil, err
	}
	into, _ := args["into"].(string)
	return t.Cut(column, bins, labels, into)
}

func opDescribe(t *Table, args map[string]interface{}) (*Table, error) {
	return t.Describe()
}

// Argument coercion. Step arguments arrive as whatever the config
// decoder produced, so every accessor normalizes and reports a typed
// ArgumentError on mismatch.

func argString(args map[string]interface{}, key string) (string, error) {
	v, ok := args[key]
	if !ok {
		return "", errors.Newf(errors.ErrorTypeArgument, "missing argument %q", key)
	}
	s, ok := v.(string)
	if !ok {
		return "", errors.Newf(errors.ErrorTypeArgument, "argument %q must be a string, got %T", key, v)
	}
	return s, nil
}

func argInt(args map[string]interface{}, key string) (int, error) {
	v, ok := args[key]
	if !ok {
		return 0, errors.Newf(errors.ErrorTypeArgument, "missing argument %q", key)
	}
	switch n := v.(type) {
	case int:
		return n, nil
	case int64:
		return int(n), nil
	case float64:
		return int(n), nil
	default:
		return 0, errors.Newf(errors.ErrorTypeArgument, "argument %q must be a number, got %T", key, v)
	}
}

func argStringSlice(args map[string]interface{}, key string) ([]string, error) {
	v, ok := args[key]
	if !ok {
		return nil, errors.Newf(errors.ErrorTypeArgument, "missing argument %q", key)
	}
	switch seq := v.(type) {
	case []string:
		return seq, nil
	case string:
		return []string{seq}, nil
	case []interface{}:
		out := make([]string, len(seq))
		for i, e := range seq {
			s, ok := e.(string)
			if !ok {
				return nil, errors.Newf(errors.ErrorTypeArgument,
					"argument %q must contain strings, got %T", key, e)
			}
			out[i] = s
		}
		return out, nil
	default:
		return nil, errors.Newf(errors.ErrorTypeArgument, "argument %q must be a list, got %T", key, v)
	}
}

func argFloatSlice(args map[string]interface{}, key string) ([]float64, error) {
	v, ok := args[key]
	if !ok {
		return nil, errors.Newf(errors.ErrorTypeArgument, "missing argument %q", key)
	}
	switch seq := v.(type) {
	case []float64:
		return seq, nil
	case []interface{}:
		out := make([]float64, len(seq))
		for i, e := range seq {
			switch n := e.(type) {
			case float64:
				out[i] = n
			case int:
				out[i] = float64(n)
			case int64:
				out[i] = float64(n)
			default:
				return nil, errors.Newf(errors.ErrorTypeArgument,
					"argument %q must contain numbers, got %T", key, e)
			}
		}
		return out, nil
	default:
		return nil, errors.Newf(errors.ErrorTypeArgument, "argument %q must be a list, got %T", key, v)
	}
}

func argMap(args map[string]interface{}, key string) (map[string]interface{}, error) {
	v, ok := args[key]
	if !ok {
		return nil, errors.Newf(errors.ErrorTypeArgument, "missing argument %q", key)
	}
	m, ok := v.(map[string]interface{})
	if !ok {
		return nil, errors.Newf(errors.ErrorTypeArgument, "argument %q must be a mapping, got %T", key, v)
	}
	return m, nil
}
