package dataset

import (
	"math"
	"strconv"
	"time"

	stringpool "github.com/quiverdata/quiver/pkg/strings"
)

const (
	inferenceSampleSize = 1000
	inferenceConfidence = 0.95
)

// fieldType classifies what a CSV column's raw fields parse into.
type fieldType int

const (
	fieldString fieldType = iota
	fieldBool
	fieldInt
	fieldFloat
	fieldTime
)

var timeLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02",
	"01/02/2006",
}

// detectField returns the most specific type a single non-empty field
// parses as. Only the word forms of booleans count, so "1" stays
// numeric.
func detectField(s string) fieldType {
	switch s {
	case "true", "false", "True", "False", "TRUE", "FALSE":
		return fieldBool
	}
	if _, err := strconv.ParseInt(s, 10, 64); err == nil {
		return fieldInt
	}
	if _, err := strconv.ParseFloat(s, 64); err == nil {
		return fieldFloat
	}
	for _, layout := range timeLayouts {
		if _, err := time.Parse(layout, s); err == nil {
			return fieldTime
		}
	}
	return fieldString
}

// inferFieldType picks a column type from sampled fields. The dominant
// detected type wins when it covers at least 95% of the non-empty
// sample; integers merge into float when both appear; anything murkier
// stays string.
func inferFieldType(samples []string) fieldType {
	var counts [5]int
	total := 0
	for _, s := range samples {
		if s == "" {
			continue
		}
		counts[detectField(s)]++
		total++
	}
	if total == 0 {
		return fieldString
	}

	threshold := int(math.Ceil(inferenceConfidence * float64(total)))
	switch {
	case counts[fieldBool] >= threshold:
		return fieldBool
	case counts[fieldInt] >= threshold:
		return fieldInt
	case counts[fieldInt]+counts[fieldFloat] >= threshold:
		return fieldFloat
	case counts[fieldTime] >= threshold:
		return fieldTime
	default:
		return fieldString
	}
}

// parseField converts one raw field according to the column's inferred
// type. Empty fields are missing; fields that fail to parse keep their
// raw text so no data is dropped.
func parseField(s string, ft fieldType, intern *stringpool.Intern) interface{} {
	if s == "" {
		return nil
	}
	switch ft {
	case fieldBool:
		switch s {
		case "true", "True", "TRUE":
			return true
		case "false", "False", "FALSE":
			return false
		}
	case fieldInt:
		if n, err := strconv.ParseInt(s, 10, 64); err == nil {
			return n
		}
		if f, err := strconv.ParseFloat(s, 64); err == nil {
			return f
		}
	case fieldFloat:
		if f, err := strconv.ParseFloat(s, 64); err == nil {
			return f
		}
	case fieldTime:
		for _, layout := range timeLayouts {
			if tm, err := time.Parse(layout, s); err == nil {
				return tm
			}
		}
	}
	return intern.Get(s)
}
