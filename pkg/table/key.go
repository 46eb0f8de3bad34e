package table

import (
	"encoding/binary"
	"math"

	stringpool "github.com/quiverdata/quiver/pkg/strings"
	"github.com/quiverdata/quiver/pkg/vector"
)

// Composite keys identify one group partition or join bucket. Each
// element is type-tagged and length-prefixed, so tuples are
// collision-free even when a value contains bytes that look like
// another tuple's boundary. Numbers of every width compare by value
// through a shared float64 encoding, matching how construction and
// aggregation already treat them.
const (
	keyTagMissing byte = 0x00
	keyTagNumber  byte = 0x01
	keyTagBool    byte = 0x02
	keyTagString  byte = 0x03
	keyTagOther   byte = 0x04
)

// encodeKey builds the composite key for an ordered tuple of values.
func encodeKey(values []interface{}) string {
	buf := make([]byte, 0, 16*len(values))
	for _, v := range values {
		buf = appendKeyValue(buf, v)
	}
	return stringpool.BytesToString(buf)
}

// encodeValue builds the key for a single value, used for structural
// equality in Unique and ValueCounts.
func encodeValue(v interface{}) string {
	return stringpool.BytesToString(appendKeyValue(nil, v))
}

func appendKeyValue(buf []byte, v interface{}) []byte {
	if vector.IsMissing(v) {
		return append(buf, keyTagMissing)
	}
	if b, ok := v.(bool); ok {
		buf = append(buf, keyTagBool)
		if b {
			return append(buf, 1)
		}
		return append(buf, 0)
	}
	if f, ok := vector.ToFloat64(v); ok {
		buf = append(buf, keyTagNumber)
		return binary.BigEndian.AppendUint64(buf, math.Float64bits(f))
	}
	if s, ok := v.(string); ok {
		buf = append(buf, keyTagString)
		buf = binary.AppendUvarint(buf, uint64(len(s)))
		return append(buf, s...)
	}
	s := stringpool.ValueToString(v)
	buf = append(buf, keyTagOther)
	buf = binary.AppendUvarint(buf, uint64(len(s)))
	return append(buf, s...)
}
