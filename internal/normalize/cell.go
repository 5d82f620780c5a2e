package normalize

import (
	"encoding/json"
	"strconv"
	"time"
)

type Kind int

const (
	KindNull Kind = iota
	KindText
	KindNumber
	KindBoolean
	KindTemporal
)

var kindNames = [...]string{
	KindNull:     "null",
	KindText:     "text",
	KindNumber:   "number",
	KindBoolean:  "boolean",
	KindTemporal: "temporal",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return "kind(" + strconv.Itoa(int(k)) + ")"
}

// Cell is one normalized value. Numbers keep their exact decimal text so no
// float rounding happens between the engine and the client; temporal values
// are ISO-8601.
type Cell struct {
	Kind  Kind
	Value string
}

func Null() Cell { return Cell{Kind: KindNull} }

func Text(s string) Cell { return Cell{Kind: KindText, Value: s} }

// Number wraps a decimal literal. The caller guarantees s is a valid JSON number.
func Number(s string) Cell { return Cell{Kind: KindNumber, Value: s} }

func Boolean(b bool) Cell { return Cell{Kind: KindBoolean, Value: strconv.FormatBool(b)} }

func Temporal(s string) Cell { return Cell{Kind: KindTemporal, Value: s} }

func TemporalTime(t time.Time) Cell { return Temporal(t.Format(time.RFC3339Nano)) }

func (c Cell) IsNull() bool { return c.Kind == KindNull }

// MarshalJSON emits plain JSON values: null, strings, booleans and numbers
// written verbatim from their decimal text.
func (c Cell) MarshalJSON() ([]byte, error) {
	switch c.Kind {
	case KindNull:
		return []byte("null"), nil
	case KindNumber, KindBoolean:
		return []byte(c.Value), nil
	default:
		return json.Marshal(c.Value)
	}
}

// String renders the cell for terminal output.
func (c Cell) String() string {
	if c.Kind == KindNull {
		return "NULL"
	}
	return c.Value
}
