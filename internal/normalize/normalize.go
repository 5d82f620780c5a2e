// Package normalize converts engine-native rows into ordered records of
// type-tagged cells.
//
// The mapping is total over the values database/sql drivers produce. A value
// with no mapping is reported as ErrUnmappedType rather than dropped.
package normalize

import (
	"database/sql/driver"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"math/big"
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	mssql "github.com/denisenkom/go-mssqldb"
	"github.com/google/uuid"
)

var ErrUnmappedType = errors.New("unmapped column type")

// Column describes one result column as reported by the engine.
type Column struct {
	Name         string
	DatabaseType string
}

// NativeRows is a result as scanned from the engine: one []any per row, each
// value already copied out of the driver's buffers.
type NativeRows struct {
	Columns []Column
	Values  [][]any
}

func (n NativeRows) Names() []string {
	names := make([]string, len(n.Columns))
	for i, c := range n.Columns {
		names[i] = c.Name
	}
	return names
}

// Normalize maps every value of rows. Column order is preserved and every
// record shares the same column slice.
func Normalize(rows NativeRows) ([]Record, error) {
	names := rows.Names()
	families := make([]family, len(rows.Columns))
	for i, c := range rows.Columns {
		families[i] = familyOf(c.DatabaseType)
	}

	records := make([]Record, 0, len(rows.Values))
	for r, raw := range rows.Values {
		if len(raw) != len(names) {
			return nil, fmt.Errorf("row %d has %d values for %d columns", r, len(raw), len(names))
		}
		cells := make([]Cell, len(raw))
		for i, v := range raw {
			cell, err := value(v, families[i], 0)
			if err != nil {
				return nil, fmt.Errorf("column %q (%s): %w", names[i], rows.Columns[i].DatabaseType, err)
			}
			cells[i] = cell
		}
		records = append(records, Record{Columns: names, Cells: cells})
	}
	return records, nil
}

// Value maps a single native value given the column's database type name.
func Value(v any, databaseType string) (Cell, error) {
	return value(v, familyOf(databaseType), 0)
}

const maxValuerDepth = 4

func value(v any, fam family, depth int) (Cell, error) {
	switch x := v.(type) {
	case nil:
		return Null(), nil
	case bool:
		return Boolean(x), nil
	case int:
		return Number(strconv.FormatInt(int64(x), 10)), nil
	case int8:
		return Number(strconv.FormatInt(int64(x), 10)), nil
	case int16:
		return Number(strconv.FormatInt(int64(x), 10)), nil
	case int32:
		return Number(strconv.FormatInt(int64(x), 10)), nil
	case int64:
		if fam == familyBoolean {
			return Boolean(x != 0), nil
		}
		return Number(strconv.FormatInt(x, 10)), nil
	case uint:
		return Number(strconv.FormatUint(uint64(x), 10)), nil
	case uint8:
		return Number(strconv.FormatUint(uint64(x), 10)), nil
	case uint16:
		return Number(strconv.FormatUint(uint64(x), 10)), nil
	case uint32:
		return Number(strconv.FormatUint(uint64(x), 10)), nil
	case uint64:
		return Number(strconv.FormatUint(x, 10)), nil
	case float32:
		return float(float64(x), 32), nil
	case float64:
		return float(x, 64), nil
	case string:
		return fromText(x, fam), nil
	case []byte:
		return fromBytes(x, fam), nil
	case time.Time:
		return fromTime(x, fam), nil
	case json.Number:
		return fromText(string(x), familyNumeric), nil
	case [16]byte:
		return Text(uuid.UUID(x).String()), nil
	case uuid.UUID:
		return Text(x.String()), nil
	case *big.Int:
		if x == nil {
			return Null(), nil
		}
		return Number(x.String()), nil
	case *big.Rat:
		if x == nil {
			return Null(), nil
		}
		return Number(ratString(x)), nil
	case *big.Float:
		if x == nil {
			return Null(), nil
		}
		if x.IsInf() {
			return Text(x.String()), nil
		}
		return Number(x.Text('f', -1)), nil
	case driver.Valuer:
		if depth >= maxValuerDepth {
			return Cell{}, fmt.Errorf("%w: %T nests too deeply", ErrUnmappedType, v)
		}
		inner, err := x.Value()
		if err != nil {
			return Cell{}, fmt.Errorf("%T value: %w", v, err)
		}
		return value(inner, fam, depth+1)
	default:
		return Cell{}, fmt.Errorf("%w: %T", ErrUnmappedType, v)
	}
}

func float(f float64, bits int) Cell {
	switch {
	case math.IsNaN(f):
		return Text("NaN")
	case math.IsInf(f, 1):
		return Text("Infinity")
	case math.IsInf(f, -1):
		return Text("-Infinity")
	}
	return Number(strconv.FormatFloat(f, 'f', -1, bits))
}

var decimalPattern = regexp.MustCompile(`^-?(0|[1-9][0-9]*)(\.[0-9]+)?([eE][+-]?[0-9]+)?$`)

// decimal canonicalizes engine decimal text into a JSON number literal.
func decimal(s string) (string, bool) {
	s = strings.TrimSpace(s)
	neg := false
	switch {
	case strings.HasPrefix(s, "-"):
		neg, s = true, s[1:]
	case strings.HasPrefix(s, "+"):
		s = s[1:]
	}
	if strings.HasPrefix(s, ".") {
		s = "0" + s
	}
	s = strings.TrimSuffix(s, ".")
	if len(s) > 1 && s[0] == '0' && s[1] != '.' && s[1] != 'e' && s[1] != 'E' {
		s = strings.TrimLeft(s, "0")
		if s == "" || s[0] == '.' || s[0] == 'e' || s[0] == 'E' {
			s = "0" + s
		}
	}
	if neg {
		s = "-" + s
	}
	return s, decimalPattern.MatchString(s)
}

func fromText(s string, fam family) Cell {
	switch fam {
	case familyNumeric:
		if d, ok := decimal(s); ok {
			return Number(d)
		}
	case familyTemporal, familyDate, familyTime:
		if t, ok := parseTemporal(s); ok {
			return fromTime(t, fam)
		}
		return Temporal(s)
	case familyBoolean:
		if b, err := strconv.ParseBool(strings.TrimSpace(s)); err == nil {
			return Boolean(b)
		}
	}
	return Text(s)
}

func fromBytes(b []byte, fam family) Cell {
	switch fam {
	case familyBinary:
		return Text(base64.StdEncoding.EncodeToString(b))
	case familyUUID:
		if len(b) == 16 {
			var id mssql.UniqueIdentifier
			if err := id.Scan(b); err == nil {
				return Text(strings.ToLower(id.String()))
			}
		}
	}
	if !utf8.Valid(b) {
		return Text(base64.StdEncoding.EncodeToString(b))
	}
	return fromText(string(b), fam)
}

func fromTime(t time.Time, fam family) Cell {
	switch fam {
	case familyDate:
		return Temporal(t.Format("2006-01-02"))
	case familyTime:
		return Temporal(t.Format("15:04:05.999999999"))
	default:
		return TemporalTime(t)
	}
}

var temporalLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05.999999999-07",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02T15:04:05.999999999",
	"2006-01-02",
	"15:04:05.999999999",
}

func parseTemporal(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	for _, layout := range temporalLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// ratString writes r exactly when its decimal expansion terminates within
// 38 digits, which covers every SQL DECIMAL precision.
func ratString(r *big.Rat) string {
	if r.IsInt() {
		return r.Num().String()
	}
	for prec := 1; prec <= 38; prec++ {
		s := r.FloatString(prec)
		back, ok := new(big.Rat).SetString(s)
		if ok && back.Cmp(r) == 0 {
			return s
		}
	}
	return r.FloatString(38)
}
