package normalize

import (
	"bytes"
	"encoding/json"
)

// Record is one result row. Columns is shared by every record of a result and
// keeps the engine's order, duplicates included.
type Record struct {
	Columns []string
	Cells   []Cell
}

// Get returns the first cell under name.
func (r Record) Get(name string) (Cell, bool) {
	for i, col := range r.Columns {
		if col == name {
			return r.Cells[i], true
		}
	}
	return Cell{}, false
}

// MarshalJSON writes an object whose keys follow column order.
func (r Record) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, col := range r.Columns {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(col)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		val, err := r.Cells[i].MarshalJSON()
		if err != nil {
			return nil, err
		}
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}
