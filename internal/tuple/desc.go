package tuple

import "database/sql/driver"

// Type is the storage type of a column.
type Type int

const (
	Float4 Type = iota
	Int4
	Text
)

func (t Type) String() string {
	switch t {
	case Float4:
		return "float4"
	case Int4:
		return "int4"
	case Text:
		return "text"
	default:
		return "unknown"
	}
}

// Column is one named, typed field of a row.
type Column struct {
	Name string
	Type Type
}

// Desc describes the shape of a table: its name and ordered columns.
type Desc struct {
	Name    string
	Columns []Column
}

// NewDesc builds a descriptor from the table name and its columns.
func NewDesc(name string, columns ...Column) *Desc {
	return &Desc{Name: name, Columns: columns}
}

// Names returns the column names in order.
func (d *Desc) Names() []string {
	out := make([]string, len(d.Columns))
	for i, c := range d.Columns {
		out[i] = c.Name
	}
	return out
}

// Row is a fixed-shape record. Values are returned in column order and a
// nil value is NULL.
type Row interface {
	Values() []driver.Value
}

// Sink accepts rows. It is append-only and never rejects a row.
type Sink interface {
	PutValues(desc *Desc, row Row)
}
