// Package datatable holds the generic tabular result returned by the geo reports:
// ordered rows of named columns, each row optionally carrying metadata, plus a queue of
// filters applied just before the table leaves the service layer.
package datatable

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
)

// Column is one named cell of a row.
type Column struct {
	Name  string      `json:"name"`
	Value interface{} `json:"value"`
}

// Row is an ordered set of columns plus free-form metadata.
type Row struct {
	columns  []Column
	metadata map[string]interface{}
}

// NewRow builds a row from columns in the given order.
func NewRow(columns ...Column) *Row {
	r := &Row{}
	for _, c := range columns {
		r.SetColumn(c.Name, c.Value)
	}
	return r
}

// GetColumn returns the value of the named column.
func (r *Row) GetColumn(name string) (interface{}, bool) {
	for _, c := range r.columns {
		if c.Name == name {
			return c.Value, true
		}
	}
	return nil, false
}

// SetColumn replaces the named column or appends it.
func (r *Row) SetColumn(name string, value interface{}) {
	for i := range r.columns {
		if r.columns[i].Name == name {
			r.columns[i].Value = value
			return
		}
	}
	r.columns = append(r.columns, Column{Name: name, Value: value})
}

// RenameColumn changes a column name in place, keeping its position.
func (r *Row) RenameColumn(from, to string) bool {
	for i := range r.columns {
		if r.columns[i].Name == from {
			r.columns[i].Name = to
			return true
		}
	}
	return false
}

// Columns returns a copy of the row's columns in order.
func (r *Row) Columns() []Column {
	out := make([]Column, len(r.columns))
	copy(out, r.columns)
	return out
}

// AddMetadata attaches a metadata value to the row.
func (r *Row) AddMetadata(name string, value interface{}) {
	if r.metadata == nil {
		r.metadata = make(map[string]interface{})
	}
	r.metadata[name] = value
}

// GetMetadata returns a metadata value.
func (r *Row) GetMetadata(name string) (interface{}, bool) {
	v, ok := r.metadata[name]
	return v, ok
}

// MarshalJSON renders the row as one object: columns in order, then metadata keys sorted.
// A metadata key never overrides a column of the same name.
func (r *Row) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')

	seen := make(map[string]struct{}, len(r.columns))
	first := true
	write := func(key string, value interface{}) error {
		if !first {
			buf.WriteByte(',')
		}
		first = false
		k, err := json.Marshal(key)
		if err != nil {
			return err
		}
		v, err := json.Marshal(value)
		if err != nil {
			return fmt.Errorf("column %s: %w", key, err)
		}
		buf.Write(k)
		buf.WriteByte(':')
		buf.Write(v)
		return nil
	}

	for _, c := range r.columns {
		if err := write(c.Name, c.Value); err != nil {
			return nil, err
		}
		seen[c.Name] = struct{}{}
	}

	keys := make([]string, 0, len(r.metadata))
	for k := range r.metadata {
		if _, dup := seen[k]; !dup {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	for _, k := range keys {
		if err := write(k, r.metadata[k]); err != nil {
			return nil, err
		}
	}

	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// Filter transforms a table in place.
type Filter func(t *Table)

// Table is an ordered sequence of rows.
type Table struct {
	rows   []*Row
	queued []Filter
}

// New returns an empty table.
func New() *Table {
	return &Table{rows: make([]*Row, 0)}
}

// AddRow appends a row.
func (t *Table) AddRow(r *Row) {
	t.rows = append(t.rows, r)
}

// Rows returns the rows in order. The slice is shared with the table.
func (t *Table) Rows() []*Row {
	return t.rows
}

// RowCount returns the number of rows.
func (t *Table) RowCount() int {
	return len(t.rows)
}

// AddRowsFromSimpleArray appends one row per values slice, naming cells after columns.
// Extra values beyond len(columns) are dropped; missing values are stored as nil.
func (t *Table) AddRowsFromSimpleArray(columns []string, rows [][]interface{}) {
	for _, values := range rows {
		r := &Row{columns: make([]Column, 0, len(columns))}
		for i, name := range columns {
			var v interface{}
			if i < len(values) {
				v = values[i]
			}
			r.columns = append(r.columns, Column{Name: name, Value: v})
		}
		t.rows = append(t.rows, r)
	}
}

// Filter applies f immediately.
func (t *Table) Filter(f Filter) {
	if f != nil {
		f(t)
	}
}

// QueueFilter defers f until ApplyQueuedFilters.
func (t *Table) QueueFilter(f Filter) {
	if f != nil {
		t.queued = append(t.queued, f)
	}
}

// QueuedFilterCount reports how many filters are pending.
func (t *Table) QueuedFilterCount() int {
	return len(t.queued)
}

// ApplyQueuedFilters runs pending filters in queue order and clears the queue.
func (t *Table) ApplyQueuedFilters() {
	queued := t.queued
	t.queued = nil
	for _, f := range queued {
		f(t)
	}
}

// MarshalJSON renders the table as an array of row objects.
func (t *Table) MarshalJSON() ([]byte, error) {
	if t == nil || t.rows == nil {
		return []byte("[]"), nil
	}
	return json.Marshal(t.rows)
}
