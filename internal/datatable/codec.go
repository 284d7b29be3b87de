package datatable

import (
	"bytes"
	"encoding/json"
	"fmt"
)

type rowRecord struct {
	Columns  []Column               `json:"columns"`
	Metadata map[string]interface{} `json:"metadata,omitempty"`
}

// Encode serializes the table for archive storage, preserving column order.
// Queued filters are not persisted.
func Encode(t *Table) ([]byte, error) {
	records := make([]rowRecord, 0, t.RowCount())
	for _, r := range t.rows {
		records = append(records, rowRecord{Columns: r.columns, Metadata: r.metadata})
	}
	return json.Marshal(records)
}

// Decode restores a table written by Encode. Numbers decode as json.Number.
func Decode(data []byte) (*Table, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var records []rowRecord
	if err := dec.Decode(&records); err != nil {
		return nil, fmt.Errorf("decode archived table: %w", err)
	}

	t := New()
	for _, rec := range records {
		t.AddRow(&Row{columns: rec.Columns, metadata: rec.Metadata})
	}
	return t, nil
}
