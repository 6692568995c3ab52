package storage

import (
	"bytes"
	"fmt"

	"github.com/segmentio/parquet-go"
)

// ColumnInfo describes one leaf column of a parquet dataset.
type ColumnInfo struct {
	Name     string `json:"name"`
	Type     string `json:"type"`
	Optional bool   `json:"optional"`
}

// Describe parses parquet bytes and returns the leaf column schema.
// Nested fields use dot-notation names.
func Describe(data []byte) ([]ColumnInfo, error) {
	f, err := parquet.OpenFile(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("failed to open parquet data: %w", err)
	}

	var cols []ColumnInfo
	for _, field := range f.Schema().Fields() {
		cols = append(cols, describeField(field, "")...)
	}
	return cols, nil
}

func describeField(field parquet.Field, prefix string) []ColumnInfo {
	name := field.Name()
	if prefix != "" {
		name = prefix + "." + name
	}

	children := field.Fields()
	if len(children) > 0 {
		var cols []ColumnInfo
		for _, child := range children {
			cols = append(cols, describeField(child, name)...)
		}
		return cols
	}

	return []ColumnInfo{{
		Name:     name,
		Type:     field.Type().String(),
		Optional: field.Optional(),
	}}
}
