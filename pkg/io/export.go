package io

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/matzehuels/forestplot/pkg/effect"
)

// FormatVersion is the version written by [WriteRows].
const FormatVersion = 1

type document struct {
	Version int          `json:"version"`
	Rows    []effect.Row `json:"rows"`
}

// WriteRows encodes rows as indented JSON.
func WriteRows(rows []effect.Row, w io.Writer) error {
	if rows == nil {
		rows = []effect.Row{}
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(document{Version: FormatVersion, Rows: rows}); err != nil {
		return fmt.Errorf("encode: %w", err)
	}
	return nil
}

// ExportRows writes rows to a JSON file at path.
func ExportRows(rows []effect.Row, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create %s: %w", filepath.Dir(path), err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	if err := WriteRows(rows, f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// MarshalRows returns the JSON document for rows.
func MarshalRows(rows []effect.Row) ([]byte, error) {
	if rows == nil {
		rows = []effect.Row{}
	}
	return json.Marshal(document{Version: FormatVersion, Rows: rows})
}
