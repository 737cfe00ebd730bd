package io

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/matzehuels/forestplot/pkg/effect"
	"github.com/matzehuels/forestplot/pkg/errors"
)

// ReadRows decodes and validates effect rows from r. Both the versioned
// document and a bare array are accepted. ReadRows does not close r.
func ReadRows(r io.Reader) ([]effect.Row, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read: %w", err)
	}
	return UnmarshalRows(data)
}

// UnmarshalRows is [ReadRows] for an in-memory document.
func UnmarshalRows(data []byte) ([]effect.Row, error) {
	var rows []effect.Row
	if trimmed := bytes.TrimSpace(data); len(trimmed) > 0 && trimmed[0] == '[' {
		if err := json.Unmarshal(trimmed, &rows); err != nil {
			return nil, errors.Wrap(errors.ErrCodeInvalidFormat, err, "decode rows")
		}
	} else {
		var doc document
		if err := json.Unmarshal(data, &doc); err != nil {
			return nil, errors.Wrap(errors.ErrCodeInvalidFormat, err, "decode rows")
		}
		if doc.Version > FormatVersion {
			return nil, errors.New(errors.ErrCodeUnsupported, "rows format version %d is newer than %d", doc.Version, FormatVersion)
		}
		rows = doc.Rows
	}

	for i := range rows {
		if rows[i].Status == "" {
			rows[i].Status = effect.StatusOK
		}
		if err := rows[i].Validate(); err != nil {
			return nil, fmt.Errorf("row %d: %w", i, err)
		}
	}
	return rows, nil
}

// ImportRows reads effect rows from the JSON file at path.
func ImportRows(path string) ([]effect.Row, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.Wrap(errors.ErrCodeFileNotFound, err, "open %s", path)
		}
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()
	return ReadRows(f)
}
