// Package loader reads raw tabular customer data and writes processed
// feature tables.
package loader

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/leapstack-labs/churnline/pkg/core"
)

// missingTokens are the cell values read as missing: the default NA
// strings of pandas' read_csv.
var missingTokens = map[string]struct{}{
	"":         {},
	"#N/A":     {},
	"#N/A N/A": {},
	"#NA":      {},
	"-1.#IND":  {},
	"-1.#QNAN": {},
	"-NaN":     {},
	"-nan":     {},
	"1.#IND":   {},
	"1.#QNAN":  {},
	"<NA>":     {},
	"N/A":      {},
	"NA":       {},
	"NULL":     {},
	"NaN":      {},
	"None":     {},
	"n/a":      {},
	"nan":      {},
	"null":     {},
}

// LoadCSV reads a CSV file with a header row into a batch.
// A missing file yields an error wrapping fs.ErrNotExist.
func LoadCSV(path string) (core.Batch, error) {
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return core.Batch{}, fmt.Errorf("file not found: %s: %w", path, fs.ErrNotExist)
		}
		return core.Batch{}, fmt.Errorf("failed to stat %s: %w", path, err)
	}

	f, err := os.Open(path) //nolint:gosec // path is operator supplied
	if err != nil {
		return core.Batch{}, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer func() { _ = f.Close() }()

	b, err := ReadCSV(f)
	if err != nil {
		return core.Batch{}, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return b, nil
}

// ReadCSV parses CSV data with a header row. Each column is typed from its
// non-missing cells: integer when all parse as integers, decimal when all
// parse as numbers, categorical otherwise. Header names are kept verbatim;
// normalizing them is the cleaner's job.
func ReadCSV(r io.Reader) (core.Batch, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = false

	header, err := reader.Read()
	if err == io.EOF {
		return core.Batch{}, errors.New("empty input: header row required")
	}
	if err != nil {
		return core.Batch{}, fmt.Errorf("failed to read header: %w", err)
	}
	if len(header) > 0 {
		header[0] = strings.TrimPrefix(header[0], "\ufeff")
	}

	var raw [][]string
	for {
		rec, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return core.Batch{}, fmt.Errorf("failed to read row %d: %w", len(raw)+1, err)
		}
		raw = append(raw, rec)
	}

	kinds := make([]core.Kind, len(header))
	for c := range header {
		kinds[c] = inferKind(raw, c)
	}

	batch := core.NewBatch(header...)
	for _, rec := range raw {
		row := make(core.Record, len(header))
		for c, name := range header {
			row[name] = typedCell(rec[c], kinds[c])
		}
		batch.Append(row)
	}
	return batch, nil
}

func isMissing(s string) bool {
	_, ok := missingTokens[s]
	return ok
}

func inferKind(raw [][]string, col int) core.Kind {
	isInt, isFloat, seen := true, true, false
	for _, rec := range raw {
		s := rec[col]
		if isMissing(s) {
			continue
		}
		seen = true
		if isInt {
			if _, err := strconv.ParseInt(s, 10, 64); err != nil {
				isInt = false
			}
		}
		if !isInt {
			if _, err := strconv.ParseFloat(s, 64); err != nil {
				isFloat = false
				break
			}
		}
	}
	switch {
	case !seen:
		return core.KindMissing
	case isInt:
		return core.KindInt
	case isFloat:
		return core.KindFloat
	default:
		return core.KindString
	}
}

func typedCell(s string, kind core.Kind) core.Value {
	if isMissing(s) {
		return core.Missing()
	}
	switch kind {
	case core.KindInt:
		i, _ := strconv.ParseInt(s, 10, 64)
		return core.Int(i)
	case core.KindFloat:
		f, _ := strconv.ParseFloat(s, 64)
		return core.Float(f)
	default:
		return core.String(s)
	}
}

// WriteCSV writes a numeric table with a header row, creating parent
// directories as needed.
func WriteCSV(path string, header []string, rows [][]float64) error {
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0750); err != nil {
			return fmt.Errorf("failed to create output directory: %w", err)
		}
	}

	f, err := os.Create(path) //nolint:gosec // path is operator supplied
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}

	w := csv.NewWriter(f)
	if err := w.Write(header); err != nil {
		_ = f.Close()
		return fmt.Errorf("failed to write header: %w", err)
	}
	rec := make([]string, len(header))
	for i, row := range rows {
		if len(row) != len(header) {
			_ = f.Close()
			return fmt.Errorf("row %d has %d values, header has %d", i, len(row), len(header))
		}
		for j, v := range row {
			rec[j] = strconv.FormatFloat(v, 'f', -1, 64)
		}
		if err := w.Write(rec); err != nil {
			_ = f.Close()
			return fmt.Errorf("failed to write row %d: %w", i, err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		_ = f.Close()
		return fmt.Errorf("failed to flush %s: %w", path, err)
	}
	return f.Close()
}
