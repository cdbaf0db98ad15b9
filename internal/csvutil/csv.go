// Package csvutil parses uploaded CSV files into header-keyed records for
// the batch importers.  Row numbers reported to callers are 1-based with
// the header counted as row 1, matching what a user sees in a spreadsheet.
package csvutil

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"
)

// ErrEmpty is returned when the input has no header row.
var ErrEmpty = errors.New("csvutil: empty file")

// Record is one data row keyed by header column name, together with the
// 1-based source row it came from.
type Record struct {
	Row    int
	Fields map[string]string
}

// Parse reads the whole CSV stream into header-keyed records.  The first
// row is the header; short data rows leave missing columns empty, long
// rows drop the excess.  Cell values are whitespace-trimmed.
func Parse(r io.Reader) ([]string, []Record, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1 // ragged rows are tolerated, not fatal

	header, err := cr.Read()
	if err == io.EOF {
		return nil, nil, ErrEmpty
	}
	if err != nil {
		return nil, nil, fmt.Errorf("csvutil: read header: %w", err)
	}
	for i := range header {
		header[i] = strings.TrimSpace(header[i])
	}

	var records []Record
	row := 1 // header is row 1
	for {
		raw, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, nil, fmt.Errorf("csvutil: read row %d: %w", row+1, err)
		}
		row++
		fields := make(map[string]string, len(header))
		for i, name := range header {
			if i < len(raw) {
				fields[name] = strings.TrimSpace(raw[i])
			} else {
				fields[name] = ""
			}
		}
		records = append(records, Record{Row: row, Fields: fields})
	}
	return header, records, nil
}

// ValidateRequired checks that the header contains every required column.
// The returned error names all missing columns at once.
func ValidateRequired(header []string, required []string) error {
	have := make(map[string]struct{}, len(header))
	for _, h := range header {
		have[h] = struct{}{}
	}
	var missing []string
	for _, name := range required {
		if _, ok := have[name]; !ok {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("csvutil: missing required columns: %s", strings.Join(missing, ", "))
	}
	return nil
}
