// Package bulkimport turns an uploaded workbook into IRD/Equipment pairs,
// one independent unit of work per row.
package bulkimport

import (
	"fmt"
	"io"
	"strings"

	"irdinv/internal/apperr"
	"irdinv/internal/irdschema"

	"github.com/xuri/excelize/v2"
)

// Row: одна строка листа, заголовок → значение ячейки (пустые ячейки опущены).
type Row map[string]string

// Sheet is the first worksheet of an uploaded workbook.
type Sheet struct {
	Name    string
	Headers []string
	Rows    []Row
}

// ReadWorkbook reads the first sheet. The first row is the header; blank
// rows are skipped and cells are trimmed.
func ReadWorkbook(r io.Reader) (*Sheet, error) {
	const op = "bulk.read"
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, apperr.InvalidArgument(op, "file", "failed to parse Excel file: %v", err)
	}
	defer f.Close()

	name := f.GetSheetName(0)
	if name == "" {
		return nil, apperr.InvalidArgument(op, "file", "Excel file has no sheets")
	}
	rows, err := f.GetRows(name)
	if err != nil {
		return nil, apperr.InvalidArgument(op, "file", "failed to read rows: %v", err)
	}

	s := &Sheet{Name: name}
	if len(rows) == 0 {
		return nil, apperr.InvalidArgument(op, "file", "Excel file is empty")
	}
	for _, h := range rows[0] {
		s.Headers = append(s.Headers, strings.TrimSpace(h))
	}
	if !anyNonBlank(s.Headers) {
		return nil, apperr.InvalidArgument(op, "file", "Excel file is empty")
	}

	for _, raw := range rows[1:] {
		row := Row{}
		for col, cell := range raw {
			if col >= len(s.Headers) || s.Headers[col] == "" {
				continue
			}
			if v := strings.TrimSpace(cell); v != "" {
				row[s.Headers[col]] = v
			}
		}
		if len(row) > 0 {
			s.Rows = append(s.Rows, row)
		}
	}
	return s, nil
}

// HeaderError lists required columns missing from a sheet.
type HeaderError struct {
	Missing []string
	Found   []string
}

func (e *HeaderError) Error() string {
	return fmt.Sprintf("missing required columns: %s", strings.Join(e.Missing, ", "))
}

// ValidateHeaders checks the header row against the required column set.
// Legacy spreadsheet headers count for their API key.
func ValidateHeaders(headers []string) error {
	missing := irdschema.MissingHeaders(headers)
	if len(missing) == 0 {
		return nil
	}
	return &HeaderError{Missing: missing, Found: headers}
}

func anyNonBlank(ss []string) bool {
	for _, s := range ss {
		if s != "" {
			return true
		}
	}
	return false
}
