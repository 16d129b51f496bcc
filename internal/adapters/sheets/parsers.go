// Package sheets reads schedule grids from spreadsheet files or the hosted
// spreadsheet API and publishes the flat match table back.
package sheets

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/okian/league/internal/domain/schedule"
)

// Parser turns file contents into a grid.
type Parser interface {
	Parse(data []byte) (schedule.Grid, error)
}

// ParserFor returns the parser matching the file extension.
func ParserFor(filename string) (Parser, error) {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".csv":
		return CSVParser{}, nil
	case ".xlsx":
		return XLSXParser{}, nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFile, filename)
	}
}

// CSVParser reads comma separated grids. Rows may have different widths.
type CSVParser struct{}

func (CSVParser) Parse(data []byte) (schedule.Grid, error) {
	r := csv.NewReader(bytes.NewReader(data))
	r.FieldsPerRecord = -1
	records, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read csv: %w", err)
	}
	return schedule.Grid(records), nil
}

// XLSXParser reads the first sheet of a workbook.
type XLSXParser struct{}

func (XLSXParser) Parse(data []byte) (schedule.Grid, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("open xlsx: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("%w: workbook has no sheets", ErrEmptySheet)
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("read sheet %q: %w", sheets[0], err)
	}
	return schedule.Grid(rows), nil
}
