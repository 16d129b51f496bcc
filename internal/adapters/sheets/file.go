package sheets

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/okian/league/internal/domain/schedule"
)

// FileSource serves grids from .xlsx or .csv files under one directory and
// publishes tables into the same directory.
type FileSource struct {
	dir string
}

// NewFileSource returns a FileSource rooted at dir.
func NewFileSource(dir string) *FileSource {
	return &FileSource{dir: dir}
}

// FetchGrid reads key, or key.xlsx then key.csv when key has no extension.
func (s *FileSource) FetchGrid(ctx context.Context, key string) (schedule.Grid, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	path, err := s.resolve(key)
	if err != nil {
		return nil, err
	}
	parser, err := ParserFor(path)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return parser.Parse(data)
}

func (s *FileSource) resolve(key string) (string, error) {
	clean := filepath.Base(filepath.Clean("/" + key))
	candidates := []string{clean}
	if filepath.Ext(clean) == "" {
		candidates = []string{clean + ".xlsx", clean + ".csv"}
	}
	for _, name := range candidates {
		path := filepath.Join(s.dir, name)
		if _, err := os.Stat(path); err == nil {
			return path, nil
		} else if !errors.Is(err, fs.ErrNotExist) {
			return "", fmt.Errorf("stat %s: %w", path, err)
		}
	}
	return "", fmt.Errorf("%w: %s", ErrSheetNotFound, key)
}

// Publish writes t to key (xlsx unless key ends in .csv). The file is
// replaced atomically.
func (s *FileSource) Publish(ctx context.Context, key string, t Table) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	name := filepath.Base(filepath.Clean("/" + key))
	if filepath.Ext(name) == "" {
		name += ".xlsx"
	}
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("create export dir: %w", err)
	}
	path := filepath.Join(s.dir, name)
	ext := filepath.Ext(name)
	tmp := strings.TrimSuffix(path, ext) + ".tmp" + ext

	var err error
	switch strings.ToLower(ext) {
	case ".csv":
		err = writeCSV(tmp, t)
	case ".xlsx":
		err = writeXLSX(tmp, t)
	default:
		return fmt.Errorf("%w: %s", ErrUnsupportedFile, name)
	}
	if err != nil {
		_ = os.Remove(tmp)
		return err
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("replace %s: %w", path, err)
	}
	return nil
}

func writeCSV(path string, t Table) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	w := csv.NewWriter(f)
	if err := w.WriteAll(t); err != nil {
		_ = f.Close()
		return fmt.Errorf("write csv: %w", err)
	}
	return f.Close()
}

func writeXLSX(path string, t Table) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName(f.GetSheetName(0), ExportTab); err != nil {
		return fmt.Errorf("name sheet: %w", err)
	}
	for i, row := range t {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(ExportTab, cell, &row); err != nil {
			return fmt.Errorf("write row %d: %w", i+1, err)
		}
	}
	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("save %s: %w", path, err)
	}
	return nil
}
