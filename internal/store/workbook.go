package store

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"unicode/utf8"

	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"github.com/zaqqye/firmsheet/internal/models"
)

const DefaultSheet = "FirmData"

var (
	// ErrOpen is returned when the workbook cannot be opened or read.
	ErrOpen = errors.New("store: open workbook")
	// ErrWrite is returned when the workbook cannot be modified or written back.
	ErrWrite = errors.New("store: write workbook")
)

// Store keeps one FirmRecord in a spreadsheet file. The workbook is opened
// and closed inside every call; nothing is cached between calls.
type Store struct {
	path      string
	sheet     string
	serialize bool
	log       *zap.Logger

	mu sync.Mutex
}

type Option func(*Store)

// WithSheet names the sheet created by Init.
func WithSheet(name string) Option {
	return func(s *Store) {
		if name != "" {
			s.sheet = name
		}
	}
}

// WithSerializedSaves toggles the save lock and the temp-file replace.
func WithSerializedSaves(on bool) Option {
	return func(s *Store) { s.serialize = on }
}

func WithLogger(l *zap.Logger) Option {
	return func(s *Store) {
		if l != nil {
			s.log = l
		}
	}
}

func New(path string, opts ...Option) *Store {
	s := &Store{
		path:      path,
		sheet:     DefaultSheet,
		serialize: true,
		log:       zap.NewNop(),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

func (s *Store) Path() string { return s.path }

// Init creates the workbook with the placeholder labels when no file exists
// at the store path. An existing file is left alone. The returned bool
// reports whether a file was created.
func (s *Store) Init() (bool, error) {
	if _, err := os.Stat(s.path); err == nil {
		return false, nil
	} else if !errors.Is(err, fs.ErrNotExist) {
		return false, fmt.Errorf("%w: stat %s: %v", ErrOpen, s.path, err)
	}

	if dir := filepath.Dir(s.path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return false, fmt.Errorf("%w: mkdir %s: %v", ErrWrite, dir, err)
		}
	}

	f := excelize.NewFile()
	defer f.Close()
	if err := f.SetSheetName(f.GetSheetName(f.GetActiveSheetIndex()), s.sheet); err != nil {
		return false, fmt.Errorf("%w: rename sheet: %v", ErrWrite, err)
	}
	for _, fld := range models.FirmFields {
		if err := f.SetCellValue(s.sheet, fld.Cell, fld.Label); err != nil {
			return false, fmt.Errorf("%w: set %s: %v", ErrWrite, fld.Cell, err)
		}
	}
	if err := s.replace(f); err != nil {
		return false, err
	}
	s.log.Info("created workbook", zap.String("path", s.path), zap.String("sheet", s.sheet))
	return true, nil
}

// Save overwrites the four record cells of the active sheet. Every other
// cell is preserved.
func (s *Store) Save(ctx context.Context, rec models.FirmRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	vals := rec.Values()
	for i, fld := range models.FirmFields {
		if err := checkCellText(vals[i]); err != nil {
			return fmt.Errorf("%w: %s: %v", ErrWrite, fld.FormKey, err)
		}
	}
	if s.serialize {
		s.mu.Lock()
		defer s.mu.Unlock()
	}

	f, err := excelize.OpenFile(s.path)
	if err != nil {
		return fmt.Errorf("%w: %s: %v", ErrOpen, s.path, err)
	}
	defer f.Close()

	sheet := f.GetSheetName(f.GetActiveSheetIndex())
	for i, fld := range models.FirmFields {
		if err := f.SetCellValue(sheet, fld.Cell, vals[i]); err != nil {
			return fmt.Errorf("%w: set %s: %v", ErrWrite, fld.Cell, err)
		}
	}

	if !s.serialize {
		if err := f.Save(); err != nil {
			return fmt.Errorf("%w: %s: %v", ErrWrite, s.path, err)
		}
		return nil
	}
	return s.replace(f)
}

// checkCellText rejects values excelize would store altered: text longer
// than a cell holds, invalid UTF-8, or characters XML 1.0 cannot carry.
func checkCellText(v string) error {
	if !utf8.ValidString(v) {
		return errors.New("invalid UTF-8")
	}
	if n := utf8.RuneCountInString(v); n > excelize.TotalCellChars {
		return fmt.Errorf("%d characters exceeds cell limit of %d", n, excelize.TotalCellChars)
	}
	for _, r := range v {
		if !isXMLChar(r) {
			return fmt.Errorf("illegal character %U", r)
		}
	}
	return nil
}

func isXMLChar(r rune) bool {
	return r == 0x09 || r == 0x0A || r == 0x0D ||
		(r >= 0x20 && r <= 0xD7FF) ||
		(r >= 0xE000 && r <= 0xFFFD) ||
		(r >= 0x10000 && r <= 0x10FFFF)
}

// Load reads the four record cells of the active sheet.
func (s *Store) Load(ctx context.Context) (models.FirmRecord, error) {
	if err := ctx.Err(); err != nil {
		return models.FirmRecord{}, err
	}
	f, err := excelize.OpenFile(s.path)
	if err != nil {
		return models.FirmRecord{}, fmt.Errorf("%w: %s: %v", ErrOpen, s.path, err)
	}
	defer f.Close()

	sheet := f.GetSheetName(f.GetActiveSheetIndex())
	vals := make([]string, 0, len(models.FirmFields))
	for _, fld := range models.FirmFields {
		v, err := f.GetCellValue(sheet, fld.Cell)
		if err != nil {
			return models.FirmRecord{}, fmt.Errorf("%w: read %s: %v", ErrOpen, fld.Cell, err)
		}
		vals = append(vals, v)
	}
	return models.FirmRecordFromValues(vals), nil
}

// replace writes f next to the store path and renames it over the target,
// so readers see either the old file or the new one.
func (s *Store) replace(f *excelize.File) error {
	dir := filepath.Dir(s.path)
	tmp, err := os.CreateTemp(dir, ".firmsheet-*.tmp")
	if err != nil {
		return fmt.Errorf("%w: temp file: %v", ErrWrite, err)
	}
	tmpName := tmp.Name()
	cleanup := func() {
		tmp.Close()
		os.Remove(tmpName)
	}

	if err := f.Write(tmp); err != nil {
		cleanup()
		return fmt.Errorf("%w: encode: %v", ErrWrite, err)
	}
	if err := tmp.Sync(); err != nil {
		cleanup()
		return fmt.Errorf("%w: sync: %v", ErrWrite, err)
	}
	mode := fs.FileMode(0o644)
	if fi, err := os.Stat(s.path); err == nil {
		mode = fi.Mode().Perm()
	}
	if err := tmp.Chmod(mode); err != nil {
		cleanup()
		return fmt.Errorf("%w: chmod: %v", ErrWrite, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("%w: close: %v", ErrWrite, err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("%w: rename: %v", ErrWrite, err)
	}
	return nil
}
