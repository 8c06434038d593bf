package store

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/zaqqye/firmsheet/internal/models"
)

var acme = models.FirmRecord{FirmName: "Acme", GSTIN: "G1", Address: "1 Main St", Contact: "555-0100"}

func newTestStore(t *testing.T, opts ...Option) *Store {
	t.Helper()
	s := New(filepath.Join(t.TempDir(), "data.xlsx"), opts...)
	created, err := s.Init()
	require.NoError(t, err)
	require.True(t, created)
	return s
}

func readRows(t *testing.T, path string) (string, [][]string) {
	t.Helper()
	f, err := excelize.OpenFile(path)
	require.NoError(t, err)
	defer f.Close()
	sheet := f.GetSheetName(f.GetActiveSheetIndex())
	rows, err := f.GetRows(sheet)
	require.NoError(t, err)
	return sheet, rows
}

func TestInit_CreatesLabels(t *testing.T) {
	s := newTestStore(t)

	f, err := excelize.OpenFile(s.Path())
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, []string{DefaultSheet}, f.GetSheetList())
	for _, fld := range models.FirmFields {
		v, err := f.GetCellValue(DefaultSheet, fld.Cell)
		require.NoError(t, err)
		assert.Equal(t, fld.Label, v, fld.Cell)
	}
}

func TestInit_Idempotent(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.Save(context.Background(), acme))

	created, err := s.Init()
	require.NoError(t, err)
	assert.False(t, created)

	got, err := s.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, acme, got, "existing workbook must not be reset")
}

func TestInit_CreatesParentDir(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "dir", "data.xlsx")
	s := New(path, WithSheet("Custom"))

	created, err := s.Init()
	require.NoError(t, err)
	assert.True(t, created)

	sheet, rows := readRows(t, path)
	assert.Equal(t, "Custom", sheet)
	assert.Len(t, rows, 4)
}

func TestSaveThenLoad(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Save(ctx, acme))

	got, err := s.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, acme, got)

	_, rows := readRows(t, s.Path())
	assert.Equal(t, [][]string{{"Acme"}, {"G1"}, {"1 Main St"}, {"555-0100"}}, rows)
}

func TestSave_OverwritesPrevious(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	second := models.FirmRecord{FirmName: "Beta", GSTIN: "G2", Address: "2 Side Rd", Contact: "555-0199"}

	require.NoError(t, s.Save(ctx, acme))
	require.NoError(t, s.Save(ctx, second))

	got, err := s.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, second, got)
}

func TestSave_PreservesOtherCells(t *testing.T) {
	s := newTestStore(t)

	f, err := excelize.OpenFile(s.Path())
	require.NoError(t, err)
	require.NoError(t, f.SetCellValue(DefaultSheet, "B2", "note"))
	require.NoError(t, f.SetCellValue(DefaultSheet, "A5", "footer"))
	require.NoError(t, f.Save())
	require.NoError(t, f.Close())

	require.NoError(t, s.Save(context.Background(), acme))

	_, rows := readRows(t, s.Path())
	assert.Equal(t, [][]string{{"Acme"}, {"G1", "note"}, {"1 Main St"}, {"555-0100"}, {"footer"}}, rows)
}

func TestSave_SameValuesTwiceIsStable(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Save(ctx, acme))
	first, err := os.ReadFile(s.Path())
	require.NoError(t, err)
	require.NoError(t, s.Save(ctx, acme))
	second, err := os.ReadFile(s.Path())
	require.NoError(t, err)

	assert.Equal(t, first, second, "workbook bytes must not change on a repeated save")
}

func TestSave_RejectsValuesExcelWouldAlter(t *testing.T) {
	cases := map[string]models.FirmRecord{
		"too long":          {FirmName: strings.Repeat("x", excelize.TotalCellChars+1), GSTIN: "G1", Address: "1 Main St", Contact: "555-0100"},
		"control character": {FirmName: "Acme", GSTIN: "a\x01b", Address: "1 Main St", Contact: "555-0100"},
		"invalid utf8":      {FirmName: "Acme", GSTIN: "G1", Address: "\xff\xfe", Contact: "555-0100"},
	}
	for name, rec := range cases {
		t.Run(name, func(t *testing.T) {
			s := newTestStore(t)
			ctx := context.Background()
			require.NoError(t, s.Save(ctx, acme))
			before, err := os.ReadFile(s.Path())
			require.NoError(t, err)

			err = s.Save(ctx, rec)
			assert.ErrorIs(t, err, ErrWrite)

			after, err := os.ReadFile(s.Path())
			require.NoError(t, err)
			assert.Equal(t, before, after)
		})
	}
}

func TestSave_AcceptsLimitLengthAndWhitespace(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	rec := models.FirmRecord{
		FirmName: strings.Repeat("x", excelize.TotalCellChars),
		GSTIN:    "G1",
		Address:  "1 Main St\nSuite\t4",
		Contact:  "555-0100",
	}

	require.NoError(t, s.Save(ctx, rec))

	got, err := s.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, rec, got)
}

func TestSave_KeepsFileMode(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, os.Chmod(s.Path(), 0o600))

	require.NoError(t, s.Save(context.Background(), acme))

	fi, err := os.Stat(s.Path())
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), fi.Mode().Perm())
}

func TestInit_DefaultFileMode(t *testing.T) {
	s := newTestStore(t)

	fi, err := os.Stat(s.Path())
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o644), fi.Mode().Perm())
}

func TestSave_MissingFile(t *testing.T) {
	s := New(filepath.Join(t.TempDir(), "absent.xlsx"))

	err := s.Save(context.Background(), acme)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrOpen))

	_, statErr := os.Stat(s.Path())
	assert.True(t, os.IsNotExist(statErr), "save must not create the workbook")
}

func TestLoad_CorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data.xlsx")
	require.NoError(t, os.WriteFile(path, []byte("not a zip"), 0o644))

	_, err := New(path).Load(context.Background())
	assert.ErrorIs(t, err, ErrOpen)
}

func TestSave_CanceledContext(t *testing.T) {
	s := newTestStore(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.ErrorIs(t, s.Save(ctx, acme), context.Canceled)

	got, err := s.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "Firm Name", got.FirmName)
}

func TestSave_InPlaceMode(t *testing.T) {
	s := newTestStore(t, WithSerializedSaves(false))

	require.NoError(t, s.Save(context.Background(), acme))

	got, err := s.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, acme, got)
}

func TestSave_ConcurrentSerialized(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	records := []models.FirmRecord{
		acme,
		{FirmName: "Beta", GSTIN: "G2", Address: "2 Side Rd", Contact: "555-0199"},
		{FirmName: "Gamma", GSTIN: "G3", Address: "3 High St", Contact: "555-0142"},
	}

	var wg sync.WaitGroup
	for i := 0; i < 12; i++ {
		wg.Add(1)
		go func(rec models.FirmRecord) {
			defer wg.Done()
			assert.NoError(t, s.Save(ctx, rec))
		}(records[i%len(records)])
	}
	wg.Wait()

	got, err := s.Load(ctx)
	require.NoError(t, err)
	assert.Contains(t, records, got, "last writer wins with a whole record")

	leftovers, err := filepath.Glob(filepath.Join(filepath.Dir(s.Path()), ".firmsheet-*.tmp"))
	require.NoError(t, err)
	assert.Empty(t, leftovers)
}
