package channel

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/banshee-data/trip.review/internal/trip/align"
)

// ErrMissingChannel reports a required topic, file or column that is absent.
var ErrMissingChannel = errors.New("missing channel")

// TimeColumn is the required timestamp column of every channel file.
const TimeColumn = "time"

// Table is one channel loaded into memory. Rows keep file order; unparsable
// numeric cells are stored as NaN and dropped when a column is extracted.
type Table struct {
	Name    string
	Times   []int64
	Columns map[string][]float64

	// DroppedRows counts rows discarded because the time cell was malformed.
	DroppedRows int
}

// ReadCSV parses a channel table. The header must contain TimeColumn.
func ReadCSV(r io.Reader, name string) (*Table, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err == io.EOF {
		return nil, fmt.Errorf("%s: empty file: %w", name, ErrMissingChannel)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: failed to read header: %w", name, err)
	}

	timeIdx := -1
	for i, h := range header {
		header[i] = strings.TrimSpace(h)
		if header[i] == TimeColumn {
			timeIdx = i
		}
	}
	if timeIdx < 0 {
		return nil, fmt.Errorf("%s: no %q column: %w", name, TimeColumn, ErrMissingChannel)
	}

	t := &Table{Name: name, Columns: make(map[string][]float64)}
	for i, h := range header {
		if i != timeIdx && h != "" {
			t.Columns[h] = nil
		}
	}

	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			var parseErr *csv.ParseError
			if errors.As(err, &parseErr) {
				t.DroppedRows++
				continue
			}
			return nil, fmt.Errorf("%s: failed to read row: %w", name, err)
		}
		if timeIdx >= len(record) {
			t.DroppedRows++
			continue
		}
		ts, ok := ParseTime(record[timeIdx])
		if !ok {
			t.DroppedRows++
			continue
		}
		t.Times = append(t.Times, ts)
		for i, h := range header {
			if i == timeIdx || h == "" {
				continue
			}
			v := math.NaN()
			if i < len(record) {
				if f, err := strconv.ParseFloat(strings.TrimSpace(record[i]), 64); err == nil {
					v = f
				}
			}
			t.Columns[h] = append(t.Columns[h], v)
		}
	}
	return t, nil
}

// LoadCSV reads a channel table from disk.
func LoadCSV(path string) (*Table, error) {
	f, err := os.Open(filepath.Clean(path))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%s: %w", path, ErrMissingChannel)
		}
		return nil, fmt.Errorf("failed to open channel file: %w", err)
	}
	defer f.Close()
	return ReadCSV(f, filepath.Base(path))
}

// ParseTime parses an int64 nanosecond timestamp. Float renderings such as
// "1.7e18" or "1700000000000000000.0" are accepted.
func ParseTime(s string) (int64, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}
	if v, err := strconv.ParseInt(s, 10, 64); err == nil {
		return v, true
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) || f >= math.MaxInt64 || f < math.MinInt64 {
		return 0, false
	}
	return int64(f), true
}

// Len returns the number of rows.
func (t *Table) Len() int {
	if t == nil {
		return 0
	}
	return len(t.Times)
}

// HasColumn reports whether the table carries the named column.
func (t *Table) HasColumn(name string) bool {
	if t == nil {
		return false
	}
	_, ok := t.Columns[name]
	return ok
}

// Column extracts one numeric column as a sorted series. Rows whose value is
// NaN or infinite are dropped, as are repeated timestamps. The second return
// value counts dropped samples.
func (t *Table) Column(name string) (*align.Series[float64], int, error) {
	if !t.HasColumn(name) {
		tableName := ""
		if t != nil {
			tableName = t.Name
		}
		return nil, 0, fmt.Errorf("%s: column %q: %w", tableName, name, ErrMissingChannel)
	}
	values := t.Columns[name]
	samples := make([]align.Sample[float64], 0, len(values))
	dropped := 0
	for i, v := range values {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			dropped++
			continue
		}
		samples = append(samples, align.Sample[float64]{Time: t.Times[i], Value: v})
	}
	series, dups := align.NewSeries(samples)
	return series, dropped + dups, nil
}

// Concat joins tables row-wise. Columns missing from a table are padded with
// NaN so every column stays aligned with Times.
func Concat(name string, tables ...*Table) *Table {
	out := &Table{Name: name, Columns: make(map[string][]float64)}
	for _, t := range tables {
		if t == nil {
			continue
		}
		for col := range t.Columns {
			if _, ok := out.Columns[col]; !ok {
				out.Columns[col] = nanSlice(len(out.Times))
			}
		}
	}
	for _, t := range tables {
		if t == nil {
			continue
		}
		for col := range out.Columns {
			if vals, ok := t.Columns[col]; ok {
				out.Columns[col] = append(out.Columns[col], vals...)
			} else {
				out.Columns[col] = append(out.Columns[col], nanSlice(len(t.Times))...)
			}
		}
		out.Times = append(out.Times, t.Times...)
		out.DroppedRows += t.DroppedRows
	}
	return out
}

func nanSlice(n int) []float64 {
	s := make([]float64, n)
	for i := range s {
		s[i] = math.NaN()
	}
	return s
}
