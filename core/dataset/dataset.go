// Package dataset provides a small column-oriented table of float64 values.
// Choice columns hold integer alternative IDs stored as float64.
package dataset

import (
	"encoding/csv"
	"io"
	"math"
	"os"
	"sort"
	"strconv"
	"strings"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/gklr/pkg/errors"
)

// Dataset is an immutable column-oriented table.
type Dataset struct {
	columns []string
	index   map[string]int
	data    [][]float64
	nRows   int
}

// New builds a Dataset from column names and row-major values.
func New(columns []string, rows [][]float64) (*Dataset, error) {
	cols := make([][]float64, len(columns))
	for j := range cols {
		cols[j] = make([]float64, len(rows))
	}
	for i, row := range rows {
		if len(row) != len(columns) {
			return nil, errors.NewDimensionError("dataset.New", len(columns), len(row), 1)
		}
		for j, v := range row {
			cols[j][i] = v
		}
	}
	return build(columns, cols)
}

// FromColumns builds a Dataset from named columns. Columns are ordered by name.
func FromColumns(columns map[string][]float64) (*Dataset, error) {
	names := make([]string, 0, len(columns))
	for name := range columns {
		names = append(names, name)
	}
	sort.Strings(names)
	cols := make([][]float64, len(names))
	for j, name := range names {
		cols[j] = append([]float64(nil), columns[name]...)
	}
	return build(names, cols)
}

func build(columns []string, cols [][]float64) (*Dataset, error) {
	if len(columns) == 0 {
		return nil, errors.NewModelError("dataset.New", "no columns", errors.ErrEmptyData)
	}
	d := &Dataset{
		columns: append([]string(nil), columns...),
		index:   make(map[string]int, len(columns)),
		data:    cols,
		nRows:   len(cols[0]),
	}
	for j, name := range columns {
		if name == "" {
			return nil, errors.NewValidationError("column", "empty column name", j)
		}
		if _, dup := d.index[name]; dup {
			return nil, errors.NewValidationError("column", "duplicate column name", name)
		}
		if len(cols[j]) != d.nRows {
			return nil, errors.NewDimensionError("dataset.New", d.nRows, len(cols[j]), 0)
		}
		d.index[name] = j
	}
	return d, nil
}

// ReadCSV parses a CSV stream with a header row. Every cell must be numeric.
func ReadCSV(r io.Reader) (*Dataset, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true
	header, err := reader.Read()
	if err != nil {
		if err == io.EOF {
			return nil, errors.NewModelError("dataset.ReadCSV", "missing header", errors.ErrEmptyData)
		}
		return nil, errors.Wrap(err, "read csv header")
	}
	for i := range header {
		header[i] = strings.TrimSpace(header[i])
	}

	var rows [][]float64
	for line := 2; ; line++ {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, errors.Wrapf(err, "read csv line %d", line)
		}
		row := make([]float64, len(record))
		for j, cell := range record {
			v, err := strconv.ParseFloat(strings.TrimSpace(cell), 64)
			if err != nil {
				return nil, errors.Wrapf(err, "parse csv line %d column %q", line, header[j])
			}
			row[j] = v
		}
		rows = append(rows, row)
	}
	return New(header, rows)
}

// ReadCSVFile opens path and parses it with ReadCSV.
func ReadCSVFile(path string) (*Dataset, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "open %s", path)
	}
	defer f.Close()
	return ReadCSV(f)
}

// NumRows returns the number of samples.
func (d *Dataset) NumRows() int { return d.nRows }

// Columns returns the column names in table order.
func (d *Dataset) Columns() []string { return append([]string(nil), d.columns...) }

// HasColumn reports whether name is a column of d.
func (d *Dataset) HasColumn(name string) bool {
	_, ok := d.index[name]
	return ok
}

// Column returns a copy of the named column.
func (d *Dataset) Column(name string) ([]float64, error) {
	j, ok := d.index[name]
	if !ok {
		return nil, errors.NewValidationError("column", "not found", name)
	}
	return append([]float64(nil), d.data[j]...), nil
}

// Select returns the named columns as an (NumRows × len(names)) matrix.
func (d *Dataset) Select(names []string) (*mat.Dense, error) {
	if len(names) == 0 {
		return nil, errors.NewValidationError("columns", "at least one column is required", names)
	}
	if d.nRows == 0 {
		return nil, errors.NewModelError("dataset.Select", "no rows", errors.ErrEmptyData)
	}
	out := mat.NewDense(d.nRows, len(names), nil)
	for k, name := range names {
		j, ok := d.index[name]
		if !ok {
			return nil, errors.NewValidationError("column", "not found", name)
		}
		out.SetCol(k, d.data[j])
	}
	return out, nil
}

// Unique returns the sorted distinct values of a column.
func (d *Dataset) Unique(name string) ([]float64, error) {
	j, ok := d.index[name]
	if !ok {
		return nil, errors.NewValidationError("column", "not found", name)
	}
	seen := make(map[float64]struct{})
	var out []float64
	for _, v := range d.data[j] {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	sort.Float64s(out)
	return out, nil
}

// IntColumn returns a column whose values must all be integral.
func (d *Dataset) IntColumn(name string) ([]int, error) {
	col, err := d.Column(name)
	if err != nil {
		return nil, err
	}
	out := make([]int, len(col))
	for i, v := range col {
		if v != math.Trunc(v) || math.IsInf(v, 0) {
			return nil, errors.NewValidationError(name, "value is not an integer identifier", v)
		}
		out[i] = int(v)
	}
	return out, nil
}

// Rows returns a new Dataset holding the given rows in order.
func (d *Dataset) Rows(rows []int) (*Dataset, error) {
	cols := make([][]float64, len(d.columns))
	for j := range cols {
		cols[j] = make([]float64, len(rows))
		for k, i := range rows {
			if i < 0 || i >= d.nRows {
				return nil, errors.NewValidationError("row", "index out of range", i)
			}
			cols[j][k] = d.data[j][i]
		}
	}
	return build(d.columns, cols)
}
