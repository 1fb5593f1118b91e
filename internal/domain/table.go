package domain

import (
	"fmt"
	"time"
)

// Row is a single-row table indexed by the volume time. Columns and Cells
// are parallel.
type Row struct {
	Time    time.Time
	Columns []string
	Cells   []Cell
}

// Cell returns the value of the named column.
func (r Row) Cell(column string) (Cell, bool) {
	for i, c := range r.Columns {
		if c == column {
			return r.Cells[i], true
		}
	}
	return Cell{}, false
}

// WindowColumn names the column of window cell [i,j] of field.
func WindowColumn(field string, i, j int) string {
	return fmt.Sprintf("%s [%d,%d]", field, i, j)
}

// WindowRow lays out one 3×3 grid per field as "<field> [i,j]" columns,
// row-major. Any grid that is not exactly 3×3, or a grid count that differs
// from the field count, is a *ShapeError.
func WindowRow(t time.Time, fields []string, grids [][][]Cell) (Row, error) {
	if len(grids) != len(fields) {
		return Row{}, &ShapeError{Msg: fmt.Sprintf("%d grids for %d fields", len(grids), len(fields))}
	}

	row := Row{
		Time:    t,
		Columns: make([]string, 0, 9*len(fields)),
		Cells:   make([]Cell, 0, 9*len(fields)),
	}
	for k, field := range fields {
		grid := grids[k]
		if err := checkWindowShape(field, grid); err != nil {
			return Row{}, err
		}
		for i := 0; i < 3; i++ {
			for j := 0; j < 3; j++ {
				row.Columns = append(row.Columns, WindowColumn(field, i, j))
				row.Cells = append(row.Cells, grid[i][j])
			}
		}
	}
	return row, nil
}

func checkWindowShape(field string, grid [][]Cell) error {
	cols := 0
	if len(grid) > 0 {
		cols = len(grid[0])
	}
	if len(grid) != 3 {
		return &ShapeError{Field: field, Rows: len(grid), Cols: cols}
	}
	for _, r := range grid {
		if len(r) != 3 {
			return &ShapeError{Field: field, Rows: len(grid), Cols: len(r)}
		}
	}
	return nil
}

// ScalarRow lays out one "<field>" column per value.
func ScalarRow(t time.Time, fields []string, values []Cell) (Row, error) {
	if len(values) != len(fields) {
		return Row{}, &ShapeError{Msg: fmt.Sprintf("%d values for %d fields", len(values), len(fields))}
	}
	return Row{
		Time:    t,
		Columns: append([]string(nil), fields...),
		Cells:   append([]Cell(nil), values...),
	}, nil
}

// ExtractionRow assembles the table row of an extraction: window columns
// when it holds windows, scalar columns otherwise.
func ExtractionRow(t time.Time, ext Extraction) (Row, error) {
	if len(ext.Windows) > 0 {
		fields := make([]string, len(ext.Windows))
		grids := make([][][]Cell, len(ext.Windows))
		for i, w := range ext.Windows {
			fields[i] = w.Field
			grids[i] = w.Window.Grid()
		}
		return WindowRow(t, fields, grids)
	}

	fields := make([]string, len(ext.Values))
	values := make([]Cell, len(ext.Values))
	for i, v := range ext.Values {
		fields[i] = v.Field
		values[i] = v.Value
	}
	return ScalarRow(t, fields, values)
}
