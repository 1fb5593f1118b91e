// Package tabular renders single-row extraction tables as CSV.
package tabular

import (
	"encoding/csv"
	"fmt"
	"io"
	"slices"
	"strconv"
	"time"

	"github.com/couchcryptid/storm-radar-extract/internal/domain"
)

// ErrorColumn is the trailing CSV column carrying a station's failure.
const ErrorColumn = "error"

// LabeledRow is a table row belonging to one station. A row with Err set
// stands for a station that produced no values; its Row carries only the time.
type LabeledRow struct {
	Label string
	Row   domain.Row
	Err   string
}

// WriteCSV writes rows under one header: "label", the datetime column, the
// columns of the first successful row, then ErrorColumn. Every successful row
// must carry the same columns. Missing cells and the cells of failed rows are
// written empty.
func WriteCSV(w io.Writer, rows []LabeledRow) error {
	cw := csv.NewWriter(w)
	if len(rows) == 0 {
		cw.Flush()
		return cw.Error()
	}

	var columns []string
	for _, r := range rows {
		if r.Err == "" {
			columns = r.Row.Columns
			break
		}
	}
	header := make([]string, 0, len(columns)+3)
	header = append(header, "label", domain.DateTimeKey)
	header = append(header, columns...)
	header = append(header, ErrorColumn)
	if err := cw.Write(header); err != nil {
		return err
	}

	for _, r := range rows {
		record := make([]string, 0, len(header))
		record = append(record, r.Label, formatTime(r.Row.Time))
		if r.Err != "" {
			record = append(record, make([]string, len(columns))...)
			record = append(record, r.Err)
		} else {
			if !slices.Equal(r.Row.Columns, columns) {
				return fmt.Errorf("row %q: %w", r.Label, &domain.ShapeError{Msg: "column set differs from the first row"})
			}
			for _, c := range r.Row.Cells {
				record = append(record, formatCell(c))
			}
			record = append(record, "")
		}
		if err := cw.Write(record); err != nil {
			return err
		}
	}

	cw.Flush()
	return cw.Error()
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

func formatCell(c domain.Cell) string {
	if !c.Valid {
		return ""
	}
	return strconv.FormatFloat(c.Value, 'g', -1, 64)
}
