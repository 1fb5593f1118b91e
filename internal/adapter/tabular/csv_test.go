package tabular

import (
	"bytes"
	"encoding/csv"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/storm-radar-extract/internal/domain"
)

var testTime = time.Date(2021, 6, 1, 18, 4, 31, 0, time.UTC)

func TestWriteCSV(t *testing.T) {
	a, err := domain.ScalarRow(testTime, []string{"DBZH", "ZDR"}, []domain.Cell{domain.Present(31.5), {}})
	require.NoError(t, err)
	b, err := domain.ScalarRow(testTime, []string{"DBZH", "ZDR"}, []domain.Cell{domain.Present(-2), domain.Present(0.25)})
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, []LabeledRow{{Label: "gauge-a", Row: a}, {Label: "gauge-b", Row: b}}))

	assert.Equal(t, "label,datetime,DBZH,ZDR,error\n"+
		"gauge-a,2021-06-01T18:04:31Z,31.5,,\n"+
		"gauge-b,2021-06-01T18:04:31Z,-2,0.25,\n", buf.String())
}

func TestWriteCSV_FailedRows(t *testing.T) {
	a, err := domain.ScalarRow(testTime, []string{"DBZH", "ZDR"}, []domain.Cell{domain.Present(31.5), domain.Present(1)})
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, []LabeledRow{
		{Label: "gauge-far", Row: domain.Row{Time: testTime}, Err: "point is outside the sweep"},
		{Label: "gauge-a", Row: a},
	}))

	assert.Equal(t, "label,datetime,DBZH,ZDR,error\n"+
		"gauge-far,2021-06-01T18:04:31Z,,,point is outside the sweep\n"+
		"gauge-a,2021-06-01T18:04:31Z,31.5,1,\n", buf.String())
}

func TestWriteCSV_AllRowsFailed(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, []LabeledRow{
		{Label: "a", Row: domain.Row{Time: testTime}, Err: "no such field"},
		{Label: "b", Err: "no such field"},
	}))

	assert.Equal(t, "label,datetime,error\n"+
		"a,2021-06-01T18:04:31Z,no such field\n"+
		"b,,no such field\n", buf.String())
}

func TestWriteCSV_WindowColumns(t *testing.T) {
	grid := make([][]domain.Cell, 3)
	for i := range grid {
		grid[i] = []domain.Cell{domain.Present(1), domain.Present(2), domain.Present(3)}
	}
	row, err := domain.WindowRow(testTime, []string{"DBZH"}, [][][]domain.Cell{grid})
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, []LabeledRow{{Label: "gauge-a", Row: row}}))

	// Window column names contain a comma, so the writer quotes them.
	assert.True(t, strings.HasPrefix(buf.String(), `label,datetime,"DBZH [0,0]","DBZH [0,1]"`))

	records, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, []string{"label", "datetime", "DBZH [0,0]", "DBZH [0,1]", "DBZH [0,2]", "DBZH [1,0]"}, records[0][:6])
	assert.Len(t, records[0], 2+9+1)
	assert.Equal(t, ErrorColumn, records[0][11])
	assert.Equal(t, []string{"gauge-a", "2021-06-01T18:04:31Z", "1", "2", "3"}, records[1][:5])
}

func TestWriteCSV_MismatchedColumns(t *testing.T) {
	a, _ := domain.ScalarRow(testTime, []string{"DBZH"}, []domain.Cell{domain.Present(1)})
	b, _ := domain.ScalarRow(testTime, []string{"ZDR"}, []domain.Cell{domain.Present(1)})

	err := WriteCSV(&bytes.Buffer{}, []LabeledRow{{Label: "a", Row: a}, {Label: "b", Row: b}})
	var se *domain.ShapeError
	assert.True(t, errors.As(err, &se))
}

func TestWriteCSV_Empty(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, nil))
	assert.Empty(t, buf.String())
}
