package ingest

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/rickgao/ticker-feed/internal/model"
)

// Column names of every destination table.
const (
	ColumnTime  = "Time"
	ColumnPrice = "Price"
)

// Columns is the fixed column layout of a destination table.
var Columns = []string{ColumnTime, ColumnPrice}

// Record is a tabular payload: named columns and rows of values.
type Record struct {
	Columns []string
	Rows    [][]any
}

// BuildRecord converts an observation into a single-row record.
func BuildRecord(obs model.Observation) Record {
	return Record{
		Columns: []string{ColumnTime, ColumnPrice},
		Rows:    [][]any{{obs.Time, obs.Price}},
	}
}

// Len returns the number of rows.
func (r Record) Len() int {
	return len(r.Rows)
}

// WriteCSV writes the rows as comma-separated values without a header.
// Times are written as RFC 3339 in UTC and floats in their shortest form.
func (r Record) WriteCSV(w io.Writer) error {
	cw := csv.NewWriter(w)
	fields := make([]string, len(r.Columns))
	for i, row := range r.Rows {
		if len(row) != len(r.Columns) {
			return fmt.Errorf("row %d has %d values, want %d", i, len(row), len(r.Columns))
		}
		for j, v := range row {
			fields[j] = formatValue(v)
		}
		if err := cw.Write(fields); err != nil {
			return fmt.Errorf("write row %d: %w", i, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

func formatValue(v any) string {
	switch x := v.(type) {
	case time.Time:
		return x.UTC().Format(time.RFC3339Nano)
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case string:
		return x
	case nil:
		return ""
	default:
		return fmt.Sprint(x)
	}
}

// Target names a destination table.
type Target struct {
	Database string
	Table    string
}

// TargetFor returns the destination for ticker in database. Each ticker
// has its own table named after the symbol.
func TargetFor(database, ticker string) Target {
	return Target{Database: database, Table: ticker}
}

func (t Target) String() string {
	return t.Database + "." + t.Table
}
