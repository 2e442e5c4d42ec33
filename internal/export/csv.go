// Package export serializes simulated data frames to delimited text.
//
// Rows are assembled into an Arrow record batch and written through the
// Arrow CSV writer: one line per observation, or per exposure interval
// under tvc, with one column per covariate plus the duration and
// censoring fields.
package export

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/apache/arrow/go/v17/arrow"
	"github.com/apache/arrow/go/v17/arrow/array"
	"github.com/apache/arrow/go/v17/arrow/csv"
	"github.com/apache/arrow/go/v17/arrow/memory"

	"github.com/survsim/coxsim/internal/linpred"
	"github.com/survsim/coxsim/internal/sim"
)

// ErrCovariateCount indicates a row whose covariate count disagrees with
// the declared width.
var ErrCovariateCount = errors.New("export: covariate count mismatch")

// WriteCSV writes rows as CSV with a header. p is the covariate count,
// needed up front because the schema is fixed before the first row.
func WriteCSV(w io.Writer, mode linpred.Mode, rows []sim.Row, p int) error {
	schema := buildSchema(mode, p)
	b := array.NewRecordBuilder(memory.NewGoAllocator(), schema)
	defer b.Release()

	tvc := mode == linpred.ModeTVC
	for _, row := range rows {
		if len(row.X) != p {
			return fmt.Errorf("%w: row %d has %d covariates, want %d", ErrCovariateCount, row.ID, len(row.X), p)
		}
		col := 0
		b.Field(col).(*array.Int64Builder).Append(int64(row.ID))
		col++
		if tvc {
			b.Field(col).(*array.Int64Builder).Append(int64(row.Start))
			col++
			b.Field(col).(*array.Int64Builder).Append(int64(row.End))
			col++
		} else {
			b.Field(col).(*array.Int64Builder).Append(int64(row.Y))
			col++
		}
		for _, x := range row.X {
			b.Field(col).(*array.Float64Builder).Append(x)
			col++
		}
		b.Field(col).(*array.BooleanBuilder).Append(row.Failed)
	}

	rec := b.NewRecord()
	defer rec.Release()

	cw := csv.NewWriter(w, schema, csv.WithHeader(true))
	if err := cw.Write(rec); err != nil {
		return fmt.Errorf("export: writing csv: %w", err)
	}
	if err := cw.Flush(); err != nil {
		return fmt.Errorf("export: flushing csv: %w", err)
	}
	return cw.Error()
}

// WriteFile writes rows to a CSV file at path.
func WriteFile(path string, mode linpred.Mode, rows []sim.Row, p int) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("export: creating %s: %w", path, err)
	}
	if err := WriteCSV(f, mode, rows, p); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// buildSchema lays out the columns: id, duration fields (y, or start/end
// under tvc), covariates x1..xp, and the event indicator.
func buildSchema(mode linpred.Mode, p int) *arrow.Schema {
	fields := []arrow.Field{{Name: "id", Type: arrow.PrimitiveTypes.Int64}}
	if mode == linpred.ModeTVC {
		fields = append(fields,
			arrow.Field{Name: "start", Type: arrow.PrimitiveTypes.Int64},
			arrow.Field{Name: "end", Type: arrow.PrimitiveTypes.Int64},
		)
	} else {
		fields = append(fields, arrow.Field{Name: "y", Type: arrow.PrimitiveTypes.Int64})
	}
	for j := 1; j <= p; j++ {
		fields = append(fields, arrow.Field{Name: fmt.Sprintf("x%d", j), Type: arrow.PrimitiveTypes.Float64})
	}
	fields = append(fields, arrow.Field{Name: "failed", Type: arrow.FixedWidthTypes.Boolean})
	return arrow.NewSchema(fields, nil)
}
