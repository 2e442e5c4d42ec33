package export

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/survsim/coxsim/internal/linpred"
	"github.com/survsim/coxsim/internal/sim"
)

func TestWriteCSVStatic(t *testing.T) {
	rows := []sim.Row{
		{ID: 1, Y: 12, End: 12, Failed: true, X: []float64{0.5, -1.25}},
		{ID: 2, Y: 40, End: 40, Failed: false, X: []float64{1, 2}},
	}
	var buf strings.Builder
	if err := WriteCSV(&buf, linpred.ModeStatic, rows, 2); err != nil {
		t.Fatal(err)
	}
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 3 {
		t.Fatalf("%d lines, want header + 2 rows:\n%s", len(lines), buf.String())
	}
	if got := lines[0]; got != "id,y,x1,x2,failed" {
		t.Errorf("header = %q", got)
	}
	if !strings.HasPrefix(lines[1], "1,12,") || !strings.HasSuffix(lines[1], "true") {
		t.Errorf("row 1 = %q", lines[1])
	}
	if !strings.HasSuffix(lines[2], "false") {
		t.Errorf("row 2 = %q", lines[2])
	}
}

func TestWriteCSVIntervals(t *testing.T) {
	rows := []sim.Row{
		{ID: 1, Start: 0, End: 1, Y: 1, X: []float64{0.2}},
		{ID: 1, Start: 1, End: 2, Y: 2, Failed: true, X: []float64{-0.4}},
	}
	var buf strings.Builder
	if err := WriteCSV(&buf, linpred.ModeTVC, rows, 1); err != nil {
		t.Fatal(err)
	}
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if got := lines[0]; got != "id,start,end,x1,failed" {
		t.Errorf("header = %q", got)
	}
	if len(lines) != 3 {
		t.Fatalf("%d lines, want header + 2 interval rows", len(lines))
	}
}

func TestWriteCSVCovariateMismatch(t *testing.T) {
	rows := []sim.Row{{ID: 1, Y: 1, X: []float64{1, 2, 3}}}
	var buf strings.Builder
	if err := WriteCSV(&buf, linpred.ModeStatic, rows, 2); !errors.Is(err, ErrCovariateCount) {
		t.Errorf("error = %v, want ErrCovariateCount", err)
	}
}

func TestWriteFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.csv")
	rows := []sim.Row{{ID: 1, Y: 3, End: 3, Failed: true, X: []float64{0.1}}}
	if err := WriteFile(path, linpred.ModeStatic, rows, 1); err != nil {
		t.Fatal(err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), "id,y,x1,failed") {
		t.Errorf("file missing header: %q", data)
	}
}
