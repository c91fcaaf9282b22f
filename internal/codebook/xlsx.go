// Package codebook loads transition and cover-recode tables from the
// spreadsheets and YAML files they are maintained in.
package codebook

import (
	"math"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"

	"github.com/sells-group/natural-conversion/internal/transition"
)

// MatrixLayout locates a transition matrix in a worksheet. Rows and columns
// are 1-based, as displayed in a spreadsheet. The header column lists the
// cover classes; the data cell at (row of initial class, column of final
// class) holds the meaning of that transition. The same class list labels
// the data columns in order.
type MatrixLayout struct {
	Sheet           string `mapstructure:"sheet"` // empty: first sheet
	HeaderColumn    int    `mapstructure:"header_column"`
	FirstDataColumn int    `mapstructure:"first_data_column"`
	LastDataColumn  int    `mapstructure:"last_data_column"`
	FirstDataRow    int    `mapstructure:"first_data_row"`
	LastDataRow     int    `mapstructure:"last_data_row"`
}

// DefaultMatrixLayout is the layout of the ESA CCI transition workbook.
func DefaultMatrixLayout() MatrixLayout {
	return MatrixLayout{
		HeaderColumn:    2,
		FirstDataColumn: 4,
		LastDataColumn:  41,
		FirstDataRow:    4,
		LastDataRow:     41,
	}
}

// LegendLayout locates a two-column recode legend (detailed class to
// simplified class).
type LegendLayout struct {
	Sheet        string `mapstructure:"sheet"`
	FromColumn   int    `mapstructure:"from_column"`
	ToColumn     int    `mapstructure:"to_column"`
	FirstDataRow int    `mapstructure:"first_data_row"`
	LastDataRow  int    `mapstructure:"last_data_row"`
}

// DefaultLegendLayout is the layout of the ESA legend recode sheet.
func DefaultLegendLayout() LegendLayout {
	return LegendLayout{
		Sheet:        "Legend",
		FromColumn:   1,
		ToColumn:     3,
		FirstDataRow: 3,
		LastDataRow:  40,
	}
}

// ReadMatrixXLSX returns the parallel code and meaning sequences of a
// transition matrix. Codes are initial*1000+final; empty data cells mean 0.
func ReadMatrixXLSX(path string, l MatrixLayout) ([]int32, []int16, error) {
	if l.LastDataRow < l.FirstDataRow || l.LastDataColumn < l.FirstDataColumn || l.FirstDataRow < 1 || l.FirstDataColumn < 1 || l.HeaderColumn < 1 {
		return nil, nil, eris.Errorf("codebook: invalid matrix layout %+v", l)
	}
	if l.LastDataColumn-l.FirstDataColumn != l.LastDataRow-l.FirstDataRow {
		return nil, nil, eris.Wrapf(transition.ErrMalformedCodebook,
			"matrix is %d rows by %d columns", l.LastDataRow-l.FirstDataRow+1, l.LastDataColumn-l.FirstDataColumn+1)
	}

	sheet, err := openSheet(path, l.Sheet)
	if err != nil {
		return nil, nil, err
	}

	n := l.LastDataRow - l.FirstDataRow + 1
	classes := make([]int32, n)
	for i := range classes {
		v, err := intCell(sheet, l.FirstDataRow+i, l.HeaderColumn)
		if err != nil {
			return nil, nil, err
		}
		classes[i] = int32(v)
	}

	codes := make([]int32, 0, n*n)
	meanings := make([]int16, 0, n*n)
	for i, initial := range classes {
		for j, final := range classes {
			v, err := intCell(sheet, l.FirstDataRow+i, l.FirstDataColumn+j)
			if err != nil {
				return nil, nil, err
			}
			codes = append(codes, transition.Encode(initial, final, transition.Multiplier))
			meanings = append(meanings, int16(v))
		}
	}
	return codes, meanings, nil
}

// LoadMatrixXLSX builds a transition codebook from a matrix workbook.
func LoadMatrixXLSX(path string, l MatrixLayout) (*transition.Codebook, error) {
	codes, meanings, err := ReadMatrixXLSX(path, l)
	if err != nil {
		return nil, err
	}
	return transition.NewCodebook(codes, meanings)
}

// LoadLegendXLSX builds a cover recode codebook from a legend sheet. Rows
// with an empty source class are skipped.
func LoadLegendXLSX(path string, l LegendLayout) (*transition.Codebook, error) {
	if l.LastDataRow < l.FirstDataRow || l.FirstDataRow < 1 || l.FromColumn < 1 || l.ToColumn < 1 {
		return nil, eris.Errorf("codebook: invalid legend layout %+v", l)
	}
	sheet, err := openSheet(path, l.Sheet)
	if err != nil {
		return nil, err
	}

	var (
		from []int32
		to   []int16
	)
	for r := l.FirstDataRow; r <= l.LastDataRow; r++ {
		if strings.TrimSpace(cellString(sheet, r, l.FromColumn)) == "" {
			continue
		}
		f, err := intCell(sheet, r, l.FromColumn)
		if err != nil {
			return nil, err
		}
		t, err := intCell(sheet, r, l.ToColumn)
		if err != nil {
			return nil, err
		}
		from = append(from, int32(f))
		to = append(to, int16(t))
	}
	return transition.NewCodebook(from, to)
}

func openSheet(path, name string) (*xlsx.Sheet, error) {
	f, err := xlsx.OpenFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "codebook: open %s", path)
	}
	if name != "" {
		sheet, ok := f.Sheet[name]
		if !ok {
			return nil, eris.Errorf("codebook: sheet %q not found in %s", name, path)
		}
		return sheet, nil
	}
	if len(f.Sheets) == 0 {
		return nil, eris.Errorf("codebook: %s has no sheets", path)
	}
	return f.Sheets[0], nil
}

// cellString returns the text of the 1-based (row, col) cell, or "" when the
// sheet does not reach it.
func cellString(sheet *xlsx.Sheet, row, col int) string {
	if row-1 >= len(sheet.Rows) {
		return ""
	}
	r := sheet.Rows[row-1]
	if r == nil || col-1 >= len(r.Cells) {
		return ""
	}
	return r.Cells[col-1].String()
}

// intCell parses an integral cell. Spreadsheets store numbers as floats, so
// "12.0" is accepted; "12.5" is not. Empty cells are 0.
func intCell(sheet *xlsx.Sheet, row, col int) (int, error) {
	s := strings.TrimSpace(cellString(sheet, row, col))
	if s == "" {
		return 0, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || f != math.Trunc(f) || math.Abs(f) > math.MaxInt32 {
		return 0, eris.Wrapf(transition.ErrMalformedCodebook, "cell R%dC%d: %q is not an integer", row, col, s)
	}
	return int(f), nil
}
