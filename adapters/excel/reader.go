// Package excel loads the pipeline's three input tables from xlsx workbooks
// or CSV exports: the intensity matrix, the sample covariate table, and the
// external reference calls.
package excel

import (
	"encoding/csv"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"

	"pepdensity/internal/errors"
)

// sheet is the worksheet every workbook input is read from.
const sheet = "Sheet1"

// Table is a rectangular cell grid: header row plus data rows.
type Table struct {
	Header []string
	Rows   [][]string
}

// ReadTable reads an xlsx or csv file into a Table. The extension decides the
// format.
func ReadTable(path string) (*Table, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, errors.NotFound("input file " + path)
	}
	var (
		rows [][]string
		err  error
	)
	if strings.EqualFold(filepath.Ext(path), ".csv") {
		rows, err = readCSV(path)
	} else {
		rows, err = readWorkbook(path)
	}
	if err != nil {
		return nil, err
	}
	if len(rows) < 2 {
		return nil, errors.InvalidInput("input file needs a header row and at least one data row: " + path)
	}
	return &Table{Header: rows[0], Rows: rows[1:]}, nil
}

func readWorkbook(path string) ([][]string, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "open workbook")
	}
	defer f.Close()

	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, errors.Wrap(err, "read "+sheet)
	}
	return rows, nil
}

func readCSV(path string) ([][]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "open csv")
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	rows, err := r.ReadAll()
	if err != nil {
		return nil, errors.Wrap(err, "parse csv")
	}
	return rows, nil
}

// parseIntensity converts one matrix cell. Empty cells and the usual missing
// markers become NaN; anything else must parse as a float.
func parseIntensity(cell string) (float64, error) {
	s := strings.TrimSpace(cell)
	switch strings.ToUpper(s) {
	case "", "NA", "NAN", "NULL":
		return math.NaN(), nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, errors.InvalidInput("intensity cell " + strconv.Quote(cell) + " is not numeric")
	}
	return v, nil
}

// columnIndex finds a header column by case-insensitive name.
func columnIndex(header []string, name string) (int, bool) {
	for i, h := range header {
		if strings.EqualFold(strings.TrimSpace(h), name) {
			return i, true
		}
	}
	return 0, false
}

// cellAt returns row[i] or "" when the row is ragged (trailing empty xlsx
// cells are omitted by the reader).
func cellAt(row []string, i int) string {
	if i < len(row) {
		return row[i]
	}
	return ""
}
