// Package schedule reads delivery schedules exported from the planning
// spreadsheet.
package schedule

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/xuri/excelize/v2"

	"site-delivery-backend/internal/parse"
	"site-delivery-backend/internal/store"
)

// ErrNoRows is returned for a workbook without a header and at least one data row.
var ErrNoRows = errors.New("schedule must contain a header and at least one data row")

type column int

const (
	colVehicle column = iota
	colDate
	colFactory
	colMark
	colProduct
	colWeight
	colGUID
	colModel
	numColumns
)

// headerAliases maps lower-cased header titles to columns.
var headerAliases = map[string]column{
	"vehicle":       colVehicle,
	"vehicle code":  colVehicle,
	"truck":         colVehicle,
	"date":          colDate,
	"delivery date": colDate,
	"factory":       colFactory,
	"plant":         colFactory,
	"mark":          colMark,
	"assembly mark": colMark,
	"product":       colProduct,
	"product name":  colProduct,
	"name":          colProduct,
	"weight":        colWeight,
	"weight (kg)":   colWeight,
	"guid":          colGUID,
	"model id":      colModel,
	"model":         colModel,
}

// Result is a parsed schedule.
type Result struct {
	Lines     []store.ScheduleLine `json:"-"`
	TotalRows int                  `json:"total_rows"`
	Skipped   []string             `json:"skipped"`
}

// Read parses the first sheet of an .xlsx workbook. Columns are located by
// header title; a sheet whose header matches no known title is read in the
// default column order. Rows without a vehicle code, mark or GUID, or with an
// unparsable date or weight, are skipped and reported.
func Read(r io.Reader) (*Result, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read workbook: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, ErrNoRows
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("failed to read rows: %w", err)
	}
	if len(rows) < 2 {
		return nil, ErrNoRows
	}

	index := headerIndex(rows[0])
	res := &Result{}
	for i, row := range rows[1:] {
		rowNum := i + 2
		if blank(row) {
			continue
		}
		res.TotalRows++

		cell := func(c column) string {
			pos := index[c]
			if pos < 0 || pos >= len(row) {
				return ""
			}
			return parse.Text(row[pos])
		}

		line := store.ScheduleLine{
			VehicleCode:  strings.ToUpper(cell(colVehicle)),
			Factory:      cell(colFactory),
			AssemblyMark: cell(colMark),
			ProductName:  cell(colProduct),
			GUID:         cell(colGUID),
			ModelID:      cell(colModel),
		}
		if line.VehicleCode == "" || line.AssemblyMark == "" || line.GUID == "" {
			res.Skipped = append(res.Skipped, fmt.Sprintf("Row %d: vehicle code, mark and GUID are required", rowNum))
			continue
		}

		date, err := parse.Date(cell(colDate))
		if err != nil {
			res.Skipped = append(res.Skipped, fmt.Sprintf("Row %d: %v", rowNum, err))
			continue
		}
		line.ScheduledDate = date

		weight, err := parse.Weight(cell(colWeight))
		if err != nil {
			res.Skipped = append(res.Skipped, fmt.Sprintf("Row %d: %v", rowNum, err))
			continue
		}
		line.Weight = weight

		res.Lines = append(res.Lines, line)
	}
	return res, nil
}

func headerIndex(header []string) [numColumns]int {
	var index [numColumns]int
	for i := range index {
		index[i] = -1
	}
	found := false
	for pos, title := range header {
		c, ok := headerAliases[strings.ToLower(parse.Text(title))]
		if ok && index[c] < 0 {
			index[c] = pos
			found = true
		}
	}
	if !found {
		for i := range index {
			index[i] = i
		}
	}
	return index
}

func blank(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}
