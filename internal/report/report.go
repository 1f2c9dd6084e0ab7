// Package report exports a project's arrivals and ledger as an Excel workbook.
package report

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"

	"site-delivery-backend/internal/ledger"
	"site-delivery-backend/internal/model"
	"site-delivery-backend/internal/views"
)

const (
	arrivalsSheet = "Arrivals"
	itemsSheet    = "Items"
)

var arrivalHeader = []interface{}{
	"Vehicle", "Factory", "Scheduled", "Arrival date", "Arrival time", "Unload start", "Unload end",
	"Location", "Cranes", "Forklifts", "Telehandlers", "Workers", "Equipment",
	"Pending", "Confirmed", "Missing", "Added", "Photos", "Completed", "Completed by", "Notes",
}

var itemHeader = []interface{}{
	"Vehicle", "Arrival date", "Mark", "No.", "Product", "Weight (kg)", "GUID",
	"Status", "Note", "Moved from", "Photos", "Confirmed by",
}

// Snapshot is the read-only data a report is built from.
type Snapshot struct {
	Vehicles []model.Vehicle
	Items    []model.Item
	Arrivals []model.ArrivedVehicle
	Ledger   *ledger.Ledger
}

// Build lays out the workbook. The caller must Close it.
func Build(snap Snapshot) (*excelize.File, error) {
	f := excelize.NewFile()
	if err := f.SetSheetName(f.GetSheetName(0), arrivalsSheet); err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to rename sheet: %w", err)
	}
	if _, err := f.NewSheet(itemsSheet); err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to add sheet: %w", err)
	}

	vehicles := make(map[string]model.Vehicle, len(snap.Vehicles))
	for _, v := range snap.Vehicles {
		vehicles[v.ID] = v
	}

	if err := setRow(f, arrivalsSheet, 1, arrivalHeader); err != nil {
		f.Close()
		return nil, err
	}
	if err := setRow(f, itemsSheet, 1, itemHeader); err != nil {
		f.Close()
		return nil, err
	}

	arrivalRow, itemRow := 2, 2
	for _, a := range snap.Arrivals {
		v := vehicles[a.VehicleID]
		rows := views.ArrivalRows(a, snap.Items, snap.Ledger, "")
		counts := views.Tally(rows)

		photos := snap.Ledger.PhotoCount(a.ID, "")
		for _, r := range rows {
			photos += r.PhotoCount
		}

		completedAt := ""
		if a.ConfirmedAt != nil {
			completedAt = a.ConfirmedAt.Format("2006-01-02 15:04")
		}
		if err := setRow(f, arrivalsSheet, arrivalRow, []interface{}{
			v.Code, v.Factory, v.ScheduledDate, a.ArrivalDate, a.ArrivalTime, a.UnloadStart, a.UnloadEnd,
			a.Location, a.Resources.Cranes, a.Resources.Forklifts, a.Resources.Telehandlers, a.Resources.Workers,
			equipment(a.Resources),
			counts.Pending, counts.Confirmed, counts.Missing, counts.Added, photos, completedAt, a.ConfirmedBy, a.Notes,
		}); err != nil {
			f.Close()
			return nil, err
		}
		arrivalRow++

		for _, r := range rows {
			movedFrom := ""
			if r.Entry.Status == model.StatusAdded {
				movedFrom = "model"
				if r.Entry.SourceVehicleCode != nil {
					movedFrom = *r.Entry.SourceVehicleCode
				}
			}
			weight, _ := r.Item.Weight.Float64()
			if err := setRow(f, itemsSheet, itemRow, []interface{}{
				v.Code, a.ArrivalDate, r.Item.AssemblyMark, fmt.Sprintf("%d/%d", r.Ordinal.Index, r.Ordinal.Of),
				r.Item.ProductName, weight, r.Item.ObjectGUID(),
				string(r.Entry.Status), r.Entry.Note, movedFrom, r.PhotoCount, r.Entry.ConfirmedBy,
			}); err != nil {
				f.Close()
				return nil, err
			}
			itemRow++
		}
	}

	f.SetActiveSheet(0)
	return f, nil
}

// Write builds the workbook and writes it to w.
func Write(w io.Writer, snap Snapshot) error {
	f, err := Build(snap)
	if err != nil {
		return err
	}
	defer f.Close()
	if err := f.Write(w); err != nil {
		return fmt.Errorf("failed to write workbook: %w", err)
	}
	return nil
}

func setRow(f *excelize.File, sheet string, row int, values []interface{}) error {
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return err
	}
	if err := f.SetSheetRow(sheet, cell, &values); err != nil {
		return fmt.Errorf("failed to write %s row %d: %w", sheet, row, err)
	}
	return nil
}

func equipment(r model.UnloadResources) string {
	out := ""
	for _, name := range []string{r.CraneName, r.ForkliftName, r.TelehandlerName} {
		if name == "" {
			continue
		}
		if out != "" {
			out += ", "
		}
		out += name
	}
	return out
}
