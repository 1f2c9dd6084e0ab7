package views

import (
	"site-delivery-backend/internal/ledger"
	"site-delivery-backend/internal/model"
)

// Row is one line of an arrival's item list.
type Row struct {
	Item       model.Item   `json:"item"`
	Ordinal    Ordinal      `json:"ordinal"`
	Entry      ledger.Entry `json:"entry"`
	HasRow     bool         `json:"has_row"`
	PhotoCount int          `json:"photo_count"`
}

// ArrivalItems returns the items shown for an arrival, sorted by mark: those
// currently on its vehicle plus those with a settled (non-pending) ledger row
// on it. A pending row left behind by an item that moved to another vehicle is
// not shown.
func ArrivalItems(arrival model.ArrivedVehicle, items []model.Item, l *ledger.Ledger) []model.Item {
	byID := make(map[string]model.Item, len(items))
	for _, it := range items {
		byID[it.ID] = it
	}

	seen := make(map[string]bool)
	var out []model.Item
	for _, itemID := range l.ItemIDs(arrival.ID) {
		it, ok := byID[itemID]
		if !ok || seen[itemID] {
			continue
		}
		if l.Status(arrival.ID, itemID) == model.StatusPending && !it.OnVehicle(arrival.VehicleID) {
			continue
		}
		seen[itemID] = true
		out = append(out, it)
	}
	for _, it := range items {
		if it.OnVehicle(arrival.VehicleID) && !seen[it.ID] {
			seen[it.ID] = true
			out = append(out, it)
		}
	}
	return SortByMark(out)
}

// ArrivalRows builds the item list of an arrival with ordinals and ledger
// state. When filter is non-empty only rows in that status are returned;
// ordinals are always computed over the full list.
func ArrivalRows(arrival model.ArrivedVehicle, items []model.Item, l *ledger.Ledger, filter model.ConfirmationStatus) []Row {
	list := ArrivalItems(arrival, items, l)
	ordinals := DuplicateOrdinals(list)

	rows := make([]Row, 0, len(list))
	for _, it := range list {
		entry, ok := l.Row(arrival.ID, it.ID)
		if !ok {
			entry = l.Lookup(arrival.ID, it.ID)
		}
		if filter != "" && entry.Status != filter {
			continue
		}
		rows = append(rows, Row{
			Item:       it,
			Ordinal:    ordinals[it.ID],
			Entry:      entry,
			HasRow:     ok,
			PhotoCount: l.PhotoCount(arrival.ID, it.ID),
		})
	}
	return rows
}

// IDs returns the item ids of rows in order.
func IDs(rows []Row) []string {
	ids := make([]string, len(rows))
	for i, r := range rows {
		ids[i] = r.Item.ID
	}
	return ids
}

// Tally counts rows by status. Items without a ledger row count as pending.
func Tally(rows []Row) ledger.Counts {
	var c ledger.Counts
	for _, r := range rows {
		switch r.Entry.Status {
		case model.StatusConfirmed:
			c.Confirmed++
		case model.StatusMissing:
			c.Missing++
		case model.StatusAdded:
			c.Added++
		default:
			c.Pending++
		}
	}
	return c
}
