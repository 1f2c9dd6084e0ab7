// Package views derives the read-side structures the site screens need from a
// ledger snapshot: duplicate numbering, range selection and viewer color
// groups. Everything here is recomputed from scratch per snapshot.
package views

import (
	"sort"

	"site-delivery-backend/internal/model"
)

// Ordinal numbers one item among the items sharing its vehicle and mark.
type Ordinal struct {
	Index int `json:"index"`
	Of    int `json:"of"`
}

type markKey struct {
	vehicleID string
	mark      string
}

// SortByMark returns a copy of items ordered by assembly mark. Items with the
// same mark keep their input order.
func SortByMark(items []model.Item) []model.Item {
	out := append([]model.Item(nil), items...)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].AssemblyMark < out[j].AssemblyMark
	})
	return out
}

// DuplicateOrdinals numbers items 1..N within each (vehicle, mark) group in
// SortByMark order. The result is keyed by item id.
func DuplicateOrdinals(items []model.Item) map[string]Ordinal {
	sorted := SortByMark(items)

	totals := make(map[markKey]int)
	for _, it := range sorted {
		totals[keyOf(it)]++
	}

	seen := make(map[markKey]int)
	out := make(map[string]Ordinal, len(sorted))
	for _, it := range sorted {
		k := keyOf(it)
		seen[k]++
		out[it.ID] = Ordinal{Index: seen[k], Of: totals[k]}
	}
	return out
}

func keyOf(it model.Item) markKey {
	k := markKey{mark: it.AssemblyMark}
	if it.VehicleID != nil {
		k.vehicleID = *it.VehicleID
	}
	return k
}
