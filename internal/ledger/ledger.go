// Package ledger holds the in-memory index of confirmation rows and photos of
// one project. A Ledger is immutable: after any write the caller builds a new
// one from a fresh snapshot instead of patching the old one.
package ledger

import (
	"time"

	"site-delivery-backend/internal/model"
)

// Key addresses one (arrival, item) pair.
type Key struct {
	ArrivalID string
	ItemID    string
}

// Entry is the ledger view of one confirmation row.
type Entry struct {
	ConfirmationID    string                   `json:"confirmation_id,omitempty"`
	Status            model.ConfirmationStatus `json:"status"`
	Note              string                   `json:"note"`
	ConfirmedAt       *time.Time               `json:"confirmed_at,omitempty"`
	ConfirmedBy       string                   `json:"confirmed_by,omitempty"`
	SourceVehicleID   *string                  `json:"source_vehicle_id,omitempty"`
	SourceVehicleCode *string                  `json:"source_vehicle_code,omitempty"`
}

// Counts tallies the statuses of one arrival.
type Counts struct {
	Pending   int `json:"pending"`
	Confirmed int `json:"confirmed"`
	Missing   int `json:"missing"`
	Added     int `json:"added"`
}

// Total is the number of ledger rows counted.
func (c Counts) Total() int {
	return c.Pending + c.Confirmed + c.Missing + c.Added
}

// Ledger indexes a project's confirmations and photos by (arrival, item).
type Ledger struct {
	entries   map[Key]Entry
	photos    map[Key][]model.Photo
	byArrival map[string][]string
	added     []model.Confirmation
}

// Build indexes a snapshot. Photos keep the order they are given in; photos
// without an item are filed under an empty ItemID.
func Build(confirmations []model.Confirmation, photos []model.Photo) *Ledger {
	l := &Ledger{
		entries:   make(map[Key]Entry, len(confirmations)),
		photos:    make(map[Key][]model.Photo),
		byArrival: make(map[string][]string),
	}
	for _, c := range confirmations {
		k := Key{ArrivalID: c.ArrivedVehicleID, ItemID: c.ItemID}
		if _, dup := l.entries[k]; !dup {
			l.byArrival[c.ArrivedVehicleID] = append(l.byArrival[c.ArrivedVehicleID], c.ItemID)
		}
		l.entries[k] = Entry{
			ConfirmationID:    c.ID,
			Status:            c.Status,
			Note:              c.Note,
			ConfirmedAt:       c.ConfirmedAt,
			ConfirmedBy:       c.ConfirmedBy,
			SourceVehicleID:   c.SourceVehicleID,
			SourceVehicleCode: c.SourceVehicleCode,
		}
		if c.Status == model.StatusAdded {
			l.added = append(l.added, c)
		}
	}
	for _, p := range photos {
		k := Key{ArrivalID: p.ArrivedVehicleID}
		if p.ItemID != nil {
			k.ItemID = *p.ItemID
		}
		l.photos[k] = append(l.photos[k], p)
	}
	return l
}

// Empty returns a ledger with no rows.
func Empty() *Ledger {
	return Build(nil, nil)
}

// Row returns the entry of (arrivalID, itemID) and whether a row exists.
func (l *Ledger) Row(arrivalID, itemID string) (Entry, bool) {
	e, ok := l.entries[Key{ArrivalID: arrivalID, ItemID: itemID}]
	return e, ok
}

// Lookup returns the entry of (arrivalID, itemID), defaulting to pending.
func (l *Ledger) Lookup(arrivalID, itemID string) Entry {
	if e, ok := l.Row(arrivalID, itemID); ok {
		return e
	}
	return Entry{Status: model.StatusPending}
}

// Status is Lookup(...).Status.
func (l *Ledger) Status(arrivalID, itemID string) model.ConfirmationStatus {
	return l.Lookup(arrivalID, itemID).Status
}

// Note is Lookup(...).Note.
func (l *Ledger) Note(arrivalID, itemID string) string {
	return l.Lookup(arrivalID, itemID).Note
}

// Photos returns the photos attached to (arrivalID, itemID). Pass an empty
// itemID for arrival-level photos.
func (l *Ledger) Photos(arrivalID, itemID string) []model.Photo {
	return l.photos[Key{ArrivalID: arrivalID, ItemID: itemID}]
}

// PhotoCount is len(Photos(...)).
func (l *Ledger) PhotoCount(arrivalID, itemID string) int {
	return len(l.photos[Key{ArrivalID: arrivalID, ItemID: itemID}])
}

// ItemIDs lists the items holding a row on arrivalID, in snapshot order.
func (l *Ledger) ItemIDs(arrivalID string) []string {
	return l.byArrival[arrivalID]
}

// Counts tallies the rows of one arrival.
func (l *Ledger) Counts(arrivalID string) Counts {
	var c Counts
	for _, itemID := range l.byArrival[arrivalID] {
		switch l.entries[Key{ArrivalID: arrivalID, ItemID: itemID}].Status {
		case model.StatusPending:
			c.Pending++
		case model.StatusConfirmed:
			c.Confirmed++
		case model.StatusMissing:
			c.Missing++
		case model.StatusAdded:
			c.Added++
		}
	}
	return c
}

// ConfirmedOn returns the arrival other than exceptArrivalID on which itemID
// is confirmed, if any.
func (l *Ledger) ConfirmedOn(itemID, exceptArrivalID string) (string, bool) {
	for k, e := range l.entries {
		if k.ItemID == itemID && k.ArrivalID != exceptArrivalID && e.Status == model.StatusConfirmed {
			return k.ArrivalID, true
		}
	}
	return "", false
}

// MovedOut lists the added rows whose source is vehicleID, that is the items
// scheduled for the vehicle but ledgered under another arrival. It scans
// every added row.
func (l *Ledger) MovedOut(vehicleID string) []model.Confirmation {
	var out []model.Confirmation
	for _, c := range l.added {
		if c.SourceVehicleID != nil && *c.SourceVehicleID == vehicleID {
			out = append(out, c)
		}
	}
	return out
}
