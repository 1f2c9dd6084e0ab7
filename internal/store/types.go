package store

import (
	"time"

	"github.com/shopspring/decimal"

	"site-delivery-backend/internal/model"
)

// ScheduleLine is one row of an imported delivery schedule.
type ScheduleLine struct {
	VehicleCode   string
	ScheduledDate string
	Factory       string
	AssemblyMark  string
	ProductName   string
	Weight        decimal.Decimal
	GUID          string
	ModelID       string
}

// ScheduleResult summarizes an UpsertSchedule call.
type ScheduleResult struct {
	VehiclesUpserted int
	ItemsUpserted    int
	// Orphaned lines name a vehicle that was not found after the upsert and
	// were not written.
	Orphaned []ScheduleLine
}

// ConfirmationPatch lists the ledger columns a filtered update may set.
// Nil fields are left untouched.
type ConfirmationPatch struct {
	Status      *model.ConfirmationStatus
	Note        *string
	ConfirmedAt *time.Time
	ConfirmedBy *string
	// ClearConfirmed resets confirmed_at/confirmed_by, used when a row goes
	// back to pending.
	ClearConfirmed bool
}

func (p ConfirmationPatch) columns() map[string]interface{} {
	cols := make(map[string]interface{}, 4)
	if p.Status != nil {
		cols["status"] = *p.Status
	}
	if p.Note != nil {
		cols["note"] = *p.Note
	}
	if p.ClearConfirmed {
		cols["confirmed_at"] = nil
		cols["confirmed_by"] = ""
	} else {
		if p.ConfirmedAt != nil {
			cols["confirmed_at"] = *p.ConfirmedAt
		}
		if p.ConfirmedBy != nil {
			cols["confirmed_by"] = *p.ConfirmedBy
		}
	}
	return cols
}

// ArrivalCompletion reports what CompleteArrival changed.
type ArrivalCompletion struct {
	Completed      bool
	ItemsDelivered int64
}
