package reconcile

import (
	"context"
	"errors"
	"fmt"

	"site-delivery-backend/internal/model"
	"site-delivery-backend/internal/store"
	"site-delivery-backend/internal/views"
)

// BulkResult reports a bulk status write.
type BulkResult struct {
	Updated  int64    `json:"updated"`
	Inserted int64    `json:"inserted"`
	Skipped  []string `json:"skipped"`
}

// MassResult reports a cross-vehicle status write.
type MassResult struct {
	Applied []string `json:"applied"`
	Skipped []Skip   `json:"skipped"`
	// Created lists arrivals opened on the way.
	Created []string `json:"created"`
}

// Skip is an item left untouched by a mass write, with the reason.
type Skip struct {
	ItemID string `json:"item_id"`
	Reason string `json:"reason"`
}

// change is one requested ledger write. Nil fields are left as they are.
type change struct {
	status *model.ConfirmationStatus
	note   *string
	actor  string
}

func writable(status model.ConfirmationStatus) bool {
	switch status {
	case model.StatusPending, model.StatusConfirmed, model.StatusMissing:
		return true
	}
	return false
}

// SetStatus sets the status of one item on an open arrival.
func (s *Session) SetStatus(ctx context.Context, arrivalID, itemID string, status model.ConfirmationStatus, actor string) error {
	if !writable(status) {
		return fmt.Errorf("%w: %q", ErrInvalidStatus, status)
	}
	var before *Snapshot
	err := s.mutate(ctx, func(snap *Snapshot) error {
		before = snap
		arrival, err := s.openArrival(ctx, snap, arrivalID)
		if err != nil {
			return err
		}
		return s.write(ctx, snap, arrival, itemID, change{status: &status, actor: actor})
	})
	if err != nil {
		return err
	}
	s.auditMissing(before, arrivalID, []string{itemID}, actor, "")
	s.repaint(ctx, arrivalID, itemID)
	return nil
}

// SetNote sets the note of one item on an open arrival. The status is kept,
// or starts as pending when the item has no row yet.
func (s *Session) SetNote(ctx context.Context, arrivalID, itemID, note, actor string) error {
	return s.mutate(ctx, func(snap *Snapshot) error {
		arrival, err := s.openArrival(ctx, snap, arrivalID)
		if err != nil {
			return err
		}
		return s.write(ctx, snap, arrival, itemID, change{note: &note, actor: actor})
	})
}

// write applies c to (arrival, item). A row the ledger believes in is updated;
// when that update matches nothing, or the ledger has no row, the row is
// upserted instead.
func (s *Session) write(ctx context.Context, snap *Snapshot, arrival model.ArrivedVehicle, itemID string, c change) error {
	entry, believed := snap.Ledger.Row(arrival.ID, itemID)
	if c.status != nil && believed && entry.Status == model.StatusAdded {
		return ErrAddedRowLocked
	}

	now := s.now()
	patch := store.ConfirmationPatch{Status: c.status, Note: c.note}
	row := model.Confirmation{
		ProjectID:        s.projectID,
		ArrivedVehicleID: arrival.ID,
		ItemID:           itemID,
		Status:           model.StatusPending,
	}
	columns := []string{"updated_at"}
	if c.status != nil {
		row.Status = *c.status
		columns = append(columns, "status", "confirmed_at", "confirmed_by")
		if *c.status == model.StatusPending {
			patch.ClearConfirmed = true
		} else {
			patch.ConfirmedAt = &now
			patch.ConfirmedBy = &c.actor
			row.ConfirmedAt = &now
			row.ConfirmedBy = c.actor
		}
	}
	if c.note != nil {
		row.Note = *c.note
		columns = append(columns, "note")
	}

	if believed {
		n, err := s.deps.Store.UpdateConfirmation(ctx, s.projectID, arrival.ID, itemID, patch)
		if err != nil {
			return err
		}
		if n > 0 {
			s.countWrite(c.status, 1)
			return nil
		}
		s.deps.Metrics.StaleFallbacks.Inc()
		s.log.Debug("confirmation missing from store, inserting", "arrival_id", arrival.ID, "item_id", itemID)
	}

	if c.status == nil {
		if err := s.deps.Store.UpsertConfirmation(ctx, &row, columns...); err != nil {
			return err
		}
		return nil
	}
	n, err := s.deps.Store.UpsertConfirmationStatus(ctx, &row, columns...)
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrAddedRowLocked
	}
	s.countWrite(c.status, 1)
	return nil
}

func (s *Session) countWrite(status *model.ConfirmationStatus, n int64) {
	if status == nil || n <= 0 {
		return
	}
	s.deps.Metrics.StatusWrites.WithLabelValues(string(*status)).Add(float64(n))
}

// SetStatusBulk moves the given items of an open arrival to confirmed or
// missing. Rows that are still pending are updated, items without a row get
// a new one, and every other row is skipped.
func (s *Session) SetStatusBulk(ctx context.Context, arrivalID string, itemIDs []string, status model.ConfirmationStatus, actor string) (BulkResult, error) {
	if status != model.StatusConfirmed && status != model.StatusMissing {
		return BulkResult{}, fmt.Errorf("%w: %q", ErrInvalidStatus, status)
	}
	var (
		res    BulkResult
		before *Snapshot
	)
	err := s.mutate(ctx, func(snap *Snapshot) error {
		before = snap
		arrival, err := s.openArrival(ctx, snap, arrivalID)
		if err != nil {
			return err
		}
		res, err = s.writeBulk(ctx, snap, arrival, itemIDs, status, actor)
		return err
	})
	if err != nil {
		return res, err
	}
	s.auditMissing(before, arrivalID, itemIDs, actor, "")
	s.repaint(ctx, arrivalID, itemIDs...)
	return res, nil
}

func (s *Session) writeBulk(ctx context.Context, snap *Snapshot, arrival model.ArrivedVehicle, itemIDs []string, status model.ConfirmationStatus, actor string) (BulkResult, error) {
	var (
		res     BulkResult
		pending []string
		absent  []string
	)
	seen := make(map[string]bool, len(itemIDs))
	for _, id := range itemIDs {
		if seen[id] {
			continue
		}
		seen[id] = true
		entry, ok := snap.Ledger.Row(arrival.ID, id)
		switch {
		case !ok:
			absent = append(absent, id)
		case entry.Status == model.StatusPending:
			pending = append(pending, id)
		default:
			res.Skipped = append(res.Skipped, id)
		}
	}

	now := s.now()
	n, err := s.deps.Store.UpdatePendingConfirmations(ctx, s.projectID, arrival.ID, pending, store.ConfirmationPatch{
		Status:      &status,
		ConfirmedAt: &now,
		ConfirmedBy: &actor,
	})
	if err != nil {
		return res, err
	}
	res.Updated = n
	if n < int64(len(pending)) {
		// Some rows believed pending are gone or no longer pending; the insert
		// below only fills the gone ones.
		s.deps.Metrics.StaleFallbacks.Inc()
		absent = append(absent, pending...)
	}

	rows := make([]model.Confirmation, 0, len(absent))
	for _, id := range absent {
		rows = append(rows, model.Confirmation{
			ProjectID:        s.projectID,
			ArrivedVehicleID: arrival.ID,
			ItemID:           id,
			Status:           status,
			ConfirmedAt:      &now,
			ConfirmedBy:      actor,
		})
	}
	m, err := s.deps.Store.InsertConfirmationsIfAbsent(ctx, rows)
	if err != nil {
		return res, err
	}
	res.Inserted = m
	s.countWrite(&status, res.Updated+res.Inserted)
	return res, nil
}

// ConfirmAllPending applies status to every item of the arrival that is
// still pending.
func (s *Session) ConfirmAllPending(ctx context.Context, arrivalID string, status model.ConfirmationStatus, actor string) (BulkResult, error) {
	arrival, err := s.arrivalFor(ctx, s.Snapshot(), arrivalID)
	if err != nil {
		return BulkResult{}, err
	}
	ids := views.IDs(s.Snapshot().Rows(arrival, model.StatusPending))
	return s.SetStatusBulk(ctx, arrivalID, ids, status, actor)
}

// ConfirmSelected applies status to the range-selected pending items of the
// arrival and clears the selection.
func (s *Session) ConfirmSelected(ctx context.Context, arrivalID string, status model.ConfirmationStatus, actor string) (BulkResult, error) {
	arrival, err := s.arrivalFor(ctx, s.Snapshot(), arrivalID)
	if err != nil {
		return BulkResult{}, err
	}
	visible := views.IDs(s.Snapshot().Rows(arrival, model.StatusPending))
	var ids []string
	s.withSelector(arrivalID, func(sel *views.RangeSelector) {
		ids = sel.Selected(visible)
	})
	if len(ids) == 0 {
		return BulkResult{}, nil
	}
	res, err := s.SetStatusBulk(ctx, arrivalID, ids, status, actor)
	if err != nil {
		return res, err
	}
	s.withSelector(arrivalID, func(sel *views.RangeSelector) { sel.Clear() })
	s.selectInViewer(ctx, s.Snapshot(), nil)
	return res, nil
}

// ApplyStatus sets status on items regardless of their vehicle. Each item is
// written on the latest arrival of its current vehicle; a vehicle that has
// not arrived yet gets an arrival for today with pending rows for all its
// items. Items without a vehicle, on a confirmed arrival or locked as added
// are skipped.
func (s *Session) ApplyStatus(ctx context.Context, itemIDs []string, status model.ConfirmationStatus, actor string) (MassResult, error) {
	if !writable(status) {
		return MassResult{}, fmt.Errorf("%w: %q", ErrInvalidStatus, status)
	}
	var (
		res     MassResult
		before  *Snapshot
		touched = make(map[string][]string)
	)
	err := s.mutate(ctx, func(snap *Snapshot) error {
		before = snap
		arrivals := make(map[string]*model.ArrivedVehicle)
		for _, itemID := range itemIDs {
			item, err := s.deps.Store.GetItem(ctx, s.projectID, itemID)
			if err != nil {
				return err
			}
			if item.VehicleID == nil {
				res.Skipped = append(res.Skipped, Skip{ItemID: itemID, Reason: ErrItemNotScheduled.Error()})
				continue
			}

			arrival, ok := arrivals[*item.VehicleID]
			if !ok {
				arrival, err = s.deps.Store.LatestArrival(ctx, s.projectID, *item.VehicleID)
				if err != nil {
					return err
				}
				if arrival == nil {
					var created bool
					arrival, created, err = s.findOrCreateArrival(ctx, snap, *item.VehicleID, "")
					if err != nil {
						return err
					}
					if created {
						res.Created = append(res.Created, arrival.ID)
					}
				}
				arrivals[*item.VehicleID] = arrival
			}
			if arrival.IsConfirmed {
				res.Skipped = append(res.Skipped, Skip{ItemID: itemID, Reason: ErrArrivalConfirmed.Error()})
				continue
			}

			err = s.write(ctx, snap, *arrival, itemID, change{status: &status, actor: actor})
			if errors.Is(err, ErrAddedRowLocked) {
				res.Skipped = append(res.Skipped, Skip{ItemID: itemID, Reason: err.Error()})
				continue
			}
			if err != nil {
				return err
			}
			res.Applied = append(res.Applied, itemID)
			touched[arrival.ID] = append(touched[arrival.ID], itemID)
		}
		return nil
	})
	if err != nil {
		return res, err
	}
	for arrivalID, ids := range touched {
		s.auditMissing(before, arrivalID, ids, actor, "")
		s.repaint(ctx, arrivalID, ids...)
	}
	return res, nil
}

// auditMissing records a history entry for every item that is missing on the
// arrival now but was not in before. It must run after the reload.
func (s *Session) auditMissing(before *Snapshot, arrivalID string, itemIDs []string, actor, reason string) {
	if before == nil {
		return
	}
	after := s.Snapshot()
	arrival, _ := after.Arrival(arrivalID)
	if reason == "" {
		reason = fmt.Sprintf("marked missing on arrival of %s", arrival.ArrivalDate)
	}
	for _, itemID := range itemIDs {
		old := before.Ledger.Status(arrivalID, itemID)
		if old == model.StatusMissing || after.Ledger.Status(arrivalID, itemID) != model.StatusMissing {
			continue
		}
		s.deps.Audit.Record(model.ItemHistory{
			ProjectID: s.projectID,
			ItemID:    itemID,
			Action:    model.ActionStatusChange,
			OldValue:  string(old),
			NewValue:  string(model.StatusMissing),
			Reason:    reason,
			Actor:     actor,
			CreatedAt: s.now(),
		})
	}
}
