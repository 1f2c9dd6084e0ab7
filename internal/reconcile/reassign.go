package reconcile

import (
	"context"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"site-delivery-backend/internal/model"
	"site-delivery-backend/internal/viewer"
)

// addedColumns are overwritten when an added row replaces an existing row of
// the same (arrival, item) pair.
var addedColumns = []string{
	"status", "source_vehicle_id", "source_vehicle_code", "note",
	"confirmed_at", "confirmed_by", "updated_at",
}

// MovedItem is an item scheduled for one vehicle but ledgered as added on an
// arrival of another.
type MovedItem struct {
	ConfirmationID string     `json:"confirmation_id"`
	Item           model.Item `json:"item"`
	ArrivalID      string     `json:"arrival_id"`
	ArrivalDate    string     `json:"arrival_date"`
	VehicleID      string     `json:"vehicle_id"`
	VehicleCode    string     `json:"vehicle_code"`
}

// SelectionResult reports a model pick.
type SelectionResult struct {
	Added   []model.Item `json:"added"`
	Skipped []Skip       `json:"skipped"`
}

// Reassign moves an item from its current vehicle onto an open arrival of
// another vehicle and ledgers it there as added, remembering the source
// vehicle.
func (s *Session) Reassign(ctx context.Context, arrivalID, itemID, actor string) error {
	err := s.mutate(ctx, func(snap *Snapshot) error {
		target, err := s.openArrival(ctx, snap, arrivalID)
		if err != nil {
			return err
		}
		item, err := s.deps.Store.GetItem(ctx, s.projectID, itemID)
		if err != nil {
			return err
		}
		return s.reassign(ctx, snap, target, *item, actor)
	})
	if err != nil {
		return err
	}
	s.repaint(ctx, arrivalID, itemID)
	return nil
}

func (s *Session) reassign(ctx context.Context, snap *Snapshot, target model.ArrivedVehicle, item model.Item, actor string) error {
	if item.VehicleID == nil {
		return ErrItemNotScheduled
	}
	if *item.VehicleID == target.VehicleID {
		return ErrItemOnVehicle
	}
	if other, ok := snap.Ledger.ConfirmedOn(item.ID, target.ID); ok {
		return fmt.Errorf("%w: arrival %s", ErrItemConfirmedElsewhere, other)
	}
	source, err := s.vehicleFor(ctx, snap, *item.VehicleID)
	if err != nil {
		return err
	}
	dest, err := s.vehicleFor(ctx, snap, target.VehicleID)
	if err != nil {
		return err
	}

	now := s.now()
	row := &model.Confirmation{
		ProjectID:         s.projectID,
		ArrivedVehicleID:  target.ID,
		ItemID:            item.ID,
		Status:            model.StatusAdded,
		SourceVehicleID:   &source.ID,
		SourceVehicleCode: &source.Code,
		Note:              fmt.Sprintf("Moved from vehicle %s (scheduled %s)", source.Code, item.ScheduledDate),
		ConfirmedAt:       &now,
		ConfirmedBy:       actor,
	}
	if err := s.deps.Store.UpsertConfirmation(ctx, row, addedColumns...); err != nil {
		return err
	}
	if _, err := s.deps.Store.MoveItem(ctx, s.projectID, item.ID, &dest.ID, dest.ScheduledDate); err != nil {
		return err
	}

	s.deps.Audit.Record(model.ItemHistory{
		ProjectID: s.projectID,
		ItemID:    item.ID,
		Action:    model.ActionVehicleChange,
		OldValue:  source.Code,
		NewValue:  dest.Code,
		Reason:    fmt.Sprintf("arrived with %s on %s", dest.Code, target.ArrivalDate),
		Actor:     actor,
		CreatedAt: now,
	})
	s.deps.Metrics.Reassignments.WithLabelValues("vehicle").Inc()
	s.log.Info("item reassigned", "item_id", item.ID, "from", source.Code, "to", dest.Code, "arrival_id", target.ID)
	return nil
}

// AddFromModel ledgers a model object as added on an open arrival. An object
// whose GUID is already a scheduled item is reassigned; any other object
// becomes a new delivered item with no source vehicle.
func (s *Session) AddFromModel(ctx context.Context, arrivalID string, obj viewer.ObjectProperties, modelID, actor string) (*model.Item, error) {
	var item *model.Item
	err := s.mutate(ctx, func(snap *Snapshot) error {
		target, err := s.openArrival(ctx, snap, arrivalID)
		if err != nil {
			return err
		}
		item, err = s.addFromModel(ctx, snap, target, obj, modelID, actor)
		return err
	})
	if err != nil {
		return nil, err
	}
	s.repaint(ctx, arrivalID, item.ID)
	return item, nil
}

func (s *Session) addFromModel(ctx context.Context, snap *Snapshot, target model.ArrivedVehicle, obj viewer.ObjectProperties, modelID, actor string) (*model.Item, error) {
	guid := strings.TrimSpace(obj.GUID)
	if guid == "" {
		return nil, fmt.Errorf("%w: model object has no GUID", ErrInvalidInput)
	}
	found, err := s.deps.Store.FindItemsByGUID(ctx, s.projectID, []string{guid})
	if err != nil {
		return nil, err
	}
	if len(found) > 0 && found[0].VehicleID != nil {
		item := found[0]
		if err := s.reassign(ctx, snap, target, item, actor); err != nil {
			return nil, err
		}
		return &item, nil
	}

	dest, err := s.vehicleFor(ctx, snap, target.VehicleID)
	if err != nil {
		return nil, err
	}
	var item model.Item
	if len(found) > 0 {
		item = found[0]
		if _, err := s.deps.Store.MoveItem(ctx, s.projectID, item.ID, &dest.ID, dest.ScheduledDate); err != nil {
			return nil, err
		}
	} else {
		mark := strings.TrimSpace(obj.AssemblyMark)
		if mark == "" {
			mark = strings.TrimSpace(obj.Name)
		}
		item = model.Item{
			ProjectID:     s.projectID,
			VehicleID:     &dest.ID,
			ScheduledDate: dest.ScheduledDate,
			AssemblyMark:  mark,
			ProductName:   obj.ProductName,
			Weight:        decimal.NewFromFloat(obj.Weight).Round(3),
			GUID:          &guid,
			ModelID:       modelID,
			Status:        model.ItemDelivered,
			FromModel:     true,
		}
		if err := s.deps.Store.CreateItem(ctx, &item); err != nil {
			return nil, err
		}
	}

	now := s.now()
	if err := s.deps.Store.UpsertConfirmation(ctx, &model.Confirmation{
		ProjectID:        s.projectID,
		ArrivedVehicleID: target.ID,
		ItemID:           item.ID,
		Status:           model.StatusAdded,
		Note:             "Added from model",
		ConfirmedAt:      &now,
		ConfirmedBy:      actor,
	}, addedColumns...); err != nil {
		return nil, err
	}
	s.deps.Metrics.Reassignments.WithLabelValues("model").Inc()
	s.log.Info("item added from model", "item_id", item.ID, "guid", guid, "arrival_id", target.ID)
	return &item, nil
}

// AddFromSelection resolves a viewer selection into objects and adds each one
// to the arrival like AddFromModel. Objects rejected by a precondition are
// reported as skipped; viewer failures abort.
func (s *Session) AddFromSelection(ctx context.Context, arrivalID string, sel []viewer.Selection, actor string) (SelectionResult, error) {
	type picked struct {
		modelID string
		obj     viewer.ObjectProperties
	}
	var objects []picked
	for _, m := range sel {
		if len(m.RuntimeIDs) == 0 {
			continue
		}
		guids, err := s.deps.Viewer.ConvertToObjectIDs(ctx, m.ModelID, m.RuntimeIDs)
		if err != nil {
			s.viewerFailed("convert_to_object_ids", err)
			return SelectionResult{}, err
		}
		props, err := s.deps.Viewer.GetObjectProperties(ctx, m.ModelID, m.RuntimeIDs)
		if err != nil {
			s.viewerFailed("get_object_properties", err)
			return SelectionResult{}, err
		}
		for i, guid := range guids {
			var obj viewer.ObjectProperties
			if i < len(props) {
				obj = props[i]
			}
			if obj.GUID == "" {
				obj.GUID = guid
			}
			objects = append(objects, picked{modelID: m.ModelID, obj: obj})
		}
	}

	var res SelectionResult
	if len(objects) == 0 {
		return res, nil
	}
	err := s.mutate(ctx, func(snap *Snapshot) error {
		target, err := s.openArrival(ctx, snap, arrivalID)
		if err != nil {
			return err
		}
		for _, p := range objects {
			item, err := s.addFromModel(ctx, snap, target, p.obj, p.modelID, actor)
			if err != nil {
				if IsPrecondition(err) || IsInvalid(err) {
					res.Skipped = append(res.Skipped, Skip{ItemID: p.obj.GUID, Reason: err.Error()})
					continue
				}
				return err
			}
			res.Added = append(res.Added, *item)
		}
		return nil
	})
	if err != nil {
		return res, err
	}
	ids := make([]string, len(res.Added))
	for i, it := range res.Added {
		ids[i] = it.ID
	}
	s.repaint(ctx, arrivalID, ids...)
	return res, nil
}

// UndoReassign removes an added row. An item moved from another vehicle goes
// back to it; an item discovered in the model is deleted and its object
// painted neutral. Only the latest move of an item can be undone.
func (s *Session) UndoReassign(ctx context.Context, confirmationID, actor string) error {
	var (
		arrivalID string
		guid      string
		discarded bool
	)
	err := s.mutate(ctx, func(snap *Snapshot) error {
		row, err := s.deps.Store.GetConfirmation(ctx, s.projectID, confirmationID)
		if err != nil {
			return err
		}
		if row.Status != model.StatusAdded {
			return ErrNotReassigned
		}
		arrival, err := s.openArrival(ctx, snap, row.ArrivedVehicleID)
		if err != nil {
			return err
		}
		arrivalID = arrival.ID
		item, err := s.deps.Store.GetItem(ctx, s.projectID, row.ItemID)
		if err != nil {
			return err
		}
		guid = item.ObjectGUID()
		if item.VehicleID == nil || *item.VehicleID != arrival.VehicleID {
			return ErrItemMovedOn
		}

		if row.SourceVehicleID == nil {
			if _, err := s.deps.Store.DeleteConfirmation(ctx, s.projectID, row.ID); err != nil {
				return err
			}
			if _, err := s.deps.Store.DeleteItem(ctx, s.projectID, item.ID); err != nil {
				return err
			}
			discarded = true
			s.deps.Metrics.Reassignments.WithLabelValues("undo").Inc()
			s.log.Info("model item removed", "item_id", item.ID, "arrival_id", arrival.ID, "actor", actor)
			return nil
		}

		source, err := s.vehicleFor(ctx, snap, *row.SourceVehicleID)
		if err != nil {
			return err
		}
		if _, err := s.deps.Store.DeleteConfirmation(ctx, s.projectID, row.ID); err != nil {
			return err
		}
		if _, err := s.deps.Store.MoveItem(ctx, s.projectID, item.ID, &source.ID, source.ScheduledDate); err != nil {
			return err
		}
		dest, _ := snap.Vehicle(arrival.VehicleID)
		s.deps.Audit.Record(model.ItemHistory{
			ProjectID: s.projectID,
			ItemID:    item.ID,
			Action:    model.ActionReassignUndo,
			OldValue:  dest.Code,
			NewValue:  source.Code,
			Reason:    "reassignment undone",
			Actor:     actor,
			CreatedAt: s.now(),
		})
		s.deps.Metrics.Reassignments.WithLabelValues("undo").Inc()
		return nil
	})
	if err != nil {
		return err
	}
	if guid != "" && (discarded || s.isColoring(arrivalID)) {
		if err := s.painter.PaintNeutral(ctx, []string{guid}); err != nil {
			s.viewerFailed("paint_neutral", err)
		}
	}
	return nil
}

// MovedOut lists the items scheduled for vehicleID that were ledgered as
// added on another vehicle's arrival.
func (s *Session) MovedOut(vehicleID string) []MovedItem {
	snap := s.Snapshot()
	rows := snap.Ledger.MovedOut(vehicleID)
	out := make([]MovedItem, 0, len(rows))
	for _, c := range rows {
		m := MovedItem{ConfirmationID: c.ID, ArrivalID: c.ArrivedVehicleID}
		m.Item, _ = snap.Item(c.ItemID)
		if a, ok := snap.Arrival(c.ArrivedVehicleID); ok {
			m.ArrivalDate = a.ArrivalDate
			m.VehicleID = a.VehicleID
			if v, ok := snap.Vehicle(a.VehicleID); ok {
				m.VehicleCode = v.Code
			}
		}
		out = append(out, m)
	}
	return out
}
