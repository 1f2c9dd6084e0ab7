package reconcile

import (
	"context"
	"fmt"
	"strings"
	"time"

	"site-delivery-backend/internal/model"
	"site-delivery-backend/internal/notification"
	"site-delivery-backend/internal/store"
	"site-delivery-backend/internal/views"
)

// Details are the editable fields of an arrival.
type Details struct {
	ArrivalTime string                `json:"arrival_time"`
	UnloadStart string                `json:"unload_start"`
	UnloadEnd   string                `json:"unload_end"`
	Location    string                `json:"location"`
	Notes       string                `json:"notes"`
	Resources   model.UnloadResources `json:"resources"`
}

func (d Details) validate() error {
	for _, v := range []string{d.ArrivalTime, d.UnloadStart, d.UnloadEnd} {
		if v == "" {
			continue
		}
		if _, err := time.Parse("15:04", v); err != nil {
			return fmt.Errorf("%w: %q", ErrInvalidTime, v)
		}
	}
	return nil
}

// StartArrival finds or creates the arrival of vehicleID on date (today when
// empty). A new arrival gets a pending row for every item currently on the
// vehicle. The bool reports whether the arrival was created.
func (s *Session) StartArrival(ctx context.Context, vehicleID, date, actor string) (*model.ArrivedVehicle, bool, error) {
	var (
		arrival *model.ArrivedVehicle
		created bool
	)
	err := s.mutate(ctx, func(snap *Snapshot) error {
		var err error
		arrival, created, err = s.findOrCreateArrival(ctx, snap, vehicleID, date)
		return err
	})
	if err != nil {
		return nil, false, err
	}
	if created {
		s.log.Info("arrival started", "arrival_id", arrival.ID, "vehicle_id", vehicleID, "date", arrival.ArrivalDate, "actor", actor)
	}
	return arrival, created, nil
}

func (s *Session) findOrCreateArrival(ctx context.Context, snap *Snapshot, vehicleID, date string) (*model.ArrivedVehicle, bool, error) {
	if _, err := s.vehicleFor(ctx, snap, vehicleID); err != nil {
		return nil, false, err
	}
	if date == "" {
		date = s.today()
	} else if _, err := time.Parse(model.DateLayout, date); err != nil {
		return nil, false, fmt.Errorf("%w: arrival date %q: %v", ErrInvalidInput, date, err)
	}

	items, err := s.deps.Store.ListItemsByVehicle(ctx, s.projectID, vehicleID)
	if err != nil {
		return nil, false, err
	}
	itemIDs := make([]string, len(items))
	for i, it := range items {
		itemIDs[i] = it.ID
	}
	return s.deps.Store.FindOrCreateArrival(ctx, &model.ArrivedVehicle{
		ProjectID:   s.projectID,
		VehicleID:   vehicleID,
		ArrivalDate: date,
	}, itemIDs)
}

// UpdateArrival writes the editable details of an open arrival.
func (s *Session) UpdateArrival(ctx context.Context, arrivalID string, d Details) error {
	if err := d.validate(); err != nil {
		return err
	}
	return s.mutate(ctx, func(snap *Snapshot) error {
		n, err := s.deps.Store.UpdateArrivalDetails(ctx, &model.ArrivedVehicle{
			ID:          arrivalID,
			ProjectID:   s.projectID,
			ArrivalTime: d.ArrivalTime,
			UnloadStart: d.UnloadStart,
			UnloadEnd:   d.UnloadEnd,
			Location:    strings.TrimSpace(d.Location),
			Notes:       d.Notes,
			Resources:   d.Resources,
		})
		if err != nil {
			return err
		}
		if n > 0 {
			return nil
		}
		if _, err := s.deps.Store.GetArrival(ctx, s.projectID, arrivalID); err != nil {
			return err
		}
		return ErrArrivalConfirmed
	})
}

// CompleteArrival confirms the arrival, marks its confirmed and added items
// delivered and completes the vehicle. Staff are alerted when the completed
// arrival has missing items.
func (s *Session) CompleteArrival(ctx context.Context, arrivalID, actor string) (store.ArrivalCompletion, error) {
	var done store.ArrivalCompletion
	err := s.mutate(ctx, func(snap *Snapshot) error {
		var err error
		done, err = s.deps.Store.CompleteArrival(ctx, s.projectID, arrivalID, actor, s.now())
		return err
	})
	if err != nil || !done.Completed {
		return done, err
	}

	snap := s.Snapshot()
	arrival, ok := snap.Arrival(arrivalID)
	if !ok {
		return done, nil
	}
	counts := views.Tally(snap.Rows(arrival, ""))
	s.log.Info("arrival completed", "arrival_id", arrivalID, "actor", actor,
		"delivered", done.ItemsDelivered, "missing", counts.Missing)

	if counts.Missing > 0 && s.deps.Notifier != nil {
		vehicle, _ := snap.Vehicle(arrival.VehicleID)
		s.deps.Notifier.Dispatch(notification.Alert{
			ProjectID:   s.projectID,
			ArrivalID:   arrivalID,
			VehicleCode: vehicle.Code,
			ArrivalDate: arrival.ArrivalDate,
			Missing:     counts.Missing,
		})
	}
	return done, nil
}

// CreateUnplannedVehicle adds a vehicle that is not on the imported schedule.
func (s *Session) CreateUnplannedVehicle(ctx context.Context, code, date, factory string) (*model.Vehicle, error) {
	code = strings.ToUpper(strings.TrimSpace(code))
	if code == "" {
		return nil, fmt.Errorf("%w: vehicle code is required", ErrInvalidInput)
	}
	if date == "" {
		date = s.today()
	} else if _, err := time.Parse(model.DateLayout, date); err != nil {
		return nil, fmt.Errorf("%w: scheduled date %q: %v", ErrInvalidInput, date, err)
	}
	v := &model.Vehicle{
		ProjectID:     s.projectID,
		Code:          code,
		ScheduledDate: date,
		Factory:       strings.TrimSpace(factory),
		Unplanned:     true,
	}
	err := s.mutate(ctx, func(*Snapshot) error {
		return s.deps.Store.CreateVehicle(ctx, v)
	})
	if err != nil {
		return nil, err
	}
	return v, nil
}

// ImportSchedule upserts schedule lines. Existing items keep their current
// vehicle pointer.
func (s *Session) ImportSchedule(ctx context.Context, lines []store.ScheduleLine) (store.ScheduleResult, error) {
	var res store.ScheduleResult
	err := s.mutate(ctx, func(*Snapshot) error {
		var err error
		res, err = s.deps.Store.UpsertSchedule(ctx, s.projectID, lines)
		return err
	})
	if err != nil {
		return res, err
	}
	for _, line := range res.Orphaned {
		s.log.Warn("schedule line skipped, vehicle missing after upsert", "vehicle_code", line.VehicleCode, "assembly_mark", line.AssemblyMark)
	}
	s.log.Info("schedule imported", "lines", len(lines), "vehicles", res.VehiclesUpserted, "items", res.ItemsUpserted)
	return res, nil
}
