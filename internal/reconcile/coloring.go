package reconcile

import (
	"context"
	"time"

	"site-delivery-backend/internal/model"
	"site-delivery-backend/internal/viewer"
	"site-delivery-backend/internal/views"
)

const defaultPollInterval = time.Second

// StartColoring adds arrivals to the colored set and repaints the model.
// Viewer failures are logged and counted; the partition is returned either
// way.
func (s *Session) StartColoring(ctx context.Context, arrivalIDs ...string) (views.Partition, error) {
	snap := s.Snapshot()
	for _, id := range arrivalIDs {
		if _, err := s.arrivalFor(ctx, snap, id); err != nil {
			return views.Partition{}, err
		}
	}

	s.viewMu.Lock()
	for _, id := range arrivalIDs {
		if !contains(s.coloring, id) {
			s.coloring = append(s.coloring, id)
		}
	}
	s.viewMu.Unlock()

	part := s.Partition()
	if err := s.painter.Paint(ctx, part); err != nil {
		s.viewerFailed("paint", err)
	}
	return part, nil
}

// StopColoring removes arrivals from the colored set, or clears it when no
// ids are given. The model is repainted, all neutral once nothing is left.
func (s *Session) StopColoring(ctx context.Context, arrivalIDs ...string) {
	s.viewMu.Lock()
	if len(arrivalIDs) == 0 {
		s.coloring = nil
	} else {
		kept := s.coloring[:0]
		for _, id := range s.coloring {
			if !contains(arrivalIDs, id) {
				kept = append(kept, id)
			}
		}
		s.coloring = kept
	}
	s.viewMu.Unlock()

	if err := s.painter.Paint(ctx, s.Partition()); err != nil {
		s.viewerFailed("paint", err)
	}
}

// Coloring returns the arrivals being colored, in the order they were added.
func (s *Session) Coloring() []string {
	s.viewMu.RLock()
	defer s.viewMu.RUnlock()
	return append([]string(nil), s.coloring...)
}

func (s *Session) isColoring(arrivalID string) bool {
	s.viewMu.RLock()
	defer s.viewMu.RUnlock()
	return contains(s.coloring, arrivalID)
}

// Partition splits the project's GUIDs into color groups for the colored
// arrivals. With nothing colored every GUID is neutral.
func (s *Session) Partition() views.Partition {
	snap := s.Snapshot()
	var targets []views.Target
	for _, id := range s.Coloring() {
		if a, ok := snap.Arrival(id); ok {
			targets = append(targets, views.Target{VehicleID: a.VehicleID, ArrivalID: a.ID})
		}
	}
	return views.PartitionGUIDs(targets, snap.Items, snap.Ledger)
}

// repaint recolors items of a colored arrival after a write.
func (s *Session) repaint(ctx context.Context, arrivalID string, itemIDs ...string) {
	if len(itemIDs) == 0 || !s.isColoring(arrivalID) {
		return
	}
	snap := s.Snapshot()
	arrival, ok := snap.Arrival(arrivalID)
	if !ok {
		return
	}
	items := make([]model.Item, 0, len(itemIDs))
	for _, id := range itemIDs {
		if it, ok := snap.Item(id); ok {
			items = append(items, it)
		}
	}
	part := views.PartitionGUIDs([]views.Target{{VehicleID: arrival.VehicleID, ArrivalID: arrival.ID}}, items, snap.Ledger)
	for _, g := range views.Groups {
		if err := s.painter.PaintGroup(ctx, part.Groups[g], g); err != nil {
			s.viewerFailed("repaint", err)
			return
		}
	}
}

// Click applies a row click to the arrival's range selection over the rows
// visible under filter and returns the selected item ids.
func (s *Session) Click(ctx context.Context, arrivalID, itemID string, shift bool, filter model.ConfirmationStatus) ([]string, error) {
	arrival, err := s.arrivalFor(ctx, s.Snapshot(), arrivalID)
	if err != nil {
		return nil, err
	}
	snap := s.Snapshot()
	visible := views.IDs(snap.Rows(arrival, filter))
	var selected []string
	s.withSelector(arrivalID, func(sel *views.RangeSelector) {
		selected = sel.Click(visible, itemID, shift)
	})
	s.selectInViewer(ctx, snap, selected)
	return selected, nil
}

// selectInViewer makes the viewer selection the objects of itemIDs. Items
// without a GUID have no object and are left out.
func (s *Session) selectInViewer(ctx context.Context, snap *Snapshot, itemIDs []string) {
	guids := make([]string, 0, len(itemIDs))
	for _, id := range itemIDs {
		if it, ok := snap.Item(id); ok && it.ObjectGUID() != "" {
			guids = append(guids, it.ObjectGUID())
		}
	}
	if err := s.deps.Viewer.SetSelection(ctx, guids); err != nil {
		s.viewerFailed("set_selection", err)
	}
}

// Selection returns the selected item ids of the arrival that are visible
// under filter.
func (s *Session) Selection(arrivalID string, filter model.ConfirmationStatus) []string {
	arrival, ok := s.Snapshot().Arrival(arrivalID)
	if !ok {
		return nil
	}
	visible := views.IDs(s.Snapshot().Rows(arrival, filter))
	var selected []string
	s.withSelector(arrivalID, func(sel *views.RangeSelector) {
		selected = sel.Selected(visible)
	})
	return selected
}

func (s *Session) withSelector(arrivalID string, fn func(sel *views.RangeSelector)) {
	s.selMu.Lock()
	defer s.selMu.Unlock()
	sel, ok := s.selectors[arrivalID]
	if !ok {
		sel = views.NewRangeSelector()
		s.selectors[arrivalID] = sel
	}
	fn(sel)
}

// StartModelPick polls the viewer selection in the background and adds every
// newly selected object to the arrival until StopModelPick.
func (s *Session) StartModelPick(ctx context.Context, arrivalID, actor string) error {
	if _, err := s.openArrival(ctx, s.Snapshot(), arrivalID); err != nil {
		return err
	}

	s.pickMu.Lock()
	defer s.pickMu.Unlock()
	if s.pickCancel != nil {
		return ErrModelPickActive
	}

	interval := s.deps.PollInterval
	if interval <= 0 {
		interval = defaultPollInterval
	}
	pickCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	poller := viewer.NewSelectionPoller(s.deps.Viewer, interval, func(ctx context.Context, sel []viewer.Selection) error {
		res, err := s.AddFromSelection(ctx, arrivalID, sel, actor)
		if err != nil {
			return err
		}
		for _, skip := range res.Skipped {
			s.log.Warn("model object not added", "guid", skip.ItemID, "reason", skip.Reason)
		}
		return nil
	}, s.log.With("arrival_id", arrivalID))

	s.pickCancel = cancel
	s.pickTarget = arrivalID
	go poller.Run(pickCtx)
	s.log.Info("model pick started", "arrival_id", arrivalID, "actor", actor)
	return nil
}

// StopModelPick stops a running model pick and reports whether one ran.
func (s *Session) StopModelPick() bool {
	s.pickMu.Lock()
	defer s.pickMu.Unlock()
	if s.pickCancel == nil {
		return false
	}
	s.pickCancel()
	s.pickCancel = nil
	s.log.Info("model pick stopped", "arrival_id", s.pickTarget)
	s.pickTarget = ""
	return true
}

// ModelPickTarget returns the arrival of the running model pick, if any.
func (s *Session) ModelPickTarget() (string, bool) {
	s.pickMu.Lock()
	defer s.pickMu.Unlock()
	return s.pickTarget, s.pickCancel != nil
}

// Close stops background work of the session.
func (s *Session) Close() {
	s.StopModelPick()
}

func contains(ids []string, id string) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}
