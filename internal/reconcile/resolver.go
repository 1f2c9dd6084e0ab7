package reconcile

import (
	"context"
	"fmt"
	"strings"

	"site-delivery-backend/internal/model"
)

// Report is a new unassigned-item report.
type Report struct {
	ItemID       *string `json:"item_id"`
	AssemblyMark string  `json:"assembly_mark"`
	Location     string  `json:"location"`
	Notes        string  `json:"notes"`
}

// ReportUnassigned files a report of a piece found on site without a vehicle
// link. It does not touch the ledger.
func (s *Session) ReportUnassigned(ctx context.Context, r Report, actor string) (*model.UnassignedArrival, error) {
	mark := strings.TrimSpace(r.AssemblyMark)
	if mark == "" && r.ItemID == nil {
		return nil, fmt.Errorf("%w: assembly mark or item is required", ErrInvalidInput)
	}
	if r.ItemID != nil {
		item, err := s.deps.Store.GetItem(ctx, s.projectID, *r.ItemID)
		if err != nil {
			return nil, err
		}
		if mark == "" {
			mark = item.AssemblyMark
		}
	}
	report := &model.UnassignedArrival{
		ProjectID:    s.projectID,
		ItemID:       r.ItemID,
		AssemblyMark: mark,
		Location:     strings.TrimSpace(r.Location),
		Notes:        strings.TrimSpace(r.Notes),
		ReportedBy:   actor,
		ReportedAt:   s.now(),
	}
	if err := s.deps.Store.CreateUnassigned(ctx, report); err != nil {
		return nil, err
	}
	return report, nil
}

// ListUnassigned returns the project's reports, open ones first.
func (s *Session) ListUnassigned(ctx context.Context) ([]model.UnassignedArrival, error) {
	return s.deps.Store.ListUnassigned(ctx, s.projectID)
}

// MatchUnassigned returns the scheduled items a report may refer to: the
// linked item, or else every scheduled item with the reported mark.
func (s *Session) MatchUnassigned(ctx context.Context, reportID string) ([]model.Item, error) {
	report, err := s.deps.Store.GetUnassigned(ctx, s.projectID, reportID)
	if err != nil {
		return nil, err
	}
	var candidates []model.Item
	if report.ItemID != nil {
		item, err := s.deps.Store.GetItem(ctx, s.projectID, *report.ItemID)
		if err != nil {
			return nil, err
		}
		candidates = []model.Item{*item}
	} else {
		candidates, err = s.deps.Store.FindItemsByMark(ctx, s.projectID, report.AssemblyMark)
		if err != nil {
			return nil, err
		}
	}

	out := candidates[:0]
	for _, it := range candidates {
		if it.VehicleID != nil {
			out = append(out, it)
		}
	}
	return out, nil
}

// ResolveUnassigned confirms itemID on the latest arrival of its vehicle,
// opening one on the item's scheduled date if the vehicle has not arrived,
// and marks the report resolved. The confirmation note is built from the
// report.
func (s *Session) ResolveUnassigned(ctx context.Context, reportID, itemID, actor string) (*model.ArrivedVehicle, error) {
	var arrival *model.ArrivedVehicle
	err := s.mutate(ctx, func(snap *Snapshot) error {
		report, err := s.deps.Store.GetUnassigned(ctx, s.projectID, reportID)
		if err != nil {
			return err
		}
		if report.Resolved {
			return ErrReportResolved
		}
		item, err := s.deps.Store.GetItem(ctx, s.projectID, itemID)
		if err != nil {
			return err
		}
		if item.VehicleID == nil {
			return ErrItemNotScheduled
		}

		arrival, err = s.deps.Store.LatestArrival(ctx, s.projectID, *item.VehicleID)
		if err != nil {
			return err
		}
		if arrival == nil {
			arrival, _, err = s.findOrCreateArrival(ctx, snap, *item.VehicleID, item.ScheduledDate)
			if err != nil {
				return err
			}
		}
		if arrival.IsConfirmed {
			return ErrArrivalConfirmed
		}

		status := model.StatusConfirmed
		note := resolutionNote(report)
		if err := s.write(ctx, snap, *arrival, item.ID, change{status: &status, note: &note, actor: actor}); err != nil {
			return err
		}
		n, err := s.deps.Store.ResolveUnassigned(ctx, s.projectID, reportID, item.ID, actor, s.now())
		if err != nil {
			return err
		}
		if n == 0 {
			return ErrReportResolved
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.repaint(ctx, arrival.ID, itemID)
	return arrival, nil
}

func resolutionNote(r *model.UnassignedArrival) string {
	parts := []string{"Found unassigned on site"}
	if r.Location != "" {
		parts = append(parts, "location: "+r.Location)
	}
	if r.Notes != "" {
		parts = append(parts, r.Notes)
	}
	return strings.Join(parts, "; ")
}
