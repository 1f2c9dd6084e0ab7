package reconcile

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"site-delivery-backend/internal/model"
	"site-delivery-backend/internal/viewer"
	"site-delivery-backend/internal/views"
)

func TestSession_ReassignRoundTrip(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	src := f.start(t, f.v1.ID, "2026-10-17")
	target := f.start(t, f.v2.ID, "2026-10-17")
	moved := f.id("g2")

	require.NoError(t, f.session.Reassign(ctx, target.ID, moved, "anna"))

	item := f.item(t, "g2")
	require.NotNil(t, item.VehicleID)
	assert.Equal(t, f.v2.ID, *item.VehicleID)
	assert.Equal(t, f.v2.ScheduledDate, item.ScheduledDate)

	added := findRow(f.rowsFor(t, target.ID), moved)
	require.NotNil(t, added)
	assert.Equal(t, model.StatusAdded, added.Status)
	require.NotNil(t, added.SourceVehicleID)
	assert.Equal(t, f.v1.ID, *added.SourceVehicleID)
	require.NotNil(t, added.SourceVehicleCode)
	assert.Equal(t, "V1", *added.SourceVehicleCode)
	assert.Contains(t, added.Note, "V1")

	snap := f.session.Snapshot()
	assert.Contains(t, views.IDs(snap.Rows(target, "")), moved)
	assert.NotContains(t, views.IDs(snap.Rows(src, "")), moved)

	out := f.session.MovedOut(f.v1.ID)
	require.Len(t, out, 1)
	assert.Equal(t, moved, out[0].Item.ID)
	assert.Equal(t, target.ID, out[0].ArrivalID)
	assert.Equal(t, "V2", out[0].VehicleCode)
	assert.Equal(t, "2026-10-17", out[0].ArrivalDate)

	err := f.session.SetStatus(ctx, target.ID, moved, model.StatusConfirmed, "anna")
	assert.ErrorIs(t, err, ErrAddedRowLocked)
	assert.True(t, IsPrecondition(err))

	require.NoError(t, f.session.UndoReassign(ctx, added.ID, "anna"))

	item = f.item(t, "g2")
	require.NotNil(t, item.VehicleID)
	assert.Equal(t, f.v1.ID, *item.VehicleID)
	assert.Equal(t, f.v1.ScheduledDate, item.ScheduledDate)
	assert.Nil(t, findRow(f.rowsFor(t, target.ID), moved))
	assert.Empty(t, f.session.MovedOut(f.v1.ID))
	assert.Contains(t, views.IDs(f.session.Snapshot().Rows(src, "")), moved)

	hist := f.histories()
	require.Len(t, hist, 2)
	assert.Equal(t, model.ActionVehicleChange, hist[0].Action)
	assert.Equal(t, "V1", hist[0].OldValue)
	assert.Equal(t, "V2", hist[0].NewValue)
	assert.Equal(t, model.ActionReassignUndo, hist[1].Action)
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.Reassignments.WithLabelValues("vehicle")))
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.Reassignments.WithLabelValues("undo")))

	assert.ErrorIs(t, f.session.UndoReassign(ctx, added.ID, "anna"), ErrNotFound)
	pending := findRow(f.rowsFor(t, src.ID), moved)
	require.NotNil(t, pending)
	assert.ErrorIs(t, f.session.UndoReassign(ctx, pending.ID, "anna"), ErrNotReassigned)
}

func TestSession_ReassignPreconditions(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	src := f.start(t, f.v1.ID, "2026-10-17")
	target := f.start(t, f.v2.ID, "2026-10-17")

	require.NoError(t, f.session.SetStatus(ctx, src.ID, f.id("g1"), model.StatusConfirmed, "anna"))
	err := f.session.Reassign(ctx, target.ID, f.id("g1"), "anna")
	assert.ErrorIs(t, err, ErrItemConfirmedElsewhere)
	item := f.item(t, "g1")
	assert.Equal(t, f.v1.ID, *item.VehicleID)

	err = f.session.Reassign(ctx, src.ID, f.id("g2"), "anna")
	assert.ErrorIs(t, err, ErrItemOnVehicle)
	assert.True(t, IsPrecondition(err))
	assert.Equal(t, model.StatusPending, findRow(f.rowsFor(t, src.ID), f.id("g2")).Status)

	loose := &model.Item{ProjectID: "p1", AssemblyMark: "Z"}
	require.NoError(t, f.store.CreateItem(ctx, loose))
	assert.ErrorIs(t, f.session.Reassign(ctx, target.ID, loose.ID, "anna"), ErrItemNotScheduled)

	_, err = f.session.CompleteArrival(ctx, target.ID, "lead")
	require.NoError(t, err)
	assert.ErrorIs(t, f.session.Reassign(ctx, target.ID, f.id("g3"), "anna"), ErrArrivalConfirmed)
	assert.Empty(t, f.session.MovedOut(f.v1.ID))
}

func TestSession_StaleWriterCannotOverwriteAddedRow(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.start(t, f.v1.ID, "2026-10-17")
	target := f.start(t, f.v2.ID, "2026-10-17")
	moved := f.id("g2")

	other := NewSession("p1", Deps{Store: f.store, Clock: func() time.Time { return testNow }})
	require.NoError(t, other.Reload(ctx))
	_, known := other.Ledger().Row(target.ID, moved)
	require.False(t, known)

	require.NoError(t, f.session.Reassign(ctx, target.ID, moved, "anna"))

	err := other.SetStatus(ctx, target.ID, moved, model.StatusConfirmed, "ben")
	assert.ErrorIs(t, err, ErrAddedRowLocked)

	row := findRow(f.rowsFor(t, target.ID), moved)
	require.NotNil(t, row)
	assert.Equal(t, model.StatusAdded, row.Status)
	require.NotNil(t, row.SourceVehicleID)
	assert.Equal(t, f.v1.ID, *row.SourceVehicleID)
	assert.Equal(t, "anna", row.ConfirmedBy)

	// Notes still reach the added row.
	require.NoError(t, other.SetNote(ctx, target.ID, moved, "scratched", "ben"))
	row = findRow(f.rowsFor(t, target.ID), moved)
	require.NotNil(t, row)
	assert.Equal(t, model.StatusAdded, row.Status)
	assert.Equal(t, "scratched", row.Note)
}

func TestSession_UndoOnlyLatestMove(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	v3, err := f.session.CreateUnplannedVehicle(ctx, "V3", "2026-10-17", "Yard")
	require.NoError(t, err)
	a2 := f.start(t, f.v2.ID, "2026-10-17")
	a3 := f.start(t, v3.ID, "2026-10-17")
	moved := f.id("g2")

	require.NoError(t, f.session.Reassign(ctx, a2.ID, moved, "anna"))
	first := findRow(f.rowsFor(t, a2.ID), moved)
	require.NotNil(t, first)
	require.NoError(t, f.session.Reassign(ctx, a3.ID, moved, "anna"))
	second := findRow(f.rowsFor(t, a3.ID), moved)
	require.NotNil(t, second)
	require.NotNil(t, second.SourceVehicleID)
	assert.Equal(t, f.v2.ID, *second.SourceVehicleID)

	err = f.session.UndoReassign(ctx, first.ID, "anna")
	assert.ErrorIs(t, err, ErrItemMovedOn)
	assert.True(t, IsPrecondition(err))
	assert.Equal(t, v3.ID, *f.item(t, "g2").VehicleID)
	assert.NotNil(t, findRow(f.rowsFor(t, a2.ID), moved))

	require.NoError(t, f.session.UndoReassign(ctx, second.ID, "anna"))
	assert.Equal(t, f.v2.ID, *f.item(t, "g2").VehicleID)
	require.NoError(t, f.session.UndoReassign(ctx, first.ID, "anna"))
	assert.Equal(t, f.v1.ID, *f.item(t, "g2").VehicleID)
	assert.Empty(t, f.session.MovedOut(f.v1.ID))
}

func TestSession_AddFromModelRoundTrip(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	target := f.start(t, f.v2.ID, "2026-10-17")

	_, err := f.session.StartColoring(ctx, target.ID)
	require.NoError(t, err)
	f.viewer.reset()

	item, err := f.session.AddFromModel(ctx, target.ID, viewer.ObjectProperties{
		GUID: "g-new", Name: "Bracket", ProductName: "Steel bracket", Weight: 12.5,
	}, "m1", "anna")
	require.NoError(t, err)
	assert.True(t, item.FromModel)
	assert.Equal(t, model.ItemDelivered, item.Status)
	assert.Equal(t, "Bracket", item.AssemblyMark)
	assert.Equal(t, "m1", item.ModelID)
	assert.Equal(t, "12.5", item.Weight.String())

	row := findRow(f.rowsFor(t, target.ID), item.ID)
	require.NotNil(t, row)
	assert.Equal(t, model.StatusAdded, row.Status)
	assert.Nil(t, row.SourceVehicleID)
	assert.Nil(t, row.SourceVehicleCode)
	assert.Equal(t, []string{"g-new"}, f.viewer.painted(testPalette.Groups[views.GroupAddedFromModel]))

	f.viewer.reset()
	require.NoError(t, f.session.UndoReassign(ctx, row.ID, "anna"))

	_, err = f.store.GetItem(ctx, "p1", item.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Nil(t, findRow(f.rowsFor(t, target.ID), item.ID))
	assert.Equal(t, []string{"g-new"}, f.viewer.painted(testPalette.Neutral))
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.Reassignments.WithLabelValues("model")))
}

func TestSession_AddedRowsKeepProvenance(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	target := f.start(t, f.v2.ID, "2026-10-17")

	// A known GUID is a reassignment, an unknown one a model discovery.
	known, err := f.session.AddFromModel(ctx, target.ID, viewer.ObjectProperties{GUID: "g1"}, "m1", "anna")
	require.NoError(t, err)
	assert.False(t, known.FromModel)
	_, err = f.session.AddFromModel(ctx, target.ID, viewer.ObjectProperties{GUID: "g-7", AssemblyMark: "P7"}, "m1", "anna")
	require.NoError(t, err)
	_, err = f.session.AddFromModel(ctx, target.ID, viewer.ObjectProperties{Name: "no guid"}, "m1", "anna")
	assert.ErrorIs(t, err, ErrInvalidInput)

	var added int
	for _, row := range f.rowsFor(t, target.ID) {
		if row.Status != model.StatusAdded {
			assert.Nil(t, row.SourceVehicleID)
			continue
		}
		added++
		item, err := f.store.GetItem(ctx, "p1", row.ItemID)
		require.NoError(t, err)
		if row.SourceVehicleID == nil {
			assert.True(t, item.FromModel)
			assert.Nil(t, row.SourceVehicleCode)
		} else {
			assert.False(t, item.FromModel)
			assert.Equal(t, f.v1.ID, *row.SourceVehicleID)
			assert.Equal(t, "V1", *row.SourceVehicleCode)
		}
	}
	assert.Equal(t, 2, added)
}

func TestSession_AddFromSelection(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	target := f.start(t, f.v2.ID, "2026-10-17")
	src := f.start(t, f.v1.ID, "2026-10-17")
	require.NoError(t, f.session.SetStatus(ctx, src.ID, f.id("g1"), model.StatusConfirmed, "anna"))

	f.viewer.objects[1] = viewer.ObjectProperties{GUID: "g3", AssemblyMark: "B"}
	f.viewer.objects[2] = viewer.ObjectProperties{GUID: "g-9", Name: "Plate"}
	f.viewer.objects[3] = viewer.ObjectProperties{GUID: "g1"}

	res, err := f.session.AddFromSelection(ctx, target.ID, []viewer.Selection{
		{ModelID: "m1", RuntimeIDs: []int64{1, 2, 3}},
		{ModelID: "m2"},
	}, "anna")
	require.NoError(t, err)
	require.Len(t, res.Added, 2)
	require.Len(t, res.Skipped, 1)
	assert.Equal(t, "g1", res.Skipped[0].ItemID)

	assert.Equal(t, f.v2.ID, *f.item(t, "g3").VehicleID)
	plate := f.item(t, "g-9")
	assert.True(t, plate.FromModel)
	assert.Equal(t, "m1", plate.ModelID)
	assert.Equal(t, f.v1.ID, *f.item(t, "g1").VehicleID)

	f.viewer.mu.Lock()
	f.viewer.fail = errors.New("bridge down")
	f.viewer.mu.Unlock()
	_, err = f.session.AddFromSelection(ctx, target.ID, []viewer.Selection{{ModelID: "m1", RuntimeIDs: []int64{2}}}, "anna")
	assert.Error(t, err)
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.ViewerFailures.WithLabelValues("convert_to_object_ids")))
}
