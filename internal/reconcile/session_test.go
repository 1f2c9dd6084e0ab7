package reconcile

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"site-delivery-backend/config"
	"site-delivery-backend/internal/audit"
	"site-delivery-backend/internal/blob"
	"site-delivery-backend/internal/dbtest"
	"site-delivery-backend/internal/logger"
	"site-delivery-backend/internal/metrics"
	"site-delivery-backend/internal/model"
	"site-delivery-backend/internal/notification"
	"site-delivery-backend/internal/store"
	"site-delivery-backend/internal/viewer"
	"site-delivery-backend/internal/views"
)

var testNow = time.Date(2026, 10, 17, 9, 30, 0, 0, time.UTC)

var testPalette = views.PaletteFromConfig(config.DefaultPalette())

type paintCall struct {
	guids []string
	color viewer.Color
}

type fakeViewer struct {
	viewer.Nop

	mu        sync.Mutex
	calls     []paintCall
	objects   map[int64]viewer.ObjectProperties
	selection []viewer.Selection
	selected  [][]string
	fail      error
}

func (v *fakeViewer) GetSelection(context.Context) ([]viewer.Selection, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.selection, v.fail
}

func (v *fakeViewer) ConvertToObjectIDs(_ context.Context, _ string, runtimeIDs []int64) ([]string, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.fail != nil {
		return nil, v.fail
	}
	guids := make([]string, len(runtimeIDs))
	for i, id := range runtimeIDs {
		guids[i] = v.objects[id].GUID
	}
	return guids, nil
}

func (v *fakeViewer) GetObjectProperties(_ context.Context, _ string, runtimeIDs []int64) ([]viewer.ObjectProperties, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.fail != nil {
		return nil, v.fail
	}
	props := make([]viewer.ObjectProperties, len(runtimeIDs))
	for i, id := range runtimeIDs {
		props[i] = v.objects[id]
	}
	return props, nil
}

func (v *fakeViewer) SetSelection(_ context.Context, guids []string) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.fail != nil {
		return v.fail
	}
	v.selected = append(v.selected, append([]string{}, guids...))
	return nil
}

// selections returns every selection pushed to the viewer, in call order.
func (v *fakeViewer) selections() [][]string {
	v.mu.Lock()
	defer v.mu.Unlock()
	return append([][]string(nil), v.selected...)
}

func (v *fakeViewer) SetObjectState(_ context.Context, guids []string, color viewer.Color) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.fail != nil {
		return v.fail
	}
	v.calls = append(v.calls, paintCall{guids: append([]string(nil), guids...), color: color})
	return nil
}

func (v *fakeViewer) reset() {
	v.mu.Lock()
	v.calls = nil
	v.mu.Unlock()
}

func (v *fakeViewer) recorded() []paintCall {
	v.mu.Lock()
	defer v.mu.Unlock()
	return append([]paintCall(nil), v.calls...)
}

// painted returns every GUID painted with color, in call order.
func (v *fakeViewer) painted(color viewer.Color) []string {
	var out []string
	for _, c := range v.recorded() {
		if c.color == color {
			out = append(out, c.guids...)
		}
	}
	return out
}

type fakeNotifier struct {
	mu     sync.Mutex
	alerts []notification.Alert
}

func (n *fakeNotifier) Dispatch(alert notification.Alert) {
	n.mu.Lock()
	n.alerts = append(n.alerts, alert)
	n.mu.Unlock()
}

type fixture struct {
	session  *Session
	store    store.Store
	viewer   *fakeViewer
	notifier *fakeNotifier
	metrics  *metrics.Metrics
	blobs    *blob.Memory

	mu      sync.Mutex
	history []model.ItemHistory

	v1, v2 model.Vehicle
	// items by GUID, as imported
	items map[string]model.Item
}

// newFixture imports two vehicles: V1 with items A (g1), A (g2) and B (g3),
// and V2 with item C (g4).
func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()

	st := store.NewGormStore(dbtest.New(t))
	_, err := st.UpsertSchedule(ctx, "p1", []store.ScheduleLine{
		{VehicleCode: "V1", ScheduledDate: "2026-10-15", Factory: "North", AssemblyMark: "A", GUID: "g1", Weight: decimal.NewFromInt(2)},
		{VehicleCode: "V1", ScheduledDate: "2026-10-15", Factory: "North", AssemblyMark: "A", GUID: "g2", Weight: decimal.NewFromInt(2)},
		{VehicleCode: "V1", ScheduledDate: "2026-10-15", Factory: "North", AssemblyMark: "B", GUID: "g3", Weight: decimal.NewFromInt(3)},
		{VehicleCode: "V2", ScheduledDate: "2026-10-16", Factory: "South", AssemblyMark: "C", GUID: "g4", Weight: decimal.NewFromInt(5)},
	})
	require.NoError(t, err)

	namer, err := blob.NewNamer(1)
	require.NoError(t, err)

	f := &fixture{
		store:    st,
		viewer:   &fakeViewer{objects: make(map[int64]viewer.ObjectProperties)},
		notifier: &fakeNotifier{},
		metrics:  metrics.NewMetrics("test", prometheus.NewRegistry()),
		blobs:    blob.NewMemory("https://cdn.example.com/photos"),
		items:    make(map[string]model.Item),
	}
	f.session = NewSession("p1", Deps{
		Store:        st,
		Audit:        audit.RecorderFunc(f.record),
		Blobs:        f.blobs,
		Namer:        namer,
		Viewer:       f.viewer,
		Notifier:     f.notifier,
		Palette:      testPalette,
		BatchSize:    2,
		PollInterval: time.Hour,
		Logger:       logger.NewNop(),
		Metrics:      f.metrics,
		Clock:        func() time.Time { return testNow },
	})
	require.NoError(t, f.session.Reload(ctx))

	snap := f.session.Snapshot()
	for _, v := range snap.Vehicles {
		switch v.Code {
		case "V1":
			f.v1 = v
		case "V2":
			f.v2 = v
		}
	}
	require.NotEmpty(t, f.v1.ID)
	require.NotEmpty(t, f.v2.ID)
	for _, it := range snap.Items {
		f.items[it.ObjectGUID()] = it
	}
	require.Len(t, f.items, 4)
	return f
}

func (f *fixture) record(entry model.ItemHistory) {
	f.mu.Lock()
	f.history = append(f.history, entry)
	f.mu.Unlock()
}

func (f *fixture) histories() []model.ItemHistory {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]model.ItemHistory(nil), f.history...)
}

func (f *fixture) id(guid string) string {
	return f.items[guid].ID
}

// item reads the item from the store.
func (f *fixture) item(t *testing.T, guid string) model.Item {
	t.Helper()
	found, err := f.store.FindItemsByGUID(context.Background(), "p1", []string{guid})
	require.NoError(t, err)
	require.Len(t, found, 1)
	return found[0]
}

func (f *fixture) start(t *testing.T, vehicleID, date string) model.ArrivedVehicle {
	t.Helper()
	a, _, err := f.session.StartArrival(context.Background(), vehicleID, date, "anna")
	require.NoError(t, err)
	return *a
}

// rowsFor reads the confirmations of one arrival from the store.
func (f *fixture) rowsFor(t *testing.T, arrivalID string) []model.Confirmation {
	t.Helper()
	all, err := f.store.ListConfirmations(context.Background(), "p1")
	require.NoError(t, err)
	var out []model.Confirmation
	for _, c := range all {
		if c.ArrivedVehicleID == arrivalID {
			out = append(out, c)
		}
	}
	return out
}

func findRow(rows []model.Confirmation, itemID string) *model.Confirmation {
	for i := range rows {
		if rows[i].ItemID == itemID {
			return &rows[i]
		}
	}
	return nil
}

func TestSession_ThreeItemArrival(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	arrival, created, err := f.session.StartArrival(ctx, f.v1.ID, "2026-10-17", "anna")
	require.NoError(t, err)
	assert.True(t, created)
	rows := f.rowsFor(t, arrival.ID)
	require.Len(t, rows, 3)
	for _, r := range rows {
		assert.Equal(t, model.StatusPending, r.Status)
	}

	again, created, err := f.session.StartArrival(ctx, f.v1.ID, "2026-10-17", "ben")
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, arrival.ID, again.ID)
	assert.Len(t, f.rowsFor(t, arrival.ID), 3)

	require.NoError(t, f.session.SetStatus(ctx, arrival.ID, f.id("g1"), model.StatusConfirmed, "anna"))
	require.NoError(t, f.session.SetStatus(ctx, arrival.ID, f.id("g2"), model.StatusConfirmed, "anna"))
	require.NoError(t, f.session.SetStatus(ctx, arrival.ID, f.id("g3"), model.StatusMissing, "anna"))

	counts := f.session.Ledger().Counts(arrival.ID)
	assert.Equal(t, 2, counts.Confirmed)
	assert.Equal(t, 1, counts.Missing)
	assert.Equal(t, 0, counts.Pending)

	done, err := f.session.CompleteArrival(ctx, arrival.ID, "lead")
	require.NoError(t, err)
	assert.True(t, done.Completed)
	assert.EqualValues(t, 2, done.ItemsDelivered)

	got, err := f.session.Arrival(arrival.ID)
	require.NoError(t, err)
	assert.True(t, got.IsConfirmed)
	assert.Equal(t, "lead", got.ConfirmedBy)

	for guid, want := range map[string]model.ItemStatus{
		"g1": model.ItemDelivered,
		"g2": model.ItemDelivered,
		"g3": model.ItemPlanned,
		"g4": model.ItemPlanned,
	} {
		assert.Equal(t, want, f.item(t, guid).Status, guid)
	}
	v1, ok := f.session.Snapshot().Vehicle(f.v1.ID)
	require.True(t, ok)
	assert.Equal(t, model.VehicleCompleted, v1.Status)

	require.Len(t, f.notifier.alerts, 1)
	assert.Equal(t, notification.Alert{
		ProjectID:   "p1",
		ArrivalID:   arrival.ID,
		VehicleCode: "V1",
		ArrivalDate: "2026-10-17",
		Missing:     1,
	}, f.notifier.alerts[0])

	hist := f.histories()
	require.Len(t, hist, 1)
	assert.Equal(t, model.ActionStatusChange, hist[0].Action)
	assert.Equal(t, f.id("g3"), hist[0].ItemID)
	assert.Equal(t, "pending", hist[0].OldValue)
	assert.Equal(t, "missing", hist[0].NewValue)
	assert.Equal(t, "anna", hist[0].Actor)

	assert.ErrorIs(t, f.session.SetStatus(ctx, arrival.ID, f.id("g3"), model.StatusConfirmed, "anna"), ErrArrivalConfirmed)
	assert.ErrorIs(t, f.session.UpdateArrival(ctx, arrival.ID, Details{Location: "Gate 2"}), ErrArrivalConfirmed)

	done, err = f.session.CompleteArrival(ctx, arrival.ID, "lead")
	require.NoError(t, err)
	assert.False(t, done.Completed)
	assert.Len(t, f.notifier.alerts, 1)
}

func TestSession_SetStatusIsIdempotentWithStaleLedger(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	itemID := f.id("g1")

	// Created behind the session's back, so its ledger knows nothing of it.
	arrival, _, err := f.store.FindOrCreateArrival(ctx, &model.ArrivedVehicle{
		ProjectID: "p1", VehicleID: f.v1.ID, ArrivalDate: "2026-10-17",
	}, []string{itemID})
	require.NoError(t, err)
	_, known := f.session.Snapshot().Arrival(arrival.ID)
	require.False(t, known)

	for i := 0; i < 2; i++ {
		require.NoError(t, f.session.SetStatus(ctx, arrival.ID, itemID, model.StatusConfirmed, "anna"))
	}
	rows := f.rowsFor(t, arrival.ID)
	require.Len(t, rows, 1)
	assert.Equal(t, model.StatusConfirmed, rows[0].Status)
	assert.Equal(t, "anna", rows[0].ConfirmedBy)
	assert.NotNil(t, rows[0].ConfirmedAt)

	// The ledger now believes in a row another writer deleted.
	_, err = f.store.DeleteConfirmation(ctx, "p1", rows[0].ID)
	require.NoError(t, err)
	require.NoError(t, f.session.SetStatus(ctx, arrival.ID, itemID, model.StatusMissing, "ben"))

	rows = f.rowsFor(t, arrival.ID)
	require.Len(t, rows, 1)
	assert.Equal(t, model.StatusMissing, rows[0].Status)
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.StaleFallbacks))
	assert.Equal(t, 2.0, testutil.ToFloat64(f.metrics.StatusWrites.WithLabelValues("confirmed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.StatusWrites.WithLabelValues("missing")))

	require.NoError(t, f.session.SetStatus(ctx, arrival.ID, itemID, model.StatusPending, "ben"))
	rows = f.rowsFor(t, arrival.ID)
	require.Len(t, rows, 1)
	assert.Equal(t, model.StatusPending, rows[0].Status)
	assert.Empty(t, rows[0].ConfirmedBy)
	assert.Nil(t, rows[0].ConfirmedAt)
}

func TestSession_SetNote(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	arrival, _, err := f.store.FindOrCreateArrival(ctx, &model.ArrivedVehicle{
		ProjectID: "p1", VehicleID: f.v1.ID, ArrivalDate: "2026-10-17",
	}, nil)
	require.NoError(t, err)

	require.NoError(t, f.session.SetNote(ctx, arrival.ID, f.id("g2"), "bent flange", "anna"))
	require.NoError(t, f.session.SetStatus(ctx, arrival.ID, f.id("g2"), model.StatusConfirmed, "anna"))
	require.NoError(t, f.session.SetNote(ctx, arrival.ID, f.id("g2"), "bent flange, photographed", "anna"))

	rows := f.rowsFor(t, arrival.ID)
	require.Len(t, rows, 1)
	assert.Equal(t, model.StatusConfirmed, rows[0].Status)
	assert.Equal(t, "bent flange, photographed", rows[0].Note)
	assert.Equal(t, "bent flange, photographed", f.session.Ledger().Note(arrival.ID, f.id("g2")))
}

func TestSession_RejectsUnwritableStatus(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	arrival := f.start(t, f.v1.ID, "")
	assert.Equal(t, "2026-10-17", arrival.ArrivalDate)

	assert.ErrorIs(t, f.session.SetStatus(ctx, arrival.ID, f.id("g1"), model.StatusAdded, "anna"), ErrInvalidStatus)
	_, err := f.session.SetStatusBulk(ctx, arrival.ID, []string{f.id("g1")}, model.StatusPending, "anna")
	assert.ErrorIs(t, err, ErrInvalidStatus)
	_, err = f.session.ApplyStatus(ctx, []string{f.id("g1")}, "lost", "anna")
	assert.ErrorIs(t, err, ErrInvalidStatus)
	assert.True(t, IsInvalid(err))

	err = f.session.SetStatus(ctx, "no-such-arrival", f.id("g1"), model.StatusConfirmed, "anna")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSession_UpdateArrival(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	arrival := f.start(t, f.v1.ID, "2026-10-17")

	assert.ErrorIs(t, f.session.UpdateArrival(ctx, arrival.ID, Details{ArrivalTime: "25:99"}), ErrInvalidTime)

	require.NoError(t, f.session.UpdateArrival(ctx, arrival.ID, Details{
		ArrivalTime: "07:45",
		UnloadStart: "08:00",
		UnloadEnd:   "09:10",
		Location:    " Gate 2 ",
		Resources:   model.UnloadResources{Cranes: 1, Workers: 4, CraneName: "LTM 1100"},
	}))
	got, err := f.session.Arrival(arrival.ID)
	require.NoError(t, err)
	assert.Equal(t, "07:45", got.ArrivalTime)
	assert.Equal(t, "Gate 2", got.Location)
	assert.Equal(t, 1, got.Resources.Cranes)
	assert.Equal(t, "LTM 1100", got.Resources.CraneName)

	assert.ErrorIs(t, f.session.UpdateArrival(ctx, "missing-id", Details{}), ErrNotFound)
}

func TestSession_SetStatusBulk(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	arrival := f.start(t, f.v1.ID, "2026-10-17")
	g1, g2, g3 := f.id("g1"), f.id("g2"), f.id("g3")

	require.NoError(t, f.session.SetStatus(ctx, arrival.ID, g3, model.StatusMissing, "anna"))

	res, err := f.session.SetStatusBulk(ctx, arrival.ID, []string{g1, g2, g3, g1}, model.StatusConfirmed, "anna")
	require.NoError(t, err)
	assert.EqualValues(t, 2, res.Updated)
	assert.EqualValues(t, 0, res.Inserted)
	assert.Equal(t, []string{g3}, res.Skipped)

	l := f.session.Ledger()
	assert.Equal(t, model.StatusConfirmed, l.Status(arrival.ID, g1))
	assert.Equal(t, model.StatusConfirmed, l.Status(arrival.ID, g2))
	assert.Equal(t, model.StatusMissing, l.Status(arrival.ID, g3))
}

func TestSession_SetStatusBulk_StaleRows(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	arrival := f.start(t, f.v1.ID, "2026-10-17")
	g1, g2 := f.id("g1"), f.id("g2")

	gone := findRow(f.rowsFor(t, arrival.ID), g1)
	require.NotNil(t, gone)
	_, err := f.store.DeleteConfirmation(ctx, "p1", gone.ID)
	require.NoError(t, err)

	res, err := f.session.SetStatusBulk(ctx, arrival.ID, []string{g1, g2}, model.StatusMissing, "ben")
	require.NoError(t, err)
	assert.EqualValues(t, 1, res.Updated)
	assert.EqualValues(t, 1, res.Inserted)
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.StaleFallbacks))

	rows := f.rowsFor(t, arrival.ID)
	require.Len(t, rows, 3)
	assert.Equal(t, model.StatusMissing, findRow(rows, g1).Status)
	assert.Equal(t, model.StatusMissing, findRow(rows, g2).Status)
	assert.Len(t, f.histories(), 2)
}

func TestSession_ConfirmAllPendingAndSelected(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	arrival := f.start(t, f.v1.ID, "2026-10-17")
	visible := views.IDs(f.session.Snapshot().Rows(arrival, model.StatusPending))
	require.Len(t, visible, 3)

	sel, err := f.session.Click(ctx, arrival.ID, visible[0], false, model.StatusPending)
	require.NoError(t, err)
	assert.Equal(t, visible[:1], sel)
	sel, err = f.session.Click(ctx, arrival.ID, visible[1], true, model.StatusPending)
	require.NoError(t, err)
	assert.Equal(t, visible[:2], sel)

	res, err := f.session.ConfirmSelected(ctx, arrival.ID, model.StatusConfirmed, "anna")
	require.NoError(t, err)
	assert.EqualValues(t, 2, res.Updated)
	assert.Empty(t, f.session.Selection(arrival.ID, model.StatusPending))
	assert.Equal(t, visible[2:], views.IDs(f.session.Snapshot().Rows(arrival, model.StatusPending)))

	res, err = f.session.ConfirmAllPending(ctx, arrival.ID, model.StatusMissing, "anna")
	require.NoError(t, err)
	assert.EqualValues(t, 1, res.Updated)

	counts := views.Tally(f.session.Snapshot().Rows(arrival, ""))
	assert.Equal(t, 2, counts.Confirmed)
	assert.Equal(t, 1, counts.Missing)
	assert.Equal(t, 0, counts.Pending)
}

func TestSession_ApplyStatusOpensArrival(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	g4 := f.id("g4")

	loose := &model.Item{ProjectID: "p1", AssemblyMark: "Z"}
	require.NoError(t, f.store.CreateItem(ctx, loose))

	res, err := f.session.ApplyStatus(ctx, []string{g4, loose.ID}, model.StatusMissing, "ben")
	require.NoError(t, err)
	require.Len(t, res.Created, 1)
	assert.Equal(t, []string{g4}, res.Applied)
	require.Len(t, res.Skipped, 1)
	assert.Equal(t, loose.ID, res.Skipped[0].ItemID)

	arrival, err := f.session.Arrival(res.Created[0])
	require.NoError(t, err)
	assert.Equal(t, f.v2.ID, arrival.VehicleID)
	assert.Equal(t, "2026-10-17", arrival.ArrivalDate)
	rows := f.rowsFor(t, arrival.ID)
	require.Len(t, rows, 1)
	assert.Equal(t, model.StatusMissing, rows[0].Status)

	hist := f.histories()
	require.Len(t, hist, 1)
	assert.Equal(t, g4, hist[0].ItemID)

	res, err = f.session.ApplyStatus(ctx, []string{g4}, model.StatusConfirmed, "ben")
	require.NoError(t, err)
	assert.Empty(t, res.Created)
	assert.Equal(t, model.StatusConfirmed, f.session.Ledger().Status(arrival.ID, g4))
	assert.Len(t, f.rowsFor(t, arrival.ID), 1)
}

func TestSession_ReloadFailureIsReturned(t *testing.T) {
	f := newFixture(t)
	sqlDB, err := f.store.DB().DB()
	require.NoError(t, err)
	require.NoError(t, sqlDB.Close())

	err = f.session.Reload(context.Background())
	assert.Error(t, err)
	assert.False(t, errors.Is(err, ErrNotFound))
}

func TestSession_CreateUnplannedVehicleAndImport(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	v, err := f.session.CreateUnplannedVehicle(ctx, " x-9 ", "", "Yard")
	require.NoError(t, err)
	assert.Equal(t, "X-9", v.Code)
	assert.True(t, v.Unplanned)
	assert.Equal(t, "2026-10-17", v.ScheduledDate)
	_, ok := f.session.Snapshot().Vehicle(v.ID)
	assert.True(t, ok)

	_, err = f.session.CreateUnplannedVehicle(ctx, "", "", "")
	assert.ErrorIs(t, err, ErrInvalidInput)

	res, err := f.session.ImportSchedule(ctx, []store.ScheduleLine{
		{VehicleCode: "V3", ScheduledDate: "2026-10-20", AssemblyMark: "D", GUID: "g5"},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, res.ItemsUpserted)
	assert.Len(t, f.session.Snapshot().Items, 5)
}

func TestRegistry_ReusesSessions(t *testing.T) {
	f := newFixture(t)
	reg := NewRegistry(Deps{Store: f.store, Clock: func() time.Time { return testNow }})
	defer reg.Close()

	a, err := reg.Session(context.Background(), "p1")
	require.NoError(t, err)
	b, err := reg.Session(context.Background(), "p1")
	require.NoError(t, err)
	assert.Same(t, a, b)
	assert.Len(t, a.Snapshot().Items, 4)

	other, err := reg.Session(context.Background(), "p2")
	require.NoError(t, err)
	assert.NotSame(t, a, other)
	assert.Empty(t, other.Snapshot().Vehicles)
}
