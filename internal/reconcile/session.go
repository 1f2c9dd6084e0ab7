// Package reconcile owns the per-project reconciliation state. Every write to
// confirmations, items or arrivals goes through a Session method, and every
// such method ends by reloading the full project snapshot from the store.
package reconcile

import (
	"context"
	"fmt"
	"sync"
	"time"

	"site-delivery-backend/internal/audit"
	"site-delivery-backend/internal/blob"
	"site-delivery-backend/internal/ledger"
	"site-delivery-backend/internal/logger"
	"site-delivery-backend/internal/metrics"
	"site-delivery-backend/internal/model"
	"site-delivery-backend/internal/notification"
	"site-delivery-backend/internal/store"
	"site-delivery-backend/internal/viewer"
	"site-delivery-backend/internal/views"
)

// Notifier receives staff alerts.
type Notifier interface {
	Dispatch(alert notification.Alert)
}

// Deps are the collaborators shared by all sessions.
type Deps struct {
	Store     store.Store
	Audit     audit.Recorder
	Blobs     blob.Storage
	Namer     *blob.Namer
	Viewer    viewer.Client
	Notifier  Notifier
	Palette   views.Palette
	BatchSize int
	// PollInterval is the model-pick selection polling period.
	PollInterval time.Duration
	Logger       logger.Logger
	Metrics      *metrics.Metrics
	Clock        func() time.Time
	// Changed, when set, runs after every write with the project id.
	Changed func(projectID string)
}

// Snapshot is an immutable copy of a project's state.
type Snapshot struct {
	Vehicles []model.Vehicle
	Items    []model.Item
	Arrivals []model.ArrivedVehicle
	Ledger   *ledger.Ledger

	vehicleByID map[string]model.Vehicle
	itemByID    map[string]model.Item
	arrivalByID map[string]model.ArrivedVehicle
}

func newSnapshot(vehicles []model.Vehicle, items []model.Item, arrivals []model.ArrivedVehicle, l *ledger.Ledger) *Snapshot {
	s := &Snapshot{
		Vehicles:    vehicles,
		Items:       items,
		Arrivals:    arrivals,
		Ledger:      l,
		vehicleByID: make(map[string]model.Vehicle, len(vehicles)),
		itemByID:    make(map[string]model.Item, len(items)),
		arrivalByID: make(map[string]model.ArrivedVehicle, len(arrivals)),
	}
	for _, v := range vehicles {
		s.vehicleByID[v.ID] = v
	}
	for _, it := range items {
		s.itemByID[it.ID] = it
	}
	for _, a := range arrivals {
		s.arrivalByID[a.ID] = a
	}
	return s
}

func (s *Snapshot) Vehicle(id string) (model.Vehicle, bool) {
	v, ok := s.vehicleByID[id]
	return v, ok
}

func (s *Snapshot) Item(id string) (model.Item, bool) {
	it, ok := s.itemByID[id]
	return it, ok
}

func (s *Snapshot) Arrival(id string) (model.ArrivedVehicle, bool) {
	a, ok := s.arrivalByID[id]
	return a, ok
}

// Rows is views.ArrivalRows over this snapshot.
func (s *Snapshot) Rows(arrival model.ArrivedVehicle, filter model.ConfirmationStatus) []views.Row {
	return views.ArrivalRows(arrival, s.Items, s.Ledger, filter)
}

// Session is the reconciliation state of one project.
type Session struct {
	projectID string
	deps      Deps
	log       logger.Logger
	painter   *views.Painter

	// mu serializes mutations; each holds it from first write to reload.
	mu sync.Mutex

	viewMu   sync.RWMutex
	snap     *Snapshot
	coloring []string

	selMu     sync.Mutex
	selectors map[string]*views.RangeSelector

	pickMu     sync.Mutex
	pickCancel context.CancelFunc
	pickTarget string
}

// NewSession creates a session. Call Reload before reading from it.
func NewSession(projectID string, deps Deps) *Session {
	if deps.Clock == nil {
		deps.Clock = time.Now
	}
	if deps.Viewer == nil {
		deps.Viewer = viewer.Nop{}
	}
	if deps.Audit == nil {
		deps.Audit = audit.RecorderFunc(func(model.ItemHistory) {})
	}
	if deps.Logger == nil {
		deps.Logger = logger.NewNop()
	}
	if deps.Metrics == nil {
		deps.Metrics = metrics.NewNop()
	}
	return &Session{
		projectID: projectID,
		deps:      deps,
		log:       deps.Logger.With("project_id", projectID),
		painter:   views.NewPainter(deps.Viewer, deps.Palette, deps.BatchSize),
		snap:      newSnapshot(nil, nil, nil, ledger.Empty()),
		selectors: make(map[string]*views.RangeSelector),
	}
}

// ProjectID returns the project the session serves.
func (s *Session) ProjectID() string {
	return s.projectID
}

// Snapshot returns the latest loaded snapshot.
func (s *Session) Snapshot() *Snapshot {
	s.viewMu.RLock()
	defer s.viewMu.RUnlock()
	return s.snap
}

// Ledger returns the latest ledger.
func (s *Session) Ledger() *ledger.Ledger {
	return s.Snapshot().Ledger
}

// Arrivals returns the latest loaded arrivals, newest first.
func (s *Session) Arrivals() []model.ArrivedVehicle {
	return s.Snapshot().Arrivals
}

// Arrival returns one arrival from the snapshot.
func (s *Session) Arrival(arrivalID string) (model.ArrivedVehicle, error) {
	a, ok := s.Snapshot().Arrival(arrivalID)
	if !ok {
		return model.ArrivedVehicle{}, fmt.Errorf("arrival %s: %w", arrivalID, ErrNotFound)
	}
	return a, nil
}

// Reload replaces the snapshot with fresh store state.
func (s *Session) Reload(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.reloadLocked(ctx)
}

func (s *Session) reloadLocked(ctx context.Context) error {
	start := time.Now()
	defer func() {
		s.deps.Metrics.LedgerReloadTime.Observe(time.Since(start).Seconds())
	}()

	st := s.deps.Store
	vehicles, err := st.ListVehicles(ctx, s.projectID)
	if err != nil {
		return err
	}
	items, err := st.ListItems(ctx, s.projectID)
	if err != nil {
		return err
	}
	arrivals, err := st.ListArrivals(ctx, s.projectID)
	if err != nil {
		return err
	}
	confirmations, err := st.ListConfirmations(ctx, s.projectID)
	if err != nil {
		return err
	}
	photos, err := st.ListPhotos(ctx, s.projectID)
	if err != nil {
		return err
	}

	snap := newSnapshot(vehicles, items, arrivals, ledger.Build(confirmations, photos))
	s.viewMu.Lock()
	s.snap = snap
	s.viewMu.Unlock()
	return nil
}

// mutate runs fn under the write lock and reloads afterwards, also when fn
// failed part way. fn's error wins over a reload error.
func (s *Session) mutate(ctx context.Context, fn func(snap *Snapshot) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	err := fn(s.Snapshot())
	if s.deps.Changed != nil {
		defer s.deps.Changed(s.projectID)
	}
	if rerr := s.reloadLocked(ctx); rerr != nil {
		if err != nil {
			s.log.Error("reload after failed write also failed", "error", rerr)
			return err
		}
		return fmt.Errorf("failed to reload ledger: %w", rerr)
	}
	return err
}

func (s *Session) now() time.Time {
	return s.deps.Clock().UTC()
}

func (s *Session) today() string {
	return s.deps.Clock().Format(model.DateLayout)
}

// viewerFailed logs and counts a failed viewer call. Viewer failures never
// fail the operation that triggered them.
func (s *Session) viewerFailed(operation string, err error) {
	s.deps.Metrics.ViewerFailures.WithLabelValues(operation).Inc()
	s.log.Warn("viewer call failed", "operation", operation, "error", err)
}

// arrivalFor returns the arrival from the snapshot, falling back to the store
// for arrivals created since the last reload.
func (s *Session) arrivalFor(ctx context.Context, snap *Snapshot, arrivalID string) (model.ArrivedVehicle, error) {
	if a, ok := snap.Arrival(arrivalID); ok {
		return a, nil
	}
	a, err := s.deps.Store.GetArrival(ctx, s.projectID, arrivalID)
	if err != nil {
		return model.ArrivedVehicle{}, err
	}
	return *a, nil
}

func (s *Session) vehicleFor(ctx context.Context, snap *Snapshot, vehicleID string) (model.Vehicle, error) {
	if v, ok := snap.Vehicle(vehicleID); ok {
		return v, nil
	}
	v, err := s.deps.Store.GetVehicle(ctx, s.projectID, vehicleID)
	if err != nil {
		return model.Vehicle{}, err
	}
	return *v, nil
}

// openArrival is arrivalFor plus the not-yet-confirmed check.
func (s *Session) openArrival(ctx context.Context, snap *Snapshot, arrivalID string) (model.ArrivedVehicle, error) {
	a, err := s.arrivalFor(ctx, snap, arrivalID)
	if err != nil {
		return a, err
	}
	if a.IsConfirmed {
		return a, ErrArrivalConfirmed
	}
	return a, nil
}
