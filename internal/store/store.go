package store

import (
	"context"
	"time"

	"gorm.io/gorm"

	"site-delivery-backend/internal/model"
)

// Store defines the interface for all database operations. Every call is
// scoped to a project id.
type Store interface {
	UpsertSchedule(ctx context.Context, projectID string, lines []ScheduleLine) (ScheduleResult, error)
	ListVehicles(ctx context.Context, projectID string) ([]model.Vehicle, error)
	GetVehicle(ctx context.Context, projectID, vehicleID string) (*model.Vehicle, error)
	CreateVehicle(ctx context.Context, vehicle *model.Vehicle) error

	ListItems(ctx context.Context, projectID string) ([]model.Item, error)
	ListItemsByVehicle(ctx context.Context, projectID, vehicleID string) ([]model.Item, error)
	GetItem(ctx context.Context, projectID, itemID string) (*model.Item, error)
	FindItemsByGUID(ctx context.Context, projectID string, guids []string) ([]model.Item, error)
	FindItemsByMark(ctx context.Context, projectID, mark string) ([]model.Item, error)
	CreateItem(ctx context.Context, item *model.Item) error
	DeleteItem(ctx context.Context, projectID, itemID string) (int64, error)
	MoveItem(ctx context.Context, projectID, itemID string, vehicleID *string, scheduledDate string) (int64, error)

	ListArrivals(ctx context.Context, projectID string) ([]model.ArrivedVehicle, error)
	GetArrival(ctx context.Context, projectID, arrivalID string) (*model.ArrivedVehicle, error)
	LatestArrival(ctx context.Context, projectID, vehicleID string) (*model.ArrivedVehicle, error)
	FindOrCreateArrival(ctx context.Context, arrival *model.ArrivedVehicle, itemIDs []string) (*model.ArrivedVehicle, bool, error)
	UpdateArrivalDetails(ctx context.Context, arrival *model.ArrivedVehicle) (int64, error)
	CompleteArrival(ctx context.Context, projectID, arrivalID, actor string, at time.Time) (ArrivalCompletion, error)

	ListConfirmations(ctx context.Context, projectID string) ([]model.Confirmation, error)
	GetConfirmation(ctx context.Context, projectID, confirmationID string) (*model.Confirmation, error)
	UpdateConfirmation(ctx context.Context, projectID, arrivalID, itemID string, patch ConfirmationPatch) (int64, error)
	UpsertConfirmation(ctx context.Context, row *model.Confirmation, onConflict ...string) error
	UpsertConfirmationStatus(ctx context.Context, row *model.Confirmation, onConflict ...string) (int64, error)
	UpdatePendingConfirmations(ctx context.Context, projectID, arrivalID string, itemIDs []string, patch ConfirmationPatch) (int64, error)
	InsertConfirmationsIfAbsent(ctx context.Context, rows []model.Confirmation) (int64, error)
	DeleteConfirmation(ctx context.Context, projectID, confirmationID string) (int64, error)

	CreatePhoto(ctx context.Context, photo *model.Photo) error
	GetPhoto(ctx context.Context, projectID, photoID string) (*model.Photo, error)
	ListPhotos(ctx context.Context, projectID string) ([]model.Photo, error)
	DeletePhoto(ctx context.Context, projectID, photoID string) (int64, error)

	CreateUnassigned(ctx context.Context, report *model.UnassignedArrival) error
	GetUnassigned(ctx context.Context, projectID, reportID string) (*model.UnassignedArrival, error)
	ListUnassigned(ctx context.Context, projectID string) ([]model.UnassignedArrival, error)
	ResolveUnassigned(ctx context.Context, projectID, reportID, itemID, actor string, at time.Time) (int64, error)

	InsertItemHistory(ctx context.Context, entry *model.ItemHistory) error
	ListItemHistory(ctx context.Context, projectID, itemID string) ([]model.ItemHistory, error)

	DB() *gorm.DB
}

// gormStore implements the Store interface using GORM.
type gormStore struct {
	db *gorm.DB
}

// NewGormStore creates a new GORM-backed store.
func NewGormStore(db *gorm.DB) Store {
	return &gormStore{db: db}
}

func (s *gormStore) DB() *gorm.DB {
	return s.db
}
