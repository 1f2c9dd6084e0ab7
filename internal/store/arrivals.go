package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"site-delivery-backend/internal/model"
)

func (s *gormStore) ListArrivals(ctx context.Context, projectID string) ([]model.ArrivedVehicle, error) {
	var arrivals []model.ArrivedVehicle
	if err := s.db.WithContext(ctx).
		Where("project_id = ?", projectID).
		Order("arrival_date DESC, arrival_time DESC, created_at DESC").
		Find(&arrivals).Error; err != nil {
		return nil, fmt.Errorf("failed to list arrivals: %w", err)
	}
	return arrivals, nil
}

func (s *gormStore) GetArrival(ctx context.Context, projectID, arrivalID string) (*model.ArrivedVehicle, error) {
	var arrival model.ArrivedVehicle
	if err := s.db.WithContext(ctx).
		Where("project_id = ? AND id = ?", projectID, arrivalID).
		First(&arrival).Error; err != nil {
		return nil, fmt.Errorf("failed to get arrival %s: %w", arrivalID, err)
	}
	return &arrival, nil
}

// LatestArrival returns the most recent arrival of a vehicle, or nil when the
// vehicle has not arrived yet.
func (s *gormStore) LatestArrival(ctx context.Context, projectID, vehicleID string) (*model.ArrivedVehicle, error) {
	var arrival model.ArrivedVehicle
	err := s.db.WithContext(ctx).
		Where("project_id = ? AND vehicle_id = ?", projectID, vehicleID).
		Order("arrival_date DESC, created_at DESC").
		First(&arrival).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get latest arrival of vehicle %s: %w", vehicleID, err)
	}
	return &arrival, nil
}

// FindOrCreateArrival inserts the arrival unless one already exists for the same
// vehicle and date, and returns the stored row. When the row is new, a pending
// confirmation is written for each of itemIDs in the same transaction.
func (s *gormStore) FindOrCreateArrival(ctx context.Context, arrival *model.ArrivedVehicle, itemIDs []string) (*model.ArrivedVehicle, bool, error) {
	var (
		stored  model.ArrivedVehicle
		created bool
	)
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "vehicle_id"}, {Name: "arrival_date"}},
			DoNothing: true,
		}).Create(arrival)
		if res.Error != nil {
			return fmt.Errorf("failed to insert arrival: %w", res.Error)
		}
		created = res.RowsAffected > 0

		if err := tx.Where("vehicle_id = ? AND arrival_date = ?", arrival.VehicleID, arrival.ArrivalDate).
			First(&stored).Error; err != nil {
			return fmt.Errorf("failed to re-read arrival: %w", err)
		}
		if !created || len(itemIDs) == 0 {
			return nil
		}

		rows := make([]model.Confirmation, 0, len(itemIDs))
		for _, itemID := range itemIDs {
			rows = append(rows, model.Confirmation{
				ProjectID:        stored.ProjectID,
				ArrivedVehicleID: stored.ID,
				ItemID:           itemID,
				Status:           model.StatusPending,
			})
		}
		if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&rows).Error; err != nil {
			return fmt.Errorf("failed to insert pending confirmations: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, false, err
	}
	return &stored, created, nil
}

// UpdateArrivalDetails writes the editable fields of an arrival. Confirmed
// arrivals are not touched and report zero affected rows.
func (s *gormStore) UpdateArrivalDetails(ctx context.Context, arrival *model.ArrivedVehicle) (int64, error) {
	res := s.db.WithContext(ctx).
		Model(&model.ArrivedVehicle{}).
		Where("project_id = ? AND id = ? AND is_confirmed = ?", arrival.ProjectID, arrival.ID, false).
		Updates(map[string]interface{}{
			"arrival_time":            arrival.ArrivalTime,
			"unload_start":            arrival.UnloadStart,
			"unload_end":              arrival.UnloadEnd,
			"location":                arrival.Location,
			"notes":                   arrival.Notes,
			"unload_cranes":           arrival.Resources.Cranes,
			"unload_forklifts":        arrival.Resources.Forklifts,
			"unload_telehandlers":     arrival.Resources.Telehandlers,
			"unload_workers":          arrival.Resources.Workers,
			"unload_crane_name":       arrival.Resources.CraneName,
			"unload_forklift_name":    arrival.Resources.ForkliftName,
			"unload_telehandler_name": arrival.Resources.TelehandlerName,
			"updated_at":              time.Now().UTC(),
		})
	if res.Error != nil {
		return 0, fmt.Errorf("failed to update arrival %s: %w", arrival.ID, res.Error)
	}
	return res.RowsAffected, nil
}

// CompleteArrival flags the arrival confirmed, marks every item confirmed or
// added on it as delivered and completes the vehicle, all in one transaction.
// Completing an already confirmed arrival is a no-op.
func (s *gormStore) CompleteArrival(ctx context.Context, projectID, arrivalID, actor string, at time.Time) (ArrivalCompletion, error) {
	var out ArrivalCompletion
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var arrival model.ArrivedVehicle
		if err := tx.Where("project_id = ? AND id = ?", projectID, arrivalID).First(&arrival).Error; err != nil {
			return fmt.Errorf("failed to get arrival %s: %w", arrivalID, err)
		}
		if arrival.IsConfirmed {
			return nil
		}

		res := tx.Model(&model.ArrivedVehicle{}).
			Where("id = ? AND is_confirmed = ?", arrivalID, false).
			Updates(map[string]interface{}{
				"is_confirmed": true,
				"confirmed_at": at,
				"confirmed_by": actor,
				"updated_at":   at,
			})
		if res.Error != nil {
			return fmt.Errorf("failed to confirm arrival: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return nil
		}
		out.Completed = true

		delivered := tx.Model(&model.Confirmation{}).
			Select("item_id").
			Where("arrived_vehicle_id = ? AND status IN ?", arrivalID,
				[]model.ConfirmationStatus{model.StatusConfirmed, model.StatusAdded})
		res = tx.Model(&model.Item{}).
			Where("project_id = ? AND id IN (?)", projectID, delivered).
			Updates(map[string]interface{}{"status": model.ItemDelivered, "updated_at": at})
		if res.Error != nil {
			return fmt.Errorf("failed to mark items delivered: %w", res.Error)
		}
		out.ItemsDelivered = res.RowsAffected

		if err := tx.Model(&model.Vehicle{}).
			Where("project_id = ? AND id = ?", projectID, arrival.VehicleID).
			Updates(map[string]interface{}{"status": model.VehicleCompleted, "updated_at": at}).Error; err != nil {
			return fmt.Errorf("failed to complete vehicle: %w", err)
		}
		return nil
	})
	return out, err
}
