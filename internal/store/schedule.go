package store

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"site-delivery-backend/internal/model"
)

// UpsertSchedule writes vehicles and items from an imported schedule. Vehicles
// are keyed by (project, code) and items by (project, guid). An existing item
// keeps its current vehicle pointer: re-importing a schedule must not undo a
// reassignment made on site.
func (s *gormStore) UpsertSchedule(ctx context.Context, projectID string, lines []ScheduleLine) (ScheduleResult, error) {
	var result ScheduleResult
	if len(lines) == 0 {
		return result, nil
	}

	existing, err := s.fetchVehiclesByCode(ctx, projectID)
	if err != nil {
		return result, fmt.Errorf("failed to pre-fetch vehicles: %w", err)
	}

	// Phase 1: vehicles, with totals summed from the imported lines.
	vehiclesToUpsert := prepareVehicles(projectID, lines, existing)

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if len(vehiclesToUpsert) > 0 {
			if err := batchUpsertVehicles(tx, vehiclesToUpsert); err != nil {
				return fmt.Errorf("batch upsert vehicles failed: %w", err)
			}
		}
		result.VehiclesUpserted = len(vehiclesToUpsert)

		var vehicles []model.Vehicle
		if err := tx.Where("project_id = ?", projectID).Find(&vehicles).Error; err != nil {
			return fmt.Errorf("failed to retrieve vehicles after upsert: %w", err)
		}
		byCode := make(map[string]model.Vehicle, len(vehicles))
		for _, v := range vehicles {
			byCode[v.Code] = v
		}

		// Phase 2: items.
		var items []model.Item
		for _, line := range lines {
			vehicle, ok := byCode[line.VehicleCode]
			if !ok {
				result.Orphaned = append(result.Orphaned, line)
				continue
			}
			items = append(items, prepareItem(projectID, line, vehicle))
		}
		if len(items) == 0 {
			return nil
		}
		if err := batchUpsertItems(tx, items); err != nil {
			return fmt.Errorf("batch upsert items failed: %w", err)
		}
		result.ItemsUpserted = len(items)
		return nil
	})
	return result, err
}

func prepareVehicles(projectID string, lines []ScheduleLine, existing map[string]model.Vehicle) []model.Vehicle {
	order := make([]string, 0)
	byCode := make(map[string]*model.Vehicle)
	for _, line := range lines {
		v, ok := byCode[line.VehicleCode]
		if !ok {
			v = &model.Vehicle{
				ProjectID:     projectID,
				Code:          line.VehicleCode,
				ScheduledDate: line.ScheduledDate,
				Factory:       line.Factory,
				TotalWeight:   decimal.Zero,
				Status:        model.VehiclePlanned,
			}
			byCode[line.VehicleCode] = v
			order = append(order, line.VehicleCode)
		}
		v.TotalWeight = v.TotalWeight.Add(line.Weight)
	}

	var out []model.Vehicle
	for _, code := range order {
		v := *byCode[code]
		if old, ok := existing[code]; ok {
			if old.ScheduledDate == v.ScheduledDate &&
				old.Factory == v.Factory &&
				old.TotalWeight.Equal(v.TotalWeight) {
				continue
			}
			v.Status = old.Status
		}
		out = append(out, v)
	}
	return out
}

func prepareItem(projectID string, line ScheduleLine, vehicle model.Vehicle) model.Item {
	guid := line.GUID
	vehicleID := vehicle.ID
	return model.Item{
		ProjectID:     projectID,
		VehicleID:     &vehicleID,
		ScheduledDate: vehicle.ScheduledDate,
		AssemblyMark:  line.AssemblyMark,
		ProductName:   line.ProductName,
		Weight:        line.Weight,
		GUID:          &guid,
		ModelID:       line.ModelID,
		Status:        model.ItemPlanned,
	}
}

func batchUpsertVehicles(tx *gorm.DB, vehicles []model.Vehicle) error {
	return tx.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "project_id"}, {Name: "code"}},
		DoUpdates: clause.AssignmentColumns([]string{"scheduled_date", "factory", "total_weight", "updated_at"}),
	}).Create(&vehicles).Error
}

func batchUpsertItems(tx *gorm.DB, items []model.Item) error {
	return tx.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "project_id"}, {Name: "guid"}},
		DoUpdates: clause.AssignmentColumns([]string{"assembly_mark", "product_name", "weight", "model_id", "updated_at"}),
	}).Create(&items).Error
}

func (s *gormStore) fetchVehiclesByCode(ctx context.Context, projectID string) (map[string]model.Vehicle, error) {
	var vehicles []model.Vehicle
	if err := s.db.WithContext(ctx).Where("project_id = ?", projectID).Find(&vehicles).Error; err != nil {
		return nil, err
	}
	byCode := make(map[string]model.Vehicle, len(vehicles))
	for _, v := range vehicles {
		byCode[v.Code] = v
	}
	return byCode, nil
}

func (s *gormStore) ListVehicles(ctx context.Context, projectID string) ([]model.Vehicle, error) {
	var vehicles []model.Vehicle
	if err := s.db.WithContext(ctx).
		Where("project_id = ?", projectID).
		Order("scheduled_date, code").
		Find(&vehicles).Error; err != nil {
		return nil, fmt.Errorf("failed to list vehicles: %w", err)
	}
	return vehicles, nil
}

func (s *gormStore) GetVehicle(ctx context.Context, projectID, vehicleID string) (*model.Vehicle, error) {
	var vehicle model.Vehicle
	if err := s.db.WithContext(ctx).
		Where("project_id = ? AND id = ?", projectID, vehicleID).
		First(&vehicle).Error; err != nil {
		return nil, fmt.Errorf("failed to get vehicle %s: %w", vehicleID, err)
	}
	return &vehicle, nil
}

func (s *gormStore) CreateVehicle(ctx context.Context, vehicle *model.Vehicle) error {
	if err := s.db.WithContext(ctx).Create(vehicle).Error; err != nil {
		return fmt.Errorf("failed to create vehicle %s: %w", vehicle.Code, err)
	}
	return nil
}

func (s *gormStore) ListItems(ctx context.Context, projectID string) ([]model.Item, error) {
	var items []model.Item
	if err := s.db.WithContext(ctx).
		Where("project_id = ?", projectID).
		Order("assembly_mark, created_at, id").
		Find(&items).Error; err != nil {
		return nil, fmt.Errorf("failed to list items: %w", err)
	}
	return items, nil
}

func (s *gormStore) ListItemsByVehicle(ctx context.Context, projectID, vehicleID string) ([]model.Item, error) {
	var items []model.Item
	if err := s.db.WithContext(ctx).
		Where("project_id = ? AND vehicle_id = ?", projectID, vehicleID).
		Order("assembly_mark, created_at, id").
		Find(&items).Error; err != nil {
		return nil, fmt.Errorf("failed to list items of vehicle %s: %w", vehicleID, err)
	}
	return items, nil
}

func (s *gormStore) GetItem(ctx context.Context, projectID, itemID string) (*model.Item, error) {
	var item model.Item
	if err := s.db.WithContext(ctx).
		Where("project_id = ? AND id = ?", projectID, itemID).
		First(&item).Error; err != nil {
		return nil, fmt.Errorf("failed to get item %s: %w", itemID, err)
	}
	return &item, nil
}

func (s *gormStore) FindItemsByGUID(ctx context.Context, projectID string, guids []string) ([]model.Item, error) {
	if len(guids) == 0 {
		return nil, nil
	}
	var items []model.Item
	if err := s.db.WithContext(ctx).
		Where("project_id = ? AND guid IN ?", projectID, guids).
		Find(&items).Error; err != nil {
		return nil, fmt.Errorf("failed to find items by guid: %w", err)
	}
	return items, nil
}

func (s *gormStore) FindItemsByMark(ctx context.Context, projectID, mark string) ([]model.Item, error) {
	var items []model.Item
	if err := s.db.WithContext(ctx).
		Where("project_id = ? AND assembly_mark = ?", projectID, mark).
		Order("created_at, id").
		Find(&items).Error; err != nil {
		return nil, fmt.Errorf("failed to find items by mark %q: %w", mark, err)
	}
	return items, nil
}

func (s *gormStore) CreateItem(ctx context.Context, item *model.Item) error {
	if err := s.db.WithContext(ctx).Create(item).Error; err != nil {
		return fmt.Errorf("failed to create item %s: %w", item.AssemblyMark, err)
	}
	return nil
}

func (s *gormStore) DeleteItem(ctx context.Context, projectID, itemID string) (int64, error) {
	res := s.db.WithContext(ctx).
		Where("project_id = ? AND id = ?", projectID, itemID).
		Delete(&model.Item{})
	if res.Error != nil {
		return 0, fmt.Errorf("failed to delete item %s: %w", itemID, res.Error)
	}
	return res.RowsAffected, nil
}

func (s *gormStore) MoveItem(ctx context.Context, projectID, itemID string, vehicleID *string, scheduledDate string) (int64, error) {
	res := s.db.WithContext(ctx).
		Model(&model.Item{}).
		Where("project_id = ? AND id = ?", projectID, itemID).
		Updates(map[string]interface{}{
			"vehicle_id":     vehicleID,
			"scheduled_date": scheduledDate,
			"updated_at":     time.Now().UTC(),
		})
	if res.Error != nil {
		return 0, fmt.Errorf("failed to move item %s: %w", itemID, res.Error)
	}
	return res.RowsAffected, nil
}
