package store

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm/clause"

	"site-delivery-backend/internal/model"
)

// defaultUpsertColumns are the ledger columns overwritten when an insert hits
// an existing (arrival, item) pair.
var defaultUpsertColumns = []string{"status", "note", "confirmed_at", "confirmed_by", "updated_at"}

func (s *gormStore) ListConfirmations(ctx context.Context, projectID string) ([]model.Confirmation, error) {
	var rows []model.Confirmation
	if err := s.db.WithContext(ctx).
		Where("project_id = ?", projectID).
		Order("created_at, id").
		Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to list confirmations: %w", err)
	}
	return rows, nil
}

func (s *gormStore) GetConfirmation(ctx context.Context, projectID, confirmationID string) (*model.Confirmation, error) {
	var row model.Confirmation
	if err := s.db.WithContext(ctx).
		Where("project_id = ? AND id = ?", projectID, confirmationID).
		First(&row).Error; err != nil {
		return nil, fmt.Errorf("failed to get confirmation %s: %w", confirmationID, err)
	}
	return &row, nil
}

// UpdateConfirmation applies patch to the row of (arrivalID, itemID) and
// reports how many rows matched. Zero means the caller's view was stale, or
// the patch sets a status and the row is added.
func (s *gormStore) UpdateConfirmation(ctx context.Context, projectID, arrivalID, itemID string, patch ConfirmationPatch) (int64, error) {
	cols := patch.columns()
	if len(cols) == 0 {
		return 0, nil
	}
	cols["updated_at"] = time.Now().UTC()
	tx := s.db.WithContext(ctx).
		Model(&model.Confirmation{}).
		Where("project_id = ? AND arrived_vehicle_id = ? AND item_id = ?", projectID, arrivalID, itemID)
	if patch.Status != nil {
		tx = tx.Where("status <> ?", model.StatusAdded)
	}
	res := tx.Updates(cols)
	if res.Error != nil {
		return 0, fmt.Errorf("failed to update confirmation: %w", res.Error)
	}
	return res.RowsAffected, nil
}

// UpsertConfirmation inserts row, or overwrites onConflict columns of the row
// already holding the same (arrival, item) pair.
func (s *gormStore) UpsertConfirmation(ctx context.Context, row *model.Confirmation, onConflict ...string) error {
	columns := onConflict
	if len(columns) == 0 {
		columns = defaultUpsertColumns
	}
	if err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "arrived_vehicle_id"}, {Name: "item_id"}},
		DoUpdates: clause.AssignmentColumns(columns),
	}).Create(row).Error; err != nil {
		return fmt.Errorf("failed to upsert confirmation: %w", err)
	}
	return nil
}

// UpsertConfirmationStatus is UpsertConfirmation for status writes: an
// existing added row is left untouched and the call reports zero rows.
func (s *gormStore) UpsertConfirmationStatus(ctx context.Context, row *model.Confirmation, onConflict ...string) (int64, error) {
	columns := onConflict
	if len(columns) == 0 {
		columns = defaultUpsertColumns
	}
	res := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "arrived_vehicle_id"}, {Name: "item_id"}},
		DoUpdates: clause.AssignmentColumns(columns),
		Where: clause.Where{Exprs: []clause.Expression{
			clause.Neq{Column: clause.Column{Table: "confirmations", Name: "status"}, Value: model.StatusAdded},
		}},
	}).Create(row)
	if res.Error != nil {
		return 0, fmt.Errorf("failed to upsert confirmation status: %w", res.Error)
	}
	return res.RowsAffected, nil
}

// UpdatePendingConfirmations applies patch to those rows of itemIDs on the
// arrival that are still pending. Rows in any other status are left alone.
func (s *gormStore) UpdatePendingConfirmations(ctx context.Context, projectID, arrivalID string, itemIDs []string, patch ConfirmationPatch) (int64, error) {
	if len(itemIDs) == 0 {
		return 0, nil
	}
	cols := patch.columns()
	cols["updated_at"] = time.Now().UTC()
	res := s.db.WithContext(ctx).
		Model(&model.Confirmation{}).
		Where("project_id = ? AND arrived_vehicle_id = ? AND status = ? AND item_id IN ?",
			projectID, arrivalID, model.StatusPending, itemIDs).
		Updates(cols)
	if res.Error != nil {
		return 0, fmt.Errorf("failed to update pending confirmations: %w", res.Error)
	}
	return res.RowsAffected, nil
}

// InsertConfirmationsIfAbsent inserts rows whose (arrival, item) pair has no
// row yet and returns how many were written.
func (s *gormStore) InsertConfirmationsIfAbsent(ctx context.Context, rows []model.Confirmation) (int64, error) {
	if len(rows) == 0 {
		return 0, nil
	}
	res := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "arrived_vehicle_id"}, {Name: "item_id"}},
		DoNothing: true,
	}).Create(&rows)
	if res.Error != nil {
		return 0, fmt.Errorf("failed to insert confirmations: %w", res.Error)
	}
	return res.RowsAffected, nil
}

func (s *gormStore) DeleteConfirmation(ctx context.Context, projectID, confirmationID string) (int64, error) {
	res := s.db.WithContext(ctx).
		Where("project_id = ? AND id = ?", projectID, confirmationID).
		Delete(&model.Confirmation{})
	if res.Error != nil {
		return 0, fmt.Errorf("failed to delete confirmation %s: %w", confirmationID, res.Error)
	}
	return res.RowsAffected, nil
}
