package store

import (
	"context"
	"fmt"
	"time"

	"site-delivery-backend/internal/model"
)

func (s *gormStore) CreatePhoto(ctx context.Context, photo *model.Photo) error {
	if err := s.db.WithContext(ctx).Create(photo).Error; err != nil {
		return fmt.Errorf("failed to create photo: %w", err)
	}
	return nil
}

func (s *gormStore) GetPhoto(ctx context.Context, projectID, photoID string) (*model.Photo, error) {
	var photo model.Photo
	if err := s.db.WithContext(ctx).
		Where("project_id = ? AND id = ?", projectID, photoID).
		First(&photo).Error; err != nil {
		return nil, fmt.Errorf("failed to get photo %s: %w", photoID, err)
	}
	return &photo, nil
}

// ListPhotos returns all photos of a project in upload order.
func (s *gormStore) ListPhotos(ctx context.Context, projectID string) ([]model.Photo, error) {
	var photos []model.Photo
	if err := s.db.WithContext(ctx).
		Where("project_id = ?", projectID).
		Order("created_at, id").
		Find(&photos).Error; err != nil {
		return nil, fmt.Errorf("failed to list photos: %w", err)
	}
	return photos, nil
}

func (s *gormStore) DeletePhoto(ctx context.Context, projectID, photoID string) (int64, error) {
	res := s.db.WithContext(ctx).
		Where("project_id = ? AND id = ?", projectID, photoID).
		Delete(&model.Photo{})
	if res.Error != nil {
		return 0, fmt.Errorf("failed to delete photo %s: %w", photoID, res.Error)
	}
	return res.RowsAffected, nil
}

func (s *gormStore) CreateUnassigned(ctx context.Context, report *model.UnassignedArrival) error {
	if err := s.db.WithContext(ctx).Create(report).Error; err != nil {
		return fmt.Errorf("failed to create unassigned report: %w", err)
	}
	return nil
}

func (s *gormStore) GetUnassigned(ctx context.Context, projectID, reportID string) (*model.UnassignedArrival, error) {
	var report model.UnassignedArrival
	if err := s.db.WithContext(ctx).
		Where("project_id = ? AND id = ?", projectID, reportID).
		First(&report).Error; err != nil {
		return nil, fmt.Errorf("failed to get unassigned report %s: %w", reportID, err)
	}
	return &report, nil
}

// ListUnassigned returns open reports first, newest first within each group.
func (s *gormStore) ListUnassigned(ctx context.Context, projectID string) ([]model.UnassignedArrival, error) {
	var reports []model.UnassignedArrival
	if err := s.db.WithContext(ctx).
		Where("project_id = ?", projectID).
		Order("resolved, reported_at DESC").
		Find(&reports).Error; err != nil {
		return nil, fmt.Errorf("failed to list unassigned reports: %w", err)
	}
	return reports, nil
}

// ResolveUnassigned links an open report to itemID and marks it resolved.
func (s *gormStore) ResolveUnassigned(ctx context.Context, projectID, reportID, itemID, actor string, at time.Time) (int64, error) {
	res := s.db.WithContext(ctx).
		Model(&model.UnassignedArrival{}).
		Where("project_id = ? AND id = ? AND resolved = ?", projectID, reportID, false).
		Updates(map[string]interface{}{
			"item_id":     itemID,
			"resolved":    true,
			"resolved_at": at,
			"resolved_by": actor,
		})
	if res.Error != nil {
		return 0, fmt.Errorf("failed to resolve unassigned report %s: %w", reportID, res.Error)
	}
	return res.RowsAffected, nil
}

func (s *gormStore) InsertItemHistory(ctx context.Context, entry *model.ItemHistory) error {
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	if err := s.db.WithContext(ctx).Create(entry).Error; err != nil {
		return fmt.Errorf("failed to insert item history: %w", err)
	}
	return nil
}

func (s *gormStore) ListItemHistory(ctx context.Context, projectID, itemID string) ([]model.ItemHistory, error) {
	var entries []model.ItemHistory
	if err := s.db.WithContext(ctx).
		Where("project_id = ? AND item_id = ?", projectID, itemID).
		Order("created_at, id").
		Find(&entries).Error; err != nil {
		return nil, fmt.Errorf("failed to list item history: %w", err)
	}
	return entries, nil
}
