package reconcile

import (
	"context"
	"errors"
	"fmt"
	"io"

	"site-delivery-backend/internal/blob"
	"site-delivery-backend/internal/model"
)

// Upload describes one photo file.
type Upload struct {
	ItemID      *string
	FileName    string
	ContentType string
	Size        int64
	Body        io.Reader
}

// UploadPhoto stores the file in blob storage and records it against the
// arrival, or one of its items when ItemID is set.
func (s *Session) UploadPhoto(ctx context.Context, arrivalID string, u Upload, actor string) (*model.Photo, error) {
	if s.deps.Blobs == nil || s.deps.Namer == nil {
		return nil, errors.New("photo storage is not configured")
	}
	var photo *model.Photo
	err := s.mutate(ctx, func(snap *Snapshot) error {
		arrival, err := s.arrivalFor(ctx, snap, arrivalID)
		if err != nil {
			return err
		}
		scope := ""
		if u.ItemID != nil {
			if _, ok := snap.Item(*u.ItemID); !ok {
				if _, err := s.deps.Store.GetItem(ctx, s.projectID, *u.ItemID); err != nil {
					return err
				}
			}
			scope = *u.ItemID
		}

		objectPath := s.deps.Namer.ObjectPath(s.projectID, arrival.ID, scope, u.FileName)
		if err := s.deps.Blobs.Upload(ctx, objectPath, u.Body, u.ContentType); err != nil {
			return fmt.Errorf("failed to upload photo: %w", err)
		}
		photo = &model.Photo{
			ProjectID:        s.projectID,
			ArrivedVehicleID: arrival.ID,
			ItemID:           u.ItemID,
			Path:             objectPath,
			URL:              s.deps.Blobs.PublicURL(objectPath),
			FileName:         u.FileName,
			ContentType:      u.ContentType,
			Size:             u.Size,
			UploadedBy:       actor,
		}
		if err := s.deps.Store.CreatePhoto(ctx, photo); err != nil {
			if rerr := s.deps.Blobs.Remove(ctx, objectPath); rerr != nil {
				s.log.Warn("failed to remove orphaned photo object", "path", objectPath, "error", rerr)
			}
			return err
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return photo, nil
}

// DeletePhoto removes the photo row and its stored object.
func (s *Session) DeletePhoto(ctx context.Context, photoID string) error {
	return s.mutate(ctx, func(*Snapshot) error {
		photo, err := s.deps.Store.GetPhoto(ctx, s.projectID, photoID)
		if err != nil {
			return err
		}
		if _, err := s.deps.Store.DeletePhoto(ctx, s.projectID, photoID); err != nil {
			return err
		}
		if s.deps.Blobs == nil {
			return nil
		}
		if err := s.deps.Blobs.Remove(ctx, photo.Path); err != nil && !errors.Is(err, blob.ErrNotFound) {
			s.log.Warn("failed to remove photo object", "path", photo.Path, "error", err)
		}
		return nil
	})
}

// OpenPhoto streams a stored photo into w.
func (s *Session) OpenPhoto(ctx context.Context, photoID string, w io.Writer) (*model.Photo, error) {
	photo, err := s.deps.Store.GetPhoto(ctx, s.projectID, photoID)
	if err != nil {
		return nil, err
	}
	if s.deps.Blobs == nil {
		return nil, blob.ErrNotFound
	}
	if err := s.deps.Blobs.Open(ctx, photo.Path, w); err != nil {
		return nil, err
	}
	return photo, nil
}

// Photos returns the photos of an item on an arrival, or of the arrival
// itself when itemID is empty.
func (s *Session) Photos(arrivalID, itemID string) []model.Photo {
	return s.Ledger().Photos(arrivalID, itemID)
}
