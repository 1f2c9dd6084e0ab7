package blob

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/gridfs"
	"go.mongodb.org/mongo-driver/mongo/options"

	"site-delivery-backend/config"
)

// GridFS stores blobs in a MongoDB GridFS bucket, keyed by file name.
type GridFS struct {
	client  *mongo.Client
	bucket  *gridfs.Bucket
	baseURL string
}

// NewGridFS connects to MongoDB and opens the configured bucket.
func NewGridFS(ctx context.Context, cfg config.BlobConfig) (*GridFS, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.MongoURI))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to mongodb: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("failed to ping mongodb: %w", err)
	}

	bucket, err := gridfs.NewBucket(client.Database(cfg.Database), options.GridFSBucket().SetName(cfg.Bucket))
	if err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("failed to open gridfs bucket: %w", err)
	}

	return &GridFS{client: client, bucket: bucket, baseURL: cfg.PublicBaseURL}, nil
}

func (g *GridFS) Upload(ctx context.Context, objectPath string, r io.Reader, contentType string) error {
	opts := options.GridFSUpload().SetMetadata(bson.D{{Key: "content_type", Value: contentType}})
	if _, err := g.bucket.UploadFromStream(objectPath, r, opts); err != nil {
		return fmt.Errorf("failed to upload %s: %w", objectPath, err)
	}
	return nil
}

func (g *GridFS) PublicURL(objectPath string) string {
	return publicURL(g.baseURL, objectPath)
}

// Remove deletes every revision stored under objectPath.
func (g *GridFS) Remove(ctx context.Context, objectPath string) error {
	cursor, err := g.bucket.FindContext(ctx, bson.D{{Key: "filename", Value: objectPath}})
	if err != nil {
		return fmt.Errorf("failed to look up %s: %w", objectPath, err)
	}
	defer cursor.Close(ctx)

	found := false
	for cursor.Next(ctx) {
		var file struct {
			ID primitive.ObjectID `bson:"_id"`
		}
		if err := cursor.Decode(&file); err != nil {
			return fmt.Errorf("failed to decode file entry: %w", err)
		}
		if err := g.bucket.DeleteContext(ctx, file.ID); err != nil {
			return fmt.Errorf("failed to delete %s: %w", objectPath, err)
		}
		found = true
	}
	if err := cursor.Err(); err != nil {
		return fmt.Errorf("failed to iterate files: %w", err)
	}
	if !found {
		return ErrNotFound
	}
	return nil
}

func (g *GridFS) Open(ctx context.Context, objectPath string, w io.Writer) error {
	if _, err := g.bucket.DownloadToStreamByName(objectPath, w); err != nil {
		if errors.Is(err, gridfs.ErrFileNotFound) {
			return ErrNotFound
		}
		return fmt.Errorf("failed to download %s: %w", objectPath, err)
	}
	return nil
}

// Close disconnects the underlying client.
func (g *GridFS) Close(ctx context.Context) error {
	return g.client.Disconnect(ctx)
}
