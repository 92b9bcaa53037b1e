package media

import (
	"bytes"
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/gridfs"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// GridFSStore keeps images in a MongoDB GridFS bucket. References are the
// hex object ids of the stored files.
type GridFSStore struct {
	bucket *gridfs.Bucket
	limit  int64
}

func NewGridFSStore(db *mongo.Database, bucketName string, limit int64) (*GridFSStore, error) {
	bucket, err := gridfs.NewBucket(db, options.GridFSBucket().SetName(bucketName))
	if err != nil {
		return nil, fmt.Errorf("open gridfs bucket: %w", err)
	}
	return &GridFSStore{bucket: bucket, limit: limit}, nil
}

func (g *GridFSStore) Put(ctx context.Context, name string, data []byte) (string, error) {
	if err := CheckSize(data, g.limit); err != nil {
		return "", err
	}

	opts := options.GridFSUpload().SetMetadata(map[string]string{
		"contentType": http.DetectContentType(data),
	})
	stream, err := g.bucket.OpenUploadStream(name, opts)
	if err != nil {
		return "", fmt.Errorf("open upload stream: %w", err)
	}
	if deadline, ok := ctx.Deadline(); ok {
		_ = stream.SetWriteDeadline(deadline)
	}

	if _, err := stream.Write(data); err != nil {
		_ = stream.Abort()
		return "", fmt.Errorf("write image: %w", err)
	}
	if err := stream.Close(); err != nil {
		return "", fmt.Errorf("finish upload: %w", err)
	}

	id, ok := stream.FileID.(primitive.ObjectID)
	if !ok {
		return "", fmt.Errorf("unexpected file id type %T", stream.FileID)
	}
	return id.Hex(), nil
}

func (g *GridFSStore) Get(ctx context.Context, ref string) (*Object, error) {
	id, err := primitive.ObjectIDFromHex(ref)
	if err != nil {
		return nil, ErrNotFound
	}

	stream, err := g.bucket.OpenDownloadStream(id)
	if err != nil {
		if stderrors.Is(err, gridfs.ErrFileNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("open download stream: %w", err)
	}
	defer stream.Close()

	if deadline, ok := ctx.Deadline(); ok {
		_ = stream.SetReadDeadline(deadline)
	} else {
		_ = stream.SetReadDeadline(time.Now().Add(30 * time.Second))
	}

	var buf bytes.Buffer
	if _, err := io.Copy(&buf, stream); err != nil {
		return nil, fmt.Errorf("read image: %w", err)
	}

	name := ""
	if f := stream.GetFile(); f != nil {
		name = f.Name
	}
	data := buf.Bytes()
	return &Object{Ref: ref, Name: name, ContentType: http.DetectContentType(data), Data: data}, nil
}

func (g *GridFSStore) Delete(ctx context.Context, ref string) error {
	id, err := primitive.ObjectIDFromHex(ref)
	if err != nil {
		return ErrNotFound
	}
	if err := g.bucket.DeleteContext(ctx, id); err != nil {
		if stderrors.Is(err, gridfs.ErrFileNotFound) {
			return ErrNotFound
		}
		return fmt.Errorf("delete image: %w", err)
	}
	return nil
}
