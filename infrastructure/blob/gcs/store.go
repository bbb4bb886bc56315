// Package gcs stores large pool artifacts in a Google Cloud Storage bucket
package gcs

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"

	"cloud.google.com/go/storage"
	"go.uber.org/zap"
	"google.golang.org/api/option"

	"qdesign-backend/application/ports"
	apperrors "qdesign-backend/pkg/errors"
)

const refScheme = "gs://"

// Store implements ports.BlobStore on a single bucket
type Store struct {
	client *storage.Client
	bucket string
	prefix string
	logger *zap.Logger
}

// NewClient creates a storage client. An empty credentials file falls back
// to application default credentials.
func NewClient(ctx context.Context, credentialsFile string) (*storage.Client, error) {
	var opts []option.ClientOption
	if credentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
	}
	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCS storage client: %w", err)
	}
	return client, nil
}

// NewStore creates a blob store writing under prefix in bucket
func NewStore(client *storage.Client, bucket, prefix string, logger *zap.Logger) *Store {
	return &Store{
		client: client,
		bucket: bucket,
		prefix: strings.Trim(prefix, "/"),
		logger: logger.With(zap.String("component", "gcs_blob_store"), zap.String("bucket", bucket)),
	}
}

func (s *Store) objectName(key string) string {
	if s.prefix == "" {
		return key
	}
	return path.Join(s.prefix, key)
}

// parseRef splits gs://bucket/object
func parseRef(ref string) (bucket, object string, err error) {
	rest, ok := strings.CutPrefix(ref, refScheme)
	if !ok {
		return "", "", apperrors.NewValidationf("not a gcs reference: %q", ref)
	}
	bucket, object, ok = strings.Cut(rest, "/")
	if !ok || bucket == "" || object == "" {
		return "", "", apperrors.NewValidationf("malformed gcs reference: %q", ref)
	}
	return bucket, object, nil
}

func (s *Store) object(ref string) (*storage.ObjectHandle, error) {
	bucket, name, err := parseRef(ref)
	if err != nil {
		return nil, err
	}
	if bucket != s.bucket {
		return nil, apperrors.NewValidationf("reference points at bucket %q, store uses %q", bucket, s.bucket)
	}
	return s.client.Bucket(bucket).Object(name), nil
}

// Put uploads content and returns its gs:// reference
func (s *Store) Put(ctx context.Context, key, contentType string, r io.Reader) (string, error) {
	if key == "" {
		return "", apperrors.NewValidation("blob key is required")
	}
	name := s.objectName(key)

	w := s.client.Bucket(s.bucket).Object(name).NewWriter(ctx)
	w.ContentType = contentType
	w.CacheControl = "private, no-cache"

	if _, err := io.Copy(w, r); err != nil {
		_ = w.Close()
		return "", classify(err, "failed to upload artifact")
	}
	if err := w.Close(); err != nil {
		return "", classify(err, "failed to finalize artifact upload")
	}

	s.logger.Debug("Artifact uploaded", zap.String("object", name), zap.Int64("size", w.Attrs().Size))
	return refScheme + s.bucket + "/" + name, nil
}

// Get opens a reader on the referenced object
func (s *Store) Get(ctx context.Context, ref string) (io.ReadCloser, ports.BlobObject, error) {
	obj, err := s.object(ref)
	if err != nil {
		return nil, ports.BlobObject{}, err
	}
	rc, err := obj.NewReader(ctx)
	if err != nil {
		return nil, ports.BlobObject{}, classify(err, "failed to open artifact")
	}
	return rc, ports.BlobObject{
		Key:         obj.ObjectName(),
		ContentType: rc.Attrs.ContentType,
		Size:        rc.Attrs.Size,
	}, nil
}

// Delete removes the referenced object; a missing object is not an error
func (s *Store) Delete(ctx context.Context, ref string) error {
	obj, err := s.object(ref)
	if err != nil {
		return err
	}
	if err := obj.Delete(ctx); err != nil && !errors.Is(err, storage.ErrObjectNotExist) {
		return classify(err, "failed to delete artifact")
	}
	return nil
}

func classify(err error, msg string) error {
	switch {
	case errors.Is(err, storage.ErrObjectNotExist):
		return apperrors.NewNotFound("artifact content not found")
	case errors.Is(err, storage.ErrBucketNotExist):
		return apperrors.NewInternal("artifact bucket does not exist", err)
	case errors.Is(err, context.DeadlineExceeded):
		return apperrors.NewUpstreamTimeout(msg, err)
	}
	return apperrors.NewInternal(msg, err)
}
