package objectstore

import (
	"context"
	"errors"
	"net/http"
	"time"

	"cloud.google.com/go/storage"
	"google.golang.org/api/googleapi"

	"veriscan/internal/errs"
	"veriscan/internal/ports"
)

// GCSStore keeps objects in a Google Cloud Storage bucket. The write path
// uses a DoesNotExist precondition so an existing object is never replaced;
// the bucket's 412 answer maps to ports.ErrObjectExists.
type GCSStore struct {
	client *storage.Client
	bucket *storage.BucketHandle
}

var _ ports.ObjectStore = (*GCSStore)(nil)

func NewGCSStore(ctx context.Context, bucketName string) (*GCSStore, error) {
	if bucketName == "" {
		return nil, errors.New("bucket name is required")
	}

	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, errs.Wrap(err, "create storage client")
	}

	return &GCSStore{client: client, bucket: client.Bucket(bucketName)}, nil
}

func (s *GCSStore) Upload(ctx context.Context, ownerID, fileName string, payload []byte) (ports.ObjectRef, error) {
	key, err := buildKey(ownerID, fileName)
	if err != nil {
		return ports.ObjectRef{}, err
	}
	if len(payload) == 0 {
		return ports.ObjectRef{}, errors.New("payload is required")
	}

	writer := s.bucket.Object(key).If(storage.Conditions{DoesNotExist: true}).NewWriter(ctx)
	writer.ContentType = "image/jpeg"

	if _, err := writer.Write(payload); err != nil {
		_ = writer.Close()
		if isPreconditionFailed(err) {
			return ports.ObjectRef{}, ports.ErrObjectExists
		}
		return ports.ObjectRef{}, errs.Wrapf(err, "write object %q", key)
	}
	if err := writer.Close(); err != nil {
		if isPreconditionFailed(err) {
			return ports.ObjectRef{}, ports.ErrObjectExists
		}
		return ports.ObjectRef{}, errs.Wrapf(err, "finalize object %q", key)
	}

	return ports.ObjectRef{Key: key, Size: int64(len(payload))}, nil
}

func (s *GCSStore) SignedURL(ctx context.Context, ownerID, fileName string, ttl time.Duration) (string, error) {
	key, err := buildKey(ownerID, fileName)
	if err != nil {
		return "", err
	}

	if _, err := s.bucket.Object(key).Attrs(ctx); err != nil {
		if errors.Is(err, storage.ErrObjectNotExist) {
			return "", ports.ErrObjectNotFound
		}
		return "", errs.Wrapf(err, "stat object %q", key)
	}

	if ttl <= 0 {
		ttl = 15 * time.Minute
	}
	url, err := s.bucket.SignedURL(key, &storage.SignedURLOptions{
		Scheme:  storage.SigningSchemeV4,
		Method:  http.MethodGet,
		Expires: time.Now().Add(ttl),
	})
	if err != nil {
		return "", errs.Wrapf(err, "sign url for %q", key)
	}
	return url, nil
}

func (s *GCSStore) Delete(ctx context.Context, ownerID, fileName string) error {
	key, err := buildKey(ownerID, fileName)
	if err != nil {
		return err
	}

	if err := s.bucket.Object(key).Delete(ctx); err != nil {
		if errors.Is(err, storage.ErrObjectNotExist) {
			return ports.ErrObjectNotFound
		}
		return errs.Wrapf(err, "delete object %q", key)
	}
	return nil
}

func (s *GCSStore) Close() error {
	return s.client.Close()
}

func isPreconditionFailed(err error) bool {
	var gerr *googleapi.Error
	return errors.As(err, &gerr) && gerr.Code == http.StatusPreconditionFailed
}
